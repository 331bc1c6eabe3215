// Package mtapclient is the entry point of the MTAP SDK: a client for
// capturing, fetching, searching, and revoking memory records over HTTP.
//
// Every operation flows through one pipeline: establish a session through
// the auth provider, merge default, per-call, and auth headers, encode the
// body, execute with retries via the transport package, then classify the
// response status into the typed error taxonomy.
//
// Construction
//   - NewClient(serverURL, provider) for defaults.
//   - NewBuilder(serverURL, provider).With...().Build() for tuned retry,
//     timeout, rate limiting, headers, and governance collaborators.
//   - FromConfig(cfg, provider) to wire a loaded config.Config.
//
// Errors
//   - Every failure implements ClientError; branch on IsErrorType or
//     errors.Is/As through the wrapped chain.
//   - Non-success statuses map to fixed kinds (400 invalid_request,
//     401 authentication, 403 authorization, 404 not_found,
//     409 idempotency_conflict, 429 rate_limit, 5xx server, rest api).
//   - Invalid inputs fail as configuration errors before any network I/O.
//
// Resource ownership
//   - Non-streamed responses are buffered and closed internally.
//   - GetMemory with Stream, like CaptureMemoryStream's request side,
//     hands ownership to the caller: close the returned memory.
package mtapclient
