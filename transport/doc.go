// Package transport implements the retry-aware HTTP engine underneath the
// MTAP client.
//
// Callers describe one logical request as a RequestDescriptor (method, URL,
// headers, one body variant, expectations) and hand it to a Transport. The
// transport owns everything per-attempt: encoding the body into a replayable
// reader, applying per-attempt deadlines, classifying each attempt into
// deliver, retry or abort, sleeping with exponential backoff and jitter, and
// draining abandoned response bodies so connections return to the pool.
//
// Status codes off the retry forcelist are never judged here; the envelope
// is delivered with a nil error and interpretation stays with the caller.
// Only forcelist statuses, connectivity failures and attempt timeouts burn
// retry budget. Caller cancellation always aborts immediately.
//
// Basic usage:
//
//	t, err := transport.New(transport.Config{
//		Retry:  transport.DefaultRetryPolicy(),
//		Logger: log,
//	})
//	if err != nil {
//		return err
//	}
//	defer t.Close()
//
//	env, err := t.Execute(ctx, &transport.RequestDescriptor{
//		Method:   http.MethodGet,
//		URL:      transport.BuildURL(base, "/v1/memories/"+id, nil),
//		Headers:  headers,
//		ExpectedStatus: []int{http.StatusOK},
//	})
//	if err != nil {
//		return err
//	}
//	defer env.Close()
//
// A Transport is safe for concurrent use; one instance per client is the
// intended shape.
package transport
