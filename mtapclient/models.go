package mtapclient

import (
	"bytes"
	"io"
)

// Memory is a stored MTAP record. The identifying fields follow the wire
// representation; the payload is attached separately by the fetch path as
// buffered bytes or, on streaming fetches, an open handle.
type Memory struct {
	ID               string         `json:"id"`
	ContentType      string         `json:"content_type"`
	Metadata         map[string]any `json:"metadata"`
	RevisionID       string         `json:"revision_id,omitempty"`
	CommitHash       string         `json:"commit_hash,omitempty"`
	PolicySnapshotID string         `json:"policy_snapshot_id,omitempty"`

	data   []byte
	stream io.ReadCloser
}

// Data returns the buffered payload bytes. It is nil when the memory was
// fetched in streaming mode or carries no payload; use DataStream for
// streamed fetches.
func (m *Memory) Data() []byte {
	return m.data
}

// DataStream returns a reader over the payload. Streaming fetches return
// the live response body, which the caller must close; buffered payloads
// are wrapped so both fetch modes can be consumed the same way. Nil when
// the memory carries no payload.
func (m *Memory) DataStream() io.ReadCloser {
	if m.stream != nil {
		return m.stream
	}
	if m.data != nil {
		return io.NopCloser(bytes.NewReader(m.data))
	}
	return nil
}

// Streamed reports whether the payload is an open response body.
func (m *Memory) Streamed() bool {
	return m.stream != nil
}

// Close releases the open payload handle of a streamed memory. Safe to
// call on buffered memories and more than once.
func (m *Memory) Close() error {
	if m.stream == nil {
		return nil
	}
	stream := m.stream
	m.stream = nil
	return stream.Close()
}

// MemorySummary is the search-result projection of a memory.
type MemorySummary struct {
	ID              string         `json:"id"`
	ContentType     string         `json:"content_type"`
	MetadataPreview map[string]any `json:"metadata_preview"`
	RevisionID      string         `json:"revision_id,omitempty"`
}

// SearchResult is one page of a memory search.
type SearchResult struct {
	Results               []MemorySummary `json:"results"`
	NextPageToken         string          `json:"next_page_token,omitempty"`
	PrivacyBudgetConsumed map[string]any  `json:"privacy_budget_consumed,omitempty"`
}

// RevocationReceipt confirms a memory revocation. Timestamp is the
// server-reported ISO 8601 instant, passed through verbatim.
type RevocationReceipt struct {
	RevocationID string `json:"revocation_id"`
	Timestamp    string `json:"timestamp"`
	Status       string `json:"status"`
	TargetID     string `json:"target_id"`
	ReasonCode   string `json:"reason_code,omitempty"`
}

// AuditLogEntry is a single recorded action.
type AuditLogEntry struct {
	LogID            string            `json:"log_id"`
	Timestamp        string            `json:"timestamp"`
	ActorID          string            `json:"actor_id"`
	Action           string            `json:"action"`
	TargetResource   map[string]string `json:"target_resource"`
	Status           string            `json:"status"`
	Details          map[string]any    `json:"details,omitempty"`
	ConsentProofUsed string            `json:"consent_proof_used,omitempty"`
}

// AuditLogSlice is one page of the audit log.
type AuditLogSlice struct {
	Entries      []AuditLogEntry `json:"log_entries"`
	NextLogToken string          `json:"next_log_token,omitempty"`
}
