package mtapclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/mtap-io/mtap-go/extension"
	"github.com/mtap-io/mtap-go/governance"
	"github.com/mtap-io/mtap-go/session"
	"github.com/mtap-io/mtap-go/transport"
)

const (
	// appendDataFilename is the default data-part filename on append calls.
	appendDataFilename = "memory_data_append"

	defaultSearchDSLType  = "simple_text"
	defaultSearchPageSize = 20
	defaultAuditLogLimit  = 100
)

// CaptureOptions carries the optional parts of a capture call.
type CaptureOptions struct {
	// Filename names the data part; defaults to "memory_data". The
	// content type is inferred from its extension when not set explicitly.
	Filename string
	// Context is sent as an extra JSON part when non-empty.
	Context map[string]any
	// ConsentProof is sent as the X-Consent-Proof header.
	ConsentProof string
	// PolicySnapshotID overrides the client-wide default snapshot.
	PolicySnapshotID string
	// IdempotencyKey makes a retried capture apply at most once
	// server-side. See trace.NewIdempotencyKey.
	IdempotencyKey string
}

// CaptureMemory stores a new memory from an in-memory payload and returns
// the created record.
func (c *Client) CaptureMemory(ctx context.Context, data []byte, contentType string, metadata map[string]any, opts *CaptureOptions) (*Memory, error) {
	return c.capture(ctx, transport.DataPart{Bytes: data, ContentType: contentType}, metadata, opts)
}

// CaptureMemoryStream stores a new memory from a streaming payload. The
// stream is consumed by the first attempt, so captures that must survive
// retries should buffer or supply an idempotency key.
func (c *Client) CaptureMemoryStream(ctx context.Context, data io.Reader, contentType string, metadata map[string]any, opts *CaptureOptions) (*Memory, error) {
	return c.capture(ctx, transport.DataPart{Stream: data, ContentType: contentType}, metadata, opts)
}

func (c *Client) capture(ctx context.Context, part transport.DataPart, metadata map[string]any, opts *CaptureOptions) (*Memory, error) {
	if opts == nil {
		opts = &CaptureOptions{}
	}
	part.Filename = opts.Filename

	headers := map[string]string{}
	if opts.ConsentProof != "" {
		headers[transport.HeaderConsentProof] = opts.ConsentProof
	}
	if id := c.policySnapshotID(opts.PolicySnapshotID); id != "" {
		headers[transport.HeaderPolicySnapshot] = id
	}

	desc := &transport.RequestDescriptor{
		Method:  http.MethodPost,
		URL:     transport.BuildURL(c.baseURL, "memories", nil),
		Headers: headers,
		Multipart: &transport.MultipartPayload{
			Metadata: metadata,
			Context:  opts.Context,
			Data:     part,
		},
		IdempotencyKey: opts.IdempotencyKey,
		ExpectedStatus: []int{http.StatusCreated},
	}

	var memory Memory
	if err := c.sendJSON(ctx, desc, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

// AppendOptions carries the optional parts of an append call.
type AppendOptions struct {
	// Filename names the data part; defaults to "memory_data_append".
	Filename       string
	ConsentProof   string
	IdempotencyKey string
}

// AppendToMemory adds a payload to an existing memory and returns the
// resulting record.
func (c *Client) AppendToMemory(ctx context.Context, parentID string, data []byte, contentType string, metadata map[string]any, opts *AppendOptions) (*Memory, error) {
	return c.appendTo(ctx, parentID, transport.DataPart{Bytes: data, ContentType: contentType}, metadata, opts)
}

// AppendToMemoryStream adds a streaming payload to an existing memory.
// The same single-consumption rule as CaptureMemoryStream applies.
func (c *Client) AppendToMemoryStream(ctx context.Context, parentID string, data io.Reader, contentType string, metadata map[string]any, opts *AppendOptions) (*Memory, error) {
	return c.appendTo(ctx, parentID, transport.DataPart{Stream: data, ContentType: contentType}, metadata, opts)
}

func (c *Client) appendTo(ctx context.Context, parentID string, part transport.DataPart, metadata map[string]any, opts *AppendOptions) (*Memory, error) {
	if opts == nil {
		opts = &AppendOptions{}
	}
	if err := c.validator.Validate(&appendInput{ParentID: parentID}); err != nil {
		return nil, err
	}

	part.Filename = opts.Filename
	if part.Filename == "" {
		part.Filename = appendDataFilename
	}

	headers := map[string]string{}
	if opts.ConsentProof != "" {
		headers[transport.HeaderConsentProof] = opts.ConsentProof
	}

	desc := &transport.RequestDescriptor{
		Method:  http.MethodPost,
		URL:     transport.BuildURL(c.baseURL, joinPath("memories", parentID)+"/append", nil),
		Headers: headers,
		Multipart: &transport.MultipartPayload{
			Metadata: metadata,
			Data:     part,
		},
		IdempotencyKey: opts.IdempotencyKey,
		ExpectedStatus: []int{http.StatusOK, http.StatusCreated},
	}

	var memory Memory
	if err := c.sendJSON(ctx, desc, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

// GetOptions carries the optional parts of a fetch call.
type GetOptions struct {
	// RevisionID fetches a specific revision instead of the latest.
	RevisionID string
	// Accept requests a representation, sent as the Accept header.
	Accept string
	// ByteRange requests part of the payload, e.g. "0-1023". Sent as
	// "Range: bytes=<range>"; a 206 response becomes acceptable.
	ByteRange string
	// ConsentProof is sent as the X-Consent-Proof header.
	ConsentProof string
	// Stream leaves the response body open and attaches it to the
	// returned memory. The caller owns closing it.
	Stream bool
}

// GetMemory fetches a memory record. JSON responses decode into the full
// record; binary responses attach the payload bytes to a record built from
// the request identity. With opts.Stream the payload is an open handle the
// caller must close.
func (c *Client) GetMemory(ctx context.Context, memoryID string, opts *GetOptions) (*Memory, error) {
	if opts == nil {
		opts = &GetOptions{}
	}
	if err := c.validator.Validate(&getMemoryInput{MemoryID: memoryID}); err != nil {
		return nil, err
	}

	path := joinPath("memories", memoryID)
	if opts.RevisionID != "" {
		path += "/" + joinPath("revisions", opts.RevisionID)
	}

	headers := map[string]string{}
	if opts.Accept != "" {
		headers[transport.HeaderAccept] = opts.Accept
	}
	if opts.ConsentProof != "" {
		headers[transport.HeaderConsentProof] = opts.ConsentProof
	}
	expected := []int{http.StatusOK}
	if opts.ByteRange != "" {
		headers[transport.HeaderRange] = "bytes=" + opts.ByteRange
		expected = append(expected, http.StatusPartialContent)
	}

	desc := &transport.RequestDescriptor{
		Method:         http.MethodGet,
		URL:            transport.BuildURL(c.baseURL, path, nil),
		Headers:        headers,
		ExpectedStatus: expected,
	}

	if opts.Stream {
		env, err := c.sendStream(ctx, desc)
		if err != nil {
			return nil, err
		}
		return &Memory{
			ID:          memoryID,
			ContentType: env.ContentType(),
			RevisionID:  opts.RevisionID,
			stream:      env.Body,
		}, nil
	}

	res, err := c.send(ctx, desc)
	if err != nil {
		return nil, err
	}
	if res.isJSON() {
		var memory Memory
		if err := decodeJSON(res, desc.URL, &memory); err != nil {
			return nil, err
		}
		return &memory, nil
	}

	// Binary representation: the record fields are not in the response,
	// so build the memory from the request identity plus the payload.
	contentType := res.contentType()
	if contentType == "" {
		contentType = transport.ContentTypeOctetStream
	}
	return &Memory{
		ID:          memoryID,
		ContentType: contentType,
		Metadata:    map[string]any{},
		RevisionID:  opts.RevisionID,
		data:        res.body,
	}, nil
}

// SearchOptions carries the search request. Query and QueryObject are
// mutually exclusive.
type SearchOptions struct {
	// Query is a plain-text query.
	Query string
	// QueryObject is a structured query in the dialect named by DSLType.
	QueryObject map[string]any
	// DSLType names the query dialect; defaults to "simple_text".
	DSLType string
	// Sort names the result ordering.
	Sort string
	// Filters narrows the result set.
	Filters map[string]any
	// PrivacyBudget requests differential-privacy accounting.
	PrivacyBudget map[string]any
	// PageSize bounds the result page; defaults to 20.
	PageSize int
	// PageToken continues a previous search.
	PageToken    string
	ConsentProof string
}

// SearchMemories runs a search and returns one result page.
func (c *Client) SearchMemories(ctx context.Context, opts *SearchOptions) (*SearchResult, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	if err := c.validator.Validate(&searchInput{
		Query:       opts.Query,
		QueryObject: opts.QueryObject,
		PageSize:    opts.PageSize,
	}); err != nil {
		return nil, err
	}

	body := map[string]any{}
	if opts.Query != "" {
		body["q"] = opts.Query
	}
	if len(opts.QueryObject) > 0 {
		body["query_object"] = opts.QueryObject
	}
	dslType := opts.DSLType
	if dslType == "" {
		dslType = defaultSearchDSLType
	}
	body["dsl_type"] = dslType
	if opts.Sort != "" {
		body["sort"] = opts.Sort
	}
	if len(opts.Filters) > 0 {
		body["filters"] = opts.Filters
	}
	if len(opts.PrivacyBudget) > 0 {
		body["privacy_budget"] = opts.PrivacyBudget
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultSearchPageSize
	}
	query := map[string]any{"page_size": pageSize}
	if opts.PageToken != "" {
		query["page_token"] = opts.PageToken
	}

	headers := map[string]string{}
	if opts.ConsentProof != "" {
		headers[transport.HeaderConsentProof] = opts.ConsentProof
	}

	desc := &transport.RequestDescriptor{
		Method:         http.MethodPost,
		URL:            transport.BuildURL(c.baseURL, "memories/search", query),
		Headers:        headers,
		JSONBody:       body,
		ExpectedStatus: []int{http.StatusOK},
	}

	var result SearchResult
	if err := c.sendJSON(ctx, desc, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RevokeOptions carries the optional parts of a revocation.
type RevokeOptions struct {
	// ReasonCode is an upper snake case code recorded with the
	// revocation, e.g. USER_REQUEST.
	ReasonCode string
	// Cascade also revokes derived memories.
	Cascade        bool
	ConsentProof   string
	IdempotencyKey string
}

// RevokeMemory revokes a memory. Accepted requests may complete
// asynchronously; the receipt status says which.
func (c *Client) RevokeMemory(ctx context.Context, memoryID string, opts *RevokeOptions) (*RevocationReceipt, error) {
	if opts == nil {
		opts = &RevokeOptions{}
	}
	if err := c.validator.Validate(&revokeInput{
		MemoryID:   memoryID,
		ReasonCode: opts.ReasonCode,
	}); err != nil {
		return nil, err
	}

	body := map[string]any{"cascade": opts.Cascade}
	if opts.ReasonCode != "" {
		body["reason_code"] = opts.ReasonCode
	}

	headers := map[string]string{}
	if opts.ConsentProof != "" {
		headers[transport.HeaderConsentProof] = opts.ConsentProof
	}

	desc := &transport.RequestDescriptor{
		Method:         http.MethodPost,
		URL:            transport.BuildURL(c.baseURL, joinPath("memories", memoryID)+"/revoke", nil),
		Headers:        headers,
		JSONBody:       body,
		IdempotencyKey: opts.IdempotencyKey,
		ExpectedStatus: []int{http.StatusOK, http.StatusAccepted},
	}

	var receipt RevocationReceipt
	if err := c.sendJSON(ctx, desc, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// AuditLogOptions filters the audit log.
type AuditLogOptions struct {
	// Scope narrows the log to matching resources; JSON-encoded into the
	// scope query parameter.
	Scope map[string]any
	// ActionTypes keeps only the named actions, comma-joined on the wire.
	ActionTypes []string
	// Since and Until bound the time window (ISO 8601).
	Since string
	Until string
	// PageToken continues a previous listing.
	PageToken string
	// Limit bounds the page; defaults to 100.
	Limit        int
	ConsentProof string
}

// AuditLog lists recorded actions, newest first.
func (c *Client) AuditLog(ctx context.Context, opts *AuditLogOptions) (*AuditLogSlice, error) {
	if opts == nil {
		opts = &AuditLogOptions{}
	}
	if err := c.validator.Validate(&auditInput{Limit: opts.Limit}); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultAuditLogLimit
	}
	query := map[string]any{"limit": limit}
	if len(opts.Scope) > 0 {
		scope, err := json.Marshal(opts.Scope)
		if err != nil {
			return nil, &configurationError{message: "scope is not JSON-encodable", field: "scope", wrapped: err}
		}
		query["scope"] = string(scope)
	}
	if len(opts.ActionTypes) > 0 {
		query["action_types"] = strings.Join(opts.ActionTypes, ",")
	}
	if opts.Since != "" {
		query["since"] = opts.Since
	}
	if opts.Until != "" {
		query["until"] = opts.Until
	}
	if opts.PageToken != "" {
		query["page_token"] = opts.PageToken
	}

	headers := map[string]string{}
	if opts.ConsentProof != "" {
		headers[transport.HeaderConsentProof] = opts.ConsentProof
	}

	desc := &transport.RequestDescriptor{
		Method:         http.MethodGet,
		URL:            transport.BuildURL(c.baseURL, "audit/logs", query),
		Headers:        headers,
		ExpectedStatus: []int{http.StatusOK},
	}

	var slice AuditLogSlice
	if err := c.sendJSON(ctx, desc, &slice); err != nil {
		return nil, err
	}
	return &slice, nil
}

// Authenticate establishes a fresh session through the auth provider,
// replacing any cached one.
func (c *Client) Authenticate(ctx context.Context) (*session.SessionContext, error) {
	if c.closed.Load() {
		return nil, errClientClosed()
	}
	sc, err := c.sessions.Authenticate(ctx)
	if err != nil {
		return nil, wrapSessionError(err)
	}
	return sc, nil
}

// IsAuthenticated reports whether a valid, unexpired session is cached.
func (c *Client) IsAuthenticated() bool {
	if c.closed.Load() {
		return false
	}
	return c.sessions.IsAuthenticated()
}

// SessionContext returns the cached session. Without a valid session it
// authenticates when autoAuthenticate is set and returns nil otherwise.
func (c *Client) SessionContext(ctx context.Context, autoAuthenticate bool) (*session.SessionContext, error) {
	if c.closed.Load() {
		return nil, errClientClosed()
	}
	if sc := c.sessions.Current(); sc.Valid() {
		return sc, nil
	}
	if !autoAuthenticate {
		return nil, nil
	}
	sc, err := c.sessions.Ensure(ctx)
	if err != nil {
		return nil, wrapSessionError(err)
	}
	return sc, nil
}

// RegisterExtension adds an extension to this client's registry.
func (c *Client) RegisterExtension(ext extension.Extension) error {
	if c.closed.Load() {
		return errClientClosed()
	}
	return c.extensions.Register(ext)
}

// Extension returns a registered extension, initializing it on first use.
func (c *Client) Extension(ctx context.Context, id string) (extension.Extension, error) {
	if c.closed.Load() {
		return nil, errClientClosed()
	}
	return c.extensions.Get(ctx, id)
}

// Consent returns the consent collaborator.
func (c *Client) Consent() governance.ConsentManager {
	return c.consent
}

// Policies returns the policy collaborator.
func (c *Client) Policies() governance.PolicyManager {
	return c.policies
}

// GetConsentArtifact fetches a consent artifact through the configured
// consent manager. Returns (nil, nil) when the artifact does not exist.
func (c *Client) GetConsentArtifact(ctx context.Context, artifactID string) (*governance.ConsentArtifact, error) {
	return c.consent.GetConsentArtifact(ctx, artifactID)
}

// GenerateConsentProof produces a proof token for an operation through the
// configured consent manager.
func (c *Client) GenerateConsentProof(ctx context.Context, artifactID string, operation map[string]any) (string, error) {
	return c.consent.GenerateConsentProof(ctx, artifactID, operation)
}

// Close releases the connection pool, clears the cached session, and
// invokes the provider's Logout capability best-effort; a logout failure
// is logged, not returned. Close is idempotent and later operations fail
// with a configuration error.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.transport.Close()
	if err := c.sessions.Logout(ctx); err != nil {
		c.log.Warn().Err(err).Msg("auth provider logout failed during close")
	}
	return nil
}

func (c *Client) policySnapshotID(override string) string {
	if override != "" {
		return override
	}
	return c.defaultPolicySnapshotID
}

// Operation input shapes checked before dispatch.

type appendInput struct {
	ParentID string `validate:"required"`
}

type getMemoryInput struct {
	MemoryID string `validate:"required"`
}

type revokeInput struct {
	MemoryID   string `validate:"required"`
	ReasonCode string `validate:"omitempty,reason_code"`
}

type searchInput struct {
	Query       string         `validate:"excluded_with=QueryObject"`
	QueryObject map[string]any `validate:"excluded_with=Query"`
	PageSize    int            `validate:"omitempty,min=1"`
}

type auditInput struct {
	Limit int `validate:"omitempty,min=1"`
}
