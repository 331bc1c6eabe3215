// Package testutil provides shared constants for testing across the MTAP
// SDK. These constants eliminate repeated string literals in test files
// and ensure consistency.
package testutil

// Test Error Messages
//
// These constants define common error messages used in test assertions.

const (
	// TestError is a generic error message for test error scenarios.
	TestError = "test error"

	// TestConnectionRefused is the common network error message for
	// connection failure scenarios.
	TestConnectionRefused = "connection refused"
)

// Test Identity and Credentials
//
// These constants define the identifiers test fixtures use for sessions,
// memories, and governance artifacts.

const (
	// TestUserID identifies the user behind test sessions.
	TestUserID = "user-1"

	// TestAgentID identifies the agent behind test sessions.
	TestAgentID = "agent-7"

	// TestAccessToken is a fixed bearer token for provider tests.
	TestAccessToken = "test-access-token"

	// TestMemoryID is the memory most fixtures operate on.
	TestMemoryID = "mem-123"

	// TestRevisionID is a revision of TestMemoryID.
	TestRevisionID = "rev-2"

	// TestConsentProof is an opaque consent-proof token.
	TestConsentProof = "proof-abc"

	// TestPolicySnapshotID pins fixtures to one policy version.
	TestPolicySnapshotID = "policy-v1"

	// TestIdempotencyKey is a stable key for exactly-once assertions.
	TestIdempotencyKey = "idem-123"
)

// Test Server Configuration

const (
	// TestServerURL is the placeholder MTAP endpoint for tests that never
	// dial; tests that do use an httptest server URL instead.
	TestServerURL = "http://localhost:8080"
)
