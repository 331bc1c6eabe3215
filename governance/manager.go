package governance

import "context"

// ConsentManager manages consent artifacts and produces consent proofs for
// privileged operations. Implementations typically talk to a governance
// service or a local signing facility; the client only depends on this
// contract.
type ConsentManager interface {
	// GenerateConsentProof produces the proof string sent in the
	// X-Consent-Proof header for an operation covered by the artifact.
	GenerateConsentProof(ctx context.Context, artifactID string, operation map[string]any) (string, error)
	// CreateConsentArtifact registers a new consent artifact.
	CreateConsentArtifact(ctx context.Context, artifact map[string]any) (*ConsentArtifactStatus, error)
	// GetConsentArtifact retrieves an artifact by ID; a nil artifact with a
	// nil error means the artifact does not exist.
	GetConsentArtifact(ctx context.Context, artifactID string) (*ConsentArtifact, error)
	// RevokeConsentArtifact revokes an artifact, optionally recording a
	// machine-readable reason code.
	RevokeConsentArtifact(ctx context.Context, artifactID, reasonCode string) (*ConsentArtifactStatus, error)
}

// PolicyManager exposes the data usage policies the client can pin
// operations to.
type PolicyManager interface {
	// PolicyDetails retrieves one policy; nil with a nil error means the
	// policy does not exist.
	PolicyDetails(ctx context.Context, policyID string) (*PolicyDetails, error)
	// ListAvailablePolicies lists the policies available to this client.
	ListAvailablePolicies(ctx context.Context) ([]PolicySummary, error)
	// DefaultPolicySnapshotID returns the policy snapshot applied to
	// operations that do not specify one; empty means no default.
	DefaultPolicySnapshotID(ctx context.Context) (string, error)
}
