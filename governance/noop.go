package governance

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by the noop managers. Callers can test for it
// with errors.Is to distinguish "governance not wired" from real failures.
var ErrNotConfigured = errors.New("governance: manager not configured")

// NoopConsentManager is the stand-in used when no consent manager is
// configured. Unlike a silent no-op, every operation fails with
// ErrNotConfigured: consent handling must never appear to succeed when
// nothing is enforcing it.
type NoopConsentManager struct{}

var _ ConsentManager = (*NoopConsentManager)(nil)

// GenerateConsentProof implements ConsentManager.
func (*NoopConsentManager) GenerateConsentProof(context.Context, string, map[string]any) (string, error) {
	return "", fmt.Errorf("cannot generate consent proof: %w", ErrNotConfigured)
}

// CreateConsentArtifact implements ConsentManager.
func (*NoopConsentManager) CreateConsentArtifact(context.Context, map[string]any) (*ConsentArtifactStatus, error) {
	return nil, fmt.Errorf("cannot create consent artifact: %w", ErrNotConfigured)
}

// GetConsentArtifact implements ConsentManager.
func (*NoopConsentManager) GetConsentArtifact(context.Context, string) (*ConsentArtifact, error) {
	return nil, fmt.Errorf("cannot get consent artifact: %w", ErrNotConfigured)
}

// RevokeConsentArtifact implements ConsentManager.
func (*NoopConsentManager) RevokeConsentArtifact(context.Context, string, string) (*ConsentArtifactStatus, error) {
	return nil, fmt.Errorf("cannot revoke consent artifact: %w", ErrNotConfigured)
}

// NoopPolicyManager is the stand-in used when no policy manager is
// configured. Lookups fail with ErrNotConfigured; the default snapshot is
// simply absent.
type NoopPolicyManager struct{}

var _ PolicyManager = (*NoopPolicyManager)(nil)

// PolicyDetails implements PolicyManager.
func (*NoopPolicyManager) PolicyDetails(context.Context, string) (*PolicyDetails, error) {
	return nil, fmt.Errorf("cannot get policy details: %w", ErrNotConfigured)
}

// ListAvailablePolicies implements PolicyManager.
func (*NoopPolicyManager) ListAvailablePolicies(context.Context) ([]PolicySummary, error) {
	return nil, fmt.Errorf("cannot list policies: %w", ErrNotConfigured)
}

// DefaultPolicySnapshotID implements PolicyManager. No manager means no
// default snapshot, which is a valid state rather than an error.
func (*NoopPolicyManager) DefaultPolicySnapshotID(context.Context) (string, error) {
	return "", nil
}
