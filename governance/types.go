// Package governance defines the consent and policy surface of the MTAP
// client: the data shapes for consent artifacts and usage policies, the
// manager contracts an embedding application can implement, and erroring
// stand-ins used when governance is not configured.
package governance

// Consent artifact lifecycle states.
const (
	ConsentStatusActive  = "active"
	ConsentStatusRevoked = "revoked"
	ConsentStatusExpired = "expired"
)

// ConsentArtifact is a grant of access from one party to another, scoped to
// memories and actions and optionally bound to conditions and a policy
// snapshot.
type ConsentArtifact struct {
	ID        string         `json:"id"`
	GranterID string         `json:"granter_id"`
	GranteeID string         `json:"grantee_id"`
	Scope     map[string]any `json:"scope"`
	Status    string         `json:"status"`
	// Conditions constrain the grant, for example an expiry date.
	Conditions map[string]any `json:"conditions,omitempty"`
	// PolicySnapshotID pins the policy version the consent was given under.
	PolicySnapshotID string `json:"policy_snapshot_id,omitempty"`
	// RawArtifact is the signed artifact itself, when available.
	RawArtifact string `json:"raw_artifact,omitempty"`
}

// ConsentArtifactStatus is the result of a consent artifact management
// operation.
type ConsentArtifactStatus struct {
	ArtifactID string           `json:"artifact_id"`
	Status     string           `json:"status"`
	Details    string           `json:"details,omitempty"`
	Artifact   *ConsentArtifact `json:"artifact,omitempty"`
}

// PolicySummary is the listing form of a data usage policy.
type PolicySummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description_short,omitempty"`
}

// PolicyDetails is the full form of a data usage policy.
type PolicyDetails struct {
	PolicySummary
	DescriptionFull string `json:"description_full,omitempty"`
	TermsURL        string `json:"terms_url,omitempty"`
}
