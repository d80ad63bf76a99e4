package domain

import "strings"

// Resolution is the user's choice for an account conflict.
type Resolution string

const (
	ResolutionLink   Resolution = "link"
	ResolutionSwitch Resolution = "switch"
	ResolutionCancel Resolution = "cancel"
)

func IsValidResolution(r string) bool {
	switch Resolution(r) {
	case ResolutionLink, ResolutionSwitch, ResolutionCancel:
		return true
	default:
		return false
	}
}

// ConflictAction is the backend's answer to a resolution request.
type ConflictAction string

const (
	ActionLinked    ConflictAction = "linked"
	ActionSwitch    ConflictAction = "switch"
	ActionCancelled ConflictAction = "cancelled"
)

// ConflictCase is produced when the backend detects an email collision
// between the attempted OAuth identity and an existing account. It lives only
// for the duration of the conflict dialog and is resolved exactly once.
type ConflictCase struct {
	ID                string
	Email             string
	ExistingProviders []Provider
	AttemptedProvider Provider
	SuggestedAction   string
	// Details is the conflict payload exactly as the backend sent it,
	// echoed back verbatim when the case is resolved.
	Details []byte
	// Pending is the credential of the attempt that collided; replayed on a
	// link resolution.
	Pending *Credential
}

// NewConflictCase builds a case from decoded backend conflict details.
// A case without existing providers is malformed and rejected.
func NewConflictCase(id, email string, attempted Provider, existing []Provider, suggested string, pending *Credential) (*ConflictCase, error) {
	if len(existing) == 0 {
		return nil, New(KindValidation, "conflict_without_providers", "conflict case requires at least one existing provider")
	}
	return &ConflictCase{
		ID:                id,
		Email:             email,
		ExistingProviders: existing,
		AttemptedProvider: attempted,
		SuggestedAction:   suggested,
		Pending:           pending,
	}, nil
}

// ProvidersFromMeta splits the comma-joined provider list the API boundary
// stores in error metadata.
func ProvidersFromMeta(joined string) []Provider {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]Provider, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, Provider(p))
		}
	}
	return out
}

// ConflictOutcome reports how a case ended.
type ConflictOutcome struct {
	Action   ConflictAction
	User     *UserAccount // set when Action == ActionLinked
	Provider Provider
}
