package domain

import "time"

// AuthIdentity is one linkable credential on an account. Immutable once
// created; re-linking a provider replaces the entry wholesale.
type AuthIdentity struct {
	Provider    Provider
	ExternalID  string // sub/id from the provider
	Email       string
	DisplayName string
	Username    string
	AvatarURL   string
	LinkedAt    time.Time
}

// UserAccount is the authenticated principal, the single source of "current
// session" truth on the device. Mutated only through successful login, link,
// unlink and primary-method responses; destroyed on logout. Username is the
// identifier; the backend never exposes an internal account id.
type UserAccount struct {
	Email             string
	Username          string
	Name              string
	PrimaryAuthMethod Provider
	LinkedIdentities  []AuthIdentity // unique by provider
	LoginMethods      []Provider     // ordered, usable methods
	HasPassword       bool
}

// ProviderOverview is the linkable-method summary served by the providers
// listing. Unlike UserAccount it carries no top-level identity fields.
type ProviderOverview struct {
	Identities   []AuthIdentity
	LoginMethods []Provider
	HasPassword  bool
}

// Identity returns the linked identity for a provider, if any.
func (u *UserAccount) Identity(p Provider) (AuthIdentity, bool) {
	for _, id := range u.LinkedIdentities {
		if id.Provider == p {
			return id, true
		}
	}
	return AuthIdentity{}, false
}

// HasLoginMethod reports whether method is usable for this account.
func (u *UserAccount) HasLoginMethod(p Provider) bool {
	for _, m := range u.LoginMethods {
		if m == p {
			return true
		}
	}
	return false
}

// Link adds an identity. A provider may appear at most once; adding a second
// identity for a linked provider is a contract violation and must go through
// Unlink first.
func (u *UserAccount) Link(id AuthIdentity) error {
	if _, ok := u.Identity(id.Provider); ok {
		return ErrProviderAlreadyLinked(id.Provider)
	}
	u.LinkedIdentities = append(u.LinkedIdentities, id)
	if !u.HasLoginMethod(id.Provider) {
		u.LoginMethods = append(u.LoginMethods, id.Provider)
	}
	return nil
}

// Unlink removes a provider identity and its login method. Unlinking the
// primary method is rejected; callers must switch primary first.
func (u *UserAccount) Unlink(p Provider) error {
	if u.PrimaryAuthMethod == p {
		return WithMeta(New(KindValidation, "primary_method_linked", "cannot unlink the primary sign-in method"), map[string]string{
			"provider": string(p),
		})
	}
	found := false
	ids := u.LinkedIdentities[:0]
	for _, id := range u.LinkedIdentities {
		if id.Provider == p {
			found = true
			continue
		}
		ids = append(ids, id)
	}
	if !found {
		return WithMeta(New(KindValidation, "provider_not_linked", "provider is not linked to this account"), map[string]string{
			"provider": string(p),
		})
	}
	u.LinkedIdentities = ids
	methods := u.LoginMethods[:0]
	for _, m := range u.LoginMethods {
		if m != p {
			methods = append(methods, m)
		}
	}
	u.LoginMethods = methods
	return nil
}

// SetPrimary changes the primary auth method. The new primary must already be
// a usable login method.
func (u *UserAccount) SetPrimary(p Provider) error {
	if !u.HasLoginMethod(p) {
		return WithMeta(New(KindValidation, "method_not_usable", "primary method must be one of the account login methods"), map[string]string{
			"method": string(p),
		})
	}
	u.PrimaryAuthMethod = p
	return nil
}

// Validate checks the account invariants after a backend response or a
// storage reload.
func (u *UserAccount) Validate() error {
	seen := map[Provider]bool{}
	for _, id := range u.LinkedIdentities {
		if seen[id.Provider] {
			return WithMeta(New(KindValidation, "duplicate_identity", "account carries two identities for one provider"), map[string]string{
				"provider": string(id.Provider),
			})
		}
		seen[id.Provider] = true
	}
	if u.PrimaryAuthMethod != "" && !u.HasLoginMethod(u.PrimaryAuthMethod) {
		return New(KindValidation, "primary_not_usable", "primary auth method is not in login methods")
	}
	return nil
}
