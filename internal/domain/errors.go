package domain

import (
	"errors"
	"fmt"
)

// ErrKind is the closed set of error categories the auth flow reacts to.
// Transition decisions (retry, conflict hand-off, quiet cancellation) key on
// Kind, never on message text.
type ErrKind string

const (
	KindValidation          ErrKind = "validation"           // caller misuse, bad input
	KindConfig              ErrKind = "config"               // missing/invalid client configuration, fatal
	KindNetwork             ErrKind = "network"              // transport failure, retryable
	KindTimeout             ErrKind = "timeout"              // backend call deadline, retryable
	KindProviderUnavailable ErrKind = "provider_unavailable" // provider outage, retryable with backoff
	KindCancelled           ErrKind = "cancelled"            // user dismissed the flow, terminal, not alarming
	KindAccountConflict     ErrKind = "account_conflict"     // routed to conflict resolution, not a failure
	KindInvalidToken        ErrKind = "invalid_token"        // credential rejected, not retryable
	KindProvider            ErrKind = "provider"             // provider-side error, not retryable
	KindStorage             ErrKind = "storage"              // local persistence failure
	KindInternal            ErrKind = "internal"
)

// Retryable reports whether the flow may re-attempt the failed step under the
// backoff policy.
func (k ErrKind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindProviderUnavailable:
		return true
	default:
		return false
	}
}

// Alarming reports whether the kind warrants error-level reporting.
// Cancellations and conflicts are expected flow outcomes, not incidents.
func (k ErrKind) Alarming() bool {
	return k != KindCancelled && k != KindAccountConflict
}

// Error is a structured auth-flow error.
// - Kind: category driving flow transitions
// - Code: stable machine code (do not change casually)
// - Message: safe summary for display (avoid leaking tokens or codes)
// - Meta: optional details (provider, field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf extracts the kind from any error. Non-domain errors are internal.
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf extracts the stable code from any error.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal_error"
}

// ----------------------
// Validation / caller misuse
// ----------------------

func ErrUnknownProvider(provider string) *Error {
	return WithMeta(New(KindValidation, "unknown_provider", "unknown auth provider"), map[string]string{
		"provider": provider,
	})
}

// Second Login for a provider while one attempt is in flight.
func ErrAuthInProgress(provider Provider) *Error {
	return WithMeta(New(KindValidation, "auth_in_progress", "authentication already in progress"), map[string]string{
		"provider": string(provider),
	})
}

// Second resolution for a conflict case while one is pending.
func ErrResolutionInProgress() *Error {
	return New(KindValidation, "resolution_in_progress", "conflict resolution already in progress")
}

func ErrConflictAlreadyResolved() *Error {
	return New(KindValidation, "conflict_already_resolved", "conflict case already resolved")
}

func ErrProviderAlreadyLinked(provider Provider) *Error {
	return WithMeta(New(KindValidation, "provider_already_linked", "provider already linked to this account"), map[string]string{
		"provider": string(provider),
	})
}

func ErrNotAuthenticated() *Error {
	return New(KindValidation, "not_authenticated", "no active session")
}

// ----------------------
// Configuration (fatal, never retried)
// ----------------------

func ErrMissingClientID(provider Provider) *Error {
	return WithMeta(New(KindConfig, "missing_client_id", "provider client identifier is not configured"), map[string]string{
		"provider": string(provider),
	})
}

func ErrConfigInvalid(reason string) *Error {
	return WithMeta(New(KindConfig, "config_invalid", "invalid configuration"), map[string]string{
		"reason": reason,
	})
}

// No usable delivery method: native helper absent and no browser to open.
func ErrNoDeliveryMethod(provider Provider) *Error {
	return WithMeta(New(KindConfig, "no_delivery_method", "no usable sign-in method on this device"), map[string]string{
		"provider": string(provider),
	})
}

// ----------------------
// Transient (retryable)
// ----------------------

func ErrNetwork(cause error) *Error {
	return Wrap(KindNetwork, "network_error", "network request failed", cause)
}

func ErrTimeout(cause error) *Error {
	return Wrap(KindTimeout, "timeout", "request timed out", cause)
}

func ErrProviderUnavailable(provider Provider, cause error) *Error {
	return WithMeta(Wrap(KindProviderUnavailable, "provider_unavailable", "auth provider is unavailable", cause), map[string]string{
		"provider": string(provider),
	})
}

// ----------------------
// Cancellation (terminal, quiet)
// ----------------------

func ErrCancelled() *Error {
	return New(KindCancelled, "oauth_cancelled", "sign-in was cancelled")
}

// ----------------------
// Token / provider (not retryable)
// ----------------------

func ErrInvalidToken(cause error) *Error {
	return Wrap(KindInvalidToken, "invalid_token", "credential was rejected", cause)
}

func ErrProviderError(msg string, cause error) *Error {
	if msg == "" {
		msg = "auth provider returned an error"
	}
	return Wrap(KindProvider, "provider_error", msg, cause)
}

// ----------------------
// Storage / internal
// ----------------------

func ErrStorage(op string, cause error) *Error {
	return WithMeta(Wrap(KindStorage, "storage_failed", "local session storage failed", cause), map[string]string{
		"op": op,
	})
}

func ErrVaultKey() *Error {
	return New(KindConfig, "vault_key_invalid", "vault key must be 64 hex characters")
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}
