package domain

import (
	"errors"
	"testing"
)

func TestError_ErrorString_NoCause(t *testing.T) {
	err := New(KindConfig, "missing_client_id", "provider client identifier is not configured")

	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error string")
	}
}

func TestError_ErrorString_WithCause(t *testing.T) {
	root := errors.New("root cause")
	err := Wrap(KindNetwork, "network_error", "network request failed", root)

	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is to match cause")
	}
}

func TestError_Unwrap(t *testing.T) {
	root := errors.New("root")
	err := Wrap(KindInternal, "internal_error", "internal", root)

	if errors.Unwrap(err) != root {
		t.Fatalf("unwrap did not return cause")
	}
}

func TestWithMeta_AttachesMeta(t *testing.T) {
	err := ErrMissingClientID(ProviderGoogle)

	if err.Meta == nil {
		t.Fatalf("expected meta to be set")
	}
	if err.Meta["provider"] != "google" {
		t.Fatalf("unexpected meta value: %+v", err.Meta)
	}
}

func TestIs_MatchesCode(t *testing.T) {
	err := ErrCancelled()

	if !Is(err, "oauth_cancelled") {
		t.Fatalf("expected code match")
	}
	if Is(err, "something_else") {
		t.Fatalf("unexpected code match")
	}
}

func TestIs_NonDomainError(t *testing.T) {
	err := errors.New("plain error")

	if Is(err, "oauth_cancelled") {
		t.Fatalf("should not match non-domain error")
	}
}

func TestKindRetryable(t *testing.T) {
	retryable := []ErrKind{KindNetwork, KindTimeout, KindProviderUnavailable}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Fatalf("expected %s to be retryable", k)
		}
	}

	fatal := []ErrKind{KindConfig, KindCancelled, KindAccountConflict, KindInvalidToken, KindProvider, KindValidation, KindStorage, KindInternal}
	for _, k := range fatal {
		if k.Retryable() {
			t.Fatalf("expected %s to not be retryable", k)
		}
	}
}

func TestKindAlarming(t *testing.T) {
	if KindCancelled.Alarming() {
		t.Fatalf("cancellation must not alarm")
	}
	if KindAccountConflict.Alarming() {
		t.Fatalf("conflict routing must not alarm")
	}
	if !KindNetwork.Alarming() {
		t.Fatalf("network failures should alarm")
	}
}

func TestKindOf_And_CodeOf(t *testing.T) {
	err := ErrTimeout(errors.New("deadline"))

	if KindOf(err) != KindTimeout {
		t.Fatalf("unexpected kind: %s", KindOf(err))
	}
	if CodeOf(err) != "timeout" {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatalf("non-domain errors should map to internal")
	}
}

func TestValidationErrors(t *testing.T) {
	err := ErrAuthInProgress(ProviderGitHub)
	if err.Kind != KindValidation || err.Code != "auth_in_progress" {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err.Meta["provider"] != "github" {
		t.Fatalf("unexpected meta: %+v", err.Meta)
	}
}

func TestConfigErrors(t *testing.T) {
	err := ErrMissingClientID(ProviderGoogle)
	if err.Kind != KindConfig || err.Code != "missing_client_id" {
		t.Fatalf("unexpected error: %+v", err)
	}
}

func TestTransientErrors(t *testing.T) {
	root := errors.New("conn refused")
	err := ErrNetwork(root)

	if err.Kind != KindNetwork {
		t.Fatalf("unexpected kind")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected wrapped cause")
	}
}

func TestStorageError(t *testing.T) {
	err := ErrStorage("save_account", errors.New("disk full"))
	if err.Kind != KindStorage {
		t.Fatalf("unexpected kind")
	}
	if err.Meta["op"] != "save_account" {
		t.Fatalf("unexpected meta")
	}
}
