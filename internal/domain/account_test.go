package domain

import (
	"testing"
	"time"
)

func testAccount() *UserAccount {
	return &UserAccount{
		Email:             "a@b.com",
		Username:          "ab",
		Name:              "A B",
		PrimaryAuthMethod: ProviderEmail,
		LinkedIdentities: []AuthIdentity{
			{Provider: ProviderGoogle, ExternalID: "g-123", Email: "a@b.com", LinkedAt: time.Now()},
		},
		LoginMethods: []Provider{ProviderEmail, ProviderGoogle},
		HasPassword:  true,
	}
}

func TestAccount_Identity(t *testing.T) {
	u := testAccount()

	id, ok := u.Identity(ProviderGoogle)
	if !ok || id.ExternalID != "g-123" {
		t.Fatalf("expected google identity, got %+v ok=%v", id, ok)
	}
	if _, ok := u.Identity(ProviderGitHub); ok {
		t.Fatalf("github should not be linked")
	}
}

func TestAccount_Link_AddsIdentityAndMethod(t *testing.T) {
	u := testAccount()

	err := u.Link(AuthIdentity{Provider: ProviderGitHub, ExternalID: "github-7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := u.Identity(ProviderGitHub); !ok {
		t.Fatalf("identity not added")
	}
	if !u.HasLoginMethod(ProviderGitHub) {
		t.Fatalf("login method not added")
	}
}

func TestAccount_Link_RejectsDuplicateProvider(t *testing.T) {
	u := testAccount()

	err := u.Link(AuthIdentity{Provider: ProviderGoogle, ExternalID: "g-456"})
	if !Is(err, "provider_already_linked") {
		t.Fatalf("expected provider_already_linked, got %v", err)
	}
	// Existing identity must be untouched.
	id, _ := u.Identity(ProviderGoogle)
	if id.ExternalID != "g-123" {
		t.Fatalf("existing identity replaced: %+v", id)
	}
}

func TestAccount_Unlink(t *testing.T) {
	u := testAccount()

	if err := u.Unlink(ProviderGoogle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := u.Identity(ProviderGoogle); ok {
		t.Fatalf("identity not removed")
	}
	if u.HasLoginMethod(ProviderGoogle) {
		t.Fatalf("login method not removed")
	}
}

func TestAccount_Unlink_PrimaryRejected(t *testing.T) {
	u := testAccount()
	u.PrimaryAuthMethod = ProviderGoogle

	err := u.Unlink(ProviderGoogle)
	if !Is(err, "primary_method_linked") {
		t.Fatalf("expected primary_method_linked, got %v", err)
	}
}

func TestAccount_Unlink_NotLinked(t *testing.T) {
	u := testAccount()

	err := u.Unlink(ProviderGitHub)
	if !Is(err, "provider_not_linked") {
		t.Fatalf("expected provider_not_linked, got %v", err)
	}
}

func TestAccount_SetPrimary(t *testing.T) {
	u := testAccount()

	if err := u.SetPrimary(ProviderGoogle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.PrimaryAuthMethod != ProviderGoogle {
		t.Fatalf("primary not updated")
	}

	err := u.SetPrimary(ProviderGitHub)
	if !Is(err, "method_not_usable") {
		t.Fatalf("expected method_not_usable, got %v", err)
	}
}

func TestAccount_Validate(t *testing.T) {
	u := testAccount()
	if err := u.Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}

	u.LinkedIdentities = append(u.LinkedIdentities, AuthIdentity{Provider: ProviderGoogle, ExternalID: "g-dup"})
	if err := u.Validate(); !Is(err, "duplicate_identity") {
		t.Fatalf("expected duplicate_identity, got %v", err)
	}

	u = testAccount()
	u.PrimaryAuthMethod = ProviderGitHub
	if err := u.Validate(); !Is(err, "primary_not_usable") {
		t.Fatalf("expected primary_not_usable, got %v", err)
	}
}
