package utils

import (
	"testing"
	"time"
)

func TestGenerateLinkToken(t *testing.T) {
	a := GenerateLinkToken()
	b := GenerateLinkToken()
	if a == b {
		t.Fatal("tokens not unique")
	}
	if len(a) != 32 {
		t.Errorf("token length = %d, want 32", len(a))
	}
}

func TestLinkTokenConsumeOnce(t *testing.T) {
	setTestSecret(t)

	code := GenerateLinkToken()
	SaveCode("magic:amy@example.com", code, time.Minute)

	if !VerifyAndConsumeCode("magic:amy@example.com", code) {
		t.Fatal("valid code rejected")
	}
	// One-time: the same code never verifies twice.
	if VerifyAndConsumeCode("magic:amy@example.com", code) {
		t.Fatal("code verified twice")
	}
}

func TestLinkTokenNamespaces(t *testing.T) {
	setTestSecret(t)

	code := GenerateLinkToken()
	SaveCode("magic:amy@example.com", code, time.Minute)

	// A reset-flow lookup cannot consume a magic-link token.
	if VerifyAndConsumeCode("reset:amy@example.com", code) {
		t.Fatal("token leaked across namespaces")
	}
	if !VerifyAndConsumeCode("magic:amy@example.com", code) {
		t.Fatal("token consumed by the wrong namespace")
	}
}

func TestLinkTokenUnknownKey(t *testing.T) {
	setTestSecret(t)

	if VerifyAndConsumeCode("magic:nobody@example.com", "whatever") {
		t.Fatal("unknown key verified")
	}
}

// The cooldown must work whether Redis answers or not: a first request always
// goes through and a second one inside the window is always refused.
func TestEmailCooldownSingleWindow(t *testing.T) {
	setTestSecret(t)

	email := "cooldown-" + GenerateLinkToken() + "@example.com"
	if !EmailCooldownTrySet(email, time.Minute) {
		t.Fatal("first request blocked")
	}
	if EmailCooldownTrySet(email, time.Minute) {
		t.Error("second request inside the cooldown window allowed")
	}
}
