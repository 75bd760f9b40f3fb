package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/amaglobal/ama/config"
)

func setTestSecret(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "unit-test-secret")
	config.Reset()
	t.Cleanup(config.Reset)
}

func TestGenerateAndParseToken(t *testing.T) {
	setTestSecret(t)

	token, err := GenerateToken(TokenIdentity{
		UserID:      42,
		Username:    "amy",
		Email:       "amy@example.com",
		DisplayName: "Amy",
		Provider:    "github",
	}, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "amy" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Email != "amy@example.com" || claims.Provider != "github" {
		t.Errorf("provider metadata lost: %+v", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Errorf("expiry = %v", claims.ExpiresAt)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	setTestSecret(t)

	for _, bad := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := ParseToken(bad); err == nil {
			t.Errorf("ParseToken(%q) accepted", bad)
		}
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	setTestSecret(t)

	token, err := GenerateToken(TokenIdentity{UserID: 1, Username: "amy"}, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseTokenRejectsTamperedSignature(t *testing.T) {
	setTestSecret(t)

	token, err := GenerateToken(TokenIdentity{UserID: 1, Username: "amy"}, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := ParseToken(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}
