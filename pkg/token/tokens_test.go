package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "unit-test-signing-secret"

func TestIssueAndParseRoundTrip(t *testing.T) {
	raw, err := Issue("user-42", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	claims, err := Parse(raw, testSecret)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Fatalf("unexpected user id: %q", claims.UserID)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) <= 0 {
		t.Fatalf("expected expiry in the future")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	raw, err := Issue("user-42", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := Parse(raw, testSecret); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	raw, err := Issue("user-42", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			continue
		}
		mutated := []byte(raw)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if _, err := Parse(string(mutated), testSecret); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for byte %d, got %v", i, err)
		}
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	raw, err := Issue("user-42", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := Parse(raw, "other-secret"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "garbage", strings.Repeat("a.", 40)} {
		if _, err := Parse(raw, testSecret); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %q, got %v", raw, err)
		}
	}
}
