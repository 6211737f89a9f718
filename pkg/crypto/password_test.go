package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func randomSecret(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("read random bytes: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func TestHashPasswordEmbedsSalt(t *testing.T) {
	first, err := HashPassword("Pass1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := HashPassword("Pass1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct hashes for the same input")
	}
	if bytes.Contains(first, []byte("Pass1234")) {
		t.Fatalf("hash must not contain the plaintext")
	}
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	for i := 0; i < 25; i++ {
		secret := randomSecret(t)
		hash, err := HashPassword(secret)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		if !VerifyPassword(hash, secret) {
			t.Fatalf("expected round-trip verification to succeed")
		}
		if VerifyPassword(hash, secret+"x") {
			t.Fatalf("expected mismatched secret to fail verification")
		}
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	if VerifyPassword([]byte("not-a-bcrypt-hash"), "whatever") {
		t.Fatalf("expected malformed hash to verify as false")
	}
	if VerifyPassword(nil, "whatever") {
		t.Fatalf("expected nil hash to verify as false")
	}
}
