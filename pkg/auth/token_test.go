package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()

	svc, err := NewTokenService("test-secret-0123456789", ttl)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return svc
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	token, expiry, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if until := time.Until(expiry); until < 29*time.Minute || until > 31*time.Minute {
		t.Errorf("expiry %s from now, want ~30m", until)
	}

	subject, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if subject != "alice" {
		t.Errorf("subject = %q, want alice", subject)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := newTestService(t, time.Minute)

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	token, _, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := svc.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate() error = %v, want ErrExpiredToken", err)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	svc := newTestService(t, time.Minute)
	other, err := NewTokenService("a-different-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	token, _, err := other.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Validate() error = %v, want ErrBadSignature", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	svc := newTestService(t, time.Minute)

	for _, token := range []string{"", "not.a.token", "xxxx"} {
		if _, err := svc.Validate(token); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Validate(%q) error = %v, want ErrMalformedToken", token, err)
		}
	}
}

func TestNewTokenServiceRejectsEmptySecret(t *testing.T) {
	if _, err := NewTokenService("", time.Minute); err == nil {
		t.Error("NewTokenService(\"\") expected error, got nil")
	}
}

func TestZeroTTLUsesDefault(t *testing.T) {
	svc := newTestService(t, 0)
	if svc.TTL() != DefaultTokenTTL {
		t.Errorf("TTL() = %s, want %s", svc.TTL(), DefaultTokenTTL)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pw12345")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "pw12345" {
		t.Error("hash equals plaintext")
	}

	if !VerifyPassword(hash, "pw12345") {
		t.Error("VerifyPassword() = false for correct password")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("VerifyPassword() = true for wrong password")
	}
}
