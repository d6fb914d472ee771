package auth

import (
	"testing"
	"time"
)

func newTokenService() TokenService {
	return TokenService{
		Secret:          []byte("test-jwt-secret-32-bytes-padded!"),
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := newTokenService()
	now := time.Now().UTC()

	tok, exp, err := svc.NewAccessToken("user-1", "admin", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok == "" {
		t.Fatal("expected non-empty token")
	}
	if !exp.After(now) {
		t.Fatalf("expected expiry after now, got %v", exp)
	}

	claims, err := svc.ParseAccessToken(tok)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject 'user-1', got %q", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Fatalf("expected role 'admin', got %q", claims.Role)
	}
}

func TestAccessToken_MissingSecret(t *testing.T) {
	svc := TokenService{AccessTokenTTL: time.Hour}
	_, _, err := svc.NewAccessToken("user-1", "learner", time.Now())
	if err == nil {
		t.Fatal("expected error when secret is empty")
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	svc := newTokenService()
	tok, _, err := svc.NewAccessToken("user-1", "learner", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ParseAccessToken(tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	svc := newTokenService()
	tok, _, err := svc.NewAccessToken("user-1", "learner", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := newTokenService()
	other.Secret = []byte("a-completely-different-secret!!!")
	if _, err := other.ParseAccessToken(tok); err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

func TestParseAccessToken_Garbage(t *testing.T) {
	svc := newTokenService()
	if _, err := svc.ParseAccessToken("not.a.jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestNewRefreshToken(t *testing.T) {
	raw, hash, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw == "" || hash == "" {
		t.Fatal("expected non-empty token and hash")
	}
	if raw == hash {
		t.Fatal("hash must differ from the raw token")
	}
	if HashToken(raw) != hash {
		t.Fatal("HashToken must reproduce the stored hash")
	}

	raw2, _, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw == raw2 {
		t.Fatal("tokens must be unique")
	}
}
