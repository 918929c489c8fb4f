package jwt

import (
	"testing"
	"time"
)

func TestNewPairAndParse(t *testing.T) {
	t.Parallel()

	pair, err := NewPair(42, "secret", time.Hour, 2*time.Hour)
	if err != nil {
		t.Fatalf("NewPair error: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "secret", TypeAccess)
	if err != nil {
		t.Fatalf("Parse access error: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("user id mismatch: got %d want 42", claims.UserID)
	}

	claims, err = Parse(pair.RefreshToken, "secret", TypeRefresh)
	if err != nil {
		t.Fatalf("Parse refresh error: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("user id mismatch: got %d want 42", claims.UserID)
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	t.Parallel()

	pair, err := NewPair(1, "secret", time.Hour, 2*time.Hour)
	if err != nil {
		t.Fatalf("NewPair error: %v", err)
	}

	if _, err := Parse(pair.RefreshToken, "secret", TypeAccess); err == nil {
		t.Fatal("expected refresh token to be rejected as access token")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	pair, err := NewPair(1, "right-secret", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewPair error: %v", err)
	}

	if _, err := Parse(pair.AccessToken, "wrong-secret", TypeAccess); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	t.Parallel()

	pair, err := NewPair(1, "secret", -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewPair error: %v", err)
	}

	if _, err := Parse(pair.AccessToken, "secret", TypeAccess); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
