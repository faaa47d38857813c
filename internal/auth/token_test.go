package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	raw, err := tokens.Issue("u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	userID, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "u1" {
		t.Errorf("Expected user u1, got %q", userID)
	}
}

func TestTokenService_VerifyMissingToken(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	_, err := tokens.Verify("")
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("Expected ErrMissingToken, got %v", err)
	}
}

func TestTokenService_VerifyWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	raw, err := issuer.Issue("u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = verifier.Verify(raw)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenService_VerifyExpiredToken(t *testing.T) {
	tokens := NewTokenService("test-secret", -time.Minute)

	raw, err := tokens.Issue("u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = tokens.Verify(raw)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenService_VerifyGarbage(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	_, err := tokens.Verify("not-a-token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter22" {
		t.Error("Expected hash to differ from plaintext")
	}

	if !CheckPassword("hunter22", hash) {
		t.Error("Expected matching password to verify")
	}
	if CheckPassword("hunter23", hash) {
		t.Error("Expected mismatched password to fail")
	}
}
