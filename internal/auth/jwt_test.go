package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.GenerateAccessToken("admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("Expected username admin, got %q", claims.Username)
	}
}

func TestValidateRejectsTampered(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := other.GenerateAccessToken("admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := m.ValidateAccessToken(token); err == nil {
		t.Error("Expected token signed with another secret to fail validation")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewJWTManager("test-secret", time.Nanosecond)

	token, err := m.GenerateAccessToken("admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := m.ValidateAccessToken(token); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := CheckPassword(hash, "hunter2"); err != nil {
		t.Errorf("Expected matching password to pass, got %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err != ErrInvalidCredentials {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}
