package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTServiceGenerateValidate(t *testing.T) {
	service := NewJWTService("secret", time.Hour)
	token, err := service.Generate("ops@example.com", "Release Ops")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	principal, err := service.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if principal.ID != "ops@example.com" {
		t.Fatalf("expected subject, got %q", principal.ID)
	}
	if principal.Name != "Release Ops" {
		t.Fatalf("expected name, got %q", principal.Name)
	}
	if principal.Method != MethodToken {
		t.Fatalf("expected method %q, got %q", MethodToken, principal.Method)
	}
}

func TestJWTServiceRejectsTamperedToken(t *testing.T) {
	service := NewJWTService("secret", time.Hour)
	token, err := service.Generate("ops@example.com", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := service.Validate(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTServiceRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret", time.Hour).Generate("ops@example.com", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := NewJWTService("other", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	service := NewJWTService("secret", time.Millisecond)
	token, err := service.Generate("ops@example.com", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := service.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTServiceRejectsUnsignedToken(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops@example.com"},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, err := NewJWTService("secret", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTServiceRequiresSubject(t *testing.T) {
	if _, err := NewJWTService("secret", time.Hour).Generate("  ", ""); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestJWTServiceNoExpiry(t *testing.T) {
	service := NewJWTService("secret", 0)
	token, err := service.Generate("ops@example.com", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := service.Validate(token); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
