package service

import (
	"testing"
	"time"

	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

const testPassword = "correct horse battery"

func newAuthService(t *testing.T, ttl time.Duration) *AuthService {
	t.Helper()
	hash, err := HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	svc, err := NewAuthService(AuthConfig{
		JWTSecret: []byte("test-secret"),
		TokenTTL:  ttl,
		Operators: []Operator{
			{Username: "admin", PasswordHash: hash, Role: "admin"},
			{Username: "viewer", PasswordHash: hash},
		},
	})
	if err != nil {
		t.Fatalf("NewAuthService failed: %v", err)
	}
	return svc
}

func TestIssueAndAuthenticate(t *testing.T) {
	svc := newAuthService(t, time.Hour)

	result, err := svc.IssueToken("admin", testPassword)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if result.Role != "admin" {
		t.Fatalf("unexpected role: %s", result.Role)
	}
	if !result.ExpiresAt.After(time.Now()) {
		t.Fatal("expected a future expiry")
	}

	info, err := svc.Authenticate(result.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if info.Username != "admin" || info.Role != "admin" {
		t.Fatalf("unexpected operator info: %+v", info)
	}
}

func TestIssueTokenDefaultsRole(t *testing.T) {
	svc := newAuthService(t, time.Hour)

	result, err := svc.IssueToken("viewer", testPassword)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if result.Role != "operator" {
		t.Fatalf("expected default operator role, got %s", result.Role)
	}
}

func TestIssueTokenRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, time.Hour)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "wrong"},
		{"unknown operator", "ghost", testPassword},
		{"empty credentials", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.IssueToken(tc.username, tc.password)
			if appErr.GetCode(err) != appErr.InvalidCredentials {
				t.Fatalf("expected InvalidCredentials, got %v", err)
			}
		})
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	svc := newAuthService(t, -time.Minute)

	result, err := svc.IssueToken("admin", testPassword)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := svc.Authenticate(result.AccessToken); appErr.GetCode(err) != appErr.TokenExpired {
		t.Fatalf("expected TokenExpired, got %v", err)
	}
}

func TestAuthenticateRejectsForeignToken(t *testing.T) {
	svc := newAuthService(t, time.Hour)

	hash, err := HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	other, err := NewAuthService(AuthConfig{
		JWTSecret: []byte("other-secret"),
		Operators: []Operator{{Username: "admin", PasswordHash: hash, Role: "admin"}},
	})
	if err != nil {
		t.Fatalf("NewAuthService failed: %v", err)
	}
	foreign, err := other.IssueToken("admin", testPassword)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if _, err := svc.Authenticate(foreign.AccessToken); appErr.GetCode(err) != appErr.TokenInvalid {
		t.Fatalf("expected TokenInvalid, got %v", err)
	}
	if _, err := svc.Authenticate("not-a-token"); appErr.GetCode(err) != appErr.TokenInvalid {
		t.Fatalf("expected TokenInvalid, got %v", err)
	}
	if _, err := svc.Authenticate(""); appErr.GetCode(err) != appErr.TokenInvalid {
		t.Fatalf("expected TokenInvalid, got %v", err)
	}
}

func TestNewAuthServiceValidation(t *testing.T) {
	if _, err := NewAuthService(AuthConfig{}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewAuthService(AuthConfig{
		JWTSecret: []byte("s"),
		Operators: []Operator{{Username: "admin"}},
	}); err == nil {
		t.Fatal("expected error for operator without password hash")
	}
}
