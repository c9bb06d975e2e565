package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

func TestIssueVerifyRoundtrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.Issue("guard", types.RoleSecurity, "Security Guard")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "guard" {
		t.Fatalf("subject = %q, want guard", claims.Subject)
	}
	if claims.Role != types.RoleSecurity {
		t.Fatalf("role = %q, want security", claims.Role)
	}
	if claims.FullName != "Security Guard" {
		t.Fatalf("full name = %q", claims.FullName)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.Issue("guard", types.RoleSecurity, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := map[string]string{
		"garbage":      "not.a.token",
		"empty":        "",
		"flipped byte": token[:len(token)-2] + "xx",
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Verify(bad); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	token, err := issuer.Issue("guard", types.RoleSecurity, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issued := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	m := NewManager("test-secret", time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.Issue("guard", types.RoleSecurity, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = func() time.Time { return issued.Add(59 * time.Minute) }
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken after expiry", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if strings.Contains(hash, "s3cret") {
		t.Fatal("hash leaks the password")
	}
	if !CheckPassword(hash, "s3cret") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
