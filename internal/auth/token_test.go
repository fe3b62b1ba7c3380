package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/example/cario/internal/models"
)

func TestIssueAndParse(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	s, err := tk.Issue("sess-1", models.RoleDriver)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := tk.Parse(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.SessionID != "sess-1" || c.Role != models.RoleDriver {
		t.Fatalf("unexpected claims %+v", c)
	}
}

func TestParseRejectsOtherSecret(t *testing.T) {
	s, _ := NewTokens("a", time.Hour).Issue("sess-1", models.RoleRider)
	if _, err := NewTokens("b", time.Hour).Parse(s); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseExpired(t *testing.T) {
	tk := NewTokens("secret", time.Minute)
	base := time.Now()
	tk.now = func() time.Time { return base }
	s, err := tk.Issue("sess-1", models.RoleRider)
	if err != nil {
		t.Fatal(err)
	}
	tk.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := tk.Parse(s); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := NewTokens("secret", time.Hour).Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
