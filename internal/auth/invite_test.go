package auth

import (
	"errors"
	"testing"
	"time"
)

func TestInviteManager(t *testing.T) {
	now := time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)
	m := NewInviteManager("test-secret", 24*time.Hour)
	m.now = func() time.Time { return now }

	t.Run("round trip", func(t *testing.T) {
		token, err := m.Issue("G1", nil)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		groupID, err := m.Verify(token)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if groupID != "G1" {
			t.Errorf("expected G1, got %s", groupID)
		}
	})

	t.Run("tokens are unique", func(t *testing.T) {
		a, _ := m.Issue("G1", nil)
		b, _ := m.Issue("G1", nil)
		if a == b {
			t.Error("expected distinct tokens for the same group")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewInviteManager("other-secret", time.Hour)
		other.now = m.now
		token, err := other.Issue("G1", nil)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expires with group", func(t *testing.T) {
		groupExpiry := now.Add(time.Hour)
		token, err := m.Issue("G1", &groupExpiry)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}

		later := *m
		later.now = func() time.Time { return now.Add(2 * time.Hour) }
		if _, err := later.Verify(token); !errors.Is(err, ErrExpiredToken) {
			t.Errorf("expected ErrExpiredToken, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := m.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
		if _, err := m.Verify(""); !errors.Is(err, ErrMissingToken) {
			t.Errorf("expected ErrMissingToken, got %v", err)
		}
	})
}
