package bot

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/attendbot/internal/command"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSessions(5 * time.Minute)

	sess := s.Open("U1")
	got, ok := s.Get(sess.ID)
	if !ok || got.SenderHandle != "U1" {
		t.Fatalf("Get after Open = %+v, %v", got, ok)
	}
	if got.Scope != 0 {
		t.Errorf("new session already has a scope: %v", got.Scope)
	}

	s.SetScope(sess.ID, command.Weekly)
	got, _ = s.Get(sess.ID)
	if got.Scope != command.Weekly {
		t.Errorf("scope = %v, want Weekly", got.Scope)
	}

	s.Close(sess.ID)
	if _, ok := s.Get(sess.ID); ok {
		t.Error("closed session still retrievable")
	}
}

func TestSessionExpiry(t *testing.T) {
	s := NewSessions(time.Minute)
	clock := time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	sess := s.Open("U1")
	clock = clock.Add(30 * time.Second)
	if _, ok := s.Get(sess.ID); !ok {
		t.Fatal("session expired early")
	}

	clock = clock.Add(2 * time.Minute)
	if _, ok := s.Get(sess.ID); ok {
		t.Error("expired session still retrievable")
	}
	if s.Len() != 0 {
		t.Errorf("expired session not dropped, Len = %d", s.Len())
	}
}

func TestSetScopeExtendsLifetime(t *testing.T) {
	s := NewSessions(time.Minute)
	clock := time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	sess := s.Open("U1")
	clock = clock.Add(50 * time.Second)
	s.SetScope(sess.ID, command.Daily)

	clock = clock.Add(50 * time.Second)
	if _, ok := s.Get(sess.ID); !ok {
		t.Error("session expired despite the scope step extending it")
	}
}

func TestGetUnknownSession(t *testing.T) {
	s := NewSessions(time.Minute)
	if _, ok := s.Get(uuid.New()); ok {
		t.Error("unknown id reported as live session")
	}
}
