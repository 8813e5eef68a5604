package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/easyevents/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession inserts a session row and returns its id.
func createTestSession(t *testing.T, s *Store, id string, startedSeq int64) string {
	t.Helper()
	err := s.BeginSession(context.Background(), ir.Session{ID: id, RulesHash: "test-hash", StartedSeq: startedSeq})
	if err != nil {
		t.Fatalf("BeginSession() failed: %v", err)
	}
	return id
}

// createTestFiring builds a firing with a computed hash.
func createTestFiring(t *testing.T, session string, seq int64, event, args string) ir.Firing {
	t.Helper()
	hash, err := ir.FiringID(session, seq, event, []byte(args))
	if err != nil {
		t.Fatalf("FiringID() failed: %v", err)
	}
	return ir.Firing{
		Session: session,
		Seq:     seq,
		Event:   event,
		Args:    args,
		Hash:    hash,
	}
}
