package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/easyevents/internal/ir"
)

// BeginSession records the start of a recording session.
// Uses ON CONFLICT(id) DO NOTHING, so re-opening a session is harmless.
func (s *Store) BeginSession(ctx context.Context, sess ir.Session) error {
	if sess.ID == "" {
		return errors.New("begin session: empty session id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, rules_hash, started_seq)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.RulesHash,
		sess.StartedSeq,
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}

	return nil
}

// WriteFiring appends a firing to the log and reports whether a new row was
// inserted. A firing whose Hash is already present is ignored.
//
// Note: The session referenced by f.Session must exist (foreign key constraint).
func (s *Store) WriteFiring(ctx context.Context, f ir.Firing) (inserted bool, err error) {
	if f.Hash == "" {
		return false, errors.New("write firing: empty hash")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO firings (session_id, seq, event, args, hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		f.Session,
		f.Seq,
		f.Event,
		f.Args,
		f.Hash,
	)
	if err != nil {
		return false, fmt.Errorf("write firing: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write firing: rows affected: %w", err)
	}

	return n > 0, nil
}
