package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/easyevents/internal/ir"
)

// ReadFirings returns every firing recorded in a session.
// Results are ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if the session has no firings.
func (s *Store) ReadFirings(ctx context.Context, session string) ([]ir.Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, event, args, hash
		FROM firings
		WHERE session_id = ?
		ORDER BY seq ASC, id ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	return scanFirings(rows)
}

// ReadFiringsByEvent returns the firings of one derived event across all
// sessions, ordered by seq ASC, id ASC.
func (s *Store) ReadFiringsByEvent(ctx context.Context, event string) ([]ir.Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, event, args, hash
		FROM firings
		WHERE event = ?
		ORDER BY seq ASC, id ASC
	`, event)
	if err != nil {
		return nil, fmt.Errorf("query firings by event: %w", err)
	}
	defer rows.Close()

	return scanFirings(rows)
}

// Sessions returns all sessions with their firing counts, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]ir.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.rules_hash, s.started_seq, COUNT(f.id)
		FROM sessions s
		LEFT JOIN firings f ON f.session_id = s.id
		GROUP BY s.id, s.rules_hash, s.started_seq
		ORDER BY s.started_seq ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ir.Session{}
	for rows.Next() {
		var sess ir.Session
		if err := rows.Scan(&sess.ID, &sess.RulesHash, &sess.StartedSeq, &sess.Firings); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// LatestSession returns the most recently started session. The error wraps
// sql.ErrNoRows if the log is empty.
func (s *Store) LatestSession(ctx context.Context) (ir.Session, error) {
	var sess ir.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.rules_hash, s.started_seq,
		       (SELECT COUNT(*) FROM firings f WHERE f.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_seq DESC, s.rowid DESC
		LIMIT 1
	`).Scan(&sess.ID, &sess.RulesHash, &sess.StartedSeq, &sess.Firings)
	if err != nil {
		return ir.Session{}, fmt.Errorf("latest session: %w", err)
	}
	return sess, nil
}

func scanFirings(rows *sql.Rows) ([]ir.Firing, error) {
	firings := []ir.Firing{}
	for rows.Next() {
		var f ir.Firing
		if err := rows.Scan(&f.ID, &f.Session, &f.Seq, &f.Event, &f.Args, &f.Hash); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		firings = append(firings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}

	return firings, nil
}
