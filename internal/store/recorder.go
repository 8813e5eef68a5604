package store

import (
	"context"
	"fmt"

	"github.com/roach88/easyevents/internal/ir"
)

// Sequencer hands out increasing sequence numbers (engine.Clock satisfies it).
type Sequencer interface {
	Next() int64
}

// Recorder writes derived event notifications to the firing log.
//
// Record has the shape of an event.NamedListener, so a recorder is attached
// with registry.OnNamed(rec.Record, registry.Events()...).
//
// Not safe for concurrent use; it runs on the dispatch goroutine like any
// other listener.
type Recorder struct {
	ctx     context.Context // listeners have no context parameter
	store   *Store
	session string
	clock   Sequencer
	written int64
}

// NewRecorder creates a recorder for an existing session.
func NewRecorder(ctx context.Context, s *Store, session string, clock Sequencer) *Recorder {
	return &Recorder{
		ctx:     ctx,
		store:   s,
		session: session,
		clock:   clock,
	}
}

// Session returns the session token firings are written under.
func (r *Recorder) Session() string {
	return r.session
}

// Written returns the number of firings inserted so far.
func (r *Recorder) Written() int64 {
	return r.written
}

// Record canonicalizes args and appends a firing for the named event.
// Entities are stored by their fmt.Stringer form.
func (r *Recorder) Record(name string, args ir.Args) error {
	argsJSON, err := ir.MarshalArgs(args)
	if err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}

	seq := r.clock.Next()
	hash, err := ir.FiringID(r.session, seq, name, argsJSON)
	if err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}

	inserted, err := r.store.WriteFiring(r.ctx, ir.Firing{
		Session: r.session,
		Seq:     seq,
		Event:   name,
		Args:    string(argsJSON),
		Hash:    hash,
	})
	if err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}
	if inserted {
		r.written++
	}

	return nil
}
