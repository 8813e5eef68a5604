package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/easyevents/internal/directory"
	"github.com/roach88/easyevents/internal/event"
	"github.com/roach88/easyevents/internal/ir"
	"github.com/roach88/easyevents/internal/testutil"
)

func TestRecorder_RecordsCanonicalArgs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "session-1", 0)

	rec := NewRecorder(ctx, s, "session-1", testutil.NewDeterministicClock())
	mahi := &directory.Player{UserID: 5, Name: "Mahi"}

	require.NoError(t, rec.Record("kill", ir.Args{
		"weapon": "awp",
		"killer": mahi,
		"victim": nil,
		"entity": mahi,
	}))
	require.NoError(t, rec.Record("death", ir.Args{"entity": mahi}))

	got, err := s.ReadFirings(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "kill", got[0].Event)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, `{"entity":"Mahi","killer":"Mahi","victim":null,"weapon":"awp"}`, got[0].Args)

	assert.Equal(t, "death", got[1].Event)
	assert.Equal(t, int64(2), got[1].Seq)

	wantHash, err := ir.FiringID("session-1", 1, "kill", []byte(got[0].Args))
	require.NoError(t, err)
	assert.Equal(t, wantHash, got[0].Hash)

	assert.Equal(t, int64(2), rec.Written())
	assert.Equal(t, "session-1", rec.Session())
}

func TestRecorder_IsNamedListener(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "session-1", 0)

	rec := NewRecorder(ctx, s, "session-1", testutil.NewDeterministicClock())

	kill := event.New("kill")
	kill.AppendNamedListener(rec.Record)
	require.NoError(t, kill.Notify(ir.Args{"weapon": "knife"}, ir.Args{"entity": "Zed"}))

	got, err := s.ReadFirings(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `{"entity":"Zed","weapon":"knife"}`, got[0].Args)
}

func TestRecorder_UnsupportedValue(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "session-1", 0)
	clock := testutil.NewDeterministicClock()

	rec := NewRecorder(context.Background(), s, "session-1", clock)
	err := rec.Record("kill", ir.Args{"bad": make(chan int)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record kill")
	assert.Equal(t, int64(0), clock.Current(), "no seq consumed on marshal failure")
}

func TestRecorder_MissingSession(t *testing.T) {
	s := createTestStore(t)

	rec := NewRecorder(context.Background(), s, "never-begun", testutil.NewDeterministicClock())
	require.Error(t, rec.Record("kill", ir.Args{}))
	assert.Equal(t, int64(0), rec.Written())
}
