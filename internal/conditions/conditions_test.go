package conditions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/easyevents/internal/ir"
)

func deathEvent(vars ir.Args) ir.RawEvent {
	return ir.RawEvent{Name: "player_death", Variables: vars}
}

func TestIsSelfInflicted(t *testing.T) {
	tests := []struct {
		name string
		vars ir.Args
		want bool
	}{
		{"same player", ir.Args{"attacker": 5, "userid": 5}, true},
		{"other player", ir.Args{"attacker": 5, "userid": 9}, false},
		{"world damage", ir.Args{"attacker": 0, "userid": 9}, true},
		{"attacker missing", ir.Args{"userid": 9}, true},
		{"attacker nil", ir.Args{"attacker": nil, "userid": 9}, true},
		{"json floats", ir.Args{"attacker": float64(5), "userid": float64(5)}, true},
		{"mixed encodings", ir.Args{"attacker": "5", "userid": int64(5)}, true},
		{"json number", ir.Args{"attacker": json.Number("7"), "userid": 8}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := deathEvent(tt.vars)
			assert.Equal(t, tt.want, IsSelfInflicted(ev))
			assert.Equal(t, !tt.want, IsNotSelfInflicted(ev))
		})
	}
}

func TestRegistry_Defaults(t *testing.T) {
	reg := Defaults()
	assert.Equal(t, []string{"not_self_inflicted", "self_inflicted"}, reg.Names())
}

func TestRegistry_LookupNormalizesNames(t *testing.T) {
	reg := Defaults()

	for _, name := range []string{"not_self_inflicted", "NotSelfInflicted", "notSelfInflicted", "not-self-inflicted", " not_self_inflicted "} {
		t.Run(name, func(t *testing.T) {
			p, key, ok := reg.Lookup(name)
			require.True(t, ok)
			assert.Equal(t, NotSelfInflicted, key)
			assert.True(t, p(deathEvent(ir.Args{"attacker": 5, "userid": 9})))
		})
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	_, key, ok := Defaults().Lookup("headshot")
	assert.False(t, ok)
	assert.Equal(t, Name("headshot"), key)
}

func TestRegistry_LookupNilPredicate(t *testing.T) {
	reg := Registry{"broken": nil}
	_, _, ok := reg.Lookup("broken")
	assert.False(t, ok)
}

func TestRegistry_LookupRegisteredKeysAsWritten(t *testing.T) {
	always := func(ir.RawEvent) bool { return true }

	tests := []struct {
		registered Name
		written    string
	}{
		{"headshot2", "headshot2"},
		{"isHeadshot", "isHeadshot"},
		{"isHeadshot", "is_headshot"},
		{"round_mvp_1", "round_mvp_1"},
		{"wallbang", "Wallbang"},
	}

	for _, tt := range tests {
		t.Run(tt.written, func(t *testing.T) {
			reg := Registry{tt.registered: always}
			p, key, ok := reg.Lookup(tt.written)
			require.True(t, ok)
			assert.Equal(t, tt.registered, key)
			assert.NotNil(t, p)
		})
	}
}

func TestRegistry_LookupPrefersExactKey(t *testing.T) {
	exact := func(ir.RawEvent) bool { return true }
	snake := func(ir.RawEvent) bool { return false }
	reg := Registry{"isHeadshot": exact, "is_headshot": snake}

	p, key, ok := reg.Lookup("isHeadshot")
	require.True(t, ok)
	assert.Equal(t, Name("isHeadshot"), key)
	assert.True(t, p(ir.RawEvent{}))

	p, key, ok = reg.Lookup("is_headshot")
	require.True(t, ok)
	assert.Equal(t, Name("is_headshot"), key)
	assert.False(t, p(ir.RawEvent{}))
}
