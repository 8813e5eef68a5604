package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	var gen SessionGenerator = UUIDv7Generator{}

	a := gen.Generate()
	b := gen.Generate()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	var gen SessionGenerator = NewFixedGenerator("session-1", "session-2")

	assert.Equal(t, "session-1", gen.Generate())
	assert.Equal(t, "session-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
