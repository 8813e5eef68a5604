package store

import (
	"sync"

	"github.com/google/uuid"
)

// SessionGenerator produces recording session tokens.
type SessionGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default for `run --db` without --session. The
// tokens are time-ordered, so `trace --sessions` lists runs roughly in the
// order they started.
type UUIDv7Generator struct{}

func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a fixed list of session tokens, one per run.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate panics once the list is used up.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
