package testutil

// FixedSessionGenerator returns the same recording session token every time.
//
// Harness runs use it so golden traces and recorded firing hashes do not
// depend on the UUIDv7 wall-clock component.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	token string
}

// NewFixedSessionGenerator creates a fixed session token generator.
// If token is empty, Generate() returns "test-session-default".
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = "test-session-default"
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed session token.
//
// Implements store.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}
