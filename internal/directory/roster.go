// Package directory resolves opaque player identifiers into player entities.
package directory

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/easyevents/internal/ir"
)

var (
	// ErrNotFound is returned when no player has the identifier.
	ErrNotFound = errors.New("player not found")

	// ErrInvalidIdentifier is returned when the identifier is not numeric.
	ErrInvalidIdentifier = errors.New("invalid player identifier")
)

// Player is the entity raw user IDs resolve to.
type Player struct {
	UserID int64  `yaml:"userid" json:"userid"`
	Name   string `yaml:"name" json:"name"`
	Team   string `yaml:"team,omitempty" json:"team,omitempty"`
}

// String returns the player's name. Recorded arguments use this form.
func (p *Player) String() string {
	return p.Name
}

// Roster is an in-memory player directory keyed by user ID.
type Roster struct {
	players map[int64]*Player
}

// rosterFile is the on-disk roster layout.
type rosterFile struct {
	Players []Player `yaml:"players"`
}

// NewRoster creates a roster holding the given players.
// A later player with the same user ID replaces an earlier one.
func NewRoster(players ...Player) *Roster {
	r := &Roster{players: make(map[int64]*Player, len(players))}
	for _, p := range players {
		r.Add(p)
	}
	return r
}

// LoadRoster reads a YAML roster file:
//
//	players:
//	  - {userid: 5, name: Mahi, team: ct}
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}

	return NewRoster(file.Players...), nil
}

// Add registers or replaces a player.
func (r *Roster) Add(p Player) {
	player := p
	r.players[p.UserID] = &player
}

// Remove drops a player, e.g. on disconnect.
func (r *Roster) Remove(userID int64) {
	delete(r.players, userID)
}

// Len returns the number of players.
func (r *Roster) Len() int {
	return len(r.players)
}

// Players returns all players ordered by user ID.
func (r *Roster) Players() []*Player {
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Resolve maps an identifier to its *Player.
//
// Integers, integral floats and decimal strings are accepted. Any other
// value fails with ErrInvalidIdentifier; an unknown ID fails with
// ErrNotFound.
func (r *Roster) Resolve(id any) (any, error) {
	userID, ok := ir.AsInt64(id)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T)", ErrInvalidIdentifier, id, id)
	}
	p, ok := r.players[userID]
	if !ok {
		return nil, fmt.Errorf("%w: userid %d", ErrNotFound, userID)
	}
	return p, nil
}
