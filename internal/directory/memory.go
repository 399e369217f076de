// Package directory provides reference implementations of the player and
// game directories the proximity engine consumes: an in-memory store for
// tests and simulation, and a SQLite-backed store for deployments that
// keep current player snapshots in a local database.
package directory

import (
	"fmt"
	"sync"

	"github.com/questline-games/manhunt/internal/proximity"
)

// Memory is a mutex-guarded in-memory directory. Reads return copies so
// callers can never mutate the stored snapshot through a shared pointer.
type Memory struct {
	mu      sync.RWMutex
	players map[string]*proximity.Player
	games   map[string]*proximity.Game
}

var (
	_ proximity.PlayerDirectory = (*Memory)(nil)
	_ proximity.GameDirectory   = (*Memory)(nil)
)

// NewMemory returns an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		players: make(map[string]*proximity.Player),
		games:   make(map[string]*proximity.Game),
	}
}

func copyPlayer(p *proximity.Player) *proximity.Player {
	c := *p
	if p.Latitude != nil {
		v := *p.Latitude
		c.Latitude = &v
	}
	if p.Longitude != nil {
		v := *p.Longitude
		c.Longitude = &v
	}
	return &c
}

// PutPlayer inserts or replaces a player snapshot.
func (m *Memory) PutPlayer(p *proximity.Player) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("player id: %w", proximity.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.ID] = copyPlayer(p)
	return nil
}

// PutGame inserts or replaces a game snapshot.
func (m *Memory) PutGame(g *proximity.Game) error {
	if g == nil || g.ID == "" {
		return fmt.Errorf("game id: %w", proximity.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *g
	m.games[g.ID] = &copied
	return nil
}

// UpdateLocation sets a player's reported position and timestamp.
func (m *Memory) UpdateLocation(id string, lat, lon float64, timestamp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, proximity.ErrPlayerNotFound)
	}
	p.Latitude = &lat
	p.Longitude = &lon
	p.LocationTimestamp = timestamp
	return nil
}

// SetStatus changes a player's status.
func (m *Memory) SetStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, proximity.ErrPlayerNotFound)
	}
	p.Status = status
	return nil
}

func (m *Memory) GetPlayer(id string) (*proximity.Player, error) {
	if id == "" {
		return nil, fmt.Errorf("player id: %w", proximity.ErrInvalidArgument)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", id, proximity.ErrPlayerNotFound)
	}
	return copyPlayer(p), nil
}

func (m *Memory) GetHuntersTargeting(targetID, gameID string) ([]*proximity.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*proximity.Player
	for _, p := range m.players {
		if p.TargetID == targetID && p.GameID == gameID {
			out = append(out, copyPlayer(p))
		}
	}
	return out, nil
}

func (m *Memory) ListByGame(gameID string) ([]*proximity.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*proximity.Player
	for _, p := range m.players {
		if p.GameID == gameID {
			out = append(out, copyPlayer(p))
		}
	}
	return out, nil
}

func (m *Memory) GetGame(id string) (*proximity.Game, error) {
	if id == "" {
		return nil, fmt.Errorf("game id: %w", proximity.ErrInvalidArgument)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, proximity.ErrGameNotFound)
	}
	copied := *g
	return &copied, nil
}
