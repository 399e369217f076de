package directory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questline-games/manhunt/internal/proximity"
)

// store is the common surface of Memory and SQLite exercised by the shared
// test body.
type store interface {
	proximity.PlayerDirectory
	proximity.GameDirectory
	PutPlayer(*proximity.Player) error
	PutGame(*proximity.Game) error
	UpdateLocation(id string, lat, lon float64, timestamp string) error
}

// sqliteStore adapts SQLite's upsert names to the shared surface.
type sqliteStore struct {
	*SQLite
}

func (s sqliteStore) PutPlayer(p *proximity.Player) error { return s.UpsertPlayer(p) }
func (s sqliteStore) PutGame(g *proximity.Game) error     { return s.UpsertGame(g) }

func f64(v float64) *float64 { return &v }

func newPlayer(gameID, targetID string) *proximity.Player {
	return &proximity.Player{
		ID:                uuid.NewString(),
		Name:              "Hunter " + uuid.NewString()[:8],
		GameID:            gameID,
		Status:            proximity.StatusActive,
		TargetID:          targetID,
		Latitude:          f64(40.7128),
		Longitude:         f64(-74.0060),
		LocationTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func runStoreTests(t *testing.T, s store) {
	gameID := uuid.NewString()
	require.NoError(t, s.PutGame(&proximity.Game{ID: gameID, Name: "Test Game", Status: "ACTIVE"}))

	g, err := s.GetGame(gameID)
	require.NoError(t, err)
	assert.Equal(t, "Test Game", g.Name)

	_, err = s.GetGame(uuid.NewString())
	assert.ErrorIs(t, err, proximity.ErrGameNotFound)

	target := newPlayer(gameID, "")
	require.NoError(t, s.PutPlayer(target))

	hunter1 := newPlayer(gameID, target.ID)
	hunter2 := newPlayer(gameID, target.ID)
	bystander := newPlayer(gameID, "")
	otherGame := newPlayer(uuid.NewString(), target.ID)
	for _, p := range []*proximity.Player{hunter1, hunter2, bystander, otherGame} {
		require.NoError(t, s.PutPlayer(p))
	}

	got, err := s.GetPlayer(target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.Name, got.Name)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 40.7128, *got.Latitude, 1e-9)

	_, err = s.GetPlayer(uuid.NewString())
	assert.ErrorIs(t, err, proximity.ErrPlayerNotFound)
	_, err = s.GetPlayer("")
	assert.ErrorIs(t, err, proximity.ErrInvalidArgument)

	hunters, err := s.GetHuntersTargeting(target.ID, gameID)
	require.NoError(t, err)
	require.Len(t, hunters, 2, "hunter in another game must not appear")
	ids := map[string]bool{hunters[0].ID: true, hunters[1].ID: true}
	assert.True(t, ids[hunter1.ID] && ids[hunter2.ID])

	inGame, err := s.ListByGame(gameID)
	require.NoError(t, err)
	assert.Len(t, inGame, 4)

	// Update and re-read a location.
	ts := time.Now().UTC().Add(time.Minute).Format(time.RFC3339)
	require.NoError(t, s.UpdateLocation(target.ID, 41.0, -75.0, ts))
	got, err = s.GetPlayer(target.ID)
	require.NoError(t, err)
	assert.InDelta(t, 41.0, *got.Latitude, 1e-9)
	assert.Equal(t, ts, got.LocationTimestamp)

	assert.ErrorIs(t, s.UpdateLocation(uuid.NewString(), 0, 0, ts), proximity.ErrPlayerNotFound)

	// Upsert replaces the snapshot in place.
	target.Status = proximity.StatusEliminated
	require.NoError(t, s.PutPlayer(target))
	got, err = s.GetPlayer(target.ID)
	require.NoError(t, err)
	assert.Equal(t, proximity.StatusEliminated, got.Status)
}

func TestMemoryDirectory(t *testing.T) {
	runStoreTests(t, NewMemory())
}

func TestMemoryReadsReturnCopies(t *testing.T) {
	m := NewMemory()
	p := newPlayer("g1", "")
	require.NoError(t, m.PutPlayer(p))

	got, err := m.GetPlayer(p.ID)
	require.NoError(t, err)
	*got.Latitude = 99.0
	got.Status = proximity.StatusEliminated

	again, err := m.GetPlayer(p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 40.7128, *again.Latitude, 1e-9, "caller mutation must not leak into the store")
	assert.Equal(t, proximity.StatusActive, again.Status)
}

func TestSQLiteDirectory(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "manhunt.db"))
	require.NoError(t, err)
	defer s.Close()

	runStoreTests(t, sqliteStore{s})
}

func TestSQLiteNullLocation(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "manhunt.db"))
	require.NoError(t, err)
	defer s.Close()

	p := &proximity.Player{
		ID:     uuid.NewString(),
		Name:   "No Fix",
		GameID: uuid.NewString(),
		Status: proximity.StatusActive,
	}
	require.NoError(t, s.UpsertPlayer(p))

	got, err := s.GetPlayer(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Latitude)
	assert.Nil(t, got.Longitude)
	assert.Empty(t, got.LocationTimestamp)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manhunt.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	p := newPlayer("g1", "")
	require.NoError(t, s.UpsertPlayer(p))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetPlayer(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}
