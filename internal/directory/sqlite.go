package directory

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/questline-games/manhunt/internal/proximity"
)

// SQLite is a directory backed by a local SQLite database. It stores only
// the current snapshot per player and game; location history stays in
// memory with the smoother.
type SQLite struct {
	db *sql.DB
}

var (
	_ proximity.PlayerDirectory = (*SQLite)(nil)
	_ proximity.GameDirectory   = (*SQLite)(nil)
)

// OpenSQLite opens (or creates) the database at path and ensures the
// schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT,
			game_id TEXT,
			status TEXT,
			target_id TEXT,
			latitude DOUBLE,
			longitude DOUBLE,
			location_timestamp TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_players_game ON players(game_id);
		CREATE INDEX IF NOT EXISTS idx_players_target ON players(target_id, game_id);
		CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			name TEXT,
			status TEXT
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// UpsertPlayer inserts or replaces a player snapshot.
func (s *SQLite) UpsertPlayer(p *proximity.Player) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("player id: %w", proximity.ErrInvalidArgument)
	}

	var lat, lon sql.NullFloat64
	if p.Latitude != nil {
		lat = sql.NullFloat64{Float64: *p.Latitude, Valid: true}
	}
	if p.Longitude != nil {
		lon = sql.NullFloat64{Float64: *p.Longitude, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO players (id, name, game_id, status, target_id, latitude, longitude, location_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			game_id = excluded.game_id,
			status = excluded.status,
			target_id = excluded.target_id,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			location_timestamp = excluded.location_timestamp`,
		p.ID, p.Name, p.GameID, p.Status, p.TargetID, lat, lon, p.LocationTimestamp)
	return err
}

// UpsertGame inserts or replaces a game snapshot.
func (s *SQLite) UpsertGame(g *proximity.Game) error {
	if g == nil || g.ID == "" {
		return fmt.Errorf("game id: %w", proximity.ErrInvalidArgument)
	}
	_, err := s.db.Exec(`
		INSERT INTO games (id, name, status) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, status = excluded.status`,
		g.ID, g.Name, g.Status)
	return err
}

// UpdateLocation sets a player's reported position and timestamp.
func (s *SQLite) UpdateLocation(id string, lat, lon float64, timestamp string) error {
	res, err := s.db.Exec(`
		UPDATE players SET latitude = ?, longitude = ?, location_timestamp = ? WHERE id = ?`,
		lat, lon, timestamp, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("player %s: %w", id, proximity.ErrPlayerNotFound)
	}
	return nil
}

const playerColumns = "id, name, game_id, status, target_id, latitude, longitude, location_timestamp"

func scanPlayer(row interface{ Scan(...any) error }) (*proximity.Player, error) {
	var p proximity.Player
	var lat, lon sql.NullFloat64
	var ts sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.GameID, &p.Status, &p.TargetID, &lat, &lon, &ts); err != nil {
		return nil, err
	}
	if lat.Valid {
		v := lat.Float64
		p.Latitude = &v
	}
	if lon.Valid {
		v := lon.Float64
		p.Longitude = &v
	}
	if ts.Valid {
		p.LocationTimestamp = ts.String
	}
	return &p, nil
}

func (s *SQLite) GetPlayer(id string) (*proximity.Player, error) {
	if id == "" {
		return nil, fmt.Errorf("player id: %w", proximity.ErrInvalidArgument)
	}
	row := s.db.QueryRow("SELECT "+playerColumns+" FROM players WHERE id = ?", id)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", id, proximity.ErrPlayerNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLite) queryPlayers(query string, args ...any) ([]*proximity.Player, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*proximity.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) GetHuntersTargeting(targetID, gameID string) ([]*proximity.Player, error) {
	return s.queryPlayers(
		"SELECT "+playerColumns+" FROM players WHERE target_id = ? AND game_id = ?",
		targetID, gameID)
}

func (s *SQLite) ListByGame(gameID string) ([]*proximity.Player, error) {
	return s.queryPlayers("SELECT "+playerColumns+" FROM players WHERE game_id = ?", gameID)
}

func (s *SQLite) GetGame(id string) (*proximity.Game, error) {
	if id == "" {
		return nil, fmt.Errorf("game id: %w", proximity.ErrInvalidArgument)
	}
	var g proximity.Game
	err := s.db.QueryRow("SELECT id, name, status FROM games WHERE id = ?", id).
		Scan(&g.ID, &g.Name, &g.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", id, proximity.ErrGameNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
