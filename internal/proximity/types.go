// Package proximity decides elimination eligibility and powers
// proximity-based alerts for a location elimination game. It owns the
// pairwise result cache, the alert cooldown ledger, and the spatial grid
// used for whole-game scans; player records, game records, map tuning, and
// safe zones are reached through injected collaborator interfaces.
package proximity

import (
	"github.com/questline-games/manhunt/internal/geo"
)

// Player statuses relevant to elimination decisions. A killer must be
// active; a victim may also be pending death (a grace window in which a
// second hunter can still claim the elimination).
const (
	StatusActive       = "ACTIVE"
	StatusPendingDeath = "PENDING_DEATH"
	StatusEliminated   = "ELIMINATED"
)

// Alert kinds, named from the recipient's point of view.
const (
	AlertKindTarget = "target"
	AlertKindHunter = "hunter"
)

// NotificationTypePremium unlocks subject names and exact distances in
// batch notifications; any other value gets the generic wording.
const NotificationTypePremium = "premium"

// Player is the directory snapshot the engine decides on. Latitude and
// Longitude are pointers so a player who has never reported a location is
// distinguishable from one at (0, 0). LocationTimestamp is RFC3339; a
// value that fails to parse is treated as stale.
type Player struct {
	ID                string
	Name              string
	GameID            string
	Status            string
	TargetID          string
	Latitude          *float64
	Longitude         *float64
	LocationTimestamp string
}

// Game is the directory snapshot for a game. The engine only needs
// existence plus an identifier for cache and notification scoping.
type Game struct {
	ID     string
	Name   string
	Status string
}

// MapConfig carries per-map distance tuning. WeaponDistanceOverrides keys
// are matched case-insensitively against the weapon type.
type MapConfig struct {
	DefaultEliminationDistanceMeters float64
	WeaponDistanceOverrides          map[string]float64
	ProximityAwarenessDistanceMeters float64
}

// Notification is the payload handed to the NotificationSink. Delivery is
// fire and forget from the engine's perspective.
type Notification struct {
	GameID      string
	RecipientID string
	Kind        string
	Title       string
	Body        string
}

// PlayerDirectory provides player snapshots. Implementations return
// ErrPlayerNotFound (possibly wrapped) for unknown ids.
type PlayerDirectory interface {
	GetPlayer(id string) (*Player, error)

	// GetHuntersTargeting returns the players in gameID whose current
	// target is targetID.
	GetHuntersTargeting(targetID, gameID string) ([]*Player, error)

	// ListByGame returns every player registered in a game regardless of
	// status.
	ListByGame(gameID string) ([]*Player, error)
}

// GameDirectory provides game snapshots. Implementations return
// ErrGameNotFound (possibly wrapped) for unknown ids.
type GameDirectory interface {
	GetGame(id string) (*Game, error)
}

// MapConfigResolver resolves the effective distance tuning for a game's
// map.
type MapConfigResolver interface {
	EffectiveConfig(gameID string) (MapConfig, error)
}

// SafeZoneChecker reports whether a coordinate is inside an active safe
// zone. Zone geometry lives entirely behind this interface.
type SafeZoneChecker interface {
	IsLocationSafe(gameID, entityID string, coord geo.Coordinate, nowMillis int64) bool
}

// SafeZoneFunc adapts a function to SafeZoneChecker.
type SafeZoneFunc func(gameID, entityID string, coord geo.Coordinate, nowMillis int64) bool

func (f SafeZoneFunc) IsLocationSafe(gameID, entityID string, coord geo.Coordinate, nowMillis int64) bool {
	return f(gameID, entityID, coord, nowMillis)
}

// NotificationSink receives alert notifications.
type NotificationSink interface {
	Send(n Notification) error
}

// NotifierFunc adapts a function to NotificationSink.
type NotifierFunc func(n Notification) error

func (f NotifierFunc) Send(n Notification) error { return f(n) }

// StaticMapConfig is a MapConfigResolver returning the same config for
// every game. Useful in tests and the simulator.
type StaticMapConfig MapConfig

func (s StaticMapConfig) EffectiveConfig(string) (MapConfig, error) {
	return MapConfig(s), nil
}
