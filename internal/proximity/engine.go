package proximity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/questline-games/manhunt/internal/config"
	"github.com/questline-games/manhunt/internal/geo"
	"github.com/questline-games/manhunt/internal/monitoring"
	"github.com/questline-games/manhunt/internal/smoothing"
	"github.com/questline-games/manhunt/internal/timeutil"
)

// defaultAwarenessDistanceMeters is the proximity-alert radius used when a
// game's map config does not set one.
const defaultAwarenessDistanceMeters = 50.0

// Options configures an Engine. Players and Games are required; every
// other collaborator is optional and degrades gracefully when absent
// (no safe zones means no zone immunity, no notifier means alerts are
// computed but dropped).
type Options struct {
	Players   PlayerDirectory
	Games     GameDirectory
	MapConfig MapConfigResolver
	SafeZones SafeZoneChecker
	Notifier  NotificationSink

	// Tuning defaults to all-default values when nil.
	Tuning *config.TuningConfig

	// Clock defaults to the real clock.
	Clock timeutil.Clock

	// Smoother defaults to a new smoother built from Tuning.
	Smoother *smoothing.Smoother
}

// Engine answers elimination eligibility, emits proximity alerts, and
// performs whole-game batch detection. Safe for concurrent use.
type Engine struct {
	players  PlayerDirectory
	games    GameDirectory
	mapCfg   MapConfigResolver
	safe     SafeZoneChecker
	notifier NotificationSink
	smoother *smoothing.Smoother
	clock    timeutil.Clock

	algorithm          smoothing.Algorithm
	staleness          time.Duration
	gpsBuffer          float64
	defaultThreshold   float64
	largeGameThreshold int
	gridMultiplier     float64
	sweepInterval      time.Duration

	results *resultCache
	alerts  *alertThrottle
}

// NewEngine builds an Engine from Options.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Players == nil {
		return nil, fmt.Errorf("player directory is required")
	}
	if opts.Games == nil {
		return nil, fmt.Errorf("game directory is required")
	}

	tuning := opts.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	smoother := opts.Smoother
	if smoother == nil {
		smoother = smoothing.New(tuning.SmoothingConfig(), clock)
	}

	return &Engine{
		players:            opts.Players,
		games:              opts.Games,
		mapCfg:             opts.MapConfig,
		safe:               opts.SafeZones,
		notifier:           opts.Notifier,
		smoother:           smoother,
		clock:              clock,
		algorithm:          tuning.GetSmoothingAlgorithm(),
		staleness:          tuning.GetLocationStaleness(),
		gpsBuffer:          tuning.GetGPSAccuracyBufferMeters(),
		defaultThreshold:   tuning.GetEliminationThresholdMeters(),
		largeGameThreshold: tuning.GetLargeGameThreshold(),
		gridMultiplier:     tuning.GetGridCellMultiplier(),
		sweepInterval:      tuning.GetSweepInterval(),
		results:            newResultCache(tuning.GetResultTTL()),
		alerts:             newAlertThrottle(tuning.GetAlertCooldown()),
	}, nil
}

// Smoother exposes the engine's location smoother so callers can feed raw
// samples as players report positions.
func (e *Engine) Smoother() *smoothing.Smoother { return e.smoother }

// CanEliminate decides whether killer may eliminate victim right now. The
// gates run in a fixed order and every failure rejects; only an unknown
// player or game id surfaces as an error, so the caller can distinguish
// "cannot decide" from a definitive false. The computed distance result is
// cached under the canonical pair key whichever way the decision goes.
func (e *Engine) CanEliminate(gameID, killerID, victimID, weaponType string) (bool, error) {
	now := e.clock.Now()
	nowMillis := now.UnixMilli()

	if gameID == "" || killerID == "" || victimID == "" {
		return e.reject(killerID, victimID, reasonMissingID), nil
	}
	if killerID == victimID {
		return e.reject(killerID, victimID, reasonSelfTarget), nil
	}

	killer, err := e.players.GetPlayer(killerID)
	if err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return false, fmt.Errorf("killer %s: %w", killerID, err)
		}
		monitoring.Logf("proximity: killer lookup %s: %v", killerID, err)
		return e.reject(killerID, victimID, reasonDirectoryFailure), nil
	}
	victim, err := e.players.GetPlayer(victimID)
	if err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return false, fmt.Errorf("victim %s: %w", victimID, err)
		}
		monitoring.Logf("proximity: victim lookup %s: %v", victimID, err)
		return e.reject(killerID, victimID, reasonDirectoryFailure), nil
	}

	if killer.Status != StatusActive {
		return e.reject(killerID, victimID, reasonBadStatus), nil
	}
	if victim.Status != StatusActive && victim.Status != StatusPendingDeath {
		return e.reject(killerID, victimID, reasonBadStatus), nil
	}

	if !hasLocation(killer) || !hasLocation(victim) {
		return e.reject(killerID, victimID, reasonMissingLocation), nil
	}
	if !e.locationFresh(killer.LocationTimestamp, now) || !e.locationFresh(victim.LocationTimestamp, now) {
		return e.reject(killerID, victimID, reasonStaleLocation), nil
	}

	if _, err := e.games.GetGame(gameID); err != nil {
		if errors.Is(err, ErrGameNotFound) {
			return false, fmt.Errorf("game %s: %w", gameID, err)
		}
		monitoring.Logf("proximity: game lookup %s: %v", gameID, err)
		return e.reject(killerID, victimID, reasonDirectoryFailure), nil
	}

	smoothedKiller := e.smoother.Smoothed(killer.ID, *killer.Latitude, *killer.Longitude, e.algorithm)
	smoothedVictim := e.smoother.Smoothed(victim.ID, *victim.Latitude, *victim.Longitude, e.algorithm)

	if e.safe != nil {
		if e.safe.IsLocationSafe(gameID, killer.ID, smoothedKiller, nowMillis) ||
			e.safe.IsLocationSafe(gameID, victim.ID, smoothedVictim, nowMillis) {
			return e.reject(killerID, victimID, reasonSafeZone), nil
		}
	}

	effectiveRadius := e.eliminationDistance(gameID, weaponType) + e.gpsBuffer

	// A coordinate that escaped validation upstream must never award an
	// elimination; it decides as infinitely far away.
	distance := math.MaxFloat64
	if geo.IsValid(smoothedKiller.Latitude, smoothedKiller.Longitude) &&
		geo.IsValid(smoothedVictim.Latitude, smoothedVictim.Longitude) {
		distance = geo.Distance(smoothedKiller, smoothedVictim)
	} else {
		monitoring.Logf("proximity: %s vs %s: %s", killerID, victimID, reasonBadCoordinate)
	}

	inRange := distance <= effectiveRadius
	e.results.put(Result{
		Pair:           CanonicalPair(killerID, victimID),
		DistanceMeters: distance,
		InRange:        inRange,
		ComputedAt:     nowMillis,
	})

	if !inRange {
		return e.reject(killerID, victimID, reasonOutOfRange), nil
	}
	return true, nil
}

func (e *Engine) reject(killerID, victimID, reason string) bool {
	monitoring.Logf("proximity: rejecting %s -> %s: %s", killerID, victimID, reason)
	return false
}

func hasLocation(p *Player) bool {
	return p.Latitude != nil && p.Longitude != nil && p.LocationTimestamp != ""
}

// locationFresh reports whether an RFC3339 timestamp is within the
// staleness threshold of now. Anything that does not parse is stale.
func (e *Engine) locationFresh(ts string, now time.Time) bool {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return false
	}
	return now.Sub(t) <= e.staleness
}

// eliminationDistance resolves the range for this game and weapon:
// weapon-specific override, then the map default, then the global default.
func (e *Engine) eliminationDistance(gameID, weaponType string) float64 {
	if e.mapCfg == nil {
		return e.defaultThreshold
	}
	mc, err := e.mapCfg.EffectiveConfig(gameID)
	if err != nil {
		monitoring.Logf("proximity: map config for game %s: %v", gameID, err)
		return e.defaultThreshold
	}
	if weaponType != "" {
		for name, d := range mc.WeaponDistanceOverrides {
			if strings.EqualFold(name, weaponType) && d > 0 {
				return d
			}
		}
	}
	if mc.DefaultEliminationDistanceMeters > 0 {
		return mc.DefaultEliminationDistanceMeters
	}
	return e.defaultThreshold
}

// awarenessDistance resolves the proximity-alert radius for a game.
func (e *Engine) awarenessDistance(gameID string) float64 {
	if e.mapCfg != nil {
		if mc, err := e.mapCfg.EffectiveConfig(gameID); err == nil && mc.ProximityAwarenessDistanceMeters > 0 {
			return mc.ProximityAwarenessDistanceMeters
		}
	}
	return defaultAwarenessDistanceMeters
}

// CheckAndSendAlerts notifies playerID about their target and about any
// hunters currently assigned to them, when both sides have fresh locations
// and the smoothed distance is inside the awareness radius. Each (game,
// recipient, subject, kind) stream is rate limited by the alert cooldown.
func (e *Engine) CheckAndSendAlerts(gameID, playerID string) error {
	if gameID == "" || playerID == "" {
		return fmt.Errorf("game and player ids: %w", ErrInvalidArgument)
	}

	now := e.clock.Now()

	player, err := e.players.GetPlayer(playerID)
	if err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return fmt.Errorf("player %s: %w", playerID, err)
		}
		monitoring.Logf("proximity: alert lookup %s: %v", playerID, err)
		return nil
	}
	if !hasLocation(player) || !e.locationFresh(player.LocationTimestamp, now) {
		return nil
	}

	radius := e.awarenessDistance(gameID) + e.gpsBuffer
	origin := e.smoother.Smoothed(player.ID, *player.Latitude, *player.Longitude, e.algorithm)

	if player.TargetID != "" && player.TargetID != player.ID {
		if target, err := e.players.GetPlayer(player.TargetID); err == nil {
			e.maybeAlert(gameID, player.ID, target, origin, AlertKindTarget, radius, now)
		}
	}

	hunters, err := e.players.GetHuntersTargeting(playerID, gameID)
	if err != nil {
		monitoring.Logf("proximity: hunters lookup for %s: %v", playerID, err)
		return nil
	}
	for _, hunter := range hunters {
		if hunter.ID == player.ID {
			continue
		}
		e.maybeAlert(gameID, player.ID, hunter, origin, AlertKindHunter, radius, now)
	}
	return nil
}

// maybeAlert sends one notification about subject to recipientID when the
// subject is fresh, in range, and not on cooldown. The cooldown is only
// recorded after a successful send, so a failed delivery retries on the
// next check.
func (e *Engine) maybeAlert(gameID, recipientID string, subject *Player, origin geo.Coordinate, kind string, radius float64, now time.Time) {
	if subject == nil || !hasLocation(subject) || !e.locationFresh(subject.LocationTimestamp, now) {
		return
	}

	coord := e.smoother.Smoothed(subject.ID, *subject.Latitude, *subject.Longitude, e.algorithm)
	if geo.Distance(origin, coord) > radius {
		return
	}

	key := alertKey{GameID: gameID, RecipientID: recipientID, SubjectID: subject.ID, Kind: kind}
	nowMillis := now.UnixMilli()
	if e.alerts.onCooldown(key, nowMillis) {
		return
	}

	direction := geo.DirectionFromBearing(geo.Bearing(origin, coord))
	var title, body string
	switch kind {
	case AlertKindTarget:
		title = "Target nearby"
		body = fmt.Sprintf("Your target is close, to the %s", direction)
	default:
		title = "Hunter nearby"
		body = fmt.Sprintf("A hunter is closing in from the %s", direction)
	}

	if e.notifier != nil {
		if err := e.notifier.Send(Notification{
			GameID:      gameID,
			RecipientID: recipientID,
			Kind:        kind,
			Title:       title,
			Body:        body,
		}); err != nil {
			monitoring.Logf("proximity: notify %s about %s: %v", recipientID, subject.ID, err)
			return
		}
	}
	e.alerts.record(key, nowMillis)
}

// RecentResults returns the unexpired cached distance results involving a
// player.
func (e *Engine) RecentResults(playerID string) []Result {
	return e.results.involving(playerID, e.clock.Now().UnixMilli())
}

// ClearResults drops every cached distance result. Called on game-state
// changes that invalidate prior decisions, such as a zone advance.
func (e *Engine) ClearResults() {
	e.results.clear()
}

// SweepOnce expires idle location histories, stale distance results, and
// elapsed alert cooldowns.
func (e *Engine) SweepOnce() {
	nowMillis := e.clock.Now().UnixMilli()
	histories := e.smoother.Sweep()
	results := e.results.sweep(nowMillis)
	alerts := e.alerts.sweep(nowMillis)
	if histories+results+alerts > 0 {
		monitoring.Logf("proximity: sweep removed %d histories, %d results, %d alert records",
			histories, results, alerts)
	}
}

// RunSweeper runs SweepOnce on the configured interval until ctx is
// cancelled.
func (e *Engine) RunSweeper(ctx context.Context) {
	ticker := e.clock.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			e.SweepOnce()
		}
	}
}
