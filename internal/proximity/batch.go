package proximity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/questline-games/manhunt/internal/geo"
	"github.com/questline-games/manhunt/internal/monitoring"
)

// ProcessLargeGame finds every pair of living players within the game's
// awareness radius of each other. Small games use a direct all-pairs scan;
// once the population reaches the large-game threshold the scan goes
// through a spatial grid so each player is only compared against the
// occupants of its own cell and the 8 surrounding ones. Every in-range
// pair is cached under its canonical key and reported under both player
// ids in the returned map.
func (e *Engine) ProcessLargeGame(gameID string) (map[string][]Result, error) {
	if gameID == "" {
		return nil, fmt.Errorf("game id: %w", ErrInvalidArgument)
	}
	if _, err := e.games.GetGame(gameID); err != nil {
		if errors.Is(err, ErrGameNotFound) {
			return nil, fmt.Errorf("game %s: %w", gameID, err)
		}
		return nil, fmt.Errorf("game lookup %s: %w", gameID, err)
	}

	all, err := e.players.ListByGame(gameID)
	if err != nil {
		return nil, fmt.Errorf("players for game %s: %w", gameID, err)
	}

	nowMillis := e.clock.Now().UnixMilli()
	radius := e.awarenessDistance(gameID) + e.gpsBuffer

	entries := make([]gridEntry, 0, len(all))
	for _, p := range all {
		if p.Status != StatusActive && p.Status != StatusPendingDeath {
			continue
		}
		if p.Latitude == nil || p.Longitude == nil || !geo.IsValid(*p.Latitude, *p.Longitude) {
			continue
		}
		coord := e.smoother.Smoothed(p.ID, *p.Latitude, *p.Longitude, e.algorithm)
		entries = append(entries, gridEntry{ID: p.ID, Coord: coord})
	}

	results := make(map[string][]Result)
	record := func(a, b gridEntry) {
		distance := geo.Distance(a.Coord, b.Coord)
		if distance > radius {
			return
		}
		r := Result{
			Pair:           CanonicalPair(a.ID, b.ID),
			DistanceMeters: distance,
			InRange:        true,
			ComputedAt:     nowMillis,
		}
		e.results.put(r)
		results[a.ID] = append(results[a.ID], r)
		results[b.ID] = append(results[b.ID], r)
	}

	if len(entries) < e.largeGameThreshold {
		for i := range entries {
			for j := i + 1; j < len(entries); j++ {
				record(entries[i], entries[j])
			}
		}
		return results, nil
	}

	grid := newSpatialGrid(radius, e.gridMultiplier)
	for _, en := range entries {
		grid.insert(en.ID, en.Coord)
	}
	for _, en := range entries {
		for _, candidate := range grid.neighborhood(en.Coord) {
			// Visit each pair once; the neighborhood of the other member
			// contains this entry too.
			if candidate.ID <= en.ID {
				continue
			}
			record(en, candidate)
		}
	}
	return results, nil
}

// ProcessBatchNotifications turns the output of ProcessLargeGame into
// throttled notifications. A player is only told about results that match
// their current target or one of their hunters. Premium recipients get the
// subject's name and the exact distance; everyone else gets the generic
// wording.
func (e *Engine) ProcessBatchNotifications(gameID string, results map[string][]Result, notificationType string) error {
	if gameID == "" {
		return fmt.Errorf("game id: %w", ErrInvalidArgument)
	}

	nowMillis := e.clock.Now().UnixMilli()
	premium := notificationType == NotificationTypePremium

	for playerID, list := range results {
		player, err := e.players.GetPlayer(playerID)
		if err != nil {
			monitoring.Logf("proximity: batch lookup %s: %v", playerID, err)
			continue
		}

		hunterIDs := make(map[string]bool)
		if hunters, err := e.players.GetHuntersTargeting(playerID, gameID); err == nil {
			for _, h := range hunters {
				hunterIDs[h.ID] = true
			}
		}

		for _, r := range list {
			other, ok := r.Pair.Other(playerID)
			if !ok || other == playerID {
				continue
			}

			var kind string
			switch {
			case other == player.TargetID && player.TargetID != "":
				kind = AlertKindTarget
			case hunterIDs[other]:
				kind = AlertKindHunter
			default:
				continue
			}

			key := alertKey{GameID: gameID, RecipientID: playerID, SubjectID: other, Kind: kind}
			if e.alerts.onCooldown(key, nowMillis) {
				continue
			}

			var title, body string
			if kind == AlertKindTarget {
				title = "Target nearby"
				body = "Your target is in the area"
			} else {
				title = "Hunter nearby"
				body = "A hunter is in the area"
			}
			if premium {
				name := other
				if subject, err := e.players.GetPlayer(other); err == nil && subject.Name != "" {
					name = subject.Name
				}
				body = fmt.Sprintf("%s is nearby [Distance: %.0fm]", name, r.DistanceMeters)
			}

			if e.notifier != nil {
				if err := e.notifier.Send(Notification{
					GameID:      gameID,
					RecipientID: playerID,
					Kind:        kind,
					Title:       title,
					Body:        body,
				}); err != nil {
					monitoring.Logf("proximity: batch notify %s about %s: %v", playerID, other, err)
					continue
				}
			}
			e.alerts.record(key, nowMillis)
		}
	}
	return nil
}

// HeatmapCell is one occupied cell of an activity heatmap: its grid
// indices, how many living players it holds, and the running average of
// their positions.
type HeatmapCell struct {
	CellX           int
	CellY           int
	Count           int
	CenterLatitude  float64
	CenterLongitude float64
}

// ActivityHeatmap buckets the game's living players into square cells of
// the given size and returns the occupied cells, densest first. This is
// the lightweight in-engine density view; it works on raw reported
// positions, not smoothed ones, since it aggregates rather than decides.
func (e *Engine) ActivityHeatmap(gameID string, cellSizeMeters float64) ([]HeatmapCell, error) {
	if gameID == "" {
		return nil, fmt.Errorf("game id: %w", ErrInvalidArgument)
	}
	if cellSizeMeters < 1.0 {
		cellSizeMeters = 1.0
	}

	all, err := e.players.ListByGame(gameID)
	if err != nil {
		return nil, fmt.Errorf("players for game %s: %w", gameID, err)
	}

	type bucket struct {
		count  int
		sumLat float64
		sumLon float64
	}
	buckets := make(map[[2]int]*bucket)

	for _, p := range all {
		if p.Status != StatusActive && p.Status != StatusPendingDeath {
			continue
		}
		if p.Latitude == nil || p.Longitude == nil || !geo.IsValid(*p.Latitude, *p.Longitude) {
			continue
		}
		metersPerDegreeLon := metersPerDegreeLat * math.Cos(*p.Latitude*math.Pi/180)
		key := [2]int{
			int(math.Floor(*p.Longitude * metersPerDegreeLon / cellSizeMeters)),
			int(math.Floor(*p.Latitude * metersPerDegreeLat / cellSizeMeters)),
		}
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		b.sumLat += *p.Latitude
		b.sumLon += *p.Longitude
	}

	cells := make([]HeatmapCell, 0, len(buckets))
	for key, b := range buckets {
		cells = append(cells, HeatmapCell{
			CellX:           key[0],
			CellY:           key[1],
			Count:           b.count,
			CenterLatitude:  b.sumLat / float64(b.count),
			CenterLongitude: b.sumLon / float64(b.count),
		})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Count != cells[j].Count {
			return cells[i].Count > cells[j].Count
		}
		if cells[i].CellX != cells[j].CellX {
			return cells[i].CellX < cells[j].CellX
		}
		return cells[i].CellY < cells[j].CellY
	})
	return cells, nil
}
