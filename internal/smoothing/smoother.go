// Package smoothing maintains a bounded per-entity history of reported GPS
// positions and derives jitter-reduced estimates from it. Three weighted
// averaging algorithms are supported, plus a predictive mode that
// extrapolates a short distance along the entity's current heading.
package smoothing

import (
	"sync"
	"time"

	"github.com/questline-games/manhunt/internal/geo"
	"github.com/questline-games/manhunt/internal/timeutil"
)

// Algorithm selects how history samples are combined into an estimate.
type Algorithm string

const (
	// SimpleAverage weights every history point equally.
	SimpleAverage Algorithm = "simple_average"
	// LinearWeighted decreases weight linearly with sample age.
	LinearWeighted Algorithm = "linear_weighted"
	// ExponentialDecay decreases weight exponentially with sample age.
	ExponentialDecay Algorithm = "exponential_decay"
	// Predictive extrapolates a future position from recent velocity and
	// bearing instead of averaging.
	Predictive Algorithm = "predictive"
)

// Config holds the tunable parameters of a Smoother.
type Config struct {
	HistorySize                 int           // samples kept per entity, minimum 2
	StalenessThreshold          time.Duration // age at which a sample stops contributing weight
	DecayFactor                 float64       // exponential decay rate, (0, 1]
	PredictionWindow            time.Duration // how far ahead Predicted extrapolates
	MinPointsForPrediction      int           // history size below which predictions degrade to the anchor
	VelocityThresholdMps        float64       // below this speed no extrapolation happens
	MaxPredictionDistanceMeters float64       // cap on extrapolated displacement
	SmoothedTTL                 time.Duration // smoothed-estimate cache validity
	PredictedTTL                time.Duration // prediction cache validity
	CleanupThreshold            time.Duration // idle age after which an entity's history is swept
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HistorySize:                 3,
		StalenessThreshold:          60 * time.Second,
		DecayFactor:                 0.5,
		PredictionWindow:            5 * time.Second,
		MinPointsForPrediction:      3,
		VelocityThresholdMps:        0.5,
		MaxPredictionDistanceMeters: 30.0,
		SmoothedTTL:                 2 * time.Second,
		PredictedTTL:                1 * time.Second,
		CleanupThreshold:            time.Hour,
	}
}

// Sample is a single reported position. Immutable once recorded.
type Sample struct {
	Latitude   float64
	Longitude  float64
	CapturedAt int64 // epoch millis
}

// Estimate is a cached smoothed position for one entity.
type Estimate struct {
	Coordinate geo.Coordinate
	Algorithm  Algorithm
	ComputedAt int64 // epoch millis
}

// Prediction is a cached extrapolated position with its motion context.
type Prediction struct {
	Coordinate     geo.Coordinate
	VelocityMps    float64
	BearingDegrees float64
	Confidence     float64 // always within [0, 1]
	ComputedAt     int64   // epoch millis
}

// entity carries one entity's history and caches behind its own lock, so
// activity on one entity never blocks another.
type entity struct {
	mu        sync.Mutex
	history   []Sample
	smoothed  *Estimate
	predicted *Prediction
}

// Smoother owns all per-entity location state. Safe for concurrent use.
type Smoother struct {
	cfg   Config
	clock timeutil.Clock

	mu       sync.RWMutex
	entities map[string]*entity
}

// New creates a Smoother. A nil clock falls back to the real clock; a
// history size below 2 is raised to 2 since a single point cannot be
// meaningfully smoothed.
func New(cfg Config, clock timeutil.Clock) *Smoother {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.HistorySize < 2 {
		cfg.HistorySize = 2
	}
	return &Smoother{
		cfg:      cfg,
		clock:    clock,
		entities: make(map[string]*entity),
	}
}

// entityFor returns the state for id, creating it if needed.
func (s *Smoother) entityFor(id string) *entity {
	s.mu.RLock()
	e, ok := s.entities[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entities[id]; ok {
		return e
	}
	e = &entity{history: make([]Sample, 0, s.cfg.HistorySize)}
	s.entities[id] = e
	return e
}

// RecordSample appends a raw position to the entity's history, evicting the
// oldest sample once the history is full, and invalidates cached estimates.
// An empty entityID is a no-op.
func (s *Smoother) RecordSample(entityID string, lat, lon float64) {
	if entityID == "" {
		return
	}
	e := s.entityFor(entityID)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.appendLocked(e, lat, lon, s.clock.Now().UnixMilli())
}

// appendLocked adds a sample and drops the oldest when over capacity.
// Caches are invalidated under the same lock, so a concurrent reader sees
// either the previous complete estimate or a full recomputation.
func (s *Smoother) appendLocked(e *entity, lat, lon float64, nowMillis int64) {
	e.history = append(e.history, Sample{Latitude: lat, Longitude: lon, CapturedAt: nowMillis})
	if len(e.history) > s.cfg.HistorySize {
		n := copy(e.history, e.history[1:])
		e.history = e.history[:n]
	}
	e.smoothed = nil
	e.predicted = nil
}

// Smoothed returns a jitter-reduced position for the entity, recording
// (lat, lon) as a new sample unless a fresh cached estimate for the same
// algorithm is available. With an empty history the raw input is returned
// and seeds the history. An empty entityID returns the raw input.
func (s *Smoother) Smoothed(entityID string, lat, lon float64, algo Algorithm) geo.Coordinate {
	if entityID == "" {
		return geo.Coordinate{Latitude: lat, Longitude: lon}
	}
	if algo == "" {
		algo = LinearWeighted
	}
	if algo == Predictive {
		return s.Predicted(entityID, lat, lon)
	}

	e := s.entityFor(entityID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.smoothLocked(e, lat, lon, algo, s.clock.Now().UnixMilli())
}

func (s *Smoother) smoothLocked(e *entity, lat, lon float64, algo Algorithm, nowMillis int64) geo.Coordinate {
	if e.smoothed != nil && e.smoothed.Algorithm == algo &&
		nowMillis-e.smoothed.ComputedAt <= s.cfg.SmoothedTTL.Milliseconds() {
		return e.smoothed.Coordinate
	}

	empty := len(e.history) == 0
	s.appendLocked(e, lat, lon, nowMillis)

	var coord geo.Coordinate
	if empty {
		coord = geo.Coordinate{Latitude: lat, Longitude: lon}
	} else {
		switch algo {
		case SimpleAverage:
			coord = simpleAverage(e.history)
		case ExponentialDecay:
			coord = s.exponentialDecayAverage(e.history, nowMillis)
		default:
			coord = s.linearWeightedAverage(e.history, nowMillis)
		}
	}

	e.smoothed = &Estimate{Coordinate: coord, Algorithm: algo, ComputedAt: nowMillis}
	return coord
}

// simpleAverage is the unweighted mean of all history points.
func simpleAverage(history []Sample) geo.Coordinate {
	var latSum, lonSum float64
	for _, p := range history {
		latSum += p.Latitude
		lonSum += p.Longitude
	}
	n := float64(len(history))
	return geo.Coordinate{Latitude: latSum / n, Longitude: lonSum / n}
}

// linearWeightedAverage weights each point by max(1 - age/staleness, 0.1),
// normalised so the weights sum to one. Newer points dominate.
func (s *Smoother) linearWeightedAverage(history []Sample, nowMillis int64) geo.Coordinate {
	staleness := float64(s.cfg.StalenessThreshold.Milliseconds())
	weights := make([]float64, len(history))
	var total float64
	for i, p := range history {
		age := float64(nowMillis-p.CapturedAt) / staleness
		w := 1.0 - age
		if w < 0.1 {
			w = 0.1
		}
		weights[i] = w
		total += w
	}
	return weightedMean(history, weights, total)
}

// exponentialDecayAverage weights each point by exp(-decay * ageRatio * 10),
// dropping off much faster than the linear scheme.
func (s *Smoother) exponentialDecayAverage(history []Sample, nowMillis int64) geo.Coordinate {
	staleness := float64(s.cfg.StalenessThreshold.Milliseconds())
	weights := make([]float64, len(history))
	var total float64
	for i, p := range history {
		ageRatio := float64(nowMillis-p.CapturedAt) / staleness
		w := expWeight(s.cfg.DecayFactor, ageRatio)
		weights[i] = w
		total += w
	}
	return weightedMean(history, weights, total)
}

func weightedMean(history []Sample, weights []float64, total float64) geo.Coordinate {
	if total <= 0 {
		return simpleAverage(history)
	}
	var latSum, lonSum float64
	for i, p := range history {
		w := weights[i] / total
		latSum += p.Latitude * w
		lonSum += p.Longitude * w
	}
	return geo.Coordinate{Latitude: latSum, Longitude: lonSum}
}

// ClearHistory drops one entity's history and cached estimates.
func (s *Smoother) ClearHistory(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, entityID)
}

// ClearAll drops every entity's history and cached estimates.
func (s *Smoother) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[string]*entity)
}

// HistorySize reports how many samples are held for an entity.
func (s *Smoother) HistorySize(entityID string) int {
	s.mu.RLock()
	e, ok := s.entities[entityID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// Sweep removes entities whose newest sample is older than the cleanup
// threshold and drops expired cached estimates for the rest. Returns the
// number of entities removed. Intended to run on a fixed interval.
func (s *Smoother) Sweep() int {
	nowMillis := s.clock.Now().UnixMilli()
	cutoff := s.cfg.CleanupThreshold.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entities {
		e.mu.Lock()
		stale := len(e.history) == 0 ||
			nowMillis-e.history[len(e.history)-1].CapturedAt > cutoff
		if !stale {
			if e.smoothed != nil && nowMillis-e.smoothed.ComputedAt > s.cfg.SmoothedTTL.Milliseconds() {
				e.smoothed = nil
			}
			if e.predicted != nil && nowMillis-e.predicted.ComputedAt > s.cfg.PredictedTTL.Milliseconds() {
				e.predicted = nil
			}
		}
		e.mu.Unlock()
		if stale {
			delete(s.entities, id)
			removed++
		}
	}
	return removed
}
