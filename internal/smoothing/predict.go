package smoothing

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/questline-games/manhunt/internal/geo"
)

// expWeight is the exponential-decay weighting curve. The factor of 10
// makes the falloff aggressive: with the default decay of 0.5 a sample at
// half the staleness threshold already contributes under a tenth of a
// fresh one.
func expWeight(decay, ageRatio float64) float64 {
	return math.Exp(-decay * ageRatio * 10)
}

// Predicted records (lat, lon) and returns a position extrapolated
// PredictionWindow ahead along the entity's current heading. The anchor of
// the extrapolation is the linear-weighted smoothed position, so a noisy
// last fix does not fling the prediction. When the entity is effectively
// stationary, or the history is too short to establish a heading, the
// anchor itself is returned. An empty entityID returns the raw input.
func (s *Smoother) Predicted(entityID string, lat, lon float64) geo.Coordinate {
	if entityID == "" {
		return geo.Coordinate{Latitude: lat, Longitude: lon}
	}

	e := s.entityFor(entityID)
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMillis := s.clock.Now().UnixMilli()
	if e.predicted != nil && nowMillis-e.predicted.ComputedAt <= s.cfg.PredictedTTL.Milliseconds() {
		return e.predicted.Coordinate
	}

	anchor := s.smoothLocked(e, lat, lon, LinearWeighted, nowMillis)

	p := s.predictFromHistoryLocked(e, anchor, nowMillis)
	e.predicted = &p
	return p.Coordinate
}

// predictFromHistoryLocked derives velocity and bearing from the two newest
// history samples and projects the anchor forward. history already includes
// the sample recorded by the caller.
func (s *Smoother) predictFromHistoryLocked(e *entity, anchor geo.Coordinate, nowMillis int64) Prediction {
	if len(e.history) < s.cfg.MinPointsForPrediction {
		return Prediction{Coordinate: anchor, Confidence: 0.1, ComputedAt: nowMillis}
	}

	prev := e.history[len(e.history)-2]
	last := e.history[len(e.history)-1]
	velocity, bearing := segmentMotion(prev, last)

	if velocity < s.cfg.VelocityThresholdMps {
		return Prediction{
			Coordinate:     anchor,
			VelocityMps:    velocity,
			BearingDegrees: bearing,
			Confidence:     0.1,
			ComputedAt:     nowMillis,
		}
	}

	displacement := velocity * s.cfg.PredictionWindow.Seconds()
	if displacement > s.cfg.MaxPredictionDistanceMeters {
		displacement = s.cfg.MaxPredictionDistanceMeters
	}

	coord := project(anchor, bearing, displacement)
	confidence := 0.7*s.movementConsistency(e.history) +
		0.3*math.Min(1.0, float64(len(e.history))/float64(s.cfg.HistorySize))
	confidence = math.Max(0.0, math.Min(1.0, confidence))

	return Prediction{
		Coordinate:     coord,
		VelocityMps:    velocity,
		BearingDegrees: bearing,
		Confidence:     confidence,
		ComputedAt:     nowMillis,
	}
}

// segmentMotion returns the speed in m/s and the initial bearing in degrees
// between two consecutive samples. A non-positive time delta yields zero
// velocity.
func segmentMotion(from, to Sample) (velocity, bearing float64) {
	a := geo.Coordinate{Latitude: from.Latitude, Longitude: from.Longitude}
	b := geo.Coordinate{Latitude: to.Latitude, Longitude: to.Longitude}
	bearing = geo.Bearing(a, b)

	dtSeconds := float64(to.CapturedAt-from.CapturedAt) / 1000.0
	if dtSeconds <= 0 {
		return 0, bearing
	}
	return geo.Distance(a, b) / dtSeconds, bearing
}

// project displaces a coordinate by distanceMeters along bearingDegrees
// using an equirectangular approximation. Over tens of meters the error
// against a great-circle projection is negligible and this is cheaper.
func project(start geo.Coordinate, bearingDegrees, distanceMeters float64) geo.Coordinate {
	latRad := start.Latitude * math.Pi / 180
	lonRad := start.Longitude * math.Pi / 180
	bearingRad := bearingDegrees * math.Pi / 180
	angular := distanceMeters / geo.EarthRadiusMeters

	newLat := latRad + angular*math.Cos(bearingRad)
	newLon := lonRad + angular*math.Sin(bearingRad)/math.Cos(latRad)

	return geo.Coordinate{
		Latitude:  newLat * 180 / math.Pi,
		Longitude: newLon * 180 / math.Pi,
	}
}

// movementConsistency scores how steady the entity's recent motion is on
// [0, 1]. Direction steadiness is the dominant term, velocity steadiness
// (one minus the coefficient of variation, floored at zero) the minor one.
// Histories too short to form two segments score a neutral 0.5.
func (s *Smoother) movementConsistency(history []Sample) float64 {
	if len(history) < 3 {
		return 0.5
	}

	var bearings, velocities []float64
	for i := 0; i < len(history)-1; i++ {
		if history[i+1].CapturedAt <= history[i].CapturedAt {
			continue
		}
		v, b := segmentMotion(history[i], history[i+1])
		bearings = append(bearings, b)
		velocities = append(velocities, v)
	}

	var direction float64
	if len(bearings) >= 2 {
		var totalDiff float64
		for i := 1; i < len(bearings); i++ {
			diff := math.Abs(bearings[i] - bearings[i-1])
			if diff > 180 {
				diff = 360 - diff
			}
			totalDiff += diff
		}
		direction = 1.0 - (totalDiff/float64(len(bearings)-1))/180.0
	}

	// stat.MeanStdDev computes the sample standard deviation, which is NaN
	// for a single observation; the velocity term needs two segments.
	var velocityScore float64
	if len(velocities) >= 2 {
		mean, std := stat.MeanStdDev(velocities, nil)
		if mean > 0 {
			cv := std / mean
			velocityScore = math.Max(0.0, 1.0-math.Min(1.0, cv))
		}
	}

	return 0.7*direction + 0.3*velocityScore
}

// MotionAnalytics reports the entity's current velocity, bearing, and
// confidence without recording a new sample. It prefers a fresh cached
// prediction; otherwise it derives motion from the stored history. The
// second return is false when nothing is known about the entity.
func (s *Smoother) MotionAnalytics(entityID string) (Prediction, bool) {
	if entityID == "" {
		return Prediction{}, false
	}

	s.mu.RLock()
	e, ok := s.entities[entityID]
	s.mu.RUnlock()
	if !ok {
		return Prediction{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	nowMillis := s.clock.Now().UnixMilli()
	if e.predicted != nil && nowMillis-e.predicted.ComputedAt <= s.cfg.PredictedTTL.Milliseconds() {
		return *e.predicted, true
	}
	if len(e.history) == 0 {
		return Prediction{}, false
	}

	last := e.history[len(e.history)-1]
	anchor := geo.Coordinate{Latitude: last.Latitude, Longitude: last.Longitude}
	return s.predictFromHistoryLocked(e, anchor, nowMillis), true
}
