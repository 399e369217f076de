// proximity-sim runs a synthetic elimination game against the proximity
// engine: it scatters players around a map center, random-walks them for a
// number of steps, and on every step cross-checks the grid-based batch
// scan against a brute-force all-pairs reference. At the end it writes a
// scatter plot of the final positions and an activity heatmap.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/questline-games/manhunt/internal/config"
	"github.com/questline-games/manhunt/internal/directory"
	"github.com/questline-games/manhunt/internal/geo"
	"github.com/questline-games/manhunt/internal/proximity"
	"github.com/questline-games/manhunt/internal/smoothing"
)

const metersPerDegreeLat = 111000.0

func main() {
	var (
		playerCount = flag.Int("players", 500, "number of simulated players")
		seed        = flag.Int64("seed", 1, "random seed")
		centerLat   = flag.Float64("lat", 40.7128, "map center latitude")
		centerLon   = flag.Float64("lon", -74.0060, "map center longitude")
		threshold   = flag.Float64("threshold", 50, "proximity awareness distance in meters")
		steps       = flag.Int("steps", 10, "random-walk steps, one second apart")
		spread      = flag.Float64("spread", 1000, "initial placement box size in meters")
		outDir      = flag.String("out", "sim-out", "output directory for plots")
		tuningPath  = flag.String("config", "", "optional tuning config JSON")
	)
	flag.Parse()

	tuning := config.EmptyTuningConfig()
	if *tuningPath != "" {
		loaded, err := config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("load tuning config: %v", err)
		}
		tuning = loaded
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	dir := directory.NewMemory()
	gameID := uuid.NewString()
	if err := dir.PutGame(&proximity.Game{ID: gameID, Name: "Simulated Hunt", Status: "ACTIVE"}); err != nil {
		log.Fatalf("seed game: %v", err)
	}

	// Players start uniformly inside the placement box, each hunting the
	// next one in a ring.
	latSpread := *spread / metersPerDegreeLat
	lonSpread := *spread / (metersPerDegreeLat * math.Cos(*centerLat*math.Pi/180))
	ids := make([]string, *playerCount)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	for i, id := range ids {
		lat := *centerLat + (rng.Float64()-0.5)*latSpread
		lon := *centerLon + (rng.Float64()-0.5)*lonSpread
		p := &proximity.Player{
			ID:                id,
			Name:              fmt.Sprintf("Runner-%03d", i),
			GameID:            gameID,
			Status:            proximity.StatusActive,
			TargetID:          ids[(i+1)%len(ids)],
			Latitude:          &lat,
			Longitude:         &lon,
			LocationTimestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if err := dir.PutPlayer(p); err != nil {
			log.Fatalf("seed player: %v", err)
		}
	}

	notifications := 0
	engine, err := proximity.NewEngine(proximity.Options{
		Players: dir,
		Games:   dir,
		MapConfig: proximity.StaticMapConfig{
			DefaultEliminationDistanceMeters: tuning.GetEliminationThresholdMeters(),
			ProximityAwarenessDistanceMeters: *threshold,
		},
		Notifier: proximity.NotifierFunc(func(proximity.Notification) error {
			notifications++
			return nil
		}),
		Tuning: tuning,
	})
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	radius := *threshold + tuning.GetGPSAccuracyBufferMeters()
	algorithm := tuning.GetSmoothingAlgorithm()
	stepMeters := 2.0 // walking pace per one-second step

	var totalPairs, mismatches int
	for step := 0; step < *steps; step++ {
		now := time.Now().UTC().Format(time.RFC3339)
		for _, id := range ids {
			p, err := dir.GetPlayer(id)
			if err != nil {
				log.Fatalf("walk lookup: %v", err)
			}
			bearing := rng.Float64() * 360
			next := geo.Destination(
				geo.Coordinate{Latitude: *p.Latitude, Longitude: *p.Longitude},
				bearing, rng.Float64()*stepMeters)
			if err := dir.UpdateLocation(id, next.Latitude, next.Longitude, now); err != nil {
				log.Fatalf("walk update: %v", err)
			}
		}

		results, err := engine.ProcessLargeGame(gameID)
		if err != nil {
			log.Fatalf("batch scan: %v", err)
		}

		gridPairs := pairSet(results)
		brutePairs := bruteForcePairs(engine, dir, gameID, ids, algorithm, radius)
		totalPairs += len(brutePairs)
		mismatches += diffCount(gridPairs, brutePairs)

		if err := engine.ProcessBatchNotifications(gameID, results, proximity.NotificationTypePremium); err != nil {
			log.Fatalf("batch notify: %v", err)
		}
	}

	agreement := 100.0
	if totalPairs > 0 {
		agreement = 100 * float64(totalPairs-mismatches) / float64(totalPairs)
	}
	fmt.Printf("players=%d steps=%d radius=%.0fm\n", *playerCount, *steps, radius)
	fmt.Printf("close pairs (brute force)=%d grid mismatches=%d agreement=%.3f%%\n",
		totalPairs, mismatches, agreement)
	fmt.Printf("notifications sent=%d\n", notifications)

	scatterPath := filepath.Join(*outDir, "positions.png")
	if err := renderScatter(dir, engine, gameID, *centerLat, *centerLon, scatterPath); err != nil {
		log.Fatalf("render scatter: %v", err)
	}
	heatmapPath := filepath.Join(*outDir, "heatmap.html")
	if err := renderHeatmap(engine, gameID, *centerLat, *centerLon, heatmapPath); err != nil {
		log.Fatalf("render heatmap: %v", err)
	}
	fmt.Printf("wrote %s and %s\n", scatterPath, heatmapPath)

	if mismatches > 0 {
		os.Exit(1)
	}
}

func pairSet(results map[string][]proximity.Result) map[proximity.Pair]bool {
	set := make(map[proximity.Pair]bool)
	for _, list := range results {
		for _, r := range list {
			set[r.Pair] = true
		}
	}
	return set
}

// bruteForcePairs recomputes all close pairs with a direct O(n^2) scan over
// the same smoothed coordinates the engine just used. Smoothed estimates
// are cached, so the lookups here observe identical positions.
func bruteForcePairs(engine *proximity.Engine, dir *directory.Memory, gameID string, ids []string, algorithm smoothing.Algorithm, radius float64) map[proximity.Pair]bool {
	type placed struct {
		id    string
		coord geo.Coordinate
	}
	entries := make([]placed, 0, len(ids))
	for _, id := range ids {
		p, err := dir.GetPlayer(id)
		if err != nil || p.Latitude == nil || p.Longitude == nil {
			continue
		}
		coord := engine.Smoother().Smoothed(id, *p.Latitude, *p.Longitude, algorithm)
		entries = append(entries, placed{id: id, coord: coord})
	}

	set := make(map[proximity.Pair]bool)
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if geo.Distance(entries[i].coord, entries[j].coord) <= radius {
				set[proximity.CanonicalPair(entries[i].id, entries[j].id)] = true
			}
		}
	}
	return set
}

func diffCount(a, b map[proximity.Pair]bool) int {
	n := 0
	for p := range a {
		if !b[p] {
			n++
		}
	}
	for p := range b {
		if !a[p] {
			n++
		}
	}
	return n
}

// renderScatter writes a PNG of the final player positions in meters
// relative to the map center.
func renderScatter(dir *directory.Memory, engine *proximity.Engine, gameID string, centerLat, centerLon float64, path string) error {
	players, err := dir.ListByGame(gameID)
	if err != nil {
		return err
	}

	lone := make(plotter.XYs, 0, len(players))
	paired := make(plotter.XYs, 0, len(players))
	for _, p := range players {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		x, y := metersFromCenter(*p.Latitude, *p.Longitude, centerLat, centerLon)
		if len(engine.RecentResults(p.ID)) > 0 {
			paired = append(paired, plotter.XY{X: x, Y: y})
		} else {
			lone = append(lone, plotter.XY{X: x, Y: y})
		}
	}

	pl := plot.New()
	pl.Title.Text = "Simulated player positions"
	pl.X.Label.Text = "X (m)"
	pl.Y.Label.Text = "Y (m)"

	loneScatter, err := plotter.NewScatter(lone)
	if err != nil {
		return err
	}
	loneScatter.GlyphStyle.Radius = vg.Points(1.5)

	pairedScatter, err := plotter.NewScatter(paired)
	if err != nil {
		return err
	}
	pairedScatter.GlyphStyle.Radius = vg.Points(2.5)

	pl.Add(loneScatter, pairedScatter)
	pl.Legend.Add("isolated", loneScatter)
	pl.Legend.Add("has close pair", pairedScatter)

	return pl.Save(8*vg.Inch, 8*vg.Inch, path)
}

// renderHeatmap writes an HTML density chart of 100 m activity cells.
func renderHeatmap(engine *proximity.Engine, gameID string, centerLat, centerLon float64, path string) error {
	cells, err := engine.ActivityHeatmap(gameID, 100)
	if err != nil {
		return err
	}

	data := make([]opts.ScatterData, 0, len(cells))
	maxCount := 1
	for _, c := range cells {
		x, y := metersFromCenter(c.CenterLatitude, c.CenterLongitude, centerLat, centerLon)
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, c.Count}})
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Manhunt Activity Heatmap", Theme: "dark",
			Width: "900px", Height: "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Activity heatmap",
			Subtitle: fmt.Sprintf("game=%s cells=%d cellSize=100m", gameID, len(cells)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCount),
			InRange: &opts.VisualMapInRange{Color: []string{
				"#440154", "#3e4989", "#26828e", "#35b779", "#b5de2b", "#fde725",
			}},
		}),
	)
	scatter.AddSeries("density", data,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 18}))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return scatter.Render(f)
}

func metersFromCenter(lat, lon, centerLat, centerLon float64) (x, y float64) {
	x = (lon - centerLon) * metersPerDegreeLat * math.Cos(centerLat*math.Pi/180)
	y = (lat - centerLat) * metersPerDegreeLat
	return x, y
}
