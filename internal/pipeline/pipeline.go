// Package pipeline runs the three cold-spot stages in sequence: layer
// preparation, classification, and figure synthesis. Stages communicate
// only through the artifact store; presence of a named artifact is the
// sole staleness signal.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/config"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/manifest"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/report"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/store"
)

// Pipeline holds the configuration and artifact store shared by the
// stages of one run.
type Pipeline struct {
	cfg *config.StudyConfig
	fs  store.FileSystem
	st  *store.Store

	// per-stage cache counters, reset by takeCounters
	hits   int
	misses int
}

// New creates a pipeline over the configured cache directory.
func New(cfg *config.StudyConfig, fs store.FileSystem) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	st, err := store.New(fs, cfg.GetCacheDir())
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, fs: fs, st: st}, nil
}

// Store exposes the artifact store, mainly for tests.
func (p *Pipeline) Store() *store.Store {
	return p.st
}

// Run executes Prepare, Classify and RenderFigure in order, recording
// each stage in the manifest when one is configured. A stage error halts
// the run.
func (p *Pipeline) Run() error {
	var mdb *manifest.DB
	if p.cfg.ManifestPath != "" {
		db, err := manifest.Open(p.cfg.ManifestPath)
		if err != nil {
			return fmt.Errorf("open manifest: %w", err)
		}
		defer db.Close()
		mdb = db
	}
	runID := manifest.NewRunID()
	params := p.paramsJSON()

	start := time.Now()
	layers, err := p.Prepare()
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	p.record(mdb, runID, "prepare", params, time.Since(start))

	start = time.Now()
	classified, err := p.Classify(layers)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	p.record(mdb, runID, "classify", params, time.Since(start))

	start = time.Now()
	if err := p.RenderFigure(layers, classified); err != nil {
		return fmt.Errorf("render figure: %w", err)
	}
	p.record(mdb, runID, "figure", params, time.Since(start))

	if p.cfg.Diagnostics {
		p.writeCoverageReport(classified)
	}

	log.Printf("[Run] done: %d cold-spot features", len(classified.ColdSpots.Features))
	return nil
}

// record writes one stage entry; manifest problems are logged, never
// fatal, because the manifest is audit-only.
func (p *Pipeline) record(mdb *manifest.DB, runID, stage, params string, dur time.Duration) {
	hits, misses := p.takeCounters()
	log.Printf("[Run] stage %s finished in %s (cache hits %d, misses %d)", stage, dur.Round(time.Millisecond), hits, misses)
	if mdb == nil {
		return
	}
	err := mdb.RecordStageRun(manifest.StageRun{
		RunID:       runID,
		Stage:       stage,
		Params:      params,
		CacheHits:   int64(hits),
		CacheMisses: int64(misses),
		Duration:    dur,
	})
	if err != nil {
		log.Printf("[Run] manifest record failed: %v", err)
	}
}

func (p *Pipeline) paramsJSON() string {
	data, err := json.Marshal(map[string]interface{}{
		"bbox":                  []float64{p.cfg.LonMin, p.cfg.LatMin, p.cfg.LonMax, p.cfg.LatMax},
		"max_suitability":       p.cfg.GetMaxSuitability(),
		"mpa_min_distance_km":   p.cfg.GetMPAMinDistanceKM(),
		"owf_min_distance_km":   p.cfg.GetOWFMinDistanceKM(),
		"coast_min_distance_km": p.cfg.GetCoastMinDistanceKM(),
	})
	if err != nil {
		return ""
	}
	return string(data)
}

func (p *Pipeline) takeCounters() (hits, misses int) {
	hits, misses = p.hits, p.misses
	p.hits, p.misses = 0, 0
	return hits, misses
}

func (p *Pipeline) writeCoverageReport(c *Classified) {
	html, err := report.CoverageHTML(c.Counts, c.OceanCells)
	if err != nil {
		log.Printf("[Run] coverage report: %v", err)
		return
	}
	path := p.st.Path("criteria_coverage.html")
	if err := p.fs.WriteFile(path, html, 0o644); err != nil {
		log.Printf("[Run] write coverage report: %v", err)
		return
	}
	log.Printf("[Run] wrote %s", path)
}

// cachedRaster returns the named artifact if present, otherwise builds
// and stores it.
func (p *Pipeline) cachedRaster(stage, name string, build func() (*raster.Grid, error)) (*raster.Grid, error) {
	if p.st.Has(name) {
		log.Printf("[%s] using existing %s", stage, name)
		p.hits++
		return p.st.GetRaster(name)
	}
	p.misses++
	g, err := build()
	if err != nil {
		return nil, err
	}
	if err := p.st.PutRaster(name, g); err != nil {
		return nil, err
	}
	log.Printf("[%s] wrote %s", stage, name)
	return g, nil
}

// cachedCollection is cachedRaster for GeoJSON artifacts.
func (p *Pipeline) cachedCollection(stage, name string, build func() (*geojson.FeatureCollection, error)) (*geojson.FeatureCollection, error) {
	if p.st.Has(name) {
		log.Printf("[%s] using existing %s", stage, name)
		p.hits++
		return p.st.GetFeatureCollection(name)
	}
	p.misses++
	fc, err := build()
	if err != nil {
		return nil, err
	}
	if err := p.st.PutFeatureCollection(name, fc); err != nil {
		return nil, err
	}
	log.Printf("[%s] wrote %s", stage, name)
	return fc, nil
}
