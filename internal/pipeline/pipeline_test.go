package pipeline

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/config"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/manifest"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/store"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/vectorize"
)

// testInputs builds a 10x10 degree study area at the equator. Cell edges
// are roughly 111 km, so every ocean cell is far beyond the default 7 km
// distance thresholds. The northwest corner cell is land, carries the
// only MPA, and hosts the only wind farm.
func testInputs(t *testing.T, fs *store.MemoryFileSystem, suitability func(g *raster.Grid)) *config.StudyConfig {
	t.Helper()

	coast := raster.New(10, 10, 0, 0, 1)
	for i := range coast.Cells {
		coast.Cells[i] = 1
	}
	coast.Set(0, 0, float32(coast.NoData)) // land

	mpa := raster.New(10, 10, 0, 0, 1)
	for i := range mpa.Cells {
		mpa.Cells[i] = 0
	}
	mpa.Set(0, 0, 1)

	suit := raster.New(10, 10, 0, 0, 1)
	for i := range suit.Cells {
		suit.Cells[i] = 0.1
	}
	if suitability != nil {
		suitability(suit)
	}

	owf := vectorize.ToFeatureCollection(orb.MultiPolygon{{{
		{0.2, 9.2}, {0.8, 9.2}, {0.8, 9.8}, {0.2, 9.8}, {0.2, 9.2},
	}}}, nil)
	countries := vectorize.ToFeatureCollection(orb.MultiPolygon{{{
		{0, 9}, {1, 9}, {1, 10}, {0, 10}, {0, 9},
	}}}, nil)

	writeRaster := func(path string, g *raster.Grid) {
		data, err := raster.Encode(g)
		if err != nil {
			t.Fatalf("encode %s: %v", path, err)
		}
		if err := fs.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	writeFC := func(path string, fc interface{ MarshalJSON() ([]byte, error) }) {
		data, err := fc.MarshalJSON()
		if err != nil {
			t.Fatalf("encode %s: %v", path, err)
		}
		if err := fs.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	writeRaster("inputs/coastline.asc", coast)
	writeRaster("inputs/mpa.asc", mpa)
	writeRaster("inputs/suitability.asc", suit)
	writeFC("inputs/owf.geojson", owf)
	writeFC("inputs/countries.geojson", countries)

	return &config.StudyConfig{
		SuitabilityPath: "inputs/suitability.asc",
		MPAPath:         "inputs/mpa.asc",
		CoastlinePath:   "inputs/coastline.asc",
		OWFPath:         "inputs/owf.geojson",
		CountriesPath:   "inputs/countries.geojson",
		LonMin:          0, LonMax: 10,
		LatMin: 0, LatMax: 10,
	}
}

func coldSpotPolys(t *testing.T, p *Pipeline) orb.MultiPolygon {
	t.Helper()
	fc, err := p.Store().GetFeatureCollection(p.cfg.Cache.GetColdSpots())
	if err != nil {
		t.Fatalf("load cold spots: %v", err)
	}
	return vectorize.CollectPolygons(fc)
}

func TestRunAllOceanCellsPass(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, nil)

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mp := coldSpotPolys(t, p)
	if len(mp) != 1 {
		t.Fatalf("got %d cold-spot polygons, want 1", len(mp))
	}
	// 99 ocean cells of 1 square degree: full extent minus the land cell.
	if a := planar.Area(mp); a < 98.9 || a > 99.1 {
		t.Errorf("cold-spot area = %v, want 99", a)
	}
	if !fs.Exists(cfg.GetFigurePath()) {
		t.Error("figure not written")
	}
}

func TestRunExcludesHighSuitabilityCell(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, func(g *raster.Grid) {
		g.Set(5, 5, 0.25) // above the 0.2 default, strictly
	})

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mp := coldSpotPolys(t, p)
	if len(mp) != 1 {
		t.Fatalf("got %d cold-spot polygons, want 1", len(mp))
	}
	// The excluded interior cell becomes a hole.
	if len(mp[0]) != 2 {
		t.Fatalf("polygon has %d rings, want shell + hole", len(mp[0]))
	}
	if a := planar.Area(mp); a < 97.9 || a > 98.1 {
		t.Errorf("cold-spot area = %v, want 98", a)
	}

	// The excluded cell's center falls outside the cold-spot polygons;
	// its neighbor stays inside.
	if planar.MultiPolygonContains(mp, orb.Point{5.5, 4.5}) {
		t.Error("center of the excluded cell should fall outside the cold spots")
	}
	if !planar.MultiPolygonContains(mp, orb.Point{6.5, 4.5}) {
		t.Error("center of the neighboring cell should fall inside the cold spots")
	}
}

func TestSuitabilityBoundaryIsStrict(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, func(g *raster.Grid) {
		g.Set(5, 5, 0.2)   // exactly at the limit: fails
		g.Set(5, 6, 0.199) // strictly below: passes
	})

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	layers, err := p.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	c, err := p.Classify(layers)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if got := c.Combined.At(5, 5); got != 0 {
		t.Errorf("cell at the suitability limit = %v, want 0", got)
	}
	if got := c.Combined.At(5, 6); got != 1 {
		t.Errorf("cell below the suitability limit = %v, want 1", got)
	}
}

func TestRunEmptyResult(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, func(g *raster.Grid) {
		for i := range g.Cells {
			g.Cells[i] = 0.9
		}
	})

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run with empty result: %v", err)
	}

	fc, err := p.Store().GetFeatureCollection(cfg.Cache.GetColdSpots())
	if err != nil {
		t.Fatalf("load cold spots: %v", err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("got %d features, want an explicitly empty collection", len(fc.Features))
	}
	if !fs.Exists(cfg.GetFigurePath()) {
		t.Error("figure should still render with empty overlays")
	}
}

func TestSecondRunUsesCacheOnly(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, nil)

	p1, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p1.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	before := make(map[string][]byte)
	for _, name := range fs.Files() {
		data, err := fs.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		before[name] = data
	}

	p2, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	layers, err := p2.Prepare()
	if err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if p2.misses != 0 {
		t.Errorf("second Prepare recomputed %d artifacts", p2.misses)
	}
	if p2.hits == 0 {
		t.Error("second Prepare hit no cached artifacts")
	}

	c, err := p2.Classify(layers)
	if err != nil {
		t.Fatalf("second Classify: %v", err)
	}
	if err := p2.RenderFigure(layers, c); err != nil {
		t.Fatalf("second RenderFigure: %v", err)
	}

	after := fs.Files()
	if len(after) != len(before) {
		t.Fatalf("second run changed the file set: %d -> %d", len(before), len(after))
	}
	for name, want := range before {
		got, err := fs.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != string(want) {
			t.Errorf("second run rewrote %s", name)
		}
	}
}

func TestRunRecordsManifest(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, nil)
	cfg.ManifestPath = filepath.Join(t.TempDir(), "manifest.db")

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	db, err := manifest.Open(cfg.ManifestPath)
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d stage records, want 3", len(runs))
	}
	stages := map[string]bool{}
	for _, r := range runs {
		stages[r.Stage] = true
		if r.RunID != runs[0].RunID {
			t.Error("stage records do not share a run id")
		}
		if r.Params == "" {
			t.Error("stage record missing parameter JSON")
		}
	}
	for _, s := range []string{"prepare", "classify", "figure"} {
		if !stages[s] {
			t.Errorf("missing stage record %q", s)
		}
	}
}

func TestRunDiagnostics(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, nil)
	cfg.Diagnostics = true

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range []string{
		"diag_suitability.png",
		"diag_dist_mpa.png",
		"diag_dist_owf.png",
		"diag_dist_coast.png",
		"criteria_coverage.html",
	} {
		if !fs.Exists(p.Store().Path(name)) {
			t.Errorf("missing diagnostic artifact %s", name)
		}
	}
}

func TestDiagnosticsLogLayerStats(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, nil)
	cfg.Diagnostics = true

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	if _, err := p.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	out := buf.String()
	// Suitability is uniformly 0.1 over all 100 cells.
	if !strings.Contains(out, "Suitability: min=0.100 max=0.100 mean=0.100 cells=100") {
		t.Errorf("missing suitability stats in diagnostics log:\n%s", out)
	}
	for _, layer := range []string{"MPA Distance (m)", "OWF Distance (m)", "Coast Distance (m)"} {
		if !strings.Contains(out, layer+": min=") {
			t.Errorf("missing %s stats in diagnostics log", layer)
		}
	}
}

func TestPanelBFocusesColdSpots(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, nil)

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	layers, err := p.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	c, err := p.Classify(layers)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	panels := p.panels(layers, c)
	if len(panels) != 2 {
		t.Fatalf("got %d panels, want 2", len(panels))
	}

	var aNames, bNames []string
	for _, ov := range panels[0].Overlays {
		aNames = append(aNames, ov.Name)
	}
	for _, ov := range panels[1].Overlays {
		bNames = append(bNames, ov.Name)
	}

	wantA := []string{"Countries", "OWF", "MPA", "Cold spots"}
	if strings.Join(aNames, ",") != strings.Join(wantA, ",") {
		t.Errorf("panel a overlays = %v, want %v", aNames, wantA)
	}
	wantB := []string{"Countries", "Cold spots"}
	if strings.Join(bNames, ",") != strings.Join(wantB, ",") {
		t.Errorf("panel b overlays = %v, want %v", bNames, wantB)
	}

	// Panel b zooms to the plot bounds (study bbox by default).
	if panels[1].XMin != cfg.LonMin || panels[1].XMax != cfg.LonMax ||
		panels[1].YMin != cfg.LatMin || panels[1].YMax != cfg.LatMax {
		t.Errorf("panel b bounds = (%v,%v,%v,%v), want the plot bounds",
			panels[1].XMin, panels[1].XMax, panels[1].YMin, panels[1].YMax)
	}
}

func TestInputCRSSidecarPropagates(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, nil)
	for _, prj := range []string{"inputs/coastline.prj", "inputs/mpa.prj", "inputs/suitability.prj"} {
		if err := fs.WriteFile(prj, []byte(raster.WGS84), 0o644); err != nil {
			t.Fatalf("write %s: %v", prj, err)
		}
	}

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	for _, name := range []string{
		cfg.Cache.GetCoastlineCrop(),
		cfg.Cache.GetMPACrop(),
		cfg.Cache.GetSuitabilityCrop(),
	} {
		g, err := p.Store().GetRaster(name)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if g.CRS != raster.WGS84 {
			t.Errorf("%s CRS = %q, want the input sidecar's CRS", name, g.CRS)
		}
	}
}

func TestPrepareMissingInputIsFatal(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, nil)
	cfg.SuitabilityPath = "inputs/absent.asc"

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Prepare(); err == nil {
		t.Fatal("expected error for missing input raster")
	}
}

func TestClassifyCountsCoverCriteria(t *testing.T) {
	fs := store.NewMemoryFileSystem()
	cfg := testInputs(t, fs, func(g *raster.Grid) {
		g.Set(5, 5, 0.9)
	})

	p, err := New(cfg, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	layers, err := p.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	c, err := p.Classify(layers)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if c.OceanCells != 99 {
		t.Errorf("OceanCells = %d, want 99", c.OceanCells)
	}
	counts := map[string]int{}
	for _, cc := range c.Counts {
		counts[cc.Name] = cc.Passing
	}
	if counts["suitability"] != 98 {
		t.Errorf("suitability passing = %d, want 98", counts["suitability"])
	}
	if counts["cold_spots"] != 98 {
		t.Errorf("cold_spots passing = %d, want 98", counts["cold_spots"])
	}
	// Distance criteria pass on every ocean cell at this scale.
	for _, name := range []string{"dist_mpa", "dist_owf", "dist_coast"} {
		if counts[name] != 99 {
			t.Errorf("%s passing = %d, want 99", name, counts[name])
		}
	}
}
