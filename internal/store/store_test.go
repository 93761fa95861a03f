package store

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/vectorize"
)

func newTestStore(t *testing.T) (*Store, *MemoryFileSystem) {
	t.Helper()
	fs := NewMemoryFileSystem()
	s, err := New(fs, "cache")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, fs
}

func TestRasterRoundTrip(t *testing.T) {
	s, fs := newTestStore(t)

	g := raster.New(3, 2, -4, 48, 0.5)
	g.Set(0, 1, 0.75)
	g.Set(1, 2, -2)
	g.CRS = raster.WGS84

	if err := s.PutRaster("suitability_crop.asc", g); err != nil {
		t.Fatalf("PutRaster: %v", err)
	}
	if !s.Has("suitability_crop.asc") {
		t.Fatal("Has should report the written artifact")
	}
	if !fs.Exists("cache/suitability_crop.prj") {
		t.Error("missing CRS sidecar")
	}

	got, err := s.GetRaster("suitability_crop.asc")
	if err != nil {
		t.Fatalf("GetRaster: %v", err)
	}
	if diff := cmp.Diff(g, got); diff != "" {
		t.Errorf("raster round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRasterWithoutCRSHasNoSidecar(t *testing.T) {
	s, fs := newTestStore(t)

	g := raster.New(1, 1, 0, 0, 1)
	g.Set(0, 0, 1)
	g.CRS = ""
	if err := s.PutRaster("dist_mpa.asc", g); err != nil {
		t.Fatalf("PutRaster: %v", err)
	}
	if fs.Exists("cache/dist_mpa.prj") {
		t.Error("unexpected sidecar for CRS-less grid")
	}
}

func TestFeatureCollectionRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	mp := orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}}
	fc := vectorize.ToFeatureCollection(mp, map[string]interface{}{"layer": "cold_spots"})

	if err := s.PutFeatureCollection("cold_spots.geojson", fc); err != nil {
		t.Fatalf("PutFeatureCollection: %v", err)
	}

	got, err := s.GetFeatureCollection("cold_spots.geojson")
	if err != nil {
		t.Fatalf("GetFeatureCollection: %v", err)
	}
	if len(got.Features) != 1 {
		t.Fatalf("got %d features, want 1", len(got.Features))
	}
	if got.Features[0].Properties["layer"] != "cold_spots" {
		t.Errorf("properties lost: %v", got.Features[0].Properties)
	}
}

func TestMissingArtifact(t *testing.T) {
	s, _ := newTestStore(t)

	if s.Has("nope.asc") {
		t.Error("Has reported a missing artifact")
	}
	if _, err := s.GetRaster("nope.asc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRaster error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetFeatureCollection("nope.geojson"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFeatureCollection error = %v, want ErrNotFound", err)
	}
}

func TestRemoveDeletesSidecar(t *testing.T) {
	s, fs := newTestStore(t)

	g := raster.New(1, 1, 0, 0, 1)
	g.Set(0, 0, 1)
	g.CRS = raster.WGS84
	if err := s.PutRaster("mpa_crop.asc", g); err != nil {
		t.Fatalf("PutRaster: %v", err)
	}

	if err := s.Remove("mpa_crop.asc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Has("mpa_crop.asc") {
		t.Error("artifact still present after Remove")
	}
	if fs.Exists("cache/mpa_crop.prj") {
		t.Error("sidecar still present after Remove")
	}
}
