// Package store persists pipeline artifacts in a cache directory and
// answers the only staleness question the pipeline asks: does the file
// exist. Rasters are written as ESRI ASCII grids with a .prj sidecar
// carrying the CRS; polygon layers are written as GeoJSON.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/vectorize"
)

// ErrNotFound reports that a named artifact is not in the cache.
var ErrNotFound = errors.New("artifact not found")

// Store manages artifacts under a single cache directory.
type Store struct {
	fs  FileSystem
	dir string
}

// New creates the cache directory if needed and returns a store over it.
func New(fs FileSystem, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path of a named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Has reports whether the named artifact exists. File presence is the
// cache's sole freshness signal; delete the file to force a recompute.
func (s *Store) Has(name string) bool {
	return s.fs.Exists(s.Path(name))
}

// Remove deletes a named artifact and, for rasters, its CRS sidecar.
func (s *Store) Remove(name string) error {
	if err := s.fs.Remove(s.Path(name)); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	if prj := s.prjPath(name); prj != "" && s.fs.Exists(prj) {
		if err := s.fs.Remove(prj); err != nil {
			return fmt.Errorf("remove %s sidecar: %w", name, err)
		}
	}
	return nil
}

// PutRaster writes a grid as an ASCII grid plus a .prj sidecar when the
// grid carries a CRS.
func (s *Store) PutRaster(name string, g *raster.Grid) error {
	data, err := raster.Encode(g)
	if err != nil {
		return fmt.Errorf("encode raster %s: %w", name, err)
	}
	if err := s.fs.WriteFile(s.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("write raster %s: %w", name, err)
	}
	if g.CRS != "" {
		if err := s.fs.WriteFile(s.prjPath(name), []byte(g.CRS), 0o644); err != nil {
			return fmt.Errorf("write CRS sidecar for %s: %w", name, err)
		}
	}
	return nil
}

// GetRaster reads a named grid, restoring its CRS from the sidecar when
// one is present.
func (s *Store) GetRaster(name string) (*raster.Grid, error) {
	if !s.Has(name) {
		return nil, fmt.Errorf("raster %s: %w", name, ErrNotFound)
	}
	data, err := s.fs.ReadFile(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("read raster %s: %w", name, err)
	}
	g, err := raster.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode raster %s: %w", name, err)
	}
	if prj := s.prjPath(name); s.fs.Exists(prj) {
		crs, err := s.fs.ReadFile(prj)
		if err != nil {
			return nil, fmt.Errorf("read CRS sidecar for %s: %w", name, err)
		}
		g.CRS = strings.TrimSpace(string(crs))
	}
	return g, nil
}

// PutFeatureCollection writes a polygon layer as GeoJSON.
func (s *Store) PutFeatureCollection(name string, fc *geojson.FeatureCollection) error {
	data, err := vectorize.Encode(fc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.fs.WriteFile(s.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// GetFeatureCollection reads a named GeoJSON polygon layer.
func (s *Store) GetFeatureCollection(name string) (*geojson.FeatureCollection, error) {
	if !s.Has(name) {
		return nil, fmt.Errorf("layer %s: %w", name, ErrNotFound)
	}
	data, err := s.fs.ReadFile(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	fc, err := vectorize.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return fc, nil
}

// prjPath maps an .asc artifact name to its sidecar path, or "" for
// non-raster artifacts.
func (s *Store) prjPath(name string) string {
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, ".asc") {
		return ""
	}
	return s.Path(strings.TrimSuffix(name, ext) + ".prj")
}
