// Package config defines the study-area configuration for the cold-spot
// pipeline. All stages receive their parameters from an explicit
// StudyConfig value; no stage reads working-directory or environment
// state implicitly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StudyConfig is the root configuration for one pipeline run. Threshold
// and display fields are pointers so that partial JSON configs are safe:
// fields omitted from the file fall back to the Get* defaults.
//
// Classification thresholds and display range caps are deliberately
// separate fields. The caps clamp color scales in the figure stage only
// and must never feed back into pass/fail logic.
type StudyConfig struct {
	// Input layer locations
	SuitabilityPath string `json:"suitability_path"`
	MPAPath         string `json:"mpa_path"`
	CoastlinePath   string `json:"coastline_path"`
	OWFPath         string `json:"owf_path"`
	CountriesPath   string `json:"countries_path"`

	// Study bounding box (WGS84 decimal degrees)
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`

	// Classification thresholds. Distance criteria are strict "greater
	// than" in kilometers; the suitability criterion is strict "less than".
	MaxSuitability     *float64 `json:"max_suitability,omitempty"`
	MPAMinDistanceKM   *float64 `json:"mpa_min_distance_km,omitempty"`
	OWFMinDistanceKM   *float64 `json:"owf_min_distance_km,omitempty"`
	CoastMinDistanceKM *float64 `json:"coast_min_distance_km,omitempty"`

	// Display range caps (color-scale clamping only)
	SuitabilityRangeMax *float64 `json:"suitability_range_max,omitempty"`
	MPARangeMax         *float64 `json:"mpa_range_max,omitempty"`
	OWFRangeMax         *float64 `json:"owf_range_max,omitempty"`
	CoastRangeMax       *float64 `json:"coast_range_max,omitempty"`

	// Diagnostics enables the optional per-stage diagnostic images and
	// the criteria-coverage HTML report.
	Diagnostics bool `json:"diagnostics,omitempty"`

	// CacheDir is the directory holding all intermediate artifacts.
	CacheDir string `json:"cache_dir,omitempty"`

	// ManifestPath is the sqlite file recording stage runs for audit.
	// Empty disables the manifest.
	ManifestPath string `json:"manifest_path,omitempty"`

	// Figure output
	FigurePath     string   `json:"figure_path,omitempty"`
	FigureWidthIn  *float64 `json:"figure_width_in,omitempty"`
	FigureHeightIn *float64 `json:"figure_height_in,omitempty"`
	FigureDPI      *int     `json:"figure_dpi,omitempty"`

	// Optional figure bounding box; defaults to the study bounding box.
	PlotLonMin *float64 `json:"plot_lon_min,omitempty"`
	PlotLonMax *float64 `json:"plot_lon_max,omitempty"`
	PlotLatMin *float64 `json:"plot_lat_min,omitempty"`
	PlotLatMax *float64 `json:"plot_lat_max,omitempty"`

	// Cache overrides individual artifact file names.
	Cache CacheNames `json:"cache,omitempty"`
}

// CacheNames holds the file names of the intermediate artifacts, relative
// to CacheDir. Presence of a file with the configured name is the only
// staleness signal: a stage reloads an existing artifact instead of
// recomputing it, and deleting the file is the only way to force
// recomputation.
type CacheNames struct {
	CountriesCrop   string `json:"countries_crop,omitempty"`
	OWFCrop         string `json:"owf_crop,omitempty"`
	CoastlineCrop   string `json:"coastline_crop,omitempty"`
	MPACrop         string `json:"mpa_crop,omitempty"`
	SuitabilityCrop string `json:"suitability_crop,omitempty"`
	MPADistance     string `json:"mpa_distance,omitempty"`
	OWFDistance     string `json:"owf_distance,omitempty"`
	CoastDistance   string `json:"coast_distance,omitempty"`
	ColdSpots       string `json:"cold_spots,omitempty"`
	MPAPolygons     string `json:"mpa_polygons,omitempty"`
}

// Load reads a StudyConfig from a JSON file. Fields omitted from the
// file retain their defaults, so partial configs are safe.
func Load(path string) (*StudyConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &StudyConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *StudyConfig) Validate() error {
	required := []struct {
		name, value string
	}{
		{"suitability_path", c.SuitabilityPath},
		{"mpa_path", c.MPAPath},
		{"coastline_path", c.CoastlinePath},
		{"owf_path", c.OWFPath},
		{"countries_path", c.CountriesPath},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if c.LonMin >= c.LonMax {
		return fmt.Errorf("lon_min (%g) must be less than lon_max (%g)", c.LonMin, c.LonMax)
	}
	if c.LatMin >= c.LatMax {
		return fmt.Errorf("lat_min (%g) must be less than lat_max (%g)", c.LatMin, c.LatMax)
	}

	if c.MaxSuitability != nil && (*c.MaxSuitability < 0 || *c.MaxSuitability > 1) {
		return fmt.Errorf("max_suitability must be between 0 and 1, got %g", *c.MaxSuitability)
	}
	for name, v := range map[string]*float64{
		"mpa_min_distance_km":   c.MPAMinDistanceKM,
		"owf_min_distance_km":   c.OWFMinDistanceKM,
		"coast_min_distance_km": c.CoastMinDistanceKM,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", name, *v)
		}
	}

	if c.FigureDPI != nil && *c.FigureDPI <= 0 {
		return fmt.Errorf("figure_dpi must be positive, got %d", *c.FigureDPI)
	}

	return nil
}

// GetMaxSuitability returns the suitability limit or the default.
// Cells qualify only when suitability is strictly below this value.
func (c *StudyConfig) GetMaxSuitability() float64 {
	if c.MaxSuitability == nil {
		return 0.2
	}
	return *c.MaxSuitability
}

// GetMPAMinDistanceKM returns the MPA distance threshold or the default.
func (c *StudyConfig) GetMPAMinDistanceKM() float64 {
	if c.MPAMinDistanceKM == nil {
		return 7.0
	}
	return *c.MPAMinDistanceKM
}

// GetOWFMinDistanceKM returns the OWF distance threshold or the default.
func (c *StudyConfig) GetOWFMinDistanceKM() float64 {
	if c.OWFMinDistanceKM == nil {
		return 7.0
	}
	return *c.OWFMinDistanceKM
}

// GetCoastMinDistanceKM returns the coast distance threshold or the default.
func (c *StudyConfig) GetCoastMinDistanceKM() float64 {
	if c.CoastMinDistanceKM == nil {
		return 7.0
	}
	return *c.CoastMinDistanceKM
}

// GetSuitabilityRangeMax returns the suitability display cap or the default.
func (c *StudyConfig) GetSuitabilityRangeMax() float64 {
	if c.SuitabilityRangeMax == nil {
		return 1.0
	}
	return *c.SuitabilityRangeMax
}

// GetMPARangeMax returns the MPA-distance display cap (km) or the default.
func (c *StudyConfig) GetMPARangeMax() float64 {
	if c.MPARangeMax == nil {
		return 50.0
	}
	return *c.MPARangeMax
}

// GetOWFRangeMax returns the OWF-distance display cap (km) or the default.
func (c *StudyConfig) GetOWFRangeMax() float64 {
	if c.OWFRangeMax == nil {
		return 50.0
	}
	return *c.OWFRangeMax
}

// GetCoastRangeMax returns the coast-distance display cap (km) or the default.
func (c *StudyConfig) GetCoastRangeMax() float64 {
	if c.CoastRangeMax == nil {
		return 50.0
	}
	return *c.CoastRangeMax
}

// GetCacheDir returns the cache directory or the default.
func (c *StudyConfig) GetCacheDir() string {
	if c.CacheDir == "" {
		return "cache"
	}
	return c.CacheDir
}

// GetFigurePath returns the figure output path or the default.
func (c *StudyConfig) GetFigurePath() string {
	if c.FigurePath == "" {
		return "figures/coldspots.png"
	}
	return c.FigurePath
}

// GetFigureWidthIn returns the figure width in inches or the default.
func (c *StudyConfig) GetFigureWidthIn() float64 {
	if c.FigureWidthIn == nil {
		return 12.0
	}
	return *c.FigureWidthIn
}

// GetFigureHeightIn returns the figure height in inches or the default.
func (c *StudyConfig) GetFigureHeightIn() float64 {
	if c.FigureHeightIn == nil {
		return 6.0
	}
	return *c.FigureHeightIn
}

// GetFigureDPI returns the figure resolution or the default.
func (c *StudyConfig) GetFigureDPI() int {
	if c.FigureDPI == nil {
		return 150
	}
	return *c.FigureDPI
}

// PlotBounds returns the figure bounding box, falling back to the study
// bounding box for any side left unset.
func (c *StudyConfig) PlotBounds() (lonMin, lonMax, latMin, latMax float64) {
	lonMin, lonMax, latMin, latMax = c.LonMin, c.LonMax, c.LatMin, c.LatMax
	if c.PlotLonMin != nil {
		lonMin = *c.PlotLonMin
	}
	if c.PlotLonMax != nil {
		lonMax = *c.PlotLonMax
	}
	if c.PlotLatMin != nil {
		latMin = *c.PlotLatMin
	}
	if c.PlotLatMax != nil {
		latMax = *c.PlotLatMax
	}
	return lonMin, lonMax, latMin, latMax
}

// Get methods on CacheNames supply the default artifact file names.

// GetCountriesCrop returns the cached cropped-countries file name.
func (n CacheNames) GetCountriesCrop() string {
	return orDefault(n.CountriesCrop, "countries_crop.geojson")
}

// GetOWFCrop returns the cached cropped-OWF file name.
func (n CacheNames) GetOWFCrop() string {
	return orDefault(n.OWFCrop, "owf_crop.geojson")
}

// GetCoastlineCrop returns the cached cropped-coastline file name.
func (n CacheNames) GetCoastlineCrop() string {
	return orDefault(n.CoastlineCrop, "coastline_crop.asc")
}

// GetMPACrop returns the cached cropped-MPA file name.
func (n CacheNames) GetMPACrop() string {
	return orDefault(n.MPACrop, "mpa_crop.asc")
}

// GetSuitabilityCrop returns the cached cropped-suitability file name.
func (n CacheNames) GetSuitabilityCrop() string {
	return orDefault(n.SuitabilityCrop, "suitability_crop.asc")
}

// GetMPADistance returns the cached MPA-distance file name.
func (n CacheNames) GetMPADistance() string {
	return orDefault(n.MPADistance, "dist_mpa.asc")
}

// GetOWFDistance returns the cached OWF-distance file name.
func (n CacheNames) GetOWFDistance() string {
	return orDefault(n.OWFDistance, "dist_owf.asc")
}

// GetCoastDistance returns the cached coast-distance file name.
func (n CacheNames) GetCoastDistance() string {
	return orDefault(n.CoastDistance, "dist_coast.asc")
}

// GetColdSpots returns the cold-spot polygon file name.
func (n CacheNames) GetColdSpots() string {
	return orDefault(n.ColdSpots, "cold_spots.geojson")
}

// GetMPAPolygons returns the MPA polygon file name.
func (n CacheNames) GetMPAPolygons() string {
	return orDefault(n.MPAPolygons, "mpa_polygons.geojson")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
