package pipeline

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/figure"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/units"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/vectorize"
)

// Layers holds the prepared inputs the classifier consumes. All rasters
// share the cropped coastline's geometry; distances are in meters.
type Layers struct {
	Suitability *raster.Grid
	MPA         *raster.Grid
	Coastline   *raster.Grid
	Ocean       *raster.Grid
	DistMPA     *raster.Grid
	DistOWF     *raster.Grid
	DistCoast   *raster.Grid
	OWF         *geojson.FeatureCollection
	Countries   *geojson.FeatureCollection
}

// Prepare crops every input to the study bounding box, derives the ocean
// mask from the coastline raster, and computes the three ocean-masked
// distance rasters. Every artifact is cached by name; a missing input
// file is a fatal error.
func (p *Pipeline) Prepare() (*Layers, error) {
	const stage = "Prepare"
	names := p.cfg.Cache
	b := p.bound()

	// The cropped coastline is the reference geometry for everything else.
	coast, err := p.cachedRaster(stage, names.GetCoastlineCrop(), func() (*raster.Grid, error) {
		g, err := p.readRasterInput("coastline", p.cfg.CoastlinePath)
		if err != nil {
			return nil, err
		}
		return g.Crop(b)
	})
	if err != nil {
		return nil, err
	}

	suit, err := p.cachedRaster(stage, names.GetSuitabilityCrop(), func() (*raster.Grid, error) {
		g, err := p.readRasterInput("suitability", p.cfg.SuitabilityPath)
		if err != nil {
			return nil, err
		}
		return p.cropToRef(stage, "suitability", g, b, coast)
	})
	if err != nil {
		return nil, err
	}

	mpa, err := p.cachedRaster(stage, names.GetMPACrop(), func() (*raster.Grid, error) {
		g, err := p.readRasterInput("MPA", p.cfg.MPAPath)
		if err != nil {
			return nil, err
		}
		return p.cropToRef(stage, "MPA", g, b, coast)
	})
	if err != nil {
		return nil, err
	}

	for _, check := range []struct {
		name string
		g    *raster.Grid
	}{{names.GetSuitabilityCrop(), suit}, {names.GetMPACrop(), mpa}} {
		if !check.g.SameGeometry(coast) {
			return nil, fmt.Errorf("cached %s geometry differs from %s; delete the cache to recompute", check.name, names.GetCoastlineCrop())
		}
	}

	countries, err := p.cachedCollection(stage, names.GetCountriesCrop(), func() (*geojson.FeatureCollection, error) {
		fc, err := p.readCollectionInput("countries", p.cfg.CountriesPath)
		if err != nil {
			return nil, err
		}
		return vectorize.ClipCollection(fc, b), nil
	})
	if err != nil {
		return nil, err
	}

	owf, err := p.cachedCollection(stage, names.GetOWFCrop(), func() (*geojson.FeatureCollection, error) {
		fc, err := p.readCollectionInput("OWF", p.cfg.OWFPath)
		if err != nil {
			return nil, err
		}
		return vectorize.ClipCollection(fc, b), nil
	})
	if err != nil {
		return nil, err
	}

	ocean := coast.OceanMask()

	distMPA, err := p.cachedRaster(stage, names.GetMPADistance(), func() (*raster.Grid, error) {
		return mpa.DistanceToData().MaskBy(ocean)
	})
	if err != nil {
		return nil, err
	}

	distOWF, err := p.cachedRaster(stage, names.GetOWFDistance(), func() (*raster.Grid, error) {
		burned := vectorize.Rasterize(vectorize.CollectPolygons(owf), coast)
		return burned.DistanceToData().MaskBy(ocean)
	})
	if err != nil {
		return nil, err
	}

	distCoast, err := p.cachedRaster(stage, names.GetCoastDistance(), func() (*raster.Grid, error) {
		// Distance grows offshore: from each ocean cell to the nearest
		// land (nodata) cell.
		return coast.DistanceToNoData().MaskBy(ocean)
	})
	if err != nil {
		return nil, err
	}

	layers := &Layers{
		Suitability: suit,
		MPA:         mpa,
		Coastline:   coast,
		Ocean:       ocean,
		DistMPA:     distMPA,
		DistOWF:     distOWF,
		DistCoast:   distCoast,
		OWF:         owf,
		Countries:   countries,
	}

	if p.cfg.Diagnostics {
		p.writeLayerDiagnostics(layers)
	}
	return layers, nil
}

func (p *Pipeline) bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{p.cfg.LonMin, p.cfg.LatMin},
		Max: orb.Point{p.cfg.LonMax, p.cfg.LatMax},
	}
}

// cropToRef crops a raster to the bounding box and resamples it onto the
// reference geometry when the grids do not line up. Resampling is logged
// so silent regridding never hides an input mismatch.
func (p *Pipeline) cropToRef(stage, what string, g *raster.Grid, b orb.Bound, ref *raster.Grid) (*raster.Grid, error) {
	cropped, err := g.Crop(b)
	if err != nil {
		return nil, fmt.Errorf("crop %s: %w", what, err)
	}
	if cropped.SameGeometry(ref) {
		return cropped, nil
	}
	log.Printf("[%s] resampling %s raster onto the coastline grid (%dx%d @ %g)", stage, what, ref.Cols, ref.Rows, ref.CellSize)
	return cropped.ResampleTo(ref), nil
}

func (p *Pipeline) readRasterInput(what, path string) (*raster.Grid, error) {
	data, err := p.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s input %s: %w", what, path, err)
	}
	g, err := raster.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s input %s: %w", what, path, err)
	}

	// Inputs carry their CRS in a .prj sidecar, same as cache artifacts.
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if p.fs.Exists(prj) {
		crs, err := p.fs.ReadFile(prj)
		if err != nil {
			return nil, fmt.Errorf("read %s CRS sidecar %s: %w", what, prj, err)
		}
		g.CRS = strings.TrimSpace(string(crs))
	}
	return g, nil
}

func (p *Pipeline) readCollectionInput(what, path string) (*geojson.FeatureCollection, error) {
	data, err := p.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s input %s: %w", what, path, err)
	}
	fc, err := vectorize.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s input %s: %w", what, path, err)
	}
	return fc, nil
}

// writeLayerDiagnostics logs per-layer statistics and renders each
// prepared raster as a standalone image in the cache directory.
// Diagnostics are best-effort.
func (p *Pipeline) writeLayerDiagnostics(l *Layers) {
	opts := figure.Options{WidthIn: 8, HeightIn: 6, DPI: 96}
	meters := units.Label(units.Meters)
	diag := []struct {
		name     string
		title    string
		g        *raster.Grid
		rangeMax float64
	}{
		{"diag_suitability.png", "Suitability", l.Suitability, p.cfg.GetSuitabilityRangeMax()},
		{"diag_dist_mpa.png", "MPA " + meters, l.DistMPA, units.KilometersToMeters(p.cfg.GetMPARangeMax())},
		{"diag_dist_owf.png", "OWF " + meters, l.DistOWF, units.KilometersToMeters(p.cfg.GetOWFRangeMax())},
		{"diag_dist_coast.png", "Coast " + meters, l.DistCoast, units.KilometersToMeters(p.cfg.GetCoastRangeMax())},
	}
	for _, d := range diag {
		s := d.g.Summary()
		log.Printf("[Prepare] %s: min=%.3f max=%.3f mean=%.3f cells=%d", d.title, s.Min, s.Max, s.Mean, s.ValidCells)

		img, err := figure.RenderLayer(d.title, d.g, d.rangeMax, opts)
		if err != nil {
			log.Printf("[Prepare] diagnostic %s: %v", d.name, err)
			continue
		}
		if err := p.fs.WriteFile(p.st.Path(d.name), img, 0o644); err != nil {
			log.Printf("[Prepare] write diagnostic %s: %v", d.name, err)
		}
	}
}
