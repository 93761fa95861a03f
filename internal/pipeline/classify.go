package pipeline

import (
	"fmt"
	"log"

	"github.com/paulmach/orb/geojson"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/report"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/units"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/vectorize"
)

// DisplayLayers are clamped copies for rendering only. Classification
// reads the unclamped grids; these never feed back into pass/fail logic.
type DisplayLayers struct {
	Suitability *raster.Grid
	DistMPAKM   *raster.Grid
	DistOWFKM   *raster.Grid
	DistCoastKM *raster.Grid
}

// Classified is the output of the cold-spot classifier.
type Classified struct {
	ColdSpots  *geojson.FeatureCollection
	MPAPolys   *geojson.FeatureCollection
	Combined   *raster.Grid
	Display    DisplayLayers
	Counts     []report.CriterionCount
	OceanCells int
}

// Classify builds the four binary criteria, conjoins them, and persists
// the resulting cold-spot polygons plus the dissolved MPA polygons. Zero
// passing cells is a valid result: an explicitly empty collection.
func (p *Pipeline) Classify(l *Layers) (*Classified, error) {
	const stage = "Classify"
	names := p.cfg.Cache

	mpaKM := l.DistMPA.Scale(1.0 / units.MetersPerKilometer)
	owfKM := l.DistOWF.Scale(1.0 / units.MetersPerKilometer)
	coastKM := l.DistCoast.Scale(1.0 / units.MetersPerKilometer)

	// The distance rasters are already ocean-masked; masking the
	// suitability criterion too keeps every criterion defined over the
	// same ocean cells.
	suitC, err := l.Suitability.LessThan(p.cfg.GetMaxSuitability()).MaskBy(l.Ocean)
	if err != nil {
		return nil, fmt.Errorf("mask suitability criterion: %w", err)
	}
	mpaC := mpaKM.GreaterThan(p.cfg.GetMPAMinDistanceKM())
	owfC := owfKM.GreaterThan(p.cfg.GetOWFMinDistanceKM())
	coastC := coastKM.GreaterThan(p.cfg.GetCoastMinDistanceKM())

	combined, err := raster.Conjoin(suitC, mpaC, owfC, coastC)
	if err != nil {
		return nil, fmt.Errorf("conjoin criteria: %w", err)
	}

	coldCount := combined.CountNonZero()
	if coldCount == 0 {
		log.Printf("[%s] no cells satisfied all criteria", stage)
	} else {
		log.Printf("[%s] %d cells satisfied all criteria", stage, coldCount)
	}

	coldSpots, err := p.cachedCollection(stage, names.GetColdSpots(), func() (*geojson.FeatureCollection, error) {
		mp := vectorize.Mask(combined)
		return vectorize.ToFeatureCollection(mp, map[string]interface{}{
			"layer": "cold_spots",
		}), nil
	})
	if err != nil {
		return nil, err
	}

	mpaPolys, err := p.cachedCollection(stage, names.GetMPAPolygons(), func() (*geojson.FeatureCollection, error) {
		mp := vectorize.Mask(l.MPA)
		return vectorize.ToFeatureCollection(mp, map[string]interface{}{
			"layer": "mpa",
		}), nil
	})
	if err != nil {
		return nil, err
	}

	return &Classified{
		ColdSpots: coldSpots,
		MPAPolys:  mpaPolys,
		Combined:  combined,
		Display: DisplayLayers{
			Suitability: l.Suitability.ClampMax(p.cfg.GetSuitabilityRangeMax()),
			DistMPAKM:   mpaKM.ClampMax(p.cfg.GetMPARangeMax()),
			DistOWFKM:   owfKM.ClampMax(p.cfg.GetOWFRangeMax()),
			DistCoastKM: coastKM.ClampMax(p.cfg.GetCoastRangeMax()),
		},
		Counts: []report.CriterionCount{
			{Name: "suitability", Passing: suitC.CountNonZero()},
			{Name: "dist_mpa", Passing: mpaC.CountNonZero()},
			{Name: "dist_owf", Passing: owfC.CountNonZero()},
			{Name: "dist_coast", Passing: coastC.CountNonZero()},
			{Name: "cold_spots", Passing: coldCount},
		},
		OceanCells: l.Ocean.CountNonZero(),
	}, nil
}
