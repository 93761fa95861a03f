package pipeline

import (
	"fmt"
	"image/color"
	"log"
	"path/filepath"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/figure"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/vectorize"
)

var (
	countriesFill = color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}
	countriesLine = color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xff}
	owfLine       = color.RGBA{R: 0xe6, G: 0x7e, B: 0x22, A: 0xff}
	mpaLine       = color.RGBA{R: 0x1e, G: 0x84, B: 0x4c, A: 0xff}
	coldFill      = color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0x90}
	coldLine      = color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff}
)

// RenderFigure writes the two-panel figure: panel "a" over the full
// study extent, panel "b" zoomed to the configured plot bounds. An
// existing figure file is reused, like any other cached artifact.
func (p *Pipeline) RenderFigure(l *Layers, c *Classified) error {
	const stage = "Figure"
	path := p.cfg.GetFigurePath()

	if p.fs.Exists(path) {
		log.Printf("[%s] using existing %s", stage, path)
		p.hits++
		return nil
	}
	p.misses++

	data, err := figure.Render(p.panels(l, c), figure.Options{
		WidthIn:  p.cfg.GetFigureWidthIn(),
		HeightIn: p.cfg.GetFigureHeightIn(),
		DPI:      p.cfg.GetFigureDPI(),
	})
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create figure dir: %w", err)
		}
	}
	if err := p.fs.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write figure: %w", err)
	}
	log.Printf("[%s] wrote %s", stage, path)
	return nil
}

func (p *Pipeline) panels(l *Layers, c *Classified) []figure.Panel {
	countries := figure.Overlay{Name: "Countries", Polys: vectorize.CollectPolygons(l.Countries), Line: countriesLine, Fill: countriesFill}
	coldSpots := figure.Overlay{Name: "Cold spots", Polys: vectorize.CollectPolygons(c.ColdSpots), Line: coldLine, Fill: coldFill}

	// Panel a carries the full layer context; panel b is the cold-spot
	// view, keeping only the country outlines for orientation.
	overlaysA := []figure.Overlay{
		countries,
		{Name: "OWF", Polys: vectorize.CollectPolygons(l.OWF), Line: owfLine},
		{Name: "MPA", Polys: vectorize.CollectPolygons(c.MPAPolys), Line: mpaLine},
		coldSpots,
	}
	overlaysB := []figure.Overlay{countries, coldSpots}

	lonMin, lonMax, latMin, latMax := p.cfg.PlotBounds()
	return []figure.Panel{
		{
			Title:    "a",
			Grid:     c.Display.Suitability,
			RangeMax: p.cfg.GetSuitabilityRangeMax(),
			Overlays: overlaysA,
		},
		{
			Title:    "b",
			Grid:     c.Display.Suitability,
			RangeMax: p.cfg.GetSuitabilityRangeMax(),
			Overlays: overlaysB,
			XMin:     lonMin,
			XMax:     lonMax,
			YMin:     latMin,
			YMax:     latMax,
		},
	}
}
