// Package figure renders the publication figure: heatmap panels of the
// classifier layers with polygon overlays and a legend, composed side by
// side into a single PNG.
package figure

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
)

// Overlay is a polygon layer drawn on top of a panel's heatmap. A nil
// Fill draws outlines only.
type Overlay struct {
	Name  string
	Polys orb.MultiPolygon
	Line  color.Color
	Fill  color.Color
}

// Panel is one heatmap panel with its overlays. RangeMax fixes the top
// of the color scale so panels stay comparable across runs; cell values
// above it are expected to be clamped by the caller.
type Panel struct {
	Title    string
	Grid     *raster.Grid
	RangeMax float64
	Overlays []Overlay
	// XMin/XMax/YMin/YMax bound the panel's axes; zero values fall back
	// to the grid's extent.
	XMin, XMax float64
	YMin, YMax float64
}

// Options controls the output image geometry.
type Options struct {
	WidthIn  float64
	HeightIn float64
	DPI      int
}

// Render composes the panels left to right into one PNG.
func Render(panels []Panel, opts Options) ([]byte, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("no panels to render")
	}

	plots := make([]*plot.Plot, len(panels))
	for i, pn := range panels {
		p, err := buildPanel(pn)
		if err != nil {
			return nil, fmt.Errorf("panel %q: %w", pn.Title, err)
		}
		plots[i] = p
	}

	w := vg.Length(opts.WidthIn) * vg.Inch
	h := vg.Length(opts.HeightIn) * vg.Inch
	img := vgimg.NewWith(
		vgimg.UseWH(w, h),
		vgimg.UseDPI(opts.DPI),
	)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(plots),
		PadX: vg.Millimeter * 2,
		PadY: vg.Millimeter * 2,
	}
	aligned := make([][]*plot.Plot, 1)
	aligned[0] = plots
	canvases := plot.Align(aligned, tiles, dc)
	for i, p := range plots {
		p.Draw(canvases[0][i])
	}

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode figure: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderLayer renders a single grid as a standalone diagnostic image.
func RenderLayer(title string, g *raster.Grid, rangeMax float64, opts Options) ([]byte, error) {
	return Render([]Panel{{Title: title, Grid: g, RangeMax: rangeMax}}, opts)
}

func buildPanel(pn Panel) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = pn.Title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	hm := plotter.NewHeatMap(gridValues{pn.Grid}, coldPalette())
	hm.Min = 0
	hm.Max = pn.RangeMax
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	hm.NaN = color.Transparent
	p.Add(hm)

	for _, ov := range pn.Overlays {
		first := true
		for _, poly := range ov.Polys {
			pg, err := newPolygon(poly, ov)
			if err != nil {
				return nil, fmt.Errorf("overlay %q: %w", ov.Name, err)
			}
			p.Add(pg)
			if first && ov.Name != "" {
				p.Legend.Add(ov.Name, pg)
				first = false
			}
		}
		// Empty layers still get a legend entry so the reader can see
		// the layer was considered and came up empty.
		if first && ov.Name != "" {
			pg, err := plotter.NewPolygon(emptyRing{})
			if err != nil {
				return nil, fmt.Errorf("overlay %q: %w", ov.Name, err)
			}
			pg.Color = ov.Fill
			pg.LineStyle.Color = ov.Line
			p.Legend.Add(ov.Name, pg)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10

	b := pn.Grid.Bound()
	p.X.Min, p.X.Max = b.Min[0], b.Max[0]
	p.Y.Min, p.Y.Max = b.Min[1], b.Max[1]
	if pn.XMax > pn.XMin {
		p.X.Min, p.X.Max = pn.XMin, pn.XMax
	}
	if pn.YMax > pn.YMin {
		p.Y.Min, p.Y.Max = pn.YMin, pn.YMax
	}
	return p, nil
}

func newPolygon(poly orb.Polygon, ov Overlay) (*plotter.Polygon, error) {
	rings := make([]plotter.XYer, len(poly))
	for i, r := range poly {
		rings[i] = ringXYs(r)
	}
	pg, err := plotter.NewPolygon(rings...)
	if err != nil {
		return nil, err
	}
	pg.Color = ov.Fill
	pg.LineStyle.Color = ov.Line
	pg.LineStyle.Width = vg.Points(1)
	if ov.Line == nil {
		pg.LineStyle.Width = 0
	}
	return pg, nil
}

// ringXYs adapts an orb.Ring to plotter.XYer.
type ringXYs orb.Ring

func (r ringXYs) Len() int                { return len(r) }
func (r ringXYs) XY(i int) (x, y float64) { return r[i][0], r[i][1] }

type emptyRing struct{}

func (emptyRing) Len() int              { return 0 }
func (emptyRing) XY(int) (x, y float64) { return 0, 0 }

// gridValues adapts a raster.Grid to plotter.GridXYZ. HeatMap indexes
// rows bottom-up, so row 0 here is the grid's southernmost row.
type gridValues struct {
	g *raster.Grid
}

func (gv gridValues) Dims() (c, r int) { return gv.g.Cols, gv.g.Rows }

func (gv gridValues) X(c int) float64 {
	x, _ := gv.g.CellCenter(0, c)
	return x
}

func (gv gridValues) Y(r int) float64 {
	_, y := gv.g.CellCenter(gv.g.Rows-1-r, 0)
	return y
}

func (gv gridValues) Z(c, r int) float64 {
	v := gv.g.At(gv.g.Rows-1-r, c)
	if gv.g.IsNoData(v) {
		return math.NaN()
	}
	return float64(v)
}
