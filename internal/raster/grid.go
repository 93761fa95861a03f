// Package raster provides the grid type shared by every pipeline stage:
// a row-major float32 raster with a geographic extent, square cells and a
// nodata sentinel, plus the crop, resample, threshold and distance
// operations the cold-spot criteria are built from.
//
// All rasters entering the classifier must share an identical grid
// (extent, cell size, CRS). Reprojection and resampling happen in the
// preparation stage only, never silently downstream.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultNoData is the sentinel written for cells without a value.
const DefaultNoData = -9999.0

// WGS84 is the well-known text for the lon/lat coordinate reference
// system all input layers are expected to use.
const WGS84 = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`

// geomTolerance is the slack allowed when comparing grid geometries.
// Corner coordinates that differ by less than this fraction of a cell
// are considered aligned.
const geomTolerance = 1e-6

// Grid is a 2-D raster over a geographic extent. Cells are stored
// row-major with row 0 at the northern edge, matching the ESRI ASCII
// grid layout used for persistence.
type Grid struct {
	Cols, Rows int

	// XMin, YMin locate the lower-left corner of the lower-left cell.
	XMin, YMin float64

	// CellSize is the cell edge length in CRS units (degrees for WGS84).
	// Cells are square.
	CellSize float64

	// NoData is the sentinel value marking cells without data.
	NoData float64

	// CRS is the coordinate reference system as well-known text.
	CRS string

	Cells []float32
}

// New creates a grid with every cell initialised to nodata.
func New(cols, rows int, xMin, yMin, cellSize float64) *Grid {
	g := &Grid{
		Cols:     cols,
		Rows:     rows,
		XMin:     xMin,
		YMin:     yMin,
		CellSize: cellSize,
		NoData:   DefaultNoData,
		CRS:      WGS84,
		Cells:    make([]float32, cols*rows),
	}
	nd := float32(g.NoData)
	for i := range g.Cells {
		g.Cells[i] = nd
	}
	return g
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Cells = make([]float32, len(g.Cells))
	copy(out.Cells, g.Cells)
	return &out
}

// shape returns a copy of the grid's geometry with freshly allocated
// cells, all nodata.
func (g *Grid) shape() *Grid {
	out := *g
	out.Cells = make([]float32, len(g.Cells))
	nd := float32(g.NoData)
	for i := range out.Cells {
		out.Cells[i] = nd
	}
	return &out
}

// XMax returns the eastern edge of the grid.
func (g *Grid) XMax() float64 { return g.XMin + float64(g.Cols)*g.CellSize }

// YMax returns the northern edge of the grid.
func (g *Grid) YMax() float64 { return g.YMin + float64(g.Rows)*g.CellSize }

// Bound returns the grid extent as an orb.Bound.
func (g *Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.XMin, g.YMin},
		Max: orb.Point{g.XMax(), g.YMax()},
	}
}

// At returns the value at the given row and column. Row 0 is north.
func (g *Grid) At(row, col int) float32 {
	return g.Cells[row*g.Cols+col]
}

// Set writes the value at the given row and column.
func (g *Grid) Set(row, col int, v float32) {
	g.Cells[row*g.Cols+col] = v
}

// IsNoData reports whether v is the grid's nodata sentinel. NaN values
// are treated as nodata as well.
func (g *Grid) IsNoData(v float32) bool {
	return v == float32(g.NoData) || math.IsNaN(float64(v))
}

// Valid reports whether the cell at row, col holds data.
func (g *Grid) Valid(row, col int) bool {
	return !g.IsNoData(g.At(row, col))
}

// CellCenter returns the CRS coordinates of a cell's center.
func (g *Grid) CellCenter(row, col int) (x, y float64) {
	x = g.XMin + (float64(col)+0.5)*g.CellSize
	y = g.YMax() - (float64(row)+0.5)*g.CellSize
	return x, y
}

// CellAt returns the row/column containing the CRS point, without bounds
// checking beyond clamping to the grid.
func (g *Grid) CellAt(x, y float64) (row, col int) {
	col = int(math.Floor((x - g.XMin) / g.CellSize))
	row = int(math.Floor((g.YMax() - y) / g.CellSize))
	if col < 0 {
		col = 0
	}
	if col >= g.Cols {
		col = g.Cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.Rows {
		row = g.Rows - 1
	}
	return row, col
}

// SameGeometry reports whether two grids share extent, cell size and CRS
// within tolerance. Rasters combined cell-wise must agree under this
// check.
func (g *Grid) SameGeometry(o *Grid) bool {
	if g.Cols != o.Cols || g.Rows != o.Rows {
		return false
	}
	tol := g.CellSize * geomTolerance
	if math.Abs(g.XMin-o.XMin) > tol || math.Abs(g.YMin-o.YMin) > tol {
		return false
	}
	if math.Abs(g.CellSize-o.CellSize) > tol {
		return false
	}
	return g.CRS == o.CRS
}

// Crop clips the grid to the given bound, snapping the window outward to
// cell boundaries so that cell geometry is preserved exactly (no
// resampling). The result is the intersection of the bound with the
// grid extent.
func (g *Grid) Crop(b orb.Bound) (*Grid, error) {
	colMin := int(math.Floor((b.Min[0] - g.XMin) / g.CellSize))
	colMax := int(math.Ceil((b.Max[0] - g.XMin) / g.CellSize))
	rowMin := int(math.Floor((g.YMax() - b.Max[1]) / g.CellSize))
	rowMax := int(math.Ceil((g.YMax() - b.Min[1]) / g.CellSize))

	if colMin < 0 {
		colMin = 0
	}
	if rowMin < 0 {
		rowMin = 0
	}
	if colMax > g.Cols {
		colMax = g.Cols
	}
	if rowMax > g.Rows {
		rowMax = g.Rows
	}

	cols := colMax - colMin
	rows := rowMax - rowMin
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("crop window %v does not intersect grid extent %v", b, g.Bound())
	}

	out := New(cols, rows, g.XMin+float64(colMin)*g.CellSize, g.YMax()-float64(rowMax)*g.CellSize, g.CellSize)
	out.NoData = g.NoData
	out.CRS = g.CRS
	for r := 0; r < rows; r++ {
		src := (r+rowMin)*g.Cols + colMin
		copy(out.Cells[r*cols:(r+1)*cols], g.Cells[src:src+cols])
	}
	return out, nil
}

// ResampleTo samples this grid onto the reference grid's geometry using
// nearest-neighbor lookup. Cells whose centers fall outside this grid's
// extent become nodata. Used when an input raster's grid disagrees with
// the reference; callers log that a resample occurred.
func (g *Grid) ResampleTo(ref *Grid) *Grid {
	out := ref.shape()
	out.NoData = g.NoData
	out.CRS = ref.CRS

	b := g.Bound()
	for row := 0; row < ref.Rows; row++ {
		for col := 0; col < ref.Cols; col++ {
			x, y := ref.CellCenter(row, col)
			if !b.Contains(orb.Point{x, y}) {
				continue
			}
			srcRow, srcCol := g.CellAt(x, y)
			out.Set(row, col, g.At(srcRow, srcCol))
		}
	}
	return out
}

// Stats summarises the grid's valid cells.
type Stats struct {
	Min, Max, Mean float64
	ValidCells     int
}

// Summary computes min/max/mean over valid cells. Returns a zero Stats
// when the grid holds no data.
func (g *Grid) Summary() Stats {
	vals := make([]float64, 0, len(g.Cells))
	for _, v := range g.Cells {
		if !g.IsNoData(v) {
			vals = append(vals, float64(v))
		}
	}
	if len(vals) == 0 {
		return Stats{}
	}
	return Stats{
		Min:        floats.Min(vals),
		Max:        floats.Max(vals),
		Mean:       stat.Mean(vals, nil),
		ValidCells: len(vals),
	}
}
