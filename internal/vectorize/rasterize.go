package vectorize

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
)

// Rasterize burns polygons onto the reference grid's geometry: 1 where a
// cell center falls inside a polygon, 0 elsewhere. The zeros are valid
// cells, so the result feeds the distance transform directly.
func Rasterize(mp orb.MultiPolygon, ref *raster.Grid) *raster.Grid {
	out := raster.New(ref.Cols, ref.Rows, ref.XMin, ref.YMin, ref.CellSize)
	out.CRS = ref.CRS
	for i := range out.Cells {
		out.Cells[i] = 0
	}

	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		b := poly.Bound()
		rowMax, colMin := out.CellAt(b.Min[0], b.Min[1])
		rowMin, colMax := out.CellAt(b.Max[0], b.Max[1])
		rowMin = clampInt(rowMin, 0, out.Rows-1)
		rowMax = clampInt(rowMax, 0, out.Rows-1)
		colMin = clampInt(colMin, 0, out.Cols-1)
		colMax = clampInt(colMax, 0, out.Cols-1)

		for row := rowMin; row <= rowMax; row++ {
			for col := colMin; col <= colMax; col++ {
				x, y := out.CellCenter(row, col)
				if planar.PolygonContains(poly, orb.Point{x, y}) {
					out.Set(row, col, 1)
				}
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
