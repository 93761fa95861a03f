package raster

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the Earth's mean radius.
const EarthRadiusMeters = 6371000.0

// DistanceToData computes, for every cell, the Euclidean distance in
// meters to the nearest cell holding a valid, nonzero value. Feature
// cells themselves get distance 0. Grids with no feature cells produce
// an all-nodata result.
//
// Distances are planar, using the metric cell size at the grid's central
// latitude; adequate at regional study scale, and the deviation from
// great-circle distance is far below the kilometer-scale thresholds the
// criteria apply.
func (g *Grid) DistanceToData() *Grid {
	return g.distanceTo(func(row, col int) bool {
		v := g.At(row, col)
		return !g.IsNoData(v) && v != 0
	})
}

// DistanceToNoData computes, for every cell, the distance in meters to
// the nearest nodata cell. With an ocean raster as input this yields the
// distance from each ocean cell to the nearest land cell: land is where
// the ocean raster has no data, so distance grows offshore. Getting this
// polarity wrong would grow the distances inland instead.
func (g *Grid) DistanceToNoData() *Grid {
	return g.distanceTo(func(row, col int) bool {
		return g.IsNoData(g.At(row, col))
	})
}

func (g *Grid) distanceTo(isSource func(row, col int) bool) *Grid {
	dx, dy := g.MetricCellSize()

	f := make([]float64, g.Cols*g.Rows)
	any := false
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if isSource(row, col) {
				f[row*g.Cols+col] = 0
				any = true
			} else {
				f[row*g.Cols+col] = math.Inf(1)
			}
		}
	}

	out := g.shape()
	if !any {
		return out
	}

	sq := edt2D(f, g.Cols, g.Rows, dx, dy)
	for i, d := range sq {
		out.Cells[i] = float32(math.Sqrt(d))
	}
	return out
}

// MetricCellSize returns the cell edge lengths in meters along the x
// (east-west) and y (north-south) axes, evaluated at the grid's central
// latitude.
func (g *Grid) MetricCellSize() (dx, dy float64) {
	midLat := (g.YMin + g.YMax()) / 2
	midLon := (g.XMin + g.XMax()) / 2

	origin := s2.LatLngFromDegrees(midLat, midLon)
	east := s2.LatLngFromDegrees(midLat, midLon+g.CellSize)
	north := s2.LatLngFromDegrees(midLat+g.CellSize, midLon)

	dx = origin.Distance(east).Radians() * EarthRadiusMeters
	dy = origin.Distance(north).Radians() * EarthRadiusMeters
	return dx, dy
}

// edt2D computes the exact squared Euclidean distance transform of the
// sampled function f (0 at sources, +Inf elsewhere) with anisotropic
// sample spacing dx, dy, by the two-pass lower-envelope-of-parabolas
// algorithm (Felzenszwalb & Huttenlocher, 2012).
func edt2D(f []float64, cols, rows int, dx, dy float64) []float64 {
	// Pass 1: columns (north-south axis, spacing dy).
	colBuf := make([]float64, rows)
	for col := 0; col < cols; col++ {
		for row := 0; row < rows; row++ {
			colBuf[row] = f[row*cols+col]
		}
		transformed := edt1D(colBuf, dy)
		for row := 0; row < rows; row++ {
			f[row*cols+col] = transformed[row]
		}
	}

	// Pass 2: rows (east-west axis, spacing dx).
	for row := 0; row < rows; row++ {
		transformed := edt1D(f[row*cols:(row+1)*cols], dx)
		copy(f[row*cols:(row+1)*cols], transformed)
	}
	return f
}

// edt1D computes d(p) = min_q ((p-q)^2 h^2 + f(q)) for samples at
// positions i*h, using the lower envelope of parabolas.
func edt1D(f []float64, h float64) []float64 {
	n := len(f)
	d := make([]float64, n)
	v := make([]int, n)        // locations of parabolas in the envelope
	z := make([]float64, n+1)  // boundaries between parabolas
	x := func(i int) float64 { return float64(i) * h }

	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)

	for q := 1; q < n; q++ {
		if math.IsInf(f[q], 1) {
			continue
		}
		var s float64
		for {
			p := v[k]
			if math.IsInf(f[p], 1) {
				// The only parabola so far carries no finite value;
				// replace it outright.
				s = math.Inf(-1)
				break
			}
			s = ((f[q] + x(q)*x(q)) - (f[p] + x(p)*x(p))) / (2*x(q) - 2*x(p))
			if s > z[k] {
				break
			}
			k--
			if k < 0 {
				k = 0
				s = math.Inf(-1)
				break
			}
		}
		if math.IsInf(s, -1) {
			v[k] = q
			z[k] = math.Inf(-1)
			z[k+1] = math.Inf(1)
			continue
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < x(q) {
			k++
		}
		p := v[k]
		if math.IsInf(f[p], 1) {
			d[q] = math.Inf(1)
			continue
		}
		dq := x(q) - x(p)
		d[q] = dq*dq + f[p]
	}
	return d
}
