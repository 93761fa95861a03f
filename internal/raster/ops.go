package raster

import "fmt"

// GreaterThan returns a binary grid: 1 where the cell value is strictly
// greater than t, 0 where it is not, nodata where the input is nodata.
// The comparison is strict so a cell exactly at a distance threshold
// fails the criterion.
func (g *Grid) GreaterThan(t float64) *Grid {
	out := g.shape()
	for i, v := range g.Cells {
		if g.IsNoData(v) {
			continue
		}
		if float64(v) > t {
			out.Cells[i] = 1
		} else {
			out.Cells[i] = 0
		}
	}
	return out
}

// LessThan returns a binary grid: 1 where the cell value is strictly
// less than t, 0 otherwise, nodata where the input is nodata. A cell
// exactly at the suitability limit is not classified as low risk.
func (g *Grid) LessThan(t float64) *Grid {
	out := g.shape()
	for i, v := range g.Cells {
		if g.IsNoData(v) {
			continue
		}
		if float64(v) < t {
			out.Cells[i] = 1
		} else {
			out.Cells[i] = 0
		}
	}
	return out
}

// Conjoin combines binary grids by per-cell multiplication: the logical
// AND of the criteria. A cell that is nodata in any input is nodata in
// the result, so missing data always fails, never silently passes.
func Conjoin(grids ...*Grid) (*Grid, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("conjoin requires at least one grid")
	}
	ref := grids[0]
	for i, g := range grids[1:] {
		if !ref.SameGeometry(g) {
			return nil, fmt.Errorf("conjoin: grid %d geometry differs from reference", i+1)
		}
	}

	out := ref.shape()
	for i := range out.Cells {
		prod := float32(1)
		ok := true
		for _, g := range grids {
			v := g.Cells[i]
			if g.IsNoData(v) {
				ok = false
				break
			}
			prod *= v
		}
		if ok {
			out.Cells[i] = prod
		}
	}
	return out, nil
}

// Scale multiplies every valid cell by f. Used to convert distance
// rasters from meters to kilometers.
func (g *Grid) Scale(f float64) *Grid {
	out := g.shape()
	for i, v := range g.Cells {
		if g.IsNoData(v) {
			continue
		}
		out.Cells[i] = float32(float64(v) * f)
	}
	return out
}

// ClampMax returns a copy with values above max set to max. This feeds
// figure color scales only; classification reads the unclamped grids.
func (g *Grid) ClampMax(max float64) *Grid {
	out := g.shape()
	m := float32(max)
	for i, v := range g.Cells {
		if g.IsNoData(v) {
			continue
		}
		if v > m {
			out.Cells[i] = m
		} else {
			out.Cells[i] = v
		}
	}
	return out
}

// OceanMask derives a 1/nodata mask from a reference raster: cells
// holding data are ocean and become 1, nodata cells stay nodata.
func (g *Grid) OceanMask() *Grid {
	out := g.shape()
	for i, v := range g.Cells {
		if !g.IsNoData(v) {
			out.Cells[i] = 1
		}
	}
	return out
}

// MaskBy blanks every cell where the mask is nodata or zero. Applied
// after the distance transform so land and out-of-bounds cells carry no
// distance value.
func (g *Grid) MaskBy(mask *Grid) (*Grid, error) {
	if !g.SameGeometry(mask) {
		return nil, fmt.Errorf("mask geometry differs from grid")
	}
	out := g.Clone()
	nd := float32(out.NoData)
	for i, m := range mask.Cells {
		if mask.IsNoData(m) || m == 0 {
			out.Cells[i] = nd
		}
	}
	return out, nil
}

// CountNonZero returns the number of valid, nonzero cells. Used for the
// criteria-coverage report and for detecting empty classifier results.
func (g *Grid) CountNonZero() int {
	n := 0
	for _, v := range g.Cells {
		if !g.IsNoData(v) && v != 0 {
			n++
		}
	}
	return n
}
