// Package vectorize converts binary raster masks into polygon feature
// collections and handles the polygon-side of layer preparation:
// bounding-box clipping and GeoJSON persistence.
package vectorize

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/raster"
)

// Mask polygonizes every valid, nonzero cell of the grid and dissolves
// the per-cell squares into a minimal set of disjoint polygons (holes
// included). Cells touching only at a corner become separate polygons.
// An all-zero mask yields an empty MultiPolygon, which is a valid
// result, not an error.
func Mask(g *raster.Grid) orb.MultiPolygon {
	return Polygonize(g, func(v float32) bool {
		return !g.IsNoData(v) && v > 0
	})
}

// Polygonize traces the boundary of all cells satisfying pass into
// polygons. Interior edges shared by two passing cells are never
// emitted, so the result carries no cell-grid seams by construction.
func Polygonize(g *raster.Grid, pass func(float32) bool) orb.MultiPolygon {
	passes := func(row, col int) bool {
		if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
			return false
		}
		return pass(g.At(row, col))
	}

	// Collect directed boundary edges, counterclockwise around each
	// passing cell, only for sides whose neighbor does not pass.
	edges := make(map[orb.Point][]orb.Point)
	addEdge := func(from, to orb.Point) {
		edges[from] = append(edges[from], to)
	}

	yMax := g.YMax()
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if !passes(row, col) {
				continue
			}
			x0 := g.XMin + float64(col)*g.CellSize
			x1 := x0 + g.CellSize
			y1 := yMax - float64(row)*g.CellSize
			y0 := y1 - g.CellSize

			if !passes(row+1, col) { // south side
				addEdge(orb.Point{x0, y0}, orb.Point{x1, y0})
			}
			if !passes(row, col+1) { // east side
				addEdge(orb.Point{x1, y0}, orb.Point{x1, y1})
			}
			if !passes(row-1, col) { // north side
				addEdge(orb.Point{x1, y1}, orb.Point{x0, y1})
			}
			if !passes(row, col-1) { // west side
				addEdge(orb.Point{x0, y1}, orb.Point{x0, y0})
			}
		}
	}

	rings := chainRings(edges)
	return assemblePolygons(rings)
}

// chainRings links directed edges into closed rings. Where two regions
// touch at a corner a vertex has two outgoing edges; taking the leftmost
// turn keeps each ring on its own region, so diagonal neighbors stay
// separate polygons.
func chainRings(edges map[orb.Point][]orb.Point) []orb.Ring {
	var rings []orb.Ring

	// Deterministic iteration order over start points.
	starts := make([]orb.Point, 0, len(edges))
	for p := range edges {
		starts = append(starts, p)
	}
	sort.Slice(starts, func(i, j int) bool {
		if starts[i][0] != starts[j][0] {
			return starts[i][0] < starts[j][0]
		}
		return starts[i][1] < starts[j][1]
	})

	for _, start := range starts {
		for len(edges[start]) > 0 {
			ring := orb.Ring{start}
			cur := start
			next := takeEdge(edges, cur, orb.Point{}, false)

			for next != start {
				prev := cur
				cur = next
				ring = append(ring, cur)
				dir := orb.Point{cur[0] - prev[0], cur[1] - prev[1]}
				next = takeEdge(edges, cur, dir, true)
			}
			ring = append(ring, start)
			rings = append(rings, dropCollinear(ring))
		}
	}
	return rings
}

// takeEdge removes and returns the target of an outgoing edge at p.
// With an incoming direction, the edge turning furthest left is chosen.
func takeEdge(edges map[orb.Point][]orb.Point, p orb.Point, inDir orb.Point, haveDir bool) orb.Point {
	out := edges[p]
	best := 0
	if haveDir && len(out) > 1 {
		bestCross := crossTurn(inDir, p, out[0])
		for i := 1; i < len(out); i++ {
			if c := crossTurn(inDir, p, out[i]); c > bestCross {
				bestCross = c
				best = i
			}
		}
	}
	target := out[best]
	edges[p] = append(out[:best], out[best+1:]...)
	if len(edges[p]) == 0 {
		delete(edges, p)
	}
	return target
}

// crossTurn scores the turn from the incoming direction onto the edge
// p->q; left turns score positive.
func crossTurn(inDir, p, q orb.Point) float64 {
	outDir := orb.Point{q[0] - p[0], q[1] - p[1]}
	return inDir[0]*outDir[1] - inDir[1]*outDir[0]
}

// dropCollinear removes vertices that sit on a straight run between
// their neighbors, shrinking the long axis-aligned edges that boundary
// tracing produces one cell at a time.
func dropCollinear(ring orb.Ring) orb.Ring {
	if len(ring) < 4 {
		return ring
	}
	// ring is closed: first == last.
	open := ring[:len(ring)-1]
	out := make(orb.Ring, 0, len(open))
	n := len(open)
	for i := 0; i < n; i++ {
		prev := open[(i-1+n)%n]
		cur := open[i]
		next := open[(i+1)%n]
		cross := (cur[0]-prev[0])*(next[1]-cur[1]) - (cur[1]-prev[1])*(next[0]-cur[0])
		if cross != 0 {
			out = append(out, cur)
		}
	}
	if len(out) < 3 {
		return ring
	}
	out = append(out, out[0])
	return out
}

// assemblePolygons splits rings into outer shells (counterclockwise,
// positive area) and holes, and attaches each hole to the shell that
// contains it.
func assemblePolygons(rings []orb.Ring) orb.MultiPolygon {
	var shells []orb.Ring
	var holes []orb.Ring
	for _, r := range rings {
		if planar.Area(r) >= 0 {
			shells = append(shells, r)
		} else {
			holes = append(holes, r)
		}
	}
	if len(shells) == 0 {
		return orb.MultiPolygon{}
	}

	// Deterministic output order: by lower-left corner of the shell.
	sort.Slice(shells, func(i, j int) bool {
		bi, bj := shells[i].Bound(), shells[j].Bound()
		if bi.Min[0] != bj.Min[0] {
			return bi.Min[0] < bj.Min[0]
		}
		return bi.Min[1] < bj.Min[1]
	})

	mp := make(orb.MultiPolygon, len(shells))
	for i, s := range shells {
		mp[i] = orb.Polygon{s}
	}

	for _, h := range holes {
		for i := range mp {
			if planar.RingContains(mp[i][0], h[0]) {
				mp[i] = append(mp[i], h)
				break
			}
		}
	}
	return mp
}
