package raster

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Rasters persist as ESRI ASCII grids: a six-line header followed by
// rows of cell values, north to south. The CRS travels in a standard
// .prj sidecar handled by the artifact store. Continuous layers round-
// trip through float32; binary/categorical layers are written as small
// integers.

// Encode serialises the grid in ESRI ASCII grid format.
func Encode(g *Grid) ([]byte, error) {
	if g.Cols <= 0 || g.Rows <= 0 {
		return nil, fmt.Errorf("cannot encode empty grid (%dx%d)", g.Cols, g.Rows)
	}
	if len(g.Cells) != g.Cols*g.Rows {
		return nil, fmt.Errorf("cell count %d does not match %dx%d grid", len(g.Cells), g.Cols, g.Rows)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "NCOLS %d\n", g.Cols)
	fmt.Fprintf(&buf, "NROWS %d\n", g.Rows)
	fmt.Fprintf(&buf, "XLLCORNER %s\n", formatCoord(g.XMin))
	fmt.Fprintf(&buf, "YLLCORNER %s\n", formatCoord(g.YMin))
	fmt.Fprintf(&buf, "CELLSIZE %s\n", formatCoord(g.CellSize))
	fmt.Fprintf(&buf, "NODATA_VALUE %s\n", formatCoord(g.NoData))

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(strconv.FormatFloat(float64(g.At(row, col)), 'g', -1, 32))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Decode parses an ESRI ASCII grid. The CRS field is left empty; the
// caller supplies it from the .prj sidecar when one exists.
func Decode(data []byte) (*Grid, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	header := map[string]float64{}
	order := []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value"}
	for _, key := range order {
		line, err := nextLine(sc)
		if err != nil {
			return nil, fmt.Errorf("reading header field %s: %w", key, err)
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || !strings.EqualFold(fields[0], key) {
			return nil, fmt.Errorf("malformed header line %q, expected %s", line, key)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing header field %s: %w", key, err)
		}
		header[key] = v
	}

	cols := int(header["ncols"])
	rows := int(header["nrows"])
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", cols, rows)
	}

	g := New(cols, rows, header["xllcorner"], header["yllcorner"], header["cellsize"])
	g.NoData = header["nodata_value"]
	g.CRS = ""

	i := 0
	for sc.Scan() {
		for _, tok := range strings.Fields(sc.Text()) {
			if i >= cols*rows {
				return nil, fmt.Errorf("more than %d cell values in %dx%d grid", cols*rows, cols, rows)
			}
			v, err := strconv.ParseFloat(tok, 32)
			if err != nil {
				return nil, fmt.Errorf("parsing cell %d: %w", i, err)
			}
			g.Cells[i] = float32(v)
			i++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading cell values: %w", err)
	}
	if i != cols*rows {
		return nil, fmt.Errorf("got %d cell values, want %d", i, cols*rows)
	}
	return g, nil
}

func nextLine(sc *bufio.Scanner) (string, error) {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", io.ErrUnexpectedEOF
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
