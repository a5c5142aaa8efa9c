/*
Copyright © 2019 the stulayers authors.
This file is part of stulayers.

stulayers is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

stulayers is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with stulayers.  If not, see <http://www.gnu.org/licenses/>.
*/

package stulayers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
)

// DefaultHeaderLines is the number of header lines in the STU layer grids.
const DefaultHeaderLines = 5

// Grid is a raster read from an ESRI ASCII grid file.
type Grid struct {
	// Header holds the numeric header entries keyed by their lower-case
	// names, e.g. "ncols", "nrows", "xllcorner", "cellsize".
	Header map[string]float64

	// Data holds the cell values in row-major order, with shape
	// [rows, cols]. Row 0 is the northernmost row.
	Data *sparse.DenseArray
}

// Shape returns the number of rows and columns in the grid.
func (g *Grid) Shape() (rows, cols int) {
	return g.Data.Shape[0], g.Data.Shape[1]
}

// ReadGridFile reads the ASCII grid at path. See ReadGrid.
func ReadGridFile(path string, headerLines int, t DType) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stulayers: opening grid: %v", err)
	}
	defer f.Close()
	g, err := ReadGrid(f, headerLines, t)
	if err != nil {
		return nil, fmt.Errorf("%v (file %s)", err, path)
	}
	return g, nil
}

// ReadGrid reads an ASCII grid from r. The first headerLines lines are
// treated as header; entries of the form "name value" are recorded in
// Grid.Header and anything else is skipped. The remaining non-blank
// lines are whitespace-separated cell values, one grid row per line.
// Each value is converted as if it were parsed as type t.
func ReadGrid(r io.Reader, headerLines int, t DType) (*Grid, error) {
	br := bufio.NewReader(r)
	g := &Grid{Header: make(map[string]float64)}

	lineNo := 0
	readLine := func() (string, error) {
		line, err := br.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		lineNo++
		return strings.TrimSpace(line), err
	}

	for i := 0; i < headerLines; i++ {
		line, err := readLine()
		if err != nil {
			return nil, fmt.Errorf("stulayers: reading grid header line %d: %v", lineNo, err)
		}
		f := strings.Fields(line)
		if len(f) != 2 {
			continue
		}
		if v, err := strconv.ParseFloat(f[1], 64); err == nil {
			g.Header[strings.ToLower(f[0])] = v
		}
	}

	var vals []float64
	rows, cols := 0, -1
	if nc, nr := int(g.Header["ncols"]), int(g.Header["nrows"]); nc > 0 && nr > 0 {
		vals = make([]float64, 0, nc*nr)
	}
	for {
		line, err := readLine()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("stulayers: reading grid line %d: %v", lineNo, err)
		}
		if line == "" {
			continue
		}
		f := strings.Fields(line)
		if cols < 0 {
			cols = len(f)
		} else if len(f) != cols {
			return nil, fmt.Errorf("stulayers: grid line %d has %d values but previous rows have %d",
				lineNo, len(f), cols)
		}
		for _, s := range f {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("stulayers: grid line %d: %v", lineNo, err)
			}
			vals = append(vals, t.cast(v))
		}
		rows++
	}
	if rows == 0 {
		return nil, fmt.Errorf("stulayers: grid contains no data")
	}

	g.Data = &sparse.DenseArray{Elements: vals, Shape: []int{rows, cols}}
	g.Data.Fix()
	return g, nil
}
