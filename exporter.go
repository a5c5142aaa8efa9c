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
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// GridDef locates the cells of a container in the projected source
// coordinate system.
type GridDef struct {
	// Xll and Yll are the coordinates of the lower-left corner of
	// the lower-left cell.
	Xll, Yll float64

	CellSize float64

	// Rows is the total number of rows of the grid.
	Rows int
}

// EUGrid is the 1 km ETRS89-LAEA grid of the European STU layers.
var EUGrid = GridDef{Xll: 1500000, Yll: 900000, CellSize: 1000, Rows: 4600}

// Center returns the projected coordinates of the center of the cell
// at row and col. Row 0 is the northernmost row.
func (g GridDef) Center(row, col int) (x, y float64) {
	xllCenter := g.Xll + g.CellSize/2
	yllCenter := g.Yll + g.CellSize/2
	yulCenter := yllCenter + float64(g.Rows-1)*g.CellSize
	return xllCenter + float64(col)*g.CellSize, yulCenter - float64(row)*g.CellSize
}

// Default export bounds.
const (
	DefaultStartRow  = 83
	DefaultColMargin = 500
)

// CSVHeader is the header line of the exported table.
var CSVHeader = []string{"col", "row", "elevation", "latitude", "longitude", "depth",
	"OC_topsoil", "OC_subsoil", "BD_topsoil", "BD_subsoil",
	"Sand_topsoil", "Clay_topsoil", "Silt_topsoil",
	"Sand_subsoil", "Clay_subsoil", "Silt_subsoil"}

// Record is one exported cell.
type Record struct {
	Col, Row  int
	Elevation int
	Lat, Lon  float64

	// Depth is the depth available to roots.
	Depth float64

	// OCTop and OCSub are the organic carbon contents.
	OCTop, OCSub float64

	// BDTop and BDSub are the stored bulk densities. They are not
	// scaled back into physical units.
	BDTop, BDSub int

	SandTop, ClayTop, SiltTop int
	SandSub, ClaySub, SiltSub int
}

// Strings returns the CSV fields of r in CSVHeader order.
func (r Record) Strings() []string {
	i := strconv.Itoa
	return []string{
		i(r.Col), i(r.Row), i(r.Elevation),
		formatFloat(r.Lat), formatFloat(r.Lon),
		formatFloat(r.Depth), formatFloat(r.OCTop), formatFloat(r.OCSub),
		i(r.BDTop), i(r.BDSub),
		i(r.SandTop), i(r.ClayTop), i(r.SiltTop),
		i(r.SandSub), i(r.ClaySub), i(r.SiltSub),
	}
}

// Exporter flattens the allocated cells of a Container into CSV records.
type Exporter struct {
	Grid GridDef

	// StartRow is the first exported row.
	StartRow int

	// ColMargin is the number of trailing columns that are not
	// exported.
	ColMargin int

	// Transform converts projected cell centers into longitude and
	// latitude.
	Transform proj.Transformer

	// Log receives progress messages. If nil, the logrus standard
	// logger is used.
	Log logrus.FieldLogger
}

// NewExporter returns an Exporter for the European STU layer grid that
// reprojects from ETRS89-LAEA to WGS 84.
func NewExporter() (*Exporter, error) {
	t, err := NewTransformer(ETRS89LAEA, WGS84)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		Grid:      EUGrid,
		StartRow:  DefaultStartRow,
		ColMargin: DefaultColMargin,
		Transform: t,
	}, nil
}

func (e *Exporter) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// exportArrays lists the arrays read for every exported row, in the order
// they are assigned in Exporter.Records.
var exportArrays = [][2]string{
	{General, "depth_roots"},
	{Top, "corg"}, {Sub, "corg"},
	{Top, "bulk_density"}, {Sub, "bulk_density"},
	{Top, "sand"}, {Top, "clay"}, {Top, "silt"},
	{Sub, "sand"}, {Sub, "clay"}, {Sub, "silt"},
}

// Records calls fn with the record of every cell in the export bounds
// whose allocation mask value is 1, in row-major order.
func (e *Exporter) Records(ctx context.Context, c *Container, fn func(Record) error) error {
	log := e.log()
	rows, cols := c.Shape()
	colEnd := cols - e.ColMargin
	if colEnd > cols {
		colEnd = cols
	}
	for _, a := range exportArrays {
		if !c.Has(a[0], a[1]) {
			return fmt.Errorf("stulayers: export: container %s has no array %s", c.Path(), VarName(a[0], a[1]))
		}
	}
	start := e.StartRow
	if start < 0 {
		start = 0
	}

	vals := make([][]int, len(exportArrays))
	for row := start; row < rows; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		mask, err := c.Row(General, "stu_allocation", row)
		if err != nil {
			return fmt.Errorf("stulayers: export: %v", err)
		}
		var cells []int
		for col := 0; col < colEnd; col++ {
			if mask[col] == 1 {
				cells = append(cells, col)
			}
		}
		log.WithFields(logrus.Fields{"row": row, "cells": len(cells)}).Info("exporting row")
		if len(cells) == 0 {
			continue
		}
		for i, a := range exportArrays {
			if vals[i], err = c.Row(a[0], a[1], row); err != nil {
				return fmt.Errorf("stulayers: export: %v", err)
			}
		}
		for _, col := range cells {
			x, y := e.Grid.Center(row, col)
			lon, lat, err := e.Transform(x, y)
			if err != nil {
				return fmt.Errorf("stulayers: export: reprojecting row %d col %d (%g, %g): %v", row, col, x, y, err)
			}
			r := Record{
				Col:     col,
				Row:     row,
				Lat:     roundDecimal(lat, 4),
				Lon:     roundDecimal(lon, 4),
				Depth:   floats.RoundEven(float64(vals[0][col])/100, 2),
				OCTop:   floats.RoundEven(float64(vals[1][col])/100, 4),
				OCSub:   floats.RoundEven(float64(vals[2][col])/100, 4),
				BDTop:   vals[3][col],
				BDSub:   vals[4][col],
				SandTop: vals[5][col],
				ClayTop: vals[6][col],
				SiltTop: vals[7][col],
				SandSub: vals[8][col],
				ClaySub: vals[9][col],
				SiltSub: vals[10][col],
			}
			if err := fn(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// Export writes the records of c to w as CSV, without a header line, and
// returns the number of records written.
func (e *Exporter) Export(ctx context.Context, c *Container, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	n := 0
	err := e.Records(ctx, c, func(r Record) error {
		n++
		return cw.Write(r.Strings())
	})
	cw.Flush()
	if err != nil {
		return n, err
	}
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("stulayers: writing csv: %v", err)
	}
	return n, nil
}

// ExportFile appends the records of c to the CSV file at path. The header
// line is written only if the file does not exist yet. Records are never
// deduplicated, so exporting twice into the same file repeats them.
// Lines end with "\n", not "\r\n".
func (e *Exporter) ExportFile(ctx context.Context, c *Container, path string) error {
	start := time.Now()
	_, err := os.Stat(path)
	isNew := os.IsNotExist(err)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("stulayers: opening output file: %v", err)
	}
	defer f.Close()
	if isNew {
		cw := csv.NewWriter(f)
		cw.Write(CSVHeader)
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("stulayers: writing csv header: %v", err)
		}
	}
	n, err := e.Export(ctx, c, f)
	if err != nil {
		return err
	}
	e.log().WithFields(logrus.Fields{
		"file":     path,
		"records":  n,
		"duration": time.Since(start),
	}).Info("export finished")
	return f.Close()
}
