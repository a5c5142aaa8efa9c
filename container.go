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
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Container dimension names.
const (
	dimY = "y"
	dimX = "x"
)

// ArraySpec describes one two-dimensional array of a Container.
type ArraySpec struct {
	Group, Name string
	Type        DType
	Source      string
	Description string
	Scale       float64
}

func (s ArraySpec) varName() string { return VarName(s.Group, s.Name) }

// VarName returns the NetCDF variable name that holds array name of
// the given group.
func VarName(group, name string) string { return group + "." + name }

// Container is a NetCDF file holding named two-dimensional arrays that
// are organized in groups. All arrays share the dimensions y (rows) and
// x (columns). Unsigned integer arrays are stored in the signed NetCDF
// type of the same width and flagged with the "_Unsigned" attribute;
// boolean arrays are stored as bytes holding 0 or 1.
//
// NetCDF classic files have no groups: array name of group is the
// variable "<group>.<name>" (see VarName) with "group" and "name"
// attributes, so the array HDF5 tools address as /top/sand is the
// variable top.sand.
type Container struct {
	path string
	f    *os.File
	nc   *cdf.File
}

// OpenContainer opens the existing container at path for reading.
func OpenContainer(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stulayers: opening container: %v", err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stulayers: reading container %s: %v", path, err)
	}
	return &Container{path: path, f: f, nc: nc}, nil
}

// CreateContainer opens the container at path for writing, creating it if
// it doesn't exist. A new container gets dimensions rows x cols, the given
// global attributes, and the given arrays. An existing container must have
// the same dimensions; arrays it lacks are added by rewriting the file,
// and global attributes it already has are kept.
func CreateContainer(path string, rows, cols int, arrays []ArraySpec, attrs map[string]interface{}) (*Container, error) {
	for _, a := range arrays {
		if a.Type != Bool && a.Type != Uint8 && a.Type != Uint16 {
			return nil, fmt.Errorf("stulayers: array %s: unsupported storage type %s", a.varName(), a.Type)
		}
	}

	// Create the file if it doesn't exist, otherwise use the pre-existing file.
	if _, err := os.Stat(path); err != nil {
		h := cdf.NewHeader([]string{dimY, dimX}, []int{rows, cols})
		h.AddAttribute("", "title", "European soil typological unit layers")
		for _, k := range sortKeys(attrs) {
			h.AddAttribute("", k, attrs[k])
		}
		for _, a := range arrays {
			addArray(h, a)
		}
		h.Define()
		for _, err := range h.Check() {
			return nil, fmt.Errorf("stulayers: creating container: %v", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("stulayers: creating container: %v", err)
		}
		nc, err := cdf.Create(f, h)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stulayers: writing container header: %v", err)
		}
		return &Container{path: path, f: f, nc: nc}, nil
	}

	c, err := openRW(path)
	if err != nil {
		return nil, err
	}
	if r, cl := c.Shape(); r != rows || cl != cols {
		c.Close()
		return nil, fmt.Errorf("stulayers: container %s has shape %dx%d but the grids have shape %dx%d",
			path, r, cl, rows, cols)
	}
	var missing []ArraySpec
	for _, a := range arrays {
		if !c.Has(a.Group, a.Name) {
			missing = append(missing, a)
			continue
		}
		if t, err := c.Type(a.Group, a.Name); err != nil || t != a.Type {
			c.Close()
			return nil, fmt.Errorf("stulayers: container array %s is stored as %v, want %s", a.varName(), t, a.Type)
		}
	}
	if len(missing) == 0 {
		return c, nil
	}
	return c.grow(missing, attrs)
}

func openRW(path string) (*Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("stulayers: opening container: %v", err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stulayers: initializing existing container %s: %v", path, err)
	}
	return &Container{path: path, f: f, nc: nc}, nil
}

// addArray adds the variable for array a to header h.
func addArray(h *cdf.Header, a ArraySpec) {
	v := a.varName()
	if a.Type == Uint16 {
		h.AddVariable(v, []string{dimY, dimX}, []int16{0})
	} else {
		h.AddVariable(v, []string{dimY, dimX}, []uint8{0})
	}
	h.AddAttribute(v, "group", a.Group)
	h.AddAttribute(v, "name", a.Name)
	h.AddAttribute(v, "dtype", a.Type.String())
	h.AddAttribute(v, "_Unsigned", "true")
	if a.Source != "" {
		h.AddAttribute(v, "source", a.Source)
	}
	if a.Description != "" {
		h.AddAttribute(v, "description", a.Description)
	}
	if a.Scale != 0 {
		h.AddAttribute(v, "scale_factor", []float64{a.Scale})
	}
}

// grow rewrites the container with the arrays in missing added to it and
// returns the reopened container. c is closed.
func (c *Container) grow(missing []ArraySpec, attrs map[string]interface{}) (*Container, error) {
	old := c.nc.Header
	rows, cols := c.Shape()

	h := cdf.NewHeader([]string{dimY, dimX}, []int{rows, cols})
	for _, a := range old.Attributes("") {
		h.AddAttribute("", a, old.GetAttribute("", a))
	}
	for _, k := range sortKeys(attrs) {
		if old.GetAttribute("", k) == nil {
			h.AddAttribute("", k, attrs[k])
		}
	}
	vars := old.Variables()
	for _, v := range vars {
		h.AddVariable(v, old.Dimensions(v), old.ZeroValue(v, 1))
		for _, a := range old.Attributes(v) {
			h.AddAttribute(v, a, old.GetAttribute(v, a))
		}
	}
	for _, a := range missing {
		addArray(h, a)
	}
	h.Define()

	tmp := c.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("stulayers: growing container: %v", err)
	}
	nc, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		c.Close()
		return nil, fmt.Errorf("stulayers: growing container: %v", err)
	}
	for _, v := range vars {
		buf := old.ZeroValue(v, rows*cols)
		// Arrays that were never written read short; they stay zero.
		if _, err := c.nc.Reader(v, nil, nil).Read(buf); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			f.Close()
			c.Close()
			return nil, fmt.Errorf("stulayers: growing container: reading %s: %v", v, err)
		}
		if _, err := nc.Writer(v, nil, old.Lengths(v)).Write(buf); err != nil {
			f.Close()
			c.Close()
			return nil, fmt.Errorf("stulayers: growing container: writing %s: %v", v, err)
		}
	}
	if err := f.Close(); err != nil {
		c.Close()
		return nil, fmt.Errorf("stulayers: growing container: %v", err)
	}
	if err := c.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return nil, fmt.Errorf("stulayers: growing container: %v", err)
	}
	return openRW(c.path)
}

// Close closes the underlying file.
func (c *Container) Close() error {
	return c.f.Close()
}

// Path returns the location of the container file.
func (c *Container) Path() string { return c.path }

// Shape returns the number of rows and columns shared by all arrays.
func (c *Container) Shape() (rows, cols int) {
	l := c.nc.Header.Lengths("")
	d := c.nc.Header.Dimensions("")
	for i, name := range d {
		switch name {
		case dimY:
			rows = l[i]
		case dimX:
			cols = l[i]
		}
	}
	return
}

// Has returns whether the container holds array name in group.
func (c *Container) Has(group, name string) bool {
	return c.nc.Header.Lengths(VarName(group, name)) != nil
}

// Type returns the storage type of array name in group.
func (c *Container) Type(group, name string) (DType, error) {
	v := VarName(group, name)
	if !c.Has(group, name) {
		return 0, fmt.Errorf("stulayers: container %s has no array %s", c.path, v)
	}
	if s, ok := c.nc.Header.GetAttribute(v, "dtype").(string); ok {
		return parseDType(s)
	}
	switch c.nc.Header.ZeroValue(v, 0).(type) {
	case []int16:
		return Uint16, nil
	case []uint8:
		return Uint8, nil
	}
	return 0, fmt.Errorf("stulayers: container array %s has an unsupported type", v)
}

// Attribute returns the global attribute a, or nil if it is not set.
func (c *Container) Attribute(a string) interface{} {
	return c.nc.Header.GetAttribute("", a)
}

// Header returns a description of the container layout.
func (c *Container) Header() string {
	return c.nc.Header.String()
}

// Arrays returns the group and name of every array in the container,
// in storage order.
func (c *Container) Arrays() [][2]string {
	var o [][2]string
	for _, v := range c.nc.Header.Variables() {
		g, _ := c.nc.Header.GetAttribute(v, "group").(string)
		n, _ := c.nc.Header.GetAttribute(v, "name").(string)
		o = append(o, [2]string{g, n})
	}
	return o
}

// Put overwrites array name of group with the values in a, which must
// have the shape of the container. Values are wrapped into the storage
// type of the array.
func (c *Container) Put(group, name string, a *sparse.DenseArrayInt) error {
	v := VarName(group, name)
	t, err := c.Type(group, name)
	if err != nil {
		return err
	}
	rows, cols := c.Shape()
	if len(a.Shape) != 2 || a.Shape[0] != rows || a.Shape[1] != cols {
		return fmt.Errorf("stulayers: array %s has shape %v but the container has shape [%d %d]",
			v, a.Shape, rows, cols)
	}
	var buf interface{}
	switch t {
	case Uint16:
		b := make([]int16, len(a.Elements))
		for i, e := range a.Elements {
			b[i] = int16(uint16(e))
		}
		buf = b
	default:
		b := make([]uint8, len(a.Elements))
		for i, e := range a.Elements {
			b[i] = uint8(t.narrow(int64(e)))
		}
		buf = b
	}
	w := c.nc.Writer(v, nil, c.nc.Header.Lengths(v))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("stulayers: writing array %s: %v", v, err)
	}
	return nil
}

// Get reads array name of group.
func (c *Container) Get(group, name string) (*sparse.DenseArrayInt, error) {
	v := VarName(group, name)
	t, err := c.Type(group, name)
	if err != nil {
		return nil, err
	}
	rows, cols := c.Shape()
	buf := c.nc.Header.ZeroValue(v, rows*cols)
	if _, err := c.nc.Reader(v, nil, nil).Read(buf); err != nil {
		return nil, fmt.Errorf("stulayers: reading array %s: %v", v, err)
	}
	o := sparse.ZerosDenseInt(rows, cols)
	unpack(t, buf, o.Elements)
	return o, nil
}

// Row reads row of array name in group.
func (c *Container) Row(group, name string, row int) ([]int, error) {
	v := VarName(group, name)
	t, err := c.Type(group, name)
	if err != nil {
		return nil, err
	}
	rows, cols := c.Shape()
	if row < 0 || row >= rows {
		return nil, fmt.Errorf("stulayers: row %d of array %s is out of range [0, %d)", row, v, rows)
	}
	buf := c.nc.Header.ZeroValue(v, cols)
	r := c.nc.Reader(v, []int{row, 0}, []int{row, cols - 1})
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("stulayers: reading row %d of array %s: %v", row, v, err)
	}
	o := make([]int, cols)
	unpack(t, buf, o)
	return o, nil
}

// unpack converts the raw values in buf into unsigned integers in dst.
func unpack(t DType, buf interface{}, dst []int) {
	switch b := buf.(type) {
	case []int16:
		for i, e := range b {
			dst[i] = int(uint16(e))
		}
	case []uint8:
		for i, e := range b {
			dst[i] = t.narrow(int64(e))
		}
	}
}

func sortKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
