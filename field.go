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

	"github.com/ctessum/sparse"
)

// DType is the element type of a grid as it is read or stored.
type DType int

// These are the supported element types.
const (
	Bool DType = iota + 1
	Uint8
	Uint16
	Float64
)

func (d DType) String() string {
	switch d {
	case Bool:
		return "bool"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("DType(%d)", int(d))
}

// parseDType is the inverse of DType.String.
func parseDType(s string) (DType, error) {
	for _, d := range []DType{Bool, Uint8, Uint16, Float64} {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("stulayers: unknown data type %q", s)
}

// cast converts v the way a value of type d is produced when it is
// parsed from text: integers are truncated toward zero and wrapped
// into the type width, booleans are true for any non-zero value.
func (d DType) cast(v float64) float64 {
	switch d {
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	case Uint8:
		return float64(uint8(int64(v)))
	case Uint16:
		return float64(uint16(int64(v)))
	}
	return v
}

// narrow wraps an integer into the width of d.
func (d DType) narrow(v int64) int {
	switch d {
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	case Uint8:
		return int(uint8(v))
	case Uint16:
		return int(uint16(v))
	}
	return int(v)
}

// A Transform converts one source grid value into its stored integer
// representation.
type Transform func(v float64) int64

// Round2x100 keeps two decimal digits of v as an integer:
// round(v, 2) * 100 truncated toward zero.
func Round2x100(v float64) int64 {
	return int64(roundDecimal(v, 2) * 100)
}

// Times1000 scales v by 1000 and truncates toward zero. The value is
// not rounded before truncation.
func Times1000(v float64) int64 {
	return int64(v * 1000)
}

// Field describes how one ASCII grid maps onto one container array.
type Field struct {
	// Source is the base name of the input grid file, without the
	// ".asc" extension.
	Source string

	// Name is the array name inside the group.
	Name string

	// SourceType is the type the grid values are parsed as.
	SourceType DType

	// StoredType is the type of the stored array.
	StoredType DType

	// Transform, if not nil, converts each parsed value into its
	// stored representation. Otherwise values are converted directly.
	Transform Transform

	// Scale is the factor that converts stored values back into
	// physical units (stored * Scale). Zero means no scaling.
	Scale float64

	Description string
}

// Convert applies the field transform to every element of g and returns
// the values in their stored representation.
func (f Field) Convert(g *sparse.DenseArray) *sparse.DenseArrayInt {
	o := sparse.ZerosDenseInt(g.Shape...)
	for i, v := range g.Elements {
		var s int64
		if f.Transform != nil {
			s = f.Transform(v)
		} else {
			s = int64(v)
		}
		o.Elements[i] = f.StoredType.narrow(s)
	}
	return o
}

func (f Field) String() string {
	tr := "none"
	if f.Transform != nil {
		tr = fmt.Sprintf("scale %g", f.Scale)
	}
	return fmt.Sprintf("[%s %s %s->%s transform:%s]", f.Source, f.Name, f.SourceType, f.StoredType, tr)
}

// Group is a named set of fields that are stored together.
type Group struct {
	Name   string
	Fields []Field
}

// Group names.
const (
	General = "general"
	Top     = "top"
	Sub     = "sub"
)

// layerFields returns the nine texture and chemistry fields of a soil
// layer. layer is "T" for the topsoil and "S" for the subsoil.
func layerFields(layer string) []Field {
	stu := func(s string) string { return "STU_EU_" + layer + "_" + s }
	return []Field{
		{Source: stu("TEXT_CLS"), Name: "texture_class", SourceType: Uint8, StoredType: Uint8,
			Description: "texture class"},
		{Source: stu("TAWC"), Name: "tawc", SourceType: Float64, StoredType: Uint16,
			Transform: Round2x100, Scale: 0.01, Description: "total available water capacity"},
		{Source: stu("SILT"), Name: "silt", SourceType: Uint8, StoredType: Uint8,
			Description: "silt content"},
		{Source: stu("SAND"), Name: "sand", SourceType: Uint8, StoredType: Uint8,
			Description: "sand content"},
		{Source: stu("CLAY"), Name: "clay", SourceType: Uint8, StoredType: Uint8,
			Description: "clay content"},
		{Source: stu("GRAVEL"), Name: "gravel", SourceType: Uint8, StoredType: Uint8,
			Description: "gravel content"},
		{Source: stu("OC"), Name: "corg", SourceType: Float64, StoredType: Uint16,
			Transform: Round2x100, Scale: 0.01, Description: "organic carbon content"},
		{Source: stu("BD"), Name: "bulk_density", SourceType: Float64, StoredType: Uint16,
			Transform: Times1000, Scale: 0.001, Description: "bulk density"},
		{Source: "SMU_EU_" + layer + "_TAWC", Name: "tawc_smu", SourceType: Float64, StoredType: Uint16,
			Transform: Round2x100, Scale: 0.01, Description: "total available water capacity of the soil mapping unit"},
	}
}

// GeneralFields returns the fields of the "general" group.
func GeneralFields() []Field {
	return []Field{
		{Source: "STU_EU_DEPTH_ROOTS", Name: "depth_roots", SourceType: Uint8, StoredType: Uint8,
			Description: "depth available to roots"},
		{Source: "STU_EU_ALLOCATION", Name: "stu_allocation", SourceType: Bool, StoredType: Bool,
			Description: "soil typological unit allocation mask"},
	}
}

// TopFields returns the fields of the "top" (topsoil) group.
func TopFields() []Field { return layerFields("T") }

// SubFields returns the fields of the "sub" (subsoil) group.
func SubFields() []Field { return layerFields("S") }

// Layout returns the complete container layout in processing order.
func Layout() []Group {
	return []Group{
		{Name: General, Fields: GeneralFields()},
		{Name: Top, Fields: TopFields()},
		{Name: Sub, Fields: SubFields()},
	}
}

// SelectGroups returns the groups of layout named in names, in layout
// order. An empty names selects every group.
func SelectGroups(layout []Group, names []string) ([]Group, error) {
	if len(names) == 0 {
		return layout, nil
	}
	want := make(map[string]bool)
	for _, n := range names {
		want[n] = true
	}
	var o []Group
	for _, g := range layout {
		if want[g.Name] {
			o = append(o, g)
			delete(want, g.Name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("stulayers: unknown group %q", n)
	}
	return o, nil
}

// arraySpecs lists the container arrays described by groups.
func arraySpecs(groups []Group) []ArraySpec {
	var o []ArraySpec
	for _, g := range groups {
		for _, f := range g.Fields {
			o = append(o, ArraySpec{
				Group:       g.Name,
				Name:        f.Name,
				Type:        f.StoredType,
				Source:      f.Source,
				Description: f.Description,
				Scale:       f.Scale,
			})
		}
	}
	return o
}
