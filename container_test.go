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
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "stulayers_test")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func intArray(rows, cols int, vals ...int) *sparse.DenseArrayInt {
	a := sparse.ZerosDenseInt(rows, cols)
	copy(a.Elements, vals)
	return a
}

var testSpecs = []ArraySpec{
	{Group: General, Name: "stu_allocation", Type: Bool},
	{Group: General, Name: "depth_roots", Type: Uint8, Source: "STU_EU_DEPTH_ROOTS"},
	{Group: Top, Name: "tawc", Type: Uint16, Scale: 0.01, Description: "total available water capacity"},
}

func TestContainer(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "c.nc")

	c, err := CreateContainer(path, 2, 3, testSpecs, map[string]interface{}{"import_id": "abc"})
	if err != nil {
		t.Fatal(err)
	}
	mask := intArray(2, 3, 1, 0, 1, 0, 1, 1)
	depth := intArray(2, 3, 10, 20, 300, 40, 50, 255)
	tawc := intArray(2, 3, 1235, 0, 65535, 267, 40000, 1)
	for _, p := range []struct {
		group, name string
		a           *sparse.DenseArrayInt
	}{
		{General, "stu_allocation", mask},
		{General, "depth_roots", depth},
		{Top, "tawc", tawc},
	} {
		if err := c.Put(p.group, p.name, p.a); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = OpenContainer(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if rows, cols := c.Shape(); rows != 2 || cols != 3 {
		t.Errorf("shape = %d x %d", rows, cols)
	}
	if id := c.Attribute("import_id"); id != "abc" {
		t.Errorf("import_id = %v", id)
	}
	if !c.Has(Top, "tawc") || c.Has(Sub, "tawc") {
		t.Error("Has reports the wrong arrays")
	}
	if typ, err := c.Type(Top, "tawc"); err != nil || typ != Uint16 {
		t.Errorf("Type(top, tawc) = %v, %v", typ, err)
	}
	if got := c.Arrays(); !reflect.DeepEqual(got, [][2]string{
		{General, "stu_allocation"}, {General, "depth_roots"}, {Top, "tawc"}}) {
		t.Errorf("arrays = %v", got)
	}

	h := c.nc.Header
	if !reflect.DeepEqual(h.Variables(), []string{"general.stu_allocation", "general.depth_roots", "top.tawc"}) {
		t.Errorf("variables = %v", h.Variables())
	}
	if g, n := h.GetAttribute("top.tawc", "group"), h.GetAttribute("top.tawc", "name"); g != Top || n != "tawc" {
		t.Errorf("top.tawc attributes: group %v, name %v", g, n)
	}

	for _, test := range []struct {
		group, name string
		want        []int
	}{
		{General, "stu_allocation", []int{1, 0, 1, 0, 1, 1}},
		{General, "depth_roots", []int{10, 20, 44, 40, 50, 255}},
		{Top, "tawc", []int{1235, 0, 65535, 267, 40000, 1}},
	} {
		a, err := c.Get(test.group, test.name)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a.Elements, test.want) {
			t.Errorf("%s/%s = %v, want %v", test.group, test.name, a.Elements, test.want)
		}
		row, err := c.Row(test.group, test.name, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(row, test.want[3:]) {
			t.Errorf("%s/%s row 1 = %v, want %v", test.group, test.name, row, test.want[3:])
		}
	}

	if _, err := c.Row(Top, "tawc", 2); err == nil {
		t.Error("expected an error for an out-of-range row")
	}
	if _, err := c.Get(Sub, "tawc"); err == nil {
		t.Error("expected an error for a missing array")
	}
	if c.Header() == "" {
		t.Error("empty header description")
	}
}

func TestContainerReopen(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "c.nc")

	put := func(vals ...int) {
		c, err := CreateContainer(path, 2, 2, testSpecs[:2], map[string]interface{}{"import_id": "first"})
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		if err := c.Put(General, "depth_roots", intArray(2, 2, vals...)); err != nil {
			t.Fatal(err)
		}
	}
	put(1, 2, 3, 4)
	put(5, 6, 7, 8)

	c, err := OpenContainer(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	a, err := c.Get(General, "depth_roots")
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{5, 6, 7, 8}; !reflect.DeepEqual(a.Elements, want) {
		t.Errorf("overwritten array = %v, want %v", a.Elements, want)
	}
}

func TestContainerGrow(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "c.nc")

	c, err := CreateContainer(path, 2, 2, testSpecs[1:2], map[string]interface{}{"import_id": "first"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(General, "depth_roots", intArray(2, 2, 9, 8, 7, 6)); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = CreateContainer(path, 2, 2, testSpecs, map[string]interface{}{"import_id": "second", "cellsize": []float64{1000}})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(Top, "tawc", intArray(2, 2, 100, 200, 300, 400)); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = OpenContainer(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	for _, s := range testSpecs {
		if !c.Has(s.Group, s.Name) {
			t.Errorf("missing %s/%s", s.Group, s.Name)
		}
	}
	a, err := c.Get(General, "depth_roots")
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{9, 8, 7, 6}; !reflect.DeepEqual(a.Elements, want) {
		t.Errorf("existing array = %v, want %v", a.Elements, want)
	}
	if id := c.Attribute("import_id"); id != "first" {
		t.Errorf("import_id = %v, want first", id)
	}
	if cs, ok := c.Attribute("cellsize").([]float64); !ok || cs[0] != 1000 {
		t.Errorf("cellsize = %v", c.Attribute("cellsize"))
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file was left behind")
	}
}

func TestContainerMismatch(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "c.nc")

	c, err := CreateContainer(path, 2, 3, testSpecs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(General, "depth_roots", intArray(3, 2)); err == nil {
		t.Error("expected an error for an array of the wrong shape")
	}
	c.Close()

	if _, err := CreateContainer(path, 3, 3, testSpecs, nil); err == nil {
		t.Error("expected an error for a container of the wrong shape")
	}
	wrongType := []ArraySpec{{Group: Top, Name: "tawc", Type: Uint8}}
	if _, err := CreateContainer(path, 2, 3, wrongType, nil); err == nil {
		t.Error("expected an error for an array of the wrong type")
	}
	float := []ArraySpec{{Group: Top, Name: "x", Type: Float64}}
	if _, err := CreateContainer(filepath.Join(dir, "d.nc"), 2, 3, float, nil); err == nil {
		t.Error("expected an error for an unsupported storage type")
	}
}
