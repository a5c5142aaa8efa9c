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
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Importer reads the ASCII grids of a set of groups and stores them in
// a Container.
type Importer struct {
	// Dir is the directory or URL prefix holding the "<source>.asc" grids.
	Dir string

	// HeaderLines is the number of header lines in each grid.
	// If zero, DefaultHeaderLines is used.
	HeaderLines int

	// Groups are the groups to import. If nil, Layout() is used.
	Groups []Group

	// Resolve, if not nil, turns the location of a grid into a local
	// file path, e.g. by downloading it.
	Resolve func(ctx context.Context, path string) (string, error)

	// Log receives progress messages. If nil, the logrus standard
	// logger is used.
	Log logrus.FieldLogger
}

func (im *Importer) log() logrus.FieldLogger {
	if im.Log == nil {
		return logrus.StandardLogger()
	}
	return im.Log
}

func (im *Importer) groups() []Group {
	if im.Groups == nil {
		return Layout()
	}
	return im.Groups
}

// GridPath returns the location of the grid for source.
func (im *Importer) GridPath(source string) string {
	name := source + ".asc"
	if strings.Contains(im.Dir, "://") {
		return strings.TrimSuffix(im.Dir, "/") + "/" + name
	}
	return filepath.Join(im.Dir, name)
}

// Import reads every field of the import groups in declaration order and
// writes it into the container at containerPath, which is created if it
// does not exist. Arrays that already exist are overwritten. The first grid
// read determines the container shape; all other grids must match it.
func (im *Importer) Import(ctx context.Context, containerPath string) error {
	log := im.log()
	headerLines := im.HeaderLines
	if headerLines == 0 {
		headerLines = DefaultHeaderLines
	}
	groups := im.groups()
	start := time.Now()

	var c *Container
	defer func() {
		if c != nil {
			c.Close()
		}
	}()
	n := 0
	for _, g := range groups {
		for _, f := range g.Fields {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := im.GridPath(f.Source)
			if im.Resolve != nil {
				var err error
				if path, err = im.Resolve(ctx, path); err != nil {
					return fmt.Errorf("stulayers: importing %s/%s: %v", g.Name, f.Name, err)
				}
			}
			grid, err := ReadGridFile(path, headerLines, f.SourceType)
			if err != nil {
				return fmt.Errorf("stulayers: importing %s/%s: %v", g.Name, f.Name, err)
			}
			rows, cols := grid.Shape()
			if c == nil {
				c, err = CreateContainer(containerPath, rows, cols, arraySpecs(groups), gridAttributes(grid))
				if err != nil {
					return err
				}
			}
			if err := c.Put(g.Name, f.Name, f.Convert(grid.Data)); err != nil {
				return fmt.Errorf("stulayers: importing %s/%s from %s: %v", g.Name, f.Name, path, err)
			}
			log.WithFields(logrus.Fields{
				"group":  g.Name,
				"field":  f.String(),
				"source": path,
			}).Info("imported grid")
			n++
		}
	}
	if c == nil {
		return fmt.Errorf("stulayers: no fields to import")
	}
	log.WithFields(logrus.Fields{
		"container": containerPath,
		"arrays":    n,
		"duration":  time.Since(start),
	}).Info("import finished")
	err := c.Close()
	c = nil
	return err
}

// gridAttributes returns the global container attributes taken from the
// header of grid g.
func gridAttributes(g *Grid) map[string]interface{} {
	attrs := map[string]interface{}{
		"import_id": uuid.New().String(),
	}
	for _, k := range []string{"xllcorner", "yllcorner", "cellsize", "nodata_value"} {
		if v, ok := g.Header[k]; ok {
			attrs[k] = []float64{v}
		}
	}
	return attrs
}
