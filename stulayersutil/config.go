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

package stulayersutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/zalf-rpm/stulayers"
)

// expandStringSlice expands the environment variables in a slice of strings
// and splits comma-separated entries.
func expandStringSlice(s []string) []string {
	var o []string
	for _, v := range s {
		for _, p := range strings.Split(os.ExpandEnv(v), ",") {
			if p = strings.TrimSpace(p); p != "" {
				o = append(o, p)
			}
		}
	}
	return o
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`stulayers: you need to specify an output file configuration variable (for example: OutputFile="stu_eu_layers.csv")`)
	}
	f = os.ExpandEnv(f)
	if IsBlob(f) || strings.Contains(f, "://") {
		return f, fmt.Errorf("stulayers: OutputFile must be a local file because records are appended to it: %s", f)
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("stulayers: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// newDownloader creates a downloader from the configuration information
// in cfg.
func newDownloader(cfg *viper.Viper) (*downloader, error) {
	retries, err := cast.ToIntE(cfg.Get("Download.Retries"))
	if err != nil {
		return nil, fmt.Errorf("stulayers: invalid Download.Retries: %v", err)
	}
	if retries < 0 {
		return nil, fmt.Errorf("stulayers: Download.Retries must not be negative, got %d", retries)
	}
	return &downloader{retries: uint64(retries)}, nil
}

// importerConfig creates an importer from the configuration information
// in cfg. Remote grids are fetched with d.
func importerConfig(cfg *viper.Viper, d *downloader) (*stulayers.Importer, error) {
	headerLines, err := cast.ToIntE(cfg.Get("Import.HeaderLines"))
	if err != nil {
		return nil, fmt.Errorf("stulayers: invalid Import.HeaderLines: %v", err)
	}
	if headerLines < 0 {
		return nil, fmt.Errorf("stulayers: Import.HeaderLines must not be negative, got %d", headerLines)
	}
	groups, err := stulayers.SelectGroups(stulayers.Layout(), expandStringSlice(cfg.GetStringSlice("Import.Groups")))
	if err != nil {
		return nil, err
	}
	dir := os.ExpandEnv(cfg.GetString("InputDir"))
	if dir == "" {
		return nil, fmt.Errorf("stulayers: you need to specify the InputDir configuration variable")
	}
	return &stulayers.Importer{
		Dir:         dir,
		HeaderLines: headerLines,
		Groups:      groups,
		Resolve:     d.maybeDownload,
		Log:         logrus.StandardLogger(),
	}, nil
}

// exporterConfig creates an exporter from the configuration information
// in cfg.
func exporterConfig(cfg *viper.Viper) (*stulayers.Exporter, error) {
	var g stulayers.GridDef
	var err error
	for _, v := range []struct {
		name string
		dst  *float64
	}{
		{"Grid.Xll", &g.Xll},
		{"Grid.Yll", &g.Yll},
		{"Grid.CellSize", &g.CellSize},
	} {
		if *v.dst, err = cast.ToFloat64E(cfg.Get(v.name)); err != nil {
			return nil, fmt.Errorf("stulayers: invalid %s: %v", v.name, err)
		}
	}
	if g.Rows, err = cast.ToIntE(cfg.Get("Grid.Rows")); err != nil {
		return nil, fmt.Errorf("stulayers: invalid Grid.Rows: %v", err)
	}
	if g.CellSize <= 0 || g.Rows <= 0 {
		return nil, fmt.Errorf("stulayers: Grid.CellSize and Grid.Rows must be positive, got %g and %d",
			g.CellSize, g.Rows)
	}
	startRow, err := cast.ToIntE(cfg.Get("Export.StartRow"))
	if err != nil {
		return nil, fmt.Errorf("stulayers: invalid Export.StartRow: %v", err)
	}
	colMargin, err := cast.ToIntE(cfg.Get("Export.ColMargin"))
	if err != nil {
		return nil, fmt.Errorf("stulayers: invalid Export.ColMargin: %v", err)
	}
	if startRow < 0 || colMargin < 0 {
		return nil, fmt.Errorf("stulayers: Export.StartRow and Export.ColMargin must not be negative")
	}
	t, err := stulayers.NewTransformer(cfg.GetString("Export.SourceProj"), cfg.GetString("Export.TargetProj"))
	if err != nil {
		return nil, err
	}
	return &stulayers.Exporter{
		Grid:      g,
		StartRow:  startRow,
		ColMargin: colMargin,
		Transform: t,
		Log:       logrus.StandardLogger(),
	}, nil
}

// openContainer opens the container at path for reading, downloading it
// first if it is remote.
func openContainer(ctx context.Context, d *downloader, path string) (*stulayers.Container, error) {
	path, err := d.maybeDownload(ctx, os.ExpandEnv(path))
	if err != nil {
		return nil, err
	}
	return stulayers.OpenContainer(path)
}

// describeContainer returns a summary of the layout of c followed by
// the full NetCDF header.
func describeContainer(c *stulayers.Container) string {
	b := new(bytes.Buffer)
	rows, cols := c.Shape()
	fmt.Fprintf(b, "container %s: %d rows x %d columns\n", c.Path(), rows, cols)
	if id, ok := c.Attribute("import_id").(string); ok {
		fmt.Fprintf(b, "import id: %s\n", id)
	}
	for _, a := range c.Arrays() {
		t, err := c.Type(a[0], a[1])
		if err != nil {
			fmt.Fprintf(b, "  %s/%s: %v\n", a[0], a[1], err)
			continue
		}
		fmt.Fprintf(b, "  %s/%s %s\n", a[0], a[1], t)
	}
	b.WriteString("\n")
	b.WriteString(c.Header())
	return b.String()
}
