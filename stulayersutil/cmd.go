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

// Package stulayersutil contains the command-line interface of stulayers.
package stulayersutil

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zalf-rpm/stulayers"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to stulayers.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel sets the minimum level of the log messages that are
              printed (debug, info, warning, error).`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ContainerFile",
			usage: `
              ContainerFile is the location of the NetCDF container that the
              grids are imported into and exported from. For export and
              inspect it can also be a URL (http://, https://, gs://, s3://
              or file://). It can include environment variables.`,
			shorthand:  "c",
			defaultVal: stulayers.DefaultContainerFile,
			flagsets:   []*pflag.FlagSet{importCmd.Flags(), exportCmd.Flags(), inspectCmd.Flags()},
		},
		{
			name: "Download.Retries",
			usage: `
              Download.Retries is the number of times a failed download of a
              remote grid or container is retried.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{importCmd.Flags(), exportCmd.Flags(), inspectCmd.Flags()},
		},
		{
			name: "InputDir",
			usage: `
              InputDir is the directory holding the '<FIELD>.asc' grids. It
              can also be a URL prefix (http://, https://, gs://, s3:// or
              file://), in which case each grid is downloaded before it is
              read. It can include environment variables.`,
			shorthand:  "i",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{importCmd.Flags()},
		},
		{
			name: "Import.HeaderLines",
			usage: `
              Import.HeaderLines is the number of header lines at the top
              of every grid file.`,
			defaultVal: stulayers.DefaultHeaderLines,
			flagsets:   []*pflag.FlagSet{importCmd.Flags()},
		},
		{
			name: "Import.Groups",
			usage: `
              Import.Groups lists the groups to import (general, top, sub).
              All groups are imported if it is empty.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{importCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the CSV file the exported records are appended
              to. The header line is only written when the file is created.
              It can include environment variables.`,
			shorthand:  "o",
			defaultVal: stulayers.DefaultOutputFile,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "Grid.Xll",
			usage: `
              Grid.Xll is the x coordinate of the lower-left corner of the
              grid in the source projection.`,
			defaultVal: stulayers.EUGrid.Xll,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "Grid.Yll",
			usage: `
              Grid.Yll is the y coordinate of the lower-left corner of the
              grid in the source projection.`,
			defaultVal: stulayers.EUGrid.Yll,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "Grid.CellSize",
			usage: `
              Grid.CellSize is the edge length of a grid cell in the units
              of the source projection.`,
			defaultVal: stulayers.EUGrid.CellSize,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "Grid.Rows",
			usage: `
              Grid.Rows is the total number of grid rows. It positions
              row 0 at the top of the grid.`,
			defaultVal: stulayers.EUGrid.Rows,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "Export.StartRow",
			usage: `
              Export.StartRow is the first exported row.`,
			defaultVal: stulayers.DefaultStartRow,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "Export.ColMargin",
			usage: `
              Export.ColMargin is the number of trailing columns that are
              not exported.`,
			defaultVal: stulayers.DefaultColMargin,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "Export.SourceProj",
			usage: `
              Export.SourceProj is the spatial reference of the grid, as an
              EPSG code or a PROJ.4 string.`,
			defaultVal: stulayers.ETRS89LAEA,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "Export.TargetProj",
			usage: `
              Export.TargetProj is the spatial reference of the exported
              coordinates, as an EPSG code or a PROJ.4 string.`,
			defaultVal: stulayers.WGS84,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("STULAYERS")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(importCmd)
	Root.AddCommand(exportCmd)
	Root.AddCommand(inspectCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and configures logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("stulayers: problem reading configuration file: %v", err)
		}
	}
	return setLogging(Cfg.GetString("LogLevel"))
}

// setLogging configures the standard logger.
func setLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("stulayers: invalid LogLevel: %v", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	})
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "stulayers",
	Short: "Convert the European STU soil layers into a container and a CSV table.",
	Long: `stulayers imports the European soil typological unit (STU) layer grids
(ESRI ASCII format) into a grouped NetCDF container and exports the allocated
cells of the container, reprojected to longitude and latitude, into a CSV table.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'STULAYERS_var' where 'var' is the
name of the variable to be set, with '.' replaced by '_'. File and directory
locations are additionally allowed to contain environment variables within them.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of stulayers.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("stulayers v%s\n", stulayers.Version)
	},
	DisableAutoGenTag: true,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the ASCII grids into the container.",
	Long: `import reads the '<FIELD>.asc' grids of the general, top and sub groups
from InputDir, converts them into their stored representation and writes them
into ContainerFile. The container is created if it does not exist; arrays that
already exist are overwritten.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		d, err := newDownloader(Cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		im, err := importerConfig(Cfg, d)
		if err != nil {
			return err
		}
		return im.Import(ctx, os.ExpandEnv(Cfg.GetString("ContainerFile")))
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the allocated cells of the container to CSV.",
	Long: `export appends one CSV record for every cell of ContainerFile whose
allocation mask is set to OutputFile. Cell centers are reprojected from
Export.SourceProj to Export.TargetProj. Running export twice into the same
file repeats the records.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		e, err := exporterConfig(Cfg)
		if err != nil {
			return err
		}
		out, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		d, err := newDownloader(Cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		c, err := openContainer(ctx, d, Cfg.GetString("ContainerFile"))
		if err != nil {
			return err
		}
		defer c.Close()
		return e.ExportFile(ctx, c, out)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the layout of the container.",
	Long: `inspect prints the dimensions, arrays and attributes of ContainerFile
without modifying it.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDownloader(Cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		c, err := openContainer(context.Background(), d, Cfg.GetString("ContainerFile"))
		if err != nil {
			return err
		}
		defer c.Close()
		cmd.Print(describeContainer(c))
		return nil
	},
}

// signalContext returns a context that is canceled on an interrupt signal.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		select {
		case <-sig:
			logrus.Warn("interrupted")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sig)
	}()
	return ctx, cancel
}
