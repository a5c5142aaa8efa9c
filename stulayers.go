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

// Package stulayers converts the European soil typological unit (STU)
// layer rasters from ESRI ASCII grids into a grouped NetCDF container and
// flattens selected container arrays into a geolocated CSV table.
//
// The conversion runs in two independent phases. The import phase
// (Importer) reads every grid declared in the field tables, scales it into
// its stored integer representation and writes it into the "general",
// "top" or "sub" group of the container. The export phase (Exporter)
// walks the allocation mask, reprojects every allocated cell center from
// ETRS89-LAEA to WGS84 and appends one CSV record per cell.
package stulayers

// Version gives the version number.
const Version = "1.0.0"

// Default file names.
const (
	DefaultContainerFile = "stu_eu_layers.nc"
	DefaultOutputFile    = "stu_eu_layers.csv"
)
