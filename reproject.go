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
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/wroge/wgs84"
)

// Coordinate reference systems used by the STU layer grids.
const (
	// ETRS89LAEA is ETRS89 / LAEA Europe (EPSG:3035), the projection of
	// the input grids.
	ETRS89LAEA = "EPSG:3035"

	// WGS84 is geographic WGS 84 (EPSG:4326), the output coordinates.
	WGS84 = "EPSG:4326"
)

// knownCRS maps EPSG codes to their PROJ.4 definitions.
var knownCRS = map[string]string{
	"EPSG:3035": "+proj=laea +lat_0=52 +lon_0=10 +x_0=4321000 +y_0=3210000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	"EPSG:4258": "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	"EPSG:4326": "+proj=longlat +datum=WGS84 +no_defs",
}

// epsg holds the coordinate reference systems of the wgs84 package.
var epsg = wgs84.EPSG()

// center is the projection center of an azimuthal projection, where
// the inverse projection is undefined.
type center struct {
	east, north float64
	lon, lat    float64
	geo         wgs84.CoordinateReferenceSystem
}

// epsgCenters holds the centers of the azimuthal systems in epsg.
var epsgCenters = map[int]center{
	3035: {east: 4321000, north: 3210000, lon: 10, lat: 52, geo: wgs84.ETRS89().LonLat()},
}

// system is a coordinate reference system that the wgs84 package can
// transform.
type system struct {
	crs    wgs84.CoordinateReferenceSystem
	center *center
}

// crsDef is a parsed spatial reference. Either field may be nil.
type crsDef struct {
	sr  *proj.SR
	sys *system
}

// ParseCRS parses a spatial reference given either as an EPSG code
// known to this package (e.g. "EPSG:3035") or as a PROJ.4 or WKT string.
func ParseCRS(s string) (*proj.SR, error) {
	if def, ok := knownCRS[strings.ToUpper(strings.TrimSpace(s))]; ok {
		s = def
	}
	sr, err := proj.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("stulayers: parsing spatial reference %q: %v", s, err)
	}
	return sr, nil
}

// epsgCode returns the numeric code of an "EPSG:<code>" reference.
func epsgCode(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "EPSG:") {
		return 0, false
	}
	c, err := strconv.Atoi(strings.TrimPrefix(s, "EPSG:"))
	return c, err == nil
}

// parseDef resolves s into a wgs84 system, a proj spatial reference, or
// both.
func parseDef(s string) (crsDef, error) {
	var def crsDef
	if c, ok := epsgCode(s); ok {
		if crs := epsg.Code(c); crs != nil {
			def.sys = &system{crs: crs}
			if ctr, ok := epsgCenters[c]; ok {
				def.sys.center = &ctr
			}
		}
	}
	sr, err := ParseCRS(s)
	if err != nil {
		if def.sys != nil {
			return def, nil
		}
		return def, err
	}
	def.sr = sr
	if def.sys == nil {
		if def.sys, err = srSystem(sr); err != nil {
			return def, err
		}
	}
	return def, nil
}

// srSystem builds the wgs84 system of a Lambert azimuthal equal-area or
// geographic spatial reference. It returns nil for other projections
// and for geographic references on other datums.
func srSystem(sr *proj.SR) (*system, error) {
	datum, ok := srDatum(sr)
	switch sr.Name {
	case "laea":
		if !ok {
			return nil, fmt.Errorf("stulayers: laea is only supported on the GRS80 and WGS84 ellipsoids without datum shift")
		}
		lat0, lon0 := degrees(sr.Lat0), degrees(sr.Long0)
		if math.Abs(math.Abs(lat0)-90) < 1e-10 {
			return nil, fmt.Errorf("stulayers: laea: polar aspect is not supported")
		}
		x0, y0 := orZero(sr.X0), orZero(sr.Y0)
		return &system{
			crs:    datum.LambertAzimuthalEqualArea(lon0, lat0, x0, y0),
			center: &center{east: x0, north: y0, lon: lon0, lat: lat0, geo: datum.LonLat()},
		}, nil
	case "longlat":
		if ok {
			return &system{crs: datum.LonLat()}, nil
		}
	}
	return nil, nil
}

// srDatum returns the wgs84 datum matching the ellipsoid of sr, which
// must not have a datum shift.
func srDatum(sr *proj.SR) (wgs84.Datum, bool) {
	for _, p := range sr.DatumParams {
		if p != 0 {
			return wgs84.Datum{}, false
		}
	}
	if math.Abs(sr.A-6378137) > 1e-3 {
		return wgs84.Datum{}, false
	}
	switch {
	case math.Abs(sr.Es-0.0066943800229008) < 1e-13:
		return wgs84.ETRS89(), true
	case math.Abs(sr.Es-0.0066943799901414) < 1e-13:
		return wgs84.WGS84(), true
	}
	return wgs84.Datum{}, false
}

// NewTransformer returns a function that converts coordinates from the
// src to the dst spatial reference. Geographic coordinates are in
// degrees, x being the longitude. Systems known to the wgs84 package,
// including every Lambert azimuthal equal-area projection, are
// transformed with it; other pairs are delegated to the proj package.
func NewTransformer(src, dst string) (proj.Transformer, error) {
	s, err := parseDef(src)
	if err != nil {
		return nil, err
	}
	d, err := parseDef(dst)
	if err != nil {
		return nil, err
	}
	if s.sys != nil && d.sys != nil {
		return s.sys.transformTo(d.sys), nil
	}
	if s.sr == nil || d.sr == nil || s.sr.Name == "laea" || d.sr.Name == "laea" {
		return nil, fmt.Errorf("stulayers: unsupported transform from %s to %s", src, dst)
	}
	t, err := s.sr.NewTransform(d.sr)
	if err != nil {
		return nil, fmt.Errorf("stulayers: creating transform from %s to %s: %v", src, dst, err)
	}
	return t, nil
}

// transformTo returns the transform from s to d.
func (s *system) transformTo(d *system) proj.Transformer {
	f := wgs84.Transform(s.crs, d.crs)
	var fromCenter wgs84.Func
	if s.center != nil {
		fromCenter = wgs84.Transform(s.center.geo, d.crs)
	}
	return func(x, y float64) (float64, float64, error) {
		var x2, y2 float64
		if c := s.center; c != nil && x == c.east && y == c.north {
			x2, y2, _ = fromCenter(c.lon, c.lat, 0)
		} else {
			x2, y2, _ = f(x, y, 0)
		}
		if !finite(x2) || !finite(y2) {
			return math.NaN(), math.NaN(), fmt.Errorf("stulayers: point (%g, %g) is outside the projection domain", x, y)
		}
		return x2, y2, nil
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func degrees(rad float64) float64 { return orZero(rad) * 180 / math.Pi }

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
