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
	"math"
	"testing"
)

func TestRoundDecimal(t *testing.T) {
	for _, test := range []struct {
		in   float64
		prec int
		want float64
	}{
		{in: 12.345, prec: 2, want: 12.35},
		{in: 2.675, prec: 2, want: 2.67},
		{in: 52.00004999, prec: 4, want: 52.0},
		{in: 10.123456, prec: 4, want: 10.1235},
		{in: -3.14159, prec: 4, want: -3.1416},
		{in: 0.125, prec: 2, want: 0.12},
	} {
		if got := roundDecimal(test.in, test.prec); got != test.want {
			t.Errorf("roundDecimal(%g, %d) = %g, want %g", test.in, test.prec, got, test.want)
		}
	}
	if got := roundDecimal(math.NaN(), 2); !math.IsNaN(got) {
		t.Errorf("NaN: got %g", got)
	}
}

func TestFormatFloat(t *testing.T) {
	for _, test := range []struct {
		in   float64
		want string
	}{
		{in: 0.35, want: "0.35"},
		{in: 1, want: "1.0"},
		{in: 0, want: "0.0"},
		{in: 52.1234, want: "52.1234"},
		{in: -7.5, want: "-7.5"},
		{in: 12.35, want: "12.35"},
	} {
		if got := formatFloat(test.in); got != test.want {
			t.Errorf("formatFloat(%g) = %q, want %q", test.in, got, test.want)
		}
	}
}
