// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package k6485

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

// timeUnits maps unit tokens to seconds.
var timeUnits = map[string]float64{
	"ns": 1e-9,
	"us": 1e-6,
	"ms": 1e-3,
	"s":  1,
}

// ratePattern matches "<number><unit>", e.g. "20 ms". Units are
// case-sensitive lowercase tokens.
var ratePattern = regexp.MustCompile(`^(\d+)\s*([a-z]{1,2})$`)

// ParseCycles converts a time string of the form "<number><unit>" into a
// line-cycle count at the given line frequency. The unit is one of ns, us,
// ms, or s. Strings that do not match the pattern fail with
// scpi.ErrInvalidFormat; unrecognized units fail with scpi.ErrInvalidUnit.
func ParseCycles(s string, lineFreq float64) (float64, error) {
	m := ratePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: %q is not <number><unit>", scpi.ErrInvalidFormat, s)
	}
	mult, ok := timeUnits[m[2]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", scpi.ErrInvalidUnit, m[2])
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", scpi.ErrInvalidFormat, m[1])
	}
	return n * mult * lineFreq, nil
}

// Rate sets the integration time in power-line cycles. The instrument
// accepts between 0.01 cycles and one full second, i.e. the line frequency
// in cycles.
func (a *Ammeter) Rate(cycles float64) error {
	if cycles < 0.01 || cycles > a.lineFreq {
		return fmt.Errorf("%w: integration cycles %g must be between 0.01 and %g",
			scpi.ErrOutOfRange, cycles, a.lineFreq)
	}
	return a.Command("sens", "curr", "nplc").Set(cycles)
}

// RateText sets the integration time from a time string such as "20 ms",
// converting it to line cycles at the façade's line frequency.
func (a *Ammeter) RateText(s string) error {
	cycles, err := ParseCycles(s, a.lineFreq)
	if err != nil {
		return err
	}
	return a.Rate(cycles)
}

// SetIntegrationTime sets the integration time from milliseconds, the unit
// the run configuration uses.
func (a *Ammeter) SetIntegrationTime(ms float64) error {
	return a.Rate(ms / 1000 * a.lineFreq)
}
