// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package k6485 controls Keithley 6485 and 6487 picoammeters over a serial
// VISA resource.
//
// The typed API covers the operations a measurement run needs. Anything else
// the instrument understands is reachable through the embedded session's
// Command builder:
//
//	am.Command("syst", "zch").Set(scpi.On)   // SYST:ZCH ON
//	am.Command("curr", "rang").Query()       // CURR:RANG?
//	am.Command("syst", "zcor", "acq").Exec() // SYST:ZCOR:ACQ
//
// Many instrument operations depend on the local power-line frequency, which
// defaults to 50 Hz.
package k6485

import (
	"fmt"
	"strings"

	"github.com/gotmc/query"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

// DefaultLineFreq is the power-line frequency assumed until the caller sets
// one, in Hz.
const DefaultLineFreq = 50.0

// Ammeter is a Keithley 6485/6487 picoammeter.
type Ammeter struct {
	*scpi.Session
	lineFreq float64
}

// New creates an ammeter on the given port. The instrument terminates lines
// with a carriage return in both directions and is addressed with the full
// COM name in its ASRL resource. Session options may override timeout, baud
// rate, or the transport opener.
func New(port string, opts ...scpi.Option) *Ammeter {
	base := []scpi.Option{
		scpi.WithBackend(scpi.BackendPy),
		scpi.WithReadTerminator('\r'),
		scpi.WithWriteTerminator('\r'),
	}
	return &Ammeter{
		Session:  scpi.NewSession(port, append(base, opts...)...),
		lineFreq: DefaultLineFreq,
	}
}

// LineFreq returns the power-line frequency used for integration-time
// conversions, in Hz.
func (a *Ammeter) LineFreq() float64 { return a.lineFreq }

// SetLineFreq sets the power-line frequency the instrument is connected to.
func (a *Ammeter) SetLineFreq(hz float64) { a.lineFreq = hz }

// CurrentRange is one of the instrument's fixed current ranges. The wire
// form is the value sent when selecting a range; the instrument echoes the
// longer calibrated form when queried.
type CurrentRange struct {
	label string
	wire  string
	echo  string
}

// Wire returns the value used to select the range, e.g. "2E-9".
func (r CurrentRange) Wire() string { return r.wire }

// String returns the human-readable label, e.g. "2 nA".
func (r CurrentRange) String() string { return r.label }

// The fixed current ranges of the 6485/6487.
var (
	Range2nA   = CurrentRange{"2 nA", "2E-9", "2.100000E-09"}
	Range20nA  = CurrentRange{"20 nA", "2E-8", "2.100000E-08"}
	Range200nA = CurrentRange{"200 nA", "2E-7", "2.100000E-07"}
	Range2uA   = CurrentRange{"2 uA", "2E-6", "2.100000E-06"}
	Range20uA  = CurrentRange{"20 uA", "2E-5", "2.100000E-05"}
	Range200uA = CurrentRange{"200 uA", "2E-4", "2.100000E-04"}
	Range2mA   = CurrentRange{"2 mA", "2E-3", "2.100000E-03"}
	Range20mA  = CurrentRange{"20 mA", "2E-2", "2.100000E-02"}
)

var currentRanges = []CurrentRange{
	Range2nA, Range20nA, Range200nA,
	Range2uA, Range20uA, Range200uA,
	Range2mA, Range20mA,
}

// ParseCurrentRange matches a range by label ("20 nA"), wire form ("2E-8"),
// or the instrument's query echo ("2.100000E-08"). Matching ignores case and
// surrounding whitespace.
func ParseCurrentRange(s string) (CurrentRange, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	for _, r := range currentRanges {
		switch norm {
		case strings.ToUpper(r.label), r.wire, r.echo:
			return r, nil
		}
	}
	return CurrentRange{}, fmt.Errorf("%w: unknown current range %q", scpi.ErrInvalidArgument, s)
}

// Function is a measurement function selection. The wire form carries the
// quotes the instrument expects around function names.
type Function struct {
	wire string
}

// Wire returns the quoted function name.
func (f Function) Wire() string { return f.wire }

// Measurement functions.
var (
	FuncCurrent   = Function{`"CURR"`}
	FuncCurrentDC = Function{`"CURR:DC"`}
)

// Zero nulls the meter's internal offset current and leaves it auto-ranging
// with zero check disabled. The order is load-bearing: the zero-correction
// acquisition must run while correction is off and zero check is still on,
// and correction is re-enabled only after the acquisition. A failing step
// aborts the sequence and leaves the instrument in whatever state that step
// produced.
func (a *Ammeter) Zero() error {
	steps := []func() error{
		a.Reset,
		func() error { return a.Command("func").Set(FuncCurrent) },
		func() error { return a.Command("curr", "range").Set(Range2nA) },
		a.Init,
		func() error { return a.Command("syst", "zcor", "stat").Set(scpi.Off) },
		func() error { return a.Command("syst", "zcor", "acq").Exec() },
		func() error { return a.Command("syst", "zcor").Set(scpi.On) },
		func() error { return a.Command("curr", "rang", "auto").Set(scpi.On) },
		func() error { return a.Command("syst", "zch").Set(scpi.Off) },
		func() error {
			// settling read
			_, err := a.Value()
			return err
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// ReadValue triggers one measurement and returns the current in amps. When
// the output format carries more than one element, the reading comes first.
func (a *Ammeter) ReadValue() (float64, error) {
	raw, err := a.Value()
	if err != nil {
		return 0, err
	}
	first, _, _ := strings.Cut(raw, ",")
	return parseFloat(first)
}

// RateSetting reads back the configured integration rate in line cycles.
func (a *Ammeter) RateSetting() (float64, error) {
	return query.Float64(a, "SENS:CURR:NPLC?")
}

// TriggerCount reads back the number of readings armed per run.
func (a *Ammeter) TriggerCount() (int, error) {
	return query.Int(a, "TRIG:COUN?")
}

// MedianEnabled reports whether the median filter is on.
func (a *Ammeter) MedianEnabled() (bool, error) {
	return query.Bool(a, "MED?")
}

// AverageEnabled reports whether the average filter is on.
func (a *Ammeter) AverageEnabled() (bool, error) {
	return query.Bool(a, "AVER?")
}
