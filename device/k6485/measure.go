// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package k6485

import (
	"fmt"
	"strings"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

// MaxReadings is the capacity of the instrument's trace buffer.
const MaxReadings = 2500

// TriggerSource selects what starts a measurement layer.
type TriggerSource int

const (
	// TriggerImmediate passes the layer as soon as it is reached.
	TriggerImmediate TriggerSource = iota

	// TriggerExternal waits for a pulse on the trigger link.
	TriggerExternal
)

// Wire returns the SCPI source name.
func (t TriggerSource) Wire() string {
	if t == TriggerExternal {
		return "TLIN"
	}
	return "IMM"
}

// Stored-element names for the output format.
const (
	ElemReading = "READ"
	ElemTime    = "TIME"
)

// Timestamp modes for buffered readings.
const (
	TimestampAbsolute = "ABS"
	TimestampDelta    = "DELT"
)

// Trace buffer feed sources and control modes.
const (
	FeedSense = "SENS"
	FeedNext  = "NEXT"
	FeedNever = "NEVER"
)

// SetRange selects a fixed current range.
func (a *Ammeter) SetRange(r CurrentRange) error {
	return a.Command("curr", "range").Set(r)
}

// SetRangeAuto toggles auto-ranging.
func (a *Ammeter) SetRangeAuto(on bool) error {
	return a.Command("curr", "range", "auto").Set(on)
}

// SetReadingCount arms n readings per run and sizes the trace buffer to
// match. n is bounded by the buffer capacity.
func (a *Ammeter) SetReadingCount(n int) error {
	if n < 1 || n > MaxReadings {
		return fmt.Errorf("%w: reading count %d must be between 1 and %d",
			scpi.ErrOutOfRange, n, MaxReadings)
	}
	if err := a.Command("trig", "count").Set(n); err != nil {
		return err
	}
	return a.Command("trace", "points").Set(n)
}

// SetArmSource selects the arm layer's event source.
func (a *Ammeter) SetArmSource(src TriggerSource) error {
	return a.Command("arm", "source").Set(src)
}

// SetTriggerSource selects the trigger layer's event source.
func (a *Ammeter) SetTriggerSource(src TriggerSource) error {
	return a.Command("trig", "source").Set(src)
}

// SetElements orders the elements stored with each reading.
func (a *Ammeter) SetElements(elems ...string) error {
	return a.Command("format", "elements").Set(strings.Join(elems, ","))
}

// SetTimestampFormat selects absolute or delta timestamps for buffered
// readings.
func (a *Ammeter) SetTimestampFormat(format string) error {
	return a.Command("trace", "tstamp", "format").Set(format)
}

// SetZeroCheck toggles the zero-check state.
func (a *Ammeter) SetZeroCheck(on bool) error {
	return a.Command("syst", "zch").Set(on)
}

// SetZeroCorrect toggles the zero-correction state.
func (a *Ammeter) SetZeroCorrect(on bool) error {
	return a.Command("syst", "zcor").Set(on)
}

// SetAutoZero toggles the autozero state.
func (a *Ammeter) SetAutoZero(on bool) error {
	return a.Command("syst", "azero").Set(on)
}

// TraceClear empties the trace buffer.
func (a *Ammeter) TraceClear() error {
	return a.Command("trace", "clear").Exec()
}

// TraceFeed selects the buffer's data source.
func (a *Ammeter) TraceFeed(src string) error {
	return a.Command("trace", "feed").Set(src)
}

// TraceFeedControl starts (NEXT) or stops (NEVER) buffer accumulation.
func (a *Ammeter) TraceFeedControl(mode string) error {
	return a.Command("trace", "feed", "control").Set(mode)
}

// TraceData queries the raw contents of the trace buffer.
func (a *Ammeter) TraceData() (string, error) {
	return a.Command("trace", "data").Query()
}

// Abort cancels an in-progress acquisition.
func (a *Ammeter) Abort() error {
	return a.Command("abor").Exec()
}
