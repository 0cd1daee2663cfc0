// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package k6485

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

// Reading is one buffered sample: the measured current in amps and its
// timestamp in seconds.
type Reading struct {
	Time  float64
	Value float64
}

// ParseTrace parses a trace-buffer dump: one comma-separated line of
// alternating value,timestamp pairs in SCPI ASCII float form. An empty dump,
// an odd field count, or a non-numeric field fails with scpi.ErrParse.
func ParseTrace(data string) ([]Reading, error) {
	fields := strings.Split(strings.TrimSpace(data), ",")
	if len(fields) < 2 || len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: %d fields do not form value,timestamp pairs",
			scpi.ErrParse, len(fields))
	}
	readings := make([]Reading, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		value, err := parseFloat(fields[i])
		if err != nil {
			return nil, err
		}
		ts, err := parseFloat(fields[i+1])
		if err != nil {
			return nil, err
		}
		readings = append(readings, Reading{Time: ts, Value: value})
	}
	return readings, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", scpi.ErrParse, strings.TrimSpace(s))
	}
	return f, nil
}

// ReadTrace fetches and parses the trace buffer.
func (a *Ammeter) ReadTrace() ([]Reading, error) {
	data, err := a.TraceData()
	if err != nil {
		return nil, err
	}
	return ParseTrace(data)
}
