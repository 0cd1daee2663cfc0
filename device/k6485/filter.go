// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package k6485

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

// filterKind matches a filter kind with an optional window-behavior
// modifier, e.g. "average:moving".
var filterKind = regexp.MustCompile(`^(\w+)\s*:\s*(\w+)$`)

// Filter window bounds by kind.
const (
	MedianRankMin = 1
	MedianRankMax = 5
	AverageWinMin = 2
	AverageWinMax = 100
)

// Filter configures one of the instrument's reading filters.
//
// kind is "median"/"med" or "average"/"avg", the latter optionally suffixed
// with ":moving" or ":repeat" to select the window behavior first. An absent
// modifier leaves the window behavior unchanged.
//
// state is either an integer window size, which sets the window and enables
// the filter (median rank 1–5, average window 2–100), or a boolean-like
// value (true/false, "on"/"off") that toggles enablement without touching a
// previously set window.
func (a *Ammeter) Filter(kind string, state any) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	mod := ""
	if m := filterKind.FindStringSubmatch(kind); m != nil {
		kind, mod = m[1], m[2]
	}

	switch kind {
	case "median", "med":
		if mod != "" {
			return fmt.Errorf("%w: median filter takes no %q modifier", scpi.ErrInvalidArgument, mod)
		}
		return a.setFilter(a.Command("med"), a.Command("med", "rank"), state, MedianRankMin, MedianRankMax)

	case "average", "avg":
		if mod != "" {
			var tcon string
			switch mod {
			case "moving":
				tcon = "MOV"
			case "repeat":
				tcon = "REP"
			default:
				return fmt.Errorf("%w: window type %q", scpi.ErrInvalidArgument, mod)
			}
			if err := a.Command("aver", "tcon").Set(tcon); err != nil {
				return err
			}
		}
		return a.setFilter(a.Command("aver"), a.Command("aver", "coun"), state, AverageWinMin, AverageWinMax)

	default:
		return fmt.Errorf("%w: filter kind %q", scpi.ErrInvalidArgument, kind)
	}
}

// setFilter applies a filter state: an int sizes the window and enables, a
// boolean-like value toggles enablement only.
func (a *Ammeter) setFilter(enable, window scpi.Command, state any, min, max int) error {
	if n, ok := state.(int); ok {
		if n < min || n > max {
			return fmt.Errorf("%w: window size %d must be between %d and %d",
				scpi.ErrOutOfRange, n, min, max)
		}
		if err := window.Set(n); err != nil {
			return err
		}
		return enable.Set(scpi.On)
	}
	on, err := scpi.ParseBool(state)
	if err != nil {
		return fmt.Errorf("%w: filter state %v", scpi.ErrInvalidArgument, state)
	}
	return enable.Set(scpi.FormatState(on))
}
