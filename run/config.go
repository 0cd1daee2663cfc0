// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/device/k6485"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

// MeanMode selects the average filter's window behavior.
type MeanMode string

const (
	// MeanMoving keeps a rolling window.
	MeanMoving MeanMode = "moving"

	// MeanRepeat averages a full window, stores one result, and clears the
	// stack before refilling.
	MeanRepeat MeanMode = "repeat"
)

// MedianFilter configures the instrument's median filter for a run.
type MedianFilter struct {
	Enabled bool
	Window  int // rank, 1–5
}

// MeanFilter configures the instrument's average filter for a run.
type MeanFilter struct {
	Enabled bool
	Mode    MeanMode
	Window  int // 2–100
}

// Config describes one measurement run.
type Config struct {
	// Range is a current-range label such as "20 nA", or "auto".
	Range string

	// IntegrationTime is the per-reading integration time in milliseconds.
	IntegrationTime float64

	// Readings is the number of samples to buffer, bounded by the trace
	// buffer capacity.
	Readings int

	// Trigger is "immediate" or "external".
	Trigger string

	Median MedianFilter
	Mean   MeanFilter

	// OutPath is where the readings table is written.
	OutPath string
}

// Validate rejects a configuration before any wire traffic is sent.
func (c Config) Validate() error {
	if c.Range != "auto" {
		if _, err := k6485.ParseCurrentRange(c.Range); err != nil {
			return err
		}
	}
	if c.IntegrationTime <= 0 {
		return fmt.Errorf("%w: integration time %g ms", scpi.ErrOutOfRange, c.IntegrationTime)
	}
	if c.Readings < 1 || c.Readings > k6485.MaxReadings {
		return fmt.Errorf("%w: reading count %d must be between 1 and %d",
			scpi.ErrOutOfRange, c.Readings, k6485.MaxReadings)
	}
	if _, err := c.trigger(); err != nil {
		return err
	}
	if c.Median.Enabled &&
		(c.Median.Window < k6485.MedianRankMin || c.Median.Window > k6485.MedianRankMax) {
		return fmt.Errorf("%w: median rank %d", scpi.ErrOutOfRange, c.Median.Window)
	}
	if c.Mean.Enabled {
		if c.Mean.Window < k6485.AverageWinMin || c.Mean.Window > k6485.AverageWinMax {
			return fmt.Errorf("%w: mean window %d", scpi.ErrOutOfRange, c.Mean.Window)
		}
		switch c.Mean.Mode {
		case MeanMoving, MeanRepeat, "":
		default:
			return fmt.Errorf("%w: mean mode %q", scpi.ErrInvalidArgument, c.Mean.Mode)
		}
	}
	if c.OutPath == "" {
		return fmt.Errorf("%w: no output path", scpi.ErrInvalidArgument)
	}
	return nil
}

func (c Config) trigger() (k6485.TriggerSource, error) {
	switch strings.ToLower(c.Trigger) {
	case "immediate", "":
		return k6485.TriggerImmediate, nil
	case "external":
		return k6485.TriggerExternal, nil
	}
	return 0, fmt.Errorf("%w: trigger source %q", scpi.ErrInvalidArgument, c.Trigger)
}

// StepTime is the wall time one stored reading takes. A repeat-mode mean
// filter multiplies it by the window, since a full window is consumed per
// stored value.
func (c Config) StepTime() time.Duration {
	step := c.IntegrationTime
	if c.Mean.Enabled && c.Mean.Mode == MeanRepeat {
		step *= float64(c.Mean.Window)
	}
	return msToDuration(step)
}

// TotalTime estimates the full run duration: the per-reading step times the
// reading count, plus the fill time of any rolling filter windows. The
// median filter fills first when both are enabled.
func (c Config) TotalTime() time.Duration {
	step := c.IntegrationTime
	fill := 0.0
	if c.Median.Enabled {
		fill += step * float64(c.Median.Window-1)
	}
	if c.Mean.Enabled {
		if c.Mean.Mode == MeanRepeat {
			step *= float64(c.Mean.Window)
		} else {
			fill += step * float64(c.Mean.Window-1)
		}
	}
	return msToDuration(step*float64(c.Readings) + fill)
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
