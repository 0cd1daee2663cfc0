// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package run sequences a picoammeter measurement: configure, arm, wait out
// the acquisition, fetch the trace buffer, and persist the readings.
//
// Configuration writes are not retried and not rolled back; a failure leaves
// the instrument partially configured and propagates to the caller. Trace
// reads, in contrast, retry on a fixed budget because the instrument may
// still be acquiring when the first poll lands.
package run

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/device/k6485"
)

const (
	maxReadAttempts = 5
	readRetryDelay  = 2 * time.Second
)

// ErrReadTimeout is returned when the trace-read retry budget is exhausted.
var ErrReadTimeout = errors.New("run: communication timeout reading trace data")

// Runner drives measurement runs on one ammeter. It is not safe for
// concurrent use; the instrument session underneath is exclusive.
type Runner struct {
	am  *k6485.Ammeter
	cfg Config
	log zerolog.Logger

	attempts   int
	retryDelay time.Duration
}

// New creates a runner for the given ammeter and configuration.
func New(am *k6485.Ammeter, cfg Config, log zerolog.Logger) *Runner {
	return &Runner{am: am, cfg: cfg, log: log, retryDelay: readRetryDelay}
}

// Run performs one full measurement: validate, configure, arm, wait the
// computed run time, then collect and persist the trace buffer. Cancelling
// the context aborts the acquisition, stops buffer accumulation, and
// attempts one final read before returning; configuration already applied is
// not rolled back.
func (r *Runner) Run(ctx context.Context) ([]k6485.Reading, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.configure(); err != nil {
		return nil, err
	}
	if err := r.arm(); err != nil {
		return nil, err
	}

	total := r.cfg.TotalTime()
	r.log.Info().
		Int("readings", r.cfg.Readings).
		Dur("step", r.cfg.StepTime()).
		Dur("total", total).
		Msg("measurement armed")

	select {
	case <-time.After(total):
	case <-ctx.Done():
		return nil, multierr.Append(ctx.Err(), r.stop())
	}
	return r.collect(ctx)
}

// SaveLast fetches whatever the trace buffer currently holds and persists
// it, without arming a new run.
func (r *Runner) SaveLast(ctx context.Context) ([]k6485.Reading, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	return r.collect(ctx)
}

// configure applies the run settings in order. The first failing write
// aborts; the instrument keeps whatever configuration was applied so far.
func (r *Runner) configure() error {
	if err := r.am.Reset(); err != nil {
		return err
	}
	if r.cfg.Range == "auto" {
		if err := r.am.SetRangeAuto(true); err != nil {
			return err
		}
	} else {
		cr, err := k6485.ParseCurrentRange(r.cfg.Range)
		if err != nil {
			return err
		}
		if err := r.am.SetRange(cr); err != nil {
			return err
		}
	}
	if err := r.am.SetIntegrationTime(r.cfg.IntegrationTime); err != nil {
		return err
	}
	if err := r.am.SetReadingCount(r.cfg.Readings); err != nil {
		return err
	}
	if err := r.setFilters(); err != nil {
		return err
	}
	if err := r.am.SetArmSource(k6485.TriggerImmediate); err != nil {
		return err
	}
	trig, err := r.cfg.trigger()
	if err != nil {
		return err
	}
	if err := r.am.SetTriggerSource(trig); err != nil {
		return err
	}
	if err := r.am.SetElements(k6485.ElemReading, k6485.ElemTime); err != nil {
		return err
	}
	return r.am.SetTimestampFormat(k6485.TimestampAbsolute)
}

// setFilters sizes both filters and sets their final enablement. The median
// filter acts first in the instrument's pipeline.
func (r *Runner) setFilters() error {
	if r.cfg.Median.Window > 0 {
		if err := r.am.Filter("median", r.cfg.Median.Window); err != nil {
			return err
		}
	}
	if err := r.am.Filter("median", r.cfg.Median.Enabled); err != nil {
		return err
	}

	kind := "average"
	if r.cfg.Mean.Mode != "" {
		kind += ":" + string(r.cfg.Mean.Mode)
	}
	if r.cfg.Mean.Window > 0 {
		if err := r.am.Filter(kind, r.cfg.Mean.Window); err != nil {
			return err
		}
	}
	return r.am.Filter("average", r.cfg.Mean.Enabled)
}

// arm points the trace buffer at the sense feed and starts the acquisition.
// Zero check, zero correct, and autozero are disabled for the run.
func (r *Runner) arm() error {
	steps := []func() error{
		func() error { return r.am.SetZeroCheck(false) },
		func() error { return r.am.SetZeroCorrect(false) },
		func() error { return r.am.SetAutoZero(false) },
		r.am.TraceClear,
		func() error { return r.am.TraceFeed(k6485.FeedSense) },
		func() error { return r.am.TraceFeedControl(k6485.FeedNext) },
		r.am.Init,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// collect polls the trace buffer, retrying reads and parse failures on the
// fixed budget. Once the budget is spent, a read failure surfaces as
// ErrReadTimeout; a parse failure persists the raw payload before
// propagating, so the data is never discarded. The attempt counter resets
// for the next run either way.
func (r *Runner) collect(ctx context.Context) ([]k6485.Reading, error) {
	r.attempts = 0
	for {
		r.attempts++
		data, err := r.am.TraceData()
		if err != nil {
			if r.attempts >= maxReadAttempts {
				r.attempts = 0
				return nil, multierr.Append(ErrReadTimeout, err)
			}
			r.log.Warn().Err(err).Int("attempt", r.attempts).Msg("trace read failed, retrying")
			if err := sleep(ctx, r.retryDelay); err != nil {
				return nil, err
			}
			continue
		}

		readings, perr := k6485.ParseTrace(data)
		if perr != nil {
			if r.attempts < maxReadAttempts {
				r.log.Warn().Err(perr).Int("attempt", r.attempts).Msg("trace parse failed, retrying")
				if err := sleep(ctx, r.retryDelay); err != nil {
					return nil, err
				}
				continue
			}
			r.attempts = 0
			r.log.Error().Err(perr).Str("path", r.cfg.OutPath).Msg("parse failed, saving raw data")
			return nil, multierr.Append(perr, saveRaw(r.cfg.OutPath, data))
		}

		r.attempts = 0
		if err := save(r.cfg.OutPath, readings); err != nil {
			return readings, err
		}
		r.log.Info().Int("readings", len(readings)).Str("path", r.cfg.OutPath).Msg("run complete")
		return readings, nil
	}
}

// stop aborts the acquisition, stops buffer accumulation, and makes one
// final attempt to persist what was captured.
func (r *Runner) stop() error {
	err := multierr.Combine(
		r.am.Abort(),
		r.am.TraceFeedControl(k6485.FeedNever),
	)
	data, rerr := r.am.TraceData()
	if rerr != nil {
		return multierr.Append(err, rerr)
	}
	readings, perr := k6485.ParseTrace(data)
	if perr != nil {
		return multierr.Combine(err, perr, saveRaw(r.cfg.OutPath, data))
	}
	return multierr.Append(err, save(r.cfg.OutPath, readings))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
