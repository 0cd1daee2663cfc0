// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package k6485

import (
	"errors"
	"testing"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

func Test_TriggerSourceWire(t *testing.T) {
	if got := TriggerImmediate.Wire(); got != "IMM" {
		t.Errorf("TriggerImmediate = %q", got)
	}
	if got := TriggerExternal.Wire(); got != "TLIN" {
		t.Errorf("TriggerExternal = %q", got)
	}
}

func Test_SetReadingCount(t *testing.T) {
	am, p := newTestAmmeter(t, nil)
	if err := am.SetReadingCount(25); err != nil {
		t.Fatal(err)
	}
	want := []string{"TRIG:COUNT 25", "TRACE:POINTS 25"}
	if len(p.writes) != len(want) {
		t.Fatalf("writes = %q, want %q", p.writes, want)
	}
	for i := range want {
		if p.writes[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, p.writes[i], want[i])
		}
	}
	if err := am.SetReadingCount(0); !errors.Is(err, scpi.ErrOutOfRange) {
		t.Errorf("SetReadingCount(0) = %v, want ErrOutOfRange", err)
	}
	if err := am.SetReadingCount(MaxReadings + 1); !errors.Is(err, scpi.ErrOutOfRange) {
		t.Errorf("SetReadingCount(%d) = %v, want ErrOutOfRange", MaxReadings+1, err)
	}
}

func Test_MeasurementSetup(t *testing.T) {
	am, p := newTestAmmeter(t, nil)
	steps := []struct {
		call func() error
		want string
	}{
		{func() error { return am.SetRange(Range20nA) }, "CURR:RANGE 2E-8"},
		{func() error { return am.SetRangeAuto(true) }, "CURR:RANGE:AUTO ON"},
		{func() error { return am.SetArmSource(TriggerImmediate) }, "ARM:SOURCE IMM"},
		{func() error { return am.SetTriggerSource(TriggerExternal) }, "TRIG:SOURCE TLIN"},
		{func() error { return am.SetElements(ElemReading, ElemTime) }, "FORMAT:ELEMENTS READ,TIME"},
		{func() error { return am.SetTimestampFormat(TimestampAbsolute) }, "TRACE:TSTAMP:FORMAT ABS"},
		{func() error { return am.SetZeroCheck(false) }, "SYST:ZCH OFF"},
		{func() error { return am.SetZeroCorrect(false) }, "SYST:ZCOR OFF"},
		{func() error { return am.SetAutoZero(false) }, "SYST:AZERO OFF"},
		{am.TraceClear, "TRACE:CLEAR"},
		{func() error { return am.TraceFeed(FeedSense) }, "TRACE:FEED SENS"},
		{func() error { return am.TraceFeedControl(FeedNext) }, "TRACE:FEED:CONTROL NEXT"},
		{am.Abort, "ABOR"},
	}
	for i, s := range steps {
		p.writes = nil
		if err := s.call(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if len(p.writes) != 1 || p.writes[0] != s.want {
			t.Errorf("step %d wrote %q, want %q", i, p.writes, s.want)
		}
	}
}
