// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package run

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/soypat/cereal"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/device/k6485"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

const idnReply = "KEITHLEY INSTRUMENTS INC.,MODEL 6485,1234567,B03"

// replyFunc scripts the instrument: given a written message, it returns the
// response and whether one should be sent at all.
type replyFunc func(msg string) (string, bool)

type fakePort struct {
	writes []string
	rbuf   bytes.Buffer
	reply  replyFunc
}

func (p *fakePort) Write(b []byte) (int, error) {
	msg := strings.TrimRight(string(b), "\r\n")
	p.writes = append(p.writes, msg)
	if p.reply != nil {
		if resp, ok := p.reply(msg); ok {
			p.rbuf.WriteString(resp)
			p.rbuf.WriteByte('\r')
		}
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.rbuf.Len() == 0 {
		return 0, io.EOF
	}
	return p.rbuf.Read(b)
}

func (p *fakePort) Close() error { return nil }

type fakeOpener struct{ port *fakePort }

func (o *fakeOpener) OpenPort(name string, mode cereal.Mode) (io.ReadWriteCloser, error) {
	return o.port, nil
}

// scripted answers the identity handshake plus a fixed trace payload.
func scripted(trace string) replyFunc {
	return func(msg string) (string, bool) {
		switch msg {
		case "*IDN?":
			return idnReply, true
		case "TRACE:DATA?":
			return trace, true
		}
		return "", false
	}
}

func newTestRunner(t *testing.T, cfg Config, reply replyFunc) (*Runner, *fakePort) {
	t.Helper()
	p := &fakePort{reply: reply}
	am := k6485.New("COM5", scpi.WithOpener(&fakeOpener{port: p}))
	if err := am.Connect(); err != nil {
		t.Fatal(err)
	}
	p.writes = nil
	r := New(am, cfg, zerolog.Nop())
	r.retryDelay = time.Millisecond
	return r, p
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Range:           "auto",
		IntegrationTime: 1, // ms
		Readings:        2,
		Trigger:         "immediate",
		OutPath:         filepath.Join(t.TempDir(), "out.csv"),
	}
}

func hasWrite(p *fakePort, prefix string) bool {
	for _, w := range p.writes {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

func Test_Run(t *testing.T) {
	cfg := testConfig(t)
	r, p := newTestRunner(t, cfg, scripted("-1.0E-09,0.001,-2.0E-09,0.002"))

	readings, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings[0] != (k6485.Reading{Time: 0.001, Value: -1.0e-9}) {
		t.Errorf("reading 0 = %v", readings[0])
	}

	for _, want := range []string{
		"*RST",
		"CURR:RANGE:AUTO ON",
		"SENS:CURR:NPLC ",
		"TRIG:COUNT 2",
		"TRACE:POINTS 2",
		"MED OFF",
		"AVER OFF",
		"ARM:SOURCE IMM",
		"TRIG:SOURCE IMM",
		"FORMAT:ELEMENTS READ,TIME",
		"TRACE:TSTAMP:FORMAT ABS",
		"SYST:ZCH OFF",
		"SYST:ZCOR OFF",
		"SYST:AZERO OFF",
		"TRACE:CLEAR",
		"TRACE:FEED SENS",
		"TRACE:FEED:CONTROL NEXT",
		"INIT",
		"TRACE:DATA?",
	} {
		if !hasWrite(p, want) {
			t.Errorf("missing write %q in %q", want, p.writes)
		}
	}

	got, err := os.ReadFile(cfg.OutPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "Time [s], Current [A]\n0.001, -1e-09\n0.002, -2e-09\n"
	if string(got) != want {
		t.Errorf("saved table:\n%q\nwant:\n%q", got, want)
	}
}

func Test_RunFixedRangeAndFilters(t *testing.T) {
	cfg := testConfig(t)
	cfg.Range = "20 nA"
	cfg.Readings = 1
	cfg.Trigger = "external"
	cfg.Median = MedianFilter{Enabled: true, Window: 3}
	cfg.Mean = MeanFilter{Enabled: true, Mode: MeanRepeat, Window: 10}
	r, p := newTestRunner(t, cfg, scripted("-1.0E-09,0.001"))

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"CURR:RANGE 2E-8",
		"MED:RANK 3",
		"MED ON",
		"AVER:TCON REP",
		"AVER:COUN 10",
		"AVER ON",
		"TRIG:SOURCE TLIN",
	} {
		if !hasWrite(p, want) {
			t.Errorf("missing write %q in %q", want, p.writes)
		}
	}
}

func Test_RunRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Readings = 0
	r, p := newTestRunner(t, cfg, scripted(""))
	if _, err := r.Run(context.Background()); !errors.Is(err, scpi.ErrOutOfRange) {
		t.Fatalf("Run = %v, want ErrOutOfRange", err)
	}
	if len(p.writes) != 0 {
		t.Errorf("traffic sent before validation: %q", p.writes)
	}
}

func Test_RunRetriesTraceReads(t *testing.T) {
	attempts := 0
	reply := func(msg string) (string, bool) {
		switch msg {
		case "*IDN?":
			return idnReply, true
		case "TRACE:DATA?":
			attempts++
			if attempts < 3 {
				return "", false // instrument still acquiring
			}
			return "-1.0E-09,0.001,-2.0E-09,0.002", true
		}
		return "", false
	}
	cfg := testConfig(t)
	r, _ := newTestRunner(t, cfg, reply)
	readings, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Errorf("trace read attempts = %d, want 3", attempts)
	}
	if len(readings) != 2 {
		t.Errorf("got %d readings, want 2", len(readings))
	}
}

func Test_RunReadTimeout(t *testing.T) {
	reply := func(msg string) (string, bool) {
		if msg == "*IDN?" {
			return idnReply, true
		}
		return "", false
	}
	cfg := testConfig(t)
	r, _ := newTestRunner(t, cfg, reply)
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("Run = %v, want ErrReadTimeout", err)
	}
}

func Test_RunSavesRawOnParseFailure(t *testing.T) {
	cfg := testConfig(t)
	r, _ := newTestRunner(t, cfg, scripted("garbage"))
	_, err := r.Run(context.Background())
	if !errors.Is(err, scpi.ErrParse) {
		t.Fatalf("Run = %v, want ErrParse", err)
	}
	got, ferr := os.ReadFile(cfg.OutPath)
	if ferr != nil {
		t.Fatal(ferr)
	}
	want := "Time [s], Current [A]\ngarbage\n"
	if string(got) != want {
		t.Errorf("raw table = %q, want %q", got, want)
	}
}

func Test_RunCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.IntegrationTime = 100
	cfg.Readings = 2500 // long enough that only cancellation can end the wait
	r, p := newTestRunner(t, cfg, scripted("-1.0E-09,0.001"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if !hasWrite(p, "ABOR") {
		t.Error("acquisition not aborted")
	}
	if !hasWrite(p, "TRACE:FEED:CONTROL NEVER") {
		t.Error("buffer accumulation not stopped")
	}
	if _, ferr := os.Stat(cfg.OutPath); ferr != nil {
		t.Errorf("captured data not persisted: %v", ferr)
	}
}

func Test_SaveLast(t *testing.T) {
	cfg := testConfig(t)
	r, p := newTestRunner(t, cfg, scripted("-3.0E-09,0.003"))
	readings, err := r.SaveLast(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(readings))
	}
	if hasWrite(p, "*RST") || hasWrite(p, "INIT") {
		t.Errorf("SaveLast reconfigured the instrument: %q", p.writes)
	}
}
