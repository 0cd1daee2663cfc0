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

func Test_Filter(t *testing.T) {
	cases := []struct {
		name  string
		kind  string
		state any
		want  []string
		err   error
	}{
		{
			name:  "median window sizes and enables",
			kind:  "median",
			state: 3,
			want:  []string{"MED:RANK 3", "MED ON"},
		},
		{
			name:  "med alias toggles off",
			kind:  "med",
			state: "off",
			want:  []string{"MED OFF"},
		},
		{
			name:  "median rank out of range",
			kind:  "median",
			state: 6,
			err:   scpi.ErrOutOfRange,
		},
		{
			name:  "median takes no modifier",
			kind:  "median:moving",
			state: 3,
			err:   scpi.ErrInvalidArgument,
		},
		{
			name:  "average with moving modifier",
			kind:  "average:moving",
			state: 10,
			want:  []string{"AVER:TCON MOV", "AVER:COUN 10", "AVER ON"},
		},
		{
			name:  "avg repeat toggles without window",
			kind:  "avg:repeat",
			state: true,
			want:  []string{"AVER:TCON REP", "AVER ON"},
		},
		{
			name:  "avg enable only",
			kind:  "avg",
			state: "on",
			want:  []string{"AVER ON"},
		},
		{
			name:  "average window too small",
			kind:  "average",
			state: 1,
			err:   scpi.ErrOutOfRange,
		},
		{
			name:  "average window too large",
			kind:  "average",
			state: 101,
			err:   scpi.ErrOutOfRange,
		},
		{
			name:  "unknown window type",
			kind:  "average:bogus",
			state: 10,
			err:   scpi.ErrInvalidArgument,
		},
		{
			name:  "unknown kind",
			kind:  "boxcar",
			state: 3,
			err:   scpi.ErrInvalidArgument,
		},
		{
			name:  "unparseable state",
			kind:  "avg",
			state: "maybe",
			err:   scpi.ErrInvalidArgument,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			am, p := newTestAmmeter(t, nil)
			err := am.Filter(c.kind, c.state)
			if c.err != nil {
				if !errors.Is(err, c.err) {
					t.Fatalf("Filter(%q, %v) = %v, want %v", c.kind, c.state, err, c.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(p.writes) != len(c.want) {
				t.Fatalf("writes = %q, want %q", p.writes, c.want)
			}
			for i := range c.want {
				if p.writes[i] != c.want[i] {
					t.Errorf("write %d = %q, want %q", i, p.writes[i], c.want[i])
				}
			}
		})
	}
}
