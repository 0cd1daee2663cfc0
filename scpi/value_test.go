// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"errors"
	"testing"
)

func Test_ParseBool(t *testing.T) {
	cases := []struct {
		in   any
		want bool
		ok   bool
	}{
		{true, true, true},
		{false, false, true},
		{"on", true, true},
		{"ON", true, true},
		{" Off ", false, true},
		{"1", true, true},
		{"0", false, true},
		{"maybe", false, false},
		{2, false, false},
		{nil, false, false},
	}
	for _, c := range cases {
		got, err := ParseBool(c.in)
		if c.ok && err != nil {
			t.Errorf("ParseBool(%v): %v", c.in, err)
			continue
		}
		if !c.ok {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ParseBool(%v) = %v, want ErrInvalidArgument", c.in, err)
			}
			continue
		}
		if got != c.want {
			t.Errorf("ParseBool(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func Test_FormatState(t *testing.T) {
	if got := FormatState(true); got != On {
		t.Errorf("FormatState(true) = %q", got)
	}
	if got := FormatState(false); got != Off {
		t.Errorf("FormatState(false) = %q", got)
	}
}
