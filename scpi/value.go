// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"fmt"
	"strings"
)

// Wirer is implemented by typed instrument values that know their SCPI wire
// representation, e.g. a current range whose canonical tag is "2 nA" but
// whose wire form is "2E-9". Command.Set substitutes the wire form before
// serialization.
type Wirer interface {
	Wire() string
}

// SCPI state keywords.
const (
	On  = "ON"
	Off = "OFF"
)

// ParseBool converts standard state input to a boolean.
//
// True:  true,  "on",  "1"
// False: false, "off", "0"
//
// String matching is case-insensitive. Anything else is ErrInvalidArgument.
func ParseBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "on", "1":
			return true, nil
		case "off", "0":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q is not a state", ErrInvalidArgument, b)
	}
	return false, fmt.Errorf("%w: %[2]v (%[2]T) is not a state", ErrInvalidArgument, v)
}

// FormatState converts a boolean to its SCPI state keyword.
func FormatState(on bool) string {
	if on {
		return On
	}
	return Off
}
