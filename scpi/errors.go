// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import "errors"

// Sentinel errors for the instrument layer. Argument-validation errors are
// raised before any traffic reaches the wire; transport failures are wrapped
// around the underlying I/O error instead.
var (
	// ErrNotConnected is returned when an operation needs a live
	// communication handle and the session has none.
	ErrNotConnected = errors.New("scpi: instrument not connected")

	// ErrNoResource is returned by Connect when no resource identifier has
	// been computed, i.e. the session has no port.
	ErrNoResource = errors.New("scpi: no resource id, set a port first")

	// ErrInvalidArgument rejects a caller-supplied value that matches no
	// accepted form.
	ErrInvalidArgument = errors.New("scpi: invalid argument")

	// ErrInvalidFormat rejects a string that does not parse as
	// <number><unit>.
	ErrInvalidFormat = errors.New("scpi: invalid time string")

	// ErrInvalidUnit rejects an unrecognized time unit token.
	ErrInvalidUnit = errors.New("scpi: invalid time unit")

	// ErrOutOfRange rejects a numeric value outside its permitted interval.
	ErrOutOfRange = errors.New("scpi: value out of range")

	// ErrParse is returned when an instrument response does not match the
	// expected shape.
	ErrParse = errors.New("scpi: malformed instrument response")
)
