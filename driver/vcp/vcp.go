// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package vcp opens serial virtual COM ports for instrument sessions.
package vcp

import (
	"io"
	"time"

	"github.com/soypat/cereal"
	"go.bug.st/serial"
)

// VCP is a serial port configured for SCPI ASCII traffic (8 data bits, no
// parity, one stop bit).
type VCP struct {
	port serial.Port
}

// New opens the named serial port. A zero baud rate defaults to 9600, the
// picoammeter's factory setting.
func New(name string, mode cereal.Mode) (*VCP, error) {
	baud := int(mode.BaudRate)
	if baud == 0 {
		baud = 9600
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if mode.ReadTimeout > 0 {
		if err := port.SetReadTimeout(mode.ReadTimeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return &VCP{port: port}, nil
}

// Read reads from the serial port into the given byte slice.
func (v *VCP) Read(p []byte) (n int, err error) { return v.port.Read(p) }

// Write writes the given data to the serial port.
func (v *VCP) Write(p []byte) (n int, err error) { return v.port.Write(p) }

// Close closes the serial port.
func (v *VCP) Close() error { return v.port.Close() }

// Flush discards any unread data on the serial port.
func (v *VCP) Flush() error { return v.port.ResetInputBuffer() }

// SetReadTimeout changes the port's read timeout.
func (v *VCP) SetReadTimeout(d time.Duration) error { return v.port.SetReadTimeout(d) }

// Opener opens VCP ports. It satisfies the session's Opener seam, matching
// the cereal.Opener shape so cereal backends are drop-in replacements.
type Opener struct{}

// OpenPort opens the named port as a VCP.
func (Opener) OpenPort(name string, mode cereal.Mode) (io.ReadWriteCloser, error) {
	return New(name, mode)
}
