// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package scpi talks to SCPI instruments over a serial VISA-style resource.
//
// A Session owns the physical connection and exposes write/read/query line
// primitives. Commands the typed device façades do not cover are reached
// through the Command builder, which maps the hierarchical colon-delimited
// SCPI grammar onto chained Sub calls.
package scpi

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/soypat/cereal"
	"go.uber.org/multierr"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/driver/vcp"
)

// Backend selects the resource-identifier convention of the VISA layer the
// instrument was provisioned for. It replaces the ambient backend string of
// older tooling and is fixed at session construction.
type Backend int

const (
	// BackendIVI formats ASRL resources with the bare port number, so a
	// "COM" prefix on the port name is stripped.
	BackendIVI Backend = iota

	// BackendPy formats ASRL resources with the full COM name, adding the
	// "COM" prefix when missing.
	BackendPy
)

// Opener opens a serial port in the given mode. Implementations from
// github.com/soypat/cereal (cereal.Tarm and friends) satisfy it, as does
// vcp.Opener, the default.
type Opener interface {
	OpenPort(name string, mode cereal.Mode) (io.ReadWriteCloser, error)
}

// Session is an exclusive connection to one SCPI instrument. Only one caller
// may hold the open handle; all I/O is synchronous and blocking up to the
// configured timeout, and callers must serialize access.
type Session struct {
	port      string
	rid       string
	backend   Backend
	baud      int
	timeout   time.Duration
	readTerm  byte
	writeTerm byte
	opener    Opener

	handle io.ReadWriteCloser // nil while disconnected
	br     *bufio.Reader
}

// Option applies an option to the session.
type Option func(*Session)

// WithTimeout sets the communication timeout applied when the port opens.
func WithTimeout(d time.Duration) Option { return func(s *Session) { s.timeout = d } }

// WithBaudRate sets the serial baud rate.
func WithBaudRate(baud int) Option { return func(s *Session) { s.baud = baud } }

// WithReadTerminator sets the character that terminates data read from the
// instrument.
func WithReadTerminator(t byte) Option { return func(s *Session) { s.readTerm = t } }

// WithWriteTerminator sets the character appended to strings written to the
// instrument.
func WithWriteTerminator(t byte) Option { return func(s *Session) { s.writeTerm = t } }

// WithBackend selects the resource-identifier convention.
func WithBackend(b Backend) Option { return func(s *Session) { s.backend = b } }

// WithOpener replaces the serial transport used to open the port.
func WithOpener(o Opener) Option { return func(s *Session) { s.opener = o } }

// NewSession creates a session for the instrument on the given port. The
// port may be empty and assigned later with SetPort; the session does not
// connect until Connect is called.
func NewSession(port string, opts ...Option) *Session {
	s := &Session{
		baud:      9600,
		timeout:   10 * time.Second,
		readTerm:  '\n',
		writeTerm: '\n',
		opener:    vcp.Opener{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.SetPort(port) //nolint:errcheck // fresh session, nothing to disconnect
	return s
}

// SetPort disconnects from the current port if connected, then recomputes
// the resource identifier for the new one. It does not reconnect. An empty
// port clears the resource identifier. The returned error comes from the
// disconnect; the port is updated regardless so that the session is never
// left connected with a stale port.
func (s *Session) SetPort(port string) error {
	var err error
	if s.handle != nil {
		err = s.Disconnect()
	}
	s.port = port
	s.rid = resourceID(port, s.backend)
	return err
}

// resourceID derives the VISA resource identifier for a port name under the
// given backend convention.
func resourceID(port string, backend Backend) string {
	if port == "" {
		return ""
	}
	switch backend {
	case BackendPy:
		if !strings.Contains(port, "COM") {
			port = "COM" + port
		}
	default:
		port = strings.ReplaceAll(port, "COM", "")
	}
	return fmt.Sprintf("ASRL%s::INSTR", port)
}

// Port returns the port the session was given.
func (s *Session) Port() string { return s.port }

// ResourceID returns the VISA resource identifier derived from the port, or
// the empty string when no port is set.
func (s *Session) ResourceID() string { return s.rid }

// Timeout returns the configured communication timeout.
func (s *Session) Timeout() time.Duration { return s.timeout }

// Connected reports whether the session holds a live communication handle.
// A session that was never connected, or whose handle has been released,
// counts as disconnected.
func (s *Session) Connected() bool { return s.handle != nil }

// Connect opens the communication handle for the session's resource and
// issues an identity query, which places the instrument in remote-control
// mode. Connecting an already-connected session reopens the port instead of
// stacking a second handle.
func (s *Session) Connect() error {
	if s.rid == "" {
		return ErrNoResource
	}
	if s.handle != nil {
		if err := s.release(); err != nil {
			return fmt.Errorf("reopen %s: %w", s.rid, err)
		}
	}
	h, err := s.opener.OpenPort(s.port, cereal.Mode{
		BaudRate:    s.baud,
		ReadTimeout: s.timeout,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", s.rid, err)
	}
	s.handle = h
	s.br = bufio.NewReader(h)
	if _, err := s.ID(); err != nil {
		return multierr.Append(
			fmt.Errorf("remote handshake %s: %w", s.rid, err),
			s.release(),
		)
	}
	return nil
}

// Disconnect returns the instrument to local control and releases the
// handle. It is a no-op when not connected.
func (s *Session) Disconnect() error {
	if s.handle == nil {
		return nil
	}
	err := s.Command("syst", "loc").Exec()
	return multierr.Append(err, s.release())
}

// Close disconnects if still connected. It exists so a session can be placed
// in a defer alongside other io.Closers.
func (s *Session) Close() error { return s.Disconnect() }

func (s *Session) release() error {
	h := s.handle
	s.handle = nil
	s.br = nil
	if h == nil {
		return nil
	}
	return h.Close()
}

// Write sends one message to the instrument, appending the write terminator.
func (s *Session) Write(msg string) error {
	if s.handle == nil {
		return ErrNotConnected
	}
	_, err := s.handle.Write(append([]byte(msg), s.writeTerm))
	return err
}

// Read returns the most recent response from the instrument, stripped of
// trailing terminator characters. EOF with data already read is not an
// error; some serial bridges terminate short reads that way.
func (s *Session) Read() (string, error) {
	if s.handle == nil {
		return "", ErrNotConnected
	}
	line, err := s.br.ReadString(s.readTerm)
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Query sends msg and returns the instrument's response.
func (s *Session) Query(msg string) (string, error) {
	if err := s.Write(msg); err != nil {
		return "", err
	}
	return s.Read()
}

// Reset writes the standard reset command, returning the instrument to its
// default state.
func (s *Session) Reset() error { return s.Write("*RST") }

// Init initializes the instrument for a measurement.
func (s *Session) Init() error { return s.Write("INIT") }

// ID queries the manufacturer identity string.
func (s *Session) ID() (string, error) { return s.Query("*IDN?") }

// Value queries the instantaneous reading as the instrument formats it.
func (s *Session) Value() (string, error) { return s.Query("READ?") }
