// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"fmt"
	"strings"
)

// Command is one node in a SCPI command hierarchy, bound to the session that
// will carry its traffic. The zero segment list is never sent; segments are
// appended with Sub and serialized colon-delimited in uppercase, so
//
//	sess.Command("syst", "zcor", "acq")
//
// addresses SYST:ZCOR:ACQ. A Command is immutable: Sub returns a new value
// and equivalent paths are interchangeable. It holds no state beyond its
// path and a non-owning session reference.
//
// Three call shapes produce wire traffic:
//
//	Query() — "PATH?", returns the raw response
//	Exec()  — "PATH", a bare command with no parameter
//	Set(v)  — "PATH <v>", with typed value coercion
//
// No validation happens at this layer. Arbitrary paths are accepted;
// commands the instrument rejects surface as transport errors.
type Command struct {
	sess *Session
	path string
}

// Command returns a root command node for the given path segments. It is the
// entry point for commands the typed API does not cover.
func (s *Session) Command(names ...string) Command {
	return Command{sess: s}.Sub(names...)
}

// Sub returns a new Command with the given segments appended, one colon
// level per name, case-normalized to uppercase. The receiver is unchanged.
func (c Command) Sub(names ...string) Command {
	path := c.path
	for _, name := range names {
		name = strings.ToUpper(strings.TrimSpace(name))
		if path == "" {
			path = name
		} else {
			path += ":" + name
		}
	}
	return Command{sess: c.sess, path: path}
}

// Path returns the serialized command path, e.g. "SYST:ZCOR:ACQ".
func (c Command) Path() string { return c.path }

// Query sends "PATH?" and returns the instrument's raw response.
func (c Command) Query() (string, error) {
	return c.sess.Query(c.path + "?")
}

// Exec sends the bare path with no parameter, the execute form used by
// commands such as a zero-correction acquisition.
func (c Command) Exec() error {
	return c.sess.Write(c.path)
}

// Set sends "PATH <value>". The value is coerced in order: a Wirer
// contributes its wire representation, strings pass through untouched,
// booleans become ON/OFF, and anything else is converted to its canonical
// textual form. A value that coerces to the empty string degrades to the
// bare execute form.
func (c Command) Set(value any) error {
	v := coerce(value)
	if v == "" {
		return c.Exec()
	}
	return c.sess.Write(c.path + " " + v)
}

func coerce(value any) string {
	switch v := value.(type) {
	case Wirer:
		return v.Wire()
	case string:
		return v
	case bool:
		return FormatState(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
