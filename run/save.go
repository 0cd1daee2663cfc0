// Copyright (c) 2019–2024 The picoammeter-controller developers. All rights reserved.
// Project site: https://github.com/EPFL-LPI/keithley-picoammeter-controller
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package run

import (
	"bufio"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/device/k6485"
)

const tableHeader = "Time [s], Current [A]\n"

// save writes the readings as a two-column text table, one timestamp,value
// pair per line under the header.
func save(path string, readings []k6485.Reading) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(tableHeader); err != nil {
		return multierr.Append(err, f.Close())
	}
	for _, rd := range readings {
		if _, err := fmt.Fprintf(w, "%g, %g\n", rd.Time, rd.Value); err != nil {
			return multierr.Append(err, f.Close())
		}
	}
	return multierr.Append(w.Flush(), f.Close())
}

// saveRaw writes an unparsed trace payload under the same header, so a parse
// failure never costs the captured data.
func saveRaw(path, data string) error {
	return os.WriteFile(path, []byte(tableHeader+data+"\n"), 0o644)
}
