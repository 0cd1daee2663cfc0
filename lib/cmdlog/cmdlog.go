// Package cmdlog renders SCPI traffic for the CLI's passthrough mode.
package cmdlog

import (
	"log"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

var (
	CmdStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	RespStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	ErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// isPrintable reports whether a response is plain printable ASCII, so binary
// payloads get hex-dumped instead of garbling the terminal.
func isPrintable(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r < 7:
			return true
		case r > 6 && r < 14:
			return false
		case r > 13 && r < 32:
			return true
		case r > 127:
			return true
		}
		return false
	})
}

// Funcs returns query and write closures over the session that log each
// command and its outcome.
func Funcs(sess *scpi.Session) (query func(string) string, write func(string)) {
	query = func(q string) string {
		resp, err := sess.Query(q)
		if err != nil {
			log.Printf("query %s: %s", CmdStyle.Render(q), ErrStyle.Render(err.Error()))
			return resp
		}
		switch {
		case len(resp) == 0:
			log.Printf("%s: %s", CmdStyle.Render(q), RespStyle.Render("<no response>"))
		case isPrintable(resp):
			log.Printf("%s: [%d] %s", CmdStyle.Render(q), len(resp), RespStyle.Render(resp))
		default:
			log.Printf("%s: [%d] % 2x", CmdStyle.Render(q), len(resp), []byte(resp))
		}
		return resp
	}
	write = func(c string) {
		if err := sess.Write(c); err != nil {
			log.Printf("write %s: %s", CmdStyle.Render(c), ErrStyle.Render(err.Error()))
			return
		}
		log.Printf("%s()", CmdStyle.Render(c))
	}
	return query, write
}
