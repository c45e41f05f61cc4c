// Package logging centralises construction of the structured logger every
// other package takes by constructor injection rather than a global.
// Callers pick a level and attach structured fields (mode, channel,
// sequence number).
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Subsystem is a one-letter debug selector: a --debug flag carrying one
// or more of these letters raises only that subsystem to debug level.
type Subsystem rune

const (
	SubsystemKISS       Subsystem = 'k'
	SubsystemAudio      Subsystem = 'a'
	SubsystemOutput     Subsystem = 'o'
	SubsystemPTT        Subsystem = 'p'
	SubsystemReassemble Subsystem = 'r'
	SubsystemController Subsystem = 'c'
)

// New builds the root logger at info level. debugLetters is the raw
// argument of --debug; New itself does not read it. Per-subsystem
// raising happens in For (e.g. "ko" raises the KISS and output
// subsystems to debug; every other subsystem stays at info level).
func New(debugLetters string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	l.SetLevel(log.InfoLevel)
	return l
}

// For returns a named child logger for one subsystem, raised to debug
// level if letter appears in debugLetters.
func For(root *log.Logger, name string, letter Subsystem, debugLetters string) *log.Logger {
	child := root.With("subsystem", name)
	for _, r := range debugLetters {
		if Subsystem(r) == letter {
			child.SetLevel(log.DebugLevel)
			break
		}
	}
	return child
}
