//go:build linux

package ptt

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/kg9x/freedvtnc/internal/tncerr"
)

// SerialLine selects which modem-control line keys PTT.
type SerialLine int

const (
	SerialRTS SerialLine = iota
	SerialDTR
)

// SerialSink drives PTT through a serial port's RTS or DTR line via
// direct TIOCM get-modify-set ioctls.
type SerialSink struct {
	f   *os.File
	bit int
	inv bool
}

// NewSerialSink opens device (e.g. "/dev/ttyUSB0") for the sole purpose
// of toggling its modem control lines.
func NewSerialSink(device string, line SerialLine, invert bool) (*SerialSink, error) {
	f, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, tncerr.NewConfigError("ptt: open serial device %s: %v", device, err)
	}
	bit := unix.TIOCM_RTS
	if line == SerialDTR {
		bit = unix.TIOCM_DTR
	}
	return &SerialSink{f: f, bit: bit, inv: invert}, nil
}

func (s *SerialSink) setLine(on bool) error {
	if s.inv {
		on = !on
	}
	fd := int(s.f.Fd())
	status, err := unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err != nil {
		return err
	}
	if on {
		status |= s.bit
	} else {
		status &^= s.bit
	}
	return unix.IoctlSetInt(fd, unix.TIOCMSET, status)
}

func (s *SerialSink) Trigger() error { return s.setLine(true) }
func (s *SerialSink) Release() error { return s.setLine(false) }
func (s *SerialSink) Close() error   { return s.f.Close() }
