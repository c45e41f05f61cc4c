package ptt

import (
	"github.com/warthog618/go-gpiocdev"

	"github.com/kg9x/freedvtnc/internal/tncerr"
)

// GpiodSink drives PTT through a GPIO character-device line, for
// radios keyed by a transistor hanging off a header pin.
type GpiodSink struct {
	line      *gpiocdev.Line
	activeLow bool
}

// NewGpiodSink requests line on chip (e.g. "gpiochip0") as an output,
// initially released.
func NewGpiodSink(chip string, line int, activeLow bool) (*GpiodSink, error) {
	initial := 0
	if activeLow {
		initial = 1
	}
	l, err := gpiocdev.RequestLine(chip, line, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, tncerr.NewConfigError("ptt: gpiod request %s:%d: %v", chip, line, err)
	}
	return &GpiodSink{line: l, activeLow: activeLow}, nil
}

func (s *GpiodSink) setLevel(asserted bool) error {
	v := 0
	if asserted != s.activeLow {
		v = 1
	}
	return s.line.SetValue(v)
}

func (s *GpiodSink) Trigger() error { return s.setLevel(true) }
func (s *GpiodSink) Release() error { return s.setLevel(false) }
func (s *GpiodSink) Close() error   { return s.line.Close() }
