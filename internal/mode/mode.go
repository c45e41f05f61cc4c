// Package mode defines the FreeDV OFDM data modes this TNC drives and the
// fixed per-mode properties the frame codec and audio engine depend on.
package mode

import "fmt"

// Mode identifies one of the supported FreeDV data waveforms.
type Mode int

const (
	DATAC1 Mode = iota
	DATAC3
	DATAC4
)

// All lists every supported mode, in the order the RX reassembler opens
// their codec instances. The order in which it feeds them samples is not
// defined.
var All = []Mode{DATAC1, DATAC3, DATAC4}

func (m Mode) String() string {
	switch m {
	case DATAC1:
		return "DATAC1"
	case DATAC3:
		return "DATAC3"
	case DATAC4:
		return "DATAC4"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Parse maps a case-insensitive mode name to a Mode.
func Parse(name string) (Mode, error) {
	for _, m := range All {
		if asciiEqualFold(m.String(), name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("mode: unknown mode %q", name)
}

func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Properties holds the fixed characteristics of one mode that the codec
// reports and the frame codec / audio engine rely on. These specific
// figures are the ones the reference (loopback) codec implements and the
// test suite assumes; a native codec binding reports its own.
type Properties struct {
	SampleRate       int // modem sample rate, Hz
	BytesPerFrame    int // on-air frame size including the trailing 2-byte CRC
	NTxModemSamples  int // samples emitted per modulated frame body
	PreambleSamples  int
	PostambleSamples int
}

var properties = map[Mode]Properties{
	DATAC1: {SampleRate: 8000, BytesPerFrame: 170, NTxModemSamples: 10240, PreambleSamples: 2560, PostambleSamples: 640},
	DATAC3: {SampleRate: 8000, BytesPerFrame: 93, NTxModemSamples: 5760, PreambleSamples: 2560, PostambleSamples: 640},
	DATAC4: {SampleRate: 8000, BytesPerFrame: 47, NTxModemSamples: 3840, PreambleSamples: 1920, PostambleSamples: 480},
}

// Props returns the fixed properties of m, per the reference codec.
func Props(m Mode) Properties {
	p, ok := properties[m]
	if !ok {
		panic(fmt.Sprintf("mode: no properties for %v", m))
	}
	return p
}
