// Package codec defines the adapter boundary to the external OFDM/CRC
// library. The DSP internals live behind this boundary; this package
// expresses the contract and supplies a pure-Go reference instance
// (Loopback) that every other component in this repository is built and
// tested against.
package codec

import "github.com/kg9x/freedvtnc/internal/mode"

// Codec is one open instance of a per-mode OFDM modem. It is not
// internally thread-safe: each instance is driven by exactly one
// goroutine.
type Codec interface {
	Mode() mode.Mode
	SampleRate() int
	BytesPerFrame() int

	// NinBytes reports how many bytes of 16-bit LE PCM the demodulator
	// currently wants fed in. This can vary call to call as the codec
	// tracks clock drift.
	NinBytes() int

	// FeedRX consumes exactly NinBytes() bytes of mono 16-bit LE PCM.
	// It returns the decoded, CRC-validated payload (BytesPerFrame()-2
	// bytes) and true on a successfully decoded frame, or nil, false if
	// the frame was not recoverable.
	FeedRX(samples []byte) (frame []byte, ok bool)

	// ModulateFrame turns one BytesPerFrame()-byte frame (CRC already
	// appended by the caller) into NTxModemSamples 16-bit LE PCM samples.
	ModulateFrame(frame []byte) []byte

	// NTxModemSamples reports how many samples ModulateFrame emits per
	// frame; used to size the trailing flush silence after a TX burst.
	NTxModemSamples() int

	PreambleSamples() []byte
	PostambleSamples() []byte

	// SNR is the last estimated SNR in dB.
	SNR() float64
	// Sync is true while the demodulator has acquired lock on an
	// incoming waveform.
	Sync() bool

	// CRC16 computes the big-endian CRC-16 used to validate/trailer a
	// frame; the polynomial matches the codec's own internal check.
	CRC16(b []byte) [2]byte

	Close() error
}

// Opener constructs a fresh Codec instance for m. The RX reassembler and
// audio engine depend on this rather than a concrete constructor so a
// native binding can be swapped in without touching either.
type Opener func(m mode.Mode) (Codec, error)
