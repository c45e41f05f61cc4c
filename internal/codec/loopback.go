package codec

import (
	"encoding/binary"

	"github.com/kg9x/freedvtnc/internal/mode"
)

// Loopback is a pure-Go reference Codec. It fills the external codec's
// role without linking any native DSP library: on transmit it embeds a
// frame's bytes directly into the PCM stream it would otherwise
// modulate onto an HF carrier; on receive it recovers those bytes and
// validates the same CRC-16 a real codec would have computed and
// checked internally. Every other component in this repository is
// exercised against this implementation.
//
// It is not a channel simulator: it carries frame bytes losslessly
// except where the caller corrupts the PCM itself. Each sample's high
// byte carries a per-mode tag, standing in for the waveform selectivity
// of a real modem: N parallel instances share one audio stream, and
// without the tag an instance of the wrong mode could false-decode
// another mode's bytes on a CRC collision.
type Loopback struct {
	m       mode.Mode
	tag     byte
	props   mode.Properties
	synced  bool
	snr     float64
	rxFrame []byte // re-used scratch buffer for FeedRX
}

// NewLoopback opens a Loopback instance for m. It implements codec.Opener.
func NewLoopback(m mode.Mode) (Codec, error) {
	return &Loopback{
		m:       m,
		tag:     0x40 | byte(m),
		props:   mode.Props(m),
		rxFrame: make([]byte, mode.Props(m).BytesPerFrame),
	}, nil
}

func (c *Loopback) Mode() mode.Mode          { return c.m }
func (c *Loopback) SampleRate() int          { return c.props.SampleRate }
func (c *Loopback) BytesPerFrame() int       { return c.props.BytesPerFrame }
func (c *Loopback) NTxModemSamples() int     { return c.props.NTxModemSamples }
func (c *Loopback) PreambleSamples() []byte  { return toneBurst(c.props.PreambleSamples, 0x2000) }
func (c *Loopback) PostambleSamples() []byte { return toneBurst(c.props.PostambleSamples, 0x1000) }
func (c *Loopback) Close() error             { return nil }

// NinBytes is constant for the loopback codec: it does not simulate
// clock drift, so it always wants exactly one modulated frame's worth of
// PCM bytes (NTxModemSamples 16-bit samples).
func (c *Loopback) NinBytes() int {
	return c.props.NTxModemSamples * 2
}

// ModulateFrame embeds frame (BytesPerFrame bytes, CRC already appended
// by the caller) into the low byte of the first BytesPerFrame samples,
// with the mode tag in the high byte; the remaining
// NTxModemSamples-BytesPerFrame samples, standing in for the real
// modem's redundancy/training symbols, are silence.
func (c *Loopback) ModulateFrame(frame []byte) []byte {
	if len(frame) != c.props.BytesPerFrame {
		panic("codec: ModulateFrame given wrong-sized frame")
	}
	out := make([]byte, c.props.NTxModemSamples*2)
	for i, b := range frame {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(b)|uint16(c.tag)<<8)
	}
	return out
}

// FeedRX recovers a frame from exactly NinBytes() bytes of PCM and
// validates its CRC-16 trailer. On CRC mismatch it reports a failed
// decode rather than an error, matching the external codec's behavior
// of simply yielding no frame.
func (c *Loopback) FeedRX(samples []byte) ([]byte, bool) {
	if len(samples) != c.NinBytes() {
		panic("codec: FeedRX given wrong-sized chunk")
	}
	for i := range c.rxFrame {
		if samples[i*2+1] != c.tag {
			c.synced = false
			c.snr = 0
			return nil, false // another mode's waveform, or noise
		}
		c.rxFrame[i] = samples[i*2]
	}
	n := len(c.rxFrame)
	want := crc16CCITT(c.rxFrame[:n-2])
	got := binary.BigEndian.Uint16(c.rxFrame[n-2:])
	if want != got {
		c.synced = false
		c.snr = 0
		return nil, false
	}
	c.synced = true
	c.snr = 18.0
	payload := make([]byte, n-2)
	copy(payload, c.rxFrame[:n-2])
	return payload, true
}

func (c *Loopback) SNR() float64 { return c.snr }
func (c *Loopback) Sync() bool   { return c.synced }

func (c *Loopback) CRC16(b []byte) [2]byte {
	v := crc16CCITT(b)
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], v)
	return out
}

func toneBurst(n int, amplitude uint16) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], amplitude)
	}
	return out
}
