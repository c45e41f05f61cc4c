package audio

import (
	"github.com/kg9x/freedvtnc/internal/codec"
	"github.com/kg9x/freedvtnc/internal/frame"
	"github.com/kg9x/freedvtnc/internal/mode"
	"github.com/kg9x/freedvtnc/internal/packet"
)

// Modulator binds the active TX codec instance to a frame encoder sized
// for it. The controller rebuilds one whenever the TX mode changes
// (startup, or follow-mode) and hands it to the OutputDevice.
type Modulator struct {
	codec codec.Codec
	enc   *frame.Encoder
}

// NewModulator opens a fresh TX codec instance for m and wires an
// encoder for its frame size, with the default coalescing bound.
func NewModulator(opener codec.Opener, m mode.Mode) (*Modulator, error) {
	return NewModulatorWithLimit(opener, m, frame.MaxPacketsCombined)
}

// NewModulatorWithLimit is NewModulator with an explicit
// max_packets_combined, as set by --max-packets-combined.
func NewModulatorWithLimit(opener codec.Opener, m mode.Mode, maxPacketsCombined int) (*Modulator, error) {
	c, err := opener(m)
	if err != nil {
		return nil, err
	}
	enc := frame.NewEncoder(c.BytesPerFrame(), c.CRC16)
	if maxPacketsCombined > 0 {
		enc.MaxPacketsCombined = maxPacketsCombined
	}
	return &Modulator{codec: c, enc: enc}, nil
}

func (m *Modulator) Mode() mode.Mode { return m.codec.Mode() }

func (m *Modulator) Encode(queue []packet.Packet) ([][]byte, error) {
	return m.enc.Encode(queue)
}

func (m *Modulator) ModulateFrame(frame []byte) []byte { return m.codec.ModulateFrame(frame) }
func (m *Modulator) PreambleSamples() []byte           { return m.codec.PreambleSamples() }
func (m *Modulator) PostambleSamples() []byte          { return m.codec.PostambleSamples() }
func (m *Modulator) SampleRate() int                   { return m.codec.SampleRate() }
func (m *Modulator) NTxModemSamples() int              { return m.codec.NTxModemSamples() }

func (m *Modulator) Close() error { return m.codec.Close() }
