// Package controller wires the codec adapter, frame codec, RX
// reassembler and audio engine together: it is the RX reassembler's
// sink, dispatches completed packets to the KISS or chat sink by header
// byte, and applies the "follow received mode" policy by rebuilding the
// TX modulator.
package controller

import (
	"bytes"

	"github.com/charmbracelet/log"

	"github.com/kg9x/freedvtnc/internal/audio"
	"github.com/kg9x/freedvtnc/internal/codec"
	"github.com/kg9x/freedvtnc/internal/mode"
	"github.com/kg9x/freedvtnc/internal/packet"
)

// KISSSink receives the raw payload of a packet.Header == HeaderKISS
// packet, verbatim, for delivery to the KISS transport(s).
type KISSSink interface {
	OnKISSPacket(data []byte)
}

// ChatSink receives a chat packet already split into callsign and
// message at the payload's first 0xFF byte.
type ChatSink interface {
	OnChatMessage(callsign, message string)
}

// ProgressSink receives RX reassembly progress updates, surfaced for a
// UI; the controller itself does nothing with them but forwards them.
type ProgressSink interface {
	OnProgress(total, remaining int, m mode.Mode)
}

// Output is the subset of *audio.OutputDevice the controller drives:
// the TX send queue and the installed modulator. Expressed as an
// interface so the follow-mode policy can be exercised without a real
// sound device.
type Output interface {
	Write(p packet.Packet)
	SetModulator(m *audio.Modulator) *audio.Modulator
}

// Controller is the RX reassembler's Sink (internal/reassemble.Sink)
// and owns the follow-mode policy over the audio engine's TX modulator.
type Controller struct {
	kiss     KISSSink
	chat     ChatSink
	progress ProgressSink
	logger   *log.Logger

	output             Output
	opener             codec.Opener
	maxPacketsCombined int

	followMode bool
	txMode     mode.Mode
}

// New builds a Controller. txMode is the initial TX mode; output is the
// audio engine whose modulator this controller installs and, under
// follow-mode, replaces. maxPacketsCombined <= 0 means "use the frame
// codec's default".
func New(opener codec.Opener, output Output, txMode mode.Mode, followMode bool, maxPacketsCombined int, kiss KISSSink, chat ChatSink, progress ProgressSink, logger *log.Logger) (*Controller, error) {
	c := &Controller{
		kiss:               kiss,
		chat:               chat,
		progress:           progress,
		logger:             logger,
		output:             output,
		opener:             opener,
		maxPacketsCombined: maxPacketsCombined,
		followMode:         followMode,
		txMode:             txMode,
	}
	if err := c.setTXMode(txMode); err != nil {
		return nil, err
	}
	return c, nil
}

// TXMode reports the currently active TX mode.
func (c *Controller) TXMode() mode.Mode { return c.txMode }

func (c *Controller) setTXMode(m mode.Mode) error {
	mod, err := audio.NewModulatorWithLimit(c.opener, m, c.maxPacketsCombined)
	if err != nil {
		return err
	}
	c.txMode = m
	if old := c.output.SetModulator(mod); old != nil {
		old.Close()
	}
	return nil
}

// Write hands p (header already set by the caller — HeaderKISS or
// HeaderChat) to the TX send queue.
func (c *Controller) Write(p packet.Packet) { c.output.Write(p) }

// OnPacket implements reassemble.Sink. It is called from the input
// audio callback's goroutine and must not block, so both sink
// deliveries below are expected to be non-blocking enqueue operations
// on the receiving side.
func (c *Controller) OnPacket(p packet.Packet) {
	switch p.Header {
	case packet.HeaderKISS:
		if c.kiss != nil {
			c.kiss.OnKISSPacket(p.Data)
		}
	case packet.HeaderChat:
		callsign, message := splitChat(p.Data)
		if c.chat != nil {
			c.chat.OnChatMessage(callsign, message)
		}
	default:
		c.logger.Info("controller: dropping packet with unknown header", "header", p.Header)
		return
	}

	if c.followMode && p.Mode != c.txMode {
		c.logger.Info("controller: following received mode", "from", c.txMode, "to", p.Mode)
		if err := c.setTXMode(p.Mode); err != nil {
			c.logger.Error("controller: failed to follow mode", "mode", p.Mode, "err", err)
		}
	}
}

// OnProgress implements reassemble.Sink, forwarding to the UI sink if any.
func (c *Controller) OnProgress(total, remaining int, m mode.Mode) {
	if c.progress != nil {
		c.progress.OnProgress(total, remaining, m)
	}
}

// splitChat divides data at the first 0xFF byte into (callsign,
// message). If no 0xFF byte is present the whole payload is treated as
// the callsign with an empty message.
func splitChat(data []byte) (callsign, message string) {
	i := bytes.IndexByte(data, 0xFF)
	if i < 0 {
		return string(data), ""
	}
	return string(data[:i]), string(data[i+1:])
}
