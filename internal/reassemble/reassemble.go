// Package reassemble drives N parallel per-mode codec instances from a
// single audio stream and runs the receive-side segment state machine
// that turns decoded frames back into application packets.
package reassemble

import (
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/kg9x/freedvtnc/internal/codec"
	"github.com/kg9x/freedvtnc/internal/frame"
	"github.com/kg9x/freedvtnc/internal/mode"
	"github.com/kg9x/freedvtnc/internal/packet"
)

// Sink receives completed packets and progress updates. Implementations
// must not block: the caller is the real-time input audio callback.
type Sink interface {
	OnPacket(p packet.Packet)
	OnProgress(total, remaining int, m mode.Mode)
}

type perModeCodec struct {
	c   codec.Codec
	buf []byte
}

// collecting holds the single shared receive-in-progress state. It is
// intentionally not keyed by mode: a start-segment on any mode replaces
// whatever another mode left in progress, because only one HF station is
// assumed active at a time.
type collecting struct {
	active     bool
	headerType byte
	nextSeq    int
	partial    []byte
	remaining  int
	total      int
	mode       mode.Mode
}

// Reassembler owns one codec instance per supported mode and the shared
// reassembly state machine.
type Reassembler struct {
	codecs  map[mode.Mode]*perModeCodec
	sink    Sink
	state   collecting
	inhibit atomic.Bool // written by the input callback, read by the output callback
	logger  *log.Logger
}

// New opens one codec instance per mode in mode.All via opener and
// returns a Reassembler delivering completed packets and progress to
// sink.
func New(opener codec.Opener, sink Sink, logger *log.Logger) (*Reassembler, error) {
	r := &Reassembler{
		codecs: make(map[mode.Mode]*perModeCodec, len(mode.All)),
		sink:   sink,
		logger: logger,
	}
	for _, m := range mode.All {
		c, err := opener(m)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.codecs[m] = &perModeCodec{c: c}
	}
	return r, nil
}

// Close releases every codec instance.
func (r *Reassembler) Close() error {
	var firstErr error
	for _, pm := range r.codecs {
		if pm.c == nil {
			continue
		}
		if err := pm.c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Inhibit reports whether any codec currently holds sync, meaning the
// channel is busy and the audio engine should suppress a TX start.
func (r *Reassembler) Inhibit() bool { return r.inhibit.Load() }

// Write delivers an arbitrary-sized chunk of mono, modem-rate 16-bit LE
// PCM to every mode's codec instance. Called from the real-time input
// audio callback; must not block.
func (r *Reassembler) Write(samples []byte) {
	anySynced := false
	for m, pm := range r.codecs {
		pm.buf = append(pm.buf, samples...)
		for {
			nin := pm.c.NinBytes()
			if len(pm.buf) < nin {
				break
			}
			chunk := pm.buf[:nin]
			frameBytes, ok := pm.c.FeedRX(chunk)
			pm.buf = append(pm.buf[:0], pm.buf[nin:]...)
			if ok {
				r.scanFrame(frameBytes, m)
			}
		}
		if pm.c.Sync() {
			anySynced = true
		}
	}
	r.inhibit.Store(anySynced)
}

// scanFrame walks the segment stream of one decoded frame's payload
// bytes, which arrived on mode m.
func (r *Reassembler) scanFrame(payload []byte, m mode.Mode) {
	offset := 0
	for offset < len(payload) {
		b := payload[offset]

		if frame.Header(b) {
			segType, totalLen, headerLen, err := frame.ParseStart(payload[offset:])
			if err != nil {
				r.logger.Debug("reassemble: truncated start-segment header", "mode", m)
				return
			}
			offset += headerLen

			r.state = collecting{
				active:     true,
				headerType: segType,
				nextSeq:    0,
				partial:    make([]byte, 0, totalLen),
				remaining:  totalLen,
				total:      totalLen,
				mode:       m,
			}

			if totalLen == 0 {
				r.fireProgress()
				r.deliver()
				continue
			}

			n := takeMin(len(payload)-offset, r.state.remaining)
			r.state.partial = append(r.state.partial, payload[offset:offset+n]...)
			r.state.remaining -= n
			offset += n
			r.fireProgress()
			if r.state.remaining == 0 {
				r.deliver()
			}
			continue
		}

		// Continuation segment.
		if !r.state.active {
			if b == 0 {
				return // end-of-meaningful-data padding
			}
			r.logger.Debug("reassemble: unexpected continuation while idle", "mode", m, "seq", b)
			return
		}

		seq, headerLen, err := frame.ParseContinuation(payload[offset:])
		if err != nil {
			return
		}
		offset += headerLen

		if seq != r.state.nextSeq {
			r.logger.Debug("reassemble: missing continuation, dropping in-progress packet",
				"mode", m, "want", r.state.nextSeq, "got", seq)
			r.state = collecting{}
			return
		}

		n := takeMin(len(payload)-offset, r.state.remaining)
		r.state.partial = append(r.state.partial, payload[offset:offset+n]...)
		r.state.remaining -= n
		r.state.nextSeq++
		offset += n
		r.fireProgress()
		if r.state.remaining == 0 {
			r.deliver()
		}
	}
}

func (r *Reassembler) fireProgress() {
	if r.sink == nil {
		return
	}
	r.sink.OnProgress(r.state.total, r.state.remaining, r.state.mode)
}

func (r *Reassembler) deliver() {
	p := packet.Packet{
		Data:   r.state.partial,
		Header: r.state.headerType,
		Mode:   r.state.mode,
	}
	r.state = collecting{}
	if r.sink != nil {
		r.sink.OnPacket(p)
	}
}

func takeMin(a, b int) int {
	if a < b {
		return a
	}
	return b
}
