package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/kg9x/freedvtnc/internal/packet"
	"github.com/kg9x/freedvtnc/internal/ptt"
	"github.com/kg9x/freedvtnc/internal/tncerr"
)

const bytesPerSample = 2 // 16-bit PCM throughout this package

// OutputDevice owns the output sound card, the TX send queue, the
// pre-rendered output ring, the TX worker, and PTT edge sequencing. Its
// real-time callback never calls the codec; beyond a buffer-sized copy
// under the buffer lock, it blocks only on the PTT trigger/release call
// at an edge.
type OutputDevice struct {
	stream     *portaudio.Stream
	deviceRate int
	channels   int // clamped to <= 2

	volumeDB      float64
	pttOnDelayMs  int
	pttOffDelayMs int
	sink          ptt.Sink
	inhibited     func() bool
	logger        *log.Logger

	modulator atomic.Pointer[Modulator]

	sendMu    sync.Mutex
	sendQueue []packet.Packet

	bufMu        sync.Mutex
	outputBuffer []byte

	ptt           bool
	workerRunning atomic.Bool
}

// OpenOutput opens deviceName (empty for the system default) in 16-bit
// PCM at its native rate and channel count (clamped to stereo). sink
// receives PTT edges; inhibited reports the RX reassembler's
// channel-busy flag.
func OpenOutput(deviceName string, volumeDB float64, pttOnDelayMs, pttOffDelayMs int, sink ptt.Sink, inhibited func() bool, logger *log.Logger) (*OutputDevice, error) {
	dev, err := findDevice(deviceName, false)
	if err != nil {
		return nil, err
	}

	channels := dev.MaxOutputChannels
	if channels > 2 {
		channels = 2
	}
	if channels < 1 {
		return nil, tncerr.NewConfigError("audio: output device %q has no output channels", dev.Name)
	}

	o := &OutputDevice{
		deviceRate:    int(dev.DefaultSampleRate),
		channels:      channels,
		volumeDB:      volumeDB,
		pttOnDelayMs:  pttOnDelayMs,
		pttOffDelayMs: pttOffDelayMs,
		sink:          sink,
		inhibited:     inhibited,
		logger:        logger,
	}

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = channels
	params.SampleRate = dev.DefaultSampleRate

	stream, err := portaudio.OpenStream(params, o.callback)
	if err != nil {
		return nil, tncerr.NewConfigError("audio: open output stream on %q: %v", dev.Name, err)
	}
	o.stream = stream
	return o, nil
}

// Start begins the output callback.
func (o *OutputDevice) Start() error { return o.stream.Start() }

// Stop closes the output stream. The in-flight TX worker, if any,
// finishes its current drain and exits; it is never cancelled mid-drain.
func (o *OutputDevice) Stop() error { return o.stream.Close() }

// SetModulator installs the TX codec/encoder pair for the active mode.
// Called at startup and whenever the operator or follow-mode policy
// changes the TX mode; the TX worker always reads the modulator in
// effect at the moment it runs, never a stale one from before a
// mode-change request. The previous modulator is returned so the caller
// can close it.
func (o *OutputDevice) SetModulator(m *Modulator) *Modulator {
	return o.modulator.Swap(m)
}

// Write appends p to the send queue. Non-blocking; called concurrently
// by the KISS/chat transports' own goroutines.
func (o *OutputDevice) Write(p packet.Packet) {
	o.sendMu.Lock()
	o.sendQueue = append(o.sendQueue, p)
	o.sendMu.Unlock()
}

// Clear empties both the send queue and the pre-rendered output buffer,
// the operator's cancel-pending-transmission control. The frame already
// in the sound card's hardware buffer still plays out.
func (o *OutputDevice) Clear() {
	o.sendMu.Lock()
	o.sendQueue = nil
	o.sendMu.Unlock()

	o.bufMu.Lock()
	o.outputBuffer = nil
	o.bufMu.Unlock()
}

// callback is the real-time output audio callback. It never performs
// codec calls or blocking I/O beyond the PTT trigger/release call on an
// edge.
func (o *OutputDevice) callback(out []int16) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("audio: output callback panic, emitting silence", "panic", r)
			for i := range out {
				out[i] = 0
			}
		}
	}()

	if o.inhibited() && !o.ptt {
		for i := range out {
			out[i] = 0
		}
		return
	}

	need := len(out) * bytesPerSample
	pttNext := o.ptt

	o.bufMu.Lock()
	avail := len(o.outputBuffer)
	take := need
	if take > avail {
		take = avail
	}
	var chunk []byte
	if take > 0 {
		chunk = o.outputBuffer[:take]
		o.outputBuffer = o.outputBuffer[take:]
	}
	bufNowEmpty := len(o.outputBuffer) == 0
	o.bufMu.Unlock()

	if take > 0 {
		pttNext = true
	} else if bufNowEmpty {
		o.sendMu.Lock()
		queued := len(o.sendQueue) > 0
		o.sendMu.Unlock()
		switch {
		case queued && !o.workerRunning.Swap(true):
			go o.runWorker()
			// pttNext left at o.ptt: the worker hasn't rendered the next
			// burst yet, so don't drop PTT between two queued bursts.
		case !o.workerRunning.Load():
			pttNext = false
		}
	}

	for i := range out {
		out[i] = 0
	}
	for i := 0; i+1 < len(chunk) && i/bytesPerSample < len(out); i++ {
		idx := i / bytesPerSample
		if i%bytesPerSample == 0 {
			out[idx] = int16(binary.LittleEndian.Uint16(chunk[i : i+2]))
		}
	}

	if pttNext != o.ptt {
		if pttNext {
			if err := o.sink.Trigger(); err != nil {
				o.logger.Error("ptt: trigger failed", "err", err)
			}
		} else {
			if err := o.sink.Release(); err != nil {
				o.logger.Error("ptt: release failed", "err", err)
			}
		}
		o.ptt = pttNext
	}
}

// runWorker drains the send queue, encodes and modulates it into one
// PCM burst framed by PTT guard silence, and appends it to the output
// buffer. At most one worker runs at a time (workerRunning); it
// terminates after one full drain.
func (o *OutputDevice) runWorker() {
	defer o.workerRunning.Store(false)

	m := o.modulator.Load()
	if m == nil {
		o.logger.Error("audio: TX worker ran with no modulator installed")
		return
	}

	o.sendMu.Lock()
	queue := o.sendQueue
	o.sendQueue = nil
	o.sendMu.Unlock()
	if len(queue) == 0 {
		return
	}

	frames, err := m.Encode(queue)
	if err != nil {
		o.logger.Error("encode: dropping batch", "packets", len(queue), "err", tncerr.NewEncodeError("%v", err))
		return
	}

	modemRate := m.SampleRate()
	var pcm []byte
	for _, f := range frames {
		pcm = append(pcm, m.PreambleSamples()...)
		pcm = append(pcm, m.ModulateFrame(f)...)
		pcm = append(pcm, m.PostambleSamples()...)
	}
	flushSamples := 2 * m.NTxModemSamples()
	pcm = append(pcm, make([]byte, flushSamples*bytesPerSample)...)

	pcm = applyGain(pcm, o.volumeDB)

	// Resample while still mono: the linear resampler interpolates a
	// flat sample sequence and has no notion of channel stride, so
	// fanout to stereo must happen after rate conversion, not before.
	samples := bytesToInt16(pcm)
	resampled := newResampler(modemRate, o.deviceRate).Process(samples)
	resampled = fanout(resampled, o.channels)
	deviceBytes := int16ToBytes(resampled)

	// Key-up and key-down guard silence at device rate and channel
	// count; the radio sees PTT asserted for this long before the first
	// preamble sample and after the last postamble sample.
	prefix := make([]byte, o.deviceRate*o.pttOnDelayMs/1000*o.channels*bytesPerSample)
	suffix := make([]byte, o.deviceRate*o.pttOffDelayMs/1000*o.channels*bytesPerSample)

	rendered := append(prefix, deviceBytes...)
	rendered = append(rendered, suffix...)

	o.bufMu.Lock()
	o.outputBuffer = append(o.outputBuffer, rendered...)
	o.bufMu.Unlock()
}

// applyGain scales 16-bit LE PCM by 10^(db/20), clamping to the int16
// range.
func applyGain(pcm []byte, db float64) []byte {
	if db == 0 {
		return pcm
	}
	gain := math.Pow(10, db/20)
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i:i+2]))) * gain
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i:i+2], uint16(int16(v)))
	}
	return out
}

// fanout duplicates a mono sample stream to stereo when the device
// needs 2 channels; mono devices pass through unchanged.
func fanout(mono []int16, channels int) []int16 {
	if channels <= 1 {
		return mono
	}
	out := make([]int16, len(mono)*channels)
	for i, s := range mono {
		for c := 0; c < channels; c++ {
			out[i*channels+c] = s
		}
	}
	return out
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return out
}

func int16ToBytes(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(v))
	}
	return out
}
