package audio

import (
	"math"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/kg9x/freedvtnc/internal/tncerr"
)

const fullScale = 32768.0

// ReassemblerWriter is the one RX reassembler entry point the input
// device's real-time callback calls; satisfied by
// *reassemble.Reassembler.
type ReassemblerWriter interface {
	Write(samples []byte)
}

// InputDevice owns the input sound card and the real-time callback that
// peak-meters, downmixes, resamples, and hands mono modem-rate PCM to
// the RX reassembler.
type InputDevice struct {
	stream     *portaudio.Stream
	deviceRate int
	channels   int
	resampler  *resampler
	sink       ReassemblerWriter
	logger     *log.Logger

	levelDBFS atomic.Int64 // bit pattern of a float64, via math.Float64bits
}

// OpenInput opens deviceName (empty for the system default) in 16-bit
// PCM at its native rate and channel count, resampling to modemRate
// before delivering to sink.
func OpenInput(deviceName string, modemRate int, sink ReassemblerWriter, logger *log.Logger) (*InputDevice, error) {
	dev, err := findDevice(deviceName, true)
	if err != nil {
		return nil, err
	}
	if int(dev.DefaultSampleRate) < modemRate {
		return nil, tncerr.NewConfigError("audio: input device %q sample rate %.0f is below modem rate %d", dev.Name, dev.DefaultSampleRate, modemRate)
	}

	in := &InputDevice{
		deviceRate: int(dev.DefaultSampleRate),
		channels:   dev.MaxInputChannels,
		resampler:  newResampler(int(dev.DefaultSampleRate), modemRate),
		sink:       sink,
		logger:     logger,
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = in.channels
	params.SampleRate = dev.DefaultSampleRate

	stream, err := portaudio.OpenStream(params, in.callback)
	if err != nil {
		return nil, tncerr.NewConfigError("audio: open input stream on %q: %v", dev.Name, err)
	}
	in.stream = stream
	return in, nil
}

func (d *InputDevice) Start() error { return d.stream.Start() }
func (d *InputDevice) Stop() error  { return d.stream.Close() }

// LevelDBFS returns the most recent input peak level, clamped to -99
// when silent, for UI display.
func (d *InputDevice) LevelDBFS() float64 {
	return math.Float64frombits(uint64(d.levelDBFS.Load()))
}

func (d *InputDevice) callback(in []int16) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audio: input callback panic, dropping chunk", "panic", r)
		}
	}()

	var peak int32
	for _, s := range in {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	level := -99.0
	if peak > 0 {
		level = 20 * math.Log10(float64(peak)/fullScale)
		if level < -99 {
			level = -99
		}
	}
	d.levelDBFS.Store(int64(math.Float64bits(level)))

	mono := in
	if d.channels >= 2 {
		mono = make([]int16, len(in)/d.channels)
		for i := range mono {
			mono[i] = in[i*d.channels] // left channel only
		}
	}

	resampled := d.resampler.Process(mono)
	if len(resampled) == 0 {
		return
	}
	out := int16ToBytes(resampled)
	d.sink.Write(out)
}
