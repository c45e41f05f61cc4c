package audio

import (
	"github.com/gordonklaus/portaudio"

	"github.com/kg9x/freedvtnc/internal/tncerr"
)

// DeviceInfo describes one PortAudio device for selection by name and
// for the CLI's device-listing helper.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// ListDevices enumerates every PortAudio device visible to this host.
func ListDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		out[i] = DeviceInfo{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		}
	}
	return out, nil
}

// findDevice resolves a device by name (empty string means the
// PortAudio default) and checks it offers the direction requested.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name != name {
			continue
		}
		if input && d.MaxInputChannels < 1 {
			return nil, tncerr.NewConfigError("audio device %q has no input channels", name)
		}
		if !input && d.MaxOutputChannels < 1 {
			return nil, tncerr.NewConfigError("audio device %q has no output channels", name)
		}
		return d, nil
	}
	return nil, tncerr.NewConfigError("no audio device named %q", name)
}
