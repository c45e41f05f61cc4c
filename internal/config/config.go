// Package config builds the Config struct the CLI surface populates
// from an optional YAML default layer plus pflag overrides. The YAML
// layer is flat and non-authoritative: a convenience set of defaults
// beneath the flags, not a second source of truth.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kg9x/freedvtnc/internal/mode"
	"github.com/kg9x/freedvtnc/internal/tncerr"
)

// Config holds every field the CLI surface exposes.
type Config struct {
	Mode               string `yaml:"mode"`
	Follow             bool   `yaml:"follow"`
	MaxPacketsCombined int    `yaml:"max_packets_combined"`

	InputDevice  string  `yaml:"input_device"`
	OutputDevice string  `yaml:"output_device"`
	OutputVolume float64 `yaml:"output_volume"`

	RigctldHost   string `yaml:"rigctld_host"`
	RigctldPort   int    `yaml:"rigctld_port"`
	PTTOnDelayMs  int    `yaml:"ptt_on_delay_ms"`
	PTTOffDelayMs int    `yaml:"ptt_off_delay_ms"`

	PTTGPIOChip     string `yaml:"ptt_gpio_chip"`
	PTTGPIOLine     int    `yaml:"ptt_gpio_line"`
	PTTSerialDevice string `yaml:"ptt_serial_device"`
	PTTSerialLine   string `yaml:"ptt_serial_line"`

	KISSHost string `yaml:"kiss_host"`
	KISSPort int    `yaml:"kiss_port"`
	PTS      bool   `yaml:"pts"`

	Callsign string `yaml:"callsign"`
	Announce bool   `yaml:"announce"`
	Debug    string `yaml:"debug"`

	// ListAudioDevices is a one-shot action, not a setting, so it has no
	// YAML key: print the audio device table and exit.
	ListAudioDevices bool `yaml:"-"`
}

// Defaults returns the baseline Config before any YAML or flag layer is
// applied.
func Defaults() Config {
	return Config{
		Mode:               mode.DATAC1.String(),
		MaxPacketsCombined: 5,
		RigctldHost:        "localhost",
		RigctldPort:        4532,
		PTTOnDelayMs:       150,
		PTTOffDelayMs:      50,
		KISSHost:           "127.0.0.1",
		KISSPort:           8001,
	}
}

// LoadYAML overlays path's fields onto cfg. A missing file is not an
// error; a malformed one is.
func LoadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return tncerr.NewConfigError("config: read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return tncerr.NewConfigError("config: parse %s: %v", path, err)
	}
	return nil
}

// RegisterFlags binds every CLI flag onto fs, each defaulting to cfg's
// current value so a YAML layer applied before this call is visible as
// the flag default, and each flag overrides cfg in-place once Parse is
// called.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config, configPath *string) {
	fs.StringVar(configPath, "config", "", "Optional YAML file of default settings")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "TX mode: DATAC1, DATAC3, or DATAC4")
	fs.BoolVar(&cfg.Follow, "follow", cfg.Follow, "Follow the mode of the last received packet for TX")
	fs.IntVar(&cfg.MaxPacketsCombined, "max-packets-combined", cfg.MaxPacketsCombined, "Max application packets coalesced into one on-air frame")

	fs.BoolVar(&cfg.ListAudioDevices, "list-audio-devices", false, "List audio devices and exit")
	fs.StringVar(&cfg.InputDevice, "input-device", cfg.InputDevice, "Input sound device name (empty for system default)")
	fs.StringVar(&cfg.OutputDevice, "output-device", cfg.OutputDevice, "Output sound device name (empty for system default)")
	fs.Float64Var(&cfg.OutputVolume, "output-volume", cfg.OutputVolume, "Output volume adjustment, dB")

	fs.StringVar(&cfg.RigctldHost, "rigctld-host", cfg.RigctldHost, "rigctld host")
	fs.IntVar(&cfg.RigctldPort, "rigctld-port", cfg.RigctldPort, "rigctld port (0 disables rigctld PTT)")
	fs.IntVar(&cfg.PTTOnDelayMs, "ptt-on-delay-ms", cfg.PTTOnDelayMs, "Silence prefixed before a TX burst, ms")
	fs.IntVar(&cfg.PTTOffDelayMs, "ptt-off-delay-ms", cfg.PTTOffDelayMs, "Silence appended after a TX burst, before PTT release, ms")

	fs.StringVar(&cfg.PTTGPIOChip, "ptt-gpio-chip", cfg.PTTGPIOChip, "gpiod chip for PTT (e.g. gpiochip0); empty disables")
	fs.IntVar(&cfg.PTTGPIOLine, "ptt-gpio-line", cfg.PTTGPIOLine, "gpiod line offset for PTT")
	fs.StringVar(&cfg.PTTSerialDevice, "ptt-serial-device", cfg.PTTSerialDevice, "Serial device for RTS/DTR PTT; empty disables")
	fs.StringVar(&cfg.PTTSerialLine, "ptt-serial-line", cfg.PTTSerialLine, "Serial PTT line: rts or dtr")

	fs.StringVar(&cfg.KISSHost, "kiss-host", cfg.KISSHost, "KISS TCP listen host")
	fs.IntVar(&cfg.KISSPort, "kiss-port", cfg.KISSPort, "KISS TCP listen port")
	fs.BoolVar(&cfg.PTS, "pts", cfg.PTS, "Also expose a KISS pseudo-terminal at /tmp/kisstnc, alongside the TCP listener")

	fs.StringVar(&cfg.Callsign, "callsign", cfg.Callsign, "Station callsign, used for chat packets")
	fs.BoolVar(&cfg.Announce, "announce", cfg.Announce, "Advertise the KISS TCP listener via DNS-SD")
	fs.StringVar(&cfg.Debug, "debug", cfg.Debug, "Per-subsystem debug letters, e.g. \"ko\" for kiss+output")
}

// ParseMode parses cfg.Mode, wrapping the error as a ConfigError so an
// unknown mode name is fatal at startup.
func (c Config) ParseMode() (mode.Mode, error) {
	m, err := mode.Parse(c.Mode)
	if err != nil {
		return 0, tncerr.NewConfigError("%v", err)
	}
	return m, nil
}

// Validate checks cross-field invariants flags alone can't express.
func (c Config) Validate() error {
	if c.PTTSerialDevice != "" && c.PTTSerialLine != "rts" && c.PTTSerialLine != "dtr" {
		return tncerr.NewConfigError("--ptt-serial-line must be \"rts\" or \"dtr\", got %q", c.PTTSerialLine)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("mode=%s follow=%v kiss=%s:%d", c.Mode, c.Follow, c.KISSHost, c.KISSPort)
}
