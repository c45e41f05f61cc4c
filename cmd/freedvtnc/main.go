// Command freedvtnc bridges KISS-framed packet data to an HF-radio audio
// waveform using the FreeDV DATAC1/DATAC3/DATAC4 OFDM modes. This file
// only wires components together; everything with behavior lives under
// internal/.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"github.com/kg9x/freedvtnc/internal/audio"
	"github.com/kg9x/freedvtnc/internal/codec"
	"github.com/kg9x/freedvtnc/internal/config"
	"github.com/kg9x/freedvtnc/internal/controller"
	"github.com/kg9x/freedvtnc/internal/kisstransport"
	"github.com/kg9x/freedvtnc/internal/logging"
	"github.com/kg9x/freedvtnc/internal/mode"
	"github.com/kg9x/freedvtnc/internal/packet"
	"github.com/kg9x/freedvtnc/internal/ptt"
	"github.com/kg9x/freedvtnc/internal/reassemble"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "freedvtnc:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Defaults()
	var configPath string

	// First pass to learn --config before the full flag set is
	// registered, so the YAML layer can sit beneath the flag defaults.
	pre := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	pre.StringVar(&configPath, "config", "", "")
	pre.ParseErrorsWhitelist.UnknownFlags = true
	_ = pre.Parse(os.Args[1:])
	if err := config.LoadYAML(&cfg, configPath); err != nil {
		return err
	}

	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.RegisterFlags(fs, &cfg, &configPath)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "freedvtnc - a FreeDV HF data TNC\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.Debug)
	logger.Info("starting freedvtnc", "config", cfg.String())

	txMode, err := cfg.ParseMode()
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	if cfg.ListAudioDevices {
		return listAudioDevices()
	}

	opener := codec.Opener(codec.NewLoopback)

	pttSink, err := buildPTTSink(cfg, logger)
	if err != nil {
		return err
	}
	defer pttSink.Close()

	dispatch := newDispatcher(logger)

	reassemblerLogger := logging.For(logger, "reassemble", logging.SubsystemReassemble, cfg.Debug)
	reassembler, err := reassemble.New(opener, dispatch, reassemblerLogger)
	if err != nil {
		return err
	}
	defer reassembler.Close()

	input, err := audio.OpenInput(cfg.InputDevice, mode.Props(txMode).SampleRate, reassembler, logging.For(logger, "audio", logging.SubsystemAudio, cfg.Debug))
	if err != nil {
		return err
	}
	defer input.Stop()

	output, err := audio.OpenOutput(cfg.OutputDevice, cfg.OutputVolume, cfg.PTTOnDelayMs, cfg.PTTOffDelayMs, pttSink, reassembler.Inhibit, logging.For(logger, "output", logging.SubsystemOutput, cfg.Debug))
	if err != nil {
		return err
	}
	defer output.Stop()

	ctrl, err := controller.New(opener, output, txMode, cfg.Follow, cfg.MaxPacketsCombined, dispatch, dispatch, dispatch, logging.For(logger, "controller", logging.SubsystemController, cfg.Debug))
	if err != nil {
		return err
	}
	dispatch.controller = ctrl

	input, err := audio.OpenInput(cfg.InputDevice, mode.Props(txMode).SampleRate, reassembler, logging.For(logger, "audio", logging.SubsystemAudio, cfg.Debug))
	if err != nil {
		return err
	}
	defer input.Stop()

	kissLogger := logging.For(logger, "kiss", logging.SubsystemKISS, cfg.Debug)
	kissAddr := fmt.Sprintf("%s:%d", cfg.KISSHost, cfg.KISSPort)
	tcpListener, err := kisstransport.Listen(kissAddr, dispatch, kissLogger)
	if err != nil {
		return err
	}
	defer tcpListener.Close()
	dispatch.kissBroadcasters = append(dispatch.kissBroadcasters, tcpListener)
	logger.Info("KISS TCP listening", "addr", kissAddr)

	if cfg.PTS {
		pts, err := kisstransport.OpenPTS(dispatch, kissLogger)
		if err != nil {
			return err
		}
		defer pts.Close()
		dispatch.kissBroadcasters = append(dispatch.kissBroadcasters, pts)
	}

	if cfg.Announce {
		name := cfg.Callsign
		if name == "" {
			name = "freedvtnc"
		}
		if err := kisstransport.Announce(name, cfg.KISSPort, kissLogger); err != nil {
			logger.Error("dns-sd: announce failed", "err", err)
		}
	}

	if err := output.Start(); err != nil {
		return err
	}
	if err := input.Start(); err != nil {
		return err
	}

	logger.Info("freedvtnc running", "tx_mode", txMode, "follow", cfg.Follow)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	// Shutdown order: output device before input device, before the
	// audio library handle (the deferred calls above run in reverse
	// registration order, which already gives us that).
	return nil
}

// dispatcher fans reassembled packets out to KISS transports / chat log
// and fans inbound KISS bytes from any transport in to the controller's
// send queue. It implements controller.KISSSink, controller.ChatSink,
// controller.ProgressSink, and kisstransport.Sink.
//
// OnKISSPacket and OnChatMessage arrive on the input audio callback's
// goroutine, which must never block, so deliveries are enqueued here
// and the blocking transport writes happen on deliverLoop's goroutine.
type dispatcher struct {
	controller       *controller.Controller
	kissBroadcasters []kissBroadcaster
	deliveries       chan func()
	logger           *log.Logger
}

type kissBroadcaster interface {
	Broadcast(payload []byte)
}

func newDispatcher(logger *log.Logger) *dispatcher {
	d := &dispatcher{
		deliveries: make(chan func(), 64),
		logger:     logger,
	}
	go d.deliverLoop()
	return d
}

func (d *dispatcher) deliverLoop() {
	for fn := range d.deliveries {
		fn()
	}
}

func (d *dispatcher) enqueue(fn func()) {
	select {
	case d.deliveries <- fn:
	default:
		d.logger.Warn("rx delivery queue full, dropping")
	}
}

func (d *dispatcher) OnKISSPacket(data []byte) {
	d.enqueue(func() {
		for _, b := range d.kissBroadcasters {
			b.Broadcast(data)
		}
	})
}

// OnPacket implements reassemble.Sink, forwarding to the controller
// once it has been constructed. It is nil only during the brief window
// between building the reassembler and building the controller, before
// either input.Start() or output.Start() has been called.
func (d *dispatcher) OnPacket(p packet.Packet) {
	if d.controller != nil {
		d.controller.OnPacket(p)
	}
}

func (d *dispatcher) OnChatMessage(callsign, message string) {
	d.enqueue(func() {
		fmt.Printf("[chat] %s: %s\n", callsign, message)
	})
}

func (d *dispatcher) OnProgress(total, remaining int, m mode.Mode) {
	d.logger.Debug("rx progress", "total", total, "remaining", remaining, "mode", m)
}

func (d *dispatcher) OnKISSFrame(payload []byte) {
	if d.controller == nil {
		return
	}
	d.controller.Write(packet.Packet{Data: payload, Header: packet.HeaderKISS})
}

func listAudioDevices() error {
	devices, err := audio.ListDevices()
	if err != nil {
		return err
	}
	fmt.Printf("%-4s %-8s %-8s %-10s %s\n", "idx", "inputs", "outputs", "rate", "name")
	for _, d := range devices {
		fmt.Printf("%-4d %-8d %-8d %-10.0f %s\n", d.Index, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, d.Name)
	}
	return nil
}

func buildPTTSink(cfg config.Config, logger *log.Logger) (ptt.Sink, error) {
	switch {
	case cfg.PTTGPIOChip != "":
		return ptt.NewGpiodSink(cfg.PTTGPIOChip, cfg.PTTGPIOLine, false)
	case cfg.PTTSerialDevice != "":
		line := ptt.SerialRTS
		if cfg.PTTSerialLine == "dtr" {
			line = ptt.SerialDTR
		}
		return ptt.NewSerialSink(cfg.PTTSerialDevice, line, false)
	case cfg.RigctldPort != 0:
		return ptt.NewRigctldSink(cfg.RigctldHost, cfg.RigctldPort, logging.For(logger, "ptt", logging.SubsystemPTT, cfg.Debug))
	default:
		return ptt.NopSink{}, nil
	}
}
