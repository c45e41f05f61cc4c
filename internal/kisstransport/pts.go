//go:build linux

package kisstransport

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/creack/pty"
	"github.com/kg9x/freedvtnc/internal/tncerr"
)

// symlinkPath is the well-known path other applications on the host
// expect a virtual KISS TNC at.
const symlinkPath = "/tmp/kisstnc"

// PTS is the pseudo-terminal KISS transport, the --pts alternative to
// TCP. Raw mode and non-blocking reads are the pty package's job, not
// ours.
type PTS struct {
	master *os.File
	sink   Sink
	logger *log.Logger
}

// OpenPTS creates the pseudo-terminal, symlinks it at /tmp/kisstnc so
// client configuration never needs to track the kernel-assigned slave
// name, and starts the read loop.
func OpenPTS(sink Sink, logger *log.Logger) (*PTS, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, tncerr.NewConfigError("kiss: open pseudo terminal: %v", err)
	}
	slaveName := slave.Name()
	slave.Close()

	os.Remove(symlinkPath)
	if err := os.Symlink(slaveName, symlinkPath); err != nil {
		logger.Warn("kiss: failed to create pty symlink", "target", slaveName, "symlink", symlinkPath, "err", err)
	} else {
		logger.Info("kiss: virtual KISS TNC available", "device", slaveName, "symlink", symlinkPath)
	}

	p := &PTS{master: master, sink: sink, logger: logger}
	go p.readLoop()
	return p, nil
}

func (p *PTS) readLoop() {
	var dec Decoder
	buf := make([]byte, 4096)
	for {
		n, err := p.master.Read(buf)
		if err != nil {
			p.logger.Info("kiss: pty closed", "err", err)
			return
		}
		for i := 0; i < n; i++ {
			if payload, ok := dec.Feed(buf[i]); ok {
				p.sink.OnKISSFrame(payload)
			}
		}
	}
}

// Broadcast writes a reassembled KISS payload to the pty master side.
// Nothing may be listening on the slave; a write error here is logged,
// not fatal.
func (p *PTS) Broadcast(payload []byte) {
	if _, err := p.master.Write(Encode(payload)); err != nil {
		p.logger.Debug("kiss: pty write failed (no listener?)", "err", err)
	}
}

func (p *PTS) Close() error {
	os.Remove(symlinkPath)
	return p.master.Close()
}
