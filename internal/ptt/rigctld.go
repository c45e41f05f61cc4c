package ptt

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kg9x/freedvtnc/internal/tncerr"
)

// RigctldSink speaks hamlib's rigctld plain-text TCP protocol directly:
// two commands, "T 1\n" to key and "T 0\n" to unkey, against a
// persistent connection reopened on demand. HamlibSink (hamlib.go,
// build-tagged) reaches the same daemon through libhamlib's NETRIGCTL
// client instead, for hosts that prefer routing PTT through hamlib.
type RigctldSink struct {
	addr    string
	timeout time.Duration
	logger  *log.Logger

	conn net.Conn
	br   *bufio.Reader
}

// NewRigctldSink builds a sink targeting host:port. Port 0 means the
// operator disabled rigctld PTT; callers must not construct a sink.
func NewRigctldSink(host string, port int, logger *log.Logger) (*RigctldSink, error) {
	if port == 0 {
		return nil, tncerr.NewConfigError("ptt: rigctld port 0 means disabled; do not construct a sink")
	}
	return &RigctldSink{
		addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		timeout: 2 * time.Second,
		logger:  logger,
	}, nil
}

func (s *RigctldSink) ensureConn() error {
	if s.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", s.addr, s.timeout)
	if err != nil {
		return tncerr.NewTransportError("rigctld: connect to "+s.addr, err)
	}
	s.conn = conn
	s.br = bufio.NewReader(conn)
	return nil
}

func (s *RigctldSink) command(cmd string) error {
	if err := s.ensureConn(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.conn, "%s\n", cmd); err != nil {
		s.conn.Close()
		s.conn = nil
		return tncerr.NewTransportError("rigctld: write", err)
	}
	// rigctld echoes "RPRT 0" (or a nonzero error code) per command;
	// drain it so the connection doesn't desync on the next command.
	s.conn.SetReadDeadline(time.Now().Add(s.timeout))
	reply, err := s.br.ReadString('\n')
	if err != nil {
		s.conn.Close()
		s.conn = nil
		return tncerr.NewTransportError("rigctld: read reply", err)
	}
	if s.logger != nil {
		s.logger.Debug("rigctld reply", "cmd", cmd, "reply", reply)
	}
	return nil
}

func (s *RigctldSink) Trigger() error { return s.command("T 1") }
func (s *RigctldSink) Release() error { return s.command("T 0") }

func (s *RigctldSink) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
