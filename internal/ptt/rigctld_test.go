package ptt

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRigctld accepts one connection and echoes "RPRT 0" after every
// line it reads, recording each command it saw.
type fakeRigctld struct {
	ln       net.Listener
	commands chan string
}

func startFakeRigctld(t *testing.T) *fakeRigctld {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeRigctld{ln: ln, commands: make(chan string, 16)}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeRigctld) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		f.commands <- strings.TrimSpace(line)
		if _, err := conn.Write([]byte("RPRT 0\n")); err != nil {
			return
		}
	}
}

func (f *fakeRigctld) port(t *testing.T) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(f.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestRigctldSink_TriggerReleaseFraming(t *testing.T) {
	fake := startFakeRigctld(t)
	sink, err := NewRigctldSink("127.0.0.1", fake.port(t), discardLogger())
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Trigger())
	require.NoError(t, sink.Release())

	assert.Equal(t, "T 1", <-fake.commands)
	assert.Equal(t, "T 0", <-fake.commands)
}

func TestRigctldSink_ZeroPortDisabled(t *testing.T) {
	_, err := NewRigctldSink("127.0.0.1", 0, discardLogger())
	assert.Error(t, err)
}

func TestRigctldSink_ReusesConnectionAcrossCommands(t *testing.T) {
	fake := startFakeRigctld(t)
	sink, err := NewRigctldSink("127.0.0.1", fake.port(t), discardLogger())
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Trigger())
	conn1 := sink.conn
	require.NoError(t, sink.Release())
	assert.Same(t, conn1, sink.conn, "a healthy connection must be reused, not redialed, per command")

	<-fake.commands
	<-fake.commands
}
