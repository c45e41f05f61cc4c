package kisstransport

import (
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kg9x/freedvtnc/internal/tncerr"
)

// Sink receives KISS data-frame payloads read off a transport. Calls
// must be non-blocking enough to run from a connection's read loop
// goroutine (there is one such goroutine per TCP client).
type Sink interface {
	OnKISSFrame(payload []byte)
}

// TCPListener is the KISS-over-TCP transport, default 127.0.0.1:8001.
// Every connected client receives every reassembled KISS payload
// Broadcast delivers; any client's data frames are handed to sink.
type TCPListener struct {
	ln     net.Listener
	sink   Sink
	logger *log.Logger

	mu      sync.Mutex
	clients map[net.Conn]struct{}
}

// Listen opens the TCP listener on addr (host:port).
func Listen(addr string, sink Sink, logger *log.Logger) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, tncerr.NewConfigError("kiss: listen on %s: %v", addr, err)
	}
	t := &TCPListener{
		ln:      ln,
		sink:    sink,
		logger:  logger,
		clients: make(map[net.Conn]struct{}),
	}
	go t.acceptLoop()
	return t, nil
}

// Addr reports the bound address, useful when addr's port was 0.
func (t *TCPListener) Addr() net.Addr { return t.ln.Addr() }

func (t *TCPListener) acceptLoop() {
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			t.logger.Info("kiss: listener closed", "err", err)
			return
		}
		t.mu.Lock()
		t.clients[conn] = struct{}{}
		t.mu.Unlock()
		go t.serve(conn)
	}
}

func (t *TCPListener) serve(conn net.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.clients, conn)
		t.mu.Unlock()
		conn.Close()
	}()

	var dec Decoder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			t.logger.Debug("kiss: tcp client disconnected", "remote", conn.RemoteAddr(), "err", err)
			return
		}
		for i := 0; i < n; i++ {
			if payload, ok := dec.Feed(buf[i]); ok {
				t.sink.OnKISSFrame(payload)
			}
		}
	}
}

// Broadcast writes a reassembled KISS payload, framed per Encode, to
// every currently connected client. net.Conn.Write can block, so this
// runs on the controller's dispatch path, never a real-time audio
// callback; a slow client can stall delivery to the others.
func (t *TCPListener) Broadcast(payload []byte) {
	framed := Encode(payload)
	t.mu.Lock()
	defer t.mu.Unlock()
	for conn := range t.clients {
		if _, err := conn.Write(framed); err != nil {
			t.logger.Debug("kiss: write to client failed", "remote", conn.RemoteAddr(), "err", err)
		}
	}
}

// Close shuts down the listener and every connected client.
func (t *TCPListener) Close() error {
	t.mu.Lock()
	for conn := range t.clients {
		conn.Close()
	}
	t.mu.Unlock()
	return t.ln.Close()
}
