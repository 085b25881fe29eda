package socksserver

import (
	"fmt"
	"log"
	"net"
	"sync/atomic"

	"github.com/zorktun/zorktun/internal/conn"
)

// Adapter is the four-method surface spec.md §4.8 wires a getter's local
// SOCKS5 listener to. A Server never interprets the bytes flowing through
// an Adapter — the SOCKS5 handshake and CONNECT parsing happen on the
// giver, once bytes reach internal/socks over the data channel.
type Adapter interface {
	// HandleDataFromClient is called with each chunk read from the local
	// SOCKS5 client's TCP connection.
	HandleDataFromClient([]byte)
	// OnDataForClient registers the callback the Adapter invokes with
	// bytes that must be written back to the local SOCKS5 client.
	OnDataForClient(func([]byte))
	// HandleDisconnect is called once when the local TCP connection
	// closes. It logs only: the adapter must never close its data
	// channel from here (see the package doc comment).
	HandleDisconnect()
	// OnDisconnect registers a callback that spec.md §4.8 names but
	// which the getter intentionally never invokes.
	OnDisconnect(func())
}

// AdapterFactory creates the Adapter for a newly accepted local SOCKS5
// client, identified by an opaque session ID unique within this Server.
type AdapterFactory func(sessionID string) (Adapter, error)

// Server is the getter's local SOCKS5 listener: one per getter, bound
// either to the configured port (the first getter in the process) or an
// ephemeral one (every subsequent getter), per spec.md §3/§4.8.
type Server struct {
	ln         net.Listener
	newAdapter AdapterFactory
	logger     *log.Logger
}

var sessionSeq int64

func nextSessionID() string {
	return fmt.Sprintf("s%d", atomic.AddInt64(&sessionSeq, 1))
}

// Listen binds addr (applying keepAlive to accepted connections) and
// returns a Server ready to Serve.
func Listen(addr string, keepAlive net.KeepAliveConfig, newAdapter AdapterFactory, logger *log.Logger) (*Server, error) {
	ln, err := conn.ListenTCP("tcp", addr, keepAlive)
	if err != nil {
		return nil, fmt.Errorf("socksserver: listen %s: %w", addr, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{ln: ln, newAdapter: newAdapter, logger: logger}, nil
}

// Addr returns the address the Server bound to, which is how a caller
// discovers the ephemeral port the OS assigned a subsequent getter.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Close stops accepting new connections. Connections already accepted,
// and the data channels their adapters opened, are unaffected: the getter
// never closes a proxy data channel from this side.
func (s *Server) Close() error { return s.ln.Close() }

// Serve accepts connections until the listener is closed, spawning one
// goroutine per accepted connection, matching the teacher's one-goroutine-
// per-accepted-connection SOCKS5 server shape.
func (s *Server) Serve() error {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(c)
	}
}

func (s *Server) handle(c net.Conn) {
	defer c.Close()

	sessionID := nextSessionID()
	adapter, err := s.newAdapter(sessionID)
	if err != nil {
		s.logger.Printf("socksserver: new adapter for %s: %v", sessionID, err)
		return
	}

	adapter.OnDataForClient(func(b []byte) {
		if _, err := c.Write(b); err != nil {
			s.logger.Printf("socksserver: write to client %s: %v", sessionID, err)
		}
	})

	buf := make([]byte, 32*1024)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			adapter.HandleDataFromClient(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			adapter.HandleDisconnect()
			return
		}
	}
}
