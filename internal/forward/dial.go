package forward

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Config controls how forwarding sockets are dialed.
type Config struct {
	DialTimeout time.Duration
	KeepAlive   net.KeepAliveConfig

	// Resolver resolves domain names to an IP address. Nil disables
	// explicit resolution and leaves it to net.Dialer.
	Resolver *Resolver
}

// Socket is the giver's outbound TCP connection to the Internet host a
// tunneled SOCKS5 CONNECT named. It implements socks.ForwardingSocket.
type Socket struct {
	conn net.Conn

	mu     sync.Mutex
	paused bool
	resume chan struct{}
	onData func([]byte)
	closed bool
}

// Dial resolves host (via cfg.Resolver if set and host is not already an
// IP literal) and opens a TCP connection to host:port, applying
// cfg.KeepAlive and any platform-specific socket tuning.
func Dial(ctx context.Context, cfg Config, host string, port uint16) (*Socket, error) {
	addr := host
	if cfg.Resolver != nil && net.ParseIP(host) == nil {
		ip, err := cfg.Resolver.Resolve(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
		addr = ip.String()
	}

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, fmt.Errorf("dial %s:%d: %w", host, port, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(cfg.KeepAlive)
		setForwardingSocketOptions(tc)
	}

	s := &Socket{conn: conn, resume: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

// Write sends p to the remote end.
func (s *Socket) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// Close closes the underlying connection.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.paused {
		close(s.resume)
	}
	s.mu.Unlock()
	return s.conn.Close()
}

// SetOnData registers the callback invoked with each chunk read from the
// remote end.
func (s *Socket) SetOnData(cb func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = cb
}

// Pause stops the read loop from delivering further data until Resume is
// called. It is level-triggered: calling Pause while already paused is a
// no-op, matching the giver's single drain timer per data channel.
func (s *Socket) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || s.closed {
		return
	}
	s.paused = true
	s.resume = make(chan struct{})
}

// Resume releases a paused read loop.
func (s *Socket) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resume)
}

func (s *Socket) waitIfPaused() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return nil
	}
	return s.resume
}

func (s *Socket) readLoop() {
	buf := getBuffer()
	defer putBuffer(buf)

	for {
		if ch := s.waitIfPaused(); ch != nil {
			<-ch
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			// A Read already in progress when Pause was called holds its
			// data back until Resume.
			if ch := s.waitIfPaused(); ch != nil {
				<-ch
			}
			s.mu.Lock()
			cb := s.onData
			s.mu.Unlock()
			if cb != nil {
				cb(append([]byte(nil), buf[:n]...))
			}
		}
		if err != nil {
			return
		}
	}
}
