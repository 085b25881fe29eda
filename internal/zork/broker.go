package zork

import (
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zorktun/zorktun/internal/registry"
)

// Broker accepts Zork control connections and owns one *Session per
// connection for as long as that connection's tunnel might be alive,
// which can outlast the control connection itself (spec.md §3's handoff
// lifecycle). It replaces the bare package-globals the source this spec
// distills from used, per spec.md §9's "Global counters" design note:
// every Session is constructed with its Registry and Dialer passed in
// explicitly, so a test can run several independent Brokers in one
// process.
type Broker struct {
	cfg  Config
	reg  *registry.Registry
	dial Dialer

	// eg tracks every per-connection goroutine Serve spawns, the same
	// fan-out-and-join role conduit's errgroup.Group plays around its own
	// accept loops, so Shutdown can wait for them to actually exit instead
	// of firing teardown and returning immediately.
	eg errgroup.Group

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewBroker constructs a Broker. reg is shared across every Session the
// Broker creates; dial is the giver's outbound forwarding-socket factory.
func NewBroker(cfg Config, reg *registry.Registry, dial Dialer) *Broker {
	return &Broker{cfg: cfg, reg: reg, dial: dial, sessions: make(map[string]*Session)}
}

// Serve accepts Zork control connections from ln until it's closed,
// spawning one Session and one goroutine per connection.
func (b *Broker) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		b.eg.Go(func() error {
			b.handleConn(c)
			return nil
		})
	}
}

func (b *Broker) handleConn(c net.Conn) {
	id := b.reg.NextClientID()
	s := newSession(id, b.cfg, b.reg, b.dial, c)

	b.mu.Lock()
	b.sessions[id] = s
	b.mu.Unlock()

	s.readLoop()
	s.onControlClosed()
}

// Shutdown tears down every live session: their control transports, peer
// connections, SOCKS sessions, and local SOCKS listeners. It is the
// process-shutdown half of spec.md §9's resource-cleanup design note.
// Apart from a signaling protocol error (which tears its session down),
// it is the only point at which a give-mode session's peer connection is
// closed, since spec.md explicitly preserves "no teardown on heartbeat
// timeout" as the per-connection behavior.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		s.teardown()
	}

	_ = b.eg.Wait()
}
