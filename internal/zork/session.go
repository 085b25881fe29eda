package zork

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/zorktun/zorktun/internal/registry"
	"github.com/zorktun/zorktun/internal/socks"
	"github.com/zorktun/zorktun/internal/socksserver"
)

// Session is one Zork control connection's state, per spec.md §3: a
// client_id, a mode latch, the legacy envelope latch, the control
// transport, the peer connection once negotiation starts, the ICE queue,
// the stashed (unused) transform config, the heartbeat timer/ticker, and
// the giver's socks_sessions map.
//
// Every pion/webrtc callback this Session registers (OnICECandidate,
// OnDataChannel, a data channel's OnOpen/OnMessage) runs on a
// library-owned goroutine; mu confines Session's state to one logical
// executor per spec.md §5 by being acquired at the top of every such
// callback.
type Session struct {
	id     string
	cfg    Config
	reg    *registry.Registry
	dial   Dialer
	logger *log.Logger

	conn net.Conn

	mu              sync.Mutex
	closed          bool
	mode            Mode
	legacy          bool
	pc              *webrtc.PeerConnection
	remoteReceived  bool
	pendingICE      []webrtc.ICECandidateInit
	transformName   string
	transformConfig string
	heartbeatTimer  *time.Timer  // giver-side timeout
	heartbeatTicker *time.Ticker // getter-side send
	socksSessions   map[string]*socks.Session
	giverChannels   map[string]*giverChannelState
	socksServer     *socksserver.Server
}

func newSession(id string, cfg Config, reg *registry.Registry, dial Dialer, c net.Conn) *Session {
	return &Session{
		id:            id,
		cfg:           cfg,
		reg:           reg,
		dial:          dial,
		conn:          c,
		logger:        log.New(log.Writer(), fmt.Sprintf("[zork %s] ", id), log.LstdFlags),
		socksSessions: make(map[string]*socks.Session),
		giverChannels: make(map[string]*giverChannelState),
	}
}

// ID returns the session's client_id ("zc<N>").
func (s *Session) ID() string { return s.id }

// Mode returns the session's current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) setTransformName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transformName = name
}

func (s *Session) setTransformConfig(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transformConfig = raw
}

// readLoop reads bytes off the control transport, feeds them through a
// lineFramer, and dispatches each emitted message until the connection
// closes or errors. It is the only reader of s.conn; everything else
// writes to it.
func (s *Session) readLoop() {
	var fr lineFramer
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			for _, line := range fr.Feed(buf[:n]) {
				s.handleLine(line)
			}
		}
		if err != nil {
			return
		}
	}
}

// handleLine routes one framed message per spec.md §3's invariant: while
// mode is unset, lines are command tokens; once a mode is selected, lines
// are signaling JSON.
func (s *Session) handleLine(line []byte) {
	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()

	if mode == ModeUnset {
		if reply := s.handleCommand(string(line)); reply != "" {
			s.writeLine(reply)
		}
		return
	}
	s.handleSignalLine(line)
}

// writeLine sends line plus a trailing "\n" to the control transport. All
// Zork replies are exactly one such message.
func (s *Session) writeLine(line string) {
	s.mu.Lock()
	c := s.conn
	closed := s.closed
	s.mu.Unlock()
	if closed || c == nil {
		return
	}
	if _, err := c.Write([]byte(line + "\n")); err != nil {
		s.logger.Printf("write: %v", err)
	}
}

// closeTransport closes the control connection. It is idempotent: called
// both by the "quit" command and by the giver's heartbeat handoff (spec.md
// §4.6), either of which may race a client-initiated close.
func (s *Session) closeTransport() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	c := s.conn
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

// onControlClosed runs once readLoop returns. Per spec.md §3's lifecycle
// ("a session dies when its control transport closes or when the
// heartbeat channel opens"), a control-transport close while negotiation
// never got past ModeUnset means there is no tunnel to preserve, so the
// session's resources are torn down immediately. A close that happens
// after give/get selected a mode is the expected handoff path (the giver
// closes its own control transport on heartbeat-channel open; a getter's
// control transport isn't load-bearing after the offer is sent) — the
// peer connection and any proxy sessions it owns keep running and are
// only released by teardown at process shutdown (cmd/zorktun's graceful
// shutdown) or, for the giver, never (spec.md §9: heartbeat timeout does
// not tear down the peer connection).
func (s *Session) onControlClosed() {
	s.closeTransport()
	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()
	if mode == ModeUnset {
		s.teardown()
	}
}

// teardown releases every resource spec.md §9's "Resource cleanup" note
// calls out: the peer connection, outstanding SOCKS sessions, the
// heartbeat timer/ticker, and (for a getter) the local SOCKS listener.
func (s *Session) teardown() {
	s.closeTransport()

	s.mu.Lock()
	pc := s.pc
	s.pc = nil
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	if s.heartbeatTicker != nil {
		s.heartbeatTicker.Stop()
	}
	sessions := s.socksSessions
	s.socksSessions = nil
	srv := s.socksServer
	s.socksServer = nil
	s.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}
	if srv != nil {
		_ = srv.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
}
