package zork

import (
	"errors"
	"fmt"
	"log"

	"github.com/pion/webrtc/v4"

	"github.com/zorktun/zorktun/internal/rtc"
	"github.com/zorktun/zorktun/internal/socksserver"
)

// handleGet implements spec.md §4.5: selects ModeGet, starts or reuses
// the local SOCKS5 server (§4.8), creates the peer connection, creates
// the heartbeat data channel *before* calling createOffer (required, per
// spec.md §4.5, for the underlying WebRTC stack's ICE gathering to
// proceed with at least one data channel already declared), starts the
// heartbeat ticker, then emits the offer on the control transport.
func (s *Session) handleGet() {
	s.mu.Lock()
	if s.mode != ModeUnset {
		s.mu.Unlock()
		return
	}
	s.mode = ModeGet
	s.mu.Unlock()

	if err := s.ensureSOCKSServer(); err != nil {
		s.logger.Printf("get: start local socks server: %v", err)
		return
	}

	pc, err := rtc.NewPeerConnection(s.cfg.STUNServers)
	if err != nil {
		s.logger.Printf("get: new peer connection: %v", err)
		return
	}

	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()

	pc.OnICECandidate(s.onLocalICECandidate)
	pc.OnDataChannel(s.onGetterUnexpectedDataChannel)

	hb, err := pc.CreateDataChannel(heartbeatLabel, nil)
	if err != nil {
		s.logger.Printf("get: create heartbeat channel: %v", err)
		return
	}
	s.wireGetterHeartbeat(hb)

	offer, err := rtc.CreateOffer(pc)
	if err != nil {
		s.logger.Printf("get: create offer: %v", err)
		return
	}

	payload, err := encodeOffer(false, offer)
	if err != nil {
		s.logger.Printf("get: encode offer: %v", err)
		return
	}
	s.writeLine(string(payload))
}

// ensureSOCKSServer implements spec.md §4.8's bind rule: the first getter
// in the process binds the configured SOCKS_PORT; every later one binds
// an ephemeral port. Each getter owns its own listener.
func (s *Session) ensureSOCKSServer() error {
	port := 0
	if s.reg.ClaimSOCKSServer() {
		port = s.cfg.SOCKSPort
	}

	srv, err := socksserver.Listen(fmt.Sprintf("0.0.0.0:%d", port), s.cfg.KeepAlive, s.newProxyAdapter, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.socksServer = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(); err != nil {
			s.logger.Printf("local socks server on %s stopped: %v", srv.Addr(), err)
		}
	}()
	return nil
}

// newProxyAdapter is the socksserver.AdapterFactory for this session: it
// opens a new data channel labeled with the accepted client's opaque
// session ID, per spec.md §4.8.
func (s *Session) newProxyAdapter(sessionID string) (socksserver.Adapter, error) {
	s.mu.Lock()
	pc := s.pc
	s.mu.Unlock()
	if pc == nil {
		return nil, errors.New("get: no peer connection")
	}

	dc, err := pc.CreateDataChannel(sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("create data channel %s: %w", sessionID, err)
	}
	return &getterProxyAdapter{dc: dc, logger: s.logger}, nil
}

// getterProxyAdapter is the four-method adapter spec.md §4.8 names,
// wiring a local SOCKS5 client's TCP connection to its data channel.
// HandleDisconnect and OnDisconnect only log: the getter is the sole
// authority for closing its own proxy data channels (see
// internal/socksserver's doc comment for why).
type getterProxyAdapter struct {
	dc     *webrtc.DataChannel
	logger *log.Logger
}

func (a *getterProxyAdapter) HandleDataFromClient(b []byte) {
	if err := a.dc.Send(b); err != nil {
		a.logger.Printf("send on %s: %v", a.dc.Label(), err)
	}
}

func (a *getterProxyAdapter) OnDataForClient(cb func([]byte)) {
	a.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		cb(msg.Data)
	})
}

func (a *getterProxyAdapter) HandleDisconnect() {
	a.logger.Printf("local socks client on %s disconnected", a.dc.Label())
}

func (a *getterProxyAdapter) OnDisconnect(func()) {
	a.logger.Printf("on-disconnect callback for %s ignored", a.dc.Label())
}

// onGetterUnexpectedDataChannel implements spec.md §4.9: a getter never
// expects the giver to create a data channel. If one arrives anyway,
// close it on open and log; this is a defensive path only.
func (s *Session) onGetterUnexpectedDataChannel(dc *webrtc.DataChannel) {
	s.logger.Printf("unexpected data channel %q while in getter mode; closing", dc.Label())
	dc.OnOpen(func() {
		_ = dc.Close()
	})
}
