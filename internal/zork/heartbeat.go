package zork

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// heartbeatLabel is the reserved data-channel label spec.md §3 carves out
// for the liveness/handoff channel; every other label is a SOCKS-session
// identifier.
const heartbeatLabel = "HEARTBEAT"

// heartbeatLiteral is the only payload ever sent on the heartbeat
// channel; its presence, not its content, is the signal.
const heartbeatLiteral = "heartbeat"

// wireGiverHeartbeat implements spec.md §4.6's giver side: closing the
// control transport on open (the handoff is complete), incrementing the
// active-getter count, and arming a single-shot timeout that every
// inbound message cancels and re-arms.
func (s *Session) wireGiverHeartbeat(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		s.closeTransport()
		s.reg.IncGetters()

		s.mu.Lock()
		s.heartbeatTimer = time.AfterFunc(s.cfg.HeartbeatTimeout, s.onHeartbeatTimeout)
		s.mu.Unlock()
	})

	dc.OnMessage(func(webrtc.DataChannelMessage) {
		s.mu.Lock()
		if s.heartbeatTimer != nil {
			s.heartbeatTimer.Reset(s.cfg.HeartbeatTimeout)
		}
		s.mu.Unlock()
	})
}

// onHeartbeatTimeout fires when no heartbeat message arrives within
// HeartbeatTimeout. Per spec.md §9's open question, the peer connection
// is deliberately not torn down here — only the active-getter count is
// decremented (with registry.Registry's own floor-at-zero clamp).
func (s *Session) onHeartbeatTimeout() {
	s.reg.DecGetters()
}

// wireGetterHeartbeat implements spec.md §4.5/§4.6's getter side: a
// ticker sending the heartbeat literal every HeartbeatInterval,
// indefinitely, until session teardown stops it. The source this spec
// distills leaks this timer at end-of-session by design (spec.md §9); the
// "Resource cleanup" design note calls that a defect to fix, so
// Session.teardown stops the ticker explicitly.
func (s *Session) wireGetterHeartbeat(dc *webrtc.DataChannel) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	s.mu.Lock()
	s.heartbeatTicker = ticker
	s.mu.Unlock()

	go func() {
		for range ticker.C {
			if err := dc.SendText(heartbeatLiteral); err != nil {
				return
			}
		}
	}()
}
