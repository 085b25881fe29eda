package zork

import "testing"

func TestOnHeartbeatTimeoutDecrementsGetters(t *testing.T) {
	s, _ := newTestSession(t)
	s.reg.IncGetters()
	s.reg.IncGetters()

	s.onHeartbeatTimeout()

	if got := s.reg.Getters(); got != 1 {
		t.Fatalf("Getters() = %d, want 1", got)
	}
}

func TestOnHeartbeatTimeoutDoesNotTouchPeerConnection(t *testing.T) {
	// Per spec.md §9's open question, a heartbeat timeout only affects
	// bookkeeping; it must never reach for s.pc.
	s, _ := newTestSession(t)
	s.onHeartbeatTimeout() // must not panic even though s.pc is nil
}
