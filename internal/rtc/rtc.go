// Package rtc wraps github.com/pion/webrtc/v4 with the fixed configuration
// and small conveniences zorktun's signaling bridge needs: peer-connection
// construction against a fixed STUN server list, offer/answer creation, and
// applying a remote description before flushing any ICE candidates queued
// ahead of it.
//
// Everything else about the WebRTC stack — data channels, ICE trickling
// events, connection state — is used directly through *webrtc.PeerConnection
// by internal/zork; this package only centralizes the parts that are
// configuration (the STUN list) or easy to get subtly wrong (offer/answer
// sequencing).
package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// STUNServers is the fixed list of public STUN endpoints every peer
// connection is configured with. There is no TURN relay and no
// configuration knob for it: zorktun is designed for direct P2P
// connectivity between a getter and a giver that already know each other's
// Zork control address.
var STUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// NewPeerConnection constructs a *webrtc.PeerConnection configured with
// stunServers and nothing else non-default. Callers pass rtc.STUNServers in
// production; tests pass their own list (or nil, for a STUN-less loopback
// negotiation) so the fixed list above isn't baked into the call site.
func NewPeerConnection(stunServers []string) (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return pc, nil
}

// ApplyRemoteDescriptionAndFlush sets desc as pc's remote description, then
// applies every candidate in pending (in order) to pc. It returns only an
// error; clearing the caller's queue is left to the caller.
//
// Candidates arriving after this call returns must be applied directly by
// the caller; this function only drains what was queued before the remote
// description existed, so that no ICE candidate ever reaches the peer
// connection ahead of the remote description it depends on.
func ApplyRemoteDescriptionAndFlush(pc *webrtc.PeerConnection, desc webrtc.SessionDescription, pending []webrtc.ICECandidateInit) error {
	if err := pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	for _, c := range pending {
		if err := pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add queued ice candidate: %w", err)
		}
	}
	return nil
}

// CreateAnswer creates and sets a local answer on pc, returning it for the
// caller to serialize onto the signaling channel.
func CreateAnswer(pc *webrtc.PeerConnection) (webrtc.SessionDescription, error) {
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return answer, nil
}

// CreateOffer creates and sets a local offer on pc, returning it for the
// caller to serialize onto the signaling channel.
func CreateOffer(pc *webrtc.PeerConnection) (webrtc.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return offer, nil
}
