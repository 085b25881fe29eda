// Package zork implements zorktun's per-connection session state machine:
// the Zork control-line parser, the WebRTC signaling bridge (modern and
// legacy envelopes), the heartbeat manager, and the data-channel routing
// that splits giver-side traffic into the heartbeat liveness channel and
// per-SOCKS-session proxy channels.
//
// A Broker accepts Zork control connections and owns one *Session per
// connection. Everything specific to one role lives in give.go (giver)
// and get.go (getter); everything shared by both lives in session.go,
// signaling.go, and heartbeat.go.
package zork
