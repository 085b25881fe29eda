// Package socks implements the giver-side SOCKS5 session state machine: it
// drives a single tunneled SOCKS5 conversation arriving over one WebRTC
// data channel, using github.com/txthinking/socks5's wire types for
// negotiation/request framing the way a directly-dialed SOCKS5 listener
// would wrap them.
//
// A Session assumes each call to HandleClientData delivers exactly one
// protocol unit (a negotiation request, a username/password request, or a
// CONNECT request) — data channels are message-oriented and deliver bytes
// reliably and in order, so a getter-side peer that speaks one data-channel
// message per SOCKS step (the natural way to bridge a byte-oriented SOCKS
// client onto a message-oriented channel) satisfies this. Bytes delivered
// after the handshake completes are treated as an opaque, forwarded stream
// instead.
package socks
