// Package socksserver runs the getter's local SOCKS5 listener: the
// component a local SOCKS5 client (e.g. a browser configured with a SOCKS
// proxy) connects to. It performs no SOCKS5 protocol parsing itself — the
// getter's job is only to carry bytes, not interpret them. Each accepted
// TCP connection gets its own data channel (labeled with an opaque session
// ID) and a four-method adapter that pipes bytes between the two; the real
// SOCKS5 handshake and CONNECT parsing happens on the far end, in
// internal/socks, once those bytes arrive at the giver.
//
// The adapter's four methods — HandleDataFromClient, OnDataForClient,
// HandleDisconnect, OnDisconnect — exist because closing a proxy data
// channel from the getter side has historically interacted badly with
// peers that recycle channels through a connection pool. HandleDisconnect
// and OnDisconnect therefore only log; they never close the channel. The
// getter is the sole authority for creating and closing its own data
// channels.
package socksserver
