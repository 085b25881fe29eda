// Package forward implements the giver's outbound forwarding socket: the
// egress TCP connection a tunneled SOCKS5 CONNECT opens, with connect,
// pause, and resume primitives for the data-channel backpressure the giver
// applies to it. It is a single always-direct-to-the-requested-host dialer
// — there is no upstream-chaining concern here.
//
// Domain names are resolved explicitly with github.com/miekg/dns rather
// than left to the implicit resolver inside net.Dialer, the same way a
// hand-rolled SOCKS5 proxy's service layer resolves CONNECT targets before
// dialing. On platforms where golang.org/x/sys/unix applies socket options,
// TCP_NODELAY is set and the send/receive buffers are widened.
package forward
