//go:build !(linux || darwin || freebsd || openbsd)

package forward

import "net"

// setForwardingSocketOptions is a no-op on platforms without a
// golang.org/x/sys/unix socket-option path.
func setForwardingSocketOptions(*net.TCPConn) {}
