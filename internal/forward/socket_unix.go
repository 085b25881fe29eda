//go:build linux || darwin || freebsd || openbsd

package forward

import (
	"net"

	"golang.org/x/sys/unix"
)

// setForwardingSocketOptions tunes the outbound socket for proxying: it
// disables Nagle's algorithm (tunneled traffic is already chunked by the
// data channel, so coalescing small writes just adds latency) and widens
// the kernel send/receive buffers.
func setForwardingSocketOptions(tc *net.TCPConn) {
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, 256*1024)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, 256*1024)
	})
}
