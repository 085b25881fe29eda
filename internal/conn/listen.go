// Package conn provides the keepalive-tuned TCP listener zorktun's Zork
// control listener and the getter's local SOCKS5 listener both bind
// through, adapted from the teacher's internal/proxy.ListenTCP.
package conn

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP listens on network/addr and returns a net.Listener that applies
// keepAlive to every accepted *net.TCPConn.
func ListenTCP(network, addr string, keepAlive net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}

	return &keepAliveListener{Listener: ln, KeepAliveConfig: keepAlive}, nil
}

// keepAliveListener wraps a net.Listener and applies KeepAliveConfig to any
// accepted *net.TCPConn.
type keepAliveListener struct {
	net.Listener
	net.KeepAliveConfig
}

func (l *keepAliveListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(l.KeepAliveConfig)
	}
	return c, nil
}
