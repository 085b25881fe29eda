package socksserver

import (
	"net"
	"testing"
	"time"

	"github.com/zorktun/zorktun/internal/testutil"
)

// echoAdapter bounces whatever the local client sends straight back,
// standing in for the getter's real data-channel-backed Adapter.
type echoAdapter struct {
	toClient func([]byte)
}

func (a *echoAdapter) HandleDataFromClient(b []byte) {
	if a.toClient != nil {
		a.toClient(append([]byte(nil), b...))
	}
}
func (a *echoAdapter) OnDataForClient(cb func([]byte)) { a.toClient = cb }
func (a *echoAdapter) HandleDisconnect()               {}
func (a *echoAdapter) OnDisconnect(func())             {}

func TestServerRoundTripsClientData(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", net.KeepAliveConfig{}, func(string) (Adapter, error) {
		return &echoAdapter{}, nil
	}, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	go func() {
		_ = srv.Serve()
	}()

	c, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	testutil.AssertEcho(t, c, c, []byte("hello socks"))
}

func TestListenAssignsDistinctEphemeralPorts(t *testing.T) {
	factory := func(string) (Adapter, error) { return &echoAdapter{}, nil }

	a, err := Listen("127.0.0.1:0", net.KeepAliveConfig{}, factory, nil)
	if err != nil {
		t.Fatalf("Listen a: %v", err)
	}
	defer a.Close()

	b, err := Listen("127.0.0.1:0", net.KeepAliveConfig{}, factory, nil)
	if err != nil {
		t.Fatalf("Listen b: %v", err)
	}
	defer b.Close()

	if a.Addr().String() == b.Addr().String() {
		t.Fatalf("expected distinct ephemeral addrs, got %s twice", a.Addr())
	}
}

