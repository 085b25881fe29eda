package zork

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/zorktun/zorktun/internal/registry"
)

func newTestBroker(t *testing.T) (*Broker, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	b := NewBroker(DefaultConfig(9999), registry.New(), nil)
	go func() { _ = b.Serve(ln) }()
	return b, ln
}

func TestBrokerServesCommandsOverControlConnection(t *testing.T) {
	_, ln := newTestBroker(t)

	c, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte("ping\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if line != "ping\n" {
		t.Fatalf("reply = %q, want %q", line, "ping\n")
	}
}

func TestBrokerShutdownClosesLiveSessions(t *testing.T) {
	b, ln := newTestBroker(t)

	c, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte("version\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := bufio.NewReader(c).ReadString('\n'); err != nil {
		t.Fatalf("read reply: %v", err)
	}

	done := make(chan struct{})
	go func() {
		b.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	buf := make([]byte, 1)
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Read(buf); err == nil {
		t.Fatal("expected control connection to be closed after Shutdown")
	}
}
