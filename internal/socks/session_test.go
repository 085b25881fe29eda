package socks

import (
	"bytes"
	"sync"
	"testing"

	txsocks5 "github.com/txthinking/socks5"
)

type fakeSocket struct {
	mu      sync.Mutex
	written [][]byte
	onData  func([]byte)
	closed  bool
	paused  bool
}

func (f *fakeSocket) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) SetOnData(cb func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onData = cb
}

func (f *fakeSocket) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}

func (f *fakeSocket) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}

func TestSessionModernHandshakeToEstablished(t *testing.T) {
	var toClient [][]byte
	sock := &fakeSocket{}
	s := New(AwaitingAuths, func(host string, port uint16) (ForwardingSocket, error) {
		if host != "example.com" || port != 80 {
			t.Fatalf("unexpected dial target %s:%d", host, port)
		}
		return sock, nil
	})
	s.SetOnDataForClient(func(b []byte) {
		toClient = append(toClient, append([]byte(nil), b...))
	})

	var neg bytes.Buffer
	_, _ = txsocks5.NewNegotiationRequest([]byte{txsocks5.MethodNone}).WriteTo(&neg)
	if err := s.HandleClientData(neg.Bytes()); err != nil {
		t.Fatalf("negotiation: %v", err)
	}
	if s.State() != AwaitingRequest {
		t.Fatalf("state = %v, want AwaitingRequest", s.State())
	}

	var req bytes.Buffer
	_, _ = txsocks5.NewRequest(txsocks5.CmdConnect, txsocks5.ATYPDomain, []byte("example.com"), []byte{0x00, 0x50}).WriteTo(&req)
	if err := s.HandleClientData(req.Bytes()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if s.State() != Established {
		t.Fatalf("state = %v, want Established", s.State())
	}
	if len(toClient) != 2 {
		t.Fatalf("expected 2 replies to client, got %d", len(toClient))
	}

	if err := s.HandleClientData([]byte("payload")); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(sock.written) != 1 || string(sock.written[0]) != "payload" {
		t.Fatalf("forwarding socket did not receive payload: %v", sock.written)
	}

	sock.onData([]byte("response"))
	if len(toClient) != 3 || string(toClient[2]) != "response" {
		t.Fatalf("response did not reach client callback: %v", toClient)
	}
}

func TestSessionLegacyStartsAtAwaitingRequest(t *testing.T) {
	sock := &fakeSocket{}
	s := New(AwaitingRequest, func(string, uint16) (ForwardingSocket, error) {
		return sock, nil
	})
	s.SetOnDataForClient(func([]byte) {})

	var req bytes.Buffer
	_, _ = txsocks5.NewRequest(txsocks5.CmdConnect, txsocks5.ATYPIPv4, []byte{127, 0, 0, 1}, []byte{0x1f, 0x90}).WriteTo(&req)
	if err := s.HandleClientData(req.Bytes()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if s.State() != Established {
		t.Fatalf("state = %v, want Established", s.State())
	}
}

func TestSessionResetRecyclesSlot(t *testing.T) {
	sock := &fakeSocket{}
	s := New(AwaitingRequest, func(string, uint16) (ForwardingSocket, error) { return sock, nil })
	s.SetOnDataForClient(func([]byte) {})

	var req bytes.Buffer
	_, _ = txsocks5.NewRequest(txsocks5.CmdConnect, txsocks5.ATYPIPv4, []byte{127, 0, 0, 1}, []byte{0, 80}).WriteTo(&req)
	_ = s.HandleClientData(req.Bytes())
	if s.State() != Established {
		t.Fatalf("expected Established before reset")
	}

	s.Reset(AwaitingRequest)
	if s.State() != AwaitingRequest {
		t.Fatalf("state = %v, want AwaitingRequest after reset", s.State())
	}
	if !sock.closed {
		t.Fatal("expected previous forwarding socket to be closed on reset")
	}
}
