package zork

import (
	"net"
	"testing"

	"github.com/zorktun/zorktun/internal/registry"
)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	s := newSession("zc1", DefaultConfig(9999), registry.New(), nil, server)
	return s, client
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"ping", []string{"ping"}},
		{"  give  ", []string{"give"}},
		{"transform with rot13", []string{"transform", "with", "rot13"}},
		{"", nil},
		{"   ", nil},
	}
	for _, c := range cases {
		got := tokenize(c.line)
		if len(got) != len(c.want) {
			t.Fatalf("tokenize(%q) = %v, want %v", c.line, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("tokenize(%q) = %v, want %v", c.line, got, c.want)
			}
		}
	}
}

func TestHandleCommandPingEchoesVerb(t *testing.T) {
	s, _ := newTestSession(t)
	if got := s.handleCommand("ping"); got != "ping" {
		t.Fatalf("ping reply = %q, want %q", got, "ping")
	}
}

func TestHandleCommandXyzzy(t *testing.T) {
	s, _ := newTestSession(t)
	if got := s.handleCommand("xyzzy"); got != "Nothing happens." {
		t.Fatalf("xyzzy reply = %q", got)
	}
}

func TestHandleCommandVersion(t *testing.T) {
	s, _ := newTestSession(t)
	if got := s.handleCommand("version"); got != protocolVersion {
		t.Fatalf("version reply = %q, want %q", got, protocolVersion)
	}
}

func TestHandleCommandGettersReflectsRegistry(t *testing.T) {
	s, _ := newTestSession(t)
	if got := s.handleCommand("getters"); got != "0" {
		t.Fatalf("getters reply = %q, want %q", got, "0")
	}
	s.reg.IncGetters()
	s.reg.IncGetters()
	if got := s.handleCommand("getters"); got != "2" {
		t.Fatalf("getters reply = %q, want %q", got, "2")
	}
}

func TestHandleCommandUnknownVerb(t *testing.T) {
	s, _ := newTestSession(t)
	got := s.handleCommand("frobnicate")
	want := "I don't understand that command. (frobnicate)"
	if got != want {
		t.Fatalf("unknown verb reply = %q, want %q", got, want)
	}
}

func TestHandleCommandUnknownVerbLowercasesReply(t *testing.T) {
	s, _ := newTestSession(t)
	got := s.handleCommand("NONSENSE")
	want := "I don't understand that command. (nonsense)"
	if got != want {
		t.Fatalf("unknown verb reply = %q, want %q", got, want)
	}
}

func TestHandleCommandEmptyLineHasNoReply(t *testing.T) {
	s, _ := newTestSession(t)
	if got := s.handleCommand("   "); got != "" {
		t.Fatalf("empty line reply = %q, want empty", got)
	}
}

func TestHandleTransformWithStashesName(t *testing.T) {
	s, _ := newTestSession(t)
	if got := s.handleCommand("transform with rot13"); got != "" {
		t.Fatalf("transform with reply = %q, want empty", got)
	}
	if s.transformName != "rot13" {
		t.Fatalf("transformName = %q, want %q", s.transformName, "rot13")
	}
}

func TestHandleTransformConfigPreservesRawText(t *testing.T) {
	s, _ := newTestSession(t)
	raw := `{"key":"value","n":1}`
	if got := s.handleCommand("transform config " + raw); got != "" {
		t.Fatalf("transform config reply = %q, want empty", got)
	}
	if s.transformConfig != raw {
		t.Fatalf("transformConfig = %q, want %q", s.transformConfig, raw)
	}
}

func TestHandleTransformUnrecognizedFormUsage(t *testing.T) {
	s, _ := newTestSession(t)
	got := s.handleCommand("transform sideways")
	want := "usage: transform with <name> | transform config <config>"
	if got != want {
		t.Fatalf("transform usage reply = %q, want %q", got, want)
	}
}

func TestHandleCommandQuitClosesTransport(t *testing.T) {
	s, client := newTestSession(t)
	if got := s.handleCommand("quit"); got != "" {
		t.Fatalf("quit reply = %q, want empty", got)
	}
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Fatal("expected read on peer to fail after quit closed the transport")
	}
}
