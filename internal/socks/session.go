package socks

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	txsocks5 "github.com/txthinking/socks5"
)

// State names the stage of the SOCKS5 handshake a Session is in.
//
// Mirrors the stage-enumeration shape of an epoll-driven SOCKS session,
// adapted to the two entry points a tunneled session needs: a legacy peer
// arrives already past the negotiation step (AwaitingRequest), a modern
// peer arrives fresh (AwaitingAuths).
type State int

const (
	AwaitingAuths State = iota
	AwaitingRequest
	Established
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingAuths:
		return "AWAITING_AUTHS"
	case AwaitingRequest:
		return "AWAITING_REQUEST"
	case Established:
		return "ESTABLISHED"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ForwardingSocket is the outbound TCP connection a Session opens once it
// has parsed a CONNECT request. Session only needs the write/close/callback
// surface below; internal/forward provides the concrete implementation,
// including pause/resume for backpressure.
type ForwardingSocket interface {
	Write(p []byte) (int, error)
	Close() error
	// SetOnData registers the callback invoked with each chunk of data
	// read from the remote end. Session registers it while handling the
	// CONNECT request and forwards every chunk to the client callback.
	SetOnData(func([]byte))
	// Pause and Resume implement the giver's backpressure: the data-
	// channel wiring pauses the forwarding socket's read loop when the
	// channel's outbound buffer crosses the high-water mark and resumes
	// it once the drain timer observes the buffer has dropped again.
	Pause()
	Resume()
}

// ForwardingSocketFactory dials host:port and returns a ForwardingSocket,
// wired via the giver's dialer (internal/forward.Dial in production).
type ForwardingSocketFactory func(host string, port uint16) (ForwardingSocket, error)

// Session is one tunneled SOCKS5 conversation, keyed by the giver at
// "<client_id>:<channel_label>".
type Session struct {
	mu    sync.Mutex
	state State

	forward   ForwardingSocket
	newSocket ForwardingSocketFactory
	toClient  func([]byte)
}

// New constructs a Session in the given starting state. Legacy peers start
// AwaitingRequest (their handshake already happened before the tunnel
// existed); modern peers start AwaitingAuths.
func New(start State, newSocket ForwardingSocketFactory) *Session {
	return &Session{state: start, newSocket: newSocket}
}

// SetOnDataForClient registers the callback invoked whenever the session has
// bytes that must reach the SOCKS client: negotiation/request replies and
// forwarded response data alike. The giver's data-channel wiring is
// responsible for the modern/legacy/backpressure framing on top of these
// raw bytes.
func (s *Session) SetOnDataForClient(cb func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toClient = cb
}

// State returns the session's current stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Forward returns the session's current forwarding socket, or nil if the
// CONNECT handshake hasn't reached Established yet. The giver's
// backpressure wiring uses this to pause/resume the outbound socket based
// on the data channel's buffered byte count.
func (s *Session) Forward() ForwardingSocket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forward
}

// HandleClientData drives the handshake or, once Established, forwards raw
// bytes to the outbound socket. See the package doc comment for the
// one-message-one-protocol-unit assumption this relies on during the
// handshake.
func (s *Session) HandleClientData(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case AwaitingAuths:
		return s.handleAuths(data)
	case AwaitingRequest:
		return s.handleRequest(data)
	case Established:
		if s.forward == nil {
			return errors.New("socks: established with no forwarding socket")
		}
		_, err := s.forward.Write(data)
		return err
	case Closed:
		return errors.New("socks: session closed")
	default:
		return fmt.Errorf("socks: unknown state %v", s.state)
	}
}

func (s *Session) handleAuths(data []byte) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}
	if !containsMethod(neg.Methods, txsocks5.MethodNone) {
		reply := txsocks5.NewNegotiationReply(0xff)
		s.send(reply)
		return errors.New("socks: client does not support no-auth")
	}
	s.send(txsocks5.NewNegotiationReply(txsocks5.MethodNone))
	s.state = AwaitingRequest
	return nil
}

func (s *Session) handleRequest(data []byte) error {
	req, err := txsocks5.NewRequestFrom(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if req.Cmd != txsocks5.CmdConnect {
		s.send(zeroAddrReply(txsocks5.RepCommandNotSupported, req.Atyp))
		return fmt.Errorf("socks: unsupported command %d", req.Cmd)
	}

	host, port, err := requestHostPort(req)
	if err != nil {
		s.send(zeroAddrReply(txsocks5.RepAddressNotSupported, req.Atyp))
		return err
	}

	sock, err := s.newSocket(host, port)
	if err != nil {
		s.send(zeroAddrReply(txsocks5.RepConnectionRefused, req.Atyp))
		return fmt.Errorf("dial %s:%d: %w", host, port, err)
	}
	sock.SetOnData(s.deliverToClientLocked())

	s.forward = sock
	s.send(successReply(req.Atyp))
	s.state = Established
	return nil
}

// deliverToClientLocked returns a callback safe to hand to the forwarding
// socket while s.mu is held: it re-locks per invocation since the socket's
// read loop runs on its own goroutine.
func (s *Session) deliverToClientLocked() func([]byte) {
	return func(b []byte) {
		s.mu.Lock()
		cb := s.toClient
		s.mu.Unlock()
		if cb != nil {
			cb(b)
		}
	}
}

func (s *Session) send(w interface {
	WriteTo(w io.Writer) (int64, error)
}) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return
	}
	if s.toClient != nil {
		s.toClient(buf.Bytes())
	}
}

// Reset discards any established forwarding socket and returns the session
// to the given handshake state, so the same Session can serve a recycled
// channel. The giver's legacy OPEN handling does not call Reset: it closes
// the old Session and registers a new one in the channel's slot.
func (s *Session) Reset(start State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forward != nil {
		_ = s.forward.Close()
		s.forward = nil
	}
	s.state = start
}

// Close tears down any forwarding socket and marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	if s.forward != nil {
		err := s.forward.Close()
		s.forward = nil
		return err
	}
	return nil
}

func containsMethod(methods []byte, want byte) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}

func zeroAddrReply(rep, atyp byte) *txsocks5.Reply {
	if atyp == txsocks5.ATYPIPv6 {
		return txsocks5.NewReply(rep, txsocks5.ATYPIPv6, []byte(net.IPv6zero), []byte{0x00, 0x00})
	}
	return txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}

func successReply(atyp byte) *txsocks5.Reply {
	return zeroAddrReply(txsocks5.RepSuccess, atyp)
}

func requestHostPort(req *txsocks5.Request) (string, uint16, error) {
	var host string
	switch req.Atyp {
	case txsocks5.ATYPIPv4, txsocks5.ATYPIPv6:
		host = net.IP(req.DstAddr).String()
	case txsocks5.ATYPDomain:
		// DstAddr carries the one-byte domain length ahead of the name.
		if len(req.DstAddr) < 2 {
			return "", 0, fmt.Errorf("malformed domain address (%d bytes)", len(req.DstAddr))
		}
		host = string(req.DstAddr[1:])
	default:
		return "", 0, fmt.Errorf("unsupported address type %d", req.Atyp)
	}
	if len(req.DstPort) != 2 {
		return "", 0, fmt.Errorf("malformed port field (%d bytes)", len(req.DstPort))
	}
	port := uint16(req.DstPort[0])<<8 | uint16(req.DstPort[1])
	return host, port, nil
}
