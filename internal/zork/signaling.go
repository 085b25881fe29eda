package zork

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/zorktun/zorktun/internal/rtc"
)

// signalKind discriminates the decoded shape of one signaling message,
// per spec.md §4.3's dispatch rules.
type signalKind int

const (
	signalIgnore signalKind = iota
	signalOffer
	signalAnswer
	signalCandidate
)

// signal is the typed union decodeSignal produces: one discriminator
// (kind) plus whichever payload field it implies, per the DESIGN NOTE in
// spec.md §9 preferring a single hand-written discriminated union over
// reflection-based polymorphism.
type signal struct {
	kind      signalKind
	legacy    bool
	sdp       webrtc.SessionDescription
	candidate webrtc.ICECandidateInit
}

// legacyEnvelope is the outbound shape of a legacy-wrapped answer or ICE
// candidate: {"signals":{"PLAIN":[{...}]}}.
type legacyEnvelope struct {
	Signals legacySignals `json:"signals"`
}

type legacySignals struct {
	PLAIN []legacyMessage `json:"PLAIN"`
}

// legacyMessage is one element of a legacy PLAIN array, in or out.
// type 0 and 1 both carry an SDP description (0 inbound offer, 1 outbound
// answer — decodeSignal tells them apart by the nested description's own
// "type" field rather than by this outer tag, so a legacy peer that
// echoes the wrong outer tag still decodes correctly); type 2 carries an
// ICE candidate.
type legacyMessage struct {
	Type        int                         `json:"type"`
	Description *webrtc.SessionDescription  `json:"description,omitempty"`
	Candidate   *webrtc.ICECandidateInit    `json:"candidate,omitempty"`
}

// modernEnvelope is the shape of a non-legacy signaling message: either
// an SDP object ({"type":"offer"|"answer","sdp":...}) or a candidate
// container ({"candidate":...}).
type modernEnvelope struct {
	Type      string                   `json:"type,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// protocolError is a malformed-signaling error that leaves the session in
// an incoherent state and must fail it, per spec.md §7 ("Protocol
// errors... fail the session" when it would otherwise leave an incoherent
// state). Every error decodeSignal returns is a protocolError; a message
// that parses but is not recognized decodes to signalIgnore with no error
// and is logged and ignored.
type protocolError struct{ err error }

func (p *protocolError) Error() string { return p.err.Error() }
func (p *protocolError) Unwrap() error { return p.err }

// decodeSignal parses one signaling line into its typed union, per
// spec.md §4.3. A top-level "signals" key selects the legacy envelope;
// its absence selects the modern one.
func decodeSignal(line []byte) (signal, error) {
	var probe struct {
		Signals json.RawMessage `json:"signals"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return signal{}, &protocolError{fmt.Errorf("malformed json: %w", err)}
	}
	if probe.Signals != nil {
		return decodeLegacySignal(probe.Signals)
	}
	return decodeModernSignal(line)
}

func decodeLegacySignal(raw json.RawMessage) (signal, error) {
	var channels map[string]json.RawMessage
	if err := json.Unmarshal(raw, &channels); err != nil {
		return signal{}, &protocolError{fmt.Errorf("malformed signals envelope: %w", err)}
	}
	plain, ok := channels["PLAIN"]
	if !ok || len(channels) != 1 {
		return signal{}, &protocolError{fmt.Errorf("unsupported signals channel (only PLAIN is supported)")}
	}

	var msgs []legacyMessage
	if err := json.Unmarshal(plain, &msgs); err != nil {
		return signal{}, &protocolError{fmt.Errorf("malformed PLAIN array: %w", err)}
	}
	if len(msgs) != 1 {
		return signal{}, &protocolError{fmt.Errorf("legacy PLAIN envelope carried %d messages, want exactly 1", len(msgs))}
	}
	msg := msgs[0]

	switch msg.Type {
	case 0, 1:
		if msg.Description == nil {
			return signal{}, &protocolError{fmt.Errorf("legacy type %d missing description", msg.Type)}
		}
		kind := signalAnswer
		if msg.Description.Type == webrtc.SDPTypeOffer {
			kind = signalOffer
		}
		return signal{kind: kind, legacy: true, sdp: *msg.Description}, nil
	case 2:
		if msg.Candidate == nil {
			return signal{}, &protocolError{fmt.Errorf("legacy type 2 missing candidate")}
		}
		return signal{kind: signalCandidate, legacy: true, candidate: *msg.Candidate}, nil
	default:
		return signal{kind: signalIgnore, legacy: true}, nil
	}
}

func decodeModernSignal(line []byte) (signal, error) {
	var env modernEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return signal{}, &protocolError{fmt.Errorf("malformed modern envelope: %w", err)}
	}

	switch env.Type {
	case "offer":
		return signal{kind: signalOffer, sdp: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: env.SDP}}, nil
	case "answer":
		return signal{kind: signalAnswer, sdp: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: env.SDP}}, nil
	}
	if env.Candidate != nil {
		return signal{kind: signalCandidate, candidate: *env.Candidate}, nil
	}
	return signal{kind: signalIgnore}, nil
}

// encodeAnswer serializes a locally-produced SDP answer for the control
// transport, wrapping it in the legacy envelope when legacy is set.
func encodeAnswer(legacy bool, answer webrtc.SessionDescription) ([]byte, error) {
	if !legacy {
		return json.Marshal(answer)
	}
	return json.Marshal(legacyEnvelope{Signals: legacySignals{PLAIN: []legacyMessage{{Type: 1, Description: &answer}}}})
}

// encodeOffer serializes a locally-produced SDP offer. The getter never
// has legacy set at offer time (the latch is set by an *inbound* legacy
// message, and the offer is the first thing a getter sends), so this
// always takes the modern path; the parameter exists so a future legacy
// getter variant wouldn't need a second encoder.
func encodeOffer(legacy bool, offer webrtc.SessionDescription) ([]byte, error) {
	if !legacy {
		return json.Marshal(offer)
	}
	return json.Marshal(legacyEnvelope{Signals: legacySignals{PLAIN: []legacyMessage{{Type: 0, Description: &offer}}}})
}

// encodeCandidate serializes a locally-originated ICE candidate event: a
// {"candidate":{...}} container in modern mode, the PLAIN envelope in
// legacy mode.
func encodeCandidate(legacy bool, candidate webrtc.ICECandidateInit) ([]byte, error) {
	if !legacy {
		return json.Marshal(modernEnvelope{Candidate: &candidate})
	}
	return json.Marshal(legacyEnvelope{Signals: legacySignals{PLAIN: []legacyMessage{{Type: 2, Candidate: &candidate}}}})
}

// handleSignalLine implements the dispatch table in spec.md §4.3.
func (s *Session) handleSignalLine(line []byte) {
	sig, err := decodeSignal(line)
	if err != nil {
		s.logger.Printf("signaling: %v", err)
		var perr *protocolError
		if ok := asProtocolError(err, &perr); ok {
			s.teardown()
		}
		return
	}

	if sig.legacy {
		s.mu.Lock()
		s.legacy = true
		s.mu.Unlock()
	}

	switch sig.kind {
	case signalCandidate:
		s.handleInboundCandidate(sig.candidate)
	case signalOffer:
		s.handleInboundOffer(sig.sdp)
	case signalAnswer:
		s.handleInboundAnswer(sig.sdp)
	default:
		s.logger.Printf("signaling: ignoring unrecognized message")
	}
}

func asProtocolError(err error, target **protocolError) bool {
	for err != nil {
		if pe, ok := err.(*protocolError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (s *Session) handleInboundCandidate(c webrtc.ICECandidateInit) {
	s.mu.Lock()
	pc := s.pc
	if !s.remoteReceived {
		s.pendingICE = append(s.pendingICE, c)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if pc == nil {
		return
	}
	if err := pc.AddICECandidate(c); err != nil {
		s.logger.Printf("add ice candidate: %v", err)
	}
}

func (s *Session) handleInboundOffer(desc webrtc.SessionDescription) {
	s.mu.Lock()
	if s.mode != ModeGive {
		s.mu.Unlock()
		s.logger.Printf("signaling: offer received while mode=%s; ignoring", s.mode)
		return
	}
	pc := s.pc
	pending := s.pendingICE
	s.pendingICE = nil
	s.remoteReceived = true
	legacy := s.legacy
	s.mu.Unlock()

	if pc == nil {
		s.logger.Printf("signaling: offer received before peer connection exists; ignoring")
		return
	}

	if err := rtc.ApplyRemoteDescriptionAndFlush(pc, desc, pending); err != nil {
		s.logger.Printf("apply remote offer: %v", err)
		return
	}

	answer, err := rtc.CreateAnswer(pc)
	if err != nil {
		s.logger.Printf("create answer: %v", err)
		return
	}
	payload, err := encodeAnswer(legacy, answer)
	if err != nil {
		s.logger.Printf("encode answer: %v", err)
		return
	}
	s.writeLine(string(payload))
}

func (s *Session) handleInboundAnswer(desc webrtc.SessionDescription) {
	s.mu.Lock()
	if s.mode != ModeGet {
		s.mu.Unlock()
		s.logger.Printf("signaling: answer received while mode=%s; ignoring", s.mode)
		return
	}
	pc := s.pc
	pending := s.pendingICE
	s.pendingICE = nil
	s.remoteReceived = true
	s.mu.Unlock()

	if pc == nil {
		return
	}
	if err := rtc.ApplyRemoteDescriptionAndFlush(pc, desc, pending); err != nil {
		s.logger.Printf("apply remote answer: %v", err)
	}
}

// onLocalICECandidate is registered as the peer connection's
// OnICECandidate handler by both give-init and get-init.
func (s *Session) onLocalICECandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return // end-of-candidates
	}
	init := c.ToJSON()

	s.mu.Lock()
	legacy := s.legacy
	s.mu.Unlock()

	payload, err := encodeCandidate(legacy, init)
	if err != nil {
		s.logger.Printf("encode local ice candidate: %v", err)
		return
	}
	s.writeLine(string(payload))
}
