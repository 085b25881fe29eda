package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestNewPeerConnectionWithoutSTUNServers(t *testing.T) {
	pc, err := NewPeerConnection(nil)
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer pc.Close()
}

func TestCreateOfferReturnsNonEmptyOffer(t *testing.T) {
	pc, err := NewPeerConnection(nil)
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer pc.Close()

	if _, err := pc.CreateDataChannel("HEARTBEAT", nil); err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}

	offer, err := CreateOffer(pc)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		t.Fatalf("offer.Type = %v, want SDPTypeOffer", offer.Type)
	}
	if offer.SDP == "" {
		t.Fatal("offer.SDP is empty")
	}
}

func TestApplyRemoteDescriptionAndFlushProducesAnswer(t *testing.T) {
	offerer, err := NewPeerConnection(nil)
	if err != nil {
		t.Fatalf("NewPeerConnection(offerer): %v", err)
	}
	defer offerer.Close()
	if _, err := offerer.CreateDataChannel("HEARTBEAT", nil); err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}
	offer, err := CreateOffer(offerer)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	answerer, err := NewPeerConnection(nil)
	if err != nil {
		t.Fatalf("NewPeerConnection(answerer): %v", err)
	}
	defer answerer.Close()

	if err := ApplyRemoteDescriptionAndFlush(answerer, offer, nil); err != nil {
		t.Fatalf("ApplyRemoteDescriptionAndFlush: %v", err)
	}

	answer, err := CreateAnswer(answerer)
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("answer.Type = %v, want SDPTypeAnswer", answer.Type)
	}
}
