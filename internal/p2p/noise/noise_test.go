package noise

import "testing"

func TestGenerateKeypairProducesDistinctKeys(t *testing.T) {
	k1, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k2, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(k1.Private) == string(k2.Private) {
		t.Fatalf("expected two independently generated keypairs to differ")
	}
}

func TestXXHandshakeCompletesBothSides(t *testing.T) {
	initiatorKey, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	responderKey, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	initiator, err := NewInitiator(initiatorKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	responder, err := NewResponder(responderKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Message 1: initiator -> responder (e)
	msg1, _, _, err := initiator.WriteMessage(nil)
	if err != nil {
		t.Fatalf("unexpected error writing message 1: %v", err)
	}
	if _, _, _, err := responder.ReadMessage(msg1); err != nil {
		t.Fatalf("unexpected error reading message 1: %v", err)
	}

	// Message 2: responder -> initiator (e, ee, s, es)
	msg2, _, _, err := responder.WriteMessage(nil)
	if err != nil {
		t.Fatalf("unexpected error writing message 2: %v", err)
	}
	if _, _, _, err := initiator.ReadMessage(msg2); err != nil {
		t.Fatalf("unexpected error reading message 2: %v", err)
	}

	// Message 3: initiator -> responder (s, se), completes the handshake.
	msg3, cs1, cs2, err := initiator.WriteMessage(nil)
	if err != nil {
		t.Fatalf("unexpected error writing message 3: %v", err)
	}
	if cs1 == nil || cs2 == nil {
		t.Fatalf("expected message 3 to yield both cipher states")
	}
	_, rcs1, rcs2, err := responder.ReadMessage(msg3)
	if err != nil {
		t.Fatalf("unexpected error reading message 3: %v", err)
	}
	if rcs1 == nil || rcs2 == nil {
		t.Fatalf("expected responder to derive both cipher states after message 3")
	}

	if len(initiator.PeerStatic()) == 0 {
		t.Fatalf("expected initiator to learn the responder's static key")
	}
	if len(responder.PeerStatic()) == 0 {
		t.Fatalf("expected responder to learn the initiator's static key")
	}
}
