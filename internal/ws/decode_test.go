package ws

import (
	"encoding/json"
	"testing"

	"AgentDesk/entity"
)

func TestNormalize_EventPayloadShape(t *testing.T) {
	env, err := Normalize([]byte(`{"event":"session_updated","payload":{"id":"s1"}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if env.Type != entity.EventSessionUpdated {
		t.Errorf("Type = %s, want session_updated", env.Type)
	}
	if string(env.Payload) != `{"id":"s1"}` {
		t.Errorf("Payload = %s", env.Payload)
	}
}

func TestNormalize_TypeDataShape(t *testing.T) {
	env, err := Normalize([]byte(`{"type":"new_message","data":{"id":"m1"}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if env.Type != entity.EventNewMessage {
		t.Errorf("Type = %s, want new_message", env.Type)
	}
	if string(env.Payload) != `{"id":"m1"}` {
		t.Errorf("Payload = %s", env.Payload)
	}
}

func TestNormalize_TypePayloadShape(t *testing.T) {
	env, err := Normalize([]byte(`{"type":"notification","payload":{"text":"hi"}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if env.Type != entity.EventNotification {
		t.Errorf("Type = %s, want notification", env.Type)
	}
}

func TestNormalize_ChatShim(t *testing.T) {
	raw := []byte(`{"channel":"web","conversationId":"s1","senderId":"u7","content":"help","timestamp":150}`)

	env, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if env.Type != entity.EventNewMessage {
		t.Fatalf("Type = %s, want new_message", env.Type)
	}

	var msg entity.Message
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if msg.SessionID != "s1" || msg.Text != "help" || msg.Timestamp != 150 {
		t.Errorf("message = %+v", msg)
	}
	if msg.Sender != entity.SenderUser {
		t.Errorf("Sender = %s, want user", msg.Sender)
	}

	// same frame twice must produce the same message id
	env2, _ := Normalize(raw)
	var msg2 entity.Message
	json.Unmarshal(env2.Payload, &msg2)
	if msg.ID == "" || msg.ID != msg2.ID {
		t.Errorf("shim ids differ under replay: %q vs %q", msg.ID, msg2.ID)
	}
}

func TestNormalize_ChatShimKeepsKnownSender(t *testing.T) {
	env, err := Normalize([]byte(`{"conversationId":"s1","sender":"ai","content":"hi","timestamp":1}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	var msg entity.Message
	json.Unmarshal(env.Payload, &msg)
	if msg.Sender != entity.SenderAI {
		t.Errorf("Sender = %s, want ai", msg.Sender)
	}
}

func TestNormalize_UnrecognizedShape(t *testing.T) {
	if _, err := Normalize([]byte(`{"hello":"world"}`)); err == nil {
		t.Error("expected error for unrecognized shape")
	}
}

func TestNormalize_MalformedJSON(t *testing.T) {
	if _, err := Normalize([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed json")
	}
}
