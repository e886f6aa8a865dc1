package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"AgentDesk/entity"
)

// probe matches every inbound wire variant at once. The populated
// fields tell us which shape the server spoke.
type probe struct {
	Event   string          `json:"event"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Data    json.RawMessage `json:"data"`

	// chat-shim frame
	Channel        string   `json:"channel"`
	ConversationID string   `json:"conversationId"`
	MessageID      string   `json:"messageId"`
	SenderID       string   `json:"senderId"`
	Sender         string   `json:"sender"`
	Content        string   `json:"content"`
	Timestamp      int64    `json:"timestamp"`
	Internal       bool     `json:"internal"`
	Mentions       []string `json:"mentions"`
}

// Normalize reduces any accepted inbound frame shape to the canonical
// envelope: {event,payload}, {type,data}, {type,payload}, or the
// chat-shim object, which becomes a new_message envelope.
func Normalize(raw []byte) (entity.Envelope, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return entity.Envelope{}, fmt.Errorf("decode frame: %w", err)
	}

	payload := p.Payload
	if len(payload) == 0 {
		payload = p.Data
	}

	switch {
	case p.Event != "":
		return entity.Envelope{Type: p.Event, Payload: payload}, nil

	case p.Type != "":
		return entity.Envelope{Type: p.Type, Payload: payload}, nil

	case p.ConversationID != "":
		msg := shimMessage(p)
		data, err := json.Marshal(msg)
		if err != nil {
			return entity.Envelope{}, fmt.Errorf("encode shim message: %w", err)
		}
		return entity.Envelope{Type: entity.EventNewMessage, Payload: data}, nil

	default:
		return entity.Envelope{}, errors.New("unrecognized frame shape")
	}
}

// shimMessage lifts a chat-shim frame into a Message. The id is derived
// deterministically so a redelivered shim frame merges idempotently.
func shimMessage(p probe) entity.Message {
	id := p.MessageID
	if id == "" {
		id = "shim-" + p.ConversationID + "-" + p.SenderID + "-" + strconv.FormatInt(p.Timestamp, 10)
	}

	sender := entity.Sender(p.Sender)
	switch sender {
	case entity.SenderUser, entity.SenderAgent, entity.SenderAI, entity.SenderSystem:
	default:
		// shim frames come from the customer-facing channel
		sender = entity.SenderUser
	}

	return entity.Message{
		ID:         id,
		SessionID:  p.ConversationID,
		Sender:     sender,
		Text:       p.Content,
		Timestamp:  p.Timestamp,
		IsInternal: p.Internal,
		Mentions:   p.Mentions,
	}
}
