package entity

import "encoding/json"

// Inbound event types the reconciliation layer understands.
const (
	EventNewMessage     = "new_message"
	EventSessionUpdated = "session_updated"
	EventUserUpdated    = "user_updated"
	EventAgentStatus    = "agent_status"
	EventNotification   = "notification"
	EventPing           = "ping"
	EventPong           = "pong"
)

// Envelope is the normalized shape every inbound server event is
// reduced to before dispatch. Servers emit several wire variants;
// the connection client folds them all into this one.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// OutboundEvent wraps every client-to-server event with a unique id
// and a send-time timestamp so the server can correlate retries.
type OutboundEvent struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	EventID   string      `json:"eventId"`
	Timestamp int64       `json:"timestamp"`
}
