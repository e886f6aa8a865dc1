package entity

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// Message represents a single message in a support session.
type Message struct {
	ID         string   `json:"id" validate:"required"`
	SessionID  string   `json:"session_id" validate:"required"`
	Sender     Sender   `json:"sender" validate:"required,oneof=user agent ai system"`
	Text       string   `json:"text"`
	Timestamp  int64    `json:"timestamp"` // epoch millis, server clock for authoritative messages
	IsInternal bool     `json:"is_internal"`
	Mentions   []string `json:"mentions,omitempty"`
}

// Mentioned reports whether the given agent id appears in the
// message mentions.
func (m *Message) Mentioned(agentID string) bool {
	for _, id := range m.Mentions {
		if id == agentID {
			return true
		}
	}
	return false
}

// AgentStatusChange reports an agent going online, away or offline.
type AgentStatusChange struct {
	AgentID string `json:"agent_id" validate:"required"`
	Status  string `json:"status"`
}

// UserUpdate carries a refreshed customer profile for a session.
type UserUpdate struct {
	SessionID string   `json:"session_id" validate:"required"`
	User      Customer `json:"user"`
}

// Notification is a generic user-visible server notice.
type Notification struct {
	Text string `json:"text"`
}
