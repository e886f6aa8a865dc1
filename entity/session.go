package entity

// SessionStatus tracks who is currently handling a support session.
type SessionStatus string

const (
	StatusAIHandling    SessionStatus = "ai_handling"
	StatusHumanHandling SessionStatus = "human_handling"
	StatusResolved      SessionStatus = "resolved"
)

// Customer is the end user on the other side of a session.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Agent represents a support agent in the workspace roster.
type Agent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // "online" | "away" | "offline"
}

// Session represents a single customer support conversation.
// Messages == nil means history has not been loaded yet; an empty
// non-nil slice means loaded and empty.
type Session struct {
	ID              string        `json:"id"`
	User            *Customer     `json:"user,omitempty"`
	Status          SessionStatus `json:"status"`
	PrimaryAgentID  string        `json:"primary_agent_id"`
	SupportAgentIDs []string      `json:"support_agent_ids,omitempty"`
	GroupID         string        `json:"group_id"`
	CategoryID      string        `json:"category_id,omitempty"`
	Messages        []Message     `json:"messages,omitempty"`
	LastMessage     *Message      `json:"last_message,omitempty"`
	LastActive      int64         `json:"last_active"` // epoch millis
	Unread          int           `json:"unread"`
}

// SessionPatch is a partial update for a single session. Nil fields
// are left untouched on merge.
type SessionPatch struct {
	ID              string         `json:"id" validate:"required"`
	Status          *SessionStatus `json:"status,omitempty"`
	PrimaryAgentID  *string        `json:"primary_agent_id,omitempty"`
	SupportAgentIDs []string       `json:"support_agent_ids,omitempty"`
	GroupID         *string        `json:"group_id,omitempty"`
	CategoryID      *string        `json:"category_id,omitempty"`
	LastActive      *int64         `json:"last_active,omitempty"`
}

// SessionSummary represents a session preview for the session list.
type SessionSummary struct {
	ID          string        `json:"id"`
	UserName    string        `json:"user_name"`
	Status      SessionStatus `json:"status"`
	LastMessage string        `json:"last_message"`
	LastActive  int64         `json:"last_active"`
	Unread      int           `json:"unread"`
}

// Summary builds the list preview for a session.
func (s *Session) Summary() SessionSummary {
	sum := SessionSummary{
		ID:         s.ID,
		Status:     s.Status,
		LastActive: s.LastActive,
		Unread:     s.Unread,
	}
	if s.User != nil {
		sum.UserName = s.User.Name
	}
	if s.LastMessage != nil {
		sum.LastMessage = s.LastMessage.Text
	}
	return sum
}
