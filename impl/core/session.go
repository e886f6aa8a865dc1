package core

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/metrics"
)

// EventSendMessage is the outbound event kind for agent messages.
const EventSendMessage = "send_message"

// SendMessage applies a temporary message to the local session first,
// then transmits it. The server's authoritative echo arrives later
// through the normal inbound path under its own id.
func (c *Core) SendMessage(sessionID, text string, internal bool) error {
	msg := entity.Message{
		ID:         "tmp-" + uuid.NewString(),
		SessionID:  sessionID,
		Sender:     entity.SenderAgent,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
		IsInternal: internal,
	}

	if !c.store.ApplyIncomingMessage(msg) {
		return fmt.Errorf("send message: unknown session %s", sessionID)
	}
	metrics.MessagesSent.Inc()

	if err := c.conn.SendEvent(EventSendMessage, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// FocusSession puts a session on screen: unread drops to zero, the
// read receipt fires and forgets, and unloaded history is fetched.
func (c *Core) FocusSession(sessionID string) error {
	if !c.store.Focus(sessionID) {
		return fmt.Errorf("focus: unknown session %s", sessionID)
	}

	go func() {
		if err := c.desk.MarkRead(sessionID); err != nil {
			c.log.Warn("read receipt failed",
				slog.String("session", sessionID),
				sl.Err(err),
			)
		}
	}()

	if sess, ok := c.store.Get(sessionID); ok && sess.Messages == nil {
		go c.refreshDetail(sessionID)
	}

	return nil
}

func (c *Core) refreshDetail(sessionID string) {
	detail, err := c.desk.GetSession(sessionID)
	if err != nil {
		c.log.Warn("session detail refresh failed",
			slog.String("session", sessionID),
			sl.Err(err),
		)
		return
	}
	detail.ID = sessionID
	c.store.ApplyDetail(*detail)
}

// BlurSession clears the focused session.
func (c *Core) BlurSession() {
	c.store.Blur()
}

// SignOut tears down the connection and drops all local session state.
func (c *Core) SignOut() {
	c.conn.Disconnect()
	c.store.Clear()
	c.log.Info("signed out")
}

// Summaries returns session previews in canonical order.
func (c *Core) Summaries() []entity.SessionSummary {
	sessions := c.store.Sessions()
	out := make([]entity.SessionSummary, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessions[i].Summary())
	}
	return out
}

// Session returns a copy of one session for diagnostics.
func (c *Core) Session(sessionID string) (entity.Session, bool) {
	return c.store.Get(sessionID)
}

// ConnectionState reports the current connection state for diagnostics.
func (c *Core) ConnectionState() string {
	return string(c.conn.State())
}
