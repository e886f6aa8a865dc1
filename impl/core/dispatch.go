package core

import (
	"encoding/json"
	"log/slog"

	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/metrics"
)

// HandleEnvelope routes one decoded server envelope to the matching
// store operation. It is a synchronous fold over already-delivered
// events; retry and backoff live in the connection client, not here.
// Unknown event types are logged and dropped so newer servers never
// crash older clients.
func (c *Core) HandleEnvelope(env entity.Envelope) {
	switch env.Type {
	case entity.EventNewMessage:
		var msg entity.Message
		if err := c.decode(env, &msg); err != nil {
			return
		}
		if !c.store.ApplyIncomingMessage(msg) {
			c.resolver.ResolveAndInsert(msg.SessionID, msg)
		}

	case entity.EventSessionUpdated:
		var patch entity.SessionPatch
		if err := c.decode(env, &patch); err != nil {
			return
		}
		if c.store.ApplySessionPatch(patch) && c.celebrate != nil {
			c.celebrate(patch.ID)
		}

	case entity.EventUserUpdated:
		var up entity.UserUpdate
		if err := c.decode(env, &up); err != nil {
			return
		}
		c.store.ApplyUserUpdate(up.SessionID, up.User)

	case entity.EventAgentStatus:
		var change entity.AgentStatusChange
		if err := c.decode(env, &change); err != nil {
			return
		}
		c.store.ApplyAgentStatusChange(change.AgentID, change.Status)

	case entity.EventNotification:
		var note entity.Notification
		if err := c.decode(env, &note); err != nil {
			return
		}
		if c.notify != nil {
			c.notify(note.Text)
		}

	default:
		c.log.Warn("unknown event type dropped", slog.String("type", env.Type))
		metrics.EventsDropped.WithLabelValues("unknown").Inc()
		return
	}

	metrics.EventsDispatched.WithLabelValues(env.Type).Inc()
}

func (c *Core) decode(env entity.Envelope, dst interface{}) error {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		c.log.Warn("malformed event payload dropped",
			slog.String("type", env.Type),
			sl.Err(err),
		)
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		return err
	}
	return nil
}
