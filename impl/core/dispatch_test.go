package core

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"AgentDesk/entity"
	"AgentDesk/internal/config"
	"AgentDesk/internal/store"
	"AgentDesk/internal/ws"
)

const localAgent = "agent-1"

// fakeConn records outbound events without a network.
type fakeConn struct {
	mu           sync.Mutex
	events       []entity.OutboundEvent
	disconnected bool
}

func (f *fakeConn) Connect(string) error { return nil }

func (f *fakeConn) SendEvent(kind string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, entity.OutboundEvent{Event: kind, Payload: payload})
	return nil
}

func (f *fakeConn) Disconnect() {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakeConn) IsConnected() bool { return true }

func (f *fakeConn) State() ws.Status { return ws.StatusConnected }

func (f *fakeConn) sent() []entity.OutboundEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.OutboundEvent, len(f.events))
	copy(out, f.events)
	return out
}

// fakeDesk scripts the rest collaborators.
type fakeDesk struct {
	mu       sync.Mutex
	fetchErr error
	marked   []string
	markedCh chan string
	fetched  int
	blockCh  chan struct{}
}

func newFakeDesk() *fakeDesk {
	return &fakeDesk{markedCh: make(chan string, 8)}
}

func (f *fakeDesk) GetSession(sessionID string) (*entity.Session, error) {
	f.mu.Lock()
	f.fetched++
	block := f.blockCh
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &entity.Session{
		ID:     sessionID,
		Status: entity.StatusAIHandling,
		User:   &entity.Customer{ID: "u1", Name: "Dana"},
	}, nil
}

func (f *fakeDesk) MarkRead(sessionID string) error {
	f.mu.Lock()
	f.marked = append(f.marked, sessionID)
	f.mu.Unlock()
	f.markedCh <- sessionID
	return nil
}

func (f *fakeDesk) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched
}

func newTestCore(t *testing.T) (*Core, *store.Store, *fakeConn, *fakeDesk) {
	t.Helper()

	conf := &config.Config{}
	conf.Agent.ID = localAgent
	conf.Agent.DefaultGroup = "general"

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := store.New(localAgent, log)
	desk := newFakeDesk()
	conn := &fakeConn{}

	c := New(conf, log)
	c.SetStore(sessions)
	c.SetResolver(store.NewResolver(sessions, desk, conf.Agent.DefaultGroup, log))
	c.SetConnection(conn)
	c.SetDeskService(desk)

	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return c, sessions, conn, desk
}

func envelope(t *testing.T, kind string, payload interface{}) entity.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return entity.Envelope{Type: kind, Payload: data}
}

func seed(s *store.Store, id string, lastActive int64) {
	s.LoadSnapshot(append(s.Sessions(), entity.Session{
		ID:             id,
		PrimaryAgentID: localAgent,
		Messages:       []entity.Message{},
		LastActive:     lastActive,
	}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHandleEnvelope_NewMessage(t *testing.T) {
	c, sessions, _, _ := newTestCore(t)
	seed(sessions, "s1", 100)

	c.HandleEnvelope(envelope(t, entity.EventNewMessage, entity.Message{
		ID: "m1", SessionID: "s1", Sender: entity.SenderUser, Text: "hi", Timestamp: 150,
	}))

	sess, _ := sessions.Get("s1")
	if sess.LastActive != 150 || sess.Unread != 1 {
		t.Errorf("session = %+v, want lastActive 150 unread 1", sess)
	}
}

func TestHandleEnvelope_NovelSessionResolvedOnce(t *testing.T) {
	c, sessions, _, desk := newTestCore(t)
	desk.blockCh = make(chan struct{})

	env := envelope(t, entity.EventNewMessage, entity.Message{
		ID: "m1", SessionID: "s9", Sender: entity.SenderUser, Text: "hi", Timestamp: 150,
	})
	c.HandleEnvelope(env)
	c.HandleEnvelope(env) // burst before the first fetch settles

	waitFor(t, func() bool { return desk.fetchCount() > 0 })
	close(desk.blockCh)

	waitFor(t, func() bool {
		_, ok := sessions.Get("s9")
		return ok
	})

	if desk.fetchCount() != 1 {
		t.Errorf("fetches = %d, want exactly 1", desk.fetchCount())
	}
	sess, _ := sessions.Get("s9")
	if len(sess.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(sess.Messages))
	}
	if len(sessions.Sessions()) != 1 {
		t.Errorf("sessions = %d, want 1", len(sessions.Sessions()))
	}
}

func TestHandleEnvelope_SessionPatchCelebration(t *testing.T) {
	c, sessions, _, _ := newTestCore(t)
	seed(sessions, "s1", 100)

	var celebrated string
	c.SetCelebrateFunc(func(sessionID string) { celebrated = sessionID })

	c.HandleEnvelope(envelope(t, entity.EventSessionUpdated, map[string]interface{}{
		"id":     "s1",
		"status": "resolved",
	}))

	if celebrated != "s1" {
		t.Errorf("celebrated = %q, want s1", celebrated)
	}

	sess, _ := sessions.Get("s1")
	if sess.Status != entity.StatusResolved {
		t.Errorf("Status = %s, want resolved", sess.Status)
	}
}

func TestHandleEnvelope_UserUpdated(t *testing.T) {
	c, sessions, _, _ := newTestCore(t)
	seed(sessions, "s1", 100)

	c.HandleEnvelope(envelope(t, entity.EventUserUpdated, entity.UserUpdate{
		SessionID: "s1",
		User:      entity.Customer{ID: "u1", Name: "Dana"},
	}))

	sess, _ := sessions.Get("s1")
	if sess.User == nil || sess.User.Name != "Dana" {
		t.Error("customer profile not applied")
	}
}

func TestHandleEnvelope_AgentStatus(t *testing.T) {
	c, sessions, _, _ := newTestCore(t)

	c.HandleEnvelope(envelope(t, entity.EventAgentStatus, entity.AgentStatusChange{
		AgentID: localAgent,
		Status:  "away",
	}))

	if sessions.LocalStatus() != "away" {
		t.Errorf("LocalStatus = %s, want away", sessions.LocalStatus())
	}
}

func TestHandleEnvelope_Notification(t *testing.T) {
	c, _, _, _ := newTestCore(t)

	var got string
	c.SetNoticeFunc(func(text string) { got = text })

	c.HandleEnvelope(envelope(t, entity.EventNotification, entity.Notification{Text: "maintenance at noon"}))

	if got != "maintenance at noon" {
		t.Errorf("notice = %q", got)
	}
}

func TestHandleEnvelope_UnknownTypeDropped(t *testing.T) {
	c, sessions, _, _ := newTestCore(t)
	seed(sessions, "s1", 100)

	c.HandleEnvelope(entity.Envelope{Type: "hologram_started", Payload: json.RawMessage(`{}`)})

	if len(sessions.Sessions()) != 1 {
		t.Error("unknown event must leave the collection untouched")
	}
}

func TestHandleEnvelope_MalformedPayloadDropped(t *testing.T) {
	c, sessions, _, _ := newTestCore(t)
	seed(sessions, "s1", 100)

	c.HandleEnvelope(entity.Envelope{Type: entity.EventNewMessage, Payload: json.RawMessage(`{broken`)})

	sess, _ := sessions.Get("s1")
	if len(sess.Messages) != 0 {
		t.Error("malformed payload must not mutate the store")
	}
}

func TestSendMessage_OptimisticThenTransmit(t *testing.T) {
	c, sessions, conn, _ := newTestCore(t)
	seed(sessions, "s1", 100)

	if err := c.SendMessage("s1", "on my way", false); err != nil {
		t.Fatalf("send: %v", err)
	}

	sess, _ := sessions.Get("s1")
	if sess.LastMessage == nil || !strings.HasPrefix(sess.LastMessage.ID, "tmp-") {
		t.Error("optimistic message with temp id must be applied locally")
	}
	if len(sess.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(sess.Messages))
	}

	sent := conn.sent()
	if len(sent) != 1 || sent[0].Event != EventSendMessage {
		t.Fatalf("sent = %+v, want one send_message event", sent)
	}
}

func TestSendMessage_UnknownSession(t *testing.T) {
	c, _, conn, _ := newTestCore(t)

	if err := c.SendMessage("nope", "hi", false); err == nil {
		t.Fatal("expected error for unknown session")
	}
	if len(conn.sent()) != 0 {
		t.Error("nothing must be transmitted for an unknown session")
	}
}

func TestFocusSession_ClearsUnreadAndMarksRead(t *testing.T) {
	c, sessions, _, desk := newTestCore(t)
	seed(sessions, "s1", 100)
	sessions.ApplyIncomingMessage(entity.Message{
		ID: "m1", SessionID: "s1", Sender: entity.SenderUser, Timestamp: 150,
	})

	if err := c.FocusSession("s1"); err != nil {
		t.Fatalf("focus: %v", err)
	}

	sess, _ := sessions.Get("s1")
	if sess.Unread != 0 {
		t.Errorf("Unread = %d, want 0", sess.Unread)
	}

	select {
	case id := <-desk.markedCh:
		if id != "s1" {
			t.Errorf("marked %q, want s1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read receipt not sent")
	}
}

func TestFocusSession_FetchesUnloadedHistory(t *testing.T) {
	c, sessions, _, desk := newTestCore(t)
	sessions.LoadSnapshot([]entity.Session{{
		ID:             "s1",
		PrimaryAgentID: localAgent,
		LastActive:     100,
	}})

	if err := c.FocusSession("s1"); err != nil {
		t.Fatalf("focus: %v", err)
	}

	waitFor(t, func() bool { return desk.fetchCount() > 0 })
}

func TestFocusSession_UnknownSession(t *testing.T) {
	c, _, _, _ := newTestCore(t)
	if err := c.FocusSession("nope"); err == nil {
		t.Error("expected error focusing unknown session")
	}
}

func TestSignOut_DisconnectsAndClears(t *testing.T) {
	c, sessions, conn, _ := newTestCore(t)
	seed(sessions, "s1", 100)

	c.SignOut()

	conn.mu.Lock()
	disconnected := conn.disconnected
	conn.mu.Unlock()
	if !disconnected {
		t.Error("sign-out must disconnect")
	}
	if len(sessions.Sessions()) != 0 {
		t.Error("sign-out must clear the collection")
	}
}

func TestInit_RequiresWiring(t *testing.T) {
	conf := &config.Config{}
	c := New(conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := c.Init(); err == nil {
		t.Error("expected error for unwired core")
	}
}
