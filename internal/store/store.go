// Package store holds the in-memory session collection and the merge
// operations every event source funnels through. Merges are idempotent
// per message id and the recency timestamp never regresses, which is
// what makes replayed and out-of-order delivery safe.
package store

import (
	"log/slog"
	"sort"
	"sync"

	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/metrics"
)

// Store is the single owner of the local session collection. All
// mutation goes through its merge operations; everything else reads
// copies.
type Store struct {
	mu           sync.RWMutex
	sessions     []entity.Session
	seen         map[string]map[string]struct{}
	roster       map[string]entity.Agent
	focused      string
	localAgentID string
	localStatus  string
	log          *slog.Logger
}

func New(localAgentID string, logger *slog.Logger) *Store {
	return &Store{
		seen:         make(map[string]map[string]struct{}),
		roster:       make(map[string]entity.Agent),
		localAgentID: localAgentID,
		log:          logger.With(sl.Module("session-store")),
	}
}

// LoadSnapshot replaces the collection with a server snapshot.
func (s *Store) LoadSnapshot(sessions []entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make([]entity.Session, len(sessions))
	copy(s.sessions, sessions)
	s.seen = make(map[string]map[string]struct{})
	for i := range s.sessions {
		s.rememberAllLocked(&s.sessions[i])
	}
	s.sortLocked()
	metrics.SessionsResident.Set(float64(len(s.sessions)))

	s.log.Info("session snapshot loaded", slog.Int("count", len(sessions)))
}

// ApplyIncomingMessage merges an inbound message into its session.
// It returns false when the session is unknown locally, in which case
// the caller delegates to the novel-session resolver and the collection
// stays untouched.
func (s *Store) ApplyIncomingMessage(msg entity.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(msg.SessionID)
	if idx < 0 {
		return false
	}

	sess := &s.sessions[idx]

	if s.seenLocked(sess.ID, msg.ID) {
		// duplicate delivery, already merged
		return true
	}
	s.rememberLocked(sess.ID, msg.ID)

	if sess.Messages != nil {
		sess.Messages = append(sess.Messages, msg)
	}
	m := msg
	sess.LastMessage = &m
	if msg.Timestamp > sess.LastActive {
		sess.LastActive = msg.Timestamp
	}

	if sess.ID == s.focused {
		sess.Unread = 0
	} else if s.countsAsUnreadLocked(sess, &msg) {
		sess.Unread++
	}

	s.sortLocked()
	return true
}

// countsAsUnreadLocked applies the unread qualification rule: a customer
// message into a session owned by the local agent, or any message that
// mentions the local agent.
func (s *Store) countsAsUnreadLocked(sess *entity.Session, msg *entity.Message) bool {
	if msg.Sender == entity.SenderUser && sess.PrimaryAgentID == s.localAgentID {
		return true
	}
	return msg.Mentioned(s.localAgentID)
}

// seenLocked reports whether a message id was already merged into the
// session. The id registry survives unloaded history, so a stale replay
// of an old message is still recognized as a duplicate after newer
// messages have moved last_message on.
func (s *Store) seenLocked(sessionID, msgID string) bool {
	_, ok := s.seen[sessionID][msgID]
	return ok
}

func (s *Store) rememberLocked(sessionID, msgID string) {
	if msgID == "" {
		return
	}
	ids := s.seen[sessionID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.seen[sessionID] = ids
	}
	ids[msgID] = struct{}{}
}

func (s *Store) rememberAllLocked(sess *entity.Session) {
	if sess.LastMessage != nil {
		s.rememberLocked(sess.ID, sess.LastMessage.ID)
	}
	for i := range sess.Messages {
		s.rememberLocked(sess.ID, sess.Messages[i].ID)
	}
}

// ApplySessionPatch shallow-merges the patch onto its session. Fields
// absent from the patch are preserved, and a patch can never move
// last_active backwards. The return value reports whether this patch
// transitioned the session into the resolved state.
func (s *Store) ApplySessionPatch(patch entity.SessionPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(patch.ID)
	if idx < 0 {
		s.log.Debug("patch for unknown session dropped", slog.String("session", patch.ID))
		return false
	}

	sess := &s.sessions[idx]
	nowResolved := false

	if patch.Status != nil {
		if *patch.Status == entity.StatusResolved && sess.Status != entity.StatusResolved {
			nowResolved = true
		}
		sess.Status = *patch.Status
	}
	if patch.PrimaryAgentID != nil {
		sess.PrimaryAgentID = *patch.PrimaryAgentID
	}
	if patch.SupportAgentIDs != nil {
		sess.SupportAgentIDs = patch.SupportAgentIDs
	}
	if patch.GroupID != nil {
		sess.GroupID = *patch.GroupID
	}
	if patch.CategoryID != nil {
		sess.CategoryID = *patch.CategoryID
	}
	if patch.LastActive != nil && *patch.LastActive > sess.LastActive {
		sess.LastActive = *patch.LastActive
	}

	s.sortLocked()
	return nowResolved
}

// ApplyUserUpdate replaces the customer profile on a session.
func (s *Store) ApplyUserUpdate(sessionID string, user entity.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return
	}
	u := user
	s.sessions[idx].User = &u
}

// ApplyAgentStatusChange updates the roster entry, keeping the local
// agent's own cached status in step.
func (s *Store) ApplyAgentStatusChange(agentID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent := s.roster[agentID]
	agent.ID = agentID
	agent.Status = status
	s.roster[agentID] = agent

	if agentID == s.localAgentID {
		s.localStatus = status
	}
}

// ApplyDetail merges a full session snapshot fetched on focus refresh.
// History is only adopted when none is loaded yet; recency stays
// monotonic.
func (s *Store) ApplyDetail(detail entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(detail.ID)
	if idx < 0 {
		return
	}

	sess := &s.sessions[idx]
	if detail.User != nil {
		sess.User = detail.User
	}
	if detail.Status != "" {
		sess.Status = detail.Status
	}
	if detail.PrimaryAgentID != "" {
		sess.PrimaryAgentID = detail.PrimaryAgentID
	}
	if detail.SupportAgentIDs != nil {
		sess.SupportAgentIDs = detail.SupportAgentIDs
	}
	if sess.Messages == nil && detail.Messages != nil {
		sess.Messages = detail.Messages
		s.rememberAllLocked(sess)
	}
	if detail.LastActive > sess.LastActive {
		sess.LastActive = detail.LastActive
	}

	s.sortLocked()
}

// Insert adds a freshly resolved session at the head and resorts.
// Inserting an id that is already present is a no-op.
func (s *Store) Insert(sess entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(sess.ID) >= 0 {
		return
	}

	s.sessions = append([]entity.Session{sess}, s.sessions...)
	s.rememberAllLocked(&sess)
	s.sortLocked()
	metrics.SessionsResident.Set(float64(len(s.sessions)))
}

// Focus marks a session as the one on screen and zeroes its unread
// count. Focusing an unknown id is a no-op and reports false.
func (s *Store) Focus(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return false
	}

	s.focused = sessionID
	s.sessions[idx].Unread = 0
	return true
}

// Blur clears the focused session.
func (s *Store) Blur() {
	s.mu.Lock()
	s.focused = ""
	s.mu.Unlock()
}

// Focused returns the currently focused session id, empty if none.
func (s *Store) Focused() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focused
}

// Clear drops the whole collection on sign-out.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	s.seen = make(map[string]map[string]struct{})
	s.roster = make(map[string]entity.Agent)
	s.focused = ""
	metrics.SessionsResident.Set(0)

	s.log.Info("session collection cleared")
}

// Sessions returns a sorted copy of the collection.
func (s *Store) Sessions() []entity.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Get returns a copy of one session.
func (s *Store) Get(sessionID string) (entity.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return entity.Session{}, false
	}
	return s.sessions[idx], true
}

// Agent returns the roster entry for an agent id.
func (s *Store) Agent(agentID string) (entity.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.roster[agentID]
	return agent, ok
}

// LocalStatus returns the local agent's own cached status.
func (s *Store) LocalStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localStatus
}

func (s *Store) indexLocked(sessionID string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}

// sortLocked recomputes the canonical order: descending by last_active,
// stable so ties keep their original order. Recomputing after every
// mutation beats chasing incremental order drift.
func (s *Store) sortLocked() {
	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].LastActive > s.sessions[j].LastActive
	})
}
