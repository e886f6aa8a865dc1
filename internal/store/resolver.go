package store

import (
	"log/slog"
	"sync"

	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/metrics"
)

// SessionFetcher fetches a full session record from the desk api.
type SessionFetcher interface {
	GetSession(sessionID string) (*entity.Session, error)
}

// NoticeFunc surfaces a non-fatal, user-visible notice.
type NoticeFunc func(text string)

// Resolver provisions sessions referenced by inbound messages before
// the local collection knows them. A pending registry guarantees at
// most one in-flight fetch per session id; membership is cleared
// unconditionally when the fetch settles so a failure never blacklists
// the session.
type Resolver struct {
	mu      sync.Mutex
	pending map[string]struct{}

	fetcher      SessionFetcher
	store        *Store
	defaultGroup string
	notify       NoticeFunc
	log          *slog.Logger
}

func NewResolver(store *Store, fetcher SessionFetcher, defaultGroup string, logger *slog.Logger) *Resolver {
	return &Resolver{
		pending:      make(map[string]struct{}),
		fetcher:      fetcher,
		store:        store,
		defaultGroup: defaultGroup,
		log:          logger.With(sl.Module("session-resolver")),
	}
}

// SetNoticeFunc sets the user-facing notice callback.
func (r *Resolver) SetNoticeFunc(f NoticeFunc) {
	r.mu.Lock()
	r.notify = f
	r.mu.Unlock()
}

// ResolveAndInsert fetches the session the triggering message belongs
// to and inserts it with that message as its history. Repeat triggers
// for an id already being resolved are suppressed, not queued.
func (r *Resolver) ResolveAndInsert(sessionID string, trigger entity.Message) {
	r.mu.Lock()
	if _, inFlight := r.pending[sessionID]; inFlight {
		r.mu.Unlock()
		return
	}
	r.pending[sessionID] = struct{}{}
	r.mu.Unlock()

	go r.resolve(sessionID, trigger)
}

func (r *Resolver) resolve(sessionID string, trigger entity.Message) {
	defer func() {
		r.mu.Lock()
		delete(r.pending, sessionID)
		r.mu.Unlock()
	}()

	sess, err := r.fetcher.GetSession(sessionID)
	if err != nil {
		r.log.Error("novel session fetch failed",
			slog.String("session", sessionID),
			sl.Err(err),
		)
		metrics.SessionFetches.WithLabelValues("error").Inc()
		r.noticeUser("Could not load a new conversation. It will retry on the next message.")
		return
	}

	sess.ID = sessionID
	sess.Messages = []entity.Message{trigger}
	m := trigger
	sess.LastMessage = &m
	if trigger.Timestamp > sess.LastActive {
		sess.LastActive = trigger.Timestamp
	}
	sess.Unread = 1
	if sess.GroupID == "" {
		sess.GroupID = r.defaultGroup
	}

	r.store.Insert(*sess)
	metrics.SessionFetches.WithLabelValues("ok").Inc()

	r.log.Info("novel session resolved",
		slog.String("session", sessionID),
		slog.String("group", sess.GroupID),
	)
}

func (r *Resolver) noticeUser(text string) {
	r.mu.Lock()
	notify := r.notify
	r.mu.Unlock()
	if notify != nil {
		notify(text)
	}
}
