package core

import (
	"errors"
	"log/slog"

	"AgentDesk/entity"
	"AgentDesk/internal/config"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/store"
	"AgentDesk/internal/ws"
)

// Connection is the streaming connection the core talks through.
type Connection interface {
	Connect(token string) error
	SendEvent(kind string, payload interface{}) error
	Disconnect()
	IsConnected() bool
	State() ws.Status
}

// DeskService groups the rest collaborators the core depends on.
type DeskService interface {
	GetSession(sessionID string) (*entity.Session, error)
	MarkRead(sessionID string) error
}

// Core is the application controller: it routes inbound envelopes to
// the session store, mediates optimistic local writes, and owns the
// focus and sign-out flows.
type Core struct {
	store    *store.Store
	resolver *store.Resolver
	conn     Connection
	desk     DeskService

	localAgentID string
	notify       store.NoticeFunc
	celebrate    func(sessionID string)

	log *slog.Logger
}

func New(conf *config.Config, logger *slog.Logger) *Core {
	return &Core{
		localAgentID: conf.Agent.ID,
		log:          logger.With(sl.Module("core")),
	}
}

func (c *Core) SetStore(s *store.Store) {
	c.store = s
}

func (c *Core) SetResolver(r *store.Resolver) {
	c.resolver = r
}

func (c *Core) SetConnection(conn Connection) {
	c.conn = conn
}

func (c *Core) SetDeskService(desk DeskService) {
	c.desk = desk
}

// SetNoticeFunc sets the user-facing notice callback.
func (c *Core) SetNoticeFunc(f store.NoticeFunc) {
	c.notify = f
	if c.resolver != nil {
		c.resolver.SetNoticeFunc(f)
	}
}

// SetCelebrateFunc sets the callback fired when a session transitions
// into the resolved state.
func (c *Core) SetCelebrateFunc(f func(sessionID string)) {
	c.celebrate = f
}

// Init verifies the wiring is complete.
func (c *Core) Init() error {
	if c.store == nil {
		return errors.New("core: store is not set")
	}
	if c.resolver == nil {
		return errors.New("core: resolver is not set")
	}
	if c.conn == nil {
		return errors.New("core: connection is not set")
	}
	if c.desk == nil {
		return errors.New("core: desk service is not set")
	}
	return nil
}
