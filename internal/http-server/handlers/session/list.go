package session

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"AgentDesk/entity"
	"AgentDesk/internal/lib/api/response"
)

// Core defines the methods required by session handlers.
type Core interface {
	Summaries() []entity.SessionSummary
	Session(sessionID string) (entity.Session, bool)
}

// List returns session previews in canonical order.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := handler.Summaries()
		if summaries == nil {
			summaries = []entity.SessionSummary{}
		}
		render.JSON(w, r, response.Ok(summaries))
	}
}

// Get returns a single session with whatever history is loaded.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		if sessionID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("session_id is required"))
			return
		}

		sess, ok := handler.Session(sessionID)
		if !ok {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Session not found"))
			return
		}

		render.JSON(w, r, response.Ok(sess))
	}
}
