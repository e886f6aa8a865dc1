package status

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"AgentDesk/internal/lib/api/response"
)

// Core defines the methods required by status handlers.
type Core interface {
	ConnectionState() string
}

// Connection reports the streaming connection state.
func Connection(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(map[string]string{
			"state": handler.ConnectionState(),
		}))
	}
}

// Health is a plain liveness probe.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok("up"))
	}
}
