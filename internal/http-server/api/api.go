package api

import (
	"AgentDesk/internal/config"
	"AgentDesk/internal/http-server/handlers/errors"
	"AgentDesk/internal/http-server/handlers/session"
	"AgentDesk/internal/http-server/handlers/status"
	"AgentDesk/internal/lib/sl"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"net"
	"net/http"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

// Handler is the read-only surface the diagnostics api exposes. It
// never mutates the session collection.
type Handler interface {
	session.Core
	status.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/healthz", status.Health())
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/sessions", func(r chi.Router) {
			r.Get("/", session.List(log, handler))
			r.Get("/{session_id}", session.Get(log, handler))
		})
		v1.Route("/connection", func(r chi.Router) {
			r.Get("/", status.Connection(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  router,
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting diagnostics server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
