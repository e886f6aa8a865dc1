package main

import (
	"AgentDesk/impl/core"
	"AgentDesk/internal/config"
	"AgentDesk/internal/http-server/api"
	"AgentDesk/internal/lib/logger"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/service/desk"
	"AgentDesk/internal/store"
	"AgentDesk/internal/ws"
	"flag"
	"log/slog"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	lg.Info("starting agentdesk", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	deskService := desk.NewDeskService(conf, lg)
	lg.With(
		slog.String("url", conf.Server.ApiURL),
		sl.Secret("token", conf.Server.AuthToken),
	).Info("desk service initialized")

	sessions := store.New(conf.Agent.ID, lg)
	resolver := store.NewResolver(sessions, deskService, conf.Agent.DefaultGroup, lg)

	conn := ws.NewClient(conf, lg)
	conn.SetTokenValidator(deskService)
	conn.SetStatusFunc(func(status ws.Status) {
		lg.Info("connection status", slog.String("status", string(status)))
	})

	handler := core.New(conf, lg)
	handler.SetStore(sessions)
	handler.SetResolver(resolver)
	handler.SetConnection(conn)
	handler.SetDeskService(deskService)
	handler.SetNoticeFunc(func(text string) {
		lg.Warn("user notice", slog.String("text", text))
	})

	if err := handler.Init(); err != nil {
		lg.Error("core wiring", sl.Err(err))
		return
	}

	conn.SetHandler(handler)

	if err := conn.Connect(conf.Server.AuthToken); err != nil {
		lg.Error("initial connect", sl.Err(err))
	}

	// *** blocking start with diagnostics server ***
	err := api.New(conf, lg, handler)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Error("service stopped")
}
