package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"

	"github.com/aeonia-ai/gaia-runtime/internal/broadcast"
	"github.com/aeonia-ai/gaia-runtime/internal/commands"
	"github.com/aeonia-ai/gaia-runtime/internal/config"
	"github.com/aeonia-ai/gaia-runtime/internal/debug"
	"github.com/aeonia-ai/gaia-runtime/internal/gateway"
	"github.com/aeonia-ai/gaia-runtime/internal/llm"
	"github.com/aeonia-ai/gaia-runtime/internal/logging"
	"github.com/aeonia-ai/gaia-runtime/internal/markdownrunner"
	"github.com/aeonia-ai/gaia-runtime/internal/observability"
	"github.com/aeonia-ai/gaia-runtime/internal/store"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// settings is the process's env-var driven configuration. None of it is
// hot-reloadable; a config change is a restart.
type settings struct {
	contentRoot  string
	listenAddr   string
	jwtSecret    string
	jwtIssuer    string
	openaiAPIKey string
	debugMode    bool
	jsonLogs     bool
	broadcastBus string // "memory" or "nats"
	natsURL      string
}

func settingsFromEnv() settings {
	return settings{
		contentRoot:  getenv("GAIA_CONTENT_ROOT", "./content"),
		listenAddr:   getenv("GAIA_LISTEN_ADDR", ":8080"),
		jwtSecret:    getenv("GAIA_JWT_SECRET", "dev-secret-change-me"),
		jwtIssuer:    getenv("GAIA_JWT_ISSUER", ""),
		openaiAPIKey: os.Getenv("OPENAI_API_KEY"),
		debugMode:    getenvBool("GAIA_DEBUG", false),
		jsonLogs:     getenvBool("GAIA_JSON_LOGS", true),
		broadcastBus: getenv("GAIA_BROADCAST", "memory"),
		natsURL:      getenv("GAIA_NATS_URL", nats.DefaultURL),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// application assembles every collaborator the gateway needs in one place
// before main starts serving.
type application struct {
	logger  *slog.Logger
	gateway *gateway.Gateway
	caster  broadcast.Broadcaster
	tracing *observability.TracerProvider
	debug   bool
}

func newApplication(s settings) (*application, error) {
	logger := logging.NewStructuredLogger(s.jsonLogs, s.debugMode)

	tracing, err := observability.InitTracing(context.Background(), observability.LoadConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	fileStore := store.NewFileStore(s.contentRoot)
	configLoader := config.NewLoader(s.contentRoot)
	manager := worldstate.NewManager(fileStore, configLoader, logger)
	registry := commands.NewRegistry(s.contentRoot, logger)

	dbg := debug.NewLogger(s.debugMode)
	llmService := llm.NewService(s.openaiAPIKey, dbg)
	completer, err := logging.NewCompletionLogger()
	if err != nil {
		return nil, fmt.Errorf("opening completion log: %w", err)
	}
	runner := markdownrunner.New(manager, llmService, completer, logger)

	caster, err := newBroadcaster(s, logger)
	if err != nil {
		return nil, fmt.Errorf("wiring broadcaster: %w", err)
	}

	dispatcher := gateway.NewDispatcher(manager, registry, runner, caster, logger)
	verifier := gateway.NewJWTVerifier([]byte(s.jwtSecret), s.jwtIssuer)
	gw := gateway.New(manager, dispatcher, verifier, caster, logger)

	return &application{logger: logger, gateway: gw, caster: caster, tracing: tracing, debug: s.debugMode}, nil
}

func newBroadcaster(s settings, logger *slog.Logger) (broadcast.Broadcaster, error) {
	switch s.broadcastBus {
	case "nats":
		conn, err := nats.Connect(s.natsURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to nats at %s: %w", s.natsURL, err)
		}
		return broadcast.NewNatsBroadcaster(conn, logger), nil
	default:
		return broadcast.NewMemoryBroadcaster(logger), nil
	}
}

func (a *application) router() *gin.Engine {
	if !a.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) { c.Status(200) })
	a.gateway.RegisterRoutes(router)
	return router
}
