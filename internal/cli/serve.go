package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fundwise/steward/internal/cache"
	"github.com/fundwise/steward/internal/core"
	"github.com/fundwise/steward/internal/interpreter"
	"github.com/fundwise/steward/internal/server"
	"github.com/fundwise/steward/internal/sheets"
)

var (
	serveListen    string
	serveLogLevel  string
	serveLogFormat string
	serveCacheTTL  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the steward HTTP API",
	Long: `Run the steward HTTP API for the fundraising dashboard.

The API accepts natural-language and structured commands, exposes the
change ledger and snapshots, and serves cached table reads. Bearer token
authentication is required on all /api/v1 routes; the token is read from
the environment variable named by server_token_env in the config
(STEWARD_API_TOKEN by default).

Examples:
  steward serve
  steward serve --listen 0.0.0.0:8450 --cache-ttl 30s`,
	Run: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", "", "Listen address (host:port), defaults to listen_addr from config")
	f.StringVar(&serveLogLevel, "log-level", envOrDefault("STEWARD_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	f.StringVar(&serveLogFormat, "log-format", envOrDefault("STEWARD_LOG_FORMAT", "json"), "Log format (json|text)")
	f.DurationVar(&serveCacheTTL, "cache-ttl", time.Minute, "TTL for cached table reads")
}

func runServe(_ *cobra.Command, _ []string) {
	var level slog.Level
	switch serveLogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if serveLogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	c := initContext()
	defer c.Close()
	cfg := c.Config

	apiToken := cfg.ServerToken()
	if apiToken == "" {
		logger.Error("no API token configured, set " + tokenEnvName(cfg.ServerTokenEnv))
		os.Exit(1)
	}

	client := sheets.NewRetryClient(
		sheets.NewClient(cfg.SheetsURL, cfg.SpreadsheetID, cfg.APIToken()),
		sheets.DefaultRetryConfig(),
	)

	var interp interpreter.Interpreter
	if key := cfg.GeminiAPIKey(); key != "" {
		g, err := interpreter.NewGemini(context.Background(), key, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to create interpreter", "error", err)
			os.Exit(1)
		}
		interp = g
		logger.Info("interpreter configured", "model", cfg.GeminiModel)
	} else {
		interp = interpreter.NewStatic()
		logger.Warn("no GEMINI_API_KEY set, only structured commands will be accepted")
	}

	tables := cache.New(client, serveCacheTTL)
	pipeline := core.NewPipeline(core.PipelineOptions{
		Interpreter:       interp,
		Client:            client,
		Store:             c.Store,
		Notifier:          tables,
		Logger:            logger,
		PendingTTL:        cfg.PendingTTL(),
		CriticalThreshold: cfg.CriticalThreshold,
	})

	srvCfg := server.DefaultServerConfig()
	srvCfg.APIToken = apiToken

	h, handlerCleanup := server.Handler(pipeline, tables, client, srvCfg, logger)
	defer handlerCleanup()

	listen := serveListen
	if listen == "" {
		listen = cfg.ListenAddr
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting steward server", "listen", listen, "cache_ttl", serveCacheTTL.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func tokenEnvName(configured string) string {
	if configured != "" {
		return configured
	}
	return "STEWARD_API_TOKEN"
}
