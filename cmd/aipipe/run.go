package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	gateway "github.com/aipipe/gateway/internal"
	"github.com/aipipe/gateway/internal/httpapi"
	ledgersqlite "github.com/aipipe/gateway/internal/ledger/sqlite"
	"github.com/aipipe/gateway/internal/provider/gemini"
	"github.com/aipipe/gateway/internal/provider/openai"
	"github.com/aipipe/gateway/internal/provider/openrouter"
	"github.com/aipipe/gateway/internal/provider/similarity"
	"github.com/aipipe/gateway/internal/telemetry"
	"github.com/aipipe/gateway/internal/token"
	"github.com/aipipe/gateway/internal/transport"
)

// config is the process's pure environment-variable configuration.
type config struct {
	Addr          string
	DBPath        string
	Secret        string
	AdminEmails   []string
	OpenAIKey     string
	OpenRouterKey string
	GeminiKey     string
	JWKSURL       string
	OTLPEndpoint  string
	LogLevel      string
}

func loadConfig() config {
	return config{
		Addr:          ":" + envOr("PORT", "8080"),
		DBPath:        envOr("DB_PATH", "gateway.db"),
		Secret:        os.Getenv("AIPIPE_SECRET"),
		AdminEmails:   splitNonEmpty(os.Getenv("ADMIN_EMAILS"), ","),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenRouterKey: os.Getenv("OPENROUTER_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		JWKSURL:       os.Getenv("OIDC_JWKS_URL"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setupLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func run() error {
	cfg := loadConfig()
	setupLogging(cfg.LogLevel)

	slog.Info("starting aipipe", "version", version, "addr", cfg.Addr)

	ledger, err := ledgersqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()
	slog.Info("ledger opened", "db_path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tok, err := token.New(ctx, cfg.Secret, cfg.AdminEmails, cfg.JWKSURL)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	slog.Info("token service ready", "admins", len(cfg.AdminEmails))

	// Shared outbound transport: DNS-cached, no client timeout -- the
	// gateway pipeline imposes none, relying on client disconnect to
	// cancel an in-flight upstream fetch. The URL pass-through proxy
	// layers its own 30s context timeout on top of this client.
	resolver := transport.NewResolver(ctx, 5*time.Minute)
	upstreamClient := transport.New(resolver, 0)

	directory, err := openrouter.NewDirectory(upstreamClient)
	if err != nil {
		return fmt.Errorf("openrouter directory: %w", err)
	}

	openaiAdapter := openai.New(cfg.OpenAIKey, "", openai.DefaultPricing())
	adapters := map[string]gateway.Adapter{
		"openai":     openaiAdapter,
		"openrouter": openrouter.New(cfg.OpenRouterKey, "", "", "", directory),
		"gemini":     gemini.New(cfg.GeminiKey, "", gemini.DefaultPricing(), upstreamClient),
		"similarity": similarity.New(cfg.OpenAIKey, "", upstreamClient, openaiAdapter),
	}
	for name := range adapters {
		slog.Info("provider adapter registered", "name", name)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(promRegistry)
	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	var tracingShutdown func(context.Context) error

	srvDeps := &httpapi.Server{
		Token:          tok,
		Ledger:         ledger,
		Adapters:       adapters,
		UpstreamClient: upstreamClient,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		ReadyCheck:     ledger.Ping,
	}

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, 0.1)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			srvDeps.Tracer = telemetry.Tracer("aipipe/gateway")
			slog.Info("opentelemetry tracing enabled", "endpoint", cfg.OTLPEndpoint)
		}
	}

	handler := httpapi.New(srvDeps)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("aipipe ready", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if tracingShutdown != nil {
			if err := tracingShutdown(shutdownCtx); err != nil {
				slog.Error("tracing shutdown error", "error", err)
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	slog.Info("aipipe stopped")
	return nil
}
