package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/pressroom-io/pressroom/internal/adapter/inbound/api"
	"github.com/pressroom-io/pressroom/internal/adapter/outbound/memory"
	"github.com/pressroom-io/pressroom/internal/adapter/outbound/sqlite"
	"github.com/pressroom-io/pressroom/internal/config"
	"github.com/pressroom-io/pressroom/internal/domain/content"
	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/internal/domain/identity"
	"github.com/pressroom-io/pressroom/internal/domain/permission"
	"github.com/pressroom-io/pressroom/internal/service"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch server",
	Long: `Start the pressroom HTTP server.

Examples:
  # Start with config file settings
  pressroom serve

  # Start in development mode (seeds a dev admin, relaxes auth)
  pressroom serve --dev

  # Start with a specific config file
  pressroom --config /path/to/config.yaml serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (seeded admin identity, relaxed auth)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	// Load without validation so the --dev flag can override first.
	cfg, err := config.LoadRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	if used := config.ConfigFileUsed(); used != "" {
		logger.Info("configuration loaded", "file", used)
	} else {
		logger.Info("no config file found, using defaults and environment")
	}

	// Signal context for graceful shutdown. stop() restores default
	// handling so a second Ctrl+C exits immediately.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	return runServer(ctx, cfg, logger)
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if missing := permission.MissingRules(); len(missing) > 0 {
		return fmt.Errorf("permission table is missing rules for actions: %v", missing)
	}

	// Content storage.
	var (
		articles  content.ArticleStore
		resources content.ResourceStore
		members   content.MembershipStore
		prompts   content.PromptStore
	)
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlite.NewContentStore(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		defer store.Close()
		articles, resources, members, prompts = store, store, store, store
		logger.Info("content storage ready", "backend", "sqlite", "path", cfg.Storage.SQLitePath)
	default:
		store := memory.NewContentStore()
		articles, resources, members, prompts = store, store, store, store
		logger.Info("content storage ready", "backend", "memory")
	}

	// Identities and API keys from config.
	authStore := memory.NewAuthStore()
	var devIdentity *identity.Identity
	for _, ic := range cfg.Auth.Identities {
		scopes, errs := identity.ParseScopeSet(ic.Scopes)
		for _, err := range errs {
			logger.Warn("dropping malformed scope", "identity", ic.ID, "error", err)
		}
		ident := identity.Identity{
			ID:     ic.ID,
			Name:   ic.Name,
			Scopes: scopes,
			Active: ic.Active,
		}
		authStore.PutIdentity(ident)
		if cfg.DevMode && devIdentity == nil {
			devIdentity = &ident
		}
	}
	for _, kc := range cfg.Auth.APIKeys {
		authStore.PutAPIKey(identity.APIKey{
			Key:        kc.Key,
			IdentityID: kc.IdentityID,
			Name:       kc.Name,
			CreatedAt:  time.Now().UTC(),
		})
	}
	apiKeys := identity.NewAPIKeyService(authStore)

	// Audit trail.
	auditStore, err := memory.NewAuditStore(cfg.Audit.Output)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	auditSvc := service.NewAuditService(auditStore, logger,
		service.WithAuditBufferSize(cfg.Audit.BufferSize),
		service.WithAuditBatchSize(cfg.Audit.BatchSize),
		service.WithAuditFlushPeriod(cfg.Audit.FlushInterval),
	)
	defer auditSvc.Stop()

	// Permission guard with override rules.
	overrides := make([]service.OverrideRule, 0, len(cfg.Guard.OverrideRules))
	for _, rc := range cfg.Guard.OverrideRules {
		overrides = append(overrides, service.OverrideRule{
			Name:        rc.Name,
			ActionMatch: rc.ActionMatch,
			Condition:   rc.Condition,
			HelpText:    rc.HelpText,
		})
	}
	guard, err := service.NewGuardService(overrides, logger,
		service.WithDecisionCacheSize(cfg.Guard.CacheSize))
	if err != nil {
		return fmt.Errorf("failed to build guard: %w", err)
	}

	// Dispatch store and built-in handlers.
	// SIGHUP re-reads the config file and swaps the override rules
	// without restarting.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				reloaded, err := config.Load()
				if err != nil {
					logger.Error("config reload failed", "error", err)
					continue
				}
				rules := make([]service.OverrideRule, 0, len(reloaded.Guard.OverrideRules))
				for _, rc := range reloaded.Guard.OverrideRules {
					rules = append(rules, service.OverrideRule{
						Name:        rc.Name,
						ActionMatch: rc.ActionMatch,
						Condition:   rc.Condition,
						HelpText:    rc.HelpText,
					})
				}
				if err := guard.Reload(rules); err != nil {
					logger.Error("override rule reload failed", "error", err)
				}
			}
		}
	}()

	dispatchStore := dispatch.NewStore(dispatch.WithLogger(logger))
	handlers := service.NewActionHandlers(articles, resources, members, prompts, logger)
	unregister := handlers.RegisterAll(dispatchStore)
	defer unregister()

	dispatcher := service.NewDispatchService(guard, dispatchStore, auditSvc, logger)

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := api.NewMetrics(registry, func() float64 {
		return float64(auditSvc.Dropped())
	})

	// HTTP surface.
	opts := []api.Option{
		api.WithMetrics(registry, metrics),
		api.WithAuditReader(auditStore),
	}
	if cfg.Auth.JWTSecret != "" {
		opts = append(opts, api.WithJWTSecret(cfg.Auth.JWTSecret))
	}
	if cfg.DevMode && devIdentity != nil {
		logger.Warn("dev mode: unauthenticated requests act as seeded identity",
			"identity", devIdentity.ID)
		opts = append(opts, api.WithDevIdentity(devIdentity))
	}
	handler := api.NewHandler(dispatcher, apiKeys, authStore, logger, opts...)

	server := api.NewServer(
		cfg.Server.Host, cfg.Server.Port, handler.Routes(),
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout,
		logger,
	)
	return server.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
