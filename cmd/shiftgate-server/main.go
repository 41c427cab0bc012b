// Package main provides the shiftgate server entry point.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/solaius/shiftgate/pkg/api"
	"github.com/solaius/shiftgate/pkg/audit"
	"github.com/solaius/shiftgate/pkg/cache"
	"github.com/solaius/shiftgate/pkg/config"
	"github.com/solaius/shiftgate/pkg/decision"
	"github.com/solaius/shiftgate/pkg/gate"
	"github.com/solaius/shiftgate/pkg/ha"
	"github.com/solaius/shiftgate/pkg/policy"
	"github.com/solaius/shiftgate/pkg/readiness"
	"github.com/solaius/shiftgate/pkg/store"
	"github.com/solaius/shiftgate/pkg/tenancy"
	"github.com/solaius/shiftgate/pkg/token"
)

func main() {
	var (
		configPath   string
		listenAddr   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	flag.StringVar(&databaseType, "db-type", "", "Database type: postgres, mysql or sqlite (overrides config)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string (overrides config)")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	overrides := map[string]any{}
	if listenAddr != "" {
		overrides["listen"] = listenAddr
	}
	if databaseType != "" {
		overrides["database.type"] = databaseType
	}
	if databaseDSN != "" {
		overrides["database.dsn"] = databaseDSN
	}

	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}
	level, _ := cfg.SlogLevel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting shiftgate server",
		"listen", cfg.Listen,
		"dbType", cfg.Database.Type,
		"tenancyMode", cfg.Tenancy.Mode,
		"tokens", cfg.Token.Secret != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormLevel, _ := cfg.GormLogLevel()
	db, err := store.Open(cfg.Database.Type, cfg.Database.DSN, gormLevel)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migrate(ctx, db, cfg.Database.Compliance); err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}

	registry, err := gate.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		glog.Fatalf("Failed to load action registry: %v", err)
	}
	logger.Info("loaded action registry", "actions", len(registry.Policies()))

	roster := store.NewRosterStore(db)
	snapshots := store.NewSnapshotStore(db)
	calc := readiness.NewCalculator(
		roster,
		policy.NewResolver(roster, store.NewPolicyStore(db)),
		readiness.DefaultStrategies(roster, store.NewComplianceStore(db)),
		snapshots,
		readiness.WithLogger(logger),
	)

	var verifier *token.Verifier
	var gateVerifier gate.TokenVerifier
	if cfg.Token.Secret != "" {
		verifier = token.NewVerifier([]byte(cfg.Token.Secret),
			token.WithIssuer(cfg.Token.Issuer),
			token.WithLeeway(cfg.Token.Leeway),
		)
		gateVerifier = verifier
	} else {
		logger.Warn("no token secret configured, token-gated actions are unavailable")
	}

	var snapshotCache *cache.LRUCache
	if cfg.Cache.Enabled {
		snapshotCache = cache.NewLRUCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
	}

	events := audit.NewStore(db)
	srv := api.NewServer(api.Deps{
		DB:          db,
		Gate:        gate.New(registry, calc, gateVerifier, events, gate.WithLogger(logger)),
		Readiness:   calc,
		Shifts:      roster,
		Assignments: store.NewAssignmentStore(db),
		Decisions:   decision.NewStore(db),
		Events:      events,
		Snapshots:   snapshots,
		Verifier:    verifier,
	}, api.Options{
		TenancyMode:    tenancy.TenancyMode(cfg.Tenancy.Mode),
		DefaultOrg:     cfg.Tenancy.DefaultOrg,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SnapshotCache:  snapshotCache,
	}, logger)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Routes(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("shiftgate server ready", "listen", cfg.Listen)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	calc.Flush()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("shiftgate server stopped")
}

func migrate(ctx context.Context, db *gorm.DB, compliance bool) error {
	locker := ha.NewMigrationLocker(db)
	if err := store.AutoMigrate(ctx, db, locker, &audit.EventRecord{}, &decision.Record{}); err != nil {
		return err
	}
	if compliance {
		return store.MigrateCompliance(ctx, db, locker)
	}
	return nil
}
