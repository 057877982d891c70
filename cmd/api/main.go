package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trailmark.org/internal/audit"
	"trailmark.org/internal/auth"
	"trailmark.org/internal/config"
	"trailmark.org/internal/httpapi"
	"trailmark.org/internal/obs"
	"trailmark.org/internal/store/pg"
)

var version = "0.3.1"

type maintenance struct {
	throttle *auth.Throttle
	sessions *auth.SessionManager
	storeSnk *pg.AuditSink
	fileSnk  *audit.FileSink
	days     int
}

func (m *maintenance) RunCleanup(ctx context.Context) (map[string]any, error) {
	attempts, err := m.throttle.CleanupOldAttempts(ctx, m.days)
	if err != nil {
		return nil, err
	}
	rows, err := m.storeSnk.Cleanup(ctx, m.days)
	if err != nil {
		return nil, err
	}
	files, err := m.fileSnk.Cleanup(m.days)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"attempts_deleted":    attempts,
		"audit_rows_deleted":  rows,
		"audit_files_deleted": files,
		"sessions_swept":      m.sessions.SweepExpired(),
	}, nil
}

func main() {
	configPath := flag.String("config", "", "path to trailmark.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.PGDSN == "" {
		log.Fatal("pg_dsn is required (TRAILMARK_PG_DSN)")
	}

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("TRAILMARK_COMMIT"))

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	fileSink, err := audit.NewFileSink(cfg.AuditFileDir)
	if err != nil {
		log.Fatalf("audit file sink: %v", err)
	}
	storeSink := pg.NewAuditSink(store)
	trail := audit.NewTrail(cfg.AuditEnabled, []audit.Sink{storeSink, fileSink})

	registry, err := auth.NewRegistry(store.Permissions())
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := registry.EnsureBuiltins(ctx); err != nil {
		log.Fatalf("ensure permissions: %v", err)
	}
	cancel()

	throttle, err := auth.NewThrottle(store.Attempts(),
		auth.WithThrottleLimits(cfg.MaxLoginAttempts, cfg.LoginAttemptWindow(), cfg.LoginLockout()))
	if err != nil {
		log.Fatalf("throttle: %v", err)
	}

	sessions, err := auth.NewSessionManager(auth.NewMemorySessionStore(),
		auth.WithInactivityTimeout(cfg.SessionInactivityTimeout()),
		auth.WithRotationInterval(cfg.SessionRotationInterval()))
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}

	gateway, err := auth.NewGateway(store, registry, throttle, sessions, trail,
		auth.WithOriginAllowList(cfg.OriginAllowList))
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	var tokens *auth.TokenService
	if cfg.ServiceTokenSecret != "" {
		tokens, err = auth.NewTokenService(cfg.ServiceTokenSecret)
		if err != nil {
			log.Fatalf("token service: %v", err)
		}
	}

	maint := &maintenance{
		throttle: throttle,
		sessions: sessions,
		storeSnk: storeSink,
		fileSnk:  fileSink,
		days:     cfg.AuditRetentionDays,
	}

	api := httpapi.New(gateway, storeSink, tokens, maint,
		httpapi.ReadyProbe{DB: store.DB()}, version)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting trailmark-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = fileSink.Close()
	_ = store.Close()
	log.Println("Stopped")
}
