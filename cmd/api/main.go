package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"johari/api/internal/app"
	"johari/api/internal/cache"
	"johari/api/internal/config"
	"johari/api/internal/email"
	"johari/api/internal/export"
	"johari/api/internal/notify"
	"johari/api/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	// Aggregate cache: Redis when configured, else the snapshot table.
	var windowCache cache.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for the aggregate cache")
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisCache.Close()
		windowCache = redisCache
	} else {
		log.Printf("Using PostgreSQL snapshots for the aggregate cache")
		windowCache = cache.NewSnapshotCache(dataStore, cfg.CacheTTL)
	}

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	notifier := notify.NewService(emailService, cfg.BaseURL)

	var archive *export.Archive
	if strings.TrimSpace(cfg.ArchiveEndpoint) != "" {
		archive, err = export.NewArchive(ctx, cfg.ArchiveEndpoint, cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, cfg.ArchiveBucket, cfg.ArchiveUseSSL)
		if err != nil {
			log.Fatalf("report archive connection failed: %v", err)
		}
		log.Printf("Report archive enabled (bucket %s)", cfg.ArchiveBucket)
	}
	exporter := export.NewService(archive)

	service := app.New(cfg, dataStore, windowCache, notifier, exporter)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runSweepLoop(sweepCtx, service, cfg.SweepInterval)

	go func() {
		log.Printf("Johari API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// runSweepLoop invokes the retention cleanup on a fixed cadence until the
// context is cancelled. Sweep failures are logged; the loop keeps going.
func runSweepLoop(ctx context.Context, service *app.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := service.RunCleanupSweep(ctx)
			if err != nil {
				log.Printf("cleanup sweep failed: %v", err)
				continue
			}
			log.Printf(`{"level":"info","msg":"cleanup sweep finished","deleted":%d}`, deleted)
		}
	}
}
