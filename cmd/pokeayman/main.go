package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pokeayman/pokeayman/internal/backup"
	"github.com/pokeayman/pokeayman/internal/config"
	"github.com/pokeayman/pokeayman/internal/database"
	"github.com/pokeayman/pokeayman/internal/fallback"
	"github.com/pokeayman/pokeayman/internal/logging"
	"github.com/pokeayman/pokeayman/internal/push"
	"github.com/pokeayman/pokeayman/internal/server"
)

func main() {
	genKeys := flag.Bool("generate-vapid-keys", false, "print a fresh VAPID key pair and exit")
	flag.Parse()

	if *genKeys {
		publicKey, privateKey, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("failed to generate vapid keys: %v", err)
		}
		fmt.Printf("POKEAYMAN_VAPID_PUBLIC_KEY=%s\nPOKEAYMAN_VAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	fallbackStore, err := fallback.Open(cfg.FallbackPath)
	if err != nil {
		log.Fatalf("failed to open fallback store: %v", err)
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
	}

	srv := server.New(db, fallbackStore, pushCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backupMgr := backup.NewManager(backup.Config{
		Endpoint:   cfg.BackupEndpoint,
		Bucket:     cfg.BackupBucket,
		Region:     cfg.BackupRegion,
		AccessKey:  cfg.BackupAccessKey,
		SecretKey:  cfg.BackupSecretKey,
		Passphrase: cfg.BackupPassphrase,
		Interval:   cfg.BackupInterval,
		Retention:  cfg.BackupRetention,
	}, db, logger.With("component", "backup"))
	backupMgr.Start(ctx)
	defer backupMgr.Stop()

	// Replay fallback writes captured while the primary store was down.
	go func() {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := srv.Ledger().Reconcile(ctx); err != nil {
					logger.Error("reconcile failed", "error", err)
				}
			}
		}
	}()

	// Prune expired rate-limit entries.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("PokéAyman running at http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
