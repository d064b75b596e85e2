package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"haulsync/internal/clock"
	"haulsync/internal/config"
	"haulsync/internal/httpapi"
	"haulsync/internal/session"
)

const version = "1.0.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("haulsyncd v%s\n", version)
		os.Exit(0)
	}

	log.SetFlags(log.Ltime | log.Ldate)
	log.Printf("🚀 HaulSync v%s starting...", version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	log.Printf("✓ Backend: %s (%s transport)", cfg.BackendURL, cfg.Transport)

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()
	log.Printf("✓ Database connected (%s)", cfg.DBPath)

	sess, err := session.New(cfg, db, clock.Real{})
	if err != nil {
		log.Fatalf("❌ Failed to build session: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sess.Start(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(sess),
	}

	go func() {
		log.Printf("✓ Local API listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server: %v", err)
		}
	}()

	<-sigChan
	log.Println("\n⏹️  Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  HTTP shutdown: %v", err)
	}

	sess.Close()
	log.Println("👋 HaulSync stopped")
}
