package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailchimp-clickmap/internal/api"
	"github.com/ignite/mailchimp-clickmap/internal/clickmap"
	"github.com/ignite/mailchimp-clickmap/internal/config"
	"github.com/ignite/mailchimp-clickmap/internal/mailchimp"
	"github.com/ignite/mailchimp-clickmap/internal/pkg/runlock"
	"github.com/ignite/mailchimp-clickmap/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use
// before any dependency is dialed.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Mailchimp.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check failed: %v", err)
	}

	client := mailchimp.NewClient(cfg.Mailchimp)

	// Optional PostgreSQL run store.
	var db *sql.DB
	var store *storage.RunStore
	if cfg.Database.Enabled && cfg.Database.URL != "" {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("Database unreachable: %v", err)
		}

		store = storage.NewRunStore(db)
		if err := store.InitSchema(context.Background()); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("Run persistence enabled (PostgreSQL)")
	} else {
		log.Println("Run persistence disabled; keeping last run in memory only")
	}

	// Optional Redis content cache.
	var redisClient *redis.Client
	var cache clickmap.ContentCache
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		cache = storage.NewContentCache(redisClient, cfg.Redis.TTL())
		log.Printf("Campaign content cache enabled (Redis %s)", cfg.Redis.Addr)
	}

	builder := clickmap.NewBuilder(clickmap.NewFilter(cfg.LinkFilter.Domains()))
	pipeline := clickmap.NewPipeline(client, builder, cache)

	handlers := api.NewHandlers(pipeline, client, store, cfg.Pipeline)
	if redisClient != nil || db != nil {
		handlers.SetRunLock(runlock.New(redisClient, db, 30*time.Minute))
	}
	healthChecker := api.NewHealthChecker(db, redisClient, client)
	router := api.SetupRoutes(handlers, healthChecker)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // pipeline runs happen in-request
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
