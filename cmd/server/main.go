/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Balance Reconciliation Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), parse command-line flags
  2. Initialize store (SQLite or PostgreSQL)
  3. Create reconciliation engine, optional Kafka publisher
  4. Start drift auditor
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080, env PORT)
  -driver          Storage driver: sqlite or postgres (env DB_DRIVER)
  -dsn             Database path/DSN (env DB_DSN)
                   Use ":memory:" with sqlite for an in-memory database
  -kafka-brokers   Comma-separated broker list; empty disables events
                   (env KAFKA_BROKERS)
  -kafka-topic     Event topic (default: ledger-effects, env KAFKA_TOPIC)
  -audit-interval  Drift audit period (default: 1h, env AUDIT_INTERVAL)
  -no-audit        Disable the background drift auditor

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the auditor, close Kafka and the database
  4. Exit

EXAMPLES:
  # Run with a file database
  ./server -dsn="./data/warp.db"

  # Run against PostgreSQL with Kafka events
  ./server -driver=postgres -dsn="postgres://warp@localhost/ledger?sslmode=disable" \
           -kafka-brokers=localhost:9092

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Storage drivers
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/engine"
	"github.com/warp/ledger-engine/events/kafka"
	"github.com/warp/ledger-engine/store/postgres"
	"github.com/warp/ledger-engine/store/sqlite"
)

type backend interface {
	api.Backend
	Close() error
}

func main() {
	// .env is optional; flags and real env vars win over it.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	driver := flag.String("driver", envStr("DB_DRIVER", "sqlite"), "storage driver: sqlite or postgres")
	dsn := flag.String("dsn", envStr("DB_DSN", "ledger.db"), "database path or DSN")
	kafkaBrokers := flag.String("kafka-brokers", envStr("KAFKA_BROKERS", ""), "comma-separated Kafka brokers; empty disables events")
	kafkaTopic := flag.String("kafka-topic", envStr("KAFKA_TOPIC", "ledger-effects"), "Kafka event topic")
	auditInterval := flag.Duration("audit-interval", envDuration("AUDIT_INTERVAL", time.Hour), "drift audit period")
	noAudit := flag.Bool("no-audit", false, "disable the background drift auditor")
	flag.Parse()

	// Initialize store
	var (
		store backend
		err   error
	)
	switch *driver {
	case "sqlite":
		store, err = sqlite.New(*dsn)
	case "postgres":
		store, err = postgres.New(*dsn)
	default:
		log.Fatalf("Unknown storage driver: %s", *driver)
	}
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize engine
	eng := engine.New(store)

	var publisher *kafka.Publisher
	if *kafkaBrokers != "" {
		publisher = kafka.NewPublisher(strings.Split(*kafkaBrokers, ","), *kafkaTopic)
		defer publisher.Close()
		eng.Publisher = publisher
		log.Printf("Publishing effect events to %s (topic %s)", *kafkaBrokers, *kafkaTopic)
	}

	// Background drift auditor
	auditor := engine.NewDriftAuditor(eng, store)
	auditor.CheckInterval = *auditInterval
	auditor.Enabled = !*noAudit
	auditor.Start()
	defer auditor.Stop()

	// Initialize handler and router
	handler := api.NewHandler(store, eng, auditor)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
