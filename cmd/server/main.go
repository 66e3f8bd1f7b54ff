package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benefitflow/backend/internal/adapter/httpapi"
	"github.com/benefitflow/backend/internal/adapter/repository/memory"
	"github.com/benefitflow/backend/internal/adapter/repository/postgres"
	"github.com/benefitflow/backend/internal/config"
	"github.com/benefitflow/backend/internal/domain"
	"github.com/benefitflow/backend/internal/events"
	eventskafka "github.com/benefitflow/backend/internal/events/kafka"
	"github.com/benefitflow/backend/internal/usecase/seeder"
	"github.com/benefitflow/backend/internal/usecase/transfer"
)

func main() {
	cfg := config.Load()

	// 1. Setup the benefit store
	var store domain.Store
	switch cfg.StorageBackend {
	case "postgres":
		db, err := postgres.NewDB(cfg.DatabaseConnStr)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		store = postgres.NewStore(db)
	case "memory":
		store = memory.NewStore()
	default:
		log.Fatalf("Unknown storage backend: %q", cfg.StorageBackend)
	}

	// 2. Seed initial benefits
	if cfg.SeedFixtures {
		if err := seeder.NewSeeder(store).Seed(context.Background()); err != nil {
			log.Fatalf("Failed to seed benefits: %v", err)
		}
		log.Println("Benefit fixtures seeded successfully")
	}

	// 3. Setup event publication
	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := eventskafka.NewPublisher(cfg.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Printf("Publishing transfer events to %v", cfg.KafkaBrokers)
	}

	// 4. Initialize the transfer engine and HTTP adapter
	engine := transfer.NewEngine(store, publisher, transfer.DefaultConfig())
	api := httpapi.NewServer(engine)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	waitForShutdown(server)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")
}
