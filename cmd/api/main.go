// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-core/internal/config"
	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/cartsync"
	"github.com/your-org/storefront-core/internal/domain/checkout"
	"github.com/your-org/storefront-core/internal/domain/inventory"
	"github.com/your-org/storefront-core/internal/domain/reservation"
	"github.com/your-org/storefront-core/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront-core/internal/infrastructure/database/redis"
	"github.com/your-org/storefront-core/internal/interfaces/http"
	"github.com/your-org/storefront-core/internal/interfaces/http/routes"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	logger := newLogger(cfg)

	// Connect to database
	db, err := postgres.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Health check
	if err := db.Health(); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}

	if err := redisClient.Health(); err != nil {
		log.Fatalf("Redis health check failed: %v", err)
	}

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB())

	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	// Inventory authority
	authority := newAuthority(cfg, redisClient, logger)

	// Reservation manager over the authority
	reservations := reservation.NewManager(authority, cfg.Reservation.TTL, logger)

	// In-memory cart store backed by the reservation manager
	store := cart.NewStore(reservations)

	// Cart mirrors: guest carts in Redis, customer carts in Postgres
	guests := cartsync.NewRedisRepository(redisClient.GetClient(), cfg.Sync.GuestCartTTL)
	users := cartsync.NewPostgresRepository(db.GetDB())
	syncer := cartsync.NewService(store, reservations, guests, users, logger, cfg.Sync.PushRetries, cfg.Sync.PushBackoff)

	// Stock alert fan-out over Redis pub/sub
	alertSource := inventory.NewRedisAlertSource(redisClient.GetClient(), cfg.Alerts.ChannelPrefix, logger)
	alerts := inventory.NewAlertChannel(alertSource, logger)

	// Per-catalog checkout flows
	initiators := map[cart.CatalogOrigin]checkout.Initiator{
		cart.OriginCore:     newInitiator(cart.OriginCore, cfg.Checkout.CoreURL, cfg),
		cart.OriginExtended: newInitiator(cart.OriginExtended, cfg.Checkout.ExtendedURL, cfg),
	}

	facade := checkout.NewFacade(store, reservations, syncer, initiators, logger)

	log.Println("✅ All systems operational!")

	// Create and start HTTP server
	server := http.NewServer(cfg, db.GetDB(), redisClient.GetClient(), &routes.Dependencies{
		Config:    cfg,
		Facade:    facade,
		Sync:      syncer,
		Authority: authority,
		Alerts:    alerts,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("👋 Shutting down gracefully...")

	// Give server 30 seconds to shutdown gracefully
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Println("✅ Server shutdown completed")
}

// newAuthority selects the inventory authority adapter from config
func newAuthority(cfg *config.Config, redisClient *redis.Client, logger *logrus.Logger) inventory.Authority {
	switch cfg.Authority.Provider {
	case "http":
		return inventory.NewHTTPAuthority(cfg.Authority.BaseURL, cfg.Authority.RequestTimeout)
	case "memory":
		return inventory.NewMemoryAuthority()
	default:
		return inventory.NewRedisAuthority(redisClient.GetClient(), logger, cfg.Alerts.ChannelPrefix, cfg.Authority.LowStockThreshold)
	}
}

// newInitiator builds one catalog's checkout flow; no URL means the
// in-process development flow
func newInitiator(origin cart.CatalogOrigin, baseURL string, cfg *config.Config) checkout.Initiator {
	if baseURL == "" {
		return &checkout.LocalInitiator{Origin: origin}
	}
	return checkout.NewHTTPInitiator(baseURL, cfg.Checkout.RequestTimeout)
}

// newLogger builds the shared application logger
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
