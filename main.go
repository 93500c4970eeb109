package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-raffle/internal/cart"
	"ms-raffle/internal/cart/cart_api"
	cartdb "ms-raffle/internal/cart/db"
	cartredis "ms-raffle/internal/cart/redis"
	"ms-raffle/internal/config"
	"ms-raffle/internal/database/migrations"
	"ms-raffle/internal/kafka"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/notify"
	"ms-raffle/internal/order"
	orderdb "ms-raffle/internal/order/db"
	"ms-raffle/internal/order/order_api"
	"ms-raffle/internal/qr"
	"ms-raffle/internal/raffle"
	raffledb "ms-raffle/internal/raffle/db"
	"ms-raffle/internal/raffle/raffle_api"
	"ms-raffle/internal/scheduler"
	"ms-raffle/internal/stats"
	"ms-raffle/internal/ticketops"
	ticketdb "ms-raffle/internal/ticketops/db"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := cfg.Database.DSN()

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return bunDB, redisClient
}

// noopPublisher swallows events when Kafka is disabled.
type noopPublisher struct{}

func (noopPublisher) Publish(topic string, key string, value []byte) error { return nil }

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Raffle Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	migrationRunner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := migrationRunner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	logger.Info("DATABASE", "✅ Migrations applied")

	var publisher notify.Publisher = noopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer kafkaProducer.Close()
		logger.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for brokers %v", cfg.Kafka.Brokers))

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.OrderEvents}); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		publisher = kafkaProducer
	} else {
		logger.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	dispatcher := notify.NewDispatcher(publisher, cfg.Kafka.Topics.OrderEvents, cfg.Scheduler.NotifyBufferSize, logger)
	defer dispatcher.Close()

	raffleDB := &raffledb.DB{Bun: bunDB}
	ticketDB := &ticketdb.DB{Bun: bunDB}
	cartDB := &cartdb.DB{Bun: bunDB}
	orderDB := &orderdb.DB{Bun: bunDB}

	ticketOps := ticketops.New(ticketDB)
	statsService := stats.NewService(raffleDB, raffleDB)
	raffleService := raffle.NewRaffleService(raffleDB, ticketDB, logger)
	ticketLock := cartredis.NewTicketLock(redisClient, cfg.Redis.TicketLockTTL)

	cartService := cart.NewCartService(
		cartDB,
		ticketDB,
		ticketOps,
		statsService,
		ticketLock,
		raffleService,
		logger,
		cfg.Scheduler.CartExpiry,
	)

	qrGenerator := qr.NewGenerator(os.Getenv("QR_SECRET_KEY"))
	customerService := &order.CustomerService{DB: orderDB}

	orderService := &order.OrderService{
		DB:           orderDB,
		Carts:        cartService,
		Tickets:      ticketDB,
		Ops:          ticketOps,
		Stats:        statsService,
		Raffles:      raffleService,
		Customers:    customerService,
		Associations: raffleService,
		Notifier:     dispatcher,
		QR:           qrGenerator,
		QRStore:      ticketDB,
		Logger:       logger,
	}

	raffleHandler := raffle_api.NewHandler(raffleService, logger)
	cartHandler := cart_api.NewHandler(cartService, logger)
	orderHandler := order_api.NewHandler(orderService, logger)

	logger.Info("HTTP", "Setting up router")
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/raffles", raffleHandler.Routes)
		r.Route("/carts", cartHandler.Routes)
		r.Route("/orders", orderHandler.Routes)
	})
	logger.Info("ROUTER", "Raffle, cart and order routes registered under /api")

	sweeper, err := scheduler.New(raffleService, cartService, cfg.Scheduler.SweepInterval, logger)
	if err != nil {
		logger.Fatal("SCHEDULER", fmt.Sprintf("Failed to create scheduler: %v", err))
	}
	if err := sweeper.Start(); err != nil {
		logger.Fatal("SCHEDULER", fmt.Sprintf("Failed to start scheduler: %v", err))
	}
	logger.Info("SCHEDULER", fmt.Sprintf("Sweeps registered at %s interval", cfg.Scheduler.SweepInterval))

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Raffle Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sweeper.Stop(); err != nil {
		logger.Error("SCHEDULER", fmt.Sprintf("Scheduler shutdown failed: %v", err))
	}
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Raffle Service shutdown complete")
	}
}
