package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fjod/go_cart/checkout-flow/internal/address"
	"github.com/fjod/go_cart/checkout-flow/internal/cache"
	"github.com/fjod/go_cart/checkout-flow/internal/cart"
	"github.com/fjod/go_cart/checkout-flow/internal/checkout"
	"github.com/fjod/go_cart/checkout-flow/internal/config"
	checkoutgrpc "github.com/fjod/go_cart/checkout-flow/internal/grpc"
	checkouthttp "github.com/fjod/go_cart/checkout-flow/internal/http"
	"github.com/fjod/go_cart/checkout-flow/internal/inventory"
	"github.com/fjod/go_cart/checkout-flow/internal/lock"
	"github.com/fjod/go_cart/checkout-flow/internal/orders"
	"github.com/fjod/go_cart/checkout-flow/internal/pricing"
	"github.com/fjod/go_cart/checkout-flow/internal/publisher"
	"github.com/fjod/go_cart/checkout-flow/internal/repository"
	cartmongo "github.com/fjod/go_cart/checkout-flow/internal/repository/mongo"
	"github.com/fjod/go_cart/checkout-flow/internal/validity"
	"github.com/fjod/go_cart/checkout-flow/pkg/logger"
	"github.com/fjod/go_cart/checkout-flow/pkg/metrics"
	"github.com/fjod/go_cart/checkout-flow/pkg/tracing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "checkout-flow"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(serviceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		zl.Fatal("Failed to init tracing", zap.Error(err))
	}

	// SQL store: addresses, catalog, coupons, orders, outbox
	repo, err := openRepository(cfg)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer repo.Close()
	if err := repo.RunMigrations(); err != nil {
		zl.Fatal("Failed to run migrations", zap.Error(err))
	}
	zl.Info("Database migrations completed", zap.String("driver", repo.Driver()))

	// Cart records
	var carts checkout.CartStore = repo
	if cfg.CartStore == "mongo" {
		db, err := cartmongo.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			zl.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() { _ = cartmongo.Disconnect(context.Background(), db) }()
		store := cartmongo.NewCartStore(db)
		if err := store.CreateIndexes(ctx); err != nil {
			zl.Fatal("Failed to create cart indexes", zap.Error(err))
		}
		carts = store
		zl.Info("Connected to MongoDB", zap.String("database", cfg.MongoDBName))
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Fatal("Redis connection failed", zap.Error(err))
		}
		carts = cache.NewStore(carts, cache.NewRedisCache(redisClient), zl)
		zl.Info("Redis cart cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	var locks checkout.Locker = lock.NewKeyedMutex()
	if cfg.LockBackend == "redis" {
		locks = lock.NewRedisLock(redisClient, cfg.LockTTL, zl)
	}

	stock := inventory.NewMemoryStore()
	defer stock.Close()
	if err := seedStock(ctx, repo, stock, cfg.InventoryDefaultStock); err != nil {
		zl.Fatal("Failed to seed stock", zap.Error(err))
	}

	m := metrics.NewServerMetrics(serviceName)
	calc := pricing.NewCalculator(repo, cfg.Currency)
	book := address.NewBook(repo)
	orderService := orders.NewService(repo, calc, zl)
	machine := checkout.NewMachine(carts, book, validity.NewChecker(repo, stock, calc), orderService, locks,
		checkout.WithLogger(zl),
		checkout.WithObserver(m))
	cartService := cart.NewService(carts, locks, repo, calc, zl)

	// HTTP
	router := checkouthttp.NewRouter(checkouthttp.RouterConfig{
		Checkout:     checkouthttp.NewCheckoutHandler(machine, book, calc, orderService, checkouthttp.NewCSRF([]byte(cfg.CSRFSecret)), cfg.RequestTimeout, zl),
		Cart:         checkouthttp.NewCartHandler(cartService, cfg.RequestTimeout, zl),
		Orders:       checkouthttp.NewOrdersHandler(orderService, cfg.RequestTimeout, zl),
		Health:       repo,
		Metrics:      m,
		JWTSecret:    []byte(cfg.JWTSecret),
		MaxBodyBytes: cfg.MaxBodyBytes,
		Log:          zl,
	})
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}
	go func() {
		zl.Info("HTTP server listening", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// gRPC
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		zl.Fatal("Failed to listen", zap.Error(err))
	}
	grpcServer := checkoutgrpc.NewServer(checkoutgrpc.NewCheckoutServiceServer(machine), zl)
	go func() {
		zl.Info("gRPC server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	// Kafka: publish placed orders, apply them to stock
	var poller *publisher.OutboxPoller
	var consumer *inventory.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		poller = publisher.NewOutboxPoller(repo, zl, publisher.Options{
			Topic:     cfg.KafkaTopic,
			EventTick: cfg.OutboxTick,
			Retention: cfg.OutboxRetention,
			Metrics:   m,
		}, cfg.KafkaBrokers...)
		go poller.Run(ctx)

		consumer = inventory.NewConsumer(stock, zl, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
		go consumer.Run(ctx)
		zl.Info("Kafka enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		zl.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	<-ctx.Done()
	zl.Info("Shutting down checkout service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	if poller != nil {
		if err := poller.Close(); err != nil {
			zl.Error("Failed to close outbox writer", zap.Error(err))
		}
	}
	if consumer != nil {
		consumer.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Error("Tracing shutdown failed", zap.Error(err))
	}
	zl.Info("Checkout service stopped")
}

func openRepository(cfg *config.Config) (*repository.Repository, error) {
	if cfg.DBDriver == repository.DriverPostgres {
		return repository.NewPostgres(&repository.Credentials{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
		})
	}
	return repository.NewSQLite(cfg.SQLitePath)
}

// seedStock gives every catalog product the same starting quantity.
func seedStock(ctx context.Context, repo *repository.Repository, stock *inventory.MemoryStore, qty int32) error {
	products, err := repo.GetAllProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		stock.SetStock(p.ID, qty)
	}
	return nil
}
