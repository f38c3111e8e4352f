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
	"time"

	c "github.com/fjod/cart-manager/internal/cache"
	"github.com/fjod/cart-manager/internal/catalog"
	"github.com/fjod/cart-manager/internal/config"
	cartgrpc "github.com/fjod/cart-manager/internal/grpc"
	h "github.com/fjod/cart-manager/internal/http"
	"github.com/fjod/cart-manager/internal/logger"
	"github.com/fjod/cart-manager/internal/poller"
	"github.com/fjod/cart-manager/internal/repository"
	s "github.com/fjod/cart-manager/internal/service"
	"github.com/fjod/cart-manager/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "cart-manager"

func main() {
	cfg := config.Load()

	zl, err := logger.New(logger.Options{
		Service:     serviceName,
		Env:         cfg.AppEnv,
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		zl.Fatal("failed to init tracer provider", zap.Error(err))
	}

	// Product catalog
	products, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		zl.Fatal("failed to open catalog", zap.Error(err))
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.MigrationsPath); err != nil {
		zl.Fatal("failed to run catalog migrations", zap.Error(err))
	}
	zl.Info("catalog ready", zap.String("driver", cfg.CatalogDriver))

	// Cart store
	repo, closeRepo, err := openCartStore(ctx, cfg)
	if err != nil {
		zl.Fatal("failed to open cart store", zap.Error(err))
	}
	defer closeRepo()
	zl.Info("cart store ready", zap.String("store", cfg.CartStore))

	health := map[string]cartgrpc.Pinger{
		"catalog": products,
		"store":   repo,
	}

	// Cart cache
	var cache c.CartCache = c.NopCache{}
	if cfg.CacheEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Fatal("redis connection failed", zap.Error(err))
		}
		redisCache := c.NewRedisCache(redisClient, cfg.CacheTTL)
		cache = redisCache
		health["cache"] = redisCache
		zl.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	}

	service := s.NewCartService(products, repo, cache, zl.Named("cart"))

	// Checkout consumer
	pollerDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(service, poller.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaCheckoutTopic,
			GroupID: cfg.KafkaGroupID,
		}, zl.Named("poller"))
		go func() {
			defer close(pollerDone)
			defer p.Close()
			p.Run(ctx)
		}()
		zl.Info("checkout poller started", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		close(pollerDone)
	}

	// HTTP
	router := h.NewRouter(h.NewCartHandler(service, cfg.RequestTimeout), h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, zl.Named("http"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      otelhttp.NewHandler(router, "cart-manager-http"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("http server starting", zap.Int("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server error", zap.Error(err))
		}
	}()

	// gRPC health
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		zl.Fatal("failed to listen", zap.Error(err))
	}
	grpcServer := cartgrpc.NewServer(cartgrpc.NewHealthCheckService(health, zl.Named("health")))

	go func() {
		zl.Info("grpc health server listening", zap.Int("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Fatal("grpc server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	zl.Info("shutting down cart manager...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	<-pollerDone
	if err := tp.Shutdown(shutdownCtx); err != nil {
		zl.Error("tracer provider shutdown failed", zap.Error(err))
	}

	zl.Info("cart manager stopped")
}

func openCartStore(ctx context.Context, cfg config.Config) (repository.CartRepository, func(), error) {
	switch cfg.CartStore {
	case "memory":
		return repository.NewMemoryRepository(), func() {}, nil
	case "mongo":
		mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoRepository(mongoDB)
		if err := repo.CreateIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		closeFn := func() {
			if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
				zap.L().Warn("mongo disconnect failed", zap.Error(err))
			}
		}
		return repo, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown cart store %q", cfg.CartStore)
	}
}
