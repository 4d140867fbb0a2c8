package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/config"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/httpclient"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/logger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/realtime"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/tracing"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/discovery"
)

func main() {
	cfg := Config{
		ServiceName:     config.GetEnv("SERVICE_NAME", "orders"),
		InstanceID:      config.GetEnv("INSTANCE_ID", "orders-1"),
		HTTPAddr:        config.GetEnv("HTTP_ADDR", "localhost:8081"),
		ConsulAddr:      config.GetEnv("CONSUL_ADDR", ""),
		MongoURL:        config.GetEnv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDatabase:   config.GetEnv("MONGO_DATABASE", "orders"),
		ClientsURL:      config.GetEnv("CLIENTS_URL", "http://localhost:8083"),
		SellersURL:      config.GetEnv("SELLERS_URL", "http://localhost:8085"),
		InventoryURL:    config.GetEnv("INVENTORY_URL", "http://localhost:8084"),
		RedisAddr:       config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RealtimePrefix:  config.GetEnv("REALTIME_ENV_PREFIX", "dev"),
		RequestTimeout:  config.GetEnvInt("DOWNSTREAM_TIMEOUT_MS", 5000),
		ConnectTimeout:  config.GetEnvInt("CONNECT_TIMEOUT_MS", 2000),
		RabbitMQUser:    config.GetEnv("RABBITMQ_USER", "guest"),
		RabbitMQPass:    config.GetEnv("RABBITMQ_PASS", "guest"),
		RabbitMQHost:    config.GetEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort:    config.GetEnv("RABBITMQ_PORT", "5672"),
		MaxIdleConns:    config.GetEnvInt("HTTP_MAX_IDLE_CONNS", 32),
		MaxConnsPerHost: config.GetEnvInt("HTTP_MAX_CONNS", 64),
	}

	log := logger.NewLogger(cfg.ServiceName)
	log.Info("starting service",
		slog.String("instance_id", cfg.InstanceID),
		slog.String("http_addr", cfg.HTTPAddr),
	)

	shutdown, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		log.Error("failed to initialize tracer", slog.Any("error", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoCtx, mongoCancel := context.WithTimeout(ctx, 10*time.Second)
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURL))
	mongoCancel()
	if err != nil {
		log.Error("failed to connect to mongodb", slog.Any("error", err))
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())
	store := NewMongoStore(mongoClient, cfg.MongoDatabase)

	ch, closeBroker, err := broker.Connect(
		cfg.RabbitMQUser, cfg.RabbitMQPass, cfg.RabbitMQHost, cfg.RabbitMQPort,
	)
	if err != nil {
		log.Error("failed to connect to rabbitmq", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeBroker()
	publisher := broker.NewPublisher(ch, cfg.ServiceName, log)

	registry, err := createRegistry(cfg.ConsulAddr, log)
	if err != nil {
		log.Error("failed to create consul registry", slog.Any("error", err))
		os.Exit(1)
	}

	transport := httpclient.NewTransport(httpclient.TransportConfig{
		ConnectTimeout: time.Duration(cfg.ConnectTimeout) * time.Millisecond,
		MaxIdleConns:   cfg.MaxIdleConns,
		MaxConns:       cfg.MaxConnsPerHost,
	})
	timeout := time.Duration(cfg.RequestTimeout) * time.Millisecond

	customers := NewCustomersClient(httpclient.New("clients",
		resolveURL(ctx, "clients", cfg.ClientsURL, registry, log), timeout, transport))
	sellers := NewSellersClient(httpclient.New("sellers",
		resolveURL(ctx, "sellers", cfg.SellersURL, registry, log), timeout, transport))
	inventories := NewInventoryClient(httpclient.New("inventory",
		resolveURL(ctx, "inventory", cfg.InventoryURL, registry, log), timeout, transport))

	notifier := realtime.NewNotifier(
		redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
		cfg.RealtimePrefix, log)

	service := NewService(store, customers, sellers, inventories, publisher,
		notifier, log, metrics.NewBusinessMetrics(cfg.ServiceName))

	app := NewApp(cfg, service, store, registry)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("received shutdown signal")
		if err := app.Shutdown(ctx); err != nil {
			log.Error("error during shutdown", slog.Any("error", err))
		}
		cancel()
	}()

	if err := app.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to start app", slog.Any("error", err))
		os.Exit(1)
	}
}

func resolveURL(ctx context.Context, service, fallback string, registry discovery.Registry, log *slog.Logger) string {
	url, err := discovery.ServiceBaseURL(ctx, service, fallback, registry)
	if err != nil {
		log.Warn("service discovery failed, using configured URL",
			slog.String("service", service),
			slog.Any("error", err),
		)
		return fallback
	}
	return url
}
