package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/config"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/httpclient"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/logger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/tracing"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/discovery"
)

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	cfg := Config{
		ServiceName:    config.GetEnv("SERVICE_NAME", "gateway"),
		InstanceID:     config.GetEnv("INSTANCE_ID", "gateway-1"),
		HTTPAddr:       config.GetEnv("HTTP_ADDR", "localhost:8080"),
		ConsulAddr:     config.GetEnv("CONSUL_ADDR", ""),
		ClientsURL:     config.GetEnv("CLIENTS_URL", "http://localhost:8083"),
		SellersURL:     config.GetEnv("SELLERS_URL", "http://localhost:8085"),
		OrdersURL:      config.GetEnv("ORDERS_URL", "http://localhost:8084"),
		DeliveryURL:    config.GetEnv("DELIVERY_URL", "http://localhost:8086"),
		AllowedOrigins: strings.Split(config.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		RequestTimeout: config.GetEnvInt("DOWNSTREAM_TIMEOUT_MS", 5000),
		ConnectTimeout: config.GetEnvInt("CONNECT_TIMEOUT_MS", 2000),
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

	registry, err := createRegistry(cfg.ConsulAddr, log)
	if err != nil {
		log.Error("failed to create consul registry", slog.Any("error", err))
		os.Exit(1)
	}

	transport := httpclient.NewTransport(httpclient.TransportConfig{
		ConnectTimeout: time.Duration(cfg.ConnectTimeout) * time.Millisecond,
		MaxIdleConns:   64,
		MaxConns:       128,
	})
	timeout := time.Duration(cfg.RequestTimeout) * time.Millisecond

	newClient := func(service, fallback string) *httpclient.Client {
		base, err := discovery.ServiceBaseURL(ctx, service, fallback, registry)
		if err != nil {
			log.Warn("service discovery failed, using configured URL",
				slog.String("service", service),
				slog.Any("error", err),
			)
			base = fallback
		}
		return httpclient.New(service, base, timeout, transport)
	}

	downstream := &Downstream{
		Clients:  newClient("clients", cfg.ClientsURL),
		Sellers:  newClient("sellers", cfg.SellersURL),
		Orders:   newClient("orders", cfg.OrdersURL),
		Delivery: newClient("delivery", cfg.DeliveryURL),
	}

	app := NewApp(cfg, downstream, registry)

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
