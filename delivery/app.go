package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/logger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/web"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/discovery"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/discovery/consul"
)

type App struct {
	registry     discovery.Registry
	httpServer   *http.Server
	registration *discovery.ServiceRegistration
	handler      *handler
	dispatcher   *broker.Dispatcher
	scheduler    *Scheduler
	config       Config
	logger       *slog.Logger
	httpMetrics  *metrics.HTTPMetrics
}

type Config struct {
	ServiceName    string
	InstanceID     string
	HTTPAddr       string
	ConsulAddr     string
	PostgresURL    string
	GeocoderURL    string
	RedisAddr      string
	RealtimePrefix string
	RouteCron      string
	AvgSpeedKph    float64
	StopMinutes    int
	RequestTimeout int
	ConnectTimeout int
	RabbitMQUser   string
	RabbitMQPass   string
	RabbitMQHost   string
	RabbitMQPort   string
	Prefetch       int
}

func NewApp(config Config, h *handler, dispatcher *broker.Dispatcher, scheduler *Scheduler, registry discovery.Registry) *App {
	return &App{
		registry:    registry,
		handler:     h,
		dispatcher:  dispatcher,
		scheduler:   scheduler,
		config:      config,
		logger:      logger.NewLogger(config.ServiceName),
		httpMetrics: metrics.NewHTTPMetrics(config.ServiceName),
	}
}

func (a *App) Start(ctx context.Context) error {
	if a.registry != nil {
		registration, err := discovery.RegisterService(
			ctx, a.registry, a.config.InstanceID, a.config.ServiceName,
			a.config.HTTPAddr, a.logger,
		)
		if err != nil {
			return err
		}
		a.registration = registration
	}

	go func() {
		if err := a.dispatcher.Run(ctx); err != nil {
			a.logger.Error("event dispatcher stopped", slog.Any("error", err))
		}
	}()

	a.scheduler.Start()

	mux := http.NewServeMux()
	a.handler.registerRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpServer = &http.Server{
		Addr:    a.config.HTTPAddr,
		Handler: web.MetricsMiddleware(mux, a.httpMetrics),
	}

	a.logger.Info("starting http server", slog.String("addr", a.config.HTTPAddr))
	return a.httpServer.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down gracefully")

	a.scheduler.Stop()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", slog.Any("error", err))
		}
	}

	if a.registration != nil {
		return a.registration.Deregister(ctx)
	}
	return nil
}

func createRegistry(addr string, log *slog.Logger) (discovery.Registry, error) {
	if addr == "" {
		log.Info("consul address not provided, service discovery disabled")
		return nil, nil
	}
	return consul.NewRegistry(addr)
}
