package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

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
	downstream   *Downstream
	config       Config
	logger       *slog.Logger
	httpMetrics  *metrics.HTTPMetrics
}

type Config struct {
	ServiceName    string
	InstanceID     string
	HTTPAddr       string
	ConsulAddr     string
	ClientsURL     string
	SellersURL     string
	OrdersURL      string
	DeliveryURL    string
	AllowedOrigins []string
	RequestTimeout int
	ConnectTimeout int
}

func NewApp(config Config, downstream *Downstream, registry discovery.Registry) *App {
	return &App{
		registry:    registry,
		downstream:  downstream,
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

	mux := http.NewServeMux()
	(&clientHandler{downstream: a.downstream, logger: a.logger}).registerRoutes(mux)
	(&sellerHandler{downstream: a.downstream, logger: a.logger}).registerRoutes(mux)
	(&webHandler{downstream: a.downstream, logger: a.logger}).registerRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: a.config.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Auth-Subject", "X-Auth-Role"},
		MaxAge:         3600,
	})

	a.httpServer = &http.Server{
		Addr:    a.config.HTTPAddr,
		Handler: corsHandler.Handler(web.MetricsMiddleware(mux, a.httpMetrics)),
	}

	a.logger.Info("starting http server", slog.String("addr", a.config.HTTPAddr))
	return a.httpServer.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down gracefully")

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
