package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/scan-console/internal/application"
	"github.com/wms-platform/scan-console/internal/config"
	"github.com/wms-platform/scan-console/internal/infrastructure/wmsclient"
	"github.com/wms-platform/scan-console/pkg/contracts"
	"github.com/wms-platform/scan-console/pkg/logging"
	"github.com/wms-platform/scan-console/pkg/metrics"
	"github.com/wms-platform/scan-console/pkg/middleware"
	"github.com/wms-platform/scan-console/pkg/resilience"
	"github.com/wms-platform/scan-console/pkg/tracing"
)

const serviceName = "scan-console"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting scan-console API", "backend", cfg.Backend.BaseURL)

	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	tracingConfig.Environment = cfg.Environment
	tracingConfig.Enabled = cfg.Tracing.Enabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing - don't exit
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "enabled", tracingConfig.Enabled, "endpoint", tracingConfig.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))
	logger.Info("Metrics initialized")

	// WMS backend client behind a circuit breaker
	breaker := resilience.NewCircuitBreaker(wmsclient.BreakerConfig(), logger.Logger)
	client := wmsclient.New(wmsclient.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Retry:   wmsclient.DefaultRetryConfig(),
	}, breaker, logger, m)
	m.SetCircuitBreakerState(breaker.Name(), int(breaker.State()))

	service := application.NewScanConsoleService(client, client, client, application.Options{
		DefaultWarehouseID: cfg.Probe.DefaultWarehouseID,
		DeviceID:           cfg.Probe.DeviceID,
	}, logger, m)

	router := newRouter(service, client, logger, m)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// newRouter wires middleware and routes
func newRouter(service *application.ScanConsoleService, client *wmsclient.Client, logger *logging.Logger, m *metrics.Metrics) *gin.Engine {
	router := gin.New()

	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(serviceName)))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, client.Ready))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	scan := router.Group("/api/v1/scan")
	{
		scan.POST("/decode", decodeHandler(service, logger))
		scan.POST("/probe", probeHandler(service, logger))
	}

	tasks := router.Group("/api/v1/pick-tasks")
	{
		tasks.GET("/:taskId/diff", getDiffHandler(service, logger))
		tasks.GET("/:taskId/confirmation-code", getConfirmationCodeHandler(service, logger))
		tasks.POST("/:taskId/scan", submitScanHandler(service, logger))
		tasks.POST("/:taskId/commit", commitHandler(service, logger))
	}

	router.GET("/api/v1/backend/circuit", func(c *gin.Context) {
		c.JSON(http.StatusOK, client.BreakerStatus())
	})
	router.GET("/api/v1/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", contracts.OpenAPIDocument())
	})

	return router
}
