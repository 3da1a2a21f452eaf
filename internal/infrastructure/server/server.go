package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpHandlers "github.com/taskmaster/kanban/internal/adapters/http"
	"github.com/taskmaster/kanban/internal/application/services"
	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/infrastructure/cache"
	"github.com/taskmaster/kanban/internal/infrastructure/config"
	"github.com/taskmaster/kanban/internal/infrastructure/database"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
	"github.com/taskmaster/kanban/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	deps   Dependencies
}

// Dependencies are the services and backing connections the server exposes.
// DB and Redis are nil unless the matching storage driver is in use.
type Dependencies struct {
	Tasks   *services.TaskService
	Archive *services.ArchiveService
	DB      *database.DB
	Redis   *redis.Client
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return services.ValidateStruct(cv.validator, i)
}

// New creates a new server instance
func New(cfg *config.Config, deps Dependencies, appLogger *logger.Logger) (*Server, error) {
	if deps.Tasks == nil || deps.Archive == nil {
		return nil, errors.New("server requires task and archive services")
	}

	e := echo.New()
	e.Validator = &CustomValidator{validator: services.NewValidator()}
	e.Debug = cfg.App.Debug || cfg.App.IsDevelopment()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	s := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger.WithComponent("server"),
		deps:   deps,
	}

	s.setupMiddleware()
	if cfg.Metrics.Enabled {
		s.setupMetrics()
	}
	s.setupRoutes(
		httpHandlers.NewTaskHandler(deps.Tasks, appLogger),
		httpHandlers.NewArchiveHandler(deps.Archive, appLogger),
	)

	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupRoutes(taskHandler *httpHandlers.TaskHandler, archiveHandler *httpHandlers.ArchiveHandler) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	v1 := s.echo.Group("/api/v1")
	taskHandler.Register(v1)
	archiveHandler.Register(v1)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(requestsTotal, requestDuration)

	for _, status := range entities.Statuses {
		status := status
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "kanban_board_tasks",
				Help:        "Active tasks per board column",
				ConstLabels: prometheus.Labels{"status": string(status)},
			},
			func() float64 {
				counts := s.deps.Tasks.Board(context.Background(), ports.TaskQuery{}).Counts()
				return float64(counts[status])
			},
		))
	}

	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "kanban_archived_tasks",
			Help: "Tasks in the archive",
		},
		func() float64 {
			archived, err := s.deps.Archive.ListArchived(context.Background())
			if err != nil {
				return 0
			}
			return float64(len(archived))
		},
	))

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	})

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	status := "ok"
	checks := map[string]interface{}{
		"storage": map[string]interface{}{"driver": s.config.Storage.Driver},
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(ctx); err != nil {
			status = "error"
			checks["database"] = map[string]interface{}{"status": "error", "error": err.Error()}
		} else {
			checks["database"] = map[string]interface{}{"status": "ok", "stats": s.deps.DB.GetConnectionInfo()}
		}
	}

	if s.deps.Redis != nil {
		if err := cache.HealthCheck(ctx, s.deps.Redis); err != nil {
			status = "error"
			checks["redis"] = map[string]interface{}{"status": "error", "error": err.Error()}
		} else {
			checks["redis"] = map[string]interface{}{"status": "ok"}
		}
	}

	counts := s.deps.Tasks.Board(ctx, ports.TaskQuery{}).Counts()
	checks["board"] = counts

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	ctx := c.Request().Context()

	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "database_not_ready",
			})
		}
	}
	if s.deps.Redis != nil {
		if err := cache.HealthCheck(ctx, s.deps.Redis); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "redis_not_ready",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)

	srv := &http.Server{
		Addr:         address,
		Handler:      s.echo,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = he.Message
			if s, ok := he.Message.(string); ok {
				msg = ports.ErrorResponse{Message: s}
			}
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else {
			code = httpHandlers.StatusFor(err)
			if code == http.StatusInternalServerError {
				msg = ports.ErrorResponse{Message: http.StatusText(code)}
			} else {
				msg = ports.ErrorResponse{Message: err.Error()}
			}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
