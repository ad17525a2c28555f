package web

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/health"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/scanner"
	"github.com/vzahanych/barcode-scanner/internal/service"
	"github.com/vzahanych/barcode-scanner/internal/telemetry"
)

// Scanner is the part of the scanner controller exposed over HTTP
type Scanner interface {
	Activate(onDetect func(barcode string), onError func(kind scanner.ErrorKind)) (string, error)
	Deactivate()
	ToggleTorch(ctx context.Context) (bool, error)
	Snapshot() scanner.Status
	LastResult() (scanner.Result, bool)
	Preview() (image.Image, bool)
}

// HealthReporter runs the health checks served on /health
type HealthReporter interface {
	Check(ctx context.Context) health.Report
}

// TelemetrySource samples process and scanner metrics
type TelemetrySource interface {
	Collect(ctx context.Context) (*telemetry.Metrics, error)
}

// ConfigService gives read and reload access to the running configuration
type ConfigService interface {
	Get() *config.Config
	Reload(ctx context.Context) error
}

// Server represents the web server service
type Server struct {
	*service.ServiceBase
	config      *config.WebConfig
	logger      *logger.Logger
	httpServer  *http.Server
	router      *gin.Engine
	scanner     Scanner        // Optional scanner controller
	health      HealthReporter // Optional health manager
	configSvc   ConfigService  // Optional config service for configuration API
	telemetry   TelemetrySource
	version     string
	startTime   time.Time

	previewQuality  int
	previewMaxWidth int
	previewInterval time.Duration
	routesOnce      sync.Once
}

// NewServer creates a new web server
func NewServer(cfg *config.WebConfig, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	quality := cfg.PreviewQuality
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	return &Server{
		ServiceBase:     service.NewServiceBase("web-server", log),
		config:          cfg,
		logger:          log,
		router:          router,
		version:         "dev",
		startTime:       time.Now(),
		previewQuality:  quality,
		previewMaxWidth: cfg.PreviewMaxWidth,
		previewInterval: 100 * time.Millisecond,
	}
}

// SetVersion sets the version reported by /api/status
func (s *Server) SetVersion(version string) {
	s.version = version
}

// SetScanner attaches the scanner controller
func (s *Server) SetScanner(sc Scanner) {
	s.scanner = sc
}

// SetHealthReporter attaches the health manager
func (s *Server) SetHealthReporter(h HealthReporter) {
	s.health = h
}

// SetTelemetryDependency attaches the telemetry collector
func (s *Server) SetTelemetryDependency(collector TelemetrySource) {
	s.telemetry = collector
}

// SetConfigDependency attaches the config service
func (s *Server) SetConfigDependency(configSvc ConfigService) {
	s.configSvc = configSvc
}

// Start starts the web server
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.LogInfo("Web server is disabled")
		return nil
	}

	s.GetStatus().SetStatus(service.StatusStarting)

	// WriteTimeout stays disabled: the event and preview streams are long lived
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		s.LogInfo("Starting web server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.GetStatus().SetError(err)
			s.LogError("Web server error", err, "address", addr)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.GetStatus().SetStatus(service.StatusRunning)
		s.LogInfo("Web server started", "address", addr)
		return nil
	}
}

// Stop stops the web server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.LogInfo("Stopping web server")
	s.GetStatus().SetStatus(service.StatusStopping)
	err := s.httpServer.Shutdown(ctx)
	s.GetStatus().SetStatus(service.StatusStopped)
	return err
}

// Handler returns the routed gin engine
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.setupRoutes)
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/health/live", s.handleLiveness)
	s.router.GET("/health/ready", s.handleReadiness)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/telemetry", s.handleTelemetry)

		scan := api.Group("/scan")
		{
			scan.POST("/activate", s.handleActivate)
			scan.POST("/deactivate", s.handleDeactivate)
			scan.GET("/status", s.handleScanStatus)
			scan.POST("/torch", s.handleToggleTorch)
			scan.GET("/result", s.handleLastResult)
			scan.GET("/events", s.handleEvents)
			scan.GET("/ws", s.handleSocket)
			scan.GET("/preview.jpg", s.handlePreviewFrame)
			scan.GET("/preview", s.handlePreviewStream)
		}

		cfg := api.Group("/config")
		{
			cfg.GET("", s.handleGetConfig)
			cfg.POST("/reload", s.handleReloadConfig)
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// ginLogger logs every request at debug level through the service logger
func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
