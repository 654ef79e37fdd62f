// Package api provides the HTTP API for the exposure scanner service.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/exposure-scanner/autoscan/internal/config"
	"github.com/exposure-scanner/autoscan/internal/history"
	"github.com/exposure-scanner/autoscan/internal/publisher"
	"github.com/exposure-scanner/autoscan/internal/scheduler"
	"github.com/exposure-scanner/autoscan/internal/threats"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	apiKeyHeader      = "X-Internal-API-Key"
	defaultListLimit  = 10
	eventStreamBuffer = 64
)

// History is the subset of the history store the API reads and writes.
type History interface {
	Ping(ctx context.Context) error
	SaveReport(ctx context.Context, report history.Report) error
	Report(ctx context.Context, id string) (history.Report, error)
	RecentCycles(ctx context.Context, n int) ([]history.CycleRecord, error)
}

// ReportPublisher announces generated threat reports and reports whether
// its broker is reachable.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report publisher.ReportGenerated)
	Ready() error
}

// Server represents the HTTP API server.
type Server struct {
	config    config.ServerConfig
	scheduler *scheduler.Scheduler
	generator *threats.Generator
	history   History
	reports   ReportPublisher
	logger    *zap.SugaredLogger
	router    *gin.Engine

	// Manual scans run detached from the request; Shutdown cancels and joins them.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Server.
type Option func(*Server)

// WithHistory enables report storage and cycle history routes.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithReportPublisher announces every stored threat report.
func WithReportPublisher(p ReportPublisher) Option {
	return func(s *Server) { s.reports = p }
}

// New creates a new API server.
func New(cfg config.ServerConfig, sched *scheduler.Scheduler, gen *threats.Generator, logger *zap.SugaredLogger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    cfg,
		scheduler: sched,
		generator: gen,
		logger:    logger,
		router:    gin.New(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// Router returns the gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Shutdown cancels background scans started through the API and waits for them.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.apiKeyMiddleware())
	{
		// Scheduler control
		v1.POST("/scan/start", s.startScanHandler)
		v1.POST("/scan/stop", s.stopScanHandler)
		v1.POST("/scan/trigger", s.triggerScanHandler)
		v1.GET("/scan/status", s.scanStatusHandler)
		v1.GET("/scan/results", s.scanResultsHandler)
		v1.GET("/sites", s.sitesHandler)
		v1.PATCH("/config", s.updateConfigHandler)
		v1.GET("/events", s.eventsHandler)

		// Threat simulation
		v1.POST("/threats/scan", s.threatScanHandler)
		v1.GET("/threats/reports/:id", s.reportHandler)

		v1.GET("/history/cycles", s.cyclesHandler)
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debugw("Request completed",
			"path", path,
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"latency", time.Since(start),
		)
	}
}

func (s *Server) apiKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.APIKey == "" || c.GetHeader(apiKeyHeader) == s.config.APIKey {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or missing API key",
		})
	}
}

// Health check handler
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "exposure-scanner",
	})
}

// Readiness check handler
func (s *Server) readyHandler(c *gin.Context) {
	if s.history != nil {
		if err := s.history.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	if s.reports != nil {
		if err := s.reports.Ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "exposure-scanner",
		"sites":   len(s.scheduler.Sites()),
	})
}

func (s *Server) startScanHandler(c *gin.Context) {
	if !s.scheduler.Config().Enabled {
		c.JSON(http.StatusConflict, gin.H{
			"error": "autonomous scanning is disabled",
		})
		return
	}
	if s.scheduler.IsRunning() {
		c.JSON(http.StatusOK, gin.H{
			"status":  "already_running",
			"message": "Autonomous scanning is already running",
		})
		return
	}

	s.scheduler.Start()
	c.JSON(http.StatusOK, gin.H{
		"status":  "started",
		"message": "Autonomous scanning started",
	})
}

func (s *Server) stopScanHandler(c *gin.Context) {
	s.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{
		"status":  "stopped",
		"message": "Autonomous scanning stopped",
	})
}

func (s *Server) triggerScanHandler(c *gin.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary, ran := s.scheduler.TriggerManualScan(s.ctx)
		if ran {
			s.logger.Infow("Manual scan finished",
				"cycle_id", summary.CycleID,
				"success", summary.SuccessCount,
				"errors", summary.ErrorCount,
			)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "triggered",
		"message": "Manual scan started",
	})
}

func (s *Server) scanStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.scheduler.Stats())
}

func (s *Server) scanResultsHandler(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	results := s.scheduler.RecentResults(limit)
	c.JSON(http.StatusOK, ResultsResponse{Results: results, Count: len(results)})
}

func (s *Server) sitesHandler(c *gin.Context) {
	list := s.scheduler.Sites()
	c.JSON(http.StatusOK, SitesResponse{Sites: list, Total: len(list)})
}

func (s *Server) updateConfigHandler(c *gin.Context) {
	var patch scheduler.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid config patch: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, s.scheduler.UpdateConfig(patch))
}

// eventsHandler streams scheduler events as server-sent events. A slow client
// loses events rather than holding up the scheduler.
func (s *Server) eventsHandler(c *gin.Context) {
	events := make(chan scheduler.Event, eventStreamBuffer)
	unsubscribe := s.scheduler.Subscribe(func(e scheduler.Event) {
		select {
		case events <- e:
		default:
			s.logger.Warnw("Dropping event for slow stream client", "type", e.Type())
		}
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("connected", gin.H{
		"totalSites": len(s.scheduler.Sites()),
		"isRunning":  s.scheduler.IsRunning(),
	})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e := <-events:
			c.SSEvent(string(e.Type()), e)
			return true
		}
	})
}

func (s *Server) threatScanHandler(c *gin.Context) {
	var user threats.UserData
	if err := c.ShouldBindJSON(&user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid user data: " + err.Error(),
		})
		return
	}

	found := s.generator.SimulateUserScan(user)
	if found == nil {
		found = []threats.Threat{}
	}
	resp := ThreatScanResponse{
		Threats:           found,
		Stats:             threats.CalculateScanStats(found),
		IsTrialSimulation: true,
	}

	if s.history != nil {
		report := history.Report{
			ID:        uuid.New().String(),
			User:      user,
			Threats:   found,
			Stats:     resp.Stats,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.history.SaveReport(c.Request.Context(), report); err != nil {
			s.logger.Warnw("Failed to store threat report", "error", err)
		} else {
			resp.ReportID = report.ID
			if s.reports != nil {
				s.reports.PublishReport(c.Request.Context(), publisher.ReportGenerated{
					ReportID:    report.ID,
					Stats:       report.Stats,
					GeneratedAt: report.CreatedAt,
				})
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) reportHandler(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	report, err := s.history.Report(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "report not found",
		})
		return
	}
	if err != nil {
		s.logger.Errorw("Failed to load threat report", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load report",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) cyclesHandler(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	cycles, err := s.history.RecentCycles(c.Request.Context(), limit)
	if err != nil {
		s.logger.Errorw("Failed to list cycles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list cycles",
		})
		return
	}

	c.JSON(http.StatusOK, CyclesResponse{Cycles: cycles, Count: len(cycles)})
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.history != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": "history is disabled",
	})
	return false
}

// queryLimit parses ?limit=, writing a 400 when it is not a positive integer.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be a positive integer",
		})
		return 0, false
	}
	return limit, true
}
