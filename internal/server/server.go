// Package server exposes the analysis over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/correlate-cli/internal/analysis"
	"github.com/KaramelBytes/correlate-cli/internal/metrics"
)

// Options configures a Server.
type Options struct {
	// Analyzer runs each request. Its Metrics field is filled from Metrics when nil.
	Analyzer *analysis.Analyzer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// MaxUploadMB bounds the multipart body. 0 means 32.
	MaxUploadMB int
	// Timeout bounds one analysis including model calls. 0 means no limit.
	Timeout time.Duration
}

// Server owns the gin engine.
type Server struct {
	engine   *gin.Engine
	analyzer *analysis.Analyzer
	metrics  *metrics.Metrics
	log      *slog.Logger
	maxBytes int64
	timeout  time.Duration
}

// New builds the router.
func New(opt Options) *Server {
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}
	mb := opt.MaxUploadMB
	if mb <= 0 {
		mb = 32
	}
	a := opt.Analyzer
	if a == nil {
		a = &analysis.Analyzer{}
	}
	if a.Metrics == nil {
		a.Metrics = opt.Metrics
	}
	if a.Logger == nil {
		a.Logger = log
	}
	s := &Server{
		analyzer: a,
		metrics:  opt.Metrics,
		log:      log.With("component", "server"),
		maxBytes: int64(mb) << 20,
		timeout:  opt.Timeout,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	r.MaxMultipartMemory = s.maxBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/columns", s.handleColumns)
	}
	s.engine = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// observe records a metric and a log line per request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		d := time.Since(start)
		s.metrics.HTTPRequest(route, status, d)
		s.log.Debug("request", "method", c.Request.Method, "route", route, "status", status, "duration", d)
	}
}
