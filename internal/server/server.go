// Package server exposes the analyzer over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/explainee/internal/analyzer"
	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/metrics"
	"github.com/deusflow/explainee/internal/scraper"
)

// Submitter runs one analysis.
type Submitter interface {
	Submit(ctx context.Context, rawURL string) (*analyzer.Result, error)
}

type Server struct {
	engine *gin.Engine
	extra  map[string]func() map[string]interface{}
}

type analyzeRequest struct {
	URL string `json:"url" form:"url"`
}

func New(sub Submitter) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{engine: r, extra: make(map[string]func() map[string]interface{})}

	r.GET("/health", healthHandler)
	r.GET("/metrics", s.metricsHandler)

	analyze := analyzeHandler(sub)
	r.GET("/analyze", analyze)
	r.POST("/analyze", analyze)

	return s
}

// WithStats adds a section to the /metrics response.
func (s *Server) WithStats(name string, fn func() map[string]interface{}) *Server {
	s.extra[name] = fn
	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func healthHandler(c *gin.Context) {
	stats := metrics.Global.GetStats()

	status := "ok"
	code := http.StatusOK
	if healthy, _ := stats["is_healthy"].(bool); !healthy {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func (s *Server) metricsHandler(c *gin.Context) {
	stats := metrics.Global.GetStats()
	for name, fn := range s.extra {
		stats[name] = fn()
	}
	c.JSON(http.StatusOK, stats)
}

func analyzeHandler(sub Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analyzeRequest
		req.URL = c.Query("url")
		if req.URL == "" && c.Request.Method == http.MethodPost {
			if err := c.ShouldBind(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}
		req.URL = strings.TrimSpace(req.URL)
		if req.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}
		if u, err := url.Parse(req.URL); err != nil || !u.IsAbs() || u.Host == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url must be absolute"})
			return
		}

		res, err := sub.Submit(c.Request.Context(), req.URL)
		if err != nil {
			code, body := failureResponse(err)
			c.JSON(code, body)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// failureResponse maps an analysis failure to a status code and body.
func failureResponse(err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}

	var f *analyzer.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError, body
	}
	body["error"] = f.Message
	body["stage"] = f.Stage.String()
	if f.Err != nil {
		body["detail"] = f.Err.Error()
	}

	if f.Warning {
		body["warning"] = true
		return http.StatusUnprocessableEntity, body
	}

	var fe *scraper.FetchError
	if errors.As(err, &fe) {
		if fe.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, body
		}
		return http.StatusBadGateway, body
	}
	return http.StatusInternalServerError, body
}
