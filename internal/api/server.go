// Package api exposes the agent over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"
	recordanswer "finqa-agent/internal/workers/data-access/record-answer"
	formatresponse "finqa-agent/internal/workers/infrastructure/format-response"
)

// Answerer is satisfied by *orchestrator.Agent.
type Answerer interface {
	Answer(ctx context.Context, question string, hints *models.Hints) (*models.SynthesizedAnswer, error)
}

// HistoryReader is satisfied by *recordanswer.Recorder.
type HistoryReader interface {
	History(ctx context.Context, limit int) ([]recordanswer.AuditEntry, error)
}

// Check reports whether a dependency can serve traffic.
type Check func(ctx context.Context) error

type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	ReadyTimeout    time.Duration
}

type Server struct {
	config    Config
	answerer  Answerer
	history   HistoryReader
	formatter *formatresponse.Formatter
	checks    map[string]Check
	logger    logger.Logger
	engine    *gin.Engine
}

// NewServer wires the routes. history may be nil, in which case
// /v1/history answers 503.
func NewServer(
	config Config,
	answerer Answerer,
	history HistoryReader,
	formatter *formatresponse.Formatter,
	checks map[string]Check,
	log logger.Logger,
) *Server {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = 2 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 15 * time.Second
	}
	s := &Server{
		config:    config,
		answerer:  answerer,
		history:   history,
		formatter: formatter,
		checks:    checks,
		logger:    log.With(map[string]interface{}{"component": "api"}),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/health", s.health)
	engine.GET("/ready", s.ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.POST("/answer", s.answer)
	v1.GET("/history", s.listHistory)

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", map[string]interface{}{"address": s.config.Address})
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down", nil)
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}
}
