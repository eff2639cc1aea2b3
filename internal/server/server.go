// Package server exposes the brief over HTTP for the desktop shell.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"dailybrief/internal/model"
	"dailybrief/internal/store"
)

const (
	requestIDHeader = "X-Request-Id"
	shutdownTimeout = 10 * time.Second
)

// Service is the command surface served over HTTP.
type Service interface {
	RefreshBrief(ctx context.Context) (model.Brief, error)
	CachedBrief(ctx context.Context) (model.Brief, error)
	RefreshCalendar(ctx context.Context) ([]model.Event, error)
	CachedCalendar(ctx context.Context) ([]model.Event, error)
	RefreshGitHub(ctx context.Context) (model.GitHubBrief, error)
	CachedGitHub(ctx context.Context) (model.GitHubBrief, error)
	Status(ctx context.Context) ([]store.Meta, error)
	Clear(ctx context.Context) error
}

type Options struct {
	CORS     bool
	Gatherer prometheus.Gatherer
}

type Server struct {
	svc    Service
	engine *gin.Engine
}

func New(svc Service, opts Options) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	if opts.CORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", requestIDHeader}
		engine.Use(cors.New(corsConfig))
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{svc: svc, engine: engine}
	s.routes(opts.Gatherer)
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	{
		api.GET("/brief", respond(s.svc.CachedBrief))
		api.POST("/brief/refresh", respond(s.svc.RefreshBrief))
		api.GET("/calendar", respond(s.svc.CachedCalendar))
		api.POST("/calendar/refresh", respond(s.svc.RefreshCalendar))
		api.GET("/github", respond(s.svc.CachedGitHub))
		api.POST("/github/refresh", respond(s.svc.RefreshGitHub))
		api.GET("/status", respond(s.svc.Status))
		api.DELETE("/cache", s.clear)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "error serving http")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "error shutting down http server")
	}
	log.Info().Msg("http server stopped")
	return nil
}

func (s *Server) clear(c *gin.Context) {
	if err := s.svc.Clear(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respond adapts a service call to a JSON handler. Any returned error is a
// storage or malformed-document fault and maps to 500.
func respond[T any](fn func(ctx context.Context) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := fn(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func fail(c *gin.Context, err error) {
	log.Err(err).
		Str("path", c.FullPath()).
		Str("request_id", c.GetString(requestIDHeader)).
		Bool("storage", store.IsStorage(err)).
		Msg("request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)

		c.Next()

		log.Debug().
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(started)).
			Msg("http request")
	}
}
