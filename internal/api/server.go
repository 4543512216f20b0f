// Package api exposes the reminder engine over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"remindbot/internal/task"
)

// Server is the HTTP front of the engine.
type Server struct {
	svc   *task.Service
	log   *slog.Logger
	http  *http.Server
	token string
}

// Options configures the server.
type Options struct {
	Addr string
	// Token, when set, is required as "Authorization: Bearer <token>" on
	// every /api route.
	Token string
	// ReleaseMode silences gin's debug output.
	ReleaseMode     bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// NewServer builds the HTTP server and its routes.
func NewServer(svc *task.Service, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if opts.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{svc: svc, log: log, token: opts.Token}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	router.GET("/healthz", s.healthz)

	apiGroup := router.Group("/api", s.auth())
	{
		apiGroup.POST("/tasks", s.createTask)
		apiGroup.GET("/tasks", s.listTasks)
		apiGroup.GET("/tasks/:id", s.getTask)
		apiGroup.PUT("/tasks/:id", s.updateTask)
		apiGroup.DELETE("/tasks/:id", s.cancelTask)
		apiGroup.POST("/tasks/:id/snooze", s.snoozeTask)
		apiGroup.POST("/tasks/snooze", s.snoozeAll)
	}

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler exposes the route tree, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLog logs each request with duration and status.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"dur", time.Since(start),
		)
	}
}

// auth enforces the bearer token when one is configured.
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		const prefix = "Bearer "
		h := c.GetHeader("Authorization")
		if len(h) <= len(prefix) || h[:len(prefix)] != prefix || h[len(prefix):] != s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
