package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"letterpod/internal/logging"
	"letterpod/internal/services"
	"letterpod/internal/workflow"
)

const requestIDHeader = "X-Request-ID"

// Runner is the orchestrator surface the API drives.
type Runner interface {
	Busy() bool
	Run(ctx context.Context, trigger string) (workflow.RunSummary, error)
	Status(ctx context.Context) workflow.StatusSummary
	LastRun() (workflow.RunSummary, bool)
}

// Options configures the router.
type Options struct {
	// Token enables bearer authentication on /api routes when set.
	Token string
	// BaseContext parents triggered runs so they outlive the request and
	// stop with the daemon.
	BaseContext context.Context
	// NextRun reports the next scheduled run, if any.
	NextRun func() time.Time
}

type handlers struct {
	runner Runner
	opts   Options
	logger *slog.Logger
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(runner Runner, opts Options, logger *slog.Logger) *gin.Engine {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	h := &handlers{runner: runner, opts: opts, logger: logging.NewComponentLogger(logger, "api")}

	r := gin.New()
	r.Use(gin.Recovery(), requestID())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", bearerAuth(opts.Token))
	api.POST("/runs", h.triggerRun)
	api.GET("/runs/last", h.lastRun)
	api.GET("/status", h.status)
	return r
}

func (h *handlers) triggerRun(c *gin.Context) {
	reqID, _ := services.RequestIDFromContext(c.Request.Context())
	if h.runner.Busy() {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "a run is already in progress"})
		return
	}

	ctx := services.WithRequestID(h.opts.BaseContext, reqID)
	logger := logging.WithContext(ctx, h.logger)
	logger.Info("run requested", logging.String(logging.FieldEventType, "run_requested"))
	go func() {
		if _, err := h.runner.Run(ctx, "api"); err != nil {
			logger.Info("requested run ended with error",
				logging.String(logging.FieldEventType, "run_request_failed"),
				logging.Error(err),
			)
		}
	}()
	c.JSON(http.StatusAccepted, RunAccepted{Status: "started", RequestID: reqID})
}

func (h *handlers) lastRun(c *gin.Context) {
	summary, ok := h.runner.LastRun()
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no run has finished yet"})
		return
	}
	c.JSON(http.StatusOK, FromRunSummary(summary))
}

func (h *handlers) status(c *gin.Context) {
	var next time.Time
	if h.opts.NextRun != nil {
		next = h.opts.NextRun()
	}
	c.JSON(http.StatusOK, FromStatusSummary(h.runner.Status(c.Request.Context()), next))
}

// requestID tags each request with a correlation id, reusing the caller's
// X-Request-ID when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// bearerAuth validates bearer tokens. An empty token disables the check.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		presented, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

// Server serves a handler on a TCP address.
type Server struct {
	bind     string
	logger   *slog.Logger
	server   *http.Server
	listener net.Listener
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(bind string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start listens and serves in the background until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
