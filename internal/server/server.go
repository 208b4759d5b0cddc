package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/appforge/internal/notify"
	"github.com/randalmurphal/appforge/internal/orchestrator"
	"github.com/randalmurphal/appforge/internal/runner"
	"github.com/randalmurphal/appforge/internal/store"
	"github.com/randalmurphal/appforge/pkg/sequence/checkpoint"
)

type (
	// Service is the orchestration surface the HTTP API drives
	Service interface {
		Trigger(context.Context, orchestrator.TriggerRequest) (orchestrator.Ack, error)
		Resume(ctx context.Context, runID string) (orchestrator.Ack, error)
		Query(ctx context.Context, flowID string) (orchestrator.Project, error)
		History(ctx context.Context, flowID string) ([]store.LogEntry, error)
		Run(runID string) (runner.Info, bool)
		Interrupted(ctx context.Context) ([]checkpoint.Info, error)
		ActiveRuns() int
	}

	// Server implements the HTTP API
	Server struct {
		service Service
		hub     *notify.Hub
		logger  *slog.Logger
		sockets map[*Client]struct{}
		mu      sync.Mutex
	}

	// ErrorResponse is the body of every failed request
	ErrorResponse struct {
		Detail string `json:"detail"`
		Status int    `json:"status"`
	}
)

var (
	ErrInvalidJSON   = errors.New("invalid JSON")
	ErrGetProject    = errors.New("failed to retrieve project")
	ErrGetHistory    = errors.New("failed to retrieve step history")
	ErrStartRun      = errors.New("failed to start run")
	ErrRunNotTracked = errors.New("run not found")
)

// NewServer creates an API server over svc, streaming notifications from hub
func NewServer(svc Service, hub *notify.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: svc,
		hub:     hub,
		logger:  logger,
		sockets: map[*Client]struct{}{},
	}
}

// SetupRoutes configures and returns the HTTP router with all endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(_ *gin.Context, _ *slog.Logger) *slog.Logger {
			return s.logger
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	agent := router.Group("/agent")
	{
		agent.POST("/run", s.startRun)
		agent.GET("/runs", s.listInterrupted)
		agent.GET("/runs/:runID", s.getRun)
		agent.POST("/runs/:runID/resume", s.resumeRun)
	}

	project := router.Group("/project")
	{
		project.GET("/preview", s.getPreview)
		project.GET("/preview/", s.getPreview)
		project.GET("/:flowID", s.getProject)
		project.GET("/:flowID/history", s.getHistory)
	}

	router.GET("/ws/:flowID", s.handleWebSocket)

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func abort(c *gin.Context, status int, detail string) {
	c.JSON(status, ErrorResponse{Detail: detail, Status: status})
}
