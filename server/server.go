package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/agentrt/a2a"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
)

// Service is the runtime surface served over HTTP.
type Service interface {
	Execute(ctx context.Context, req core.Request) (*core.Result, error)
	GetCapabilities() core.Descriptor
	HealthCheck(ctx context.Context) core.HealthStatus
	RecordOutcome(ctx context.Context, confidence float64, correct bool) error
}

// Options configures a Server.
type Options struct {
	// BaseURL is advertised in the agent card.
	BaseURL string
	Version string

	// DisableA2A removes the Agent2Agent routes.
	DisableA2A bool

	// MaxMessageSize bounds inbound websocket messages in bytes.
	MaxMessageSize int64

	Metrics *metrics.Collector
	Logger  logging.Logger
}

// Server routes HTTP requests to a Service.
type Server struct {
	echo     *echo.Echo
	svc      Service
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.Mutex
	streams map[*websocket.Conn]struct{}
}

// New builds the HTTP surface for svc.
func New(svc Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		Version:        "1.0.0",
		MaxMessageSize: 1 << 20,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo: e,
		svc:  svc,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		streams: make(map[*websocket.Conn]struct{}),
	}

	e.HTTPErrorHandler = s.handleHTTPError

	v1 := e.Group("/v1")
	v1.POST("/execute", s.handleExecute)
	v1.GET("/capabilities", s.handleCapabilities)
	v1.GET("/health", s.handleHealth)
	v1.GET("/stream", s.handleStream)
	v1.POST("/feedback", s.handleFeedback)

	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}

	if !opts.DisableA2A {
		withCard := func(o *a2a.Options) {
			o.BaseURL = opts.BaseURL
			o.Version = opts.Version
		}

		e.POST("/a2a", echo.WrapHandler(a2a.NewHandler(svc, withCard)))
		e.GET("/.well-known/agent.json", func(c echo.Context) error {
			return c.JSON(http.StatusOK, a2a.NewAgentCard(svc.GetCapabilities(), withCard))
		})
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// CloseStreams closes every open websocket. Hijacked connections are not
// tracked by http.Server.Shutdown, so callers register this as a shutdown hook.
func (s *Server) CloseStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.streams {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline())
		_ = conn.Close()
		delete(s.streams, conn)
	}
}
