// Package devbridge is a local-only debug surface for a running
// NavigatorCore: a gin HTTP server exposing health, state, and
// history snapshots, plus a websocket feed that mirrors every
// EventBus emission out to connected browser devtools panels.
//
// It is not part of the host application's public API surface; it
// exists so a developer can point a browser or curl at a running
// instance and see what the cognitive/intent/plugin machinery is
// doing without instrumenting the app itself.
package devbridge

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"

	"github.com/navigator-sdk/navigator/core"
	"github.com/navigator-sdk/navigator/eventbus"
	"github.com/navigator-sdk/navigator/logger"
)

// Server wraps a gin.Engine bound to a single core.Core instance.
type Server struct {
	engine    *gin.Engine
	core      *core.Core
	hub       *hub
	sanitizer *bluemonday.Policy
	unsub     eventbus.UnsubscribeFunc
	upgrader  websocket.Upgrader
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithAllowedOrigin replaces the websocket upgrader's origin check with
// an explicit allowlist, matching the teacher's pattern. Without it the
// Server accepts only upgrade requests that carry no Origin header.
func WithAllowedOrigin(origins ...string) Option {
	return func(s *Server) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowed[r.Header.Get("Origin")]
		}
	}
}

// New builds a Server around c. Call Run to start serving.
func New(c *core.Core, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:    gin.New(),
		core:      c,
		hub:       newHub(),
		sanitizer: bluemonday.StrictPolicy(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return r.Header.Get("Origin") == "" },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/state", s.handleState)
	s.engine.GET("/history", s.handleHistory)
	s.engine.GET("/ws", s.handleWebsocket)
}

// Run starts the hub's broadcast loop, mirrors the core's EventBus
// onto it, and serves HTTP on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.hub.run()
	s.unsub = s.core.EventBus().On(eventbus.Wildcard, s.relayEvent)

	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		logger.DevBridge().Info().Str("addr", addr).Msg("devbridge listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.unsub()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) relayEvent(ev eventbus.Event) {
	frame := map[string]any{
		"name":      ev.Name,
		"payload":   sanitizeAny(s.sanitizer, ev.Payload),
		"timestamp": ev.Timestamp,
		"source":    ev.Source,
	}
	body, err := jsonMarshal(frame)
	if err != nil {
		logger.DevBridge().Error().Err(err).Str("event", ev.Name).Msg("failed to encode event frame")
		return
	}
	s.hub.Broadcast(body)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"running":   s.core.IsRunning(),
		"clients":   s.hub.clientCount(),
		"timestamp": time.Now(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, sanitizeAny(s.sanitizer, s.core.Store().GetState()))
}

func (s *Server) handleHistory(c *gin.Context) {
	n := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := parsePositiveInt(raw); err == nil {
			n = parsed
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"actions": s.core.History().GetLatest(n),
		"metrics": s.core.History().GetMetrics(n),
	})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.DevBridge().Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.serve(conn)
}
