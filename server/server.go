// Package server exposes the memory engine's HTTP surface (spec §6.1/§6.2):
// a thin labstack/echo/v4 layer whose handlers do nothing but decode, call
// the Coordinator, and encode. Grounded on the route-group/middleware
// wiring visible in server/router/api/v1/v1.go (CORS group, systemGroup
// REST registration pattern), generalized from that file's gRPC-gateway
// wiring down to plain JSON handlers since this module carries no proto
// layer.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mnemograph/mnemograph/engine/coordinator"
	"github.com/mnemograph/mnemograph/engine/metrics"
	"github.com/mnemograph/mnemograph/internal/profile"
	"github.com/mnemograph/mnemograph/store"
)

// Server wires the Coordinator behind an echo.Echo instance.
type Server struct {
	echo        *echo.Echo
	profile     *profile.Profile
	store       *store.Store
	coordinator *coordinator.Coordinator
	metrics     *metrics.Recorder
}

// NewServer builds the echo instance and registers every route.
func NewServer(_ context.Context, prof *profile.Profile, st *store.Store, co *coordinator.Coordinator, rec *metrics.Recorder) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) { return true, nil },
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"*"},
	}))

	s := &Server{echo: e, profile: prof, store: st, coordinator: co, metrics: rec}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	group := s.echo.Group("/api/v1")

	group.POST("/memory", s.handleIngest)
	group.GET("/memory-space/:userId", s.handleListMemories)
	group.POST("/memory-space/:userId/search", s.handleSearch)
	group.GET("/memory-space/:userId/clusters", s.handleGetTopics)
	group.GET("/learning-path/:userId/knowledge-graph", s.handleGetGraph)
	group.POST("/memory-space/:userId/repair", s.handleRepair)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// Start begins serving on the configured unix socket, addr:port, or bare
// port, mirroring the teacher's own addr/port/unix-sock precedence.
func (s *Server) Start(_ context.Context) error {
	addr := s.listenAddr()
	network := "tcp"
	if s.profile.UNIXSock != "" {
		network = "unix"
		addr = s.profile.UNIXSock
	}

	listener, err := net.Listen(network, addr)
	if err != nil {
		return err
	}

	go func() {
		if err := s.echo.Server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Error(err)
		}
	}()
	return nil
}

func (s *Server) listenAddr() string {
	if s.profile.Addr != "" {
		return s.profile.Addr + ":" + portString(s.profile.Port)
	}
	return ":" + portString(s.profile.Port)
}

func portString(port int) string {
	if port <= 0 {
		port = 8080
	}
	return strconv.Itoa(port)
}

// Shutdown gracefully drains connections and stops the Coordinator's
// background ingestion workers.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = s.echo.Shutdown(shutdownCtx)
	_ = s.coordinator.Shutdown(shutdownCtx)
}
