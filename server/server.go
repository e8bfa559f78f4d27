package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/Momena-akhtar/classfellow-sub000/internal/profile"
	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/session"
	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/timeout"
	"github.com/Momena-akhtar/classfellow-sub000/server/internal/observability"
	apiv1 "github.com/Momena-akhtar/classfellow-sub000/server/router/api/v1"
)

type Server struct {
	Profile *profile.Profile
	Manager *session.Manager

	echoServer   *echo.Echo
	apiV1Service *apiv1.APIV1Service
	cleanupJob   *session.SessionCleanupJob

	runnerCancel context.CancelFunc
	runnerWG     sync.WaitGroup
}

func NewServer(profile *profile.Profile, manager *session.Manager, metrics *observability.Metrics) *Server {
	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.BodyLimit("1M"))

	s := &Server{
		Profile:    profile,
		Manager:    manager,
		echoServer: echoServer,
		cleanupJob: session.NewSessionCleanupJob(manager, session.CleanupConfig{MaxAge: profile.SessionTTL}),
	}

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	s.apiV1Service = apiv1.NewAPIV1Service(profile, manager, metrics)
	s.apiV1Service.RegisterRoutes(echoServer)

	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

func (s *Server) Start(ctx context.Context) error {
	address := net.JoinHostPort(s.Profile.Addr, fmt.Sprintf("%d", s.Profile.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}

	s.startBackgroundRunners(ctx)

	go func() {
		if err := s.echoServer.Server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to serve", "error", err)
		}
	}()
	slog.Info("server started", "address", address, "mode", s.Profile.Mode, "version", s.Profile.Version)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, timeout.ShutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	s.cleanupJob.Stop()
	if s.runnerCancel != nil {
		s.runnerCancel()
	}
	s.runnerWG.Wait()

	// In-flight summaries get until the shutdown deadline, then are cancelled.
	s.Manager.Shutdown(ctx)

	slog.Info("server stopped properly")
}

func (s *Server) startBackgroundRunners(ctx context.Context) {
	runnerCtx, cancel := context.WithCancel(ctx)
	s.runnerCancel = cancel

	s.cleanupJob.Start(runnerCtx)

	s.runnerWG.Add(1)
	go func() {
		defer s.runnerWG.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.apiV1Service.PruneLimiters(); n > 0 {
					slog.Debug("pruned idle rate limiters", "count", n)
				}
			case <-runnerCtx.Done():
				return
			}
		}
	}()
}
