// Package server hosts the HTTP surface of the scheduling engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine"
	"github.com/clearday/clearday/engine/audit"
	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/metrics"
	"github.com/clearday/clearday/engine/resolution"
	"github.com/clearday/clearday/engine/source"
	"github.com/clearday/clearday/internal/profile"
	apiv1 "github.com/clearday/clearday/server/router/api/v1"
	"github.com/clearday/clearday/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	engine     *engine.Engine

	// Sync pushes normalized provider events into these in-memory
	// sources; the engine reads them back out per query.
	googleSource    *source.StaticSource
	microsoftSource *source.StaticSource
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true

	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.CORS())
	echoServer.Use(requestLogger())

	s := &Server{
		Profile:         profile,
		Store:           store,
		echoServer:      echoServer,
		googleSource:    source.NewStaticSource(calendar.ProviderGoogle),
		microsoftSource: source.NewStaticSource(calendar.ProviderMicrosoft),
	}

	registry := source.NewRegistry()
	registry.Register(s.googleSource)
	registry.Register(s.microsoftSource)
	if feeds := profile.ICSFeedMap(); len(feeds) > 0 {
		registry.Register(source.NewICSSource(feeds))
	}
	slog.Info("calendar sources registered", "providers", registry.Providers())

	exporter := metrics.NewExporter(metrics.DefaultConfig())
	s.engine = engine.New(engine.Config{
		Store:    store,
		Registry: registry,
		Recorder: audit.NewStoreRecorder(store),
		Exporter: exporter,
		Params:   resolution.DefaultParams(),
		FetchOptions: source.FetchOptions{
			Timeout:        time.Duration(profile.FetchTimeoutSeconds) * time.Second,
			MaxAttempts:    profile.FetchMaxAttempts,
			MaxConcurrency: profile.FetchMaxConcurrency,
		},
	})

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	apiV1Service := apiv1.NewAPIV1Service(profile, store, s.engine)
	apiV1Service.RegisterRoutes(echoServer)

	return s, nil
}

// Engine exposes the scheduling engine, mainly for seeding demo data.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// PushEvents hands normalized events from the sync collaborator to the
// in-memory source for their provider.
func (s *Server) PushEvents(provider calendar.Provider, accountID string, events []*calendar.Event) error {
	switch provider {
	case calendar.ProviderGoogle:
		s.googleSource.SetEvents(accountID, events)
	case calendar.ProviderMicrosoft:
		s.microsoftSource.SetEvents(accountID, events)
	default:
		return errors.Errorf("provider %q does not accept pushed events", provider)
	}
	return nil
}

func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	slog.Info("server stopped")
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status)
			return nil
		},
	})
}
