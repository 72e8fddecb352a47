// Package v1 exposes the scheduling engine over a JSON HTTP API.
package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clearday/clearday/engine"
	"github.com/clearday/clearday/engine/interval"
	"github.com/clearday/clearday/internal/profile"
	"github.com/clearday/clearday/store"
)

// userIDHeader carries the authenticated user id. Authentication itself
// is terminated upstream (gateway or reverse proxy); this service only
// trusts the forwarded identity.
const userIDHeader = "X-User-ID"

// maxWindowDays bounds a single availability or conflict query.
const maxWindowDays = 62

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Engine  *engine.Engine
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, engine *engine.Engine) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Store:   store,
		Engine:  engine,
	}
}

// RegisterRoutes attaches all v1 endpoints to the echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")

	g.GET("/availability", s.GetAvailability)
	g.GET("/conflicts", s.DetectConflicts)
	g.POST("/conflicts/:id/resolutions", s.PlanResolutions)
	g.GET("/actions", s.ListActions)
	g.POST("/actions/:id/decision", s.DecideAction)
	g.GET("/audit", s.ListAuditEntries)
	g.GET("/preferences", s.GetPreferences)
	g.PUT("/preferences", s.UpdatePreferences)
}

// currentUserID extracts the forwarded user identity.
func currentUserID(c echo.Context) (int32, error) {
	raw := c.Request().Header.Get(userIDHeader)
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid user identity")
	}
	return int32(id), nil
}

// queryWindow parses the start/end query parameters (RFC 3339) into a
// bounded half-open interval.
func queryWindow(c echo.Context) (interval.Interval, error) {
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return interval.Interval{}, echo.NewHTTPError(http.StatusBadRequest, "invalid start, want RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return interval.Interval{}, echo.NewHTTPError(http.StatusBadRequest, "invalid end, want RFC 3339")
	}
	window, err := interval.New(start.UTC(), end.UTC())
	if err != nil {
		return interval.Interval{}, echo.NewHTTPError(http.StatusBadRequest, "start must precede end")
	}
	if window.End.Sub(window.Start) > maxWindowDays*24*time.Hour {
		return interval.Interval{}, echo.NewHTTPError(http.StatusBadRequest, "window exceeds 62 days")
	}
	return window, nil
}
