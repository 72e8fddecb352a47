package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine"
	"github.com/clearday/clearday/engine/conflict"
	"github.com/clearday/clearday/store"
)

type detectConflictsResponse struct {
	Conflicts []*conflict.Conflict `json:"conflicts"`
	Degraded  bool                 `json:"degraded"`
}

// DetectConflicts scans the window against fresh calendar data, persists
// every finding under its stable id and returns the batch.
func (s *APIV1Service) DetectConflicts(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	window, err := queryWindow(c)
	if err != nil {
		return err
	}

	conflicts, degraded, err := s.Engine.DetectConflicts(c.Request().Context(), userID, window)
	if err != nil {
		slog.Error("conflict detection failed", "userID", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to detect conflicts")
	}
	if conflicts == nil {
		conflicts = []*conflict.Conflict{}
	}
	return c.JSON(http.StatusOK, detectConflictsResponse{Conflicts: conflicts, Degraded: degraded})
}

type planResolutionsResponse struct {
	Resolutions []*engine.PlannedResolution `json:"resolutions"`
}

// PlanResolutions regenerates ranked resolution candidates for a stored
// conflict. Earlier proposals are superseded, never mutated: each call
// creates fresh pending agent actions.
func (s *APIV1Service) PlanResolutions(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	conflictUID := c.Param("id")

	planned, err := s.Engine.PlanResolutions(c.Request().Context(), userID, conflictUID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "conflict not found")
	case errors.Is(err, engine.ErrConflictGone):
		return echo.NewHTTPError(http.StatusGone, "conflict no longer present in the calendar")
	case err != nil:
		slog.Error("resolution planning failed", "userID", userID, "conflictUID", conflictUID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to plan resolutions")
	}
	return c.JSON(http.StatusOK, planResolutionsResponse{Resolutions: planned})
}
