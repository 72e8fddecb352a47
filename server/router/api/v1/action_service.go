package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine/action"
	"github.com/clearday/clearday/store"
)

type decideActionRequest struct {
	Decision string  `json:"decision"`
	Feedback *string `json:"feedback,omitempty"`
}

// DecideAction applies an approve or reject decision to a pending agent
// action. Lost races come back as 409, requests against actions that can
// never accept the transition as 422.
func (s *APIV1Service) DecideAction(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	actionUID := c.Param("id")

	var req decideActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	decision := action.Decision(req.Decision)
	if decision != action.DecisionApprove && decision != action.DecisionReject {
		return echo.NewHTTPError(http.StatusBadRequest, `decision must be "approve" or "reject"`)
	}

	updated, err := s.Engine.DecideAction(c.Request().Context(), userID, actionUID, decision, req.Feedback)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "action not found")
	case errors.Is(err, action.ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, "action was decided concurrently")
	case errors.Is(err, action.ErrInvalidStateTransition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "action state does not allow this decision")
	case err != nil:
		slog.Error("action decision failed", "userID", userID, "actionUID", actionUID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process decision")
	}
	return c.JSON(http.StatusOK, convertAgentAction(updated))
}

// ListActions lists the user's agent actions, optionally filtered by
// status, newest first.
func (s *APIV1Service) ListActions(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	find := &store.FindAgentAction{UserID: &userID}
	if raw := c.QueryParam("status"); raw != "" {
		status := store.ActionStatus(raw)
		switch status {
		case store.ActionPending, store.ActionApproved, store.ActionRejected, store.ActionExecuted:
			find.Status = &status
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status filter")
		}
	}

	actions, err := s.Store.ListAgentActions(c.Request().Context(), find)
	if err != nil {
		slog.Error("listing actions failed", "userID", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list actions")
	}
	return c.JSON(http.StatusOK, convertAgentActions(actions))
}
