package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clearday/clearday/store"
)

const defaultAuditPageSize = 50

// ListAuditEntries returns the user's decision trail, newest first.
func (s *APIV1Service) ListAuditEntries(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	limit := defaultAuditPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = n
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be non-negative")
		}
		offset = n
	}

	find := &store.FindAuditEntry{UserID: &userID, Limit: &limit, Offset: &offset}
	if raw := c.QueryParam("kind"); raw != "" {
		kind := store.AuditKind(raw)
		switch kind {
		case store.AuditDetection, store.AuditPlanning, store.AuditDecision, store.AuditAction:
			find.Kind = &kind
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "unknown audit kind")
		}
	}

	entries, err := s.Store.ListAuditEntries(c.Request().Context(), find)
	if err != nil {
		slog.Error("listing audit entries failed", "userID", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list audit entries")
	}
	return c.JSON(http.StatusOK, convertAuditEntries(entries))
}
