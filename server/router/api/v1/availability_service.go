package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GetAvailability returns the unified availability timeline for the
// requested window. Provider outages degrade the response instead of
// failing it; the degraded flag tells the client the picture may be
// incomplete.
func (s *APIV1Service) GetAvailability(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	window, err := queryWindow(c)
	if err != nil {
		return err
	}

	var accountIDs []string
	if raw := c.QueryParam("accounts"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				accountIDs = append(accountIDs, id)
			}
		}
	}

	availability, err := s.Engine.GetAvailability(c.Request().Context(), userID, window, accountIDs)
	if err != nil {
		slog.Error("availability query failed", "userID", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute availability")
	}
	return c.JSON(http.StatusOK, availability)
}
