package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/clearday/clearday/engine"
	"github.com/clearday/clearday/engine/calendar"
)

// GetPreferences returns the user's scheduling preferences, falling back
// to the stock configuration.
func (s *APIV1Service) GetPreferences(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	prefs, err := s.Engine.GetPreferences(c.Request().Context(), userID)
	if err != nil {
		slog.Error("loading preferences failed", "userID", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load preferences")
	}
	return c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences replaces the user's scheduling preferences.
func (s *APIV1Service) UpdatePreferences(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var prefs engine.Preferences
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := validatePreferences(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.Engine.SavePreferences(c.Request().Context(), userID, &prefs); err != nil {
		slog.Error("saving preferences failed", "userID", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save preferences")
	}
	return c.JSON(http.StatusOK, &prefs)
}

func validatePreferences(prefs *engine.Preferences) error {
	for _, hours := range prefs.WorkingHours {
		if _, _, err := calendar.ParseClock(hours.Start); err != nil {
			return err
		}
		if _, _, err := calendar.ParseClock(hours.End); err != nil {
			return err
		}
	}
	for _, fb := range prefs.FocusBlocks {
		if _, _, err := calendar.ParseClock(fb.Start); err != nil {
			return err
		}
		if _, _, err := calendar.ParseClock(fb.End); err != nil {
			return err
		}
		if !fb.Recurring {
			if fb.Date == "" {
				return errors.Errorf("focus block %q: a non-recurring block needs a date", fb.ID)
			}
			if _, err := time.Parse("2006-01-02", fb.Date); err != nil {
				return errors.Errorf("focus block %q: invalid date %q, want YYYY-MM-DD", fb.ID, fb.Date)
			}
		}
	}
	if prefs.BufferMinutes < 0 {
		prefs.BufferMinutes = 0
	}
	return nil
}
