package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/clearday/clearday/engine"
	"github.com/clearday/clearday/engine/audit"
	"github.com/clearday/clearday/engine/calendar"
	"github.com/clearday/clearday/engine/source"
	"github.com/clearday/clearday/internal/profile"
	"github.com/clearday/clearday/store"
	"github.com/clearday/clearday/store/db/sqlite"
)

type testEnv struct {
	echo   *echo.Echo
	store  *store.Store
	source *source.StaticSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:   "dev",
		Data:   dir,
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "test.db"),
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))

	src := source.NewStaticSource(calendar.ProviderGoogle)
	reg := source.NewRegistry()
	reg.Register(src)

	eng := engine.New(engine.Config{
		Store:    st,
		Registry: reg,
		Recorder: audit.NewStoreRecorder(st),
		FetchOptions: source.FetchOptions{
			Timeout:     time.Second,
			MaxAttempts: 1,
		},
	})

	prefs := engine.DefaultPreferences()
	prefs.Accounts = []source.Account{{ID: "acct-1", Provider: calendar.ProviderGoogle}}
	require.NoError(t, eng.SavePreferences(context.Background(), 1, prefs))

	e := echo.New()
	NewAPIV1Service(p, st, eng).RegisterRoutes(e)
	return &testEnv{echo: e, store: st, source: src}
}

func (env *testEnv) do(t *testing.T, method, target, body string, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func seedOverlap(env *testEnv) {
	day := func(h, m int) time.Time { return time.Date(2026, 8, 25, h, m, 0, 0, time.UTC) }
	env.source.SetEvents("acct-1", []*calendar.Event{
		{
			ID: "evt-interview", Provider: calendar.ProviderGoogle, ProviderEventID: "g-1",
			Title: "Interview", Start: day(10, 0), End: day(11, 0),
			Status: calendar.StatusConfirmed, MeetingType: calendar.MeetingInterview,
		},
		{
			ID: "evt-review", Provider: calendar.ProviderGoogle, ProviderEventID: "g-2",
			Title: "Roadmap review", Start: day(10, 30), End: day(11, 30),
			Status: calendar.StatusConfirmed,
		},
	})
}

const testWindowQuery = "start=2026-08-25T00:00:00Z&end=2026-08-26T00:00:00Z"

func TestAvailabilityRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/availability?"+testWindowQuery, "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAvailabilityRejectsBadWindow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/availability?start=not-a-time&end=2026-08-26T00:00:00Z", "", "1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Inverted window.
	rec = env.do(t, http.MethodGet, "/api/v1/availability?start=2026-08-26T00:00:00Z&end=2026-08-25T00:00:00Z", "", "1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Oversized window.
	rec = env.do(t, http.MethodGet, "/api/v1/availability?start=2026-01-01T00:00:00Z&end=2026-12-01T00:00:00Z", "", "1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityHappyPath(t *testing.T) {
	env := newTestEnv(t)
	seedOverlap(env)

	rec := env.do(t, http.MethodGet, "/api/v1/availability?"+testWindowQuery, "", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	var got engine.Availability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got.Degraded)
	require.Len(t, got.Days, 1)
	require.Equal(t, "2026-08-25", got.Days[0].Date)
	require.Len(t, got.Conflicts, 1)
}

func TestConflictAndResolutionFlow(t *testing.T) {
	env := newTestEnv(t)
	seedOverlap(env)

	rec := env.do(t, http.MethodGet, "/api/v1/conflicts?"+testWindowQuery, "", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	var detected detectConflictsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detected))
	require.Len(t, detected.Conflicts, 1)
	conflictID := detected.Conflicts[0].ID

	rec = env.do(t, http.MethodPost, "/api/v1/conflicts/"+conflictID+"/resolutions", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	var planned planResolutionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &planned))
	require.NotEmpty(t, planned.Resolutions)
	require.NotEmpty(t, planned.Resolutions[0].ActionUID)

	// Approve the top candidate.
	actionID := planned.Resolutions[0].ActionUID
	rec = env.do(t, http.MethodPost, "/api/v1/actions/"+actionID+"/decision", `{"decision":"approve"}`, "1")
	require.Equal(t, http.StatusOK, rec.Code)

	var act agentActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &act))
	require.Equal(t, "approved", act.Status)

	// A second approval is a stale request against an advanced action.
	rec = env.do(t, http.MethodPost, "/api/v1/actions/"+actionID+"/decision", `{"decision":"approve"}`, "1")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlanResolutionsNotFoundAndGone(t *testing.T) {
	env := newTestEnv(t)
	seedOverlap(env)

	rec := env.do(t, http.MethodPost, "/api/v1/conflicts/nope/resolutions", "", "1")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/conflicts?"+testWindowQuery, "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var detected detectConflictsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detected))
	conflictID := detected.Conflicts[0].ID

	// The calendar moves on before anyone plans around the conflict.
	env.source.SetEvents("acct-1", nil)
	rec = env.do(t, http.MethodPost, "/api/v1/conflicts/"+conflictID+"/resolutions", "", "1")
	require.Equal(t, http.StatusGone, rec.Code)
}

func TestDecideActionValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/actions/any/decision", `{"decision":"maybe"}`, "1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/actions/missing/decision", `{"decision":"approve"}`, "1")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecideRejectedActionUnprocessable(t *testing.T) {
	env := newTestEnv(t)
	seedOverlap(env)

	rec := env.do(t, http.MethodGet, "/api/v1/conflicts?"+testWindowQuery, "", "1")
	var detected detectConflictsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detected))

	rec = env.do(t, http.MethodPost, "/api/v1/conflicts/"+detected.Conflicts[0].ID+"/resolutions", "", "1")
	var planned planResolutionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &planned))
	actionID := planned.Resolutions[0].ActionUID

	rec = env.do(t, http.MethodPost, "/api/v1/actions/"+actionID+"/decision",
		`{"decision":"reject","feedback":"keep it"}`, "1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/actions/"+actionID+"/decision", `{"decision":"approve"}`, "1")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListActionsFilter(t *testing.T) {
	env := newTestEnv(t)
	seedOverlap(env)

	rec := env.do(t, http.MethodGet, "/api/v1/conflicts?"+testWindowQuery, "", "1")
	var detected detectConflictsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detected))
	rec = env.do(t, http.MethodPost, "/api/v1/conflicts/"+detected.Conflicts[0].ID+"/resolutions", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/actions?status=pending", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var actions []*agentActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actions))
	require.NotEmpty(t, actions)
	for _, a := range actions {
		require.Equal(t, "pending", a.Status)
	}

	// Another user sees nothing.
	rec = env.do(t, http.MethodGet, "/api/v1/actions", "", "2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]\n", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/actions?status=bogus", "", "1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferencesEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/preferences", "", "5")
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs engine.Preferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	require.Equal(t, 10, prefs.BufferMinutes)

	body := `{"workingHours":{"1":{"start":"08:00","end":"16:00"}},"bufferMinutes":5}`
	rec = env.do(t, http.MethodPut, "/api/v1/preferences", body, "5")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/preferences", "", "5")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	require.Equal(t, 5, prefs.BufferMinutes)
	require.Equal(t, calendar.DayHours{Start: "08:00", End: "16:00"}, prefs.WorkingHours[time.Monday])

	rec = env.do(t, http.MethodPut, "/api/v1/preferences", `{"workingHours":{"1":{"start":"8am","end":"16:00"}}}`, "5")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t)
	seedOverlap(env)

	rec := env.do(t, http.MethodGet, "/api/v1/conflicts?"+testWindowQuery, "", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/audit?kind=detection", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []*auditEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "detection", entries[0].Kind)

	rec = env.do(t, http.MethodGet, "/api/v1/audit?kind=weird", "", "1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/audit?limit=%d", 0), "", "1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
