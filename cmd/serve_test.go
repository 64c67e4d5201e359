package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospecting-cli/internal/config"
	"github.com/sells-group/prospecting-cli/internal/materialize"
	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/internal/prospecting"
	"github.com/sells-group/prospecting-cli/internal/scheduler"
	"github.com/sells-group/prospecting-cli/internal/search"
	"github.com/sells-group/prospecting-cli/internal/store"
)

type stubSearcher struct {
	prospects []model.Prospect
	err       error
}

func (s *stubSearcher) Search(context.Context, model.ICP, int) ([]model.Prospect, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.prospects, nil
}

type stubWebsiteAnalyzer struct{}

func (stubWebsiteAnalyzer) Analyze(context.Context, string) model.WebsiteAnalysis {
	return model.WebsiteAnalysis{Title: "stub"}
}

type stubAIAnalyzer struct{}

func (stubAIAnalyzer) Analyze(context.Context, model.Prospect, model.ICP) model.AIAnalysis {
	return model.AIAnalysis{Priority: model.PriorityHigh, DigitalPresenceScore: 60}
}

func newTestEnv(t *testing.T) (*appEnv, *scheduler.Manager) {
	t.Helper()
	return newTestEnvWithSearcher(t,
		&stubSearcher{prospects: []model.Prospect{{PlaceID: "p1", Name: "Austin Dental", Website: "https://a.example"}}})
}

func newTestEnvWithSearcher(t *testing.T, searcher search.Searcher) (*appEnv, *scheduler.Manager) {
	t.Helper()

	cfg = &config.Config{}
	cfg.Prospect.DefaultMaxResults = 10

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	engine := prospecting.NewEngine(
		searcher,
		stubWebsiteAnalyzer{},
		stubAIAnalyzer{},
		0,
	)

	env := &appEnv{
		Store:        st,
		Engine:       engine,
		Materializer: materialize.New(st),
	}
	mgr := scheduler.New(st, engine, env.Materializer)
	return env, mgr
}

func seedAPIICP(t *testing.T, env *appEnv) model.ICP {
	t.Helper()
	icp := model.ICP{ID: "icp-1", Name: "Austin Dentists", Industry: "Dental", Location: "Austin, TX", OwnerID: "owner-1"}
	require.NoError(t, env.Store.SaveICP(context.Background(), icp))
	return icp
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)

	rec := doRequest(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_Prospect(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)
	seedAPIICP(t, env)

	rec := doRequest(t, router, http.MethodPost, "/api/prospect", map[string]any{"icp_id": "icp-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Success   bool             `json:"success"`
		Prospects []model.Prospect `json:"prospects"`
		Count     int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Count)
	require.Len(t, result.Prospects, 1)
	assert.Equal(t, "Austin Dental", result.Prospects[0].Name)
	assert.Equal(t, model.PriorityHigh, result.Prospects[0].AIAnalysis.Priority)

	// A manual run is recorded.
	runs, err := env.Store.ListProspectingRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "manual", runs[0].Trigger)
	assert.Equal(t, "complete", runs[0].Status)
}

func TestAPI_ProspectWithMaterialize(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)
	seedAPIICP(t, env)

	rec := doRequest(t, router, http.MethodPost, "/api/prospect",
		map[string]any{"icp_id": "icp-1", "materialize": true})
	require.Equal(t, http.StatusOK, rec.Code)

	companies, err := env.Store.ListCompanies(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Austin Dental", companies[0].Name)
}

func TestAPI_ProspectRunFailureShape(t *testing.T) {
	env, mgr := newTestEnvWithSearcher(t, &stubSearcher{err: errors.New("text search quota exceeded")})
	router := newRouter(env, mgr)
	seedAPIICP(t, env)

	rec := doRequest(t, router, http.MethodPost, "/api/prospect", map[string]any{"icp_id": "icp-1"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Success   bool             `json:"success"`
		Error     string           `json:"error"`
		Prospects []model.Prospect `json:"prospects"`
		Count     int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "text search quota exceeded")
	assert.NotNil(t, body.Prospects)
	assert.Empty(t, body.Prospects)
	assert.Zero(t, body.Count)

	// The four keys are all present even on failure.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"success", "error", "prospects", "count"} {
		assert.Contains(t, raw, key)
	}

	runs, err := env.Store.ListProspectingRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
}

func TestAPI_ProspectValidation(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)

	rec := doRequest(t, router, http.MethodPost, "/api/prospect", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "icp_id is required")

	rec = doRequest(t, router, http.MethodPost, "/api/prospect", map[string]any{"icp_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestAPI_ScheduleLifecycle(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)
	seedAPIICP(t, env)

	rec := doRequest(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"name":      "Daily dentists",
		"icp_id":    "icp-1",
		"frequency": "daily",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sched model.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sched))
	assert.NotEmpty(t, sched.ID)
	assert.True(t, sched.IsActive)
	assert.Equal(t, 10, sched.MaxResults)
	require.NotNil(t, sched.NextRunAt)
	assert.True(t, mgr.Registered(sched.ID))

	rec = doRequest(t, router, http.MethodGet, "/api/schedules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var schedules []model.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schedules))
	assert.Len(t, schedules, 1)

	// Toggle deactivates and unregisters the trigger.
	rec = doRequest(t, router, http.MethodPost, "/api/schedules/"+sched.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mgr.Registered(sched.ID))

	// Toggle again re-registers.
	rec = doRequest(t, router, http.MethodPost, "/api/schedules/"+sched.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mgr.Registered(sched.ID))

	rec = doRequest(t, router, http.MethodDelete, "/api/schedules/"+sched.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mgr.Registered(sched.ID))

	rec = doRequest(t, router, http.MethodDelete, "/api/schedules/"+sched.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_UpdateScheduleFrequency(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)
	seedAPIICP(t, env)

	rec := doRequest(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"name":      "Weekly dentists",
		"icp_id":    "icp-1",
		"frequency": "weekly",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sched model.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sched))
	require.True(t, mgr.Registered(sched.ID))

	// Switching weekly to daily recomputes next-run to tomorrow 09:00 and
	// replaces the registered trigger.
	rec = doRequest(t, router, http.MethodPatch, "/api/schedules/"+sched.ID, map[string]any{
		"frequency": "daily",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated model.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, model.FrequencyDaily, updated.Frequency)
	require.NotNil(t, updated.NextRunAt)

	tomorrow := time.Now().AddDate(0, 0, 1)
	assert.Equal(t, tomorrow.Year(), updated.NextRunAt.Year())
	assert.Equal(t, tomorrow.YearDay(), updated.NextRunAt.YearDay())
	assert.Equal(t, 9, updated.NextRunAt.Hour())
	assert.True(t, mgr.Registered(sched.ID))

	// The change is persisted, not just echoed.
	stored, err := env.Store.GetSchedule(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyDaily, stored.Frequency)
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, stored.NextRunAt.Equal(*updated.NextRunAt))
}

func TestAPI_UpdateScheduleOtherFields(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)
	seedAPIICP(t, env)

	rec := doRequest(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"name": "Weekly dentists", "icp_id": "icp-1", "frequency": "weekly",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sched model.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sched))

	rec = doRequest(t, router, http.MethodPatch, "/api/schedules/"+sched.ID, map[string]any{
		"name":                  "Renamed",
		"max_results":           25,
		"auto_create_companies": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.Store.GetSchedule(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.Equal(t, 25, stored.MaxResults)
	assert.True(t, stored.AutoCreateCompanies)
	// Frequency untouched by a partial update.
	assert.Equal(t, model.FrequencyWeekly, stored.Frequency)
}

func TestAPI_UpdateScheduleValidation(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)
	seedAPIICP(t, env)

	rec := doRequest(t, router, http.MethodPatch, "/api/schedules/missing", map[string]any{
		"frequency": "daily",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"name": "X", "icp_id": "icp-1", "frequency": "daily",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sched model.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sched))

	rec = doRequest(t, router, http.MethodPatch, "/api/schedules/"+sched.ID, map[string]any{
		"frequency": "hourly",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ScheduleValidation(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)
	seedAPIICP(t, env)

	rec := doRequest(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"icp_id": "icp-1", "frequency": "daily",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"name": "X", "icp_id": "icp-1", "frequency": "hourly",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"name": "X", "icp_id": "missing", "frequency": "daily",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListRunsEmpty(t *testing.T) {
	env, mgr := newTestEnv(t)
	router := newRouter(env, mgr)

	rec := doRequest(t, router, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
