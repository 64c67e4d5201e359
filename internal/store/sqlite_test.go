package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospecting-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testScheduleInput(icpID string) model.Schedule {
	return model.Schedule{
		Name:                "Weekly Austin dentists",
		ICPID:               icpID,
		Frequency:           model.FrequencyWeekly,
		MaxResults:          15,
		AutoCreateCompanies: true,
		IsActive:            true,
		OwnerID:             "owner-1",
	}
}

func seedICP(t *testing.T, s *SQLiteStore) model.ICP {
	t.Helper()
	icp := model.ICP{
		ID:           "icp-1",
		Name:         "Austin Dentists",
		Industry:     "Dental",
		BusinessType: "Clinic",
		Location:     "Austin, TX",
		PainPoints:   []string{"no online booking"},
		OwnerID:      "owner-1",
	}
	require.NoError(t, s.SaveICP(context.Background(), icp))
	return icp
}

func TestSQLite_ICPRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	icp := seedICP(t, s)

	got, err := s.GetICP(ctx, icp.ID)
	require.NoError(t, err)
	assert.Equal(t, icp, *got)

	// Save again with changed fields upserts.
	icp.Location = "Dallas, TX"
	require.NoError(t, s.SaveICP(ctx, icp))

	got, err = s.GetICP(ctx, icp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dallas, TX", got.Location)

	all, err := s.ListICPs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.GetICP(ctx, "missing")
	assert.Error(t, err)
}

func TestSQLite_ScheduleLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	icp := seedICP(t, s)

	created, err := s.CreateSchedule(ctx, testScheduleInput(icp.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := s.GetSchedule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekly Austin dentists", got.Name)
	assert.Equal(t, model.FrequencyWeekly, got.Frequency)
	assert.Equal(t, 15, got.MaxResults)
	assert.True(t, got.AutoCreateCompanies)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastRunAt)
	assert.Nil(t, got.NextRunAt)

	last := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	next := last.AddDate(0, 0, 7)
	require.NoError(t, s.UpdateScheduleRuns(ctx, created.ID, &last, next))

	got, err = s.GetSchedule(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunAt)
	require.NotNil(t, got.NextRunAt)
	assert.True(t, got.LastRunAt.Equal(last))
	assert.True(t, got.NextRunAt.Equal(next))

	require.NoError(t, s.SetScheduleActive(ctx, created.ID, false))
	got, err = s.GetSchedule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, s.DeleteSchedule(ctx, created.ID))
	_, err = s.GetSchedule(ctx, created.ID)
	assert.Error(t, err)
}

func TestSQLite_UpdateSchedule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	icp := seedICP(t, s)

	created, err := s.CreateSchedule(ctx, testScheduleInput(icp.ID))
	require.NoError(t, err)

	next := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	created.Name = "Daily Austin dentists"
	created.Frequency = model.FrequencyDaily
	created.MaxResults = 25
	created.AutoCreateCompanies = false
	created.NextRunAt = &next
	require.NoError(t, s.UpdateSchedule(ctx, *created))

	got, err := s.GetSchedule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daily Austin dentists", got.Name)
	assert.Equal(t, model.FrequencyDaily, got.Frequency)
	assert.Equal(t, 25, got.MaxResults)
	assert.False(t, got.AutoCreateCompanies)
	require.NotNil(t, got.NextRunAt)
	assert.True(t, got.NextRunAt.Equal(next))

	// Activity is not touched by field updates.
	assert.True(t, got.IsActive)
}

func TestSQLite_ListSchedulesActiveOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	icp := seedICP(t, s)

	active, err := s.CreateSchedule(ctx, testScheduleInput(icp.ID))
	require.NoError(t, err)

	inactive := testScheduleInput(icp.ID)
	inactive.Name = "Paused"
	inactive.IsActive = false
	_, err = s.CreateSchedule(ctx, inactive)
	require.NoError(t, err)

	all, err := s.ListSchedules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	actives, err := s.ListSchedules(ctx, true)
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, active.ID, actives[0].ID)
}

func TestSQLite_ScheduleNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	assert.Error(t, s.SetScheduleActive(ctx, "missing", true))
	assert.Error(t, s.UpdateScheduleRuns(ctx, "missing", &now, now))
	assert.Error(t, s.UpdateSchedule(ctx, model.Schedule{ID: "missing", Frequency: model.FrequencyDaily}))
	assert.Error(t, s.DeleteSchedule(ctx, "missing"))
}

func TestSQLite_CompanyExistsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateCompany(ctx, model.Company{
		OwnerID: "owner-1",
		Name:    "Austin Dental",
		Source:  "prospecting",
	})
	require.NoError(t, err)

	for _, name := range []string{"Austin Dental", "austin dental", "AUSTIN DENTAL"} {
		exists, err := s.CompanyExistsByName(ctx, "owner-1", name)
		require.NoError(t, err)
		assert.True(t, exists, "name %q", name)
	}

	exists, err := s.CompanyExistsByName(ctx, "owner-1", "Dallas Dental")
	require.NoError(t, err)
	assert.False(t, exists)

	// Same name under a different owner does not collide.
	exists, err = s.CompanyExistsByName(ctx, "owner-2", "Austin Dental")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLite_ListCompanies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateCompany(ctx, model.Company{
		OwnerID:     "owner-1",
		Name:        "Austin Dental",
		Phone:       "(512) 555-0100",
		Website:     "https://austindental.example",
		Source:      "prospecting",
		Description: "High priority prospect",
	})
	require.NoError(t, err)

	companies, err := s.ListCompanies(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Austin Dental", companies[0].Name)
	assert.Equal(t, "(512) 555-0100", companies[0].Phone)
	assert.Equal(t, "High priority prospect", companies[0].Description)

	other, err := s.ListCompanies(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLite_RunHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateProspectingRun(ctx, model.ProspectingRun{
		ICPID:      "icp-1",
		ScheduleID: "sched-1",
		Trigger:    "schedule",
	})
	require.NoError(t, err)
	assert.Equal(t, "running", run.Status)

	require.NoError(t, s.CompleteProspectingRun(ctx, run.ID, "complete", 12, ""))

	runs, err := s.ListProspectingRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "complete", runs[0].Status)
	assert.Equal(t, 12, runs[0].Count)
	assert.Equal(t, "schedule", runs[0].Trigger)
	require.NotNil(t, runs[0].CompletedAt)

	require.NoError(t, s.CompleteProspectingRun(ctx, run.ID, "failed", 0, "search quota exceeded"))
	runs, err = s.ListProspectingRuns(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "search quota exceeded", runs[0].Error)
}
