package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospecting-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetSchedule_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM schedules WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSchedule(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSchedule(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	last := now.Add(-24 * time.Hour)
	next := now.Add(24 * time.Hour)

	mock.ExpectQuery(`SELECT .+ FROM schedules WHERE id = \$1`).
		WithArgs("sched-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "icp_id", "frequency", "max_results", "auto_create_companies",
			"is_active", "last_run_at", "next_run_at", "owner_id", "created_at", "updated_at",
		}).AddRow("sched-1", "Daily dentists", "icp-1", "daily", 10, true, true, &last, &next, "owner-1", now, now))

	sched, err := s.GetSchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.Equal(t, "Daily dentists", sched.Name)
	assert.Equal(t, model.FrequencyDaily, sched.Frequency)
	assert.True(t, sched.AutoCreateCompanies)
	require.NotNil(t, sched.LastRunAt)
	assert.True(t, sched.LastRunAt.Equal(last))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompanyExistsByName_LowercasesName(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM companies WHERE owner_id = \$1 AND lower\(name\) = \$2`).
		WithArgs("owner-1", "austin dental").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := s.CompanyExistsByName(context.Background(), "owner-1", "Austin DENTAL")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCompany(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO companies`).
		WithArgs(pgxmock.AnyArg(), "owner-1", "Austin Dental", "", "https://austindental.example",
			"", "", "prospecting", "desc", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	company, err := s.CreateCompany(context.Background(), model.Company{
		OwnerID:     "owner-1",
		Name:        "Austin Dental",
		Website:     "https://austindental.example",
		Source:      "prospecting",
		Description: "desc",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, company.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSchedule(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	next := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE schedules SET name = \$1, frequency = \$2, max_results = \$3`).
		WithArgs("Daily dentists", "daily", 25, true, "owner-1", &next, pgxmock.AnyArg(), "sched-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateSchedule(context.Background(), model.Schedule{
		ID:                  "sched-1",
		Name:                "Daily dentists",
		Frequency:           model.FrequencyDaily,
		MaxResults:          25,
		AutoCreateCompanies: true,
		OwnerID:             "owner-1",
		NextRunAt:           &next,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSchedule_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE schedules SET name = \$1, frequency = \$2, max_results = \$3`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateSchedule(context.Background(), model.Schedule{ID: "missing", Frequency: model.FrequencyDaily})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateScheduleRuns_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE schedules SET last_run_at = \$1, next_run_at = \$2`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	now := time.Now()
	err := s.UpdateScheduleRuns(context.Background(), "missing", &now, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteProspectingRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE prospecting_runs SET status = \$1, count = \$2, error = \$3`).
		WithArgs("complete", 7, "", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteProspectingRun(context.Background(), "run-1", "complete", 7, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}
