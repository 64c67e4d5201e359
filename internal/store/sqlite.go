package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospecting-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS icps (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS schedules (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	icp_id                TEXT NOT NULL REFERENCES icps(id),
	frequency             TEXT NOT NULL,
	max_results           INTEGER NOT NULL,
	auto_create_companies INTEGER NOT NULL DEFAULT 0,
	is_active             INTEGER NOT NULL DEFAULT 1,
	last_run_at           DATETIME,
	next_run_at           DATETIME,
	owner_id              TEXT NOT NULL DEFAULT '',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	phone       TEXT,
	website     TEXT,
	address     TEXT,
	industry    TEXT,
	source      TEXT NOT NULL,
	description TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS prospecting_runs (
	id           TEXT PRIMARY KEY,
	icp_id       TEXT NOT NULL,
	schedule_id  TEXT,
	trigger_kind TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	count        INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_schedules_active ON schedules(is_active);
CREATE INDEX IF NOT EXISTS idx_companies_owner_name ON companies(owner_id, name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON prospecting_runs(started_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveICP(ctx context.Context, icp model.ICP) error {
	data, err := json.Marshal(icp)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal icp")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO icps (id, owner_id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, data = excluded.data, updated_at = excluded.updated_at`,
		icp.ID, icp.OwnerID, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save icp %s", icp.ID)
}

func (s *SQLiteStore) GetICP(ctx context.Context, id string) (*model.ICP, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM icps WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: icp %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get icp %s", id)
	}

	var icp model.ICP
	if err := json.Unmarshal([]byte(data), &icp); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal icp %s", id)
	}
	return &icp, nil
}

func (s *SQLiteStore) ListICPs(ctx context.Context) ([]model.ICP, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM icps ORDER BY updated_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list icps")
	}
	defer rows.Close()

	var icps []model.ICP
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan icp")
		}
		var icp model.ICP
		if err := json.Unmarshal([]byte(data), &icp); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal icp")
		}
		icps = append(icps, icp)
	}
	return icps, eris.Wrap(rows.Err(), "sqlite: iterate icps")
}

func (s *SQLiteStore) CreateSchedule(ctx context.Context, sched model.Schedule) (*model.Schedule, error) {
	if sched.ID == "" {
		sched.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sched.CreatedAt = now
	sched.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (id, name, icp_id, frequency, max_results, auto_create_companies, is_active, last_run_at, next_run_at, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.Name, sched.ICPID, string(sched.Frequency), sched.MaxResults,
		sched.AutoCreateCompanies, sched.IsActive, nullTime(sched.LastRunAt), nullTime(sched.NextRunAt),
		sched.OwnerID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert schedule")
	}
	return &sched, nil
}

const sqliteScheduleColumns = `id, name, icp_id, frequency, max_results, auto_create_companies, is_active, last_run_at, next_run_at, owner_id, created_at, updated_at`

func (s *SQLiteStore) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteScheduleColumns+` FROM schedules WHERE id = ?`, id)
	sched, err := scanScheduleSQL(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: schedule %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get schedule %s", id)
	}
	return sched, nil
}

func (s *SQLiteStore) ListSchedules(ctx context.Context, activeOnly bool) ([]model.Schedule, error) {
	query := `SELECT ` + sqliteScheduleColumns + ` FROM schedules ORDER BY created_at`
	if activeOnly {
		query = `SELECT ` + sqliteScheduleColumns + ` FROM schedules WHERE is_active = 1 ORDER BY created_at`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list schedules")
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sched, err := scanScheduleSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan schedule")
		}
		schedules = append(schedules, *sched)
	}
	return schedules, eris.Wrap(rows.Err(), "sqlite: iterate schedules")
}

func (s *SQLiteStore) UpdateSchedule(ctx context.Context, sched model.Schedule) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET name = ?, frequency = ?, max_results = ?, auto_create_companies = ?, owner_id = ?, next_run_at = ?, updated_at = ? WHERE id = ?`,
		sched.Name, string(sched.Frequency), sched.MaxResults, sched.AutoCreateCompanies,
		sched.OwnerID, nullTime(sched.NextRunAt), time.Now().UTC(), sched.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update schedule %s", sched.ID)
	}
	return checkRowsAffected(res, "schedule", sched.ID)
}

func (s *SQLiteStore) SetScheduleActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set schedule active %s", id)
	}
	return checkRowsAffected(res, "schedule", id)
}

func (s *SQLiteStore) UpdateScheduleRuns(ctx context.Context, id string, lastRun *time.Time, nextRun time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_run_at = ?, next_run_at = ?, updated_at = ? WHERE id = ?`,
		nullTime(lastRun), nextRun.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update schedule runs %s", id)
	}
	return checkRowsAffected(res, "schedule", id)
}

func (s *SQLiteStore) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete schedule %s", id)
	}
	return checkRowsAffected(res, "schedule", id)
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, company model.Company) (*model.Company, error) {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	company.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, owner_id, name, phone, website, address, industry, source, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		company.ID, company.OwnerID, company.Name, company.Phone, company.Website,
		company.Address, company.Industry, company.Source, company.Description, company.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert company")
	}
	return &company, nil
}

func (s *SQLiteStore) CompanyExistsByName(ctx context.Context, ownerID, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM companies WHERE owner_id = ? AND lower(name) = ?`,
		ownerID, strings.ToLower(name),
	).Scan(&count)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: company exists %s", name)
	}
	return count > 0, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, ownerID string) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, phone, website, address, industry, source, description, created_at
		 FROM companies WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var phone, website, address, industry, description sql.NullString
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &phone, &website, &address, &industry, &c.Source, &description, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		c.Phone = phone.String
		c.Website = website.String
		c.Address = address.String
		c.Industry = industry.String
		c.Description = description.String
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func (s *SQLiteStore) CreateProspectingRun(ctx context.Context, run model.ProspectingRun) (*model.ProspectingRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = "running"
	}
	run.StartedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prospecting_runs (id, icp_id, schedule_id, trigger_kind, status, count, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ICPID, run.ScheduleID, run.Trigger, run.Status, run.Count, run.Error, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) CompleteProspectingRun(ctx context.Context, id, status string, count int, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prospecting_runs SET status = ?, count = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, count, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", id)
	}
	return checkRowsAffected(res, "run", id)
}

func (s *SQLiteStore) ListProspectingRuns(ctx context.Context, limit int) ([]model.ProspectingRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, icp_id, schedule_id, trigger_kind, status, count, error, started_at, completed_at
		 FROM prospecting_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ProspectingRun
	for rows.Next() {
		var r model.ProspectingRun
		var scheduleID, errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.ICPID, &scheduleID, &r.Trigger, &r.Status, &r.Count, &errMsg, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.ScheduleID = scheduleID.String
		r.Error = errMsg.String
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduleSQL(row rowScanner) (*model.Schedule, error) {
	var sched model.Schedule
	var frequency string
	var lastRun, nextRun sql.NullTime

	err := row.Scan(&sched.ID, &sched.Name, &sched.ICPID, &frequency, &sched.MaxResults,
		&sched.AutoCreateCompanies, &sched.IsActive, &lastRun, &nextRun,
		&sched.OwnerID, &sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sched.Frequency = model.Frequency(frequency)
	if lastRun.Valid {
		t := lastRun.Time
		sched.LastRunAt = &t
	}
	if nextRun.Valid {
		t := nextRun.Time
		sched.NextRunAt = &t
	}
	return &sched, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}
