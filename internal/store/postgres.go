package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospecting-cli/internal/db"
	"github.com/sells-group/prospecting-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"save_icp":             `INSERT INTO icps (id, owner_id, data, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO UPDATE SET owner_id = EXCLUDED.owner_id, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	"get_icp":              `SELECT data FROM icps WHERE id = $1`,
	"get_schedule":         `SELECT id, name, icp_id, frequency, max_results, auto_create_companies, is_active, last_run_at, next_run_at, owner_id, created_at, updated_at FROM schedules WHERE id = $1`,
	"update_schedule_runs": `UPDATE schedules SET last_run_at = $1, next_run_at = $2, updated_at = $3 WHERE id = $4`,
	"company_exists":       `SELECT COUNT(1) FROM companies WHERE owner_id = $1 AND lower(name) = $2`,
	"insert_company":       `INSERT INTO companies (id, owner_id, name, phone, website, address, industry, source, description, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS icps (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL DEFAULT '',
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schedules (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name                  TEXT NOT NULL,
	icp_id                TEXT NOT NULL REFERENCES icps(id),
	frequency             TEXT NOT NULL,
	max_results           INTEGER NOT NULL,
	auto_create_companies BOOLEAN NOT NULL DEFAULT false,
	is_active             BOOLEAN NOT NULL DEFAULT true,
	last_run_at           TIMESTAMPTZ,
	next_run_at           TIMESTAMPTZ,
	owner_id              TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner_id    TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	phone       TEXT,
	website     TEXT,
	address     TEXT,
	industry    TEXT,
	source      TEXT NOT NULL,
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prospecting_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	icp_id       TEXT NOT NULL,
	schedule_id  TEXT,
	trigger_kind TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	count        INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_schedules_active ON schedules(is_active);
CREATE INDEX IF NOT EXISTS idx_companies_owner_lower_name ON companies(owner_id, lower(name));
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON prospecting_runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveICP(ctx context.Context, icp model.ICP) error {
	data, err := json.Marshal(icp)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal icp")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO icps (id, owner_id, data, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET owner_id = EXCLUDED.owner_id, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		icp.ID, icp.OwnerID, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save icp %s", icp.ID)
}

func (s *PostgresStore) GetICP(ctx context.Context, id string) (*model.ICP, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM icps WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: icp %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get icp %s", id)
	}

	var icp model.ICP
	if err := json.Unmarshal(data, &icp); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal icp %s", id)
	}
	return &icp, nil
}

func (s *PostgresStore) ListICPs(ctx context.Context) ([]model.ICP, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM icps ORDER BY updated_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list icps")
	}
	defer rows.Close()

	var icps []model.ICP
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan icp")
		}
		var icp model.ICP
		if err := json.Unmarshal(data, &icp); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal icp")
		}
		icps = append(icps, icp)
	}
	return icps, eris.Wrap(rows.Err(), "postgres: iterate icps")
}

func (s *PostgresStore) CreateSchedule(ctx context.Context, sched model.Schedule) (*model.Schedule, error) {
	if sched.ID == "" {
		sched.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sched.CreatedAt = now
	sched.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO schedules (id, name, icp_id, frequency, max_results, auto_create_companies, is_active, last_run_at, next_run_at, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sched.ID, sched.Name, sched.ICPID, string(sched.Frequency), sched.MaxResults,
		sched.AutoCreateCompanies, sched.IsActive, sched.LastRunAt, sched.NextRunAt,
		sched.OwnerID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert schedule")
	}
	return &sched, nil
}

const pgScheduleColumns = `id, name, icp_id, frequency, max_results, auto_create_companies, is_active, last_run_at, next_run_at, owner_id, created_at, updated_at`

func (s *PostgresStore) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgScheduleColumns+` FROM schedules WHERE id = $1`, id)
	sched, err := scanSchedulePG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: schedule %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get schedule %s", id)
	}
	return sched, nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context, activeOnly bool) ([]model.Schedule, error) {
	query := `SELECT ` + pgScheduleColumns + ` FROM schedules ORDER BY created_at`
	if activeOnly {
		query = `SELECT ` + pgScheduleColumns + ` FROM schedules WHERE is_active ORDER BY created_at`
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schedules")
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sched, err := scanSchedulePG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan schedule")
		}
		schedules = append(schedules, *sched)
	}
	return schedules, eris.Wrap(rows.Err(), "postgres: iterate schedules")
}

func (s *PostgresStore) UpdateSchedule(ctx context.Context, sched model.Schedule) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET name = $1, frequency = $2, max_results = $3, auto_create_companies = $4, owner_id = $5, next_run_at = $6, updated_at = $7 WHERE id = $8`,
		sched.Name, string(sched.Frequency), sched.MaxResults, sched.AutoCreateCompanies,
		sched.OwnerID, sched.NextRunAt, time.Now().UTC(), sched.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update schedule %s", sched.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: schedule %s not found", sched.ID)
	}
	return nil
}

func (s *PostgresStore) SetScheduleActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set schedule active %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: schedule %s not found", id)
	}
	return nil
}

func (s *PostgresStore) UpdateScheduleRuns(ctx context.Context, id string, lastRun *time.Time, nextRun time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET last_run_at = $1, next_run_at = $2, updated_at = $3 WHERE id = $4`,
		lastRun, nextRun.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update schedule runs %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: schedule %s not found", id)
	}
	return nil
}

func (s *PostgresStore) DeleteSchedule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete schedule %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: schedule %s not found", id)
	}
	return nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, company model.Company) (*model.Company, error) {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	company.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, owner_id, name, phone, website, address, industry, source, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		company.ID, company.OwnerID, company.Name, company.Phone, company.Website,
		company.Address, company.Industry, company.Source, company.Description, company.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert company")
	}
	return &company, nil
}

func (s *PostgresStore) CompanyExistsByName(ctx context.Context, ownerID, name string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM companies WHERE owner_id = $1 AND lower(name) = $2`,
		ownerID, strings.ToLower(name),
	).Scan(&count)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: company exists %s", name)
	}
	return count > 0, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, ownerID string) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, phone, website, address, industry, source, description, created_at
		 FROM companies WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var phone, website, address, industry, description *string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &phone, &website, &address, &industry, &c.Source, &description, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		c.Phone = deref(phone)
		c.Website = deref(website)
		c.Address = deref(address)
		c.Industry = deref(industry)
		c.Description = deref(description)
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func (s *PostgresStore) CreateProspectingRun(ctx context.Context, run model.ProspectingRun) (*model.ProspectingRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = "running"
	}
	run.StartedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO prospecting_runs (id, icp_id, schedule_id, trigger_kind, status, count, error, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.ICPID, run.ScheduleID, run.Trigger, run.Status, run.Count, run.Error, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) CompleteProspectingRun(ctx context.Context, id, status string, count int, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prospecting_runs SET status = $1, count = $2, error = $3, completed_at = $4 WHERE id = $5`,
		status, count, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ListProspectingRuns(ctx context.Context, limit int) ([]model.ProspectingRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, icp_id, schedule_id, trigger_kind, status, count, error, started_at, completed_at
		 FROM prospecting_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ProspectingRun
	for rows.Next() {
		var r model.ProspectingRun
		var scheduleID, errMsg *string
		var completedAt *time.Time
		if err := rows.Scan(&r.ID, &r.ICPID, &scheduleID, &r.Trigger, &r.Status, &r.Count, &errMsg, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.ScheduleID = deref(scheduleID)
		r.Error = deref(errMsg)
		r.CompletedAt = completedAt
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func scanSchedulePG(row pgx.Row) (*model.Schedule, error) {
	var sched model.Schedule
	var frequency string

	err := row.Scan(&sched.ID, &sched.Name, &sched.ICPID, &frequency, &sched.MaxResults,
		&sched.AutoCreateCompanies, &sched.IsActive, &sched.LastRunAt, &sched.NextRunAt,
		&sched.OwnerID, &sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sched.Frequency = model.Frequency(frequency)
	return &sched, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
