// Package store persists schedules, materialized companies, ICP snapshots,
// and run history. Two backends are provided: SQLite for single-machine CLI
// use and Postgres for the long-running server.
package store

import (
	"context"
	"time"

	"github.com/sells-group/prospecting-cli/internal/model"
)

// Store defines the persistence interface for the prospecting pipeline.
type Store interface {
	// ICP snapshots. Schedules reference ICPs by ID; a snapshot is saved at
	// schedule creation so fires never depend on the external registry.
	SaveICP(ctx context.Context, icp model.ICP) error
	GetICP(ctx context.Context, id string) (*model.ICP, error)
	ListICPs(ctx context.Context) ([]model.ICP, error)

	// Schedules
	CreateSchedule(ctx context.Context, sched model.Schedule) (*model.Schedule, error)
	GetSchedule(ctx context.Context, id string) (*model.Schedule, error)
	ListSchedules(ctx context.Context, activeOnly bool) ([]model.Schedule, error)
	// UpdateSchedule rewrites the user-editable fields (name, frequency,
	// max results, auto-create, owner) and the next-run timestamp.
	UpdateSchedule(ctx context.Context, sched model.Schedule) error
	SetScheduleActive(ctx context.Context, id string, active bool) error
	UpdateScheduleRuns(ctx context.Context, id string, lastRun *time.Time, nextRun time.Time) error
	DeleteSchedule(ctx context.Context, id string) error

	// Companies
	CreateCompany(ctx context.Context, company model.Company) (*model.Company, error)
	CompanyExistsByName(ctx context.Context, ownerID, name string) (bool, error)
	ListCompanies(ctx context.Context, ownerID string) ([]model.Company, error)

	// Run history
	CreateProspectingRun(ctx context.Context, run model.ProspectingRun) (*model.ProspectingRun, error)
	CompleteProspectingRun(ctx context.Context, id, status string, count int, errMsg string) error
	ListProspectingRuns(ctx context.Context, limit int) ([]model.ProspectingRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
