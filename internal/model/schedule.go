package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Frequency controls how often a prospecting schedule fires.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// fireHour is the fixed local hour at which every schedule fires.
const fireHour = 9

// ParseFrequency validates a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(s), nil
	}
	return "", eris.Errorf("model: invalid frequency %q", s)
}

// CronSpec returns the cron expression for this frequency: daily at 09:00,
// weekly on Monday at 09:00, monthly on the 1st at 09:00.
func (f Frequency) CronSpec() string {
	switch f {
	case FrequencyWeekly:
		return "0 9 * * 1"
	case FrequencyMonthly:
		return "0 9 1 * *"
	default:
		return "0 9 * * *"
	}
}

// NextRun computes the informational next-run timestamp: one period after
// from, at 09:00. NextRun and CronSpec derive from the same frequency so the
// bookkeeping timestamp cannot drift from the registered trigger.
func (f Frequency) NextRun(from time.Time) time.Time {
	var next time.Time
	switch f {
	case FrequencyWeekly:
		next = from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		next = from.AddDate(0, 1, 0)
	default:
		next = from.AddDate(0, 0, 1)
	}
	return time.Date(next.Year(), next.Month(), next.Day(), fireHour, 0, 0, 0, from.Location())
}

// Schedule is a persisted recurring prospecting job for one ICP.
type Schedule struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	ICPID               string     `json:"icp_id"`
	Frequency           Frequency  `json:"frequency"`
	MaxResults          int        `json:"max_results"`
	AutoCreateCompanies bool       `json:"auto_create_companies"`
	IsActive            bool       `json:"is_active"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	NextRunAt           *time.Time `json:"next_run_at,omitempty"`
	OwnerID             string     `json:"owner_id"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Company is a CRM company record materialized from a prospect.
type Company struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Address     string    `json:"address,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProspectingRun records one orchestrator execution for run history.
type ProspectingRun struct {
	ID          string     `json:"id"`
	ICPID       string     `json:"icp_id"`
	ScheduleID  string     `json:"schedule_id,omitempty"`
	Trigger     string     `json:"trigger"` // "manual" or "schedule"
	Status      string     `json:"status"`  // "running", "complete", "failed"
	Count       int        `json:"count"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
