// Package scheduler runs recurring prospecting jobs on cron triggers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/internal/prospecting"
	"github.com/sells-group/prospecting-cli/internal/store"
)

// fireTimeout bounds one scheduled run end to end.
const fireTimeout = 30 * time.Minute

// Runner executes a prospecting run. Satisfied by *prospecting.Engine.
type Runner interface {
	Run(ctx context.Context, icp model.ICP, maxResults int) (*prospecting.RunResult, error)
}

// CompanyCreator materializes prospects into companies. Satisfied by
// *materialize.Materializer.
type CompanyCreator interface {
	Materialize(ctx context.Context, prospects []model.Prospect, icp model.ICP, ownerID string) (int, error)
}

// Manager owns the cron runtime and keeps registered triggers in sync with
// persisted schedules. Fire failures never propagate; they are logged and
// recorded on the run row so the trigger stays alive for the next period.
type Manager struct {
	cron    *cron.Cron
	store   store.Store
	runner  Runner
	creator CompanyCreator

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a Manager.
func New(st store.Store, runner Runner, creator CompanyCreator) *Manager {
	return &Manager{
		cron:    cron.New(),
		store:   st,
		runner:  runner,
		creator: creator,
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers all active schedules and starts the cron runtime. A
// schedule with a missing or stale next-run timestamp gets it recomputed from
// now; the cron trigger itself is what actually fires.
func (m *Manager) Start(ctx context.Context) error {
	schedules, err := m.store.ListSchedules(ctx, true)
	if err != nil {
		return eris.Wrap(err, "scheduler: list active schedules")
	}

	now := time.Now()
	for _, sched := range schedules {
		if err := m.Register(sched); err != nil {
			zap.L().Error("scheduler: register failed",
				zap.String("schedule_id", sched.ID),
				zap.Error(err),
			)
			continue
		}

		if sched.NextRunAt == nil || sched.NextRunAt.Before(now) {
			next := sched.Frequency.NextRun(now)
			if err := m.store.UpdateScheduleRuns(ctx, sched.ID, sched.LastRunAt, next); err != nil {
				zap.L().Warn("scheduler: recompute next run failed",
					zap.String("schedule_id", sched.ID),
					zap.Error(err),
				)
			}
		}
	}

	m.cron.Start()
	zap.L().Info("scheduler: started", zap.Int("schedules", len(schedules)))
	return nil
}

// Stop halts the cron runtime and waits for any in-flight fire to finish.
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
	zap.L().Info("scheduler: stopped")
}

// Register adds a cron trigger for the schedule, replacing any existing one.
func (m *Manager) Register(sched model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.entries[sched.ID]; ok {
		m.cron.Remove(entryID)
		delete(m.entries, sched.ID)
	}

	id := sched.ID
	entryID, err := m.cron.AddFunc(sched.Frequency.CronSpec(), func() { m.fire(id) })
	if err != nil {
		return eris.Wrapf(err, "scheduler: add trigger for %s", sched.ID)
	}

	m.entries[sched.ID] = entryID
	zap.L().Debug("scheduler: registered",
		zap.String("schedule_id", sched.ID),
		zap.String("cron", sched.Frequency.CronSpec()),
	)
	return nil
}

// Unregister removes the schedule's trigger if present.
func (m *Manager) Unregister(scheduleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.entries[scheduleID]; ok {
		m.cron.Remove(entryID)
		delete(m.entries, scheduleID)
	}
}

// Apply syncs one schedule's trigger with its persisted state: active
// schedules get (re)registered, inactive ones removed.
func (m *Manager) Apply(sched model.Schedule) error {
	if !sched.IsActive {
		m.Unregister(sched.ID)
		return nil
	}
	return m.Register(sched)
}

// Registered reports whether a trigger exists for the schedule.
func (m *Manager) Registered(scheduleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[scheduleID]
	return ok
}

// fire executes one scheduled prospecting run.
func (m *Manager) fire(scheduleID string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("scheduler: fire panicked",
				zap.String("schedule_id", scheduleID),
				zap.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	sched, err := m.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		zap.L().Error("scheduler: load schedule failed",
			zap.String("schedule_id", scheduleID),
			zap.Error(err),
		)
		return
	}
	if !sched.IsActive {
		m.Unregister(scheduleID)
		return
	}

	icp, err := m.store.GetICP(ctx, sched.ICPID)
	if err != nil {
		zap.L().Error("scheduler: load icp failed",
			zap.String("schedule_id", scheduleID),
			zap.String("icp_id", sched.ICPID),
			zap.Error(err),
		)
		return
	}

	run, err := m.store.CreateProspectingRun(ctx, model.ProspectingRun{
		ICPID:      sched.ICPID,
		ScheduleID: sched.ID,
		Trigger:    "schedule",
	})
	if err != nil {
		zap.L().Error("scheduler: record run failed",
			zap.String("schedule_id", scheduleID),
			zap.Error(err),
		)
		return
	}

	zap.L().Info("scheduler: firing",
		zap.String("schedule_id", sched.ID),
		zap.String("icp", icp.Name),
	)

	result, err := m.runner.Run(ctx, *icp, sched.MaxResults)
	if err != nil {
		zap.L().Error("scheduler: run failed",
			zap.String("schedule_id", sched.ID),
			zap.Error(err),
		)
		m.completeRun(ctx, run.ID, "failed", 0, err.Error())
		m.reschedule(ctx, sched)
		return
	}

	if sched.AutoCreateCompanies {
		if _, err := m.creator.Materialize(ctx, result.Prospects, *icp, sched.OwnerID); err != nil {
			zap.L().Error("scheduler: materialize failed",
				zap.String("schedule_id", sched.ID),
				zap.Error(err),
			)
		}
	}

	m.completeRun(ctx, run.ID, "complete", result.Count, "")
	m.advance(ctx, sched)
}

func (m *Manager) completeRun(ctx context.Context, runID, status string, count int, errMsg string) {
	if err := m.store.CompleteProspectingRun(ctx, runID, status, count, errMsg); err != nil {
		zap.L().Warn("scheduler: complete run failed",
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
}

// advance stamps last-run and the informational next-run timestamps.
func (m *Manager) advance(ctx context.Context, sched *model.Schedule) {
	now := time.Now()
	next := sched.Frequency.NextRun(now)
	if err := m.store.UpdateScheduleRuns(ctx, sched.ID, &now, next); err != nil {
		zap.L().Warn("scheduler: update run timestamps failed",
			zap.String("schedule_id", sched.ID),
			zap.Error(err),
		)
	}
}

// reschedule recomputes only the next-run timestamp after a failed fire.
// LastRunAt marks the last completed run, so it is left untouched.
func (m *Manager) reschedule(ctx context.Context, sched *model.Schedule) {
	next := sched.Frequency.NextRun(time.Now())
	if err := m.store.UpdateScheduleRuns(ctx, sched.ID, sched.LastRunAt, next); err != nil {
		zap.L().Warn("scheduler: update run timestamps failed",
			zap.String("schedule_id", sched.ID),
			zap.Error(err),
		)
	}
}
