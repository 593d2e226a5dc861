// Package scheduler runs the periodic maintenance jobs of the services.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job is a named task with its own schedule.
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute(ctx context.Context)
}

type Manager struct {
	scheduler gocron.Scheduler
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewManager(log *zap.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{scheduler: s, log: log, ctx: ctx, cancel: cancel}, nil
}

// Register adds a job. A run still in progress when the next one is due
// pushes the next one back instead of overlapping it.
func (m *Manager) Register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(func() { job.Execute(m.ctx) }),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.GetName(), err)
	}
	m.log.Info("job registered", zap.String("job", job.GetName()))
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.log.Info("scheduler started", zap.Int("jobs", len(m.scheduler.Jobs())))
}

// Stop cancels running jobs and waits for them to return.
func (m *Manager) Stop() {
	m.cancel()
	if err := m.scheduler.Shutdown(); err != nil {
		m.log.Error("scheduler shutdown", zap.Error(err))
		return
	}
	m.log.Info("scheduler stopped")
}

// Repairer is the operation behind RepairJob.
type Repairer interface {
	Repair(ctx context.Context) (governance.RepairReport, error)
}

// RepairJob periodically re-derives member counts and leaders and clears
// dangling team references.
type RepairJob struct {
	repairer Repairer
	interval time.Duration
	log      *zap.Logger
}

func NewRepairJob(r Repairer, interval time.Duration, log *zap.Logger) *RepairJob {
	return &RepairJob{repairer: r, interval: interval, log: log}
}

func (j *RepairJob) GetName() string {
	return "governance_repair"
}

func (j *RepairJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *RepairJob) Execute(ctx context.Context) {
	start := time.Now()
	rep, err := j.repairer.Repair(ctx)
	if err != nil {
		j.log.Error("repair failed", zap.Error(err), zap.Int("teamsChecked", rep.TeamsChecked))
		return
	}
	j.log.Info("repair finished",
		zap.Int("teamsChecked", rep.TeamsChecked),
		zap.Int("countsFixed", rep.CountsFixed),
		zap.Int("teamsDissolved", rep.TeamsDissolved),
		zap.Int("leadersFixed", rep.LeadersFixed),
		zap.Int("danglingCleared", rep.DanglingCleared),
		zap.Duration("took", time.Since(start)),
	)
}
