// Package cron fires gateway commands on a schedule. Jobs come from the
// config file and live in memory only.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/sipeed/twobot/pkg/api"
	"github.com/sipeed/twobot/pkg/config"
	"github.com/sipeed/twobot/pkg/logger"
)

const (
	KindCron  = "cron"
	KindEvery = "every"
)

// CronSchedule is either a five-field cron expression or a fixed interval.
type CronSchedule struct {
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	EveryMS *int64 `json:"everyMs,omitempty"`
}

type CronJobState struct {
	NextRunAt time.Time `json:"nextRunAt"`
	LastRunAt time.Time `json:"lastRunAt,omitempty"`
	LastOK    bool      `json:"lastOk"`
	LastError string    `json:"lastError,omitempty"`
	Runs      int       `json:"runs"`
}

// CronJob is one scheduled command. SelfID 0 sends it over the HTTP API;
// otherwise it goes out fire-and-forget on that bot's session.
type CronJob struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Schedule CronSchedule   `json:"schedule"`
	Action   string         `json:"action"`
	Params   map[string]any `json:"params,omitempty"`
	SelfID   int64          `json:"selfId,omitempty"`
	Post     bool           `json:"post,omitempty"`
	State    CronJobState   `json:"state"`
}

func (j *CronJob) mode() api.Mode {
	if j.SelfID == 0 {
		return api.SyncMode{Post: j.Post}
	}
	return api.AsyncMode{SelfID: j.SelfID}
}

// Invoker is the part of *api.Invoker the service needs.
type Invoker interface {
	Invoke(ctx context.Context, mode api.Mode, action string, params map[string]any) *api.Future
}

type CronService struct {
	invoker Invoker
	gron    *gronx.Gronx
	now     func() time.Time

	mu   sync.Mutex
	jobs []*CronJob
	wake chan struct{}
}

func NewCronService(invoker Invoker) *CronService {
	return &CronService{
		invoker: invoker,
		gron:    gronx.New(),
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
}

func (cs *CronService) validate(schedule CronSchedule) error {
	switch schedule.Kind {
	case KindCron:
		if !cs.gron.IsValid(schedule.Expr) {
			return fmt.Errorf("invalid cron expression %q", schedule.Expr)
		}
	case KindEvery:
		if schedule.EveryMS == nil || *schedule.EveryMS <= 0 {
			return errors.New("every schedule needs a positive everyMs")
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", schedule.Kind)
	}
	return nil
}

func nextRun(schedule CronSchedule, after time.Time) (time.Time, error) {
	if schedule.Kind == KindEvery {
		return after.Add(time.Duration(*schedule.EveryMS) * time.Millisecond), nil
	}
	return gronx.NextTickAfter(schedule.Expr, after, false)
}

// AddJob schedules action. The first run is the next tick after now.
func (cs *CronService) AddJob(name string, schedule CronSchedule, action string, params map[string]any, selfID int64, post bool) (*CronJob, error) {
	if action == "" {
		return nil, errors.New("action is required")
	}
	if err := cs.validate(schedule); err != nil {
		return nil, fmt.Errorf("job %q: %w", name, err)
	}
	next, err := nextRun(schedule, cs.now())
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", name, err)
	}

	job := &CronJob{
		ID:       uuid.NewString(),
		Name:     name,
		Schedule: schedule,
		Action:   action,
		Params:   params,
		SelfID:   selfID,
		Post:     post,
		State:    CronJobState{NextRunAt: next},
	}

	cs.mu.Lock()
	cs.jobs = append(cs.jobs, job)
	cs.mu.Unlock()
	cs.notify()

	logger.InfoCF("cron", "Job scheduled", map[string]any{
		"job":      name,
		"action":   action,
		"next_run": next.Format(time.RFC3339),
	})
	copied := *job
	return &copied, nil
}

// LoadConfig adds one job per configured schedule.
func (cs *CronService) LoadConfig(schedules []config.ScheduleConfig) error {
	var errs []error
	for i, sc := range schedules {
		schedule := CronSchedule{Kind: KindCron, Expr: sc.Cron}
		if sc.EveryMS > 0 {
			every := sc.EveryMS
			schedule = CronSchedule{Kind: KindEvery, EveryMS: &every}
		}
		name := sc.Name
		if name == "" {
			name = fmt.Sprintf("schedule-%d", i)
		}
		if _, err := cs.AddJob(name, schedule, sc.Action, sc.Params, sc.SelfID, sc.Post); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveJob unschedules the job with the given ID.
func (cs *CronService) RemoveJob(id string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for i, job := range cs.jobs {
		if job.ID == id {
			cs.jobs = append(cs.jobs[:i], cs.jobs[i+1:]...)
			return true
		}
	}
	return false
}

// ListJobs returns a snapshot of every job ordered by next run.
func (cs *CronService) ListJobs() []CronJob {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	jobs := make([]CronJob, 0, len(cs.jobs))
	for _, job := range cs.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].State.NextRunAt.Before(jobs[j].State.NextRunAt)
	})
	return jobs
}

func (cs *CronService) notify() {
	select {
	case cs.wake <- struct{}{}:
	default:
	}
}

func (cs *CronService) nextWake() (time.Time, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var next time.Time
	for _, job := range cs.jobs {
		if next.IsZero() || job.State.NextRunAt.Before(next) {
			next = job.State.NextRunAt
		}
	}
	return next, !next.IsZero()
}

// Run fires jobs as they come due until ctx is cancelled.
func (cs *CronService) Run(ctx context.Context) error {
	for {
		var timer *time.Timer
		var fire <-chan time.Time
		if next, ok := cs.nextWake(); ok {
			timer = time.NewTimer(max(next.Sub(cs.now()), 0))
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-cs.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			cs.runDue(ctx, cs.now())
		}
	}
}

// runDue fires every job whose next run is not after now and reschedules
// it. It returns the number of jobs fired.
func (cs *CronService) runDue(ctx context.Context, now time.Time) int {
	cs.mu.Lock()
	var due []*CronJob
	for _, job := range cs.jobs {
		if job.State.NextRunAt.After(now) {
			continue
		}
		next, err := nextRun(job.Schedule, now)
		if err != nil {
			logger.ErrorCF("cron", "Cannot compute next run", map[string]any{
				"job":   job.Name,
				"error": err.Error(),
			})
			next = now.Add(24 * time.Hour)
		}
		job.State.NextRunAt = next
		due = append(due, job)
	}
	cs.mu.Unlock()

	for _, job := range due {
		cs.fire(ctx, job, now)
	}
	return len(due)
}

func (cs *CronService) fire(ctx context.Context, job *CronJob, now time.Time) {
	res, err := cs.invoker.Invoke(ctx, job.mode(), job.Action, job.Params).Wait(ctx)

	cs.mu.Lock()
	job.State.LastRunAt = now
	job.State.Runs++
	job.State.LastOK = err == nil && res.OK
	job.State.LastError = ""
	switch {
	case err != nil:
		job.State.LastError = err.Error()
	case !res.OK:
		job.State.LastError = string(res.Data)
	}
	state := job.State
	cs.mu.Unlock()

	fields := map[string]any{
		"job":      job.Name,
		"action":   job.Action,
		"next_run": state.NextRunAt.Format(time.RFC3339),
	}
	if !state.LastOK {
		fields["error"] = state.LastError
		logger.WarnCF("cron", "Job failed", fields)
		return
	}
	logger.DebugCF("cron", "Job fired", fields)
}
