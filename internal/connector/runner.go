package connector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"

	"github.com/kippnorcal/zoom/internal/models"
	"github.com/kippnorcal/zoom/internal/notify"
)

// JobName identifies the connector in notifications.
const JobName = "Zoom Connector"

// ErrRunning is returned when a run is requested while another is active.
var ErrRunning = errors.New("a sync run is already in progress")

// RunStore records runs.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.SyncRun) error
	SaveRun(ctx context.Context, run *models.SyncRun) error
}

// Runner wraps an Orchestrator with run bookkeeping and notification. At most
// one run is active at a time.
type Runner struct {
	orch     *Orchestrator
	runs     RunStore
	notifier notify.Notifier
	onRun    []func(runID string)
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	active atomic.Bool
	wg     sync.WaitGroup
}

func NewRunner(orch *Orchestrator, runs RunStore, notifier notify.Notifier, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{orch: orch, runs: runs, notifier: notifier, logger: logger, now: time.Now}
}

// OnRun registers a callback told the id of each new run before it starts.
func (r *Runner) OnRun(fn func(runID string)) {
	r.onRun = append(r.onRun, fn)
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	return r.active.Load()
}

// Run performs one sync run. The returned run is recorded even when the
// sync fails; err is the sync failure.
func (r *Runner) Run(ctx context.Context, trigger string) (*models.SyncRun, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunning
	}
	defer r.mu.Unlock()

	run, err := r.begin(ctx, trigger)
	if err != nil {
		return nil, err
	}
	return run, r.execute(ctx, run)
}

// Start records a new run and performs it in the background. The returned
// run is a snapshot taken before the sync starts.
func (r *Runner) Start(ctx context.Context, trigger string) (*models.SyncRun, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunning
	}
	run, err := r.begin(ctx, trigger)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	snapshot := *run

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.mu.Unlock()
		_ = r.execute(ctx, run)
	}()
	return &snapshot, nil
}

// Wait blocks until background runs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) begin(ctx context.Context, trigger string) (*models.SyncRun, error) {
	run := &models.SyncRun{
		StartedAt: r.now().UTC(),
		Status:    models.RunRunning,
		Trigger:   trigger,
	}
	if err := r.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	r.active.Store(true)
	for _, fn := range r.onRun {
		fn(run.ID)
	}
	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *models.SyncRun) error {
	defer r.active.Store(false)

	log := r.logger.With("run_id", run.ID, "trigger", run.Trigger)
	log.Info("sync run started", "entities", r.orch.Entities())

	report, runErr := r.orch.Run(ctx)

	finished := r.now().UTC()
	run.FinishedAt = &finished
	run.Status = models.RunSucceeded
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	}
	if stats, err := json.Marshal(report); err == nil {
		run.Stats = datatypes.JSON(stats)
	}

	// Record and report even when ctx was cancelled mid-run.
	bg := context.WithoutCancel(ctx)
	if err := r.runs.SaveRun(bg, run); err != nil {
		log.Error("failed to record run", "error", err)
	}

	if runErr != nil {
		log.Error("sync run failed", "failed_entity", report.Failed, "elapsed", report.Elapsed.String(), "error", runErr)
	} else {
		log.Info("sync run finished", "elapsed", report.Elapsed.String(), "records", report.Records())
	}

	if r.notifier != nil {
		outcome := notify.Outcome{
			JobName: JobName,
			RunID:   run.ID,
			Trigger: run.Trigger,
			Err:     runErr,
			Entity:  report.Failed,
			Elapsed: report.Elapsed,
			Records: report.Records(),
		}
		if err := r.notifier.Notify(bg, outcome); err != nil {
			log.Error("failed to send notification", "error", err)
		}
	}
	return runErr
}
