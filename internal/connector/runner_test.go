package connector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kippnorcal/zoom/internal/loader"
	"github.com/kippnorcal/zoom/internal/models"
)

func TestRunnerRecordsSuccessfulRun(t *testing.T) {
	s := newTestStore(t)
	notifier := &recordingNotifier{}
	orch := NewOrchestrator([]loader.Loader{&stubLoader{entity: "users", records: 4}}, discardLogger())
	runner := NewRunner(orch, s, notifier, discardLogger())

	var seen []string
	runner.OnRun(func(id string) { seen = append(seen, id) })

	run, err := runner.Run(context.Background(), "manual")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, []string{run.ID}, seen)

	stored, err := s.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, stored.Status)
	assert.Equal(t, "manual", stored.Trigger)
	assert.Empty(t, stored.Error)
	require.NotNil(t, stored.FinishedAt)

	var report Report
	require.NoError(t, json.Unmarshal(stored.Stats, &report))
	assert.Equal(t, map[string]int{"users": 4}, report.Records())

	outcomes := notifier.all()
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Failed())
	assert.Equal(t, JobName, outcomes[0].JobName)
	assert.Equal(t, run.ID, outcomes[0].RunID)
	assert.Equal(t, 4, outcomes[0].Records["users"])
}

func TestRunnerRecordsFailedRun(t *testing.T) {
	s := newTestStore(t)
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	orch := NewOrchestrator([]loader.Loader{
		&stubLoader{entity: "users"},
		&stubLoader{entity: "meetings", err: errors.New("zoom unavailable")},
	}, discardLogger())
	runner := NewRunner(orch, s, notifier, discardLogger())

	run, err := runner.Run(context.Background(), "schedule")
	require.Error(t, err)
	require.NotNil(t, run)

	stored, err := s.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, stored.Status)
	assert.Contains(t, stored.Error, "meetings")
	assert.Contains(t, stored.Error, "zoom unavailable")

	outcomes := notifier.all()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Failed())
	assert.Equal(t, "meetings", outcomes[0].Entity)
	assert.ErrorContains(t, outcomes[0].Err, "zoom unavailable")
}

func TestRunnerRejectsOverlappingRuns(t *testing.T) {
	s := newTestStore(t)
	block := make(chan struct{})
	orch := NewOrchestrator([]loader.Loader{&stubLoader{entity: "users", block: block}}, discardLogger())
	runner := NewRunner(orch, s, nil, discardLogger())

	started := make(chan string, 1)
	runner.OnRun(func(id string) { started <- id })

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background(), "schedule")
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not start")
	}

	_, err := runner.Run(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrRunning)

	close(block)
	require.NoError(t, <-done)

	runs, err := s.Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunnerRecordsCancelledRun(t *testing.T) {
	s := newTestStore(t)
	block := make(chan struct{})
	orch := NewOrchestrator([]loader.Loader{&stubLoader{entity: "users", block: block}}, discardLogger())
	runner := NewRunner(orch, s, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	runner.OnRun(func(string) { cancel() })

	run, err := runner.Run(ctx, "manual")
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := s.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, stored.Status)
}

func TestRunnerStartRunsInBackground(t *testing.T) {
	s := newTestStore(t)
	block := make(chan struct{})
	orch := NewOrchestrator([]loader.Loader{&stubLoader{entity: "users", records: 1, block: block}}, discardLogger())
	runner := NewRunner(orch, s, nil, discardLogger())

	run, err := runner.Start(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, run.Status)
	assert.True(t, runner.Running())

	_, err = runner.Start(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrRunning)

	close(block)
	runner.Wait()
	assert.False(t, runner.Running())

	stored, err := s.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, stored.Status)
}

func TestScheduleRunsUntilCancelled(t *testing.T) {
	s := newTestStore(t)
	runner := NewRunner(NewOrchestrator([]loader.Loader{&stubLoader{entity: "users"}}, discardLogger()), s, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Schedule(ctx, runner, 10*time.Millisecond, discardLogger())
		close(done)
	}()

	require.Eventually(t, func() bool {
		runs, err := s.Runs(context.Background(), 10)
		return err == nil && len(runs) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	runs, err := s.Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "schedule", runs[0].Trigger)
}
