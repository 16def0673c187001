package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kippnorcal/zoom/internal/config"
	"github.com/kippnorcal/zoom/internal/connector"
	"github.com/kippnorcal/zoom/internal/notify"
)

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []notify.Outcome
}

func (r *recordingNotifier) Notify(_ context.Context, o notify.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *recordingNotifier) all() []notify.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Outcome(nil), r.outcomes...)
}

func sqliteConfig(path string) *config.Config {
	return &config.Config{
		DBType:            "sqlite",
		DBName:            path,
		ZoomKey:           "key",
		ZoomSecret:        "secret",
		ZoomBaseURL:       "http://127.0.0.1:1",
		ZoomPageSize:      300,
		SyncUsers:         true,
		SyncMeetings:      true,
		RetryAttempts:     3,
		MeetingWindowDays: 30,
		Timezone:          "UTC",
		StudentGroup:      "Students",
	}
}

func TestBootstrapNotifiesWhenTheDatabaseCannotOpen(t *testing.T) {
	notifier := &recordingNotifier{}
	cfg := sqliteConfig(filepath.Join(t.TempDir(), "missing", "zoom.db"))

	svc, err := bootstrap(context.Background(), cfg, "cli", notifier)

	require.Error(t, err)
	assert.Nil(t, svc)
	outcomes := notifier.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, connector.JobName, outcomes[0].JobName)
	assert.Equal(t, "cli", outcomes[0].Trigger)
	assert.True(t, outcomes[0].Failed())
	assert.ErrorContains(t, outcomes[0].Err, "connect sqlite database")
}

func TestBootstrapNotifiesInvalidConfiguration(t *testing.T) {
	notifier := &recordingNotifier{}
	cfg := sqliteConfig(filepath.Join(t.TempDir(), "zoom.db"))
	cfg.ZoomKey = ""

	_, err := bootstrap(context.Background(), cfg, "serve", notifier)

	require.Error(t, err)
	outcomes := notifier.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "serve", outcomes[0].Trigger)
	assert.ErrorContains(t, outcomes[0].Err, "ZOOM_KEY and ZOOM_SECRET are required")
}

func TestBootstrapSucceedsWithoutNotifying(t *testing.T) {
	before := slog.Default()
	notifier := &recordingNotifier{}
	cfg := sqliteConfig(filepath.Join(t.TempDir(), "zoom.db"))

	svc, err := bootstrap(context.Background(), cfg, "cli", notifier)
	require.NoError(t, err)
	require.NotNil(t, svc.runner)
	assert.NotEmpty(t, svc.orch.Entities())
	svc.close()

	assert.Empty(t, notifier.all())
	assert.Same(t, before, slog.Default(), "close restores the default logger")
}

func TestNewNotifierSkipsABrokenMailer(t *testing.T) {
	cfg := sqliteConfig("")
	cfg.MailEnabled = true

	assert.Empty(t, newNotifier(cfg, false))
}
