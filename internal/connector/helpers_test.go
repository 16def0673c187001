package connector

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kippnorcal/zoom/internal/loader"
	"github.com/kippnorcal/zoom/internal/notify"
	"github.com/kippnorcal/zoom/internal/retry"
	"github.com/kippnorcal/zoom/internal/store"
)

// stubLoader records when it ran and returns a fixed outcome.
type stubLoader struct {
	entity  string
	records int
	err     error
	order   *[]string
	block   chan struct{}
}

func (s *stubLoader) Entity() string { return s.entity }

func (s *stubLoader) Load(ctx context.Context) (loader.Result, error) {
	if s.order != nil {
		*s.order = append(*s.order, s.entity)
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return loader.Result{Entity: s.entity}, ctx.Err()
		}
	}
	return loader.Result{Entity: s.entity, Records: s.records}, s.err
}

// recordingNotifier keeps every outcome it is given.
type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []notify.Outcome
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, o notify.Outcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
	return n.err
}

func (n *recordingNotifier) all() []notify.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Outcome(nil), n.outcomes...)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "zoom.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := store.New(db, "")
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func testPolicy() *retry.Policy {
	return retry.New(
		retry.WithTimer(func() backoff.Timer { return &instantTimer{} }),
		retry.WithLogger(discardLogger()),
	)
}
