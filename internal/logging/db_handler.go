package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"

	"github.com/kippnorcal/zoom/internal/models"
)

// LogWriter persists log records.
type LogWriter interface {
	WriteLogs(ctx context.Context, logs []models.SyncLog) error
}

const dbBatchSize = 50

// dbCore is the state shared by a DBHandler and its derived handlers.
type dbCore struct {
	writer   LogWriter
	fallback *slog.Logger
	runID    atomic.Value

	mu     sync.Mutex
	buffer []models.SyncLog
	ticker *time.Ticker
	kick   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// DBHandler is an slog.Handler that batches WARN+ records into the sync log
// table, tagged with the current run id.
type DBHandler struct {
	core   *dbCore
	attrs  []slog.Attr
	prefix string
}

// NewDBHandler starts the flush loop. Flush failures are reported to
// fallback, which must not include this handler.
func NewDBHandler(writer LogWriter, fallback *slog.Logger) *DBHandler {
	c := &dbCore{
		writer:   writer,
		fallback: fallback,
		buffer:   make([]models.SyncLog, 0, dbBatchSize),
		ticker:   time.NewTicker(5 * time.Second),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	c.runID.Store("")
	c.wg.Add(1)
	go c.flushLoop()
	return &DBHandler{core: c}
}

// SetRun tags subsequent records with runID.
func (h *DBHandler) SetRun(runID string) {
	h.core.runID.Store(runID)
}

func (c *dbCore) flushLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ticker.C:
			c.flush()
		case <-c.kick:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *dbCore) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]models.SyncLog, 0, dbBatchSize)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.writer.WriteLogs(ctx, batch); err != nil && c.fallback != nil {
		c.fallback.Error("failed to flush sync logs to DB", "error", err, "count", len(batch))
	}
}

// Flush writes buffered records now.
func (h *DBHandler) Flush() {
	h.core.flush()
}

// Stop flushes what is buffered and ends the flush loop.
func (h *DBHandler) Stop() {
	h.core.ticker.Stop()
	close(h.core.done)
	h.core.wg.Wait()
}

// Enabled only handles WARN and above.
func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (h *DBHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SyncLog{
		RunID:     h.core.runID.Load().(string),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]any)
	apply := func(a slog.Attr) {
		switch a.Key {
		case "entity":
			entry.Entity = a.Value.String()
		case "op":
			entry.Op = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		default:
			extra[h.prefix+a.Key] = a.Value.Any()
		}
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		apply(a)
		return true
	})

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	c := h.core
	c.mu.Lock()
	c.buffer = append(c.buffer, entry)
	needFlush := len(c.buffer) >= dbBatchSize
	c.mu.Unlock()

	if needFlush {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &cp
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}
