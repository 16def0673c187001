// Package loader moves one entity type from the Zoom API into the store.
//
// Every entity is a Loader. Most are built from a Source, which knows how to
// plan the units of work for a run and fetch one page of a unit; the generic
// Loader supplies paging, retries, persistence and the run bookkeeping.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kippnorcal/zoom/internal/pager"
	"github.com/kippnorcal/zoom/internal/retry"
	"github.com/kippnorcal/zoom/internal/syncerr"
)

// Mode is the persistence lifecycle of an entity.
type Mode int

const (
	// FullReplace drops the table and reloads every record.
	FullReplace Mode = iota
	// AppendOnly adds the records past the watermark.
	AppendOnly
)

func (m Mode) String() string {
	if m == FullReplace {
		return "full_replace"
	}
	return "append_only"
}

// State names the steps of a load. They are logged at DEBUG.
type State string

const (
	StateInit        State = "init"
	StateDropOrSkip  State = "drop_or_skip"
	StateFetching    State = "fetching"
	StateRateLimited State = "rate_limited"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
)

// Unit is one independently fetched slice of an entity: a parent key, a date
// window, or the whole listing when both are empty.
type Unit struct {
	Key  string
	From time.Time
	To   time.Time
}

func (u Unit) String() string {
	switch {
	case u.Key != "":
		return u.Key
	case !u.From.IsZero():
		return u.From.Format(time.DateOnly) + ".." + u.To.Format(time.DateOnly)
	default:
		return "all"
	}
}

// Result summarizes one load. Counts are informational.
type Result struct {
	Entity  string        `json:"entity"`
	Units   int           `json:"units"`
	Pages   int           `json:"pages"`
	Records int           `json:"records"`
	Skipped bool          `json:"skipped,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Loader loads one entity.
type Loader interface {
	Entity() string
	Load(ctx context.Context) (Result, error)
}

// Source adapts one remote resource to the generic loader.
type Source[T any] interface {
	// Plan lists the units to fetch this run. An empty plan means the entity
	// is up to date.
	Plan(ctx context.Context) ([]Unit, error)
	// Fetch returns one page of unit and the state of the next page.
	Fetch(ctx context.Context, unit Unit, state pager.State) ([]T, pager.State, error)
	// Normalize attaches foreign keys and fixes up records before they are
	// written.
	Normalize(unit Unit, records []T) []T
}

// Store is the persistence the generic loader needs.
type Store interface {
	Drop(ctx context.Context, table string) error
	Ensure(ctx context.Context, table string, model any) error
	Insert(ctx context.Context, table string, rows any) error
	Append(ctx context.Context, table string, model, rows any) error
}

// Spec names an entity and how it is stored and paged.
type Spec struct {
	Entity string
	Table  string
	Mode   Mode
	Style  pager.Style
}

// Generic is the Loader for entities described by a Source.
type Generic[T any] struct {
	spec   Spec
	source Source[T]
	store  Store
	policy *retry.Policy
	logger *slog.Logger
}

// New builds a Loader for spec.
func New[T any](spec Spec, source Source[T], store Store, policy *retry.Policy, logger *slog.Logger) *Generic[T] {
	if policy == nil {
		policy = retry.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generic[T]{
		spec:   spec,
		source: source,
		store:  store,
		policy: policy,
		logger: logger.With("entity", spec.Entity),
	}
}

func (l *Generic[T]) Entity() string {
	return l.spec.Entity
}

func (l *Generic[T]) Load(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{Entity: l.spec.Entity}
	l.enter(StateInit, "mode", l.spec.Mode.String(), "table", l.spec.Table)

	units, err := l.source.Plan(ctx)
	if err != nil {
		return res, fmt.Errorf("plan %s: %w", l.spec.Entity, err)
	}

	l.enter(StateDropOrSkip, "units", len(units))
	switch l.spec.Mode {
	case FullReplace:
		if err := l.store.Drop(ctx, l.spec.Table); err != nil {
			return res, fmt.Errorf("drop %s: %w", l.spec.Table, err)
		}
		if err := l.store.Ensure(ctx, l.spec.Table, new(T)); err != nil {
			return res, fmt.Errorf("create %s: %w", l.spec.Table, err)
		}
	case AppendOnly:
		if len(units) == 0 {
			res.Skipped = true
			res.Elapsed = time.Since(start)
			l.logger.Info("entity up to date", "table", l.spec.Table)
			l.enter(StateDone, "records", 0)
			return res, nil
		}
	}

	for _, unit := range units {
		pages, records, err := l.loadUnit(ctx, unit)
		res.Pages += pages
		res.Records += records
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("load %s %s: %w", l.spec.Entity, unit, err)
		}
		res.Units++
	}

	res.Elapsed = time.Since(start)
	l.enter(StateDone, "records", res.Records)
	l.logger.Info("entity loaded",
		"table", l.spec.Table,
		"units", res.Units,
		"pages", res.Pages,
		"records", res.Records,
	)
	return res, nil
}

// loadUnit walks every page of unit. Full-replace entities are written page
// by page into the freshly created table; append-only entities are written
// once, after the last page, so a failed unit leaves no partial rows behind.
func (l *Generic[T]) loadUnit(ctx context.Context, unit Unit) (pages, records int, err error) {
	l.enter(StateFetching, "unit", unit.String())

	cursor := pager.New(l.fetcher(unit), pager.First(l.spec.Style))
	var pending []T
	for cursor.Next(ctx) {
		batch := cursor.Batch()
		if len(batch) == 0 {
			continue
		}
		batch = l.source.Normalize(unit, batch)
		if l.spec.Mode == FullReplace {
			if err := l.persist(ctx, unit, batch); err != nil {
				return cursor.Pages(), records, err
			}
			records += len(batch)
			continue
		}
		pending = append(pending, batch...)
	}
	if err := cursor.Err(); err != nil {
		if syncerr.IsNotFound(err) {
			l.logger.Debug("resource not found; skipping unit", "unit", unit.String(), "error", err)
			return cursor.Pages(), 0, nil
		}
		return cursor.Pages(), records, err
	}

	if l.spec.Mode == AppendOnly {
		if err := l.persist(ctx, unit, pending); err != nil {
			return cursor.Pages(), 0, err
		}
		records = len(pending)
	}
	l.logger.Debug("unit loaded", "unit", unit.String(), "pages", cursor.Pages(), "records", records)
	return cursor.Pages(), records, nil
}

func (l *Generic[T]) persist(ctx context.Context, unit Unit, rows []T) error {
	l.enter(StatePersisting, "unit", unit.String(), "rows", len(rows))
	if l.spec.Mode == FullReplace {
		return l.store.Insert(ctx, l.spec.Table, rows)
	}
	return l.store.Append(ctx, l.spec.Table, new(T), rows)
}

// fetcher wraps Source.Fetch in the retry policy.
func (l *Generic[T]) fetcher(unit Unit) pager.FetchFunc[T] {
	op := l.spec.Entity + " " + unit.String()
	return func(ctx context.Context, state pager.State) ([]T, pager.State, error) {
		var (
			records []T
			next    pager.State
		)
		err := l.policy.Do(ctx, op, func(ctx context.Context) error {
			var err error
			records, next, err = l.source.Fetch(ctx, unit, state)
			if syncerr.IsThrottled(err) {
				l.enter(StateRateLimited, "unit", unit.String(), "pause", l.policy.Pause().String())
			}
			return err
		})
		return records, next, err
	}
}

func (l *Generic[T]) enter(state State, args ...any) {
	l.logger.Debug("loader state", append([]any{"state", string(state)}, args...)...)
}
