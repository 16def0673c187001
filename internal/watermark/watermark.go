// Package watermark computes where the next sync of an append-only entity
// starts, using only what is already in the store.
package watermark

import (
	"context"
	"fmt"
	"time"
)

// DateStore reads the newest value of a timestamp column.
type DateStore interface {
	LatestTime(ctx context.Context, table, column string) (time.Time, bool, error)
}

// KeyStore finds parent keys without child rows.
type KeyStore interface {
	MissingKeys(ctx context.Context, parent, parentKey, child, childKey string) ([]string, error)
}

// DateResolver derives the first calendar date not yet synced from the
// newest timestamp in a table.
type DateResolver struct {
	store  DateStore
	table  string
	column string
	loc    *time.Location
	now    func() time.Time
}

// NewDateResolver returns a resolver over table.column. Dates are calendar
// days in loc.
func NewDateResolver(store DateStore, table, column string, loc *time.Location) *DateResolver {
	if loc == nil {
		loc = time.Local
	}
	return &DateResolver{store: store, table: table, column: column, loc: loc, now: time.Now}
}

// WithClock replaces the clock used for "today".
func (r *DateResolver) WithClock(now func() time.Time) *DateResolver {
	cp := *r
	cp.now = now
	return &cp
}

// Resolve returns the day after the newest stored timestamp, or the start of
// the school year when the table is missing or empty. The result is midnight
// in the resolver's location.
func (r *DateResolver) Resolve(ctx context.Context) (time.Time, error) {
	latest, ok, err := r.store.LatestTime(ctx, r.table, r.column)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve %s watermark: %w", r.table, err)
	}
	if !ok {
		return SchoolYearStart(r.Today()), nil
	}
	return Day(latest.In(r.loc)).AddDate(0, 0, 1), nil
}

// Today returns midnight of the current day.
func (r *DateResolver) Today() time.Time {
	return Day(r.now().In(r.loc))
}

// Location returns the location dates are computed in.
func (r *DateResolver) Location() *time.Location {
	return r.loc
}

// UpToDate reports whether a resolved date leaves nothing to fetch. Today is
// never fetched because its meetings may still be running.
func (r *DateResolver) UpToDate(from time.Time) bool {
	return !from.Before(r.Today())
}

// SchoolYearStart returns August 1 of the school year containing day. The
// school year rolls over after June.
func SchoolYearStart(day time.Time) time.Time {
	year := day.Year()
	if day.Month() <= time.June {
		year--
	}
	return time.Date(year, time.August, 1, 0, 0, 0, 0, day.Location())
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// KeyResolver lists the parent keys whose child rows have not been loaded.
type KeyResolver struct {
	store     KeyStore
	parent    string
	parentKey string
	child     string
	childKey  string
}

func NewKeyResolver(store KeyStore, parent, parentKey, child, childKey string) *KeyResolver {
	return &KeyResolver{store: store, parent: parent, parentKey: parentKey, child: child, childKey: childKey}
}

// Resolve returns the pending keys in ascending order.
func (r *KeyResolver) Resolve(ctx context.Context) ([]string, error) {
	keys, err := r.store.MissingKeys(ctx, r.parent, r.parentKey, r.child, r.childKey)
	if err != nil {
		return nil, fmt.Errorf("resolve %s watermark: %w", r.child, err)
	}
	return keys, nil
}
