// Package pager walks paginated API listings one page at a time.
//
// A Cursor never holds state of its own beyond the State value returned by
// the last fetch, so resuming a listing is a matter of handing the same State
// to a new Cursor.
package pager

import (
	"context"
	"errors"
)

// Style selects how the end of a listing is detected.
type Style int

const (
	// NumberStyle pages are addressed by number and bounded by a page count.
	NumberStyle Style = iota
	// TokenStyle pages are chained through an opaque continuation token.
	TokenStyle
)

// ErrNoFetch is returned by Next when a Cursor was built without a fetch function.
var ErrNoFetch = errors.New("pager: nil fetch function")

// State is the caller-held position in a listing.
type State struct {
	Style  Style
	Number int
	Count  int
	Token  string
}

// First returns the state that addresses the first page of a listing. The
// first page is always fetched; its response supplies the real page count.
func First(style Style) State {
	if style == NumberStyle {
		return State{Style: NumberStyle, Number: 1, Count: 1}
	}
	return State{Style: TokenStyle}
}

// NextNumber returns the state following cur given the page count reported
// by the API for cur.
func NextNumber(cur State, pageCount int) State {
	return State{Style: NumberStyle, Number: cur.Number + 1, Count: pageCount}
}

// NextToken returns the state addressed by a continuation token.
func NextToken(token string) State {
	return State{Style: TokenStyle, Token: token}
}

// Exhausted reports whether s points past the end of the listing.
func (s State) Exhausted() bool {
	if s.Style == NumberStyle {
		return s.Number > s.Count
	}
	return s.Token == ""
}

// FetchFunc retrieves the page addressed by state and returns its records and
// the state of the following page.
type FetchFunc[T any] func(ctx context.Context, state State) ([]T, State, error)

// Cursor yields one batch per fetched page until the listing is exhausted or
// a fetch fails. It cannot be rewound.
type Cursor[T any] struct {
	fetch FetchFunc[T]
	state State
	batch []T
	pages int
	done  bool
	err   error
}

// New returns a Cursor that starts at state.
func New[T any](fetch FetchFunc[T], state State) *Cursor[T] {
	return &Cursor[T]{fetch: fetch, state: state}
}

// Next fetches the next page. It returns false once the listing is exhausted
// or after an error; check Err to tell the two apart.
func (c *Cursor[T]) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	if c.fetch == nil {
		c.fail(ErrNoFetch)
		return false
	}

	records, next, err := c.fetch(ctx, c.state)
	if err != nil {
		c.fail(err)
		return false
	}

	c.pages++
	c.batch = records
	c.state = next
	if next.Exhausted() {
		c.done = true
	}
	return true
}

func (c *Cursor[T]) fail(err error) {
	c.err = err
	c.batch = nil
	c.done = true
}

// Batch returns the records of the page fetched by the last call to Next.
// An empty batch is valid.
func (c *Cursor[T]) Batch() []T {
	return c.batch
}

// Err returns the error that stopped the cursor, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

// State returns the continuation state for the next page.
func (c *Cursor[T]) State() State {
	return c.state
}

// Pages returns the number of pages fetched so far.
func (c *Cursor[T]) Pages() int {
	return c.pages
}

// Drain walks the cursor to the end and returns every record it yielded.
func Drain[T any](ctx context.Context, c *Cursor[T]) ([]T, error) {
	var all []T
	for c.Next(ctx) {
		all = append(all, c.Batch()...)
	}
	return all, c.Err()
}
