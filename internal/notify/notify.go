// Package notify reports the outcome of a connector run.
package notify

import (
	"context"
	"errors"
	"time"
)

// Outcome is what a notifier is told about a finished run.
type Outcome struct {
	JobName string
	RunID   string
	Trigger string
	Err     error
	// Entity names the loader that failed, if any.
	Entity  string
	Elapsed time.Duration
	Records map[string]int
}

// Failed reports whether the run failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Notifier delivers an Outcome somewhere a person will see it.
type Notifier interface {
	Notify(ctx context.Context, o Outcome) error
}

// Multi sends an Outcome to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, o Outcome) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
