package notify

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Sentry captures failed runs as Sentry events. Successful runs are ignored.
type Sentry struct {
	hub     *sentry.Hub
	timeout time.Duration
}

// NewSentry reports through hub, or the current hub when nil. sentry.Init
// must have been called.
func NewSentry(hub *sentry.Hub) *Sentry {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Sentry{hub: hub, timeout: 2 * time.Second}
}

func (s *Sentry) Notify(_ context.Context, o Outcome) error {
	if !o.Failed() {
		return nil
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job", o.JobName)
		scope.SetTag("run_id", o.RunID)
		scope.SetTag("trigger", o.Trigger)
		if o.Entity != "" {
			scope.SetTag("entity", o.Entity)
		}
		scope.SetContext("run", sentry.Context{
			"elapsed": o.Elapsed.String(),
			"records": o.Records,
		})
		s.hub.CaptureException(o.Err)
	})
	s.hub.Flush(s.timeout)
	return nil
}
