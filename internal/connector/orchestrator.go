// Package connector sequences the entity loaders into a run and records the
// outcome.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kippnorcal/zoom/internal/loader"
)

// Report is the outcome of one orchestrated pass over the loaders.
type Report struct {
	Results []loader.Result `json:"results"`
	Elapsed time.Duration   `json:"elapsed_ns"`
	Failed  string          `json:"failed,omitempty"`
}

// Records returns the records loaded per entity.
func (r Report) Records() map[string]int {
	out := make(map[string]int, len(r.Results))
	for _, res := range r.Results {
		out[res.Entity] = res.Records
	}
	return out
}

// Orchestrator runs loaders one after another in the order given. The first
// entity-level failure ends the pass.
type Orchestrator struct {
	loaders []loader.Loader
	logger  *slog.Logger
}

func NewOrchestrator(loaders []loader.Loader, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{loaders: loaders, logger: logger}
}

// Entities returns the entity names in run order.
func (o *Orchestrator) Entities() []string {
	names := make([]string, 0, len(o.loaders))
	for _, l := range o.loaders {
		names = append(names, l.Entity())
	}
	return names
}

func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	for _, l := range o.loaders {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}

		o.logger.Info("starting load", "entity", l.Entity())
		stepStart := time.Now()
		res, err := l.Load(ctx)
		elapsed := time.Since(stepStart)
		report.Results = append(report.Results, res)

		if err != nil {
			report.Failed = l.Entity()
			report.Elapsed = time.Since(start)
			o.logger.Error("load failed",
				"entity", l.Entity(),
				"elapsed", elapsed.Round(time.Millisecond).String(),
				"error", err,
			)
			return report, fmt.Errorf("%s: %w", l.Entity(), err)
		}
		o.logger.Info("load finished",
			"entity", l.Entity(),
			"records", res.Records,
			"skipped", res.Skipped,
			"elapsed", elapsed.Round(time.Millisecond).String(),
		)
	}

	report.Elapsed = time.Since(start)
	return report, nil
}
