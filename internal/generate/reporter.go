package generate

import (
	"context"

	"github.com/rs/zerolog"
)

// Reporter receives normalized progress updates (0-100) with a human-readable
// state label while a job runs.
type Reporter interface {
	Report(ctx context.Context, progress float64, label string)
}

// NopReporter discards progress updates. Used when no external reporting is
// wired up.
type NopReporter struct{}

func (NopReporter) Report(context.Context, float64, string) {}

// LogReporter mirrors progress updates into the service log.
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) Report(_ context.Context, progress float64, label string) {
	r.Logger.Debug().Float64("progress", progress).Str("label", label).Msg("job progress")
}
