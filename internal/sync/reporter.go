package sync

import (
	"context"
	"log/slog"
	"time"
)

// Action classifies one reconciliation decision.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionUnchanged Action = "unchanged"
)

// Change is one audited create/update/delete decision of a sync run.
type Change struct {
	RunID     string    `json:"run_id"`
	Entity    string    `json:"entity"`
	Key       string    `json:"key"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter receives every reconciliation decision. Implementations must not
// fail the sync: reporting is best effort.
type Reporter interface {
	Report(ctx context.Context, change Change)
}

// LogReporter writes changes to the structured log. Unchanged entities are
// only logged at debug level to keep sync runs readable.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a Reporter backed by the given logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs the change.
func (r *LogReporter) Report(_ context.Context, change Change) {
	level := slog.LevelInfo
	if change.Action == ActionUnchanged {
		level = slog.LevelDebug
	}
	r.logger.Log(context.Background(), level, "sync change",
		"run_id", change.RunID,
		"entity", change.Entity,
		"key", change.Key,
		"action", string(change.Action),
	)
}

// MultiReporter fans a change out to several reporters.
type MultiReporter []Reporter

// Report forwards the change to every reporter.
func (m MultiReporter) Report(ctx context.Context, change Change) {
	for _, r := range m {
		r.Report(ctx, change)
	}
}
