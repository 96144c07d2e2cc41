package cron

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/adhocore/gronx"
)

// IsDue is a pure predicate with no I/O: given a task and the current
// time, it decides whether the task should fire now. Calling it
// repeatedly on the same (task, now) pair without mutating the task
// always returns the same answer.
func IsDue(t ScheduledTask, now time.Time) bool {
	switch t.Type {
	case TypeOnce:
		if t.LastRun != nil {
			return false
		}
		target, err := time.Parse(time.RFC3339, t.Value)
		if err != nil {
			slog.Warn("cron: malformed once value", "task", t.ID, "value", t.Value)
			return false
		}
		return !now.Before(target.UTC())

	case TypeInterval:
		seconds, err := strconv.Atoi(t.Value)
		if err != nil || seconds <= 0 {
			if t.LastRun == nil {
				slog.Warn("cron: malformed interval value with no prior run", "task", t.ID, "value", t.Value)
			}
			return false
		}
		if t.LastRun == nil {
			return true
		}
		elapsed := now.Sub(t.LastRun.UTC())
		return elapsed >= time.Duration(seconds)*time.Second

	case TypeCron:
		if t.LastRun == nil {
			// A null lastRun is always due, even with a malformed
			// expression. Preserved intentionally; see DESIGN.md.
			return true
		}
		if !gronx.IsValid(t.Value) {
			return false
		}
		next, err := gronx.NextTickAfter(t.Value, t.LastRun.UTC(), false)
		if err != nil {
			return false
		}
		return !now.Before(next)

	default:
		slog.Warn("cron: unknown task type", "task", t.ID, "type", t.Type)
		return false
	}
}
