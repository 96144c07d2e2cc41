// Package cron implements the scheduled-task log (a JSON file guarded
// by a single process-wide lock) and the pure due-check predicate the
// scheduler loop polls against.
package cron

import "time"

// TaskType enumerates the three schedule kinds a ScheduledTask may carry.
type TaskType string

const (
	TypeCron     TaskType = "cron"
	TypeInterval TaskType = "interval"
	TypeOnce     TaskType = "once"
)

// ScheduledTask is a durable job entry appended by the schedule_task
// tool, consulted and mutated by the scheduler loop, and deactivated by
// cancel_task. Tasks are never deleted, only marked inactive.
type ScheduledTask struct {
	ID        string     `json:"id"`
	Prompt    string     `json:"prompt"`
	Type      TaskType   `json:"type"`
	Value     string     `json:"value"`
	Channel   string     `json:"channel"`
	ChatID    string     `json:"chatId"`
	CreatedAt time.Time  `json:"createdAt"`
	LastRun   *time.Time `json:"lastRun"`
	Active    bool       `json:"active"`
	ModelTier string     `json:"modelTier,omitempty"`
}
