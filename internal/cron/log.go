package cron

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
)

// TaskLog wraps the tasks JSON file behind a single mutex ("tasksLock")
// held for the whole read-modify-write region of every operation, so
// concurrent schedule/list/cancel/check calls never race on the file.
type TaskLog struct {
	path string
	mu   sync.Mutex
}

// NewTaskLog opens (without yet reading) the task log backed by path.
func NewTaskLog(path string) *TaskLog {
	return &TaskLog{path: path}
}

// Load returns every task currently on disk. A missing file is treated
// as an empty task list, consistent with the document store's general
// soft-fallback contract.
func (l *TaskLog) Load() ([]ScheduledTask, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

func (l *TaskLog) loadLocked() ([]ScheduledTask, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var tasks []ScheduledTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("cron: corrupt tasks file %s: %w", l.path, err)
	}
	return tasks, nil
}

func (l *TaskLog) saveLocked(tasks []ScheduledTask) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".tasks-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// validateSchedule enforces validation rules at scheduling time: known
// type, parseable value for that type.
func validateSchedule(taskType TaskType, value string) error {
	switch taskType {
	case TypeCron:
		if !gronx.IsValid(value) {
			return fmt.Errorf("cron: invalid cron expression %q", value)
		}
	case TypeInterval:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("cron: interval value must be a positive integer number of seconds, got %q", value)
		}
	case TypeOnce:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Errorf("cron: once value must be an ISO-8601 timestamp, got %q", value)
		}
	default:
		return fmt.Errorf("cron: unknown schedule type %q", taskType)
	}
	return nil
}

// Schedule validates and appends a new task, returning its assigned id.
func (l *TaskLog) Schedule(prompt string, taskType TaskType, value, channel, chatID, modelTier string) (string, error) {
	if err := validateSchedule(taskType, value); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tasks, err := l.loadLocked()
	if err != nil {
		return "", err
	}

	task := ScheduledTask{
		ID:        uuid.NewString()[:8],
		Prompt:    prompt,
		Type:      taskType,
		Value:     value,
		Channel:   channel,
		ChatID:    chatID,
		CreatedAt: time.Now().UTC(),
		Active:    true,
		ModelTier: modelTier,
	}
	tasks = append(tasks, task)
	if err := l.saveLocked(tasks); err != nil {
		return "", err
	}
	return task.ID, nil
}

// List returns every active task, for the list_tasks tool.
func (l *TaskLog) List() ([]ScheduledTask, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks, err := l.loadLocked()
	if err != nil {
		return nil, err
	}
	active := make([]ScheduledTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Active {
			active = append(active, t)
		}
	}
	return active, nil
}

// Cancel marks a task inactive by id. Returns false if no task with
// that id exists.
func (l *TaskLog) Cancel(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tasks, err := l.loadLocked()
	if err != nil {
		return false, err
	}
	found := false
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].Active = false
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	if err := l.saveLocked(tasks); err != nil {
		return false, err
	}
	return true, nil
}

// CheckAndMark scans tasks for due ones at wall-clock now, marking
// lastRun (and active=false for "once" tasks) atomically under the
// task log's lock, then persists if anything changed. It returns a
// copy of every task that just became due, suitable for dispatching
// outside the lock. Marking happens before dispatch so overlapping
// ticks can never double-dispatch the same task.
func (l *TaskLog) CheckAndMark(now time.Time) ([]ScheduledTask, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tasks, err := l.loadLocked()
	if err != nil {
		return nil, err
	}

	var due []ScheduledTask
	mutated := false
	for i := range tasks {
		if !tasks[i].Active {
			continue
		}
		if !IsDue(tasks[i], now) {
			continue
		}
		nowCopy := now
		tasks[i].LastRun = &nowCopy
		if tasks[i].Type == TypeOnce {
			tasks[i].Active = false
		}
		mutated = true
		due = append(due, tasks[i])
	}

	if mutated {
		if err := l.saveLocked(tasks); err != nil {
			return nil, err
		}
	}
	return due, nil
}
