package cron

import (
	"path/filepath"
	"testing"
	"time"
)

func TestScheduleListCancel(t *testing.T) {
	dir := t.TempDir()
	log := NewTaskLog(filepath.Join(dir, "tasks.json"))

	id, err := log.Schedule("say hi", TypeInterval, "60", "telegram", "42", "")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	tasks, err := log.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != id {
		t.Fatalf("List = %+v, want single task with id %s", tasks, id)
	}

	ok, err := log.Cancel(id)
	if err != nil || !ok {
		t.Fatalf("Cancel(%s) = %v, %v", id, ok, err)
	}
	tasks, _ = log.List()
	if len(tasks) != 0 {
		t.Fatalf("List after cancel = %+v, want empty (cancel only deactivates, never deletes)", tasks)
	}
}

func TestScheduleRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	log := NewTaskLog(filepath.Join(dir, "tasks.json"))
	if _, err := log.Schedule("x", "bogus", "1", "c", "1", ""); err == nil {
		t.Fatalf("expected error for unknown schedule type")
	}
}

func TestScheduleRejectsBadCron(t *testing.T) {
	dir := t.TempDir()
	log := NewTaskLog(filepath.Join(dir, "tasks.json"))
	if _, err := log.Schedule("x", TypeCron, "not a cron", "c", "1", ""); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestScheduleRejectsNonPositiveInterval(t *testing.T) {
	dir := t.TempDir()
	log := NewTaskLog(filepath.Join(dir, "tasks.json"))
	if _, err := log.Schedule("x", TypeInterval, "0", "c", "1", ""); err == nil {
		t.Fatalf("expected error for non-positive interval")
	}
	if _, err := log.Schedule("x", TypeInterval, "not-a-number", "c", "1", ""); err == nil {
		t.Fatalf("expected error for non-integer interval")
	}
}

func TestCancelUnknownIDReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	log := NewTaskLog(filepath.Join(dir, "tasks.json"))
	ok, err := log.Cancel("doesnotexist")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if ok {
		t.Fatalf("Cancel of unknown id should return false")
	}
}

func TestCheckAndMarkOnce(t *testing.T) {
	dir := t.TempDir()
	log := NewTaskLog(filepath.Join(dir, "tasks.json"))
	_, err := log.Schedule("hello", TypeOnce, "2020-01-01T00:00:00Z", "telegram", "1", "")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	due, err := log.CheckAndMark(now)
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected exactly one due task, got %d", len(due))
	}
	if due[0].LastRun == nil || !due[0].LastRun.Equal(now) {
		t.Fatalf("due task lastRun not set to tick time")
	}
	if due[0].Active {
		t.Fatalf("once task should be inactive after its single run")
	}

	// A second tick must not re-dispatch: it is already inactive.
	due, err = log.CheckAndMark(now.Add(time.Hour))
	if err != nil {
		t.Fatalf("CheckAndMark second tick: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("once task should not fire twice, got %d due", len(due))
	}
}

func TestCheckAndMarkLeavesOtherTasksUntouched(t *testing.T) {
	dir := t.TempDir()
	log := NewTaskLog(filepath.Join(dir, "tasks.json"))
	_, _ = log.Schedule("due-one", TypeOnce, "2020-01-01T00:00:00Z", "telegram", "1", "")
	_, _ = log.Schedule("not-due", TypeOnce, "2099-01-01T00:00:00Z", "telegram", "1", "")

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	due, err := log.CheckAndMark(now)
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if len(due) != 1 || due[0].Prompt != "due-one" {
		t.Fatalf("expected only due-one to fire, got %+v", due)
	}

	all, _ := log.Load()
	for _, task := range all {
		if task.Prompt == "not-due" && task.LastRun != nil {
			t.Fatalf("not-due task should remain untouched")
		}
	}
}
