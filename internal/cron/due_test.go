package cron

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}

func TestIsDueOnce(t *testing.T) {
	now := mustParse(t, "2025-01-01T00:00:00Z")
	task := ScheduledTask{Type: TypeOnce, Value: "2020-01-01T00:00:00+00:00", Active: true}
	if !IsDue(task, now) {
		t.Fatalf("once task in the past should be due")
	}

	future := ScheduledTask{Type: TypeOnce, Value: "2030-01-01T00:00:00Z", Active: true}
	if IsDue(future, now) {
		t.Fatalf("once task in the future should not be due")
	}

	ran := mustParse(t, "2024-01-01T00:00:00Z")
	already := ScheduledTask{Type: TypeOnce, Value: "2020-01-01T00:00:00Z", LastRun: &ran, Active: true}
	if IsDue(already, now) {
		t.Fatalf("once task with non-nil lastRun should never be due again")
	}
}

func TestIsDueIntervalBoundaryInclusive(t *testing.T) {
	lastRun := mustParse(t, "2025-01-01T12:00:00Z")
	task := ScheduledTask{Type: TypeInterval, Value: "3600", LastRun: &lastRun}

	notYet := mustParse(t, "2025-01-01T12:30:00Z")
	if IsDue(task, notYet) {
		t.Fatalf("interval task should not be due before the interval elapses")
	}

	exactly := mustParse(t, "2025-01-01T13:00:00Z")
	if !IsDue(task, exactly) {
		t.Fatalf("interval task should be due at the exact boundary (inclusive)")
	}
}

func TestIsDueIntervalNilLastRun(t *testing.T) {
	task := ScheduledTask{Type: TypeInterval, Value: "60"}
	if !IsDue(task, time.Now()) {
		t.Fatalf("interval task with nil lastRun should be due immediately")
	}
}

func TestIsDueCronNilLastRunMalformedIsDueAnyway(t *testing.T) {
	task := ScheduledTask{Type: TypeCron, Value: "not a cron expr"}
	if !IsDue(task, time.Now()) {
		t.Fatalf("cron task with nil lastRun and malformed expression is due by the preserved compatibility quirk")
	}
}

func TestIsDueCronMalformedWithLastRunIsNotDue(t *testing.T) {
	lastRun := mustParse(t, "2025-01-01T00:00:00Z")
	task := ScheduledTask{Type: TypeCron, Value: "garbage", LastRun: &lastRun}
	if IsDue(task, time.Now()) {
		t.Fatalf("cron task with a malformed expression and a prior run should not be due")
	}
}

func TestIsDueCronValidExpression(t *testing.T) {
	lastRun := mustParse(t, "2025-01-01T00:00:00Z")
	task := ScheduledTask{Type: TypeCron, Value: "0 * * * *", LastRun: &lastRun}

	soon := mustParse(t, "2025-01-01T00:30:00Z")
	if IsDue(task, soon) {
		t.Fatalf("should not be due before the next hourly tick")
	}

	later := mustParse(t, "2025-01-01T01:00:00Z")
	if !IsDue(task, later) {
		t.Fatalf("should be due at the next hourly tick")
	}
}

func TestIsDueUnknownTypeNeverDue(t *testing.T) {
	task := ScheduledTask{Type: "bogus"}
	if IsDue(task, time.Now()) {
		t.Fatalf("unknown task type should never be due")
	}
}

func TestIsDuePure(t *testing.T) {
	now := mustParse(t, "2025-01-01T13:00:00Z")
	lastRun := mustParse(t, "2025-01-01T12:00:00Z")
	task := ScheduledTask{Type: TypeInterval, Value: "3600", LastRun: &lastRun}

	first := IsDue(task, now)
	second := IsDue(task, now)
	if first != second {
		t.Fatalf("IsDue must be pure: got %v then %v", first, second)
	}
}
