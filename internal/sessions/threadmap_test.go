package sessions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/emanueleielo/parrotgate/internal/store"
)

func newTestMap(t *testing.T) *ThreadMap {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "counters.json"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return NewThreadMap(s)
}

func TestThreadIDZeroCounter(t *testing.T) {
	m := newTestMap(t)
	if got := m.ThreadID("tg", "7"); got != "tg_7" {
		t.Fatalf("ThreadID = %q, want tg_7", got)
	}
}

func TestThreadIDAfterResets(t *testing.T) {
	m := newTestMap(t)
	if got := m.ThreadID("tg", "7"); got != "tg_7" {
		t.Fatalf("initial ThreadID = %q, want tg_7", got)
	}
	if err := m.Reset("tg", "7"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := m.ThreadID("tg", "7"); got != "tg_7_s1" {
		t.Fatalf("ThreadID after first reset = %q, want tg_7_s1", got)
	}
	if err := m.Reset("tg", "7"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := m.ThreadID("tg", "7"); got != "tg_7_s2" {
		t.Fatalf("ThreadID after second reset = %q, want tg_7_s2", got)
	}
}

func TestThreadIDUniquePerReset(t *testing.T) {
	m := newTestMap(t)
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		id := m.ThreadID("tg", "7")
		if seen[id] {
			t.Fatalf("ThreadID %q repeated after %d resets", id, i)
		}
		seen[id] = true
		_ = m.Reset("tg", "7")
	}
}

func TestThreadIDIndependentPerChat(t *testing.T) {
	m := newTestMap(t)
	_ = m.Reset("tg", "1")
	if got := m.ThreadID("tg", "2"); got != "tg_2" {
		t.Fatalf("resetting one chat should not affect another, got %q", got)
	}
}

func TestSplitBaseCounter(t *testing.T) {
	base, n, ok := splitBaseCounter("tg_7_s3")
	if !ok || base != "tg_7" || n != 3 {
		t.Fatalf("splitBaseCounter(tg_7_s3) = %q, %d, %v", base, n, ok)
	}
	if _, _, ok := splitBaseCounter("tg_7"); ok {
		t.Fatalf("splitBaseCounter should reject a base id with no _sN suffix")
	}
}

func TestReconcileMissingDBIsSoftFailure(t *testing.T) {
	m := newTestMap(t)
	// Must not panic and must leave counters untouched.
	m.Reconcile(context.Background(), filepath.Join(t.TempDir(), "does-not-exist.db"))
	if got := m.ThreadID("tg", "7"); got != "tg_7" {
		t.Fatalf("reconciliation against a missing DB should be a no-op, got %q", got)
	}
}
