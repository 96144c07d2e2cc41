// Package sessions implements the per-(channel,chatId) thread id map
// and its reconciliation against the external agent's checkpoint
// store on startup.
package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/emanueleielo/parrotgate/internal/store"
)

// ThreadMap derives durable conversation thread ids from a monotonic
// per-(channel,chatId) reset counter persisted in a document store.
type ThreadMap struct {
	doc *store.Store
}

// NewThreadMap wraps doc as the thread-counter backing store.
func NewThreadMap(doc *store.Store) *ThreadMap {
	return &ThreadMap{doc: doc}
}

func counterKey(channel, chatID string) string {
	return channel + "_" + chatID
}

// counter returns the current reset counter for (channel, chatID).
func (m *ThreadMap) counter(channel, chatID string) int {
	v := m.doc.Get(counterKey(channel, chatID), 0.0)
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// ThreadID returns the current thread id for (channel, chatID):
// "{channel}_{chatId}" when the reset counter is zero, else
// "{channel}_{chatId}_s{counter}".
func (m *ThreadMap) ThreadID(channel, chatID string) string {
	n := m.counter(channel, chatID)
	base := channel + "_" + chatID
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_s%d", base, n)
}

// Reset increments the reset counter for (channel, chatID) and
// persists it, so the next ThreadID call returns a fresh, previously
// unused thread id.
func (m *ThreadMap) Reset(channel, chatID string) error {
	n := m.counter(channel, chatID) + 1
	return m.doc.Set(counterKey(channel, chatID), float64(n))
}

// splitBaseCounter splits a checkpoint thread id of the form
// "base_sN" into (base, N, true); any other shape returns ("", 0, false).
func splitBaseCounter(threadID string) (string, int, bool) {
	idx := strings.LastIndex(threadID, "_s")
	if idx < 0 {
		return "", 0, false
	}
	suffix := threadID[idx+2:]
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return "", 0, false
	}
	return threadID[:idx], n, true
}

// Reconcile inspects the agent's checkpoint database for thread ids of
// the form "base_sN" and bumps this map's in-memory/persisted counter
// for base past N wherever the checkpoint is ahead, preventing thread
// id collisions after a restart. A missing, corrupt, or
// schema-mismatched database is a soft failure: it is logged and
// reconciliation is skipped entirely.
func (m *ThreadMap) Reconcile(ctx context.Context, checkpointDBPath string) {
	db, err := sql.Open("sqlite", "file:"+checkpointDBPath+"?mode=ro")
	if err != nil {
		slog.Warn("sessions: cannot open checkpoint database, skipping reconciliation", "path", checkpointDBPath, "error", err)
		return
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT DISTINCT thread_id FROM checkpoints")
	if err != nil {
		slog.Warn("sessions: checkpoint query failed, skipping reconciliation", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			continue
		}
		base, n, ok := splitBaseCounter(threadID)
		if !ok {
			continue
		}
		// base is already "{channel}_{chatId}", the same shape
		// counterKey produces, so it doubles as the document-store key.
		current, _ := m.doc.Get(base, 0.0).(float64)
		if float64(n) >= current {
			if err := m.doc.Set(base, float64(n+1)); err != nil {
				slog.Warn("sessions: failed to persist reconciled counter", "base", base, "error", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		slog.Warn("sessions: error iterating checkpoint rows", "error", err)
	}
}
