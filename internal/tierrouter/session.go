package tierrouter

import "github.com/emanueleielo/parrotgate/internal/store"

// SessionTiers persists the active tier chosen per conversation thread
// (via the switch_model tool) across restarts, the same document store
// component H uses for thread counters.
type SessionTiers struct {
	doc *store.Store
}

// NewSessionTiers wraps doc as a thread-id -> tier-name map.
func NewSessionTiers(doc *store.Store) *SessionTiers {
	return &SessionTiers{doc: doc}
}

const sessionTierKeyPrefix = "tier_"

// ActiveTier returns the tier explicitly selected for threadID, or ""
// if the thread has never called switch_model (the router then falls
// back to the configured default tier).
func (s *SessionTiers) ActiveTier(threadID string) string {
	v, _ := s.doc.Get(sessionTierKeyPrefix+threadID, "").(string)
	return v
}

// SetActiveTier records tier as threadID's active tier.
func (s *SessionTiers) SetActiveTier(threadID, tier string) error {
	return s.doc.Set(sessionTierKeyPrefix+threadID, tier)
}

// ResetActiveTier clears threadID's override, reverting it to the
// router's default tier.
func (s *SessionTiers) ResetActiveTier(threadID string) error {
	return s.doc.Delete(sessionTierKeyPrefix + threadID)
}
