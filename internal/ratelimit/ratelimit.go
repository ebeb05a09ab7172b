// Package ratelimit implements the fixed-size request-timestamp ring of §3
// and §4.5.2: a session accepts at most N inbound frames per rolling second.
package ratelimit

import "time"

// Slots is the ring size N named by spec.md (§3: "Rate-limit ring has
// exactly N slots (N = 5 by design)").
const Slots = 5

// Ring is a per-session sliding-window rate limiter. It is not safe for
// concurrent use — the session loop that owns it processes one inbound
// frame at a time (§5), so no locking is needed.
type Ring struct {
	timestamps [Slots]time.Time
	index      int
}

// Allow advances the ring and reports whether the caller may proceed. The
// slot the next request would overwrite is reused once it is either unset or
// more than one second old; otherwise the request is rejected and the ring
// is left unchanged.
func (r *Ring) Allow(now time.Time) bool {
	slot := r.timestamps[r.index]
	if !slot.IsZero() && now.Sub(slot) < time.Second {
		return false
	}

	r.timestamps[r.index] = now
	r.index = (r.index + 1) % Slots
	return true
}
