package session

import "time"

// Registry is the authoritative in-memory mapping from user to live Session.
// It also owns the monotonic session id allocator. At most one session per
// user exists at any time; sessions are created lazily on first capture and
// removed only by the expiry sweep.
type Registry struct {
	sessions map[string]*Session
	nextID   int64
}

// NewRegistry creates a registry whose allocator resumes at nextID.
func NewRegistry(nextID int64) *Registry {
	if nextID < 1 {
		nextID = 1
	}
	return &Registry{
		sessions: make(map[string]*Session),
		nextID:   nextID,
	}
}

// Touch returns the user's session, creating it when absent. A new session
// consumes the next id, starts now with the observed device, and has an empty
// log. An existing session gets its device upgraded if still unknown.
func (r *Registry) Touch(user, device string, now time.Time) *Session {
	if device == "" {
		device = DeviceUnknown
	}

	sess, exists := r.sessions[user]
	if !exists {
		sess = &Session{
			User:   user,
			ID:     r.nextID,
			Device: device,
			Start:  now,
			End:    now,
			Log:    []ActivityItem{},
		}
		r.nextID++
		r.sessions[user] = sess
		return sess
	}

	sess.UpgradeDevice(device)
	return sess
}

// Get returns the live session for a user, if any.
func (r *Registry) Get(user string) (*Session, bool) {
	sess, exists := r.sessions[user]
	return sess, exists
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// NextID returns the next session id the allocator would assign.
func (r *Registry) NextID() int64 {
	return r.nextID
}

// RemoveExpired partitions the registry by inactivity. Sessions whose end is
// older than threshold relative to now are removed and returned with their
// end stamped to now; the rest stay live.
func (r *Registry) RemoveExpired(now time.Time, threshold time.Duration) map[string]*Session {
	removed := make(map[string]*Session)
	for user, sess := range r.sessions {
		if now.Sub(sess.End) > threshold {
			sess.End = now
			removed[user] = sess
			delete(r.sessions, user)
		}
	}
	return removed
}

// Snapshot returns a deep copy of the live sessions, safe to marshal outside
// the state loop while captures keep mutating the originals.
func (r *Registry) Snapshot() map[string]*Session {
	snap := make(map[string]*Session, len(r.sessions))
	for user, sess := range r.sessions {
		snap[user] = sess.Clone()
	}
	return snap
}
