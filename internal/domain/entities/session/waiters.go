package session

import "time"

// LiveResult is the payload a waiter resolves with. Sessions is present only
// when the waiter's last-seen version differs from the current one.
type LiveResult struct {
	Hash     string              `json:"hash"`
	Sessions map[string]*Session `json:"sessions,omitempty"`
}

// Waiter is one pending long-poll request. Respond completes exactly one
// client request and is invoked at most once.
type Waiter struct {
	LastSeen     string
	RegisteredAt time.Time
	Respond      func(LiveResult)
}

// WaiterQueue holds pending long-poll waiters. Length is bounded only by
// client count.
type WaiterQueue struct {
	waiters []*Waiter
}

// NewWaiterQueue returns an empty queue.
func NewWaiterQueue() *WaiterQueue {
	return &WaiterQueue{}
}

// Add registers a waiter without blocking; resolution happens on the next
// resolution pass.
func (q *WaiterQueue) Add(w *Waiter) {
	q.waiters = append(q.waiters, w)
}

// Len returns the number of pending waiters.
func (q *WaiterQueue) Len() int {
	return len(q.waiters)
}

// Resolve walks the queue once. A waiter behind the current version resolves
// with the full snapshot; one pending past the expiry window resolves with
// the bare version; the rest stay queued. The snapshot is taken lazily so an
// all-current queue never pays for a copy. Returns the number resolved.
func (q *WaiterQueue) Resolve(current string, snapshot func() map[string]*Session, now time.Time, expiry time.Duration) int {
	pending := q.waiters
	q.waiters = nil

	var sessions map[string]*Session
	resolved := 0

	for _, w := range pending {
		switch {
		case w.LastSeen != current:
			if sessions == nil {
				sessions = snapshot()
			}
			w.Respond(LiveResult{Hash: current, Sessions: sessions})
			resolved++
		case now.Sub(w.RegisteredAt) > expiry:
			w.Respond(LiveResult{Hash: current})
			resolved++
		default:
			q.waiters = append(q.waiters, w)
		}
	}
	return resolved
}
