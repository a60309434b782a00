// Package session provides domain entities for the cohort activity engine.
// It defines the per-user session, its append-only activity log, the
// hash-chained version clock, and the long-poll waiter queue. None of these
// types are safe for concurrent use; all mutation is funneled through the
// engine's single-threaded state loop.
package session

import (
	"encoding/json"
	"time"
)

// DeviceUnknown is the device value assigned until a real one is observed.
const DeviceUnknown = "unknown"

// ActivityItem is one captured event. Immutable once appended.
type ActivityItem struct {
	Action  string          `json:"action"`
	Date    time.Time       `json:"date"`
	Data    json.RawMessage `json:"data,omitempty"`
	Loc     []float64       `json:"loc,omitempty"`
	LocType string          `json:"loctype,omitempty"`
}

// Session tracks the live activity of a single user.
type Session struct {
	User   string         `json:"user"`
	ID     int64          `json:"id"`
	Device string         `json:"device"`
	Start  time.Time      `json:"start"`
	End    time.Time      `json:"end"`
	Log    []ActivityItem `json:"log"`
}

// Append records an item and stamps the session end to the item date.
func (s *Session) Append(item ActivityItem) {
	s.End = item.Date
	s.Log = append(s.Log, item)
}

// UpgradeDevice replaces an unknown device with an observed one. A known
// device is never downgraded.
func (s *Session) UpgradeDevice(device string) {
	if s.Device == DeviceUnknown && device != DeviceUnknown && device != "" {
		s.Device = device
	}
}

// Clone returns a copy safe to hand off outside the state loop. Items are
// immutable so the log entries themselves are shared.
func (s *Session) Clone() *Session {
	dup := *s
	dup.Log = make([]ActivityItem, len(s.Log))
	copy(dup.Log, s.Log)
	return &dup
}
