package session

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
)

const (
	// VersionSeed is the clock value at process start.
	VersionSeed = "bootstrap"

	// RemovalSentinel is the constant chained into the clock when a session
	// is removed by the expiry sweep.
	RemovalSentinel = "removed"
)

// Clock is the hash-chained version clock summarizing the cumulative mutation
// history of the registry. It is a pure function of accumulated history: the
// same sequence of events always yields the same version string.
type Clock struct {
	current string
}

// NewClock returns a clock at the seed value.
func NewClock() *Clock {
	return &Clock{current: VersionSeed}
}

// Current returns the present version string.
func (c *Clock) Current() string {
	return c.current
}

// Advance chains next into the running digest and returns the new version.
func (c *Clock) Advance(next string) string {
	h := sha1.New()
	h.Write([]byte(c.current))
	h.Write([]byte(next))
	c.current = hex.EncodeToString(h.Sum(nil))
	return c.current
}

// ItemHash derives the chain input for a captured activity item.
func ItemHash(item *ActivityItem) string {
	serialized, err := json.Marshal(item)
	if err != nil {
		// ActivityItem has no unmarshalable fields; keep the chain moving.
		serialized = []byte(item.Action + item.Date.String())
	}
	sum := sha1.Sum(serialized)
	return hex.EncodeToString(sum[:])
}
