package proximity

import (
	"sync"
	"time"
)

// Pair is a canonically ordered id pair: Low is the lexicographically
// smaller id, so (A, B) and (B, A) address the same cache slot.
type Pair struct {
	Low  string
	High string
}

// CanonicalPair orders two ids into a Pair.
func CanonicalPair(a, b string) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Other returns the pair member that is not id, and whether id is a member
// at all.
func (p Pair) Other(id string) (string, bool) {
	switch id {
	case p.Low:
		return p.High, true
	case p.High:
		return p.Low, true
	}
	return "", false
}

// Result is a cached pairwise distance decision.
type Result struct {
	Pair           Pair
	DistanceMeters float64
	InRange        bool
	ComputedAt     int64 // epoch millis
}

// resultCache is a TTL map of pairwise results. Entries past their TTL are
// treated as absent on read and reclaimed by sweep.
type resultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[Pair]Result
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{ttl: ttl, entries: make(map[Pair]Result)}
}

func (c *resultCache) put(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[r.Pair] = r
}

// involving returns all unexpired results that have id as either member.
func (c *resultCache) involving(id string, nowMillis int64) []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Result
	for p, r := range c.entries {
		if nowMillis-r.ComputedAt > c.ttl.Milliseconds() {
			continue
		}
		if p.Low == id || p.High == id {
			out = append(out, r)
		}
	}
	return out
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Pair]Result)
}

// sweep deletes expired entries and reports how many were removed.
func (c *resultCache) sweep(nowMillis int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for p, r := range c.entries {
		if nowMillis-r.ComputedAt > c.ttl.Milliseconds() {
			delete(c.entries, p)
			removed++
		}
	}
	return removed
}

// alertKey identifies one throttled alert stream.
type alertKey struct {
	GameID      string
	RecipientID string
	SubjectID   string
	Kind        string
}

// alertThrottle is a TTL cooldown ledger. A key on cooldown suppresses
// further alerts until the cooldown elapses; each send overwrites the
// previous record.
type alertThrottle struct {
	mu       sync.Mutex
	cooldown time.Duration
	sentAt   map[alertKey]int64
}

func newAlertThrottle(cooldown time.Duration) *alertThrottle {
	return &alertThrottle{cooldown: cooldown, sentAt: make(map[alertKey]int64)}
}

func (t *alertThrottle) onCooldown(k alertKey, nowMillis int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	sent, ok := t.sentAt[k]
	return ok && nowMillis-sent <= t.cooldown.Milliseconds()
}

func (t *alertThrottle) record(k alertKey, nowMillis int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sentAt[k] = nowMillis
}

func (t *alertThrottle) sweep(nowMillis int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, sent := range t.sentAt {
		if nowMillis-sent > t.cooldown.Milliseconds() {
			delete(t.sentAt, k)
			removed++
		}
	}
	return removed
}
