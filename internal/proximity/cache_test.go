package proximity

import (
	"testing"
	"time"
)

func TestCanonicalPairSymmetric(t *testing.T) {
	cases := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"p-42", "p-7"},
		{"x", "x"},
	}
	for _, c := range cases {
		ab := CanonicalPair(c[0], c[1])
		ba := CanonicalPair(c[1], c[0])
		if ab != ba {
			t.Errorf("CanonicalPair(%q,%q) = %v but reversed = %v", c[0], c[1], ab, ba)
		}
		if ab.Low > ab.High {
			t.Errorf("CanonicalPair(%q,%q) = %v not ordered", c[0], c[1], ab)
		}
	}
}

func TestPairOther(t *testing.T) {
	p := CanonicalPair("alice", "bob")

	if other, ok := p.Other("alice"); !ok || other != "bob" {
		t.Errorf("Other(alice) = %q, %v", other, ok)
	}
	if other, ok := p.Other("bob"); !ok || other != "alice" {
		t.Errorf("Other(bob) = %q, %v", other, ok)
	}
	if _, ok := p.Other("carol"); ok {
		t.Error("Other(carol) reported membership")
	}
}

func TestResultCacheTTL(t *testing.T) {
	c := newResultCache(10 * time.Second)
	now := int64(1_000_000)

	c.put(Result{Pair: CanonicalPair("a", "b"), DistanceMeters: 12.5, InRange: true, ComputedAt: now})

	got := c.involving("b", now+9_000)
	if len(got) != 1 || got[0].DistanceMeters != 12.5 {
		t.Errorf("lookup within TTL = %+v", got)
	}
	if got := c.involving("a", now+11_000); len(got) != 0 {
		t.Errorf("lookup past TTL returned stale results: %+v", got)
	}
}

func TestResultCacheInvolving(t *testing.T) {
	c := newResultCache(10 * time.Second)
	now := int64(5_000)

	c.put(Result{Pair: CanonicalPair("a", "b"), ComputedAt: now})
	c.put(Result{Pair: CanonicalPair("b", "c"), ComputedAt: now})
	c.put(Result{Pair: CanonicalPair("c", "d"), ComputedAt: now})
	c.put(Result{Pair: CanonicalPair("a", "e"), ComputedAt: now - 60_000}) // expired

	got := c.involving("a", now)
	if len(got) != 1 {
		t.Fatalf("involving(a) returned %d results, want 1", len(got))
	}
	if got[0].Pair != CanonicalPair("a", "b") {
		t.Errorf("involving(a)[0].Pair = %v", got[0].Pair)
	}

	if got := c.involving("b", now); len(got) != 2 {
		t.Errorf("involving(b) returned %d results, want 2", len(got))
	}
}

func TestResultCacheSweepAndClear(t *testing.T) {
	c := newResultCache(10 * time.Second)

	c.put(Result{Pair: CanonicalPair("a", "b"), ComputedAt: 0})
	c.put(Result{Pair: CanonicalPair("c", "d"), ComputedAt: 50_000})

	if removed := c.sweep(55_000); removed != 1 {
		t.Errorf("sweep removed %d entries, want 1", removed)
	}
	if got := c.involving("c", 55_000); len(got) != 1 {
		t.Error("sweep removed an unexpired entry")
	}

	c.clear()
	if got := c.involving("c", 55_000); len(got) != 0 {
		t.Error("clear left an entry behind")
	}
}

func TestAlertThrottleCooldown(t *testing.T) {
	th := newAlertThrottle(60 * time.Second)
	k := alertKey{GameID: "g", RecipientID: "a", SubjectID: "b", Kind: AlertKindHunter}
	now := int64(100_000)

	if th.onCooldown(k, now) {
		t.Error("fresh key reported on cooldown")
	}
	th.record(k, now)
	if !th.onCooldown(k, now+59_000) {
		t.Error("key not on cooldown within the window")
	}
	if th.onCooldown(k, now+61_000) {
		t.Error("key still on cooldown after the window")
	}

	other := alertKey{GameID: "g", RecipientID: "a", SubjectID: "b", Kind: AlertKindTarget}
	if th.onCooldown(other, now+1) {
		t.Error("different kind shares a cooldown")
	}
}

func TestAlertThrottleSweep(t *testing.T) {
	th := newAlertThrottle(60 * time.Second)
	th.record(alertKey{GameID: "g", RecipientID: "a", SubjectID: "b", Kind: AlertKindHunter}, 0)
	th.record(alertKey{GameID: "g", RecipientID: "c", SubjectID: "d", Kind: AlertKindHunter}, 100_000)

	if removed := th.sweep(120_000); removed != 1 {
		t.Errorf("sweep removed %d records, want 1", removed)
	}
}
