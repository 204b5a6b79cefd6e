package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache() (*ResolutionCache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(DefaultTTL, clk.now), clk
}

func TestIdentityRoundTrip(t *testing.T) {
	c, _ := newTestCache()

	c.SetIdentity("p1", Identity{Name: "TenZ", Tag: "NA1", AccountLevel: 312})

	got := c.GetIdentity("p1")
	if got == nil {
		t.Fatalf("expected identity, got nil")
	}
	if got.Name != "TenZ" || got.Tag != "NA1" || got.AccountLevel != 312 {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestIdentityExpiresAfterTTL(t *testing.T) {
	c, clk := newTestCache()

	c.SetIdentity("p1", Identity{Name: "TenZ"})

	clk.advance(600_000 * time.Millisecond)
	if c.GetIdentity("p1") == nil {
		t.Fatalf("entry at exactly TTL should still be live")
	}

	clk.advance(1 * time.Millisecond)
	if got := c.GetIdentity("p1"); got != nil {
		t.Fatalf("expected expired entry to read as absent, got %+v", got)
	}
}

func TestFieldsExpireIndependently(t *testing.T) {
	c, clk := newTestCache()

	c.SetIdentity("p1", Identity{Name: "TenZ"})
	clk.advance(9 * time.Minute)
	c.SetRank("p1", Rank{Tier: 24, RankInTier: 37})

	clk.advance(2 * time.Minute)

	if c.GetIdentity("p1") != nil {
		t.Fatalf("identity should have expired")
	}
	if c.GetRank("p1") == nil {
		t.Fatalf("rank was refreshed later and should still be live")
	}
}

func TestSetRefreshesTimestamp(t *testing.T) {
	c, clk := newTestCache()

	c.SetIdentity("p1", Identity{Name: "old"})
	clk.advance(9 * time.Minute)
	c.SetIdentity("p1", Identity{Name: "new"})
	clk.advance(9 * time.Minute)

	got := c.GetIdentity("p1")
	if got == nil || got.Name != "new" {
		t.Fatalf("expected refreshed entry, got %+v", got)
	}
}

func TestMissOnUnknownKey(t *testing.T) {
	c, _ := newTestCache()
	if c.GetIdentity("nobody") != nil || c.GetRank("nobody") != nil {
		t.Fatalf("unknown key should miss")
	}
}

func TestLastWriteWins(t *testing.T) {
	c, _ := newTestCache()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			c.SetRank("p1", Rank{Tier: 10, RankInTier: i})
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		c.GetRank("p1")
	}
	<-done

	if got := c.GetRank("p1"); got == nil || got.Tier != 10 {
		t.Fatalf("expected a winning write, got %+v", got)
	}
}
