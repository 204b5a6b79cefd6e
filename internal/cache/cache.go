package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a resolved field stays valid.
const DefaultTTL = 10 * time.Minute

// Field selects which part of a player's resolution is being cached.
// Identity and rank expire independently.
type Field string

const (
	FieldIdentity Field = "identity"
	FieldRank     Field = "rank"
)

// Identity is a player's resolved display name data.
type Identity struct {
	Name         string `json:"name"`
	Tag          string `json:"tag"`
	AccountLevel int    `json:"accountLevel"`
}

// Rank is a player's resolved competitive standing.
type Rank struct {
	Tier       int `json:"tier"`
	RankInTier int `json:"rankInTier"`
}

type entry struct {
	identity   *Identity
	identityTS time.Time
	rank       *Rank
	rankTS     time.Time
}

// ResolutionCache is a TTL'd per-puuid cache shared across polling cycles.
// Writes are last-write-wins; a read past TTL behaves like a miss and
// evicts the stale field.
type ResolutionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*entry
}

// New creates a cache with the default TTL.
func New() *ResolutionCache {
	return NewWithClock(DefaultTTL, time.Now)
}

// NewWithClock creates a cache with an explicit TTL and clock.
func NewWithClock(ttl time.Duration, now func() time.Time) *ResolutionCache {
	return &ResolutionCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]*entry),
	}
}

// GetIdentity returns the cached identity for puuid, or nil if absent or expired.
func (c *ResolutionCache) GetIdentity(puuid string) *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[puuid]
	if !ok || e.identity == nil {
		return nil
	}
	if c.now().Sub(e.identityTS) > c.ttl {
		e.identity = nil
		c.dropIfEmpty(puuid, e)
		return nil
	}
	return e.identity
}

// GetRank returns the cached rank for puuid, or nil if absent or expired.
func (c *ResolutionCache) GetRank(puuid string) *Rank {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[puuid]
	if !ok || e.rank == nil {
		return nil
	}
	if c.now().Sub(e.rankTS) > c.ttl {
		e.rank = nil
		c.dropIfEmpty(puuid, e)
		return nil
	}
	return e.rank
}

// SetIdentity stores an identity and refreshes its timestamp.
func (c *ResolutionCache) SetIdentity(puuid string, id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.ensure(puuid)
	e.identity = &id
	e.identityTS = c.now()
}

// SetRank stores a rank and refreshes its timestamp.
func (c *ResolutionCache) SetRank(puuid string, r Rank) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.ensure(puuid)
	e.rank = &r
	e.rankTS = c.now()
}

// Clear drops every entry.
func (c *ResolutionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *ResolutionCache) ensure(puuid string) *entry {
	e, ok := c.entries[puuid]
	if !ok {
		e = &entry{}
		c.entries[puuid] = e
	}
	return e
}

func (c *ResolutionCache) dropIfEmpty(puuid string, e *entry) {
	if e.identity == nil && e.rank == nil {
		delete(c.entries, puuid)
	}
}
