// Package resolve reconciles player identities and ranks from the local
// game client and two external providers into the shared resolution
// cache. Providers are unreliable and rate limited; every failure leaves
// the player unresolved for this cycle rather than failing the batch.
package resolve

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"ghostlock/internal/cache"
	"ghostlock/internal/providers/henrik"
	"ghostlock/internal/providers/trackgg"
	"ghostlock/internal/riot"

	"go.uber.org/zap"
)

// DefaultBackoff is how long to wait after a rate-limit response before
// the single retry.
const DefaultBackoff = 3000 * time.Millisecond

// hexNamePattern matches "names" that are really unresolved internal ids.
var hexNamePattern = regexp.MustCompile(`(?i)^[a-f0-9]{6,}$`)

// LocalGateway is the cheap, unlimited name/rank source on the game client.
type LocalGateway interface {
	ResolveNames(ctx context.Context, puuids []string) ([]riot.NameEntry, error)
	PlayerMMR(ctx context.Context, puuid string) (riot.MMR, error)
}

// BulkProvider resolves many players in one request.
type BulkProvider interface {
	Available() bool
	Lookup(ctx context.Context, puuids []string) ([]trackgg.Result, error)
}

// PlayerProvider resolves one player at a time and may rate limit.
type PlayerProvider interface {
	Configured() bool
	Account(ctx context.Context, puuid string) (*henrik.Account, error)
	MMR(ctx context.Context, region, puuid string) (*henrik.MMR, error)
}

// ResolvedPlayer is a match player enriched with whatever resolution
// succeeded. Nil fields mean unresolved this cycle.
type ResolvedPlayer struct {
	riot.PlayerRef
	Identity *cache.Identity `json:"identity"`
	Rank     *cache.Rank     `json:"rank"`
}

// Resolver runs the identity/rank pipeline against the cache.
type Resolver struct {
	gateway  LocalGateway
	bulk     BulkProvider
	fallback PlayerProvider
	cache    *cache.ResolutionCache
	log      *zap.Logger
	backoff  time.Duration
}

// New creates a resolver with the default rate-limit backoff.
func New(gateway LocalGateway, bulk BulkProvider, fallback PlayerProvider, c *cache.ResolutionCache, log *zap.Logger) *Resolver {
	return &Resolver{
		gateway:  gateway,
		bulk:     bulk,
		fallback: fallback,
		cache:    c,
		log:      log,
		backoff:  DefaultBackoff,
	}
}

// SetBackoff overrides the rate-limit backoff window.
func (r *Resolver) SetBackoff(d time.Duration) {
	r.backoff = d
}

// Resolve fills in identity and rank for the given players, consulting
// the cache first and writing every success back into it.
func (r *Resolver) Resolve(ctx context.Context, region string, players []riot.PlayerRef) []ResolvedPlayer {
	resolved := make([]ResolvedPlayer, len(players))
	var needIdentity, needRank []riot.PlayerRef

	for i, p := range players {
		resolved[i] = ResolvedPlayer{PlayerRef: p}
		if id := r.cache.GetIdentity(p.PUUID); id != nil {
			resolved[i].Identity = id
		} else {
			needIdentity = append(needIdentity, p)
		}
		if rank := r.cache.GetRank(p.PUUID); rank != nil {
			resolved[i].Rank = rank
		} else {
			needRank = append(needRank, p)
		}
	}

	if len(needIdentity) > 0 {
		r.resolveIdentities(ctx, needIdentity)
	}
	if len(needRank) > 0 {
		r.resolveRanks(ctx, region, needRank)
	}

	// Pick up everything the pipeline wrote
	for i := range resolved {
		if resolved[i].Identity == nil {
			resolved[i].Identity = r.cache.GetIdentity(resolved[i].PUUID)
		}
		if resolved[i].Rank == nil {
			resolved[i].Rank = r.cache.GetRank(resolved[i].PUUID)
		}
	}
	return resolved
}

// resolveIdentities walks the priority chain: bulk provider, then the
// local name service, then the per-player fallback for hidden names.
func (r *Resolver) resolveIdentities(ctx context.Context, players []riot.PlayerRef) {
	unresolved := make(map[string]riot.PlayerRef, len(players))
	for _, p := range players {
		unresolved[p.PUUID] = p
	}

	if r.bulk != nil && r.bulk.Available() {
		puuids := make([]string, 0, len(unresolved))
		for puuid := range unresolved {
			puuids = append(puuids, puuid)
		}
		results, err := r.bulk.Lookup(ctx, puuids)
		if err != nil {
			r.log.Warn("bulk lookup failed", zap.Error(err))
		} else {
			for _, res := range results {
				if res.Name == "" {
					continue
				}
				r.cache.SetIdentity(res.PUUID, cache.Identity{Name: res.Name, Tag: res.Tag})
				delete(unresolved, res.PUUID)
			}
		}
	}

	if len(unresolved) == 0 {
		return
	}

	// The local name service is free, so it is tried for every player
	// still unresolved.
	puuids := make([]string, 0, len(unresolved))
	for puuid := range unresolved {
		puuids = append(puuids, puuid)
	}

	names := map[string]riot.NameEntry{}
	entries, err := r.gateway.ResolveNames(ctx, puuids)
	if err != nil {
		r.log.Warn("local name resolution failed", zap.Error(err))
	} else {
		for _, e := range entries {
			names[e.PUUID] = e
		}
	}

	var hidden []riot.PlayerRef
	for puuid, p := range unresolved {
		entry, ok := names[puuid]
		if !ok || nameLooksHidden(entry.GameName) || p.Incognito || p.HideLevel {
			hidden = append(hidden, p)
			continue
		}
		r.cache.SetIdentity(puuid, cache.Identity{
			Name:         entry.GameName,
			Tag:          entry.TagLine,
			AccountLevel: p.AccountLevel,
		})
	}

	if len(hidden) == 0 || r.fallback == nil || !r.fallback.Configured() {
		return
	}

	var wg sync.WaitGroup
	for _, p := range hidden {
		wg.Add(1)
		go func(p riot.PlayerRef) {
			defer wg.Done()
			acct, err := r.withRateLimitRetry(ctx, func() (interface{}, error) {
				return r.fallback.Account(ctx, p.PUUID)
			})
			if err != nil {
				r.log.Debug("fallback account lookup failed",
					zap.String("puuid", p.PUUID), zap.Error(err))
				return
			}
			a := acct.(*henrik.Account)
			r.cache.SetIdentity(p.PUUID, cache.Identity{
				Name:         a.Name,
				Tag:          a.Tag,
				AccountLevel: a.AccountLevel,
			})
		}(p)
	}
	wg.Wait()
}

// resolveRanks tries the local MMR endpoint per player, falling back to
// the per-player provider when the local endpoint has no data.
func (r *Resolver) resolveRanks(ctx context.Context, region string, players []riot.PlayerRef) {
	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(p riot.PlayerRef) {
			defer wg.Done()

			mmr, err := r.gateway.PlayerMMR(ctx, p.PUUID)
			if err == nil && mmr.HasData() {
				r.cache.SetRank(p.PUUID, cache.Rank{Tier: mmr.Tier, RankInTier: mmr.RankInTier})
				return
			}
			if err != nil {
				r.log.Debug("local mmr lookup failed",
					zap.String("puuid", p.PUUID), zap.Error(err))
			}

			if r.fallback == nil || !r.fallback.Configured() {
				return
			}

			result, err := r.withRateLimitRetry(ctx, func() (interface{}, error) {
				return r.fallback.MMR(ctx, region, p.PUUID)
			})
			if err != nil {
				r.log.Debug("fallback mmr lookup failed",
					zap.String("puuid", p.PUUID), zap.Error(err))
				return
			}
			m := result.(*henrik.MMR)
			r.cache.SetRank(p.PUUID, cache.Rank{Tier: m.Tier, RankInTier: m.RankInTier})
		}(p)
	}
	wg.Wait()
}

// withRateLimitRetry runs call, and on a rate-limit response waits one
// backoff window and retries exactly once.
func (r *Resolver) withRateLimitRetry(ctx context.Context, call func() (interface{}, error)) (interface{}, error) {
	result, err := call()
	if !errors.Is(err, henrik.ErrRateLimited) {
		return result, err
	}

	if err := sleepCtx(ctx, r.backoff); err != nil {
		return nil, err
	}
	return call()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nameLooksHidden reports whether a resolved name is really an
// unresolved internal id.
func nameLooksHidden(name string) bool {
	return name == "" || hexNamePattern.MatchString(name)
}
