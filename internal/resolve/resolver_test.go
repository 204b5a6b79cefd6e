package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ghostlock/internal/cache"
	"ghostlock/internal/providers/henrik"
	"ghostlock/internal/providers/trackgg"
	"ghostlock/internal/riot"

	"go.uber.org/zap"
)

type fakeGateway struct {
	mu        sync.Mutex
	names     map[string]riot.NameEntry
	nameErr   error
	nameCalls int
	mmr       map[string]riot.MMR
	mmrErr    error
}

func (g *fakeGateway) ResolveNames(ctx context.Context, puuids []string) ([]riot.NameEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nameCalls++
	if g.nameErr != nil {
		return nil, g.nameErr
	}
	var out []riot.NameEntry
	for _, p := range puuids {
		if n, ok := g.names[p]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (g *fakeGateway) PlayerMMR(ctx context.Context, puuid string) (riot.MMR, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mmrErr != nil {
		return riot.MMR{}, g.mmrErr
	}
	return g.mmr[puuid], nil
}

type fakeBulk struct {
	available bool
	results   []trackgg.Result
	err       error
	calls     int
}

func (b *fakeBulk) Available() bool { return b.available }

func (b *fakeBulk) Lookup(ctx context.Context, puuids []string) ([]trackgg.Result, error) {
	b.calls++
	return b.results, b.err
}

type fakePlayerProvider struct {
	mu           sync.Mutex
	configured   bool
	accounts     map[string]*henrik.Account
	accountCalls map[string]int
	limitFirstN  map[string]int // rate-limit the first N calls per puuid
	mmrs         map[string]*henrik.MMR
	mmrCalls     map[string]int
}

func (p *fakePlayerProvider) Configured() bool { return p.configured }

func (p *fakePlayerProvider) Account(ctx context.Context, puuid string) (*henrik.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountCalls == nil {
		p.accountCalls = map[string]int{}
	}
	p.accountCalls[puuid]++
	if p.limitFirstN[puuid] >= p.accountCalls[puuid] {
		return nil, henrik.ErrRateLimited
	}
	if acct, ok := p.accounts[puuid]; ok {
		return acct, nil
	}
	return nil, errors.New("not found")
}

func (p *fakePlayerProvider) MMR(ctx context.Context, region, puuid string) (*henrik.MMR, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mmrCalls == nil {
		p.mmrCalls = map[string]int{}
	}
	p.mmrCalls[puuid]++
	if p.limitFirstN[puuid] >= p.mmrCalls[puuid] {
		return nil, henrik.ErrRateLimited
	}
	if m, ok := p.mmrs[puuid]; ok {
		return m, nil
	}
	return nil, errors.New("not found")
}

func newResolver(g *fakeGateway, b *fakeBulk, p *fakePlayerProvider) (*Resolver, *cache.ResolutionCache) {
	c := cache.New()
	r := New(g, b, p, c, zap.NewNop())
	r.SetBackoff(time.Millisecond)
	return r, c
}

func ref(puuid string) riot.PlayerRef {
	return riot.PlayerRef{PUUID: puuid}
}

func TestLocalNamesResolveDirectly(t *testing.T) {
	g := &fakeGateway{names: map[string]riot.NameEntry{
		"p1": {PUUID: "p1", GameName: "TenZ", TagLine: "NA1"},
	}}
	r, _ := newResolver(g, &fakeBulk{}, &fakePlayerProvider{})

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if out[0].Identity == nil || out[0].Identity.Name != "TenZ" {
		t.Fatalf("unexpected identity: %+v", out[0].Identity)
	}
}

func TestBulkProviderTriedFirst(t *testing.T) {
	g := &fakeGateway{names: map[string]riot.NameEntry{}}
	b := &fakeBulk{available: true, results: []trackgg.Result{
		{PUUID: "p1", Name: "Bulk", Tag: "B1"},
	}}
	r, _ := newResolver(g, b, &fakePlayerProvider{})

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if b.calls != 1 {
		t.Fatalf("expected one bulk call, got %d", b.calls)
	}
	if out[0].Identity == nil || out[0].Identity.Name != "Bulk" {
		t.Fatalf("unexpected identity: %+v", out[0].Identity)
	}
	// Bulk satisfied everything, so the local resolver is skipped
	if g.nameCalls != 0 {
		t.Fatalf("local resolver should not be called, got %d calls", g.nameCalls)
	}
}

func TestHiddenNameFallsBackToPlayerProvider(t *testing.T) {
	g := &fakeGateway{names: map[string]riot.NameEntry{
		"p1": {PUUID: "p1", GameName: "a1b2c3d4"}, // hex id, not a real name
	}}
	p := &fakePlayerProvider{
		configured: true,
		accounts:   map[string]*henrik.Account{"p1": {Name: "Hidden", Tag: "H1", AccountLevel: 99}},
	}
	r, _ := newResolver(g, &fakeBulk{}, p)

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if out[0].Identity == nil || out[0].Identity.Name != "Hidden" {
		t.Fatalf("unexpected identity: %+v", out[0].Identity)
	}
}

func TestIncognitoFlagForcesFallback(t *testing.T) {
	g := &fakeGateway{names: map[string]riot.NameEntry{
		"p1": {PUUID: "p1", GameName: "RealName", TagLine: "NA1"},
	}}
	p := &fakePlayerProvider{
		configured: true,
		accounts:   map[string]*henrik.Account{"p1": {Name: "Unmasked", Tag: "U1"}},
	}
	r, _ := newResolver(g, &fakeBulk{}, p)

	player := ref("p1")
	player.Incognito = true
	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{player})
	if out[0].Identity == nil || out[0].Identity.Name != "Unmasked" {
		t.Fatalf("incognito player should resolve via fallback, got %+v", out[0].Identity)
	}
}

func TestAllPathsExhaustedYieldsAbsentNotError(t *testing.T) {
	g := &fakeGateway{names: map[string]riot.NameEntry{
		"p1": {PUUID: "p1", GameName: "deadbeef00"},
	}}
	// bulk unavailable, fallback key absent
	r, _ := newResolver(g, &fakeBulk{available: false}, &fakePlayerProvider{configured: false})

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if out[0].Identity != nil {
		t.Fatalf("expected absent identity, got %+v", out[0].Identity)
	}
}

func TestRateLimitRetriesExactlyOnce(t *testing.T) {
	g := &fakeGateway{names: map[string]riot.NameEntry{
		"p1": {PUUID: "p1", GameName: "abcdef12"},
	}}
	p := &fakePlayerProvider{
		configured:  true,
		accounts:    map[string]*henrik.Account{"p1": {Name: "Late", Tag: "L1"}},
		limitFirstN: map[string]int{"p1": 1},
	}
	r, _ := newResolver(g, &fakeBulk{}, p)

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if p.accountCalls["p1"] != 2 {
		t.Fatalf("expected exactly 2 calls (original + one retry), got %d", p.accountCalls["p1"])
	}
	if out[0].Identity == nil || out[0].Identity.Name != "Late" {
		t.Fatalf("unexpected identity: %+v", out[0].Identity)
	}
}

func TestSecondRateLimitLeavesUnresolved(t *testing.T) {
	g := &fakeGateway{names: map[string]riot.NameEntry{
		"p1": {PUUID: "p1", GameName: "abcdef12"},
	}}
	p := &fakePlayerProvider{
		configured:  true,
		accounts:    map[string]*henrik.Account{"p1": {Name: "Never"}},
		limitFirstN: map[string]int{"p1": 2},
	}
	r, _ := newResolver(g, &fakeBulk{}, p)

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if p.accountCalls["p1"] != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", p.accountCalls["p1"])
	}
	if out[0].Identity != nil {
		t.Fatalf("expected unresolved identity after second rate limit, got %+v", out[0].Identity)
	}
}

func TestLocalMMRSentinelFallsBack(t *testing.T) {
	g := &fakeGateway{
		names: map[string]riot.NameEntry{"p1": {PUUID: "p1", GameName: "TenZ"}},
		mmr:   map[string]riot.MMR{"p1": {Tier: 0, RankInTier: 0}},
	}
	p := &fakePlayerProvider{
		configured: true,
		mmrs:       map[string]*henrik.MMR{"p1": {Tier: 22, RankInTier: 10}},
	}
	r, _ := newResolver(g, &fakeBulk{}, p)

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if out[0].Rank == nil || out[0].Rank.Tier != 22 {
		t.Fatalf("expected fallback rank, got %+v", out[0].Rank)
	}
}

func TestLocalMMRWithDataSkipsFallback(t *testing.T) {
	g := &fakeGateway{
		names: map[string]riot.NameEntry{"p1": {PUUID: "p1", GameName: "TenZ"}},
		mmr:   map[string]riot.MMR{"p1": {Tier: 15, RankInTier: 55}},
	}
	p := &fakePlayerProvider{configured: true}
	r, _ := newResolver(g, &fakeBulk{}, p)

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if out[0].Rank == nil || out[0].Rank.Tier != 15 || out[0].Rank.RankInTier != 55 {
		t.Fatalf("unexpected rank: %+v", out[0].Rank)
	}
	if p.mmrCalls["p1"] != 0 {
		t.Fatalf("fallback should not be consulted when local has data")
	}
}

func TestCachedPlayersSkipProviders(t *testing.T) {
	g := &fakeGateway{names: map[string]riot.NameEntry{}}
	r, c := newResolver(g, &fakeBulk{}, &fakePlayerProvider{})

	c.SetIdentity("p1", cache.Identity{Name: "Cached"})
	c.SetRank("p1", cache.Rank{Tier: 9})

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1")})
	if g.nameCalls != 0 {
		t.Fatalf("cached player must not hit the gateway")
	}
	if out[0].Identity.Name != "Cached" || out[0].Rank.Tier != 9 {
		t.Fatalf("unexpected cached resolution: %+v", out[0])
	}
}

func TestGatewayFailureIsNonFatal(t *testing.T) {
	g := &fakeGateway{nameErr: errors.New("network down"), mmrErr: errors.New("network down")}
	r, _ := newResolver(g, &fakeBulk{}, &fakePlayerProvider{})

	out := r.Resolve(context.Background(), "na", []riot.PlayerRef{ref("p1"), ref("p2")})
	for _, p := range out {
		if p.Identity != nil || p.Rank != nil {
			t.Fatalf("expected unresolved players, got %+v", p)
		}
	}
}
