package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ghostlock/internal/riot"

	"go.uber.org/zap"
)

// scriptedGateway returns queued poll results and records action calls.
type scriptedGateway struct {
	mu      sync.Mutex
	polls   []pollResult
	pollIdx int
	calls   []string
	quitErr error
}

type pollResult struct {
	snap *riot.MatchSnapshot
	err  error
}

func (g *scriptedGateway) CurrentMatch(ctx context.Context) (*riot.MatchSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pollIdx >= len(g.polls) {
		return nil, riot.ErrNotInMatch
	}
	r := g.polls[g.pollIdx]
	g.pollIdx++
	return r.snap, r.err
}

func (g *scriptedGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *scriptedGateway) SelectAgent(ctx context.Context, matchID, agentID string) error {
	g.record("select:" + matchID + ":" + agentID)
	return nil
}

func (g *scriptedGateway) LockAgent(ctx context.Context, matchID, agentID string) error {
	g.record("lock:" + matchID + ":" + agentID)
	return nil
}

func (g *scriptedGateway) PregameQuit(ctx context.Context, matchID string) error {
	g.record("quit:" + matchID)
	return g.quitErr
}

func (g *scriptedGateway) EnterQueue(ctx context.Context) error {
	g.record("enterQueue")
	return nil
}

func (g *scriptedGateway) LeaveQueue(ctx context.Context) error {
	g.record("leaveQueue")
	return nil
}

func (g *scriptedGateway) callCount(prefix string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func pregameSnap(matchID, mapID string) *riot.MatchSnapshot {
	return &riot.MatchSnapshot{
		Phase:        riot.PhasePregame,
		MatchID:      matchID,
		MapID:        mapID,
		PregameState: "character_select_active",
	}
}

func ingameSnap(matchID string) *riot.MatchSnapshot {
	return &riot.MatchSnapshot{Phase: riot.PhaseInGame, MatchID: matchID, MapID: "/maps/ascent"}
}

func newTestEngine(g *scriptedGateway, cfg Config) *Engine {
	e := NewEngine(g, zap.NewNop())
	// no real waiting in tests
	e.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	e.SetConfig(cfg)
	return e
}

func instalockCfg() Config {
	cfg := DefaultConfig()
	cfg.InstalockActive = true
	cfg.Instalock = InstalockConfig{
		DefaultAgent: &AgentRef{UUID: "jett-uuid", DisplayName: "Jett"},
		PerMap:       map[string]*AgentRef{},
	}
	return cfg
}

func TestLockFiresExactlyOncePerMatch(t *testing.T) {
	g := &scriptedGateway{}
	e := newTestEngine(g, instalockCfg())

	snap := pregameSnap("m1", "Duality")
	for i := 0; i < 5; i++ {
		e.HandleMatch(context.Background(), snap)
	}

	if got := g.callCount("select:"); got != 1 {
		t.Fatalf("select called %d times, want 1", got)
	}
	if got := g.callCount("lock:"); got != 1 {
		t.Fatalf("lock called %d times, want 1", got)
	}
}

func TestNoneSentinelBeatsDefaultAgent(t *testing.T) {
	g := &scriptedGateway{}
	cfg := instalockCfg()
	cfg.Instalock.PerMap["Duality"] = &AgentRef{UUID: AgentNoneUUID, DisplayName: "None"}
	e := newTestEngine(g, cfg)

	e.HandleMatch(context.Background(), pregameSnap("m1", "Duality"))

	if len(g.calls) != 0 {
		t.Fatalf("no gateway calls expected, got %v", g.calls)
	}
	if e.State().LockedMatchID != "m1" {
		t.Fatalf("match should be marked processed")
	}
}

func TestPerMapMissingFallsBackToDefault(t *testing.T) {
	g := &scriptedGateway{}
	cfg := instalockCfg()
	cfg.Instalock.PerMap["SomeOtherMap"] = &AgentRef{UUID: "sova-uuid", DisplayName: "Sova"}
	e := newTestEngine(g, cfg)

	e.HandleMatch(context.Background(), pregameSnap("m1", "Duality"))

	if got := g.callCount("select:m1:jett-uuid"); got != 1 {
		t.Fatalf("expected default agent select, calls: %v", g.calls)
	}
}

func TestPerMapEntryOverridesDefault(t *testing.T) {
	g := &scriptedGateway{}
	cfg := instalockCfg()
	cfg.Instalock.PerMap["Duality"] = &AgentRef{UUID: "sova-uuid", DisplayName: "Sova"}
	e := newTestEngine(g, cfg)

	e.HandleMatch(context.Background(), pregameSnap("m1", "Duality"))

	if got := g.callCount("select:m1:sova-uuid"); got != 1 {
		t.Fatalf("expected per-map agent select, calls: %v", g.calls)
	}
}

func TestDodgeShortCircuitsLock(t *testing.T) {
	g := &scriptedGateway{}
	cfg := instalockCfg()
	cfg.MapDodgeActive = true
	cfg.MapDodge = MapDodgeConfig{Blacklist: map[string]bool{"Duality": true}}
	e := newTestEngine(g, cfg)

	pollNow := e.HandleMatch(context.Background(), pregameSnap("m1", "Duality"))

	if !pollNow {
		t.Fatalf("successful dodge should request an immediate re-poll")
	}
	if got := g.callCount("quit:m1"); got != 1 {
		t.Fatalf("quit called %d times, want 1", got)
	}
	if g.callCount("select:") != 0 || g.callCount("lock:") != 0 {
		t.Fatalf("dodged match must not be selected or locked, calls: %v", g.calls)
	}
}

func TestDodgeFailureSkipsLockThisTickOnly(t *testing.T) {
	g := &scriptedGateway{quitErr: errors.New("quit rejected")}
	cfg := instalockCfg()
	cfg.MapDodgeActive = true
	cfg.MapDodge = MapDodgeConfig{Blacklist: map[string]bool{"Duality": true}}
	e := newTestEngine(g, cfg)

	snap := pregameSnap("m1", "Duality")
	pollNow := e.HandleMatch(context.Background(), snap)
	if pollNow {
		t.Fatalf("failed dodge should wait for the next scheduled tick")
	}
	if g.callCount("select:") != 0 {
		t.Fatalf("lock logic must not run in the same tick as a dodge attempt")
	}

	// The match is marked dodged even on failure, so the next tick
	// proceeds to the lock check.
	e.HandleMatch(context.Background(), snap)
	if g.callCount("quit:") != 1 {
		t.Fatalf("dodge must not be re-attempted for the same match")
	}
	if g.callCount("select:m1:jett-uuid") != 1 {
		t.Fatalf("lock should proceed on the following tick, calls: %v", g.calls)
	}
}

func TestUnblacklistedMapIsLockedNotDodged(t *testing.T) {
	g := &scriptedGateway{}
	cfg := instalockCfg()
	cfg.MapDodgeActive = true
	cfg.MapDodge = MapDodgeConfig{Blacklist: map[string]bool{"Fracture": true}}
	e := newTestEngine(g, cfg)

	e.HandleMatch(context.Background(), pregameSnap("m1", "Duality"))

	if g.callCount("quit:") != 0 {
		t.Fatalf("map not on blacklist must not be dodged")
	}
	if g.callCount("lock:m1:jett-uuid") != 1 {
		t.Fatalf("expected lock, calls: %v", g.calls)
	}
}

func TestLockRequiresSelectionActive(t *testing.T) {
	g := &scriptedGateway{}
	e := newTestEngine(g, instalockCfg())

	snap := pregameSnap("m1", "Duality")
	snap.PregameState = "provisioned"
	e.HandleMatch(context.Background(), snap)

	if len(g.calls) != 0 {
		t.Fatalf("lock must wait for selection to be active, calls: %v", g.calls)
	}

	// Once the readiness field flips, the same match locks normally
	snap.PregameState = "character_select_active"
	e.HandleMatch(context.Background(), snap)
	if g.callCount("lock:m1:jett-uuid") != 1 {
		t.Fatalf("expected lock after readiness, calls: %v", g.calls)
	}
}

func TestRequeueFiresOnSecondNoMatchTick(t *testing.T) {
	g := &scriptedGateway{}
	cfg := DefaultConfig()
	cfg.AutoRequeue = true
	e := newTestEngine(g, cfg)

	ctx := context.Background()
	e.HandleMatch(ctx, ingameSnap("m1"))
	e.HandleNotInMatch(ctx)
	if g.callCount("enterQueue") != 0 {
		t.Fatalf("requeue must not fire on the first NoMatch tick")
	}

	e.HandleNotInMatch(ctx)
	if g.callCount("enterQueue") != 1 {
		t.Fatalf("requeue should fire exactly once on the second NoMatch tick, calls: %v", g.calls)
	}

	e.HandleNotInMatch(ctx)
	if g.callCount("enterQueue") != 1 {
		t.Fatalf("requeue must not fire again, calls: %v", g.calls)
	}
}

func TestUnqueueFiresAfterPregameExit(t *testing.T) {
	g := &scriptedGateway{}
	cfg := DefaultConfig()
	cfg.AutoUnqueue = true
	e := newTestEngine(g, cfg)

	ctx := context.Background()
	e.HandleMatch(ctx, pregameSnap("m1", "Duality"))
	e.HandleNotInMatch(ctx)
	e.HandleNotInMatch(ctx)

	if g.callCount("leaveQueue") != 1 {
		t.Fatalf("expected exactly one leaveQueue, calls: %v", g.calls)
	}
	if g.callCount("enterQueue") != 0 {
		t.Fatalf("pregame exit must not requeue")
	}
}

func TestQueueFollowupsDisabledByDefault(t *testing.T) {
	g := &scriptedGateway{}
	e := newTestEngine(g, DefaultConfig())

	ctx := context.Background()
	e.HandleMatch(ctx, ingameSnap("m1"))
	e.HandleNotInMatch(ctx)
	e.HandleNotInMatch(ctx)

	if len(g.calls) != 0 {
		t.Fatalf("no queue calls expected with automation off, got %v", g.calls)
	}
}

func TestNoMatchResetsGuards(t *testing.T) {
	g := &scriptedGateway{}
	e := newTestEngine(g, instalockCfg())

	ctx := context.Background()
	e.HandleMatch(ctx, pregameSnap("m1", "Duality"))
	e.HandleNotInMatch(ctx)

	st := e.State()
	if st.LockedMatchID != "" || st.DodgedMatchID != "" {
		t.Fatalf("guards should reset on NoMatch: %+v", st)
	}

	// A re-entry into the same match id after reset locks again; the
	// guards intentionally do not survive a confirmed exit.
	e.HandleMatch(ctx, pregameSnap("m1", "Duality"))
	if g.callCount("select:") != 2 {
		t.Fatalf("expected a fresh lock attempt after reset, calls: %v", g.calls)
	}
}

func TestCancelledDelaySuppressesActions(t *testing.T) {
	g := &scriptedGateway{}
	e := NewEngine(g, zap.NewNop())
	cfg := instalockCfg()
	cfg.SelectDelay = 50 * time.Millisecond
	e.SetConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.HandleMatch(ctx, pregameSnap("m1", "Duality"))

	if len(g.calls) != 0 {
		t.Fatalf("cancelled tick must not act, calls: %v", g.calls)
	}
}

func TestScenarioDefaultAgentLockSequence(t *testing.T) {
	g := &scriptedGateway{}
	e := NewEngine(g, zap.NewNop())
	cfg := Config{
		InstalockActive: true,
		Instalock: InstalockConfig{
			DefaultAgent: &AgentRef{UUID: "jett-uuid", DisplayName: "Jett"},
			PerMap:       map[string]*AgentRef{},
		},
		SelectDelay: 0,
		LockDelay:   5 * time.Millisecond,
	}
	e.SetConfig(cfg)

	snap := &riot.MatchSnapshot{
		Phase:        riot.PhasePregame,
		MatchID:      "m1",
		MapID:        "Duality",
		PregameState: "character_select_active",
	}
	e.HandleMatch(context.Background(), snap)

	g.mu.Lock()
	defer g.mu.Unlock()
	want := []string{"select:m1:jett-uuid", "lock:m1:jett-uuid"}
	if len(g.calls) != 2 || g.calls[0] != want[0] || g.calls[1] != want[1] {
		t.Fatalf("unexpected call sequence: %v", g.calls)
	}
}

func TestScenarioBlacklistedMapDodges(t *testing.T) {
	g := &scriptedGateway{}
	e := newTestEngine(g, func() Config {
		cfg := instalockCfg()
		cfg.MapDodgeActive = true
		cfg.MapDodge = MapDodgeConfig{Blacklist: map[string]bool{"Duality": true}}
		return cfg
	}())

	e.HandleMatch(context.Background(), pregameSnap("m1", "Duality"))

	if g.callCount("quit:m1") != 1 {
		t.Fatalf("expected one quit, calls: %v", g.calls)
	}
	if g.callCount("select:") != 0 || g.callCount("lock:") != 0 {
		t.Fatalf("select/lock must never fire for a dodged match, calls: %v", g.calls)
	}
}
