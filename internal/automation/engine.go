// Package automation drives instalock, map dodge and queue automation
// off the match phase poller.
package automation

import (
	"context"
	"sync"
	"time"

	"ghostlock/internal/riot"

	"go.uber.org/zap"
)

// Gateway is the slice of the session gateway the engine acts through.
// All calls are best-effort; failures are logged and never retried
// beyond what each flow states.
type Gateway interface {
	CurrentMatch(ctx context.Context) (*riot.MatchSnapshot, error)
	SelectAgent(ctx context.Context, matchID, agentID string) error
	LockAgent(ctx context.Context, matchID, agentID string) error
	PregameQuit(ctx context.Context, matchID string) error
	EnterQueue(ctx context.Context) error
	LeaveQueue(ctx context.Context) error
}

// RunState is the per-session automation memory. It is reset whenever
// the poller confirms the player is out of a match.
type RunState struct {
	LastPhase      riot.Phase
	LockedMatchID  string
	DodgedMatchID  string
	PendingUnqueue bool
	PendingRequeue bool
}

// Engine applies automation decisions to classified poll results. The
// dodge and lock guards are independent: a match evaluated but not
// dodged can still be evaluated for locking.
type Engine struct {
	gateway Gateway
	log     *zap.Logger

	mu    sync.Mutex
	cfg   Config
	state RunState

	// sleep is a seam for tests; production uses a cancellable wait
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an engine with default configuration.
func NewEngine(gateway Gateway, log *zap.Logger) *Engine {
	return &Engine{
		gateway: gateway,
		log:     log,
		cfg:     DefaultConfig(),
		sleep:   sleepCtx,
	}
}

// SetConfig replaces the automation configuration.
func (e *Engine) SetConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// Config returns the current configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// State returns a copy of the run state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// HandleMatch processes one successful poll. The returned pollNow asks
// the poller to skip the interval and poll again immediately (set after
// a successful dodge, so the freed state is observed right away).
func (e *Engine) HandleMatch(ctx context.Context, snap *riot.MatchSnapshot) (pollNow bool) {
	e.mu.Lock()
	e.state.LastPhase = snap.Phase
	cfg := e.cfg
	e.mu.Unlock()

	if snap.Phase != riot.PhasePregame {
		return false
	}

	// Dodge is evaluated first and short-circuits the lock check for
	// this tick.
	if cfg.MapDodgeActive && e.shouldDodge(cfg, snap) {
		return e.dodge(ctx, snap)
	}

	if cfg.InstalockActive {
		e.maybeLock(ctx, cfg, snap)
	}
	return false
}

// HandleNotInMatch processes a "not in a match" poll result: queue
// follow-ups fire only on a second consecutive NoMatch observation, and
// all per-match guards reset.
func (e *Engine) HandleNotInMatch(ctx context.Context) {
	e.mu.Lock()
	prevPhase := e.state.LastPhase
	e.state.LastPhase = riot.PhaseNoMatch

	if prevPhase == riot.PhasePregame {
		if e.cfg.AutoUnqueue {
			e.log.Info("dodge detected, waiting for confirmed out-of-match")
			e.state.PendingUnqueue = true
		} else {
			e.log.Info("dodge detected but auto-unqueue is off")
		}
	}
	if prevPhase == riot.PhaseInGame {
		if e.cfg.AutoRequeue {
			e.log.Info("match ended, waiting for confirmed out-of-match")
			e.state.PendingRequeue = true
		} else {
			e.log.Info("match ended but auto-requeue is off")
		}
	}

	fireUnqueue := false
	fireRequeue := false
	if prevPhase == riot.PhaseNoMatch || prevPhase == "" {
		if e.state.PendingUnqueue {
			e.state.PendingUnqueue = false
			fireUnqueue = true
		}
		if e.state.PendingRequeue {
			e.state.PendingRequeue = false
			fireRequeue = true
		}
	}

	e.state.LockedMatchID = ""
	e.state.DodgedMatchID = ""
	e.mu.Unlock()

	// Fire-and-forget: the flags are already cleared, success or not
	if fireUnqueue {
		if err := e.gateway.LeaveQueue(ctx); err != nil {
			e.log.Error("failed to leave queue after dodge", zap.Error(err))
		} else {
			e.log.Info("left queue after dodge")
		}
	}
	if fireRequeue {
		if err := e.gateway.EnterQueue(ctx); err != nil {
			e.log.Error("failed to requeue after match", zap.Error(err))
		} else {
			e.log.Info("requeued after match")
		}
	}
}

func (e *Engine) shouldDodge(cfg Config, snap *riot.MatchSnapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.DodgedMatchID != snap.MatchID && cfg.MapDodge.Blacklisted(snap.MapID)
}

func (e *Engine) dodge(ctx context.Context, snap *riot.MatchSnapshot) (pollNow bool) {
	e.mu.Lock()
	e.state.DodgedMatchID = snap.MatchID
	e.mu.Unlock()

	e.log.Info("map blacklisted, auto-dodging",
		zap.String("map", snap.MapID), zap.String("matchId", snap.MatchID))

	if err := e.gateway.PregameQuit(ctx, snap.MatchID); err != nil {
		e.log.Error("auto-dodge failed", zap.Error(err))
		return false
	}

	e.mu.Lock()
	e.state.LockedMatchID = ""
	e.mu.Unlock()
	e.log.Info("auto-dodged blacklisted map", zap.String("map", snap.MapID))
	return true
}

func (e *Engine) maybeLock(ctx context.Context, cfg Config, snap *riot.MatchSnapshot) {
	e.mu.Lock()
	alreadyProcessed := e.state.LockedMatchID == snap.MatchID
	e.mu.Unlock()

	if alreadyProcessed || snap.PregameState != "character_select_active" {
		return
	}

	agent := cfg.Instalock.AgentFor(snap.MapID)
	switch {
	case agent.IsNone():
		e.markProcessed(snap.MatchID)
		e.log.Info("instalock disabled for this map", zap.String("map", snap.MapID))

	case agent != nil:
		// Marked before the delays so a tick firing mid-wait cannot
		// start a second attempt.
		e.markProcessed(snap.MatchID)

		e.log.Info("selecting agent",
			zap.String("agent", agent.DisplayName),
			zap.Duration("delay", cfg.SelectDelay))
		if err := e.sleep(ctx, cfg.SelectDelay); err != nil {
			return
		}
		if err := e.gateway.SelectAgent(ctx, snap.MatchID, agent.UUID); err != nil {
			e.log.Error("agent select failed", zap.Error(err))
			return
		}

		e.log.Info("selected, locking",
			zap.String("agent", agent.DisplayName),
			zap.Duration("delay", cfg.LockDelay))
		if err := e.sleep(ctx, cfg.LockDelay); err != nil {
			return
		}
		if err := e.gateway.LockAgent(ctx, snap.MatchID, agent.UUID); err != nil {
			e.log.Error("agent lock failed", zap.Error(err))
			return
		}
		e.log.Info("locked agent", zap.String("agent", agent.DisplayName))

	default:
		e.log.Info("no agent configured for this map", zap.String("map", snap.MapID))
	}
}

func (e *Engine) markProcessed(matchID string) {
	e.mu.Lock()
	e.state.LockedMatchID = matchID
	e.mu.Unlock()
}

// ClearPregameGuards resets the per-match dodge/lock guards, used after
// a manual dodge.
func (e *Engine) ClearPregameGuards() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.LockedMatchID = ""
	e.state.DodgedMatchID = ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
