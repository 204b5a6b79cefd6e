package automation

import (
	"context"
	"errors"
	"sync"
	"time"

	"ghostlock/internal/riot"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often the current match is checked.
const DefaultPollInterval = 3 * time.Second

// Transition is a phase change observed between two ticks. From carries
// the exited phase so consumers know what kind of match just ended.
type Transition struct {
	From    riot.Phase
	To      riot.Phase
	MatchID string
}

// Poller drives the match phase state machine: one self-rescheduling
// loop that classifies each poll, hands results to the engine, and
// reports snapshots and transitions upward. Ticks never overlap; a slow
// tick delays the next rather than being superseded.
type Poller struct {
	gateway  Gateway
	engine   *Engine
	log      *zap.Logger
	interval time.Duration

	// OnSnapshot fires every successful poll, including ticks where the
	// match identity is unchanged, so live data refreshes each cycle.
	OnSnapshot func(*riot.MatchSnapshot)
	// OnTransition fires only when (phase, matchId) changes.
	OnTransition func(Transition)

	mu           sync.Mutex
	currentPhase riot.Phase
	currentMatch string
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewPoller creates a poller with the default interval.
func NewPoller(gateway Gateway, engine *Engine, log *zap.Logger) *Poller {
	return &Poller{
		gateway:  gateway,
		engine:   engine,
		log:      log,
		interval: DefaultPollInterval,
	}
}

// SetInterval overrides the poll cadence.
func (p *Poller) SetInterval(d time.Duration) {
	p.interval = d
}

// Start launches the polling loop. It is a no-op if already running.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.currentPhase = riot.PhaseNoMatch
	p.currentMatch = ""

	go p.run(ctx)
}

// Stop tears the loop down and waits for the in-flight tick, if any, to
// observe cancellation.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	for {
		pollNow := p.Tick(ctx)
		if ctx.Err() != nil {
			return
		}
		if pollNow {
			continue
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Tick runs a single poll cycle. Exported so the tick unit is directly
// drivable in tests; the loop calls it on schedule.
func (p *Poller) Tick(ctx context.Context) (pollNow bool) {
	snap, err := p.gateway.CurrentMatch(ctx)

	switch {
	case err == nil:
		p.observe(snap.Phase, snap.MatchID)
		if p.OnSnapshot != nil {
			p.OnSnapshot(snap)
		}
		return p.engine.HandleMatch(ctx, snap)

	case errors.Is(err, riot.ErrNotInMatch):
		// Expected state, not a failure
		p.observe(riot.PhaseNoMatch, "")
		p.engine.HandleNotInMatch(ctx)
		return false

	case ctx.Err() != nil:
		return false

	default:
		// Transient: log and leave state untouched for the next tick
		p.log.Warn("match poll failed", zap.Error(err))
		return false
	}
}

// observe updates (phase, matchId) and emits a transition if changed.
func (p *Poller) observe(phase riot.Phase, matchID string) {
	p.mu.Lock()
	prevPhase, prevMatch := p.currentPhase, p.currentMatch
	p.currentPhase, p.currentMatch = phase, matchID
	p.mu.Unlock()

	if prevPhase == phase && prevMatch == matchID {
		return
	}

	p.log.Info("match phase transition",
		zap.String("from", string(prevPhase)),
		zap.String("to", string(phase)),
		zap.String("matchId", matchID))

	if p.OnTransition != nil {
		p.OnTransition(Transition{From: prevPhase, To: phase, MatchID: matchID})
	}
}

// Phase returns the last observed phase and match id.
func (p *Poller) Phase() (riot.Phase, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentPhase, p.currentMatch
}
