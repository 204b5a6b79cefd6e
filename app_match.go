package main

import (
	"context"
	"time"

	"ghostlock/internal/automation"
	"ghostlock/internal/riot"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
)

// onMatchSnapshot fires on every successful poll. Player resolution
// runs off the poll goroutine so a slow provider never delays the next
// tick.
func (a *App) onMatchSnapshot(snap *riot.MatchSnapshot) {
	snapshot := *snap
	go func() {
		player := a.riot.Player()
		if player == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		resolved := a.getResolver().Resolve(ctx, player.Region, snapshot.Players)

		runtime.EventsEmit(a.ctx, "match:update", map[string]interface{}{
			"phase":        snapshot.Phase,
			"matchId":      snapshot.MatchID,
			"mapId":        snapshot.MapID,
			"mode":         snapshot.Mode,
			"serverPod":    snapshot.ServerPod,
			"pregameState": snapshot.PregameState,
			"players":      resolved,
		})
	}()
}

// onMatchTransition fires when the (phase, match) pair changes.
func (a *App) onMatchTransition(tr automation.Transition) {
	runtime.EventsEmit(a.ctx, "match:transition", map[string]interface{}{
		"from":    tr.From,
		"to":      tr.To,
		"matchId": tr.MatchID,
	})
	if tr.To == riot.PhaseNoMatch {
		runtime.EventsEmit(a.ctx, "match:update", map[string]interface{}{
			"phase": riot.PhaseNoMatch,
		})
	}
}

// GetMatchState returns the last observed phase for the UI.
func (a *App) GetMatchState() map[string]interface{} {
	phase, matchID := a.poller.Phase()
	return map[string]interface{}{
		"phase":   phase,
		"matchId": matchID,
	}
}

// DodgeCurrentMatch quits the current match on user request, working in
// both the agent select and live phases.
func (a *App) DodgeCurrentMatch() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snap, err := a.riot.CurrentMatch(ctx)
	if err != nil {
		return map[string]interface{}{"ok": false, "error": "not in a match"}
	}

	switch snap.Phase {
	case riot.PhasePregame:
		err = a.riot.PregameQuit(ctx, snap.MatchID)
	case riot.PhaseInGame:
		err = a.riot.CoregameQuit(ctx, snap.MatchID)
	}
	if err != nil {
		a.log.Error("manual dodge failed", zap.Error(err))
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}

	a.engine.ClearPregameGuards()
	a.log.Info("manually dodged match", zap.String("matchId", snap.MatchID))
	return map[string]interface{}{"ok": true}
}
