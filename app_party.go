package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func (a *App) partyCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

// GetParty returns the current party with member names resolved.
func (a *App) GetParty() map[string]interface{} {
	ctx, cancel := a.partyCtx()
	defer cancel()

	party, err := a.riot.GetParty(ctx)
	if err != nil {
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	return map[string]interface{}{"ok": true, "party": party}
}

// SetPartyOpen toggles the party between open and closed.
func (a *App) SetPartyOpen(open bool) map[string]interface{} {
	ctx, cancel := a.partyCtx()
	defer cancel()

	if err := a.riot.SetPartyAccessibility(ctx, open); err != nil {
		a.log.Error("failed to set party accessibility", zap.Error(err))
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	return map[string]interface{}{"ok": true}
}

// GeneratePartyCode creates an invite code for the current party.
func (a *App) GeneratePartyCode() map[string]interface{} {
	ctx, cancel := a.partyCtx()
	defer cancel()

	code, err := a.riot.GeneratePartyCode(ctx)
	if err != nil {
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	return map[string]interface{}{"ok": true, "code": code}
}

// DisablePartyCode revokes the current invite code.
func (a *App) DisablePartyCode() map[string]interface{} {
	ctx, cancel := a.partyCtx()
	defer cancel()

	if err := a.riot.DisablePartyCode(ctx); err != nil {
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	return map[string]interface{}{"ok": true}
}

// JoinPartyByCode joins another party via invite code.
func (a *App) JoinPartyByCode(code string) map[string]interface{} {
	ctx, cancel := a.partyCtx()
	defer cancel()

	if err := a.riot.JoinPartyByCode(ctx, code); err != nil {
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	return map[string]interface{}{"ok": true}
}

// KickFromParty removes a member from the party.
func (a *App) KickFromParty(puuid string) map[string]interface{} {
	ctx, cancel := a.partyCtx()
	defer cancel()

	if err := a.riot.KickFromParty(ctx, puuid); err != nil {
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	return map[string]interface{}{"ok": true}
}

// EnterQueue starts matchmaking for the current party.
func (a *App) EnterQueue() map[string]interface{} {
	ctx, cancel := a.partyCtx()
	defer cancel()

	if err := a.riot.EnterQueue(ctx); err != nil {
		a.log.Error("failed to enter queue", zap.Error(err))
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	a.log.Info("entered queue")
	return map[string]interface{}{"ok": true}
}

// LeaveQueue cancels matchmaking.
func (a *App) LeaveQueue() map[string]interface{} {
	ctx, cancel := a.partyCtx()
	defer cancel()

	if err := a.riot.LeaveQueue(ctx); err != nil {
		a.log.Error("failed to leave queue", zap.Error(err))
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	a.log.Info("left queue")
	return map[string]interface{}{"ok": true}
}
