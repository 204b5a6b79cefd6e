package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// GetHomeStats returns the signed-in player's rank and recent
// competitive record for the home screen.
func (a *App) GetHomeStats() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := a.riot.GetHomeStats(ctx)
	if err != nil {
		a.log.Warn("home stats lookup failed", zap.Error(err))
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	return map[string]interface{}{"ok": true, "stats": stats}
}
