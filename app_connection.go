package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
)

const (
	waitingInterval = 3 * time.Second
	healthInterval  = 10 * time.Second
)

// pollForGameClient drives the connection lifecycle: while disconnected
// it probes for a running game every few seconds, and once connected it
// switches to a slower health check that refreshes tokens as needed.
func (a *App) pollForGameClient() {
	ticker := time.NewTicker(waitingInterval)
	defer ticker.Stop()

	wasConnected := false
	a.tryConnect()
	if a.riot.IsConnected() {
		wasConnected = true
		ticker.Reset(healthInterval)
	}

	for {
		select {
		case <-a.stopPoll:
			return
		case <-ticker.C:
			if !wasConnected {
				a.tryConnect()
				if a.riot.IsConnected() {
					wasConnected = true
					ticker.Reset(healthInterval)
				}
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), healthInterval)
			player, err := a.riot.HealthCheck(ctx)
			cancel()
			if err != nil {
				a.log.Warn("health check failed", zap.Error(err))
				continue
			}
			if player == nil {
				// Session lost
				a.onDisconnected()
				wasConnected = false
				ticker.Reset(waitingInterval)
			}
		}
	}
}

// tryConnect attempts to establish a session with the local game client.
func (a *App) tryConnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !a.riot.IsGameRunning(ctx) {
		runtime.EventsEmit(a.ctx, "riot:status", map[string]interface{}{
			"connected": false,
			"message":   "Waiting for VALORANT...",
		})
		return
	}

	player, err := a.riot.Connect(ctx)
	if err != nil {
		a.log.Warn("connect attempt failed", zap.Error(err))
		runtime.EventsEmit(a.ctx, "riot:status", map[string]interface{}{
			"connected": false,
			"message":   "Game found, connecting...",
		})
		return
	}

	runtime.EventsEmit(a.ctx, "riot:status", map[string]interface{}{
		"connected": true,
		"message":   "Connected",
		"player":    player,
	})

	a.connectEventSocket()

	// The bulk lookup service is probed once per session; when the
	// probe fails the resolver skips it until the next connect.
	go a.probeBulk(a.getBulk())

	a.poller.Start()
}

// onDisconnected tears down session-scoped state and tells the UI.
func (a *App) onDisconnected() {
	a.poller.Stop()
	a.events.Disconnect()
	a.chat.Disconnect()

	runtime.EventsEmit(a.ctx, "riot:status", map[string]interface{}{
		"connected": false,
		"message":   "VALORANT closed. Waiting...",
	})
	runtime.EventsEmit(a.ctx, "match:update", map[string]interface{}{
		"phase": "none",
	})
	a.log.Info("disconnected, waiting for game client")
}

// connectEventSocket attaches to the local client's websocket feed.
func (a *App) connectEventSocket() {
	creds := a.riot.GetCredentials()
	if creds == nil {
		return
	}

	a.events.SetHandler(func(event string, payload json.RawMessage) {
		runtime.EventsEmit(a.ctx, "riot:event", map[string]interface{}{
			"event": event,
			"data":  string(payload),
		})
	})

	if err := a.events.Connect(creds); err != nil {
		a.log.Warn("event socket connection failed", zap.Error(err))
		return
	}
	a.log.Info("event socket connected")
}

// GetConnectionStatus returns the current session status for the UI.
func (a *App) GetConnectionStatus() map[string]interface{} {
	if player := a.riot.Player(); player != nil {
		return map[string]interface{}{
			"connected": true,
			"message":   "Connected",
			"player":    player,
		}
	}
	return map[string]interface{}{
		"connected": false,
		"message":   "Waiting for VALORANT...",
	}
}
