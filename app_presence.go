package main

import (
	"context"
	"time"

	"ghostlock/internal/xmpp"

	"go.uber.org/zap"
)

// ConnectChat opens a direct chat session using the current Riot
// session's tokens.
func (a *App) ConnectChat() map[string]interface{} {
	access, entitlements, puuid, err := a.riot.Tokens()
	if err != nil {
		return map[string]interface{}{"ok": false, "error": "not connected to VALORANT"}
	}

	if err := a.chat.Connect(xmpp.Credentials{
		AccessToken:  access,
		Entitlements: entitlements,
		PUUID:        puuid,
	}); err != nil {
		a.log.Error("chat connect failed", zap.Error(err))
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}

	a.startChatPoll()
	return map[string]interface{}{"ok": true}
}

// DisconnectChat closes the chat session.
func (a *App) DisconnectChat() {
	a.chat.Disconnect()
}

// startChatPoll launches the drain loop unless one is already running.
// A reconnect reuses the live loop rather than racing a second reader
// against it. Reports whether a new loop was started.
func (a *App) startChatPoll() bool {
	a.chatMu.Lock()
	defer a.chatMu.Unlock()
	if a.chatPolling {
		return false
	}
	a.chatPolling = true
	go a.pollChat()
	return true
}

// pollChat drains chat traffic until the session drops for good.
func (a *App) pollChat() {
	ticker := time.NewTicker(a.chatTick)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopPoll:
			a.chatMu.Lock()
			a.chatPolling = false
			a.chatMu.Unlock()
			return
		case <-ticker.C:
			if err := a.chat.Poll(); err == nil {
				continue
			}
			a.chatMu.Lock()
			if a.chat.Status().Connected {
				// A reconnect swapped the session in; keep draining it
				a.chatMu.Unlock()
				continue
			}
			a.chatPolling = false
			a.chatMu.Unlock()
			return
		}
	}
}

// GetChatStatus returns the chat session summary.
func (a *App) GetChatStatus() xmpp.Status {
	return a.chat.Status()
}

// GetChatLogs returns the chat wire log for the debug view.
func (a *App) GetChatLogs() []xmpp.LogEntry {
	return a.chat.Logs()
}

// GetFriendPresences returns tracked friends, resolving missing names
// through the local name service.
func (a *App) GetFriendPresences() []xmpp.FriendPresence {
	return a.chat.Friends(func(puuids []string) map[string][2]string {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entries, err := a.riot.ResolveNames(ctx, puuids)
		if err != nil {
			a.log.Warn("friend name resolution failed", zap.Error(err))
			return nil
		}
		names := make(map[string][2]string, len(entries))
		for _, e := range entries {
			names[e.PUUID] = [2]string{e.GameName, e.TagLine}
		}
		return names
	})
}

// SendPresence publishes a modified presence for the signed-in player.
func (a *App) SendPresence(params xmpp.PresenceParams) map[string]interface{} {
	if err := a.chat.SendPresence(params); err != nil {
		a.log.Error("presence send failed", zap.Error(err))
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	a.log.Info("presence published")
	return map[string]interface{}{"ok": true}
}

// SendRawStanza writes a raw stanza from the debug console.
func (a *App) SendRawStanza(data string) map[string]interface{} {
	if err := a.chat.SendRaw(data); err != nil {
		return map[string]interface{}{"ok": false, "error": err.Error()}
	}
	return map[string]interface{}{"ok": true}
}
