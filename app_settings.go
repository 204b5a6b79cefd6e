package main

import (
	"ghostlock/internal/store"

	"go.uber.org/zap"
)

// GetSettings returns the persisted settings for the UI.
func (a *App) GetSettings() store.Settings {
	if a.settings == nil {
		return store.DefaultSettings()
	}
	settings, err := a.settings.Load()
	if err != nil {
		a.log.Error("failed to load settings", zap.Error(err))
		return store.DefaultSettings()
	}
	return settings
}

// SaveSettings persists the settings and applies them immediately.
func (a *App) SaveSettings(settings store.Settings) map[string]interface{} {
	if a.settings != nil {
		if err := a.settings.Save(settings); err != nil {
			a.log.Error("failed to save settings", zap.Error(err))
			return map[string]interface{}{"ok": false, "error": err.Error()}
		}
	}
	a.applySettings(settings)
	a.log.Info("settings updated")
	return map[string]interface{}{"ok": true}
}
