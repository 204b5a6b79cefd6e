//go:build !windows

package main

// Global hotkeys rely on the Windows low-level keyboard hook; other
// platforms run without them.
func (a *App) RegisterHotkeys() {}

// ToggleWindow is a no-op without the hotkey hook.
func (a *App) ToggleWindow() {}
