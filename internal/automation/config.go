package automation

import "time"

// AgentNoneUUID is the explicit "do not auto-lock on this map" marker.
// It is distinct from an absent per-map entry, which falls back to the
// default agent.
const AgentNoneUUID = "none"

// AgentRef identifies a lockable agent.
type AgentRef struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
}

// IsNone reports whether this ref is the explicit disable sentinel.
func (a *AgentRef) IsNone() bool {
	return a != nil && a.UUID == AgentNoneUUID
}

// InstalockConfig selects which agent to lock per map.
type InstalockConfig struct {
	DefaultAgent *AgentRef            `json:"defaultAgent"`
	PerMap       map[string]*AgentRef `json:"perMap"`
}

// AgentFor resolves the agent for a map: the per-map entry when one
// exists (including the none sentinel), otherwise the default.
func (c InstalockConfig) AgentFor(mapID string) *AgentRef {
	if agent, ok := c.PerMap[mapID]; ok && agent != nil {
		return agent
	}
	return c.DefaultAgent
}

// MapDodgeConfig lists maps to auto-dodge.
type MapDodgeConfig struct {
	Blacklist map[string]bool `json:"blacklist"`
}

// Blacklisted reports whether mapID is on the dodge list.
func (c MapDodgeConfig) Blacklisted(mapID string) bool {
	return c.Blacklist[mapID]
}

// Config is everything the engine consults on each tick. The UI mutates
// it through Engine.SetConfig.
type Config struct {
	InstalockActive bool
	Instalock       InstalockConfig
	MapDodgeActive  bool
	MapDodge        MapDodgeConfig
	SelectDelay     time.Duration
	LockDelay       time.Duration
	AutoUnqueue     bool
	AutoRequeue     bool
}

// DefaultConfig returns the out-of-the-box automation settings.
func DefaultConfig() Config {
	return Config{
		SelectDelay: 0,
		LockDelay:   500 * time.Millisecond,
	}
}
