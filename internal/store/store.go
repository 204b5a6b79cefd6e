// Package store persists user settings in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ghostlock/internal/automation"

	_ "modernc.org/sqlite"
)

// Settings is everything the app persists between runs. API keys live
// here rather than in the keychain so the settings page can show and
// edit them in place.
type Settings struct {
	InstalockActive bool                       `json:"instalockActive"`
	Instalock       automation.InstalockConfig `json:"instalock"`
	MapDodgeActive  bool                       `json:"mapDodgeActive"`
	MapBlacklist    []string                   `json:"mapBlacklist"`
	SelectDelayMs   int                        `json:"selectDelayMs"`
	LockDelayMs     int                        `json:"lockDelayMs"`
	AutoUnqueue     bool                       `json:"autoUnqueue"`
	AutoRequeue     bool                       `json:"autoRequeue"`
	HenrikAPIKey    string                     `json:"henrikApiKey"`
	LookupAPIKey    string                     `json:"lookupApiKey"`
}

// DefaultSettings returns the out-of-the-box settings.
func DefaultSettings() Settings {
	def := automation.DefaultConfig()
	return Settings{
		Instalock:     automation.InstalockConfig{PerMap: map[string]*automation.AgentRef{}},
		MapBlacklist:  []string{},
		SelectDelayMs: int(def.SelectDelay / time.Millisecond),
		LockDelayMs:   int(def.LockDelay / time.Millisecond),
	}
}

// AutomationConfig converts the persisted form into the engine's config.
func (s Settings) AutomationConfig() automation.Config {
	blacklist := make(map[string]bool, len(s.MapBlacklist))
	for _, m := range s.MapBlacklist {
		blacklist[m] = true
	}
	return automation.Config{
		InstalockActive: s.InstalockActive,
		Instalock:       s.Instalock,
		MapDodgeActive:  s.MapDodgeActive,
		MapDodge:        automation.MapDodgeConfig{Blacklist: blacklist},
		SelectDelay:     time.Duration(s.SelectDelayMs) * time.Millisecond,
		LockDelay:       time.Duration(s.LockDelayMs) * time.Millisecond,
		AutoUnqueue:     s.AutoUnqueue,
		AutoRequeue:     s.AutoRequeue,
	}
}

// Store manages the settings database.
type Store struct {
	db *sql.DB
}

// New creates the settings store in the user's config directory.
func New() (*Store, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}

	dbDir := filepath.Join(configDir, "GhostLock")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	return Open(filepath.Join(dbDir, "settings.db"))
}

// Open creates a store backed by the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// init creates the schema.
func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const settingsKey = "settings"

// Load reads the persisted settings, returning defaults when nothing
// has been saved yet.
func (s *Store) Load() (Settings, error) {
	var raw string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", settingsKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse stored settings: %w", err)
	}
	if settings.Instalock.PerMap == nil {
		settings.Instalock.PerMap = map[string]*automation.AgentRef{}
	}
	if settings.MapBlacklist == nil {
		settings.MapBlacklist = []string{}
	}
	return settings, nil
}

// Save replaces the persisted settings.
func (s *Store) Save(settings Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, settingsKey, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
