package riot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrLockfileNotFound = errors.New("riot client lockfile not found")
	ErrClientNotRunning = errors.New("riot client is not running")
)

// Credentials holds the local Riot Client connection details parsed from
// the lockfile.
type Credentials struct {
	ProcessName string
	PID         string
	Port        string
	Password    string
	Protocol    string
}

// FindLockfile locates the Riot Client lockfile.
func FindLockfile() (string, error) {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		path := filepath.Join(localAppData, "Riot Games", "Riot Client", "Config", "lockfile")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	// Fallbacks for non-default installs
	for _, drive := range []string{"C:", "D:", "E:"} {
		path := filepath.Join(drive, "Riot Games", "Riot Client", "Config", "lockfile")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", ErrLockfileNotFound
}

// ParseLockfile reads and parses the lockfile content.
func ParseLockfile(path string) (*Credentials, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}

	// Lockfile format: Riot Client:pid:port:password:protocol
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) != 5 {
		return nil, fmt.Errorf("invalid lockfile format: expected 5 parts, got %d", len(parts))
	}

	return &Credentials{
		ProcessName: parts[0],
		PID:         parts[1],
		Port:        parts[2],
		Password:    parts[3],
		Protocol:    parts[4],
	}, nil
}

// shooterGameLogPath returns the VALORANT client log used to discover the
// player's region, shard and client version.
func shooterGameLogPath() string {
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		return ""
	}
	return filepath.Join(localAppData, "VALORANT", "Saved", "Logs", "ShooterGame.log")
}
