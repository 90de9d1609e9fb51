// Package profile persists the player's chosen display name across
// sessions and carries the ephemeral lobby-to-race handoff.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile is the on-disk TOML shape.
type Profile struct {
	Name string `toml:"name"`
}

// Store reads and writes the profile file.
type Store struct {
	path string
}

func NewStore(path string) *Store { return &Store{path: path} }

// DefaultPath places the profile under the XDG config home.
func DefaultPath() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "keysandfingers", "profile.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", "keysandfingers", "profile.toml")
	}
	return filepath.Join(home, ".config", "keysandfingers", "profile.toml")
}

// Load reads the profile. A missing file is not an error.
func (s *Store) Load() (Profile, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("failed to stat profile: %w", err)
	}
	var p Profile
	if _, err := toml.DecodeFile(s.path, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

// SetName persists a trimmed display name. Empty names are ignored.
func (s *Store) SetName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(Profile{Name: trimmed}); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return nil
}

// Reset removes the stored name.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}
	return nil
}
