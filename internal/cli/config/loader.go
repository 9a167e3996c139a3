package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/sigmesh/internal/storage/credfile"
)

// ErrNoSession is returned when no session state has been saved.
var ErrNoSession = errors.New("no saved session; run `sigmesh-cli session auth` first")

// DefaultDir returns ~/.sigmesh.
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".sigmesh"
	}
	return filepath.Join(homeDir, ".sigmesh")
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "cli.yaml")
}

// DefaultSessionPath returns the default session state file path.
func DefaultSessionPath() string {
	return filepath.Join(DefaultDir(), "session.yaml")
}

// Load loads CLI configuration from path. A missing file yields Default().
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cli config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse cli config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path with mode 0600.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	return writeYAML(path, cfg)
}

// LoadSession reads the session state at path.
func LoadSession(path string) (*SessionState, error) {
	if path == "" {
		path = DefaultSessionPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session state: %w", err)
	}

	var state SessionState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse session state %s: %w", path, err)
	}
	if state.SessionID == "" {
		return nil, ErrNoSession
	}
	return &state, nil
}

// SaveSession writes state to path with mode 0600.
func SaveSession(state *SessionState, path string) error {
	if path == "" {
		path = DefaultSessionPath()
	}
	return writeYAML(path, state)
}

// RemoveSession deletes the session state at path. A missing file is not an error.
func RemoveSession(path string) error {
	if path == "" {
		path = DefaultSessionPath()
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session state: %w", err)
	}
	return nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return credfile.WriteAtomic(path, data)
}
