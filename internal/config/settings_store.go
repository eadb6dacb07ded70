package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// SettingsStore persists layer visibility between sessions as a small
// JSON document on disk. A missing or corrupt file is treated as an
// empty store, never as an error: losing a visibility preference is
// cheaper than refusing to start.
type SettingsStore struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	enabled map[string]bool
}

// NewSettingsStore loads the store at path, or starts empty.
func NewSettingsStore(path string, logger *slog.Logger) *SettingsStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SettingsStore{
		path:    path,
		logger:  logger,
		enabled: make(map[string]bool),
	}
	s.load()
	return s
}

func (s *SettingsStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read settings file", "path", s.path, "error", err)
		}
		return
	}
	var enabled map[string]bool
	if err := json.Unmarshal(data, &enabled); err != nil {
		s.logger.Warn("ignoring corrupt settings file", "path", s.path, "error", err)
		return
	}
	s.enabled = enabled
}

// Enabled reports the persisted visibility of a layer.
func (s *SettingsStore) Enabled(layerName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[layerName]
}

// SetEnabled records and persists a layer's visibility.
func (s *SettingsStore) SetEnabled(layerName string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[layerName] = enabled

	data, err := json.MarshalIndent(s.enabled, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", s.path, err)
	}
	return nil
}
