package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store owns the live configuration. Readers get deep copies; writers
// normalize and persist the whole file before the new value becomes visible.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewStore wraps an already loaded configuration. An empty path keeps the
// store in memory only.
func NewStore(path string, cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{path: path, cfg: cfg}
}

// Get returns a copy of the gateway section.
func (s *Store) Get() GatewayConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Gateway.Clone()
}

// Save normalizes g, writes it and returns the stored copy.
func (s *Store) Save(g GatewayConfig) (GatewayConfig, error) {
	g = g.Clone()
	g.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cfg
	next.Gateway = g
	if err := s.persist(&next); err != nil {
		return GatewayConfig{}, err
	}
	s.cfg = &next
	return g.Clone(), nil
}

// RegenerateToken replaces the pairing token and returns the new one.
func (s *Store) RegenerateToken() (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cfg
	next.Gateway = s.cfg.Gateway.Clone()
	next.Gateway.PairingToken = token
	if err := s.persist(&next); err != nil {
		return "", err
	}
	s.cfg = &next
	return token, nil
}

func (s *Store) persist(cfg *Config) error {
	if s.path == "" {
		return nil
	}
	return writeFileAtomic(s.path, cfg)
}

// writeFileAtomic writes cfg next to path and renames it into place.
func writeFileAtomic(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
