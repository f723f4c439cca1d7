// Package config persists host settings as TOML files, one file per
// namespace, either globally or per game.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const appDir = "goshaderfx"

// Migrator is implemented by objects whose on-disk layout changed over time.
// MigrateTOML rewrites raw in place and reports whether anything changed.
type Migrator interface {
	MigrateTOML(raw map[string]any) bool
}

// Store maps (global, namespace) pairs to files under Root.
type Store struct {
	Root string
	// Game selects the per-game directory for non-global namespaces.
	Game string
}

// DefaultRoot is $XDG_CONFIG_HOME/goshaderfx or the platform equivalent.
func DefaultRoot() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir), nil
}

// NewStore returns a store rooted at DefaultRoot.
func NewStore(game string) (*Store, error) {
	root, err := DefaultRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to locate config directory: %w", err)
	}
	return &Store{Root: root, Game: game}, nil
}

// Path returns the file backing namespace.
func (s *Store) Path(global bool, namespace string) (string, error) {
	if namespace == "" {
		return "", errors.New("namespace is required")
	}
	if global {
		return filepath.Join(s.Root, namespace+".toml"), nil
	}
	if s.Game == "" {
		return "", fmt.Errorf("namespace %q is per game but no game is set", namespace)
	}
	return filepath.Join(s.Root, "games", s.Game, namespace+".toml"), nil
}

// LoadOrInit fills obj from disk. When nothing is stored yet obj keeps its
// in-memory defaults and they are written out. Objects implementing Migrator
// are migrated first and re-saved if the migration changed anything.
func (s *Store) LoadOrInit(obj any, global bool, namespace string) error {
	path, err := s.Path(global, namespace)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Config: %s not found, writing defaults", path)
		return s.Update(obj, global, namespace)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	migrated, err := decode(data, obj)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if migrated {
		log.Printf("Config: migrated %s to the current layout", path)
		return s.Update(obj, global, namespace)
	}
	return nil
}

func decode(data []byte, obj any) (bool, error) {
	m, ok := obj.(Migrator)
	if !ok {
		return false, toml.Unmarshal(data, obj)
	}
	raw := make(map[string]any)
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false, err
	}
	migrated := m.MigrateTOML(raw)
	normalized, err := toml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return migrated, toml.Unmarshal(normalized, obj)
}

// Update writes obj to its namespace file.
func (s *Store) Update(obj any, global bool, namespace string) error {
	data, err := toml.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", namespace, err)
	}
	_, err = s.write(global, namespace, data)
	return err
}

// Read returns the raw bytes stored for namespace.
func (s *Store) Read(global bool, namespace string) ([]byte, error) {
	path, err := s.Path(global, namespace)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// write replaces the namespace file atomically and skips the write when the
// contents are unchanged. It reports whether the file was written.
func (s *Store) write(global bool, namespace string, data []byte) (bool, error) {
	path, err := s.Path(global, namespace)
	if err != nil {
		return false, err
	}
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+namespace+"-*.toml")
	if err != nil {
		return false, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	return true, nil
}
