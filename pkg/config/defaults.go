package config

import (
	"fmt"
	"os"
	"sync"
)

// DefaultsStore persists the user-configurable request defaults. Sessions
// read a fresh copy only when they are rewound.
type DefaultsStore interface {
	LoadDefaults() (Defaults, error)
	SaveDefaults(d Defaults) error
}

// FileDefaultsStore keeps defaults inside the YAML config file, leaving the
// other sections untouched.
type FileDefaultsStore struct {
	path string
	mu   sync.Mutex
}

// NewFileDefaultsStore creates a store backed by the config file at path
func NewFileDefaultsStore(path string) *FileDefaultsStore {
	if path == "" {
		path = DefaultConfigPath()
	}
	return &FileDefaultsStore{path: path}
}

// LoadDefaults reads the defaults section, falling back to built-in defaults
// when the file does not exist.
func (s *FileDefaultsStore) LoadDefaults() (Defaults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := DefaultConfig()
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return cfg.Defaults, nil
	}
	if err := cfg.LoadFromFile(s.path); err != nil {
		return Defaults{}, err
	}
	if err := cfg.Defaults.Validate(); err != nil {
		return Defaults{}, fmt.Errorf("invalid persisted defaults: %w", err)
	}
	return cfg.Defaults, nil
}

// SaveDefaults validates d and writes it back into the config file
func (s *FileDefaultsStore) SaveDefaults(d Defaults) error {
	if err := d.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := DefaultConfig()
	if _, err := os.Stat(s.path); err == nil {
		if err := cfg.LoadFromFile(s.path); err != nil {
			return err
		}
	}
	cfg.Defaults = d
	return cfg.Save(s.path)
}

// MemoryDefaultsStore is an in-process DefaultsStore
type MemoryDefaultsStore struct {
	mu       sync.Mutex
	defaults Defaults
}

// NewMemoryDefaultsStore creates a store seeded with d
func NewMemoryDefaultsStore(d Defaults) *MemoryDefaultsStore {
	return &MemoryDefaultsStore{defaults: d}
}

func (s *MemoryDefaultsStore) LoadDefaults() (Defaults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaults, nil
}

func (s *MemoryDefaultsStore) SaveDefaults(d Defaults) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.defaults = d
	s.mu.Unlock()
	return nil
}
