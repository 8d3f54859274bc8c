package config

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store owns the current settings and the runtime enabled flag.
// Settings returns copies, so a caller holding one is unaffected by later
// saves. Safe for concurrent use.
//
// A Store from Open applies environment overrides to the runtime settings
// only; Save keeps overridden values out of the file.
type Store struct {
	path string
	env  bool

	mu       sync.RWMutex
	file     Settings // as persisted
	settings Settings // file plus environment overrides

	enabled atomic.Bool
}

// Open loads settings from path, or from the default location when path is
// empty. Settings left by the previous release next to the
// executable are imported on first run.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
		if legacy := legacyPath(); legacy != "" {
			if err := migrateLegacy(path, legacy); err != nil {
				slog.Warn("migrate legacy settings", "error", err)
			}
		}
	}

	file, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := applyEnv(file)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, env: true, file: file, settings: s}, nil
}

// NewStore creates a Store around s. An empty path keeps settings in memory.
func NewStore(path string, s Settings) *Store {
	s.Normalize()
	s.Enabled = false
	return &Store{path: path, file: s, settings: s}
}

// Path returns the settings file path, empty for in-memory stores.
func (st *Store) Path() string { return st.path }

// Settings returns a snapshot of the current settings.
func (st *Store) Settings() Settings {
	st.mu.RLock()
	s := st.settings
	st.mu.RUnlock()
	s.Enabled = st.enabled.Load()
	return s
}

// Enabled reports whether the popup pipeline is switched on.
func (st *Store) Enabled() bool {
	return st.enabled.Load()
}

// SetEnabled flips the runtime flag. It is never persisted.
// It reports whether the value changed.
func (st *Store) SetEnabled(enabled bool) bool {
	return st.enabled.Swap(enabled) != enabled
}

// Save validates and persists s. s.Enabled is ignored; use SetEnabled.
// Fields the environment overrides keep their file value on disk unless
// s changes them, and the override still wins at runtime.
func (st *Store) Save(s Settings) error {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}
	s.Enabled = false

	st.mu.Lock()
	defer st.mu.Unlock()

	file := s
	restoreFileValues(&file, st.file, st.settings)
	if st.path != "" {
		if err := SaveTo(st.path, file); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	runtime := file
	if st.env {
		var err error
		if runtime, err = applyEnv(file); err != nil {
			return err
		}
	}
	st.file, st.settings = file, runtime
	return nil
}
