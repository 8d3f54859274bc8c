// Package config handles application settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/caarlos0/env/v6"
)

const (
	appName          = "cliptrans"
	settingsFileName = "settings.json"
)

// ErrInvalid is returned for settings that cannot be saved.
var ErrInvalid = errors.New("invalid settings")

// Translation backends.
const (
	BackendGoogle = "google"
	BackendOpenAI = "openai"
)

// OpenAI holds credentials for the OpenAI translation backend.
type OpenAI struct {
	APIKey  string `json:"api_key,omitempty" env:"OPENAI_API_KEY"`
	BaseURL string `json:"base_url,omitempty" env:"OPENAI_BASE_URL"`
	Model   string `json:"model,omitempty" env:"CLIPTRANS_OPENAI_MODEL"`
}

// Settings represents the application configuration.
type Settings struct {
	// Enabled is runtime state only. It is never read from or written to
	// disk and is false at every start.
	Enabled bool `json:"-"`

	// Voice IDs; empty selects the first installed voice for the language.
	VoiceEnID string `json:"voice_en_id" env:"CLIPTRANS_VOICE_EN"`
	VoiceZhID string `json:"voice_zh_id" env:"CLIPTRANS_VOICE_ZH"`

	PopupAutoHideMs     int     `json:"popup_auto_hide_ms" env:"CLIPTRANS_POPUP_AUTO_HIDE_MS"`
	MaxChars            int     `json:"max_chars" env:"CLIPTRANS_MAX_CHARS"`
	TranslateTimeoutSec float64 `json:"translate_timeout_sec" env:"CLIPTRANS_TRANSLATE_TIMEOUT_SEC"`
	PollIntervalMs      int     `json:"poll_interval_ms" env:"CLIPTRANS_POLL_INTERVAL_MS"`
	CJKThreshold        float64 `json:"cjk_threshold" env:"CLIPTRANS_CJK_THRESHOLD"`
	ChineseVariant      string  `json:"chinese_variant" env:"CLIPTRANS_CHINESE_VARIANT"`

	FontSize        int `json:"font_size" env:"CLIPTRANS_FONT_SIZE"`
	MaxCharsPerLine int `json:"max_chars_per_line" env:"CLIPTRANS_MAX_CHARS_PER_LINE"`

	Backend      string `json:"backend" env:"CLIPTRANS_BACKEND"`
	OpenAI       OpenAI `json:"openai"`
	CacheEnabled bool   `json:"cache_enabled" env:"CLIPTRANS_CACHE_ENABLED"`
}

// Default values, matching the ranges offered in the settings window.
const (
	DefaultPopupAutoHideMs     = 6000
	DefaultMaxChars            = 500
	DefaultTranslateTimeoutSec = 6.0
	DefaultPollIntervalMs      = 300
	DefaultCJKThreshold        = 0.5
	DefaultChineseVariant      = "zh-TW"
	DefaultFontSize            = 24
	DefaultMaxCharsPerLine     = 18
)

// Default returns the default settings.
func Default() Settings {
	return Settings{
		PopupAutoHideMs:     DefaultPopupAutoHideMs,
		MaxChars:            DefaultMaxChars,
		TranslateTimeoutSec: DefaultTranslateTimeoutSec,
		PollIntervalMs:      DefaultPollIntervalMs,
		CJKThreshold:        DefaultCJKThreshold,
		ChineseVariant:      DefaultChineseVariant,
		FontSize:            DefaultFontSize,
		MaxCharsPerLine:     DefaultMaxCharsPerLine,
		Backend:             BackendGoogle,
		CacheEnabled:        true,
	}
}

// AutoHide returns the popup lifetime.
func (s Settings) AutoHide() time.Duration {
	return time.Duration(s.PopupAutoHideMs) * time.Millisecond
}

// TranslateTimeout returns the translation deadline.
func (s Settings) TranslateTimeout() time.Duration {
	return time.Duration(s.TranslateTimeoutSec * float64(time.Second))
}

// PollInterval returns the clipboard polling period.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// Normalize replaces out-of-range values with defaults.
func (s *Settings) Normalize() {
	d := Default()
	if s.PopupAutoHideMs < 500 || s.PopupAutoHideMs > 60000 {
		s.PopupAutoHideMs = d.PopupAutoHideMs
	}
	if s.MaxChars < 50 || s.MaxChars > 5000 {
		s.MaxChars = d.MaxChars
	}
	if s.TranslateTimeoutSec < 1 || s.TranslateTimeoutSec > 30 {
		s.TranslateTimeoutSec = d.TranslateTimeoutSec
	}
	if s.PollIntervalMs < 50 || s.PollIntervalMs > 5000 {
		s.PollIntervalMs = d.PollIntervalMs
	}
	if s.CJKThreshold <= 0 || s.CJKThreshold > 1 {
		s.CJKThreshold = d.CJKThreshold
	}
	if s.ChineseVariant == "" {
		s.ChineseVariant = d.ChineseVariant
	}
	if s.FontSize < 12 || s.FontSize > 72 {
		s.FontSize = d.FontSize
	}
	if s.MaxCharsPerLine < 6 || s.MaxCharsPerLine > 80 {
		s.MaxCharsPerLine = d.MaxCharsPerLine
	}
	if s.Backend == "" {
		s.Backend = d.Backend
	}
}

// Validate checks settings that have no sensible default.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendGoogle:
	case BackendOpenAI:
		if s.OpenAI.APIKey == "" {
			return fmt.Errorf("%w: api key required for openai backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, s.Backend)
	}
	return nil
}

// Path returns the default settings file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, settingsFileName), nil
}

// Dir returns the directory holding settings, cache and logs.
func Dir() (string, error) {
	p, err := Path()
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

// LoadFrom reads settings from path, applies CLIPTRANS_* environment
// overrides and normalizes the result. A missing file yields defaults.
func LoadFrom(path string) (Settings, error) {
	s, err := loadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return applyEnv(s)
}

// loadFile reads settings from path without environment overrides.
func loadFile(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	s.Normalize()
	s.Enabled = false
	return s, nil
}

func applyEnv(s Settings) (Settings, error) {
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	s.Normalize()
	s.Enabled = false
	return s, nil
}

// restoreFileValues resets every field of s that the environment overrides
// (file and runtime differ) back to its file value, unless s changed it.
func restoreFileValues(s *Settings, file, runtime Settings) {
	restoreFields(reflect.ValueOf(s).Elem(), reflect.ValueOf(file), reflect.ValueOf(runtime))
}

func restoreFields(dst, file, runtime reflect.Value) {
	for i := range dst.NumField() {
		d, f, r := dst.Field(i), file.Field(i), runtime.Field(i)
		if d.Kind() == reflect.Struct {
			restoreFields(d, f, r)
			continue
		}
		if !f.Equal(r) && d.Equal(r) {
			d.Set(f)
		}
	}
}

// SaveTo writes s to path. Keys already in the file that Settings does not
// know about are preserved; "enabled" is always dropped.
func SaveTo(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	merged := make(map[string]json.RawMessage)
	if data, err := os.ReadFile(path); err == nil {
		// A corrupt file is overwritten rather than blocking the save.
		_ = json.Unmarshal(data, &merged)
	}

	fresh, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(fresh, &fields); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	delete(merged, "enabled")

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
