// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"
	"golang.org/x/sync/errgroup"

	"go.aimuz.me/cliptrans/cache"
	"go.aimuz.me/cliptrans/clipboard"
	"go.aimuz.me/cliptrans/config"
	"go.aimuz.me/cliptrans/internal/popup"
	"go.aimuz.me/cliptrans/internal/types"
	"go.aimuz.me/cliptrans/langdetect"
	"go.aimuz.me/cliptrans/mousehook"
	"go.aimuz.me/cliptrans/speech"
)

const shutdownTimeout = 3 * time.Second

// Windows are the windows the service drives.
type Windows struct {
	Popup    *application.WebviewWindow
	Settings *application.WebviewWindow
}

// Service provides application functionality bound to Wails.
// This struct focuses on wiring; the popup state machine lives in
// internal/popup.
type Service struct {
	store   *config.Store
	cache   *cache.Cache
	player  *speech.Player
	backend *backend
	orch    *popup.Orchestrator
	cursor  cursor

	// UI references - set via Init
	app     *application.App
	windows Windows

	mu        sync.Mutex
	onEnabled func(bool)
	cancel    context.CancelFunc
	done      chan error
	closeOnce sync.Once

	version string
}

// New creates a new Service. Call Init() after Wails app is created.
func New(version string) *Service {
	return &Service{version: version}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init loads settings and builds the pipeline.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, w Windows) {
	s.app = app
	s.windows = w

	store, err := config.Open("")
	if err != nil {
		slog.Error("load config", "error", err)
		path, _ := config.Path()
		store = config.NewStore(path, config.Default())
	}
	s.store = store
	settings := store.Settings()

	if settings.CacheEnabled {
		s.setupCache()
	}
	s.backend = newBackend(s.cache, nil)
	s.backend.Apply(settings)

	s.player = speech.NewPlayer(speech.NewSystemEngine())

	s.orch = popup.New(popup.Options{
		Translator: s.backend,
		Speaker:    playerSpeaker{player: s.player},
		View: &windowView{
			emit:   s.emit,
			window: w.Popup,
			cursor: &s.cursor,
		},
		Settings:         s.store,
		OnEnabledChanged: s.enabledChanged,
	})
}

func (s *Service) setupCache() {
	dir, err := config.Dir()
	if err != nil {
		slog.Error("get config dir for cache", "error", err)
		return
	}

	cachePath := filepath.Join(dir, "cache")
	c, err := cache.New(cachePath)
	if err != nil {
		slog.Error("init cache", "error", err)
		return
	}
	s.cache = c
	slog.Info("cache initialized", "path", cachePath)
}

// Start runs the clipboard watcher, the global mouse hook and the popup
// loop in the background until Shutdown.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	settings := s.store.Settings()
	watcher := clipboard.NewWatcher(clipboard.NewAppSource(s.app), settings.PollInterval())

	g.Go(func() error {
		return s.orch.Run(ctx)
	})
	g.Go(func() error {
		return watcher.Run(ctx, s.orch.ClipboardChanged)
	})
	g.Go(func() error {
		// The popup still closes by timer or by a new copy without the hook.
		if err := mousehook.Run(ctx, mousehook.Handler{
			OnClick:  s.handleClick,
			OnScroll: s.orch.Scroll,
		}); err != nil {
			slog.Warn("mouse hook", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.player.Refresh(ctx); err != nil {
			slog.Warn("load voices", "error", err)
		} else {
			slog.Info("voices loaded", "count", len(s.player.Voices()))
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.mu.Unlock()
	slog.Info("pipeline started", "enabled", s.store.Enabled())
}

// Shutdown stops the pipeline, playback and the cache. Calls after the
// first are no-ops.
func (s *Service) Shutdown() {
	s.closeOnce.Do(s.shutdown)
}

func (s *Service) shutdown() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				slog.Error("pipeline stopped", "error", err)
			}
		case <-time.After(shutdownTimeout):
			slog.Warn("pipeline did not stop in time")
		}
	}
	if s.player != nil {
		s.player.StopAll()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			slog.Error("close cache", "error", err)
		}
	}
}

func (s *Service) handleClick(x, y int) {
	s.cursor.set(x, y)
	s.orch.OutsideClick(x, y)
}

// OnEnabledChanged registers fn to be called whenever the enabled flag
// flips, e.g. to update the tray checkbox.
func (s *Service) OnEnabledChanged(fn func(bool)) {
	s.mu.Lock()
	s.onEnabled = fn
	s.mu.Unlock()
}

func (s *Service) enabledChanged(enabled bool) {
	s.emit(EventEnabledChanged, enabled)
	s.mu.Lock()
	fn := s.onEnabled
	s.mu.Unlock()
	if fn != nil {
		fn(enabled)
	}
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tray actions
// ─────────────────────────────────────────────────────────────────────────────

// SetEnabled switches the popup pipeline on or off for this run only.
func (s *Service) SetEnabled(enabled bool) {
	s.orch.SetEnabled(enabled)
}

// IsEnabled reports whether the pipeline is on.
func (s *Service) IsEnabled() bool {
	return s.store.Enabled()
}

// ShowSettings opens the settings window.
func (s *Service) ShowSettings() {
	if w := s.windows.Settings; w != nil {
		w.Show()
		w.Focus()
	}
}

// TestPopup shows a sample popup even when disabled.
func (s *Service) TestPopup() {
	s.orch.Test()
}

// ─────────────────────────────────────────────────────────────────────────────
// Popup controls
// ─────────────────────────────────────────────────────────────────────────────

// TogglePlay plays or stops the original text of the visible popup.
func (s *Service) TogglePlay() {
	s.orch.TogglePlay()
}

// ClosePopup dismisses the popup.
func (s *Service) ClosePopup() {
	s.orch.Dismiss()
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetSettings returns the current settings.
func (s *Service) GetSettings() config.Settings {
	return s.store.Settings()
}

// SaveSettings validates and stores cfg. Changes apply to the next popup.
func (s *Service) SaveSettings(cfg config.Settings) error {
	if err := s.store.Save(cfg); err != nil {
		return err
	}
	saved := s.store.Settings()
	s.backend.Apply(saved)
	s.emit(EventSettingsSaved, saved)
	slog.Info("settings saved", "path", s.store.Path())
	return nil
}

// GetVoices returns the installed voices grouped by language.
func (s *Service) GetVoices() VoiceGroups {
	return groupVoices(s.player.Voices())
}

// RefreshVoices reloads the installed voice list.
func (s *Service) RefreshVoices() (VoiceGroups, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.player.Refresh(ctx); err != nil {
		return VoiceGroups{}, err
	}
	return s.GetVoices(), nil
}

// SpeechAvailable reports per language whether a voice is installed.
func (s *Service) SpeechAvailable() map[string]bool {
	return map[string]bool{
		types.English.String(): s.player.Available(types.English),
		types.Chinese.String(): s.player.Available(types.Chinese),
	}
}

// DetectLanguage detects the language of the given text.
func (s *Service) DetectLanguage(text string) types.DetectResult {
	code, name := langdetect.Detect(text)
	return types.DetectResult{Code: code, Name: name}
}
