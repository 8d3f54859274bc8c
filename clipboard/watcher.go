package clipboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.aimuz.me/cliptrans/internal/types"
)

// DefaultInterval is the clipboard polling period.
const DefaultInterval = 300 * time.Millisecond

// Watcher polls a Source and emits a sample for each new copy.
type Watcher struct {
	src      Source
	interval time.Duration
	detector Detector
	now      func() time.Time
	failures int
}

// NewWatcher creates a Watcher. interval <= 0 uses DefaultInterval.
func NewWatcher(src Source, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{src: src, interval: interval, now: time.Now}
}

// Run polls until ctx is done. The clipboard content present when Run starts
// is taken as the baseline and never emitted.
func (w *Watcher) Run(ctx context.Context, emit func(types.ClipboardSample)) error {
	if text, err := w.src.ReadText(); err == nil {
		w.detector.Prime(text)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("clipboard watcher started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("clipboard watcher stopped")
			return nil
		case <-ticker.C:
			if sample, ok := w.Poll(); ok {
				emit(sample)
			}
		}
	}
}

// Poll performs a single check. Read failures are swallowed and retried on
// the next call.
func (w *Watcher) Poll() (types.ClipboardSample, bool) {
	text, err := w.src.ReadText()
	if err != nil {
		if errors.Is(err, ErrNotText) {
			return types.ClipboardSample{}, false
		}
		w.failures++
		// Log the first failure of a streak only; a locked clipboard can
		// fail on every tick for a while.
		if w.failures == 1 {
			slog.Debug("clipboard read failed, retrying", "error", err)
		}
		return types.ClipboardSample{}, false
	}
	if w.failures > 0 {
		slog.Debug("clipboard readable again", "failures", w.failures)
		w.failures = 0
	}
	return w.detector.Observe(text, w.now())
}
