// Package popup runs the clipboard popup state machine.
//
// All state is owned by a single loop (Run). Clipboard changes, mouse
// events, tray actions, timers and background completions are posted to the
// loop as events and handled in arrival order. Each session carries a
// generation number; completions from an older generation are dropped.
package popup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.aimuz.me/cliptrans/config"
	"go.aimuz.me/cliptrans/internal/types"
	"go.aimuz.me/cliptrans/langdetect"
	"go.aimuz.me/cliptrans/translate"
)

// Fixed popup texts.
const (
	PendingText = "翻譯中…"
	FailureText = "（翻譯失敗或被阻擋）"
	TestText    = "There are many traffic lights on the street."
)

// Translator produces the Chinese-facing text for a session.
type Translator interface {
	Translate(ctx context.Context, req types.TranslateRequest) (string, error)
}

// Playback is a running utterance.
type Playback interface {
	Stop()
	Done() <-chan struct{}
}

// Speaker plays the original text of a session.
type Speaker interface {
	Speak(text string, lang types.Lang, voiceID string) (Playback, error)
	Available(lang types.Lang) bool
}

// View renders the popup. Calls are made from the loop goroutine only.
type View interface {
	Show(v types.PopupView)
	Update(v types.PopupView)
	Hide()
	// Contains reports whether the screen point lies inside the popup.
	Contains(x, y int) bool
}

// Settings provides configuration and holds the runtime enabled flag.
// config.Store implements it.
type Settings interface {
	Settings() config.Settings
	SetEnabled(enabled bool) bool
}

// Options configures an Orchestrator.
type Options struct {
	Translator Translator
	Speaker    Speaker
	View       View
	Settings   Settings

	// OnEnabledChanged is called from the loop after the enabled flag flips,
	// so the tray can reflect it. Optional.
	OnEnabledChanged func(enabled bool)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Snapshot is a copy of the orchestrator state for inspection.
type Snapshot struct {
	Active  bool
	Session types.Session
	View    types.PopupView
}

// Orchestrator coordinates watcher events, translation, speech and the view.
type Orchestrator struct {
	translator Translator
	speaker    Speaker
	view       View
	settings   Settings
	onEnabled  func(bool)
	now        func() time.Time

	events  chan func()
	done    chan struct{}
	runOnce sync.Once

	// Loop-owned state.
	ctx context.Context
	gen uint64
	cur *session

	mu   sync.Mutex
	snap Snapshot
}

type session struct {
	types.Session

	gen      uint64
	settings config.Settings
	text     string // Chinese-facing text
	canPlay  bool

	cancel context.CancelFunc
	timer  *time.Timer

	playback Playback
	playSeq  uint64
}

// New creates an Orchestrator. Call Run to start processing events.
func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		translator: opts.Translator,
		speaker:    opts.Speaker,
		view:       opts.View,
		settings:   opts.Settings,
		onEnabled:  opts.OnEnabledChanged,
		now:        opts.Now,
		events:     make(chan func(), 64),
		done:       make(chan struct{}),
		ctx:        context.Background(),
	}
}

// Run processes events until ctx is done. The active session is torn down
// on return. Run must be called at most once.
func (o *Orchestrator) Run(ctx context.Context) error {
	started := false
	o.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("orchestrator already running")
	}
	defer close(o.done)

	o.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			o.teardown("shutdown")
			return nil
		case fn := <-o.events:
			fn()
		}
	}
}

// ClipboardChanged reports a new clipboard sample.
func (o *Orchestrator) ClipboardChanged(sample types.ClipboardSample) {
	o.post(func() { o.handleClipboard(sample) })
}

// SetEnabled switches the pipeline on or off. Disabling tears down the
// active session.
func (o *Orchestrator) SetEnabled(enabled bool) {
	o.post(func() { o.handleEnabled(enabled) })
}

// OutsideClick reports a global mouse press at screen coordinates x, y.
func (o *Orchestrator) OutsideClick(x, y int) {
	o.post(func() {
		if o.cur == nil || o.view.Contains(x, y) {
			return
		}
		o.teardown("outside-click")
	})
}

// Scroll reports a global mouse wheel event.
func (o *Orchestrator) Scroll() {
	o.post(func() { o.teardown("scroll") })
}

// Dismiss closes the popup.
func (o *Orchestrator) Dismiss() {
	o.post(func() { o.teardown("closed") })
}

// TogglePlay starts speaking the original text, or stops it when playing.
func (o *Orchestrator) TogglePlay() {
	o.post(o.handleTogglePlay)
}

// Test shows a sample popup regardless of the enabled flag.
func (o *Orchestrator) Test() {
	o.post(func() { o.start(TestText, o.settings.Settings(), o.now()) })
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.done:
	}
}

func (o *Orchestrator) handleClipboard(sample types.ClipboardSample) {
	s := o.settings.Settings()
	if !s.Enabled {
		slog.Debug("clipboard-change-ignored", "reason", "disabled")
		return
	}

	text := strings.TrimSpace(sample.Text)
	if text == "" {
		slog.Info("clipboard-change-ignored", "reason", "empty")
		return
	}
	if n := utf8.RuneCountInString(text); n > s.MaxChars {
		slog.Info("clipboard-change-ignored", "reason", "too-long", "chars", n, "max", s.MaxChars)
		return
	}

	at := sample.ObservedAt
	if at.IsZero() {
		at = o.now()
	}
	o.start(text, s, at)
}

func (o *Orchestrator) handleEnabled(enabled bool) {
	if !o.settings.SetEnabled(enabled) {
		return
	}
	slog.Info("enabled-changed", "enabled", enabled)
	if !enabled {
		o.teardown("disabled")
	}
	if o.onEnabled != nil {
		o.onEnabled(enabled)
	}
}

// start activates a new session. The previous session's translation,
// playback and timer are cancelled first.
func (o *Orchestrator) start(text string, s config.Settings, at time.Time) {
	if o.cur != nil {
		slog.Info("session-superseded", "session", o.cur.ID)
		o.release(o.cur)
	}

	o.gen++
	d := langdetect.Classify(text, s.CJKThreshold)
	sess := &session{
		Session: types.Session{
			ID:           uuid.NewString(),
			OriginalText: text,
			Decision:     d,
			CreatedAt:    at,
		},
		gen:      o.gen,
		settings: s,
	}
	o.cur = sess
	slog.Info("session-started",
		"session", sess.ID,
		"source", d.Source,
		"target", d.Target,
		"chars", utf8.RuneCountInString(text),
	)

	if !d.NeedsTranslation() {
		o.finish(sess, types.StatusReady, text, true)
		return
	}

	sess.Status = types.StatusTranslating
	sess.text = PendingText
	o.view.Show(o.render(sess))

	timeout := s.TranslateTimeout()
	ctx, cancel := context.WithTimeout(o.ctx, timeout)
	sess.cancel = cancel
	req := types.TranslateRequest{
		Text:    text,
		Source:  d.Source,
		Target:  d.Target,
		Timeout: timeout,
	}
	gen := sess.gen
	go func() {
		type result struct {
			text string
			err  error
		}
		res := make(chan result, 1)
		go func() {
			out, err := o.translator.Translate(ctx, req)
			res <- result{out, err}
		}()

		// A translator that ignores ctx must not hold the session past
		// its deadline.
		var r result
		select {
		case r = <-res:
		case <-ctx.Done():
			r.err = ctx.Err()
		}
		o.post(func() { o.translated(gen, r.text, r.err) })
	}()
}

func (o *Orchestrator) translated(gen uint64, text string, err error) {
	sess := o.cur
	if sess == nil || sess.gen != gen || sess.Status != types.StatusTranslating {
		slog.Debug("translation-stale", "generation", gen)
		return
	}
	sess.cancel()
	sess.cancel = nil

	if err != nil {
		timeout := errors.Is(err, translate.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
		slog.Warn("translation-failed", "session", sess.ID, "timeout", timeout, "error", err)
		o.finish(sess, types.StatusFailed, FailureText, false)
		return
	}
	o.finish(sess, types.StatusReady, text, false)
}

// finish moves sess into Ready or Failed and arms the auto-hide timer.
func (o *Orchestrator) finish(sess *session, status types.SessionStatus, text string, show bool) {
	sess.Status = status
	sess.text = text
	sess.canPlay = o.speaker.Available(sess.Decision.Source)
	if show {
		o.view.Show(o.render(sess))
	} else {
		o.view.Update(o.render(sess))
	}

	gen := sess.gen
	sess.timer = time.AfterFunc(sess.settings.AutoHide(), func() {
		o.post(func() { o.expire(gen) })
	})
}

func (o *Orchestrator) expire(gen uint64) {
	sess := o.cur
	if sess == nil || sess.gen != gen {
		return
	}
	o.teardown("auto-hide")
}

func (o *Orchestrator) handleTogglePlay() {
	sess := o.cur
	if sess == nil || sess.Status == types.StatusTranslating || !sess.canPlay {
		return
	}

	if sess.playback != nil {
		sess.playback.Stop()
		sess.playback = nil
		o.view.Update(o.render(sess))
		return
	}

	lang := sess.Decision.Source
	voiceID := sess.settings.VoiceEnID
	if lang == types.Chinese {
		voiceID = sess.settings.VoiceZhID
	}
	pb, err := o.speaker.Speak(sess.OriginalText, lang, voiceID)
	if err != nil {
		slog.Warn("speech-error", "session", sess.ID, "lang", lang, "error", err)
		sess.canPlay = o.speaker.Available(lang)
		o.view.Update(o.render(sess))
		return
	}

	sess.playSeq++
	sess.playback = pb
	o.view.Update(o.render(sess))

	gen, seq := sess.gen, sess.playSeq
	go func() {
		<-pb.Done()
		o.post(func() { o.playbackDone(gen, seq) })
	}()
}

// playbackDone clears the play indicator when the finished playback is
// still the session's current one.
func (o *Orchestrator) playbackDone(gen, seq uint64) {
	sess := o.cur
	if sess == nil || sess.gen != gen || sess.playSeq != seq || sess.playback == nil {
		return
	}
	sess.playback = nil
	o.view.Update(o.render(sess))
}

// teardown hides the popup and cancels everything the active session owns.
func (o *Orchestrator) teardown(reason string) {
	sess := o.cur
	if sess == nil {
		return
	}
	o.release(sess)
	o.cur = nil
	o.gen++
	o.view.Hide()
	o.setSnapshot(Snapshot{})
	slog.Info("popup-dismissed", "session", sess.ID, "reason", reason)
}

func (o *Orchestrator) release(sess *session) {
	if sess.cancel != nil {
		sess.cancel()
		sess.cancel = nil
	}
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	if sess.playback != nil {
		sess.playback.Stop()
		sess.playback = nil
	}
}

func (o *Orchestrator) render(sess *session) types.PopupView {
	v := types.PopupView{
		SessionID: sess.ID,
		Text:      Wrap(sess.text, sess.settings.MaxCharsPerLine),
		Status:    sess.Status,
		CanPlay:   sess.canPlay && sess.Status != types.StatusTranslating,
		Playing:   sess.playback != nil,
		FontSize:  sess.settings.FontSize,
	}
	o.setSnapshot(Snapshot{Active: true, Session: sess.Session, View: v})
	return v
}

func (o *Orchestrator) setSnapshot(s Snapshot) {
	o.mu.Lock()
	o.snap = s
	o.mu.Unlock()
}
