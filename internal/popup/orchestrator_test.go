package popup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.aimuz.me/cliptrans/config"
	"go.aimuz.me/cliptrans/internal/types"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type fakeTranslator struct {
	mu    sync.Mutex
	calls []types.TranslateRequest
	fn    func(ctx context.Context, req types.TranslateRequest) (string, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, req types.TranslateRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeTranslator) Calls() []types.TranslateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.TranslateRequest(nil), f.calls...)
}

type speakCall struct {
	Text    string
	Lang    types.Lang
	VoiceID string
}

type fakePlayback struct {
	once    sync.Once
	done    chan struct{}
	stopped atomic.Bool
}

func newFakePlayback() *fakePlayback { return &fakePlayback{done: make(chan struct{})} }

func (p *fakePlayback) Stop() {
	p.stopped.Store(true)
	p.finish()
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) finish() { p.once.Do(func() { close(p.done) }) }

type fakeSpeaker struct {
	mu        sync.Mutex
	available map[types.Lang]bool
	calls     []speakCall
	playbacks []*fakePlayback
}

func (f *fakeSpeaker) Speak(text string, lang types.Lang, voiceID string) (Playback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available[lang] {
		return nil, errors.New("no voice")
	}
	f.calls = append(f.calls, speakCall{text, lang, voiceID})
	pb := newFakePlayback()
	f.playbacks = append(f.playbacks, pb)
	return pb, nil
}

func (f *fakeSpeaker) Available(lang types.Lang) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available[lang]
}

func (f *fakeSpeaker) Calls() []speakCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]speakCall(nil), f.calls...)
}

func (f *fakeSpeaker) Playback(i int) *fakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playbacks[i]
}

type fakeView struct {
	mu      sync.Mutex
	shown   []types.PopupView
	updates []types.PopupView
	hides   int
}

func (v *fakeView) Show(p types.PopupView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.shown = append(v.shown, p)
}

func (v *fakeView) Update(p types.PopupView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.updates = append(v.updates, p)
}

func (v *fakeView) Hide() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hides++
}

// Contains treats the popup as the square (100,100)-(300,200).
func (v *fakeView) Contains(x, y int) bool {
	return x >= 100 && x < 300 && y >= 100 && y < 200
}

func (v *fakeView) Hides() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hides
}

func (v *fakeView) Shown() []types.PopupView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]types.PopupView(nil), v.shown...)
}

func (v *fakeView) Rendered() []types.PopupView {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := append([]types.PopupView(nil), v.shown...)
	return append(out, v.updates...)
}

type harness struct {
	o       *Orchestrator
	store   *config.Store
	tr      *fakeTranslator
	sp      *fakeSpeaker
	view    *fakeView
	enabled chan bool
}

func newHarness(t *testing.T, mutate func(*config.Settings)) *harness {
	t.Helper()

	s := config.Default()
	s.PopupAutoHideMs = 60000
	s.VoiceEnID = "en-voice"
	s.VoiceZhID = "zh-voice"
	if mutate != nil {
		mutate(&s)
	}

	h := &harness{
		store: config.NewStore("", s),
		tr: &fakeTranslator{fn: func(context.Context, types.TranslateRequest) (string, error) {
			return "你好世界", nil
		}},
		sp:      &fakeSpeaker{available: map[types.Lang]bool{types.English: true, types.Chinese: true}},
		view:    &fakeView{},
		enabled: make(chan bool, 8),
	}
	h.o = New(Options{
		Translator:       h.tr,
		Speaker:          h.sp,
		View:             h.view,
		Settings:         h.store,
		OnEnabledChanged: func(enabled bool) { h.enabled <- enabled },
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.o.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errc)
	})
	return h
}

// sync waits until every event posted so far has been handled.
func (h *harness) sync() {
	done := make(chan struct{})
	h.o.post(func() { close(done) })
	<-done
}

func (h *harness) copy(text string) {
	h.o.ClipboardChanged(types.ClipboardSample{Text: text, ObservedAt: time.Now()})
	h.sync()
}

func (h *harness) enable() {
	h.o.SetEnabled(true)
	h.sync()
}

func (h *harness) waitStatus(t *testing.T, status types.SessionStatus) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.o.Snapshot().Session.Status == status
	}, waitFor, tick)
	return h.o.Snapshot()
}

func TestOrchestrator_DisabledDropsChanges(t *testing.T) {
	h := newHarness(t, nil)

	h.copy("Hello")

	assert.False(t, h.o.Snapshot().Active)
	assert.Empty(t, h.view.Shown())
	assert.Empty(t, h.tr.Calls())
}

func TestOrchestrator_EnglishIsTranslated(t *testing.T) {
	h := newHarness(t, nil)
	release := make(chan struct{})
	h.tr.fn = func(ctx context.Context, req types.TranslateRequest) (string, error) {
		<-release
		return "你好世界", nil
	}
	h.enable()

	h.copy("Hello world")

	snap := h.o.Snapshot()
	require.True(t, snap.Active)
	assert.Equal(t, types.StatusTranslating, snap.Session.Status)
	assert.Equal(t, PendingText, snap.View.Text)
	assert.False(t, snap.View.CanPlay)

	close(release)
	snap = h.waitStatus(t, types.StatusReady)
	assert.Equal(t, "你好世界", snap.View.Text)
	assert.True(t, snap.View.CanPlay)
	assert.Equal(t, types.Decision{Source: types.English, Target: types.Chinese}, snap.Session.Decision)

	calls := h.tr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Hello world", calls[0].Text)
	assert.Equal(t, types.English, calls[0].Source)
	assert.Equal(t, types.Chinese, calls[0].Target)
	assert.Equal(t, 6*time.Second, calls[0].Timeout)

	h.o.TogglePlay()
	h.sync()
	assert.Equal(t, []speakCall{{"Hello world", types.English, "en-voice"}}, h.sp.Calls())
	assert.True(t, h.o.Snapshot().View.Playing)
}

func TestOrchestrator_ChineseSkipsTranslation(t *testing.T) {
	h := newHarness(t, nil)
	h.enable()

	h.copy("你好")

	snap := h.o.Snapshot()
	assert.Equal(t, types.StatusReady, snap.Session.Status)
	assert.Equal(t, "你好", snap.View.Text)
	assert.Empty(t, h.tr.Calls())
	for _, v := range h.view.Rendered() {
		assert.NotEqual(t, types.StatusTranslating, v.Status)
	}

	h.o.TogglePlay()
	h.sync()
	assert.Equal(t, []speakCall{{"你好", types.Chinese, "zh-voice"}}, h.sp.Calls())
}

func TestOrchestrator_RejectsInput(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.MaxChars = 50 })
	h.enable()

	h.copy(strings.Repeat("a", 51))
	h.copy("   \n\t ")

	assert.False(t, h.o.Snapshot().Active)
	assert.Empty(t, h.view.Shown())
	assert.Empty(t, h.tr.Calls())

	// Length counts characters, not bytes.
	h.copy(strings.Repeat("字", 50))
	assert.True(t, h.o.Snapshot().Active)
}

func TestOrchestrator_TimeoutFailsOnce(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) {
		s.TranslateTimeoutSec = 1
		s.PopupAutoHideMs = 500
	})
	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })
	h.tr.fn = func(ctx context.Context, req types.TranslateRequest) (string, error) {
		// Ignores ctx on purpose.
		<-unblock
		return "太晚了", nil
	}
	h.enable()

	h.copy("Hello world")
	snap := h.waitStatus(t, types.StatusFailed)
	assert.Equal(t, FailureText, snap.View.Text)
	assert.True(t, snap.View.CanPlay)

	require.Eventually(t, func() bool { return !h.o.Snapshot().Active }, waitFor, tick)
	assert.Equal(t, 1, h.view.Hides())

	var failed int
	for _, v := range h.view.Rendered() {
		assert.NotEqual(t, types.StatusReady, v.Status)
		if v.Status == types.StatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestOrchestrator_ServiceErrorFails(t *testing.T) {
	h := newHarness(t, nil)
	h.tr.fn = func(context.Context, types.TranslateRequest) (string, error) {
		return "", errors.New("blocked")
	}
	h.enable()

	h.copy("Hello world")

	snap := h.waitStatus(t, types.StatusFailed)
	assert.Equal(t, FailureText, snap.View.Text)
	assert.Len(t, h.tr.Calls(), 1)
}

func TestOrchestrator_SupersedeDiscardsLateResult(t *testing.T) {
	h := newHarness(t, nil)
	var firstCancelled atomic.Bool
	release := make(chan struct{})
	h.tr.fn = func(ctx context.Context, req types.TranslateRequest) (string, error) {
		if req.Text == "first text" {
			<-ctx.Done()
			firstCancelled.Store(true)
			<-release
			return "第一", nil
		}
		return "第二", nil
	}
	h.enable()

	h.copy("first text")
	first := h.o.Snapshot().Session.ID
	h.copy("second text")

	snap := h.waitStatus(t, types.StatusReady)
	assert.Equal(t, "第二", snap.View.Text)
	assert.NotEqual(t, first, snap.Session.ID)
	require.Eventually(t, firstCancelled.Load, waitFor, tick)

	close(release)
	time.Sleep(50 * time.Millisecond)
	h.sync()

	snap = h.o.Snapshot()
	assert.Equal(t, "第二", snap.View.Text)
	for _, v := range h.view.Rendered() {
		assert.NotEqual(t, "第一", v.Text)
	}
}

func TestOrchestrator_SupersedeStopsPlayback(t *testing.T) {
	h := newHarness(t, nil)
	h.enable()

	h.copy("你好")
	h.o.TogglePlay()
	h.copy("再見")

	assert.True(t, h.sp.Playback(0).stopped.Load())
	snap := h.o.Snapshot()
	assert.Equal(t, "再見", snap.View.Text)
	assert.False(t, snap.View.Playing)
}

func TestOrchestrator_Dismissal(t *testing.T) {
	h := newHarness(t, nil)
	h.enable()

	h.copy("你好")
	h.o.OutsideClick(150, 150)
	h.sync()
	assert.True(t, h.o.Snapshot().Active, "click inside the popup must not dismiss")

	h.o.OutsideClick(10, 10)
	h.sync()
	assert.False(t, h.o.Snapshot().Active)
	assert.Equal(t, 1, h.view.Hides())

	h.copy("世界")
	h.o.TogglePlay()
	h.o.Scroll()
	h.sync()
	assert.False(t, h.o.Snapshot().Active)
	assert.True(t, h.sp.Playback(0).stopped.Load())

	h.copy("天氣")
	h.o.Dismiss()
	h.sync()
	assert.False(t, h.o.Snapshot().Active)
	assert.Equal(t, 3, h.view.Hides())
}

func TestOrchestrator_DisableTearsDown(t *testing.T) {
	h := newHarness(t, nil)
	h.enable()
	assert.True(t, <-h.enabled)

	h.copy("你好")
	h.o.TogglePlay()
	h.o.SetEnabled(false)
	h.sync()

	assert.False(t, <-h.enabled)
	assert.False(t, h.store.Enabled())
	assert.False(t, h.o.Snapshot().Active)
	assert.True(t, h.sp.Playback(0).stopped.Load())

	h.copy("你好嗎")
	assert.False(t, h.o.Snapshot().Active)

	// No change, no notification.
	h.o.SetEnabled(false)
	h.sync()
	assert.Empty(t, h.enabled)
}

func TestOrchestrator_PlayToggle(t *testing.T) {
	h := newHarness(t, nil)
	h.enable()
	h.copy("你好")

	h.o.TogglePlay()
	h.sync()
	require.True(t, h.o.Snapshot().View.Playing)

	h.o.TogglePlay()
	h.sync()
	assert.True(t, h.sp.Playback(0).stopped.Load())
	assert.False(t, h.o.Snapshot().View.Playing)

	h.o.TogglePlay()
	h.sync()
	require.True(t, h.o.Snapshot().View.Playing)

	// The first playback's completion must not clear the second one.
	time.Sleep(50 * time.Millisecond)
	h.sync()
	assert.True(t, h.o.Snapshot().View.Playing)

	h.sp.Playback(1).finish()
	require.Eventually(t, func() bool { return !h.o.Snapshot().View.Playing }, waitFor, tick)
	assert.Len(t, h.sp.Calls(), 2)
}

func TestOrchestrator_PlayUnavailableWhileTranslating(t *testing.T) {
	h := newHarness(t, nil)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h.tr.fn = func(ctx context.Context, req types.TranslateRequest) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "", ctx.Err()
	}
	h.enable()

	h.copy("Hello world")
	h.o.TogglePlay()
	h.sync()

	assert.Empty(t, h.sp.Calls())
}

func TestOrchestrator_SpeechUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	h.sp.available = map[types.Lang]bool{types.Chinese: true}
	h.enable()

	h.copy("Hello world")
	snap := h.waitStatus(t, types.StatusReady)
	assert.False(t, snap.View.CanPlay)

	h.o.TogglePlay()
	h.sync()
	assert.Empty(t, h.sp.Calls())
	assert.True(t, h.o.Snapshot().Active)
}

func TestOrchestrator_AutoHideStopsPlayback(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.PopupAutoHideMs = 500 })
	h.enable()

	h.copy("你好")
	h.o.TogglePlay()
	h.sync()
	require.Len(t, h.sp.Calls(), 1)
	assert.False(t, h.sp.Playback(0).stopped.Load())

	require.Eventually(t, func() bool { return !h.o.Snapshot().Active }, waitFor, tick)
	assert.True(t, h.sp.Playback(0).stopped.Load(), "auto-hide must stop playback")
	assert.Equal(t, 1, h.view.Hides())
}

func TestOrchestrator_TestPopup(t *testing.T) {
	h := newHarness(t, nil)
	h.tr.fn = func(context.Context, types.TranslateRequest) (string, error) {
		return "街上有很多紅綠燈。", nil
	}

	h.o.Test()
	snap := h.waitStatus(t, types.StatusReady)
	assert.Equal(t, TestText, snap.Session.OriginalText)
	assert.Equal(t, Wrap("街上有很多紅綠燈。", config.DefaultMaxCharsPerLine), snap.View.Text)
	assert.False(t, h.store.Enabled())
}

func TestOrchestrator_SettingsApplyToNextSession(t *testing.T) {
	h := newHarness(t, nil)
	h.enable()

	h.copy("你好")
	s := h.store.Settings()
	s.VoiceZhID = "other-voice"
	require.NoError(t, h.store.Save(s))

	h.o.TogglePlay()
	h.sync()
	assert.Equal(t, "zh-voice", h.sp.Calls()[0].VoiceID)

	h.copy("再見")
	h.o.TogglePlay()
	h.sync()
	assert.Equal(t, "other-voice", h.sp.Calls()[1].VoiceID)
}

func TestOrchestrator_RunTwice(t *testing.T) {
	h := newHarness(t, nil)
	h.sync()
	assert.Error(t, h.o.Run(context.Background()))
}
