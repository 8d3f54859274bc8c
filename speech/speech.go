// Package speech plays text aloud with the voices installed on the system.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"go.aimuz.me/cliptrans/internal/types"
)

// ErrUnavailable is returned when no installed voice can speak a language.
var ErrUnavailable = errors.New("speech unavailable")

// Engine is a text-to-speech backend.
type Engine interface {
	// Voices lists the installed voices.
	Voices(ctx context.Context) ([]types.Voice, error)
	// Speak blocks until text has been spoken or ctx is done, in which case
	// playback must stop promptly.
	Speak(ctx context.Context, text string, voice types.Voice) error
}

// Player selects voices and runs at most one playback at a time.
type Player struct {
	engine  Engine
	refresh singleflight.Group

	mu      sync.Mutex
	voices  []types.Voice
	loaded  bool
	current *Playback
	seq     atomic.Uint64
}

// NewPlayer creates a Player on top of engine.
func NewPlayer(engine Engine) *Player {
	return &Player{engine: engine}
}

// Refresh reloads the installed voice list. Concurrent calls share one
// engine listing.
func (p *Player) Refresh(ctx context.Context) error {
	_, err, _ := p.refresh.Do("voices", func() (any, error) {
		voices, err := p.engine.Voices(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.loaded = true
		if err != nil {
			p.voices = nil
			return nil, err
		}
		p.voices = voices
		return nil, nil
	})
	return err
}

// Loaded reports whether the voice list has been listed at least once.
func (p *Player) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Voices returns the installed voices, loading them on first use.
func (p *Player) Voices() []types.Voice {
	if !p.Loaded() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Refresh(ctx); err != nil {
			slog.Warn("list voices", "error", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Voice(nil), p.voices...)
}

// SelectVoice picks the configured voice when it is installed, otherwise the
// first installed voice for lang.
func (p *Player) SelectVoice(lang types.Lang, override string) (types.Voice, bool) {
	return selectVoice(p.Voices(), lang, override)
}

func selectVoice(voices []types.Voice, lang types.Lang, override string) (types.Voice, bool) {
	if override != "" {
		for _, v := range voices {
			if v.ID == override {
				return v, true
			}
		}
	}
	for _, v := range voices {
		if Matches(v, lang) {
			return v, true
		}
	}
	return types.Voice{}, false
}

// Available reports whether any voice can speak lang. It never lists
// voices itself and reports false until the list is loaded.
func (p *Player) Available(lang types.Lang) bool {
	p.mu.Lock()
	voices := p.voices
	p.mu.Unlock()
	_, ok := selectVoice(voices, lang, "")
	return ok
}

// Speak starts speaking text and returns immediately. Any playback already
// running is interrupted.
func (p *Player) Speak(text string, lang types.Lang, override string) (*Playback, error) {
	voice, ok := p.SelectVoice(lang, override)
	if !ok {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithCancel(context.Background())
	pb := &Playback{
		id:     p.seq.Add(1),
		voice:  voice,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	prev := p.current
	p.current = pb
	p.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	go func() {
		defer close(pb.done)
		err := p.engine.Speak(ctx, text, voice)
		if err != nil && ctx.Err() == nil {
			pb.err = err
			slog.Warn("speech-error", "voice", voice.ID, "error", err)
		}
		cancel()

		p.mu.Lock()
		if p.current == pb {
			p.current = nil
		}
		p.mu.Unlock()
	}()

	return pb, nil
}

// Stop interrupts pb. A nil playback is ignored.
func (p *Player) Stop(pb *Playback) {
	if pb != nil {
		pb.Stop()
	}
}

// StopAll interrupts whatever is playing.
func (p *Player) StopAll() {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	p.Stop(pb)
}

// Playback is a handle to one Speak call.
type Playback struct {
	id     uint64
	voice  types.Voice
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// ID identifies the playback within its Player.
func (pb *Playback) ID() uint64 { return pb.id }

// Voice returns the voice used.
func (pb *Playback) Voice() types.Voice { return pb.voice }

// Stop interrupts the playback. It does not wait for the engine.
func (pb *Playback) Stop() { pb.cancel() }

// Done is closed when playback finished or was stopped.
func (pb *Playback) Done() <-chan struct{} { return pb.done }

// Err returns the engine error once Done is closed. Interruptions are not errors.
func (pb *Playback) Err() error {
	select {
	case <-pb.done:
		return pb.err
	default:
		return nil
	}
}

// Matches reports whether v speaks lang, comparing base languages so that
// "zh-TW", "cmn" and "zh_CN" all count as Chinese.
func Matches(v types.Voice, lang types.Lang) bool {
	tag, err := language.All.Parse(normalizeTag(v.Lang))
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	want, err := language.ParseBase(lang.String())
	if err != nil {
		return false
	}
	return base == want
}

// Group returns the pipeline language of v, or "" when it is neither.
func Group(v types.Voice) types.Lang {
	for _, l := range []types.Lang{types.Chinese, types.English} {
		if Matches(v, l) {
			return l
		}
	}
	return ""
}

func normalizeTag(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == '_' {
			b[i] = '-'
		}
	}
	return string(b)
}
