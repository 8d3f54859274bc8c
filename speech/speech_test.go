package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.aimuz.me/cliptrans/internal/types"
)

// fakeEngine speaks until released or cancelled.
type fakeEngine struct {
	voices   []types.Voice
	listErr  error
	speakErr error

	mu      sync.Mutex
	spoken  []string
	listed  int
	listing chan struct{} // blocks Voices until closed
	release chan struct{}
}

func (f *fakeEngine) Voices(context.Context) ([]types.Voice, error) {
	f.mu.Lock()
	f.listed++
	f.mu.Unlock()
	if f.listing != nil {
		<-f.listing
	}
	return f.voices, f.listErr
}

func (f *fakeEngine) Listed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed
}

func (f *fakeEngine) Speak(ctx context.Context, text string, v types.Voice) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, v.ID+":"+text)
	f.mu.Unlock()
	if f.speakErr != nil {
		return f.speakErr
	}
	if f.release == nil {
		return nil
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var testVoices = []types.Voice{
	{ID: "david", Name: "Microsoft David", Lang: "en-US"},
	{ID: "zira", Name: "Microsoft Zira", Lang: "en-US"},
	{ID: "hanhan", Name: "Microsoft Hanhan", Lang: "zh-TW"},
	{ID: "hortense", Name: "Microsoft Hortense", Lang: "fr-FR"},
}

func TestPlayer_SelectVoice(t *testing.T) {
	tests := []struct {
		name     string
		voices   []types.Voice
		lang     types.Lang
		override string
		wantID   string
		wantOK   bool
	}{
		{name: "first english voice", voices: testVoices, lang: types.English, wantID: "david", wantOK: true},
		{name: "configured voice", voices: testVoices, lang: types.English, override: "zira", wantID: "zira", wantOK: true},
		{name: "configured voice missing falls back", voices: testVoices, lang: types.Chinese, override: "gone", wantID: "hanhan", wantOK: true},
		{name: "no chinese voice", voices: testVoices[:2], lang: types.Chinese, wantOK: false},
		{name: "no voices at all", voices: nil, lang: types.English, wantOK: false},
		{name: "espeak mandarin code", voices: []types.Voice{{ID: "cmn", Lang: "cmn"}}, lang: types.Chinese, wantID: "cmn", wantOK: true},
		{name: "underscore locale", voices: []types.Voice{{ID: "Tingting", Lang: "zh_CN"}}, lang: types.Chinese, wantID: "Tingting", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlayer(&fakeEngine{voices: tt.voices})
			v, ok := p.SelectVoice(tt.lang, tt.override)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, v.ID)
			}
		})
	}
}

func TestPlayer_SpeakUnavailable(t *testing.T) {
	p := NewPlayer(&fakeEngine{listErr: errors.New("no sapi")})

	pb, err := p.Speak("你好", types.Chinese, "")
	assert.Nil(t, pb)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, p.Available(types.English))
}

func TestPlayer_AvailableDoesNotListVoices(t *testing.T) {
	eng := &fakeEngine{voices: testVoices}
	p := NewPlayer(eng)

	assert.False(t, p.Available(types.English))
	assert.False(t, p.Loaded())
	assert.Equal(t, 0, eng.Listed())

	require.NoError(t, p.Refresh(context.Background()))
	assert.True(t, p.Available(types.English))
	assert.True(t, p.Available(types.Chinese))
	assert.Equal(t, 1, eng.Listed())
}

func TestPlayer_ConcurrentRefreshListsOnce(t *testing.T) {
	eng := &fakeEngine{voices: testVoices, listing: make(chan struct{})}
	p := NewPlayer(eng)

	errc := make(chan error, 1)
	go func() { errc <- p.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return eng.Listed() == 1 }, time.Second, 5*time.Millisecond)

	voices := make(chan []types.Voice, 1)
	go func() { voices <- p.Voices() }()

	// Voices must wait on the listing already in flight.
	select {
	case <-voices:
		t.Fatal("Voices returned before the listing finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(eng.listing)
	require.NoError(t, <-errc)
	assert.Len(t, <-voices, len(testVoices))
	assert.Equal(t, 1, eng.Listed())
}

func TestPlayer_StopIsPrompt(t *testing.T) {
	eng := &fakeEngine{voices: testVoices, release: make(chan struct{})}
	p := NewPlayer(eng)

	pb, err := p.Speak("Hello world", types.English, "")
	require.NoError(t, err)
	assert.Equal(t, "david", pb.Voice().ID)

	pb.Stop()
	select {
	case <-pb.Done():
	case <-time.After(time.Second):
		t.Fatal("playback did not stop")
	}
	assert.NoError(t, pb.Err())
}

func TestPlayer_NewSpeakInterruptsPrevious(t *testing.T) {
	eng := &fakeEngine{voices: testVoices, release: make(chan struct{})}
	p := NewPlayer(eng)

	first, err := p.Speak("one", types.English, "")
	require.NoError(t, err)
	second, err := p.Speak("two", types.English, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first playback still running")
	}

	select {
	case <-second.Done():
		t.Fatal("second playback ended early")
	default:
	}

	p.StopAll()
	<-second.Done()
}

func TestPlayer_NaturalCompletion(t *testing.T) {
	eng := &fakeEngine{voices: testVoices}
	p := NewPlayer(eng)

	pb, err := p.Speak("Hello", types.English, "")
	require.NoError(t, err)
	<-pb.Done()
	assert.NoError(t, pb.Err())

	eng.mu.Lock()
	defer eng.mu.Unlock()
	assert.Equal(t, []string{"david:Hello"}, eng.spoken)
}

func TestPlayer_EngineError(t *testing.T) {
	p := NewPlayer(&fakeEngine{voices: testVoices, speakErr: errors.New("device busy")})

	pb, err := p.Speak("Hello", types.English, "")
	require.NoError(t, err)
	<-pb.Done()
	assert.EqualError(t, pb.Err(), "device busy")
}

func TestGroup(t *testing.T) {
	assert.Equal(t, types.English, Group(testVoices[0]))
	assert.Equal(t, types.Chinese, Group(testVoices[2]))
	assert.Equal(t, types.Lang(""), Group(testVoices[3]))
}
