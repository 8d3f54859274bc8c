package app

import (
	"go.aimuz.me/cliptrans/internal/popup"
	"go.aimuz.me/cliptrans/internal/types"
	"go.aimuz.me/cliptrans/speech"
)

// playerSpeaker adapts speech.Player to popup.Speaker.
type playerSpeaker struct {
	player *speech.Player
}

func (s playerSpeaker) Speak(text string, lang types.Lang, voiceID string) (popup.Playback, error) {
	pb, err := s.player.Speak(text, lang, voiceID)
	if err != nil {
		return nil, err
	}
	return pb, nil
}

func (s playerSpeaker) Available(lang types.Lang) bool {
	return s.player.Available(lang)
}

// groupVoices splits voices into Chinese, English and the rest.
func groupVoices(voices []types.Voice) VoiceGroups {
	g := VoiceGroups{
		Zh:    []types.Voice{},
		En:    []types.Voice{},
		Other: []types.Voice{},
	}
	for _, v := range voices {
		switch speech.Group(v) {
		case types.Chinese:
			g.Zh = append(g.Zh, v)
		case types.English:
			g.En = append(g.En, v)
		default:
			g.Other = append(g.Other, v)
		}
	}
	return g
}
