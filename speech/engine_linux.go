//go:build linux

package speech

import "go.aimuz.me/cliptrans/internal/types"

// NewSystemEngine returns the espeak-ng engine.
func NewSystemEngine() Engine {
	return &commandEngine{
		name:     "espeak-ng",
		listArgs: []string{"--voices"},
		parse:    parseEspeakVoices,
		speakArgs: func(v types.Voice) []string {
			return []string{"-v", v.ID, "-b", "1", "--stdin"}
		},
	}
}
