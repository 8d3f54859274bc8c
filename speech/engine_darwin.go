//go:build darwin

package speech

import "go.aimuz.me/cliptrans/internal/types"

// NewSystemEngine returns the macOS `say` engine.
func NewSystemEngine() Engine {
	return &commandEngine{
		name:     "say",
		listArgs: []string{"-v", "?"},
		parse:    parseSayVoices,
		speakArgs: func(v types.Voice) []string {
			return []string{"-v", v.ID, "-f", "-"}
		},
	}
}
