package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.aimuz.me/cliptrans/internal/types"
)

// commandEngine drives a command line synthesizer: one command lists voices,
// another speaks text read from stdin.
type commandEngine struct {
	name       string
	listArgs   []string
	parse      func([]byte) []types.Voice
	speakArgs  func(v types.Voice) []string
	speakEnv   func(v types.Voice) []string
	configure  func(cmd *exec.Cmd)
	lookupPath func(string) (string, error)
}

func (e *commandEngine) binary() (string, error) {
	lookup := e.lookupPath
	if lookup == nil {
		lookup = exec.LookPath
	}
	path, err := lookup(e.name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found", ErrUnavailable, e.name)
	}
	return path, nil
}

func (e *commandEngine) Voices(ctx context.Context) ([]types.Voice, error) {
	bin, err := e.binary()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, bin, e.listArgs...)
	if e.configure != nil {
		e.configure(cmd)
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return e.parse(out), nil
}

func (e *commandEngine) Speak(ctx context.Context, text string, v types.Voice) error {
	bin, err := e.binary()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, e.speakArgs(v)...)
	cmd.Stdin = strings.NewReader(text)
	cmd.WaitDelay = 500 * time.Millisecond
	if e.speakEnv != nil {
		cmd.Env = append(cmd.Environ(), e.speakEnv(v)...)
	}
	if e.configure != nil {
		e.configure(cmd)
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// sayVoiceLine matches `say -v '?'` output such as
// "Bad News            en_US    # The light you see at the end of the tunnel..."
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

func parseSayVoices(out []byte) []types.Voice {
	var voices []types.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := sayVoiceLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, types.Voice{ID: name, Name: name, Lang: normalizeTag(m[2])})
	}
	return voices
}

// parseEspeakVoices reads `espeak-ng --voices` output:
// "Pty Language       Age/Gender VoiceName          File          Other Languages"
// " 5  cmn             --/M      Chinese_(Mandarin) sit/cmn       (zh-cmn 5)(zh 5)"
func parseEspeakVoices(out []byte) []types.Voice {
	var voices []types.Voice
	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		lang := fields[1]
		if seen[lang] {
			continue
		}
		seen[lang] = true
		voices = append(voices, types.Voice{
			ID:   lang,
			Name: strings.ReplaceAll(fields[3], "_", " "),
			Lang: lang,
		})
	}
	return voices
}

// parsePipeVoices reads "Name|culture" lines printed by the PowerShell helper.
func parsePipeVoices(out []byte) []types.Voice {
	var voices []types.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		name, culture, ok := strings.Cut(strings.TrimSpace(sc.Text()), "|")
		if !ok || name == "" {
			continue
		}
		voices = append(voices, types.Voice{ID: name, Name: name, Lang: culture})
	}
	return voices
}
