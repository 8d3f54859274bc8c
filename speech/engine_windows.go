//go:build windows

package speech

import (
	"os/exec"
	"syscall"

	"go.aimuz.me/cliptrans/internal/types"
)

const psPrelude = `[Console]::InputEncoding = [Text.Encoding]::UTF8; [Console]::OutputEncoding = [Text.Encoding]::UTF8; ` +
	`Add-Type -AssemblyName System.Speech; $s = New-Object System.Speech.Synthesis.SpeechSynthesizer; `

const psListVoices = psPrelude +
	`$s.GetInstalledVoices() | Where-Object { $_.Enabled } | ForEach-Object { $_.VoiceInfo.Name + '|' + $_.VoiceInfo.Culture.Name }`

const psSpeak = psPrelude +
	`$s.SelectVoice($env:CLIPTRANS_VOICE); $s.Speak([Console]::In.ReadToEnd())`

// NewSystemEngine returns the System.Speech (SAPI) engine driven through PowerShell.
func NewSystemEngine() Engine {
	return &commandEngine{
		name:     "powershell",
		listArgs: []string{"-NoProfile", "-NonInteractive", "-Command", psListVoices},
		parse:    parsePipeVoices,
		speakArgs: func(types.Voice) []string {
			return []string{"-NoProfile", "-NonInteractive", "-Command", psSpeak}
		},
		speakEnv: func(v types.Voice) []string {
			return []string{"CLIPTRANS_VOICE=" + v.ID}
		},
		configure: func(cmd *exec.Cmd) {
			cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
		},
	}
}
