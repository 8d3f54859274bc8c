package app

import "go.aimuz.me/cliptrans/internal/types"

// Event names for frontend communication.
const (
	EventPopupShow      = "popup-show"
	EventPopupUpdate    = "popup-update"
	EventPopupHide      = "popup-hide"
	EventEnabledChanged = "enabled-changed"
	EventSettingsSaved  = "settings-saved"
)

// VoiceGroups lists installed voices by the language they speak.
type VoiceGroups struct {
	Zh    []types.Voice `json:"zh"`
	En    []types.Voice `json:"en"`
	Other []types.Voice `json:"other"`
}
