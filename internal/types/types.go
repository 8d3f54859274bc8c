// Package types provides shared type definitions for the application.
package types

import "time"

// Lang is a language the pipeline knows how to classify, translate and speak.
type Lang string

const (
	English Lang = "en"
	Chinese Lang = "zh"
)

// String returns the language code.
func (l Lang) String() string { return string(l) }

// Decision is the classifier output for one clipboard sample.
// Source is the language the text is spoken in, Target the language shown.
type Decision struct {
	Source Lang `json:"source"`
	Target Lang `json:"target"`
}

// NeedsTranslation reports whether the popup text differs from the original.
func (d Decision) NeedsTranslation() bool {
	return d.Source != d.Target
}

// ClipboardSample is an immutable snapshot of clipboard text.
type ClipboardSample struct {
	Text       string    `json:"text"`
	ObservedAt time.Time `json:"observedAt"`
}

// TranslateRequest represents a translation request.
type TranslateRequest struct {
	Text    string        `json:"text"`
	Source  Lang          `json:"source"`
	Target  Lang          `json:"target"`
	Timeout time.Duration `json:"timeout"`
}

// SessionStatus is the lifecycle state of a popup session.
type SessionStatus string

const (
	StatusTranslating SessionStatus = "translating"
	StatusReady       SessionStatus = "ready"
	StatusFailed      SessionStatus = "failed"
)

// Session is one activation of the popup pipeline.
type Session struct {
	ID           string        `json:"id"`
	OriginalText string        `json:"originalText"`
	Decision     Decision      `json:"decision"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// PopupView is what the popup window renders for the active session.
type PopupView struct {
	SessionID string        `json:"sessionId"`
	Text      string        `json:"text"` // Chinese-facing text only
	Status    SessionStatus `json:"status"`
	CanPlay   bool          `json:"canPlay"`
	Playing   bool          `json:"playing"`
	FontSize  int           `json:"fontSize"`
}

// Voice describes an installed text-to-speech voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang"` // BCP 47 tag reported by the engine
}

// DetectResult represents the result of language detection.
type DetectResult struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
