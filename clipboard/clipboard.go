// Package clipboard reads the system clipboard and turns polling into
// discrete change events.
package clipboard

import (
	"errors"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// ErrNotText is returned when the clipboard holds no text (image, files).
var ErrNotText = errors.New("clipboard has no text")

// Source reads the current clipboard text.
// Implementations return ErrNotText for non-text content; any other error
// is treated as transient.
type Source interface {
	ReadText() (string, error)
}

// AppSource reads the clipboard of a Wails application.
type AppSource struct {
	app *application.App
}

// NewAppSource creates a Source backed by app.
func NewAppSource(app *application.App) *AppSource {
	return &AppSource{app: app}
}

func (s *AppSource) ReadText() (string, error) {
	return getClipboardContent(s.app)
}
