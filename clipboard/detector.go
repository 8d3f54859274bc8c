package clipboard

import (
	"time"

	"go.aimuz.me/cliptrans/internal/types"
)

// Detector decides whether a clipboard read is a new copy.
// It is independent of how the clipboard is read so it can be tested alone.
// Not safe for concurrent use.
type Detector struct {
	last string
	seen bool
}

// Prime records text as already seen without producing a change, so the
// content present at startup does not trigger a popup.
func (d *Detector) Prime(text string) {
	if text == "" {
		return
	}
	d.last = text
	d.seen = true
}

// Observe compares text with the previous sample. Empty text is ignored
// and leaves the previous sample in place.
func (d *Detector) Observe(text string, now time.Time) (types.ClipboardSample, bool) {
	if text == "" {
		return types.ClipboardSample{}, false
	}
	if d.seen && text == d.last {
		return types.ClipboardSample{}, false
	}
	d.last = text
	d.seen = true
	return types.ClipboardSample{Text: text, ObservedAt: now}, true
}

// Last returns the most recent accepted text.
func (d *Detector) Last() (string, bool) {
	return d.last, d.seen
}
