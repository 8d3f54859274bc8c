package app

import (
	"sync"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/cliptrans/internal/types"
)

// popupOffset keeps the popup clear of the pointer that made the selection.
const popupOffset = 16

// cursor remembers the last global mouse press.
type cursor struct {
	mu   sync.Mutex
	x, y int
	ok   bool
}

func (c *cursor) set(x, y int) {
	c.mu.Lock()
	c.x, c.y, c.ok = x, y, true
	c.mu.Unlock()
}

func (c *cursor) get() (int, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x, c.y, c.ok
}

// windowView renders popup sessions into a frameless always-on-top window.
// The frontend draws the content from the emitted events.
type windowView struct {
	emit   func(name string, data any)
	window *application.WebviewWindow
	cursor *cursor
}

func (v *windowView) Show(p types.PopupView) {
	if x, y, ok := v.cursor.get(); ok {
		v.window.SetPosition(x+popupOffset, y+popupOffset)
	}
	v.emit(EventPopupShow, p)
	v.window.Show()
}

func (v *windowView) Update(p types.PopupView) {
	v.emit(EventPopupUpdate, p)
}

func (v *windowView) Hide() {
	v.window.Hide()
	v.emit(EventPopupHide, nil)
}

func (v *windowView) Contains(x, y int) bool {
	if !v.window.IsVisible() {
		return false
	}
	wx, wy := v.window.Position()
	w, h := v.window.Size()
	return inside(x, y, wx, wy, w, h)
}

func inside(x, y, left, top, width, height int) bool {
	return x >= left && x < left+width && y >= top && y < top+height
}
