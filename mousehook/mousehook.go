// Package mousehook listens to global mouse input so the popup can be
// dismissed by clicking elsewhere or scrolling.
package mousehook

import (
	"context"
	"log/slog"

	hook "github.com/robotn/gohook"
)

// Action is the popup-relevant meaning of a raw input event.
type Action int

const (
	ActionNone Action = iota
	ActionClick
	ActionScroll
)

// Handler receives global mouse actions. Callbacks run on the hook
// goroutine and must not block.
type Handler struct {
	OnClick  func(x, y int)
	OnScroll func()
}

// Classify maps a gohook event to an Action and its screen position.
func Classify(ev hook.Event) (Action, int, int) {
	switch ev.Kind {
	case hook.MouseHold, hook.MouseDown:
		return ActionClick, int(ev.X), int(ev.Y)
	case hook.MouseWheel:
		return ActionScroll, int(ev.X), int(ev.Y)
	default:
		return ActionNone, 0, 0
	}
}

// Dispatch delivers ev to h.
func Dispatch(ev hook.Event, h Handler) {
	action, x, y := Classify(ev)
	switch action {
	case ActionClick:
		if h.OnClick != nil {
			h.OnClick(x, y)
		}
	case ActionScroll:
		if h.OnScroll != nil {
			h.OnScroll()
		}
	}
}

// Run starts the global hook and dispatches events until ctx is done.
// Without OS permission the hook delivers nothing; the popup then only
// closes by timer or by a new copy.
func Run(ctx context.Context, h Handler) error {
	events := hook.Start()
	defer hook.End()

	slog.Info("global mouse hook started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("global mouse hook stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			Dispatch(ev, h)
		}
	}
}
