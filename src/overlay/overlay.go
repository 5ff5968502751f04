package overlay

import (
	"context"

	"yv-capture/src/capture"
)

// Hint is shown while capture mode is active.
const Hint = "Drag to select area - ESC to cancel"

// EventKind classifies input reported by an overlay.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	KeyDown
	// Closed means the overlay went away underneath us (navigation, page closed).
	Closed
)

func (k EventKind) String() string {
	switch k {
	case PointerDown:
		return "pointerdown"
	case PointerMove:
		return "pointermove"
	case PointerUp:
		return "pointerup"
	case KeyDown:
		return "keydown"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one input event in viewport CSS pixels.
type Event struct {
	Kind EventKind `json:"kind"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Key  string    `json:"key,omitempty"`
}

// Surface is the capture-mode overlay injected into a page. It owns only the
// visuals and the raw input; selection logic lives with the caller.
// Calls are made from a single goroutine per surface.
type Surface interface {
	// Mount injects the overlay, hint and (hidden) selection box.
	Mount(ctx context.Context, hint string) error
	// DrawBox shows the selection box at r.
	DrawBox(ctx context.Context, r capture.Rect) error
	// NextEvent blocks until the next input event or ctx is done.
	NextEvent(ctx context.Context) (Event, error)
	// Unmount removes every injected node and listener. Safe to call twice.
	Unmount(ctx context.Context) error
}
