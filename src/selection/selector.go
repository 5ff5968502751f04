package selection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"yv-capture/src/capture"
	"yv-capture/src/overlay"
)

// ErrSurfaceClosed is returned when the overlay disappears before a selection completes.
var ErrSurfaceClosed = errors.New("capture overlay closed")

// Page is a browser page a selector can run in.
type Page interface {
	overlay.Surface
	ID() string
	WindowID(ctx context.Context) (int, error)
	DevicePixelRatio(ctx context.Context) (float64, error)
	Images(ctx context.Context) ([]ImageElement, error)
}

// State of a selector. Resolved and Cancelled are terminal.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateResolved
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateResolved:
		return "resolved"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Selection is what a selector emits after a completed drag.
type Selection struct {
	SessionID         string
	PageID            string
	Rect              capture.Rect
	DPR               float64
	CandidateImageSrc string
}

// EmitFunc receives the single selection a selector produces.
type EmitFunc func(Selection)

const cleanupTimeout = 3 * time.Second

// Selector is one capture-mode session on one page.
type Selector struct {
	page Page

	mu        sync.Mutex
	sessionID string

	dpr    float64
	state  State
	startX float64
	startY float64
}

func NewSelector(page Page, sessionID string) *Selector {
	return &Selector{page: page, sessionID: sessionID, dpr: 1}
}

// SessionID returns the capture session the next selection will carry.
func (s *Selector) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Retarget hands a running selector to a newer capture request. The selection
// it emits carries the latest id.
func (s *Selector) Retarget(sessionID string) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.mu.Unlock()
}

// State returns the current state; only meaningful from the goroutine running the selector.
func (s *Selector) State() State { return s.state }

// Activate reads the device pixel ratio and mounts the overlay. A failed mount
// is cleaned up before returning.
func (s *Selector) Activate(ctx context.Context) error {
	if dpr, err := s.page.DevicePixelRatio(ctx); err != nil {
		log.Printf("Selector: devicePixelRatio unavailable on %s, using 1: %v", s.page.ID(), err)
	} else if dpr > 0 {
		s.dpr = dpr
	}
	if err := s.page.Mount(ctx, overlay.Hint); err != nil {
		s.cleanup(ctx, "mount failed")
		return fmt.Errorf("failed to mount capture overlay: %w", err)
	}
	return nil
}

// Run pumps overlay events until the selection resolves or is cancelled.
// Cleanup always runs before Run returns.
func (s *Selector) Run(ctx context.Context, emit EmitFunc) error {
	reason := "cancelled"
	defer func() { s.cleanup(ctx, reason) }()

	for {
		ev, err := s.page.NextEvent(ctx)
		if err != nil {
			s.state = StateCancelled
			reason = "error"
			return err
		}
		done, err := s.Handle(ctx, ev, emit)
		if done {
			if s.state == StateResolved {
				reason = "selected"
			}
			return err
		}
	}
}

// Handle applies one event to the state machine and reports whether the selector finished.
func (s *Selector) Handle(ctx context.Context, ev overlay.Event, emit EmitFunc) (bool, error) {
	switch ev.Kind {
	case overlay.Closed:
		s.state = StateCancelled
		return true, ErrSurfaceClosed

	case overlay.KeyDown:
		if ev.Key == "Escape" {
			s.state = StateCancelled
			return true, nil
		}

	case overlay.PointerDown:
		s.state = StateDragging
		s.startX, s.startY = ev.X, ev.Y
		s.draw(ctx, capture.Rect{X: ev.X, Y: ev.Y, W: 1, H: 1})

	case overlay.PointerMove:
		if s.state != StateDragging {
			return false, nil
		}
		s.draw(ctx, capture.MakeRect(s.startX, s.startY, ev.X, ev.Y))

	case overlay.PointerUp:
		if s.state != StateDragging {
			return false, nil
		}
		rect := capture.MakeRect(s.startX, s.startY, ev.X, ev.Y)
		sel := Selection{
			SessionID:         s.SessionID(),
			PageID:            s.page.ID(),
			Rect:              rect,
			DPR:               s.dpr,
			CandidateImageSrc: s.inferCandidate(ctx, rect),
		}
		s.state = StateResolved
		if emit != nil {
			emit(sel)
		}
		return true, nil
	}
	return false, nil
}

func (s *Selector) inferCandidate(ctx context.Context, rect capture.Rect) string {
	images, err := s.page.Images(ctx)
	if err != nil {
		log.Printf("Selector: image scan failed on %s: %v", s.page.ID(), err)
		return ""
	}
	return FindBestImageSrc(images, rect)
}

func (s *Selector) draw(ctx context.Context, r capture.Rect) {
	if err := s.page.DrawBox(ctx, r); err != nil {
		log.Printf("Selector: draw box failed: %v", err)
	}
}

func (s *Selector) cleanup(ctx context.Context, reason string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.page.Unmount(cctx); err != nil {
		log.Printf("Selector: unmount failed on %s: %v", s.page.ID(), err)
	}
	log.Printf("Selector: capture mode ended on %s: %s", s.page.ID(), reason)
}
