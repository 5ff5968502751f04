package stage

import (
	"fmt"
	"strconv"
	"sync"

	"yv-capture/src/capture"
)

// Slot is the visible state of one garment position on the stage.
type Slot struct {
	Target         capture.Target
	DefaultVisible bool
	OverlaySrc     string
	OverlayVisible bool
	Transform      string
}

// Stage holds both slots. It is mutated from the panel goroutine; reads from
// other goroutines go through Snapshot.
type Stage struct {
	mu    sync.RWMutex
	slots map[capture.Target]*Slot
}

func New() *Stage {
	s := &Stage{slots: make(map[capture.Target]*Slot, len(capture.Targets))}
	for _, t := range capture.Targets {
		s.slots[t] = &Slot{Target: t, DefaultVisible: true}
	}
	return s
}

// Transform is the CSS transform that places an overlay at its anchor:
// centered on the stage, offset, then scaled about its own center.
func Transform(a capture.AnchorSpec) string {
	return "translate(-50%, -50%) translate(" + num(a.OffsetX) + "px, " + num(a.OffsetY) + "px) scale(" + num(a.Scale) + ")"
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Apply hides the slot's default garment and shows src at the slot anchor.
// An empty src is ignored.
func (s *Stage) Apply(target capture.Target, src string) error {
	if src == "" {
		return nil
	}
	anchor, ok := capture.Anchors[target]
	if !ok {
		return fmt.Errorf("no anchor for target %q", target)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slots[target]
	slot.DefaultVisible = false
	slot.OverlaySrc = src
	slot.OverlayVisible = true
	slot.Transform = Transform(anchor)
	return nil
}

// Clear restores both default garments and hides both overlays.
func (s *Stage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range capture.Targets {
		s.slots[t] = &Slot{Target: t, DefaultVisible: true}
	}
}

// Slot returns a copy of one slot.
func (s *Stage) Slot(target capture.Target) Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot, ok := s.slots[target]; ok {
		return *slot
	}
	return Slot{Target: target}
}

// Snapshot copies both slots in z-order.
func (s *Stage) Snapshot() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Slot, 0, len(capture.Targets))
	for _, t := range capture.Targets {
		out = append(out, *s.slots[t])
	}
	return out
}

// Applied reports which slots currently show a captured garment.
func (s *Stage) Applied() []capture.Target {
	var out []capture.Target
	for _, slot := range s.Snapshot() {
		if slot.OverlayVisible {
			out = append(out, slot.Target)
		}
	}
	return out
}
