package selection

import (
	"context"
	"errors"
	"sync"

	"yv-capture/src/capture"
	"yv-capture/src/overlay"
)

type fakePage struct {
	id       string
	windowID int
	dpr      float64
	dprErr   error
	images   []ImageElement
	imageErr error
	mountErr error

	events chan overlay.Event

	mu       sync.Mutex
	mounted  bool
	mounts   int
	unmounts int
	boxes    []capture.Rect
}

func newFakePage(id string) *fakePage {
	return &fakePage{id: id, windowID: 7, dpr: 2, events: make(chan overlay.Event, 16)}
}

func (p *fakePage) ID() string { return p.id }

func (p *fakePage) WindowID(ctx context.Context) (int, error) {
	if p.windowID <= 0 {
		return 0, errors.New("no window")
	}
	return p.windowID, nil
}

func (p *fakePage) DevicePixelRatio(ctx context.Context) (float64, error) {
	return p.dpr, p.dprErr
}

func (p *fakePage) Images(ctx context.Context) ([]ImageElement, error) {
	return p.images, p.imageErr
}

func (p *fakePage) Mount(ctx context.Context, hint string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mountErr != nil {
		return p.mountErr
	}
	p.mounted = true
	p.mounts++
	return nil
}

func (p *fakePage) DrawBox(ctx context.Context, r capture.Rect) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boxes = append(p.boxes, r)
	return nil
}

func (p *fakePage) NextEvent(ctx context.Context) (overlay.Event, error) {
	select {
	case ev := <-p.events:
		return ev, nil
	case <-ctx.Done():
		return overlay.Event{}, ctx.Err()
	}
}

func (p *fakePage) Unmount(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mounted = false
	p.unmounts++
	return nil
}

func (p *fakePage) isMounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

func (p *fakePage) drag(x1, y1, x2, y2 float64) {
	p.events <- overlay.Event{Kind: overlay.PointerDown, X: x1, Y: y1}
	p.events <- overlay.Event{Kind: overlay.PointerMove, X: (x1 + x2) / 2, Y: (y1 + y2) / 2}
	p.events <- overlay.Event{Kind: overlay.PointerUp, X: x2, Y: y2}
}

func img(left, top, w, h float64, src string) ImageElement {
	return ImageElement{
		Box: Box{Left: left, Top: top, Right: left + w, Bottom: top + h, Width: w, Height: h},
		Src: src,
	}
}
