package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"yv-capture/src/capture"
	"yv-capture/src/overlay"
	"yv-capture/src/selection"
)

// Page is a browser tab driven over the DevTools protocol. It implements
// selection.Page; the overlay lives in the page's main world.
type Page struct {
	browser *Browser
	page    *rod.Page
}

var _ selection.Page = (*Page)(nil)

func (p *Page) ID() string { return string(p.page.TargetID) }

func (p *Page) WindowID(ctx context.Context) (int, error) {
	return windowForTarget(p.browser.rod.Context(ctx), p.page.TargetID)
}

func (p *Page) DevicePixelRatio(ctx context.Context) (float64, error) {
	res, err := p.eval(ctx, devicePixelRatioJS, false)
	if err != nil {
		return 0, fmt.Errorf("read devicePixelRatio: %w", err)
	}
	return res.Value.Num(), nil
}

func (p *Page) Images(ctx context.Context) ([]selection.ImageElement, error) {
	res, err := p.eval(ctx, imagesJS, false)
	if err != nil {
		return nil, fmt.Errorf("scan images: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	var images []selection.ImageElement
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

func (p *Page) Mount(ctx context.Context, hint string) error {
	_, err := p.eval(ctx, overlayMountJS, false, hint)
	return err
}

func (p *Page) DrawBox(ctx context.Context, r capture.Rect) error {
	_, err := p.eval(ctx, overlayDrawJS, false, r.X, r.Y, r.W, r.H)
	return err
}

// NextEvent waits in the page for the next queued input event. A page that
// navigates or closes while waiting reports overlay.Closed.
func (p *Page) NextEvent(ctx context.Context) (overlay.Event, error) {
	res, err := p.eval(ctx, overlayNextEventJS, true)
	if err != nil {
		if ctx.Err() != nil {
			return overlay.Event{}, ctx.Err()
		}
		return overlay.Event{Kind: overlay.Closed}, nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return overlay.Event{}, fmt.Errorf("marshal overlay event: %w", err)
	}
	return decodeEvent(raw)
}

func (p *Page) Unmount(ctx context.Context) error {
	_, err := p.eval(ctx, overlayUnmountJS, false)
	return err
}

func (p *Page) eval(ctx context.Context, js string, await bool, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: await,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("empty evaluation result")
	}
	return res, nil
}

type wireEvent struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Key  string  `json:"key"`
}

func decodeEvent(raw []byte) (overlay.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return overlay.Event{}, fmt.Errorf("decode overlay event: %w", err)
	}
	ev := overlay.Event{X: w.X, Y: w.Y, Key: w.Key}
	switch w.Kind {
	case "pointerdown":
		ev.Kind = overlay.PointerDown
	case "pointermove":
		ev.Kind = overlay.PointerMove
	case "pointerup":
		ev.Kind = overlay.PointerUp
	case "keydown":
		ev.Kind = overlay.KeyDown
	case "closed":
		ev.Kind = overlay.Closed
	default:
		return overlay.Event{}, fmt.Errorf("unknown overlay event %q", w.Kind)
	}
	return ev, nil
}
