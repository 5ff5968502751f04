package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"yv-capture/src/dataurl"
	"yv-capture/src/selection"
)

var (
	// ErrNoPages is returned when the browser has no page targets.
	ErrNoPages = errors.New("browser has no open pages")
	// ErrNoWindowPage is returned when no visible page lives in the requested window.
	ErrNoWindowPage = errors.New("no visible page in window")
)

// Options controls how the browser is reached.
type Options struct {
	// ControlURL is a DevTools websocket URL. Empty launches a local Chromium.
	ControlURL string
	Headless   bool
	// StartURL opens an initial page after connecting, if set.
	StartURL string
}

// Browser is a connected Chromium instance.
type Browser struct {
	rod      *rod.Browser
	launched bool

	mu    sync.Mutex
	pages map[proto.TargetTargetID]*Page
}

// Connect attaches to (or launches) a browser.
func Connect(ctx context.Context, opts Options) (*Browser, error) {
	controlURL := opts.ControlURL
	launched := false
	if controlURL == "" {
		u, err := launcher.New().Headless(opts.Headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chromium: %w", err)
		}
		controlURL = u
		launched = true
	}

	rb := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b := &Browser{rod: rb, launched: launched, pages: make(map[proto.TargetTargetID]*Page)}

	if opts.StartURL != "" {
		if _, err := rb.Page(proto.TargetCreateTarget{URL: opts.StartURL}); err != nil {
			log.Printf("Browser: failed to open start page %s: %v", opts.StartURL, err)
		}
	}
	log.Printf("Browser: connected (launched=%v)", launched)
	return b, nil
}

// Close disconnects; a browser this process launched is shut down.
func (b *Browser) Close() error {
	if b.launched {
		return b.rod.Close()
	}
	return nil
}

// ActivePage returns the focused page, else the first visible one, else the first page.
func (b *Browser) ActivePage(ctx context.Context) (selection.Page, error) {
	pages, err := b.rod.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	var visible *rod.Page
	for _, p := range pages {
		if evalBool(ctx, p, pageFocusedJS) {
			return b.wrap(p), nil
		}
		if visible == nil && evalBool(ctx, p, pageVisibleJS) {
			visible = p
		}
	}
	if visible != nil {
		return b.wrap(visible), nil
	}
	return b.wrap(pages.First()), nil
}

// CaptureVisible screenshots the visible viewport of the page shown in
// windowID and returns it as a PNG data URL.
func (b *Browser) CaptureVisible(ctx context.Context, windowID int) (string, error) {
	pages, err := b.rod.Context(ctx).Pages()
	if err != nil {
		return "", fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		wid, err := windowForTarget(b.rod, p.TargetID)
		if err != nil || wid != windowID {
			continue
		}
		if !evalBool(ctx, p, pageVisibleJS) {
			continue
		}
		png, err := p.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			return "", fmt.Errorf("capture viewport: %w", err)
		}
		return dataurl.EncodePNG(png), nil
	}
	return "", fmt.Errorf("%w %d", ErrNoWindowPage, windowID)
}

func (b *Browser) wrap(p *rod.Page) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.pages[p.TargetID]; ok {
		return existing
	}
	wp := &Page{browser: b, page: p}
	b.pages[p.TargetID] = wp
	return wp
}

func windowForTarget(b *rod.Browser, id proto.TargetTargetID) (int, error) {
	res, err := proto.BrowserGetWindowForTarget{TargetID: id}.Call(b)
	if err != nil {
		return 0, err
	}
	return int(res.WindowID), nil
}

func evalBool(ctx context.Context, p *rod.Page, js string) bool {
	res, err := p.Context(ctx).Evaluate(&rod.EvalOptions{JS: js, ByValue: true})
	if err != nil || res == nil {
		return false
	}
	return res.Value.Bool()
}
