package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"yv-capture/src/capture"
	"yv-capture/src/messages"
	"yv-capture/src/selection"
)

var (
	ErrNoActivePage       = errors.New("no active page")
	ErrWindowUnresolvable = errors.New("sender window unresolvable")
)

// Tabs finds the page the user is looking at.
type Tabs interface {
	ActivePage(ctx context.Context) (selection.Page, error)
}

// Activator puts a page into capture mode.
type Activator interface {
	Activate(ctx context.Context, page selection.Page, sessionID string) error
}

// Screenshotter captures the visible viewport of a window as a PNG data URL.
type Screenshotter interface {
	CaptureVisible(ctx context.Context, windowID int) (string, error)
}

// RecordWriter stores the latest capture record.
type RecordWriter interface {
	Replace(rec capture.Record) error
}

// Orchestrator turns capture requests and selections into stored records.
// It keeps no state between events.
type Orchestrator struct {
	tabs      Tabs
	activator Activator
	shots     Screenshotter
	records   RecordWriter
	fetcher   *Fetcher
	now       func() time.Time
}

type Options struct {
	Tabs          Tabs
	Activator     Activator
	Screenshotter Screenshotter
	Records       RecordWriter
	Fetcher       *Fetcher
}

func New(opts Options) *Orchestrator {
	f := opts.Fetcher
	if f == nil {
		f = NewFetcher(FetcherConfig{})
	}
	return &Orchestrator{
		tabs:      opts.Tabs,
		activator: opts.Activator,
		shots:     opts.Screenshotter,
		records:   opts.Records,
		fetcher:   f,
		now:       time.Now,
	}
}

// StartCapture activates capture mode in the active page. Errors are returned
// for logging only; nothing is retried.
func (o *Orchestrator) StartCapture(ctx context.Context, sessionID string) error {
	page, err := o.tabs.ActivePage(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoActivePage, err)
	}
	if page == nil {
		return ErrNoActivePage
	}
	if err := o.activator.Activate(ctx, page, sessionID); err != nil {
		return fmt.Errorf("activate capture mode on %s: %w", page.ID(), err)
	}
	return nil
}

// SelectionMade screenshots the sender's window and replaces the stored record.
// A sender without a window is skipped and reported as ErrWindowUnresolvable.
func (o *Orchestrator) SelectionMade(ctx context.Context, msg messages.CaptureRegionSelected) error {
	if !msg.Sender.WindowResolvable() {
		return ErrWindowUnresolvable
	}
	shot, err := o.shots.CaptureVisible(ctx, msg.Sender.WindowID)
	if err != nil {
		return fmt.Errorf("capture visible tab: %w", err)
	}
	rec := capture.Record{
		Timestamp:         o.now().UnixMilli(),
		Rect:              msg.Rect,
		DPR:               msg.DPR,
		CandidateImageSrc: msg.CandidateImageSrc,
		ScreenshotDataURL: shot,
		SessionID:         msg.SessionID,
	}
	if err := o.records.Replace(rec); err != nil {
		return fmt.Errorf("store capture record: %w", err)
	}
	log.Printf("Orchestrator: stored capture %s dpr=%g candidate=%v session=%s",
		rec.Rect, rec.DPR, rec.HasCandidate(), rec.SessionID)
	return nil
}

// FetchImageAsDataURL proxies a credential-less image fetch.
func (o *Orchestrator) FetchImageAsDataURL(ctx context.Context, url string) messages.FetchImageResult {
	return o.fetcher.Fetch(ctx, url)
}
