package selection

import (
	"context"
	"log"
	"time"

	"yv-capture/src/messages"
)

const senderLookupTimeout = 5 * time.Second

// Host runs selectors inside pages and relays their selections as
// CAPTURE_REGION_SELECTED messages.
type Host struct {
	registry *Registry
	send     func(messages.Message) error
}

// NewHost creates a host. send delivers a message to the orchestrator.
func NewHost(registry *Registry, send func(messages.Message) error) *Host {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Host{registry: registry, send: send}
}

// Registry exposes the per-page selector registry.
func (h *Host) Registry() *Registry { return h.registry }

// Activate starts capture mode on page. A page that already has a selector
// keeps its overlay and the selector takes over sessionID.
func (h *Host) Activate(ctx context.Context, page Page, sessionID string) error {
	handle, started, err := h.registry.Start(ctx, page, sessionID, func(sel Selection) {
		h.forward(page, sel)
	})
	if err != nil {
		return err
	}
	if !started {
		log.Printf("Selector: already active on %s, now serving session %s",
			page.ID(), handle.SessionID())
		return nil
	}
	log.Printf("Selector: capture mode active on %s (session %s)", page.ID(), sessionID)
	return nil
}

func (h *Host) forward(page Page, sel Selection) {
	ctx, cancel := context.WithTimeout(context.Background(), senderLookupTimeout)
	defer cancel()

	sender := messages.Sender{PageID: sel.PageID}
	if id, err := page.WindowID(ctx); err != nil {
		log.Printf("Selector: window id unavailable for %s: %v", sel.PageID, err)
	} else {
		sender.WindowID = id
	}

	msg := messages.CaptureRegionSelected{
		Rect:              sel.Rect,
		DPR:               sel.DPR,
		CandidateImageSrc: sel.CandidateImageSrc,
		SessionID:         sel.SessionID,
		Sender:            sender,
	}
	if h.send == nil {
		return
	}
	if err := h.send(msg); err != nil {
		log.Printf("Selector: failed to send selection: %v", err)
	}
}
