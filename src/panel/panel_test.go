package panel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"yv-capture/src/capture"
	"yv-capture/src/messages"
	"yv-capture/src/overlay"
	"yv-capture/src/selection"
	"yv-capture/src/stage"
	"yv-capture/src/store"
	"yv-capture/src/worker"
)

type fakeCutter struct {
	mu    sync.Mutex
	calls []string
	err   error
	gate  chan struct{}
}

func (c *fakeCutter) Cutout(ctx context.Context, src string) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, src)
	gate, err := c.gate, c.err
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return "data:image/png;base64,CUT", nil
}

func (c *fakeCutter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type harness struct {
	t        *testing.T
	panel    *Panel
	store    *store.Store
	cutter   *fakeCutter
	sessions chan string

	mu       sync.Mutex
	statuses []string
}

func newHarness(t *testing.T, st *store.Store) *harness {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	h := &harness{t: t, store: st, cutter: &fakeCutter{}, sessions: make(chan string, 8)}
	pool := worker.New(2, 4)
	t.Cleanup(pool.Close)

	h.panel = New(Options{
		Store:  st,
		Cutter: h.cutter,
		Pool:   pool,
		Send: func(m messages.Message) error {
			h.sessions <- m.(messages.StartCaptureMode).SessionID
			return nil
		},
	})
	h.panel.OnChange(func(v View) {
		h.mu.Lock()
		h.statuses = append(h.statuses, v.Status)
		h.mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.panel.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) capture(target capture.Target) string {
	h.t.Helper()
	v, err := h.panel.Capture(context.Background(), target)
	if err != nil {
		h.t.Fatalf("Capture: %v", err)
	}
	if want := "Capture " + string(target) + ": drag a rectangle on the page"; v.Status != want {
		h.t.Fatalf("status = %q, want %q", v.Status, want)
	}
	select {
	case id := <-h.sessions:
		return id
	case <-time.After(time.Second):
		h.t.Fatal("START_CAPTURE_MODE not sent")
	}
	return ""
}

func (h *harness) waitFor(desc string, cond func(View) bool) View {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		v, err := h.panel.View(context.Background())
		if err != nil {
			h.t.Fatalf("View: %v", err)
		}
		if cond(v) {
			return v
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out waiting for %s; last view %+v", desc, v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) sawStatus(s string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, got := range h.statuses {
		if got == s {
			return true
		}
	}
	return false
}

func (h *harness) record(t *testing.T, sessionID string) capture.Record {
	return capture.Record{
		Timestamp:         time.Now().UnixMilli(),
		Rect:              capture.Rect{X: 2, Y: 2, W: 10, H: 10},
		DPR:               1,
		ScreenshotDataURL: screenshotURL(t, 30, 30),
		SessionID:         sessionID,
	}
}

func TestBootIdle(t *testing.T) {
	h := newHarness(t, nil)
	v := h.waitFor("idle", func(v View) bool { return v.Status == StatusIdle })
	if v.PreviewText() != PlaceholderText {
		t.Fatalf("preview = %q", v.PreviewText())
	}
}

func TestBootPreviewOnly(t *testing.T) {
	st := store.NewMemory()
	st.Replace(capture.Record{CandidateImageSrc: "https://img.example/top.jpg", SessionID: "old"})

	h := newHarness(t, st)
	v := h.waitFor("boot preview", func(v View) bool { return v.Status == StatusHighRes })
	if v.Preview != "https://img.example/top.jpg" {
		t.Fatalf("preview = %q", v.Preview)
	}
	if len(v.Applied) != 0 {
		t.Fatalf("stored record must not be applied at boot: %v", v.Applied)
	}
}

func TestCaptureAppliesCutout(t *testing.T) {
	h := newHarness(t, nil)
	id := h.capture(capture.TargetTop)

	if err := h.store.Replace(h.record(t, id)); err != nil {
		t.Fatal(err)
	}
	v := h.waitFor("applied", func(v View) bool { return v.Status == "Applied to top" })

	if !h.sawStatus("Cutting out top...") {
		t.Error("missing cutting-out status")
	}
	if len(v.Pending) != 0 {
		t.Errorf("pending not cleared: %+v", v.Pending)
	}
	slot := h.panel.Stage().Slot(capture.TargetTop)
	if slot.DefaultVisible || !slot.OverlayVisible || slot.OverlaySrc != "data:image/png;base64,CUT" {
		t.Fatalf("top slot = %+v", slot)
	}
	if slot.Transform != stage.Transform(capture.Anchors[capture.TargetTop]) {
		t.Errorf("transform = %q", slot.Transform)
	}
	if h.panel.Stage().Slot(capture.TargetBottom).OverlayVisible {
		t.Error("bottom slot should be untouched")
	}
	if h.cutter.callCount() != 1 || !strings.HasPrefix(h.cutter.calls[0], "data:image/png;base64,") {
		t.Errorf("cutter calls = %v", h.cutter.calls)
	}
}

func TestCandidateWithoutScreenshotSkipsCutout(t *testing.T) {
	h := newHarness(t, nil)
	id := h.capture(capture.TargetBottom)

	h.store.Replace(capture.Record{CandidateImageSrc: "https://img.example/skirt.jpg", SessionID: id})
	h.waitFor("applied", func(v View) bool { return v.Status == "Applied to bottom" })

	if !h.sawStatus("Applied bottom (no cutout)") {
		t.Error("missing no-cutout status")
	}
	if h.cutter.callCount() != 0 {
		t.Errorf("cutout called for remote URL")
	}
	if got := h.panel.Stage().Slot(capture.TargetBottom).OverlaySrc; got != "https://img.example/skirt.jpg" {
		t.Errorf("overlay src = %q", got)
	}
}

func TestCutoutFailureLeavesStage(t *testing.T) {
	h := newHarness(t, nil)
	h.cutter.err = errors.New("cutout failed: 500 boom")
	id := h.capture(capture.TargetTop)

	h.store.Replace(h.record(t, id))
	v := h.waitFor("failure", func(v View) bool { return strings.HasPrefix(v.Status, "Cutout failed for top: ") })

	if len(v.Applied) != 0 {
		t.Fatalf("stage changed after failure: %v", v.Applied)
	}
	if len(v.Pending) != 0 {
		t.Fatalf("pending not cleared after failure")
	}
}

func TestRecordWithoutPendingOnlyPreviews(t *testing.T) {
	h := newHarness(t, nil)
	h.store.Replace(h.record(t, "nobody-asked"))
	v := h.waitFor("preview", func(v View) bool { return v.Status == StatusCropped })
	if len(v.Applied) != 0 || h.cutter.callCount() != 0 {
		t.Fatalf("unrequested record was applied: %+v", v)
	}
}

func TestNoValidCaptureData(t *testing.T) {
	h := newHarness(t, nil)
	id := h.capture(capture.TargetTop)
	h.store.Replace(capture.Record{SessionID: id})
	v := h.waitFor("failure", func(v View) bool { return strings.HasPrefix(v.Status, "Cutout failed for top") })
	if v.Preview != "" {
		t.Fatalf("preview should reset, got %q", v.Preview)
	}
	if !h.sawStatus(StatusNoData) {
		t.Error("missing no-data status")
	}
}

type dragPage struct {
	events chan overlay.Event
}

func (p *dragPage) ID() string { return "tab-1" }

func (p *dragPage) WindowID(context.Context) (int, error) { return 1, nil }

func (p *dragPage) DevicePixelRatio(context.Context) (float64, error) { return 1, nil }

func (p *dragPage) Images(context.Context) ([]selection.ImageElement, error) { return nil, nil }

func (p *dragPage) Mount(context.Context, string) error { return nil }

func (p *dragPage) DrawBox(context.Context, capture.Rect) error { return nil }

func (p *dragPage) Unmount(context.Context) error { return nil }

func (p *dragPage) NextEvent(ctx context.Context) (overlay.Event, error) {
	select {
	case ev := <-p.events:
		return ev, nil
	case <-ctx.Done():
		return overlay.Event{}, ctx.Err()
	}
}

// Top then Bottom before the drag on the same page: the one selection lands in
// the bottom slot and nothing is left waiting.
func TestOverlappingCaptures(t *testing.T) {
	h := newHarness(t, nil)
	shot := screenshotURL(t, 30, 30)
	host := selection.NewHost(nil, func(m messages.Message) error {
		sel := m.(messages.CaptureRegionSelected)
		return h.store.Replace(capture.Record{
			Timestamp:         time.Now().UnixMilli(),
			Rect:              sel.Rect,
			DPR:               sel.DPR,
			ScreenshotDataURL: shot,
			SessionID:         sel.SessionID,
		})
	})
	page := &dragPage{events: make(chan overlay.Event, 4)}
	ctx := context.Background()

	topID := h.capture(capture.TargetTop)
	if err := host.Activate(ctx, page, topID); err != nil {
		t.Fatal(err)
	}
	bottomID := h.capture(capture.TargetBottom)
	if err := host.Activate(ctx, page, bottomID); err != nil {
		t.Fatal(err)
	}

	page.events <- overlay.Event{Kind: overlay.PointerDown, X: 2, Y: 2}
	page.events <- overlay.Event{Kind: overlay.PointerUp, X: 12, Y: 12}

	v := h.waitFor("bottom applied", func(v View) bool { return v.Status == "Applied to bottom" })
	if len(v.Pending) != 0 {
		t.Fatalf("pending = %+v, want empty", v.Pending)
	}
	if len(v.Applied) != 1 || v.Applied[0] != capture.TargetBottom {
		t.Fatalf("applied = %v, want [bottom]", v.Applied)
	}
	if top := h.panel.Stage().Slot(capture.TargetTop); top.OverlayVisible || !top.DefaultVisible {
		t.Fatalf("top slot = %+v, want untouched", top)
	}
	if bottom := h.panel.Stage().Slot(capture.TargetBottom); !bottom.OverlayVisible {
		t.Fatalf("bottom slot = %+v, want overlay", bottom)
	}
	if h.cutter.callCount() != 1 {
		t.Fatalf("cutter calls = %d, want 1", h.cutter.callCount())
	}
}

// A record tagged with a superseded request only updates the preview.
func TestSupersededRecordOnlyPreviews(t *testing.T) {
	h := newHarness(t, nil)
	topID := h.capture(capture.TargetTop)
	bottomID := h.capture(capture.TargetBottom)

	h.store.Replace(h.record(t, topID))
	v := h.waitFor("preview", func(v View) bool { return v.Status == StatusCropped })
	if len(v.Applied) != 0 || h.cutter.callCount() != 0 {
		t.Fatalf("superseded record was applied: %+v", v)
	}
	if len(v.Pending) != 1 || v.Pending[0].ID != bottomID {
		t.Fatalf("pending = %+v, want only the bottom request", v.Pending)
	}

	h.store.Replace(h.record(t, bottomID))
	v = h.waitFor("bottom applied", func(v View) bool { return v.Status == "Applied to bottom" })
	if len(v.Pending) != 0 || len(v.Applied) != 1 {
		t.Fatalf("view = %+v", v)
	}
}

func TestClear(t *testing.T) {
	h := newHarness(t, nil)
	id := h.capture(capture.TargetTop)
	h.store.Replace(h.record(t, id))
	h.waitFor("applied", func(v View) bool { return v.Status == "Applied to top" })
	h.capture(capture.TargetBottom)

	v, err := h.panel.Clear(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusCleared || v.Preview != "" || len(v.Pending) != 0 || len(v.Applied) != 0 {
		t.Fatalf("view after Clear = %+v", v)
	}
	if _, ok := h.store.Get(); ok {
		t.Fatal("lastCapture not removed")
	}
	for _, slot := range h.panel.Stage().Snapshot() {
		if !slot.DefaultVisible || slot.OverlayVisible || slot.OverlaySrc != "" || slot.Transform != "" {
			t.Fatalf("slot after Clear = %+v", slot)
		}
	}
}

func TestClearDiscardsInFlightApply(t *testing.T) {
	h := newHarness(t, nil)
	h.cutter.gate = make(chan struct{})
	id := h.capture(capture.TargetTop)
	h.store.Replace(h.record(t, id))
	h.waitFor("cutting", func(v View) bool { return v.Status == "Cutting out top..." })

	if _, err := h.panel.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(h.cutter.gate)

	time.Sleep(50 * time.Millisecond)
	v := h.waitFor("cleared", func(v View) bool { return v.Status == StatusCleared })
	if len(v.Applied) != 0 {
		t.Fatalf("apply landed after Clear: %v", v.Applied)
	}
}
