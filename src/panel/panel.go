package panel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"yv-capture/src/capture"
	"yv-capture/src/dataurl"
	"yv-capture/src/logutil"
	"yv-capture/src/messages"
	"yv-capture/src/session"
	"yv-capture/src/stage"
	"yv-capture/src/store"
	"yv-capture/src/worker"
)

// ErrStopped is returned by commands sent after the loop has exited.
var ErrStopped = errors.New("panel is not running")

// Store is the part of the record store the panel uses.
type Store interface {
	Get() (capture.Record, bool)
	Remove() error
	Subscribe() (<-chan store.Change, func())
}

// Cutter removes image backgrounds.
type Cutter interface {
	Cutout(ctx context.Context, imageDataURL string) (string, error)
}

// View is what the panel currently shows.
type View struct {
	Status  string
	Preview string // empty shows the placeholder
	Path    Path
	Pending []session.Pending
	Applied []capture.Target
}

// PreviewText returns the preview source or the placeholder text.
func (v View) PreviewText() string {
	if v.Preview == "" {
		return PlaceholderText
	}
	return logutil.Abbrev(v.Preview)
}

type Options struct {
	Store  Store
	Cutter Cutter
	Pool   *worker.Pool
	Stage  *stage.Stage
	// Send delivers START_CAPTURE_MODE to the orchestrator.
	Send func(messages.Message) error
	// Renderer, when set, composites the stage after each change. The PNG is
	// written to OutputPath and handed to CopyPNG when those are set.
	Renderer   *stage.Renderer
	OutputPath string
	CopyPNG    func([]byte) error
}

type commandKind int

const (
	cmdCapture commandKind = iota
	cmdClear
	cmdView
)

type command struct {
	kind   commandKind
	target capture.Target
	reply  chan View
}

type resultKind int

const (
	resProgress resultKind = iota
	resDone
)

type applyResult struct {
	kind      resultKind
	epoch     uint64
	sessionID string
	target    capture.Target
	status    string
	src       string
	err       error
}

// Panel is the resolver/compositor actor. All state is owned by the Run goroutine.
type Panel struct {
	opts    Options
	stage   *stage.Stage
	pending *session.Table

	cmds      chan command
	results   chan applyResult
	renders   chan []stage.Slot
	done      chan struct{}
	listeners []func(View)

	// loop-owned
	status  string
	preview Resolution
	epoch   uint64
}

func New(opts Options) *Panel {
	st := opts.Stage
	if st == nil {
		st = stage.New()
	}
	return &Panel{
		opts:    opts,
		stage:   st,
		pending: session.NewTable(),
		cmds:    make(chan command),
		results: make(chan applyResult, 8),
		renders: make(chan []stage.Slot, 1),
		done:    make(chan struct{}),
		status:  StatusIdle,
	}
}

// OnChange registers a callback run on the panel goroutine after every
// visible change. Must be called before Run.
func (p *Panel) OnChange(fn func(View)) {
	p.listeners = append(p.listeners, fn)
}

// Stage exposes the stage for read-only inspection.
func (p *Panel) Stage() *stage.Stage { return p.stage }

// Run owns the panel state until ctx is cancelled.
func (p *Panel) Run(ctx context.Context) error {
	defer close(p.done)

	changes, unsubscribe := p.opts.Store.Subscribe()
	defer unsubscribe()

	if p.opts.Renderer != nil {
		go p.renderLoop(ctx)
	}

	p.boot()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-p.cmds:
			p.handleCommand(ctx, c)
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			p.handleChange(ctx, ch)
		case r := <-p.results:
			p.handleResult(r)
		}
	}
}

// Capture asks the orchestrator to start capture mode for target.
func (p *Panel) Capture(ctx context.Context, target capture.Target) (View, error) {
	return p.do(ctx, command{kind: cmdCapture, target: target})
}

// Clear resets the panel, the stage and the stored record.
func (p *Panel) Clear(ctx context.Context) (View, error) {
	return p.do(ctx, command{kind: cmdClear})
}

// View returns the current state.
func (p *Panel) View(ctx context.Context) (View, error) {
	return p.do(ctx, command{kind: cmdView})
}

func (p *Panel) do(ctx context.Context, c command) (View, error) {
	c.reply = make(chan View, 1)
	select {
	case p.cmds <- c:
	case <-p.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-c.reply:
		return v, nil
	case <-p.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (p *Panel) boot() {
	rec, ok := p.opts.Store.Get()
	if !ok {
		p.setStatus(StatusIdle)
		return
	}
	// Preview only; a stored record is never applied at boot.
	p.preview = Resolve(rec)
	p.setStatus(p.preview.Status)
}

func (p *Panel) handleCommand(ctx context.Context, c command) {
	switch c.kind {
	case cmdCapture:
		p.startCapture(c.target)
	case cmdClear:
		p.clear()
	}
	c.reply <- p.view()
}

func (p *Panel) startCapture(target capture.Target) {
	req := p.pending.Begin(target)
	if err := p.opts.Send(messages.StartCaptureMode{SessionID: req.ID}); err != nil {
		p.pending.Cancel(req.ID)
		p.setStatus(fmt.Sprintf(statusSendFail, target, err))
		return
	}
	log.Printf("Panel: capture requested for %s (session %s)", target, req.ID)
	p.setStatus(fmt.Sprintf(statusCapture, target))
}

func (p *Panel) clear() {
	if err := p.opts.Store.Remove(); err != nil {
		log.Printf("Panel: failed to remove last capture: %v", err)
	}
	p.pending.Clear()
	p.epoch++
	p.stage.Clear()
	p.preview = Resolution{}
	p.setStatus(StatusCleared)
	p.queueRender()
}

func (p *Panel) handleChange(ctx context.Context, ch store.Change) {
	if ch.Key != store.KeyLastCapture {
		return
	}
	if ch.Kind == store.Removed {
		p.preview = Resolution{}
		p.notify()
		return
	}

	rec := ch.Record
	p.preview = Resolve(rec)
	p.setStatus(p.preview.Status)

	target, ok := p.pending.Claim(rec.SessionID)
	if !ok {
		return
	}
	p.submitApply(ctx, rec, target)
}

func (p *Panel) submitApply(ctx context.Context, rec capture.Record, target capture.Target) {
	epoch := p.epoch
	preview := p.preview.Src
	post := func(r applyResult) {
		r.epoch = epoch
		r.sessionID = rec.SessionID
		r.target = target
		select {
		case p.results <- r:
		case <-p.done:
		case <-ctx.Done():
		}
	}

	ok := p.opts.Pool.Submit(ctx, "apply-"+string(target), func(jobCtx context.Context) {
		src, err := CutoutSource(rec, preview)
		if err != nil {
			post(applyResult{kind: resDone, err: err})
			return
		}
		if !dataurl.Is(src) {
			post(applyResult{kind: resProgress, status: fmt.Sprintf(statusNoCutout, target)})
			post(applyResult{kind: resDone, src: src})
			return
		}
		post(applyResult{kind: resProgress, status: fmt.Sprintf(statusCutting, target)})
		out, err := p.opts.Cutter.Cutout(jobCtx, src)
		post(applyResult{kind: resDone, src: out, err: err})
	})
	if !ok {
		log.Printf("Panel: apply pool full, dropping %s", target)
		p.setStatus(StatusBusy)
	}
}

func (p *Panel) handleResult(r applyResult) {
	if r.epoch != p.epoch {
		log.Printf("Panel: discarding %s result from before Clear", r.target)
		return
	}
	if r.kind == resProgress {
		p.setStatus(r.status)
		return
	}
	if r.err != nil {
		log.Printf("Panel: apply %s failed: %v", r.target, r.err)
		p.setStatus(fmt.Sprintf(statusCutoutFail, r.target, r.err))
		return
	}
	if err := p.stage.Apply(r.target, r.src); err != nil {
		log.Printf("Panel: stage apply failed: %v", err)
		return
	}
	p.setStatus(fmt.Sprintf(statusApplied, r.target))
	p.queueRender()
}

func (p *Panel) setStatus(s string) {
	p.status = s
	log.Printf("Panel: %s", s)
	p.notify()
}

func (p *Panel) notify() {
	if len(p.listeners) == 0 {
		return
	}
	v := p.view()
	for _, fn := range p.listeners {
		fn(v)
	}
}

func (p *Panel) view() View {
	return View{
		Status:  p.status,
		Preview: p.preview.Src,
		Path:    p.preview.Path,
		Pending: p.pending.List(),
		Applied: p.stage.Applied(),
	}
}

// queueRender hands the latest stage snapshot to the render goroutine,
// replacing any snapshot it has not picked up yet.
func (p *Panel) queueRender() {
	if p.opts.Renderer == nil {
		return
	}
	snap := p.stage.Snapshot()
	for {
		select {
		case p.renders <- snap:
			return
		default:
		}
		select {
		case <-p.renders:
		default:
		}
	}
}

func (p *Panel) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.renders:
			if err := p.render(ctx, snap); err != nil {
				log.Printf("Panel: render failed: %v", err)
			}
		}
	}
}

func (p *Panel) render(ctx context.Context, snap []stage.Slot) error {
	data, err := p.opts.Renderer.RenderPNG(ctx, snap)
	if err != nil {
		return err
	}
	if p.opts.OutputPath != "" {
		if err := writeFileAtomic(p.opts.OutputPath, data); err != nil {
			return err
		}
		log.Printf("Panel: stage written to %s (%d bytes)", p.opts.OutputPath, len(data))
	}
	if p.opts.CopyPNG != nil {
		if err := p.opts.CopyPNG(data); err != nil {
			return fmt.Errorf("copy stage to clipboard: %w", err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write stage: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit stage: %w", err)
	}
	return nil
}
