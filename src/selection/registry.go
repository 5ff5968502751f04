package selection

import (
	"context"
	"sync"
)

// Registry allows at most one active selector per page.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Handle)}
}

// Handle refers to a running selector.
type Handle struct {
	pageID string
	sel    *Selector
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (h *Handle) PageID() string    { return h.pageID }
func (h *Handle) SessionID() string { return h.sel.SessionID() }

// Done is closed after the selector has cleaned up and left the registry.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel ends the selector without emitting.
func (h *Handle) Cancel() { h.cancel() }

// Err is the selector's exit error; valid after Done is closed.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Start activates a selector on page. If one is already active there it is
// retargeted to sessionID and returned with started=false, so the pending drag
// completes the newest request.
func (r *Registry) Start(ctx context.Context, page Page, sessionID string, emit EmitFunc) (*Handle, bool, error) {
	r.mu.Lock()
	if h, ok := r.active[page.ID()]; ok {
		h.sel.Retarget(sessionID)
		r.mu.Unlock()
		return h, false, nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sel := NewSelector(page, sessionID)
	h := &Handle{
		pageID: page.ID(),
		sel:    sel,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active[h.pageID] = h
	r.mu.Unlock()

	if err := sel.Activate(ctx); err != nil {
		h.err = err
		r.release(h)
		cancel()
		close(h.done)
		return nil, false, err
	}

	go func() {
		h.err = sel.Run(runCtx, emit)
		r.release(h)
		cancel()
		close(h.done)
	}()
	return h, true, nil
}

// Active returns the handle running on pageID, if any.
func (r *Registry) Active(pageID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.active[pageID]
	return h, ok
}

// Len returns the number of active selectors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// CancelAll cancels every active selector.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.active))
	for _, h := range r.active {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

func (r *Registry) release(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[h.pageID] == h {
		delete(r.active, h.pageID)
	}
}
