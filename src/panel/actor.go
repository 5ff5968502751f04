package panel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"yv-capture/src/messages"
	"yv-capture/src/router"
)

// Actor runs a Panel under the process manager. Its inbox only carries
// lifecycle messages; commands arrive through the Panel methods.
type Actor struct {
	panel *Panel

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	router  *router.Router
}

func NewActor(p *Panel) *Actor {
	return &Actor{panel: p}
}

func (a *Actor) Name() string { return messages.ProcessPanel }

func (a *Actor) Panel() *Panel { return a.panel }

func (a *Actor) Start(ctx context.Context, r *router.Router) error {
	inbox, err := r.Register(a.Name(), 4)
	if err != nil {
		return fmt.Errorf("register panel inbox: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.running = true
	a.cancel = cancel
	a.done = make(chan struct{})
	a.router = r
	done := a.done
	a.mu.Unlock()

	go func() {
		for env := range inbox {
			if _, die := env.Message.(messages.DIENOW); die {
				log.Printf("Panel: received DIENOW")
				cancel()
				return
			}
			log.Printf("Panel: ignoring %s from %s", env.Message.Type(), env.From)
		}
	}()

	go func() {
		defer close(done)
		defer func() {
			a.mu.Lock()
			a.running = false
			a.mu.Unlock()
		}()
		if err := a.panel.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Panel: loop exited: %v", err)
		}
	}()
	return nil
}

func (a *Actor) Stop() error {
	a.mu.Lock()
	cancel, done, r := a.cancel, a.done, a.router
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	if r != nil {
		r.Unregister(a.Name())
	}
	return nil
}

func (a *Actor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// RemoteFetch adapts the orchestrator's FETCH_IMAGE_DATA_URL request into a
// stage.FetchFunc.
func RemoteFetch(r *router.Router) func(ctx context.Context, url string) (string, error) {
	return func(ctx context.Context, url string) (string, error) {
		reply, err := r.Request(ctx, messages.ProcessPanel, messages.ProcessOrchestrator, messages.FetchImageDataURL{URL: url})
		if err != nil {
			return "", err
		}
		res, ok := reply.(messages.FetchImageResult)
		if !ok {
			return "", fmt.Errorf("unexpected reply %s", reply.Type())
		}
		if !res.OK {
			return "", errors.New(res.Error)
		}
		return res.DataURL, nil
	}
}
