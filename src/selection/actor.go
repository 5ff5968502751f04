package selection

import (
	"context"
	"fmt"
	"log"
	"sync"

	"yv-capture/src/messages"
	"yv-capture/src/router"
)

// Actor puts the selector host under the process manager. Its inbox only
// carries DIENOW, which cancels every active selector.
type Actor struct {
	host *Host

	mu      sync.Mutex
	running bool
	router  *router.Router
	done    chan struct{}
}

func NewActor(host *Host) *Actor {
	return &Actor{host: host}
}

func (a *Actor) Name() string { return messages.ProcessSelector }

func (a *Actor) Start(ctx context.Context, r *router.Router) error {
	inbox, err := r.Register(a.Name(), 4)
	if err != nil {
		return fmt.Errorf("register selector inbox: %w", err)
	}
	a.mu.Lock()
	a.running = true
	a.router = r
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				a.host.Registry().CancelAll()
				return
			case env, ok := <-inbox:
				if !ok {
					return
				}
				if _, die := env.Message.(messages.DIENOW); die {
					log.Printf("Selector: received DIENOW, cancelling %d selector(s)", a.host.Registry().Len())
					a.host.Registry().CancelAll()
					continue
				}
				log.Printf("Selector: ignoring %s from %s", env.Message.Type(), env.From)
			}
		}
	}()
	return nil
}

func (a *Actor) Stop() error {
	a.mu.Lock()
	r := a.router
	a.running = false
	a.mu.Unlock()
	a.host.Registry().CancelAll()
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
