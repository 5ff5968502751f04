package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"yv-capture/src/messages"
	"yv-capture/src/router"
)

const inboxSize = 16

// Actor runs the orchestrator on its own inbox.
type Actor struct {
	orch *Orchestrator

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	router  *router.Router
	fetches sync.WaitGroup
}

func NewActor(orch *Orchestrator) *Actor {
	return &Actor{orch: orch}
}

func (a *Actor) Name() string { return messages.ProcessOrchestrator }

func (a *Actor) Start(ctx context.Context, r *router.Router) error {
	inbox, err := r.Register(a.Name(), inboxSize)
	if err != nil {
		return fmt.Errorf("register orchestrator inbox: %w", err)
	}
	loopCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.running = true
	a.cancel = cancel
	a.done = make(chan struct{})
	a.router = r
	done := a.done
	a.mu.Unlock()

	go func() {
		defer close(done)
		a.loop(loopCtx, inbox)
	}()
	return nil
}

func (a *Actor) loop(ctx context.Context, inbox <-chan messages.MessageEnvelope) {
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		log.Printf("Orchestrator: loop exited")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-inbox:
			if !ok {
				return
			}
			if _, die := env.Message.(messages.DIENOW); die {
				log.Printf("Orchestrator: received DIENOW")
				return
			}
			a.handle(ctx, env)
		}
	}
}

func (a *Actor) handle(ctx context.Context, env messages.MessageEnvelope) {
	switch m := env.Message.(type) {
	case messages.StartCaptureMode:
		if err := a.orch.StartCapture(ctx, m.SessionID); err != nil {
			log.Printf("Orchestrator: start capture failed: %v", err)
		}

	case messages.CaptureRegionSelected:
		// Handled inline so records are written in selection order.
		if err := a.orch.SelectionMade(ctx, m); err != nil {
			if errors.Is(err, ErrWindowUnresolvable) {
				log.Printf("Orchestrator: selection from %s skipped: %v", m.Sender.PageID, err)
				return
			}
			log.Printf("Orchestrator: selection failed: %v", err)
		}

	case messages.FetchImageDataURL:
		a.fetches.Add(1)
		go func() {
			defer a.fetches.Done()
			res := a.orch.FetchImageAsDataURL(ctx, m.URL)
			if !res.OK {
				log.Printf("Orchestrator: fetch %s: %s", m.URL, res.Error)
			}
			router.Reply(env, res)
		}()

	default:
		log.Printf("Orchestrator: ignoring %s from %s", env.Message.Type(), env.From)
	}
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
	a.fetches.Wait()
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
