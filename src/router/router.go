package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"yv-capture/src/messages"
)

// ErrShuttingDown is returned once Shutdown has been called.
var ErrShuttingDown = errors.New("router is shutting down")

const (
	sendTimeout      = 5 * time.Second
	broadcastTimeout = 1 * time.Second
)

// ChannelInfo holds information about an actor inbox
type ChannelInfo struct {
	Channel chan messages.MessageEnvelope
	ActorID string
	Active  bool
}

// Router delivers envelopes between actor inboxes
type Router struct {
	channels    map[string]*ChannelInfo
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	logMessages bool
}

// NewRouter creates a new message router
func NewRouter() *Router {
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		channels:    make(map[string]*ChannelInfo),
		ctx:         ctx,
		cancel:      cancel,
		logMessages: true,
	}
}

// Register creates the inbox for an actor
func (r *Router) Register(actorID string, bufferSize int) (<-chan messages.MessageEnvelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[actorID]; exists {
		return nil, fmt.Errorf("actor %s already registered", actorID)
	}

	ch := make(chan messages.MessageEnvelope, bufferSize)
	r.channels[actorID] = &ChannelInfo{
		Channel: ch,
		ActorID: actorID,
		Active:  true,
	}

	log.Printf("Router: Registered actor %s with buffer size %d", actorID, bufferSize)
	return ch, nil
}

// Unregister closes and removes an actor inbox
func (r *Router) Unregister(actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, exists := r.channels[actorID]; exists {
		info.Active = false
		close(info.Channel)
		delete(r.channels, actorID)
		log.Printf("Router: Unregistered actor %s", actorID)
	}
}

// Send delivers a fire-and-forget envelope
func (r *Router) Send(envelope messages.MessageEnvelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.logMessages {
		log.Printf("Router: %s -> %s: %s", envelope.From, envelope.To, envelope.Message.Type())
	}

	if envelope.To == "*" {
		return r.broadcastMessage(envelope)
	}

	info, exists := r.channels[envelope.To]
	if !exists {
		return fmt.Errorf("actor %s not found", envelope.To)
	}
	if !info.Active {
		return fmt.Errorf("actor %s is not active", envelope.To)
	}

	select {
	case info.Channel <- envelope:
		return nil
	case <-time.After(sendTimeout):
		return fmt.Errorf("timeout sending message to actor %s", envelope.To)
	case <-r.ctx.Done():
		return ErrShuttingDown
	}
}

// SendTo is Send without building the envelope by hand
func (r *Router) SendTo(from, to string, message messages.Message) error {
	return r.Send(messages.MessageEnvelope{From: from, To: to, Message: message})
}

// Sender returns a func that sends from one actor to another
func (r *Router) Sender(from, to string) func(messages.Message) error {
	return func(m messages.Message) error {
		return r.SendTo(from, to, m)
	}
}

// Request sends a message and waits for the single reply
func (r *Router) Request(ctx context.Context, from, to string, message messages.Message) (messages.Message, error) {
	reply := make(chan messages.Message, 1)
	if err := r.Send(messages.MessageEnvelope{From: from, To: to, Message: message, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case m := <-reply:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.ctx.Done():
		return nil, ErrShuttingDown
	}
}

// Reply answers a request envelope. Envelopes without a reply channel are ignored.
func Reply(envelope messages.MessageEnvelope, message messages.Message) {
	if envelope.Reply == nil {
		return
	}
	select {
	case envelope.Reply <- message:
	default:
		log.Printf("Router: dropped duplicate reply %s to %s", message.Type(), envelope.From)
	}
}

// Broadcast sends a message to all registered actors except the sender
func (r *Router) Broadcast(envelope messages.MessageEnvelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.logMessages {
		log.Printf("Router: Broadcasting %s from %s", envelope.Message.Type(), envelope.From)
	}

	r.broadcastMessage(envelope)
}

func (r *Router) broadcastMessage(envelope messages.MessageEnvelope) error {
	var errs []string

	for actorID, info := range r.channels {
		if !info.Active || actorID == envelope.From {
			continue
		}

		// Broadcasts never carry a reply channel
		envCopy := messages.MessageEnvelope{
			From:    envelope.From,
			To:      actorID,
			Message: envelope.Message,
		}

		select {
		case info.Channel <- envCopy:
		case <-time.After(broadcastTimeout):
			errs = append(errs, fmt.Sprintf("timeout sending to %s", actorID))
		case <-r.ctx.Done():
			return ErrShuttingDown
		}
	}

	if len(errs) > 0 {
		log.Printf("Router: Broadcast errors: %v", errs)
	}

	return nil
}

// ActiveActors returns the registered actor ids
func (r *Router) ActiveActors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []string
	for actorID, info := range r.channels {
		if info.Active {
			active = append(active, actorID)
		}
	}
	return active
}

// ChannelStats returns the number of queued envelopes per actor
func (r *Router) ChannelStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int)
	for actorID, info := range r.channels {
		if info.Active {
			stats[actorID] = len(info.Channel)
		}
	}
	return stats
}

// SetMessageLogging enables or disables message logging
func (r *Router) SetMessageLogging(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logMessages = enabled
}

// Shutdown closes every inbox
func (r *Router) Shutdown() {
	log.Printf("Router: Shutting down...")

	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for actorID, info := range r.channels {
		if info.Active {
			info.Active = false
			close(info.Channel)
			log.Printf("Router: Closed inbox for actor %s", actorID)
		}
	}
	r.channels = make(map[string]*ChannelInfo)

	log.Printf("Router: Shutdown complete")
}

// IsHealthy returns true until Shutdown is called
func (r *Router) IsHealthy() bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
		return true
	}
}

// WaitForMessage waits for a specific message type from an inbox with timeout
func WaitForMessage(ch <-chan messages.MessageEnvelope, messageType string, timeout time.Duration) (messages.MessageEnvelope, error) {
	deadline := time.After(timeout)

	for {
		select {
		case envelope, ok := <-ch:
			if !ok {
				return messages.MessageEnvelope{}, fmt.Errorf("inbox closed while waiting for %s", messageType)
			}
			if envelope.Message.Type() == messageType {
				return envelope, nil
			}
		case <-deadline:
			return messages.MessageEnvelope{}, fmt.Errorf("timeout waiting for message type %s", messageType)
		}
	}
}

// DrainChannel drains all queued envelopes from an inbox
func DrainChannel(ch <-chan messages.MessageEnvelope) int {
	count := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return count
			}
			count++
		default:
			return count
		}
	}
}
