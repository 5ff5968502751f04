package session

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"yv-capture/src/capture"
)

// NewID returns a fresh capture-session id.
func NewID() string {
	return uuid.NewString()
}

// Pending is a capture request waiting for its record.
type Pending struct {
	ID        string
	Target    capture.Target
	Requested time.Time
	seq       uint64
}

// Table maps capture-session ids to the slot they were requested for.
type Table struct {
	mu      sync.Mutex
	entries map[string]Pending
	seq     uint64
}

func NewTable() *Table {
	return &Table{entries: make(map[string]Pending)}
}

// Begin registers a new request for target and returns it. The newest request
// wins: any request still waiting is superseded and can no longer claim.
func (t *Table) Begin(target capture.Target) Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, q := range t.entries {
		delete(t.entries, id)
		log.Printf("Session: request %s for %s superseded by a %s request", id, q.Target, target)
	}
	t.seq++
	p := Pending{ID: NewID(), Target: target, Requested: time.Now(), seq: t.seq}
	t.entries[p.ID] = p
	return p
}

// Claim resolves id to its target and removes it. Unknown or superseded ids
// (including "") claim nothing.
func (t *Table) Claim(id string) (capture.Target, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if !ok {
		return "", false
	}
	delete(t.entries, id)
	return p.Target, true
}

// Cancel forgets a single request.
func (t *Table) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Clear forgets every request.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]Pending)
}

// Len returns the number of open requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// List returns open requests, oldest first.
func (t *Table) List() []Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Pending, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
