package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"yv-capture/src/capture"
)

// KeyLastCapture is the only key the store holds.
const KeyLastCapture = "lastCapture"

// ChangeKind says what happened to the key.
type ChangeKind int

const (
	Replaced ChangeKind = iota
	Removed
)

func (k ChangeKind) String() string {
	if k == Removed {
		return "removed"
	}
	return "replaced"
}

// Change is a notification of a write. Record is set for Replaced.
type Change struct {
	Key    string
	Kind   ChangeKind
	Record capture.Record
}

// Store is a single-slot latest-value store for the last capture record.
// Writes are last-write-wins. Every subscriber sees every change in write order.
type Store struct {
	path string

	mu     sync.Mutex
	rec    *capture.Record
	subs   map[int]*subscriber
	nextID int
}

type diskFormat struct {
	LastCapture *capture.Record `json:"lastCapture,omitempty"`
}

// Open loads the store persisted at path. An empty path keeps the store in memory.
// A missing file is an empty store; a corrupt file is logged and ignored.
func Open(path string) (*Store, error) {
	s := &Store{path: path, subs: make(map[int]*subscriber)}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", path, err)
	}
	var df diskFormat
	if err := json.Unmarshal(data, &df); err != nil {
		log.Printf("Store: ignoring unreadable store file %s: %v", path, err)
		return s, nil
	}
	s.rec = df.LastCapture
	return s, nil
}

// NewMemory returns a store that is not persisted.
func NewMemory() *Store {
	s, _ := Open("")
	return s
}

// Get returns the current record.
func (s *Store) Get() (capture.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return capture.Record{}, false
	}
	return *s.rec, true
}

// Replace overwrites the record and notifies subscribers.
func (s *Store) Replace(rec capture.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.rec
	r := rec
	s.rec = &r
	if err := s.persistLocked(); err != nil {
		s.rec = prev
		return err
	}
	s.notifyLocked(Change{Key: KeyLastCapture, Kind: Replaced, Record: rec})
	return nil
}

// Remove deletes the record. Removing an absent record still notifies.
func (s *Store) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.rec
	s.rec = nil
	if err := s.persistLocked(); err != nil {
		s.rec = prev
		return err
	}
	s.notifyLocked(Change{Key: KeyLastCapture, Kind: Removed})
	return nil
}

// Subscribe returns a channel of changes and a cancel func. The channel is
// closed after cancel.
func (s *Store) Subscribe() (<-chan Change, func()) {
	sub := newSubscriber()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			sub.stop()
		})
	}
}

func (s *Store) notifyLocked(c Change) {
	for _, sub := range s.subs {
		sub.push(c)
	}
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(diskFormat{LastCapture: s.rec}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit store: %w", err)
	}
	return nil
}

// subscriber buffers changes without bound so writers never block on a slow reader.
type subscriber struct {
	mu    sync.Mutex
	queue []Change
	wake  chan struct{}
	done  chan struct{}
	out   chan Change
}

func newSubscriber() *subscriber {
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Change),
	}
	go sub.pump()
	return sub
}

func (sub *subscriber) push(c Change) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, c)
	sub.mu.Unlock()
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *subscriber) stop() { close(sub.done) }

func (sub *subscriber) pump() {
	defer close(sub.out)
	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			sub.mu.Unlock()
			select {
			case <-sub.wake:
				continue
			case <-sub.done:
				return
			}
		}
		next := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- next:
		case <-sub.done:
			return
		}
	}
}
