package process

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"yv-capture/src/messages"
	"yv-capture/src/router"
)

// Process is one actor of the application (selector host, orchestrator, panel).
type Process interface {
	// Start registers the actor's inbox and launches its loop. It must not block.
	Start(ctx context.Context, router *router.Router) error

	// Stop gracefully shuts down the process
	Stop() error

	// IsRunning returns true if the process is currently running
	IsRunning() bool

	// Name returns the process name for identification
	Name() string
}

// ProcessState represents the current state of a process
type ProcessState int

const (
	StateStopped ProcessState = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s ProcessState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// ProcessInfo holds information about a managed process
type ProcessInfo struct {
	Process    Process
	State      ProcessState
	StartTime  time.Time
	CrashCount int
	LastError  error
	Context    context.Context
	CancelFunc context.CancelFunc
}

// stopGrace is how long StopAll waits after broadcasting DIENOW.
var stopGrace = 200 * time.Millisecond

const maxCrashes = 5

// Manager manages the lifecycle of all application processes
type Manager struct {
	processes map[string]*ProcessInfo
	order     []string
	router    *router.Router
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager creates a new process manager
func NewManager(r *router.Router) *Manager {
	if r == nil {
		r = router.NewRouter()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		processes: make(map[string]*ProcessInfo),
		router:    r,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register adds a process to the manager
func (m *Manager) Register(process Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := process.Name()
	if _, exists := m.processes[name]; exists {
		return fmt.Errorf("process %s already registered", name)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.processes[name] = &ProcessInfo{
		Process:    process,
		State:      StateStopped,
		Context:    ctx,
		CancelFunc: cancel,
	}
	m.order = append(m.order, name)

	log.Printf("Process %s registered", name)
	return nil
}

// Start starts a specific process. Start is synchronous so that the actor's
// inbox exists before anyone sends to it; a panic is recorded as a crash.
func (m *Manager) Start(name string) (err error) {
	m.mu.Lock()
	info, exists := m.processes[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("process %s not found", name)
	}

	if info.State == StateRunning {
		m.mu.Unlock()
		return fmt.Errorf("process %s already running", name)
	}

	if info.Context.Err() != nil {
		info.Context, info.CancelFunc = context.WithCancel(m.ctx)
	}
	info.State = StateStarting
	info.StartTime = time.Now()
	ctx := info.Context
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Process %s panicked: %v", name, r)
			err = fmt.Errorf("panic: %v", r)
			m.MarkCrashed(name, err)
		}
	}()

	log.Printf("Starting process %s", name)
	startErr := info.Process.Start(ctx, m.router)

	m.mu.Lock()
	defer m.mu.Unlock()
	if startErr != nil {
		info.State = StateCrashed
		info.LastError = startErr
		info.CrashCount++
		log.Printf("Process %s failed to start: %v", name, startErr)
		return startErr
	}
	info.State = StateRunning
	log.Printf("Process %s started successfully", name)
	return nil
}

// StartAll starts all registered processes
func (m *Manager) StartAll() error {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	m.mu.RUnlock()

	for _, name := range names {
		if err := m.Start(name); err != nil {
			return fmt.Errorf("failed to start process %s: %w", name, err)
		}
	}

	return nil
}

// Stop stops a specific process
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	info, exists := m.processes[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("process %s not found", name)
	}

	if info.State != StateRunning {
		m.mu.Unlock()
		return nil // Already stopped
	}

	info.State = StateStopping
	m.mu.Unlock()

	log.Printf("Stopping process %s", name)

	// Cancel context first
	info.CancelFunc()

	// Try graceful stop
	if err := info.Process.Stop(); err != nil {
		log.Printf("Error stopping process %s: %v", name, err)
	}

	m.mu.Lock()
	info.State = StateStopped
	m.mu.Unlock()

	log.Printf("Process %s stopped", name)
	return nil
}

// StopAll stops all processes gracefully
func (m *Manager) StopAll() {
	log.Printf("Stopping all processes...")

	// Send DIENOW to all processes first
	m.router.Broadcast(messages.MessageEnvelope{
		From:    messages.ProcessMain,
		To:      "*",
		Message: messages.DIENOW{},
	})

	// Give processes time to handle DIENOW
	time.Sleep(stopGrace)

	m.mu.RLock()
	names := append([]string(nil), m.order...)
	m.mu.RUnlock()

	// Stop in reverse start order
	for i := len(names) - 1; i >= 0; i-- {
		m.Stop(names[i])
	}

	m.cancel()
	m.router.Shutdown()

	log.Printf("All processes stopped")
}

// Router returns the message router
func (m *Manager) Router() *router.Router {
	return m.router
}

// Status returns the state of all processes
func (m *Manager) Status() map[string]ProcessState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]ProcessState)
	for name, info := range m.processes {
		status[name] = info.State
	}
	return status
}

// MarkCrashed records that a running actor's loop died. Actors call this
// from their own recover handlers.
func (m *Manager) MarkCrashed(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info, exists := m.processes[name]; exists {
		info.State = StateCrashed
		info.LastError = err
		info.CrashCount++
		log.Printf("Process %s crashed: %v (crash count: %d)", name, err, info.CrashCount)
	}
}

// RestartCrashed restarts crashed processes, giving up after 5 crashes
func (m *Manager) RestartCrashed() {
	m.mu.RLock()
	crashed := make([]string, 0)
	for name, info := range m.processes {
		if info.State == StateCrashed && info.CrashCount < maxCrashes {
			crashed = append(crashed, name)
		}
	}
	m.mu.RUnlock()

	for _, name := range crashed {
		log.Printf("Attempting to restart crashed process %s", name)
		if err := m.Start(name); err != nil {
			log.Printf("Failed to restart process %s: %v", name, err)
		}
	}
}
