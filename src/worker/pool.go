package worker

import (
	"context"
	"log"
	"runtime"
	"sync"
)

// Job is a unit of background work. Completion is reported by the job itself,
// usually by posting a result back into the owning actor's loop.
type Job func(ctx context.Context)

// Pool is a fixed-size worker pool with a small input queue (strict back-pressure).
type Pool struct {
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx  context.Context
	name string
	run  Job
}

// New creates a worker pool. Size defaults to NumCPU when size<=0; the queue
// defaults to 1 slot when queue<=0.
func New(size, queue int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = 1
	}
	p := &Pool{jobs: make(chan job, queue)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				p.runJob(id, j)
			}
		}(i)
	}
}

func (p *Pool) runJob(id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d: job %s panicked: %v", id, j.name, r)
		}
	}()
	if err := j.ctx.Err(); err != nil {
		log.Printf("Worker %d: skipping job %s: %v", id, j.name, err)
		return
	}
	log.Printf("Worker %d: starting %s", id, j.name)
	j.run(j.ctx)
	log.Printf("Worker %d: finished %s", id, j.name)
}

// Submit enqueues a job if the queue has room. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, name string, run Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, name: name, run: run}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining queued work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
