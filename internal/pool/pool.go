// Package pool implements the background worker supervisor (component G)
// that runs non-blocking tasks concurrently with a bounded worker count.
// Grounded on the original source's BaseTaskPool: the Python minder
// thread's polling loop becomes a supervisor goroutine driven by tickers,
// and "start a thread per task" becomes "start a goroutine per active job".
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/cloudchain/taskengine/internal/otelinit"
)

// Job is the minimal surface the pool supervises. *task.Task satisfies
// this interface without internal/pool needing to import internal/task.
type Job interface {
	Run(ctx context.Context)
	Terminate()
	Done() bool
}

// Pool runs Jobs with at most maxWorkers active at once, refilling from a
// pending queue as workers free up. Unlike a one-shot worker pool, it
// keeps running (and accepting Add calls) until Terminate is called,
// mirroring the original source's "continues working even if the queue is
// empty" design.
type Pool struct {
	maxWorkers    int
	workerRefresh time.Duration
	idleRefresh   time.Duration

	mu          sync.Mutex
	pending     []Job
	active      []Job
	complete    []Job
	terminating bool

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New constructs a Pool. maxWorkers, workerRefresh, and idleRefresh default
// to 4, 500ms, and 3s respectively when zero or negative, mirroring the
// original source's BaseTaskChain construction defaults.
func New(maxWorkers int, workerRefresh, idleRefresh time.Duration) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if workerRefresh <= 0 {
		workerRefresh = 500 * time.Millisecond
	}
	if idleRefresh <= 0 {
		idleRefresh = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		maxWorkers:    maxWorkers,
		workerRefresh: workerRefresh,
		idleRefresh:   idleRefresh,
		ctx:           ctx,
		cancel:        cancel,
		stopped:       make(chan struct{}),
	}
}

// Start launches the supervisor goroutine and returns the Pool, for
// chained construction (`pool.New(...).Start()`).
func (p *Pool) Start() *Pool {
	go p.supervise()
	return p
}

// Add enqueues job for pooled execution.
func (p *Pool) Add(job Job) {
	p.mu.Lock()
	p.pending = append(p.pending, job)
	p.mu.Unlock()
}

// QueueSize returns the number of pending and active jobs.
func (p *Pool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) + len(p.active)
}

// WaitUntilComplete blocks until the queue drains, or timeout elapses
// (0 means wait indefinitely), mirroring the original source's
// wait_until_complete.
func (p *Pool) WaitUntilComplete(timeout time.Duration) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for p.QueueSize() > 0 {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Terminate asks every pending and active job to stop, moves pending jobs
// (which will never be started) straight into p.complete, then blocks until
// the supervisor goroutine exits. The supervisor keeps reaping p.active
// into p.complete as jobs observe the cancelled context and return, so
// QueueSize reaches zero and any caller parked in WaitUntilComplete is
// released, rather than leaving cancellation-terminated jobs stranded in
// p.active forever.
func (p *Pool) Terminate() {
	p.mu.Lock()
	p.terminating = true
	jobs := make([]Job, 0, len(p.pending)+len(p.active))
	jobs = append(jobs, p.pending...)
	jobs = append(jobs, p.active...)
	p.complete = append(p.complete, p.pending...)
	p.pending = nil
	p.mu.Unlock()

	for _, j := range jobs {
		j.Terminate()
	}

	p.cancel()
	<-p.stopped
}

func (p *Pool) supervise() {
	defer close(p.stopped)

	for {
		p.mu.Lock()
		for len(p.active) < p.maxWorkers && len(p.pending) > 0 {
			next := p.pending[0]
			p.pending = p.pending[1:]
			p.active = append(p.active, next)
			otelinit.PoolActiveGauge().Add(p.ctx, 1)
			go next.Run(p.ctx)
		}

		p.reapActiveLocked()

		queued := len(p.pending) + len(p.active)
		terminating := p.terminating
		p.mu.Unlock()

		switch {
		case queued > 0:
			select {
			case <-time.After(p.workerRefresh):
			case <-p.ctx.Done():
				p.drainUntilComplete()
				return
			}
		case terminating:
			return
		default:
			select {
			case <-time.After(p.idleRefresh):
			case <-p.ctx.Done():
				p.drainUntilComplete()
				return
			}
		}
	}
}

// reapActiveLocked moves every job in p.active whose Done() now reports
// true into p.complete. Callers must hold p.mu.
func (p *Pool) reapActiveLocked() {
	stillActive := p.active[:0:0]
	for _, j := range p.active {
		if j.Done() {
			p.complete = append(p.complete, j)
			otelinit.PoolActiveGauge().Add(p.ctx, -1)
		} else {
			stillActive = append(stillActive, j)
		}
	}
	p.active = stillActive
}

// drainUntilComplete polls p.active until every job still running when the
// pool's context was cancelled has reached a terminal state. Terminate
// already asked each of them to stop and cancelled their context, so this
// is bounded by how quickly those jobs notice, not an unbounded wait.
func (p *Pool) drainUntilComplete() {
	for {
		p.mu.Lock()
		p.reapActiveLocked()
		remaining := len(p.active)
		p.mu.Unlock()

		if remaining == 0 {
			return
		}
		time.Sleep(p.workerRefresh)
	}
}
