package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	mu          sync.Mutex
	done        bool
	terminated  bool
	runDelay    time.Duration
	runsStarted int32
}

func (j *fakeJob) Run(ctx context.Context) {
	atomic.AddInt32(&j.runsStarted, 1)
	select {
	case <-time.After(j.runDelay):
	case <-ctx.Done():
	}
	j.mu.Lock()
	j.done = true
	j.mu.Unlock()
}

func (j *fakeJob) Terminate() {
	j.mu.Lock()
	j.terminated = true
	j.mu.Unlock()
}

func (j *fakeJob) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done
}

func TestPool_RunsJobsAndDrains(t *testing.T) {
	p := New(2, 10*time.Millisecond, 50*time.Millisecond).Start()
	defer p.Terminate()

	jobs := []*fakeJob{{runDelay: 20 * time.Millisecond}, {runDelay: 20 * time.Millisecond}, {runDelay: 20 * time.Millisecond}}
	for _, j := range jobs {
		p.Add(j)
	}

	p.WaitUntilComplete(2 * time.Second)

	assert.Equal(t, 0, p.QueueSize())
	for _, j := range jobs {
		assert.True(t, j.Done())
	}
}

func TestPool_RespectsMaxWorkers(t *testing.T) {
	p := New(1, 5*time.Millisecond, 50*time.Millisecond).Start()
	defer p.Terminate()

	j1 := &fakeJob{runDelay: 60 * time.Millisecond}
	j2 := &fakeJob{runDelay: 5 * time.Millisecond}
	p.Add(j1)
	p.Add(j2)

	time.Sleep(15 * time.Millisecond)
	assert.False(t, j2.Done(), "second job should not start before the first worker frees up")

	p.WaitUntilComplete(2 * time.Second)
	assert.True(t, j1.Done())
	assert.True(t, j2.Done())
}

func TestPool_Terminate_PropagatesToJobs(t *testing.T) {
	p := New(2, 5*time.Millisecond, 50*time.Millisecond).Start()

	j := &fakeJob{runDelay: time.Hour}
	p.Add(j)
	time.Sleep(15 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.Terminate()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Terminate did not return")
	}

	require.True(t, j.terminated)

	waited := make(chan struct{})
	go func() {
		p.WaitUntilComplete(0)
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitUntilComplete(0) never unblocked after Terminate drained the pool")
	}
	assert.Equal(t, 0, p.QueueSize())
}

// TestPool_Terminate_DuringDrain_UnblocksWaitUntilComplete guards against a
// supervisor that returns on ctx.Done() without reaping jobs whose Done()
// only became true in reaction to that same cancellation: such jobs would
// stay stuck in p.active, QueueSize would never reach zero, and any caller
// parked in an indefinite WaitUntilComplete(0) would block forever.
func TestPool_Terminate_DuringDrain_UnblocksWaitUntilComplete(t *testing.T) {
	p := New(2, 5*time.Millisecond, 20*time.Millisecond).Start()

	jobs := []*fakeJob{{runDelay: time.Hour}, {runDelay: time.Hour}}
	for _, j := range jobs {
		p.Add(j)
	}
	time.Sleep(15 * time.Millisecond)

	waiterDone := make(chan struct{})
	go func() {
		p.WaitUntilComplete(0)
		close(waiterDone)
	}()

	time.Sleep(10 * time.Millisecond)
	p.Terminate()

	select {
	case <-waiterDone:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitUntilComplete(0) deadlocked across a concurrent Terminate() mid-drain")
	}

	assert.Equal(t, 0, p.QueueSize())
	for _, j := range jobs {
		assert.True(t, j.Done())
	}
}

func TestPool_WaitUntilComplete_TimesOut(t *testing.T) {
	p := New(1, 5*time.Millisecond, 50*time.Millisecond).Start()
	defer p.Terminate()

	p.Add(&fakeJob{runDelay: time.Hour})
	start := time.Now()
	p.WaitUntilComplete(30 * time.Millisecond)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
