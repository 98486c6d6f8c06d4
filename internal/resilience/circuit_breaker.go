package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow/Call when the breaker has tripped and
// has not yet entered its half-open probe window.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker implements a sliding-window failure-rate breaker with a
// half-open probe window, adapted from the teacher's resilience package.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold float64
	window           int
	openDuration     time.Duration
	halfOpenMax      int

	results     []bool
	state       state
	openedAt    time.Time
	halfOpenHit int
}

// NewCircuitBreaker constructs a breaker that opens once the failure rate
// over the last `window` calls reaches failureThreshold (0..1), staying
// open for openDuration before allowing halfOpenMax probe calls.
func NewCircuitBreaker(failureThreshold float64, window int, openDuration time.Duration, halfOpenMax int) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		window:           window,
		openDuration:     openDuration,
		halfOpenMax:      halfOpenMax,
		state:            stateClosed,
	}
}

// Allow reports whether a call may proceed, transitioning open->half-open
// once openDuration has elapsed.
func (c *CircuitBreaker) Allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateOpen:
		if time.Since(c.openedAt) >= c.openDuration {
			c.state = stateHalfOpen
			c.halfOpenHit = 1
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		if c.halfOpenHit >= c.halfOpenMax {
			return ErrCircuitOpen
		}
		c.halfOpenHit++
		return nil
	default:
		return nil
	}
}

// Record reports the outcome of a call that Allow permitted.
func (c *CircuitBreaker) Record(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateHalfOpen {
		if success {
			c.state = stateClosed
			c.results = nil
		} else {
			c.state = stateOpen
			c.openedAt = time.Now()
		}
		return
	}

	c.results = append(c.results, success)
	if len(c.results) > c.window {
		c.results = c.results[len(c.results)-c.window:]
	}

	if len(c.results) < c.window {
		return
	}

	failures := 0
	for _, ok := range c.results {
		if !ok {
			failures++
		}
	}

	if float64(failures)/float64(len(c.results)) >= c.failureThreshold {
		c.state = stateOpen
		c.openedAt = time.Now()
	}
}

// Call runs fn if Allow permits it, recording the outcome.
func (c *CircuitBreaker) Call(fn func() error) error {
	if err := c.Allow(); err != nil {
		return err
	}

	err := fn()
	c.Record(err == nil)
	return err
}
