package kinds

import (
	"context"
	"time"

	"github.com/cloudchain/taskengine/internal/task"
)

func init() {
	task.Register("delay", newDelayRunner)
}

// delayRunner sleeps for a fixed duration, polling for cooperative
// termination every 100ms rather than blocking uninterruptibly, so that
// chain.Terminate() (spec.md's termination-cooperativity property) is
// observed promptly regardless of the configured delay.
type delayRunner struct {
	delaySeconds float64
}

func newDelayRunner(cfg map[string]any) (task.Runner, error) {
	d, _ := toFloat(cfg["delay_seconds"])
	return &delayRunner{delaySeconds: d}, nil
}

func (r *delayRunner) Method(ctx context.Context, t *task.Task) (any, error) {
	deadline := time.Now().Add(time.Duration(r.delaySeconds * float64(time.Second)))
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if t.IsTerminating() {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
		}
	}

	return nil, nil
}
