package kinds

import (
	"context"
	"time"

	"github.com/cloudchain/taskengine/internal/task"
)

func init() {
	task.Register("wait", newWaitRunner)
}

// waitRunner blocks until a time-based condition is met, mirroring the
// original source's WaitTask narrowed to the time-based predicates
// (check_time_seconds, when_after_seconds); the name/previous-task-status
// predicates need the full chain task list, which the narrow ChainContext
// surface deliberately does not expose (see internal/task/chainctx.go) —
// those predicates are left as a documented gap rather than widening that
// interface back toward a strong chain back-reference.
type waitRunner struct {
	checkSeconds float64
	afterSeconds float64
}

func newWaitRunner(cfg map[string]any) (task.Runner, error) {
	check := 1.0
	if v, ok := toFloat(cfg["check_time_seconds"]); ok && v > 0 {
		check = v
	}
	after, _ := toFloat(cfg["when_after_seconds"])
	return &waitRunner{checkSeconds: check, afterSeconds: after}, nil
}

func (r *waitRunner) Method(ctx context.Context, t *task.Task) (any, error) {
	if r.afterSeconds <= 0 {
		return nil, nil
	}

	deadline := time.Now().Add(time.Duration(r.afterSeconds * float64(time.Second)))
	ticker := time.NewTicker(time.Duration(r.checkSeconds * float64(time.Second)))
	defer ticker.Stop()

	for {
		if !time.Now().Before(deadline) || t.IsTerminating() {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
		}
	}
}
