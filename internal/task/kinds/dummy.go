package kinds

import (
	"context"

	"github.com/cloudchain/taskengine/internal/task"
)

func init() {
	task.Register("dummy", newDummyRunner)
}

// dummyRunner does nothing, used for testing chain wiring without a real
// backend, mirroring the original source's DummyTask.
type dummyRunner struct{}

func newDummyRunner(cfg map[string]any) (task.Runner, error) {
	return dummyRunner{}, nil
}

func (dummyRunner) Method(ctx context.Context, t *task.Task) (any, error) {
	return []any{map[string]any{"dummy": "data"}}, nil
}
