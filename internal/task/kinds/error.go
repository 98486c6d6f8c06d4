package kinds

import (
	"context"
	"errors"

	"github.com/cloudchain/taskengine/internal/task"
)

func init() {
	task.Register("error", newErrorRunner)
}

// errorRunner always fails, used to exercise the `on: error` directive and
// retry policies in tests, mirroring the original source's ErrorTask.
type errorRunner struct {
	message string
}

func newErrorRunner(cfg map[string]any) (task.Runner, error) {
	msg, _ := cfg["message"].(string)
	if msg == "" {
		msg = "this is an error task"
	}
	return &errorRunner{message: msg}, nil
}

func (r *errorRunner) Method(ctx context.Context, t *task.Task) (any, error) {
	return nil, errors.New(r.message)
}
