package task

import "github.com/cloudchain/taskengine/internal/template"

// ChainContext is the narrow surface a Task needs from its owning chain.
// Defining it here (rather than importing internal/chain directly) avoids
// a package cycle: internal/chain constructs and runs Tasks, so Task
// cannot import it back. This mirrors the original source's circular
// Task<->TaskChain references, resolved per spec.md §9's guidance to use
// an opaque handle instead of a strong back-pointer.
type ChainContext interface {
	// ID returns the owning chain's identifier, for diagnostics.
	ID() string

	// Position returns the chain driver's current position in its task
	// template list.
	Position() int

	// Status returns the chain's current lifecycle status.
	Status() Status

	// Variables returns a read-only snapshot of the chain's variable
	// scope, safe to read concurrently with other tasks' publications.
	Variables() map[string]any

	// SetVariable publishes a task result into the chain's variable
	// scope under name, merging with the existing value per mode. This
	// is the only path pooled (non-blocking) tasks may use to mutate
	// chain state; it is internally mutex-guarded (spec.md §5).
	SetVariable(name string, mode ResultMode, result any)

	// Item returns the iteration item in scope for this task's
	// templating, or nil when the task is not part of an iteration.
	Item() any

	// Env resolves "env.*" references for templating.
	Env() template.Environment

	// Snapshot returns a point-in-time view of chain state for "task.*"
	// references (id, name, status, position, total, ...).
	Snapshot() map[string]any

	// EnqueueDirective queues a lifecycle-directive task configuration
	// onto the chain's pending task_templates. immediate inserts the
	// directive immediately after the chain's current position
	// (blocking-task semantics); otherwise it is appended to the tail
	// (non-blocking-task semantics, since the submitting task's position
	// relative to the driver's cursor is no longer well-defined).
	EnqueueDirective(cfg map[string]any, immediate bool)
}
