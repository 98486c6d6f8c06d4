// Package task implements the task lifecycle state machine (component D)
// and the kind registry/factory that materializes Task instances from
// templated configuration (component E).
package task

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudchain/taskengine/internal/filter"
	"github.com/cloudchain/taskengine/internal/logging"
	"github.com/cloudchain/taskengine/internal/otelinit"
	"github.com/cloudchain/taskengine/internal/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Runner is implemented by every registered task kind. Method performs the
// kind-specific work and populates the returned result (and, via t.Meta,
// any diagnostics); a pooled task's ctx is cancelled when its pool is
// terminated, and t.IsTerminating() reports true once any task is asked to
// stop, so implementations of long-running methods must poll both and
// return promptly.
type Runner interface {
	Method(ctx context.Context, t *Task) (any, error)
}

// Generator marks a Method result that should be drained into a concrete
// []any before being stored, mirroring the original source's handling of
// Python generator results.
type Generator <-chan any

// Task is one unit of work in a chain: a typed kind (Runner), a lifecycle
// state machine, and the configuration that produced it.
type Task struct {
	Name        string
	Blocking    bool
	Description string
	Iterate     any
	On          map[string][]map[string]any
	When        string
	ResultAs    *ResultAs
	Retry       RetryPolicy
	Filters     *filter.Config

	OriginalConfig map[string]any
	Runner         Runner

	chain ChainContext

	mu       sync.Mutex
	attempts int
	status   Status
	start    *time.Time
	end      *time.Time
	result   any
	meta     map[string]any
}

// New constructs a Task in its initial state. Chain is the owning chain's
// narrow handle (nil is valid for tasks run outside a chain, e.g. in unit
// tests).
func New(name string, chain ChainContext) *Task {
	return &Task{
		Name:   name,
		status: StatusInitialized,
		meta:   map[string]any{"Errors": []string{}},
		chain:  chain,
	}
}

// Status returns the task's current lifecycle status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Attempts returns the number of Method() invocations made so far.
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Result returns the task's stored result.
func (t *Task) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Meta returns a snapshot of the task's diagnostic metadata.
func (t *Task) Meta() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]any, len(t.meta))
	for k, v := range t.meta {
		out[k] = v
	}
	return out
}

// Errors returns the list of error strings accumulated across attempts.
func (t *Task) Errors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	errs, _ := t.meta["Errors"].([]string)
	return errs
}

// Start returns the time the task began running, or nil if it has not
// started yet.
func (t *Task) Start() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start
}

// End returns the time the task reached a terminal status, or nil if it
// has not finished yet.
func (t *Task) End() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.end
}

// Duration returns the task's elapsed running time in seconds, or -1 if it
// has not started.
func (t *Task) Duration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration()
}

func (t *Task) duration() float64 {
	if t.start == nil {
		return -1
	}
	end := time.Now().UTC()
	if t.end != nil {
		end = *t.end
	}
	return end.Sub(*t.start).Seconds()
}

// IsTerminating reports whether the task has been asked to stop, for
// cooperative checks inside long-running Method implementations.
func (t *Task) IsTerminating() bool {
	return t.Status() == StatusTerminating
}

// Done reports whether the task has reached a terminal lifecycle status,
// satisfying internal/pool.Job so a *Task can be supervised directly.
func (t *Task) Done() bool {
	return t.Status().Terminal()
}

// Terminate flips the task's status so that a running Method() (and the
// retry loop) observe termination and return promptly. There is no hard
// kill; every long-running Method must poll IsTerminating or ctx.Done.
func (t *Task) Terminate() {
	t.mu.Lock()
	t.status = StatusTerminating
	t.mu.Unlock()
	logging.Get().Warn("terminating task", "task", t.Name)
}

// Run executes the task's full lifecycle: on_start, the retry-gated
// attempt loop around Runner.Method, and the terminal on_complete/
// on_error/on_skipped transition, per spec.md §4.D.
func (t *Task) Run(ctx context.Context) {
	ctx, span := otelinit.Tracer().Start(ctx, "task.run", trace.WithAttributes(
		attribute.String("task.name", t.Name),
	))
	defer span.End()

	t.onStart()

	max := t.Retry.effectiveMaxAttempts()
	attempts := 0

	for attempts < max {
		attempts++
		t.setAttempts(attempts)

		if attempts > 1 {
			otelinit.TaskRetriesCounter().Add(ctx, 1, metric.WithAttributes(attribute.String("task.name", t.Name)))
		}

		whenResult, err := t.checkWhen()

		if err == nil {
			if whenResult {
				var result any
				result, err = t.runMethod(ctx)
				if err == nil {
					t.setResult(drainSequence(result))
					if t.Filters != nil {
						t.setResult(t.Filters.Apply(t.getResultLocked()))
					}
					t.onComplete()
					break
				}
			} else {
				t.onSkipped()
				break
			}
		}

		t.appendError(err)

		if t.Retry.shouldRetry(err.Error(), attempts, t.Status()) {
			sleepInterruptible(ctx, t.Retry.effectiveDelaySeconds())
			continue
		}

		t.onError(err)
		break
	}

	t.finalizeMeta()
	otelinit.TaskDurationHistogram().Record(ctx, t.Duration()*1000, metric.WithAttributes(
		attribute.String("task.name", t.Name),
		attribute.String("task.status", string(t.Status())),
	))
}

func (t *Task) checkWhen() (bool, error) {
	if t.When == "" {
		return true, nil
	}
	resolved, err := template.ResolveStrict(t.When, t.templateContext())
	if err != nil {
		return false, err
	}
	return truthy(resolved), nil
}

func (t *Task) runMethod(ctx context.Context) (any, error) {
	if t.Runner == nil {
		return nil, nil
	}
	return t.Runner.Method(ctx, t)
}

func (t *Task) templateContext() template.Context {
	ctx := template.Context{}
	if t.chain != nil {
		ctx.Variables = t.chain.Variables()
		ctx.Item = t.chain.Item()
		ctx.Env = t.chain.Env()
		ctx.Task = t.chain.Snapshot()
	}
	return ctx
}

func (t *Task) onStart() {
	t.mu.Lock()
	t.status = StatusRunning
	now := time.Now().UTC()
	t.start = &now
	t.mu.Unlock()

	t.runOnDirective("start")
}

func (t *Task) onComplete() {
	if t.ResultAs != nil && t.chain != nil {
		t.chain.SetVariable(t.ResultAs.Name, t.ResultAs.Mode, t.getResultLocked())
	}

	t.runOnDirective("complete")

	t.mu.Lock()
	now := time.Now().UTC()
	t.end = &now
	t.status = StatusComplete
	t.mu.Unlock()
}

func (t *Task) onError(err error) {
	t.mu.Lock()
	now := time.Now().UTC()
	t.end = &now
	t.status = StatusError
	t.mu.Unlock()

	if t.chain != nil {
		logging.Get().Error("task error", "chain_id", t.chain.ID(), "task", t.Name, "position", t.chain.Position(), "error", err)
	} else {
		logging.Get().Error("task error", "task", t.Name, "error", err)
	}

	t.runOnDirective("error")
}

func (t *Task) onSkipped() {
	t.mu.Lock()
	now := time.Now().UTC()
	t.end = &now
	t.status = StatusSkipped
	t.mu.Unlock()

	t.runOnDirective("skipped")
}

// runOnDirective queues each configured task-config under event onto the
// owning chain's pending templates, per spec.md §4.D.
func (t *Task) runOnDirective(event string) {
	if t.chain == nil {
		return
	}
	for _, cfg := range t.On[event] {
		t.chain.EnqueueDirective(cfg, t.Blocking)
	}
}

func (t *Task) setAttempts(n int) {
	t.mu.Lock()
	t.attempts = n
	t.mu.Unlock()
}

func (t *Task) setResult(v any) {
	t.mu.Lock()
	t.result = v
	t.mu.Unlock()
}

func (t *Task) getResultLocked() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func (t *Task) appendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	errs, _ := t.meta["Errors"].([]string)
	errs = append(errs, err.Error())
	t.meta["Errors"] = errs
}

// MarkSkipped marks the task as skipped with an explanatory message,
// without invoking its Runner. Used by the chain driver when a task's
// resolved `iterate` directive has already been expanded into sibling
// tasks, so the parent itself never runs (spec.md §4.F).
func (t *Task) MarkSkipped(info string) {
	now := time.Now().UTC()
	t.mu.Lock()
	t.status = StatusSkipped
	t.start = &now
	t.end = &now
	t.meta["Info"] = info
	t.mu.Unlock()
}

func (t *Task) finalizeMeta() {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 1
	switch v := t.result.(type) {
	case []any:
		count = len(v)
	case map[string]any:
		count = len(v)
	}

	t.meta["attempts"] = t.attempts
	t.meta["count"] = count
	t.meta["duration"] = t.duration()
	t.meta["status"] = t.status
}

func drainSequence(result any) any {
	gen, ok := result.(Generator)
	if !ok {
		return result
	}
	out := []any{}
	for v := range gen {
		out = append(out, v)
	}
	return out
}

func sleepInterruptible(ctx context.Context, seconds float64) {
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case nil:
		return false
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0", "":
			return false
		default:
			return x != ""
		}
	case int:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
