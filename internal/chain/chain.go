// Package chain implements the chain driver (component F): it walks a
// template of task configurations, materializing and running each one in
// turn, expanding `iterate` directives into sibling tasks, dispatching
// blocking tasks inline and non-blocking tasks to a pool, and publishing
// status transitions to an optional status silo. Grounded on the original
// source's BaseTaskChain (chains/base.py).
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudchain/taskengine/internal/logging"
	"github.com/cloudchain/taskengine/internal/otelinit"
	"github.com/cloudchain/taskengine/internal/pool"
	"github.com/cloudchain/taskengine/internal/task"
	"github.com/cloudchain/taskengine/internal/template"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StatusPublisher is the narrow surface a status silo adapter (component H)
// exposes to a Chain. Defined here, rather than importing internal/silo
// directly, so internal/silo can depend on internal/chain's exported types
// without a package cycle; its Redis-backed implementation satisfies this.
// Both record and result carry "id" and "parent" fields so the adapter can
// derive the original source's redis_name key (task:<parent>:<id>) without
// a separate parameter.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, record map[string]any) error
	PublishResult(ctx context.Context, result map[string]any) error
}

// Options configures a new Chain, mirroring the original source's
// BaseTaskChain constructor plus spec.md §6's chain-config schema.
type Options struct {
	Name              string
	Kind              string
	Parent            string
	Description       string
	Variables         map[string]any
	Tasks             []map[string]any
	RequiredVariables []string
	MaxWorkers        int
	WorkerRefreshRate time.Duration
	IdleRefreshRate   time.Duration

	Env  template.Environment
	Silo StatusPublisher
}

// Chain drives a task template list to completion. It implements
// task.ChainContext so materialized Tasks can read its variable scope,
// publish results, and enqueue directives without a strong back-reference.
type Chain struct {
	id          string
	name        string
	kind        string
	parent      string
	description string
	agent       string

	originalTemplate map[string]any

	env  template.Environment
	silo StatusPublisher

	mu                sync.Mutex
	variables         map[string]any
	taskTemplates     []map[string]any
	tasks             []*task.Task
	position          int
	status            task.Status
	start             *time.Time
	end               *time.Time
	errors            []string
	requiredVariables []string

	pool *pool.Pool
}

// New constructs a Chain in its initialized state. originalTemplate, if
// non-nil, is retained verbatim for the `template` key of Result().
func New(opts Options, originalTemplate map[string]any) *Chain {
	id := uuid.NewString()

	variables := map[string]any{}
	for k, v := range opts.Variables {
		variables[k] = v
	}

	tasks := make([]map[string]any, len(opts.Tasks))
	copy(tasks, opts.Tasks)

	c := &Chain{
		id:                id,
		name:              opts.Name,
		kind:              opts.Kind,
		parent:            opts.Parent,
		description:       opts.Description,
		originalTemplate:  originalTemplate,
		env:               opts.Env,
		silo:              opts.Silo,
		variables:         variables,
		taskTemplates:     tasks,
		status:            task.StatusInitialized,
		requiredVariables: opts.RequiredVariables,
	}

	c.pool = pool.New(opts.MaxWorkers, opts.WorkerRefreshRate, opts.IdleRefreshRate).Start()

	return c
}

// ID returns the chain's unique identifier.
func (c *Chain) ID() string { return c.id }

// Name returns the chain's configured name.
func (c *Chain) Name() string { return c.name }

// Position returns the driver's current position in the task template list.
func (c *Chain) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Status returns the chain's current lifecycle status.
func (c *Chain) Status() task.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Total returns the number of task templates currently known to the chain
// (growing as iteration expands them).
func (c *Chain) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.taskTemplates)
}

// Percent returns the driver's position as a fraction of Total, or -1 if
// there are no templates yet.
func (c *Chain) Percent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.taskTemplates) == 0 {
		return -1
	}
	return float64(c.position) / float64(len(c.taskTemplates))
}

// Variables returns a shallow copy of the chain's variable scope, safe to
// read concurrently with SetVariable.
func (c *Chain) Variables() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// SetVariable merges result into the chain's variable scope under name per
// mode, serialized by the chain's mutex so two pooled tasks' completions
// never interleave (spec.md §4.G's concurrency discipline).
func (c *Chain) SetVariable(name string, mode task.ResultMode, result any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rule := task.ResultAs{Name: name, Mode: mode}
	c.variables[name] = rule.Apply(c.variables[name], result)
}

// primeVariable directly overwrites a chain variable, used only to seed an
// iterated task's result_as target to its mode-appropriate zero value
// before the first sibling completes (spec.md §4.F).
func (c *Chain) primeVariable(name string, zero any) {
	if name == "" {
		return
	}
	c.mu.Lock()
	c.variables[name] = zero
	c.mu.Unlock()
}

// Item always returns nil for the chain itself; per-iteration item scope is
// only ever set when materializing an already-expanded sibling task, which
// carries its item baked into its task_templates entry rather than read
// live from the chain (see expandIteration).
func (c *Chain) Item() any { return nil }

// Env resolves "env.*" template references.
func (c *Chain) Env() template.Environment { return c.env }

// SetAgent records which worker agent is executing this chain, surfaced in
// Snapshot and the status-silo record. Populated by the caller (e.g.
// cmd/taskrunner), not at construction time.
func (c *Chain) SetAgent(agent string) {
	c.mu.Lock()
	c.agent = agent
	c.mu.Unlock()
}

// Snapshot returns a point-in-time view of chain state for "task.*"
// template references and the status-silo record, mirroring the original
// source's redis_struct.
func (c *Chain) Snapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Chain) snapshotLocked() map[string]any {
	return map[string]any{
		"id":       c.id,
		"parent":   c.parent,
		"name":     c.name,
		"type":     c.kind,
		"status":   string(c.status),
		"agent":    c.agent,
		"position": c.position,
		"total":    len(c.taskTemplates),
		"start":    c.start,
		"end":      c.end,
	}
}

// EnqueueDirective queues a lifecycle-directive task configuration onto the
// chain's pending task templates: immediately after the current position
// for blocking-task directives, or appended to the tail for non-blocking
// ones (see task.ChainContext.EnqueueDirective).
func (c *Chain) EnqueueDirective(cfg map[string]any, immediate bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if immediate {
		insertAt := c.position + 1
		if insertAt > len(c.taskTemplates) {
			insertAt = len(c.taskTemplates)
		}
		c.taskTemplates = insertAt1(c.taskTemplates, insertAt, cfg)
	} else {
		c.taskTemplates = append(c.taskTemplates, cfg)
	}
}

// Terminate asks the driver loop, every materialized task that has not
// finished (including a running blocking task), and its pool to stop
// cooperatively.
func (c *Chain) Terminate() {
	c.mu.Lock()
	c.status = task.StatusTerminating
	unfinished := make([]*task.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if !t.Done() {
			unfinished = append(unfinished, t)
		}
	}
	c.mu.Unlock()

	logging.Get().Warn("terminating chain", "chain_id", c.id, "name", c.name)
	c.publishStatus(context.Background())
	for _, t := range unfinished {
		t.Terminate()
	}
	c.pool.Terminate()
}

// Run executes the chain's full driver loop per spec.md §4.F: on_start,
// required-variable validation, the materialize/iterate/dispatch loop, a
// final pool drain, and on_error/on_complete (on_complete always runs).
func (c *Chain) Run(ctx context.Context) {
	ctx, span := otelinit.Tracer().Start(ctx, "chain.run", trace.WithAttributes(
		attribute.String("chain.id", c.id),
		attribute.String("chain.name", c.name),
	))
	defer span.End()
	otelinit.ChainRunsCounter().Add(ctx, 1)

	c.onStart(ctx)
	defer c.onComplete(ctx)

	if err := c.validateRequiredVariables(); err != nil {
		c.onError(ctx, err)
		return
	}

	for {
		c.mu.Lock()
		if c.position >= len(c.taskTemplates) {
			c.mu.Unlock()
			break
		}
		raw := c.taskTemplates[c.position]
		c.mu.Unlock()

		t, err := task.FromConfig(raw, c, nil)
		if err != nil {
			c.onError(ctx, err)
			return
		}

		if t.Iterate != nil {
			c.expandIteration(t, raw)
			c.advancePosition()
			continue
		}

		c.mu.Lock()
		c.tasks = append(c.tasks, t)
		c.mu.Unlock()

		if t.Blocking {
			t.Run(ctx)
			if t.Status() == task.StatusError {
				c.appendErrors(t.Errors())
				c.onError(ctx, fmt.Errorf("blocking task %q failed: %s", t.Name, strings.Join(t.Errors(), "; ")))
				return
			}
		} else {
			c.pool.Add(t)
		}

		if c.Status() == task.StatusTerminating {
			c.onError(ctx, fmt.Errorf("chain %q was instructed to terminate", c.name))
			return
		}

		c.mu.Lock()
		lastTemplate := c.position+1 >= len(c.taskTemplates)
		c.mu.Unlock()

		if c.pool.QueueSize() > 0 && lastTemplate {
			c.pool.WaitUntilComplete(0)
		}

		c.advancePosition()
	}

	if c.pool.QueueSize() > 0 {
		c.pool.WaitUntilComplete(0)
	}
}

func (c *Chain) advancePosition() {
	c.mu.Lock()
	c.position++
	c.mu.Unlock()
}

func (c *Chain) validateRequiredVariables() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range c.requiredVariables {
		if _, ok := c.variables[name]; !ok {
			return fmt.Errorf("missing required variable: %s", name)
		}
	}
	return nil
}

// expandIteration deep-copies the parent task's original (untemplated)
// configuration once per element of its resolved `iterate` sequence,
// resolving "item.*" references against that specific element right away
// (mirroring the original source's iterate_task generator), inserts the
// resulting siblings immediately after the current position in natural
// order, and marks the parent itself skipped.
func (c *Chain) expandIteration(t *task.Task, rawTemplate map[string]any) {
	seq := toAnySlice(t.Iterate)
	n := len(seq)

	if t.ResultAs != nil {
		c.primeVariable(t.ResultAs.Name, t.ResultAs.ZeroValue())
	}

	kind, body, ok := splitKind(rawTemplate)
	if !ok {
		t.MarkSkipped("task was skipped: could not determine its kind for iteration")
		c.mu.Lock()
		c.tasks = append(c.tasks, t)
		c.mu.Unlock()
		return
	}

	baseName, _ := body["name"].(string)
	if baseName == "" {
		baseName = t.Name
	}

	tctx := template.Context{Variables: c.Variables(), Env: c.Env(), Task: c.Snapshot()}

	siblings := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		bodyCopy := deepCopyMap(body)
		delete(bodyCopy, "iterate")
		bodyCopy["name"] = fmt.Sprintf("%s - %d/%d", baseName, i+1, n)

		itemCtx := tctx
		itemCtx.Item = seq[i]

		resolved, _ := template.WalkAndReplace(map[string]any{kind: bodyCopy}, itemCtx).(map[string]any)
		if resolved == nil {
			resolved = map[string]any{kind: bodyCopy}
		}
		siblings[i] = resolved
	}

	c.mu.Lock()
	insertAt := c.position + 1
	tail := append([]map[string]any{}, c.taskTemplates[insertAt:]...)
	c.taskTemplates = append(c.taskTemplates[:insertAt], siblings...)
	c.taskTemplates = append(c.taskTemplates, tail...)
	c.mu.Unlock()

	t.MarkSkipped(fmt.Sprintf("task was skipped because it was an iterated task (expanded into %d siblings)", n))
	c.mu.Lock()
	c.tasks = append(c.tasks, t)
	c.mu.Unlock()
}

func (c *Chain) appendErrors(errs []string) {
	if len(errs) == 0 {
		return
	}
	c.mu.Lock()
	c.errors = append(c.errors, errs...)
	c.mu.Unlock()
}

func (c *Chain) onStart(ctx context.Context) {
	now := time.Now().UTC()
	c.mu.Lock()
	c.status = task.StatusRunning
	c.start = &now
	c.mu.Unlock()

	c.publishStatus(ctx)
}

// onComplete always runs, mirroring the original source's finally block:
// even a chain that hit on_error ends with status=complete here (errors
// still surface via chain.errors and individual task statuses).
func (c *Chain) onComplete(ctx context.Context) {
	now := time.Now().UTC()
	c.mu.Lock()
	c.status = task.StatusComplete
	c.end = &now
	c.mu.Unlock()

	c.publishResult(ctx)
	c.publishStatus(ctx)
}

func (c *Chain) onError(ctx context.Context, err error) {
	c.mu.Lock()
	c.status = task.StatusError
	c.errors = append(c.errors, err.Error())
	c.mu.Unlock()

	if c.pool.QueueSize() > 0 {
		c.pool.Terminate()
	}

	logging.Get().Error("chain error", "chain_id", c.id, "name", c.name, "error", err)

	c.publishResult(ctx)
	c.publishStatus(ctx)
}

func (c *Chain) publishStatus(ctx context.Context) {
	if c.silo == nil {
		return
	}
	if err := c.silo.PublishStatus(ctx, c.Snapshot()); err != nil {
		logging.Get().Warn("publishing chain status failed", "chain_id", c.id, "error", err)
	}
}

func (c *Chain) publishResult(ctx context.Context) {
	if c.silo == nil {
		return
	}
	result := c.Result()
	result["id"] = c.id
	result["parent"] = c.parent
	if err := c.silo.PublishResult(ctx, result); err != nil {
		logging.Get().Warn("publishing chain result failed", "chain_id", c.id, "error", err)
	}
}

// Result returns the chain's final result mapping: data (the "result"
// variable if set, else the last task's result), errors, meta, per-task
// metrics, and the original template, mirroring the original source's
// `result` property.
func (c *Chain) Result() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data any
	if v, ok := c.variables["result"]; ok && v != nil {
		data = v
	} else if len(c.tasks) > 0 {
		data = c.tasks[len(c.tasks)-1].Result()
	} else {
		data = []any{}
	}

	var errs any
	if len(c.errors) > 0 {
		errs = append([]string{}, c.errors...)
	}

	return map[string]any{
		"data":     data,
		"errors":   errs,
		"meta":     map[string]any{},
		"metrics":  c.performanceMetricsLocked(),
		"template": c.originalTemplate,
	}
}

// PerformanceMetrics returns per-task timing/size metrics plus an
// aggregated "Total" row, mirroring the original source's
// performance_metrics property.
func (c *Chain) PerformanceMetrics() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.performanceMetricsLocked()
}

func (c *Chain) performanceMetricsLocked() []map[string]any {
	if len(c.tasks) == 0 {
		var duration float64
		if c.start != nil && c.end != nil {
			duration = c.end.Sub(*c.start).Seconds()
		}
		return []map[string]any{{
			"Position":  "Total",
			"Name":      "",
			"Status":    string(c.status),
			"Records":   0,
			"DataBytes": 0,
			"Duration":  duration,
			"Start":     c.start,
			"End":       c.end,
		}}
	}

	rows := make([]map[string]any, 0, len(c.tasks)+1)
	var totalRecords, totalBytes int
	var minStart, maxEnd *time.Time

	for i, t := range c.tasks {
		result := t.Result()
		records := recordCount(result)
		dataBytes := approxSize(result)

		totalRecords += records
		totalBytes += dataBytes

		if s := t.Start(); s != nil && (minStart == nil || s.Before(*minStart)) {
			minStart = s
		}
		if e := t.End(); e != nil && (maxEnd == nil || e.After(*maxEnd)) {
			maxEnd = e
		}

		rows = append(rows, map[string]any{
			"Position":  i,
			"Name":      t.Name,
			"Class":     taskKind(t),
			"Status":    string(t.Status()),
			"Attempts":  t.Attempts(),
			"DataBytes": dataBytes,
			"Records":   records,
			"Duration":  t.Duration(),
			"Start":     t.Start(),
			"End":       t.End(),
		})
	}

	rows = append(rows, map[string]any{
		"Position":  "Total",
		"Name":      "",
		"Status":    string(c.status),
		"Records":   totalRecords,
		"DataBytes": totalBytes,
		"Duration":  durationBetween(minStart, maxEnd),
		"Start":     minStart,
		"End":       maxEnd,
	})

	return rows
}

// DetailedProgress reports total/current/percent/duration and a per-status
// task count, mirroring the original source's detailed_progress.
func (c *Chain) DetailedProgress() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := map[string]int{}
	for _, s := range task.AllStatuses() {
		counts[string(s)] = 0
	}
	for _, t := range c.tasks {
		counts[string(t.Status())]++
	}

	var duration float64
	if c.start != nil {
		end := time.Now().UTC()
		if c.end != nil {
			end = *c.end
		}
		duration = end.Sub(*c.start).Seconds()
	}

	total := len(c.taskTemplates)
	percent := 0.0
	if total > 0 {
		percent = (float64(c.position) / float64(total)) * 100
	}

	return map[string]any{
		"total":    total,
		"current":  c.position,
		"percent":  percent,
		"duration": duration,
		"counts":   counts,
	}
}

// FindTaskPositionByName returns the position of the first task template
// named name, and whether it was found. Unlike the original source (which
// returns 0 when the name is absent — a quirk that makes Python callers
// unable to distinguish "found at the start" from "not found"), this
// reports absence explicitly via the bool, and InsertTaskBeforeName/
// InsertTaskAfterName treat "not found" as an error rather than silently
// operating on position 0.
func (c *Chain) FindTaskPositionByName(name string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, tmpl := range c.taskTemplates {
		if _, body, ok := splitKind(tmpl); ok && body["name"] == name {
			return i, true
		}
	}
	return 0, false
}

// InsertTaskAfterName inserts newTask immediately after the named task.
func (c *Chain) InsertTaskAfterName(name string, newTask map[string]any) error {
	pos, ok := c.FindTaskPositionByName(name)
	if !ok {
		return fmt.Errorf("chain: no task named %q", name)
	}
	c.mu.Lock()
	c.taskTemplates = insertAt1(c.taskTemplates, pos+1, newTask)
	c.mu.Unlock()
	return nil
}

// InsertTaskBeforeName inserts newTask immediately before the named task.
// The original source inserted at position-1 (one slot earlier than
// "before" should land); this inserts at position, which is the fix.
func (c *Chain) InsertTaskBeforeName(name string, newTask map[string]any) error {
	pos, ok := c.FindTaskPositionByName(name)
	if !ok {
		return fmt.Errorf("chain: no task named %q", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pos < c.position {
		return fmt.Errorf("chain: cannot insert a task before the current task")
	}
	c.taskTemplates = insertAt1(c.taskTemplates, pos, newTask)
	return nil
}

// InsertTaskAtPosition inserts newTask at position, appending to the tail
// if position exceeds the current template count.
func (c *Chain) InsertTaskAtPosition(position int, newTask map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if position > len(c.taskTemplates) {
		c.taskTemplates = append(c.taskTemplates, newTask)
		return
	}
	c.taskTemplates = insertAt1(c.taskTemplates, position, newTask)
}

func insertAt1(list []map[string]any, at int, v map[string]any) []map[string]any {
	if at < 0 {
		at = 0
	}
	if at > len(list) {
		at = len(list)
	}
	out := make([]map[string]any, 0, len(list)+1)
	out = append(out, list[:at]...)
	out = append(out, v)
	out = append(out, list[at:]...)
	return out
}

// splitKind extracts the first key in raw that does not begin with '.' and
// returns its body as a map, mirroring internal/task/registry.go's
// unexported helper of the same purpose (duplicated rather than shared to
// keep internal/chain from reaching into internal/task's private surface).
func splitKind(raw map[string]any) (string, map[string]any, bool) {
	for k, v := range raw {
		if strings.HasPrefix(k, ".") {
			continue
		}
		body, _ := v.(map[string]any)
		if body == nil {
			body = map[string]any{}
		}
		return k, body, true
	}
	return "", nil, false
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

func toAnySlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out
	default:
		return []any{x}
	}
}

func taskKind(t *task.Task) string {
	if t.OriginalConfig == nil {
		return ""
	}
	for k := range t.OriginalConfig {
		if !strings.HasPrefix(k, ".") {
			return k
		}
	}
	return ""
}

func recordCount(v any) int {
	switch x := v.(type) {
	case []any:
		return len(x)
	case map[string]any:
		return len(x)
	case nil:
		return 0
	default:
		return 1
	}
}

func approxSize(v any) int {
	return len(fmt.Sprint(v))
}

func durationBetween(start, end *time.Time) float64 {
	if start == nil || end == nil {
		return 0
	}
	return end.Sub(*start).Seconds()
}
