package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudchain/taskengine/internal/chain"
	"github.com/cloudchain/taskengine/internal/config"
	"github.com/cloudchain/taskengine/internal/logging"
	"github.com/cloudchain/taskengine/internal/store"
)

// chainDeps bundles the dependencies every constructed Chain shares.
type chainDeps struct {
	env  *config.Environment
	silo chain.StatusPublisher
}

// chainRunner adapts internal/store's persisted templates into running
// chains, satisfying both internal/schedule.Runner and internal/trigger.Runner
// with the same narrow method so a cron tick and a NATS event fire chains
// identically.
type chainRunner struct {
	store *store.Store
	deps  chainDeps
}

func newChainRunner(st *store.Store, deps chainDeps) *chainRunner {
	return &chainRunner{store: st, deps: deps}
}

// RunChain loads the named template, builds a Chain from it, and runs it to
// completion, persisting the resulting execution record.
func (r *chainRunner) RunChain(ctx context.Context, chainName string) error {
	tmpl, ok := r.store.GetTemplate(chainName)
	if !ok {
		return fmt.Errorf("taskrunner: no template registered under %q", chainName)
	}

	opts, err := buildChainOptions(tmpl.Kind, tmpl.Document, map[string]any{}, r.deps)
	if err != nil {
		return fmt.Errorf("taskrunner: building chain %q: %w", chainName, err)
	}

	c := chain.New(opts, tmpl.Document)
	c.Run(ctx)

	exec := store.Execution{
		ChainID:   c.ID(),
		ChainName: chainName,
		Status:    string(c.Status()),
		Result:    c.Result(),
	}
	snap := c.Snapshot()
	if t, ok := snap["start"].(*time.Time); ok && t != nil {
		exec.StartTime = *t
	}
	if t, ok := snap["end"].(*time.Time); ok && t != nil {
		exec.EndTime = *t
	}

	if err := r.store.PutExecution(exec); err != nil {
		logging.Get().Warn("taskrunner: recording execution failed", "chain", chainName, "error", err)
	}

	if errs, _ := exec.Result["errors"].([]string); len(errs) > 0 {
		return fmt.Errorf("taskrunner: chain %q finished with errors", chainName)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// isYAMLPath reports whether path's extension indicates a YAML document,
// as opposed to JSON, per spec.md §6's "JSON or YAML" template file format.
func isYAMLPath(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}
