package chain

import (
	"context"
	"testing"
	"time"

	_ "github.com/cloudchain/taskengine/internal/task/kinds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runChain(t *testing.T, opts Options) *Chain {
	t.Helper()
	c := New(opts, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Run(ctx)
	return c
}

func TestChain_RunsTasksInOrder(t *testing.T) {
	c := runChain(t, Options{
		Name: "nightly-report",
		Tasks: []map[string]any{
			{"dummy": map[string]any{"name": "first"}},
			{"dummy": map[string]any{"name": "second"}},
		},
	})

	assert.Equal(t, "complete", string(c.Status()))
	assert.Equal(t, 2, c.Total())
	require.Len(t, c.tasks, 2)
	assert.Equal(t, "first", c.tasks[0].Name)
	assert.Equal(t, "second", c.tasks[1].Name)
}

func TestChain_IterateExpandsIntoSiblingsInNaturalOrder(t *testing.T) {
	c := runChain(t, Options{
		Name: "expand",
		Tasks: []map[string]any{
			{"dummy": map[string]any{"name": "loop", "iterate": []any{"a", "b", "c"}}},
			{"dummy": map[string]any{"name": "after"}},
		},
	})

	// The iterated parent is skipped and expands into 3 siblings, which run
	// before the trailing "after" task; Total grows from 2 to 2-1+3+1 = 5.
	assert.Equal(t, 5, c.Total())

	names := make([]string, 0, len(c.tasks))
	for _, tk := range c.tasks {
		names = append(names, tk.Name)
	}
	assert.Equal(t, []string{"loop", "loop - 1/3", "loop - 2/3", "loop - 3/3", "after"}, names)
}

func TestChain_BlockingTaskErrorHaltsChain(t *testing.T) {
	c := runChain(t, Options{
		Name: "blocking-failure",
		Tasks: []map[string]any{
			{"error": map[string]any{"name": "boom", "blocking": true}},
			{"dummy": map[string]any{"name": "never-runs"}},
		},
	})

	// on_complete (deferred) overwrites the error status; the failure is
	// carried in errors, and "never-runs" is never materialized.
	assert.Equal(t, "complete", string(c.Status()))
	result := c.Result()
	assert.NotNil(t, result["errors"])
	assert.Len(t, c.tasks, 1)
}

func TestChain_NonBlockingTaskDoesNotHaltDispatchLoop(t *testing.T) {
	c := runChain(t, Options{
		Name: "non-blocking-failure",
		Tasks: []map[string]any{
			{"error": map[string]any{"name": "boom", "blocking": false}},
			{"dummy": map[string]any{"name": "second"}},
		},
	})

	// The driver loop itself reaches on_complete even though a non-blocking
	// task failed in the background pool.
	assert.Equal(t, "complete", string(c.Status()))
}

func TestChain_OnCompleteAlwaysRunsAfterOnError(t *testing.T) {
	c := New(Options{
		Name:              "missing-variable",
		RequiredVariables: []string{"region"},
		Tasks:             []map[string]any{{"dummy": map[string]any{"name": "never"}}},
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Run(ctx)

	// Run's on_error path sets status=error, but on_complete (deferred)
	// always runs afterward and overwrites it to complete, mirroring the
	// original source's finally block.
	assert.Equal(t, "complete", string(c.Status()))
	assert.Contains(t, c.errors[0], "region")
}

func TestChain_FindTaskPositionByName_ReportsAbsenceExplicitly(t *testing.T) {
	c := New(Options{
		Name:  "lookup",
		Tasks: []map[string]any{{"dummy": map[string]any{"name": "alpha"}}},
	}, nil)

	pos, ok := c.FindTaskPositionByName("alpha")
	require.True(t, ok)
	assert.Equal(t, 0, pos)

	_, ok = c.FindTaskPositionByName("does-not-exist")
	assert.False(t, ok)
}

func TestChain_InsertTaskBeforeName_LandsImmediatelyBefore(t *testing.T) {
	c := New(Options{
		Name:  "insert",
		Tasks: []map[string]any{{"dummy": map[string]any{"name": "alpha"}}, {"dummy": map[string]any{"name": "beta"}}},
	}, nil)

	require.NoError(t, c.InsertTaskBeforeName("beta", map[string]any{"dummy": map[string]any{"name": "inserted"}}))

	pos, ok := c.FindTaskPositionByName("inserted")
	require.True(t, ok)
	assert.Equal(t, 1, pos)

	betaPos, _ := c.FindTaskPositionByName("beta")
	assert.Equal(t, 2, betaPos)
}

// TestChain_Terminate_DuringPoolDrain_UnblocksRun guards spec.md's
// termination-during-drain property: Terminate() fired while Run's
// dispatch loop is parked in an indefinite pool.WaitUntilComplete(0) (the
// case when the final dispatched task is non-blocking) must still let Run
// return, rather than leaving the driver goroutine stuck forever.
func TestChain_Terminate_DuringPoolDrain_UnblocksRun(t *testing.T) {
	c := New(Options{
		Name: "terminate-mid-drain",
		Tasks: []map[string]any{
			{"delay": map[string]any{"name": "slow", "delay_seconds": 3600, "blocking": false}},
		},
	}, nil)

	runDone := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Run(ctx)
		close(runDone)
	}()

	time.Sleep(50 * time.Millisecond)
	c.Terminate()

	select {
	case <-runDone:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Terminate fired during a pool drain")
	}
}

type fakeSilo struct {
	statuses []map[string]any
	results  []map[string]any
}

func (f *fakeSilo) PublishStatus(ctx context.Context, record map[string]any) error {
	f.statuses = append(f.statuses, record)
	return nil
}

func (f *fakeSilo) PublishResult(ctx context.Context, result map[string]any) error {
	f.results = append(f.results, result)
	return nil
}

func TestChain_PublishesStatusAndResultToSilo(t *testing.T) {
	silo := &fakeSilo{}
	c := runChain(t, Options{
		Name:  "published",
		Tasks: []map[string]any{{"dummy": map[string]any{"name": "only"}}},
		Silo:  silo,
	})

	require.NotEmpty(t, silo.statuses)
	require.NotEmpty(t, silo.results)

	last := silo.results[len(silo.results)-1]
	assert.Equal(t, c.ID(), last["id"])
}
