// Package schedule implements cron-triggered chain runs: named chains are
// bound to a cron expression and fired on a schedule, in-process, by a
// single robfig/cron scheduler.
//
// Grounded on the teacher's scheduler.go (Scheduler.AddSchedule/
// RemoveSchedule/RestoreSchedules, persisted ScheduleConfig), trimmed to
// the cron half of that file — its event-driven half is superseded by
// internal/trigger's NATS subjects, per SPEC_FULL.md's domain-stack
// wiring, rather than the teacher's generic "event_type" strings.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cloudchain/taskengine/internal/logging"
	"github.com/cloudchain/taskengine/internal/otelinit"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var bucketSchedules = []byte("schedules")

// Runner starts a named chain's template running to completion. Satisfied
// by a thin adapter in cmd/taskrunner that loads the template from
// internal/store and constructs+runs an internal/chain.Chain; Scheduler
// depends on this narrow interface rather than internal/chain directly, to
// avoid coupling the trigger surface to chain construction details.
type Runner interface {
	RunChain(ctx context.Context, chainName string) error
}

// persister is the subset of internal/store.Store a Scheduler needs to
// survive a restart; defined locally so internal/schedule does not import
// internal/store for more than this.
type persister interface {
	PutBytes(bucket, key string, value []byte) error
	GetBytes(bucket, key string) ([]byte, bool, error)
	DeleteBytes(bucket, key string) error
	ForEachBytes(bucket string, fn func(key string, value []byte) error) error
}

// Entry is a persisted cron-schedule record.
type Entry struct {
	ChainName string `json:"chain_name"`
	CronExpr  string `json:"cron_expr"`
	Enabled   bool   `json:"enabled"`
}

// Scheduler owns a cron.Cron instance and fires Runner.RunChain for each
// enabled Entry at its cron expression.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	store  persister

	mu      sync.Mutex
	entryID map[string]cron.EntryID
}

// New constructs a Scheduler. store may be nil, in which case schedules are
// not persisted across restarts (useful for tests).
func New(runner Runner, store persister) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		runner:  runner,
		store:   store,
		entryID: map[string]cron.EntryID{},
	}
}

// Start begins firing cron entries.
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Get().Info("schedule: started")
}

// Stop blocks until in-flight fires complete, or ctx is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddSchedule registers entry, persists it (if a store is configured), and,
// when entry.Enabled is set, schedules it to fire at its cron expression.
func (s *Scheduler) AddSchedule(entry Entry) error {
	if entry.Enabled {
		id, err := s.cron.AddFunc(entry.CronExpr, func() {
			s.fire(context.Background(), entry.ChainName)
		})
		if err != nil {
			return fmt.Errorf("schedule: add cron entry for %q: %w", entry.ChainName, err)
		}

		s.mu.Lock()
		s.entryID[entry.ChainName] = id
		s.mu.Unlock()
	}

	if s.store != nil {
		data, _ := json.Marshal(entry)
		if err := s.store.PutBytes(string(bucketSchedules), entry.ChainName, data); err != nil {
			return fmt.Errorf("schedule: persist %q: %w", entry.ChainName, err)
		}
	}

	logging.Get().Info("schedule: added", "chain", entry.ChainName, "cron", entry.CronExpr)
	return nil
}

// RemoveSchedule unregisters the cron entry bound to chainName, if any.
func (s *Scheduler) RemoveSchedule(chainName string) error {
	s.mu.Lock()
	id, ok := s.entryID[chainName]
	if ok {
		delete(s.entryID, chainName)
	}
	s.mu.Unlock()

	if ok {
		s.cron.Remove(id)
	}

	if s.store != nil {
		if err := s.store.DeleteBytes(string(bucketSchedules), chainName); err != nil {
			return fmt.Errorf("schedule: delete %q: %w", chainName, err)
		}
	}

	logging.Get().Info("schedule: removed", "chain", chainName)
	return nil
}

// RestoreSchedules reloads every persisted Entry and re-registers enabled
// ones, for use at process startup.
func (s *Scheduler) RestoreSchedules() error {
	if s.store == nil {
		return nil
	}

	restored, failed := 0, 0
	err := s.store.ForEachBytes(string(bucketSchedules), func(_ string, value []byte) error {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			failed++
			return nil
		}
		if !entry.Enabled {
			return nil
		}
		id, err := s.cron.AddFunc(entry.CronExpr, func() {
			s.fire(context.Background(), entry.ChainName)
		})
		if err != nil {
			failed++
			return nil
		}
		s.mu.Lock()
		s.entryID[entry.ChainName] = id
		s.mu.Unlock()
		restored++
		return nil
	})

	logging.Get().Info("schedule: restored", "restored", restored, "failed", failed)
	return err
}

func (s *Scheduler) fire(ctx context.Context, chainName string) {
	ctx, span := otelinit.Tracer().Start(ctx, "schedule.fire", trace.WithAttributes(
		attribute.String("chain.name", chainName),
	))
	defer span.End()

	if err := s.runner.RunChain(ctx, chainName); err != nil {
		logging.Get().Error("schedule: chain run failed", "chain", chainName, "error", err)
	}
}
