package schedule

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu  sync.Mutex
	ran []string
}

func (f *fakeRunner) RunChain(ctx context.Context, chainName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, chainName)
	return nil
}

type memPersister struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
}

func newMemPersister() *memPersister {
	return &memPersister{buckets: map[string]map[string][]byte{}}
}

func (m *memPersister) PutBytes(bucket, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string][]byte{}
	}
	m.buckets[bucket][key] = value
	return nil
}

func (m *memPersister) GetBytes(bucket, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.buckets[bucket][key]
	return v, ok, nil
}

func (m *memPersister) DeleteBytes(bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	return nil
}

func (m *memPersister) ForEachBytes(bucket string, fn func(key string, value []byte) error) error {
	m.mu.Lock()
	items := make(map[string][]byte, len(m.buckets[bucket]))
	for k, v := range m.buckets[bucket] {
		items[k] = v
	}
	m.mu.Unlock()

	for k, v := range items {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func TestScheduler_AddAndRemove(t *testing.T) {
	runner := &fakeRunner{}
	store := newMemPersister()
	s := New(runner, store)

	require.NoError(t, s.AddSchedule(Entry{ChainName: "nightly-report", CronExpr: "*/5 * * * * *", Enabled: true}))

	v, ok, err := store.GetBytes("schedules", "nightly-report")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(v), "nightly-report")

	require.NoError(t, s.RemoveSchedule("nightly-report"))
	_, ok, err = store.GetBytes("schedules", "nightly-report")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScheduler_RestoreSchedules_SkipsDisabled(t *testing.T) {
	runner := &fakeRunner{}
	store := newMemPersister()

	s1 := New(runner, store)
	require.NoError(t, s1.AddSchedule(Entry{ChainName: "enabled-chain", CronExpr: "*/5 * * * * *", Enabled: true}))
	require.NoError(t, s1.AddSchedule(Entry{ChainName: "disabled-chain", CronExpr: "*/5 * * * * *", Enabled: false}))

	s2 := New(runner, store)
	require.NoError(t, s2.RestoreSchedules())

	s2.mu.Lock()
	_, restoredEnabled := s2.entryID["enabled-chain"]
	_, restoredDisabled := s2.entryID["disabled-chain"]
	s2.mu.Unlock()

	assert.True(t, restoredEnabled)
	assert.False(t, restoredDisabled)
}
