package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "taskengine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_TemplateRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutTemplate(Template{
		Name:     "nightly-report",
		Kind:     "report",
		Document: map[string]any{"tasks": []any{}},
	}))

	tmpl, ok := s.GetTemplate("nightly-report")
	require.True(t, ok)
	assert.Equal(t, "report", tmpl.Kind)

	assert.Len(t, s.ListTemplates(), 1)

	require.NoError(t, s.DeleteTemplate("nightly-report"))
	_, ok = s.GetTemplate("nightly-report")
	assert.False(t, ok)
}

func TestStore_ExecutionHistoryOrdering(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.PutExecution(Execution{
			ChainID:   fmt.Sprintf("id-%d", i),
			ChainName: "nightly-report",
			Status:    "complete",
			StartTime: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	execs, err := s.ListExecutions("nightly-report", 10)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	assert.Equal(t, "id-0", execs[0].ChainID)
	assert.Equal(t, "id-2", execs[2].ChainID)
}
