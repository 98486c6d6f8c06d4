package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_WholeReferencePreservesType(t *testing.T) {
	ctx := Context{Variables: map[string]any{
		"user": map[string]any{"name": "Ada"},
	}}

	got := Resolve("var.user", ctx)
	assert.Equal(t, map[string]any{"name": "Ada"}, got)
}

func TestResolve_SplicesStringValues(t *testing.T) {
	ctx := Context{Variables: map[string]any{
		"user": map[string]any{"name": "Ada"},
	}}

	got := Resolve("hello var.user.name", ctx)
	assert.Equal(t, "hello Ada", got)
}

func TestResolve_UnresolvedLeavesSubstringUntouched(t *testing.T) {
	ctx := Context{Variables: map[string]any{}}

	got := Resolve("var.missing.path", ctx)
	assert.Equal(t, "var.missing.path", got)
}

func TestResolveStrict_UnresolvedReturnsError(t *testing.T) {
	ctx := Context{Variables: map[string]any{}}

	_, err := ResolveStrict("var.missing", ctx)
	require.Error(t, err)

	var unresolved *ErrUnresolved
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "var.missing", unresolved.Reference)
}

func TestResolve_ItemReference(t *testing.T) {
	ctx := Context{Item: map[string]any{"region": "us-east-1"}}
	got := Resolve("item.region", ctx)
	assert.Equal(t, "us-east-1", got)
}

func TestResolve_IndexAndTextFilter(t *testing.T) {
	ctx := Context{Item: map[string]any{"tags": []any{"prod", "web"}}}
	assert.Equal(t, "prod", Resolve("item.tags[0]", ctx))
	assert.Equal(t, "PROD", Resolve("item.tags[0].upper", ctx))
}

func TestResolve_KeysAndValues(t *testing.T) {
	ctx := Context{Variables: map[string]any{
		"account": map[string]any{"a": 1, "b": 2},
	}}

	assert.Equal(t, []any{"a", "b"}, Resolve("var.account.keys", ctx))
	assert.Equal(t, []any{1, 2}, Resolve("var.account.values", ctx))
}

func TestResolve_TaskReference(t *testing.T) {
	ctx := Context{Task: map[string]any{"position": 3, "total": 10}}
	assert.Equal(t, 3, Resolve("task.position", ctx))
}

func TestResolve_EnvReference(t *testing.T) {
	ctx := Context{Env: stubEnv{"region": "us-west-2"}}
	assert.Equal(t, "us-west-2", Resolve("env.region", ctx))
}

type stubEnv map[string]any

func (s stubEnv) Walk(path string) (any, bool) {
	v, ok := s[path]
	return v, ok
}

func TestWalkAndReplace_RecursesMapsAndLists(t *testing.T) {
	ctx := Context{Variables: map[string]any{"name": "Ada"}}

	obj := map[string]any{
		"greeting": "hi var.name",
		"list":     []any{"var.name", map[string]any{"n": "var.name"}},
		"number":   42,
	}

	got := WalkAndReplace(obj, ctx).(map[string]any)
	assert.Equal(t, "hi Ada", got["greeting"])
	list := got["list"].([]any)
	assert.Equal(t, "Ada", list[0])
	assert.Equal(t, "Ada", list[1].(map[string]any)["n"])
	assert.Equal(t, 42, got["number"])
}

func TestResolve_Idempotent(t *testing.T) {
	ctx := Context{Variables: map[string]any{"name": "Ada"}}
	once := Resolve("hello var.name", ctx)
	twice := Resolve(once.(string), ctx)
	assert.Equal(t, once, twice)
}
