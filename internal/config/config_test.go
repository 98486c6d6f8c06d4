package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_LoadYAML_WalkAndAdd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("region: us-east-1\naccount:\n  id: \"123\"\n"), 0o644))

	env := NewEnvironment()
	require.NoError(t, env.Load(path))

	v, ok := env.Walk("region")
	require.True(t, ok)
	assert.Equal(t, "us-east-1", v)

	v, ok = env.Walk("account.id")
	require.True(t, ok)
	assert.Equal(t, "123", v)

	env.Add("region", "us-west-2", false)
	assert.Equal(t, "us-east-1", env.Get("region", nil))

	env.Add("region", "us-west-2", true)
	assert.Equal(t, "us-west-2", env.Get("region", nil))
}

func TestEnvironment_Load_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.toml")
	require.NoError(t, os.WriteFile(path, []byte("region = 'x'"), 0o644))

	env := NewEnvironment()
	err := env.Load(path)
	require.Error(t, err)
}

func TestSiloCatalog_RegisterAndLookup(t *testing.T) {
	cat := NewSiloCatalog()
	require.NoError(t, cat.Register("harvest-tasks", map[string]any{
		"engine":   "redis",
		"host":     "redis.internal",
		"port":     6379,
		"database": "2",
	}))

	desc, ok := cat.Get("harvest-tasks")
	require.True(t, ok)
	assert.Equal(t, "redis", desc.Engine)
	assert.Equal(t, 6379, desc.Port)

	client, err := cat.RedisClient("harvest-tasks")
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)
}

func TestSiloCatalog_LoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "silos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"harvest-tasks:\n  engine: redis\n  host: redis.internal\n  port: 6379\n  database: \"1\"\n"+
			"docs:\n  engine: mongo\n  host: mongo.internal\n  port: 27017\n"), 0o644))

	cat := NewSiloCatalog()
	require.NoError(t, cat.LoadCatalogFile(path))

	desc, ok := cat.Get("harvest-tasks")
	require.True(t, ok)
	assert.Equal(t, "redis", desc.Engine)

	_, ok = cat.Get("docs")
	require.True(t, ok)
}

func TestSiloCatalog_RedisClient_WrongEngine(t *testing.T) {
	cat := NewSiloCatalog()
	require.NoError(t, cat.Register("docs", map[string]any{
		"engine": "mongo",
		"host":   "mongo.internal",
		"port":   27017,
	}))

	_, err := cat.RedisClient("docs")
	require.Error(t, err)
}
