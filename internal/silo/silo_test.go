package silo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisName(t *testing.T) {
	key := redisName(map[string]any{"parent": "root-chain", "id": "abc-123"})
	assert.Equal(t, "task:root-chain:abc-123", key)
}

func TestRedisName_MissingParent(t *testing.T) {
	key := redisName(map[string]any{"id": "abc-123"})
	assert.Equal(t, "task::abc-123", key)
}

func TestFormatHSet_ScalarsPassThrough(t *testing.T) {
	out := formatHSet(map[string]any{
		"name":   "harvest",
		"total":  3,
		"ratio":  0.5,
		"active": true,
		"note":   nil,
	})

	assert.Equal(t, "harvest", out["name"])
	assert.Equal(t, 3, out["total"])
	assert.Equal(t, 0.5, out["ratio"])
	assert.Equal(t, true, out["active"])
	assert.Equal(t, "", out["note"])
}

func TestFormatHSet_StructuredValuesSerialize(t *testing.T) {
	out := formatHSet(map[string]any{
		"errors": []string{"boom", "again"},
		"meta":   map[string]any{"attempts": 2},
	})

	assert.Equal(t, `["boom","again"]`, out["errors"])
	assert.JSONEq(t, `{"attempts":2}`, out["meta"].(string))
}
