package match

import (
	"testing"

	"github.com/cloudchain/taskengine/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RecognizesLongestOperatorFirst(t *testing.T) {
	m, err := Parse("key1>=value1")
	require.NoError(t, err)
	assert.Equal(t, "key1", m.Key)
	assert.Equal(t, OpGe, m.Operator)
	assert.Equal(t, "value1", m.Value)
}

func TestMatch_Evaluate_EqIsCaseInsensitiveSubstring(t *testing.T) {
	m, err := Parse("name=ana")
	require.NoError(t, err)
	assert.True(t, m.Evaluate(record.WalkableDict{"name": "BANANA"}))
	assert.False(t, m.Evaluate(record.WalkableDict{"name": "orange"}))
}

func TestAsMongoMatch_EqLowersToCaseInsensitiveRegex(t *testing.T) {
	m, err := Parse("key1=value1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"key1": map[string]any{"$regex": "value1", "$options": "i"},
	}, m.AsMongoMatch())
}

func TestAsMongoMatch_PerOperatorDialect(t *testing.T) {
	cases := []struct {
		expr string
		want map[string]any
	}{
		{"key1==value1", map[string]any{"key1": "value1"}},
		{"key1!=value1", map[string]any{"key1": map[string]any{"$ne": "value1"}}},
		{"key1<=value1", map[string]any{"key1": map[string]any{"$lte": "value1"}}},
		{"key1>=value1", map[string]any{"key1": map[string]any{"$gte": "value1"}}},
		{"key1<value1", map[string]any{"key1": map[string]any{"$lt": "value1"}}},
		{"key1>value1", map[string]any{"key1": map[string]any{"$gt": "value1"}}},
	}

	for _, c := range cases {
		m, err := Parse(c.expr)
		require.NoError(t, err, c.expr)
		assert.Equal(t, c.want, m.AsMongoMatch(), c.expr)
	}
}

func TestMatchSet_AsMongoFilter_SingleConditionSimplifies(t *testing.T) {
	set, err := ParseSet([]string{"key1=value1"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"key1": map[string]any{"$regex": "value1", "$options": "i"},
	}, set.AsMongoFilter())
}

func TestMatchSet_AsMongoFilter_MultipleConditionsAreAndJoined(t *testing.T) {
	set, err := ParseSet([]string{"key1=value1", "key2!=value2"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"$and": []any{
			map[string]any{"key1": map[string]any{"$regex": "value1", "$options": "i"}},
			map[string]any{"key2": map[string]any{"$ne": "value2"}},
		},
	}, set.AsMongoFilter())
}

func TestMatchSetGroup_AsMongoFilter_MultipleSetsAreOrJoined(t *testing.T) {
	setA, err := ParseSet([]string{"key1=value1"})
	require.NoError(t, err)
	setB, err := ParseSet([]string{"key2!=value2"})
	require.NoError(t, err)

	group := MatchSetGroup{setA, setB}
	assert.Equal(t, map[string]any{
		"$or": []any{
			map[string]any{"key1": map[string]any{"$regex": "value1", "$options": "i"}},
			map[string]any{"key2": map[string]any{"$ne": "value2"}},
		},
	}, group.AsMongoFilter())
}

func TestMatchSetGroup_AsMongoFilter_SingleSetSimplifies(t *testing.T) {
	setA, err := ParseSet([]string{"key1=value1"})
	require.NoError(t, err)

	group := MatchSetGroup{setA}
	assert.Equal(t, map[string]any{
		"key1": map[string]any{"$regex": "value1", "$options": "i"},
	}, group.AsMongoFilter())
}

func TestAsSQLClause_EqLowersToILike(t *testing.T) {
	m, err := Parse("key1=value1")
	require.NoError(t, err)

	clause := m.AsSQLClause(0)
	assert.Equal(t, "key1 ILIKE :p0", clause.Expr)
	assert.Equal(t, "%value1%", clause.Value)
}

func TestMatchSetGroup_AsSQLWhere_OrJoinsSets(t *testing.T) {
	setA, err := ParseSet([]string{"key1=value1"})
	require.NoError(t, err)
	setB, err := ParseSet([]string{"key2!=value2"})
	require.NoError(t, err)

	where, clauses := MatchSetGroup{setA, setB}.AsSQLWhere()
	assert.Equal(t, "key1 ILIKE :p0 OR key2 != :p1", where)
	assert.Len(t, clauses, 2)
}
