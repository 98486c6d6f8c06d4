package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCastKey_InPlaceWhenNoDst(t *testing.T) {
	ds := NewDataSet(rec(t, map[string]any{"count": "3"}))
	ds.CastKey("count", "int", "")

	v, ok := ds.Records[0].Walk("count")
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestCastKey_WritesToDstWhenGiven(t *testing.T) {
	ds := NewDataSet(rec(t, map[string]any{"count": "3"}))
	ds.CastKey("count", "int", "count_int")

	original, ok := ds.Records[0].Walk("count")
	require.True(t, ok)
	require.Equal(t, "3", original)

	cast, ok := ds.Records[0].Walk("count_int")
	require.True(t, ok)
	require.Equal(t, 3, cast)
}
