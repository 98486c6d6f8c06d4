package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func rec(t *testing.T, kv map[string]any) WalkableDict {
	t.Helper()
	w := New()
	for k, v := range kv {
		require.NoError(t, w.Assign(k, v))
	}
	return w
}

func TestSortAscendingNumeric(t *testing.T) {
	ds := NewDataSet(
		rec(t, map[string]any{"n": "10"}),
		rec(t, map[string]any{"n": "2"}),
		rec(t, map[string]any{"n": "33"}),
	)

	ds.Sort(SortKey{Path: "n"})

	var got []any
	for _, r := range ds.Records {
		v, _ := r.Walk("n")
		got = append(got, v)
	}
	require.Equal(t, []any{"2", "10", "33"}, got)
}

func TestLimit(t *testing.T) {
	ds := NewDataSet(rec(t, nil), rec(t, nil), rec(t, nil))
	ds.Limit(2)
	require.Equal(t, 2, ds.Len())
}

func TestUnwindExpandsList(t *testing.T) {
	ds := NewDataSet(rec(t, map[string]any{
		"Name": "r1",
		"Tags": []any{"a", "b"},
	}))

	ds.Unwind("Tags")
	require.Equal(t, 2, ds.Len())
	v0, _ := ds.Records[0].Walk("Tags")
	v1, _ := ds.Records[1].Walk("Tags")
	require.Equal(t, "a", v0)
	require.Equal(t, "b", v1)
}

func TestWindCollapsesBackToList(t *testing.T) {
	ds := NewDataSet(
		rec(t, map[string]any{"Name": "r1", "Tag": "a"}),
		rec(t, map[string]any{"Name": "r1", "Tag": "b"}),
	)
	ds.Wind("Tag")
	require.Equal(t, 1, ds.Len())
	v, _ := ds.Records[0].Walk("Tag")
	require.Equal(t, []any{"a", "b"}, v)
}

func TestJoinMergesMatchedRecords(t *testing.T) {
	left := NewDataSet(rec(t, map[string]any{"id": "1"}))
	right := NewDataSet(rec(t, map[string]any{"id": "1", "name": "widget"}))

	left.Join(right, "id", "id", "joined", true)

	name, ok := left.Records[0].Walk("joined.name")
	require.True(t, ok)
	require.Equal(t, "widget", name)
}

func TestJoinNeverOverwritesAnExistingLeftKey(t *testing.T) {
	left := NewDataSet(rec(t, map[string]any{"id": "1", "name": "left"}))
	right := NewDataSet(rec(t, map[string]any{"id": "1", "name": "right"}))

	left.Join(right, "id", "id", "", true)

	name, ok := left.Records[0].Walk("name")
	require.True(t, ok)
	require.Equal(t, "left", name)
}

func TestMathsKeysSum(t *testing.T) {
	ds := NewDataSet(
		rec(t, map[string]any{"cost": 10.0}),
		rec(t, map[string]any{"cost": 5.0}),
	)
	ds.MathsKeys("total_cost", "cost", MathsSum)
	require.Equal(t, 15.0, ds.MathsResults["total_cost"])
}

func TestRemoveDuplicateRecords(t *testing.T) {
	ds := NewDataSet(
		rec(t, map[string]any{"id": "1"}),
		rec(t, map[string]any{"id": "1"}),
		rec(t, map[string]any{"id": "2"}),
	)
	ds.RemoveDuplicateRecords()
	require.Equal(t, 2, ds.Len())
}

func TestAddRecords_UnwrapsMappingsDataSetsAndSequencesRecursively(t *testing.T) {
	ds := NewDataSet()
	nested := NewDataSet(rec(t, map[string]any{"id": "nested"}))

	ds.AddRecords(
		rec(t, map[string]any{"id": "1"}),
		map[string]any{"id": "2"},
		[]WalkableDict{rec(t, map[string]any{"id": "3"})},
		nested,
		[]any{map[string]any{"id": "4"}, []any{map[string]any{"id": "5"}}},
	)

	require.Equal(t, 6, ds.Len())
	ids := make([]string, 0, ds.Len())
	for _, r := range ds.Records {
		v, _ := r.Walk("id")
		ids = append(ids, castStr(v))
	}
	require.ElementsMatch(t, []string{"1", "2", "3", "nested", "4", "5"}, ids)
}

func TestMatchAndRemove_InvertKeepsNonMatches(t *testing.T) {
	ds := NewDataSet(
		rec(t, map[string]any{"id": "1"}),
		rec(t, map[string]any{"id": "2"}),
	)

	isOne := func(r WalkableDict) bool {
		v, _ := r.Walk("id")
		return v == "1"
	}

	removed := ds.MatchAndRemove(true, isOne)
	require.Len(t, ds.Records, 1)
	id, _ := ds.Records[0].Walk("id")
	require.Equal(t, "2", id)
	require.Len(t, removed, 1)
}

func TestFlattenWithOptions_PreserveListsKeepsListIntact(t *testing.T) {
	w := New()
	require.NoError(t, w.Assign("tags", []any{"a", "b"}))

	flat := w.FlattenWithOptions(true, ".")
	require.Equal(t, []any{"a", "b"}, flat["tags"])
}

func TestFlattenUnflatten_CustomSeparatorRoundTrips(t *testing.T) {
	w := New()
	require.NoError(t, w.Assign("a.b", "x"))

	flat := w.FlattenWithOptions(false, ":")
	require.Equal(t, "x", flat["a:b"])

	back := UnflattenWithSep(flat, ":")
	v, ok := back.Walk("a.b")
	require.True(t, ok)
	require.Equal(t, "x", v)
}

func TestConvertListOfDictToDict(t *testing.T) {
	ds := NewDataSet(rec(t, map[string]any{
		"Tags": []any{
			map[string]any{"Key": "Name", "Value": "web-1"},
		},
	}))
	ds.ConvertListOfDictToDict("Tags", "", "")
	v, ok := ds.Records[0].Walk("Tags.Name")
	require.True(t, ok)
	require.Equal(t, "web-1", v)
}

func TestAddFreshness(t *testing.T) {
	w := rec(t, map[string]any{})
	now, err := time.Parse(time.RFC3339, "2026-07-30T00:00:00Z")
	require.NoError(t, err)
	fr := w.AddFreshness(now, 0, 0)
	require.Equal(t, FreshnessIndeterminate, fr)
}
