package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignCreatesIntermediateMaps(t *testing.T) {
	w := New()
	err := w.Assign("a.b.c", 42)
	require.NoError(t, err)

	v, ok := w.Walk("a.b.c")
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestAssignCreatesIntermediateLists(t *testing.T) {
	w := New()
	err := w.Assign("items[2].name", "third")
	require.NoError(t, err)

	v, ok := w.Walk("items[2].name")
	require.True(t, ok)
	require.Equal(t, "third", v)
}

func TestWalkMissingPath(t *testing.T) {
	w := New()
	_, ok := w.Walk("missing.path")
	require.False(t, ok)
}

func TestDropRemovesValue(t *testing.T) {
	w := New()
	_ = w.Assign("a.b", "x")
	prior, ok := w.Drop("a.b")
	require.True(t, ok)
	require.Equal(t, "x", prior)
	_, ok = w.Walk("a.b")
	require.False(t, ok)
}

func TestDropMissingPathReturnsFalse(t *testing.T) {
	w := New()
	prior, ok := w.Drop("nope.nope")
	require.False(t, ok)
	require.Nil(t, prior)
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	w := New()
	_ = w.Assign("Tags.Name", "web-1")
	_ = w.Assign("Volumes[0].SizeGiB", 100)
	_ = w.Assign("Volumes[1].SizeGiB", 200)

	flat := w.Flatten()
	require.Equal(t, "web-1", flat["Tags.Name"])
	require.Equal(t, 100, flat["Volumes[0].SizeGiB"])

	rebuilt := Unflatten(flat)
	v, ok := rebuilt.Walk("Volumes[1].SizeGiB")
	require.True(t, ok)
	require.Equal(t, 200, v)
}
