package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesFilter_AllKeysPresentAndEqual(t *testing.T) {
	data := []byte(`{"region":"us-east-1","event":"created"}`)
	assert.True(t, matchesFilter(data, map[string]any{"region": "us-east-1"}))
	assert.True(t, matchesFilter(data, map[string]any{"region": "us-east-1", "event": "created"}))
}

func TestMatchesFilter_MissingKey(t *testing.T) {
	data := []byte(`{"region":"us-east-1"}`)
	assert.False(t, matchesFilter(data, map[string]any{"event": "created"}))
}

func TestMatchesFilter_MismatchedValue(t *testing.T) {
	data := []byte(`{"region":"us-west-2"}`)
	assert.False(t, matchesFilter(data, map[string]any{"region": "us-east-1"}))
}

func TestMatchesFilter_NonJSONPayloadNeverMatches(t *testing.T) {
	assert.False(t, matchesFilter([]byte("not json"), map[string]any{"region": "us-east-1"}))
}

func TestMatchesFilter_EmptyFilterIsCallerResponsibility(t *testing.T) {
	// matchesFilter itself requires a decodable payload even for an empty
	// filter; Subscriber.handle only calls it when len(Filter) > 0.
	assert.True(t, matchesFilter([]byte(`{}`), map[string]any{}))
}
