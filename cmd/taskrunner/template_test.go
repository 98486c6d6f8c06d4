package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAMLTemplate = `
report:
  name: nightly-report
  description: summarizes account inventory
  max_workers: 2
  tasks:
    - dummy:
        name: collect
`

func TestParseTemplateDocument_YAML(t *testing.T) {
	kind, document, err := parseTemplateDocument([]byte(sampleYAMLTemplate), true)
	require.NoError(t, err)
	assert.Equal(t, "report", kind)
	assert.Equal(t, "nightly-report", document["name"])
}

func TestParseTemplateDocument_NoKindFound(t *testing.T) {
	_, _, err := parseTemplateDocument([]byte("{}"), true)
	require.Error(t, err)
}

func TestBuildChainOptions_RequiresName(t *testing.T) {
	_, err := buildChainOptions("report", map[string]any{}, nil, chainDeps{})
	require.Error(t, err)
}

func TestBuildChainOptions_DecodesFields(t *testing.T) {
	_, document, err := parseTemplateDocument([]byte(sampleYAMLTemplate), true)
	require.NoError(t, err)

	opts, err := buildChainOptions("report", document, map[string]any{"region": "us-east-1"}, chainDeps{})
	require.NoError(t, err)

	assert.Equal(t, "nightly-report", opts.Name)
	assert.Equal(t, 2, opts.MaxWorkers)
	assert.Len(t, opts.Tasks, 1)
	assert.Equal(t, "us-east-1", opts.Variables["region"])
}
