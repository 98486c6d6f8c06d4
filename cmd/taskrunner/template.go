package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudchain/taskengine/internal/chain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// chainConfig mirrors the chain-configuration fields of a template file's
// single top-level {kind: {...}} mapping, per spec.md §6.
type chainConfig struct {
	Name              string           `mapstructure:"name"`
	Description       string           `mapstructure:"description"`
	MaxWorkers        int              `mapstructure:"max_workers"`
	IdleRefreshRate   float64          `mapstructure:"idle_refresh_rate"`
	WorkerRefreshRate float64          `mapstructure:"worker_refresh_rate"`
	RequiredVariables []string         `mapstructure:"required_variables"`
	Tasks             []map[string]any `mapstructure:"tasks"`
}

// parseTemplateDocument decodes raw bytes (YAML or JSON, distinguished by
// the caller) into the {kind: {...}} mapping a template file carries, and
// splits it into the chain kind name plus its raw document body.
func parseTemplateDocument(data []byte, isYAML bool) (kind string, document map[string]any, err error) {
	var raw map[string]any
	if isYAML {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return "", nil, fmt.Errorf("parsing template: %w", err)
		}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("parsing template: %w", err)
	}

	for k, v := range raw {
		if strings.HasPrefix(k, ".") {
			continue
		}
		body, ok := v.(map[string]any)
		if !ok {
			return "", nil, fmt.Errorf("template kind %q: expected a mapping body", k)
		}
		return k, body, nil
	}
	return "", nil, fmt.Errorf("template: no chain kind found at top level")
}

// buildChainOptions decodes a template document's body into chain.Options,
// merging in runtime variables (e.g. request parameters) and the shared
// ambient dependencies every chain is constructed with.
func buildChainOptions(kind string, document map[string]any, variables map[string]any, deps chainDeps) (chain.Options, error) {
	var cfg chainConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return chain.Options{}, err
	}
	if err := decoder.Decode(document); err != nil {
		return chain.Options{}, fmt.Errorf("decoding chain config for kind %q: %w", kind, err)
	}
	if cfg.Name == "" {
		return chain.Options{}, fmt.Errorf("chain kind %q: name is required", kind)
	}

	return chain.Options{
		Name:              cfg.Name,
		Kind:              kind,
		Description:       cfg.Description,
		Variables:         variables,
		Tasks:             cfg.Tasks,
		RequiredVariables: cfg.RequiredVariables,
		MaxWorkers:        cfg.MaxWorkers,
		WorkerRefreshRate: secondsToDuration(cfg.WorkerRefreshRate),
		IdleRefreshRate:   secondsToDuration(cfg.IdleRefreshRate),
		Env:               deps.env,
		Silo:              deps.silo,
	}, nil
}
