// Package config implements the ambient configuration layer: the
// process-wide Environment singleton exposed to templates as "env.<path>"
// (§4.C, §6), and the Silo catalog of named external-store connection
// descriptors looked up by task kinds (§6).
//
// Grounded on the original source's environment.py (a bare class-level
// singleton) and silos.py (BaseSilo's connection-descriptor shape), but
// constructed explicitly and passed around rather than imported as a bare
// module global, per spec.md §9's guidance on avoiding hidden global state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cloudchain/taskengine/internal/logging"
	"github.com/cloudchain/taskengine/internal/record"
	"gopkg.in/yaml.v3"
)

// ConfigError reports a problem loading or parsing ambient configuration,
// per spec.md §7's "configuration error" taxonomy entry.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Reason
}

// Environment is a process-wide, path-addressed variable store loaded from
// YAML/JSON files, exposed to the interpolator as "env.<path>" (it
// satisfies internal/template.Environment via Walk). Safe for concurrent
// use; by design, once loaded, values are not expected to change during a
// chain's execution, mirroring the original's "loaded once at startup"
// contract.
type Environment struct {
	mu        sync.RWMutex
	variables record.WalkableDict
}

// NewEnvironment returns an empty Environment.
func NewEnvironment() *Environment {
	return &Environment{variables: record.New()}
}

// Walk resolves path against the loaded variables, satisfying
// internal/template.Environment.
func (e *Environment) Walk(path string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.variables.Walk(path)
}

// Get returns the value at name, or def if absent.
func (e *Environment) Get(name string, def any) any {
	if v, ok := e.Walk(name); ok && v != nil {
		return v
	}
	return def
}

// Add sets name to value, but only if it is not already present or
// overwrite is true, mirroring the original's Environment.add.
func (e *Environment) Add(name string, value any, overwrite bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.variables[name]; !exists || overwrite {
		e.variables[name] = value
	}
}

// Remove deletes name and returns its prior value, if any.
func (e *Environment) Remove(name string) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.variables[name]
	delete(e.variables, name)
	return v
}

// Purge clears every loaded variable. Intended for tests, matching the
// original's documented caveat that it is not for production use.
func (e *Environment) Purge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variables = record.New()
}

// Load reads path (.yaml, .yml, or .json) and merges its top-level mapping
// into the environment, overwriting any keys it shares with what is
// already loaded. Mirrors the original's Environment.load, except load
// failures are returned to the caller instead of only being logged — a
// caller that wants best-effort loading can discard the error, but the
// default here is not to hide a missing or malformed file.
func (e *Environment) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Reason: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var loaded map[string]any
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return &ConfigError{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
		}
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, &loaded); err != nil {
			return &ConfigError{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
		}
	default:
		return &ConfigError{Reason: fmt.Sprintf("unsupported file format %q: only .yaml, .yml, and .json are supported", path)}
	}

	e.mu.Lock()
	for k, v := range loaded {
		e.variables[k] = v
	}
	e.mu.Unlock()

	logging.Get().Info("environment: loaded variables", "path", path, "count", len(loaded))
	return nil
}
