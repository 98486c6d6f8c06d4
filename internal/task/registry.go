package task

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cloudchain/taskengine/internal/filter"
	"github.com/cloudchain/taskengine/internal/template"
	"github.com/mitchellh/mapstructure"
)

// Constructor builds a kind-specific Runner from its templated
// configuration map: the value under the kind's key in a task's raw
// configuration (e.g. the body of `dummy:` in `{dummy: {...}}`).
type Constructor func(cfg map[string]any) (Runner, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a task kind constructor under name, overwriting any prior
// registration. Kind packages call this from init(), mirroring the
// original source's plugin Registry.find(category='task').
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

func lookup(name string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[name]
	return ctor, ok
}

// commonFields are the task-level keys every kind's configuration may carry
// alongside its kind-specific fields, per spec.md §6's task-config schema.
type commonFields struct {
	Name        string                      `mapstructure:"name"`
	Blocking    *bool                       `mapstructure:"blocking"`
	Description string                      `mapstructure:"description"`
	Iterate     any                         `mapstructure:"iterate"`
	When        string                      `mapstructure:"when"`
	ResultAs    any                         `mapstructure:"result_as"`
	Retry       RetryPolicy                 `mapstructure:"retry"`
	On          map[string][]map[string]any `mapstructure:"on"`
}

// FromConfig builds a Task from a single-key {kind: config} map, templating
// the configuration against the chain's current variable/item/env/task
// scope first. This mirrors the original source's task_from_dict plus
// replace_variable_path_with_value/walk_and_replace, narrowed to the var./
// item./env./task. grammar internal/template implements.
func FromConfig(raw map[string]any, chain ChainContext, item any) (*Task, error) {
	kind, body, err := splitKind(raw)
	if err != nil {
		return nil, err
	}

	ctx := template.Context{Item: item}
	if chain != nil {
		ctx.Variables = chain.Variables()
		ctx.Env = chain.Env()
		ctx.Task = chain.Snapshot()
	}

	templated, _ := template.WalkAndReplace(body, ctx).(map[string]any)
	if templated == nil {
		templated = map[string]any{}
	}

	var common commonFields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &common,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	if err := decoder.Decode(templated); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("decoding task fields: %v", err)}
	}

	ctor, ok := lookup(kind)
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown task kind %q", kind)}
	}

	runner, err := ctor(templated)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("constructing task kind %q: %v", kind, err)}
	}

	name := common.Name
	if name == "" {
		name = kind
	}

	t := New(name, chain)
	t.Blocking = common.Blocking == nil || *common.Blocking
	t.Description = common.Description
	t.Iterate = common.Iterate
	t.On = common.On
	t.When = common.When
	t.ResultAs = parseResultAs(common.ResultAs)
	t.Retry = common.Retry
	t.OriginalConfig = map[string]any{kind: body}
	t.Runner = runner

	if filterCfg, ferr := filter.ParseConfig(templated); ferr == nil && filterCfg.Accepted != nil {
		t.Filters = filterCfg
	}

	return t, nil
}

// splitKind extracts the first key in raw that does not begin with '.'
// (the original source reserves '.'-prefixed keys for YAML anchors and
// chain metadata) and returns its body as a map.
func splitKind(raw map[string]any) (string, map[string]any, error) {
	for k, v := range raw {
		if strings.HasPrefix(k, ".") {
			continue
		}
		body, _ := v.(map[string]any)
		if body == nil {
			body = map[string]any{}
		}
		return k, body, nil
	}
	return "", nil, &ConfigError{Reason: "no task kind found in task configuration"}
}
