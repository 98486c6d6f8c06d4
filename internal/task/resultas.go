package task

// ResultMode names how a task's result is merged into a chain variable.
type ResultMode string

const (
	ResultOverwrite ResultMode = "overwrite"
	ResultAppend    ResultMode = "append"
	ResultExtend    ResultMode = "extend"
	ResultMerge     ResultMode = "merge"
)

// ResultAs names the chain variable a task's result is published to, and
// the mode used to merge it, mirroring spec.md §6's
// `result_as: str | {name, mode}` shape.
type ResultAs struct {
	Name string
	Mode ResultMode
}

// ZeroValue returns the value a chain variable should be pre-initialized
// to before an iterated task's result_as starts accumulating into it,
// mirroring spec.md §4.F's iteration pre-initialization rule.
func (r ResultAs) ZeroValue() any {
	switch r.Mode {
	case ResultAppend, ResultExtend:
		return []any{}
	case ResultMerge:
		return map[string]any{}
	default:
		return nil
	}
}

// parseResultAs normalizes the raw `result_as` config value, which may be
// a bare string (name, implying overwrite) or a {name, mode} map.
func parseResultAs(raw any) *ResultAs {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return &ResultAs{Name: v, Mode: ResultOverwrite}

	case map[string]any:
		name, _ := v["name"].(string)
		if name == "" {
			return nil
		}
		mode := ResultOverwrite
		if m, ok := v["mode"].(string); ok && m != "" {
			mode = ResultMode(m)
		}
		return &ResultAs{Name: name, Mode: mode}

	default:
		return nil
	}
}

// Apply merges result into the current value of a chain variable per r's
// mode, mirroring the original source's on_complete result_as handling.
func (r ResultAs) Apply(current any, result any) any {
	switch r.Mode {
	case ResultAppend:
		list, _ := current.([]any)
		return append(list, result)

	case ResultExtend:
		list, _ := current.([]any)
		if extra, ok := result.([]any); ok {
			return append(list, extra...)
		}
		return append(list, result)

	case ResultMerge:
		merged, _ := current.(map[string]any)
		if merged == nil {
			merged = map[string]any{}
		}
		if extra, ok := result.(map[string]any); ok {
			for k, v := range extra {
				merged[k] = v
			}
		}
		return merged

	default: // ResultOverwrite
		return result
	}
}
