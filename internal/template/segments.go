package template

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cloudchain/taskengine/internal/record"
)

// segment is one step of a parsed reference path: either a map key/special
// name or a list index.
type segment struct {
	key     string
	index   int
	isIndex bool
}

// parseSegments splits a dotted/bracketed path tail (e.g. "user.name",
// "tags[0].upper") into segments. An empty tail yields no segments, meaning
// the reference resolves to the root object itself.
func parseSegments(tail string) []segment {
	if tail == "" {
		return nil
	}

	var segs []segment
	for _, part := range strings.Split(tail, ".") {
		if part == "" {
			continue
		}
		segs = append(segs, splitIndices(part)...)
	}
	return segs
}

func splitIndices(part string) []segment {
	var segs []segment

	for len(part) > 0 {
		bracket := strings.IndexByte(part, '[')
		if bracket == -1 {
			segs = append(segs, segment{key: part})
			return segs
		}
		if bracket > 0 {
			segs = append(segs, segment{key: part[:bracket]})
		}

		end := strings.IndexByte(part[bracket:], ']')
		if end == -1 {
			segs = append(segs, segment{key: part[bracket:]})
			return segs
		}
		end += bracket

		idxStr := part[bracket+1 : end]
		if n, err := strconv.Atoi(idxStr); err == nil {
			segs = append(segs, segment{index: n, isIndex: true})
		} else {
			segs = append(segs, segment{key: idxStr})
		}

		part = part[end+1:]
	}

	return segs
}

// textFilters are terminal segment names that apply a zero-arg string
// transformation to the current value rather than descending into it,
// mirroring the original source's trailing string-method segments.
var textFilters = map[string]func(string) string{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": strings.Title, //nolint:staticcheck // matches original source casing semantics, not Unicode-aware title casing
	"strip": strings.TrimSpace,
}

// walkGeneric descends obj following segs, handling plain maps, lists, and
// the small set of reflection-like terminal segments the original source
// exposes ("keys", "values", "value", and zero-arg string methods like
// "upper").
func walkGeneric(obj any, segs []segment) (any, bool) {
	cur := obj

	for _, seg := range segs {
		if seg.isIndex {
			list, ok := toSlice(cur)
			if !ok || seg.index < 0 || seg.index >= len(list) {
				return nil, false
			}
			cur = list[seg.index]
			continue
		}

		switch seg.key {
		case "value":
			continue

		case "keys":
			m, ok := toMap(cur)
			if !ok {
				return nil, false
			}
			cur = sortedKeys(m)
			continue

		case "values":
			m, ok := toMap(cur)
			if !ok {
				return nil, false
			}
			keys := sortedKeys(m)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = m[k.(string)]
			}
			cur = out
			continue
		}

		if fn, ok := textFilters[seg.key]; ok {
			if s, isStr := cur.(string); isStr {
				cur = fn(s)
				continue
			}
			return nil, false
		}

		m, ok := toMap(cur)
		if !ok {
			return nil, false
		}
		val, exists := m[seg.key]
		if !exists {
			return nil, false
		}
		cur = val
	}

	return cur, true
}

func toMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case record.WalkableDict:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []record.WalkableDict:
		out := make([]any, len(t))
		for i, r := range t {
			out[i] = r
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
