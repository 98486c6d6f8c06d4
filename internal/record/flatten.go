package record

import (
	"sort"
	"strconv"
	"strings"
)

// Flatten converts the record into a single-level map keyed by dotted/
// indexed paths, e.g. {"Tags.Name": "web-1", "Volumes[0].SizeGiB": 100}.
func (w WalkableDict) Flatten() map[string]any {
	return w.FlattenWithOptions(false, ".")
}

// FlattenWithOptions is Flatten with explicit preserve_lists/sep control:
// preserveLists keeps list values intact as a single leaf instead of
// expanding them into "[n]"-indexed sub-keys, and sep joins map segments in
// place of the default ".".
func (w WalkableDict) FlattenWithOptions(preserveLists bool, sep string) map[string]any {
	if sep == "" {
		sep = "."
	}
	out := map[string]any{}
	flattenInto(map[string]any(w), "", out, preserveLists, sep)
	return out
}

func flattenInto(v any, prefix string, out map[string]any, preserveLists bool, sep string) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 && prefix != "" {
			out[prefix] = t
			return
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			next := k
			if prefix != "" {
				next = prefix + sep + k
			}
			flattenInto(t[k], next, out, preserveLists, sep)
		}
	case []any:
		if preserveLists || (len(t) == 0 && prefix != "") {
			out[prefix] = t
			return
		}
		for i, item := range t {
			next := prefix + "[" + strconv.Itoa(i) + "]"
			flattenInto(item, next, out, preserveLists, sep)
		}
	default:
		out[prefix] = t
	}
}

// Unflatten rebuilds a nested WalkableDict from a flattened key/value map
// joined with ".".
func Unflatten(flat map[string]any) WalkableDict {
	return UnflattenWithSep(flat, ".")
}

// UnflattenWithSep is Unflatten with an explicit separator: keys are
// rejoined on "." before path resolution, so the existing bracket-index
// parsing in Walk/Assign keeps working unchanged regardless of sep.
func UnflattenWithSep(flat map[string]any, sep string) WalkableDict {
	w := New()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := k
		if sep != "" && sep != "." {
			path = strings.ReplaceAll(k, sep, ".")
		}
		_ = w.Assign(path, flat[k])
	}
	return w
}
