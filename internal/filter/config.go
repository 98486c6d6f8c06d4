// Package filter implements the common user-facing filter model (component
// I): add_keys/matches/sort/limit/exclude_keys/headers/count, gated by an
// `accepted` regex and applied in the fixed order spec.md §6 specifies.
// Grounded on the original source's (commented-out) filters.py BaseFilter/
// DataSetFilter, adapted into an executable Go type instead of the
// reference implementation's disabled scaffold.
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudchain/taskengine/internal/match"
	"github.com/cloudchain/taskengine/internal/record"
)

// Config is a parsed, ready-to-apply filter specification.
type Config struct {
	Accepted    *regexp.Regexp
	AddKeys     []string
	Count       bool
	ExcludeKeys []string
	Headers     []string
	Limit       int
	Matches     match.MatchSetGroup
	Sort        []string
}

// ParseConfig builds a Config from a task's raw (already templated)
// configuration map. Only keys whose name matches the `accepted` pattern
// are honored; everything else defaults to a no-op, mirroring the original
// source's `_if_accepted`.
func ParseConfig(raw map[string]any) (*Config, error) {
	cfg := &Config{}

	pattern, _ := raw["accepted"].(string)
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("filter: invalid accepted pattern %q: %w", pattern, err)
		}
		cfg.Accepted = re
	}

	accepted := func(key string) bool {
		return cfg.Accepted != nil && cfg.Accepted.MatchString(key)
	}

	if accepted("add_keys") {
		cfg.AddKeys = toStringSlice(raw["add_keys"])
	}
	if accepted("exclude_keys") {
		cfg.ExcludeKeys = toStringSlice(raw["exclude_keys"])
	}
	if accepted("headers") {
		cfg.Headers = toStringSlice(raw["headers"])
	}
	if accepted("sort") {
		cfg.Sort = toStringSlice(raw["sort"])
	}
	if accepted("limit") {
		cfg.Limit, _ = toInt(raw["limit"])
	}
	if accepted("count") {
		cfg.Count = toBool(raw["count"])
	}
	if accepted("matches") {
		group, err := parseMatches(raw["matches"])
		if err != nil {
			return nil, err
		}
		cfg.Matches = group
	}

	return cfg, nil
}

// keys returns the final projected key list: headers plus add_keys, minus
// exclude_keys, mirroring the original source's `keys()` property.
func (c *Config) keys() []string {
	excluded := map[string]bool{}
	for _, k := range c.ExcludeKeys {
		excluded[k] = true
	}

	seen := map[string]bool{}
	out := make([]string, 0, len(c.Headers)+len(c.AddKeys))
	for _, k := range append(append([]string{}, c.Headers...), c.AddKeys...) {
		if excluded[k] || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Apply runs the DataSet-dialect pipeline (add_keys → matches → sort →
// limit → exclude_keys → headers → count) over result, returning it
// unmodified if it is not a shape Apply understands. A nil Config (no
// filter configured for the task) is a no-op.
func (c *Config) Apply(result any) any {
	if c == nil {
		return result
	}

	ds, ok := asDataSet(result)
	if !ok {
		return result
	}

	if len(c.AddKeys) > 0 {
		defaults := make(map[string]any, len(c.AddKeys))
		for _, k := range c.AddKeys {
			defaults[k] = nil
		}
		ds.AddKeys(defaults)
	}

	if len(c.Matches) > 0 {
		c.Matches.Filter(ds, false)
	}

	if len(c.Sort) > 0 {
		ds.Sort(parseSortKeys(c.Sort)...)
	}

	if c.Limit > 0 {
		ds.Limit(c.Limit)
	}

	if len(c.ExcludeKeys) > 0 {
		ds.DropKeys(c.ExcludeKeys...)
	}

	if len(c.Headers) > 0 {
		projectKeys(ds, c.keys())
	}

	if c.Count {
		return map[string]any{"count": ds.Len()}
	}

	return ds
}

func parseSortKeys(sort []string) []record.SortKey {
	keys := make([]record.SortKey, 0, len(sort))
	for _, s := range sort {
		if field, direction, found := strings.Cut(s, ":"); found {
			keys = append(keys, record.SortKey{Path: field, Desc: strings.EqualFold(direction, "desc")})
		} else {
			keys = append(keys, record.SortKey{Path: s})
		}
	}
	return keys
}

// projectKeys rewrites every record in ds to contain only the named keys
// (dropping everything else), mirroring the original source's
// `set_keys`/headers stage.
func projectKeys(ds *record.DataSet, keys []string) {
	for i, r := range ds.Records {
		out := record.New()
		for _, k := range keys {
			if v, ok := r.Walk(k); ok {
				_ = out.Assign(k, v)
			}
		}
		ds.Records[i] = out
	}
}

func parseMatches(raw any) (match.MatchSetGroup, error) {
	groups, ok := raw.([]any)
	if !ok {
		return nil, nil
	}

	result := make(match.MatchSetGroup, 0, len(groups))
	for _, g := range groups {
		exprs := toStringSlice(g)
		set, err := match.ParseSet(exprs)
		if err != nil {
			return nil, fmt.Errorf("filter: matches: %w", err)
		}
		result = append(result, set)
	}
	return result, nil
}

func asDataSet(result any) (*record.DataSet, bool) {
	switch v := result.(type) {
	case *record.DataSet:
		return v, true
	case []record.WalkableDict:
		return record.NewDataSet(v...), true
	case []map[string]any:
		recs := make([]record.WalkableDict, len(v))
		for i, m := range v {
			recs[i] = record.WalkableDict(m)
		}
		return record.NewDataSet(recs...), true
	case []any:
		recs := make([]record.WalkableDict, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			recs = append(recs, record.WalkableDict(m))
		}
		return record.NewDataSet(recs...), true
	default:
		return nil, false
	}
}

func toStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	default:
		return false
	}
}
