package kinds

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudchain/taskengine/internal/match"
	"github.com/cloudchain/taskengine/internal/record"
	"github.com/cloudchain/taskengine/internal/task"
)

func init() {
	task.Register("dataset", newDataSetRunner)
}

// stage is one {function_name: {args}} entry from a dataset task's
// `stages` list, mirroring the original source's DataSetTask.method loop.
type stage struct {
	name string
	args map[string]any
}

type datasetRunner struct {
	data   *record.DataSet
	stages []stage
}

func newDataSetRunner(cfg map[string]any) (task.Runner, error) {
	ds, err := toDataSet(cfg["data"])
	if err != nil {
		return nil, err
	}

	rawStages, _ := cfg["stages"].([]any)
	stages := make([]stage, 0, len(rawStages))
	for _, rs := range rawStages {
		m, ok := rs.(map[string]any)
		if !ok {
			continue
		}
		for name, args := range m {
			argsMap, _ := args.(map[string]any)
			stages = append(stages, stage{name: name, args: argsMap})
			break
		}
	}

	return &datasetRunner{data: ds, stages: stages}, nil
}

// Method applies each configured stage to the task's DataSet in order,
// mirroring DataSetTask.method; the task's own filter pipeline (if
// configured) runs afterward via the lifecycle's Filters.Apply.
func (r *datasetRunner) Method(ctx context.Context, t *task.Task) (any, error) {
	for i, s := range r.stages {
		if err := applyStage(r.data, s); err != nil {
			return nil, fmt.Errorf("dataset: stage %d (%s): %w", i+1, s.name, err)
		}
	}
	return r.data, nil
}

func applyStage(ds *record.DataSet, s stage) error {
	switch s.name {
	case "sort_records":
		ds.Sort(parseSortKeys(stringSlice(s.args["keys"]))...)

	case "limit":
		n, _ := toInt(s.args["n"])
		ds.Limit(n)

	case "add_keys":
		defaults := map[string]any{}
		for _, k := range stringSlice(s.args["keys"]) {
			defaults[k] = nil
		}
		ds.AddKeys(defaults)

	case "drop_keys", "exclude_keys":
		ds.DropKeys(stringSlice(s.args["keys"])...)

	case "copy_key":
		src, _ := s.args["src"].(string)
		dest, _ := s.args["dest"].(string)
		ds.CopyKey(src, dest)

	case "rename_keys":
		mapping := map[string]string{}
		if m, ok := s.args["mapping"].(map[string]any); ok {
			for k, v := range m {
				mapping[k] = fmt.Sprint(v)
			}
		}
		ds.RenameKeys(mapping)

	case "cast_key":
		path, _ := s.args["path"].(string)
		typeof, _ := s.args["type"].(string)
		dst, _ := s.args["dst"].(string)
		ds.CastKey(path, typeof, dst)

	case "create_key_from_keys":
		dest, _ := s.args["dest"].(string)
		sep, _ := s.args["sep"].(string)
		ds.CreateKeyFromKeys(dest, stringSlice(s.args["source_keys"]), sep)

	case "title_keys":
		ds.TitleKeys()

	case "remove_duplicate_records":
		ds.RemoveDuplicateRecords()

	case "convert_list_of_dict_to_dict":
		path, _ := s.args["path"].(string)
		keyName, _ := s.args["key_name"].(string)
		valueName, _ := s.args["value_name"].(string)
		ds.ConvertListOfDictToDict(path, keyName, valueName)

	case "convert_list_to_string":
		path, _ := s.args["path"].(string)
		sep, _ := s.args["sep"].(string)
		ds.ConvertListToString(path, sep)

	case "convert_string_to_list":
		path, _ := s.args["path"].(string)
		sep, _ := s.args["sep"].(string)
		ds.ConvertStringToList(path, sep)

	case "unwind":
		path, _ := s.args["path"].(string)
		ds.Unwind(path)

	case "wind":
		path, _ := s.args["path"].(string)
		ds.Wind(path)

	case "maths_keys":
		name, _ := s.args["name"].(string)
		path, _ := s.args["path"].(string)
		op, _ := s.args["op"].(string)
		ds.MathsKeys(name, path, record.MathsOp(op))

	case "match_and_remove":
		group, err := parseStageMatches(s.args["matches"])
		if err != nil {
			return err
		}
		invert, _ := s.args["invert"].(bool)
		group.Filter(ds, invert)

	default:
		return fmt.Errorf("unknown dataset stage %q", s.name)
	}

	return nil
}

func parseStageMatches(raw any) (match.MatchSetGroup, error) {
	groups, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	result := make(match.MatchSetGroup, 0, len(groups))
	for _, g := range groups {
		set, err := match.ParseSet(stringSlice(g))
		if err != nil {
			return nil, err
		}
		result = append(result, set)
	}
	return result, nil
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

func toDataSet(raw any) (*record.DataSet, error) {
	switch v := raw.(type) {
	case nil:
		return record.NewDataSet(), nil
	case []any:
		recs := make([]record.WalkableDict, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("dataset: record %v is not an object", item)
			}
			recs = append(recs, record.WalkableDict(m))
		}
		return record.NewDataSet(recs...), nil
	default:
		return nil, fmt.Errorf("dataset: unsupported data shape %T", raw)
	}
}

func stringSlice(v any) []string {
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
