package record

// DataSet is an ordered sequence of records (WalkableDict) with a scratch
// "maths" area used by arithmetic aggregation operations, mirroring the
// original source's DataSet/maths_results split.
type DataSet struct {
	Records      []WalkableDict
	MathsResults map[string]any
}

// NewDataSet wraps records into a DataSet.
func NewDataSet(records ...WalkableDict) *DataSet {
	return &DataSet{Records: records, MathsResults: map[string]any{}}
}

// Len returns the number of records.
func (d *DataSet) Len() int { return len(d.Records) }

// AddRecords appends each of items to the set, recursively unwrapping any
// mapping, *DataSet, or sequence of those into its constituent records, per
// add_records's "accepts a mapping, a DataSet, or a sequence thereof;
// unwraps recursively" contract.
func (d *DataSet) AddRecords(items ...any) {
	for _, item := range items {
		d.addRecord(item)
	}
}

func (d *DataSet) addRecord(item any) {
	switch v := item.(type) {
	case WalkableDict:
		d.Records = append(d.Records, v)
	case map[string]any:
		d.Records = append(d.Records, WalkableDict(v))
	case *DataSet:
		for _, r := range v.Records {
			d.addRecord(r)
		}
	case []WalkableDict:
		for _, r := range v {
			d.addRecord(r)
		}
	case []map[string]any:
		for _, r := range v {
			d.addRecord(r)
		}
	case []any:
		for _, r := range v {
			d.addRecord(r)
		}
	}
}

// RemoveRecord removes the record at index i.
func (d *DataSet) RemoveRecord(i int) {
	if i < 0 || i >= len(d.Records) {
		return
	}
	d.Records = append(d.Records[:i], d.Records[i+1:]...)
}

// CopyRecord returns a deep-ish copy of the record at index i (flatten then
// unflatten, which also normalizes nested map/slice sharing).
func (d *DataSet) CopyRecord(i int) WalkableDict {
	return Unflatten(d.Records[i].Flatten())
}

// Flatten flattens every record in place using "." as the path separator
// and expanding lists into "[n]"-indexed keys.
func (d *DataSet) Flatten() {
	d.FlattenWithOptions(false, ".")
}

// FlattenWithOptions is Flatten with explicit preserve_lists/sep control,
// mirroring flatten(preserve_lists, sep).
func (d *DataSet) FlattenWithOptions(preserveLists bool, sep string) {
	for i, r := range d.Records {
		flat := r.FlattenWithOptions(preserveLists, sep)
		d.Records[i] = WalkableDict(flat)
	}
}

// Unflatten unflattens every record in place (inverse of Flatten) using "."
// as the path separator.
func (d *DataSet) Unflatten() {
	d.UnflattenWithSep(".")
}

// UnflattenWithSep is Unflatten with an explicit separator, mirroring
// unflatten(sep).
func (d *DataSet) UnflattenWithSep(sep string) {
	for i, r := range d.Records {
		d.Records[i] = UnflattenWithSep(map[string]any(r), sep)
	}
}
