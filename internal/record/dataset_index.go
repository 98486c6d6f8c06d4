package record

// Index is a secondary index mapping a key's value to the record indexes
// that hold it, used to speed up repeated lookups during joins.
type Index struct {
	Path  string
	byKey map[string][]int
}

// BuildIndex constructs a secondary index over path.
func (d *DataSet) BuildIndex(path string) *Index {
	idx := &Index{Path: path, byKey: map[string][]int{}}
	for i, r := range d.Records {
		if v, ok := r.Walk(path); ok {
			key := castStr(v)
			idx.byKey[key] = append(idx.byKey[key], i)
		}
	}
	return idx
}

// Lookup returns the record positions whose value at Path equals key.
func (idx *Index) Lookup(key string) []int {
	return idx.byKey[key]
}

// MatchAndRemove removes and returns every record for which keep returns
// false, mirroring match_and_remove's split-by-predicate behavior. When
// invert is true the predicate's sense is flipped, so records that match
// are the ones removed instead of kept.
func (d *DataSet) MatchAndRemove(invert bool, keep func(WalkableDict) bool) []WalkableDict {
	var kept, removed []WalkableDict
	for _, r := range d.Records {
		if keep(r) != invert {
			kept = append(kept, r)
		} else {
			removed = append(removed, r)
		}
	}
	d.Records = kept
	return removed
}
