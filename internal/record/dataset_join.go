package record

// Join merges records from other into d wherever leftKey in d equals
// rightKey in other, copying keys from the matched other record under
// prefix (if non-empty) into the left record. A right key already present
// on the left is never overwritten; unmatched left records are kept only
// when keepUnmatched is true (a left/inner join switch).
func (d *DataSet) Join(other *DataSet, leftKey, rightKey, prefix string, keepUnmatched bool) {
	rightIdx := other.BuildIndex(rightKey)

	var out []WalkableDict
	for _, left := range d.Records {
		v, ok := left.Walk(leftKey)
		if !ok {
			if keepUnmatched {
				out = append(out, left)
			}
			continue
		}

		matches := rightIdx.Lookup(castStr(v))
		if len(matches) == 0 {
			if keepUnmatched {
				out = append(out, left)
			}
			continue
		}

		for _, ri := range matches {
			merged := Unflatten(left.Flatten())
			right := other.Records[ri]
			for k, rv := range right.Flatten() {
				dest := k
				if prefix != "" {
					dest = prefix + "." + k
				}
				if _, exists := merged.Walk(dest); !exists {
					_ = merged.Assign(dest, rv)
				}
			}
			out = append(out, merged)
		}
	}

	d.Records = out
}
