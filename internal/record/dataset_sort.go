package record

import "sort"

// SortKey describes a single sort criterion: the path to compare and
// whether to sort descending.
type SortKey struct {
	Path string
	Desc bool
}

// Sort orders records by the given keys, applying fuzzy-cast comparison so
// numeric-looking strings sort numerically, mirroring the original
// source's sort_records.
func (d *DataSet) Sort(keys ...SortKey) {
	sort.SliceStable(d.Records, func(i, j int) bool {
		for _, k := range keys {
			vi, _ := d.Records[i].Walk(k.Path)
			vj, _ := d.Records[j].Walk(k.Path)

			cmp := compareValues(FuzzyCast(vi), FuzzyCast(vj))
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// compareValues returns -1, 0, or 1 comparing a and b after fuzzy casting.
// Mismatched types fall back to string comparison.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case int:
		if bv, ok := toFloat(b); ok {
			return compareFloat(float64(av), bv)
		}
	case float64:
		if bv, ok := toFloat(b); ok {
			return compareFloat(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return compareBool(av, bv)
		}
	}

	as, bs := castStr(a), castStr(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

// Limit truncates the DataSet to at most n records.
func (d *DataSet) Limit(n int) {
	if n >= 0 && n < len(d.Records) {
		d.Records = d.Records[:n]
	}
}
