package record

// MathsOp names a supported aggregation function for MathsKeys.
type MathsOp string

const (
	MathsSum MathsOp = "sum"
	MathsAvg MathsOp = "avg"
	MathsMin MathsOp = "min"
	MathsMax MathsOp = "max"
	MathsCnt MathsOp = "count"
)

// MathsKeys computes op over the numeric values at path across all records
// and stores the result in MathsResults under name, mirroring the original
// source's maths_keys/maths_records split between per-key scratch results
// and the record set itself.
func (d *DataSet) MathsKeys(name, path string, op MathsOp) {
	var values []float64
	for _, r := range d.Records {
		v, ok := r.Walk(path)
		if !ok {
			continue
		}
		if f, ok := toFloat(FuzzyCast(v)); ok {
			values = append(values, f)
		}
	}

	if d.MathsResults == nil {
		d.MathsResults = map[string]any{}
	}

	d.MathsResults[name] = aggregate(op, values)
}

func aggregate(op MathsOp, values []float64) any {
	switch op {
	case MathsCnt:
		return len(values)
	case MathsSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case MathsAvg:
		if len(values) == 0 {
			return 0.0
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case MathsMin:
		if len(values) == 0 {
			return nil
		}
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case MathsMax:
		if len(values) == 0 {
			return nil
		}
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	default:
		return nil
	}
}

// MathsReset clears the scratch maths results.
func (d *DataSet) MathsReset() {
	d.MathsResults = map[string]any{}
}
