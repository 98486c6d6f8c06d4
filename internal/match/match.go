// Package match implements the record matching grammar: single-operator
// comparisons (Match), AND-combined sets of them (MatchSet), and OR-combined
// groups of sets (MatchSetGroup), plus lowering to MongoDB and SQL dialects.
package match

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudchain/taskengine/internal/record"
)

// Operator is one of the comparison operators recognized by the grammar.
type Operator string

const (
	OpEqEq   Operator = "=="
	OpGeArr  Operator = "=>"
	OpGe     Operator = ">="
	OpLe     Operator = "<="
	OpLeArr  Operator = "=<"
	OpNe     Operator = "!="
	OpGt     Operator = ">"
	OpLt     Operator = "<"
	OpEq     Operator = "="
)

// operatorOrder is searched longest-first so that multi-character operators
// (">=", "=>", "<=", "=<", "==", "!=") are recognized before the bare "="
// substring they all contain.
var operatorOrder = []Operator{OpEqEq, OpGe, OpGeArr, OpLe, OpLeArr, OpNe, OpGt, OpLt, OpEq}

// Match is a single "key<operator>value" comparison.
type Match struct {
	Key      string
	Operator Operator
	Value    string
}

// Parse splits expr into a Match by locating the first (leftmost) operator
// from operatorOrder. An expression with no recognized operator is an error.
func Parse(expr string) (*Match, error) {
	bestIdx := -1
	var bestOp Operator

	for _, op := range operatorOrder {
		idx := strings.Index(expr, string(op))
		if idx == -1 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx || (idx == bestIdx && len(op) > len(bestOp)) {
			bestIdx = idx
			bestOp = op
		}
	}

	if bestIdx == -1 {
		return nil, fmt.Errorf("match: no operator found in expression %q", expr)
	}

	return &Match{
		Key:      strings.TrimSpace(expr[:bestIdx]),
		Operator: bestOp,
		Value:    strings.TrimSpace(expr[bestIdx+len(bestOp):]),
	}, nil
}

// Evaluate applies the match against rec, fuzzy-casting both the record
// value and the match's literal value before comparing so that, e.g.,
// numeric strings compare numerically.
func (m *Match) Evaluate(rec record.WalkableDict) bool {
	raw, ok := rec.Walk(m.Key)
	if !ok {
		return false
	}

	if m.Operator == OpEq {
		re, err := regexp.Compile("(?i)" + m.Value)
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprint(raw))
	}

	left := record.FuzzyCast(raw)
	right := record.FuzzyCast(m.Value)

	switch m.Operator {
	case OpEqEq:
		return equalValues(left, right)
	case OpNe:
		return !equalValues(left, right)
	case OpGt:
		c, ok := compare(left, right)
		return ok && c > 0
	case OpGe, OpGeArr:
		c, ok := compare(left, right)
		return ok && c >= 0
	case OpLt:
		c, ok := compare(left, right)
		return ok && c < 0
	case OpLe, OpLeArr:
		c, ok := compare(left, right)
		return ok && c <= 0
	default:
		return false
	}
}

func equalValues(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) (int, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1, true
	case as > bs:
		return 1, true
	default:
		return 0, true
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
