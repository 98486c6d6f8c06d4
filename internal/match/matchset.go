package match

import "github.com/cloudchain/taskengine/internal/record"

// MatchSet is a set of Matches combined with AND.
type MatchSet []*Match

// ParseSet parses a list of "key<op>value" expressions into a MatchSet.
func ParseSet(exprs []string) (MatchSet, error) {
	set := make(MatchSet, 0, len(exprs))
	for _, e := range exprs {
		m, err := Parse(e)
		if err != nil {
			return nil, err
		}
		set = append(set, m)
	}
	return set, nil
}

// Evaluate reports whether every Match in the set matches rec.
func (s MatchSet) Evaluate(rec record.WalkableDict) bool {
	for _, m := range s {
		if !m.Evaluate(rec) {
			return false
		}
	}
	return true
}

// MatchSetGroup is a list of MatchSets combined with OR: a record matches
// the group if it matches at least one set.
type MatchSetGroup []MatchSet

// Evaluate reports whether rec matches any set in the group. An empty
// group matches everything, mirroring "no filter supplied".
func (g MatchSetGroup) Evaluate(rec record.WalkableDict) bool {
	if len(g) == 0 {
		return true
	}
	for _, set := range g {
		if set.Evaluate(rec) {
			return true
		}
	}
	return false
}

// Filter keeps the subset of ds.Records that match the group, or the
// subset that does not when invert is true, mirroring match_and_remove's
// invert_results switch.
func (g MatchSetGroup) Filter(ds *record.DataSet, invert bool) {
	ds.MatchAndRemove(invert, func(r record.WalkableDict) bool {
		return g.Evaluate(r)
	})
}
