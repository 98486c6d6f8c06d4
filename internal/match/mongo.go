package match

// AsMongoMatch lowers a single Match into a field-keyed MongoDB filter
// fragment, following the original source's DataSetMatch.as_mongo_filter:
// "=" becomes a case-insensitive $regex, "==" is plain equality, and the
// ordering/inequality operators map directly onto their Mongo operators.
func (m *Match) AsMongoMatch() map[string]any {
	switch m.Operator {
	case OpEq:
		return map[string]any{
			m.Key: map[string]any{
				"$regex":   m.Value,
				"$options": "i",
			},
		}
	case OpEqEq:
		return map[string]any{m.Key: m.Value}
	case OpNe:
		return map[string]any{m.Key: map[string]any{"$ne": m.Value}}
	case OpGt:
		return map[string]any{m.Key: map[string]any{"$gt": m.Value}}
	case OpGe, OpGeArr:
		return map[string]any{m.Key: map[string]any{"$gte": m.Value}}
	case OpLt:
		return map[string]any{m.Key: map[string]any{"$lt": m.Value}}
	case OpLe, OpLeArr:
		return map[string]any{m.Key: map[string]any{"$lte": m.Value}}
	default:
		return map[string]any{m.Key: m.Value}
	}
}

// AsMongoFilter lowers a MatchSet into an $and-joined filter document,
// collapsing to the lone match's own filter when the set has exactly one
// member (DataSetMatchSet.as_mongo_filter's single-condition simplification).
func (s MatchSet) AsMongoFilter() map[string]any {
	if len(s) == 0 {
		return map[string]any{}
	}
	if len(s) == 1 {
		return s[0].AsMongoMatch()
	}

	clauses := make([]any, 0, len(s))
	for _, m := range s {
		clauses = append(clauses, m.AsMongoMatch())
	}
	return map[string]any{"$and": clauses}
}

// AsMongoFilter lowers a MatchSetGroup into an $or-joined filter document,
// collapsing to the lone set's own filter when the group has exactly one
// member, mirroring build_mongo_matching_syntax's single-condition case.
func (g MatchSetGroup) AsMongoFilter() map[string]any {
	if len(g) == 0 {
		return map[string]any{}
	}
	if len(g) == 1 {
		return g[0].AsMongoFilter()
	}

	ors := make([]any, 0, len(g))
	for _, set := range g {
		ors = append(ors, set.AsMongoFilter())
	}
	return map[string]any{"$or": ors}
}
