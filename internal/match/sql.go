package match

import "fmt"

// SQLClause is a single lowered SQL predicate with its bind parameter.
type SQLClause struct {
	// Expr is the SQL text with a single positional bind placeholder (e.g.
	// "key ILIKE :p0"); Name is the bind parameter's generated name and
	// Value is what the caller should bind it to.
	Expr  string
	Name  string
	Value any
}

// sqlOperator maps a Match operator to its SQL comparison operator. "=" is
// handled separately since it lowers to ILIKE rather than a plain operator.
var sqlOperator = map[Operator]string{
	OpEqEq:  "=",
	OpNe:    "!=",
	OpGt:    ">",
	OpGe:    ">=",
	OpGeArr: ">=",
	OpLt:    "<",
	OpLe:    "<=",
	OpLeArr: "<=",
}

// AsSQLClause lowers a single Match into a SQL predicate with a freshly
// generated bind-parameter name, following the original source's
// filters.py SQL lowering: "=" becomes a substring ILIKE and every other
// operator maps directly. seq distinguishes bind names across a MatchSet
// so no two clauses in one statement collide.
func (m *Match) AsSQLClause(seq int) SQLClause {
	name := fmt.Sprintf("p%d", seq)

	if m.Operator == OpEq {
		return SQLClause{
			Expr:  fmt.Sprintf("%s ILIKE :%s", m.Key, name),
			Name:  name,
			Value: "%" + m.Value + "%",
		}
	}

	op := sqlOperator[m.Operator]
	if op == "" {
		op = "="
	}

	return SQLClause{
		Expr:  fmt.Sprintf("%s %s :%s", m.Key, op, name),
		Name:  name,
		Value: m.Value,
	}
}

// AsSQLWhere lowers a MatchSet into an AND-joined WHERE fragment and the
// bind parameters it references, each with a unique generated name.
func (s MatchSet) AsSQLWhere(startSeq int) (string, []SQLClause) {
	clauses := make([]SQLClause, 0, len(s))
	exprs := make([]string, 0, len(s))

	for i, m := range s {
		c := m.AsSQLClause(startSeq + i)
		clauses = append(clauses, c)
		exprs = append(exprs, c.Expr)
	}

	where := ""
	for i, e := range exprs {
		if i > 0 {
			where += " AND "
		}
		where += e
	}

	return where, clauses
}

// AsSQLWhere lowers a MatchSetGroup into an OR-joined WHERE fragment; each
// constituent set is AND-joined internally and parenthesized only when it
// holds more than one match.
func (g MatchSetGroup) AsSQLWhere() (string, []SQLClause) {
	var clauses []SQLClause
	where := ""
	seq := 0

	for i, set := range g {
		setWhere, setClauses := set.AsSQLWhere(seq)
		seq += len(setClauses)
		clauses = append(clauses, setClauses...)

		if i > 0 {
			where += " OR "
		}
		if len(set) > 1 {
			where += "(" + setWhere + ")"
		} else {
			where += setWhere
		}
	}

	return where, clauses
}
