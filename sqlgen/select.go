package sqlgen

import (
	"fmt"
	"strings"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
)

// fromClause is the lowered FROM/JOIN chain for one or more MATCH
// clauses, plus every predicate (label, property, relationship type)
// the patterns themselves impose. cte holds a leading `WITH RECURSIVE
// …` block (variable-length patterns only) that must precede the
// SELECT keyword rather than follow it like a normal FROM.
type fromClause struct {
	cte   string
	sql   string
	preds []string
}

// generateSelect lowers a MATCH (…)* RETURN pipeline to one SELECT.
func (g *Generator) generateSelect(matches []*ast.MatchClause, extraWhere []ast.Expression, ret *ast.ReturnClause) (*Result, error) {
	from, err := g.buildFrom(matches)
	if err != nil {
		return nil, err
	}

	var b strings.Builder

	cols, groupBy, hasAgg, err := g.lowerProjection(ret.Items)
	if err != nil {
		return nil, err
	}

	if from.cte != "" {
		b.WriteString(from.cte)
	}

	fmt.Fprintf(&b, "SELECT %s\n%s", strings.Join(cols, ", "), from.sql)

	conds := from.preds
	for _, m := range matches {
		if m.Where != nil {
			c, err := g.lowerExpr(m.Where)
			if err != nil {
				return nil, err
			}

			conds = append(conds, c)
		}
	}

	for _, w := range extraWhere {
		c, err := g.lowerExpr(w)
		if err != nil {
			return nil, err
		}

		conds = append(conds, c)
	}

	if len(conds) > 0 {
		fmt.Fprintf(&b, "\nWHERE %s", strings.Join(conds, " AND "))
	}

	if hasAgg && len(groupBy) > 0 {
		fmt.Fprintf(&b, "\nGROUP BY %s", strings.Join(groupBy, ", "))
	}

	if len(ret.OrderBy) > 0 {
		order, err := g.lowerOrderBy(ret.OrderBy)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&b, "\nORDER BY %s", order)
	}

	if ret.Limit != nil {
		lit, err := g.lowerExpr(ret.Limit)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&b, "\nLIMIT %s", lit)
	}

	if ret.Skip != nil {
		sk, err := g.lowerExpr(ret.Skip)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&b, "\nOFFSET %s", sk)
	}

	return &Result{SQL: b.String(), Params: g.params}, nil
}

// lowerProjection renders every RETURN item as a SQL select-list entry,
// mapping aggregate calls per spec §4.5 (count→COUNT, collect→
// json_group_array, …) and collecting the non-aggregated items as the
// implicit GROUP BY set.
func (g *Generator) lowerProjection(items []ast.ReturnItem) (cols, groupBy []string, hasAgg bool, err error) {
	for _, item := range items {
		if fc, ok := item.Expr.(*ast.FunctionCall); ok && isAggregateName(fc.Name) {
			hasAgg = true
		}
	}

	for _, item := range items {
		var col string

		if fc, ok := item.Expr.(*ast.FunctionCall); ok && isAggregateName(fc.Name) {
			col, err = g.lowerAggregate(fc)
			if err != nil {
				return nil, nil, false, err
			}
		} else if v, ok := item.Expr.(*ast.Variable); ok {
			alias, ok := g.aliases[v.Name]
			if !ok {
				return nil, nil, false, errs.NewUnsupported("reference to unbound variable " + v.Name)
			}

			col = alias + ".*"

			if hasAgg {
				groupBy = append(groupBy, col)
			}
		} else {
			col, err = g.lowerExpr(item.Expr)
			if err != nil {
				return nil, nil, false, err
			}

			if hasAgg {
				groupBy = append(groupBy, col)
			}
		}

		if item.Alias != "" {
			col = fmt.Sprintf("%s AS %s", col, item.Alias)
		}

		cols = append(cols, col)
	}

	return cols, groupBy, hasAgg, nil
}

func isAggregateName(name string) bool {
	switch strings.ToLower(name) {
	case "count", "sum", "avg", "min", "max", "collect":
		return true
	}

	return false
}

func (g *Generator) lowerAggregate(fc *ast.FunctionCall) (string, error) {
	name := strings.ToUpper(fc.Name)
	if strings.EqualFold(fc.Name, "collect") {
		name = "json_group_array"
	}

	var argSQL string

	if len(fc.Args) == 1 {
		if v, ok := fc.Args[0].(*ast.Variable); ok && v.Name == "*" {
			argSQL = "*"
		} else {
			a, err := g.lowerExpr(fc.Args[0])
			if err != nil {
				return "", err
			}

			argSQL = a
		}
	} else {
		argSQL = "*"
	}

	distinct := ""
	if fc.Distinct {
		distinct = "DISTINCT "
	}

	return fmt.Sprintf("%s(%s%s)", name, distinct, argSQL), nil
}

func (g *Generator) lowerOrderBy(items []ast.OrderItem) (string, error) {
	parts := make([]string, len(items))

	for i, item := range items {
		expr, err := g.lowerExpr(item.Expr)
		if err != nil {
			return "", err
		}

		if item.Descending {
			expr += " DESC"
		} else {
			expr += " ASC"
		}

		parts[i] = expr
	}

	return strings.Join(parts, ", "), nil
}

// buildFrom lowers every MATCH clause's pattern into one FROM/JOIN
// chain. A node variable already bound by an earlier clause is not
// re-joined; it's simply referenced by its existing alias, matching
// spec §4.5's "a node appearing in multiple patterns/clauses is emitted
// only once".
func (g *Generator) buildFrom(matches []*ast.MatchClause) (*fromClause, error) {
	for _, m := range matches {
		for _, rp := range m.Pattern.Rels {
			if rp.VarLength {
				if len(matches) != 1 {
					return nil, errs.NewUnsupported("variable-length pattern combined with other MATCH clauses")
				}

				cte, sql, preds, err := g.buildVarLengthFrom(m)
				if err != nil {
					return nil, err
				}

				return &fromClause{cte: cte, sql: sql, preds: preds}, nil
			}
		}
	}

	var b strings.Builder

	var preds []string

	first := true

	for _, m := range matches {
		sql, ps, err := g.buildLinearFrom(m, first)
		if err != nil {
			return nil, err
		}

		if !first {
			b.WriteString("\n")
		}

		b.WriteString(sql)
		preds = append(preds, ps...)
		first = false
	}

	return &fromClause{sql: b.String(), preds: preds}, nil
}

func (g *Generator) buildLinearFrom(m *ast.MatchClause, isFirstClause bool) (string, []string, error) {
	pat := m.Pattern

	var b strings.Builder

	var preds []string

	joinKind := "JOIN"
	if m.Optional {
		joinKind = "LEFT JOIN"
	}

	for i, np := range pat.Nodes {
		_, bound := g.aliases[np.Variable]
		alias := g.aliasFor(np.Variable)

		ps, err := g.nodePredicates(alias, np)
		if err != nil {
			return "", nil, err
		}

		preds = append(preds, ps...)

		if i == 0 {
			if isFirstClause {
				fmt.Fprintf(&b, "FROM nodes AS %s", alias)
			} else if !bound {
				fmt.Fprintf(&b, "%s nodes AS %s ON 1 = 1", joinKind, alias)
			}

			continue
		}

		rp := pat.Rels[i-1]
		prevAlias := g.aliasFor(pat.Nodes[i-1].Variable)
		relAlias := g.aliasFor(rp.Variable)

		on, err := relJoinCondition(rp.Direction, relAlias, prevAlias, alias)
		if err != nil {
			return "", nil, err
		}

		fmt.Fprintf(&b, "\n%s relationships AS %s ON %s", joinKind, relAlias, on)

		rps, err := g.relPredicates(relAlias, rp)
		if err != nil {
			return "", nil, err
		}

		preds = append(preds, rps...)

		// A node already joined under this alias is tied to the
		// relationship by relJoinCondition alone.
		if bound {
			continue
		}

		fmt.Fprintf(&b, "\n%s nodes AS %s ON %s.id = %s", joinKind, alias, alias, endpointExpr(rp.Direction, relAlias))
	}

	return b.String(), preds, nil
}

// relJoinCondition picks the ON-condition for a relationship join
// according to its pattern direction, per spec §4.5.
func relJoinCondition(dir ast.Direction, rel, from, to string) (string, error) {
	switch dir {
	case ast.DirRight:
		return fmt.Sprintf("%s.start_node_id = %s.id AND %s.id = %s.end_node_id", rel, from, to, rel), nil
	case ast.DirLeft:
		return fmt.Sprintf("%s.end_node_id = %s.id AND %s.id = %s.start_node_id", rel, from, to, rel), nil
	case ast.DirNone, ast.DirBoth:
		return fmt.Sprintf(
			"((%s.start_node_id = %s.id AND %s.id = %s.end_node_id) OR (%s.end_node_id = %s.id AND %s.id = %s.start_node_id))",
			rel, from, to, rel, rel, from, to, rel,
		), nil
	default:
		return "", errs.NewUnsupported("relationship direction in SQL generation")
	}
}

// endpointExpr ties the newly joined node back to the relationship row;
// the full two-sided join condition is already emitted by
// relJoinCondition above, so this only needs the one id the new node
// must match.
func endpointExpr(dir ast.Direction, rel string) string {
	switch dir {
	case ast.DirLeft:
		return rel + ".start_node_id"
	default:
		return rel + ".end_node_id"
	}
}

func (g *Generator) nodePredicates(alias string, np ast.NodePattern) ([]string, error) {
	var preds []string

	for _, label := range np.Labels {
		preds = append(preds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(%s.labels) WHERE json_each.value = %s)",
			alias, g.placeholder(label),
		))
	}

	if np.Props != nil {
		for _, entry := range np.Props.Entries {
			lit, err := g.literalValue(entry.Value)
			if err != nil {
				return nil, err
			}

			preds = append(preds, fmt.Sprintf(
				"json_extract(%s.properties, '$.%s') = %s", alias, entry.Key, g.placeholder(lit),
			))
		}
	}

	return preds, nil
}

func (g *Generator) relPredicates(alias string, rp ast.RelationshipPattern) ([]string, error) {
	var preds []string

	switch len(rp.Types) {
	case 0:
	case 1:
		preds = append(preds, fmt.Sprintf("%s.type = %s", alias, g.placeholder(rp.Types[0])))
	default:
		phs := make([]string, len(rp.Types))
		for i, t := range rp.Types {
			phs[i] = g.placeholder(t)
		}

		preds = append(preds, fmt.Sprintf("%s.type IN (%s)", alias, strings.Join(phs, ", ")))
	}

	if rp.Props != nil {
		for _, entry := range rp.Props.Entries {
			lit, err := g.literalValue(entry.Value)
			if err != nil {
				return nil, err
			}

			preds = append(preds, fmt.Sprintf(
				"json_extract(%s.properties, '$.%s') = %s", alias, entry.Key, g.placeholder(lit),
			))
		}
	}

	return preds, nil
}

// literalValue extracts the Go value behind a literal expression, for
// positions (inline pattern properties) where only a literal or
// parameter is syntactically valid.
func (g *Generator) literalValue(e ast.Expression) (any, error) {
	switch v := e.(type) {
	case *ast.IntegerLit:
		return v.Value, nil
	case *ast.FloatLit:
		return v.Value, nil
	case *ast.StringLit:
		return v.Value, nil
	case *ast.BoolLit:
		return v.Value, nil
	case *ast.Parameter:
		pv, ok := g.paramValues[v.Name]
		if !ok {
			return nil, errs.NewUnsupported("unbound parameter $" + v.Name)
		}

		return pv.ToAny(), nil
	default:
		return nil, errs.NewUnsupported("non-literal inline pattern property")
	}
}
