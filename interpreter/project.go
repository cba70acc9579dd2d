package interpreter

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/record"
	"github.com/cyphersql/cyphersql/value"
)

// projectRows evaluates items against every row, grouping by the
// non-aggregated items when any item contains an aggregate function
// anywhere in its expression tree (spec §4.4's RETURN/WITH aggregation,
// mirrored from sqlgen's GROUP BY lowering of the same rule).
func (in *Interpreter) projectRows(rows RowSet, items []ast.ReturnItem) ([]string, []Row, error) {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = keyFor(item)
	}

	hasAgg := false

	for _, item := range items {
		if containsAggregateAnywhere(item.Expr) {
			hasAgg = true
			break
		}
	}

	if !hasAgg {
		out := make([]Row, 0, len(rows))

		for _, row := range rows {
			nr := make(Row, len(items))

			for i, item := range items {
				v, err := in.eval(row, item.Expr)
				if err != nil {
					return nil, nil, err
				}

				nr[keys[i]] = v
			}

			out = append(out, nr)
		}

		return keys, out, nil
	}

	grouped, err := in.projectGrouped(rows, items, keys)
	if err != nil {
		return nil, nil, err
	}

	return keys, grouped, nil
}

// projectGrouped is the grouped-aggregation path, split out of
// projectRows to keep the common ungrouped path simple.
func (in *Interpreter) projectGrouped(rows RowSet, items []ast.ReturnItem, keys []string) ([]Row, error) {
	type group struct {
		keyRow Row
		rows   []Row
	}

	var order []string

	groups := map[string]*group{}

	for _, row := range rows {
		keyRow := make(Row)

		var parts []string

		for i, item := range items {
			if containsAggregateAnywhere(item.Expr) {
				continue
			}

			v, err := in.eval(row, item.Expr)
			if err != nil {
				return nil, err
			}

			keyRow[keys[i]] = v
			parts = append(parts, keys[i]+"="+v.hashKey())
		}

		gk := strings.Join(parts, "|")

		g, ok := groups[gk]
		if !ok {
			g = &group{keyRow: keyRow}
			groups[gk] = g
			order = append(order, gk)
		}

		g.rows = append(g.rows, row)
	}

	if len(order) == 0 {
		anyPlain := false

		for _, item := range items {
			if !containsAggregateAnywhere(item.Expr) {
				anyPlain = true
			}
		}

		if !anyPlain {
			order = append(order, "")
			groups[""] = &group{keyRow: Row{}}
		}
	}

	out := make([]Row, 0, len(order))

	for _, gk := range order {
		g := groups[gk]
		nr := make(Row, len(items))

		for i, item := range items {
			if fc, ok := isAggregateCall(item.Expr); ok {
				v, err := in.computeAggregate(fc, g.rows)
				if err != nil {
					return nil, err
				}

				nr[keys[i]] = v

				continue
			}

			if containsAggregateAnywhere(item.Expr) {
				return nil, errs.NewUnsupported("aggregate nested inside expression " + keys[i])
			}

			nr[keys[i]] = g.keyRow[keys[i]]
		}

		out = append(out, nr)
	}

	return out, nil
}

func (in *Interpreter) toOutput(b rt) (any, error) {
	switch b.kind {
	case rtNode:
		n, err := in.store.GetNode(b.nodeID)
		if err != nil {
			return nil, err
		}

		return record.NodeFromStore(n), nil

	case rtRel:
		r, err := in.store.GetRelationship(b.relID)
		if err != nil {
			return nil, err
		}

		return record.RelationshipFromStore(r), nil

	case rtScalar:
		return b.scalar.ToAny(), nil

	default:
		return nil, nil
	}
}

func (in *Interpreter) execReturn(rows RowSet, c *ast.ReturnClause) ([]string, [][]any, error) {
	keys, projected, err := in.projectRows(rows, c.Items)
	if err != nil {
		return nil, nil, err
	}

	if c.Distinct {
		projected = dedupeRows(projected)
	}

	if len(c.OrderBy) > 0 {
		if err := in.sortRows(projected, c.OrderBy); err != nil {
			return nil, nil, err
		}
	}

	projected, err = in.applySkipLimit(projected, c.Skip, c.Limit)
	if err != nil {
		return nil, nil, err
	}

	records := make([][]any, len(projected))

	for i, row := range projected {
		rec := make([]any, len(keys))

		for j, k := range keys {
			v, err := in.toOutput(row[k])
			if err != nil {
				return nil, nil, err
			}

			rec[j] = v
		}

		records[i] = rec
	}

	return keys, records, nil
}

func keyFor(item ast.ReturnItem) string {
	if item.Alias != "" {
		return item.Alias
	}

	return exprLiteralForm(item.Expr)
}

func exprLiteralForm(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.Variable:
		return v.Name
	case *ast.PropertyAccess:
		return exprLiteralForm(v.Base) + "." + strings.Join(v.Path, ".")
	case *ast.FunctionCall:
		parts := make([]string, len(v.Args))
		for i, a := range v.Args {
			parts[i] = exprLiteralForm(a)
		}

		prefix := ""
		if v.Distinct {
			prefix = "DISTINCT "
		}

		return v.Name + "(" + prefix + strings.Join(parts, ", ") + ")"
	case *ast.IntegerLit:
		return strconv.FormatInt(v.Value, 10)
	case *ast.StringLit:
		return v.Value
	case *ast.BoolLit:
		return strconv.FormatBool(v.Value)
	default:
		return "expr"
	}
}

func (in *Interpreter) sortRows(rows []Row, orderBy []ast.OrderItem) error {
	var sortErr error

	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range orderBy {
			vi, err := in.eval(rows[i], ord.Expr)
			if err != nil {
				sortErr = err
				return false
			}

			vj, err := in.eval(rows[j], ord.Expr)
			if err != nil {
				sortErr = err
				return false
			}

			cmp, err := compareRt(vi, vj)
			if err != nil {
				sortErr = err
				return false
			}

			if cmp == 0 {
				continue
			}

			if ord.Descending {
				return cmp > 0
			}

			return cmp < 0
		}

		return false
	})

	return sortErr
}

// compareRt orders null above every non-null value, so nulls sort last
// under ASC and first under DESC, matching Neo4j's behaviour.
func compareRt(a, b rt) (int, error) {
	if a.kind == rtNull && b.kind == rtNull {
		return 0, nil
	}

	if a.kind == rtNull {
		return 1, nil
	}

	if b.kind == rtNull {
		return -1, nil
	}

	return compareValues(a.toValue(), b.toValue())
}

func compareValues(a, b value.Value) (int, error) {
	if isNumeric(a) && isNumeric(b) {
		af, _ := numericOf(a)
		bf, _ := numericOf(b)

		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	if a.Kind == value.KindString && b.Kind == value.KindString {
		return strings.Compare(a.Str, b.Str), nil
	}

	return 0, errs.NewTypeError("cannot compare values of kind %v and %v", a.Kind, b.Kind)
}

func isNumeric(v value.Value) bool {
	return v.Kind == value.KindInt || v.Kind == value.KindFloat
}

func numericOf(v value.Value) (float64, error) {
	switch v.Kind {
	case value.KindInt:
		return float64(v.Int), nil
	case value.KindFloat:
		return v.Flt, nil
	}

	return 0, errs.NewTypeError("expected a numeric value, got %v", v.Kind)
}

// applySkipLimit evaluates skip/limit against an empty row: per Cypher
// grammar these may only be literals or parameters, never row
// variables.
func (in *Interpreter) applySkipLimit(rows []Row, skipExpr, limitExpr ast.Expression) ([]Row, error) {
	start := 0

	if skipExpr != nil {
		v, err := in.eval(Row{}, skipExpr)
		if err != nil {
			return nil, err
		}

		n, err := intOf(v.toValue())
		if err != nil {
			return nil, err
		}

		start = int(n)
		if start > len(rows) {
			start = len(rows)
		}

		if start < 0 {
			start = 0
		}
	}

	rows = rows[start:]

	if limitExpr != nil {
		v, err := in.eval(Row{}, limitExpr)
		if err != nil {
			return nil, err
		}

		n, err := intOf(v.toValue())
		if err != nil {
			return nil, err
		}

		if n < 0 {
			n = 0
		}

		if int(n) < len(rows) {
			rows = rows[:n]
		}
	}

	return rows, nil
}

func intOf(v value.Value) (int64, error) {
	if v.Kind != value.KindInt {
		return 0, errs.NewTypeError("SKIP/LIMIT requires an integer")
	}

	return v.Int, nil
}
