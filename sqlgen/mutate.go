package sqlgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
)

// generateCreate lowers a CREATE pattern to a sequence of INSERTs,
// joined into one string with `;\n`. A relationship references its
// endpoints by their insertion order rather than a captured id — under
// the single-threaded cooperative model (spec §5) nothing else inserts
// between these statements, so "the Nth most recently inserted node" is
// unambiguous.
func (g *Generator) generateCreate(c *ast.CreateClause) (*Result, error) {
	pat := c.Pattern
	n := len(pat.Nodes)

	var stmts []string

	for _, np := range pat.Nodes {
		labelsJSON, err := json.Marshal(np.Labels)
		if err != nil {
			return nil, errs.NewTypeError("encoding labels: %v", err)
		}

		props, err := g.literalPropsMap(np.Props)
		if err != nil {
			return nil, err
		}

		propsJSON, err := json.Marshal(props)
		if err != nil {
			return nil, errs.NewTypeError("encoding properties: %v", err)
		}

		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO nodes(labels, properties, created_at, updated_at) VALUES (%s, %s, datetime('now'), datetime('now'))",
			g.placeholder(string(labelsJSON)), g.placeholder(string(propsJSON)),
		))
	}

	for i, rp := range pat.Rels {
		if len(rp.Types) != 1 {
			return nil, errs.NewUnsupported("CREATE relationship without exactly one type")
		}

		fromOffset, toOffset := n-1-i, n-1-(i+1)
		if rp.Direction == ast.DirLeft {
			fromOffset, toOffset = toOffset, fromOffset
		}

		props, err := g.literalPropsMap(rp.Props)
		if err != nil {
			return nil, err
		}

		propsJSON, err := json.Marshal(props)
		if err != nil {
			return nil, errs.NewTypeError("encoding properties: %v", err)
		}

		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO relationships(type, start_node_id, end_node_id, properties, created_at)\n"+
				"SELECT %s, s.id, e.id, %s, datetime('now')\n"+
				"FROM (SELECT id FROM nodes ORDER BY id DESC LIMIT 1 OFFSET %d) AS s,\n"+
				"     (SELECT id FROM nodes ORDER BY id DESC LIMIT 1 OFFSET %d) AS e",
			g.placeholder(rp.Types[0]), g.placeholder(string(propsJSON)), fromOffset, toOffset,
		))
	}

	return &Result{SQL: strings.Join(stmts, ";\n"), Params: g.params}, nil
}

// literalPropsMap extracts a property map's literal values. Inline
// pattern properties must be literals or bound parameters, never
// expressions requiring row context — there is no row yet for a CREATE.
func (g *Generator) literalPropsMap(m *ast.MapLiteral) (map[string]any, error) {
	props := map[string]any{}

	if m == nil {
		return props, nil
	}

	for _, entry := range m.Entries {
		v, err := g.literalValue(entry.Value)
		if err != nil {
			return nil, err
		}

		props[entry.Key] = v
	}

	return props, nil
}

// generateMerge lowers the core "insert if not already present" shape
// spec §4.5 names for MERGE. Scoped to a single-node pattern — the
// common `MERGE (n:Label {prop: val})` shape — and to the match/create
// insert itself; ON CREATE/ON MATCH SET items are handled by the
// interpreter and aren't folded into this statement, since doing so
// would turn one conditional insert into a conditional insert-or-update
// requiring per-branch CASE logic the spec doesn't lay out.
func (g *Generator) generateMerge(m *ast.MergeClause) (*Result, error) {
	if len(m.Pattern.Nodes) != 1 || len(m.Pattern.Rels) != 0 {
		return nil, errs.NewUnsupported("MERGE on a multi-node pattern")
	}

	np := m.Pattern.Nodes[0]
	alias := g.newAlias()

	preds, err := g.nodePredicates(alias, np)
	if err != nil {
		return nil, err
	}

	labelsJSON, err := json.Marshal(np.Labels)
	if err != nil {
		return nil, errs.NewTypeError("encoding labels: %v", err)
	}

	props, err := g.literalPropsMap(np.Props)
	if err != nil {
		return nil, err
	}

	propsJSON, err := json.Marshal(props)
	if err != nil {
		return nil, errs.NewTypeError("encoding properties: %v", err)
	}

	whereNot := "1 = 1"
	if len(preds) > 0 {
		whereNot = strings.Join(preds, " AND ")
	}

	sql := fmt.Sprintf(
		"INSERT INTO nodes(labels, properties, created_at, updated_at)\n"+
			"SELECT %s, %s, datetime('now'), datetime('now')\n"+
			"WHERE NOT EXISTS (SELECT 1 FROM nodes AS %s WHERE %s)",
		g.placeholder(string(labelsJSON)), g.placeholder(string(propsJSON)), alias, whereNot,
	)

	return &Result{SQL: sql, Params: g.params}, nil
}

// generateDelete compiles the surrounding MATCH into a subquery
// selecting the target variable's id, then deletes by id. Scoped to a
// single DELETE target, the common case and the one spec §8 scenarios
// exercise.
func (g *Generator) generateDelete(matches []*ast.MatchClause, extraWhere []ast.Expression, d *ast.DeleteClause) (*Result, error) {
	if len(d.Expressions) != 1 {
		return nil, errs.NewUnsupported("DELETE with more than one target expression")
	}

	v, ok := d.Expressions[0].(*ast.Variable)
	if !ok {
		return nil, errs.NewUnsupported("DELETE of a non-variable expression")
	}

	from, err := g.buildFrom(matches)
	if err != nil {
		return nil, err
	}

	alias, ok := g.aliases[v.Name]
	if !ok {
		return nil, errs.NewUnsupported("DELETE of an unbound variable")
	}

	conds := from.preds

	for _, m := range matches {
		if m.Where == nil {
			continue
		}

		c, err := g.lowerExpr(m.Where)
		if err != nil {
			return nil, err
		}

		conds = append(conds, c)
	}

	for _, w := range extraWhere {
		c, err := g.lowerExpr(w)
		if err != nil {
			return nil, err
		}

		conds = append(conds, c)
	}

	var sub strings.Builder

	if from.cte != "" {
		sub.WriteString(from.cte)
	}

	fmt.Fprintf(&sub, "SELECT %s.id\n%s", alias, from.sql)

	if len(conds) > 0 {
		fmt.Fprintf(&sub, "\nWHERE %s", strings.Join(conds, " AND "))
	}

	var stmts []string

	params := g.params

	if d.Detach {
		stmts = append(stmts, fmt.Sprintf(
			"DELETE FROM relationships WHERE start_node_id IN (%s) OR end_node_id IN (%s)",
			sub.String(), sub.String(),
		))

		// The subquery appears three times in the SQL text, so its bound
		// values are repeated once per appearance.
		params = append(append(append([]any{}, g.params...), g.params...), g.params...)
	}

	stmts = append(stmts, fmt.Sprintf("DELETE FROM nodes WHERE id IN (%s)", sub.String()))

	return &Result{SQL: strings.Join(stmts, ";\n"), Params: params}, nil
}

// generateSetStatement lowers a SET property assignment reached via a
// preceding MATCH to an UPDATE guarded by the same subquery shape
// DELETE uses. SET of labels, of a whole properties map, or a merged
// map is left to the interpreter — json_insert's "append if absent"
// guard and json_patch's merge semantics don't reduce to the same
// single json_set call a property assignment does.
func (g *Generator) generateSetStatement(matches []*ast.MatchClause, extraWhere []ast.Expression, s *ast.SetClause) (*Result, error) {
	if len(s.Items) != 1 || s.Items[0].Kind != ast.SetProperty {
		return nil, errs.NewUnsupported("SET clause beyond a single property assignment")
	}

	item := s.Items[0]

	target, ok := item.Target.Base.(*ast.Variable)
	if !ok || len(item.Target.Path) != 1 {
		return nil, errs.NewUnsupported("SET target beyond var.prop")
	}

	lit, err := g.literalValue(item.Value)
	if err != nil {
		return nil, err
	}

	// The value's placeholder precedes the subquery's in the SQL text,
	// so it is bound first.
	setValuePlaceholder := g.placeholder(lit)

	from, err := g.buildFrom(matches)
	if err != nil {
		return nil, err
	}

	alias, ok := g.aliases[target.Name]
	if !ok {
		return nil, errs.NewUnsupported("SET of an unbound variable")
	}

	conds := from.preds

	for _, m := range matches {
		if m.Where == nil {
			continue
		}

		c, err := g.lowerExpr(m.Where)
		if err != nil {
			return nil, err
		}

		conds = append(conds, c)
	}

	for _, w := range extraWhere {
		c, err := g.lowerExpr(w)
		if err != nil {
			return nil, err
		}

		conds = append(conds, c)
	}

	var sub strings.Builder

	if from.cte != "" {
		sub.WriteString(from.cte)
	}

	fmt.Fprintf(&sub, "SELECT %s.id\n%s", alias, from.sql)

	if len(conds) > 0 {
		fmt.Fprintf(&sub, "\nWHERE %s", strings.Join(conds, " AND "))
	}

	sql := fmt.Sprintf(
		"UPDATE nodes SET properties = json_set(properties, '$.%s', %s) WHERE id IN (%s)",
		item.Target.Path[0], setValuePlaceholder, sub.String(),
	)

	return &Result{SQL: sql, Params: g.params}, nil
}
