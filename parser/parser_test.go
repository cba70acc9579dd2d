package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/parser"
)

func mustParse(t *testing.T, src string) *ast.Query {
	t.Helper()

	q, err := parser.Parse(src)
	require.NoError(t, err)
	require.NotNil(t, q)

	return q
}

func TestParseSimpleMatchReturn(t *testing.T) {
	q := mustParse(t, "MATCH (n:Person) WHERE n.age > 30 RETURN n.name AS name")

	require.Len(t, q.Clauses, 2)

	mc, ok := q.Clauses[0].(*ast.MatchClause)
	require.True(t, ok)
	require.Len(t, mc.Pattern.Nodes, 1)
	assert.Equal(t, []string{"Person"}, mc.Pattern.Nodes[0].Labels)
	assert.Equal(t, "n", mc.Pattern.Nodes[0].Variable)
	require.NotNil(t, mc.Where)

	rc, ok := q.Clauses[1].(*ast.ReturnClause)
	require.True(t, ok)
	require.Len(t, rc.Items, 1)
	assert.Equal(t, "name", rc.Items[0].Alias)
}

func TestParseRelationshipDirectionRight(t *testing.T) {
	q := mustParse(t, "MATCH (a)-[:KNOWS]->(b) RETURN a, b")

	mc := q.Clauses[0].(*ast.MatchClause)
	require.Len(t, mc.Pattern.Rels, 1)
	assert.Equal(t, ast.DirRight, mc.Pattern.Rels[0].Direction)
	assert.Equal(t, []string{"KNOWS"}, mc.Pattern.Rels[0].Types)
}

func TestParseRelationshipDirectionLeft(t *testing.T) {
	q := mustParse(t, "MATCH (a)<-[:KNOWS]-(b) RETURN a, b")

	mc := q.Clauses[0].(*ast.MatchClause)
	assert.Equal(t, ast.DirLeft, mc.Pattern.Rels[0].Direction)
}

func TestParseRelationshipDirectionNone(t *testing.T) {
	q := mustParse(t, "MATCH (a)-[:KNOWS]-(b) RETURN a, b")

	mc := q.Clauses[0].(*ast.MatchClause)
	assert.Equal(t, ast.DirNone, mc.Pattern.Rels[0].Direction)
}

func TestParseVariableLengthRelationship(t *testing.T) {
	q := mustParse(t, "MATCH (a)-[:KNOWS*1..3]->(b) RETURN a")

	mc := q.Clauses[0].(*ast.MatchClause)
	r := mc.Pattern.Rels[0]
	require.True(t, r.VarLength)
	require.NotNil(t, r.MinHops)
	require.NotNil(t, r.MaxHops)
	assert.Equal(t, 1, *r.MinHops)
	assert.Equal(t, 3, *r.MaxHops)
}

func TestParseVariableLengthUnbounded(t *testing.T) {
	q := mustParse(t, "MATCH (a)-[:KNOWS*]->(b) RETURN a")

	r := q.Clauses[0].(*ast.MatchClause).Pattern.Rels[0]
	assert.True(t, r.VarLength)
	assert.Nil(t, r.MinHops)
	assert.Nil(t, r.MaxHops)
}

func TestParseBareRelationshipTypeList(t *testing.T) {
	q := mustParse(t, "MATCH (a)-[:KNOWS|FRIEND]->(b) RETURN a")

	r := q.Clauses[0].(*ast.MatchClause).Pattern.Rels[0]
	assert.Equal(t, []string{"KNOWS", "FRIEND"}, r.Types)
}

func TestParseCreatePatternWithProperties(t *testing.T) {
	q := mustParse(t, "CREATE (n:Person {name: 'Alice', age: 30})")

	cc, ok := q.Clauses[0].(*ast.CreateClause)
	require.True(t, ok)

	node := cc.Pattern.Nodes[0]
	require.NotNil(t, node.Props)
	require.Len(t, node.Props.Entries, 2)
	assert.Equal(t, "name", node.Props.Entries[0].Key)
}

func TestParseMergeWithOnCreateOnMatch(t *testing.T) {
	q := mustParse(t, "MERGE (n:Person {name: 'Bob'}) ON CREATE SET n.created = true ON MATCH SET n.seen = n.seen + 1")

	mc, ok := q.Clauses[0].(*ast.MergeClause)
	require.True(t, ok)
	require.Len(t, mc.OnCreate, 1)
	require.Len(t, mc.OnMatch, 1)
	assert.Equal(t, ast.SetProperty, mc.OnCreate[0].Kind)
}

func TestParseSetLabelAndProperty(t *testing.T) {
	q := mustParse(t, "MATCH (n) SET n:Active, n.score = 10, n += {x: 1}")

	sc, ok := q.Clauses[1].(*ast.SetClause)
	require.True(t, ok)
	require.Len(t, sc.Items, 3)
	assert.Equal(t, ast.SetLabels, sc.Items[0].Kind)
	assert.Equal(t, []string{"Active"}, sc.Items[0].Labels)
	assert.Equal(t, ast.SetProperty, sc.Items[1].Kind)
	assert.Equal(t, ast.SetMergeProperties, sc.Items[2].Kind)
}

func TestParseRemoveLabelAndProperty(t *testing.T) {
	q := mustParse(t, "MATCH (n) REMOVE n:Active, n.score")

	rc, ok := q.Clauses[1].(*ast.RemoveClause)
	require.True(t, ok)
	require.Len(t, rc.Items, 2)
	assert.Equal(t, ast.RemoveLabels, rc.Items[0].Kind)
	assert.Equal(t, ast.RemoveProperty, rc.Items[1].Kind)
}

func TestParseDetachDelete(t *testing.T) {
	q := mustParse(t, "MATCH (n) DETACH DELETE n")

	dc, ok := q.Clauses[1].(*ast.DeleteClause)
	require.True(t, ok)
	assert.True(t, dc.Detach)
	require.Len(t, dc.Expressions, 1)
}

func TestParseUnwind(t *testing.T) {
	q := mustParse(t, "UNWIND [1, 2, 3] AS x RETURN x")

	uc, ok := q.Clauses[0].(*ast.UnwindClause)
	require.True(t, ok)
	assert.Equal(t, "x", uc.As)

	list, ok := uc.Expr.(*ast.ListExpr)
	require.True(t, ok)
	assert.Len(t, list.Items, 3)
}

func TestParseWithPipeline(t *testing.T) {
	q := mustParse(t, "MATCH (n) WITH n, count(*) AS c WHERE c > 1 RETURN n")

	wc, ok := q.Clauses[1].(*ast.WithClause)
	require.True(t, ok)
	require.Len(t, wc.Items, 2)
	require.NotNil(t, wc.Where)
}

func TestParseOrderBySkipLimit(t *testing.T) {
	q := mustParse(t, "MATCH (n) RETURN n ORDER BY n.name DESC SKIP 5 LIMIT 10")

	rc := q.Clauses[1].(*ast.ReturnClause)
	require.Len(t, rc.OrderBy, 1)
	assert.True(t, rc.OrderBy[0].Descending)
	require.NotNil(t, rc.Skip)
	require.NotNil(t, rc.Limit)
}

func TestParseUnionAll(t *testing.T) {
	q := mustParse(t, "MATCH (n:A) RETURN n.name UNION ALL MATCH (n:B) RETURN n.name")

	require.Len(t, q.Clauses, 3)
	uc, ok := q.Clauses[2].(*ast.UnionClause)
	require.True(t, ok)
	assert.True(t, uc.All)
	require.Len(t, uc.Clauses, 2)
}

func TestParseCaseExpr(t *testing.T) {
	q := mustParse(t, "MATCH (n) RETURN CASE WHEN n.age > 18 THEN 'adult' ELSE 'minor' END AS category")

	rc := q.Clauses[1].(*ast.ReturnClause)
	ce, ok := rc.Items[0].Expr.(*ast.CaseExpr)
	require.True(t, ok)
	require.Len(t, ce.Alternatives, 1)
	require.NotNil(t, ce.Else)
}

func TestParseExistsWithPattern(t *testing.T) {
	q := mustParse(t, "MATCH (a) WHERE EXISTS((a)-[:KNOWS]->()) RETURN a")

	mc := q.Clauses[0].(*ast.MatchClause)
	ee, ok := mc.Where.(*ast.ExistsExpr)
	require.True(t, ok)

	_, ok = ee.X.(*ast.PatternExpr)
	assert.True(t, ok)
}

func TestParseQuantifiedAny(t *testing.T) {
	q := mustParse(t, "MATCH (n) WHERE ANY(x IN n.tags WHERE x = 'vip') RETURN n")

	mc := q.Clauses[0].(*ast.MatchClause)
	qe, ok := mc.Where.(*ast.QuantifiedExpr)
	require.True(t, ok)
	assert.Equal(t, ast.QuantAny, qe.Kind)
	assert.Equal(t, "x", qe.Variable)
}

func TestParseListComprehension(t *testing.T) {
	q := mustParse(t, "MATCH (n) RETURN [x IN n.scores WHERE x > 0 | x * 2] AS positives")

	rc := q.Clauses[1].(*ast.ReturnClause)
	lc, ok := rc.Items[0].Expr.(*ast.ListComprehension)
	require.True(t, ok)
	require.NotNil(t, lc.Where)
	require.NotNil(t, lc.Map)
}

func TestParseStartsWithEndsWithContains(t *testing.T) {
	q := mustParse(t, "MATCH (n) WHERE n.name STARTS WITH 'A' AND n.name ENDS WITH 'z' AND n.bio CONTAINS 'go' RETURN n")

	mc := q.Clauses[0].(*ast.MatchClause)
	top, ok := mc.Where.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAnd, top.Op)
}

func TestParseIsNullIsNotNull(t *testing.T) {
	q := mustParse(t, "MATCH (n) WHERE n.middleName IS NULL AND n.lastName IS NOT NULL RETURN n")

	mc := q.Clauses[0].(*ast.MatchClause)
	top := mc.Where.(*ast.BinaryExpr)

	left, ok := top.Left.(*ast.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpIsNull, left.Op)

	right, ok := top.Right.(*ast.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpIsNotNull, right.Op)
}

func TestParseOperatorPrecedence(t *testing.T) {
	q := mustParse(t, "RETURN 1 + 2 * 3 AS v")

	rc := q.Clauses[0].(*ast.ReturnClause)
	top, ok := rc.Items[0].Expr.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, top.Op)

	_, ok = top.Left.(*ast.IntegerLit)
	require.True(t, ok)

	mul, ok := top.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpMul, mul.Op)
}

func TestParsePropertyAccessChain(t *testing.T) {
	q := mustParse(t, "RETURN n.address.city AS c")

	rc := q.Clauses[0].(*ast.ReturnClause)
	pa, ok := rc.Items[0].Expr.(*ast.PropertyAccess)
	require.True(t, ok)
	assert.Equal(t, []string{"address", "city"}, pa.Path)
}

func TestParseCallSubqueryRejected(t *testing.T) {
	_, err := parser.Parse("CALL { MATCH (n) RETURN n } RETURN 1")
	require.Error(t, err)
}

func TestParseCallProcedureYield(t *testing.T) {
	q := mustParse(t, "CALL db.labels() YIELD label RETURN label")

	cc, ok := q.Clauses[0].(*ast.CallClause)
	require.True(t, ok)
	assert.Equal(t, "db.labels", cc.Procedure)
	require.Len(t, cc.Yield, 1)
	assert.Equal(t, "label", cc.Yield[0].Name)
}

func TestParseUnexpectedTokenReportsPosition(t *testing.T) {
	_, err := parser.Parse("MATCH (n RETURN n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")
	assert.Contains(t, err.Error(), "1:10")
}
