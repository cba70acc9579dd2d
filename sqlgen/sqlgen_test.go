package sqlgen_test

import (
	"database/sql"
	"strconv"
	"strings"
	"testing"

	vitess "github.com/blastrain/vitess-sqlparser/sqlparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/cyphersql/cyphersql/parser"
	"github.com/cyphersql/cyphersql/sqlgen"
)

const schema = `
CREATE TABLE nodes (
	id INTEGER PRIMARY KEY,
	labels TEXT NOT NULL,
	properties TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE relationships (
	id INTEGER PRIMARY KEY,
	type TEXT NOT NULL,
	start_node_id INTEGER NOT NULL,
	end_node_id INTEGER NOT NULL,
	properties TEXT NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY(start_node_id) REFERENCES nodes(id) ON DELETE CASCADE,
	FOREIGN KEY(end_node_id) REFERENCES nodes(id) ON DELETE CASCADE
);
CREATE INDEX idx_nodes_labels ON nodes(labels);
CREATE INDEX idx_rel_type_endpoints ON relationships(type, start_node_id, end_node_id);
`

func openSchema(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range strings.Split(schema, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return db
}

func generate(t *testing.T, cypher string) *sqlgen.Result {
	t.Helper()

	q, err := parser.Parse(cypher)
	require.NoError(t, err)

	res, err := sqlgen.Generate(q)
	require.NoError(t, err)

	return res
}

func TestLabelledJoinSelectAvoidsInlineSecrets(t *testing.T) {
	res := generate(t, `MATCH (a:Person)-[:KNOWS]->(b:Person) WHERE a.age > 21 RETURN a.name`)

	assert.Contains(t, res.SQL, "FROM nodes AS a")
	assert.Contains(t, res.SQL, "JOIN relationships AS")
	assert.Contains(t, res.SQL, "JOIN nodes AS b")
	assert.Contains(t, res.SQL, "json_extract(a.properties, '$.name')")
	assert.NotContains(t, res.SQL, "KNOWS")
	assert.NotContains(t, res.SQL, "21")
	assert.Contains(t, res.Params, "KNOWS")
	assert.Contains(t, res.Params, int64(21))
	assert.Equal(t, strings.Count(res.SQL, "?"), len(res.Params))
}

// TestJoinAndPredicateSyntaxValidatesIndependently runs a label-free
// query's generated SQL (no json_each correlated subquery, which the
// MySQL-dialect vitess parser doesn't model) through a second, wholly
// independent parser as a syntax sanity check.
func TestJoinAndPredicateSyntaxValidatesIndependently(t *testing.T) {
	res := generate(t, `MATCH (a)-[:KNOWS]->(b) WHERE a.age > 21 RETURN a.name`)

	literalSQL := placeholdersToLiterals(res.SQL, res.Params)

	stmt, err := vitess.Parse(literalSQL)
	require.NoError(t, err)
	assert.NotNil(t, stmt)
}

func TestVariableLengthPathEmitsRecursiveCTE(t *testing.T) {
	res := generate(t, `MATCH (a:Person)-[:KNOWS*1..3]->(b) RETURN a, b`)

	assert.Contains(t, res.SQL, "WITH RECURSIVE path_cte")
	assert.Contains(t, res.SQL, "depth < 3")
	assert.Contains(t, res.SQL, "depth >= 1")
}

func TestPropertyLiteralWithMetacharactersStaysParameterised(t *testing.T) {
	res := generate(t, `MATCH (n:Person {bio: 'Weird"%Value'}) RETURN n`)

	assert.NotContains(t, res.SQL, `Weird"%Value`)
	assert.Contains(t, res.Params, `Weird"%Value`)
}

func TestGeneratedSelectExecutesAgainstSQLiteSchema(t *testing.T) {
	db := openSchema(t)

	_, err := db.Exec(
		"INSERT INTO nodes(labels, properties, created_at, updated_at) VALUES (?, ?, datetime('now'), datetime('now'))",
		`["Person"]`, `{"name":"Alice","age":30}`,
	)
	require.NoError(t, err)

	res := generate(t, `MATCH (n:Person) WHERE n.age > 21 RETURN n.name`)

	rows, err := db.Query(res.SQL, res.Params...)
	require.NoError(t, err)

	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}

	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Alice"}, names)
}

func TestGeneratedCreateProducesOneInsertPerNodeAndRelationship(t *testing.T) {
	res := generate(t, `CREATE (a:Person {name: 'Alice'})-[:KNOWS {since: 2020}]->(b:Person {name: 'Bob'})`)

	stmts := strings.Split(res.SQL, ";\n")
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "INSERT INTO nodes")
	assert.Contains(t, stmts[1], "INSERT INTO nodes")
	assert.Contains(t, stmts[2], "INSERT INTO relationships")
	assert.Contains(t, stmts[2], "ORDER BY id DESC LIMIT 1 OFFSET 1")
	assert.Contains(t, stmts[2], "ORDER BY id DESC LIMIT 1 OFFSET 0")
}

func TestGeneratedMergeGuardsWithNotExists(t *testing.T) {
	res := generate(t, `MERGE (n:User {id: 1})`)

	assert.Contains(t, res.SQL, "WHERE NOT EXISTS")
	assert.Contains(t, res.Params, int64(1))
}

func TestGeneratedDetachDeleteRemovesRelationshipsFirst(t *testing.T) {
	q, err := parser.Parse(`MATCH (a:Person {name: 'Alice'}) DETACH DELETE a`)
	require.NoError(t, err)

	res, err := sqlgen.Generate(q)
	require.NoError(t, err)

	stmts := strings.Split(res.SQL, ";\n")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "DELETE FROM relationships")
	assert.Contains(t, stmts[1], "DELETE FROM nodes")
}

func TestGeneratedSetLowersToJSONSet(t *testing.T) {
	q, err := parser.Parse(`MATCH (n:Person {name: 'Alice'}) SET n.age = 31`)
	require.NoError(t, err)

	res, err := sqlgen.Generate(q)
	require.NoError(t, err)

	assert.Contains(t, res.SQL, "UPDATE nodes SET properties = json_set(properties, '$.age', ?)")
	assert.Contains(t, res.Params, int64(31))
}

// placeholdersToLiterals substitutes each `?` with its bound parameter
// rendered as a SQL literal, so an independent parser — which knows
// nothing of our parameter vector — can still check the statement's
// syntax on its own.
func placeholdersToLiterals(sqlText string, params []any) string {
	var b strings.Builder

	i := 0

	for _, r := range sqlText {
		if r == '?' && i < len(params) {
			b.WriteString(sqlLiteral(params[i]))
			i++

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func sqlLiteral(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}

		return "0"
	default:
		return "NULL"
	}
}
