package interpreter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphersql/cyphersql/interpreter"
	"github.com/cyphersql/cyphersql/parser"
	"github.com/cyphersql/cyphersql/record"
	"github.com/cyphersql/cyphersql/store"
)

func run(t *testing.T, s *store.Store, src string) *record.Result {
	t.Helper()

	q, err := parser.Parse(src)
	require.NoError(t, err)

	res, err := interpreter.New(s).Execute(q)
	require.NoError(t, err)

	return res
}

func TestCreateReturnsBoundProperties(t *testing.T) {
	s := store.New()

	res := run(t, s, `CREATE (a:Person {name: 'Alice'})-[:KNOWS {since: 2020}]->(b:Person {name: 'Bob'}) RETURN a.name, b.name`)

	require.Equal(t, []string{"a.name", "b.name"}, res.Keys)
	require.Len(t, res.Records, 1)
	assert.Equal(t, []any{"Alice", "Bob"}, res.Records[0])

	assert.Equal(t, 2, res.Summary.NodesCreated)
	assert.Equal(t, 1, res.Summary.RelationshipsCreated)
	assert.Equal(t, 2, res.Summary.LabelsAdded)
	assert.Equal(t, 3, res.Summary.PropertiesSet)
}

func TestOptionalMatchBindsNullWhenNoMatch(t *testing.T) {
	s := store.New()
	run(t, s, `CREATE (a:Person {name: 'Alice'})`)

	res := run(t, s, `MATCH (a:Person) OPTIONAL MATCH (a)-[:FRIEND]->(b) RETURN a.name, b`)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "Alice", res.Records[0][0])
	assert.Nil(t, res.Records[0][1])
}

func TestReturnDistinctDeduplicatesRows(t *testing.T) {
	s := store.New()
	run(t, s, `CREATE (:Person {name: 'Alice'})`)
	run(t, s, `CREATE (:Person {name: 'Alice'})`)

	res := run(t, s, `MATCH (n:Person) RETURN DISTINCT n.name`)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "Alice", res.Records[0][0])
}

func TestBuiltinFunctionsCoalesceRangeSize(t *testing.T) {
	s := store.New()

	res := run(t, s, `RETURN coalesce(null, 5) AS x, range(1, 5) AS r, size([1, 2, 3]) AS s`)

	require.Len(t, res.Records, 1)
	assert.Equal(t, int64(5), res.Records[0][0])
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, res.Records[0][1])
	assert.Equal(t, int64(3), res.Records[0][2])
}

func TestMergeCreatesOnFirstRunAndUpdatesOnSecond(t *testing.T) {
	s := store.New()

	mergeQuery := `MERGE (n:User {id: 1}) ON CREATE SET n.created = true ON MATCH SET n.seen = true RETURN n.created, n.seen`

	first := run(t, s, mergeQuery)
	require.Len(t, first.Records, 1)
	assert.Equal(t, true, first.Records[0][0])
	assert.Nil(t, first.Records[0][1])

	second := run(t, s, mergeQuery)
	require.Len(t, second.Records, 1)
	assert.Equal(t, true, second.Records[0][0])
	assert.Equal(t, true, second.Records[0][1])

	count := run(t, s, `MATCH (n:User) RETURN count(*) AS c`)
	require.Len(t, count.Records, 1)
	assert.Equal(t, int64(1), count.Records[0][0])
}

func TestDeleteRequiresDetachWhenRelationshipsExist(t *testing.T) {
	s := store.New()
	run(t, s, `CREATE (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})`)

	q, err := parser.Parse(`MATCH (a:Person {name: 'Alice'}) DELETE a`)
	require.NoError(t, err)

	_, err = interpreter.New(s).Execute(q)
	require.Error(t, err)

	q2, err := parser.Parse(`MATCH (a:Person {name: 'Alice'}) DETACH DELETE a`)
	require.NoError(t, err)

	res, err := interpreter.New(s).Execute(q2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.NodesDeleted)
	assert.Equal(t, 1, res.Summary.RelationshipsDeleted)
}

func TestWhereFiltersMatchedRows(t *testing.T) {
	s := store.New()
	run(t, s, `CREATE (:Person {age: 20})`)
	run(t, s, `CREATE (:Person {age: 40})`)

	res := run(t, s, `MATCH (n:Person) WHERE n.age > 30 RETURN n.age`)

	require.Len(t, res.Records, 1)
	assert.Equal(t, int64(40), res.Records[0][0])
}

func TestUnwindExpandsListIntoRows(t *testing.T) {
	s := store.New()

	res := run(t, s, `UNWIND [1, 2, 3] AS x RETURN x`)

	require.Len(t, res.Records, 3)
	assert.Equal(t, int64(1), res.Records[0][0])
	assert.Equal(t, int64(2), res.Records[1][0])
	assert.Equal(t, int64(3), res.Records[2][0])
}

func TestAggregateCountGroupsByNonAggregatedItems(t *testing.T) {
	s := store.New()
	run(t, s, `CREATE (:Person {team: 'a'})`)
	run(t, s, `CREATE (:Person {team: 'a'})`)
	run(t, s, `CREATE (:Person {team: 'b'})`)

	res := run(t, s, `MATCH (n:Person) RETURN n.team, count(*) AS c ORDER BY n.team`)

	require.Len(t, res.Records, 2)
	assert.Equal(t, []any{"a", int64(2)}, res.Records[0])
	assert.Equal(t, []any{"b", int64(1)}, res.Records[1])
}
