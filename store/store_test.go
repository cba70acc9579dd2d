package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphersql/cyphersql/store"
	"github.com/cyphersql/cyphersql/value"
)

func TestCreateAndGetNode(t *testing.T) {
	s := store.New()

	n := s.CreateNode([]string{"Person"}, map[string]value.Value{"name": value.String("Alice")})
	assert.Equal(t, uint64(1), n.ID)
	assert.NotEmpty(t, n.CreatedAt)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)

	got, err := s.GetNode(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Properties["name"].Str)
}

func TestGetNodeReturnsDeepCopy(t *testing.T) {
	s := store.New()
	n := s.CreateNode([]string{"Person"}, map[string]value.Value{"name": value.String("Alice")})

	got, err := s.GetNode(n.ID)
	require.NoError(t, err)

	got.Properties["name"] = value.String("Mutated")

	reGot, err := s.GetNode(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", reGot.Properties["name"].Str)
}

func TestGetNodeNotFound(t *testing.T) {
	s := store.New()

	_, err := s.GetNode(999)
	require.Error(t, err)
}

func TestUpdateNodeReplacesProperties(t *testing.T) {
	s := store.New()
	n := s.CreateNode([]string{"Person"}, map[string]value.Value{"age": value.Int(1)})

	updated, err := s.UpdateNode(n.ID, map[string]value.Value{"age": value.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Properties["age"].Int)
}

func TestDeleteNodeCascadesRelationships(t *testing.T) {
	s := store.New()
	a := s.CreateNode([]string{"Person"}, nil)
	b := s.CreateNode([]string{"Person"}, nil)
	rel, err := s.CreateRelationship("KNOWS", a.ID, b.ID, nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteNode(a.ID))

	_, err = s.GetRelationship(rel.ID)
	require.Error(t, err)

	assert.Empty(t, s.Incoming(b.ID))
}

func TestCreateRelationshipValidatesEndpoints(t *testing.T) {
	s := store.New()
	a := s.CreateNode([]string{"Person"}, nil)

	_, err := s.CreateRelationship("KNOWS", a.ID, 999, nil)
	require.Error(t, err)
}

func TestFindNodesByLabel(t *testing.T) {
	s := store.New()
	s.CreateNode([]string{"Person"}, nil)
	s.CreateNode([]string{"Company"}, nil)
	s.CreateNode([]string{"Person"}, nil)

	people := s.FindNodesByLabel("Person")
	assert.Len(t, people, 2)
}

func TestFindNodesByLabels(t *testing.T) {
	s := store.New()
	s.CreateNode([]string{"Person", "Employee"}, nil)
	s.CreateNode([]string{"Person"}, nil)

	both := s.FindNodesByLabels([]string{"Person", "Employee"})
	require.Len(t, both, 1)
}

func TestFindNodesByLabelAndPropertyWithoutIndex(t *testing.T) {
	s := store.New()
	s.CreateNode([]string{"Person"}, map[string]value.Value{"id": value.Int(1)})
	s.CreateNode([]string{"Person"}, map[string]value.Value{"id": value.Int(2)})

	found := s.FindNodesByLabelAndProperty("Person", "id", value.Int(2))
	require.Len(t, found, 1)
	assert.Equal(t, int64(2), found[0].Properties["id"].Int)
}

func TestIndexAgreesWithLinearScan(t *testing.T) {
	s := store.New()
	s.CreateNode([]string{"Person"}, map[string]value.Value{"id": value.Int(1)})
	s.CreateNode([]string{"Person"}, map[string]value.Value{"id": value.Int(2)})
	s.CreateNode([]string{"Person"}, map[string]value.Value{"id": value.Int(2)})

	withoutIndex := s.FindNodesByLabelAndProperty("Person", "id", value.Int(2))

	s.CreateIndex("Person", "id")

	withIndex := s.FindNodesByLabelAndProperty("Person", "id", value.Int(2))

	require.Len(t, withIndex, len(withoutIndex))

	for i := range withIndex {
		assert.Equal(t, withoutIndex[i].ID, withIndex[i].ID)
	}
}

func TestIndexBackfillsExistingNodes(t *testing.T) {
	s := store.New()
	s.CreateNode([]string{"Person"}, map[string]value.Value{"id": value.Int(7)})

	s.CreateIndex("Person", "id")

	found := s.FindNodesByLabelAndProperty("Person", "id", value.Int(7))
	require.Len(t, found, 1)
}

func TestIndexMaintainedOnUpdate(t *testing.T) {
	s := store.New()
	s.CreateIndex("Person", "id")

	n := s.CreateNode([]string{"Person"}, map[string]value.Value{"id": value.Int(1)})

	_, err := s.UpdateNode(n.ID, map[string]value.Value{"id": value.Int(2)})
	require.NoError(t, err)

	assert.Empty(t, s.FindNodesByLabelAndProperty("Person", "id", value.Int(1)))
	assert.Len(t, s.FindNodesByLabelAndProperty("Person", "id", value.Int(2)), 1)
}

func TestDropIndex(t *testing.T) {
	s := store.New()
	s.CreateIndex("Person", "id")
	require.Len(t, s.GetIndexes(), 1)

	s.DropIndex("Person", "id")
	assert.Empty(t, s.GetIndexes())
}

func TestAddAndRemoveLabelIdempotent(t *testing.T) {
	s := store.New()
	n := s.CreateNode([]string{"Person"}, nil)

	added, err := s.AddLabel(n.ID, "Person")
	require.NoError(t, err)
	assert.False(t, added)

	added, err = s.AddLabel(n.ID, "Employee")
	require.NoError(t, err)
	assert.True(t, added)

	removed, err := s.RemoveLabel(n.ID, "Employee")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveLabel(n.ID, "Employee")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestOutgoingIncomingBetween(t *testing.T) {
	s := store.New()
	a := s.CreateNode(nil, nil)
	b := s.CreateNode(nil, nil)

	_, err := s.CreateRelationship("KNOWS", a.ID, b.ID, nil)
	require.NoError(t, err)

	assert.Len(t, s.Outgoing(a.ID), 1)
	assert.Len(t, s.Incoming(b.ID), 1)
	assert.Len(t, s.Between(a.ID, b.ID), 1)
}

func TestMergeNodeCreatesOnFirstCallAndUpdatesOnSecond(t *testing.T) {
	s := store.New()

	match := map[string]value.Value{"id": value.Int(1)}
	onCreate := map[string]value.Value{"created": value.Bool(true)}
	onMatch := map[string]value.Value{"seen": value.Bool(true)}

	n1, created1, err := s.MergeNode([]string{"User"}, match, onCreate, nil)
	require.NoError(t, err)
	assert.True(t, created1)
	assert.True(t, n1.Properties["created"].Bool)
	_, hasSeen := n1.Properties["seen"]
	assert.False(t, hasSeen)

	n2, created2, err := s.MergeNode([]string{"User"}, match, nil, onMatch)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, n1.ID, n2.ID)
	assert.True(t, n2.Properties["created"].Bool)
	assert.True(t, n2.Properties["seen"].Bool)

	assert.Len(t, s.FindNodesByLabel("User"), 1)
}

func TestGetNodeCountByLabel(t *testing.T) {
	s := store.New()
	s.CreateNode([]string{"Person"}, nil)
	s.CreateNode([]string{"Person"}, nil)

	assert.Equal(t, 2, s.GetNodeCountByLabel("Person"))
}

func TestGetAllLabels(t *testing.T) {
	s := store.New()
	s.CreateNode([]string{"Person"}, nil)
	s.CreateNode([]string{"Company"}, nil)

	assert.Equal(t, []string{"Company", "Person"}, s.GetAllLabels())
}
