// Package record defines the interpreter's output shapes (spec §6): the
// column-keyed record set returned from RETURN/WITH projection, the
// node/relationship surface representations, and the mutation-counter
// summary accumulated across a query's CREATE/MERGE/SET/REMOVE/DELETE
// clauses.
package record

import (
	"fmt"

	"github.com/cyphersql/cyphersql/store"
)

// NodeValue is how a bound node surfaces in a projected record.
type NodeValue struct {
	Identity   uint64
	Labels     []string
	Properties map[string]any
	ElementID  string
}

// RelationshipValue is how a bound relationship surfaces in a projected
// record.
type RelationshipValue struct {
	Identity            uint64
	Type                string
	StartNodeElementID  string
	EndNodeElementID    string
	Properties          map[string]any
	ElementID           string
}

// ElementID renders the "node:<id>" / "rel:<id>" identifier spec §6
// specifies for projected node/relationship values.
func ElementID(kind string, id uint64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// NodeFromStore converts a store.Node into its output representation.
func NodeFromStore(n *store.Node) NodeValue {
	props := make(map[string]any, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v.ToAny()
	}

	return NodeValue{
		Identity:   n.ID,
		Labels:     append([]string(nil), n.Labels...),
		Properties: props,
		ElementID:  ElementID("node", n.ID),
	}
}

// RelationshipFromStore converts a store.Relationship into its output
// representation.
func RelationshipFromStore(r *store.Relationship) RelationshipValue {
	props := make(map[string]any, len(r.Properties))
	for k, v := range r.Properties {
		props[k] = v.ToAny()
	}

	return RelationshipValue{
		Identity:           r.ID,
		Type:               r.Type,
		StartNodeElementID: ElementID("node", r.StartNodeID),
		EndNodeElementID:   ElementID("node", r.EndNodeID),
		Properties:         props,
		ElementID:          ElementID("rel", r.ID),
	}
}

// Summary accumulates the mutation counters spec §4.4 defines.
type Summary struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
	LabelsRemoved        int
}

// Add folds other into s, used when a single clause's effect on many
// rows needs accumulating into the query-wide summary.
func (s *Summary) Add(other Summary) {
	s.NodesCreated += other.NodesCreated
	s.NodesDeleted += other.NodesDeleted
	s.RelationshipsCreated += other.RelationshipsCreated
	s.RelationshipsDeleted += other.RelationshipsDeleted
	s.PropertiesSet += other.PropertiesSet
	s.LabelsAdded += other.LabelsAdded
	s.LabelsRemoved += other.LabelsRemoved
}

// Result is the interpreter's complete output for one query.
type Result struct {
	Keys    []string
	Records [][]any
	Summary Summary
}
