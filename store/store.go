// Package store implements the in-memory property graph described in
// spec §3.3/§4.3: nodes and relationships keyed by monotonically
// increasing ids, label/property indexes maintained synchronously on
// every mutation, and MERGE's match-or-create semantics.
//
// There is deliberately no locking here (spec §5: single-threaded
// cooperative scheduling, the interpreter owns the store for the
// duration of one query) — grounded on the same ownership-without-locks
// posture the teacher's analysis/schema.go takes for its in-process
// ModelSchema.
package store

import (
	"sort"
	"time"

	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/value"
)

// Node is one graph vertex.
type Node struct {
	ID         uint64
	Labels     []string
	Properties map[string]value.Value
	CreatedAt  string
	UpdatedAt  string
}

// Relationship is one directed graph edge.
type Relationship struct {
	ID          uint64
	Type        string
	StartNodeID uint64
	EndNodeID   uint64
	Properties  map[string]value.Value
	CreatedAt   string
}

// Index names one registered (label, property) index definition.
type Index struct {
	Label    string
	Property string
}

type indexKey struct {
	label    string
	property string
}

// Store is the single-threaded in-memory property graph. Zero value is
// not usable; construct with New.
type Store struct {
	nextNodeID uint64
	nextRelID  uint64

	nodes map[uint64]*Node
	rels  map[uint64]*Relationship

	labelNodes map[string]map[uint64]struct{}
	relsByType map[string]map[uint64]struct{}
	outgoing   map[uint64]map[uint64]struct{} // nodeID -> relationship ids starting there
	incoming   map[uint64]map[uint64]struct{} // nodeID -> relationship ids ending there

	indexDefs []Index
	indexData map[indexKey]map[string]map[uint64]struct{} // value hash key -> node ids
}

// New creates an empty store.
func New() *Store {
	return &Store{
		nodes:      make(map[uint64]*Node),
		rels:       make(map[uint64]*Relationship),
		labelNodes: make(map[string]map[uint64]struct{}),
		relsByType: make(map[string]map[uint64]struct{}),
		outgoing:   make(map[uint64]map[uint64]struct{}),
		incoming:   make(map[uint64]map[uint64]struct{}),
		indexData:  make(map[indexKey]map[string]map[uint64]struct{}),
	}
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// ---------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------

// CreateNode assigns the next node id, sets created/updated timestamps,
// and updates every matching index.
func (s *Store) CreateNode(labels []string, props map[string]value.Value) *Node {
	s.nextNodeID++

	ts := timestamp()
	n := &Node{
		ID:         s.nextNodeID,
		Labels:     append([]string(nil), labels...),
		Properties: value.CloneMap(props),
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}

	s.nodes[n.ID] = n

	for _, l := range n.Labels {
		s.addToLabelSet(l, n.ID)
	}

	s.reindexNode(n)

	return cloneNode(n)
}

// GetNode returns a deep copy of the node record so callers cannot
// observe store mutations through an aliased reference (spec §4.3).
func (s *Store) GetNode(id uint64) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, errs.NewNotFound("node", id)
	}

	return cloneNode(n), nil
}

// UpdateNode replaces the node's property map, bumps updatedAt, and
// refreshes affected indexes.
func (s *Store) UpdateNode(id uint64, props map[string]value.Value) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, errs.NewNotFound("node", id)
	}

	n.Properties = value.CloneMap(props)
	n.UpdatedAt = timestamp()
	s.reindexNode(n)

	return cloneNode(n), nil
}

// DeleteNode removes all incident relationships, then the node, then
// any index entries keyed on it.
func (s *Store) DeleteNode(id uint64) error {
	n, ok := s.nodes[id]
	if !ok {
		return errs.NewNotFound("node", id)
	}

	for relID := range s.outgoing[id] {
		s.deleteRelationshipUnchecked(relID)
	}

	for relID := range s.incoming[id] {
		s.deleteRelationshipUnchecked(relID)
	}

	delete(s.outgoing, id)
	delete(s.incoming, id)

	for _, l := range n.Labels {
		s.removeFromLabelSet(l, id)
	}

	s.deindexNode(id)
	delete(s.nodes, id)

	return nil
}

// ---------------------------------------------------------------------
// Relationships
// ---------------------------------------------------------------------

// CreateRelationship validates both endpoints exist, assigns the next
// relationship id, and stamps createdAt.
func (s *Store) CreateRelationship(typ string, start, end uint64, props map[string]value.Value) (*Relationship, error) {
	if _, ok := s.nodes[start]; !ok {
		return nil, errs.NewNotFound("node", start)
	}

	if _, ok := s.nodes[end]; !ok {
		return nil, errs.NewNotFound("node", end)
	}

	s.nextRelID++

	r := &Relationship{
		ID:          s.nextRelID,
		Type:        typ,
		StartNodeID: start,
		EndNodeID:   end,
		Properties:  value.CloneMap(props),
		CreatedAt:   timestamp(),
	}

	s.rels[r.ID] = r
	s.addToRelSet(s.outgoing, start, r.ID)
	s.addToRelSet(s.incoming, end, r.ID)
	s.addToRelTypeSet(typ, r.ID)

	return cloneRel(r), nil
}

// GetRelationship returns a deep copy of the relationship record.
func (s *Store) GetRelationship(id uint64) (*Relationship, error) {
	r, ok := s.rels[id]
	if !ok {
		return nil, errs.NewNotFound("relationship", id)
	}

	return cloneRel(r), nil
}

// UpdateRelationship replaces the relationship's property map.
func (s *Store) UpdateRelationship(id uint64, props map[string]value.Value) (*Relationship, error) {
	r, ok := s.rels[id]
	if !ok {
		return nil, errs.NewNotFound("relationship", id)
	}

	r.Properties = value.CloneMap(props)

	return cloneRel(r), nil
}

// DeleteRelationship removes the relationship; there is no cascade.
func (s *Store) DeleteRelationship(id uint64) error {
	if _, ok := s.rels[id]; !ok {
		return errs.NewNotFound("relationship", id)
	}

	s.deleteRelationshipUnchecked(id)

	return nil
}

func (s *Store) deleteRelationshipUnchecked(id uint64) {
	r, ok := s.rels[id]
	if !ok {
		return
	}

	if set := s.outgoing[r.StartNodeID]; set != nil {
		delete(set, id)
	}

	if set := s.incoming[r.EndNodeID]; set != nil {
		delete(set, id)
	}

	if set := s.relsByType[r.Type]; set != nil {
		delete(set, id)
	}

	delete(s.rels, id)
}

// ---------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------

// FindNodesByLabel returns every node bearing label, ordered by id.
func (s *Store) FindNodesByLabel(label string) []*Node {
	ids := make([]uint64, 0, len(s.labelNodes[label]))
	for id := range s.labelNodes[label] {
		ids = append(ids, id)
	}

	return s.cloneNodesSorted(ids)
}

// FindNodesByLabels returns every node bearing all of labels.
func (s *Store) FindNodesByLabels(labels []string) []*Node {
	if len(labels) == 0 {
		return s.allNodesSorted()
	}

	var ids []uint64

	for id := range s.labelNodes[labels[0]] {
		if s.nodeHasAllLabels(id, labels) {
			ids = append(ids, id)
		}
	}

	return s.cloneNodesSorted(ids)
}

func (s *Store) nodeHasAllLabels(id uint64, labels []string) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}

	for _, want := range labels {
		if !hasLabel(n, want) {
			return false
		}
	}

	return true
}

// FindRelationshipsByType returns every relationship of the given type.
func (s *Store) FindRelationshipsByType(typ string) []*Relationship {
	ids := make([]uint64, 0, len(s.relsByType[typ]))
	for id := range s.relsByType[typ] {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Relationship, len(ids))
	for i, id := range ids {
		out[i] = cloneRel(s.rels[id])
	}

	return out
}

// FindNodesByLabelAndProperty uses the registered (label, property)
// index when present; otherwise it falls back to a linear scan. Both
// paths agree by construction (spec §8's indexed-lookup invariant).
func (s *Store) FindNodesByLabelAndProperty(label, property string, v value.Value) []*Node {
	key := indexKey{label: label, property: property}

	if data, ok := s.indexData[key]; ok {
		ids := make([]uint64, 0, len(data[value.HashKey(v)]))
		for id := range data[value.HashKey(v)] {
			ids = append(ids, id)
		}

		return s.cloneNodesSorted(ids)
	}

	var ids []uint64

	for id := range s.labelNodes[label] {
		n := s.nodes[id]

		pv, ok := n.Properties[property]
		if ok && value.Equal(pv, v) {
			ids = append(ids, id)
		}
	}

	return s.cloneNodesSorted(ids)
}

// Outgoing returns every relationship starting at nodeID.
func (s *Store) Outgoing(nodeID uint64) []*Relationship {
	return s.relSetSorted(s.outgoing[nodeID])
}

// Incoming returns every relationship ending at nodeID.
func (s *Store) Incoming(nodeID uint64) []*Relationship {
	return s.relSetSorted(s.incoming[nodeID])
}

// Between returns every relationship directly connecting start and end
// in either direction.
func (s *Store) Between(start, end uint64) []*Relationship {
	var out []*Relationship

	for _, r := range s.Outgoing(start) {
		if r.EndNodeID == end {
			out = append(out, r)
		}
	}

	for _, r := range s.Incoming(start) {
		if r.StartNodeID == end {
			out = append(out, r)
		}
	}

	return out
}

func (s *Store) relSetSorted(set map[uint64]struct{}) []*Relationship {
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Relationship, len(ids))
	for i, id := range ids {
		out[i] = cloneRel(s.rels[id])
	}

	return out
}

// ---------------------------------------------------------------------
// Label management
// ---------------------------------------------------------------------

// HasLabel reports whether node id currently carries label.
func (s *Store) HasLabel(id uint64, label string) (bool, error) {
	n, ok := s.nodes[id]
	if !ok {
		return false, errs.NewNotFound("node", id)
	}

	return hasLabel(n, label), nil
}

// AddLabel adds label to node id, idempotently. It reports whether the
// label was actually newly added (spec §4.4's labelsAdded counter).
func (s *Store) AddLabel(id uint64, label string) (bool, error) {
	n, ok := s.nodes[id]
	if !ok {
		return false, errs.NewNotFound("node", id)
	}

	if hasLabel(n, label) {
		return false, nil
	}

	n.Labels = append(n.Labels, label)
	n.UpdatedAt = timestamp()
	s.addToLabelSet(label, id)
	s.reindexNode(n)

	return true, nil
}

// RemoveLabel removes label from node id, idempotently, updating
// indexes before the label is actually dropped.
func (s *Store) RemoveLabel(id uint64, label string) (bool, error) {
	n, ok := s.nodes[id]
	if !ok {
		return false, errs.NewNotFound("node", id)
	}

	if !hasLabel(n, label) {
		return false, nil
	}

	s.removeFromLabelSet(label, id)

	out := n.Labels[:0]

	for _, l := range n.Labels {
		if l != label {
			out = append(out, l)
		}
	}

	n.Labels = out
	n.UpdatedAt = timestamp()
	s.reindexNode(n)

	return true, nil
}

// GetAllLabels returns every label currently used by at least one node,
// sorted for deterministic output.
func (s *Store) GetAllLabels() []string {
	out := make([]string, 0, len(s.labelNodes))

	for l, set := range s.labelNodes {
		if len(set) > 0 {
			out = append(out, l)
		}
	}

	sort.Strings(out)

	return out
}

// GetNodeCountByLabel returns the number of nodes bearing label.
func (s *Store) GetNodeCountByLabel(label string) int {
	return len(s.labelNodes[label])
}

// ---------------------------------------------------------------------
// Indexes
// ---------------------------------------------------------------------

// CreateIndex registers a (label, property) index, idempotently,
// back-filling entries from every existing matching node.
func (s *Store) CreateIndex(label, property string) {
	key := indexKey{label: label, property: property}
	if _, ok := s.indexData[key]; ok {
		return
	}

	s.indexDefs = append(s.indexDefs, Index{Label: label, Property: property})
	s.indexData[key] = make(map[string]map[uint64]struct{})

	for id := range s.labelNodes[label] {
		n := s.nodes[id]
		if v, ok := n.Properties[property]; ok {
			s.indexInsert(key, v, id)
		}
	}
}

// DropIndex removes the (label, property) index definition and data.
func (s *Store) DropIndex(label, property string) {
	key := indexKey{label: label, property: property}
	delete(s.indexData, key)

	for i, def := range s.indexDefs {
		if def.Label == label && def.Property == property {
			s.indexDefs = append(s.indexDefs[:i], s.indexDefs[i+1:]...)

			break
		}
	}
}

// GetIndexes lists registered index definitions.
func (s *Store) GetIndexes() []Index {
	return append([]Index(nil), s.indexDefs...)
}

func (s *Store) indexInsert(key indexKey, v value.Value, id uint64) {
	hk := value.HashKey(v)

	if s.indexData[key][hk] == nil {
		s.indexData[key][hk] = make(map[uint64]struct{})
	}

	s.indexData[key][hk][id] = struct{}{}
}

// reindexNode refreshes every registered index's entries for n,
// covering the case where a prior property/label value needs dropping
// and a new one needs inserting.
func (s *Store) reindexNode(n *Node) {
	for _, def := range s.indexDefs {
		key := indexKey{label: def.Label, property: def.Property}

		for _, bucket := range s.indexData[key] {
			delete(bucket, n.ID)
		}

		if !hasLabel(n, def.Label) {
			continue
		}

		if v, ok := n.Properties[def.Property]; ok {
			s.indexInsert(key, v, n.ID)
		}
	}
}

func (s *Store) deindexNode(id uint64) {
	for key := range s.indexData {
		for _, bucket := range s.indexData[key] {
			delete(bucket, id)
		}
	}
}

// ---------------------------------------------------------------------
// MERGE
// ---------------------------------------------------------------------

// MergeNode implements spec §4.3's match-or-create semantics: the first
// node bearing every requested label with every match-property equal is
// reused (optionally updated); otherwise a new node is created from
// matchProps union createProps.
func (s *Store) MergeNode(labels []string, matchProps, createProps, updateProps map[string]value.Value) (*Node, bool, error) {
	if n := s.findMergeCandidate(labels, matchProps); n != nil {
		if updateProps != nil {
			merged := value.CloneMap(n.Properties)

			for k, v := range updateProps {
				merged[k] = value.Clone(v)
			}

			n.Properties = merged
			n.UpdatedAt = timestamp()
			s.reindexNode(n)
		}

		return cloneNode(n), false, nil
	}

	combined := value.CloneMap(matchProps)

	for k, v := range createProps {
		combined[k] = value.Clone(v)
	}

	return s.CreateNode(labels, combined), true, nil
}

func (s *Store) findMergeCandidate(labels []string, matchProps map[string]value.Value) *Node {
	candidateIDs := s.allNodeIDs()

	if len(labels) > 0 {
		candidateIDs = make([]uint64, 0, len(s.labelNodes[labels[0]]))
		for id := range s.labelNodes[labels[0]] {
			candidateIDs = append(candidateIDs, id)
		}
	}

	sort.Slice(candidateIDs, func(i, j int) bool { return candidateIDs[i] < candidateIDs[j] })

	for _, id := range candidateIDs {
		n := s.nodes[id]

		if !s.nodeHasAllLabels(id, labels) {
			continue
		}

		if nodeMatchesProps(n, matchProps) {
			return n
		}
	}

	return nil
}

func nodeMatchesProps(n *Node, matchProps map[string]value.Value) bool {
	for k, want := range matchProps {
		got, ok := n.Properties[k]
		if !ok || !value.Equal(got, want) {
			return false
		}
	}

	return true
}

// ---------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------

func hasLabel(n *Node, label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}

	return false
}

func (s *Store) addToLabelSet(label string, id uint64) {
	if s.labelNodes[label] == nil {
		s.labelNodes[label] = make(map[uint64]struct{})
	}

	s.labelNodes[label][id] = struct{}{}
}

func (s *Store) removeFromLabelSet(label string, id uint64) {
	if set := s.labelNodes[label]; set != nil {
		delete(set, id)
	}
}

func (s *Store) addToRelSet(sets map[uint64]map[uint64]struct{}, nodeID, relID uint64) {
	if sets[nodeID] == nil {
		sets[nodeID] = make(map[uint64]struct{})
	}

	sets[nodeID][relID] = struct{}{}
}

func (s *Store) addToRelTypeSet(typ string, relID uint64) {
	if s.relsByType[typ] == nil {
		s.relsByType[typ] = make(map[uint64]struct{})
	}

	s.relsByType[typ][relID] = struct{}{}
}

func (s *Store) allNodeIDs() []uint64 {
	ids := make([]uint64, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}

	return ids
}

func (s *Store) allNodesSorted() []*Node {
	return s.cloneNodesSorted(s.allNodeIDs())
}

func (s *Store) cloneNodesSorted(ids []uint64) []*Node {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = cloneNode(s.nodes[id])
	}

	return out
}

func cloneNode(n *Node) *Node {
	return &Node{
		ID:         n.ID,
		Labels:     append([]string(nil), n.Labels...),
		Properties: value.CloneMap(n.Properties),
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func cloneRel(r *Relationship) *Relationship {
	return &Relationship{
		ID:          r.ID,
		Type:        r.Type,
		StartNodeID: r.StartNodeID,
		EndNodeID:   r.EndNodeID,
		Properties:  value.CloneMap(r.Properties),
		CreatedAt:   r.CreatedAt,
	}
}
