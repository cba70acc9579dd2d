package interpreter

import (
	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/record"
	"github.com/cyphersql/cyphersql/store"
	"github.com/cyphersql/cyphersql/value"
)

// matchPattern returns every row extension of row that satisfies pat,
// binding every node/relationship variable the pattern introduces.
func (in *Interpreter) matchPattern(row Row, pat ast.Pattern) ([]Row, error) {
	if len(pat.Nodes) == 0 {
		return []Row{row}, nil
	}

	starts, err := in.candidateNodesForPattern(row, pat.Nodes[0])
	if err != nil {
		return nil, err
	}

	var results []Row

	for _, nodeID := range starts {
		newRow := copyRow(row)
		if pat.Nodes[0].Variable != "" {
			newRow[pat.Nodes[0].Variable] = rtNodeRef(nodeID)
		}

		extended, err := in.extendPattern(newRow, pat, 0, nodeID)
		if err != nil {
			return nil, err
		}

		results = append(results, extended...)
	}

	return results, nil
}

// extendPattern walks relationship step relIdx outward from prevNodeID,
// recursing until every relationship in pat has been matched.
func (in *Interpreter) extendPattern(row Row, pat ast.Pattern, relIdx int, prevNodeID uint64) ([]Row, error) {
	if relIdx >= len(pat.Rels) {
		return []Row{row}, nil
	}

	relPat := pat.Rels[relIdx]
	nextNodePat := pat.Nodes[relIdx+1]

	var out []Row

	if relPat.VarLength {
		steps, err := in.varLengthCandidates(row, prevNodeID, relPat)
		if err != nil {
			return nil, err
		}

		for _, step := range steps {
			ok, err := in.nodeBindingMatches(row, nextNodePat, step.nodeID)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			newRow := copyRow(row)
			if relPat.Variable != "" {
				newRow[relPat.Variable] = rtFromValue(elementIDList(step.relIDs))
			}

			if nextNodePat.Variable != "" {
				newRow[nextNodePat.Variable] = rtNodeRef(step.nodeID)
			}

			sub, err := in.extendPattern(newRow, pat, relIdx+1, step.nodeID)
			if err != nil {
				return nil, err
			}

			out = append(out, sub...)
		}

		return out, nil
	}

	candidates, err := in.candidateRelForStep(row, relPat, prevNodeID)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		ok, err := in.nodeBindingMatches(row, nextNodePat, c.nodeID)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		newRow := copyRow(row)
		if relPat.Variable != "" {
			newRow[relPat.Variable] = rtRelRef(c.relID)
		}

		if nextNodePat.Variable != "" {
			newRow[nextNodePat.Variable] = rtNodeRef(c.nodeID)
		}

		sub, err := in.extendPattern(newRow, pat, relIdx+1, c.nodeID)
		if err != nil {
			return nil, err
		}

		out = append(out, sub...)
	}

	return out, nil
}

type hopStep struct {
	relID  uint64
	nodeID uint64
}

// oneHop returns every relationship/far-node pair reachable from
// prevNodeID satisfying relPat's direction, type, and inline property
// constraints.
func (in *Interpreter) oneHop(row Row, prevNodeID uint64, relPat ast.RelationshipPattern) ([]hopStep, error) {
	var rels []*store.Relationship

	switch relPat.Direction {
	case ast.DirRight:
		rels = in.store.Outgoing(prevNodeID)
	case ast.DirLeft:
		rels = in.store.Incoming(prevNodeID)
	default:
		rels = append(append([]*store.Relationship{}, in.store.Outgoing(prevNodeID)...), in.store.Incoming(prevNodeID)...)
	}

	var out []hopStep
	seen := make(map[uint64]bool, len(rels))

	for _, r := range rels {
		if seen[r.ID] {
			continue
		}

		seen[r.ID] = true

		if len(relPat.Types) > 0 && !containsString(relPat.Types, r.Type) {
			continue
		}

		match, err := in.propsMatch(row, relPat.Props, r.Properties)
		if err != nil {
			return nil, err
		}

		if !match {
			continue
		}

		far := r.EndNodeID
		if r.StartNodeID != prevNodeID {
			far = r.StartNodeID
		}

		out = append(out, hopStep{relID: r.ID, nodeID: far})
	}

	return out, nil
}

func (in *Interpreter) candidateRelForStep(row Row, relPat ast.RelationshipPattern, prevNodeID uint64) ([]hopStep, error) {
	return in.oneHop(row, prevNodeID, relPat)
}

type pathStep struct {
	nodeID uint64
	relIDs []uint64
}

// varLengthCandidates BFS-walks relPat's min..max hop range, refusing to
// revisit a node within one path (simple-path semantics) so cyclic
// graphs can't loop forever.
func (in *Interpreter) varLengthCandidates(row Row, prevNodeID uint64, relPat ast.RelationshipPattern) ([]pathStep, error) {
	min := 1
	if relPat.MinHops != nil {
		min = *relPat.MinHops
	}

	max := in.maxHops
	if relPat.MaxHops != nil {
		max = *relPat.MaxHops
	}

	type state struct {
		nodeID  uint64
		relIDs  []uint64
		visited map[uint64]bool
	}

	frontier := []state{{nodeID: prevNodeID, visited: map[uint64]bool{prevNodeID: true}}}

	var results []pathStep

	for depth := 1; depth <= max; depth++ {
		var next []state

		for _, st := range frontier {
			steps, err := in.oneHop(row, st.nodeID, relPat)
			if err != nil {
				return nil, err
			}

			for _, s := range steps {
				if st.visited[s.nodeID] {
					continue
				}

				visited := make(map[uint64]bool, len(st.visited)+1)
				for k := range st.visited {
					visited[k] = true
				}

				visited[s.nodeID] = true

				relIDs := append(append([]uint64{}, st.relIDs...), s.relID)
				ns := state{nodeID: s.nodeID, relIDs: relIDs, visited: visited}
				next = append(next, ns)

				if depth >= min {
					results = append(results, pathStep{nodeID: ns.nodeID, relIDs: ns.relIDs})
				}
			}
		}

		frontier = next
	}

	return results, nil
}

// elementIDList renders a variable-length relationship binding as a
// list of "rel:<id>" element ids, one per traversed edge.
func elementIDList(relIDs []uint64) value.Value {
	out := make([]value.Value, len(relIDs))
	for i, id := range relIDs {
		out[i] = value.String(record.ElementID("rel", id))
	}

	return value.List(out)
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}

	return false
}

// candidateNodesForPattern resolves the candidate node ids for nodePat:
// if its variable is already bound, the single bound id (re-checked
// against the pattern's own constraints); otherwise every node
// satisfying the pattern's labels and inline properties.
func (in *Interpreter) candidateNodesForPattern(row Row, nodePat ast.NodePattern) ([]uint64, error) {
	if nodePat.Variable != "" {
		if b, ok := row[nodePat.Variable]; ok {
			if b.kind != rtNode {
				return nil, errs.NewTypeError("variable %q is already bound to a non-node value", nodePat.Variable)
			}

			ok, err := in.checkNodeConstraints(nodePat, b.nodeID, row)
			if err != nil {
				return nil, err
			}

			if ok {
				return []uint64{b.nodeID}, nil
			}

			return nil, nil
		}
	}

	candidates := in.store.FindNodesByLabels(nodePat.Labels)

	var ids []uint64

	for _, n := range candidates {
		match, err := in.propsMatch(row, nodePat.Props, n.Properties)
		if err != nil {
			return nil, err
		}

		if match {
			ids = append(ids, n.ID)
		}
	}

	return ids, nil
}

func (in *Interpreter) checkNodeConstraints(nodePat ast.NodePattern, nodeID uint64, row Row) (bool, error) {
	n, err := in.store.GetNode(nodeID)
	if err != nil {
		return false, err
	}

	for _, want := range nodePat.Labels {
		if !hasLabelSlice(n.Labels, want) {
			return false, nil
		}
	}

	return in.propsMatch(row, nodePat.Props, n.Properties)
}

// nodeBindingMatches checks a relationship step's far node against the
// next node pattern: if the pattern variable is already bound elsewhere
// in row, the far node must be that same node (cycle closure); it must
// also satisfy the pattern's own label/property constraints.
func (in *Interpreter) nodeBindingMatches(row Row, nodePat ast.NodePattern, nodeID uint64) (bool, error) {
	if nodePat.Variable != "" {
		if b, ok := row[nodePat.Variable]; ok {
			if b.kind != rtNode || b.nodeID != nodeID {
				return false, nil
			}
		}
	}

	return in.checkNodeConstraints(nodePat, nodeID, row)
}

func hasLabelSlice(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}

	return false
}

// propsMatch evaluates m's entries (against row, so a parameter or a
// previously-bound variable can appear in an inline property map) and
// reports whether actual carries every one of them, equal.
func (in *Interpreter) propsMatch(row Row, m *ast.MapLiteral, actual map[string]value.Value) (bool, error) {
	if m == nil {
		return true, nil
	}

	for _, entry := range m.Entries {
		want, err := in.eval(row, entry.Value)
		if err != nil {
			return false, err
		}

		got, ok := actual[entry.Key]
		if !ok || !value.Equal(got, want.toValue()) {
			return false, nil
		}
	}

	return true, nil
}
