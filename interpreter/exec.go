package interpreter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/record"
	"github.com/cyphersql/cyphersql/value"

	"github.com/google/uuid"
)

// Execute runs every clause of q against the interpreter's store,
// honouring UNION/UNION ALL boundaries, and returns the final
// projection and accumulated mutation summary (spec §4.4/§6). When the
// interpreter was built with WithMetrics, the query's latency and
// mutation counts are reported through that recorder.
func (in *Interpreter) Execute(q *ast.Query) (*record.Result, error) {
	correlation := uuid.NewString()
	log := in.logger.With(zap.String("query_id", correlation))

	started := time.Now()
	result, err := in.execute(log, q)

	if in.metrics != nil {
		in.metrics.ObserveQuery(querySegmentShape(q.Clauses), time.Since(started).Seconds(), err)

		if err == nil {
			in.observeMutations(result.Summary)
		}
	}

	return result, err
}

func (in *Interpreter) execute(log *zap.Logger, q *ast.Query) (*record.Result, error) {
	segments, unionAlls := splitUnionSegments(q.Clauses)

	log.Debug("executing query", zap.Int("segments", len(segments)))

	result, err := in.runSegment(log, segments[0])
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(segments); i++ {
		seg, err := in.runSegment(log, segments[i])
		if err != nil {
			return nil, err
		}

		if len(result.Keys) > 0 && len(seg.Keys) > 0 && len(result.Keys) != len(seg.Keys) {
			return nil, errs.NewTypeError("UNION branches must return the same number of columns")
		}

		result.Records = append(result.Records, seg.Records...)
		result.Summary.Add(seg.Summary)

		if !unionAlls[i-1] {
			result.Records = dedupeRecords(result.Records)
		}
	}

	return result, nil
}

// querySegmentShape labels a query's pipeline for the metrics duration
// histogram, so read-only MATCH/RETURN pipelines aren't averaged
// together with mutating ones.
func querySegmentShape(clauses []ast.Clause) string {
	for _, c := range clauses {
		switch c.(type) {
		case *ast.MergeClause:
			return "merge"
		case *ast.CreateClause:
			return "create"
		case *ast.DeleteClause:
			return "delete"
		case *ast.SetClause, *ast.RemoveClause:
			return "set"
		}
	}

	return "read"
}

// observeMutations reports each nonzero mutation counter in s against
// the recorder, one ObserveMutation call per kind (spec §6's Summary
// fields).
func (in *Interpreter) observeMutations(s record.Summary) {
	in.metrics.ObserveMutation("nodes_created", s.NodesCreated)
	in.metrics.ObserveMutation("nodes_deleted", s.NodesDeleted)
	in.metrics.ObserveMutation("relationships_created", s.RelationshipsCreated)
	in.metrics.ObserveMutation("relationships_deleted", s.RelationshipsDeleted)
	in.metrics.ObserveMutation("properties_set", s.PropertiesSet)
	in.metrics.ObserveMutation("labels_added", s.LabelsAdded)
	in.metrics.ObserveMutation("labels_removed", s.LabelsRemoved)
}

// splitUnionSegments breaks a flat clause list at each UnionClause
// boundary into independently-executable single-query segments.
func splitUnionSegments(clauses []ast.Clause) ([][]ast.Clause, []bool) {
	var segments [][]ast.Clause
	var unionAlls []bool

	cur := []ast.Clause{}

	for _, c := range clauses {
		if uc, ok := c.(*ast.UnionClause); ok {
			segments = append(segments, cur)
			unionAlls = append(unionAlls, uc.All)
			cur = uc.Clauses

			continue
		}

		cur = append(cur, c)
	}

	segments = append(segments, cur)

	return segments, unionAlls
}

// runSegment executes one UNION branch's clauses in order, returning at
// the first (and, per grammar, only) terminal RETURN clause.
func (in *Interpreter) runSegment(log *zap.Logger, clauses []ast.Clause) (*record.Result, error) {
	rows := RowSet{{}}
	summary := record.Summary{}

	var err error

	for _, clause := range clauses {
		log.Debug("executing clause", zap.String("kind", fmt.Sprintf("%T", clause)), zap.Int("rows", len(rows)))

		switch c := clause.(type) {
		case *ast.MatchClause:
			rows, err = in.execMatch(rows, c)
		case *ast.CreateClause:
			rows, err = in.execCreate(rows, c, &summary)
		case *ast.MergeClause:
			rows, err = in.execMerge(rows, c, &summary)
		case *ast.SetClause:
			rows, err = in.execSet(rows, c, &summary)
		case *ast.RemoveClause:
			rows, err = in.execRemove(rows, c, &summary)
		case *ast.DeleteClause:
			rows, err = in.execDelete(rows, c, &summary)
		case *ast.UnwindClause:
			rows, err = in.execUnwind(rows, c)
		case *ast.WhereClause:
			rows, err = in.execWhereStandalone(rows, c)
		case *ast.WithClause:
			rows, err = in.execWith(rows, c)
		case *ast.CallClause:
			rows, err = in.execCall(rows, c)
		case *ast.ReturnClause:
			keys, records, rerr := in.execReturn(rows, c)
			if rerr != nil {
				return nil, rerr
			}

			return &record.Result{Keys: keys, Records: records, Summary: summary}, nil
		default:
			return nil, errs.NewUnsupported(fmt.Sprintf("clause %T", clause))
		}

		if err != nil {
			return nil, err
		}
	}

	return &record.Result{Summary: summary}, nil
}

// ---------------------------------------------------------------------
// MATCH
// ---------------------------------------------------------------------

func (in *Interpreter) execMatch(rows RowSet, c *ast.MatchClause) (RowSet, error) {
	var out RowSet

	for _, row := range rows {
		matched, err := in.matchPattern(row, c.Pattern)
		if err != nil {
			return nil, err
		}

		if c.Where != nil {
			filtered := matched[:0]

			for _, m := range matched {
				v, err := in.eval(m, c.Where)
				if err != nil {
					return nil, err
				}

				if v.truthy() {
					filtered = append(filtered, m)
				}
			}

			matched = filtered
		}

		if len(matched) == 0 {
			if c.Optional {
				out = append(out, nullExtend(row, c.Pattern))
			}

			continue
		}

		out = append(out, matched...)
	}

	return out, nil
}

func nullExtend(row Row, pat ast.Pattern) Row {
	out := copyRow(row)

	for _, n := range pat.Nodes {
		if n.Variable != "" {
			if _, ok := out[n.Variable]; !ok {
				out[n.Variable] = rt{kind: rtNull}
			}
		}
	}

	for _, r := range pat.Rels {
		if r.Variable != "" {
			if _, ok := out[r.Variable]; !ok {
				out[r.Variable] = rt{kind: rtNull}
			}
		}
	}

	return out
}

// ---------------------------------------------------------------------
// CREATE / MERGE
// ---------------------------------------------------------------------

func (in *Interpreter) execCreate(rows RowSet, c *ast.CreateClause, summary *record.Summary) (RowSet, error) {
	out := make(RowSet, 0, len(rows))

	for _, row := range rows {
		newRow, err := in.createPattern(row, c.Pattern, summary)
		if err != nil {
			return nil, err
		}

		out = append(out, newRow)
	}

	return out, nil
}

// createPattern creates every node/relationship pat introduces that
// isn't already bound in row, reusing an already-bound endpoint rather
// than creating a duplicate.
func (in *Interpreter) createPattern(row Row, pat ast.Pattern, summary *record.Summary) (Row, error) {
	cur := copyRow(row)
	nodeIDs := make([]uint64, len(pat.Nodes))

	for i, np := range pat.Nodes {
		if np.Variable != "" {
			if b, ok := cur[np.Variable]; ok && b.kind == rtNode {
				nodeIDs[i] = b.nodeID
				continue
			}
		}

		labels := append([]string(nil), np.Labels...)

		props, err := in.evalMapLiteral(cur, np.Props)
		if err != nil {
			return nil, err
		}

		n := in.store.CreateNode(labels, props)
		summary.NodesCreated++
		summary.LabelsAdded += len(labels)
		summary.PropertiesSet += len(props)
		nodeIDs[i] = n.ID

		if np.Variable != "" {
			cur[np.Variable] = rtNodeRef(n.ID)
		}
	}

	for i, rp := range pat.Rels {
		start, end := nodeIDs[i], nodeIDs[i+1]
		if rp.Direction == ast.DirLeft {
			start, end = end, start
		}

		typ := ""
		if len(rp.Types) > 0 {
			typ = rp.Types[0]
		}

		props, err := in.evalMapLiteral(cur, rp.Props)
		if err != nil {
			return nil, err
		}

		r, err := in.store.CreateRelationship(typ, start, end, props)
		if err != nil {
			return nil, err
		}

		summary.RelationshipsCreated++
		summary.PropertiesSet += len(props)

		if rp.Variable != "" {
			cur[rp.Variable] = rtRelRef(r.ID)
		}
	}

	return cur, nil
}

func (in *Interpreter) execMerge(rows RowSet, c *ast.MergeClause, summary *record.Summary) (RowSet, error) {
	out := make(RowSet, 0, len(rows))

	for _, row := range rows {
		matched, err := in.matchPattern(row, c.Pattern)
		if err != nil {
			return nil, err
		}

		if len(matched) > 0 {
			for _, m := range matched {
				if err := in.applySetItems(m, c.OnMatch, summary); err != nil {
					return nil, err
				}

				out = append(out, m)
			}

			continue
		}

		created, err := in.createPattern(row, c.Pattern, summary)
		if err != nil {
			return nil, err
		}

		if err := in.applySetItems(created, c.OnCreate, summary); err != nil {
			return nil, err
		}

		out = append(out, created)
	}

	return out, nil
}

// ---------------------------------------------------------------------
// SET / REMOVE
// ---------------------------------------------------------------------

func (in *Interpreter) execSet(rows RowSet, c *ast.SetClause, summary *record.Summary) (RowSet, error) {
	for _, row := range rows {
		if err := in.applySetItems(row, c.Items, summary); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

func (in *Interpreter) applySetItems(row Row, items []ast.SetItem, summary *record.Summary) error {
	for _, item := range items {
		if err := in.applySetItem(row, item, summary); err != nil {
			return err
		}
	}

	return nil
}

func (in *Interpreter) applySetItem(row Row, item ast.SetItem, summary *record.Summary) error {
	switch item.Kind {
	case ast.SetProperty:
		baseVar, ok := item.Target.Base.(*ast.Variable)
		if !ok {
			return errs.NewTypeError("SET target must be a bound variable's property")
		}

		b, ok := row[baseVar.Name]
		if !ok {
			return errs.NewTypeError("unbound variable %q in SET", baseVar.Name)
		}

		val, err := in.eval(row, item.Value)
		if err != nil {
			return err
		}

		return in.setNestedProperty(b, item.Target.Path, val.toValue(), summary)

	case ast.SetLabels:
		b, ok := row[item.Variable]
		if !ok || b.kind != rtNode {
			return errs.NewTypeError("SET label target %q is not a bound node", item.Variable)
		}

		for _, l := range item.Labels {
			added, err := in.store.AddLabel(b.nodeID, l)
			if err != nil {
				return err
			}

			if added {
				summary.LabelsAdded++
			}
		}

		return nil

	case ast.SetReplaceProperties:
		b, ok := row[item.Variable]
		if !ok {
			return errs.NewTypeError("unbound variable %q in SET", item.Variable)
		}

		val, err := in.eval(row, item.Value)
		if err != nil {
			return err
		}

		props, err := valueToPropsMap(val.toValue())
		if err != nil {
			return err
		}

		return in.replaceProps(b, props, summary)

	case ast.SetMergeProperties:
		b, ok := row[item.Variable]
		if !ok {
			return errs.NewTypeError("unbound variable %q in SET", item.Variable)
		}

		val, err := in.eval(row, item.Value)
		if err != nil {
			return err
		}

		props, err := valueToPropsMap(val.toValue())
		if err != nil {
			return err
		}

		return in.mergeProps(b, props, summary)
	}

	return nil
}

func valueToPropsMap(v value.Value) (map[string]value.Value, error) {
	if v.Kind != value.KindMap {
		return nil, errs.NewTypeError("SET = / += requires a map expression")
	}

	return value.CloneMap(v.Map), nil
}

func (in *Interpreter) currentProps(b rt) (map[string]value.Value, error) {
	switch b.kind {
	case rtNode:
		n, err := in.store.GetNode(b.nodeID)
		if err != nil {
			return nil, err
		}

		return n.Properties, nil
	case rtRel:
		r, err := in.store.GetRelationship(b.relID)
		if err != nil {
			return nil, err
		}

		return r.Properties, nil
	}

	return nil, errs.NewTypeError("SET target is not a node or relationship")
}

func (in *Interpreter) writeProps(b rt, props map[string]value.Value) error {
	switch b.kind {
	case rtNode:
		_, err := in.store.UpdateNode(b.nodeID, props)
		return err
	case rtRel:
		_, err := in.store.UpdateRelationship(b.relID, props)
		return err
	}

	return errs.NewTypeError("SET target is not a node or relationship")
}

func (in *Interpreter) setNestedProperty(b rt, path []string, val value.Value, summary *record.Summary) error {
	props, err := in.currentProps(b)
	if err != nil {
		return err
	}

	setNested(props, path, val)
	summary.PropertiesSet++

	return in.writeProps(b, props)
}

func setNested(props map[string]value.Value, path []string, val value.Value) {
	if len(path) == 1 {
		props[path[0]] = val
		return
	}

	var childMap map[string]value.Value

	if child, ok := props[path[0]]; ok && child.Kind == value.KindMap {
		childMap = value.CloneMap(child.Map)
	} else {
		childMap = make(map[string]value.Value)
	}

	setNested(childMap, path[1:], val)
	props[path[0]] = value.Map(childMap)
}

func (in *Interpreter) replaceProps(b rt, props map[string]value.Value, summary *record.Summary) error {
	summary.PropertiesSet += len(props)
	return in.writeProps(b, props)
}

func (in *Interpreter) mergeProps(b rt, overlay map[string]value.Value, summary *record.Summary) error {
	cur, err := in.currentProps(b)
	if err != nil {
		return err
	}

	for k, v := range overlay {
		cur[k] = v
	}

	summary.PropertiesSet += len(overlay)

	return in.writeProps(b, cur)
}

func (in *Interpreter) execRemove(rows RowSet, c *ast.RemoveClause, summary *record.Summary) (RowSet, error) {
	for _, row := range rows {
		if err := in.applyRemoveItems(row, c.Items, summary); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

func (in *Interpreter) applyRemoveItems(row Row, items []ast.RemoveItem, summary *record.Summary) error {
	for _, item := range items {
		switch item.Kind {
		case ast.RemoveProperty:
			baseVar, ok := item.Target.Base.(*ast.Variable)
			if !ok {
				return errs.NewTypeError("REMOVE target must be a bound variable's property")
			}

			b, ok := row[baseVar.Name]
			if !ok {
				return errs.NewTypeError("unbound variable %q in REMOVE", baseVar.Name)
			}

			if err := in.removeNestedProperty(b, item.Target.Path); err != nil {
				return err
			}

		case ast.RemoveLabels:
			b, ok := row[item.Variable]
			if !ok || b.kind != rtNode {
				return errs.NewTypeError("REMOVE label target %q is not a bound node", item.Variable)
			}

			for _, l := range item.Labels {
				removed, err := in.store.RemoveLabel(b.nodeID, l)
				if err != nil {
					return err
				}

				if removed {
					summary.LabelsRemoved++
				}
			}
		}
	}

	return nil
}

func (in *Interpreter) removeNestedProperty(b rt, path []string) error {
	props, err := in.currentProps(b)
	if err != nil {
		return err
	}

	removeNested(props, path)

	return in.writeProps(b, props)
}

func removeNested(props map[string]value.Value, path []string) {
	if len(path) == 1 {
		delete(props, path[0])
		return
	}

	child, ok := props[path[0]]
	if !ok || child.Kind != value.KindMap {
		return
	}

	childMap := value.CloneMap(child.Map)
	removeNested(childMap, path[1:])
	props[path[0]] = value.Map(childMap)
}

// ---------------------------------------------------------------------
// DELETE
// ---------------------------------------------------------------------

type deleteTarget struct {
	kind rtKind
	id   uint64
}

func (in *Interpreter) execDelete(rows RowSet, c *ast.DeleteClause, summary *record.Summary) (RowSet, error) {
	seen := make(map[deleteTarget]bool)

	var ordered []deleteTarget

	for _, row := range rows {
		for _, expr := range c.Expressions {
			v, err := in.eval(row, expr)
			if err != nil {
				return nil, err
			}

			if v.kind == rtNull {
				continue
			}

			if v.kind != rtNode && v.kind != rtRel {
				return nil, errs.NewTypeError("DELETE target is not a node or relationship")
			}

			t := deleteTarget{kind: v.kind, id: idOf(v)}
			if !seen[t] {
				seen[t] = true
				ordered = append(ordered, t)
			}
		}
	}

	for _, t := range ordered {
		switch t.kind {
		case rtRel:
			if err := in.store.DeleteRelationship(t.id); err != nil {
				return nil, err
			}

			summary.RelationshipsDeleted++

		case rtNode:
			incident := len(in.store.Outgoing(t.id)) + len(in.store.Incoming(t.id))

			if !c.Detach && incident > 0 {
				return nil, errs.NewTypeError("cannot delete a node with existing relationships without DETACH")
			}

			summary.RelationshipsDeleted += incident

			if err := in.store.DeleteNode(t.id); err != nil {
				return nil, err
			}

			summary.NodesDeleted++
		}
	}

	return rows, nil
}

func idOf(v rt) uint64 {
	if v.kind == rtRel {
		return v.relID
	}

	return v.nodeID
}

// ---------------------------------------------------------------------
// UNWIND / WHERE / WITH / CALL
// ---------------------------------------------------------------------

func (in *Interpreter) execUnwind(rows RowSet, c *ast.UnwindClause) (RowSet, error) {
	var out RowSet

	for _, row := range rows {
		v, err := in.eval(row, c.Expr)
		if err != nil {
			return nil, err
		}

		switch {
		case v.kind == rtNull:
			continue
		case v.kind == rtScalar && v.scalar.Kind == value.KindList:
			for _, item := range v.scalar.List {
				nr := copyRow(row)
				nr[c.As] = rtFromValue(item)
				out = append(out, nr)
			}
		default:
			nr := copyRow(row)
			nr[c.As] = v
			out = append(out, nr)
		}
	}

	return out, nil
}

func (in *Interpreter) execWhereStandalone(rows RowSet, c *ast.WhereClause) (RowSet, error) {
	out := rows[:0]

	for _, row := range rows {
		v, err := in.eval(row, c.Expr)
		if err != nil {
			return nil, err
		}

		if v.truthy() {
			out = append(out, row)
		}
	}

	return out, nil
}

func (in *Interpreter) execWith(rows RowSet, c *ast.WithClause) (RowSet, error) {
	_, projected, err := in.projectRows(rows, c.Items)
	if err != nil {
		return nil, err
	}

	if c.Distinct {
		projected = dedupeRows(projected)
	}

	if c.Where != nil {
		filtered := projected[:0]

		for _, row := range projected {
			v, err := in.eval(row, c.Where)
			if err != nil {
				return nil, err
			}

			if v.truthy() {
				filtered = append(filtered, row)
			}
		}

		projected = filtered
	}

	if len(c.OrderBy) > 0 {
		if err := in.sortRows(projected, c.OrderBy); err != nil {
			return nil, err
		}
	}

	return in.applySkipLimit(projected, c.Skip, c.Limit)
}

func (in *Interpreter) execCall(rows RowSet, c *ast.CallClause) (RowSet, error) {
	var out RowSet

	switch strings.ToLower(c.Procedure) {
	case "db.labels":
		labels := in.store.GetAllLabels()

		for _, row := range rows {
			for _, l := range labels {
				nr := copyRow(row)
				nr[yieldAlias(c.Yield, "label")] = rtFromValue(value.String(l))
				out = append(out, nr)
			}
		}

	default:
		return nil, errs.NewUnsupported("CALL procedure " + c.Procedure)
	}

	if c.Where == nil {
		return out, nil
	}

	filtered := out[:0]

	for _, row := range out {
		v, err := in.eval(row, c.Where)
		if err != nil {
			return nil, err
		}

		if v.truthy() {
			filtered = append(filtered, row)
		}
	}

	return filtered, nil
}

func yieldAlias(yield []ast.CallYieldItem, fallback string) string {
	if len(yield) == 0 {
		return fallback
	}

	if yield[0].Alias != "" {
		return yield[0].Alias
	}

	return yield[0].Name
}

// ---------------------------------------------------------------------
// shared helpers
// ---------------------------------------------------------------------

func (in *Interpreter) evalMapLiteral(row Row, m *ast.MapLiteral) (map[string]value.Value, error) {
	out := make(map[string]value.Value)

	if m == nil {
		return out, nil
	}

	for _, entry := range m.Entries {
		v, err := in.eval(row, entry.Value)
		if err != nil {
			return nil, err
		}

		out[entry.Key] = v.toValue()
	}

	return out, nil
}

func dedupeRows(rows []Row) []Row {
	seen := make(map[string]bool, len(rows))

	out := rows[:0]

	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		var b strings.Builder

		for _, k := range keys {
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(row[k].hashKey())
			b.WriteString("|")
		}

		hk := b.String()
		if seen[hk] {
			continue
		}

		seen[hk] = true
		out = append(out, row)
	}

	return out
}

func dedupeRecords(records [][]any) [][]any {
	seen := make(map[string]bool, len(records))

	out := records[:0]

	for _, rec := range records {
		var b strings.Builder

		for _, v := range rec {
			fmt.Fprintf(&b, "%#v|", v)
		}

		hk := b.String()
		if seen[hk] {
			continue
		}

		seen[hk] = true
		out = append(out, rec)
	}

	return out
}
