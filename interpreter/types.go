// Package interpreter tree-walks a parsed query (spec §4.4) against a
// store.Store, threading a row set of variable bindings through each
// clause and accumulating a record.Summary of the mutations performed.
//
// The functional-options constructor, and the idea of an options-built
// evaluator carrying its own logger, is grounded on scaf's
// runner/runner.go (Option func(*Runner), WithDialect, WithHandler).
package interpreter

import (
	"go.uber.org/zap"

	"github.com/cyphersql/cyphersql/metrics"
	"github.com/cyphersql/cyphersql/store"
	"github.com/cyphersql/cyphersql/value"
)

// defaultMaxHops caps variable-length traversal when a pattern gives no
// explicit upper bound, mirroring sqlgen's recursive-CTE depth cap so
// both execution paths agree on what an unbounded "*" pattern means.
// WithMaxHops overrides it, mirroring config.Config.MaxHops.
const defaultMaxHops = 10

// rtKind discriminates what a row binding currently holds.
type rtKind int

const (
	rtNull rtKind = iota
	rtScalar
	rtNode
	rtRel
)

// rt is a runtime binding: either unbound (null), a scalar value.Value,
// or a reference to a node/relationship living in the store. Keeping
// node/relationship bindings as ids rather than snapshotted copies
// means a later clause's read always sees the effect of an earlier
// clause's SET/REMOVE within the same query.
type rt struct {
	kind   rtKind
	scalar value.Value
	nodeID uint64
	relID  uint64
}

func rtFromValue(v value.Value) rt {
	if v.IsNull() {
		return rt{kind: rtNull}
	}

	return rt{kind: rtScalar, scalar: v}
}

func rtNodeRef(id uint64) rt { return rt{kind: rtNode, nodeID: id} }
func rtRelRef(id uint64) rt  { return rt{kind: rtRel, relID: id} }

// toValue collapses a binding to a plain value.Value; node/relationship
// bindings have no scalar representation and collapse to null.
func (r rt) toValue() value.Value {
	if r.kind == rtScalar {
		return r.scalar
	}

	return value.Null
}

func (r rt) truthy() bool {
	return r.kind == rtScalar && r.scalar.Truthy()
}

// hashKey renders a canonical string for grouping and DISTINCT/UNION
// row dedup across all four binding kinds.
func (r rt) hashKey() string {
	switch r.kind {
	case rtNode:
		return "node#" + uitoa(r.nodeID)
	case rtRel:
		return "rel#" + uitoa(r.relID)
	case rtScalar:
		return value.HashKey(r.scalar)
	default:
		return "null"
	}
}

func uitoa(id uint64) string {
	if id == 0 {
		return "0"
	}

	var buf [20]byte
	i := len(buf)

	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}

	return string(buf[i:])
}

// Row is one set of variable bindings flowing between clauses.
type Row map[string]rt

// RowSet is a sequence of bindings, the interpreter's working value
// between every clause boundary.
type RowSet []Row

func copyRow(row Row) Row {
	out := make(Row, len(row)+2)
	for k, v := range row {
		out[k] = v
	}

	return out
}

// Option configures an Interpreter, mirroring scaf's Option func(*Runner).
type Option func(*Interpreter)

// WithLogger overrides the interpreter's zap logger (default: zap.NewNop()).
func WithLogger(l *zap.Logger) Option {
	return func(in *Interpreter) { in.logger = l }
}

// WithParams supplies the query's $parameter bindings.
func WithParams(params map[string]value.Value) Option {
	return func(in *Interpreter) { in.params = params }
}

// WithMaxHops overrides the variable-length traversal depth cap applied
// when a pattern gives no explicit upper bound (default 10). Pass
// config.Config.MaxHops to keep it in step with sqlgen's recursive CTEs.
func WithMaxHops(n int) Option {
	return func(in *Interpreter) { in.maxHops = n }
}

// WithMetrics attaches a recorder that Execute reports query and
// mutation counts through. Without this option, Execute records nothing.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(in *Interpreter) { in.metrics = rec }
}

// Interpreter tree-walks a query's clauses against a store.
type Interpreter struct {
	store   *store.Store
	logger  *zap.Logger
	params  map[string]value.Value
	maxHops int
	metrics *metrics.Recorder
}

// New builds an Interpreter bound to s, applying opts.
func New(s *store.Store, opts ...Option) *Interpreter {
	in := &Interpreter{
		store:   s,
		logger:  zap.NewNop(),
		params:  map[string]value.Value{},
		maxHops: defaultMaxHops,
	}

	for _, opt := range opts {
		opt(in)
	}

	return in
}
