// Package sqlgen lowers a parsed Cypher AST to parameterised SQL against
// the two-table schema described in spec §6 (nodes/relationships with
// JSON label and property columns). It emits SQL; it never executes it.
package sqlgen

import (
	"fmt"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/value"
)

// defaultMaxHops bounds an unbounded variable-length relationship the
// same way the interpreter's BFS traversal does, so a query that would
// run away in one engine is cut off at the same depth in the other.
// WithMaxHops overrides it, mirroring config.Config.MaxHops.
const defaultMaxHops = 10

// Result is the lowering output: a SQL string with positional `?`
// placeholders and the ordered values they bind to.
type Result struct {
	SQL    string
	Params []any
}

// Option configures a Generator.
type Option func(*Generator)

// WithParams supplies bindings for `$name` parameter references. Unlike
// property literals and labels (which come straight off the AST), a
// parameter's value isn't known to the generator unless the caller
// hands it one — mirroring how the interpreter takes parameter values
// via its own WithParams option.
func WithParams(params map[string]value.Value) Option {
	return func(g *Generator) { g.paramValues = params }
}

// WithMaxHops overrides the recursive CTE depth cap applied to a
// variable-length relationship that gives no explicit upper bound
// (default 10). Pass config.Config.MaxHops to keep it in step with the
// interpreter's own BFS cap.
func WithMaxHops(n int) Option {
	return func(g *Generator) { g.maxHops = n }
}

// Generator lowers one query at a time, carrying the running state a
// single-pass traversal needs: the current alias counter, the parameter
// vector accumulated so far, and the variable-to-alias bindings
// established by the patterns seen so far. This mirrors the
// traverse-and-emit-with-running-state shape of a single-pass printer,
// just targeting SQL text instead of Cypher text.
type Generator struct {
	aliasCounter int
	params       []any
	aliases      map[string]string
	paramValues  map[string]value.Value
	maxHops      int
}

// New creates a Generator ready to lower a single query.
func New(opts ...Option) *Generator {
	g := &Generator{aliases: map[string]string{}, maxHops: defaultMaxHops}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate lowers q to a single parameterised SQL statement.
func Generate(q *ast.Query, opts ...Option) (*Result, error) {
	return New(opts...).Generate(q)
}

// Generate lowers q using g's configured parameter bindings.
func (g *Generator) Generate(q *ast.Query) (*Result, error) {
	var (
		matches  []*ast.MatchClause
		extraWhr []ast.Expression
		terminal ast.Clause
	)

	for _, c := range q.Clauses {
		switch v := c.(type) {
		case *ast.MatchClause:
			matches = append(matches, v)
		case *ast.WhereClause:
			extraWhr = append(extraWhr, v.Expr)
		case *ast.ReturnClause, *ast.CreateClause, *ast.MergeClause, *ast.DeleteClause, *ast.SetClause:
			if terminal != nil {
				return nil, errs.NewUnsupported("multiple mutating/terminal clauses in one statement")
			}

			terminal = v
		default:
			return nil, errs.NewUnsupported(fmt.Sprintf("clause %T", c))
		}
	}

	if terminal == nil {
		return nil, errs.NewUnsupported("query with no RETURN/CREATE/MERGE/DELETE/SET clause")
	}

	switch t := terminal.(type) {
	case *ast.ReturnClause:
		return g.generateSelect(matches, extraWhr, t)
	case *ast.CreateClause:
		if len(matches) > 0 {
			return nil, errs.NewUnsupported("CREATE combined with MATCH in one statement")
		}

		return g.generateCreate(t)
	case *ast.MergeClause:
		if len(matches) > 0 {
			return nil, errs.NewUnsupported("MERGE combined with MATCH in one statement")
		}

		return g.generateMerge(t)
	case *ast.DeleteClause:
		return g.generateDelete(matches, extraWhr, t)
	case *ast.SetClause:
		return g.generateSetStatement(matches, extraWhr, t)
	default:
		return nil, errs.NewUnsupported(fmt.Sprintf("terminal clause %T", terminal))
	}
}

// placeholder appends v to the parameter vector and returns its `?`.
func (g *Generator) placeholder(v any) string {
	g.params = append(g.params, v)
	return "?"
}

// newAlias mints the next anonymous alias, `t0, t1, …`.
func (g *Generator) newAlias() string {
	a := fmt.Sprintf("t%d", g.aliasCounter)
	g.aliasCounter++

	return a
}

// aliasFor returns the SQL alias bound to a Cypher variable, minting an
// anonymous one and registering it if the variable hasn't appeared yet.
func (g *Generator) aliasFor(variable string) string {
	if variable == "" {
		return g.newAlias()
	}

	if a, ok := g.aliases[variable]; ok {
		return a
	}

	a := variable
	g.aliases[variable] = a

	return a
}
