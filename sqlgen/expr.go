package sqlgen

import (
	"fmt"
	"strings"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
)

// lowerExpr renders e as a SQL boolean/scalar fragment, appending any
// literal it carries to the parameter vector. Property values, labels,
// and relationship types are never interpolated into the returned
// string — they always travel through placeholder.
func (g *Generator) lowerExpr(e ast.Expression) (string, error) {
	switch v := e.(type) {
	case *ast.PropertyAccess:
		return g.lowerPropertyAccess(v)
	case *ast.Variable:
		alias, ok := g.aliases[v.Name]
		if !ok {
			return "", errs.NewUnsupported("reference to unbound variable " + v.Name)
		}

		return alias + ".*", nil
	case *ast.IntegerLit:
		return g.placeholder(v.Value), nil
	case *ast.FloatLit:
		return g.placeholder(v.Value), nil
	case *ast.StringLit:
		return g.placeholder(v.Value), nil
	case *ast.BoolLit:
		return g.placeholder(v.Value), nil
	case *ast.NullLit:
		return "NULL", nil
	case *ast.Parameter:
		pv, ok := g.paramValues[v.Name]
		if !ok {
			return "", errs.NewUnsupported("unbound parameter $" + v.Name)
		}

		return g.placeholder(pv.ToAny()), nil
	case *ast.BinaryExpr:
		return g.lowerBinary(v)
	case *ast.UnaryExpr:
		return g.lowerUnary(v)
	default:
		return "", errs.NewUnsupported(fmt.Sprintf("expression %T in SQL generation", e))
	}
}

// lowerPropertyAccess only supports a single hop off a bound variable
// (`n.prop`), matching spec §4.5's property-predicate lowering; deeper
// paths into nested JSON aren't part of the targeted SQL subset.
func (g *Generator) lowerPropertyAccess(p *ast.PropertyAccess) (string, error) {
	v, ok := p.Base.(*ast.Variable)
	if !ok || len(p.Path) != 1 {
		return "", errs.NewUnsupported("nested property access in SQL generation")
	}

	alias, ok := g.aliases[v.Name]
	if !ok {
		return "", errs.NewUnsupported("reference to unbound variable " + v.Name)
	}

	return fmt.Sprintf("json_extract(%s.properties, '$.%s')", alias, p.Path[0]), nil
}

func (g *Generator) lowerBinary(b *ast.BinaryExpr) (string, error) {
	op, ok := binaryOpSQL[b.Op]
	if !ok {
		return "", errs.NewUnsupported("operator in SQL generation")
	}

	switch b.Op {
	case ast.OpStartsWith, ast.OpEndsWith, ast.OpContains:
		return g.lowerStringOp(b)
	case ast.OpRegexMatch:
		return "", errs.NewUnsupported("regex match (=~) in SQL generation")
	case ast.OpIn:
		return g.lowerIn(b)
	case ast.OpXor:
		return "", errs.NewUnsupported("XOR in SQL generation")
	case ast.OpPow:
		return "", errs.NewUnsupported("^ operator in SQL generation")
	}

	left, err := g.lowerExpr(b.Left)
	if err != nil {
		return "", err
	}

	right, err := g.lowerExpr(b.Right)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

var binaryOpSQL = map[ast.BinaryOp]string{
	ast.OpAdd:        "+",
	ast.OpSub:        "-",
	ast.OpMul:        "*",
	ast.OpDiv:        "/",
	ast.OpMod:        "%",
	ast.OpEq:         "=",
	ast.OpNotEq:      "<>",
	ast.OpLt:         "<",
	ast.OpLtEq:       "<=",
	ast.OpGt:         ">",
	ast.OpGtEq:       ">=",
	ast.OpAnd:        "AND",
	ast.OpOr:         "OR",
	ast.OpStartsWith: "LIKE",
	ast.OpEndsWith:   "LIKE",
	ast.OpContains:   "LIKE",
	ast.OpIn:         "IN",
	ast.OpRegexMatch: "REGEXP",
}

// lowerStringOp lowers STARTS WITH / ENDS WITH / CONTAINS to a
// parameterised LIKE, escaping no wildcard characters in the pattern
// itself — the pattern always arrives as a bound value, never spliced
// into the statement text.
func (g *Generator) lowerStringOp(b *ast.BinaryExpr) (string, error) {
	left, err := g.lowerExpr(b.Left)
	if err != nil {
		return "", err
	}

	lit, ok := b.Right.(*ast.StringLit)
	if !ok {
		return "", errs.NewUnsupported("STARTS WITH/ENDS WITH/CONTAINS with a non-literal operand")
	}

	var pattern string

	switch b.Op {
	case ast.OpStartsWith:
		pattern = lit.Value + "%"
	case ast.OpEndsWith:
		pattern = "%" + lit.Value
	default:
		pattern = "%" + lit.Value + "%"
	}

	return fmt.Sprintf("(%s LIKE %s)", left, g.placeholder(pattern)), nil
}

func (g *Generator) lowerIn(b *ast.BinaryExpr) (string, error) {
	list, ok := b.Right.(*ast.ListExpr)
	if !ok {
		return "", errs.NewUnsupported("IN with a non-literal list")
	}

	left, err := g.lowerExpr(b.Left)
	if err != nil {
		return "", err
	}

	placeholders := make([]string, len(list.Items))

	for i, item := range list.Items {
		ph, err := g.lowerExpr(item)
		if err != nil {
			return "", err
		}

		placeholders[i] = ph
	}

	return fmt.Sprintf("(%s IN (%s))", left, strings.Join(placeholders, ", ")), nil
}

func (g *Generator) lowerUnary(u *ast.UnaryExpr) (string, error) {
	x, err := g.lowerExpr(u.X)
	if err != nil {
		return "", err
	}

	switch u.Op {
	case ast.OpNot:
		return fmt.Sprintf("(NOT %s)", x), nil
	case ast.OpNeg:
		return fmt.Sprintf("(-%s)", x), nil
	case ast.OpPos:
		return x, nil
	case ast.OpIsNull:
		return fmt.Sprintf("(%s IS NULL)", x), nil
	case ast.OpIsNotNull:
		return fmt.Sprintf("(%s IS NOT NULL)", x), nil
	default:
		return "", errs.NewUnsupported("unary operator in SQL generation")
	}
}
