package interpreter

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/value"
)

// eval evaluates e against row, following Cypher's null-propagation
// rules (spec §4.4): any operator touching a null operand (other than
// AND/OR's three-valued logic and IS [NOT] NULL) yields null.
func (in *Interpreter) eval(row Row, e ast.Expression) (rt, error) {
	switch v := e.(type) {
	case *ast.IntegerLit:
		return rtFromValue(value.Int(v.Value)), nil
	case *ast.FloatLit:
		return rtFromValue(value.Float(v.Value)), nil
	case *ast.StringLit:
		return rtFromValue(value.String(v.Value)), nil
	case *ast.BoolLit:
		return rtFromValue(value.Bool(v.Value)), nil
	case *ast.NullLit:
		return rt{kind: rtNull}, nil
	case *ast.Variable:
		if b, ok := row[v.Name]; ok {
			return b, nil
		}

		return rt{kind: rtNull}, nil
	case *ast.Parameter:
		if val, ok := in.params[v.Name]; ok {
			return rtFromValue(val), nil
		}

		return rt{kind: rtNull}, nil
	case *ast.PropertyAccess:
		return in.evalPropertyAccess(row, v)
	case *ast.ListExpr:
		items := make([]value.Value, len(v.Items))

		for i, it := range v.Items {
			r, err := in.eval(row, it)
			if err != nil {
				return rt{}, err
			}

			items[i] = r.toValue()
		}

		return rtFromValue(value.List(items)), nil
	case *ast.MapLiteral:
		m, err := in.evalMapLiteral(row, v)
		if err != nil {
			return rt{}, err
		}

		return rtFromValue(value.Map(m)), nil
	case *ast.BinaryExpr:
		return in.evalBinary(row, v)
	case *ast.UnaryExpr:
		return in.evalUnary(row, v)
	case *ast.FunctionCall:
		return in.evalFunctionCall(row, v)
	case *ast.CaseExpr:
		return in.evalCase(row, v)
	case *ast.ExistsExpr:
		return in.evalExists(row, v)
	case *ast.QuantifiedExpr:
		return in.evalQuantified(row, v)
	case *ast.ListComprehension:
		return in.evalListComprehension(row, v)
	case *ast.PatternExpr:
		matches, err := in.matchPattern(row, v.Pattern)
		if err != nil {
			return rt{}, err
		}

		return rtFromValue(value.Bool(len(matches) > 0)), nil
	}

	return rt{}, errs.NewUnsupported(fmt.Sprintf("expression %T", e))
}

func (in *Interpreter) evalPropertyAccess(row Row, pa *ast.PropertyAccess) (rt, error) {
	base, err := in.eval(row, pa.Base)
	if err != nil {
		return rt{}, err
	}

	if len(pa.Path) == 0 {
		return rt{}, errs.NewTypeError("empty property path")
	}

	var cur value.Value

	switch base.kind {
	case rtNode:
		n, err := in.store.GetNode(base.nodeID)
		if err != nil {
			return rt{}, err
		}

		cur = propLookup(n.Properties, pa.Path[0])
	case rtRel:
		r, err := in.store.GetRelationship(base.relID)
		if err != nil {
			return rt{}, err
		}

		cur = propLookup(r.Properties, pa.Path[0])
	case rtScalar:
		cur = propIndex(base.scalar, pa.Path[0])
	default:
		return rt{kind: rtNull}, nil
	}

	for _, key := range pa.Path[1:] {
		cur = propIndex(cur, key)
	}

	return rtFromValue(cur), nil
}

func propLookup(props map[string]value.Value, key string) value.Value {
	if v, ok := props[key]; ok {
		return v
	}

	return value.Null
}

func propIndex(v value.Value, key string) value.Value {
	if v.Kind != value.KindMap {
		return value.Null
	}

	return propLookup(v.Map, key)
}

func (in *Interpreter) evalBinary(row Row, e *ast.BinaryExpr) (rt, error) {
	if e.Op == ast.OpAnd || e.Op == ast.OpOr {
		return in.evalLogical(row, e)
	}

	l, err := in.eval(row, e.Left)
	if err != nil {
		return rt{}, err
	}

	r, err := in.eval(row, e.Right)
	if err != nil {
		return rt{}, err
	}

	if e.Op == ast.OpXor {
		if l.kind == rtNull || r.kind == rtNull {
			return rt{kind: rtNull}, nil
		}

		return rtFromValue(value.Bool(l.truthy() != r.truthy())), nil
	}

	if l.kind == rtNull || r.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	lv, rv := l.toValue(), r.toValue()

	switch e.Op {
	case ast.OpAdd:
		return in.evalAdd(lv, rv)
	case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod, ast.OpPow:
		return evalArith(e.Op, lv, rv)
	case ast.OpEq:
		return rtFromValue(value.Bool(value.Equal(lv, rv))), nil
	case ast.OpNotEq:
		return rtFromValue(value.Bool(!value.Equal(lv, rv))), nil
	case ast.OpLt, ast.OpGt, ast.OpLtEq, ast.OpGtEq:
		return evalCompare(e.Op, lv, rv)
	case ast.OpIn:
		return evalIn(lv, rv)
	case ast.OpStartsWith, ast.OpEndsWith, ast.OpContains:
		return evalStringOp(e.Op, lv, rv)
	case ast.OpRegexMatch:
		return evalRegexMatch(lv, rv)
	}

	return rt{}, errs.NewUnsupported("binary operator")
}

func (in *Interpreter) evalLogical(row Row, e *ast.BinaryExpr) (rt, error) {
	l, err := in.eval(row, e.Left)
	if err != nil {
		return rt{}, err
	}

	lTruth, lNull := threeValued(l)

	if e.Op == ast.OpAnd && !lNull && !lTruth {
		return rtFromValue(value.Bool(false)), nil
	}

	if e.Op == ast.OpOr && !lNull && lTruth {
		return rtFromValue(value.Bool(true)), nil
	}

	r, err := in.eval(row, e.Right)
	if err != nil {
		return rt{}, err
	}

	rTruth, rNull := threeValued(r)

	if e.Op == ast.OpAnd {
		if !lNull && !lTruth {
			return rtFromValue(value.Bool(false)), nil
		}

		if !rNull && !rTruth {
			return rtFromValue(value.Bool(false)), nil
		}

		if lNull || rNull {
			return rt{kind: rtNull}, nil
		}

		return rtFromValue(value.Bool(lTruth && rTruth)), nil
	}

	// OR
	if !lNull && lTruth {
		return rtFromValue(value.Bool(true)), nil
	}

	if !rNull && rTruth {
		return rtFromValue(value.Bool(true)), nil
	}

	if lNull || rNull {
		return rt{kind: rtNull}, nil
	}

	return rtFromValue(value.Bool(lTruth || rTruth)), nil
}

func threeValued(v rt) (truth bool, isNull bool) {
	if v.kind == rtNull {
		return false, true
	}

	return v.truthy(), false
}

func (in *Interpreter) evalAdd(l, r value.Value) (rt, error) {
	if l.Kind == value.KindString || r.Kind == value.KindString {
		return rtFromValue(value.String(l.String() + r.String())), nil
	}

	if l.Kind == value.KindList || r.Kind == value.KindList {
		var items []value.Value

		if l.Kind == value.KindList {
			items = append(items, l.List...)
		} else {
			items = append(items, l)
		}

		if r.Kind == value.KindList {
			items = append(items, r.List...)
		} else {
			items = append(items, r)
		}

		return rtFromValue(value.List(items)), nil
	}

	return evalArith(ast.OpAdd, l, r)
}

func evalArith(op ast.BinaryOp, l, r value.Value) (rt, error) {
	if op == ast.OpPow {
		lf, err := numericOf(l)
		if err != nil {
			return rt{}, err
		}

		rf, err := numericOf(r)
		if err != nil {
			return rt{}, err
		}

		return rtFromValue(value.Float(math.Pow(lf, rf))), nil
	}

	if l.Kind == value.KindInt && r.Kind == value.KindInt {
		switch op {
		case ast.OpAdd:
			return rtFromValue(value.Int(l.Int + r.Int)), nil
		case ast.OpSub:
			return rtFromValue(value.Int(l.Int - r.Int)), nil
		case ast.OpMul:
			return rtFromValue(value.Int(l.Int * r.Int)), nil
		case ast.OpDiv:
			if r.Int == 0 {
				return rt{}, errs.NewTypeError("division by zero")
			}

			return rtFromValue(value.Int(l.Int / r.Int)), nil
		case ast.OpMod:
			if r.Int == 0 {
				return rt{}, errs.NewTypeError("division by zero")
			}

			return rtFromValue(value.Int(l.Int % r.Int)), nil
		}
	}

	lf, err := numericOf(l)
	if err != nil {
		return rt{}, err
	}

	rf, err := numericOf(r)
	if err != nil {
		return rt{}, err
	}

	switch op {
	case ast.OpAdd:
		return rtFromValue(value.Float(lf + rf)), nil
	case ast.OpSub:
		return rtFromValue(value.Float(lf - rf)), nil
	case ast.OpMul:
		return rtFromValue(value.Float(lf * rf)), nil
	case ast.OpDiv:
		if rf == 0 {
			return rt{}, errs.NewTypeError("division by zero")
		}

		return rtFromValue(value.Float(lf / rf)), nil
	case ast.OpMod:
		if rf == 0 {
			return rt{}, errs.NewTypeError("division by zero")
		}

		return rtFromValue(value.Float(math.Mod(lf, rf))), nil
	}

	return rt{}, errs.NewTypeError("unsupported arithmetic operator")
}

func evalCompare(op ast.BinaryOp, l, r value.Value) (rt, error) {
	cmp, err := compareValues(l, r)
	if err != nil {
		return rt{}, err
	}

	switch op {
	case ast.OpLt:
		return rtFromValue(value.Bool(cmp < 0)), nil
	case ast.OpGt:
		return rtFromValue(value.Bool(cmp > 0)), nil
	case ast.OpLtEq:
		return rtFromValue(value.Bool(cmp <= 0)), nil
	case ast.OpGtEq:
		return rtFromValue(value.Bool(cmp >= 0)), nil
	}

	return rt{}, errs.NewUnsupported("comparison operator")
}

func evalIn(lv, rv value.Value) (rt, error) {
	if rv.Kind != value.KindList {
		return rt{}, errs.NewTypeError("IN requires a list on the right-hand side")
	}

	for _, item := range rv.List {
		if value.Equal(lv, item) {
			return rtFromValue(value.Bool(true)), nil
		}
	}

	return rtFromValue(value.Bool(false)), nil
}

func evalStringOp(op ast.BinaryOp, l, r value.Value) (rt, error) {
	if l.Kind != value.KindString || r.Kind != value.KindString {
		return rt{}, errs.NewTypeError("STARTS WITH/ENDS WITH/CONTAINS require string operands")
	}

	switch op {
	case ast.OpStartsWith:
		return rtFromValue(value.Bool(strings.HasPrefix(l.Str, r.Str))), nil
	case ast.OpEndsWith:
		return rtFromValue(value.Bool(strings.HasSuffix(l.Str, r.Str))), nil
	case ast.OpContains:
		return rtFromValue(value.Bool(strings.Contains(l.Str, r.Str))), nil
	}

	return rt{}, errs.NewUnsupported("string operator")
}

func evalRegexMatch(l, r value.Value) (rt, error) {
	if l.Kind != value.KindString || r.Kind != value.KindString {
		return rt{}, errs.NewTypeError("=~ requires string operands")
	}

	ok, err := regexp.MatchString(r.Str, l.Str)
	if err != nil {
		return rt{}, errs.NewTypeError("invalid regular expression: %v", err)
	}

	return rtFromValue(value.Bool(ok)), nil
}

func (in *Interpreter) evalUnary(row Row, e *ast.UnaryExpr) (rt, error) {
	if e.Op == ast.OpIsNull || e.Op == ast.OpIsNotNull {
		x, err := in.eval(row, e.X)
		if err != nil {
			return rt{}, err
		}

		isNull := x.kind == rtNull
		if e.Op == ast.OpIsNull {
			return rtFromValue(value.Bool(isNull)), nil
		}

		return rtFromValue(value.Bool(!isNull)), nil
	}

	x, err := in.eval(row, e.X)
	if err != nil {
		return rt{}, err
	}

	if e.Op == ast.OpNot {
		if x.kind == rtNull {
			return rt{kind: rtNull}, nil
		}

		return rtFromValue(value.Bool(!x.truthy())), nil
	}

	if x.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	v := x.toValue()

	switch e.Op {
	case ast.OpNeg:
		if v.Kind == value.KindInt {
			return rtFromValue(value.Int(-v.Int)), nil
		}

		f, err := numericOf(v)
		if err != nil {
			return rt{}, err
		}

		return rtFromValue(value.Float(-f)), nil
	case ast.OpPos:
		return x, nil
	}

	return rt{}, errs.NewUnsupported("unary operator")
}

func (in *Interpreter) evalCase(row Row, e *ast.CaseExpr) (rt, error) {
	var testVal rt

	if e.Test != nil {
		v, err := in.eval(row, e.Test)
		if err != nil {
			return rt{}, err
		}

		testVal = v
	}

	for _, alt := range e.Alternatives {
		if e.Test != nil {
			whenVal, err := in.eval(row, alt.When)
			if err != nil {
				return rt{}, err
			}

			if testVal.kind != rtNull && whenVal.kind != rtNull && value.Equal(testVal.toValue(), whenVal.toValue()) {
				return in.eval(row, alt.Then)
			}

			continue
		}

		cond, err := in.eval(row, alt.When)
		if err != nil {
			return rt{}, err
		}

		if cond.truthy() {
			return in.eval(row, alt.Then)
		}
	}

	if e.Else != nil {
		return in.eval(row, e.Else)
	}

	return rt{kind: rtNull}, nil
}

func (in *Interpreter) evalExists(row Row, e *ast.ExistsExpr) (rt, error) {
	if pe, ok := e.X.(*ast.PatternExpr); ok {
		matches, err := in.matchPattern(row, pe.Pattern)
		if err != nil {
			return rt{}, err
		}

		return rtFromValue(value.Bool(len(matches) > 0)), nil
	}

	v, err := in.eval(row, e.X)
	if err != nil {
		return rt{}, err
	}

	return rtFromValue(value.Bool(v.kind != rtNull)), nil
}

func (in *Interpreter) evalQuantified(row Row, e *ast.QuantifiedExpr) (rt, error) {
	listVal, err := in.eval(row, e.List)
	if err != nil {
		return rt{}, err
	}

	if listVal.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if listVal.scalar.Kind != value.KindList {
		return rt{}, errs.NewTypeError("quantifier expression requires a list")
	}

	matchCount := 0

	for _, item := range listVal.scalar.List {
		sub := copyRow(row)
		sub[e.Variable] = rtFromValue(item)

		ok := true

		if e.Where != nil {
			cond, err := in.eval(sub, e.Where)
			if err != nil {
				return rt{}, err
			}

			ok = cond.truthy()
		}

		if ok {
			matchCount++
		}
	}

	n := len(listVal.scalar.List)

	switch e.Kind {
	case ast.QuantAll:
		return rtFromValue(value.Bool(matchCount == n)), nil
	case ast.QuantAny:
		return rtFromValue(value.Bool(matchCount > 0)), nil
	case ast.QuantNone:
		return rtFromValue(value.Bool(matchCount == 0)), nil
	case ast.QuantSingle:
		return rtFromValue(value.Bool(matchCount == 1)), nil
	}

	return rt{}, errs.NewUnsupported("quantifier")
}

func (in *Interpreter) evalListComprehension(row Row, e *ast.ListComprehension) (rt, error) {
	listVal, err := in.eval(row, e.List)
	if err != nil {
		return rt{}, err
	}

	if listVal.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if listVal.scalar.Kind != value.KindList {
		return rt{}, errs.NewTypeError("list comprehension requires a list")
	}

	var out []value.Value

	for _, item := range listVal.scalar.List {
		sub := copyRow(row)
		sub[e.Variable] = rtFromValue(item)

		if e.Where != nil {
			cond, err := in.eval(sub, e.Where)
			if err != nil {
				return rt{}, err
			}

			if !cond.truthy() {
				continue
			}
		}

		if e.Map != nil {
			mv, err := in.eval(sub, e.Map)
			if err != nil {
				return rt{}, err
			}

			out = append(out, mv.toValue())
		} else {
			out = append(out, item)
		}
	}

	return rtFromValue(value.List(out)), nil
}
