package interpreter

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/value"
)

func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}

	return int64(f), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// evalFunctionCall dispatches fc.Name to one of the scalar builtins
// spec §4.4 names. An unknown name evaluates to null rather than
// erroring, matching the spec's explicit "unknown function names
// evaluate to null" rule.
func (in *Interpreter) evalFunctionCall(row Row, fc *ast.FunctionCall) (rt, error) {
	name := strings.ToLower(fc.Name)

	if isAggregateName(name) {
		return rt{}, errs.NewTypeError("aggregate function %q used outside RETURN/WITH", fc.Name)
	}

	args := make([]rt, len(fc.Args))

	for i, a := range fc.Args {
		v, err := in.eval(row, a)
		if err != nil {
			return rt{}, err
		}

		args[i] = v
	}

	switch name {
	case "id":
		return in.fnID(args)
	case "type":
		return in.fnType(args)
	case "labels":
		return in.fnLabels(args)
	case "properties":
		return in.fnProperties(args)
	case "keys":
		return in.fnKeys(args)
	case "tostring":
		return fnToString(args)
	case "tointeger":
		return fnToInteger(args)
	case "tofloat":
		return fnToFloat(args)
	case "toboolean":
		return fnToBoolean(args)
	case "size", "length":
		return fnSize(args)
	case "coalesce":
		return fnCoalesce(args)
	case "head":
		return fnHead(args)
	case "last":
		return fnLast(args)
	case "tail":
		return fnTail(args)
	case "range":
		return fnRange(args)
	case "abs":
		return fnMath1(args, math.Abs)
	case "ceil":
		return fnMath1(args, math.Ceil)
	case "floor":
		return fnMath1(args, math.Floor)
	case "round":
		return fnMath1(args, math.Round)
	case "rand":
		return rtFromValue(value.Float(rand.Float64())), nil
	case "sqrt":
		return fnMath1(args, math.Sqrt)
	case "sign":
		return fnSign(args)
	case "tolower":
		return fnStringOp(args, strings.ToLower)
	case "toupper":
		return fnStringOp(args, strings.ToUpper)
	case "trim":
		return fnStringOp(args, strings.TrimSpace)
	case "ltrim":
		return fnStringOp(args, func(s string) string { return strings.TrimLeft(s, " \t\n\r") })
	case "rtrim":
		return fnStringOp(args, func(s string) string { return strings.TrimRight(s, " \t\n\r") })
	case "replace":
		return fnReplace(args)
	case "substring":
		return fnSubstring(args)
	case "left":
		return fnLeft(args)
	case "right":
		return fnRight(args)
	case "split":
		return fnSplit(args)
	case "reverse":
		return fnReverse(args)
	case "timestamp":
		return rtFromValue(value.Int(time.Now().UnixMilli())), nil
	case "date", "datetime":
		return rtFromValue(value.String(time.Now().UTC().Format(time.RFC3339))), nil
	}

	return rt{kind: rtNull}, nil
}

func arg(args []rt, i int) rt {
	if i >= len(args) {
		return rt{kind: rtNull}
	}

	return args[i]
}

func (in *Interpreter) fnID(args []rt) (rt, error) {
	a := arg(args, 0)

	switch a.kind {
	case rtNode:
		return rtFromValue(value.Int(int64(a.nodeID))), nil
	case rtRel:
		return rtFromValue(value.Int(int64(a.relID))), nil
	case rtNull:
		return rt{kind: rtNull}, nil
	}

	return rt{}, errs.NewTypeError("id() requires a node or relationship")
}

func (in *Interpreter) fnType(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a.kind != rtRel {
		return rt{}, errs.NewTypeError("type() requires a relationship")
	}

	r, err := in.store.GetRelationship(a.relID)
	if err != nil {
		return rt{}, err
	}

	return rtFromValue(value.String(r.Type)), nil
}

func (in *Interpreter) fnLabels(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a.kind != rtNode {
		return rt{}, errs.NewTypeError("labels() requires a node")
	}

	n, err := in.store.GetNode(a.nodeID)
	if err != nil {
		return rt{}, err
	}

	out := make([]value.Value, len(n.Labels))
	for i, l := range n.Labels {
		out[i] = value.String(l)
	}

	return rtFromValue(value.List(out)), nil
}

func (in *Interpreter) fnProperties(args []rt) (rt, error) {
	a := arg(args, 0)

	var props map[string]value.Value

	switch a.kind {
	case rtNull:
		return rt{kind: rtNull}, nil
	case rtNode:
		n, err := in.store.GetNode(a.nodeID)
		if err != nil {
			return rt{}, err
		}

		props = n.Properties
	case rtRel:
		r, err := in.store.GetRelationship(a.relID)
		if err != nil {
			return rt{}, err
		}

		props = r.Properties
	case rtScalar:
		if a.scalar.Kind == value.KindMap {
			return a, nil
		}

		return rt{}, errs.NewTypeError("properties() requires a node, relationship, or map")
	}

	return rtFromValue(value.Map(value.CloneMap(props))), nil
}

func (in *Interpreter) fnKeys(args []rt) (rt, error) {
	v, err := in.fnProperties(args)
	if err != nil {
		return rt{}, err
	}

	if v.kind == rtNull {
		return v, nil
	}

	keys := make([]value.Value, 0, len(v.scalar.Map))
	for k := range v.scalar.Map {
		keys = append(keys, value.String(k))
	}

	return rtFromValue(value.List(keys)), nil
}

func fnToString(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	return rtFromValue(value.String(a.scalar.String())), nil
}

func fnToInteger(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	switch a.scalar.Kind {
	case value.KindInt:
		return a, nil
	case value.KindFloat:
		return rtFromValue(value.Int(int64(a.scalar.Flt))), nil
	case value.KindString:
		n, err := parseInt(a.scalar.Str)
		if err != nil {
			return rt{kind: rtNull}, nil
		}

		return rtFromValue(value.Int(n)), nil
	}

	return rt{}, errs.NewTypeError("toInteger() cannot convert this value")
}

func fnToFloat(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	switch a.scalar.Kind {
	case value.KindFloat:
		return a, nil
	case value.KindInt:
		return rtFromValue(value.Float(float64(a.scalar.Int))), nil
	case value.KindString:
		f, err := parseFloat(a.scalar.Str)
		if err != nil {
			return rt{kind: rtNull}, nil
		}

		return rtFromValue(value.Float(f)), nil
	}

	return rt{}, errs.NewTypeError("toFloat() cannot convert this value")
}

func fnToBoolean(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	switch a.scalar.Kind {
	case value.KindBool:
		return a, nil
	case value.KindString:
		switch strings.ToLower(a.scalar.Str) {
		case "true":
			return rtFromValue(value.Bool(true)), nil
		case "false":
			return rtFromValue(value.Bool(false)), nil
		}

		return rt{kind: rtNull}, nil
	}

	return rt{}, errs.NewTypeError("toBoolean() cannot convert this value")
}

func fnSize(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	switch a.scalar.Kind {
	case value.KindList:
		return rtFromValue(value.Int(int64(len(a.scalar.List)))), nil
	case value.KindString:
		return rtFromValue(value.Int(int64(len([]rune(a.scalar.Str))))), nil
	case value.KindMap:
		return rtFromValue(value.Int(int64(len(a.scalar.Map)))), nil
	}

	return rt{}, errs.NewTypeError("size()/length() requires a list, string, or map")
}

func fnCoalesce(args []rt) (rt, error) {
	for _, a := range args {
		if a.kind != rtNull {
			return a, nil
		}
	}

	return rt{kind: rtNull}, nil
}

func fnHead(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a.scalar.Kind != value.KindList {
		return rt{}, errs.NewTypeError("head() requires a list")
	}

	if len(a.scalar.List) == 0 {
		return rt{kind: rtNull}, nil
	}

	return rtFromValue(a.scalar.List[0]), nil
}

func fnLast(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a.scalar.Kind != value.KindList {
		return rt{}, errs.NewTypeError("last() requires a list")
	}

	if len(a.scalar.List) == 0 {
		return rt{kind: rtNull}, nil
	}

	return rtFromValue(a.scalar.List[len(a.scalar.List)-1]), nil
}

func fnTail(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a.scalar.Kind != value.KindList {
		return rt{}, errs.NewTypeError("tail() requires a list")
	}

	if len(a.scalar.List) <= 1 {
		return rtFromValue(value.List(nil)), nil
	}

	return rtFromValue(value.List(append([]value.Value(nil), a.scalar.List[1:]...))), nil
}

func fnRange(args []rt) (rt, error) {
	a0, a1 := arg(args, 0), arg(args, 1)
	if a0.kind == rtNull || a1.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a0.scalar.Kind != value.KindInt || a1.scalar.Kind != value.KindInt {
		return rt{}, errs.NewTypeError("range() requires integer bounds")
	}

	step := int64(1)

	if len(args) > 2 {
		a2 := arg(args, 2)
		if a2.kind != rtNull {
			if a2.scalar.Kind != value.KindInt {
				return rt{}, errs.NewTypeError("range() requires an integer step")
			}

			step = a2.scalar.Int
		}
	}

	if step == 0 {
		return rt{}, errs.NewTypeError("range() step must not be zero")
	}

	start, end := a0.scalar.Int, a1.scalar.Int

	var out []value.Value

	if step > 0 {
		for n := start; n <= end; n += step {
			out = append(out, value.Int(n))
		}
	} else {
		for n := start; n >= end; n += step {
			out = append(out, value.Int(n))
		}
	}

	return rtFromValue(value.List(out)), nil
}

func fnMath1(args []rt, f func(float64) float64) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	n, err := numericOf(a.scalar)
	if err != nil {
		return rt{}, err
	}

	return rtFromValue(value.Float(f(n))), nil
}

func fnSign(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	n, err := numericOf(a.scalar)
	if err != nil {
		return rt{}, err
	}

	switch {
	case n > 0:
		return rtFromValue(value.Int(1)), nil
	case n < 0:
		return rtFromValue(value.Int(-1)), nil
	default:
		return rtFromValue(value.Int(0)), nil
	}
}

func fnStringOp(args []rt, f func(string) string) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a.scalar.Kind != value.KindString {
		return rt{}, errs.NewTypeError("string function requires a string argument")
	}

	return rtFromValue(value.String(f(a.scalar.Str))), nil
}

func fnReplace(args []rt) (rt, error) {
	a0, a1, a2 := arg(args, 0), arg(args, 1), arg(args, 2)
	if a0.kind == rtNull || a1.kind == rtNull || a2.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a0.scalar.Kind != value.KindString || a1.scalar.Kind != value.KindString || a2.scalar.Kind != value.KindString {
		return rt{}, errs.NewTypeError("replace() requires string arguments")
	}

	return rtFromValue(value.String(strings.ReplaceAll(a0.scalar.Str, a1.scalar.Str, a2.scalar.Str))), nil
}

func fnSubstring(args []rt) (rt, error) {
	a0, a1 := arg(args, 0), arg(args, 1)
	if a0.kind == rtNull || a1.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a0.scalar.Kind != value.KindString || a1.scalar.Kind != value.KindInt {
		return rt{}, errs.NewTypeError("substring() requires (string, integer[, integer])")
	}

	runes := []rune(a0.scalar.Str)
	start := clampIndex(int(a1.scalar.Int), len(runes))

	end := len(runes)

	if len(args) > 2 {
		a2 := arg(args, 2)
		if a2.kind != rtNull {
			if a2.scalar.Kind != value.KindInt {
				return rt{}, errs.NewTypeError("substring() length must be an integer")
			}

			end = clampIndex(start+int(a2.scalar.Int), len(runes))
		}
	}

	if end < start {
		end = start
	}

	return rtFromValue(value.String(string(runes[start:end]))), nil
}

func fnLeft(args []rt) (rt, error) {
	a0, a1 := arg(args, 0), arg(args, 1)
	if a0.kind == rtNull || a1.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a0.scalar.Kind != value.KindString || a1.scalar.Kind != value.KindInt {
		return rt{}, errs.NewTypeError("left() requires (string, integer)")
	}

	runes := []rune(a0.scalar.Str)
	n := clampIndex(int(a1.scalar.Int), len(runes))

	return rtFromValue(value.String(string(runes[:n]))), nil
}

func fnRight(args []rt) (rt, error) {
	a0, a1 := arg(args, 0), arg(args, 1)
	if a0.kind == rtNull || a1.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a0.scalar.Kind != value.KindString || a1.scalar.Kind != value.KindInt {
		return rt{}, errs.NewTypeError("right() requires (string, integer)")
	}

	runes := []rune(a0.scalar.Str)
	n := clampIndex(int(a1.scalar.Int), len(runes))

	return rtFromValue(value.String(string(runes[len(runes)-n:]))), nil
}

func clampIndex(n, max int) int {
	if n < 0 {
		return 0
	}

	if n > max {
		return max
	}

	return n
}

func fnSplit(args []rt) (rt, error) {
	a0, a1 := arg(args, 0), arg(args, 1)
	if a0.kind == rtNull || a1.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	if a0.scalar.Kind != value.KindString || a1.scalar.Kind != value.KindString {
		return rt{}, errs.NewTypeError("split() requires string arguments")
	}

	parts := strings.Split(a0.scalar.Str, a1.scalar.Str)
	out := make([]value.Value, len(parts))

	for i, p := range parts {
		out[i] = value.String(p)
	}

	return rtFromValue(value.List(out)), nil
}

func fnReverse(args []rt) (rt, error) {
	a := arg(args, 0)
	if a.kind == rtNull {
		return rt{kind: rtNull}, nil
	}

	switch a.scalar.Kind {
	case value.KindString:
		runes := []rune(a.scalar.Str)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}

		return rtFromValue(value.String(string(runes))), nil
	case value.KindList:
		out := make([]value.Value, len(a.scalar.List))
		for i, v := range a.scalar.List {
			out[len(out)-1-i] = v
		}

		return rtFromValue(value.List(out)), nil
	}

	return rt{}, errs.NewTypeError("reverse() requires a string or list")
}
