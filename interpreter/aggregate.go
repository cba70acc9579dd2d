package interpreter

import (
	"strings"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/value"
)

func isAggregateName(name string) bool {
	switch strings.ToLower(name) {
	case "count", "sum", "avg", "min", "max", "collect":
		return true
	}

	return false
}

// isAggregateCall reports whether e is, in its entirety, a bare
// aggregate function call (the only shape the interpreter's grouping
// evaluates directly; an aggregate nested inside a larger expression
// is rejected by projectGrouped with an UnsupportedError instead).
func isAggregateCall(e ast.Expression) (*ast.FunctionCall, bool) {
	fc, ok := e.(*ast.FunctionCall)
	if !ok {
		return nil, false
	}

	return fc, isAggregateName(fc.Name)
}

// containsAggregateAnywhere walks e's expression tree looking for any
// aggregate function call, used to decide whether a RETURN/WITH needs
// to group its non-aggregated items.
func containsAggregateAnywhere(e ast.Expression) bool {
	switch v := e.(type) {
	case *ast.FunctionCall:
		if isAggregateName(v.Name) {
			return true
		}

		for _, a := range v.Args {
			if containsAggregateAnywhere(a) {
				return true
			}
		}

		return false
	case *ast.BinaryExpr:
		return containsAggregateAnywhere(v.Left) || containsAggregateAnywhere(v.Right)
	case *ast.UnaryExpr:
		return containsAggregateAnywhere(v.X)
	case *ast.PropertyAccess:
		return containsAggregateAnywhere(v.Base)
	case *ast.ListExpr:
		for _, item := range v.Items {
			if containsAggregateAnywhere(item) {
				return true
			}
		}

		return false
	case *ast.CaseExpr:
		if v.Test != nil && containsAggregateAnywhere(v.Test) {
			return true
		}

		for _, alt := range v.Alternatives {
			if containsAggregateAnywhere(alt.When) || containsAggregateAnywhere(alt.Then) {
				return true
			}
		}

		if v.Else != nil {
			return containsAggregateAnywhere(v.Else)
		}

		return false
	default:
		return false
	}
}

// computeAggregate reduces one aggregate function call over every row
// of a group.
func (in *Interpreter) computeAggregate(fc *ast.FunctionCall, groupRows []Row) (rt, error) {
	name := strings.ToLower(fc.Name)

	if name == "count" {
		if len(fc.Args) == 1 {
			if v, ok := fc.Args[0].(*ast.Variable); ok && v.Name == "*" {
				return rtFromValue(value.Int(int64(len(groupRows)))), nil
			}
		}

		vals, err := in.evalAggArgs(fc, groupRows)
		if err != nil {
			return rt{}, err
		}

		return rtFromValue(value.Int(int64(len(vals)))), nil
	}

	vals, err := in.evalAggArgs(fc, groupRows)
	if err != nil {
		return rt{}, err
	}

	switch name {
	case "sum":
		return sumAgg(vals)
	case "avg":
		return avgAgg(vals)
	case "min":
		return minMaxAgg(vals, true)
	case "max":
		return minMaxAgg(vals, false)
	case "collect":
		return rtFromValue(value.List(vals)), nil
	}

	return rt{}, errs.NewUnsupported("aggregate function " + fc.Name)
}

func (in *Interpreter) evalAggArgs(fc *ast.FunctionCall, groupRows []Row) ([]value.Value, error) {
	if len(fc.Args) != 1 {
		return nil, errs.NewTypeError("%s() takes exactly one argument", fc.Name)
	}

	var out []value.Value

	seen := map[string]bool{}

	for _, row := range groupRows {
		v, err := in.eval(row, fc.Args[0])
		if err != nil {
			return nil, err
		}

		if v.kind == rtNull {
			continue
		}

		val := v.toValue()

		if fc.Distinct {
			hk := value.HashKey(val)
			if seen[hk] {
				continue
			}

			seen[hk] = true
		}

		out = append(out, val)
	}

	return out, nil
}

func sumAgg(vals []value.Value) (rt, error) {
	var sumI int64

	var sumF float64

	allInt := true

	for _, v := range vals {
		switch v.Kind {
		case value.KindInt:
			sumI += v.Int
			sumF += float64(v.Int)
		case value.KindFloat:
			allInt = false
			sumF += v.Flt
		default:
			return rt{}, errs.NewTypeError("sum() requires numeric operands")
		}
	}

	if allInt {
		return rtFromValue(value.Int(sumI)), nil
	}

	return rtFromValue(value.Float(sumF)), nil
}

func avgAgg(vals []value.Value) (rt, error) {
	if len(vals) == 0 {
		return rt{kind: rtNull}, nil
	}

	var sum float64

	for _, v := range vals {
		f, err := numericOf(v)
		if err != nil {
			return rt{}, err
		}

		sum += f
	}

	return rtFromValue(value.Float(sum / float64(len(vals)))), nil
}

func minMaxAgg(vals []value.Value, wantMin bool) (rt, error) {
	if len(vals) == 0 {
		return rt{kind: rtNull}, nil
	}

	best := vals[0]

	for _, v := range vals[1:] {
		cmp, err := compareValues(v, best)
		if err != nil {
			return rt{}, err
		}

		if (wantMin && cmp < 0) || (!wantMin && cmp > 0) {
			best = v
		}
	}

	return rtFromValue(best), nil
}
