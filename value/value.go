// Package value implements the tagged Value union used for node/relationship
// properties, query parameters, and intermediate expression results.
//
// Per spec §1 and §9, this intentionally stays on Go's native int64/float64
// rather than reaching for an external 64-bit-integer or arbitrary-precision
// library: those are named as out-of-scope "numerical value libraries",
// external collaborators to this core.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variant held by a Value.
type Kind int

// Kind constants for the Value tagged union.
const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindList
	KindMap
)

// Value is a tagged union over the Cypher scalar and container types.
// Exactly one of the typed fields is meaningful, selected by Kind; this
// mirrors the discriminated-kind-plus-payload shape the teacher uses for
// its own Type/TypeKind union in types.go, applied here to runtime data.
type Value struct {
	Kind Kind
	Int  int64
	Flt  float64
	Str  string
	Bool bool
	List []Value
	Map  map[string]Value
}

// Null is the singular null value.
var Null = Value{Kind: KindNull}

// Int wraps an integer.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Float wraps a float.
func Float(f float64) Value { return Value{Kind: KindFloat, Flt: f} }

// String wraps a string.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// List wraps a list of values.
func List(vs []Value) Value { return Value{Kind: KindList, List: vs} }

// Map wraps a string-keyed map of values.
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Truthy implements Cypher's boolean coercion for WHERE/AND/OR contexts:
// only an explicit boolean true is truthy; null and everything else is not.
func (v Value) Truthy() bool {
	return v.Kind == KindBool && v.Bool
}

// Equal performs deep value equality, used by the =, <> and IN
// operators and by the store's non-indexed property lookups and MERGE
// matching (RETURN DISTINCT and the indexes compare HashKey strings).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// Cypher treats 1 and 1.0 as equal under "=".
		if a.Kind == KindInt && b.Kind == KindFloat {
			return float64(a.Int) == b.Flt
		}

		if a.Kind == KindFloat && b.Kind == KindInt {
			return a.Flt == float64(b.Int)
		}

		return false
	}

	switch a.Kind {
	case KindNull:
		return true
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Flt == b.Flt
	case KindString:
		return a.Str == b.Str
	case KindBool:
		return a.Bool == b.Bool
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}

		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}

		return true
	case KindMap:
		if len(a.Map) != len(b.Map) {
			return false
		}

		for k, av := range a.Map {
			bv, ok := b.Map[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// HashKey renders a canonical, order-stable string for v, used to
// deduplicate rows for RETURN DISTINCT without an O(n^2) Equal scan.
func HashKey(v Value) string {
	var b strings.Builder
	writeHashKey(&b, v)

	return b.String()
}

func writeHashKey(b *strings.Builder, v Value) {
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindInt:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		b.WriteString("f:")
		b.WriteString(strconv.FormatFloat(v.Flt, 'g', -1, 64))
	case KindString:
		b.WriteString("s:")
		b.WriteString(strconv.Quote(v.Str))
	case KindBool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(v.Bool))
	case KindList:
		b.WriteString("[")

		for i, e := range v.List {
			if i > 0 {
				b.WriteString(",")
			}

			writeHashKey(b, e)
		}

		b.WriteString("]")
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}

		sort.Strings(keys)
		b.WriteString("{")

		for i, k := range keys {
			if i > 0 {
				b.WriteString(",")
			}

			b.WriteString(strconv.Quote(k))
			b.WriteString(":")
			writeHashKey(b, v.Map[k])
		}

		b.WriteString("}")
	}
}

// String renders v for display (RETURN output, REPL tables, toString()).
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}

		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, v.Map[k].String())
		}

		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

// FromAny converts a plain Go value (as produced by JSON decoding or
// supplied as a query parameter) into a Value.
func FromAny(a any) Value {
	switch t := a.(type) {
	case nil:
		return Null
	case Value:
		return t
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = FromAny(e)
		}

		return List(vs)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}

		return Map(m)
	default:
		return String(fmt.Sprint(t))
	}
}

// ToAny converts a Value back into a plain Go value, used at the
// interpreter/record boundary (spec §6's output records).
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Flt
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	case KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.ToAny()
		}

		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.ToAny()
		}

		return out
	default:
		return nil
	}
}

// Clone performs a deep copy of v, used by the store to hand callers
// copies that cannot alias internal mutable state (spec §4.3 "Ownership
// of graph records").
func Clone(v Value) Value {
	switch v.Kind {
	case KindList:
		out := make([]Value, len(v.List))
		for i, e := range v.List {
			out[i] = Clone(e)
		}

		return List(out)
	case KindMap:
		out := make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			out[k] = Clone(e)
		}

		return Map(out)
	default:
		return v
	}
}

// CloneMap deep-copies a string-keyed property map.
func CloneMap(m map[string]Value) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}

	return out
}
