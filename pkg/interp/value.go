package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/stepbook/pkg/frame"
	"github.com/matzehuels/stepbook/pkg/script"
)

// Value is a runtime value. Scalars are nil (None), bool, int64, float64 and
// string; containers are *List, Tuple and *Dict; tables are *frame.Table.
type Value = any

// List is a mutable sequence.
type List struct {
	Elems []Value
}

// Tuple is an immutable sequence.
type Tuple []Value

// Dict is an insertion-ordered mapping with hashable keys.
type Dict struct {
	keys  []Value
	vals  []Value
	index map[string]int
}

// NewDict returns an empty dict.
func NewDict() *Dict { return &Dict{index: make(map[string]int)} }

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value { return append([]Value(nil), d.keys...) }

// Get returns the value stored under k.
func (d *Dict) Get(k Value) (Value, bool, error) {
	h, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[h]
	if !ok {
		return nil, false, nil
	}
	return d.vals[i], true, nil
}

// Set stores v under k.
func (d *Dict) Set(k, v Value) error {
	h, err := hashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[h]; ok {
		d.vals[i] = v
		return nil
	}
	d.index[h] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

// Delete removes k, reporting whether it was present.
func (d *Dict) Delete(k Value) (bool, error) {
	h, err := hashKey(k)
	if err != nil {
		return false, err
	}
	i, ok := d.index[h]
	if !ok {
		return false, nil
	}
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.index, h)
	for j := i; j < len(d.keys); j++ {
		hj, _ := hashKey(d.keys[j])
		d.index[hj] = j
	}
	return true, nil
}

func hashKey(v Value) (string, error) {
	switch v := v.(type) {
	case nil:
		return "N", nil
	case bool:
		if v {
			return "n1", nil
		}
		return "n0", nil
	case int64:
		return "n" + strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return "n" + strconv.FormatInt(int64(v), 10), nil
		}
		return "f" + strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return "s" + v, nil
	case Tuple:
		var b strings.Builder
		b.WriteString("t(")
		for _, e := range v {
			h, err := hashKey(e)
			if err != nil {
				return "", err
			}
			b.WriteString(strconv.Quote(h))
			b.WriteString(",")
		}
		b.WriteString(")")
		return b.String(), nil
	}
	return "", raise("TypeError", "unhashable type: '%s'", typeName(v))
}

// Kwarg is one keyword argument.
type Kwarg struct {
	Name  string
	Value Value
}

// Kwargs are keyword arguments in call order.
type Kwargs []Kwarg

// Get returns the keyword argument name.
func (kw Kwargs) Get(name string) (Value, bool) {
	for _, k := range kw {
		if k.Name == name {
			return k.Value, true
		}
	}
	return nil, false
}

// Callable is anything a call expression can invoke.
type Callable interface {
	Call(in *Interp, args []Value, kwargs Kwargs) (Value, error)
	Name() string
}

// Builtin is a callable implemented in Go.
type Builtin struct {
	name string
	fn   func(in *Interp, args []Value, kwargs Kwargs) (Value, error)
}

func (b *Builtin) Name() string { return b.name }

func (b *Builtin) Call(in *Interp, args []Value, kwargs Kwargs) (Value, error) {
	return b.fn(in, args, kwargs)
}

// Function is a def or lambda closed over its defining environment.
type Function struct {
	name     string
	params   []*script.Param
	defaults map[int]Value
	body     []script.Stmt
	expr     script.Expr
	env      *env
}

func (f *Function) Name() string { return f.name }

// Module is an importable namespace.
type Module struct {
	name  string
	attrs map[string]Value
	// lenient modules resolve unknown attributes to None, which is enough
	// for annotation-only imports such as typing.
	lenient bool
}

// Attr returns the attribute name of m.
func (m *Module) Attr(name string) (Value, bool) {
	v, ok := m.attrs[name]
	if !ok && m.lenient {
		return nil, true
	}
	return v, ok
}

// ExcType is an exception class such as ValueError.
type ExcType struct {
	name string
}

func (e *ExcType) Name() string { return e.name }

func (e *ExcType) Call(_ *Interp, args []Value, _ Kwargs) (Value, error) {
	msg := ""
	if len(args) > 0 {
		msg = str(args[0])
	}
	return &Exception{Type: e.name, Msg: msg}, nil
}

// Exception is a raised or constructed exception instance.
type Exception struct {
	Type string
	Msg  string
}

// boundMethod is a method looked up on a value.
type boundMethod struct {
	recv Value
	name string
	fn   func(in *Interp, args []Value, kwargs Kwargs) (Value, error)
}

func (m *boundMethod) Name() string { return m.name }

func (m *boundMethod) Call(in *Interp, args []Value, kwargs Kwargs) (Value, error) {
	return m.fn(in, args, kwargs)
}

func typeName(v Value) string {
	switch v := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "list"
	case Tuple:
		return "tuple"
	case *Dict:
		return "dict"
	case *frame.Table:
		return "DataFrame"
	case *Function, *Builtin, *boundMethod:
		return "function"
	case *Module:
		return "module"
	case *ExcType:
		return "type"
	case *Exception:
		return v.Type
	}
	return fmt.Sprintf("%T", v)
}

func truthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case *List:
		return len(v.Elems) > 0
	case Tuple:
		return len(v) > 0
	case *Dict:
		return v.Len() > 0
	case *frame.Table:
		return v.Len() > 0
	}
	return true
}

// str renders v the way print and str() do.
func str(v Value) string {
	switch v := v.(type) {
	case string:
		return v
	case *Exception:
		return v.Msg
	case *frame.Table:
		return strings.TrimRight(v.Format(10), "\n")
	}
	return repr(v)
}

// repr renders v the way repr() does.
func repr(v Value) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case string:
		return quote(v)
	case *List:
		return "[" + joinRepr(v.Elems) + "]"
	case Tuple:
		if len(v) == 1 {
			return "(" + repr(v[0]) + ",)"
		}
		return "(" + joinRepr(v) + ")"
	case *Dict:
		parts := make([]string, len(v.keys))
		for i, k := range v.keys {
			parts[i] = repr(k) + ": " + repr(v.vals[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *frame.Table:
		return str(v)
	case Callable:
		return "<function " + v.Name() + ">"
	case *Module:
		return "<module '" + v.name + "'>"
	case *Exception:
		return v.Type + "(" + quote(v.Msg) + ")"
	}
	return fmt.Sprint(v)
}

func joinRepr(vals []Value) string {
	parts := make([]string, len(vals))
	for i, e := range vals {
		parts[i] = repr(e)
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == rune(q) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// formatFloat follows the float repr: positional notation for exponents in
// [-4, 16), scientific otherwise, always with a decimal point or exponent.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// equal implements ==.
func equal(a, b Value) bool {
	a, b = promoteBool(a), promoteBool(b)
	switch x := a.(type) {
	case *List:
		y, ok := b.(*List)
		return ok && equalSeq(x.Elems, y.Elems)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSeq(x, y)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			v, found, err := y.Get(k)
			if err != nil || !found || !equal(x.vals[i], v) {
				return false
			}
		}
		return true
	case *Exception:
		return a == b
	}
	return frame.Equal(a, b)
}

func equalSeq(x, y []Value) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if !equal(x[i], y[i]) {
			return false
		}
	}
	return true
}

func promoteBool(v Value) Value {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

// toFrameValues converts a list of scalars for use as table cells.
func toFrameValues(v Value) ([]frame.Value, error) {
	items, err := iterate(v)
	if err != nil {
		return nil, err
	}
	out := make([]frame.Value, len(items))
	for i, it := range items {
		if !isScalar(it) {
			return nil, raise("TypeError", "expected scalar values, got %s", typeName(it))
		}
		out[i] = it
	}
	return out, nil
}

func isScalar(v Value) bool {
	switch v.(type) {
	case nil, bool, int64, float64, string:
		return true
	}
	return false
}

func toStrings(v Value) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	items, err := iterate(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, raise("TypeError", "expected str, got %s", typeName(it))
		}
		out[i] = s
	}
	return out, nil
}
