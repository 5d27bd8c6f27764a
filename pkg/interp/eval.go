package interp

import (
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/stepbook/pkg/frame"
	"github.com/matzehuels/stepbook/pkg/script"
)

// sliceValue is an evaluated lo:hi:step.
type sliceValue struct {
	lo, hi, step Value
}

func (in *Interp) eval(x script.Expr, e *env) (Value, error) {
	switch x := x.(type) {
	case *script.Name:
		if v, ok := e.lookup(x.ID); ok {
			return v, nil
		}
		if v, ok := builtins[x.ID]; ok {
			return v, nil
		}
		return nil, raise("NameError", "name '%s' is not defined", x.ID)

	case *script.Const:
		switch x.Kind {
		case script.ConstTrue:
			return true, nil
		case script.ConstFalse:
			return false, nil
		}
		return nil, nil

	case *script.Num:
		return parseNum(x.Raw)

	case *script.Str:
		return x.Value, nil

	case *script.FString:
		return in.fstring(x, e)

	case *script.Attribute:
		v, err := in.eval(x.X, e)
		if err != nil {
			return nil, err
		}
		return getAttr(v, x.Attr)

	case *script.Subscript:
		v, err := in.eval(x.X, e)
		if err != nil {
			return nil, err
		}
		k, err := in.eval(x.Index, e)
		if err != nil {
			return nil, err
		}
		return getItem(v, k)

	case *script.Slice:
		var sv sliceValue
		for _, p := range []struct {
			x   script.Expr
			dst *Value
		}{{x.Lo, &sv.lo}, {x.Hi, &sv.hi}, {x.Step, &sv.step}} {
			if p.x == nil {
				continue
			}
			v, err := in.eval(p.x, e)
			if err != nil {
				return nil, err
			}
			*p.dst = v
		}
		return sv, nil

	case *script.Call:
		return in.callExpr(x, e)

	case *script.BinOp:
		a, err := in.eval(x.X, e)
		if err != nil {
			return nil, err
		}
		b, err := in.eval(x.Y, e)
		if err != nil {
			return nil, err
		}
		return binop(x.Op, a, b)

	case *script.UnaryOp:
		v, err := in.eval(x.X, e)
		if err != nil {
			return nil, err
		}
		return unary(x.Op, v)

	case *script.BoolOp:
		a, err := in.eval(x.X, e)
		if err != nil {
			return nil, err
		}
		if (x.Op == "and") != truthy(a) {
			return a, nil
		}
		return in.eval(x.Y, e)

	case *script.Compare:
		left, err := in.eval(x.X, e)
		if err != nil {
			return nil, err
		}
		for i, op := range x.Ops {
			right, err := in.eval(x.Comparators[i], e)
			if err != nil {
				return nil, err
			}
			ok, err := compare(op, left, right)
			if err != nil || !ok {
				return false, err
			}
			left = right
		}
		return true, nil

	case *script.IfExp:
		c, err := in.eval(x.Cond, e)
		if err != nil {
			return nil, err
		}
		if truthy(c) {
			return in.eval(x.Body, e)
		}
		return in.eval(x.Else, e)

	case *script.Lambda:
		fn, err := in.function("<lambda>", x.Params, e)
		if err != nil {
			return nil, err
		}
		fn.expr = x.Body
		return fn, nil

	case *script.List:
		items, err := in.evalElts(x.Elts, e)
		if err != nil {
			return nil, err
		}
		return &List{Elems: items}, nil

	case *script.Tuple:
		items, err := in.evalElts(x.Elts, e)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil

	case *script.Set:
		items, err := in.evalElts(x.Elts, e)
		if err != nil {
			return nil, err
		}
		return dedup(items)

	case *script.Dict:
		d := NewDict()
		for i, kx := range x.Keys {
			v, err := in.eval(x.Values[i], e)
			if err != nil {
				return nil, err
			}
			if kx == nil {
				m, ok := v.(*Dict)
				if !ok {
					return nil, raise("TypeError", "'%s' object is not a mapping", typeName(v))
				}
				for j, k := range m.keys {
					if err := d.Set(k, m.vals[j]); err != nil {
						return nil, err
					}
				}
				continue
			}
			k, err := in.eval(kx, e)
			if err != nil {
				return nil, err
			}
			if err := d.Set(k, v); err != nil {
				return nil, err
			}
		}
		return d, nil

	case *script.Comprehension:
		return in.comprehension(x, e)

	case *script.Starred:
		return nil, raise("SyntaxError", "starred expression is not allowed here")
	}
	return nil, raise("NotImplementedError", "unsupported expression %T", x)
}

func (in *Interp) evalElts(elts []script.Expr, e *env) ([]Value, error) {
	out := make([]Value, 0, len(elts))
	for _, x := range elts {
		if st, ok := x.(*script.Starred); ok {
			v, err := in.eval(st.X, e)
			if err != nil {
				return nil, err
			}
			items, err := iterate(v)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}
		v, err := in.eval(x, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interp) callExpr(c *script.Call, e *env) (Value, error) {
	fn, err := in.eval(c.Func, e)
	if err != nil {
		return nil, err
	}
	var args []Value
	var kwargs Kwargs
	for _, a := range c.Args {
		v, err := in.eval(a.Value, e)
		if err != nil {
			return nil, err
		}
		switch {
		case a.Star == 1:
			items, err := iterate(v)
			if err != nil {
				return nil, err
			}
			args = append(args, items...)
		case a.Star == 2:
			d, ok := v.(*Dict)
			if !ok {
				return nil, raise("TypeError", "argument after ** must be a mapping, not %s", typeName(v))
			}
			for i, k := range d.keys {
				ks, ok := k.(string)
				if !ok {
					return nil, raise("TypeError", "keywords must be strings")
				}
				kwargs = append(kwargs, Kwarg{Name: ks, Value: d.vals[i]})
			}
		case a.Keyword != "":
			kwargs = append(kwargs, Kwarg{Name: a.Keyword, Value: v})
		default:
			args = append(args, v)
		}
	}
	return in.call(fn, args, kwargs)
}

func (in *Interp) call(fn Value, args []Value, kwargs Kwargs) (Value, error) {
	c, ok := fn.(Callable)
	if !ok {
		return nil, raise("TypeError", "'%s' object is not callable", typeName(fn))
	}
	return c.Call(in, args, kwargs)
}

func (in *Interp) fstring(f *script.FString, e *env) (Value, error) {
	var b strings.Builder
	for _, p := range f.Parts {
		if p.Expr == nil {
			b.WriteString(p.Lit)
			continue
		}
		v, err := in.eval(p.Expr, e)
		if err != nil {
			return nil, err
		}
		switch p.Conv {
		case 'r', 'a':
			v = repr(v)
		case 's':
			v = str(v)
		}
		s, err := formatSpec(v, p.Spec)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func (in *Interp) comprehension(c *script.Comprehension, e *env) (Value, error) {
	scope := newEnv(e)
	var out []Value
	d := NewDict()

	var loop func(i int) error
	loop = func(i int) error {
		if i == len(c.Generators) {
			if c.Kind == script.DictComp {
				k, err := in.eval(c.Elt, scope)
				if err != nil {
					return err
				}
				v, err := in.eval(c.Value, scope)
				if err != nil {
					return err
				}
				return d.Set(k, v)
			}
			v, err := in.eval(c.Elt, scope)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		}
		g := c.Generators[i]
		it, err := in.eval(g.Iter, scope)
		if err != nil {
			return err
		}
		items, err := iterate(it)
		if err != nil {
			return err
		}
	next:
		for _, item := range items {
			if err := in.assign(g.Target, item, scope); err != nil {
				return err
			}
			for _, cond := range g.Ifs {
				ok, err := in.eval(cond, scope)
				if err != nil {
					return err
				}
				if !truthy(ok) {
					continue next
				}
			}
			if err := loop(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := loop(0); err != nil {
		return nil, err
	}

	switch c.Kind {
	case script.DictComp:
		return d, nil
	case script.SetComp:
		return dedup(out)
	}
	return &List{Elems: out}, nil
}

func parseNum(raw string) (Value, error) {
	s := strings.ReplaceAll(raw, "_", "")
	if strings.HasSuffix(s, "j") || strings.HasSuffix(s, "J") {
		return nil, raise("NotImplementedError", "complex literals are not supported")
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, raise("SyntaxError", "invalid number literal %s", raw)
	}
	return f, nil
}

// iterate materializes an iterable.
func iterate(v Value) ([]Value, error) {
	switch v := v.(type) {
	case *List:
		return append([]Value(nil), v.Elems...), nil
	case Tuple:
		return append([]Value(nil), v...), nil
	case *Dict:
		return v.Keys(), nil
	case string:
		out := make([]Value, 0, len(v))
		for _, r := range v {
			out = append(out, string(r))
		}
		return out, nil
	case *frame.Table:
		out := make([]Value, len(v.Columns))
		for i, c := range v.Columns {
			out[i] = c
		}
		return out, nil
	}
	return nil, raise("TypeError", "'%s' object is not iterable", typeName(v))
}

func dedup(items []Value) (*List, error) {
	seen := make(map[string]bool, len(items))
	out := &List{}
	for _, it := range items {
		h, err := hashKey(it)
		if err != nil {
			return nil, err
		}
		if !seen[h] {
			seen[h] = true
			out.Elems = append(out.Elems, it)
		}
	}
	return out, nil
}

// number returns v as int64 or float64.
func number(v Value) (Value, bool) {
	switch v := v.(type) {
	case bool:
		return promoteBool(v), true
	case int64, float64:
		return v, true
	}
	return nil, false
}

func asFloat(v Value) float64 {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v.(float64)
}

func binop(op string, x, y Value) (Value, error) {
	switch a := x.(type) {
	case string:
		if b, ok := y.(string); ok && op == "+" {
			return a + b, nil
		}
		if n, ok := y.(int64); ok && op == "*" {
			return strings.Repeat(a, int(max(n, 0))), nil
		}
	case *List:
		if b, ok := y.(*List); ok && op == "+" {
			return &List{Elems: append(append([]Value(nil), a.Elems...), b.Elems...)}, nil
		}
		if n, ok := y.(int64); ok && op == "*" {
			out := &List{}
			for i := int64(0); i < n; i++ {
				out.Elems = append(out.Elems, a.Elems...)
			}
			return out, nil
		}
	case Tuple:
		if b, ok := y.(Tuple); ok && op == "+" {
			return append(append(Tuple(nil), a...), b...), nil
		}
	case *Dict:
		if b, ok := y.(*Dict); ok && op == "|" {
			out := NewDict()
			for _, d := range []*Dict{a, b} {
				for i, k := range d.keys {
					if err := out.Set(k, d.vals[i]); err != nil {
						return nil, err
					}
				}
			}
			return out, nil
		}
	}

	a, aok := number(x)
	b, bok := number(y)
	if !aok || !bok {
		return nil, raise("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(x), typeName(y))
	}
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return intOp(op, ai, bi)
	}
	return floatOp(op, asFloat(a), asFloat(b))
}

func intOp(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, raise("ZeroDivisionError", "division by zero")
		}
		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, raise("ZeroDivisionError", "integer division or modulo by zero")
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case "%":
		if b == 0 {
			return nil, raise("ZeroDivisionError", "integer division or modulo by zero")
		}
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return m, nil
	case "**":
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		r := int64(1)
		for i := int64(0); i < b; i++ {
			r *= a
		}
		return r, nil
	case "&":
		return a & b, nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "<<":
		return a << uint64(b), nil
	case ">>":
		return a >> uint64(b), nil
	}
	return nil, raise("TypeError", "unsupported operator %s", op)
}

func floatOp(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, raise("ZeroDivisionError", "float division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, raise("ZeroDivisionError", "float floor division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, raise("ZeroDivisionError", "float modulo")
		}
		return a - b*math.Floor(a/b), nil
	case "**":
		return math.Pow(a, b), nil
	}
	return nil, raise("TypeError", "unsupported operand type(s) for %s: 'float'", op)
}

func unary(op string, v Value) (Value, error) {
	if op == "not" {
		return !truthy(v), nil
	}
	n, ok := number(v)
	if !ok {
		return nil, raise("TypeError", "bad operand type for unary %s: '%s'", op, typeName(v))
	}
	switch op {
	case "+":
		return n, nil
	case "-":
		if i, ok := n.(int64); ok {
			return -i, nil
		}
		return -n.(float64), nil
	case "~":
		if i, ok := n.(int64); ok {
			return ^i, nil
		}
	}
	return nil, raise("TypeError", "bad operand type for unary %s: '%s'", op, typeName(v))
}

func compare(op string, x, y Value) (bool, error) {
	switch op {
	case "==":
		return equal(x, y), nil
	case "!=":
		return !equal(x, y), nil
	case "is":
		return identical(x, y), nil
	case "is not":
		return !identical(x, y), nil
	case "in":
		return contains(y, x)
	case "not in":
		ok, err := contains(y, x)
		return !ok, err
	}
	c, err := order(x, y)
	if err != nil {
		return false, raise("TypeError", "'%s' not supported between instances of '%s' and '%s'", op, typeName(x), typeName(y))
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, raise("TypeError", "unknown comparison %s", op)
}

func identical(x, y Value) bool {
	switch a := x.(type) {
	case nil:
		return y == nil
	case bool:
		b, ok := y.(bool)
		return ok && a == b
	case *List, *Dict, *frame.Table, *Function, *Builtin, *Module, *ExcType, *Exception:
		return x == y
	}
	return typeName(x) == typeName(y) && equal(x, y)
}

func contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, raise("TypeError", "'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case *Dict:
		_, ok, err := c.Get(item)
		return ok, err
	case *frame.Table:
		s, _ := item.(string)
		_, ok := c.Index(s)
		return ok, nil
	}
	items, err := iterate(container)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if equal(it, item) {
			return true, nil
		}
	}
	return false, nil
}

// order compares numbers, strings and sequences.
func order(x, y Value) (int, error) {
	if a, ok := number(x); ok {
		b, ok := number(y)
		if !ok {
			return 0, raise("TypeError", "unorderable")
		}
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	}
	switch a := x.(type) {
	case string:
		b, ok := y.(string)
		if !ok {
			return 0, raise("TypeError", "unorderable")
		}
		return strings.Compare(a, b), nil
	case *List:
		b, ok := y.(*List)
		if !ok {
			return 0, raise("TypeError", "unorderable")
		}
		return orderSeq(a.Elems, b.Elems)
	case Tuple:
		b, ok := y.(Tuple)
		if !ok {
			return 0, raise("TypeError", "unorderable")
		}
		return orderSeq(a, b)
	}
	return 0, raise("TypeError", "unorderable")
}

func orderSeq(a, b []Value) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if equal(a[i], b[i]) {
			continue
		}
		return order(a[i], b[i])
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	}
	return 0, nil
}

func index(n int, k Value) (int, error) {
	i, ok := promoteBool(k).(int64)
	if !ok {
		return 0, raise("TypeError", "indices must be integers, not %s", typeName(k))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, raise("IndexError", "index out of range")
	}
	return int(i), nil
}

// bounds resolves a slice against a sequence of length n.
func (s sliceValue) bounds(n int) (lo, hi, step int, err error) {
	step = 1
	if s.step != nil {
		st, ok := s.step.(int64)
		if !ok || st == 0 {
			return 0, 0, 0, raise("ValueError", "slice step must be a non-zero integer")
		}
		step = int(st)
	}
	clamp := func(v Value, def int) (int, error) {
		if v == nil {
			return def, nil
		}
		i, ok := v.(int64)
		if !ok {
			return 0, raise("TypeError", "slice indices must be integers")
		}
		x := int(i)
		if x < 0 {
			x += n
		}
		lower, upper := 0, n
		if step < 0 {
			lower, upper = -1, n-1
		}
		return min(max(x, lower), upper), nil
	}
	if step > 0 {
		lo, err = clamp(s.lo, 0)
		if err == nil {
			hi, err = clamp(s.hi, n)
		}
	} else {
		lo, err = clamp(s.lo, n-1)
		if err == nil {
			hi, err = clamp(s.hi, -1)
		}
	}
	return lo, hi, step, err
}

func sliceOf[T any](items []T, s sliceValue) ([]T, error) {
	lo, hi, step, err := s.bounds(len(items))
	if err != nil {
		return nil, err
	}
	var out []T
	if step > 0 {
		for i := lo; i < hi; i += step {
			out = append(out, items[i])
		}
	} else {
		for i := lo; i > hi; i += step {
			out = append(out, items[i])
		}
	}
	return out, nil
}

func getItem(v, k Value) (Value, error) {
	switch c := v.(type) {
	case *List:
		if s, ok := k.(sliceValue); ok {
			items, err := sliceOf(c.Elems, s)
			return &List{Elems: items}, err
		}
		i, err := index(len(c.Elems), k)
		if err != nil {
			return nil, err
		}
		return c.Elems[i], nil
	case Tuple:
		if s, ok := k.(sliceValue); ok {
			items, err := sliceOf([]Value(c), s)
			return Tuple(items), err
		}
		i, err := index(len(c), k)
		if err != nil {
			return nil, err
		}
		return c[i], nil
	case string:
		runes := []rune(c)
		if s, ok := k.(sliceValue); ok {
			out, err := sliceOf(runes, s)
			return string(out), err
		}
		i, err := index(len(runes), k)
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case *Dict:
		val, ok, err := c.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, raise("KeyError", "%s", repr(k))
		}
		return val, nil
	case *frame.Table:
		if name, ok := k.(string); ok {
			col, err := c.Column(name)
			if err != nil {
				return nil, raise("KeyError", "%s", repr(k))
			}
			return &List{Elems: col}, nil
		}
		cols, err := toStrings(k)
		if err != nil {
			return nil, err
		}
		t, err := frame.SelectColumns(c, cols)
		if err != nil {
			return nil, hostError(err)
		}
		return t, nil
	}
	return nil, raise("TypeError", "'%s' object is not subscriptable", typeName(v))
}

func setItem(v, k, val Value) error {
	switch c := v.(type) {
	case *List:
		i, err := index(len(c.Elems), k)
		if err != nil {
			return err
		}
		c.Elems[i] = val
		return nil
	case *Dict:
		return c.Set(k, val)
	case *frame.Table:
		name, ok := k.(string)
		if !ok {
			return raise("TypeError", "column name must be a string")
		}
		return setColumn(c, name, val)
	}
	return raise("TypeError", "'%s' object does not support item assignment", typeName(v))
}

// setColumn assigns a scalar or a same-length sequence to a column in place.
func setColumn(t *frame.Table, name string, val Value) error {
	var out *frame.Table
	var err error
	if isScalar(val) {
		out, err = frame.SetValue(t, name, val)
	} else {
		var vals []frame.Value
		if vals, err = toFrameValues(val); err != nil {
			return err
		}
		if len(vals) != t.Len() {
			return raise("ValueError", "length of values (%d) does not match length of table (%d)", len(vals), t.Len())
		}
		if out, err = frame.SetValue(t, name, nil); err == nil {
			c, _ := out.Index(name)
			for i, r := range out.Rows {
				r[c] = vals[i]
			}
		}
	}
	if err != nil {
		return hostError(err)
	}
	*t = *out
	return nil
}

func delItem(v, k Value) error {
	switch c := v.(type) {
	case *List:
		i, err := index(len(c.Elems), k)
		if err != nil {
			return err
		}
		c.Elems = append(c.Elems[:i], c.Elems[i+1:]...)
		return nil
	case *Dict:
		ok, err := c.Delete(k)
		if err != nil {
			return err
		}
		if !ok {
			return raise("KeyError", "%s", repr(k))
		}
		return nil
	}
	return raise("TypeError", "'%s' object does not support item deletion", typeName(v))
}
