package interp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/stepbook/pkg/frame"
)

// excParents is the exception hierarchy used by except clauses.
var excParents = map[string]string{
	"Exception":           "BaseException",
	"ArithmeticError":     "Exception",
	"AssertionError":      "Exception",
	"AttributeError":      "Exception",
	"ImportError":         "Exception",
	"LookupError":         "Exception",
	"MemoryError":         "Exception",
	"NameError":           "Exception",
	"OSError":             "Exception",
	"RuntimeError":        "Exception",
	"StopIteration":       "Exception",
	"SyntaxError":         "Exception",
	"TypeError":           "Exception",
	"ValueError":          "Exception",
	"FileNotFoundError":   "OSError",
	"IndexError":          "LookupError",
	"KeyError":            "LookupError",
	"ModuleNotFoundError": "ImportError",
	"NotImplementedError": "RuntimeError",
	"RecursionError":      "RuntimeError",
	"ZeroDivisionError":   "ArithmeticError",
}

func excMatches(handler, typ string) bool {
	for t := typ; t != ""; t = excParents[t] {
		if t == handler {
			return true
		}
	}
	return false
}

var builtins map[string]Value

func init() {
	builtins = map[string]Value{"BaseException": &ExcType{name: "BaseException"}}
	for name := range excParents {
		builtins[name] = &ExcType{name: name}
	}
	for _, b := range []*Builtin{
		{"print", builtinPrint},
		{"len", builtinLen},
		{"range", builtinRange},
		{"str", builtinStr},
		{"repr", builtinRepr},
		{"int", builtinInt},
		{"float", builtinFloat},
		{"bool", builtinBool},
		{"list", builtinList},
		{"tuple", builtinTuple},
		{"dict", builtinDict},
		{"set", builtinSet},
		{"sorted", builtinSorted},
		{"reversed", builtinReversed},
		{"sum", builtinSum},
		{"min", builtinMinMax(-1)},
		{"max", builtinMinMax(1)},
		{"abs", builtinAbs},
		{"round", builtinRound},
		{"enumerate", builtinEnumerate},
		{"zip", builtinZip},
		{"any", builtinAnyAll(true)},
		{"all", builtinAnyAll(false)},
		{"map", builtinMap},
		{"filter", builtinFilter},
		{"getattr", builtinGetattr},
		{"hasattr", builtinHasattr},
	} {
		builtins[b.name] = b
	}
}

// bindArgs matches arguments to parameter names. Names ending in "?" are
// optional and bind nil when absent.
func bindArgs(fn string, args []Value, kwargs Kwargs, names ...string) ([]Value, error) {
	out := make([]Value, len(names))
	set := make([]bool, len(names))
	if len(args) > len(names) {
		return nil, raise("TypeError", "%s() takes at most %d arguments (%d given)", fn, len(names), len(args))
	}
	for i, a := range args {
		out[i], set[i] = a, true
	}
	for _, k := range kwargs {
		j := -1
		for i, n := range names {
			if strings.TrimSuffix(n, "?") == k.Name {
				j = i
				break
			}
		}
		if j < 0 {
			return nil, raise("TypeError", "%s() got an unexpected keyword argument '%s'", fn, k.Name)
		}
		if set[j] {
			return nil, raise("TypeError", "%s() got multiple values for argument '%s'", fn, k.Name)
		}
		out[j], set[j] = k.Value, true
	}
	for i, n := range names {
		if !set[i] && !strings.HasSuffix(n, "?") {
			return nil, raise("TypeError", "%s() missing required argument: '%s'", fn, n)
		}
	}
	return out, nil
}

func builtinPrint(in *Interp, args []Value, kwargs Kwargs) (Value, error) {
	sep, end := " ", "\n"
	for _, k := range kwargs {
		s, _ := k.Value.(string)
		switch k.Name {
		case "sep":
			sep = s
		case "end":
			end = s
		case "file", "flush":
		default:
			return nil, raise("TypeError", "print() got an unexpected keyword argument '%s'", k.Name)
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = str(a)
	}
	fmt.Fprint(in.opts.Stdout, strings.Join(parts, sep)+end)
	return nil, nil
}

func builtinLen(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("len", args, kwargs, "obj")
	if err != nil {
		return nil, err
	}
	switch v := a[0].(type) {
	case string:
		return int64(len([]rune(v))), nil
	case *List:
		return int64(len(v.Elems)), nil
	case Tuple:
		return int64(len(v)), nil
	case *Dict:
		return int64(v.Len()), nil
	case *frame.Table:
		return int64(v.Len()), nil
	}
	return nil, raise("TypeError", "object of type '%s' has no len()", typeName(a[0]))
}

const maxRange = 10_000_000

func builtinRange(_ *Interp, args []Value, _ Kwargs) (Value, error) {
	nums := make([]int64, len(args))
	for i, a := range args {
		n, ok := promoteBool(a).(int64)
		if !ok {
			return nil, raise("TypeError", "'%s' object cannot be interpreted as an integer", typeName(a))
		}
		nums[i] = n
	}
	var start, stop, step int64 = 0, 0, 1
	switch len(nums) {
	case 1:
		stop = nums[0]
	case 2:
		start, stop = nums[0], nums[1]
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	default:
		return nil, raise("TypeError", "range expected 1 to 3 arguments, got %d", len(nums))
	}
	if step == 0 {
		return nil, raise("ValueError", "range() arg 3 must not be zero")
	}
	out := &List{}
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(out.Elems) >= maxRange {
			return nil, raise("MemoryError", "range too large")
		}
		out.Elems = append(out.Elems, i)
	}
	return out, nil
}

func builtinStr(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("str", args, kwargs, "object?")
	if err != nil {
		return nil, err
	}
	if len(args) == 0 && len(kwargs) == 0 {
		return "", nil
	}
	return str(a[0]), nil
}

func builtinRepr(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("repr", args, kwargs, "obj")
	if err != nil {
		return nil, err
	}
	return repr(a[0]), nil
}

func builtinInt(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("int", args, kwargs, "x?", "base?")
	if err != nil {
		return nil, err
	}
	switch v := a[0].(type) {
	case nil:
		if len(args) == 0 {
			return int64(0), nil
		}
	case bool:
		return promoteBool(v), nil
	case int64:
		return v, nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, raise("ValueError", "cannot convert float %s to integer", formatFloat(v))
		}
		return int64(v), nil
	case string:
		base := 10
		if b, ok := a[1].(int64); ok {
			base = int(b)
		}
		n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(v), "_", ""), base, 64)
		if err != nil {
			return nil, raise("ValueError", "invalid literal for int() with base %d: %s", base, quote(v))
		}
		return n, nil
	}
	return nil, raise("TypeError", "int() argument must be a string or a number, not '%s'", typeName(a[0]))
}

func builtinFloat(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("float", args, kwargs, "x?")
	if err != nil {
		return nil, err
	}
	switch v := a[0].(type) {
	case nil:
		if len(args) == 0 {
			return 0.0, nil
		}
	case bool, int64, float64:
		n, _ := number(v)
		return asFloat(n), nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		switch s {
		case "inf", "+inf", "infinity":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		case "nan":
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, raise("ValueError", "could not convert string to float: %s", quote(v))
		}
		return f, nil
	}
	return nil, raise("TypeError", "float() argument must be a string or a number, not '%s'", typeName(a[0]))
}

func builtinBool(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("bool", args, kwargs, "x?")
	if err != nil {
		return nil, err
	}
	return truthy(a[0]), nil
}

func optionalIterable(fn string, args []Value, kwargs Kwargs) ([]Value, error) {
	a, err := bindArgs(fn, args, kwargs, "iterable?")
	if err != nil {
		return nil, err
	}
	if len(args) == 0 && len(kwargs) == 0 {
		return nil, nil
	}
	return iterate(a[0])
}

func builtinList(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	items, err := optionalIterable("list", args, kwargs)
	if err != nil {
		return nil, err
	}
	return &List{Elems: items}, nil
}

func builtinTuple(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	items, err := optionalIterable("tuple", args, kwargs)
	if err != nil {
		return nil, err
	}
	return Tuple(items), nil
}

func builtinSet(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	items, err := optionalIterable("set", args, kwargs)
	if err != nil {
		return nil, err
	}
	return dedup(items)
}

func builtinDict(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	d := NewDict()
	if len(args) > 1 {
		return nil, raise("TypeError", "dict expected at most 1 argument, got %d", len(args))
	}
	if len(args) == 1 {
		if src, ok := args[0].(*Dict); ok {
			for i, k := range src.keys {
				if err := d.Set(k, src.vals[i]); err != nil {
					return nil, err
				}
			}
		} else {
			pairs, err := iterate(args[0])
			if err != nil {
				return nil, err
			}
			for _, p := range pairs {
				kv, err := iterate(p)
				if err != nil || len(kv) != 2 {
					return nil, raise("ValueError", "dictionary update sequence element has wrong length")
				}
				if err := d.Set(kv[0], kv[1]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, k := range kwargs {
		if err := d.Set(k.Name, k.Value); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// sortValues sorts items stably by key, returning the first comparison error.
func (in *Interp) sortValues(items []Value, key Value, reverse bool) error {
	keys := items
	if key != nil {
		keys = make([]Value, len(items))
		for i, it := range items {
			k, err := in.call(key, []Value{it}, nil)
			if err != nil {
				return err
			}
			keys[i] = k
		}
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var cmpErr error
	sort.SliceStable(idx, func(a, b int) bool {
		c, err := order(keys[idx[a]], keys[idx[b]])
		if err != nil && cmpErr == nil {
			cmpErr = raise("TypeError", "'<' not supported between instances of '%s' and '%s'",
				typeName(keys[idx[a]]), typeName(keys[idx[b]]))
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if cmpErr != nil {
		return cmpErr
	}
	sorted := make([]Value, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
	return nil
}

func builtinSorted(in *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("sorted", args, kwargs, "iterable", "key?", "reverse?")
	if err != nil {
		return nil, err
	}
	items, err := iterate(a[0])
	if err != nil {
		return nil, err
	}
	if err := in.sortValues(items, a[1], truthy(a[2])); err != nil {
		return nil, err
	}
	return &List{Elems: items}, nil
}

func builtinReversed(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("reversed", args, kwargs, "sequence")
	if err != nil {
		return nil, err
	}
	items, err := iterate(a[0])
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return &List{Elems: items}, nil
}

func builtinSum(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("sum", args, kwargs, "iterable", "start?")
	if err != nil {
		return nil, err
	}
	items, err := iterate(a[0])
	if err != nil {
		return nil, err
	}
	var total Value = int64(0)
	if a[1] != nil {
		total = a[1]
	}
	for _, it := range items {
		if total, err = binop("+", total, it); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func builtinMinMax(dir int) func(*Interp, []Value, Kwargs) (Value, error) {
	name := "min"
	if dir > 0 {
		name = "max"
	}
	return func(in *Interp, args []Value, kwargs Kwargs) (Value, error) {
		var key, def Value
		hasDefault := false
		for _, k := range kwargs {
			switch k.Name {
			case "key":
				key = k.Value
			case "default":
				def, hasDefault = k.Value, true
			default:
				return nil, raise("TypeError", "%s() got an unexpected keyword argument '%s'", name, k.Name)
			}
		}
		items := args
		if len(args) == 1 {
			var err error
			if items, err = iterate(args[0]); err != nil {
				return nil, err
			}
		}
		if len(items) == 0 {
			if hasDefault {
				return def, nil
			}
			return nil, raise("ValueError", "%s() arg is an empty sequence", name)
		}
		best := items[0]
		bestKey := best
		if key != nil {
			var err error
			if bestKey, err = in.call(key, []Value{best}, nil); err != nil {
				return nil, err
			}
		}
		for _, it := range items[1:] {
			k := it
			if key != nil {
				var err error
				if k, err = in.call(key, []Value{it}, nil); err != nil {
					return nil, err
				}
			}
			c, err := order(k, bestKey)
			if err != nil {
				return nil, raise("TypeError", "'%s' not supported between instances of '%s' and '%s'",
					map[int]string{-1: "<", 1: ">"}[dir], typeName(k), typeName(bestKey))
			}
			if c*dir > 0 {
				best, bestKey = it, k
			}
		}
		return best, nil
	}
}

func builtinAbs(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("abs", args, kwargs, "x")
	if err != nil {
		return nil, err
	}
	n, ok := number(a[0])
	if !ok {
		return nil, raise("TypeError", "bad operand type for abs(): '%s'", typeName(a[0]))
	}
	if i, ok := n.(int64); ok {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	return math.Abs(n.(float64)), nil
}

func builtinRound(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("round", args, kwargs, "number", "ndigits?")
	if err != nil {
		return nil, err
	}
	n, ok := number(a[0])
	if !ok {
		return nil, raise("TypeError", "type %s doesn't define __round__ method", typeName(a[0]))
	}
	if a[1] == nil {
		if i, ok := n.(int64); ok {
			return i, nil
		}
		return int64(math.RoundToEven(n.(float64))), nil
	}
	digits, ok := a[1].(int64)
	if !ok {
		return nil, raise("TypeError", "ndigits must be an integer")
	}
	if i, ok := n.(int64); ok && digits >= 0 {
		return i, nil
	}
	p := math.Pow(10, float64(digits))
	return math.RoundToEven(asFloat(n)*p) / p, nil
}

func builtinEnumerate(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("enumerate", args, kwargs, "iterable", "start?")
	if err != nil {
		return nil, err
	}
	items, err := iterate(a[0])
	if err != nil {
		return nil, err
	}
	start, _ := a[1].(int64)
	out := &List{Elems: make([]Value, len(items))}
	for i, it := range items {
		out.Elems[i] = Tuple{start + int64(i), it}
	}
	return out, nil
}

func builtinZip(_ *Interp, args []Value, _ Kwargs) (Value, error) {
	seqs := make([][]Value, len(args))
	n := -1
	for i, a := range args {
		items, err := iterate(a)
		if err != nil {
			return nil, err
		}
		seqs[i] = items
		if n < 0 || len(items) < n {
			n = len(items)
		}
	}
	out := &List{}
	for i := 0; i < n; i++ {
		t := make(Tuple, len(seqs))
		for j := range seqs {
			t[j] = seqs[j][i]
		}
		out.Elems = append(out.Elems, t)
	}
	return out, nil
}

func builtinAnyAll(isAny bool) func(*Interp, []Value, Kwargs) (Value, error) {
	return func(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
		a, err := bindArgs("any", args, kwargs, "iterable")
		if err != nil {
			return nil, err
		}
		items, err := iterate(a[0])
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if truthy(it) == isAny {
				return isAny, nil
			}
		}
		return !isAny, nil
	}
}

func builtinMap(in *Interp, args []Value, _ Kwargs) (Value, error) {
	if len(args) < 2 {
		return nil, raise("TypeError", "map() must have at least two arguments")
	}
	zipped, err := builtinZip(in, args[1:], nil)
	if err != nil {
		return nil, err
	}
	out := &List{}
	for _, t := range zipped.(*List).Elems {
		v, err := in.call(args[0], t.(Tuple), nil)
		if err != nil {
			return nil, err
		}
		out.Elems = append(out.Elems, v)
	}
	return out, nil
}

func builtinFilter(in *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("filter", args, kwargs, "function", "iterable")
	if err != nil {
		return nil, err
	}
	items, err := iterate(a[1])
	if err != nil {
		return nil, err
	}
	out := &List{}
	for _, it := range items {
		keep := it
		if a[0] != nil {
			if keep, err = in.call(a[0], []Value{it}, nil); err != nil {
				return nil, err
			}
		}
		if truthy(keep) {
			out.Elems = append(out.Elems, it)
		}
	}
	return out, nil
}

func builtinGetattr(_ *Interp, args []Value, _ Kwargs) (Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, raise("TypeError", "getattr expected 2 or 3 arguments, got %d", len(args))
	}
	name, ok := args[1].(string)
	if !ok {
		return nil, raise("TypeError", "attribute name must be string")
	}
	v, err := getAttr(args[0], name)
	if err != nil && len(args) == 3 {
		return args[2], nil
	}
	return v, err
}

func builtinHasattr(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs("hasattr", args, kwargs, "obj", "name")
	if err != nil {
		return nil, err
	}
	name, ok := a[1].(string)
	if !ok {
		return nil, raise("TypeError", "attribute name must be string")
	}
	_, err = getAttr(a[0], name)
	return err == nil, nil
}
