package interp

import (
	"strings"

	"github.com/matzehuels/stepbook/pkg/frame"
)

type method func(in *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error)

func getAttr(v Value, name string) (Value, error) {
	switch x := v.(type) {
	case *Module:
		if a, ok := x.Attr(name); ok {
			return a, nil
		}
		return nil, raise("AttributeError", "module '%s' has no attribute '%s'", x.name, name)
	case *Exception:
		if name == "args" {
			return Tuple{x.Msg}, nil
		}
	case *frame.Table:
		switch name {
		case "columns":
			cols := make([]Value, len(x.Columns))
			for i, c := range x.Columns {
				cols[i] = c
			}
			return &List{Elems: cols}, nil
		case "shape":
			return Tuple{int64(x.Len()), int64(len(x.Columns))}, nil
		case "empty":
			return x.Len() == 0, nil
		}
	}

	var table map[string]method
	switch v.(type) {
	case string:
		table = strMethods
	case *List:
		table = listMethods
	case *Dict:
		table = dictMethods
	case *frame.Table:
		table = tableMethods
	}
	if m, ok := table[name]; ok {
		return &boundMethod{recv: v, name: name, fn: func(in *Interp, args []Value, kwargs Kwargs) (Value, error) {
			return m(in, v, args, kwargs)
		}}, nil
	}
	return nil, raise("AttributeError", "'%s' object has no attribute '%s'", typeName(v), name)
}

func strArg(fn string, v Value) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", raise("TypeError", "%s() argument must be str, not %s", fn, typeName(v))
	}
	return s, nil
}

func stripMethod(fn string, f func(string, string) string, space func(string) string) method {
	return func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
		a, err := bindArgs(fn, args, kwargs, "chars?")
		if err != nil {
			return nil, err
		}
		s := recv.(string)
		if a[0] == nil {
			return space(s), nil
		}
		chars, err := strArg(fn, a[0])
		if err != nil {
			return nil, err
		}
		return f(s, chars), nil
	}
}

func simpleStr(f func(string) Value) method {
	return func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
		if len(args)+len(kwargs) > 0 {
			return nil, raise("TypeError", "method takes no arguments")
		}
		return f(recv.(string)), nil
	}
}

var strMethods map[string]method

var listMethods map[string]method

var dictMethods map[string]method

var tableMethods map[string]method

func init() {
	strMethods = map[string]method{
		"upper": simpleStr(func(s string) Value { return strings.ToUpper(s) }),
		"lower": simpleStr(func(s string) Value { return strings.ToLower(s) }),
		"title": simpleStr(func(s string) Value { return titleCase(s) }),
		"isdigit": simpleStr(func(s string) Value {
			return s != "" && strings.Trim(s, "0123456789") == ""
		}),
		"strip":  stripMethod("strip", strings.Trim, strings.TrimSpace),
		"lstrip": stripMethod("lstrip", strings.TrimLeft, func(s string) string { return strings.TrimLeft(s, " \t\n\r\v\f") }),
		"rstrip": stripMethod("rstrip", strings.TrimRight, func(s string) string { return strings.TrimRight(s, " \t\n\r\v\f") }),
		"replace": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("replace", args, kwargs, "old", "new", "count?")
			if err != nil {
				return nil, err
			}
			old, err := strArg("replace", a[0])
			if err != nil {
				return nil, err
			}
			repl, err := strArg("replace", a[1])
			if err != nil {
				return nil, err
			}
			n := -1
			if c, ok := a[2].(int64); ok {
				n = int(c)
			}
			return strings.Replace(recv.(string), old, repl, n), nil
		},
		"startswith": affix("startswith", strings.HasPrefix),
		"endswith":   affix("endswith", strings.HasSuffix),
		"split": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("split", args, kwargs, "sep?", "maxsplit?")
			if err != nil {
				return nil, err
			}
			s := recv.(string)
			n := -1
			if m, ok := a[1].(int64); ok && m >= 0 {
				n = int(m) + 1
			}
			var parts []string
			if a[0] == nil {
				parts = strings.Fields(s)
			} else {
				sep, err := strArg("split", a[0])
				if err != nil {
					return nil, err
				}
				if sep == "" {
					return nil, raise("ValueError", "empty separator")
				}
				parts = strings.SplitN(s, sep, n)
			}
			out := &List{Elems: make([]Value, len(parts))}
			for i, p := range parts {
				out.Elems[i] = p
			}
			return out, nil
		},
		"join": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("join", args, kwargs, "iterable")
			if err != nil {
				return nil, err
			}
			items, err := iterate(a[0])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			for i, it := range items {
				s, ok := it.(string)
				if !ok {
					return nil, raise("TypeError", "sequence item %d: expected str instance, %s found", i, typeName(it))
				}
				parts[i] = s
			}
			return strings.Join(parts, recv.(string)), nil
		},
		"format": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			return formatMethod(recv.(string), args, kwargs)
		},
	}

	listMethods = map[string]method{
		"append": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("append", args, kwargs, "object")
			if err != nil {
				return nil, err
			}
			l := recv.(*List)
			l.Elems = append(l.Elems, a[0])
			return nil, nil
		},
		"extend": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("extend", args, kwargs, "iterable")
			if err != nil {
				return nil, err
			}
			items, err := iterate(a[0])
			if err != nil {
				return nil, err
			}
			l := recv.(*List)
			l.Elems = append(l.Elems, items...)
			return nil, nil
		},
		"insert": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("insert", args, kwargs, "index", "object")
			if err != nil {
				return nil, err
			}
			l := recv.(*List)
			i, ok := a[0].(int64)
			if !ok {
				return nil, raise("TypeError", "list indices must be integers")
			}
			n := int64(len(l.Elems))
			if i < 0 {
				i += n
			}
			i = min(max(i, 0), n)
			l.Elems = append(l.Elems[:i], append([]Value{a[1]}, l.Elems[i:]...)...)
			return nil, nil
		},
		"pop": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("pop", args, kwargs, "index?")
			if err != nil {
				return nil, err
			}
			l := recv.(*List)
			if len(l.Elems) == 0 {
				return nil, raise("IndexError", "pop from empty list")
			}
			k := a[0]
			if k == nil {
				k = int64(-1)
			}
			i, err := index(len(l.Elems), k)
			if err != nil {
				return nil, err
			}
			v := l.Elems[i]
			l.Elems = append(l.Elems[:i], l.Elems[i+1:]...)
			return v, nil
		},
		"index": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("index", args, kwargs, "value")
			if err != nil {
				return nil, err
			}
			for i, it := range recv.(*List).Elems {
				if equal(it, a[0]) {
					return int64(i), nil
				}
			}
			return nil, raise("ValueError", "%s is not in list", repr(a[0]))
		},
		"copy": func(_ *Interp, recv Value, _ []Value, _ Kwargs) (Value, error) {
			return &List{Elems: append([]Value(nil), recv.(*List).Elems...)}, nil
		},
		"sort": func(in *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("sort", args, kwargs, "key?", "reverse?")
			if err != nil {
				return nil, err
			}
			return nil, in.sortValues(recv.(*List).Elems, a[0], truthy(a[1]))
		},
	}

	dictMethods = map[string]method{
		"get": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("get", args, kwargs, "key", "default?")
			if err != nil {
				return nil, err
			}
			v, ok, err := recv.(*Dict).Get(a[0])
			if err != nil || !ok {
				return a[1], err
			}
			return v, nil
		},
		"keys": func(_ *Interp, recv Value, _ []Value, _ Kwargs) (Value, error) {
			return &List{Elems: recv.(*Dict).Keys()}, nil
		},
		"values": func(_ *Interp, recv Value, _ []Value, _ Kwargs) (Value, error) {
			return &List{Elems: append([]Value(nil), recv.(*Dict).vals...)}, nil
		},
		"items": func(_ *Interp, recv Value, _ []Value, _ Kwargs) (Value, error) {
			d := recv.(*Dict)
			out := &List{Elems: make([]Value, len(d.keys))}
			for i, k := range d.keys {
				out.Elems[i] = Tuple{k, d.vals[i]}
			}
			return out, nil
		},
		"update": func(in *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			src, err := builtinDict(in, args, kwargs)
			if err != nil {
				return nil, err
			}
			d := recv.(*Dict)
			s := src.(*Dict)
			for i, k := range s.keys {
				if err := d.Set(k, s.vals[i]); err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
		"pop": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			if len(args) == 0 || len(args) > 2 || len(kwargs) > 0 {
				return nil, raise("TypeError", "pop expected 1 or 2 arguments")
			}
			d := recv.(*Dict)
			v, ok, err := d.Get(args[0])
			if err != nil {
				return nil, err
			}
			if !ok {
				if len(args) == 2 {
					return args[1], nil
				}
				return nil, raise("KeyError", "%s", repr(args[0]))
			}
			_, err = d.Delete(args[0])
			return v, err
		},
		"setdefault": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("setdefault", args, kwargs, "key", "default?")
			if err != nil {
				return nil, err
			}
			d := recv.(*Dict)
			v, ok, err := d.Get(a[0])
			if err != nil || ok {
				return v, err
			}
			return a[1], d.Set(a[0], a[1])
		},
		"copy": func(in *Interp, recv Value, _ []Value, _ Kwargs) (Value, error) {
			return builtinDict(in, []Value{recv}, nil)
		},
	}

	tableMethods = map[string]method{
		"copy": func(_ *Interp, recv Value, _ []Value, _ Kwargs) (Value, error) {
			return recv.(*frame.Table).Clone(), nil
		},
		"head": func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
			a, err := bindArgs("head", args, kwargs, "n?")
			if err != nil {
				return nil, err
			}
			n := int64(5)
			if v, ok := a[0].(int64); ok {
				n = v
			}
			t, err := frame.Head(recv.(*frame.Table), int(n))
			if err != nil {
				return nil, hostError(err)
			}
			return t, nil
		},
	}
}

func affix(fn string, test func(string, string) bool) method {
	return func(_ *Interp, recv Value, args []Value, kwargs Kwargs) (Value, error) {
		a, err := bindArgs(fn, args, kwargs, "prefix")
		if err != nil {
			return nil, err
		}
		s := recv.(string)
		candidates := []Value{a[0]}
		if t, ok := a[0].(Tuple); ok {
			candidates = t
		}
		for _, c := range candidates {
			p, err := strArg(fn, c)
			if err != nil {
				return nil, err
			}
			if test(s, p) {
				return true, nil
			}
		}
		return false, nil
	}
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		isLetter := strings.ContainsRune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ", r)
		if isLetter && !prevLetter {
			b.WriteString(strings.ToUpper(string(r)))
		} else {
			b.WriteString(strings.ToLower(string(r)))
		}
		prevLetter = isLetter
	}
	return b.String()
}

// formatMethod implements str.format with automatic, numbered and named
// fields.
func formatMethod(tmpl string, args []Value, kwargs Kwargs) (Value, error) {
	var b strings.Builder
	auto := 0
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c == '}' {
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			return nil, raise("ValueError", "single '{' encountered in format string")
		}
		field := tmpl[i+1 : i+end]
		i += end
		name, spec, _ := strings.Cut(field, ":")
		var v Value
		switch {
		case name == "":
			if auto >= len(args) {
				return nil, raise("IndexError", "replacement index %d out of range", auto)
			}
			v = args[auto]
			auto++
		case name[0] >= '0' && name[0] <= '9':
			n := 0
			for _, d := range name {
				n = n*10 + int(d-'0')
			}
			if n >= len(args) {
				return nil, raise("IndexError", "replacement index %d out of range", n)
			}
			v = args[n]
		default:
			kv, ok := kwargs.Get(name)
			if !ok {
				return nil, raise("KeyError", "%s", quote(name))
			}
			v = kv
		}
		s, err := formatSpec(v, spec)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}
