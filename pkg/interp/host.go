package interp

import (
	"strings"

	"github.com/matzehuels/stepbook/pkg/frame"
	"github.com/matzehuels/stepbook/pkg/notebook"
)

func (in *Interp) importModule(path string) (*Module, error) {
	if m, ok := in.modules[path]; ok {
		return m, nil
	}
	return nil, raise("ModuleNotFoundError", "No module named '%s'", path)
}

// hostModules builds the importable namespaces: the loader module with the
// operations, step and load_source; the runtime module with the display
// vocabulary; and annotation-only stubs.
func (in *Interp) hostModules() map[string]*Module {
	loader := &Module{name: in.opts.LoaderModule, attrs: map[string]Value{}}
	for name, op := range frameOps {
		loader.attrs[name] = &Builtin{name: name, fn: op}
	}
	ops := &Module{name: in.opts.LoaderModule + ".operations", attrs: loader.attrs}
	loader.attrs[in.opts.Marker] = &Builtin{name: in.opts.Marker, fn: in.step}
	loader.attrs[notebook.FuncLoadSource] = &Builtin{name: notebook.FuncLoadSource, fn: in.loadSource}

	runtime := &Module{name: in.opts.RuntimeModule, attrs: map[string]Value{
		notebook.FuncDisplay:      &Builtin{name: notebook.FuncDisplay, fn: in.display},
		notebook.FuncDisplayMD:    &Builtin{name: notebook.FuncDisplayMD, fn: in.displayMD},
		notebook.FuncDisplayTable: &Builtin{name: notebook.FuncDisplayTable, fn: in.displayTable},
		notebook.FuncLoadSource:   loader.attrs[notebook.FuncLoadSource],
	}}

	mods := map[string]*Module{
		loader.name:  loader,
		ops.name:     ops,
		runtime.name: runtime,
		"__future__": {name: "__future__", lenient: true},
		"typing":     {name: "typing", lenient: true},
	}
	// Parent packages expose their submodules as attributes.
	for path, m := range mods {
		for {
			i := strings.LastIndexByte(path, '.')
			if i < 0 {
				break
			}
			parent, ok := mods[path[:i]]
			if !ok {
				parent = &Module{name: path[:i], attrs: map[string]Value{}}
				mods[path[:i]] = parent
			}
			if _, exists := parent.attrs[path[i+1:]]; !exists {
				parent.attrs[path[i+1:]] = m
			}
			path, m = path[:i], parent
		}
	}
	return mods
}

func (in *Interp) step(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs(in.opts.Marker, args, kwargs, "title", "description?")
	if err != nil {
		return nil, err
	}
	title, err := strArg(in.opts.Marker, a[0])
	if err != nil {
		return nil, err
	}
	desc, _ := a[1].(string)
	in.result.Steps = append(in.result.Steps, StepRun{Title: title, Description: desc})
	in.opts.Logger.Debug("step", "title", title)
	return nil, nil
}

func (in *Interp) loadSource(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs(notebook.FuncLoadSource, args, kwargs, "source_id", "sample?")
	if err != nil {
		return nil, err
	}
	id, err := strArg(notebook.FuncLoadSource, a[0])
	if err != nil {
		return nil, err
	}
	sample := 0
	if n, ok := a[1].(int64); ok {
		sample = int(n)
	}
	return in.load(id, sample)
}

func (in *Interp) record(d Display) {
	d.Cell = in.cell
	in.result.Displays = append(in.result.Displays, d)
}

func (in *Interp) display(_ *Interp, args []Value, _ Kwargs) (Value, error) {
	for _, a := range args {
		if t, ok := a.(*frame.Table); ok {
			in.record(Display{Kind: DisplayTable, Table: t.Clone()})
			continue
		}
		in.record(Display{Kind: DisplayValue, Text: repr(a)})
	}
	return nil, nil
}

func (in *Interp) displayMD(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs(notebook.FuncDisplayMD, args, kwargs, "text")
	if err != nil {
		return nil, err
	}
	in.record(Display{Kind: DisplayMarkdown, Text: str(a[0])})
	return nil, nil
}

func (in *Interp) displayTable(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
	a, err := bindArgs(notebook.FuncDisplayTable, args, kwargs, "df", "n?")
	if err != nil {
		return nil, err
	}
	t, ok := a[0].(*frame.Table)
	if !ok {
		// steps whose last binding is not a table still show it
		in.record(Display{Kind: DisplayValue, Text: repr(a[0])})
		return nil, nil
	}
	t = t.Clone()
	if n, ok := a[1].(int64); ok && int(n) < t.Len() && n >= 0 {
		t.Rows = t.Rows[:n]
	}
	in.record(Display{Kind: DisplayTable, Table: t})
	return nil, nil
}

type hostFunc = func(in *Interp, args []Value, kwargs Kwargs) (Value, error)

func tableArg(fn string, v Value) (*frame.Table, error) {
	t, ok := v.(*frame.Table)
	if !ok {
		return nil, raise("TypeError", "%s() expects a DataFrame, got %s", fn, typeName(v))
	}
	return t, nil
}

func optString(v Value) string {
	s, _ := v.(string)
	return s
}

// tableOp adapts a frame operation taking the bound arguments after the
// table.
func tableOp(name string, params []string, run func(t *frame.Table, a []Value) (*frame.Table, error)) hostFunc {
	return func(_ *Interp, args []Value, kwargs Kwargs) (Value, error) {
		a, err := bindArgs(name, args, kwargs, append([]string{"df"}, params...)...)
		if err != nil {
			return nil, err
		}
		t, err := tableArg(name, a[0])
		if err != nil {
			return nil, err
		}
		out, err := run(t, a[1:])
		if err != nil {
			return nil, hostError(err)
		}
		return out, nil
	}
}

func stringOp(name string, f func(t *frame.Table, column, target string) (*frame.Table, error)) hostFunc {
	return tableOp(name, []string{"column", "target_column?"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
		col, err := strArg(name, a[0])
		if err != nil {
			return nil, err
		}
		return f(t, col, optString(a[1]))
	})
}

func membershipOp(name string, f func(t *frame.Table, column string, values []frame.Value) (*frame.Table, error)) hostFunc {
	return tableOp(name, []string{"column", "values"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
		col, err := strArg(name, a[0])
		if err != nil {
			return nil, err
		}
		vals, err := toFrameValues(a[1])
		if err != nil {
			return nil, err
		}
		return f(t, col, vals)
	})
}

func columnsOp(name string, f func(t *frame.Table, columns []string) (*frame.Table, error)) hostFunc {
	return tableOp(name, []string{"columns"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
		cols, err := toStrings(a[0])
		if err != nil {
			return nil, err
		}
		return f(t, cols)
	})
}

func scalarArg(v Value) (frame.Value, error) {
	if !isScalar(v) {
		return nil, raise("TypeError", "expected a scalar value, got %s", typeName(v))
	}
	return v, nil
}

var frameOps map[string]hostFunc

func init() {
	frameOps = map[string]hostFunc{
		"filter_isin":     membershipOp("filter_isin", frame.FilterIsin),
		"filter_not_isin": membershipOp("filter_not_isin", frame.FilterNotIsin),
		"filter_not_null": tableOp("filter_not_null", []string{"column"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
			col, err := strArg("filter_not_null", a[0])
			if err != nil {
				return nil, err
			}
			return frame.FilterNotNull(t, col)
		}),
		"str_upper": stringOp("str_upper", frame.StrUpper),
		"str_lower": stringOp("str_lower", frame.StrLower),
		"str_strip": stringOp("str_strip", frame.StrStrip),
		"set_value": tableOp("set_value", []string{"column", "value"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
			col, err := strArg("set_value", a[0])
			if err != nil {
				return nil, err
			}
			v, err := scalarArg(a[1])
			if err != nil {
				return nil, err
			}
			return frame.SetValue(t, col, v)
		}),
		"copy_column": tableOp("copy_column", []string{"source", "target"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
			src, err := strArg("copy_column", a[0])
			if err != nil {
				return nil, err
			}
			dst, err := strArg("copy_column", a[1])
			if err != nil {
				return nil, err
			}
			return frame.CopyColumn(t, src, dst)
		}),
		"rename_columns": tableOp("rename_columns", []string{"mapping"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
			d, ok := a[0].(*Dict)
			if !ok {
				return nil, raise("TypeError", "rename_columns() mapping must be a dict, got %s", typeName(a[0]))
			}
			mapping := make(map[string]string, d.Len())
			for i, k := range d.keys {
				ks, kok := k.(string)
				vs, vok := d.vals[i].(string)
				if !kok || !vok {
					return nil, raise("TypeError", "rename_columns() mapping must be str to str")
				}
				mapping[ks] = vs
			}
			return frame.RenameColumns(t, mapping)
		}),
		"select_columns": columnsOp("select_columns", frame.SelectColumns),
		"drop_columns":   columnsOp("drop_columns", frame.DropColumns),
		"fill_null": tableOp("fill_null", []string{"column", "value", "target?"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
			col, err := strArg("fill_null", a[0])
			if err != nil {
				return nil, err
			}
			v, err := scalarArg(a[1])
			if err != nil {
				return nil, err
			}
			return frame.FillNull(t, col, v, optString(a[2]))
		}),
		"drop_duplicates": tableOp("drop_duplicates", []string{"columns?", "keep?"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
			var cols []string
			if a[0] != nil {
				var err error
				if cols, err = toStrings(a[0]); err != nil {
					return nil, err
				}
			}
			keep := "first"
			if a[1] != nil {
				keep = optString(a[1])
			}
			if keep != "first" && keep != "last" {
				return nil, raise("ValueError", "drop_duplicates() keep must be 'first' or 'last'")
			}
			return frame.DropDuplicates(t, cols, keep == "last")
		}),
		"head": tableOp("head", []string{"n?"}, func(t *frame.Table, a []Value) (*frame.Table, error) {
			n := int64(5)
			if a[0] != nil {
				var ok bool
				if n, ok = a[0].(int64); !ok {
					return nil, raise("TypeError", "head() n must be an integer")
				}
			}
			return frame.Head(t, int(n))
		}),
	}
}
