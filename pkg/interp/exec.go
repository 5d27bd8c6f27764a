package interp

import (
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/script"
)

type flowKind int

const (
	flowNext flowKind = iota
	flowBreak
	flowContinue
	flowReturn
)

type flow struct {
	kind  flowKind
	value Value
}

// at records line on an exception that has no position yet.
func at(err error, line int) error {
	var pe *pyError
	if errors.As(err, &pe) && pe.line == 0 {
		pe.line = line
	}
	return err
}

func (in *Interp) execBlock(stmts []script.Stmt, e *env) (flow, error) {
	for _, s := range stmts {
		if err := in.ctx.Err(); err != nil {
			return flow{}, errors.Wrap(errors.ErrCodeRuntime, err, "execution cancelled")
		}
		f, err := in.exec(s, e)
		if err != nil {
			return flow{}, at(err, s.Position().Line)
		}
		if f.kind != flowNext {
			return f, nil
		}
	}
	return flow{}, nil
}

func (in *Interp) exec(s script.Stmt, e *env) (flow, error) {
	switch s := s.(type) {
	case *script.Import:
		for _, a := range s.Names {
			m, err := in.importModule(a.Path)
			if err != nil {
				return flow{}, err
			}
			// `import a.b` binds the top-level package a.
			if !a.As {
				if m, err = in.importModule(a.Name.ID); err != nil {
					return flow{}, err
				}
			}
			e.set(a.Name.ID, m)
		}

	case *script.ImportFrom:
		if s.Level > 0 {
			return flow{}, raise("ImportError", "relative imports are not supported")
		}
		m, err := in.importModule(s.Module)
		if err != nil {
			return flow{}, err
		}
		for _, a := range s.Names {
			if a.Path == "*" {
				for k, v := range m.attrs {
					e.set(k, v)
				}
				continue
			}
			v, ok := m.Attr(a.Path)
			if !ok {
				sub, err := in.importModule(s.Module + "." + a.Path)
				if err != nil {
					return flow{}, raise("ImportError", "cannot import name '%s' from '%s'", a.Path, s.Module)
				}
				v = sub
			}
			e.set(a.Name.ID, v)
		}

	case *script.FuncDef:
		fn, err := in.function(s.Name.ID, s.Params, e)
		if err != nil {
			return flow{}, err
		}
		fn.body = s.Body
		var v Value = fn
		for i := len(s.Decorators) - 1; i >= 0; i-- {
			dec, err := in.eval(s.Decorators[i], e)
			if err != nil {
				return flow{}, err
			}
			if v, err = in.call(dec, []Value{v}, nil); err != nil {
				return flow{}, err
			}
		}
		e.set(s.Name.ID, v)

	case *script.Assign:
		v, err := in.eval(s.Value, e)
		if err != nil {
			return flow{}, err
		}
		for _, t := range s.Targets {
			if err := in.assign(t, v, e); err != nil {
				return flow{}, err
			}
		}

	case *script.AnnAssign:
		if s.Value == nil {
			return flow{}, nil
		}
		v, err := in.eval(s.Value, e)
		if err != nil {
			return flow{}, err
		}
		return flow{}, in.assign(s.Target, v, e)

	case *script.AugAssign:
		return flow{}, in.augAssign(s, e)

	case *script.ExprStmt:
		_, err := in.eval(s.X, e)
		return flow{}, err

	case *script.Return:
		var v Value
		if s.Value != nil {
			var err error
			if v, err = in.eval(s.Value, e); err != nil {
				return flow{}, err
			}
		}
		return flow{kind: flowReturn, value: v}, nil

	case *script.If:
		c, err := in.eval(s.Cond, e)
		if err != nil {
			return flow{}, err
		}
		if truthy(c) {
			return in.execBlock(s.Body, e)
		}
		return in.execBlock(s.Else, e)

	case *script.While:
		for {
			c, err := in.eval(s.Cond, e)
			if err != nil {
				return flow{}, err
			}
			if !truthy(c) {
				return in.execBlock(s.Else, e)
			}
			f, err := in.execBlock(s.Body, e)
			if err != nil {
				return flow{}, err
			}
			switch f.kind {
			case flowBreak:
				return flow{}, nil
			case flowReturn:
				return f, nil
			}
		}

	case *script.For:
		it, err := in.eval(s.Iter, e)
		if err != nil {
			return flow{}, err
		}
		items, err := iterate(it)
		if err != nil {
			return flow{}, err
		}
		for _, item := range items {
			if err := in.assign(s.Target, item, e); err != nil {
				return flow{}, err
			}
			f, err := in.execBlock(s.Body, e)
			if err != nil {
				return flow{}, err
			}
			switch f.kind {
			case flowBreak:
				return flow{}, nil
			case flowReturn:
				return f, nil
			}
		}
		return in.execBlock(s.Else, e)

	case *script.Try:
		return in.execTry(s, e)

	case *script.Raise:
		return flow{}, in.execRaise(s, e)

	case *script.Assert:
		c, err := in.eval(s.Test, e)
		if err != nil {
			return flow{}, err
		}
		if truthy(c) {
			return flow{}, nil
		}
		msg := ""
		if s.Msg != nil {
			m, err := in.eval(s.Msg, e)
			if err != nil {
				return flow{}, err
			}
			msg = str(m)
		}
		return flow{}, raise("AssertionError", "%s", msg)

	case *script.Del:
		for _, t := range s.Targets {
			if err := in.del(t, e); err != nil {
				return flow{}, err
			}
		}

	case *script.Global:
		for _, n := range s.Names {
			e.declareGlobal(n)
		}

	case *script.With:
		return flow{}, raise("NotImplementedError", "with statements are not supported")

	case *script.Break:
		return flow{kind: flowBreak}, nil
	case *script.Continue:
		return flow{kind: flowContinue}, nil
	case *script.Pass, *script.Comment:
	}
	return flow{}, nil
}

func (in *Interp) function(name string, params []*script.Param, e *env) (*Function, error) {
	fn := &Function{name: name, params: params, env: e}
	for i, p := range params {
		if p.Default == nil {
			continue
		}
		d, err := in.eval(p.Default, e)
		if err != nil {
			return nil, err
		}
		if fn.defaults == nil {
			fn.defaults = make(map[int]Value)
		}
		fn.defaults[i] = d
	}
	return fn, nil
}

// Call invokes the function with a fresh local scope.
func (f *Function) Call(in *Interp, args []Value, kwargs Kwargs) (Value, error) {
	if in.depth >= maxDepth {
		return nil, raise("RecursionError", "maximum recursion depth exceeded")
	}
	local := newEnv(f.env)
	if err := f.bind(local, args, kwargs); err != nil {
		return nil, err
	}
	in.depth++
	defer func() { in.depth-- }()
	if f.expr != nil {
		return in.eval(f.expr, local)
	}
	fl, err := in.execBlock(f.body, local)
	if err != nil {
		return nil, err
	}
	if fl.kind == flowReturn {
		return fl.value, nil
	}
	return nil, nil
}

func (f *Function) bind(local *env, args []Value, kwargs Kwargs) error {
	bound := make(map[string]bool)
	named := make(map[string]bool)
	pos, kwOnly := 0, false
	varkw := ""
	for _, p := range f.params {
		switch p.Star {
		case 1:
			kwOnly = true
			if p.Name != "" {
				local.vars[p.Name] = Tuple(append([]Value(nil), args[pos:]...))
				pos = len(args)
			}
		case 2:
			varkw = p.Name
		default:
			named[p.Name] = true
			if !kwOnly && pos < len(args) {
				local.vars[p.Name] = args[pos]
				bound[p.Name] = true
				pos++
			}
		}
	}
	if pos < len(args) {
		return raise("TypeError", "%s() takes %d positional arguments but %d were given", f.name, pos, len(args))
	}

	extra := NewDict()
	for _, k := range kwargs {
		if named[k.Name] {
			if bound[k.Name] {
				return raise("TypeError", "%s() got multiple values for argument '%s'", f.name, k.Name)
			}
			local.vars[k.Name] = k.Value
			bound[k.Name] = true
			continue
		}
		if varkw == "" {
			return raise("TypeError", "%s() got an unexpected keyword argument '%s'", f.name, k.Name)
		}
		if err := extra.Set(k.Name, k.Value); err != nil {
			return err
		}
	}
	if varkw != "" {
		local.vars[varkw] = extra
	}

	for i, p := range f.params {
		if p.Star != 0 || bound[p.Name] {
			continue
		}
		d, ok := f.defaults[i]
		if !ok {
			return raise("TypeError", "%s() missing required argument: '%s'", f.name, p.Name)
		}
		local.vars[p.Name] = d
	}
	return nil
}

func (in *Interp) execTry(s *script.Try, e *env) (flow, error) {
	f, err := in.execBlock(s.Body, e)
	if err != nil {
		var pe *pyError
		if !errors.As(err, &pe) {
			return flow{}, err
		}
		h, herr := in.match(s.Handlers, pe.exc, e)
		if herr != nil {
			return flow{}, herr
		}
		if h == nil {
			return in.finally(s, e, flow{}, err)
		}
		if h.Name != nil {
			e.set(h.Name.ID, pe.exc)
		}
		in.handling = append(in.handling, pe.exc)
		f, err = in.execBlock(h.Body, e)
		in.handling = in.handling[:len(in.handling)-1]
		return in.finally(s, e, f, err)
	}
	if f.kind == flowNext {
		f, err = in.execBlock(s.Else, e)
	}
	return in.finally(s, e, f, err)
}

func (in *Interp) finally(s *script.Try, e *env, f flow, err error) (flow, error) {
	if len(s.Finally) == 0 {
		return f, err
	}
	ff, ferr := in.execBlock(s.Finally, e)
	if ferr != nil || ff.kind != flowNext {
		return ff, ferr
	}
	return f, err
}

// match returns the first handler whose type matches exc.
func (in *Interp) match(handlers []*script.ExceptHandler, exc *Exception, e *env) (*script.ExceptHandler, error) {
	for _, h := range handlers {
		if h.Type == nil {
			return h, nil
		}
		t, err := in.eval(h.Type, e)
		if err != nil {
			return nil, err
		}
		types := []Value{t}
		if tup, ok := t.(Tuple); ok {
			types = tup
		}
		for _, t := range types {
			et, ok := t.(*ExcType)
			if !ok {
				return nil, raise("TypeError", "catching classes that do not inherit from BaseException is not allowed")
			}
			if excMatches(et.name, exc.Type) {
				return h, nil
			}
		}
	}
	return nil, nil
}

func (in *Interp) execRaise(s *script.Raise, e *env) error {
	if s.Exc == nil {
		if len(in.handling) == 0 {
			return raise("RuntimeError", "no active exception to reraise")
		}
		return &pyError{exc: in.handling[len(in.handling)-1]}
	}
	v, err := in.eval(s.Exc, e)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case *Exception:
		return &pyError{exc: v}
	case *ExcType:
		return &pyError{exc: &Exception{Type: v.name}}
	}
	return raise("TypeError", "exceptions must derive from BaseException")
}

func (in *Interp) assign(target script.Expr, v Value, e *env) error {
	switch t := target.(type) {
	case *script.Name:
		e.set(t.ID, v)
		return nil
	case *script.Tuple:
		return in.unpack(t.Elts, v, e)
	case *script.List:
		return in.unpack(t.Elts, v, e)
	case *script.Subscript:
		x, err := in.eval(t.X, e)
		if err != nil {
			return err
		}
		k, err := in.eval(t.Index, e)
		if err != nil {
			return err
		}
		return setItem(x, k, v)
	case *script.Attribute:
		return raise("AttributeError", "cannot set attribute '%s'", t.Attr)
	}
	return raise("SyntaxError", "cannot assign to expression")
}

func (in *Interp) unpack(targets []script.Expr, v Value, e *env) error {
	items, err := iterate(v)
	if err != nil {
		return err
	}
	star := -1
	for i, t := range targets {
		if _, ok := t.(*script.Starred); ok {
			star = i
		}
	}
	if star < 0 {
		if len(items) != len(targets) {
			return raise("ValueError", "expected %d values to unpack, got %d", len(targets), len(items))
		}
		for i, t := range targets {
			if err := in.assign(t, items[i], e); err != nil {
				return err
			}
		}
		return nil
	}
	after := len(targets) - star - 1
	if len(items) < star+after {
		return raise("ValueError", "not enough values to unpack")
	}
	for i := 0; i < star; i++ {
		if err := in.assign(targets[i], items[i], e); err != nil {
			return err
		}
	}
	mid := &List{Elems: append([]Value(nil), items[star:len(items)-after]...)}
	if err := in.assign(targets[star].(*script.Starred).X, mid, e); err != nil {
		return err
	}
	for i := 0; i < after; i++ {
		if err := in.assign(targets[star+1+i], items[len(items)-after+i], e); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) augAssign(s *script.AugAssign, e *env) error {
	cur, err := in.eval(s.Target, e)
	if err != nil {
		return err
	}
	v, err := in.eval(s.Value, e)
	if err != nil {
		return err
	}
	if l, ok := cur.(*List); ok && s.Op == "+" {
		items, err := iterate(v)
		if err != nil {
			return err
		}
		l.Elems = append(l.Elems, items...)
		return nil
	}
	out, err := binop(s.Op, cur, v)
	if err != nil {
		return err
	}
	return in.assign(s.Target, out, e)
}

func (in *Interp) del(target script.Expr, e *env) error {
	switch t := target.(type) {
	case *script.Name:
		if !e.del(t.ID) {
			return raise("NameError", "name '%s' is not defined", t.ID)
		}
		return nil
	case *script.Tuple:
		for _, x := range t.Elts {
			if err := in.del(x, e); err != nil {
				return err
			}
		}
		return nil
	case *script.Subscript:
		x, err := in.eval(t.X, e)
		if err != nil {
			return err
		}
		k, err := in.eval(t.Index, e)
		if err != nil {
			return err
		}
		return delItem(x, k)
	}
	return raise("SyntaxError", "cannot delete expression")
}
