package script

// Clone returns a deep copy of the statements. Renaming and code generation
// work on copies so a parsed module stays read-only.
func Clone(stmts []Stmt) []Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = CloneStmt(s)
	}
	return out
}

// CloneStmt returns a deep copy of s.
func CloneStmt(s Stmt) Stmt {
	switch s := s.(type) {
	case *Import:
		c := *s
		c.Names = cloneAliases(s.Names)
		return &c
	case *ImportFrom:
		c := *s
		c.Names = cloneAliases(s.Names)
		return &c
	case *FuncDef:
		c := *s
		c.Decorators = cloneExprs(s.Decorators)
		c.Name = cloneName(s.Name)
		c.Params = cloneParams(s.Params)
		c.Returns = CloneExpr(s.Returns)
		c.Body = Clone(s.Body)
		return &c
	case *Assign:
		c := *s
		c.Targets = cloneExprs(s.Targets)
		c.Value = CloneExpr(s.Value)
		return &c
	case *AnnAssign:
		c := *s
		c.Target = CloneExpr(s.Target)
		c.Annotation = CloneExpr(s.Annotation)
		c.Value = CloneExpr(s.Value)
		return &c
	case *AugAssign:
		c := *s
		c.Target = CloneExpr(s.Target)
		c.Value = CloneExpr(s.Value)
		return &c
	case *ExprStmt:
		c := *s
		c.X = CloneExpr(s.X)
		return &c
	case *Return:
		c := *s
		c.Value = CloneExpr(s.Value)
		return &c
	case *If:
		c := *s
		c.Cond = CloneExpr(s.Cond)
		c.Body = Clone(s.Body)
		c.Else = Clone(s.Else)
		return &c
	case *For:
		c := *s
		c.Target = CloneExpr(s.Target)
		c.Iter = CloneExpr(s.Iter)
		c.Body = Clone(s.Body)
		c.Else = Clone(s.Else)
		return &c
	case *While:
		c := *s
		c.Cond = CloneExpr(s.Cond)
		c.Body = Clone(s.Body)
		c.Else = Clone(s.Else)
		return &c
	case *With:
		c := *s
		c.Items = make([]*WithItem, len(s.Items))
		for i, it := range s.Items {
			c.Items[i] = &WithItem{Context: CloneExpr(it.Context), Target: CloneExpr(it.Target)}
		}
		c.Body = Clone(s.Body)
		return &c
	case *Try:
		c := *s
		c.Body = Clone(s.Body)
		c.Handlers = make([]*ExceptHandler, len(s.Handlers))
		for i, h := range s.Handlers {
			hc := *h
			hc.Type = CloneExpr(h.Type)
			hc.Name = cloneName(h.Name)
			hc.Body = Clone(h.Body)
			c.Handlers[i] = &hc
		}
		c.Else = Clone(s.Else)
		c.Finally = Clone(s.Finally)
		return &c
	case *Raise:
		c := *s
		c.Exc = CloneExpr(s.Exc)
		c.Cause = CloneExpr(s.Cause)
		return &c
	case *Assert:
		c := *s
		c.Test = CloneExpr(s.Test)
		c.Msg = CloneExpr(s.Msg)
		return &c
	case *Del:
		c := *s
		c.Targets = cloneExprs(s.Targets)
		return &c
	case *Global:
		c := *s
		c.Names = append([]string(nil), s.Names...)
		return &c
	case *Pass:
		c := *s
		return &c
	case *Break:
		c := *s
		return &c
	case *Continue:
		c := *s
		return &c
	case *Comment:
		c := *s
		return &c
	}
	return s
}

// CloneExpr returns a deep copy of e. A nil expression stays nil.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *Name:
		return cloneName(e)
	case *Const:
		c := *e
		return &c
	case *Num:
		c := *e
		return &c
	case *Str:
		c := *e
		return &c
	case *FString:
		c := *e
		c.Parts = make([]*FStringPart, len(e.Parts))
		for i, p := range e.Parts {
			pc := *p
			pc.Expr = CloneExpr(p.Expr)
			c.Parts[i] = &pc
		}
		return &c
	case *Attribute:
		c := *e
		c.X = CloneExpr(e.X)
		return &c
	case *Subscript:
		c := *e
		c.X = CloneExpr(e.X)
		c.Index = CloneExpr(e.Index)
		return &c
	case *Slice:
		c := *e
		c.Lo, c.Hi, c.Step = CloneExpr(e.Lo), CloneExpr(e.Hi), CloneExpr(e.Step)
		return &c
	case *Call:
		c := *e
		c.Func = CloneExpr(e.Func)
		c.Args = make([]*Arg, len(e.Args))
		for i, a := range e.Args {
			ac := *a
			ac.Value = CloneExpr(a.Value)
			c.Args[i] = &ac
		}
		return &c
	case *BinOp:
		c := *e
		c.X, c.Y = CloneExpr(e.X), CloneExpr(e.Y)
		return &c
	case *UnaryOp:
		c := *e
		c.X = CloneExpr(e.X)
		return &c
	case *BoolOp:
		c := *e
		c.X, c.Y = CloneExpr(e.X), CloneExpr(e.Y)
		return &c
	case *Compare:
		c := *e
		c.X = CloneExpr(e.X)
		c.Ops = append([]string(nil), e.Ops...)
		c.Comparators = cloneExprs(e.Comparators)
		return &c
	case *IfExp:
		c := *e
		c.Body, c.Cond, c.Else = CloneExpr(e.Body), CloneExpr(e.Cond), CloneExpr(e.Else)
		return &c
	case *Lambda:
		c := *e
		c.Params = cloneParams(e.Params)
		c.Body = CloneExpr(e.Body)
		return &c
	case *List:
		c := *e
		c.Elts = cloneExprs(e.Elts)
		return &c
	case *Tuple:
		c := *e
		c.Elts = cloneExprs(e.Elts)
		return &c
	case *Set:
		c := *e
		c.Elts = cloneExprs(e.Elts)
		return &c
	case *Dict:
		c := *e
		c.Keys = cloneExprs(e.Keys)
		c.Values = cloneExprs(e.Values)
		return &c
	case *Starred:
		c := *e
		c.X = CloneExpr(e.X)
		return &c
	case *Comprehension:
		c := *e
		c.Elt = CloneExpr(e.Elt)
		c.Value = CloneExpr(e.Value)
		c.Generators = make([]*CompFor, len(e.Generators))
		for i, g := range e.Generators {
			c.Generators[i] = &CompFor{Target: CloneExpr(g.Target), Iter: CloneExpr(g.Iter), Ifs: cloneExprs(g.Ifs)}
		}
		return &c
	}
	return e
}

func cloneName(n *Name) *Name {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// cloneExprs keeps nil entries, which mark ** entries in dict keys.
func cloneExprs(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = CloneExpr(e)
	}
	return out
}

func cloneAliases(list []*Alias) []*Alias {
	out := make([]*Alias, len(list))
	for i, a := range list {
		c := *a
		c.Name = cloneName(a.Name)
		out[i] = &c
	}
	return out
}

func cloneParams(list []*Param) []*Param {
	if list == nil {
		return nil
	}
	out := make([]*Param, len(list))
	for i, p := range list {
		c := *p
		c.Annotation = CloneExpr(p.Annotation)
		c.Default = CloneExpr(p.Default)
		out[i] = &c
	}
	return out
}
