package script

// Inspect traverses the tree rooted at n in depth-first source order. It
// calls f(node) for each node; if f returns false the children of that node
// are skipped. Nil nodes are never passed to f.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range children(n) {
		Inspect(c, f)
	}
}

// InspectAll applies Inspect to each statement in order.
func InspectAll(stmts []Stmt, f func(Node) bool) {
	for _, s := range stmts {
		Inspect(s, f)
	}
}

// Names returns every identifier occurrence under the given statements in
// source order, including binding occurrences.
func Names(stmts []Stmt) []*Name {
	var out []*Name
	InspectAll(stmts, func(n Node) bool {
		if nm, ok := n.(*Name); ok {
			out = append(out, nm)
		}
		return true
	})
	return out
}

// Identifiers returns the set of every identifier spelled anywhere under the
// given statements: names, parameters, attribute names and keyword argument
// names. Fresh identifiers are minted outside this set.
func Identifiers(stmts []Stmt) map[string]bool {
	ids := make(map[string]bool)
	InspectAll(stmts, func(n Node) bool {
		switch n := n.(type) {
		case *Name:
			ids[n.ID] = true
		case *Param:
			if n.Name != "" {
				ids[n.Name] = true
			}
		case *Attribute:
			ids[n.Attr] = true
		case *Arg:
			if n.Keyword != "" {
				ids[n.Keyword] = true
			}
		case *Global:
			for _, g := range n.Names {
				ids[g] = true
			}
		}
		return true
	})
	return ids
}

func stmtNodes(list []Stmt) []Node {
	out := make([]Node, 0, len(list))
	for _, s := range list {
		out = append(out, s)
	}
	return out
}

func exprNodes(list ...Expr) []Node {
	out := make([]Node, 0, len(list))
	for _, e := range list {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func children(n Node) []Node {
	switch n := n.(type) {
	case *Import:
		var out []Node
		for _, a := range n.Names {
			out = append(out, a)
		}
		return out
	case *ImportFrom:
		var out []Node
		for _, a := range n.Names {
			out = append(out, a)
		}
		return out
	case *Alias:
		if n.Name != nil {
			return []Node{n.Name}
		}
	case *FuncDef:
		out := exprNodes(n.Decorators...)
		out = append(out, n.Name)
		for _, p := range n.Params {
			out = append(out, p)
		}
		out = append(out, exprNodes(n.Returns)...)
		return append(out, stmtNodes(n.Body)...)
	case *Param:
		return exprNodes(n.Annotation, n.Default)
	case *Assign:
		return append(exprNodes(n.Targets...), exprNodes(n.Value)...)
	case *AnnAssign:
		return exprNodes(n.Target, n.Annotation, n.Value)
	case *AugAssign:
		return exprNodes(n.Target, n.Value)
	case *ExprStmt:
		return exprNodes(n.X)
	case *Return:
		return exprNodes(n.Value)
	case *If:
		out := exprNodes(n.Cond)
		out = append(out, stmtNodes(n.Body)...)
		return append(out, stmtNodes(n.Else)...)
	case *For:
		out := exprNodes(n.Target, n.Iter)
		out = append(out, stmtNodes(n.Body)...)
		return append(out, stmtNodes(n.Else)...)
	case *While:
		out := exprNodes(n.Cond)
		out = append(out, stmtNodes(n.Body)...)
		return append(out, stmtNodes(n.Else)...)
	case *With:
		var out []Node
		for _, it := range n.Items {
			out = append(out, exprNodes(it.Context, it.Target)...)
		}
		return append(out, stmtNodes(n.Body)...)
	case *Try:
		out := stmtNodes(n.Body)
		for _, h := range n.Handlers {
			out = append(out, h)
		}
		out = append(out, stmtNodes(n.Else)...)
		return append(out, stmtNodes(n.Finally)...)
	case *ExceptHandler:
		out := exprNodes(n.Type)
		if n.Name != nil {
			out = append(out, n.Name)
		}
		return append(out, stmtNodes(n.Body)...)
	case *Raise:
		return exprNodes(n.Exc, n.Cause)
	case *Assert:
		return exprNodes(n.Test, n.Msg)
	case *Del:
		return exprNodes(n.Targets...)
	case *FString:
		var out []Node
		for _, p := range n.Parts {
			out = append(out, exprNodes(p.Expr)...)
		}
		return out
	case *Attribute:
		return exprNodes(n.X)
	case *Subscript:
		return exprNodes(n.X, n.Index)
	case *Slice:
		return exprNodes(n.Lo, n.Hi, n.Step)
	case *Call:
		out := exprNodes(n.Func)
		for _, a := range n.Args {
			out = append(out, a)
		}
		return out
	case *Arg:
		return exprNodes(n.Value)
	case *BinOp:
		return exprNodes(n.X, n.Y)
	case *UnaryOp:
		return exprNodes(n.X)
	case *BoolOp:
		return exprNodes(n.X, n.Y)
	case *Compare:
		return append(exprNodes(n.X), exprNodes(n.Comparators...)...)
	case *IfExp:
		return exprNodes(n.Body, n.Cond, n.Else)
	case *Lambda:
		var out []Node
		for _, p := range n.Params {
			out = append(out, p)
		}
		return append(out, exprNodes(n.Body)...)
	case *List:
		return exprNodes(n.Elts...)
	case *Tuple:
		return exprNodes(n.Elts...)
	case *Set:
		return exprNodes(n.Elts...)
	case *Dict:
		var out []Node
		for i := range n.Keys {
			out = append(out, exprNodes(n.Keys[i], n.Values[i])...)
		}
		return out
	case *Starred:
		return exprNodes(n.X)
	case *Comprehension:
		var out []Node
		for _, g := range n.Generators {
			out = append(out, exprNodes(g.Iter, g.Target)...)
			out = append(out, exprNodes(g.Ifs...)...)
		}
		return append(out, exprNodes(n.Elt, n.Value)...)
	}
	return nil
}
