package script

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLineWidth is the width above which the printer splits a call across
// lines, one argument per line.
const MaxLineWidth = 88

// Precedence levels, loosest first.
const (
	precLambda = iota
	precIfExp
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precArith
	precTerm
	precUnary
	precPower
	precPrimary
	precAtom
)

var binPrec = map[string]int{
	"|": precBitOr, "^": precBitXor, "&": precBitAnd,
	"<<": precShift, ">>": precShift,
	"+": precArith, "-": precArith,
	"*": precTerm, "/": precTerm, "//": precTerm, "%": precTerm, "@": precTerm,
	"**": precPower,
}

func precOf(e Expr) int {
	switch e := e.(type) {
	case *Lambda:
		return precLambda
	case *IfExp:
		return precIfExp
	case *BoolOp:
		if e.Op == "or" {
			return precOr
		}
		return precAnd
	case *UnaryOp:
		if e.Op == "not" {
			return precNot
		}
		return precUnary
	case *Compare:
		return precCompare
	case *BinOp:
		return binPrec[e.Op]
	case *Call, *Attribute, *Subscript:
		return precPrimary
	}
	return precAtom
}

// Format renders statements as canonical source text: four-space
// indentation, double-quoted strings where possible and the minimal
// parentheses the operator precedence requires. The output ends with a
// newline unless stmts is empty.
func Format(stmts []Stmt) string {
	pr := &printer{}
	pr.block(stmts, 0)
	return pr.out.String()
}

// FormatModule renders a parsed module.
func FormatModule(m *Module) string { return Format(m.Body) }

// FormatExpr renders a single expression.
func FormatExpr(e Expr) string {
	pr := &printer{}
	return pr.top(e)
}

type printer struct {
	out strings.Builder
	// quote of the innermost enclosing f-string, 0 outside f-strings
	fquote byte
}

func (pr *printer) line(indent int, s string) {
	pr.out.WriteString(strings.Repeat("    ", indent))
	pr.out.WriteString(s)
	pr.out.WriteByte('\n')
}

func (pr *printer) block(stmts []Stmt, indent int) {
	for i, s := range stmts {
		if i > 0 && s.BlankBefore() {
			pr.out.WriteByte('\n')
		}
		pr.stmt(s, indent)
	}
}

func (pr *printer) body(stmts []Stmt, indent int) {
	if len(stmts) == 0 {
		pr.line(indent, "pass")
		return
	}
	pr.block(stmts, indent)
}

func (pr *printer) stmt(s Stmt, indent int) {
	switch s := s.(type) {
	case *Comment:
		pr.line(indent, s.Text)
	case *Import:
		parts := make([]string, len(s.Names))
		for i, a := range s.Names {
			parts[i] = importAlias(a, true)
		}
		pr.line(indent, "import "+strings.Join(parts, ", "))
	case *ImportFrom:
		pr.importFrom(s, indent)
	case *FuncDef:
		for _, d := range s.Decorators {
			pr.line(indent, "@"+pr.expr(d, precIfExp))
		}
		head := "def " + s.Name.ID + "(" + pr.params(s.Params, true) + ")"
		if s.Returns != nil {
			head += " -> " + pr.expr(s.Returns, precIfExp)
		}
		pr.line(indent, head+":")
		pr.body(s.Body, indent+1)
	case *Assign:
		var b strings.Builder
		for _, t := range s.Targets {
			b.WriteString(pr.top(t))
			b.WriteString(" = ")
		}
		pr.wrapped(indent, b.String(), s.Value)
	case *AnnAssign:
		head := pr.expr(s.Target, precPrimary) + ": " + pr.expr(s.Annotation, precIfExp)
		if s.Value == nil {
			pr.line(indent, head)
			return
		}
		pr.wrapped(indent, head+" = ", s.Value)
	case *AugAssign:
		pr.wrapped(indent, pr.expr(s.Target, precPrimary)+" "+s.Op+"= ", s.Value)
	case *ExprStmt:
		if doc, ok := docstring(s.X); ok {
			pr.out.WriteString(strings.Repeat("    ", indent))
			pr.out.WriteString(doc)
			pr.out.WriteByte('\n')
			return
		}
		pr.wrapped(indent, "", s.X)
	case *Return:
		if s.Value == nil {
			pr.line(indent, "return")
			return
		}
		pr.wrapped(indent, "return ", s.Value)
	case *If:
		pr.ifChain(s, indent, "if ")
	case *For:
		pr.line(indent, "for "+pr.top(s.Target)+" in "+pr.top(s.Iter)+":")
		pr.body(s.Body, indent+1)
		if len(s.Else) > 0 {
			pr.line(indent, "else:")
			pr.body(s.Else, indent+1)
		}
	case *While:
		pr.line(indent, "while "+pr.expr(s.Cond, precIfExp)+":")
		pr.body(s.Body, indent+1)
		if len(s.Else) > 0 {
			pr.line(indent, "else:")
			pr.body(s.Else, indent+1)
		}
	case *With:
		items := make([]string, len(s.Items))
		for i, it := range s.Items {
			items[i] = pr.expr(it.Context, precIfExp)
			if it.Target != nil {
				items[i] += " as " + pr.expr(it.Target, precBitOr)
			}
		}
		pr.line(indent, "with "+strings.Join(items, ", ")+":")
		pr.body(s.Body, indent+1)
	case *Try:
		pr.line(indent, "try:")
		pr.body(s.Body, indent+1)
		for _, h := range s.Handlers {
			head := "except"
			if h.Type != nil {
				head += " " + pr.expr(h.Type, precIfExp)
				if h.Name != nil {
					head += " as " + h.Name.ID
				}
			}
			pr.line(indent, head+":")
			pr.body(h.Body, indent+1)
		}
		if len(s.Else) > 0 {
			pr.line(indent, "else:")
			pr.body(s.Else, indent+1)
		}
		if len(s.Finally) > 0 {
			pr.line(indent, "finally:")
			pr.body(s.Finally, indent+1)
		}
	case *Raise:
		text := "raise"
		if s.Exc != nil {
			text += " " + pr.expr(s.Exc, precIfExp)
			if s.Cause != nil {
				text += " from " + pr.expr(s.Cause, precIfExp)
			}
		}
		pr.line(indent, text)
	case *Assert:
		text := "assert " + pr.expr(s.Test, precIfExp)
		if s.Msg != nil {
			text += ", " + pr.expr(s.Msg, precIfExp)
		}
		pr.line(indent, text)
	case *Del:
		parts := make([]string, len(s.Targets))
		for i, t := range s.Targets {
			parts[i] = pr.expr(t, precBitOr)
		}
		pr.line(indent, "del "+strings.Join(parts, ", "))
	case *Global:
		kw := "global "
		if s.Nonlocal {
			kw = "nonlocal "
		}
		pr.line(indent, kw+strings.Join(s.Names, ", "))
	case *Pass:
		pr.line(indent, "pass")
	case *Break:
		pr.line(indent, "break")
	case *Continue:
		pr.line(indent, "continue")
	default:
		panic(fmt.Sprintf("script: cannot print %T", s))
	}
}

// docstring renders a bare string statement in triple-quoted form.
func docstring(e Expr) (string, bool) {
	str, ok := e.(*Str)
	if !ok || str.Bytes || strings.Contains(str.Value, `"""`) || strings.HasSuffix(str.Value, `"`) {
		return "", false
	}
	for _, r := range str.Value {
		if r != '\n' && r != '\t' && (r < 0x20 || r == 0x7f) {
			return "", false
		}
	}
	return `"""` + strings.ReplaceAll(str.Value, `\`, `\\`) + `"""`, true
}

func importAlias(a *Alias, dotted bool) string {
	if a.Name == nil {
		return a.Path
	}
	bound := a.Path
	if dotted {
		bound, _, _ = strings.Cut(a.Path, ".")
	}
	if a.As || a.Name.ID != bound {
		return a.Path + " as " + a.Name.ID
	}
	return a.Path
}

func (pr *printer) importFrom(s *ImportFrom, indent int) {
	mod := strings.Repeat(".", s.Level) + s.Module
	parts := make([]string, len(s.Names))
	for i, a := range s.Names {
		parts[i] = importAlias(a, false)
	}
	head := "from " + mod + " import "
	flat := head + strings.Join(parts, ", ")
	if len(parts) == 1 || indent*4+len(flat) <= MaxLineWidth {
		pr.line(indent, flat)
		return
	}
	pr.line(indent, head+"(")
	for _, p := range parts {
		pr.line(indent+1, p+",")
	}
	pr.line(indent, ")")
}

func (pr *printer) ifChain(s *If, indent int, kw string) {
	pr.line(indent, kw+pr.expr(s.Cond, precIfExp)+":")
	pr.body(s.Body, indent+1)
	if len(s.Else) == 1 {
		if elif, ok := s.Else[0].(*If); ok && elif.Elif {
			pr.ifChain(elif, indent, "elif ")
			return
		}
	}
	if len(s.Else) > 0 {
		pr.line(indent, "else:")
		pr.body(s.Else, indent+1)
	}
}

// wrapped prints head+value, splitting a call value across lines when the
// flat form is wider than MaxLineWidth.
func (pr *printer) wrapped(indent int, head string, value Expr) {
	flat := head + pr.top(value)
	call, ok := value.(*Call)
	if !ok || len(call.Args) == 0 || indent*4+utf8.RuneCountInString(flat) <= MaxLineWidth || strings.Contains(flat, "\n") {
		pr.line(indent, flat)
		return
	}
	pr.line(indent, head+pr.expr(call.Func, precPrimary)+"(")
	for _, a := range call.Args {
		pr.line(indent+1, pr.arg(a)+",")
	}
	pr.line(indent, ")")
}

// top renders an expression in a statement-level position where a tuple
// needs no parentheses.
func (pr *printer) top(e Expr) string {
	if t, ok := e.(*Tuple); ok && len(t.Elts) > 1 {
		return pr.elts(t.Elts)
	}
	return pr.expr(e, precLambda)
}

func (pr *printer) elts(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = pr.expr(e, precIfExp)
	}
	return strings.Join(parts, ", ")
}

func (pr *printer) params(params []*Param, annotations bool) string {
	parts := make([]string, len(params))
	for i, p := range params {
		s := strings.Repeat("*", p.Star) + p.Name
		if annotations && p.Annotation != nil {
			s += ": " + pr.expr(p.Annotation, precIfExp)
		}
		if p.Default != nil {
			if annotations && p.Annotation != nil {
				s += " = " + pr.expr(p.Default, precIfExp)
			} else {
				s += "=" + pr.expr(p.Default, precIfExp)
			}
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func (pr *printer) arg(a *Arg) string {
	switch {
	case a.Star > 0:
		return strings.Repeat("*", a.Star) + pr.expr(a.Value, precIfExp)
	case a.Keyword != "":
		return a.Keyword + "=" + pr.expr(a.Value, precIfExp)
	}
	return pr.expr(a.Value, precIfExp)
}

// expr renders e, parenthesized when its precedence is below prec.
func (pr *printer) expr(e Expr, prec int) string {
	s := pr.bare(e)
	if precOf(e) < prec {
		return "(" + s + ")"
	}
	return s
}

func (pr *printer) bare(e Expr) string {
	switch e := e.(type) {
	case *Name:
		return e.ID
	case *Const:
		switch e.Kind {
		case ConstTrue:
			return "True"
		case ConstFalse:
			return "False"
		case ConstEllipsis:
			return "..."
		}
		return "None"
	case *Num:
		return e.Raw
	case *Str:
		return pr.quote(e.Value, e.Bytes)
	case *FString:
		return pr.fstring(e)
	case *Attribute:
		x := pr.expr(e.X, precPrimary)
		if _, ok := e.X.(*Num); ok {
			x = "(" + x + ")"
		}
		return x + "." + e.Attr
	case *Subscript:
		return pr.expr(e.X, precPrimary) + "[" + pr.index(e.Index) + "]"
	case *Slice:
		var b strings.Builder
		if e.Lo != nil {
			b.WriteString(pr.expr(e.Lo, precIfExp))
		}
		b.WriteByte(':')
		if e.Hi != nil {
			b.WriteString(pr.expr(e.Hi, precIfExp))
		}
		if e.Step != nil {
			b.WriteByte(':')
			b.WriteString(pr.expr(e.Step, precIfExp))
		}
		return b.String()
	case *Call:
		if len(e.Args) == 1 && e.Args[0].Keyword == "" && e.Args[0].Star == 0 {
			if c, ok := e.Args[0].Value.(*Comprehension); ok && c.Kind == GenExp {
				return pr.expr(e.Func, precPrimary) + "(" + pr.compBody(c) + ")"
			}
		}
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = pr.arg(a)
		}
		return pr.expr(e.Func, precPrimary) + "(" + strings.Join(parts, ", ") + ")"
	case *BinOp:
		p := binPrec[e.Op]
		if e.Op == "**" {
			return pr.expr(e.X, precPrimary) + " ** " + pr.expr(e.Y, precUnary)
		}
		return pr.expr(e.X, p) + " " + e.Op + " " + pr.expr(e.Y, p+1)
	case *UnaryOp:
		if e.Op == "not" {
			return "not " + pr.expr(e.X, precNot)
		}
		return e.Op + pr.expr(e.X, precUnary)
	case *BoolOp:
		if e.Op == "or" {
			return pr.expr(e.X, precOr) + " or " + pr.expr(e.Y, precAnd)
		}
		return pr.expr(e.X, precAnd) + " and " + pr.expr(e.Y, precNot)
	case *Compare:
		var b strings.Builder
		b.WriteString(pr.expr(e.X, precBitOr))
		for i, op := range e.Ops {
			b.WriteString(" " + op + " ")
			b.WriteString(pr.expr(e.Comparators[i], precBitOr))
		}
		return b.String()
	case *IfExp:
		return pr.expr(e.Body, precOr) + " if " + pr.expr(e.Cond, precOr) + " else " + pr.expr(e.Else, precIfExp)
	case *Lambda:
		if len(e.Params) == 0 {
			return "lambda: " + pr.expr(e.Body, precIfExp)
		}
		return "lambda " + pr.params(e.Params, false) + ": " + pr.expr(e.Body, precIfExp)
	case *List:
		return "[" + pr.elts(e.Elts) + "]"
	case *Tuple:
		switch len(e.Elts) {
		case 0:
			return "()"
		case 1:
			return "(" + pr.expr(e.Elts[0], precIfExp) + ",)"
		}
		return "(" + pr.elts(e.Elts) + ")"
	case *Set:
		return "{" + pr.elts(e.Elts) + "}"
	case *Dict:
		parts := make([]string, len(e.Keys))
		for i := range e.Keys {
			if e.Keys[i] == nil {
				parts[i] = "**" + pr.expr(e.Values[i], precBitOr)
			} else {
				parts[i] = pr.expr(e.Keys[i], precIfExp) + ": " + pr.expr(e.Values[i], precIfExp)
			}
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Starred:
		return "*" + pr.expr(e.X, precBitOr)
	case *Comprehension:
		switch e.Kind {
		case ListComp:
			return "[" + pr.compBody(e) + "]"
		case SetComp, DictComp:
			return "{" + pr.compBody(e) + "}"
		}
		return "(" + pr.compBody(e) + ")"
	}
	panic(fmt.Sprintf("script: cannot print %T", e))
}

func (pr *printer) index(e Expr) string {
	if t, ok := e.(*Tuple); ok && len(t.Elts) > 1 {
		parts := make([]string, len(t.Elts))
		for i, x := range t.Elts {
			parts[i] = pr.expr(x, precIfExp)
		}
		return strings.Join(parts, ", ")
	}
	return pr.expr(e, precIfExp)
}

func (pr *printer) compBody(c *Comprehension) string {
	var b strings.Builder
	if c.Kind == DictComp {
		b.WriteString(pr.expr(c.Elt, precIfExp) + ": " + pr.expr(c.Value, precIfExp))
	} else {
		b.WriteString(pr.expr(c.Elt, precIfExp))
	}
	for _, g := range c.Generators {
		b.WriteString(" for " + pr.top(g.Target) + " in " + pr.expr(g.Iter, precOr))
		for _, cond := range g.Ifs {
			b.WriteString(" if " + pr.expr(cond, precOr))
		}
	}
	return b.String()
}

// quote renders a string literal, preferring double quotes. Inside an
// f-string replacement field the enclosing quote character is avoided.
func (pr *printer) quote(s string, bytes bool) string {
	q := byte('"')
	switch {
	case pr.fquote == '"':
		q = '\''
	case pr.fquote == 0 && strings.Contains(s, `"`) && !strings.Contains(s, "'"):
		q = '\''
	}
	var b strings.Builder
	if bytes {
		b.WriteByte('b')
	}
	b.WriteByte(q)
	writeEscaped(&b, s, q, bytes, false)
	b.WriteByte(q)
	return b.String()
}

func writeEscaped(b *strings.Builder, s string, q byte, bytes, braces bool) {
	if bytes {
		for i := 0; i < len(s); i++ {
			c := s[i]
			switch {
			case c == '\\' || c == q:
				b.WriteByte('\\')
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			case c < 0x20 || c >= 0x7f:
				fmt.Fprintf(b, `\x%02x`, c)
			default:
				b.WriteByte(c)
			}
		}
		return
	}
	for _, r := range s {
		switch {
		case r == '\\' || r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case braces && (r == '{' || r == '}'):
			b.WriteRune(r)
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(b, `\x%02x`, r)
		case !unicode.IsPrint(r):
			if r > 0xffff {
				fmt.Fprintf(b, `\U%08x`, r)
			} else {
				fmt.Fprintf(b, `\u%04x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
}

func (pr *printer) fstring(f *FString) string {
	q := byte('"')
	if pr.fquote == '"' {
		q = '\''
	}
	outer := pr.fquote
	var b strings.Builder
	b.WriteByte('f')
	b.WriteByte(q)
	for _, part := range f.Parts {
		if part.Expr == nil {
			writeEscaped(&b, part.Lit, q, false, true)
			continue
		}
		pr.fquote = q
		x := pr.expr(part.Expr, precIfExp)
		pr.fquote = outer
		b.WriteByte('{')
		if strings.HasPrefix(x, "{") {
			b.WriteByte(' ')
		}
		b.WriteString(x)
		if part.Conv != 0 {
			b.WriteByte('!')
			b.WriteByte(part.Conv)
		}
		if part.Spec != "" {
			b.WriteByte(':')
			b.WriteString(part.Spec)
		}
		b.WriteByte('}')
	}
	b.WriteByte(q)
	return b.String()
}
