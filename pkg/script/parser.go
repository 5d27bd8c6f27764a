package script

import (
	"strings"

	"github.com/matzehuels/stepbook/pkg/errors"
)

type parser struct {
	toks     []Token
	pos      int
	lastLine int
}

// Parse parses a complete source file.
//
// Errors are *errors.Error values with code SYNTAX_ERROR and the line and
// column of the offending token.
func Parse(src string) (*Module, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var body []Stmt
	for p.cur().Kind != EOF {
		if p.cur().Kind == NEWLINE {
			p.next()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	return &Module{Body: body}, nil
}

// ParseExpr parses a single expression.
func ParseExpr(src string) (Expr, error) {
	toks, err := Tokenize("(" + src + "\n)")
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	p.next()
	e, err := p.testListStar()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if p.cur().Kind == NEWLINE {
		p.next()
	}
	if p.cur().Kind != EOF {
		return nil, p.unexpected()
	}
	return e, nil
}

// ============================================================================
// Token helpers
// ============================================================================

func (p *parser) cur() Token { return p.toks[p.pos] }

func (p *parser) peekTok(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	switch t.Kind {
	case NEWLINE, INDENT, DEDENT, EOF:
	case STRING, FSTRING:
		p.lastLine = t.Pos.Line + strings.Count(t.Value, "\n")
	default:
		p.lastLine = t.Pos.Line
	}
	return t
}

func (p *parser) isOp(v string) bool {
	t := p.cur()
	return t.Kind == OP && t.Value == v
}

func (p *parser) isKw(v string) bool {
	t := p.cur()
	return t.Kind == NAME && t.Value == v
}

func (p *parser) acceptOp(v string) bool {
	if p.isOp(v) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKw(v string) bool {
	if p.isKw(v) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errAt(t Token, format string, args ...any) error {
	return errors.New(errors.ErrCodeSyntax, format, args...).At(t.Pos.Line, t.Pos.Col)
}

func (p *parser) unexpected() error {
	t := p.cur()
	switch t.Kind {
	case EOF:
		return p.errAt(t, "unexpected end of input")
	case INDENT:
		return p.errAt(t, "unexpected indent")
	case DEDENT:
		return p.errAt(t, "unexpected unindent")
	case NEWLINE:
		return p.errAt(t, "unexpected end of line")
	}
	return p.errAt(t, "unexpected %s", t)
}

func (p *parser) expectOp(v string) error {
	if !p.acceptOp(v) {
		if p.cur().Kind == OP || p.cur().Kind == NAME {
			return p.errAt(p.cur(), "expected %q, found %s", v, p.cur())
		}
		return p.unexpected()
	}
	return nil
}

func (p *parser) expectKw(v string) error {
	if !p.acceptKw(v) {
		return p.errAt(p.cur(), "expected %q, found %s", v, p.cur())
	}
	return nil
}

func (p *parser) ident() (Token, error) {
	t := p.cur()
	if t.Kind != NAME || IsKeyword(t.Value) {
		return t, p.errAt(t, "expected identifier, found %s", t)
	}
	p.next()
	return t, nil
}

func (p *parser) endStmt() error {
	if p.cur().Kind == NEWLINE {
		p.next()
		return nil
	}
	if p.cur().Kind == EOF {
		return nil
	}
	return p.unexpected()
}

type spanned interface{ span() *StmtPos }

func (p *parser) finish(s Stmt, start Token) Stmt {
	sp := s.(spanned).span()
	sp.Pos = start.Pos
	sp.Blank = start.Blank
	sp.End = p.lastLine
	return s
}

// ============================================================================
// Statements
// ============================================================================

func (p *parser) statement() ([]Stmt, error) {
	t := p.cur()
	if t.Kind == COMMENT {
		p.next()
		c := p.finish(&Comment{Text: t.Value}, t)
		return []Stmt{c}, p.endStmt()
	}
	if t.Kind == INDENT {
		return nil, p.unexpected()
	}
	if t.Kind == OP && t.Value == "@" {
		s, err := p.decorated()
		return []Stmt{s}, err
	}
	if t.Kind == NAME {
		switch t.Value {
		case "def":
			s, err := p.funcDef(nil, t)
			return []Stmt{s}, err
		case "if":
			s, err := p.ifStmt()
			return []Stmt{s}, err
		case "for":
			s, err := p.forStmt()
			return []Stmt{s}, err
		case "while":
			s, err := p.whileStmt()
			return []Stmt{s}, err
		case "with":
			s, err := p.withStmt()
			return []Stmt{s}, err
		case "try":
			s, err := p.tryStmt()
			return []Stmt{s}, err
		case "class":
			return nil, p.errAt(t, "class definitions are not supported")
		case "async":
			return nil, p.errAt(t, "async statements are not supported")
		}
	}
	return p.simpleStatements()
}

func (p *parser) simpleStatements() ([]Stmt, error) {
	var out []Stmt
	for {
		s, err := p.smallStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if !p.acceptOp(";") {
			break
		}
		if p.cur().Kind == NEWLINE || p.cur().Kind == EOF {
			break
		}
	}
	return out, p.endStmt()
}

func (p *parser) smallStmt() (Stmt, error) {
	start := p.cur()
	if start.Kind == NAME {
		switch start.Value {
		case "pass":
			p.next()
			return p.finish(&Pass{}, start), nil
		case "break":
			p.next()
			return p.finish(&Break{}, start), nil
		case "continue":
			p.next()
			return p.finish(&Continue{}, start), nil
		case "return":
			p.next()
			s := &Return{}
			if !p.atStmtEnd() {
				v, err := p.testListStar()
				if err != nil {
					return nil, err
				}
				s.Value = v
			}
			return p.finish(s, start), nil
		case "raise":
			p.next()
			s := &Raise{}
			if !p.atStmtEnd() {
				exc, err := p.test()
				if err != nil {
					return nil, err
				}
				s.Exc = exc
				if p.acceptKw("from") {
					if s.Cause, err = p.test(); err != nil {
						return nil, err
					}
				}
			}
			return p.finish(s, start), nil
		case "global", "nonlocal":
			p.next()
			s := &Global{Nonlocal: start.Value == "nonlocal"}
			for {
				n, err := p.ident()
				if err != nil {
					return nil, err
				}
				s.Names = append(s.Names, n.Value)
				if !p.acceptOp(",") {
					break
				}
			}
			return p.finish(s, start), nil
		case "del":
			p.next()
			targets, err := p.exprList()
			if err != nil {
				return nil, err
			}
			return p.finish(&Del{Targets: targets}, start), nil
		case "assert":
			p.next()
			s := &Assert{}
			var err error
			if s.Test, err = p.test(); err != nil {
				return nil, err
			}
			if p.acceptOp(",") {
				if s.Msg, err = p.test(); err != nil {
					return nil, err
				}
			}
			return p.finish(s, start), nil
		case "import":
			return p.importStmt()
		case "from":
			return p.importFrom()
		}
	}
	return p.exprStmt()
}

func (p *parser) atStmtEnd() bool {
	t := p.cur()
	return t.Kind == NEWLINE || t.Kind == EOF || t.Kind == OP && t.Value == ";"
}

func (p *parser) dotted() (string, Token, error) {
	first, err := p.ident()
	if err != nil {
		return "", first, err
	}
	parts := []string{first.Value}
	for p.isOp(".") {
		p.next()
		n, err := p.ident()
		if err != nil {
			return "", first, err
		}
		parts = append(parts, n.Value)
	}
	return strings.Join(parts, "."), first, nil
}

func (p *parser) importStmt() (Stmt, error) {
	start := p.next()
	s := &Import{}
	for {
		path, first, err := p.dotted()
		if err != nil {
			return nil, err
		}
		a := &Alias{Pos: first.Pos, Path: path}
		if p.acceptKw("as") {
			n, err := p.ident()
			if err != nil {
				return nil, err
			}
			a.Name = &Name{Pos: n.Pos, ID: n.Value}
			a.As = true
		} else {
			a.Name = &Name{Pos: first.Pos, ID: first.Value}
		}
		s.Names = append(s.Names, a)
		if !p.acceptOp(",") {
			break
		}
	}
	return p.finish(s, start), nil
}

func (p *parser) importFrom() (Stmt, error) {
	start := p.next()
	s := &ImportFrom{}
	for p.isOp(".") || p.isOp("...") {
		s.Level += len(p.next().Value)
	}
	if !p.isKw("import") {
		mod, _, err := p.dotted()
		if err != nil {
			return nil, err
		}
		s.Module = mod
	}
	if err := p.expectKw("import"); err != nil {
		return nil, err
	}
	if p.isOp("*") {
		t := p.next()
		s.Names = []*Alias{{Pos: t.Pos, Path: "*"}}
		return p.finish(s, start), nil
	}
	paren := p.acceptOp("(")
	for {
		if paren && p.isOp(")") {
			break
		}
		n, err := p.ident()
		if err != nil {
			return nil, err
		}
		a := &Alias{Pos: n.Pos, Path: n.Value, Name: &Name{Pos: n.Pos, ID: n.Value}}
		if p.acceptKw("as") {
			as, err := p.ident()
			if err != nil {
				return nil, err
			}
			a.Name = &Name{Pos: as.Pos, ID: as.Value}
			a.As = true
		}
		s.Names = append(s.Names, a)
		if !p.acceptOp(",") {
			break
		}
	}
	if paren {
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	if len(s.Names) == 0 {
		return nil, p.errAt(start, "empty import list")
	}
	return p.finish(s, start), nil
}

var augOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true,
	"**=": true, "@=": true, "&=": true, "|=": true, "^=": true, ">>=": true, "<<=": true,
}

func (p *parser) exprStmt() (Stmt, error) {
	start := p.cur()
	first, err := p.testListStar()
	if err != nil {
		return nil, err
	}
	switch t := p.cur(); {
	case t.Kind == OP && t.Value == "=":
		targets := []Expr{first}
		var value Expr
		for p.acceptOp("=") {
			v, err := p.testListStar()
			if err != nil {
				return nil, err
			}
			targets = append(targets, v)
		}
		value, targets = targets[len(targets)-1], targets[:len(targets)-1]
		for _, tg := range targets {
			if err := checkTarget(tg); err != nil {
				return nil, p.errAt(start, "%v", err)
			}
		}
		return p.finish(&Assign{Targets: targets, Value: value}, start), nil
	case t.Kind == OP && augOps[t.Value]:
		p.next()
		if err := checkSingleTarget(first); err != nil {
			return nil, p.errAt(start, "%v", err)
		}
		v, err := p.testListStar()
		if err != nil {
			return nil, err
		}
		return p.finish(&AugAssign{Target: first, Op: strings.TrimSuffix(t.Value, "="), Value: v}, start), nil
	case t.Kind == OP && t.Value == ":":
		p.next()
		if err := checkSingleTarget(first); err != nil {
			return nil, p.errAt(start, "%v", err)
		}
		ann, err := p.test()
		if err != nil {
			return nil, err
		}
		s := &AnnAssign{Target: first, Annotation: ann}
		if p.acceptOp("=") {
			if s.Value, err = p.testListStar(); err != nil {
				return nil, err
			}
		}
		return p.finish(s, start), nil
	}
	return p.finish(&ExprStmt{X: first}, start), nil
}

type targetError string

func (e targetError) Error() string { return string(e) }

func checkTarget(e Expr) error {
	switch e := e.(type) {
	case *Name, *Attribute, *Subscript:
		return nil
	case *Starred:
		return checkTarget(e.X)
	case *Tuple:
		for _, x := range e.Elts {
			if err := checkTarget(x); err != nil {
				return err
			}
		}
		return nil
	case *List:
		for _, x := range e.Elts {
			if err := checkTarget(x); err != nil {
				return err
			}
		}
		return nil
	}
	return targetError("cannot assign to expression")
}

func checkSingleTarget(e Expr) error {
	switch e.(type) {
	case *Name, *Attribute, *Subscript:
		return nil
	}
	return targetError("illegal target for annotation or augmented assignment")
}

// block parses the suite following a ':'.
func (p *parser) block() ([]Stmt, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if p.cur().Kind != NEWLINE {
		return p.simpleStatements()
	}
	p.next()
	var comments []Stmt
	for p.cur().Kind == COMMENT {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		comments = append(comments, s...)
	}
	if p.cur().Kind != INDENT {
		return nil, p.errAt(p.cur(), "expected an indented block")
	}
	p.next()
	body := comments
	for p.cur().Kind != DEDENT && p.cur().Kind != EOF {
		if p.cur().Kind == NEWLINE {
			p.next()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if p.cur().Kind == DEDENT {
		p.next()
	}
	return body, nil
}

func (p *parser) decorated() (Stmt, error) {
	start := p.cur()
	var decorators []Expr
	for p.acceptOp("@") {
		d, err := p.test()
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, d)
		if p.cur().Kind != NEWLINE {
			return nil, p.unexpected()
		}
		p.next()
	}
	if !p.isKw("def") {
		return nil, p.errAt(p.cur(), "decorators are only supported on functions")
	}
	return p.funcDef(decorators, start)
}

func (p *parser) funcDef(decorators []Expr, start Token) (Stmt, error) {
	p.next()
	n, err := p.ident()
	if err != nil {
		return nil, err
	}
	s := &FuncDef{Decorators: decorators, Name: &Name{Pos: n.Pos, ID: n.Value}}
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	if s.Params, err = p.params(")", true); err != nil {
		return nil, err
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if p.acceptOp("->") {
		if s.Returns, err = p.test(); err != nil {
			return nil, err
		}
	}
	if s.Body, err = p.block(); err != nil {
		return nil, err
	}
	return p.finish(s, start), nil
}

// params parses a parameter list up to (not including) the closing token.
func (p *parser) params(closing string, annotations bool) ([]*Param, error) {
	var out []*Param
	for !p.isOp(closing) {
		t := p.cur()
		prm := &Param{Pos: t.Pos}
		switch {
		case p.acceptOp("**"):
			prm.Star = 2
		case p.acceptOp("*"):
			prm.Star = 1
			if p.isOp(",") || p.isOp(closing) {
				out = append(out, prm)
				if !p.acceptOp(",") {
					return out, nil
				}
				continue
			}
		case p.isOp("/"):
			return nil, p.errAt(t, "positional-only parameters are not supported")
		}
		n, err := p.ident()
		if err != nil {
			return nil, err
		}
		prm.Name = n.Value
		if annotations && p.acceptOp(":") {
			if prm.Annotation, err = p.test(); err != nil {
				return nil, err
			}
		}
		if prm.Star == 0 && p.acceptOp("=") {
			if prm.Default, err = p.test(); err != nil {
				return nil, err
			}
		}
		out = append(out, prm)
		if !p.acceptOp(",") {
			break
		}
	}
	return out, nil
}

func (p *parser) ifStmt() (Stmt, error) {
	start := p.next()
	cond, err := p.namedTest()
	if err != nil {
		return nil, err
	}
	s := &If{Cond: cond, Elif: start.Value == "elif"}
	if s.Body, err = p.block(); err != nil {
		return nil, err
	}
	switch {
	case p.isKw("elif"):
		elif, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		s.Else = []Stmt{elif}
	case p.acceptKw("else"):
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return p.finish(s, start), nil
}

func (p *parser) forStmt() (Stmt, error) {
	start := p.next()
	target, err := p.targetList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("in"); err != nil {
		return nil, err
	}
	iter, err := p.testList()
	if err != nil {
		return nil, err
	}
	s := &For{Target: target, Iter: iter}
	if s.Body, err = p.block(); err != nil {
		return nil, err
	}
	if p.acceptKw("else") {
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return p.finish(s, start), nil
}

func (p *parser) whileStmt() (Stmt, error) {
	start := p.next()
	cond, err := p.namedTest()
	if err != nil {
		return nil, err
	}
	s := &While{Cond: cond}
	if s.Body, err = p.block(); err != nil {
		return nil, err
	}
	if p.acceptKw("else") {
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return p.finish(s, start), nil
}

func (p *parser) withStmt() (Stmt, error) {
	start := p.next()
	s := &With{}
	for {
		ctx, err := p.test()
		if err != nil {
			return nil, err
		}
		item := &WithItem{Context: ctx}
		if p.acceptKw("as") {
			if item.Target, err = p.bitOr(); err != nil {
				return nil, err
			}
			if err := checkTarget(item.Target); err != nil {
				return nil, p.errAt(start, "%v", err)
			}
		}
		s.Items = append(s.Items, item)
		if !p.acceptOp(",") {
			break
		}
	}
	var err error
	if s.Body, err = p.block(); err != nil {
		return nil, err
	}
	return p.finish(s, start), nil
}

func (p *parser) tryStmt() (Stmt, error) {
	start := p.next()
	s := &Try{}
	var err error
	if s.Body, err = p.block(); err != nil {
		return nil, err
	}
	for p.isKw("except") {
		t := p.next()
		h := &ExceptHandler{Pos: t.Pos}
		if !p.isOp(":") {
			if h.Type, err = p.test(); err != nil {
				return nil, err
			}
			if p.acceptKw("as") {
				n, err := p.ident()
				if err != nil {
					return nil, err
				}
				h.Name = &Name{Pos: n.Pos, ID: n.Value}
			}
		}
		if h.Body, err = p.block(); err != nil {
			return nil, err
		}
		s.Handlers = append(s.Handlers, h)
	}
	if len(s.Handlers) > 0 && p.acceptKw("else") {
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	if p.acceptKw("finally") {
		if s.Finally, err = p.block(); err != nil {
			return nil, err
		}
	}
	if len(s.Handlers) == 0 && s.Finally == nil {
		return nil, p.errAt(start, "try statement needs an except or finally clause")
	}
	return p.finish(s, start), nil
}

// ============================================================================
// Expressions
// ============================================================================

// testListStar parses a comma-separated list of tests or starred
// expressions, returning a Tuple when a comma is present.
func (p *parser) testListStar() (Expr, error) {
	return p.commaList(p.starOrTest)
}

func (p *parser) testList() (Expr, error) {
	return p.commaList(p.test)
}

// targetList parses loop and comprehension targets.
func (p *parser) targetList() (Expr, error) {
	e, err := p.commaList(p.starOrBitOr)
	if err != nil {
		return nil, err
	}
	if err := checkTarget(e); err != nil {
		return nil, p.errAt(p.cur(), "%v", err)
	}
	return e, nil
}

func (p *parser) exprList() ([]Expr, error) {
	var out []Expr
	for {
		e, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !p.acceptOp(",") || p.atStmtEnd() {
			break
		}
	}
	return out, nil
}

func (p *parser) commaList(item func() (Expr, error)) (Expr, error) {
	start := p.cur()
	first, err := item()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if !p.startsExpr() {
			break
		}
		e, err := item()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Tuple{Pos: start.Pos, Elts: elts}, nil
}

// startsExpr reports whether the current token can begin an expression.
func (p *parser) startsExpr() bool {
	t := p.cur()
	switch t.Kind {
	case NAME:
		switch t.Value {
		case "None", "True", "False", "not", "lambda", "await", "yield":
			return true
		}
		return !IsKeyword(t.Value)
	case NUMBER, STRING, FSTRING:
		return true
	case OP:
		switch t.Value {
		case "(", "[", "{", "-", "+", "~", "*", "**", "...":
			return true
		}
	}
	return false
}

func (p *parser) starOrTest() (Expr, error) {
	if p.isOp("*") {
		t := p.next()
		x, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		return &Starred{Pos: t.Pos, X: x}, nil
	}
	return p.test()
}

func (p *parser) starOrBitOr() (Expr, error) {
	if p.isOp("*") {
		t := p.next()
		x, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		return &Starred{Pos: t.Pos, X: x}, nil
	}
	return p.bitOr()
}

func (p *parser) namedTest() (Expr, error) {
	e, err := p.test()
	if err != nil {
		return nil, err
	}
	if p.isOp(":=") {
		return nil, p.errAt(p.cur(), "assignment expressions are not supported")
	}
	return e, nil
}

func (p *parser) test() (Expr, error) {
	if p.isKw("lambda") {
		return p.lambda(true)
	}
	start := p.cur()
	body, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if !p.acceptKw("if") {
		return body, nil
	}
	cond, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("else"); err != nil {
		return nil, err
	}
	orelse, err := p.test()
	if err != nil {
		return nil, err
	}
	return &IfExp{Pos: start.Pos, Body: body, Cond: cond, Else: orelse}, nil
}

// testNoCond is a test without conditional expressions, used in
// comprehension conditions.
func (p *parser) testNoCond() (Expr, error) {
	if p.isKw("lambda") {
		return p.lambda(false)
	}
	return p.orTest()
}

func (p *parser) lambda(allowCond bool) (Expr, error) {
	start := p.next()
	params, err := p.params(":", false)
	if err != nil {
		return nil, err
	}
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	var body Expr
	if allowCond {
		body, err = p.test()
	} else {
		body, err = p.testNoCond()
	}
	if err != nil {
		return nil, err
	}
	return &Lambda{Pos: start.Pos, Params: params, Body: body}, nil
}

func (p *parser) orTest() (Expr, error) {
	x, err := p.andTest()
	if err != nil {
		return nil, err
	}
	for p.isKw("or") {
		t := p.next()
		y, err := p.andTest()
		if err != nil {
			return nil, err
		}
		x = &BoolOp{Pos: t.Pos, Op: "or", X: x, Y: y}
	}
	return x, nil
}

func (p *parser) andTest() (Expr, error) {
	x, err := p.notTest()
	if err != nil {
		return nil, err
	}
	for p.isKw("and") {
		t := p.next()
		y, err := p.notTest()
		if err != nil {
			return nil, err
		}
		x = &BoolOp{Pos: t.Pos, Op: "and", X: x, Y: y}
	}
	return x, nil
}

func (p *parser) notTest() (Expr, error) {
	if p.isKw("not") {
		t := p.next()
		x, err := p.notTest()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Pos: t.Pos, Op: "not", X: x}, nil
	}
	return p.comparison()
}

func (p *parser) compOp() (string, bool) {
	t := p.cur()
	switch {
	case t.Kind == OP:
		switch t.Value {
		case "<", ">", "==", ">=", "<=", "!=":
			p.next()
			return t.Value, true
		}
	case t.Kind == NAME && t.Value == "in":
		p.next()
		return "in", true
	case t.Kind == NAME && t.Value == "not" && p.peekTok(1).Kind == NAME && p.peekTok(1).Value == "in":
		p.next()
		p.next()
		return "not in", true
	case t.Kind == NAME && t.Value == "is":
		p.next()
		if p.acceptKw("not") {
			return "is not", true
		}
		return "is", true
	}
	return "", false
}

func (p *parser) comparison() (Expr, error) {
	start := p.cur()
	x, err := p.bitOr()
	if err != nil {
		return nil, err
	}
	var cmp *Compare
	for {
		op, ok := p.compOp()
		if !ok {
			break
		}
		y, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		if cmp == nil {
			cmp = &Compare{Pos: start.Pos, X: x}
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.Comparators = append(cmp.Comparators, y)
	}
	if cmp != nil {
		return cmp, nil
	}
	return x, nil
}

func (p *parser) binary(ops []string, operand func() (Expr, error)) (Expr, error) {
	x, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		if t.Kind != OP || !contains(ops, t.Value) {
			return x, nil
		}
		p.next()
		y, err := operand()
		if err != nil {
			return nil, err
		}
		x = &BinOp{Pos: t.Pos, Op: t.Value, X: x, Y: y}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (p *parser) bitOr() (Expr, error)  { return p.binary([]string{"|"}, p.bitXor) }
func (p *parser) bitXor() (Expr, error) { return p.binary([]string{"^"}, p.bitAnd) }
func (p *parser) bitAnd() (Expr, error) { return p.binary([]string{"&"}, p.shift) }
func (p *parser) shift() (Expr, error)  { return p.binary([]string{"<<", ">>"}, p.arith) }
func (p *parser) arith() (Expr, error)  { return p.binary([]string{"+", "-"}, p.term) }
func (p *parser) term() (Expr, error) {
	return p.binary([]string{"*", "/", "//", "%", "@"}, p.factor)
}

func (p *parser) factor() (Expr, error) {
	t := p.cur()
	if t.Kind == OP && (t.Value == "-" || t.Value == "+" || t.Value == "~") {
		p.next()
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Pos: t.Pos, Op: t.Value, X: x}, nil
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	x, err := p.atomExpr()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		t := p.next()
		y, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &BinOp{Pos: t.Pos, Op: "**", X: x, Y: y}, nil
	}
	return x, nil
}

func (p *parser) atomExpr() (Expr, error) {
	if p.isKw("await") || p.isKw("yield") {
		return nil, p.errAt(p.cur(), "%s expressions are not supported", p.cur().Value)
	}
	x, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		switch {
		case t.Kind == OP && t.Value == "(":
			p.next()
			args, err := p.args()
			if err != nil {
				return nil, err
			}
			x = &Call{Pos: x.Position(), Func: x, Args: args}
		case t.Kind == OP && t.Value == "[":
			p.next()
			idx, err := p.subscripts()
			if err != nil {
				return nil, err
			}
			x = &Subscript{Pos: x.Position(), X: x, Index: idx}
		case t.Kind == OP && t.Value == ".":
			p.next()
			n := p.cur()
			if n.Kind != NAME {
				return nil, p.errAt(n, "expected attribute name, found %s", n)
			}
			p.next()
			x = &Attribute{Pos: x.Position(), X: x, Attr: n.Value}
		default:
			return x, nil
		}
	}
}

func (p *parser) args() ([]*Arg, error) {
	var out []*Arg
	for !p.isOp(")") {
		t := p.cur()
		a := &Arg{Pos: t.Pos}
		var err error
		switch {
		case p.acceptOp("**"):
			a.Star = 2
			a.Value, err = p.test()
		case p.acceptOp("*"):
			a.Star = 1
			a.Value, err = p.test()
		case t.Kind == NAME && !IsKeyword(t.Value) && p.peekTok(1).Kind == OP && p.peekTok(1).Value == "=":
			p.next()
			p.next()
			a.Keyword = t.Value
			a.Value, err = p.test()
		default:
			a.Value, err = p.test()
			if err == nil && p.isKw("for") {
				a.Value, err = p.comprehension(GenExp, t.Pos, a.Value, nil)
			}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if !p.acceptOp(",") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) subscripts() (Expr, error) {
	start := p.cur()
	var elts []Expr
	trailing := false
	for !p.isOp("]") {
		e, err := p.subscript()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		trailing = false
		if !p.acceptOp(",") {
			break
		}
		trailing = true
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	switch {
	case len(elts) == 0:
		return nil, p.errAt(start, "empty subscript")
	case len(elts) == 1 && !trailing:
		return elts[0], nil
	}
	return &Tuple{Pos: start.Pos, Elts: elts}, nil
}

func (p *parser) subscript() (Expr, error) {
	start := p.cur()
	var lo Expr
	var err error
	if !p.isOp(":") {
		if lo, err = p.starOrTest(); err != nil {
			return nil, err
		}
		if !p.isOp(":") {
			return lo, nil
		}
	}
	s := &Slice{Pos: start.Pos, Lo: lo}
	p.next()
	if !p.isOp(":") && !p.isOp("]") && !p.isOp(",") {
		if s.Hi, err = p.test(); err != nil {
			return nil, err
		}
	}
	if p.acceptOp(":") {
		if !p.isOp("]") && !p.isOp(",") {
			if s.Step, err = p.test(); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (p *parser) atom() (Expr, error) {
	t := p.cur()
	switch t.Kind {
	case NAME:
		switch t.Value {
		case "None":
			p.next()
			return &Const{Pos: t.Pos, Kind: ConstNone}, nil
		case "True":
			p.next()
			return &Const{Pos: t.Pos, Kind: ConstTrue}, nil
		case "False":
			p.next()
			return &Const{Pos: t.Pos, Kind: ConstFalse}, nil
		}
		if IsKeyword(t.Value) {
			return nil, p.errAt(t, "unexpected keyword %q", t.Value)
		}
		p.next()
		return &Name{Pos: t.Pos, ID: t.Value}, nil
	case NUMBER:
		p.next()
		return &Num{Pos: t.Pos, Raw: t.Value}, nil
	case STRING, FSTRING:
		return p.stringLit()
	case OP:
		switch t.Value {
		case "...":
			p.next()
			return &Const{Pos: t.Pos, Kind: ConstEllipsis}, nil
		case "(":
			return p.parenAtom()
		case "[":
			return p.listAtom()
		case "{":
			return p.braceAtom()
		}
	}
	return nil, p.unexpected()
}

func (p *parser) parenAtom() (Expr, error) {
	start := p.next()
	if p.acceptOp(")") {
		return &Tuple{Pos: start.Pos}, nil
	}
	first, err := p.starOrTest()
	if err != nil {
		return nil, err
	}
	if p.isKw("for") {
		e, err := p.comprehension(GenExp, start.Pos, first, nil)
		if err != nil {
			return nil, err
		}
		return e, p.expectOp(")")
	}
	if !p.isOp(",") {
		if _, ok := first.(*Starred); ok {
			return nil, p.errAt(start, "cannot use starred expression here")
		}
		return first, p.expectOp(")")
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp(")") {
			break
		}
		e, err := p.starOrTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Tuple{Pos: start.Pos, Elts: elts}, p.expectOp(")")
}

func (p *parser) listAtom() (Expr, error) {
	start := p.next()
	if p.acceptOp("]") {
		return &List{Pos: start.Pos}, nil
	}
	first, err := p.starOrTest()
	if err != nil {
		return nil, err
	}
	if p.isKw("for") {
		e, err := p.comprehension(ListComp, start.Pos, first, nil)
		if err != nil {
			return nil, err
		}
		return e, p.expectOp("]")
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("]") {
			break
		}
		e, err := p.starOrTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &List{Pos: start.Pos, Elts: elts}, p.expectOp("]")
}

func (p *parser) braceAtom() (Expr, error) {
	start := p.next()
	if p.acceptOp("}") {
		return &Dict{Pos: start.Pos}, nil
	}
	if p.isOp("**") || !p.isOp("*") {
		var key Expr
		if !p.acceptOp("**") {
			k, err := p.test()
			if err != nil {
				return nil, err
			}
			if !p.isOp(":") {
				return p.setRest(start, k)
			}
			p.next()
			key = k
		}
		value, err := p.valueAfterKey(key)
		if err != nil {
			return nil, err
		}
		if key != nil && p.isKw("for") {
			e, err := p.comprehension(DictComp, start.Pos, key, value)
			if err != nil {
				return nil, err
			}
			return e, p.expectOp("}")
		}
		d := &Dict{Pos: start.Pos, Keys: []Expr{key}, Values: []Expr{value}}
		for p.acceptOp(",") {
			if p.isOp("}") {
				break
			}
			var k Expr
			if !p.acceptOp("**") {
				if k, err = p.test(); err != nil {
					return nil, err
				}
				if err := p.expectOp(":"); err != nil {
					return nil, err
				}
			}
			v, err := p.valueAfterKey(k)
			if err != nil {
				return nil, err
			}
			d.Keys = append(d.Keys, k)
			d.Values = append(d.Values, v)
		}
		return d, p.expectOp("}")
	}
	first, err := p.starOrTest()
	if err != nil {
		return nil, err
	}
	return p.setRest(start, first)
}

// valueAfterKey parses a dict value; a nil key means a `**mapping` entry.
func (p *parser) valueAfterKey(key Expr) (Expr, error) {
	if key == nil {
		return p.bitOr()
	}
	return p.test()
}

func (p *parser) setRest(start Token, first Expr) (Expr, error) {
	if p.isKw("for") {
		e, err := p.comprehension(SetComp, start.Pos, first, nil)
		if err != nil {
			return nil, err
		}
		return e, p.expectOp("}")
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("}") {
			break
		}
		e, err := p.starOrTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Set{Pos: start.Pos, Elts: elts}, p.expectOp("}")
}

func (p *parser) comprehension(kind CompKind, pos Pos, elt, value Expr) (Expr, error) {
	c := &Comprehension{Pos: pos, Kind: kind, Elt: elt, Value: value}
	for p.acceptKw("for") {
		target, err := p.targetList()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("in"); err != nil {
			return nil, err
		}
		iter, err := p.orTest()
		if err != nil {
			return nil, err
		}
		gen := &CompFor{Target: target, Iter: iter}
		for p.acceptKw("if") {
			cond, err := p.testNoCond()
			if err != nil {
				return nil, err
			}
			gen.Ifs = append(gen.Ifs, cond)
		}
		c.Generators = append(c.Generators, gen)
	}
	return c, nil
}

// stringLit parses one or more adjacent string literals.
func (p *parser) stringLit() (Expr, error) {
	start := p.cur()
	var parts []*FStringPart
	isF := false
	bytes := start.Prefix != "" && strings.Contains(start.Prefix, "b")
	for p.cur().Kind == STRING || p.cur().Kind == FSTRING {
		t := p.next()
		if strings.Contains(t.Prefix, "b") != bytes {
			return nil, p.errAt(t, "cannot mix bytes and nonbytes literals")
		}
		if t.Kind == STRING {
			parts = appendLit(parts, t.Value)
			continue
		}
		isF = true
		fp, err := parseFString(t)
		if err != nil {
			return nil, err
		}
		for _, part := range fp {
			if part.Expr == nil {
				parts = appendLit(parts, part.Lit)
			} else {
				parts = append(parts, part)
			}
		}
	}
	if !isF {
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(part.Lit)
		}
		return &Str{Pos: start.Pos, Value: b.String(), Bytes: bytes}, nil
	}
	return &FString{Pos: start.Pos, Parts: parts}, nil
}

func appendLit(parts []*FStringPart, lit string) []*FStringPart {
	if n := len(parts); n > 0 && parts[n-1].Expr == nil {
		parts[n-1].Lit += lit
		return parts
	}
	return append(parts, &FStringPart{Lit: lit})
}

// parseFString splits an f-string body into literal text and replacement
// fields. Format specs are kept verbatim.
func parseFString(t Token) ([]*FStringPart, error) {
	raw := strings.Contains(t.Prefix, "r")
	body := t.Value
	var parts []*FStringPart
	var lit strings.Builder
	flush := func() error {
		if lit.Len() == 0 {
			return nil
		}
		s := lit.String()
		lit.Reset()
		if !raw {
			var err error
			if s, err = Unescape(s, false); err != nil {
				return errors.New(errors.ErrCodeSyntax, "%v", err).At(t.Pos.Line, t.Pos.Col)
			}
		}
		parts = append(parts, &FStringPart{Lit: s})
		return nil
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(body) && body[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '}':
			return nil, errors.New(errors.ErrCodeSyntax, "f-string: single '}' is not allowed").At(t.Pos.Line, t.Pos.Col)
		case c == '{':
			if err := flush(); err != nil {
				return nil, err
			}
			part, n, err := parseField(body[i+1:], t.Pos)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			i += n
		case c == '\\' && !raw && i+1 < len(body):
			lit.WriteByte(c)
			lit.WriteByte(body[i+1])
			i++
		default:
			lit.WriteByte(c)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return parts, nil
}

// parseField parses a replacement field starting just after '{'. It returns
// the number of bytes consumed, including the closing '}'.
func parseField(s string, pos Pos) (*FStringPart, int, error) {
	fail := func(msg string) (*FStringPart, int, error) {
		return nil, 0, errors.New(errors.ErrCodeSyntax, "f-string: %s", msg).At(pos.Line, pos.Col)
	}
	depth := 0
	var quote byte
	exprEnd := -1
	i := 0
	for ; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth > 0 {
				depth--
				continue
			}
		case '!':
			if depth == 0 && i+1 < len(s) && s[i+1] != '=' {
				exprEnd = i
			}
		case ':':
			if depth == 0 {
				exprEnd = i
			}
		}
		if exprEnd >= 0 || c == '}' && depth == 0 {
			break
		}
	}
	if i >= len(s) {
		return fail("expecting '}'")
	}
	if exprEnd < 0 {
		exprEnd = i
	}
	src := s[:exprEnd]
	if strings.TrimSpace(src) == "" {
		return fail("empty expression not allowed")
	}
	x, err := ParseExpr(src)
	if err != nil {
		return fail("invalid expression " + strings.TrimSpace(src))
	}
	part := &FStringPart{Expr: x}
	j := exprEnd
	if j < len(s) && s[j] == '!' {
		if j+1 >= len(s) || !strings.ContainsRune("rsa", rune(s[j+1])) {
			return fail("invalid conversion character")
		}
		part.Conv = s[j+1]
		j += 2
	}
	if j < len(s) && s[j] == ':' {
		nested := 0
		k := j + 1
		for ; k < len(s); k++ {
			if s[k] == '{' {
				nested++
			} else if s[k] == '}' {
				if nested == 0 {
					break
				}
				nested--
			}
		}
		if k >= len(s) {
			return fail("expecting '}'")
		}
		part.Spec = s[j+1 : k]
		j = k
	}
	if j >= len(s) || s[j] != '}' {
		return fail("expecting '}'")
	}
	return part, j + 1, nil
}
