package script

// Node is any syntax tree node.
type Node interface {
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	EndLine() int
	BlankBefore() bool
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// StmtPos carries the source span shared by all statements.
type StmtPos struct {
	Pos
	End   int  // last source line of the statement
	Blank bool // preceded by a blank line in the source
}

func (s *StmtPos) EndLine() int      { return s.End }
func (s *StmtPos) BlankBefore() bool { return s.Blank }
func (s *StmtPos) span() *StmtPos    { return s }

// SetBlank sets whether s is printed after a blank line.
func SetBlank(s Stmt, blank bool) {
	if sp, ok := s.(spanned); ok {
		sp.span().Blank = blank
	}
}

// ============================================================================
// Statements
// ============================================================================

// Module is a parsed source file.
type Module struct {
	Body []Stmt
}

// Alias is one imported name. Name is the identifier the import binds: the
// alias when present, otherwise the (first segment of the) imported path.
type Alias struct {
	Pos
	Path string
	Name *Name
	As   bool
}

// Import is `import a.b as c, d`.
type Import struct {
	StmtPos
	Names []*Alias
}

// ImportFrom is `from .m import x as y`. Star imports have a single alias
// with Path "*" and a nil Name.
type ImportFrom struct {
	StmtPos
	Module string
	Level  int
	Names  []*Alias
}

// Param is a function or lambda parameter. Star is 1 for *args, 2 for
// **kwargs. A bare `*` separator has Star 1 and an empty Name.
type Param struct {
	Pos
	Name       string
	Annotation Expr
	Default    Expr
	Star       int
}

// FuncDef is a function definition.
type FuncDef struct {
	StmtPos
	Decorators []Expr
	Name       *Name
	Params     []*Param
	Returns    Expr
	Body       []Stmt
}

// Assign is `t1 = t2 = value`.
type Assign struct {
	StmtPos
	Targets []Expr
	Value   Expr
}

// AnnAssign is `target: annotation [= value]`.
type AnnAssign struct {
	StmtPos
	Target     Expr
	Annotation Expr
	Value      Expr
}

// AugAssign is `target op= value`. Op is the binary operator without '='.
type AugAssign struct {
	StmtPos
	Target Expr
	Op     string
	Value  Expr
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	StmtPos
	X Expr
}

// Return is `return [value]`.
type Return struct {
	StmtPos
	Value Expr
}

// If is an if statement. An elif chain is an If whose Else holds a single
// If with Elif set.
type If struct {
	StmtPos
	Cond Expr
	Body []Stmt
	Else []Stmt
	Elif bool
}

// For is `for target in iter:`.
type For struct {
	StmtPos
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
}

// While is a while loop.
type While struct {
	StmtPos
	Cond Expr
	Body []Stmt
	Else []Stmt
}

// WithItem is one `context [as target]` clause.
type WithItem struct {
	Context Expr
	Target  Expr
}

// With is a with statement.
type With struct {
	StmtPos
	Items []*WithItem
	Body  []Stmt
}

// ExceptHandler is one except clause. Type and Name may be nil.
type ExceptHandler struct {
	Pos
	Type Expr
	Name *Name
	Body []Stmt
}

// Try is try/except/else/finally.
type Try struct {
	StmtPos
	Body     []Stmt
	Handlers []*ExceptHandler
	Else     []Stmt
	Finally  []Stmt
}

// Raise is `raise [exc [from cause]]`.
type Raise struct {
	StmtPos
	Exc   Expr
	Cause Expr
}

// Assert is `assert test[, msg]`.
type Assert struct {
	StmtPos
	Test Expr
	Msg  Expr
}

// Del is `del a, b[k]`.
type Del struct {
	StmtPos
	Targets []Expr
}

// Global is `global a, b` (Nonlocal set for nonlocal).
type Global struct {
	StmtPos
	Names    []string
	Nonlocal bool
}

// Pass, Break and Continue are the simple flow statements.
type (
	Pass     struct{ StmtPos }
	Break    struct{ StmtPos }
	Continue struct{ StmtPos }
)

// Comment is a standalone comment line. Text includes the leading '#'.
type Comment struct {
	StmtPos
	Text string
}

func (*Import) stmtNode()     {}
func (*ImportFrom) stmtNode() {}
func (*FuncDef) stmtNode()    {}
func (*Assign) stmtNode()     {}
func (*AnnAssign) stmtNode()  {}
func (*AugAssign) stmtNode()  {}
func (*ExprStmt) stmtNode()   {}
func (*Return) stmtNode()     {}
func (*If) stmtNode()         {}
func (*For) stmtNode()        {}
func (*While) stmtNode()      {}
func (*With) stmtNode()       {}
func (*Try) stmtNode()        {}
func (*Raise) stmtNode()      {}
func (*Assert) stmtNode()     {}
func (*Del) stmtNode()        {}
func (*Global) stmtNode()     {}
func (*Pass) stmtNode()       {}
func (*Break) stmtNode()      {}
func (*Continue) stmtNode()   {}
func (*Comment) stmtNode()    {}

// ============================================================================
// Expressions
// ============================================================================

// Name is an identifier occurrence. Renaming rewrites ID in place.
type Name struct {
	Pos
	ID string
}

// ConstKind distinguishes the literal constants.
type ConstKind int

const (
	ConstNone ConstKind = iota
	ConstTrue
	ConstFalse
	ConstEllipsis
)

// Const is None, True, False or `...`.
type Const struct {
	Pos
	Kind ConstKind
}

// Num is a numeric literal kept in its source spelling.
type Num struct {
	Pos
	Raw string
}

// Str is a string or bytes literal. Adjacent literals are concatenated by
// the parser.
type Str struct {
	Pos
	Value string
	Bytes bool
}

// FStringPart is either literal text or a replacement field.
type FStringPart struct {
	Lit  string
	Expr Expr
	Conv byte   // 0, 'r', 's' or 'a'
	Spec string // format spec without the leading ':'
}

// FString is an f-string literal.
type FString struct {
	Pos
	Parts []*FStringPart
}

// Attribute is `x.attr`.
type Attribute struct {
	Pos
	X    Expr
	Attr string
}

// Subscript is `x[index]`.
type Subscript struct {
	Pos
	X     Expr
	Index Expr
}

// Slice is `lo:hi:step` inside a subscript.
type Slice struct {
	Pos
	Lo, Hi, Step Expr
}

// Arg is a call argument. Keyword is set for `k=v`; Star is 1 for *x and 2
// for **x.
type Arg struct {
	Pos
	Keyword string
	Star    int
	Value   Expr
}

// Call is a function call.
type Call struct {
	Pos
	Func Expr
	Args []*Arg
}

// BinOp is a binary arithmetic or bitwise operation.
type BinOp struct {
	Pos
	Op   string
	X, Y Expr
}

// UnaryOp is `-x`, `+x`, `~x` or `not x`.
type UnaryOp struct {
	Pos
	Op string
	X  Expr
}

// BoolOp is `x and y` or `x or y`.
type BoolOp struct {
	Pos
	Op   string
	X, Y Expr
}

// Compare is a comparison chain `x < y <= z`.
type Compare struct {
	Pos
	X           Expr
	Ops         []string
	Comparators []Expr
}

// IfExp is `body if cond else orelse`.
type IfExp struct {
	Pos
	Body, Cond, Else Expr
}

// Lambda is an anonymous function.
type Lambda struct {
	Pos
	Params []*Param
	Body   Expr
}

// List is a list display.
type List struct {
	Pos
	Elts []Expr
}

// Tuple is a tuple display.
type Tuple struct {
	Pos
	Elts []Expr
}

// Set is a set display.
type Set struct {
	Pos
	Elts []Expr
}

// Dict is a dict display. A nil key marks a `**mapping` entry.
type Dict struct {
	Pos
	Keys   []Expr
	Values []Expr
}

// Starred is `*x` inside a display or assignment target.
type Starred struct {
	Pos
	X Expr
}

// CompKind is the kind of comprehension.
type CompKind int

const (
	ListComp CompKind = iota
	SetComp
	DictComp
	GenExp
)

// CompFor is one `for target in iter if cond...` clause.
type CompFor struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// Comprehension is a list, set or dict comprehension or a generator
// expression. Value is only set for dict comprehensions.
type Comprehension struct {
	Pos
	Kind       CompKind
	Elt        Expr
	Value      Expr
	Generators []*CompFor
}

func (*Name) exprNode()          {}
func (*Const) exprNode()         {}
func (*Num) exprNode()           {}
func (*Str) exprNode()           {}
func (*FString) exprNode()       {}
func (*Attribute) exprNode()     {}
func (*Subscript) exprNode()     {}
func (*Slice) exprNode()         {}
func (*Call) exprNode()          {}
func (*BinOp) exprNode()         {}
func (*UnaryOp) exprNode()       {}
func (*BoolOp) exprNode()        {}
func (*Compare) exprNode()       {}
func (*IfExp) exprNode()         {}
func (*Lambda) exprNode()        {}
func (*List) exprNode()          {}
func (*Tuple) exprNode()         {}
func (*Set) exprNode()           {}
func (*Dict) exprNode()          {}
func (*Starred) exprNode()       {}
func (*Comprehension) exprNode() {}

// ============================================================================
// Constructors for synthesized code
// ============================================================================

// NewName returns an identifier node without a source position.
func NewName(id string) *Name { return &Name{ID: id} }

// NewStr returns a string literal node.
func NewStr(s string) *Str { return &Str{Value: s} }

// NewAssign returns `target = value`.
func NewAssign(target, value Expr) *Assign {
	return &Assign{Targets: []Expr{target}, Value: value}
}

// NewCall returns `fn(args...)` with positional arguments.
func NewCall(fn Expr, args ...Expr) *Call {
	c := &Call{Func: fn}
	for _, a := range args {
		c.Args = append(c.Args, &Arg{Value: a})
	}
	return c
}

// NewExprStmt wraps x as a statement.
func NewExprStmt(x Expr) *ExprStmt { return &ExprStmt{X: x} }

// CalleeName returns "f" for `f(...)` and "m.f" for a dotted callee, or ""
// when the callee is not a plain dotted name.
func CalleeName(c *Call) string {
	return dottedName(c.Func)
}

func dottedName(e Expr) string {
	switch e := e.(type) {
	case *Name:
		return e.ID
	case *Attribute:
		if base := dottedName(e.X); base != "" {
			return base + "." + e.Attr
		}
	}
	return ""
}

// StringValue returns the value of a plain string literal.
func StringValue(e Expr) (string, bool) {
	s, ok := e.(*Str)
	if !ok || s.Bytes {
		return "", false
	}
	return s.Value, true
}
