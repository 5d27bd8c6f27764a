package script

import "fmt"

// Kind identifies the lexical class of a token.
type Kind int

const (
	EOF Kind = iota
	NEWLINE
	INDENT
	DEDENT
	NAME
	NUMBER
	STRING
	FSTRING
	OP
	COMMENT
)

var kindNames = [...]string{
	EOF:     "EOF",
	NEWLINE: "NEWLINE",
	INDENT:  "INDENT",
	DEDENT:  "DEDENT",
	NAME:    "NAME",
	NUMBER:  "NUMBER",
	STRING:  "STRING",
	FSTRING: "FSTRING",
	OP:      "OP",
	COMMENT: "COMMENT",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pos is a 1-based source position. The zero Pos marks synthesized nodes.
type Pos struct {
	Line int
	Col  int
}

// Position returns p. It lets every node embedding Pos satisfy [Node].
func (p Pos) Position() Pos { return p }

// IsValid reports whether p refers to a real source location.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is a single lexical unit.
//
// For STRING tokens Value holds the decoded string; for FSTRING tokens it
// holds the raw body between the quotes. Prefix holds the lowercase string
// prefix letters (for example "b" or "rf").
type Token struct {
	Kind   Kind
	Value  string
	Prefix string
	Pos    Pos

	// Blank is set on the first token of a logical line preceded by one or
	// more blank lines.
	Blank bool
}

func (t Token) String() string {
	switch t.Kind {
	case NAME, NUMBER, OP:
		return fmt.Sprintf("%q", t.Value)
	case STRING, FSTRING:
		return "string literal"
	case COMMENT:
		return "comment"
	default:
		return t.Kind.String()
	}
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// IsKeyword reports whether name is a reserved word of the script language.
func IsKeyword(name string) bool { return keywords[name] }
