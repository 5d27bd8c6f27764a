package script

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/matzehuels/stepbook/pkg/errors"
)

// operators are matched longest first.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "<<", ">>", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

var closing = map[string]string{"(": ")", "[": "]", "{": "}"}

type lexer struct {
	src  string
	off  int
	line int
	col  int

	// brackets holds the open brackets, innermost last.
	brackets []Token
	indents  []int
	toks     []Token

	atLineStart bool
	firstTok    bool
	blank       bool
	comments    []Token
}

// Tokenize splits src into tokens, synthesizing NEWLINE, INDENT and DEDENT
// tokens from the line structure. Comment-only lines become COMMENT tokens
// placed after the indentation tokens of the next logical line so that they
// attach to the block that follows them. Trailing comments are discarded.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{
		src:         strings.ReplaceAll(src, "\r\n", "\n"),
		line:        1,
		col:         1,
		indents:     []int{0},
		atLineStart: true,
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.toks, nil
}

func (lx *lexer) errorf(line, col int, format string, args ...any) error {
	return errors.New(errors.ErrCodeSyntax, format, args...).At(line, col)
}

func (lx *lexer) peek(n int) byte {
	if lx.off+n < len(lx.src) {
		return lx.src[lx.off+n]
	}
	return 0
}

func (lx *lexer) advance(n int) {
	for i := 0; i < n && lx.off < len(lx.src); i++ {
		if lx.src[lx.off] == '\n' {
			lx.line++
			lx.col = 1
		} else if lx.src[lx.off]&0xC0 != 0x80 {
			lx.col++
		}
		lx.off++
	}
}

func (lx *lexer) emit(t Token) {
	if lx.firstTok {
		t.Blank = lx.blank
		lx.blank = false
		lx.firstTok = false
	}
	lx.toks = append(lx.toks, t)
}

func (lx *lexer) run() error {
	for {
		if lx.atLineStart && len(lx.brackets) == 0 {
			done, err := lx.lineStart()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			continue
		}
		if lx.off >= len(lx.src) {
			if n := len(lx.brackets); n > 0 {
				open := lx.brackets[n-1]
				return lx.errorf(open.Pos.Line, open.Pos.Col, "%q was never closed", open.Value)
			}
			lx.toks = append(lx.toks, Token{Kind: NEWLINE, Pos: Pos{lx.line, lx.col}})
			lx.atLineStart = true
			continue
		}
		c := lx.src[lx.off]
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			lx.advance(1)
		case c == '#':
			for lx.off < len(lx.src) && lx.src[lx.off] != '\n' {
				lx.advance(1)
			}
		case c == '\\' && lx.peek(1) == '\n':
			lx.advance(2)
		case c == '\n':
			if len(lx.brackets) == 0 {
				lx.toks = append(lx.toks, Token{Kind: NEWLINE, Pos: Pos{lx.line, lx.col}})
				lx.atLineStart = true
			}
			lx.advance(1)
		case c == '"' || c == '\'':
			if err := lx.lexString(""); err != nil {
				return err
			}
		case c >= '0' && c <= '9' || c == '.' && isDigit(lx.peek(1)):
			lx.lexNumber()
		case isIdentStart(lx.runeAt(lx.off)):
			if err := lx.lexName(); err != nil {
				return err
			}
		default:
			if err := lx.lexOperator(); err != nil {
				return err
			}
		}
	}
}

// lineStart consumes indentation, blank lines and comment-only lines at the
// start of a logical line. It reports true once EOF has been handled.
func (lx *lexer) lineStart() (bool, error) {
	width := 0
	for lx.off < len(lx.src) {
		switch lx.src[lx.off] {
		case ' ':
			width++
		case '\t':
			width = (width/8 + 1) * 8
		case '\f':
			width = 0
		default:
			goto measured
		}
		lx.advance(1)
	}
measured:
	if lx.off >= len(lx.src) {
		for len(lx.indents) > 1 {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.toks = append(lx.toks, Token{Kind: DEDENT, Pos: Pos{lx.line, 1}})
		}
		lx.flushComments()
		lx.toks = append(lx.toks, Token{Kind: EOF, Pos: Pos{lx.line, lx.col}})
		return true, nil
	}
	switch lx.src[lx.off] {
	case '\n':
		lx.advance(1)
		lx.blank = true
		return false, nil
	case '#':
		pos := Pos{lx.line, lx.col}
		end := strings.IndexByte(lx.src[lx.off:], '\n')
		text := lx.src[lx.off:]
		if end >= 0 {
			text = text[:end]
		}
		lx.comments = append(lx.comments, Token{Kind: COMMENT, Value: strings.TrimRight(text, " \t"), Pos: pos, Blank: lx.blank})
		lx.blank = false
		lx.advance(len(text))
		if lx.off < len(lx.src) {
			lx.advance(1)
		}
		return false, nil
	case '\\':
		if lx.peek(1) == '\n' {
			return false, lx.errorf(lx.line, lx.col, "unexpected line continuation")
		}
	}

	pos := Pos{lx.line, 1}
	top := lx.indents[len(lx.indents)-1]
	switch {
	case width > top:
		lx.indents = append(lx.indents, width)
		lx.toks = append(lx.toks, Token{Kind: INDENT, Pos: pos})
	case width < top:
		for width < lx.indents[len(lx.indents)-1] {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.toks = append(lx.toks, Token{Kind: DEDENT, Pos: pos})
		}
		if width != lx.indents[len(lx.indents)-1] {
			return false, lx.errorf(lx.line, lx.col, "unindent does not match any outer indentation level")
		}
	}
	lx.flushComments()
	lx.atLineStart = false
	lx.firstTok = true
	return false, nil
}

func (lx *lexer) flushComments() {
	for _, c := range lx.comments {
		lx.toks = append(lx.toks, c, Token{Kind: NEWLINE, Pos: c.Pos})
	}
	lx.comments = lx.comments[:0]
}

func (lx *lexer) runeAt(off int) rune {
	if off >= len(lx.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(lx.src[off:])
	return r
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (lx *lexer) lexName() error {
	pos := Pos{lx.line, lx.col}
	end := lx.off
	for end < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[end:])
		if !isIdentPart(r) {
			break
		}
		end += size
	}
	name := lx.src[lx.off:end]
	lx.advance(len(name))
	if q := lx.peek(0); (q == '"' || q == '\'') && isStringPrefix(name) {
		return lx.lexStringAt(strings.ToLower(name), pos)
	}
	lx.emit(Token{Kind: NAME, Value: name, Pos: pos})
	return nil
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func (lx *lexer) lexNumber() {
	pos := Pos{lx.line, lx.col}
	start := lx.off
	if lx.peek(0) == '0' && strings.ContainsRune("xXoObB", rune(lx.peek(1))) {
		lx.advance(2)
		for isHexDigit(lx.peek(0)) || lx.peek(0) == '_' {
			lx.advance(1)
		}
	} else {
		for isDigit(lx.peek(0)) || lx.peek(0) == '_' {
			lx.advance(1)
		}
		if lx.peek(0) == '.' {
			lx.advance(1)
			for isDigit(lx.peek(0)) || lx.peek(0) == '_' {
				lx.advance(1)
			}
		}
		if c := lx.peek(0); c == 'e' || c == 'E' {
			n := 1
			if s := lx.peek(1); s == '+' || s == '-' {
				n = 2
			}
			if isDigit(lx.peek(n)) {
				lx.advance(n)
				for isDigit(lx.peek(0)) || lx.peek(0) == '_' {
					lx.advance(1)
				}
			}
		}
		if c := lx.peek(0); c == 'j' || c == 'J' {
			lx.advance(1)
		}
	}
	lx.emit(Token{Kind: NUMBER, Value: lx.src[start:lx.off], Pos: pos})
}

func isHexDigit(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func (lx *lexer) lexOperator() error {
	pos := Pos{lx.line, lx.col}
	rest := lx.src[lx.off:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			switch op {
			case "(", "[", "{":
				lx.brackets = append(lx.brackets, Token{Kind: OP, Value: op, Pos: pos})
			case ")", "]", "}":
				n := len(lx.brackets)
				if n == 0 {
					return lx.errorf(pos.Line, pos.Col, "unmatched %q", op)
				}
				if open := lx.brackets[n-1]; closing[open.Value] != op {
					return lx.errorf(pos.Line, pos.Col, "closing %q does not match %q on line %d", op, open.Value, open.Pos.Line)
				}
				lx.brackets = lx.brackets[:n-1]
			}
			lx.advance(len(op))
			lx.emit(Token{Kind: OP, Value: op, Pos: pos})
			return nil
		}
	}
	r := lx.runeAt(lx.off)
	return lx.errorf(pos.Line, pos.Col, "invalid character %q", r)
}

func (lx *lexer) lexString(prefix string) error {
	return lx.lexStringAt(prefix, Pos{lx.line, lx.col})
}

func (lx *lexer) lexStringAt(prefix string, pos Pos) error {
	q := lx.src[lx.off]
	triple := lx.peek(1) == q && lx.peek(2) == q
	delim := string(q)
	if triple {
		delim = strings.Repeat(delim, 3)
	}
	lx.advance(len(delim))
	start := lx.off
	for {
		if lx.off >= len(lx.src) {
			return lx.errorf(pos.Line, pos.Col, "unterminated string literal")
		}
		c := lx.src[lx.off]
		if c == '\\' {
			lx.advance(2)
			continue
		}
		if c == '\n' && !triple {
			return lx.errorf(pos.Line, pos.Col, "unterminated string literal")
		}
		if strings.HasPrefix(lx.src[lx.off:], delim) {
			break
		}
		lx.advance(1)
	}
	body := lx.src[start:lx.off]
	lx.advance(len(delim))

	raw := strings.Contains(prefix, "r")
	if strings.Contains(prefix, "f") {
		lx.emit(Token{Kind: FSTRING, Value: body, Prefix: prefix, Pos: pos})
		return nil
	}
	value := body
	if !raw {
		var err error
		value, err = Unescape(body, strings.Contains(prefix, "b"))
		if err != nil {
			return lx.errorf(pos.Line, pos.Col, "%v", err)
		}
	}
	lx.emit(Token{Kind: STRING, Value: value, Prefix: prefix, Pos: pos})
	return nil
}

// Unescape decodes backslash escapes of a non-raw string literal body.
// Unknown escapes are kept verbatim, as the script language does.
func Unescape(s string, bytes bool) (string, error) {
	if !strings.Contains(s, "\\") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case 'x':
			if i+2 >= len(s) {
				return "", errors.New(errors.ErrCodeSyntax, "truncated \\x escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", errors.New(errors.ErrCodeSyntax, "invalid \\x escape")
			}
			if bytes {
				b.WriteByte(byte(v))
			} else {
				b.WriteRune(rune(v))
			}
			i += 2
		case 'u', 'U':
			n := 4
			if e == 'U' {
				n = 8
			}
			if bytes {
				b.WriteByte('\\')
				b.WriteByte(e)
				continue
			}
			if i+n >= len(s) {
				return "", errors.New(errors.ErrCodeSyntax, "truncated \\%c escape", e)
			}
			v, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil {
				return "", errors.New(errors.ErrCodeSyntax, "invalid \\%c escape", e)
			}
			b.WriteRune(rune(v))
			i += n
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			if bytes {
				b.WriteByte(byte(v))
			} else {
				b.WriteRune(rune(v))
			}
			i = j - 1
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}
