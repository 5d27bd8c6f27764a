package interp

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// formatSpec applies a format specification such as ">10", ",d" or ".2f".
func formatSpec(v Value, spec string) (string, error) {
	if spec == "" {
		return str(v), nil
	}
	fill, align := " ", byte(0)
	if r, size := utf8.DecodeRuneInString(spec); size < len(spec) && strings.ContainsRune("<>^=", rune(spec[size])) {
		fill, align = string(r), spec[size]
		spec = spec[size+1:]
	}
	if align == 0 && spec != "" && strings.ContainsRune("<>^=", rune(spec[0])) {
		align = spec[0]
		spec = spec[1:]
	}
	sign := byte(0)
	if spec != "" && strings.ContainsRune("+- ", rune(spec[0])) {
		sign = spec[0]
		spec = spec[1:]
	}
	if strings.HasPrefix(spec, "0") && len(spec) > 1 {
		if align == 0 {
			fill, align = "0", '='
		}
		spec = spec[1:]
	}
	i := 0
	for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
		i++
	}
	width, _ := strconv.Atoi(spec[:i])
	spec = spec[i:]
	group := byte(0)
	if spec != "" && (spec[0] == ',' || spec[0] == '_') {
		group = spec[0]
		spec = spec[1:]
	}
	prec := -1
	if strings.HasPrefix(spec, ".") {
		j := 1
		for j < len(spec) && spec[j] >= '0' && spec[j] <= '9' {
			j++
		}
		prec, _ = strconv.Atoi(spec[1:j])
		spec = spec[j:]
	}
	verb := byte(0)
	if len(spec) == 1 {
		verb = spec[0]
	} else if spec != "" {
		return "", raise("ValueError", "invalid format specifier")
	}

	var body string
	numeric := false
	switch verb {
	case 0, 's':
		_, isBool := v.(bool)
		if n, ok := number(v); ok && !isBool && verb == 0 {
			numeric = true
			if prec >= 0 {
				body = strconv.FormatFloat(asFloat(n), 'g', prec, 64)
			} else {
				body = str(n)
			}
			break
		}
		body = str(v)
		if prec >= 0 && utf8.RuneCountInString(body) > prec {
			body = string([]rune(body)[:prec])
		}
	case 'd':
		n, ok := promoteBool(v).(int64)
		if !ok {
			return "", raise("ValueError", "unknown format code 'd' for object of type '%s'", typeName(v))
		}
		numeric = true
		body = strconv.FormatInt(n, 10)
	case 'f', 'F', 'e', 'E', 'g', 'G', '%':
		n, ok := number(v)
		if !ok {
			return "", raise("ValueError", "unknown format code '%c' for object of type '%s'", verb, typeName(v))
		}
		numeric = true
		f := asFloat(n)
		if prec < 0 {
			prec = 6
		}
		switch verb {
		case '%':
			body = strconv.FormatFloat(f*100, 'f', prec, 64) + "%"
		case 'F':
			body = strconv.FormatFloat(f, 'f', prec, 64)
		default:
			body = strconv.FormatFloat(f, verb, prec, 64)
		}
	default:
		return "", raise("ValueError", "unsupported format code '%c'", verb)
	}

	neg := false
	if numeric {
		if strings.HasPrefix(body, "-") {
			neg, body = true, body[1:]
		}
		if group != 0 {
			body = groupDigits(body, group)
		}
		switch {
		case neg:
			body = "-" + body
		case sign == '+':
			body = "+" + body
		case sign == ' ':
			body = " " + body
		}
	}
	if align == 0 {
		align = '<'
		if numeric {
			align = '>'
		}
	}
	pad := width - utf8.RuneCountInString(body)
	if pad <= 0 {
		return body, nil
	}
	switch align {
	case '>':
		return strings.Repeat(fill, pad) + body, nil
	case '^':
		return strings.Repeat(fill, pad/2) + body + strings.Repeat(fill, pad-pad/2), nil
	case '=':
		if body != "" && strings.ContainsRune("+- ", rune(body[0])) {
			return body[:1] + strings.Repeat(fill, pad) + body[1:], nil
		}
		return strings.Repeat(fill, pad) + body, nil
	}
	return body + strings.Repeat(fill, pad), nil
}

// groupDigits inserts sep every three digits of the integer part.
func groupDigits(s string, sep byte) string {
	end := strings.IndexAny(s, ".eE%")
	if end < 0 {
		end = len(s)
	}
	intPart, rest := s[:end], s[end:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(sep)
		}
		b.WriteRune(r)
	}
	return b.String() + rest
}
