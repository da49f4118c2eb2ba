// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package dispatch turns a model reply into at most one tool invocation.
//
// A reply is a tool call only if, after code fences are stripped, it is
// exactly one call expression whose arguments are literals:
//
//	name(arg, ..., key=arg, ...)
//
// Literals are numbers, quoted strings, booleans, None/null, lists and
// dicts of literals. Nothing is ever evaluated.
package dispatch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "shellai/internal/errors"
)

// ErrNotACall is wrapped by every parse failure.
var ErrNotACall = errors.New("not a tool call")

// Call is a parsed call expression.
type Call struct {
	Name       string
	Args       []interface{}
	Kwargs     map[string]interface{}
	KwargOrder []string
}

// Parse parses text as a single call expression.
func Parse(text string) (*Call, error) {
	p := &parser{src: text}
	p.skipSpace()
	name := p.ident()
	if name == "" {
		return nil, p.errorf("expected a function name")
	}
	p.skipSpace()
	if !p.consume('(') {
		return nil, p.errorf("expected '(' after %s", name)
	}

	call := &Call{Name: name, Kwargs: map[string]interface{}{}}
	for {
		p.skipSpace()
		if p.consume(')') {
			break
		}
		if key, ok := p.keyword(); ok {
			if _, dup := call.Kwargs[key]; dup {
				return nil, p.errorf("keyword argument '%s' repeated", key)
			}
			value, err := p.value(0)
			if err != nil {
				return nil, err
			}
			call.Kwargs[key] = value
			call.KwargOrder = append(call.KwargOrder, key)
		} else {
			if len(call.KwargOrder) > 0 {
				return nil, p.errorf("positional argument follows keyword argument")
			}
			value, err := p.value(0)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, value)
		}
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(')') {
			break
		}
		return nil, p.errorf("expected ',' or ')'")
	}

	p.skipSpace()
	p.consume(';')
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected text after call")
	}
	return call, nil
}

const maxNesting = 32

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return apperrors.Wrap(apperrors.CodeArgParse, fmt.Sprintf("%s at offset %d", msg, p.pos), ErrNotACall)
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) consume(c byte) bool {
	if p.peek() == c && !p.eof() {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *parser) ident() string {
	start := p.pos
	if p.eof() || !isIdentStart(p.peek()) {
		return ""
	}
	for !p.eof() && isIdentPart(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// keyword consumes "name =" if present. It backtracks otherwise, so bare
// identifiers such as True are parsed as values.
func (p *parser) keyword() (string, bool) {
	start := p.pos
	name := p.ident()
	if name == "" {
		return "", false
	}
	p.skipSpace()
	if p.peek() == '=' && (p.pos+1 >= len(p.src) || p.src[p.pos+1] != '=') {
		p.pos++
		p.skipSpace()
		return name, true
	}
	p.pos = start
	return "", false
}

func (p *parser) value(depth int) (interface{}, error) {
	if depth > maxNesting {
		return nil, p.errorf("literal nested too deeply")
	}
	p.skipSpace()
	c := p.peek()
	switch {
	case p.eof():
		return nil, p.errorf("unexpected end of input")
	case c == '"' || c == '\'':
		return p.str(false)
	case (c == 'r' || c == 'R') && p.pos+1 < len(p.src) && (p.src[p.pos+1] == '"' || p.src[p.pos+1] == '\''):
		p.pos++
		return p.str(true)
	case c == '[':
		p.pos++
		return p.list(']', depth)
	case c == '(':
		p.pos++
		return p.list(')', depth)
	case c == '{':
		p.pos++
		return p.dict(depth)
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		start := p.pos
		switch word := p.ident(); word {
		case "True", "true":
			return true, nil
		case "False", "false":
			return false, nil
		case "None", "null":
			return nil, nil
		default:
			p.pos = start
			return nil, p.errorf("'%s' is not a literal", word)
		}
	}
	return nil, p.errorf("unexpected character %q", c)
}

func (p *parser) list(closer byte, depth int) (interface{}, error) {
	items := []interface{}{}
	for {
		p.skipSpace()
		if p.consume(closer) {
			return items, nil
		}
		item, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(closer) {
			return items, nil
		}
		return nil, p.errorf("expected ',' or '%c'", closer)
	}
}

func (p *parser) dict(depth int) (interface{}, error) {
	out := map[string]interface{}{}
	for {
		p.skipSpace()
		if p.consume('}') {
			return out, nil
		}
		key, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		name, ok := key.(string)
		if !ok {
			return nil, p.errorf("dict keys must be strings")
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, p.errorf("expected ':' in dict")
		}
		val, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		out[name] = val
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			return out, nil
		}
		return nil, p.errorf("expected ',' or '}'")
	}
}

func (p *parser) number() (interface{}, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	for !p.eof() {
		c := p.peek()
		if (c >= '0' && c <= '9') || c == '.' || c == '_' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		if (c == '-' || c == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E') {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return int(n), nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f, nil
	}
	p.pos = start
	return nil, p.errorf("invalid number %q", text)
}

// str parses a single, double or triple quoted string starting at the
// opening quote.
func (p *parser) str(raw bool) (interface{}, error) {
	quote := p.peek()
	delim := string(quote)
	if strings.HasPrefix(p.src[p.pos:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	p.pos += len(delim)

	var b strings.Builder
	for {
		if p.eof() {
			return nil, p.errorf("unterminated string")
		}
		if strings.HasPrefix(p.src[p.pos:], delim) {
			p.pos += len(delim)
			return b.String(), nil
		}
		c := p.src[p.pos]
		if c == '\n' && len(delim) == 1 {
			return nil, p.errorf("newline in single-quoted string")
		}
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
			continue
		}
		if raw {
			b.WriteByte('\\')
			p.pos++
			if !p.eof() {
				r, size := utf8.DecodeRuneInString(p.src[p.pos:])
				b.WriteRune(r)
				p.pos += size
			}
			continue
		}
		if err := p.escape(&b); err != nil {
			return nil, err
		}
	}
}

func (p *parser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.eof() {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '0':
		b.WriteByte(0)
	case '\\', '\'', '"':
		b.WriteByte(c)
	case '\n':
		// line continuation
	case 'x', 'u', 'U':
		width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
		if p.pos+width > len(p.src) {
			return p.errorf("truncated \\%c escape", c)
		}
		code, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
		if err != nil {
			return p.errorf("invalid \\%c escape", c)
		}
		p.pos += width
		b.WriteRune(rune(code))
	default:
		// Unknown escapes are kept verbatim, so regexes like "\d" survive.
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}
