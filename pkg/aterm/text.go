package aterm

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/protection"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

// ParseError reports a textual-grammar violation, matching spec.md §7's
// "parse error: textual input does not match the grammar" recoverable
// error class.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("aterm: parse error at position %d: %s", e.Pos, e.Msg)
}

// textParser is a hand-rolled recursive-descent reader for the aterm
// textual grammar (spec.md §6): applications as name(arg0,...,argN-1),
// constants as a bare name, integers as bare digit sequences, lists as
// [a,b,c]. It follows the same position-tracking struct shape as
// gavlooth-purple_go/pkg/parser/parser.go's S-expression reader,
// generalized from a Lisp reader to this grammar.
type textParser struct {
	input string
	pos   int

	pool *pool.Pool
	tbl  *symbol.Table
	r    *lock.Reader
}

// FromText parses input into a node and roots it as a strong handle in set.
func FromText(p *pool.Pool, tbl *symbol.Table, r *lock.Reader, set *protection.Set, input string) (*OwnedTerm, error) {
	tp := &textParser{input: input, pool: p, tbl: tbl, r: r}
	tp.skipWhitespace()
	n, err := tp.parseTerm()
	if err != nil {
		return nil, err
	}
	tp.skipWhitespace()
	if tp.pos != len(tp.input) {
		return nil, &ParseError{Pos: tp.pos, Msg: "trailing input after a complete term"}
	}
	return NewOwned(set, n), nil
}

func (tp *textParser) skipWhitespace() {
	for tp.pos < len(tp.input) && unicode.IsSpace(rune(tp.input[tp.pos])) {
		tp.pos++
	}
}

func (tp *textParser) peek() byte {
	if tp.pos >= len(tp.input) {
		return 0
	}
	return tp.input[tp.pos]
}

func (tp *textParser) parseTerm() (*pool.Node, error) {
	tp.skipWhitespace()
	if tp.pos >= len(tp.input) {
		return nil, &ParseError{Pos: tp.pos, Msg: "unexpected end of input, expected a term"}
	}

	switch {
	case tp.peek() == '[':
		return tp.parseList()
	case isDigit(tp.peek()):
		return tp.parseInt()
	case isNameStart(tp.peek()):
		return tp.parseApplicationOrConstant()
	default:
		return nil, &ParseError{Pos: tp.pos, Msg: fmt.Sprintf("unexpected character %q", tp.peek())}
	}
}

func (tp *textParser) parseInt() (*pool.Node, error) {
	start := tp.pos
	for tp.pos < len(tp.input) && isDigit(tp.input[tp.pos]) {
		tp.pos++
	}
	value, err := strconv.ParseUint(tp.input[start:tp.pos], 10, 64)
	if err != nil {
		return nil, &ParseError{Pos: start, Msg: "invalid integer literal"}
	}
	n, _ := tp.pool.CreateInt(tp.r, value)
	return n, nil
}

func (tp *textParser) parseName() (string, error) {
	start := tp.pos
	if !isNameStart(tp.peek()) {
		return "", &ParseError{Pos: tp.pos, Msg: "expected a symbol name"}
	}
	tp.pos++
	for tp.pos < len(tp.input) && isNameContinue(tp.input[tp.pos]) {
		tp.pos++
	}
	return tp.input[start:tp.pos], nil
}

func (tp *textParser) parseApplicationOrConstant() (*pool.Node, error) {
	name, err := tp.parseName()
	if err != nil {
		return nil, err
	}

	tp.skipWhitespace()
	if tp.peek() != '(' {
		sym := tp.tbl.Intern(tp.r, name, 0)
		n, _ := tp.pool.Create(tp.r, sym, nil)
		return n, nil
	}

	tp.pos++ // consume '('
	args, err := tp.parseArgList(')')
	if err != nil {
		return nil, err
	}

	sym := tp.tbl.Intern(tp.r, name, len(args))
	n, _ := tp.pool.Create(tp.r, sym, args)
	return n, nil
}

func (tp *textParser) parseArgList(closing byte) ([]*pool.Node, error) {
	var args []*pool.Node
	tp.skipWhitespace()
	if tp.peek() == closing {
		tp.pos++
		return args, nil
	}
	for {
		n, err := tp.parseTerm()
		if err != nil {
			return nil, err
		}
		args = append(args, n)

		tp.skipWhitespace()
		switch tp.peek() {
		case ',':
			tp.pos++
			continue
		case closing:
			tp.pos++
			return args, nil
		default:
			return nil, &ParseError{Pos: tp.pos, Msg: fmt.Sprintf("expected ',' or %q", closing)}
		}
	}
}

func (tp *textParser) parseList() (*pool.Node, error) {
	tp.pos++ // consume '['
	elems, err := tp.parseArgList(']')
	if err != nil {
		return nil, err
	}
	result := tp.pool.EmptyList(tp.r)
	for i := len(elems) - 1; i >= 0; i-- {
		result = tp.pool.Cons(tp.r, elems[i], result)
	}
	return result, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isNameStart(b byte) bool {
	return b == '_' || b == '<' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameContinue(b byte) bool {
	return isNameStart(b) || isDigit(b) || b == '>' || b == '_' || b == '-'
}
