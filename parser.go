// parser.go — the reader: tokens to Values.
//
// Qi code is data: ParseSource yields one Value per top-level form, and the
// lists, vectors and maps written in source are the same runtime collections
// the evaluator later walks. Reader sugar expands here ('x, `x, ~x, ~@x).
// Map literal keys must be literal keywords, symbols, strings or ints;
// values may be any form (the evaluator evaluates them in insertion order).

package qi

import "fmt"

// ParseError is a reader failure at a source position (Line 1-based, Col
// 0-based), rendered with a caret snippet by WrapErrorWithSource.
type ParseError struct {
	Line int
	Col  int
	Msg  string

	// Incomplete marks errors caused by the source ending mid-form; see
	// IsIncomplete in errors.go.
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ParseSource scans and reads src into its top-level forms.
func ParseSource(src string) ([]Value, error) {
	toks, err := NewLexer(src).Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	var forms []Value
	for p.peek().Type != EOF {
		f, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, nil
}

// ParseOne reads exactly one form and rejects trailing input. The REPL and
// natives that read data use it.
func ParseOne(src string) (Value, error) {
	forms, err := ParseSource(src)
	if err != nil {
		return Value{}, err
	}
	if len(forms) != 1 {
		return Value{}, &ParseError{Line: 1, Col: 0, Msg: fmt.Sprintf("expected exactly one form, got %d", len(forms))}
	}
	return forms[0], nil
}

type parser struct {
	tokens []Token
	cur    int
}

func (p *parser) peek() Token { return p.tokens[p.cur] }

func (p *parser) next() Token {
	t := p.tokens[p.cur]
	if t.Type != EOF {
		p.cur++
	}
	return t
}

func (p *parser) errAt(t Token, format string, args ...any) error {
	return &ParseError{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseForm() (Value, error) {
	t := p.next()
	switch t.Type {
	case LPAREN:
		items, err := p.parseUntil(RPAREN, t)
		if err != nil {
			return Value{}, err
		}
		return listFromSlice(items), nil
	case LBRACKET:
		items, err := p.parseUntil(RBRACKET, t)
		if err != nil {
			return Value{}, err
		}
		return Vec(items), nil
	case LBRACE:
		items, err := p.parseUntil(RBRACE, t)
		if err != nil {
			return Value{}, err
		}
		return p.buildMap(items, t)
	case STRING:
		return Str(t.Literal.(string)), nil
	case INTEGER:
		return Int(t.Literal.(int64)), nil
	case FLOAT:
		return Float(t.Literal.(float64)), nil
	case KEYWORD:
		return Kw(t.Literal.(string)), nil
	case SYMBOL:
		switch t.Lexeme {
		case "nil":
			return Nil, nil
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return Sym(t.Lexeme), nil
	case QUOTE:
		return p.sugar(symQuote)
	case QUASIQUOTE:
		return p.sugar(symQuasi)
	case UNQUOTE:
		return p.sugar(symUnquote)
	case UNQUOTESPLICE:
		return p.sugar(symSplice)
	case RPAREN, RBRACKET, RBRACE:
		return Value{}, p.errAt(t, "unexpected %q", t.Lexeme)
	case EOF:
		return Value{}, &ParseError{Line: t.Line, Col: t.Col, Msg: "unexpected end of input", Incomplete: true}
	}
	return Value{}, p.errAt(t, "unexpected token %q", t.Lexeme)
}

// parseUntil collects forms up to the closing token, which is consumed.
func (p *parser) parseUntil(closer TokenType, open Token) ([]Value, error) {
	var items []Value
	for {
		t := p.peek()
		if t.Type == closer {
			p.next()
			return items, nil
		}
		if t.Type == EOF {
			return nil, &ParseError{Line: open.Line, Col: open.Col, Msg: fmt.Sprintf("unterminated %q", open.Lexeme), Incomplete: true}
		}
		f, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
}

func (p *parser) buildMap(items []Value, open Token) (Value, error) {
	if len(items)%2 != 0 {
		return Value{}, p.errAt(open, "map literal needs an even number of forms, got %d", len(items))
	}
	m := NewMapObject()
	for i := 0; i < len(items); i += 2 {
		k := items[i]
		if _, ok := toMapKey(k); !ok {
			return Value{}, p.errAt(open, "map literal key must be a keyword, symbol, string or int, got %s", TypeName(k))
		}
		m.Set(k, items[i+1])
	}
	return MapVal(m), nil
}

// sugar wraps the next form: 'x reads as (quote x) and so on.
func (p *parser) sugar(sym *Symbol) (Value, error) {
	f, err := p.parseForm()
	if err != nil {
		return Value{}, err
	}
	return listFromSlice([]Value{symVal(sym), f}), nil
}
