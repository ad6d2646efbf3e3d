// lexer.go — token scanner for Qi source.
//
// Qi's surface is S-expressions, so the token set is small: delimiters,
// reader sugar, literals, keywords and symbols. Commas count as whitespace
// (handy inside map literals) and ';' comments run to end of line. Positions
// are tracked as 1-based Line and 0-based Col; *LexError carries them for the
// caret renderer in errors.go.

package qi

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota

	// Delimiters
	LPAREN   // "("
	RPAREN   // ")"
	LBRACKET // "["
	RBRACKET // "]"
	LBRACE   // "{"
	RBRACE   // "}"

	// Reader sugar
	QUOTE         // "'"
	QUASIQUOTE    // "`"
	UNQUOTE       // "~"
	UNQUOTESPLICE // "~@"

	// Literals & identifiers
	STRING
	INTEGER
	FLOAT
	KEYWORD // ":name" (Literal holds the name without the colon)
	SYMBOL
)

// Token is a lexical token with an optional literal value.
type Token struct {
	Type    TokenType
	Lexeme  string // raw text slice
	Literal any    // parsed value for literals
	Line    int
	Col     int
}

// Lexer scans a Qi source string into tokens.
type Lexer struct {
	src    string
	start  int // start index of current token
	cur    int // current index
	line   int // 1-based
	col    int // 0-based column within line
	tokens []Token

	// precise token start position
	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) addToken(tt TokenType, lit any) {
	l.tokens = append(l.tokens, Token{
		Type:    tt,
		Lexeme:  l.src[l.start:l.cur],
		Literal: lit,
		Line:    l.tokStartLine,
		Col:     l.tokStartCol,
	})
	l.start = l.cur
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		ch, _ := l.peek()
		switch ch {
		case ' ', '\r', '\n', '\t', ',':
			l.advance()
		case ';':
			for {
				c, ok := l.peek()
				if !ok || c == '\n' {
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// isSymbolChar admits everything that is not whitespace, a delimiter or
// reader sugar start. '~' and '@' are fine mid-symbol; only a leading '~'
// belongs to unquote.
func isSymbolChar(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', ',', '(', ')', '[', ']', '{', '}', '"', ';', '\'', '`':
		return false
	}
	return true
}

// ----- errors -----

type LexError struct {
	Line int
	Col  int
	Msg  string

	// Incomplete marks errors caused by the source ending mid-token, so an
	// interactive reader can ask for another line instead of reporting.
	Incomplete bool
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

func (l *Lexer) err(msg string) error {
	return &LexError{Line: l.tokStartLine, Col: l.tokStartCol, Msg: msg}
}

func (l *Lexer) errEOF(msg string) error {
	return &LexError{Line: l.tokStartLine, Col: l.tokStartCol, Msg: msg, Incomplete: true}
}

// ----- scanning -----

// Scan tokenizes the whole source, appending a final EOF token. On failure
// the returned error is a *LexError positioned at the offending token.
func (l *Lexer) Scan() ([]Token, error) {
	for {
		l.skipWhitespace()
		l.start = l.cur
		l.tokStartLine, l.tokStartCol = l.line, l.col
		if l.isAtEnd() {
			l.addToken(EOF, nil)
			return l.tokens, nil
		}
		ch, _ := l.advance()
		switch {
		case ch == '(':
			l.addToken(LPAREN, nil)
		case ch == ')':
			l.addToken(RPAREN, nil)
		case ch == '[':
			l.addToken(LBRACKET, nil)
		case ch == ']':
			l.addToken(RBRACKET, nil)
		case ch == '{':
			l.addToken(LBRACE, nil)
		case ch == '}':
			l.addToken(RBRACE, nil)
		case ch == '\'':
			l.addToken(QUOTE, nil)
		case ch == '`':
			l.addToken(QUASIQUOTE, nil)
		case ch == '~':
			// "~@" splices, "~>" is the async pipe symbol, anything else is
			// a plain unquote.
			if c, ok := l.peek(); ok && c == '@' {
				l.advance()
				l.addToken(UNQUOTESPLICE, nil)
			} else if ok && c == '>' {
				if err := l.scanSymbol(); err != nil {
					return nil, err
				}
			} else {
				l.addToken(UNQUOTE, nil)
			}
		case ch == '"':
			s, err := l.scanString()
			if err != nil {
				return nil, err
			}
			l.addToken(STRING, s)
		case ch == ':':
			if err := l.scanKeyword(); err != nil {
				return nil, err
			}
		case isDigit(ch) || ((ch == '+' || ch == '-') && l.peekDigit()):
			if err := l.scanNumber(); err != nil {
				return nil, err
			}
		case isSymbolChar(ch):
			if err := l.scanSymbol(); err != nil {
				return nil, err
			}
		default:
			return nil, l.err(fmt.Sprintf("unexpected character %q", ch))
		}
	}
}

func (l *Lexer) peekDigit() bool {
	b, ok := l.peek()
	return ok && isDigit(b)
}

// scanString consumes a double-quoted string; the opening quote has already
// been consumed. Escapes follow the JSON set plus \uXXXX. Raw UTF-8 passes
// through byte for byte.
func (l *Lexer) scanString() (string, error) {
	var out strings.Builder
	for !l.isAtEnd() {
		ch, _ := l.advance()
		if ch == '"' {
			return out.String(), nil
		}
		if ch != '\\' {
			out.WriteByte(ch)
			continue
		}
		esc, ok := l.advance()
		if !ok {
			return "", l.errEOF("unfinished escape sequence")
		}
		switch esc {
		case '"':
			out.WriteByte('"')
		case '\\':
			out.WriteByte('\\')
		case '/':
			out.WriteByte('/')
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		case 'u':
			var hex strings.Builder
			for i := 0; i < 4; i++ {
				b, ok := l.peek()
				if !ok {
					return "", l.errEOF("unicode escape was not terminated (expect 4 hex digits)")
				}
				if !isHexDigit(b) {
					return "", l.err("unicode escape was not terminated (expect 4 hex digits)")
				}
				hex.WriteByte(b)
				l.advance()
			}
			v, err := strconv.ParseInt(hex.String(), 16, 32)
			if err != nil {
				return "", l.err("invalid unicode escape")
			}
			out.WriteRune(rune(v))
		default:
			return "", l.err(fmt.Sprintf("invalid escape sequence: \\%c", esc))
		}
	}
	return "", l.errEOF("string was not terminated")
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// scanKeyword consumes the name after a ':' (already consumed).
func (l *Lexer) scanKeyword() error {
	for {
		b, ok := l.peek()
		if !ok || !isSymbolChar(b) {
			break
		}
		l.advance()
	}
	name := l.src[l.start+1 : l.cur]
	if name == "" {
		return l.err("keyword needs a name after ':'")
	}
	l.addToken(KEYWORD, name)
	return nil
}

// scanNumber consumes the rest of an int or float literal whose first byte
// (digit or sign) has been consumed. A symbol character trailing the digits
// makes the whole token malformed rather than two adjacent tokens.
func (l *Lexer) scanNumber() error {
	digits := func() {
		for {
			b, ok := l.peek()
			if !ok || !isDigit(b) {
				return
			}
			l.advance()
		}
	}
	digits()
	isFloat := false
	if b, ok := l.peek(); ok && b == '.' {
		if l.cur+1 < len(l.src) && isDigit(l.src[l.cur+1]) {
			isFloat = true
			l.advance()
			digits()
		}
	}
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		if l.cur+1 < len(l.src) && (isDigit(l.src[l.cur+1]) || l.src[l.cur+1] == '+' || l.src[l.cur+1] == '-') {
			isFloat = true
			l.advance()
			if b, ok := l.peek(); ok && (b == '+' || b == '-') {
				l.advance()
			}
			digits()
		}
	}
	if b, ok := l.peek(); ok && isSymbolChar(b) {
		return l.err(fmt.Sprintf("malformed number starting with %q", l.src[l.start:l.cur]))
	}
	lexeme := l.src[l.start:l.cur]
	if isFloat {
		f, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			return l.err("malformed float " + lexeme)
		}
		l.addToken(FLOAT, f)
		return nil
	}
	n, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return l.err("integer out of range: " + lexeme)
	}
	l.addToken(INTEGER, n)
	return nil
}

// scanSymbol consumes the rest of a symbol whose first byte has been consumed.
func (l *Lexer) scanSymbol() error {
	for {
		b, ok := l.peek()
		if !ok || !isSymbolChar(b) {
			break
		}
		l.advance()
	}
	l.addToken(SYMBOL, l.src[l.start:l.cur])
	return nil
}
