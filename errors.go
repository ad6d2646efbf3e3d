// errors.go: structured evaluation errors plus caret-snippet rendering for
// reader diagnostics.
//
// Evaluation failures travel as ordinary Go error returns of type *Error,
// classified by Kind. KindRecur is the one fatal kind: try never converts it
// into an error marker, so a misplaced recur always aborts the program it
// appears in. WrapErrorWithSource recognizes *LexError and *ParseError and
// formats a Python-style snippet with a caret under the offending column;
// every other error passes through unchanged.

package qi

import (
	"fmt"
	"strings"
)

// Kind classifies an evaluation failure. Catchable kinds have a keyword
// counterpart that try places under :kind in error markers.
type Kind int

const (
	KindSyntax        Kind = iota // malformed special form or pipeline chain
	KindUnbound                   // symbol lookup failed
	KindArity                     // wrong argument count
	KindTypeMismatch              // operand of the wrong kind, bad map key, bad destructure
	KindNoMatch                   // match ran out of clauses
	KindRecur                     // recur misuse; fatal, never catchable
	KindChannelClosed             // send! or recv! on a closed, drained channel
	KindNative                    // failure surfaced by a registered native
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindUnbound:
		return "unbound name"
	case KindArity:
		return "arity error"
	case KindTypeMismatch:
		return "type mismatch"
	case KindNoMatch:
		return "no matching clause"
	case KindRecur:
		return "recur misuse"
	case KindChannelClosed:
		return "channel closed"
	case KindNative:
		return "native error"
	}
	return "error"
}

// keyword is the marker :kind for this Kind.
func (k Kind) keyword() Value {
	switch k {
	case KindSyntax:
		return Kw("syntax")
	case KindUnbound:
		return Kw("unbound-name")
	case KindArity:
		return Kw("arity")
	case KindTypeMismatch:
		return Kw("type-mismatch")
	case KindNoMatch:
		return Kw("no-matching-clause")
	case KindChannelClosed:
		return Kw("channel-closed")
	case KindNative:
		return Kw("native")
	}
	return Kw("error")
}

// Error is the evaluation error surfaced by all Eval* methods. Form, when
// set, is the printed source form nearest the failure. marker holds the
// original marker map when the error came from throw, so try can hand the
// very same value back.
type Error struct {
	Kind Kind
	Msg  string
	Form string

	marker Value
}

func (e *Error) Error() string {
	if e.Form != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Kind, e.Msg, e.Form)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Catchable reports whether try may convert this failure into a marker.
func (e *Error) Catchable() bool { return e.Kind != KindRecur }

// errf builds a *Error with a formatted message.
func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ---- error markers ---------------------------------------------------------

// errorMarker builds the in-language error value {:error msg :kind kw}.
// Markers are plain maps: railway stages and error? recognize them by the
// presence of the :error key.
func errorMarker(msg string, kind Value) Value {
	m := NewMapObject()
	m.Set(kwVal(kwError), Str(msg))
	m.Set(kwVal(kwKind), kind)
	return MapVal(m)
}

// markerFromError converts a Go error into a marker. Thrown markers come back
// verbatim; other *Error values keep their kind; foreign errors tag :native.
func markerFromError(err error) Value {
	if qe, ok := err.(*Error); ok {
		if qe.marker.Tag == TMap {
			return qe.marker
		}
		return errorMarker(qe.Msg, qe.Kind.keyword())
	}
	return errorMarker(err.Error(), Kw("native"))
}

// isErrorMarker reports whether v is a map carrying the :error key.
func isErrorMarker(v Value) bool {
	return v.Tag == TMap && v.Data.(*MapObject).Has(kwVal(kwError))
}

// ---- reader error rendering -------------------------------------------------

// IsIncomplete reports whether err is a reader error caused by the input
// ending mid-form (unclosed delimiter, dangling quote sugar, unterminated
// string). Interactive readers keep prompting on these instead of reporting.
func IsIncomplete(err error) bool {
	switch e := err.(type) {
	case *LexError:
		return e.Incomplete
	case *ParseError:
		return e.Incomplete
	}
	return false
}

// WrapErrorWithSource returns an error augmented with a caret-annotated
// snippet of the provided source. It recognizes reader errors (*LexError,
// *ParseError) and leaves other errors untouched.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName is WrapErrorWithSource with a source label ("in <name>")
// in the header, used by the module loader and the CLI.
func WrapErrorWithName(err error, srcName string, src string) error {
	switch e := err.(type) {
	case *LexError:
		// Lex/parse Col are 0-based; render as 1-based.
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "LEXICAL ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "PARSE ERROR", srcName, e.Line, e.Col+1, e.Msg))
	default:
		return err
	}
}

// prettyErrorStringLabeled builds a Python-like snippet with a header and a
// caret. It shows at most one previous and one next line when available.
// Coordinates are treated as 1-based and clamped to the source bounds.
func prettyErrorStringLabeled(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	caretPad := col - 1
	if caretPad < 0 {
		caretPad = 0
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", caretPad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
