package qi

import (
	"strings"
	"testing"
)

// --- helpers ---------------------------------------------------------------------

func parseOne(t *testing.T, src string) Value {
	t.Helper()
	v, err := ParseOne(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return v
}

func parseErr(t *testing.T, src string) *ParseError {
	t.Helper()
	_, err := ParseSource(src)
	if err == nil {
		t.Fatalf("parse %q: want error", src)
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("parse %q: want *ParseError, got %T (%v)", src, err, err)
	}
	return pe
}

func symName(t *testing.T, v Value) string {
	t.Helper()
	if v.Tag != TSymbol {
		t.Fatalf("want symbol, got %#v", v)
	}
	return v.Data.(*Symbol).Name
}

// --- reading ---------------------------------------------------------------------

func Test_Parser_Source_Yields_Top_Level_Forms(t *testing.T) {
	forms, err := ParseSource("1 2 3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(forms) != 3 {
		t.Fatalf("want 3 forms, got %d", len(forms))
	}
	for i, want := range []int64{1, 2, 3} {
		wantInt(t, forms[i], want)
	}
}

func Test_Parser_Nested_Collections(t *testing.T) {
	v := parseOne(t, `(a [1 {:k inner}] "s")`)
	items := mustList(t, v)
	if got := symName(t, items[0]); got != "a" {
		t.Fatalf("want head a, got %s", got)
	}
	vec := mustVec(t, items[1])
	wantInt(t, vec[0], 1)
	m := mustMap(t, vec[1])
	if got := symName(t, mget(t, m, "k")); got != "inner" {
		t.Fatalf("want symbol inner, got %s", got)
	}
	wantStr(t, items[2], "s")
}

func Test_Parser_Map_Literal_Values_Stay_Unread(t *testing.T) {
	// The reader stores value forms as data; evaluation happens later.
	m := mustMap(t, parseOne(t, `{:k (+ 1 2)}`))
	form := mustList(t, mget(t, m, "k"))
	if got := symName(t, form[0]); got != "+" {
		t.Fatalf("want call form under :k, got head %s", got)
	}
}

func Test_Parser_Reserved_Words_Read_As_Literals(t *testing.T) {
	wantNil(t, parseOne(t, "nil"))
	wantBool(t, parseOne(t, "true"), true)
	wantBool(t, parseOne(t, "false"), false)
}

func Test_Parser_Reader_Sugar_Shapes(t *testing.T) {
	cases := []struct {
		src  string
		head string
	}{
		{"'x", "quote"},
		{"`x", "quasiquote"},
		{"~x", "unquote"},
		{"~@x", "unquote-splicing"},
	}
	for _, c := range cases {
		items := mustList(t, parseOne(t, c.src))
		if len(items) != 2 {
			t.Fatalf("%s: want 2 items, got %d", c.src, len(items))
		}
		if got := symName(t, items[0]); got != c.head {
			t.Fatalf("%s: want head %s, got %s", c.src, c.head, got)
		}
		if got := symName(t, items[1]); got != "x" {
			t.Fatalf("%s: want x, got %s", c.src, got)
		}
	}
}

func Test_Parser_Sugar_Nests(t *testing.T) {
	outer := mustList(t, parseOne(t, "''x"))
	if got := symName(t, outer[0]); got != "quote" {
		t.Fatalf("want quote, got %s", got)
	}
	inner := mustList(t, outer[1])
	if got := symName(t, inner[0]); got != "quote" {
		t.Fatalf("want nested quote, got %s", got)
	}
}

// --- reader errors ---------------------------------------------------------------

func Test_Parser_Map_Literal_Needs_Even_Forms(t *testing.T) {
	wantErrContains(t, parseErr(t, "{:a 1 :b}"), "even number of forms")
}

func Test_Parser_Map_Literal_Rejects_Unusable_Keys(t *testing.T) {
	wantErrContains(t, parseErr(t, `{1.5 "v"}`), "map literal key must be a keyword, symbol, string or int")
	wantErrContains(t, parseErr(t, `{(+ 1 2) "v"}`), "map literal key must be")
	wantErrContains(t, parseErr(t, `{[1] "v"}`), "map literal key must be")
}

func Test_Parser_Unexpected_Closer(t *testing.T) {
	pe := parseErr(t, ")")
	wantErrContains(t, pe, `unexpected ")"`)
	if IsIncomplete(pe) {
		t.Fatalf("a stray closer is not incomplete input")
	}
}

func Test_Parser_Unterminated_Forms_Are_Incomplete(t *testing.T) {
	for _, src := range []string{"(1 2", "[1", `{:a 1`, "'"} {
		_, err := ParseSource(src)
		if err == nil {
			t.Fatalf("parse %q: want error", src)
		}
		if !IsIncomplete(err) {
			t.Fatalf("parse %q: want incomplete, got %v", src, err)
		}
	}
}

func Test_Parser_Unterminated_Error_Points_At_The_Opener(t *testing.T) {
	pe := parseErr(t, "(foo\n  (bar")
	wantErrContains(t, pe, `unterminated "("`)
	if pe.Line != 2 || pe.Col != 2 {
		t.Fatalf("want position 2:2, got %d:%d", pe.Line, pe.Col)
	}
}

func Test_Parser_ParseOne_Rejects_Trailing_Forms(t *testing.T) {
	_, err := ParseOne("1 2")
	wantErrContains(t, err, "expected exactly one form, got 2")
	_, err = ParseOne("")
	wantErrContains(t, err, "expected exactly one form, got 0")
}

func Test_Parser_Wrapped_Errors_Carry_A_Snippet(t *testing.T) {
	src := "(def x {1.5 2})"
	_, err := ParseSource(src)
	if err == nil {
		t.Fatalf("want error")
	}
	wrapped := WrapErrorWithName(err, "boot.qi", src)
	msg := wrapped.Error()
	for _, want := range []string{"PARSE ERROR", "boot.qi", "^"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("wrapped error missing %q:\n%s", want, msg)
		}
	}
}
