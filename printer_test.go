package qi

import (
	"strings"
	"testing"
)

func Test_Printer_Scalars(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Int(42), "42"},
		{Int(-7), "-7"},
		{Float(2.5), "2.5"},
		{Float(100), "100.0"},
		{Float(1e21), "1e+21"},
		{Kw("k"), ":k"},
		{Sym("sym"), "sym"},
	}
	for _, c := range cases {
		if got := FormatValue(c.v); got != c.want {
			t.Fatalf("want %s, got %s", c.want, got)
		}
	}
}

func Test_Printer_Floats_Stay_Distinct_From_Ints(t *testing.T) {
	if got := FormatValue(evalSrc(t, "(+ 1.0 2)")); got != "3.0" {
		t.Fatalf("want 3.0, got %s", got)
	}
}

func Test_Printer_Readable_Strings_Are_Quoted(t *testing.T) {
	if got := FormatValue(Str("a\"b\n\tc\\")); got != `"a\"b\n\tc\\"` {
		t.Fatalf("got %s", got)
	}
	if got := DisplayValue(Str("a\"b")); got != `a"b` {
		t.Fatalf("display should print raw, got %s", got)
	}
}

func Test_Printer_Collections_Print_In_Insertion_Order(t *testing.T) {
	if got := FormatValue(evalSrc(t, `{:b 1 :a [2 "s"]}`)); got != `{:b 1 :a [2 "s"]}` {
		t.Fatalf("got %s", got)
	}
	if got := FormatValue(evalSrc(t, `'(1 2 (3))`)); got != "(1 2 (3))" {
		t.Fatalf("got %s", got)
	}
	if got := FormatValue(EmptyList); got != "()" {
		t.Fatalf("got %s", got)
	}
}

func Test_Printer_Format_Round_Trips_Reader_Data(t *testing.T) {
	src := `(1 [2.5 "s"] {:k :v})`
	if got := FormatValue(parseOne(t, src)); got != src {
		t.Fatalf("want %s, got %s", src, got)
	}
}

func Test_Printer_Reference_Stubs(t *testing.T) {
	ip := NewRuntime()
	cases := []struct {
		src  string
		want string
	}{
		{"+", "#<native +>"},
		{"(fn [x] x)", "#<fn>"},
		{"(do (def square (fn [x] (* x x))) square)", "#<fn square>"},
		{"defn", "#<macro defn>"},
		{"(atom 5)", "#<atom 5>"},
		{"(chan)", "#<chan>"},
		{"(do (def c (chan)) (close! c) c)", "#<chan closed>"},
		{"(scope)", "#<scope>"},
	}
	for _, c := range cases {
		v := mustEvalPersistent(t, ip, c.src)
		if got := FormatValue(v); got != c.want {
			t.Fatalf("%s: want %s, got %s", c.src, c.want, got)
		}
	}
}

func Test_Printer_Depth_Cap_Stops_Cycles(t *testing.T) {
	ip := NewRuntime()
	v := mustEvalPersistent(t, ip, `
(def a (atom nil))
(reset! a [a 1])
a`)
	out := FormatValue(v)
	if !strings.Contains(out, "...") {
		t.Fatalf("want elided tail in cyclic print, got %s", out)
	}
}
