package qi

import "testing"

func Test_Pattern_Literal_Clauses(t *testing.T) {
	src := `
(def classify (fn [v]
  (match v
    0      -> :zero
    "hi"   -> :greeting
    :stop  -> :control
    true   -> :yes
    nil    -> :nothing
    _      -> :other)))
[(classify 0) (classify "hi") (classify :stop) (classify true) (classify nil) (classify 99)]
`
	xs := mustVec(t, evalSrc(t, src))
	wantKw(t, xs[0], "zero")
	wantKw(t, xs[1], "greeting")
	wantKw(t, xs[2], "control")
	wantKw(t, xs[3], "yes")
	wantKw(t, xs[4], "nothing")
	wantKw(t, xs[5], "other")
}

func Test_Pattern_First_Match_Wins(t *testing.T) {
	src := `
(match 5
  x -> :bound
  5 -> :literal)
`
	wantKw(t, evalSrc(t, src), "bound")
}

func Test_Pattern_Binds_Scrutinee(t *testing.T) {
	wantInt(t, evalSrc(t, "(match 21 n -> (* n 2))"), 42)
}

func Test_Pattern_Vector_Exact_And_Nested(t *testing.T) {
	src := `
(match [1 [2 3]]
  [a [b c]] -> (+ a b c))
`
	wantInt(t, evalSrc(t, src), 6)

	// Length must match exactly without a rest pattern.
	src2 := `
(match [1 2 3]
  [a b] -> :two
  [a b c] -> :three)
`
	wantKw(t, evalSrc(t, src2), "three")
}

func Test_Pattern_Vector_Matches_Lists_Too(t *testing.T) {
	wantInt(t, evalSrc(t, "(match '(10 20) [a b] -> (+ a b))"), 30)
}

func Test_Pattern_Vector_Rest(t *testing.T) {
	src := `
(match [1 2 3 4]
  [head & tail] -> {:head head :tail tail})
`
	m := mustMap(t, evalSrc(t, src))
	wantInt(t, mget(t, m, "head"), 1)
	tail := mustList(t, mget(t, m, "tail"))
	if len(tail) != 3 {
		t.Fatalf("want tail (2 3 4), got %#v", tail)
	}
	wantInt(t, tail[0], 2)

	// The rest may be empty.
	src2 := `(match [1] [a & more] -> (count more))`
	wantInt(t, evalSrc(t, src2), 0)
}

func Test_Pattern_Vector_Rest_Wildcard(t *testing.T) {
	wantKw(t, evalSrc(t, "(match [9 1 2 3] [9 & _] -> :starts-with-nine)"), "starts-with-nine")
}

func Test_Pattern_Vector_As_Binds_Whole_Value(t *testing.T) {
	src := `
(match [1 2]
  [a b :as whole] -> {:a a :b b :whole whole})
`
	m := mustMap(t, evalSrc(t, src))
	wantInt(t, mget(t, m, "a"), 1)
	whole := mustVec(t, mget(t, m, "whole"))
	if len(whole) != 2 {
		t.Fatalf("want whole [1 2], got %#v", whole)
	}
}

func Test_Pattern_Map_Requires_Key_Presence(t *testing.T) {
	src := `
(def route (fn [req]
  (match req
    {:method "GET" :path p}  -> {:op :read :path p}
    {:method "POST" :path p} -> {:op :write :path p}
    _                        -> {:op :reject})))
[(get (route {:method "GET" :path "/a"}) :op)
 (get (route {:method "POST" :path "/a"}) :op)
 (get (route {:path "/a"}) :op)]
`
	xs := mustVec(t, evalSrc(t, src))
	wantKw(t, xs[0], "read")
	wantKw(t, xs[1], "write")
	wantKw(t, xs[2], "reject")
}

func Test_Pattern_Map_Ignores_Extra_Keys(t *testing.T) {
	wantInt(t, evalSrc(t, "(match {:a 1 :b 2 :c 3} {:a a} -> a)"), 1)
}

func Test_Pattern_Map_As_Binds_Whole_Map(t *testing.T) {
	src := `
(match {:x 1 :y 2}
  {:x x :as m} -> {:x x :count (count m)})
`
	m := mustMap(t, evalSrc(t, src))
	wantInt(t, mget(t, m, "x"), 1)
	wantInt(t, mget(t, m, "count"), 2)
}

func Test_Pattern_Or_Alternatives(t *testing.T) {
	src := `
(def weekend? (fn [d]
  (match d
    (or :sat :sun) -> true
    _              -> false)))
[(weekend? :sat) (weekend? :sun) (weekend? :mon)]
`
	xs := mustVec(t, evalSrc(t, src))
	wantBool(t, xs[0], true)
	wantBool(t, xs[1], true)
	wantBool(t, xs[2], false)
}

func Test_Pattern_Or_With_Bindings(t *testing.T) {
	// Whichever alternative matches provides the binding.
	src := `
(def payload (fn [msg]
  (match msg
    (or {:data d} [_ d]) -> d)))
[(payload {:data 1}) (payload [:tagged 2])]
`
	xs := mustVec(t, evalSrc(t, src))
	wantInt(t, xs[0], 1)
	wantInt(t, xs[1], 2)
}

func Test_Pattern_Or_Failed_Alternative_Leaves_No_Bindings(t *testing.T) {
	// The first alternative binds x then fails on the second element; the
	// match must still succeed cleanly through the second alternative.
	src := `
(match [1 2]
  (or [x 99] [_ x]) -> x)
`
	wantInt(t, evalSrc(t, src), 2)
}

func Test_Pattern_Quote_Matches_Symbol_Literally(t *testing.T) {
	src := `
(match 'start
  'stop  -> :no
  'start -> :yes)
`
	wantKw(t, evalSrc(t, src), "yes")
}

func Test_Pattern_Empty_List_Literal(t *testing.T) {
	src := `
(def kind (fn [v]
  (match v
    () -> :empty
    _  -> :not-empty)))
[(kind ()) (kind '(1))]
`
	xs := mustVec(t, evalSrc(t, src))
	wantKw(t, xs[0], "empty")
	wantKw(t, xs[1], "not-empty")
}

func Test_Pattern_Guard_Filters_And_Falls_Through(t *testing.T) {
	src := `
(def bucket (fn [n]
  (match n
    x when (< x 0)  -> :negative
    x when (< x 10) -> :small
    _               -> :large)))
[(bucket -1) (bucket 5) (bucket 50)]
`
	xs := mustVec(t, evalSrc(t, src))
	wantKw(t, xs[0], "negative")
	wantKw(t, xs[1], "small")
	wantKw(t, xs[2], "large")
}

func Test_Pattern_Guard_Sees_Clause_Bindings(t *testing.T) {
	src := `
(match [3 4]
  [a b] when (= (+ a b) 7) -> :seven
  _ -> :other)
`
	wantKw(t, evalSrc(t, src), "seven")
}

func Test_Pattern_No_Matching_Clause_Is_An_Error(t *testing.T) {
	err := evalErr(t, "(match 5 6 -> :six)")
	wantErrKind(t, err, KindNoMatch)

	// try turns it into a marker carrying the kind keyword.
	m := mustMap(t, evalSrc(t, "(try (match 5 6 -> :six))"))
	kind, _ := m.Get(Kw("kind"))
	wantKw(t, kind, "no-matching-clause")
}

func Test_Pattern_Match_Evaluates_Scrutinee_Once(t *testing.T) {
	src := `
(def hits (atom 0))
(match (swap! hits inc)
  0 -> :zero
  _ -> :other)
(deref hits)
`
	wantInt(t, evalSrc(t, src), 1)
}

func Test_Pattern_Match_Syntax_Errors(t *testing.T) {
	wantErrKind(t, evalErr(t, "(match 1 x :no-arrow)"), KindSyntax)
	wantErrKind(t, evalErr(t, "(match 1 x when -> :body)"), KindSyntax)
	wantErrKind(t, evalErr(t, "(match 1 x ->)"), KindSyntax)
	wantErrKind(t, evalErr(t, "(match 1)"), KindSyntax)
}

func Test_Pattern_Rest_Must_Be_Last_In_Params(t *testing.T) {
	wantErrKind(t, evalErr(t, "(fn [& more extra] more)"), KindSyntax)
}
