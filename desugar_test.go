package qi

import "testing"

func Test_Desugar_Plain_Pipeline_Threads_Value(t *testing.T) {
	wantInt(t, evalSrc(t, "(5 |> (+ 1) |> (* 2))"), 12)
	wantInt(t, evalSrc(t, "(5 |> inc)"), 6)
	wantInt(t, evalSrc(t, "(5 |> (fn [x] (* x x)))"), 25)
}

func Test_Desugar_Placeholder_Positions_Input(t *testing.T) {
	wantInt(t, evalSrc(t, "(10 |> (- _ 3))"), 7)
	wantInt(t, evalSrc(t, "(3 |> (* _ _))"), 9)
	// Without a placeholder the input is appended last.
	wantInt(t, evalSrc(t, "(5 |> (+ 10))"), 15)
}

func Test_Desugar_Pipeline_As_First_Element_Folds_Recursively(t *testing.T) {
	wantInt(t, evalSrc(t, "((5 |> inc) |> inc)"), 7)
}

func Test_Desugar_Railway_Applies_Stages_On_Success(t *testing.T) {
	wantInt(t, evalSrc(t, "(2 |>? inc |>? inc)"), 4)
}

func Test_Desugar_Railway_Unwraps_Ok_Before_Stage(t *testing.T) {
	wantInt(t, evalSrc(t, "((ok 2) |>? inc)"), 3)
}

func Test_Desugar_Railway_Skips_Stages_After_An_Error(t *testing.T) {
	src := `
(def hits (atom 0))
(def bump! (fn [x] (swap! hits inc) (+ x 1)))
(def good (2 |>? bump!))
(def bad ((err "boom") |>? bump!))
{:good good :bad-is-error (error? bad) :hits (deref hits)}
`
	m := mustMap(t, evalSrc(t, src))
	wantInt(t, mget(t, m, "good"), 3)
	wantBool(t, mget(t, m, "bad-is-error"), true)
	wantInt(t, mget(t, m, "hits"), 1)
}

func Test_Desugar_Railway_Error_Marker_Passes_Through_Unchanged(t *testing.T) {
	src := `
(def e (err :db "down"))
(def out (e |>? inc |>? inc))
(= e out)
`
	wantBool(t, evalSrc(t, src), true)
}

func Test_Desugar_Railway_Stage_Producing_Marker_Stops_The_Chain(t *testing.T) {
	src := `
(def check (fn [n] (if (> n 10) (err "too big") n)))
{:small (5 |>? check |>? inc)
 :big   (50 |>? check |>? inc)}
`
	m := mustMap(t, evalSrc(t, src))
	wantInt(t, mget(t, m, "small"), 6)
	big := mustMap(t, mget(t, m, "big"))
	msg, _ := big.Get(Kw("error"))
	wantStr(t, msg, "too big")
}

func Test_Desugar_Tap_Yields_Original_Value(t *testing.T) {
	src := `
(def seen (atom nil))
(def out (5 |> inc tap> (reset! seen _) |> (* 2)))
{:out out :seen (deref seen)}
`
	m := mustMap(t, evalSrc(t, src))
	wantInt(t, mget(t, m, "out"), 12)
	wantInt(t, mget(t, m, "seen"), 6)
}

func Test_Desugar_Parallel_Stage_Maps_In_Order(t *testing.T) {
	xs := mustVec(t, evalSrc(t, "([1 2 3] ||> (* 2))"))
	if len(xs) != 3 {
		t.Fatalf("want 3 results, got %#v", xs)
	}
	wantInt(t, xs[0], 2)
	wantInt(t, xs[1], 4)
	wantInt(t, xs[2], 6)
}

func Test_Desugar_Async_Stage_Returns_A_Channel(t *testing.T) {
	wantInt(t, evalSrc(t, "(recv! (21 ~> (* 2)))"), 42)
}

func Test_Desugar_Stages_Mix_In_One_Chain(t *testing.T) {
	src := `
(def log (atom []))
(2
 |> inc
 tap> (swap! log conj _)
 |>? (fn [n] (if (= n 3) (ok (* n 10)) (err "unexpected")))
 |>? inc)
`
	// (ok 30) is unwrapped before the final inc.
	wantInt(t, evalSrc(t, src), 31)
}

func Test_Desugar_Macro_Produced_Chains_Fold_Too(t *testing.T) {
	src := `
(def twice (mac [x] ` + "`" + `(~x |> inc |> inc)))
(twice 40)
`
	wantInt(t, evalSrc(t, src), 42)
}

func Test_Desugar_Quote_Protects_Pipelines(t *testing.T) {
	items := mustList(t, evalSrc(t, "'(5 |> inc)"))
	if len(items) != 3 {
		t.Fatalf("want unrewritten 3-element list, got %#v", items)
	}
	if items[1].Tag != TSymbol || items[1].Data.(*Symbol).Name != "|>" {
		t.Fatalf("want |> symbol preserved, got %#v", items[1])
	}
}

func Test_Desugar_Unquote_Reenables_Pipelines(t *testing.T) {
	wantInt(t, evalSrc(t, "(first `(~(5 |> inc)))"), 6)
}

func Test_Desugar_Pipeline_Inside_Vector_And_Map_Literals(t *testing.T) {
	xs := mustVec(t, evalSrc(t, "[(1 |> inc) (2 |> inc)]"))
	wantInt(t, xs[0], 2)
	wantInt(t, xs[1], 3)

	m := mustMap(t, evalSrc(t, "{:v (10 |> (- _ 3))}"))
	wantInt(t, mget(t, m, "v"), 7)
}

func Test_Desugar_Malformed_Chains(t *testing.T) {
	wantErrKind(t, evalErr(t, "(5 |>)"), KindSyntax)
	wantErrKind(t, evalErr(t, "(5 |> |> inc)"), KindSyntax)
	wantErrKind(t, evalErr(t, "(5 |> inc |>)"), KindSyntax)
	wantErrKind(t, evalErr(t, "(5 |> inc 7 inc)"), KindSyntax)
}

func Test_Desugar_Leading_Operator_Is_Not_A_Chain(t *testing.T) {
	// Operators only mean something infix; in head position the symbol is
	// just an unbound name.
	wantErrKind(t, evalErr(t, "(|> 5)"), KindUnbound)
}
