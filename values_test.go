package qi

import "testing"

func Test_Values_Truthiness(t *testing.T) {
	for _, v := range []Value{Nil, Bool(false)} {
		if Truthy(v) {
			t.Fatalf("%s should be falsy", FormatValue(v))
		}
	}
	truthy := []Value{
		Bool(true), Int(0), Float(0), Str(""), Kw("k"),
		EmptyList, Vec(nil), MapVal(NewMapObject()),
	}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Fatalf("%s should be truthy", FormatValue(v))
		}
	}
}

func Test_Values_Sequences_Compare_Across_Kinds(t *testing.T) {
	lst := List(Int(1), Int(2))
	vec := Vec([]Value{Int(1), Int(2)})
	if !Eq(lst, vec) || !Eq(vec, lst) {
		t.Fatalf("list and vector with equal elements should be equal")
	}
	if !Eq(EmptyList, Vec(nil)) {
		t.Fatalf("empty list and empty vector should be equal")
	}
	if Eq(lst, List(Int(1))) {
		t.Fatalf("length mismatch should not be equal")
	}
	if Eq(EmptyList, Nil) {
		t.Fatalf("the empty list is not nil")
	}
}

func Test_Values_Numbers_Compare_Within_Their_Kind(t *testing.T) {
	if Eq(Int(1), Float(1)) {
		t.Fatalf("an int never equals a float")
	}
	if !Eq(Float(1.5), Float(1.5)) || !Eq(Int(-3), Int(-3)) {
		t.Fatalf("same-kind numbers should be equal")
	}
}

func Test_Values_Maps_Compare_Unordered(t *testing.T) {
	a := NewMapObject()
	_ = a.Set(Kw("x"), Int(1))
	_ = a.Set(Kw("y"), Int(2))
	b := NewMapObject()
	_ = b.Set(Kw("y"), Int(2))
	_ = b.Set(Kw("x"), Int(1))
	if !Eq(MapVal(a), MapVal(b)) {
		t.Fatalf("insertion order should not affect map equality")
	}
	_ = b.Set(Kw("y"), Int(99))
	if Eq(MapVal(a), MapVal(b)) {
		t.Fatalf("differing values should not be equal")
	}
}

func Test_Values_Reference_Kinds_Compare_By_Identity(t *testing.T) {
	a1 := AtomVal(NewAtom(Int(1)))
	a2 := AtomVal(NewAtom(Int(1)))
	if Eq(a1, a2) {
		t.Fatalf("distinct atoms should not be equal")
	}
	if !Eq(a1, a1) {
		t.Fatalf("an atom should equal itself")
	}
}

func Test_Values_Interning(t *testing.T) {
	if Sym("x").Data != Sym("x").Data {
		t.Fatalf("same-name symbols should share one object")
	}
	if Kw("k").Data != Kw("k").Data {
		t.Fatalf("same-name keywords should share one object")
	}
	if Sym("x").Data == Sym("y").Data {
		t.Fatalf("distinct names must not share")
	}
	if Intern("z") != Sym("z").Data.(*Symbol) {
		t.Fatalf("Intern and Sym should agree")
	}
}

// --- map objects -------------------------------------------------------------------

func Test_Values_MapObject_Keeps_Insertion_Order(t *testing.T) {
	m := NewMapObject()
	_ = m.Set(Kw("b"), Int(1))
	_ = m.Set(Str("a"), Int(2))
	_ = m.Set(Int(3), Int(3))
	// Overwriting keeps the original position.
	_ = m.Set(Kw("b"), Int(10))

	if m.Len() != 3 {
		t.Fatalf("want 3 entries, got %d", m.Len())
	}
	ks := m.Keys()
	wantKw(t, ks[0], "b")
	wantStr(t, ks[1], "a")
	wantInt(t, ks[2], 3)
	v, ok := m.Get(Kw("b"))
	if !ok {
		t.Fatalf("missing :b")
	}
	wantInt(t, v, 10)
}

func Test_Values_MapObject_Rejects_Unhashable_Keys(t *testing.T) {
	m := NewMapObject()
	if err := m.Set(Float(1.5), Int(1)); err == nil {
		t.Fatalf("want error for float key")
	}
	if _, err := m.Assoc(Vec(nil), Int(1)); err == nil {
		t.Fatalf("want error for vector key")
	}
	if _, ok := m.Get(Float(1.5)); ok {
		t.Fatalf("unusable key kinds can never be present")
	}
}

func Test_Values_Assoc_Is_Persistent(t *testing.T) {
	m := NewMapObject()
	_ = m.Set(Kw("a"), Int(1))
	m2, err := m.Assoc(Kw("b"), Int(2))
	if err != nil {
		t.Fatalf("assoc: %v", err)
	}
	if m.Len() != 1 || m2.Len() != 2 {
		t.Fatalf("want 1 and 2 entries, got %d and %d", m.Len(), m2.Len())
	}
	if m.Has(Kw("b")) {
		t.Fatalf("assoc must not touch the original")
	}

	// Overwriting through Assoc keeps the key's position.
	m3, _ := m2.Assoc(Kw("a"), Int(100))
	wantKw(t, m3.Keys()[0], "a")
	v, _ := m3.Get(Kw("a"))
	wantInt(t, v, 100)
	v, _ = m2.Get(Kw("a"))
	wantInt(t, v, 1)
}

func Test_Values_Dissoc_Is_Persistent(t *testing.T) {
	m := NewMapObject()
	_ = m.Set(Kw("a"), Int(1))
	_ = m.Set(Kw("b"), Int(2))
	_ = m.Set(Kw("c"), Int(3))

	m2 := m.Dissoc(Kw("b"))
	if m.Len() != 3 || m2.Len() != 2 {
		t.Fatalf("want 3 and 2 entries, got %d and %d", m.Len(), m2.Len())
	}
	wantKw(t, m2.Keys()[0], "a")
	wantKw(t, m2.Keys()[1], "c")

	if m.Dissoc(Kw("zzz")) != m {
		t.Fatalf("removing an absent key should return the same object")
	}
	if m.Dissoc(Float(1.5)) != m {
		t.Fatalf("removing an impossible key should return the same object")
	}
}

// --- sequences -----------------------------------------------------------------------

func Test_Values_List_Construction_Round_Trips(t *testing.T) {
	xs := []Value{Int(1), Str("two"), Kw("three")}
	lst := listFromSlice(xs)
	back := mustList(t, lst)
	if len(back) != 3 {
		t.Fatalf("want 3 elements, got %d", len(back))
	}
	for i := range xs {
		if !Eq(xs[i], back[i]) {
			t.Fatalf("element %d: want %s, got %s", i, FormatValue(xs[i]), FormatValue(back[i]))
		}
	}
	if got := cellSlice(nil); len(got) != 0 {
		t.Fatalf("empty cell chain should view as no elements")
	}
}

func Test_Values_SeqSlice_Views(t *testing.T) {
	if xs, ok := seqSlice(Vec([]Value{Int(1)})); !ok || len(xs) != 1 {
		t.Fatalf("vector view failed")
	}
	if xs, ok := seqSlice(List(Int(1), Int(2))); !ok || len(xs) != 2 {
		t.Fatalf("list view failed")
	}
	if _, ok := seqSlice(Str("nope")); ok {
		t.Fatalf("strings are not sequences")
	}
}

func Test_Values_Cons_Shares_The_Tail(t *testing.T) {
	base := List(Int(2), Int(3))
	ext := Cons(Int(1), base)
	xs := mustList(t, ext)
	for i, want := range []int64{1, 2, 3} {
		wantInt(t, xs[i], want)
	}
	// The original list is unchanged.
	ys := mustList(t, base)
	if len(ys) != 2 {
		t.Fatalf("cons must not grow the original list")
	}
}

// --- atoms -----------------------------------------------------------------------------

func Test_Values_Atom_Load_Store_Swap(t *testing.T) {
	a := NewAtom(Int(1))
	wantInt(t, a.Load(), 1)
	a.Store(Str("s"))
	wantStr(t, a.Load(), "s")
	v, err := a.Swap(func(cur Value) (Value, error) {
		return Int(41 + 1), nil
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	wantInt(t, v, 42)
	wantInt(t, a.Load(), 42)
}

func Test_Values_Vector_Updates_Do_Not_Alias(t *testing.T) {
	v := evalSrc(t, `
(def v [1 2])
{:grown (conj v 3) :orig v}`)
	m := mustMap(t, v)
	grown := mustVec(t, mget(t, m, "grown"))
	if len(grown) != 3 {
		t.Fatalf("want 3 elements, got %d", len(grown))
	}
	orig := mustVec(t, mget(t, m, "orig"))
	if len(orig) != 2 {
		t.Fatalf("conj must not grow the original vector")
	}
}
