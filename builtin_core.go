// builtin_core.go — the core native library: arithmetic, comparison,
// predicates, collections, conversion, printing, error markers.
//
// Natives receive evaluated, arity-checked arguments (interpreter_exec.go)
// and return result-style errors like the engine itself.

package qi

import (
	"os"
	"time"
	"unicode/utf8"
)

// --- numeric helpers --------------------------------------------------------

// numParts views v as both int and float; the float form is always filled.
func numParts(name string, v Value) (f float64, i int64, isFloat bool, err error) {
	switch v.Tag {
	case TInt:
		n := v.Data.(int64)
		return float64(n), n, false, nil
	case TFloat:
		return v.Data.(float64), 0, true, nil
	}
	return 0, 0, false, errf(KindTypeMismatch, "%s needs numbers, got %s", name, TypeName(v))
}

// numCombine applies the int or float variant of an operator, promoting to
// float when either operand is one.
func numCombine(name string, a, b Value,
	fi func(int64, int64) (int64, error),
	ff func(float64, float64) (float64, error)) (Value, error) {
	af, ai, aFloat, err := numParts(name, a)
	if err != nil {
		return Value{}, err
	}
	bf, bi, bFloat, err := numParts(name, b)
	if err != nil {
		return Value{}, err
	}
	if aFloat || bFloat {
		f, err := ff(af, bf)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	}
	n, err := fi(ai, bi)
	if err != nil {
		return Value{}, err
	}
	return Int(n), nil
}

// numCompare orders two numbers as -1, 0 or 1. Two ints compare exactly;
// mixed operands compare as floats.
func numCompare(name string, a, b Value) (int, error) {
	af, ai, aFloat, err := numParts(name, a)
	if err != nil {
		return 0, err
	}
	bf, bi, bFloat, err := numParts(name, b)
	if err != nil {
		return 0, err
	}
	if !aFloat && !bFloat {
		switch {
		case ai < bi:
			return -1, nil
		case ai > bi:
			return 1, nil
		}
		return 0, nil
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	}
	return 0, nil
}

func registerCoreBuiltins(ip *Interp) {
	// --- arithmetic ----------------------------------------------------------

	type arithOp struct {
		name string
		min  int
		unit int64
		fi   func(int64, int64) (int64, error)
		ff   func(float64, float64) (float64, error)
	}
	for _, op := range []arithOp{
		{"+", 0, 0,
			func(a, b int64) (int64, error) { return a + b, nil },
			func(a, b float64) (float64, error) { return a + b, nil }},
		{"-", 1, 0,
			func(a, b int64) (int64, error) { return a - b, nil },
			func(a, b float64) (float64, error) { return a - b, nil }},
		{"*", 0, 1,
			func(a, b int64) (int64, error) { return a * b, nil },
			func(a, b float64) (float64, error) { return a * b, nil }},
		{"/", 2, 1,
			func(a, b int64) (int64, error) {
				if b == 0 {
					return 0, errf(KindTypeMismatch, "divide by zero")
				}
				return a / b, nil
			},
			func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, errf(KindTypeMismatch, "divide by zero")
				}
				return a / b, nil
			}},
	} {
		op := op
		ip.RegisterNative(op.name, Arity{op.min, -1}, func(_ *Interp, args []Value) (Value, error) {
			if len(args) == 0 {
				return Int(op.unit), nil
			}
			if len(args) == 1 {
				if op.name == "-" {
					return numCombine(op.name, Int(0), args[0], op.fi, op.ff)
				}
				if _, _, _, err := numParts(op.name, args[0]); err != nil {
					return Value{}, err
				}
				return args[0], nil
			}
			acc := args[0]
			if _, _, _, err := numParts(op.name, acc); err != nil {
				return Value{}, err
			}
			for _, v := range args[1:] {
				var err error
				if acc, err = numCombine(op.name, acc, v, op.fi, op.ff); err != nil {
					return Value{}, err
				}
			}
			return acc, nil
		})
	}
	setBuiltinDoc(ip, "+", `Add numbers. Ints stay ints; any float operand promotes to float.
(+ 1 2 3) ; 6`)
	setBuiltinDoc(ip, "-", `Subtract left to right; one argument negates.
(- 10 3 2) ; 5`)
	setBuiltinDoc(ip, "*", `Multiply numbers. (*) is 1.`)
	setBuiltinDoc(ip, "/", `Divide left to right. Int division truncates; a zero divisor is an
error.
(/ 7 2) ; 3`)

	ip.RegisterNative("mod", Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
		if args[0].Tag != TInt || args[1].Tag != TInt {
			return Value{}, errf(KindTypeMismatch, "mod needs ints, got %s and %s", TypeName(args[0]), TypeName(args[1]))
		}
		d := args[1].Data.(int64)
		if d == 0 {
			return Value{}, errf(KindTypeMismatch, "divide by zero")
		}
		return Int(args[0].Data.(int64) % d), nil
	})
	setBuiltinDoc(ip, "mod", `Integer remainder; the sign follows the dividend.
(mod 7 3) ; 1`)

	// --- comparison ----------------------------------------------------------

	ip.RegisterNative("=", Arity{2, -1}, func(_ *Interp, args []Value) (Value, error) {
		for _, v := range args[1:] {
			if !Eq(args[0], v) {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	})
	setBuiltinDoc(ip, "=", `Structural equality. Lists and vectors compare as sequences, maps by
entries; an int never equals a float.`)

	ip.RegisterNative("not=", Arity{2, -1}, func(_ *Interp, args []Value) (Value, error) {
		for _, v := range args[1:] {
			if !Eq(args[0], v) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	})

	for _, op := range []struct {
		name string
		ok   func(int) bool
	}{
		{"<", func(c int) bool { return c < 0 }},
		{"<=", func(c int) bool { return c <= 0 }},
		{">", func(c int) bool { return c > 0 }},
		{">=", func(c int) bool { return c >= 0 }},
	} {
		op := op
		ip.RegisterNative(op.name, Arity{2, -1}, func(_ *Interp, args []Value) (Value, error) {
			for i := 0; i+1 < len(args); i++ {
				c, err := numCompare(op.name, args[i], args[i+1])
				if err != nil {
					return Value{}, err
				}
				if !op.ok(c) {
					return Bool(false), nil
				}
			}
			return Bool(true), nil
		})
	}
	setBuiltinDoc(ip, "<", `Numeric less-than over the whole chain: (< 1 2 3) is true.`)

	ip.RegisterNative("not", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		return Bool(!Truthy(args[0])), nil
	})

	// and and or are ordinary natives: every argument evaluates before the
	// call, there is no short-circuit. Result follows Lisp value semantics.
	ip.RegisterNative("and", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		out := Bool(true)
		for _, v := range args {
			if !Truthy(v) {
				return v, nil
			}
			out = v
		}
		return out, nil
	})
	ip.RegisterNative("or", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		out := Nil
		for _, v := range args {
			if Truthy(v) {
				return v, nil
			}
			out = v
		}
		return out, nil
	})
	setBuiltinDoc(ip, "and", `First falsy argument, else the last. Strict: all arguments evaluate.`)
	setBuiltinDoc(ip, "or", `First truthy argument, else the last. Strict: all arguments evaluate.
In pattern position (or ...) is an alternative pattern instead.`)

	// --- predicates ----------------------------------------------------------

	for _, p := range []struct {
		name string
		f    func(Value) bool
	}{
		{"nil?", func(v Value) bool { return v.Tag == TNil }},
		{"int?", func(v Value) bool { return v.Tag == TInt }},
		{"float?", func(v Value) bool { return v.Tag == TFloat }},
		{"number?", func(v Value) bool { return v.Tag == TInt || v.Tag == TFloat }},
		{"string?", func(v Value) bool { return v.Tag == TString }},
		{"keyword?", func(v Value) bool { return v.Tag == TKeyword }},
		{"symbol?", func(v Value) bool { return v.Tag == TSymbol }},
		{"list?", func(v Value) bool { return v.Tag == TList }},
		{"vector?", func(v Value) bool { return v.Tag == TVector }},
		{"map?", func(v Value) bool { return v.Tag == TMap }},
		{"fn?", func(v Value) bool { return v.Tag == TFunc }},
		{"atom?", func(v Value) bool { return v.Tag == TAtom }},
		{"chan?", func(v Value) bool { return v.Tag == TChan }},
		{"error?", isErrorMarker},
	} {
		p := p
		ip.RegisterNative(p.name, Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
			return Bool(p.f(args[0])), nil
		})
	}
	setBuiltinDoc(ip, "error?", `True for an error marker: any map carrying the :error key.`)

	ip.RegisterNative("empty?", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TNil:
			return Bool(true), nil
		case TList:
			return Bool(listCell(v) == nil), nil
		case TVector:
			return Bool(len(v.Data.([]Value)) == 0), nil
		case TMap:
			return Bool(v.Data.(*MapObject).Len() == 0), nil
		case TString:
			return Bool(v.Data.(string) == ""), nil
		}
		return Value{}, errf(KindTypeMismatch, "empty? needs a collection or string, got %s", TypeName(args[0]))
	})

	// --- collections ---------------------------------------------------------

	ip.RegisterNative("list", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		return listFromSlice(args), nil
	})
	ip.RegisterNative("vector", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		return Vec(append([]Value(nil), args...)), nil
	})

	ip.RegisterNative("cons", Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
		switch coll := args[1]; coll.Tag {
		case TNil:
			return List(args[0]), nil
		case TList:
			return Cons(args[0], coll), nil
		case TVector:
			xs := coll.Data.([]Value)
			out := make([]Value, 0, len(xs)+1)
			out = append(out, args[0])
			out = append(out, xs...)
			return listFromSlice(out), nil
		}
		return Value{}, errf(KindTypeMismatch, "cons needs a list or vector, got %s", TypeName(args[1]))
	})
	setBuiltinDoc(ip, "cons", `Prepend to a sequence. The result is always a list.
(cons 1 [2 3]) ; (1 2 3)`)

	ip.RegisterNative("first", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TNil:
			return Nil, nil
		case TList:
			if c := listCell(v); c != nil {
				return c.Head, nil
			}
			return Nil, nil
		case TVector:
			if xs := v.Data.([]Value); len(xs) > 0 {
				return xs[0], nil
			}
			return Nil, nil
		}
		return Value{}, errf(KindTypeMismatch, "first needs a sequence, got %s", TypeName(args[0]))
	})

	ip.RegisterNative("rest", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TNil:
			return EmptyList, nil
		case TList:
			if c := listCell(v); c != nil {
				return cellVal(c.Tail), nil
			}
			return EmptyList, nil
		case TVector:
			if xs := v.Data.([]Value); len(xs) > 1 {
				return listFromSlice(xs[1:]), nil
			}
			return EmptyList, nil
		}
		return Value{}, errf(KindTypeMismatch, "rest needs a sequence, got %s", TypeName(args[0]))
	})
	setBuiltinDoc(ip, "rest", `Everything after the first element, always as a list; () when empty.`)

	ip.RegisterNative("nth", Arity{2, 3}, func(_ *Interp, args []Value) (Value, error) {
		xs, ok := seqSlice(args[0])
		if !ok {
			return Value{}, errf(KindTypeMismatch, "nth needs a sequence, got %s", TypeName(args[0]))
		}
		if args[1].Tag != TInt {
			return Value{}, errf(KindTypeMismatch, "nth needs an int index, got %s", TypeName(args[1]))
		}
		i := args[1].Data.(int64)
		if i < 0 || i >= int64(len(xs)) {
			if len(args) == 3 {
				return args[2], nil
			}
			return Value{}, errf(KindNative, "nth: index %d out of range for %d elements", i, len(xs))
		}
		return xs[i], nil
	})
	setBuiltinDoc(ip, "nth", `Element at a zero-based index. Out of range is an error unless a
fallback is given: (nth coll i fallback).`)

	ip.RegisterNative("count", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TNil:
			return Int(0), nil
		case TList:
			return Int(int64(listCell(v).Len())), nil
		case TVector:
			return Int(int64(len(v.Data.([]Value)))), nil
		case TMap:
			return Int(int64(v.Data.(*MapObject).Len())), nil
		case TString:
			return Int(int64(utf8.RuneCountInString(v.Data.(string)))), nil
		}
		return Value{}, errf(KindTypeMismatch, "count needs a collection or string, got %s", TypeName(args[0]))
	})
	setBuiltinDoc(ip, "count", `Number of elements; runes for strings, 0 for nil.`)

	ip.RegisterNative("conj", Arity{2, -1}, func(_ *Interp, args []Value) (Value, error) {
		switch coll := args[0]; coll.Tag {
		case TNil:
			return listFromSlice(reverseSlice(args[1:])), nil
		case TList:
			out := coll
			for _, v := range args[1:] {
				out = Cons(v, out)
			}
			return out, nil
		case TVector:
			xs := coll.Data.([]Value)
			out := make([]Value, 0, len(xs)+len(args)-1)
			out = append(out, xs...)
			out = append(out, args[1:]...)
			return Vec(out), nil
		}
		return Value{}, errf(KindTypeMismatch, "conj needs a list or vector, got %s", TypeName(args[0]))
	})
	setBuiltinDoc(ip, "conj", `Add elements where it is cheap: the front of a list, the back of a
vector.`)

	ip.RegisterNative("assoc", Arity{3, -1}, func(_ *Interp, args []Value) (Value, error) {
		if args[0].Tag != TMap {
			return Value{}, errf(KindTypeMismatch, "assoc needs a map, got %s", TypeName(args[0]))
		}
		if len(args)%2 != 1 {
			return Value{}, errf(KindArity, "assoc needs key/value pairs")
		}
		m := args[0].Data.(*MapObject)
		for i := 1; i < len(args); i += 2 {
			next, err := m.Assoc(args[i], args[i+1])
			if err != nil {
				return Value{}, err
			}
			m = next
		}
		return MapVal(m), nil
	})
	setBuiltinDoc(ip, "assoc", `Copy of a map with keys bound to values; the original is untouched.
(assoc m :a 1 :b 2)`)

	ip.RegisterNative("dissoc", Arity{2, -1}, func(_ *Interp, args []Value) (Value, error) {
		if args[0].Tag != TMap {
			return Value{}, errf(KindTypeMismatch, "dissoc needs a map, got %s", TypeName(args[0]))
		}
		m := args[0].Data.(*MapObject)
		for _, k := range args[1:] {
			m = m.Dissoc(k)
		}
		return MapVal(m), nil
	})

	ip.RegisterNative("get", Arity{2, 3}, func(_ *Interp, args []Value) (Value, error) {
		miss := Nil
		if len(args) == 3 {
			miss = args[2]
		}
		switch v := args[0]; v.Tag {
		case TMap:
			if got, ok := v.Data.(*MapObject).Get(args[1]); ok {
				return got, nil
			}
		case TVector:
			if args[1].Tag == TInt {
				xs := v.Data.([]Value)
				if i := args[1].Data.(int64); i >= 0 && i < int64(len(xs)) {
					return xs[i], nil
				}
			}
		}
		return miss, nil
	})
	setBuiltinDoc(ip, "get", `Map lookup or vector index; the fallback (default nil) covers misses
and non-indexable subjects.`)

	ip.RegisterNative("keys", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		if args[0].Tag != TMap {
			return Value{}, errf(KindTypeMismatch, "keys needs a map, got %s", TypeName(args[0]))
		}
		return listFromSlice(args[0].Data.(*MapObject).Keys()), nil
	})
	ip.RegisterNative("vals", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		if args[0].Tag != TMap {
			return Value{}, errf(KindTypeMismatch, "vals needs a map, got %s", TypeName(args[0]))
		}
		m := args[0].Data.(*MapObject)
		out := make([]Value, 0, m.Len())
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			out = append(out, v)
		}
		return listFromSlice(out), nil
	})
	setBuiltinDoc(ip, "keys", `Map keys as a list, in insertion order.`)
	setBuiltinDoc(ip, "vals", `Map values as a list, in key order.`)

	ip.RegisterNative("contains?", Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TMap:
			return Bool(v.Data.(*MapObject).Has(args[1])), nil
		case TList, TVector:
			xs, _ := seqSlice(v)
			for _, x := range xs {
				if Eq(x, args[1]) {
					return Bool(true), nil
				}
			}
			return Bool(false), nil
		case TNil:
			return Bool(false), nil
		}
		return Value{}, errf(KindTypeMismatch, "contains? needs a collection, got %s", TypeName(args[0]))
	})
	setBuiltinDoc(ip, "contains?", `Key presence for maps, element membership for sequences.`)

	ip.RegisterNative("concat", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		var out []Value
		for _, a := range args {
			if a.Tag == TNil {
				continue
			}
			xs, ok := seqSlice(a)
			if !ok {
				return Value{}, errf(KindTypeMismatch, "concat needs sequences, got %s", TypeName(a))
			}
			out = append(out, xs...)
		}
		return listFromSlice(out), nil
	})

	ip.RegisterNative("range", Arity{1, 3}, func(_ *Interp, args []Value) (Value, error) {
		for _, a := range args {
			if a.Tag != TInt {
				return Value{}, errf(KindTypeMismatch, "range needs ints, got %s", TypeName(a))
			}
		}
		start, end, step := int64(0), int64(0), int64(1)
		switch len(args) {
		case 1:
			end = args[0].Data.(int64)
		case 2:
			start, end = args[0].Data.(int64), args[1].Data.(int64)
		case 3:
			start, end, step = args[0].Data.(int64), args[1].Data.(int64), args[2].Data.(int64)
			if step == 0 {
				return Value{}, errf(KindTypeMismatch, "range step must not be zero")
			}
		}
		var out []Value
		if step > 0 {
			for i := start; i < end; i += step {
				out = append(out, Int(i))
			}
		} else {
			for i := start; i > end; i += step {
				out = append(out, Int(i))
			}
		}
		return listFromSlice(out), nil
	})
	setBuiltinDoc(ip, "range", `Ints from start (default 0) up to end, exclusive. A negative step
counts down.
(range 3)      ; (0 1 2)
(range 3 0 -1) ; (3 2 1)`)

	ip.RegisterNative("reverse", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TNil:
			return EmptyList, nil
		case TList:
			return listFromSlice(reverseSlice(cellSlice(listCell(v)))), nil
		case TVector:
			return Vec(reverseSlice(v.Data.([]Value))), nil
		}
		return Value{}, errf(KindTypeMismatch, "reverse needs a sequence, got %s", TypeName(args[0]))
	})

	ip.RegisterNative("map", Arity{2, 2}, func(ip *Interp, args []Value) (Value, error) {
		xs, err := seqArg("map", args[1])
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, len(xs))
		for i, x := range xs {
			v, err := ip.Apply(args[0], []Value{x})
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return sameSeqKind(args[1], out), nil
	})
	setBuiltinDoc(ip, "map", `Apply f to every element. The result keeps the input's kind; mapping
a vector yields a vector.`)

	ip.RegisterNative("filter", Arity{2, 2}, func(ip *Interp, args []Value) (Value, error) {
		xs, err := seqArg("filter", args[1])
		if err != nil {
			return Value{}, err
		}
		var out []Value
		for _, x := range xs {
			keep, err := ip.Apply(args[0], []Value{x})
			if err != nil {
				return Value{}, err
			}
			if Truthy(keep) {
				out = append(out, x)
			}
		}
		return sameSeqKind(args[1], out), nil
	})

	ip.RegisterNative("reduce", Arity{3, 3}, func(ip *Interp, args []Value) (Value, error) {
		xs, err := seqArg("reduce", args[2])
		if err != nil {
			return Value{}, err
		}
		acc := args[1]
		for _, x := range xs {
			if acc, err = ip.Apply(args[0], []Value{acc, x}); err != nil {
				return Value{}, err
			}
		}
		return acc, nil
	})
	setBuiltinDoc(ip, "reduce", `Fold a sequence: (reduce f init coll) calls (f acc x) left to right.`)

	ip.RegisterNative("apply", Arity{2, -1}, func(ip *Interp, args []Value) (Value, error) {
		last := args[len(args)-1]
		var tail []Value
		if last.Tag != TNil {
			xs, ok := seqSlice(last)
			if !ok {
				return Value{}, errf(KindTypeMismatch, "apply needs a sequence last, got %s", TypeName(last))
			}
			tail = xs
		}
		call := make([]Value, 0, len(args)-2+len(tail))
		call = append(call, args[1:len(args)-1]...)
		call = append(call, tail...)
		return ip.Apply(args[0], call)
	})
	setBuiltinDoc(ip, "apply", `Call f with the last argument spread: (apply f a [b c]) is (f a b c).`)

	// --- conversion ----------------------------------------------------------

	ip.RegisterNative("str", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		var b []byte
		for _, v := range args {
			if v.Tag == TNil {
				continue
			}
			b = append(b, DisplayValue(v)...)
		}
		return Str(string(b)), nil
	})
	setBuiltinDoc(ip, "str", `Concatenate display forms: strings unquoted, nil contributes nothing.
(str "n=" 42) ; "n=42"`)

	ip.RegisterNative("type", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		return Kw(TypeName(args[0])), nil
	})
	setBuiltinDoc(ip, "type", `Kind of a value as a keyword: (type 1) is :int.`)

	ip.RegisterNative("name", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TKeyword:
			return Str(v.Data.(*Keyword).Name), nil
		case TSymbol:
			return Str(v.Data.(*Symbol).Name), nil
		case TString:
			return v, nil
		}
		return Value{}, errf(KindTypeMismatch, "name needs a keyword, symbol or string, got %s", TypeName(args[0]))
	})

	ip.RegisterNative("keyword", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TKeyword:
			return v, nil
		case TString:
			return Kw(v.Data.(string)), nil
		case TSymbol:
			return Kw(v.Data.(*Symbol).Name), nil
		}
		return Value{}, errf(KindTypeMismatch, "keyword needs a string or symbol, got %s", TypeName(args[0]))
	})

	ip.RegisterNative("symbol", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TSymbol:
			return v, nil
		case TString:
			return Sym(v.Data.(string)), nil
		case TKeyword:
			return Sym(v.Data.(*Keyword).Name), nil
		}
		return Value{}, errf(KindTypeMismatch, "symbol needs a string or keyword, got %s", TypeName(args[0]))
	})

	ip.RegisterNative("gensym", Arity{0, 1}, func(ip *Interp, args []Value) (Value, error) {
		prefix := ""
		if len(args) == 1 {
			if args[0].Tag != TString {
				return Value{}, errf(KindTypeMismatch, "gensym prefix must be a string, got %s", TypeName(args[0]))
			}
			prefix = args[0].Data.(string)
		}
		return ip.Gensym(prefix), nil
	})
	setBuiltinDoc(ip, "gensym", `Fresh, never-before-seen symbol, for macros that introduce bindings.`)

	// --- printing ------------------------------------------------------------

	printArgs := func(args []Value, readable, newline bool) {
		var b []byte
		for i, v := range args {
			if i > 0 {
				b = append(b, ' ')
			}
			if readable {
				b = append(b, FormatValue(v)...)
			} else {
				b = append(b, DisplayValue(v)...)
			}
		}
		if newline {
			b = append(b, '\n')
		}
		os.Stdout.Write(b)
	}
	ip.RegisterNative("print", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		printArgs(args, false, false)
		return Nil, nil
	})
	ip.RegisterNative("println", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		printArgs(args, false, true)
		return Nil, nil
	})
	ip.RegisterNative("pr", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		printArgs(args, true, false)
		return Nil, nil
	})
	ip.RegisterNative("prn", Arity{0, -1}, func(_ *Interp, args []Value) (Value, error) {
		printArgs(args, true, true)
		return Nil, nil
	})
	setBuiltinDoc(ip, "println", `Print display forms separated by spaces, then a newline.`)
	setBuiltinDoc(ip, "prn", `Print readable forms (strings quoted), then a newline.`)

	// --- error markers -------------------------------------------------------

	ip.RegisterNative("err", Arity{1, 2}, func(_ *Interp, args []Value) (Value, error) {
		kind := kwVal(kwUser)
		msg := args[0]
		if len(args) == 2 {
			kind, msg = args[0], args[1]
			if kind.Tag != TKeyword {
				return Value{}, errf(KindTypeMismatch, "err kind must be a keyword, got %s", TypeName(kind))
			}
		}
		if msg.Tag != TString {
			return Value{}, errf(KindTypeMismatch, "err message must be a string, got %s", TypeName(msg))
		}
		return errorMarker(msg.Data.(string), kind), nil
	})
	setBuiltinDoc(ip, "err", `Build an error marker: (err "boom") or (err :db "boom"). Markers are
plain maps {:error msg :kind kw}; railway pipelines short-circuit on them.`)

	ip.RegisterNative("unwrap", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		// Only the exact single-entry {:ok v} shape unwraps; richer maps that
		// happen to carry :ok (try-recv! results) pass through.
		if v := args[0]; v.Tag == TMap {
			if m := v.Data.(*MapObject); m.Len() == 1 {
				if inner, ok := m.Get(kwVal(kwOk)); ok {
					return inner, nil
				}
			}
		}
		return args[0], nil
	})
	setBuiltinDoc(ip, "unwrap", `Strip a {:ok v} wrapper; anything else passes through unchanged.`)

	ip.RegisterNative("throw", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		switch v := args[0]; {
		case v.Tag == TString:
			return Value{}, &Error{Kind: KindNative, Msg: v.Data.(string)}
		case isErrorMarker(v):
			msg := "error"
			if m, ok := v.Data.(*MapObject).Get(kwVal(kwError)); ok && m.Tag == TString {
				msg = m.Data.(string)
			}
			return Value{}, &Error{Kind: KindNative, Msg: msg, marker: v}
		}
		return Value{}, errf(KindTypeMismatch, "throw needs a message or an error marker, got %s", TypeName(args[0]))
	})
	setBuiltinDoc(ip, "throw", `Raise a real error from a message or marker. try catches it; a thrown
marker comes back from try unchanged.`)

	// --- docs, time, version ---------------------------------------------------

	ip.RegisterNative("doc", Arity{1, 1}, func(ip *Interp, args []Value) (Value, error) {
		var name string
		switch v := args[0]; v.Tag {
		case TString:
			name = v.Data.(string)
		case TSymbol:
			name = v.Data.(*Symbol).Name
		case TFunc, TMacro:
			f := v.Data.(*Func)
			if f.Native != "" {
				name = f.Native
			} else {
				name = f.Name
			}
		default:
			return Value{}, errf(KindTypeMismatch, "doc needs a name or function, got %s", TypeName(args[0]))
		}
		if d, ok := ip.Doc(name); ok {
			return Str(d), nil
		}
		return Nil, nil
	})
	setBuiltinDoc(ip, "doc", `Docstring for a native, by name or by the function itself; nil when
none is recorded.`)

	ip.RegisterNative("sleep", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		if args[0].Tag != TInt {
			return Value{}, errf(KindTypeMismatch, "sleep needs milliseconds as an int, got %s", TypeName(args[0]))
		}
		time.Sleep(time.Duration(args[0].Data.(int64)) * time.Millisecond)
		return Nil, nil
	})
	ip.RegisterNative("now-ms", Arity{0, 0}, func(_ *Interp, args []Value) (Value, error) {
		return Int(time.Now().UnixMilli()), nil
	})
	setBuiltinDoc(ip, "sleep", `Block the calling goroutine for n milliseconds.`)
	setBuiltinDoc(ip, "now-ms", `Wall-clock time in milliseconds since the Unix epoch.`)

	ip.RegisterNative("version", Arity{0, 0}, func(_ *Interp, args []Value) (Value, error) {
		return Str(Version), nil
	})
}

// seqArg views a list, vector or nil argument as a slice of elements.
func seqArg(name string, v Value) ([]Value, error) {
	if v.Tag == TNil {
		return nil, nil
	}
	xs, ok := seqSlice(v)
	if !ok {
		return nil, errf(KindTypeMismatch, "%s needs a sequence, got %s", name, TypeName(v))
	}
	return xs, nil
}

// sameSeqKind rebuilds xs with the same sequence kind as the model value.
func sameSeqKind(model Value, xs []Value) Value {
	if model.Tag == TVector {
		return Vec(xs)
	}
	return listFromSlice(xs)
}

func reverseSlice(xs []Value) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[len(xs)-1-i] = x
	}
	return out
}
