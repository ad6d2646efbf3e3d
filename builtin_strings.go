// builtin_strings.go — the str/ native family. All indexing is by rune, so
// multi-byte text behaves the same as ASCII.

package qi

import (
	"strings"
	"unicode/utf8"
)

func strArg(name string, v Value) (string, error) {
	if v.Tag != TString {
		return "", errf(KindTypeMismatch, "%s needs a string, got %s", name, TypeName(v))
	}
	return v.Data.(string), nil
}

func registerStringBuiltins(ip *Interp) {
	ip.RegisterNative("str/split", Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
		s, err := strArg("str/split", args[0])
		if err != nil {
			return Value{}, err
		}
		sep, err := strArg("str/split", args[1])
		if err != nil {
			return Value{}, err
		}
		parts := strings.Split(s, sep)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = Str(p)
		}
		return listFromSlice(out), nil
	})
	setBuiltinDoc(ip, "str/split", `Split on a separator. An empty separator splits between every rune.
(str/split "a,b" ",") ; ("a" "b")`)

	ip.RegisterNative("str/join", Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
		sep, err := strArg("str/join", args[0])
		if err != nil {
			return Value{}, err
		}
		xs, err := seqArg("str/join", args[1])
		if err != nil {
			return Value{}, err
		}
		parts := make([]string, len(xs))
		for i, x := range xs {
			parts[i] = DisplayValue(x)
		}
		return Str(strings.Join(parts, sep)), nil
	})
	setBuiltinDoc(ip, "str/join", `Join a sequence with a separator; elements take their display form.
(str/join ", " [1 2 3]) ; "1, 2, 3"`)

	unary := func(name string, f func(string) string) {
		ip.RegisterNative(name, Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
			s, err := strArg(name, args[0])
			if err != nil {
				return Value{}, err
			}
			return Str(f(s)), nil
		})
	}
	unary("str/upper", strings.ToUpper)
	unary("str/lower", strings.ToLower)
	unary("str/trim", strings.TrimSpace)

	binaryBool := func(name string, f func(s, sub string) bool) {
		ip.RegisterNative(name, Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
			s, err := strArg(name, args[0])
			if err != nil {
				return Value{}, err
			}
			sub, err := strArg(name, args[1])
			if err != nil {
				return Value{}, err
			}
			return Bool(f(s, sub)), nil
		})
	}
	binaryBool("str/contains?", strings.Contains)
	binaryBool("str/starts-with?", strings.HasPrefix)
	binaryBool("str/ends-with?", strings.HasSuffix)

	ip.RegisterNative("str/replace", Arity{3, 3}, func(_ *Interp, args []Value) (Value, error) {
		s, err := strArg("str/replace", args[0])
		if err != nil {
			return Value{}, err
		}
		old, err := strArg("str/replace", args[1])
		if err != nil {
			return Value{}, err
		}
		nw, err := strArg("str/replace", args[2])
		if err != nil {
			return Value{}, err
		}
		return Str(strings.ReplaceAll(s, old, nw)), nil
	})
	setBuiltinDoc(ip, "str/replace", `Replace every occurrence: (str/replace s old new).`)

	ip.RegisterNative("str/index-of", Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
		s, err := strArg("str/index-of", args[0])
		if err != nil {
			return Value{}, err
		}
		sub, err := strArg("str/index-of", args[1])
		if err != nil {
			return Value{}, err
		}
		b := strings.Index(s, sub)
		if b < 0 {
			return Nil, nil
		}
		return Int(int64(utf8.RuneCountInString(s[:b]))), nil
	})
	setBuiltinDoc(ip, "str/index-of", `Rune index of the first occurrence, nil when absent.`)

	ip.RegisterNative("str/slice", Arity{3, 3}, func(_ *Interp, args []Value) (Value, error) {
		s, err := strArg("str/slice", args[0])
		if err != nil {
			return Value{}, err
		}
		if args[1].Tag != TInt || args[2].Tag != TInt {
			return Value{}, errf(KindTypeMismatch, "str/slice needs int indexes")
		}
		r := []rune(s)
		i, j := int(args[1].Data.(int64)), int(args[2].Data.(int64))
		// Half-open [i, j), clamped to bounds.
		if i < 0 {
			i = 0
		}
		if j < i {
			j = i
		}
		if i > len(r) {
			i = len(r)
		}
		if j > len(r) {
			j = len(r)
		}
		return Str(string(r[i:j])), nil
	})
	setBuiltinDoc(ip, "str/slice", `Rune slice [i, j), indices clamped to the string bounds.`)
}
