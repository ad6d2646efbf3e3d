// builtin_encoding.go — json/ and yaml/ natives.
//
// Both codecs share one lowering to a plain Go graph (nil, bool, int64,
// float64, string, []any, map[string]any) and one raising back. Decoded
// objects become maps with string keys, arrays become vectors, and integral
// numbers come back as ints.

package qi

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// valueToGo lowers v for the encoders. Keywords and symbols lower to their
// names; the reference kinds (fn, atom, chan, handle) have no encoding.
func valueToGo(name string, v Value) (any, error) {
	switch v.Tag {
	case TNil:
		return nil, nil
	case TBool:
		return v.Data.(bool), nil
	case TInt:
		return v.Data.(int64), nil
	case TFloat:
		return v.Data.(float64), nil
	case TString:
		return v.Data.(string), nil
	case TKeyword:
		return v.Data.(*Keyword).Name, nil
	case TSymbol:
		return v.Data.(*Symbol).Name, nil
	case TList, TVector:
		xs, _ := seqSlice(v)
		out := make([]any, len(xs))
		for i, x := range xs {
			el, err := valueToGo(name, x)
			if err != nil {
				return nil, err
			}
			out[i] = el
		}
		return out, nil
	case TMap:
		m := v.Data.(*MapObject)
		out := make(map[string]any, m.Len())
		for _, k := range m.Keys() {
			ks, err := encodeKey(name, k)
			if err != nil {
				return nil, err
			}
			ev, _ := m.Get(k)
			gv, err := valueToGo(name, ev)
			if err != nil {
				return nil, err
			}
			out[ks] = gv
		}
		return out, nil
	}
	return nil, errf(KindTypeMismatch, "%s cannot encode %s values", name, TypeName(v))
}

func encodeKey(name string, k Value) (string, error) {
	switch k.Tag {
	case TString:
		return k.Data.(string), nil
	case TKeyword:
		return k.Data.(*Keyword).Name, nil
	case TSymbol:
		return k.Data.(*Symbol).Name, nil
	case TInt:
		return strconv.FormatInt(k.Data.(int64), 10), nil
	}
	return "", errf(KindTypeMismatch, "%s cannot encode %s map keys", name, TypeName(k))
}

// goToValue raises a decoded graph. Map keys come back sorted so parse
// results print deterministically.
func goToValue(x any) Value {
	switch v := x.(type) {
	case nil:
		return Nil
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint64:
		return Int(int64(v))
	case float64:
		// Direct float path (yaml, or json without UseNumber). Whole values
		// inside the exact-int window come back as ints.
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return Int(int64(v))
		}
		return Float(v)
	case json.Number:
		// Textual form decides int vs float, so 1e2 stays a float and big
		// integers survive exactly.
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return Int(i)
			}
		}
		f, _ := strconv.ParseFloat(s, 64)
		return Float(f)
	case string:
		return Str(v)
	case time.Time:
		return Str(v.Format(time.RFC3339))
	case []any:
		out := make([]Value, len(v))
		for i, el := range v {
			out[i] = goToValue(el)
		}
		return Vec(out)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMapObject()
		for _, k := range keys {
			m.Set(Str(k), goToValue(v[k]))
		}
		return MapVal(m)
	case map[any]any:
		// Older yaml graphs; keys stringify.
		keys := make([]string, 0, len(v))
		byKey := make(map[string]any, len(v))
		for k, ev := range v {
			ks := stringifyKey(k)
			keys = append(keys, ks)
			byKey[ks] = ev
		}
		sort.Strings(keys)
		m := NewMapObject()
		for _, k := range keys {
			m.Set(Str(k), goToValue(byKey[k]))
		}
		return MapVal(m)
	}
	return Str(fmt.Sprintf("%v", x))
}

func stringifyKey(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprintf("%v", k)
}

func registerEncodingBuiltins(ip *Interp) {
	ip.RegisterNative("json/parse", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		s, err := strArg("json/parse", args[0])
		if err != nil {
			return Value{}, err
		}
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var x any
		if err := dec.Decode(&x); err != nil {
			return Value{}, errf(KindNative, "json/parse: %v", err)
		}
		return goToValue(x), nil
	})
	setBuiltinDoc(ip, "json/parse", `Decode a JSON string. Objects become maps with string keys (sorted),
arrays become vectors, integral numbers become ints.`)

	ip.RegisterNative("json/write", Arity{1, 2}, func(_ *Interp, args []Value) (Value, error) {
		x, err := valueToGo("json/write", args[0])
		if err != nil {
			return Value{}, err
		}
		var b []byte
		if len(args) == 2 && Truthy(args[1]) {
			b, err = json.MarshalIndent(x, "", "  ")
		} else {
			b, err = json.Marshal(x)
		}
		if err != nil {
			return Value{}, errf(KindNative, "json/write: %v", err)
		}
		return Str(string(b)), nil
	})
	setBuiltinDoc(ip, "json/write", `Encode to JSON. Keywords and symbols encode as their names; a truthy
second argument pretty-prints. Object keys serialize sorted.`)

	ip.RegisterNative("yaml/parse", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		s, err := strArg("yaml/parse", args[0])
		if err != nil {
			return Value{}, err
		}
		var x any
		if err := yaml.Unmarshal([]byte(s), &x); err != nil {
			return Value{}, errf(KindNative, "yaml/parse: %v", err)
		}
		return goToValue(x), nil
	})
	setBuiltinDoc(ip, "yaml/parse", `Decode a YAML document, with the same value mapping as json/parse.`)

	ip.RegisterNative("yaml/write", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		x, err := valueToGo("yaml/write", args[0])
		if err != nil {
			return Value{}, err
		}
		b, err := yaml.Marshal(x)
		if err != nil {
			return Value{}, errf(KindNative, "yaml/write: %v", err)
		}
		return Str(strings.TrimRight(string(b), "\n")), nil
	})
	setBuiltinDoc(ip, "yaml/write", `Encode to YAML, without the trailing newline yaml emitters add.`)
}
