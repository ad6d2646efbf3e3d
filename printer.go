// printer.go — value rendering.
//
// FormatValue is the readable rendering (strings quoted; reader-built data
// round-trips), DisplayValue the human one (strings raw). Both print
// collections in insertion order. Reference values that have no literal
// syntax print as #<...> stubs.

package qi

import (
	"math"
	"strconv"
	"strings"
)

// maxPrintDepth caps nesting so an atom holding a collection that holds the
// atom cannot hang the printer.
const maxPrintDepth = 32

// FormatValue renders v readably.
func FormatValue(v Value) string {
	var b strings.Builder
	writeValue(&b, v, true, 0)
	return b.String()
}

// DisplayValue renders v for display: like FormatValue, but strings print raw.
func DisplayValue(v Value) string {
	var b strings.Builder
	writeValue(&b, v, false, 0)
	return b.String()
}

func writeValue(b *strings.Builder, v Value, readable bool, depth int) {
	if depth > maxPrintDepth {
		b.WriteString("...")
		return
	}
	switch v.Tag {
	case TNil:
		b.WriteString("nil")
	case TBool:
		b.WriteString(strconv.FormatBool(v.Data.(bool)))
	case TInt:
		b.WriteString(strconv.FormatInt(v.Data.(int64), 10))
	case TFloat:
		b.WriteString(formatFloat(v.Data.(float64)))
	case TString:
		if readable {
			b.WriteString(quoteString(v.Data.(string)))
		} else {
			b.WriteString(v.Data.(string))
		}
	case TKeyword:
		b.WriteByte(':')
		b.WriteString(v.Data.(*Keyword).Name)
	case TSymbol:
		b.WriteString(v.Data.(*Symbol).Name)
	case TList:
		b.WriteByte('(')
		first := true
		for c := listCell(v); c != nil; c = c.Tail {
			if !first {
				b.WriteByte(' ')
			}
			writeValue(b, c.Head, readable, depth+1)
			first = false
		}
		b.WriteByte(')')
	case TVector:
		b.WriteByte('[')
		for i, x := range v.Data.([]Value) {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, x, readable, depth+1)
		}
		b.WriteByte(']')
	case TMap:
		m := v.Data.(*MapObject)
		b.WriteByte('{')
		for i, k := range m.Keys() {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, k, readable, depth+1)
			b.WriteByte(' ')
			mv, _ := m.Get(k)
			writeValue(b, mv, readable, depth+1)
		}
		b.WriteByte('}')
	case TFunc:
		f := v.Data.(*Func)
		switch {
		case f.Native != "":
			b.WriteString("#<native " + f.Native + ">")
		case f.Name != "":
			b.WriteString("#<fn " + f.Name + ">")
		default:
			b.WriteString("#<fn>")
		}
	case TMacro:
		f := v.Data.(*Func)
		if f.Name != "" {
			b.WriteString("#<macro " + f.Name + ">")
		} else {
			b.WriteString("#<macro>")
		}
	case TAtom:
		b.WriteString("#<atom ")
		writeValue(b, v.Data.(*Atom).Load(), readable, depth+1)
		b.WriteByte('>')
	case TChan:
		if v.Data.(*Channel).closed.Load() {
			b.WriteString("#<chan closed>")
		} else {
			b.WriteString("#<chan>")
		}
	case THandle:
		b.WriteString("#<" + v.Data.(*Handle).Kind + ">")
	case tTail:
		b.WriteString("#<recur>")
	default:
		b.WriteString("#<unknown>")
	}
}

// formatFloat keeps floats visually distinct from ints: integral values gain
// a trailing .0 unless they already carry an exponent.
func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
