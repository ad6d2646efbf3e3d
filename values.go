// values.go — the Qi runtime value model.
//
// Value is a small tagged union: Tag selects the case, Data carries the Go
// payload for that case. Symbols and keywords are interned process-wide so
// equality is pointer identity. Collections are persistent: lists share
// structure through cons cells, vectors and maps copy on write. Code is data;
// the reader produces these same Values and the evaluator walks them.

package qi

import (
	"sync"
	"sync/atomic"
)

// Tag enumerates all runtime kinds a Value may hold.
// The tag determines the dynamic type of Value.Data.
type Tag uint8

const (
	TNil     Tag = iota // nil (no payload)
	TBool               // bool
	TInt                // int64
	TFloat              // float64
	TString             // string
	TKeyword            // *Keyword (interned)
	TSymbol             // *Symbol (interned)
	TList               // *Cell (a nil cell is the empty list)
	TVector             // []Value (immutable; copy on write)
	TMap                // *MapObject (insertion-ordered, persistent)
	TFunc               // *Func (closure or registered native)
	TMacro              // *Func applied to unevaluated forms at expansion time
	TAtom               // *Atom
	TChan               // *Channel
	THandle             // *Handle (opaque host resource)

	tTail // *tailSignal carried from recur to the nearest loop; never escapes
)

// Value is the universal runtime carrier. Tag discriminates, Data holds the
// payload listed next to each Tag constant. Values are passed by value; the
// payloads they point at are immutable or internally synchronized, so Values
// may cross goroutines freely.
type Value struct {
	Tag  Tag
	Data any
}

// Nil is the singleton nil Value.
var Nil = Value{Tag: TNil}

// EmptyList is the empty list value. It self-evaluates.
var EmptyList = Value{Tag: TList, Data: (*Cell)(nil)}

// Primitive constructors.
func Bool(b bool) Value     { return Value{Tag: TBool, Data: b} }
func Int(n int64) Value     { return Value{Tag: TInt, Data: n} }
func Float(f float64) Value { return Value{Tag: TFloat, Data: f} }
func Str(s string) Value    { return Value{Tag: TString, Data: s} }
func Vec(xs []Value) Value  { return Value{Tag: TVector, Data: xs} }

// Sym interns name and wraps it as a symbol Value.
func Sym(name string) Value { return Value{Tag: TSymbol, Data: Intern(name)} }

// Kw interns name and wraps it as a keyword Value.
func Kw(name string) Value { return Value{Tag: TKeyword, Data: InternKeyword(name)} }

func kwVal(k *Keyword) Value { return Value{Tag: TKeyword, Data: k} }
func symVal(s *Symbol) Value { return Value{Tag: TSymbol, Data: s} }

// FuncVal wraps a *Func as a callable Value.
func FuncVal(f *Func) Value { return Value{Tag: TFunc, Data: f} }

// MacroVal wraps a *Func as a macro Value (seen only by the expander).
func MacroVal(f *Func) Value { return Value{Tag: TMacro, Data: f} }

// AtomVal, ChanVal and MapVal wrap the respective reference objects.
func AtomVal(a *Atom) Value     { return Value{Tag: TAtom, Data: a} }
func ChanVal(c *Channel) Value  { return Value{Tag: TChan, Data: c} }
func MapVal(m *MapObject) Value { return Value{Tag: TMap, Data: m} }

// HandleVal boxes an opaque host resource (Lua-userdata style). Kind
// discriminates so natives can reject foreign handles.
func HandleVal(kind string, data any) Value {
	return Value{Tag: THandle, Data: &Handle{Kind: kind, Data: data}}
}

// String renders the readable form (strings quoted). Diagnostic output and
// logs go through this.
func (v Value) String() string { return FormatValue(v) }

// ---- interning ----------------------------------------------------------

// Symbol is an interned identifier. All occurrences of the same name share
// one *Symbol, so symbol equality is pointer comparison.
type Symbol struct{ Name string }

// Keyword is an interned :name constant. Keywords evaluate to themselves.
type Keyword struct{ Name string }

var symtab = struct {
	sync.RWMutex
	m map[string]*Symbol
}{m: make(map[string]*Symbol)}

var kwtab = struct {
	sync.RWMutex
	m map[string]*Keyword
}{m: make(map[string]*Keyword)}

// Intern returns the canonical *Symbol for name. Safe for concurrent use.
func Intern(name string) *Symbol {
	symtab.RLock()
	s := symtab.m[name]
	symtab.RUnlock()
	if s != nil {
		return s
	}
	symtab.Lock()
	defer symtab.Unlock()
	if s := symtab.m[name]; s != nil {
		return s
	}
	s = &Symbol{Name: name}
	symtab.m[name] = s
	return s
}

// InternKeyword returns the canonical *Keyword for name (without the colon).
func InternKeyword(name string) *Keyword {
	kwtab.RLock()
	k := kwtab.m[name]
	kwtab.RUnlock()
	if k != nil {
		return k
	}
	kwtab.Lock()
	defer kwtab.Unlock()
	if k := kwtab.m[name]; k != nil {
		return k
	}
	k = &Keyword{Name: name}
	kwtab.m[name] = k
	return k
}

// ---- lists ---------------------------------------------------------------

// Cell is one link of a persistent list. Tails are shared, never copied, so
// Cons is O(1) and existing references are unaffected by new prepends.
type Cell struct {
	Head Value
	Tail *Cell
}

// Cons prepends v to the list rest (which may be the empty list or nil data).
func Cons(v Value, rest Value) Value {
	return Value{Tag: TList, Data: &Cell{Head: v, Tail: listCell(rest)}}
}

// List builds a list value from items.
func List(items ...Value) Value { return listFromSlice(items) }

func listFromSlice(xs []Value) Value {
	var c *Cell
	for i := len(xs) - 1; i >= 0; i-- {
		c = &Cell{Head: xs[i], Tail: c}
	}
	return Value{Tag: TList, Data: c}
}

func listCell(v Value) *Cell {
	if v.Tag != TList || v.Data == nil {
		return nil
	}
	return v.Data.(*Cell)
}

func cellVal(c *Cell) Value { return Value{Tag: TList, Data: c} }

func (c *Cell) Len() int {
	n := 0
	for ; c != nil; c = c.Tail {
		n++
	}
	return n
}

func cellSlice(c *Cell) []Value {
	if c == nil {
		return nil
	}
	out := make([]Value, 0, c.Len())
	for ; c != nil; c = c.Tail {
		out = append(out, c.Head)
	}
	return out
}

// seqSlice views a list or vector as a slice of its elements.
func seqSlice(v Value) ([]Value, bool) {
	switch v.Tag {
	case TList:
		return cellSlice(listCell(v)), true
	case TVector:
		return v.Data.([]Value), true
	}
	return nil, false
}

func isSeq(v Value) bool { return v.Tag == TList || v.Tag == TVector }

// ---- maps ----------------------------------------------------------------

// mapKey is the comparable projection of a map key Value. Only keywords,
// symbols, strings and ints may key a map; floats never do.
type mapKey struct {
	tag Tag
	s   string
	n   int64
}

func toMapKey(v Value) (mapKey, bool) {
	switch v.Tag {
	case TKeyword:
		return mapKey{tag: TKeyword, s: v.Data.(*Keyword).Name}, true
	case TSymbol:
		return mapKey{tag: TSymbol, s: v.Data.(*Symbol).Name}, true
	case TString:
		return mapKey{tag: TString, s: v.Data.(string)}, true
	case TInt:
		return mapKey{tag: TInt, n: v.Data.(int64)}, true
	}
	return mapKey{}, false
}

// MapObject is an insertion-ordered persistent map. Assoc and Dissoc return
// fresh objects; holders of the old object never observe the change. The
// original key Values are kept in order for predictable iteration and
// printing.
type MapObject struct {
	entries map[mapKey]Value
	order   []Value
}

// NewMapObject returns an empty map object.
func NewMapObject() *MapObject {
	return &MapObject{entries: make(map[mapKey]Value)}
}

// Len reports the number of entries.
func (m *MapObject) Len() int { return len(m.entries) }

// Get looks up k. Reports false for absent keys and for key kinds that can
// never appear in a map.
func (m *MapObject) Get(k Value) (Value, bool) {
	mk, ok := toMapKey(k)
	if !ok {
		return Value{}, false
	}
	v, ok := m.entries[mk]
	return v, ok
}

// Has reports whether k is present.
func (m *MapObject) Has(k Value) bool {
	_, ok := m.Get(k)
	return ok
}

// Keys returns the key Values in insertion order. Callers must not mutate
// the returned slice.
func (m *MapObject) Keys() []Value { return m.order }

// Set binds k to v in place. It is used while building a not-yet-shared map
// (literals, decoders); published maps go through Assoc instead.
func (m *MapObject) Set(k, v Value) error {
	mk, ok := toMapKey(k)
	if !ok {
		return &Error{Kind: KindTypeMismatch, Msg: "map key must be a keyword, symbol, string or int, got " + TypeName(k)}
	}
	if _, exists := m.entries[mk]; !exists {
		m.order = append(m.order, k)
	}
	m.entries[mk] = v
	return nil
}

func (m *MapObject) clone() *MapObject {
	out := &MapObject{
		entries: make(map[mapKey]Value, len(m.entries)+1),
		order:   make([]Value, len(m.order), len(m.order)+1),
	}
	for k, v := range m.entries {
		out.entries[k] = v
	}
	copy(out.order, m.order)
	return out
}

// Assoc returns a copy of m with k bound to v. Existing keys keep their
// insertion position.
func (m *MapObject) Assoc(k, v Value) (*MapObject, error) {
	mk, ok := toMapKey(k)
	if !ok {
		return nil, &Error{Kind: KindTypeMismatch, Msg: "map key must be a keyword, symbol, string or int, got " + TypeName(k)}
	}
	out := m.clone()
	if _, exists := out.entries[mk]; !exists {
		out.order = append(out.order, k)
	}
	out.entries[mk] = v
	return out, nil
}

// Dissoc returns a copy of m without k. Removing an absent key returns m
// unchanged (same object).
func (m *MapObject) Dissoc(k Value) *MapObject {
	mk, ok := toMapKey(k)
	if !ok {
		return m
	}
	if _, exists := m.entries[mk]; !exists {
		return m
	}
	out := &MapObject{
		entries: make(map[mapKey]Value, len(m.entries)-1),
		order:   make([]Value, 0, len(m.order)-1),
	}
	for ek, ev := range m.entries {
		if ek != mk {
			out.entries[ek] = ev
		}
	}
	for _, kv := range m.order {
		if okk, _ := toMapKey(kv); okk != mk {
			out.order = append(out.order, kv)
		}
	}
	return out
}

// ---- functions -------------------------------------------------------------

// Arity bounds a native's argument count. Max < 0 means variadic.
type Arity struct{ Min, Max int }

// Func is a function value: a closure (Params, Body, Env) or a handle to a
// registered native (Native non-empty). Macros reuse the same carrier under
// TMacro; the expander applies them to raw argument forms.
type Func struct {
	Name   string  // diagnostics only; may be empty
	Params []Value // parameter patterns; the symbol & marks a variadic tail
	Body   []Value // body forms, evaluated do-style
	Env    *Env    // closure environment captured at definition

	Native string // non-empty iff implemented by a registered native
	NArity Arity  // enforced before a native runs

	cp *compiledParams // parameter patterns, compiled once at definition
}

// ---- reference cells --------------------------------------------------------

// Atom is a mutable reference holding one Value, updated by compare-and-swap.
// Reads never block and never observe a torn value.
type Atom struct {
	v atomic.Pointer[Value]
}

func newAtom(v Value) *Atom {
	a := &Atom{}
	a.v.Store(&v)
	return a
}

// Load returns the current value.
func (a *Atom) Load() Value { return *a.v.Load() }

// Store replaces the current value unconditionally.
func (a *Atom) Store(v Value) { a.v.Store(&v) }

// Swap applies f to the current value and installs the result, retrying until
// the compare-and-swap succeeds. f may run more than once under contention
// and must be free of side effects.
func (a *Atom) Swap(f func(Value) (Value, error)) (Value, error) {
	for {
		old := a.v.Load()
		next, err := f(*old)
		if err != nil {
			return Value{}, err
		}
		if a.v.CompareAndSwap(old, &next) {
			return next, nil
		}
	}
}

// Channel is a FIFO conduit backed by a Go channel. The closed flag tracks
// close! for printing and closed?; buffered values remain receivable after
// close until drained. Send/receive behavior lives with the concurrency
// builtins.
type Channel struct {
	ch       chan Value
	capacity int
	closed   atomic.Bool
}

func newChannel(capacity int) *Channel {
	if capacity < 0 {
		capacity = 0
	}
	return &Channel{ch: make(chan Value, capacity), capacity: capacity}
}

// Handle boxes an opaque host resource behind the native boundary
// (concurrency scopes here; collaborator modules box their own resources the
// same way). Kind discriminates handle families.
type Handle struct {
	Kind string
	Data any
}

// ---- equality and truthiness ---------------------------------------------

// Truthy reports Qi truthiness: every value except nil and false.
func Truthy(v Value) bool {
	if v.Tag == TNil {
		return false
	}
	if v.Tag == TBool {
		return v.Data.(bool)
	}
	return true
}

// Eq reports Qi value equality. Interned kinds compare by pointer, numbers
// compare within their own kind (an int never equals a float), lists and
// vectors compare as sequences, maps compare by unordered entries, and the
// reference kinds (fn, atom, chan, handle) compare by identity.
func Eq(a, b Value) bool {
	if isSeq(a) && isSeq(b) {
		as, _ := seqSlice(a)
		bs, _ := seqSlice(b)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Eq(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TNil:
		return true
	case TBool:
		return a.Data.(bool) == b.Data.(bool)
	case TInt:
		return a.Data.(int64) == b.Data.(int64)
	case TFloat:
		return a.Data.(float64) == b.Data.(float64)
	case TString:
		return a.Data.(string) == b.Data.(string)
	case TKeyword, TSymbol:
		return a.Data == b.Data
	case TMap:
		am, bm := a.Data.(*MapObject), b.Data.(*MapObject)
		if am.Len() != bm.Len() {
			return false
		}
		for _, k := range am.order {
			av, _ := am.Get(k)
			bv, ok := bm.Get(k)
			if !ok || !Eq(av, bv) {
				return false
			}
		}
		return true
	default:
		return a.Data == b.Data
	}
}

// TypeName names v's kind the way the type native reports it.
func TypeName(v Value) string {
	switch v.Tag {
	case TNil:
		return "nil"
	case TBool:
		return "bool"
	case TInt:
		return "int"
	case TFloat:
		return "float"
	case TString:
		return "string"
	case TKeyword:
		return "keyword"
	case TSymbol:
		return "symbol"
	case TList:
		return "list"
	case TVector:
		return "vector"
	case TMap:
		return "map"
	case TFunc:
		return "fn"
	case TMacro:
		return "macro"
	case TAtom:
		return "atom"
	case TChan:
		return "chan"
	case THandle:
		return "handle"
	default:
		return "unknown"
	}
}

// ---- well-known symbols and keywords ---------------------------------------

// Symbols the engine matches on structurally (special forms are dispatched by
// name in the evaluator; these cover reader sugar, patterns and desugaring).
var (
	symQuote    = Intern("quote")
	symQuasi    = Intern("quasiquote")
	symUnquote  = Intern("unquote")
	symSplice   = Intern("unquote-splicing")
	symAmp      = Intern("&")
	symWild     = Intern("_")
	symArrow    = Intern("->")
	symWhen     = Intern("when")
	symOr       = Intern("or")
	symFn       = Intern("fn")
	symDo       = Intern("do")
	symIf       = Intern("if")
	symGo       = Intern("go")
	symPmap     = Intern("pmap")
	symErrorP   = Intern("error?")
	symUnwrap   = Intern("unwrap")
	symPipe     = Intern("|>")
	symPipeRail = Intern("|>?")
	symPipePar  = Intern("||>")
	symPipeGo   = Intern("~>")
	symPipeTap  = Intern("tap>")
)

var (
	kwError   = InternKeyword("error")
	kwKind    = InternKeyword("kind")
	kwOk      = InternKeyword("ok")
	kwValue   = InternKeyword("value")
	kwAs      = InternKeyword("as")
	kwUser    = InternKeyword("user")
	kwTimeout = InternKeyword("timeout")
)
