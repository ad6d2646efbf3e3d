// interpreter.go — the public API surface of the Qi runtime.
//
// This file deliberately contains only exported types and thin methods; the
// engine itself lives in private files (interpreter_exec.go for the tree
// walker, macro.go for expansion, desugar.go for pipelines).
//
// Execution and scoping:
//   - Qi code evaluates in environments (*Env) forming a lexical chain. The
//     interpreter exposes two well-known frames: Core (built-ins and
//     registered natives) and Global (persistent program state, a root
//     frame and the target of def for persistent runs).
//   - Ephemeral runs: EvalSource evaluates in a fresh sandbox root under
//     Global, so definitions are visible across the program's own forms and
//     discarded afterwards. Persistent (REPL-style) runs:
//     EvalPersistentSource evaluates in Global itself.
//   - Advanced embedding: EvalForms(forms, env) evaluates exactly in the
//     environment you pass.
//
// Errors: all Eval* methods return (Value, error). Reader failures arrive
// pre-rendered with a caret snippet; evaluation failures are *Error values
// classified by Kind. There is no panic-based control flow across user code.
//
// Concurrency: one Interp may be shared by many goroutines. Frames lock
// individually, the module cache carries its own lock, and natives must all
// be registered before user code runs.

package qi

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Version is reported by cmd/qi and the version native.
const Version = "0.3.0"

// NativeFn is the implementation signature for registered natives. Arguments
// arrive fully evaluated and arity-checked; results and failures are both
// ordinary returns, like the engine's own.
type NativeFn func(ip *Interp, args []Value) (Value, error)

// Interp is the entry point for evaluating Qi programs.
type Interp struct {
	// Publicly visible environments:
	Global *Env // persistent program state; root frame for def
	Core   *Env // built-ins and natives; parent of Global

	natives map[string]NativeFn
	docs    map[string]string

	modMu     sync.Mutex
	modules   map[string]*moduleRec
	loadStack []string

	gensymN atomic.Int64
}

// NewInterp returns a bare interpreter: Core and Global frames, no natives
// installed. Most callers want NewRuntime (runtime.go).
func NewInterp() *Interp {
	ip := &Interp{
		natives: map[string]NativeFn{},
		docs:    map[string]string{},
		modules: map[string]*moduleRec{},
	}
	ip.Core = newFrame(nil, framePlain)
	ip.Global = newFrame(ip.Core, frameRoot)
	return ip
}

// RegisterNative binds name in Core to a host-implemented function with the
// given arity bounds. All natives must be registered before user code runs;
// the registry is not synchronized afterwards.
func (ip *Interp) RegisterNative(name string, arity Arity, impl NativeFn) {
	ip.natives[name] = impl
	ip.Core.Define(name, FuncVal(&Func{Name: name, Native: name, NArity: arity}))
}

// EvalSource parses and evaluates src in a fresh sandbox root under Global.
func (ip *Interp) EvalSource(src string) (Value, error) {
	return ip.EvalSourceNamed("", src)
}

// EvalSourceNamed is EvalSource with a display name for error snippets. When
// name is a real file path, imports inside src resolve relative to it.
func (ip *Interp) EvalSourceNamed(name, src string) (Value, error) {
	forms, err := ParseSource(src)
	if err != nil {
		return Value{}, WrapErrorWithName(err, name, src)
	}
	if name != "" {
		if abs, aerr := filepath.Abs(name); aerr == nil {
			ip.pushLoad(abs)
			defer ip.popLoad(abs)
		}
	}
	sandbox := newFrame(ip.Global, frameRoot)
	return ip.EvalForms(forms, sandbox)
}

// EvalPersistentSource parses and evaluates src in Global itself, so def
// survives across calls. The REPL uses this.
func (ip *Interp) EvalPersistentSource(src string) (Value, error) {
	forms, err := ParseSource(src)
	if err != nil {
		return Value{}, WrapErrorWithSource(err, src)
	}
	return ip.EvalForms(forms, ip.Global)
}

// EvalForms evaluates top-level forms in env, returning the last value (nil
// when forms is empty).
func (ip *Interp) EvalForms(forms []Value, env *Env) (Value, error) {
	out := Nil
	for _, form := range forms {
		v, err := ip.EvalForm(form, env)
		if err != nil {
			return Value{}, err
		}
		out = v
	}
	return out, nil
}

// EvalForm runs one top-level form through the full pipeline: macro
// expansion, pipeline desugaring, evaluation. Each form gets its own defer
// scope; def still reaches env's root frame through the chain.
func (ip *Interp) EvalForm(form Value, env *Env) (Value, error) {
	expanded, err := ip.macroexpandAll(form, env)
	if err != nil {
		return Value{}, err
	}
	desugared, err := ip.desugarForm(expanded)
	if err != nil {
		return Value{}, err
	}
	frame := newFrame(env, frameTop)
	res, err := ip.eval(desugared, frame)
	ip.runDefers(frame)
	if err != nil {
		return Value{}, err
	}
	if res.Tag == tTail {
		return Value{}, errf(KindRecur, "recur outside loop")
	}
	return res, nil
}

// Apply invokes a function value on already-evaluated arguments.
func (ip *Interp) Apply(fv Value, args []Value) (Value, error) {
	return ip.apply(fv, args)
}

// Call0 invokes a zero-argument function value (the thunks go and spawn!
// take).
func (ip *Interp) Call0(fv Value) (Value, error) {
	return ip.apply(fv, nil)
}

// Gensym returns a fresh symbol "<prefix><n>". One process-wide counter per
// interpreter serves the gensym native, auto-gensym and the desugarer, so
// generated names never collide.
func (ip *Interp) Gensym(prefix string) Value {
	if prefix == "" {
		prefix = "G__"
	}
	return Sym(fmt.Sprintf("%s%d", prefix, ip.gensymN.Add(1)))
}

// Doc returns the docstring registered for a native, if any.
func (ip *Interp) Doc(name string) (string, bool) {
	d, ok := ip.docs[name]
	return d, ok
}
