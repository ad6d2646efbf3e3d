// env.go — lexical environment frames.
//
// Frames form a parent chain; lookups walk parent-ward. Locking is per frame:
// concurrent goroutines read a shared frame together, a write excludes only
// that frame's readers, and unrelated frames never contend. The frame kind
// marks what the evaluator may anchor there: def lands on the nearest root,
// recur on the nearest loop (stopping at function boundaries), defer on the
// nearest function frame.

package qi

import "sync"

type frameKind uint8

const (
	framePlain frameKind = iota // let, match clause, guard scopes
	frameFunc                   // function application; owns defers, stops recur
	frameTop                    // one top-level form; owns defers
	frameLoop                   // loop trampoline target
	frameRoot                   // def target (Global, sandbox roots, module frames)
)

// Env is one lexical frame with a parent link.
type Env struct {
	mu     sync.RWMutex
	table  map[string]Value
	names  []string // first-definition order, for module snapshots
	parent *Env

	kind      frameKind
	loopArity int        // frameLoop: binding count recur must supply
	defers    []deferred // frameFunc: scheduled defer forms
}

// deferred is one registered defer expression and the frame to run it in.
type deferred struct {
	form Value
	env  *Env
}

// NewEnv creates a plain frame with the given parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, table: make(map[string]Value)}
}

func newFrame(parent *Env, kind frameKind) *Env {
	e := NewEnv(parent)
	e.kind = kind
	return e
}

// Define binds name in this frame, shadowing any outer binding.
func (e *Env) Define(name string, v Value) {
	e.mu.Lock()
	if _, ok := e.table[name]; !ok {
		e.names = append(e.names, name)
	}
	e.table[name] = v
	e.mu.Unlock()
}

// Get retrieves the nearest visible binding of name.
func (e *Env) Get(name string) (Value, bool) {
	for f := e; f != nil; f = f.parent {
		f.mu.RLock()
		v, ok := f.table[name]
		f.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return Value{}, false
}

// Root walks to the nearest enclosing root frame, the target of def. When an
// embedder supplies a chain with no marked root, the topmost frame serves.
func (e *Env) Root() *Env {
	for f := e; f != nil; f = f.parent {
		if f.kind == frameRoot {
			return f
		}
	}
	top := e
	for top.parent != nil {
		top = top.parent
	}
	return top
}

// Bindings returns the frame's own bindings in definition order. The module
// loader snapshots a module frame through this.
func (e *Env) Bindings() ([]string, []Value) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.names))
	copy(names, e.names)
	vals := make([]Value, len(names))
	for i, n := range names {
		vals[i] = e.table[n]
	}
	return names, vals
}

// pushDefer schedules d on the nearest frame that owns a defer list.
// Reports false when no such frame encloses e.
func (e *Env) pushDefer(d deferred) bool {
	for f := e; f != nil; f = f.parent {
		if f.kind == frameFunc || f.kind == frameTop {
			f.mu.Lock()
			f.defers = append(f.defers, d)
			f.mu.Unlock()
			return true
		}
	}
	return false
}

// takeDefers removes and returns the scheduled defers, newest first.
func (e *Env) takeDefers() []deferred {
	e.mu.Lock()
	ds := e.defers
	e.defers = nil
	e.mu.Unlock()
	for i, j := 0, len(ds)-1; i < j; i, j = i+1, j-1 {
		ds[i], ds[j] = ds[j], ds[i]
	}
	return ds
}
