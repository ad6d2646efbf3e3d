// interpreter_exec.go — private execution engine: the tree walker.
//
// eval(expr, env) returns (Value, error); failures are ordinary error returns
// and never host panics. recur does not unwind either: it evaluates to a
// tagged tail signal (tTail) that flows out of tail position until the
// nearest loop intercepts it and rebinds. Positions that are not tail
// positions evaluate through evalValue, which turns an arriving signal into
// the fatal KindRecur error, so a signal can never leak into user data.
//
// The public facade lives in interpreter.go.

package qi

// tailSignal carries recur's re-binding values to the nearest enclosing loop.
// Arity against the target loop is checked at the recur site.
type tailSignal struct {
	vals []Value
}

func (ip *Interp) eval(expr Value, env *Env) (Value, error) {
	switch expr.Tag {
	case TSymbol:
		s := expr.Data.(*Symbol)
		if v, ok := env.Get(s.Name); ok {
			return v, nil
		}
		return Value{}, errf(KindUnbound, "unbound name %s", s.Name)
	case TList:
		c := listCell(expr)
		if c == nil {
			return expr, nil
		}
		return ip.evalList(c, env)
	case TVector:
		xs := expr.Data.([]Value)
		out := make([]Value, len(xs))
		for i, x := range xs {
			v, err := ip.evalValue(x, env)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return Vec(out), nil
	case TMap:
		m := expr.Data.(*MapObject)
		out := NewMapObject()
		for _, k := range m.Keys() {
			vf, _ := m.Get(k)
			v, err := ip.evalValue(vf, env)
			if err != nil {
				return Value{}, err
			}
			out.Set(k, v)
		}
		return MapVal(out), nil
	default:
		// nil, booleans, numbers, strings, keywords and the reference kinds
		// evaluate to themselves.
		return expr, nil
	}
}

// evalValue evaluates expr in non-tail position: a recur signal arriving here
// is misuse and fatal.
func (ip *Interp) evalValue(expr Value, env *Env) (Value, error) {
	v, err := ip.eval(expr, env)
	if err != nil {
		return Value{}, err
	}
	if v.Tag == tTail {
		return Value{}, errf(KindRecur, "recur in non-tail position")
	}
	return v, nil
}

// evalBody evaluates forms do-style: intermediate results are discarded, the
// final form is in tail position.
func (ip *Interp) evalBody(forms []Value, env *Env) (Value, error) {
	if len(forms) == 0 {
		return Nil, nil
	}
	for _, f := range forms[:len(forms)-1] {
		if _, err := ip.evalValue(f, env); err != nil {
			return Value{}, err
		}
	}
	return ip.eval(forms[len(forms)-1], env)
}

func (ip *Interp) evalList(c *Cell, env *Env) (Value, error) {
	if c.Head.Tag == TSymbol {
		switch c.Head.Data.(*Symbol).Name {
		case "def":
			return ip.evalDef(c.Tail, env)
		case "fn":
			return ip.evalFn(c.Tail, env)
		case "mac":
			return ip.evalMac(c.Tail, env)
		case "let":
			return ip.evalLet(c.Tail, env)
		case "do":
			return ip.evalBody(cellSlice(c.Tail), env)
		case "if":
			return ip.evalIf(c.Tail, env)
		case "match":
			return ip.evalMatch(c.Tail, env)
		case "try":
			return ip.evalTry(c.Tail, env)
		case "defer":
			return ip.evalDefer(c.Tail, env)
		case "loop":
			return ip.evalLoop(c.Tail, env)
		case "recur":
			return ip.evalRecur(c.Tail, env)
		case "quote":
			items := cellSlice(c.Tail)
			if len(items) != 1 {
				return Value{}, errf(KindSyntax, "quote takes exactly one form")
			}
			return items[0], nil
		case "quasiquote":
			return ip.evalQuasiquote(c.Tail, env)
		case "unquote", "unquote-splicing":
			return Value{}, errf(KindSyntax, "%s outside quasiquote", c.Head.Data.(*Symbol).Name)
		case "import":
			return ip.evalImport(c.Tail, env)
		}
	}
	// Application: head, then arguments, left to right.
	fv, err := ip.evalValue(c.Head, env)
	if err != nil {
		return Value{}, err
	}
	var args []Value
	if n := c.Tail.Len(); n > 0 {
		args = make([]Value, 0, n)
	}
	for a := c.Tail; a != nil; a = a.Tail {
		v, err := ip.evalValue(a.Head, env)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v)
	}
	return ip.apply(fv, args)
}

// ---- special forms ----------------------------------------------------------

// evalDef binds a name in the root frame of the current execution context.
// The binding is immediately visible to every frame chained under that root.
func (ip *Interp) evalDef(args *Cell, env *Env) (Value, error) {
	items := cellSlice(args)
	if len(items) != 2 || items[0].Tag != TSymbol {
		return Value{}, errf(KindSyntax, "def needs a symbol and one value form")
	}
	name := items[0].Data.(*Symbol).Name
	v, err := ip.evalValue(items[1], env)
	if err != nil {
		return Value{}, err
	}
	// Name anonymous closures and macros after their def for diagnostics.
	if v.Tag == TFunc || v.Tag == TMacro {
		if f := v.Data.(*Func); f.Native == "" && f.Name == "" {
			named := *f
			named.Name = name
			v = Value{Tag: v.Tag, Data: &named}
		}
	}
	env.Root().Define(name, v)
	return v, nil
}

func (ip *Interp) evalFn(args *Cell, env *Env) (Value, error) {
	f, err := buildClosure(cellSlice(args), env, "fn")
	if err != nil {
		return Value{}, err
	}
	return FuncVal(f), nil
}

// evalMac builds an expansion-time closure. A leading name also defines the
// macro in the root frame; the anonymous form is normally bound with def,
// which names it the same way it names closures.
func (ip *Interp) evalMac(args *Cell, env *Env) (Value, error) {
	f, err := buildClosure(cellSlice(args), env, "mac")
	if err != nil {
		return Value{}, err
	}
	mv := MacroVal(f)
	if f.Name != "" {
		env.Root().Define(f.Name, mv)
	}
	return mv, nil
}

// buildClosure parses [name] [params...] body... into a *Func with compiled
// parameter patterns.
func buildClosure(items []Value, env *Env, what string) (*Func, error) {
	name := ""
	if len(items) > 0 && items[0].Tag == TSymbol {
		name = items[0].Data.(*Symbol).Name
		items = items[1:]
	}
	if len(items) == 0 || items[0].Tag != TVector {
		return nil, errf(KindSyntax, "%s needs a parameter vector", what)
	}
	params := items[0].Data.([]Value)
	body := items[1:]
	if len(body) == 0 {
		return nil, errf(KindSyntax, "%s needs a body", what)
	}
	cp, err := compileParams(params)
	if err != nil {
		return nil, err
	}
	return &Func{Name: name, Params: params, Body: body, Env: env, cp: cp}, nil
}

func (ip *Interp) evalLet(args *Cell, env *Env) (Value, error) {
	items := cellSlice(args)
	if len(items) == 0 || items[0].Tag != TVector {
		return Value{}, errf(KindSyntax, "let needs a binding vector")
	}
	binds := items[0].Data.([]Value)
	if len(binds)%2 != 0 {
		return Value{}, errf(KindSyntax, "let bindings come in pattern/value pairs")
	}
	frame := NewEnv(env)
	for i := 0; i < len(binds); i += 2 {
		p, err := compilePattern(binds[i])
		if err != nil {
			return Value{}, err
		}
		v, err := ip.evalValue(binds[i+1], frame)
		if err != nil {
			return Value{}, err
		}
		if err := destructure(p, binds[i], v, frame); err != nil {
			return Value{}, err
		}
	}
	return ip.evalBody(items[1:], frame)
}

func (ip *Interp) evalIf(args *Cell, env *Env) (Value, error) {
	items := cellSlice(args)
	if len(items) != 2 && len(items) != 3 {
		return Value{}, errf(KindSyntax, "if needs a condition and one or two branches")
	}
	cond, err := ip.evalValue(items[0], env)
	if err != nil {
		return Value{}, err
	}
	if Truthy(cond) {
		return ip.eval(items[1], env)
	}
	if len(items) == 3 {
		return ip.eval(items[2], env)
	}
	return Nil, nil
}

// evalMatch tries clauses first to last. Clause bindings are installed in a
// child frame before the guard runs; a falsy guard falls through to the next
// clause, a failing guard propagates as an error.
func (ip *Interp) evalMatch(args *Cell, env *Env) (Value, error) {
	items := cellSlice(args)
	if len(items) < 1 {
		return Value{}, errf(KindSyntax, "match needs a scrutinee")
	}
	scrut, err := ip.evalValue(items[0], env)
	if err != nil {
		return Value{}, err
	}
	clauses, err := parseMatchClauses(items[1:])
	if err != nil {
		return Value{}, err
	}
	for _, cl := range clauses {
		var binds []binding
		if !matchValue(cl.pat, scrut, &binds) {
			continue
		}
		frame := NewEnv(env)
		installBindings(binds, frame)
		if cl.hasGuard {
			g, err := ip.evalValue(cl.guard, frame)
			if err != nil {
				return Value{}, err
			}
			if !Truthy(g) {
				continue
			}
		}
		return ip.eval(cl.body, frame)
	}
	return Value{}, errf(KindNoMatch, "no clause matched %s", FormatValue(scrut))
}

// evalTry converts catchable failures into error-marker values. KindRecur
// passes through untouched: misplaced recur is a program bug, not a condition
// to handle.
func (ip *Interp) evalTry(args *Cell, env *Env) (Value, error) {
	v, err := ip.evalBody(cellSlice(args), env)
	if err == nil {
		return v, nil
	}
	if qe, ok := err.(*Error); ok && !qe.Catchable() {
		return Value{}, err
	}
	return markerFromError(err), nil
}

func (ip *Interp) evalDefer(args *Cell, env *Env) (Value, error) {
	items := cellSlice(args)
	if len(items) != 1 {
		return Value{}, errf(KindSyntax, "defer takes exactly one form")
	}
	if !env.pushDefer(deferred{form: items[0], env: env}) {
		return Value{}, errf(KindSyntax, "defer has no enclosing function or top-level form")
	}
	return Nil, nil
}

// runDefers evaluates the frame's scheduled defers, newest first. A failing
// defer never masks the frame's primary outcome: it is logged and the
// remaining defers still run.
func (ip *Interp) runDefers(frame *Env) {
	for _, d := range frame.takeDefers() {
		if _, err := ip.evalValue(d.form, d.env); err != nil {
			runtimeLog.WithError(err).Warn("defer expression failed")
		}
	}
}

// evalLoop is the trampoline: the body runs in a loop-marked frame, and a
// tail signal from recur rebinds a fresh frame and iterates. Host stack depth
// stays constant in the iteration count.
func (ip *Interp) evalLoop(args *Cell, env *Env) (Value, error) {
	items := cellSlice(args)
	if len(items) == 0 || items[0].Tag != TVector {
		return Value{}, errf(KindSyntax, "loop needs a binding vector")
	}
	bindForms := items[0].Data.([]Value)
	if len(bindForms)%2 != 0 {
		return Value{}, errf(KindSyntax, "loop bindings come in pattern/value pairs")
	}
	n := len(bindForms) / 2
	pats := make([]*pattern, n)
	patForms := make([]Value, n)

	frame := newFrame(env, frameLoop)
	frame.loopArity = n
	for i := 0; i < len(bindForms); i += 2 {
		p, err := compilePattern(bindForms[i])
		if err != nil {
			return Value{}, err
		}
		pats[i/2] = p
		patForms[i/2] = bindForms[i]
		v, err := ip.evalValue(bindForms[i+1], frame)
		if err != nil {
			return Value{}, err
		}
		if err := destructure(p, bindForms[i], v, frame); err != nil {
			return Value{}, err
		}
	}

	body := items[1:]
	for {
		res, err := ip.evalBody(body, frame)
		if err != nil {
			return Value{}, err
		}
		if res.Tag != tTail {
			return res, nil
		}
		vals := res.Data.(*tailSignal).vals
		next := newFrame(env, frameLoop)
		next.loopArity = n
		for i, p := range pats {
			if err := destructure(p, patForms[i], vals[i], next); err != nil {
				return Value{}, err
			}
		}
		frame = next
	}
}

// evalRecur resolves its target loop through the frame chain. All misuses are
// raised here, at the recur site: non-tail misuse is caught by evalValue when
// the signal surfaces somewhere it must not.
func (ip *Interp) evalRecur(args *Cell, env *Env) (Value, error) {
	var vals []Value
	for a := args; a != nil; a = a.Tail {
		v, err := ip.evalValue(a.Head, env)
		if err != nil {
			return Value{}, err
		}
		vals = append(vals, v)
	}
	for f := env; f != nil; f = f.parent {
		switch f.kind {
		case frameLoop:
			if len(vals) != f.loopArity {
				return Value{}, errf(KindRecur, "recur supplies %d values, loop binds %d", len(vals), f.loopArity)
			}
			return Value{Tag: tTail, Data: &tailSignal{vals: vals}}, nil
		case frameFunc:
			return Value{}, errf(KindRecur, "recur crosses a function boundary")
		case frameTop:
			return Value{}, errf(KindRecur, "recur outside loop")
		}
	}
	return Value{}, errf(KindRecur, "recur outside loop")
}

// ---- application -------------------------------------------------------------

// apply invokes an already-evaluated callee on already-evaluated arguments.
func (ip *Interp) apply(fv Value, args []Value) (Value, error) {
	switch fv.Tag {
	case TFunc:
		f := fv.Data.(*Func)
		if f.Native != "" {
			return ip.callNative(f, args)
		}
		return ip.applyClosure(f, args)
	case TMacro:
		return Value{}, errf(KindTypeMismatch, "macro %s cannot be applied at runtime", funcName(fv.Data.(*Func)))
	default:
		return Value{}, errf(KindTypeMismatch, "%s is not callable", TypeName(fv))
	}
}

func (ip *Interp) callNative(f *Func, args []Value) (Value, error) {
	impl, ok := ip.natives[f.Native]
	if !ok {
		return Value{}, errf(KindNative, "native %s is not registered", f.Native)
	}
	if err := checkArity(f.Native, f.NArity, len(args)); err != nil {
		return Value{}, err
	}
	return impl(ip, args)
}

func checkArity(name string, a Arity, n int) error {
	if n >= a.Min && (a.Max < 0 || n <= a.Max) {
		return nil
	}
	switch {
	case a.Max < 0:
		return errf(KindArity, "%s expects at least %d args, got %d", name, a.Min, n)
	case a.Min == a.Max:
		return errf(KindArity, "%s expects %d args, got %d", name, a.Min, n)
	default:
		return errf(KindArity, "%s expects %d to %d args, got %d", name, a.Min, a.Max, n)
	}
}

func (ip *Interp) applyClosure(f *Func, args []Value) (Value, error) {
	cp := f.cp
	if cp == nil {
		var err error
		if cp, err = compileParams(f.Params); err != nil {
			return Value{}, err
		}
	}
	variadic := cp.rest != nil || cp.restAny
	if variadic {
		if len(args) < len(cp.fixed) {
			return Value{}, errf(KindArity, "%s expects at least %d args, got %d", funcName(f), len(cp.fixed), len(args))
		}
	} else if len(args) != len(cp.fixed) {
		return Value{}, errf(KindArity, "%s expects %d args, got %d", funcName(f), len(cp.fixed), len(args))
	}

	frame := newFrame(f.Env, frameFunc)
	for i, p := range cp.fixed {
		if err := destructure(p, cp.fixedForms[i], args[i], frame); err != nil {
			return Value{}, err
		}
	}
	if cp.rest != nil {
		frame.Define(cp.rest.Name, listFromSlice(args[len(cp.fixed):]))
	}

	res, err := ip.evalBody(f.Body, frame)
	ip.runDefers(frame)
	if err != nil {
		return Value{}, err
	}
	if res.Tag == tTail {
		return Value{}, errf(KindRecur, "recur crosses a function boundary")
	}
	return res, nil
}

func funcName(f *Func) string {
	if f.Name != "" {
		return f.Name
	}
	return "fn"
}
