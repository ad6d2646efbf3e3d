// macro.go — macro expansion and quasiquote instantiation.
//
// Expansion is a pre-eval pass: EvalForm rewrites each top-level form to a
// fixpoint before the desugarer or evaluator see it, so macros never exist at
// runtime. A list whose head symbol resolves to a TMacro is replaced by the
// macro closure applied to the raw argument forms; the walk recurses
// everywhere except quoted data, and inside quasiquote only into unquoted
// positions (tracked by depth).
//
// Hygiene: symbols ending in '#' inside a quasiquote template are rewritten
// to one fresh name per instantiation, so a macro's helper bindings cannot
// capture or be captured by names at the expansion site. gensym gives the
// same freshness explicitly.

package qi

import "strings"

// expansionBudget caps the number of macro applications per top-level form
// so a self-producing macro fails instead of spinning.
const expansionBudget = 100000

// macroexpandAll rewrites form until no macro call remains.
func (ip *Interp) macroexpandAll(form Value, env *Env) (Value, error) {
	budget := expansionBudget
	return ip.expandWalk(form, env, 0, &budget)
}

func (ip *Interp) expandWalk(form Value, env *Env, qqDepth int, budget *int) (Value, error) {
	switch form.Tag {
	case TList:
		c := listCell(form)
		if c == nil {
			return form, nil
		}
		if c.Head.Tag == TSymbol {
			switch c.Head.Data.(*Symbol) {
			case symQuote:
				return form, nil
			case symQuasi:
				return ip.expandSeq(form, env, qqDepth+1, budget)
			case symUnquote, symSplice:
				if qqDepth > 0 {
					return ip.expandSeq(form, env, qqDepth-1, budget)
				}
				return form, nil
			}
			if qqDepth == 0 {
				if mv, ok := env.Get(c.Head.Data.(*Symbol).Name); ok && mv.Tag == TMacro {
					if *budget <= 0 {
						return Value{}, errf(KindSyntax, "macro expansion of %s did not terminate", funcName(mv.Data.(*Func)))
					}
					*budget--
					out, err := ip.applyClosure(mv.Data.(*Func), cellSlice(c.Tail))
					if err != nil {
						return Value{}, err
					}
					return ip.expandWalk(out, env, 0, budget)
				}
			}
		}
		return ip.expandSeq(form, env, qqDepth, budget)
	case TVector:
		xs := form.Data.([]Value)
		out := make([]Value, len(xs))
		for i, x := range xs {
			v, err := ip.expandWalk(x, env, qqDepth, budget)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return Vec(out), nil
	case TMap:
		m := form.Data.(*MapObject)
		out := NewMapObject()
		for _, k := range m.Keys() {
			vf, _ := m.Get(k)
			v, err := ip.expandWalk(vf, env, qqDepth, budget)
			if err != nil {
				return Value{}, err
			}
			out.Set(k, v)
		}
		return MapVal(out), nil
	default:
		return form, nil
	}
}

// expandSeq walks every element of a list form at the given depth.
func (ip *Interp) expandSeq(form Value, env *Env, qqDepth int, budget *int) (Value, error) {
	items := cellSlice(listCell(form))
	out := make([]Value, len(items))
	for i, it := range items {
		v, err := ip.expandWalk(it, env, qqDepth, budget)
		if err != nil {
			return Value{}, err
		}
		out[i] = v
	}
	return listFromSlice(out), nil
}

// ---- quasiquote ---------------------------------------------------------------

// evalQuasiquote instantiates a template: unquote evaluates, splice evaluates
// and flattens into the surrounding sequence, everything else copies as data.
// One gensym table serves the whole instantiation, so every x# in a template
// refers to the same fresh symbol.
func (ip *Interp) evalQuasiquote(args *Cell, env *Env) (Value, error) {
	items := cellSlice(args)
	if len(items) != 1 {
		return Value{}, errf(KindSyntax, "quasiquote takes exactly one form")
	}
	gens := map[*Symbol]*Symbol{}
	return ip.qqWalk(items[0], env, 1, gens)
}

func (ip *Interp) qqWalk(form Value, env *Env, depth int, gens map[*Symbol]*Symbol) (Value, error) {
	switch form.Tag {
	case TSymbol:
		s := form.Data.(*Symbol)
		if n := s.Name; len(n) > 1 && strings.HasSuffix(n, "#") {
			fresh, ok := gens[s]
			if !ok {
				fresh = ip.Gensym(strings.TrimSuffix(n, "#") + "__").Data.(*Symbol)
				gens[s] = fresh
			}
			return symVal(fresh), nil
		}
		return form, nil
	case TList:
		c := listCell(form)
		if c == nil {
			return form, nil
		}
		if c.Head.Tag == TSymbol {
			switch c.Head.Data.(*Symbol) {
			case symUnquote:
				inner := cellSlice(c.Tail)
				if len(inner) != 1 {
					return Value{}, errf(KindSyntax, "unquote takes exactly one form")
				}
				if depth == 1 {
					return ip.evalValue(inner[0], env)
				}
				v, err := ip.qqWalk(inner[0], env, depth-1, gens)
				if err != nil {
					return Value{}, err
				}
				return listFromSlice([]Value{symVal(symUnquote), v}), nil
			case symSplice:
				inner := cellSlice(c.Tail)
				if len(inner) != 1 {
					return Value{}, errf(KindSyntax, "unquote-splicing takes exactly one form")
				}
				if depth == 1 {
					return Value{}, errf(KindSyntax, "unquote-splicing must appear inside a list or vector")
				}
				v, err := ip.qqWalk(inner[0], env, depth-1, gens)
				if err != nil {
					return Value{}, err
				}
				return listFromSlice([]Value{symVal(symSplice), v}), nil
			case symQuasi:
				inner := cellSlice(c.Tail)
				if len(inner) != 1 {
					return Value{}, errf(KindSyntax, "quasiquote takes exactly one form")
				}
				v, err := ip.qqWalk(inner[0], env, depth+1, gens)
				if err != nil {
					return Value{}, err
				}
				return listFromSlice([]Value{symVal(symQuasi), v}), nil
			}
		}
		out, err := ip.qqSeq(cellSlice(c), env, depth, gens)
		if err != nil {
			return Value{}, err
		}
		return listFromSlice(out), nil
	case TVector:
		out, err := ip.qqSeq(form.Data.([]Value), env, depth, gens)
		if err != nil {
			return Value{}, err
		}
		return Vec(out), nil
	case TMap:
		m := form.Data.(*MapObject)
		out := NewMapObject()
		for _, k := range m.Keys() {
			vf, _ := m.Get(k)
			v, err := ip.qqWalk(vf, env, depth, gens)
			if err != nil {
				return Value{}, err
			}
			out.Set(k, v)
		}
		return MapVal(out), nil
	default:
		return form, nil
	}
}

// qqSeq walks sequence elements, flattening unquote-splicing results in place.
func (ip *Interp) qqSeq(items []Value, env *Env, depth int, gens map[*Symbol]*Symbol) ([]Value, error) {
	var out []Value
	for _, it := range items {
		if c := listCell(it); c != nil && isSymbol(c.Head, symSplice) && depth == 1 {
			inner := cellSlice(c.Tail)
			if len(inner) != 1 {
				return nil, errf(KindSyntax, "unquote-splicing takes exactly one form")
			}
			v, err := ip.evalValue(inner[0], env)
			if err != nil {
				return nil, err
			}
			elems, ok := seqSlice(v)
			if !ok {
				return nil, errf(KindTypeMismatch, "unquote-splicing needs a list or vector, got %s", TypeName(v))
			}
			out = append(out, elems...)
			continue
		}
		v, err := ip.qqWalk(it, env, depth, gens)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
