// pattern.go — structural pattern matching.
//
// One matcher serves match clauses, fn parameters and let/loop bindings.
// Pattern forms compile once into a small tree; matching appends bindings in
// order of appearance so installing them into a frame is deterministic.
// Guards are clause-level: match evaluates a clause's when-expression in a
// frame that already holds the clause's bindings.
//
// Pattern forms:
//
//	1 "s" :k true nil   literal (compared with Eq)
//	_                   wildcard, binds nothing
//	name                bind
//	[p1 p2 & rest]      vector pattern; matches lists and vectors;
//	                    optional trailing :as name binds the whole value
//	{:k p ...}          map pattern; keys must be present; the :as key
//	                    binds the whole map
//	(or p1 p2 ...)      first matching alternative wins
//	(quote x)           literal symbol (or any quoted form)

package qi

type patternKind uint8

const (
	patLiteral patternKind = iota
	patWildcard
	patBind
	patVector
	patMap
	patOr
)

type pattern struct {
	kind    patternKind
	lit     Value         // patLiteral
	name    *Symbol       // patBind
	elems   []*pattern    // patVector sub-patterns, patOr alternatives
	rest    *Symbol       // patVector: & target; nil when absent
	restAny bool          // patVector: & _ consumes without binding
	entries []mapPatEntry // patMap
	asName  *Symbol       // patVector / patMap :as binding
}

type mapPatEntry struct {
	key Value
	pat *pattern
}

// binding is one name bound during a match, in order of appearance.
type binding struct {
	name *Symbol
	val  Value
}

// compilePattern turns a pattern form into its matcher tree.
func compilePattern(form Value) (*pattern, error) {
	switch form.Tag {
	case TNil, TBool, TInt, TFloat, TString, TKeyword:
		return &pattern{kind: patLiteral, lit: form}, nil
	case TSymbol:
		s := form.Data.(*Symbol)
		if s == symWild {
			return &pattern{kind: patWildcard}, nil
		}
		return &pattern{kind: patBind, name: s}, nil
	case TVector:
		return compileVectorPattern(form.Data.([]Value))
	case TMap:
		return compileMapPattern(form.Data.(*MapObject))
	case TList:
		items := cellSlice(listCell(form))
		if len(items) == 0 {
			return &pattern{kind: patLiteral, lit: EmptyList}, nil
		}
		if items[0].Tag == TSymbol {
			switch items[0].Data.(*Symbol) {
			case symQuote:
				if len(items) != 2 {
					return nil, errf(KindSyntax, "quote pattern takes exactly one form")
				}
				return &pattern{kind: patLiteral, lit: items[1]}, nil
			case symOr:
				if len(items) < 2 {
					return nil, errf(KindSyntax, "or pattern needs at least one alternative")
				}
				alts := make([]*pattern, 0, len(items)-1)
				for _, alt := range items[1:] {
					p, err := compilePattern(alt)
					if err != nil {
						return nil, err
					}
					alts = append(alts, p)
				}
				return &pattern{kind: patOr, elems: alts}, nil
			}
		}
		return nil, errf(KindSyntax, "invalid pattern %s", FormatValue(form))
	}
	return nil, errf(KindSyntax, "invalid pattern %s", FormatValue(form))
}

func compileVectorPattern(items []Value) (*pattern, error) {
	p := &pattern{kind: patVector}
	i := 0
	for i < len(items) {
		it := items[i]
		if it.Tag == TSymbol && it.Data.(*Symbol) == symAmp {
			if i+1 >= len(items) {
				return nil, errf(KindSyntax, "& in a vector pattern needs a rest name")
			}
			restForm := items[i+1]
			if restForm.Tag != TSymbol {
				return nil, errf(KindSyntax, "rest target after & must be a symbol, got %s", FormatValue(restForm))
			}
			rs := restForm.Data.(*Symbol)
			if rs == symWild {
				p.restAny = true
			} else {
				p.rest = rs
			}
			i += 2
			continue
		}
		if it.Tag == TKeyword && it.Data.(*Keyword) == kwAs {
			if i+1 >= len(items) || items[i+1].Tag != TSymbol {
				return nil, errf(KindSyntax, ":as in a pattern needs a symbol")
			}
			p.asName = items[i+1].Data.(*Symbol)
			i += 2
			continue
		}
		if p.rest != nil || p.restAny {
			return nil, errf(KindSyntax, "only :as may follow the rest pattern")
		}
		sub, err := compilePattern(it)
		if err != nil {
			return nil, err
		}
		p.elems = append(p.elems, sub)
		i++
	}
	return p, nil
}

func compileMapPattern(m *MapObject) (*pattern, error) {
	p := &pattern{kind: patMap}
	for _, k := range m.Keys() {
		sub, _ := m.Get(k)
		if k.Tag == TKeyword && k.Data.(*Keyword) == kwAs {
			if sub.Tag != TSymbol {
				return nil, errf(KindSyntax, ":as in a pattern needs a symbol")
			}
			p.asName = sub.Data.(*Symbol)
			continue
		}
		sp, err := compilePattern(sub)
		if err != nil {
			return nil, err
		}
		p.entries = append(p.entries, mapPatEntry{key: k, pat: sp})
	}
	return p, nil
}

// matchValue matches v against p, appending bindings on success. A failed
// match leaves binds untouched.
func matchValue(p *pattern, v Value, binds *[]binding) bool {
	switch p.kind {
	case patWildcard:
		return true
	case patLiteral:
		return Eq(p.lit, v)
	case patBind:
		*binds = append(*binds, binding{name: p.name, val: v})
		return true
	case patOr:
		for _, alt := range p.elems {
			var scratch []binding
			if matchValue(alt, v, &scratch) {
				*binds = append(*binds, scratch...)
				return true
			}
		}
		return false
	case patVector:
		items, ok := seqSlice(v)
		if !ok {
			return false
		}
		hasRest := p.rest != nil || p.restAny
		if hasRest {
			if len(items) < len(p.elems) {
				return false
			}
		} else if len(items) != len(p.elems) {
			return false
		}
		var scratch []binding
		for i, sub := range p.elems {
			if !matchValue(sub, items[i], &scratch) {
				return false
			}
		}
		if p.rest != nil {
			scratch = append(scratch, binding{name: p.rest, val: listFromSlice(items[len(p.elems):])})
		}
		if p.asName != nil {
			scratch = append(scratch, binding{name: p.asName, val: v})
		}
		*binds = append(*binds, scratch...)
		return true
	case patMap:
		if v.Tag != TMap {
			return false
		}
		m := v.Data.(*MapObject)
		var scratch []binding
		for _, e := range p.entries {
			mv, ok := m.Get(e.key)
			if !ok {
				return false
			}
			if !matchValue(e.pat, mv, &scratch) {
				return false
			}
		}
		if p.asName != nil {
			scratch = append(scratch, binding{name: p.asName, val: v})
		}
		*binds = append(*binds, scratch...)
		return true
	}
	return false
}

// installBindings defines the collected bindings in env, in match order.
func installBindings(binds []binding, env *Env) {
	for _, b := range binds {
		env.Define(b.name.Name, b.val)
	}
}

// destructure matches v against a compiled binding pattern and installs the
// bindings. Binding positions (fn params, let, loop) treat a failed match as
// a type mismatch rather than falling through.
func destructure(p *pattern, patForm, v Value, env *Env) error {
	var binds []binding
	if !matchValue(p, v, &binds) {
		return errf(KindTypeMismatch, "pattern %s does not match %s", FormatValue(patForm), FormatValue(v))
	}
	installBindings(binds, env)
	return nil
}

// ---- parameter vectors --------------------------------------------------------

// compiledParams is a closure's parameter list, compiled once at definition.
// fixed holds the positional patterns; rest names the variadic tail after &
// (restAny when the tail is discarded with _).
type compiledParams struct {
	fixed      []*pattern
	fixedForms []Value
	rest       *Symbol
	restAny    bool
}

func compileParams(params []Value) (*compiledParams, error) {
	cp := &compiledParams{}
	for i := 0; i < len(params); i++ {
		p := params[i]
		if isSymbol(p, symAmp) {
			if i+1 >= len(params) || params[i+1].Tag != TSymbol {
				return nil, errf(KindSyntax, "& in a parameter vector needs a rest name")
			}
			if i+2 != len(params) {
				return nil, errf(KindSyntax, "rest parameter must be last")
			}
			rs := params[i+1].Data.(*Symbol)
			if rs == symWild {
				cp.restAny = true
			} else {
				cp.rest = rs
			}
			return cp, nil
		}
		pat, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		cp.fixed = append(cp.fixed, pat)
		cp.fixedForms = append(cp.fixedForms, p)
	}
	return cp, nil
}

// ---- match clause parsing ---------------------------------------------------

// matchClause is one parsed clause of a match form: pattern, optional guard,
// body. Clauses are flat in the source: pat [when guard] -> body.
type matchClause struct {
	patForm  Value
	pat      *pattern
	guard    Value
	hasGuard bool
	body     Value
}

// parseMatchClauses splits the forms after the scrutinee into clauses.
func parseMatchClauses(forms []Value) ([]matchClause, error) {
	var clauses []matchClause
	i := 0
	for i < len(forms) {
		cl := matchClause{patForm: forms[i]}
		p, err := compilePattern(forms[i])
		if err != nil {
			return nil, err
		}
		cl.pat = p
		i++
		if i < len(forms) && isSymbol(forms[i], symWhen) {
			if i+1 >= len(forms) {
				return nil, errf(KindSyntax, "match clause: when needs a guard expression")
			}
			cl.guard = forms[i+1]
			cl.hasGuard = true
			i += 2
		}
		if i >= len(forms) || !isSymbol(forms[i], symArrow) {
			return nil, errf(KindSyntax, "match clause for %s: expected ->", FormatValue(cl.patForm))
		}
		i++
		if i >= len(forms) {
			return nil, errf(KindSyntax, "match clause for %s: missing body after ->", FormatValue(cl.patForm))
		}
		cl.body = forms[i]
		i++
		clauses = append(clauses, cl)
	}
	if len(clauses) == 0 {
		return nil, errf(KindSyntax, "match needs at least one clause")
	}
	return clauses, nil
}

func isSymbol(v Value, s *Symbol) bool {
	return v.Tag == TSymbol && v.Data.(*Symbol) == s
}
