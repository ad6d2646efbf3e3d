// desugar.go — pipeline rewriting.
//
// Pipelines are surface syntax only. After macro expansion, every list form
// whose second element is a pipeline operator folds left into ordinary
// applications, so the evaluator never sees |>. The rewrite descends the
// whole tree but never into quoted data, and inside quasiquote only into
// unquoted positions, mirroring the expander's walk.
//
//	(a |> (f x))    => (f x a)        call stage: _ substitutes, else appended
//	(a |> f)        => (f a)          bare stage applies directly
//	(a |>? s)       => skip when a is an error marker, unwrap {:ok v} first
//	(a ||> s)       => (pmap s' a)    s' is the stage as a unary fn
//	(a ~> s)        => (go (fn [] s[a]))
//	(a tap> s)      => evaluate s[a] for effect, yield a

package qi

type pipeKind uint8

const (
	pipePlain pipeKind = iota // |>
	pipeRail                  // |>?
	pipePar                   // ||>
	pipeAsync                 // ~>
	pipeTap                   // tap>
)

func pipeOp(v Value) (pipeKind, bool) {
	if v.Tag != TSymbol {
		return 0, false
	}
	switch v.Data.(*Symbol) {
	case symPipe:
		return pipePlain, true
	case symPipeRail:
		return pipeRail, true
	case symPipePar:
		return pipePar, true
	case symPipeGo:
		return pipeAsync, true
	case symPipeTap:
		return pipeTap, true
	}
	return 0, false
}

// desugarForm rewrites every pipeline chain in form into ordinary
// applications. It runs after macro expansion, so chains produced by macro
// templates are rewritten too.
func (ip *Interp) desugarForm(form Value) (Value, error) {
	return ip.desugarWalk(form, 0)
}

func (ip *Interp) desugarWalk(form Value, qqDepth int) (Value, error) {
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
				return ip.desugarSeq(form, qqDepth+1)
			case symUnquote, symSplice:
				if qqDepth > 0 {
					return ip.desugarSeq(form, qqDepth-1)
				}
				return form, nil
			}
		}
		if qqDepth == 0 {
			items := cellSlice(c)
			if len(items) >= 2 {
				if _, ok := pipeOp(items[1]); ok {
					folded, err := ip.foldPipeline(items)
					if err != nil {
						return Value{}, err
					}
					return ip.desugarWalk(folded, 0)
				}
			}
		}
		return ip.desugarSeq(form, qqDepth)
	case TVector:
		xs := form.Data.([]Value)
		out := make([]Value, len(xs))
		for i, x := range xs {
			v, err := ip.desugarWalk(x, qqDepth)
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
			v, err := ip.desugarWalk(vf, qqDepth)
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

func (ip *Interp) desugarSeq(form Value, qqDepth int) (Value, error) {
	items := cellSlice(listCell(form))
	out := make([]Value, len(items))
	for i, it := range items {
		v, err := ip.desugarWalk(it, qqDepth)
		if err != nil {
			return Value{}, err
		}
		out[i] = v
	}
	return listFromSlice(out), nil
}

// foldPipeline folds (value op stage op stage ...) left to right.
func (ip *Interp) foldPipeline(items []Value) (Value, error) {
	acc := items[0]
	for i := 1; i < len(items); i += 2 {
		kind, ok := pipeOp(items[i])
		if !ok {
			return Value{}, errf(KindSyntax, "expected a pipeline operator, got %s", FormatValue(items[i]))
		}
		if i+1 >= len(items) {
			return Value{}, errf(KindSyntax, "pipeline operator %s needs a stage", FormatValue(items[i]))
		}
		stage := items[i+1]
		if _, isOp := pipeOp(stage); isOp {
			return Value{}, errf(KindSyntax, "pipeline operator %s cannot be a stage", FormatValue(stage))
		}
		var err error
		acc, err = ip.rewriteStage(kind, acc, stage)
		if err != nil {
			return Value{}, err
		}
	}
	return acc, nil
}

func (ip *Interp) rewriteStage(kind pipeKind, acc, stage Value) (Value, error) {
	switch kind {
	case pipePlain:
		return insertStage(stage, acc), nil
	case pipeRail:
		// ((fn [g] (if (error? g) g stage[(unwrap g)])) acc)
		g := ip.Gensym("v__")
		body := listFromSlice([]Value{
			symVal(symIf),
			listFromSlice([]Value{symVal(symErrorP), g}),
			g,
			insertStage(stage, listFromSlice([]Value{symVal(symUnwrap), g})),
		})
		fn := listFromSlice([]Value{symVal(symFn), Vec([]Value{g}), body})
		return listFromSlice([]Value{fn, acc}), nil
	case pipeTap:
		// ((fn [g] (do stage[g] g)) acc)
		g := ip.Gensym("v__")
		body := listFromSlice([]Value{symVal(symDo), insertStage(stage, g), g})
		fn := listFromSlice([]Value{symVal(symFn), Vec([]Value{g}), body})
		return listFromSlice([]Value{fn, acc}), nil
	case pipePar:
		return listFromSlice([]Value{symVal(symPmap), ip.stageCallable(stage), acc}), nil
	case pipeAsync:
		thunk := listFromSlice([]Value{symVal(symFn), Vec([]Value{}), insertStage(stage, acc)})
		return listFromSlice([]Value{symVal(symGo), thunk}), nil
	}
	return Value{}, errf(KindSyntax, "unknown pipeline operator")
}

// insertStage applies a stage form to an input form: call stages substitute
// every top-level _ placeholder, or append the input as the last argument
// when no placeholder appears. Bare symbols and fn literals apply directly.
func insertStage(stage, input Value) Value {
	if stage.Tag == TList {
		c := listCell(stage)
		if c != nil && !isSymbol(c.Head, symFn) {
			items := cellSlice(c)
			replaced := false
			out := make([]Value, len(items))
			for i, it := range items {
				if isSymbol(it, symWild) {
					out[i] = input
					replaced = true
				} else {
					out[i] = it
				}
			}
			if !replaced {
				out = append(out, input)
			}
			return listFromSlice(out)
		}
	}
	return listFromSlice([]Value{stage, input})
}

// stageCallable views a stage as a unary function form: symbols and fn
// literals already are one, call stages wrap in a fresh fn.
func (ip *Interp) stageCallable(stage Value) Value {
	if stage.Tag == TSymbol {
		return stage
	}
	if c := listCell(stage); c != nil && isSymbol(c.Head, symFn) {
		return stage
	}
	g := ip.Gensym("v__")
	return listFromSlice([]Value{symVal(symFn), Vec([]Value{g}), insertStage(stage, g)})
}
