package check

import (
	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/diag"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// consume marks e as the consuming use of a linear value if e is a bare
// variable reference, transferring ownership out of the context (spec.md
// §4.6: "consumption occurs when the variable is used as an owned
// argument, returned, or assigned as part of an owned pattern"). Non-Name
// expressions (a freshly synthesized call result, a literal) have no
// variable to mark.
func (s *exprSynth) consume(e ast.Expr, t gtypes.Type, at ast.Span) {
	if !t.Linear() {
		return
	}
	n, ok := e.(*ast.Name)
	if !ok {
		return
	}
	if v, ok := s.ctx.lookup(n.Ident); ok {
		v.Used = &at
	}
}

func (s *exprSynth) synthCall(n *ast.CallExpr) (gtypes.Type, error) {
	sig, err := s.resolveCallee(n.Func)
	if err != nil {
		return gtypes.Type{}, err
	}
	if len(n.Args) != len(sig.Inputs) {
		return gtypes.Type{}, diag.New(diag.KindArity, n.Span(),
			"expected %d argument(s), found %d", len(sig.Inputs), len(n.Args))
	}
	argTypes := make([]gtypes.Type, len(n.Args))
	for i, arg := range n.Args {
		t, err := s.synth(arg)
		if err != nil {
			return gtypes.Type{}, err
		}
		argTypes[i] = t
	}
	sig, err = instantiate(sig, argTypes, n.Span())
	if err != nil {
		return gtypes.Type{}, err
	}
	for i, arg := range n.Args {
		argType := argTypes[i]
		want := sig.Inputs[i]
		if !assignableWithCoercion(want, argType) {
			return gtypes.Type{}, diag.New(diag.KindType, arg.Span(),
				"argument %d: expected `%s`, found `%s`", i, want.String(), argType.String())
		}
		owned := i < len(sig.InputOwned) && sig.InputOwned[i]
		if owned {
			s.consume(arg, argType, arg.Span())
		} else if argType.Linear() {
			if name, ok := arg.(*ast.Name); ok {
				if v, ok := s.ctx.lookup(name.Ident); ok && v.Used != nil {
					return gtypes.Type{}, diag.New(diag.KindLinearity, arg.Span(),
						"`%s` of linear type `%s` has already been used", name.Ident, v.Type.String()).
						WithSecondary(*v.Used)
				}
			}
		}
	}
	switch len(sig.Outputs) {
	case 0:
		return gtypes.None(), nil
	case 1:
		return sig.Outputs[0], nil
	default:
		return gtypes.Tuple(sig.Outputs...), nil
	}
}

// instantiate resolves sig's generic Parameters against the synthesized
// argument types (spec.md §4.5: "function types may carry parameters; call
// sites synthesize arguments, then unify to produce an instantiation").
// Signatures with no Params are returned unchanged; Unify only ever needs to
// look at Inputs, since every type parameter Guppy's prelude/struct
// definitions expose is reachable from some argument position.
func instantiate(sig FuncSig, argTypes []gtypes.Type, at ast.Span) (FuncSig, error) {
	if len(sig.Params) == 0 {
		return sig, nil
	}
	subst := make(map[int]gtypes.Type, len(sig.Params))
	for i, want := range sig.Inputs {
		if i >= len(argTypes) {
			break
		}
		if !gtypes.Unify(want, argTypes[i], subst) {
			return FuncSig{}, diag.New(diag.KindType, at,
				"argument %d: expected `%s`, found `%s`", i, want.String(), argTypes[i].String())
		}
	}
	for idx, p := range sig.Params {
		if p.Kind != gtypes.ParamType && p.Kind != gtypes.ParamOpaque {
			continue
		}
		if _, ok := subst[idx]; !ok {
			return FuncSig{}, diag.New(diag.KindType, at,
				"cannot infer type parameter `%s`", p.Name)
		}
	}
	out := FuncSig{
		Inputs:     make([]gtypes.Type, len(sig.Inputs)),
		InputOwned: sig.InputOwned,
		Outputs:    make([]gtypes.Type, len(sig.Outputs)),
		Params:     sig.Params,
	}
	for i, t := range sig.Inputs {
		out.Inputs[i] = gtypes.Substitute(t, subst)
	}
	for i, t := range sig.Outputs {
		out.Outputs[i] = gtypes.Substitute(t, subst)
	}
	return out, nil
}

// resolveCallee synthesizes the callee signature: a bare name is a
// top-level function lookup; `recv.method(...)` dispatches on the static
// type of recv (spec.md §4.5's "Instance-method dispatch").
func (s *exprSynth) resolveCallee(fn ast.Expr) (FuncSig, error) {
	switch f := fn.(type) {
	case *ast.Name:
		t, ok := s.ctx.globals.Lookup(f.Ident)
		if !ok {
			return FuncSig{}, diag.New(diag.KindDefiniteAssignment, f.Span(), "`%s` is not defined", f.Ident)
		}
		if t.Kind != gtypes.KindFunction {
			return FuncSig{}, diag.New(diag.KindType, f.Span(), "`%s` is not callable", f.Ident)
		}
		return FuncSig{Inputs: t.FuncInputs, Outputs: t.FuncOutputs, Params: t.FuncParams, InputOwned: t.FuncInputOwned}, nil

	case *ast.AttributeExpr:
		recv, err := s.synth(f.Value)
		if err != nil {
			return FuncSig{}, err
		}
		sig, ok := s.ctx.globals.Dispatch(recv, f.Attr)
		if !ok {
			return FuncSig{}, diag.New(diag.KindType, f.Span(), "no method `%s` on type `%s`", f.Attr, recv.String())
		}
		return sig, nil

	default:
		return FuncSig{}, diag.New(diag.KindType, fn.Span(), "expression is not callable")
	}
}
