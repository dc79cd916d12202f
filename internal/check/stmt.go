package check

import (
	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/diag"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// checkStmt type-checks one residual statement against ctx, per spec.md
// §4.5 point 2. By the time cfgbuild has run, If/While/Break/Continue/Return
// have all been lowered away into branches and %ret_i assignments, so only
// these four statement shapes remain inside a BB's body.
func checkStmt(ctx *Context, stmt ast.Stmt) error {
	s := &exprSynth{ctx: ctx}
	switch st := stmt.(type) {
	case *ast.AssignStmt:
		return checkAssign(s, st)
	case *ast.AugAssignStmt:
		return checkAugAssign(s, st)
	case *ast.AnnAssignStmt:
		return checkAnnAssign(s, st)
	case *ast.ExprStmt:
		return checkExprStmt(s, st)
	default:
		return diag.Internal(stmt.Span(), "unexpected residual statement kind %T after CFG construction", stmt)
	}
}

func checkAssign(s *exprSynth, st *ast.AssignStmt) error {
	rhsType, err := s.synth(st.Value)
	if err != nil {
		return err
	}
	for _, target := range st.Targets {
		if err := bindTarget(s, target, rhsType, st.Span()); err != nil {
			return err
		}
	}
	consumeSource(s, st.Targets[len(st.Targets)-1], st.Value, rhsType, st.Span())
	return nil
}

// bindTarget structurally unpacks target against t, binding each name in
// the local context (spec.md §4.5 point 2's "unpack structurally, erroring
// if arities mismatch"). It never consumes anything itself: ownership
// transfer is consumeSource's job, run once per statement after every
// target has been bound.
func bindTarget(s *exprSynth, target ast.Expr, t gtypes.Type, at ast.Span) error {
	switch tg := target.(type) {
	case *ast.Name:
		s.ctx.bind(tg.Ident, t, at)
		return nil

	case *ast.TupleExpr:
		if t.Kind == gtypes.KindStruct {
			return checkStructUnpack(s, tg, t, at)
		}
		if t.Kind != gtypes.KindTuple || len(t.Tuple) != len(tg.Elts) {
			return diag.New(diag.KindArity, tg.Span(),
				"cannot unpack `%s` into %d target(s)", t.String(), len(tg.Elts))
		}
		for i, e := range tg.Elts {
			if err := bindTarget(s, e, t.Tuple[i], at); err != nil {
				return err
			}
		}
		return nil

	case *ast.SubscriptExpr, *ast.AttributeExpr:
		// Assigning into a container element or field: the base/index must
		// already be in scope, checked as ordinary reads.
		if _, err := s.synth(tg); err != nil {
			return err
		}
		return nil

	default:
		return diag.Internal(target.Span(), "unsupported assignment target %T", target)
	}
}

// checkStructUnpack destructures a struct value field-by-field against a
// tuple target (`a, b = pair`), binding each name to its field's declared
// type (spec.md §4.6 third bullet). Unlike tuple types, a struct's field
// order isn't carried on the type itself, so the registry is consulted for
// the field layout; a target arity that doesn't match the struct's field
// count is an error rather than a partial bind, since a struct's linear
// fields would otherwise leak unconsumed. The struct value's own ownership
// transfer happens afterward in consumeSource, not here (see
// check_test.go's TestCheckStructUnpackTransfersOwnership).
func checkStructUnpack(s *exprSynth, tg *ast.TupleExpr, t gtypes.Type, at ast.Span) error {
	fields, ok := s.ctx.globals.StructFields(t.StructDef)
	if !ok {
		return diag.Internal(tg.Span(), "unknown struct definition for `%s`", t.String())
	}
	if len(fields) != len(tg.Elts) {
		return diag.New(diag.KindArity, tg.Span(),
			"cannot unpack `%s` (%d field(s)) into %d target(s)", t.String(), len(fields), len(tg.Elts))
	}
	for i, e := range tg.Elts {
		if err := bindTarget(s, e, fields[i].Type, at); err != nil {
			return err
		}
	}
	return nil
}

// consumeSource transfers ownership from value into target after binding.
// When both sides are parallel tuples (`a, b = (q1, q2)`), each element of
// the *source* expression is consumed independently, so a literal tuple of
// linear values is fully accounted for even though the target names are
// freshly bound, not reused. Any other shape collapses to a single
// consume() of the whole source value (the common `y = x` move case;
// spec.md §4.6's owned-pattern consumption).
func consumeSource(s *exprSynth, target, value ast.Expr, t gtypes.Type, at ast.Span) {
	tt, tOk := target.(*ast.TupleExpr)
	vt, vOk := value.(*ast.TupleExpr)
	if tOk && vOk && t.Kind == gtypes.KindTuple && len(tt.Elts) == len(vt.Elts) {
		for i, elem := range vt.Elts {
			consumeSource(s, tt.Elts[i], elem, t.Tuple[i], at)
		}
		return
	}
	s.consume(value, t, at)
}

func checkAugAssign(s *exprSynth, st *ast.AugAssignStmt) error {
	name, ok := st.Target.(*ast.Name)
	if !ok {
		return diag.New(diag.KindType, st.Target.Span(), "augmented assignment target must be a name")
	}
	v, ok := s.ctx.lookup(name.Ident)
	if !ok {
		return diag.New(diag.KindDefiniteAssignment, name.Span(), "`%s` is not defined", name.Ident)
	}
	valueType, err := s.synth(st.Value)
	if err != nil {
		return err
	}
	method, ok := binOpMethod[st.Op]
	if !ok {
		return diag.Internal(st.Span(), "unknown augmented-assignment operator %q", st.Op)
	}
	// `__iadd__`-style in-place method takes priority; fall back to the
	// plain binary method (spec.md §4.5: "resolve via __iadd__ / __add__").
	inplace := "__i" + method[2:]
	sig, ok := s.ctx.globals.Dispatch(v.Type, inplace)
	if !ok {
		sig, ok = s.ctx.globals.Dispatch(v.Type, method)
	}
	if !ok {
		return diag.New(diag.KindType, st.Span(), "no method `%s` on type `%s`", method, v.Type.String())
	}
	if len(sig.Inputs) != 1 || !assignableWithCoercion(sig.Inputs[0], valueType) {
		return diag.New(diag.KindType, st.Value.Span(), "cannot apply `%s` to `%s`", st.Op, valueType.String())
	}
	if len(sig.Outputs) != 1 {
		return diag.Internal(st.Span(), "operator method for %q must return exactly one value", st.Op)
	}
	s.ctx.bind(name.Ident, sig.Outputs[0], st.Span())
	return nil
}

func checkAnnAssign(s *exprSynth, st *ast.AnnAssignStmt) error {
	if st.Value == nil {
		// A bare declaration with no initializer introduces no binding yet;
		// definite-assignment will flag any use before a later assignment.
		return nil
	}
	rhsType, err := s.synth(st.Value)
	if err != nil {
		return err
	}
	if err := bindTarget(s, st.Target, rhsType, st.Span()); err != nil {
		return err
	}
	consumeSource(s, st.Target, st.Value, rhsType, st.Span())
	return nil
}

func checkExprStmt(s *exprSynth, st *ast.ExprStmt) error {
	t, err := s.synth(st.Value)
	if err != nil {
		return err
	}
	if t.Linear() {
		return diag.New(diag.KindLinearity, st.Span(),
			"value of linear type `%s` is discarded without being consumed", t.String())
	}
	return nil
}
