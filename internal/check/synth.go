package check

import (
	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/diag"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// binOpMethod maps a binary operator token to the instance method that
// implements it (spec.md §4.5's "resolve via the instance-method registry").
var binOpMethod = map[string]string{
	"+": "__add__", "-": "__sub__", "*": "__mul__", "/": "__truediv__",
	"//": "__floordiv__", "%": "__mod__", "**": "__pow__",
	"&": "__and__", "|": "__or__", "^": "__xor__",
	"<<": "__lshift__", ">>": "__rshift__", "@": "__matmul__",
}

// compareMethod maps a comparison operator to its dunder method.
var compareMethod = map[string]string{
	"<": "__lt__", "<=": "__le__", ">": "__gt__", ">=": "__ge__",
	"==": "__eq__", "!=": "__ne__",
}

// unaryOpMethod maps a unary operator to its dunder method; "not" is handled
// separately since it coerces via __bool__ rather than dispatching itself.
var unaryOpMethod = map[string]string{"-": "__neg__", "+": "__pos__", "~": "__invert__"}

// exprSynth synthesizes a type for an expression against ctx, consuming
// linear operands as the surface syntax dictates (spec.md §4.6).
type exprSynth struct {
	ctx *Context
}

func (s *exprSynth) synth(e ast.Expr) (gtypes.Type, error) {
	switch n := e.(type) {
	case *ast.Name:
		return s.synthName(n)
	case *ast.Constant:
		return s.synthConstant(n), nil
	case *ast.TupleExpr:
		return s.synthTuple(n)
	case *ast.ListExpr:
		return s.synthList(n)
	case *ast.CallExpr:
		return s.synthCall(n)
	case *ast.AttributeExpr:
		return s.synthAttribute(n)
	case *ast.SubscriptExpr:
		return s.synthSubscript(n)
	case *ast.BinOp:
		return s.synthBinOp(n)
	case *ast.UnaryOp:
		return s.synthUnaryOp(n)
	default:
		return gtypes.Type{}, diag.Internal(e.Span(), "unexpected residual expression kind %T after CFG construction", e)
	}
}

func (s *exprSynth) synthName(n *ast.Name) (gtypes.Type, error) {
	v, ok := s.ctx.lookup(n.Ident)
	if !ok {
		if t, ok := s.ctx.globals.Lookup(n.Ident); ok {
			return t, nil
		}
		if s.ctx.maybeAssigned[n.Ident] {
			return gtypes.Type{}, diag.New(diag.KindDefiniteAssignment, n.Span(),
				"`%s` is not defined on all paths", n.Ident)
		}
		return gtypes.Type{}, diag.New(diag.KindDefiniteAssignment, n.Span(), "`%s` is not defined", n.Ident)
	}
	if v.Type.Linear() && v.Used != nil {
		return gtypes.Type{}, diag.New(diag.KindLinearity, n.Span(),
			"`%s` of linear type `%s` has already been used", n.Ident, v.Type.String()).
			WithSecondary(*v.Used).
			WithNote("first used here", v.Used)
	}
	return v.Type, nil
}

func (s *exprSynth) synthConstant(n *ast.Constant) gtypes.Type {
	switch n.Kind {
	case ast.ConstBool:
		return gtypes.Bool()
	case ast.ConstInt:
		return gtypes.Numeric(gtypes.Int)
	case ast.ConstFloat:
		return gtypes.Numeric(gtypes.Float)
	default:
		return gtypes.None()
	}
}

func (s *exprSynth) synthTuple(n *ast.TupleExpr) (gtypes.Type, error) {
	elems := make([]gtypes.Type, len(n.Elts))
	for i, e := range n.Elts {
		t, err := s.synth(e)
		if err != nil {
			return gtypes.Type{}, err
		}
		elems[i] = t
	}
	return gtypes.Tuple(elems...), nil
}

func (s *exprSynth) synthList(n *ast.ListExpr) (gtypes.Type, error) {
	if len(n.Elts) == 0 {
		return gtypes.Array(gtypes.None(), gtypes.Const{Known: true, Value: 0}), nil
	}
	elem, err := s.synth(n.Elts[0])
	if err != nil {
		return gtypes.Type{}, err
	}
	for _, e := range n.Elts[1:] {
		t, err := s.synth(e)
		if err != nil {
			return gtypes.Type{}, err
		}
		if !gtypes.Equal(t, elem) {
			return gtypes.Type{}, diag.New(diag.KindType, e.Span(),
				"list element has type `%s`, expected `%s`", t.String(), elem.String())
		}
	}
	return gtypes.Array(elem, gtypes.Const{Known: true, Value: int64(len(n.Elts))}), nil
}

func (s *exprSynth) synthAttribute(n *ast.AttributeExpr) (gtypes.Type, error) {
	// A bare attribute reference (not immediately called) has no meaning in
	// Guppy's surface language beyond method dispatch, which synthCall
	// handles directly on the CallExpr so the receiver is only synthesized
	// once. Reaching here means `x.attr` was used as a value.
	_, err := s.synth(n.Value)
	if err != nil {
		return gtypes.Type{}, err
	}
	return gtypes.Type{}, diag.New(diag.KindType, n.Span(), "`.%s` is not a value; only method calls are supported", n.Attr)
}

func (s *exprSynth) synthSubscript(n *ast.SubscriptExpr) (gtypes.Type, error) {
	base, err := s.synth(n.Value)
	if err != nil {
		return gtypes.Type{}, err
	}
	if _, err := s.synth(n.Index); err != nil {
		return gtypes.Type{}, err
	}
	return s.borrowSubscript(n, base)
}

// borrowSubscript produces the element type of a[i] as a temporary borrow
// scoped to the enclosing call (spec.md §4.6 closing paragraph). It is
// never itself a consuming use: even when the array's element type is
// linear, `a[i]` alone does not set Variable.Used, since the borrowed
// element must still be accounted for by the container (a setter call or
// another borrow) rather than treated as moved out. Named separately from
// synthSubscript so the non-setter read path and the assignment-target
// path (bindTarget's SubscriptExpr case) both funnel through the same
// borrow semantics instead of duplicating the array-kind check.
func (s *exprSynth) borrowSubscript(n *ast.SubscriptExpr, base gtypes.Type) (gtypes.Type, error) {
	if base.Kind != gtypes.KindArray {
		return gtypes.Type{}, diag.New(diag.KindType, n.Span(), "`%s` is not subscriptable", base.String())
	}
	return *base.ArrayElem, nil
}

func (s *exprSynth) synthBinOp(n *ast.BinOp) (gtypes.Type, error) {
	left, err := s.synth(n.Left)
	if err != nil {
		return gtypes.Type{}, err
	}
	right, err := s.synth(n.Right)
	if err != nil {
		return gtypes.Type{}, err
	}
	left, right = coerceNumericOperands(n, left, right)
	method, ok := binOpMethod[n.Op]
	if !ok {
		return gtypes.Type{}, diag.Internal(n.Span(), "unknown binary operator %q", n.Op)
	}
	sig, ok := s.ctx.globals.Dispatch(left, method)
	if !ok {
		return gtypes.Type{}, diag.New(diag.KindType, n.Span(), "no method `%s` on type `%s`", method, left.String())
	}
	if len(sig.Inputs) != 1 {
		return gtypes.Type{}, diag.Internal(n.Span(), "operator method %q has arity %d, want 1", method, len(sig.Inputs))
	}
	if !assignableWithCoercion(sig.Inputs[0], right) {
		return gtypes.Type{}, diag.New(diag.KindType, n.Right.Span(),
			"expected `%s`, found `%s`", sig.Inputs[0].String(), right.String())
	}
	if len(sig.Outputs) != 1 {
		return gtypes.Type{}, diag.Internal(n.Span(), "operator method %q must return exactly one value", method)
	}
	return sig.Outputs[0], nil
}

func (s *exprSynth) synthUnaryOp(n *ast.UnaryOp) (gtypes.Type, error) {
	if n.Op == "not" {
		if _, err := s.synth(n.Operand); err != nil {
			return gtypes.Type{}, err
		}
		return gtypes.Bool(), nil
	}
	operand, err := s.synth(n.Operand)
	if err != nil {
		return gtypes.Type{}, err
	}
	method, ok := unaryOpMethod[n.Op]
	if !ok {
		return gtypes.Type{}, diag.Internal(n.Span(), "unknown unary operator %q", n.Op)
	}
	sig, ok := s.ctx.globals.Dispatch(operand, method)
	if !ok {
		return gtypes.Type{}, diag.New(diag.KindType, n.Span(), "no method `%s` on type `%s`", method, operand.String())
	}
	if len(sig.Outputs) != 1 {
		return gtypes.Type{}, diag.Internal(n.Span(), "operator method %q must return exactly one value", method)
	}
	return sig.Outputs[0], nil
}

// coerceNumericOperands implements spec.md §4.5's numeric coercion for a
// BinOp whose two operands are numeric but of different kinds: the narrower
// side (Int/Nat) is widened by rewriting its AST node in place to a call to
// its `__float__` instance method, so dispatch and lowering both see the
// coerced type rather than the surface one (scenario S6, testable property
// 6). Left and right having already been synthesized once, this only
// patches the tree and the locally-held types; it must not re-synth either
// operand, since that would re-run any side effects (linear consumption)
// synth already performed.
func coerceNumericOperands(n *ast.BinOp, left, right gtypes.Type) (gtypes.Type, gtypes.Type) {
	if left.Kind != gtypes.KindNumeric || right.Kind != gtypes.KindNumeric || left.Numeric == right.Numeric {
		return left, right
	}
	floatT := gtypes.Numeric(gtypes.Float)
	if right.Numeric == gtypes.Float {
		n.Left = coerceToFloat(n.Left)
		return floatT, right
	}
	if left.Numeric == gtypes.Float {
		n.Right = coerceToFloat(n.Right)
		return left, floatT
	}
	return left, right
}

// coerceToFloat wraps e in a synthetic call to its `__float__` dunder, the
// AST shape package lower walks like any other instance-method call.
func coerceToFloat(e ast.Expr) ast.Expr {
	return ast.NewCallExpr(e.Span(), ast.NewAttributeExpr(e.Span(), e, "__float__"), nil)
}

// assignableWithCoercion reports whether a value of type `from` may be
// passed where `want` is expected, including the one-way numeric widening
// of spec.md §4.5 ("Numeric coercion"): Int/Nat -> Float.
func assignableWithCoercion(want, from gtypes.Type) bool {
	if gtypes.Equal(want, from) {
		return true
	}
	if want.Kind == gtypes.KindNumeric && want.Numeric == gtypes.Float &&
		from.Kind == gtypes.KindNumeric && (from.Numeric == gtypes.Int || from.Numeric == gtypes.Nat) {
		return true
	}
	return false
}
