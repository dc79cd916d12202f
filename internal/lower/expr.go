package lower

import (
	"fmt"

	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/diag"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// binOpMethod and unaryOpMethod mirror check/synth.go's dunder dispatch
// tables exactly, so a lowered Call node targets the same method the
// checker already proved applicable. Duplicated rather than imported since
// lowering re-synthesizes types from already-checked code instead of
// sharing check's unexported Context/exprSynth.
var binOpMethod = map[string]string{
	"+": "__add__", "-": "__sub__", "*": "__mul__", "/": "__truediv__",
	"//": "__floordiv__", "%": "__mod__", "**": "__pow__",
	"&": "__and__", "|": "__or__", "^": "__xor__",
	"<<": "__lshift__", ">>": "__rshift__", "@": "__matmul__",
}

var unaryOpMethod = map[string]string{"-": "__neg__", "+": "__pos__", "~": "__invert__"}

// blockCtx is the running lowering state for one dataflow region: the graph
// being built, the dispatch registry, the region's own Block/Case/DFG node
// (new operator nodes are appended as its children), and the local name ->
// value binding as statements are lowered in order.
type blockCtx struct {
	graph   *Graph
	globals check.Globals
	block   *Node
	scope   map[string]valueRef
}

type valueRef struct {
	Ref  Ref
	Type gtypes.Type
}

func lowerStmt(bl *blockCtx, stmt ast.Stmt) error {
	switch st := stmt.(type) {
	case *ast.AssignStmt:
		val, err := lowerExpr(bl, st.Value)
		if err != nil {
			return err
		}
		for _, target := range st.Targets {
			if err := bindTarget(bl, target, val); err != nil {
				return err
			}
		}
		return nil

	case *ast.AugAssignStmt:
		return lowerAugAssign(bl, st)

	case *ast.AnnAssignStmt:
		if st.Value == nil {
			return nil
		}
		val, err := lowerExpr(bl, st.Value)
		if err != nil {
			return err
		}
		return bindTarget(bl, st.Target, val)

	case *ast.ExprStmt:
		_, err := lowerExpr(bl, st.Value)
		return err

	default:
		return diag.Internal(stmt.Span(), "unexpected residual statement kind %T during lowering", stmt)
	}
}

func lowerAugAssign(bl *blockCtx, st *ast.AugAssignStmt) error {
	name, ok := st.Target.(*ast.Name)
	if !ok {
		return diag.Internal(st.Span(), "augmented-assignment target must be a name by lowering time")
	}
	cur, ok := bl.scope[name.Ident]
	if !ok {
		return diag.Internal(st.Span(), "%q not in scope during lowering", name.Ident)
	}
	val, err := lowerExpr(bl, st.Value)
	if err != nil {
		return err
	}
	method, ok := binOpMethod[st.Op]
	if !ok {
		return diag.Internal(st.Span(), "unknown augmented-assignment operator %q", st.Op)
	}
	inplace := "__i" + method[2:]
	sig, ok := bl.globals.Dispatch(cur.Type, inplace)
	if !ok {
		sig, ok = bl.globals.Dispatch(cur.Type, method)
	}
	if !ok {
		return diag.Internal(st.Span(), "no dispatch target for %q during lowering", method)
	}
	node := bl.graph.node(bl.block, KindCall, method)
	wireArg(bl.graph, node, cur)
	wireArg(bl.graph, node, val)
	bl.scope[name.Ident] = callOutput(bl, node, sig.Outputs)
	return nil
}

func bindTarget(bl *blockCtx, target ast.Expr, val valueRef) error {
	switch t := target.(type) {
	case *ast.Name:
		bl.scope[t.Ident] = val
		return nil

	case *ast.TupleExpr:
		if val.Type.Kind == gtypes.KindStruct {
			fields, ok := bl.globals.StructFields(val.Type.StructDef)
			if !ok {
				return diag.Internal(t.Span(), "unknown struct definition during lowering")
			}
			node := bl.graph.node(bl.block, KindUnpackTuple, "")
			idx := bl.graph.addInput(node, "", val.Type)
			bl.graph.wire(val.Ref, node, idx)
			for i, e := range t.Elts {
				outIdx := bl.graph.addOutput(node, fields[i].Name, fields[i].Type)
				if err := bindTarget(bl, e, valueRef{Ref{node, outIdx}, fields[i].Type}); err != nil {
					return err
				}
			}
			return nil
		}
		node := bl.graph.node(bl.block, KindUnpackTuple, "")
		idx := bl.graph.addInput(node, "", val.Type)
		bl.graph.wire(val.Ref, node, idx)
		for i, e := range t.Elts {
			elemT := val.Type.Tuple[i]
			outIdx := bl.graph.addOutput(node, "", elemT)
			if err := bindTarget(bl, e, valueRef{Ref{node, outIdx}, elemT}); err != nil {
				return err
			}
		}
		return nil

	case *ast.SubscriptExpr, *ast.AttributeExpr:
		// Assigning into a container element or field: the base/index is a
		// read, not a binding (checked already validated it's in scope).
		_, err := lowerExpr(bl, target)
		return err

	default:
		return diag.Internal(target.Span(), "unsupported assignment target %T during lowering", target)
	}
}

func wireArg(g *Graph, node *Node, v valueRef) {
	idx := g.addInput(node, "", v.Type)
	g.wire(v.Ref, node, idx)
}

// callOutput builds the result value for a Call/CustomOp-style node with N
// declared outputs. A multi-output callee is wrapped in an immediate
// MakeTuple so the rest of lowering can treat every call's result as one
// value, matching check.synthCall's own collapse of multiple outputs into a
// single gtypes.Tuple.
func callOutput(bl *blockCtx, node *Node, outputs []gtypes.Type) valueRef {
	switch len(outputs) {
	case 0:
		return valueRef{Ref{}, gtypes.None()}
	case 1:
		idx := bl.graph.addOutput(node, "", outputs[0])
		return valueRef{Ref{node, idx}, outputs[0]}
	default:
		tup := bl.graph.node(bl.block, KindMakeTuple, "")
		for _, t := range outputs {
			outIdx := bl.graph.addOutput(node, "", t)
			inIdx := bl.graph.addInput(tup, "", t)
			bl.graph.wire(Ref{node, outIdx}, tup, inIdx)
		}
		tupT := gtypes.Tuple(outputs...)
		tupIdx := bl.graph.addOutput(tup, "", tupT)
		return valueRef{Ref{tup, tupIdx}, tupT}
	}
}

func lowerExpr(bl *blockCtx, e ast.Expr) (valueRef, error) {
	switch n := e.(type) {
	case *ast.Name:
		v, ok := bl.scope[n.Ident]
		if !ok {
			return valueRef{}, diag.Internal(n.Span(), "%q not in scope during lowering", n.Ident)
		}
		return v, nil

	case *ast.Constant:
		return lowerConstant(bl, n), nil

	case *ast.TupleExpr:
		return lowerTuple(bl, n)

	case *ast.ListExpr:
		return lowerList(bl, n)

	case *ast.CallExpr:
		return lowerCall(bl, n)

	case *ast.SubscriptExpr:
		return lowerSubscript(bl, n)

	case *ast.BinOp:
		return lowerBinOp(bl, n)

	case *ast.UnaryOp:
		return lowerUnaryOp(bl, n)

	default:
		return valueRef{}, diag.Internal(e.Span(), "unexpected residual expression kind %T during lowering", e)
	}
}

func lowerConstant(bl *blockCtx, n *ast.Constant) valueRef {
	var t gtypes.Type
	var label string
	switch n.Kind {
	case ast.ConstBool:
		t = gtypes.Bool()
		label = fmt.Sprintf("%t", n.Bool)
	case ast.ConstInt:
		t = gtypes.Numeric(gtypes.Int)
		label = fmt.Sprintf("%d", n.Int)
	case ast.ConstFloat:
		t = gtypes.Numeric(gtypes.Float)
		label = fmt.Sprintf("%g", n.Flt)
	default:
		t = gtypes.None()
		label = "None"
	}
	node := bl.graph.node(bl.block, KindLoadConstant, label)
	idx := bl.graph.addOutput(node, "", t)
	return valueRef{Ref{node, idx}, t}
}

func lowerTuple(bl *blockCtx, n *ast.TupleExpr) (valueRef, error) {
	elems := make([]valueRef, len(n.Elts))
	types := make([]gtypes.Type, len(n.Elts))
	for i, e := range n.Elts {
		v, err := lowerExpr(bl, e)
		if err != nil {
			return valueRef{}, err
		}
		elems[i] = v
		types[i] = v.Type
	}
	node := bl.graph.node(bl.block, KindMakeTuple, "")
	for _, v := range elems {
		wireArg(bl.graph, node, v)
	}
	t := gtypes.Tuple(types...)
	idx := bl.graph.addOutput(node, "", t)
	return valueRef{Ref{node, idx}, t}, nil
}

// lowerList lowers a homogeneous sequence literal via the prelude's array
// constructor, the nearest fit in §6's vocabulary (a "CustomOp" carries a
// prelude lowering callback; there is no dedicated list/array-literal node).
func lowerList(bl *blockCtx, n *ast.ListExpr) (valueRef, error) {
	if len(n.Elts) == 0 {
		t := gtypes.Array(gtypes.None(), gtypes.Const{Known: true, Value: 0})
		node := bl.graph.node(bl.block, KindCustomOp, "new_array")
		idx := bl.graph.addOutput(node, "", t)
		return valueRef{Ref{node, idx}, t}, nil
	}
	elems := make([]valueRef, len(n.Elts))
	for i, e := range n.Elts {
		v, err := lowerExpr(bl, e)
		if err != nil {
			return valueRef{}, err
		}
		elems[i] = v
	}
	node := bl.graph.node(bl.block, KindCustomOp, "new_array")
	for _, v := range elems {
		wireArg(bl.graph, node, v)
	}
	t := gtypes.Array(elems[0].Type, gtypes.Const{Known: true, Value: int64(len(elems))})
	idx := bl.graph.addOutput(node, "", t)
	return valueRef{Ref{node, idx}, t}, nil
}

func lowerSubscript(bl *blockCtx, n *ast.SubscriptExpr) (valueRef, error) {
	base, err := lowerExpr(bl, n.Value)
	if err != nil {
		return valueRef{}, err
	}
	index, err := lowerExpr(bl, n.Index)
	if err != nil {
		return valueRef{}, err
	}
	if base.Type.Kind != gtypes.KindArray {
		return valueRef{}, diag.Internal(n.Span(), "`%s` is not subscriptable during lowering", base.Type.String())
	}
	node := bl.graph.node(bl.block, KindCustomOp, "array_get")
	wireArg(bl.graph, node, base)
	wireArg(bl.graph, node, index)
	elemT := *base.Type.ArrayElem
	outIdx := bl.graph.addOutput(node, "", elemT)
	return valueRef{Ref{node, outIdx}, elemT}, nil
}

func lowerBinOp(bl *blockCtx, n *ast.BinOp) (valueRef, error) {
	left, err := lowerExpr(bl, n.Left)
	if err != nil {
		return valueRef{}, err
	}
	right, err := lowerExpr(bl, n.Right)
	if err != nil {
		return valueRef{}, err
	}
	method, ok := binOpMethod[n.Op]
	if !ok {
		return valueRef{}, diag.Internal(n.Span(), "unknown binary operator %q during lowering", n.Op)
	}
	sig, ok := bl.globals.Dispatch(left.Type, method)
	if !ok {
		return valueRef{}, diag.Internal(n.Span(), "no dispatch target for %q during lowering", method)
	}
	node := bl.graph.node(bl.block, KindCall, method)
	wireArg(bl.graph, node, left)
	wireArg(bl.graph, node, right)
	return callOutput(bl, node, sig.Outputs), nil
}

func lowerUnaryOp(bl *blockCtx, n *ast.UnaryOp) (valueRef, error) {
	operand, err := lowerExpr(bl, n.Operand)
	if err != nil {
		return valueRef{}, err
	}
	if n.Op == "not" {
		node := bl.graph.node(bl.block, KindCustomOp, "logical_not")
		wireArg(bl.graph, node, operand)
		idx := bl.graph.addOutput(node, "", gtypes.Bool())
		return valueRef{Ref{node, idx}, gtypes.Bool()}, nil
	}
	method, ok := unaryOpMethod[n.Op]
	if !ok {
		return valueRef{}, diag.Internal(n.Span(), "unknown unary operator %q during lowering", n.Op)
	}
	sig, ok := bl.globals.Dispatch(operand.Type, method)
	if !ok {
		return valueRef{}, diag.Internal(n.Span(), "no dispatch target for %q during lowering", method)
	}
	node := bl.graph.node(bl.block, KindCall, method)
	wireArg(bl.graph, node, operand)
	return callOutput(bl, node, sig.Outputs), nil
}

func lowerCall(bl *blockCtx, n *ast.CallExpr) (valueRef, error) {
	switch fn := n.Func.(type) {
	case *ast.Name:
		t, ok := bl.globals.Lookup(fn.Ident)
		if !ok || t.Kind != gtypes.KindFunction {
			return valueRef{}, diag.Internal(fn.Span(), "%q is not callable during lowering", fn.Ident)
		}
		node := bl.graph.node(bl.block, KindCall, fn.Ident)
		for _, a := range n.Args {
			av, err := lowerExpr(bl, a)
			if err != nil {
				return valueRef{}, err
			}
			wireArg(bl.graph, node, av)
		}
		return callOutput(bl, node, t.FuncOutputs), nil

	case *ast.AttributeExpr:
		recv, err := lowerExpr(bl, fn.Value)
		if err != nil {
			return valueRef{}, err
		}
		sig, ok := bl.globals.Dispatch(recv.Type, fn.Attr)
		if !ok {
			return valueRef{}, diag.Internal(fn.Span(), "no method %q during lowering", fn.Attr)
		}
		node := bl.graph.node(bl.block, KindCall, fn.Attr)
		wireArg(bl.graph, node, recv)
		for _, a := range n.Args {
			av, err := lowerExpr(bl, a)
			if err != nil {
				return valueRef{}, err
			}
			wireArg(bl.graph, node, av)
		}
		return callOutput(bl, node, sig.Outputs), nil

	default:
		return valueRef{}, diag.Internal(n.Span(), "expression is not callable during lowering")
	}
}
