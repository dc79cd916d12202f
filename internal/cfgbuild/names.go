package cfgbuild

import "github.com/CQCL/guppy-go/internal/ast"

// namesInTarget recursively collects every name bound by an assignment
// target, descending into tuple/list patterns (spec.md §4.1's "each name in
// target (including tuple patterns, recursively) is marked assigned").
func namesInTarget(target ast.Expr) []string {
	switch t := target.(type) {
	case *ast.Name:
		return []string{t.Ident}
	case *ast.TupleExpr:
		var names []string
		for _, e := range t.Elts {
			names = append(names, namesInTarget(e)...)
		}
		return names
	case *ast.ListExpr:
		var names []string
		for _, e := range t.Elts {
			names = append(names, namesInTarget(e)...)
		}
		return names
	default:
		// Attribute/Subscript targets (e.g. `a[i] = x`) don't bind a new
		// name; they use the base expression instead (checked separately).
		return nil
	}
}

// namesInExpr collects every Name read by expr, recursing through the
// node shapes the expression builder may encounter. Used to seed
// VarState.Used when an expression is appended to a block without going
// through the expression builder's per-node visit (e.g. already-flattened
// residual expressions).
func namesInExpr(expr ast.Expr) []string {
	var names []string
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case nil:
			return
		case *ast.Name:
			names = append(names, n.Ident)
		case *ast.Constant:
		case *ast.TupleExpr:
			for _, el := range n.Elts {
				walk(el)
			}
		case *ast.ListExpr:
			for _, el := range n.Elts {
				walk(el)
			}
		case *ast.CallExpr:
			walk(n.Func)
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.AttributeExpr:
			walk(n.Value)
		case *ast.SubscriptExpr:
			walk(n.Value)
			walk(n.Index)
		case *ast.BinOp:
			walk(n.Left)
			walk(n.Right)
		case *ast.UnaryOp:
			walk(n.Operand)
		case *ast.BoolOp:
			for _, v := range n.Values {
				walk(v)
			}
		case *ast.Compare:
			walk(n.Left)
			for _, c := range n.Comparators {
				walk(c)
			}
		case *ast.IfExp:
			walk(n.Test)
			walk(n.Body)
			walk(n.Orelse)
		case *ast.NamedExpr:
			walk(n.Value)
		}
	}
	walk(expr)
	return names
}

// isFunctionalMarker reports whether stmt is the `_ @ functional`
// pseudo-decorator (spec.md §4.1), detected structurally as an expression
// statement holding a `@` BinOp between the bare names `_` and `functional`
// — exactly how original_source/guppy/cfg.py's is_functional_annotation
// detects it on the MatMult AST operator, since the surface grammar has no
// dedicated annotation node.
func isFunctionalMarker(stmt ast.Stmt) bool {
	es, ok := stmt.(*ast.ExprStmt)
	if !ok {
		return false
	}
	bin, ok := es.Value.(*ast.BinOp)
	if !ok || bin.Op != "@" {
		return false
	}
	left, ok := bin.Left.(*ast.Name)
	if !ok || left.Ident != "_" {
		return false
	}
	right, ok := bin.Right.(*ast.Name)
	if !ok || right.Ident != "functional" {
		return false
	}
	return true
}
