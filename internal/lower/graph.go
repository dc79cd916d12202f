package lower

import "github.com/CQCL/guppy-go/internal/gtypes"

// NodeKind enumerates the IR node vocabulary of spec.md §6. Serialization is
// out of scope; this is purely the in-memory node/port graph Dataflow
// Lowering produces.
type NodeKind int

const (
	KindModule NodeKind = iota
	KindDef
	KindDeclare
	KindCFG
	KindBlock
	KindDFG
	KindConditional
	KindCase
	KindTailLoop
	KindInput
	KindOutput
	KindMakeTuple
	KindUnpackTuple
	KindTag
	KindCall
	KindIndirectCall
	KindLoadConstant
	KindCustomOp
)

func (k NodeKind) String() string {
	switch k {
	case KindModule:
		return "Module"
	case KindDef:
		return "Def"
	case KindDeclare:
		return "Declare"
	case KindCFG:
		return "CFG"
	case KindBlock:
		return "Block"
	case KindDFG:
		return "DFG"
	case KindConditional:
		return "Conditional"
	case KindCase:
		return "Case"
	case KindTailLoop:
		return "TailLoop"
	case KindInput:
		return "Input"
	case KindOutput:
		return "Output"
	case KindMakeTuple:
		return "MakeTuple"
	case KindUnpackTuple:
		return "UnpackTuple"
	case KindTag:
		return "Tag"
	case KindCall:
		return "Call"
	case KindIndirectCall:
		return "IndirectCall"
	case KindLoadConstant:
		return "LoadConstant"
	case KindCustomOp:
		return "CustomOp"
	default:
		return "Unknown"
	}
}

// Port is one typed value slot on a node. Name is empty for positional ports
// (most op inputs); Input/Output nodes carry the row's variable name so a
// port list can be read back as a row.
type Port struct {
	Name string
	Type gtypes.Type
}

// Ref identifies one output port of a node: the source end of a value edge.
type Ref struct {
	Node *Node
	Port int
}

// Node is one IR node (spec.md §6). Children holds the nested dataflow
// region for container kinds (Def/CFG/Block/DFG/Conditional/Case/TailLoop).
// Successors are control-flow edges to sibling Block nodes, positioned
// exactly like cfgbuild.BasicBlock.Successors (spec.md §5: position 0 =
// true/head/continue-target, 1 = false/tail).
type Node struct {
	ID         int
	Kind       NodeKind
	Label      string
	Inputs     []Port
	Outputs    []Port
	Children   []*Node
	Successors []*Node
}

// ValueEdge wires one node's output port to another node's input port.
type ValueEdge struct {
	From   Ref
	ToNode *Node
	ToPort int
}

// Graph collects every node and value edge produced while lowering one
// function, plus the compilation's Root (the Def node for a single-function
// lowering, or the Module node after MergeModule). Exposed so callers can
// check spec.md §8's well-formedness and determinism properties directly
// against the structure.
type Graph struct {
	Root   *Node
	Nodes  []*Node
	Edges  []ValueEdge
	nextID int
}

func (g *Graph) node(parent *Node, kind NodeKind, label string) *Node {
	n := &Node{ID: g.nextID, Kind: kind, Label: label}
	g.nextID++
	g.Nodes = append(g.Nodes, n)
	if parent != nil {
		parent.Children = append(parent.Children, n)
	}
	return n
}

func (g *Graph) addInput(n *Node, name string, t gtypes.Type) int {
	n.Inputs = append(n.Inputs, Port{Name: name, Type: t})
	return len(n.Inputs) - 1
}

func (g *Graph) addOutput(n *Node, name string, t gtypes.Type) int {
	n.Outputs = append(n.Outputs, Port{Name: name, Type: t})
	return len(n.Outputs) - 1
}

func (g *Graph) wire(from Ref, to *Node, port int) {
	g.Edges = append(g.Edges, ValueEdge{From: from, ToNode: to, ToPort: port})
}

// MergeModule combines independently-lowered per-function graphs (typically
// one per goroutine in package modcompile's concurrent fan-out, so no two
// goroutines ever touch the same Graph) into a single Module-rooted graph.
// Node pointers are reused as-is; only their IDs are renumbered to stay
// unique across the merge. Defs attach to the Module node in the order
// given, which callers should make the function declaration order, per
// spec.md §5's determinism requirement.
func MergeModule(graphs []*Graph) *Graph {
	merged := &Graph{}
	module := merged.node(nil, KindModule, "")
	merged.Root = module
	for _, g := range graphs {
		offset := merged.nextID
		for _, n := range g.Nodes {
			n.ID += offset
		}
		merged.Nodes = append(merged.Nodes, g.Nodes...)
		merged.Edges = append(merged.Edges, g.Edges...)
		merged.nextID = offset + len(g.Nodes)
		if g.Root != nil {
			module.Children = append(module.Children, g.Root)
		}
	}
	return merged
}
