// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pss implements the pointer state subgraph: the analysed program
// reduced to its pointer-relevant operations, and the worklist solvers that
// compute points-to sets over it in a flow-insensitive or flow-sensitive
// fashion.
package pss

import (
	"fmt"

	"golang.org/x/tools/go/ssa"
)

// NodeKind tags the variants of a PSS node. Transfer is a single dispatch on
// the tag.
type NodeKind int

const (
	// Alloc is a static allocation site.
	Alloc NodeKind = iota

	// DynAlloc is a dynamic allocation site (make, closure capture).
	DynAlloc

	// Load reads a points-to set through a pointer.
	Load

	// Store writes a points-to set through a pointer.
	Store

	// GEP displaces a pointer by a byte offset.
	GEP

	// Cast propagates a points-to set unchanged.
	Cast

	// Phi joins the points-to sets of its operands.
	Phi

	// CallNode carries the value returned by a call; its operands are the
	// callee's return nodes.
	CallNode

	// ReturnNode joins the returned values of a function.
	ReturnNode

	// Function is a function value; it points to itself.
	Function

	// Constant is a pointer with a fixed target set at construction.
	Constant

	// Null is the null pointer sentinel.
	Null

	// UnknownMem is the sentinel for memory of unknown provenance.
	UnknownMem

	// NoOp is a placeholder keeping the control skeleton connected.
	NoOp

	// Memcpy copies memory contents between two pointers.
	Memcpy
)

var kindNames = map[NodeKind]string{
	Alloc:      "ALLOC",
	DynAlloc:   "DYN_ALLOC",
	Load:       "LOAD",
	Store:      "STORE",
	GEP:        "GEP",
	Cast:       "CAST",
	Phi:        "PHI",
	CallNode:   "CALL",
	ReturnNode: "RETURN",
	Function:   "FUNCTION",
	Constant:   "CONSTANT",
	Null:       "NULL",
	UnknownMem: "UNKNOWN_MEM",
	NoOp:       "NOOP",
	Memcpy:     "MEMCPY",
}

func (k NodeKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Node is one vertex of the pointer state subgraph. Successor edges encode
// the control order of the reduced program; the solvers propagate along
// them.
type Node struct {
	id   int
	kind NodeKind

	operands []*Node
	succs    []*Node
	preds    []*Node

	pointsTo PointsToSet

	// offset is the displacement of a GEP node.
	offset Offset

	// length is the byte count of a Memcpy node.
	length Offset

	// allocation attributes
	size     uint64
	heap     bool
	zeroInit bool

	// value is the originating IR handle, nil for synthetic nodes.
	value ssa.Node
	name  string

	// data is the opaque per-analysis slot: the flow-insensitive solver
	// hangs a MemoryObject off allocation nodes, the flow-sensitive one a
	// MemoryMap off every node.
	data any
}

// ID returns the node's creation-ordered identifier.
func (n *Node) ID() int { return n.id }

// Kind returns the variant tag.
func (n *Node) Kind() NodeKind { return n.kind }

// Operands returns the typed operands of the node.
func (n *Node) Operands() []*Node { return n.operands }

// Operand returns the i-th operand, nil when absent.
func (n *Node) Operand(i int) *Node {
	if i < 0 || i >= len(n.operands) {
		return nil
	}
	return n.operands[i]
}

// AddOperand appends an operand; used for late binding of call sites and phi
// back-edges.
func (n *Node) AddOperand(op *Node) {
	if op == nil {
		return
	}
	n.operands = append(n.operands, op)
}

// AddSuccessor adds the control edge n -> s, ignoring duplicates and nils.
func (n *Node) AddSuccessor(s *Node) {
	if s == nil {
		return
	}
	for _, x := range n.succs {
		if x == s {
			return
		}
	}
	n.succs = append(n.succs, s)
	s.preds = append(s.preds, n)
}

// Successors returns the control successors of the node.
func (n *Node) Successors() []*Node { return n.succs }

// Predecessors returns the control predecessors of the node.
func (n *Node) Predecessors() []*Node { return n.preds }

// PointsTo returns the node's points-to set.
func (n *Node) PointsTo() PointsToSet { return n.pointsTo }

// Offset returns the displacement of a GEP node.
func (n *Node) Offset() Offset { return n.offset }

// Length returns the byte count of a Memcpy node.
func (n *Node) Length() Offset { return n.length }

// Size returns the allocation size in bytes, 0 when unknown.
func (n *Node) Size() uint64 { return n.size }

// SetSize records the allocation size in bytes.
func (n *Node) SetSize(s uint64) { n.size = s }

// IsHeap reports whether the allocation escapes to the heap.
func (n *Node) IsHeap() bool { return n.heap }

// SetHeap marks the allocation as heap-allocated.
func (n *Node) SetHeap() { n.heap = true }

// IsZeroInitialized reports whether the allocated memory starts zeroed.
func (n *Node) IsZeroInitialized() bool { return n.zeroInit }

// SetZeroInitialized marks the allocation as zero-initialized.
func (n *Node) SetZeroInitialized() { n.zeroInit = true }

// Value returns the originating IR handle, nil for synthetic nodes.
func (n *Node) Value() ssa.Node { return n.value }

// SetValue attaches the originating IR handle.
func (n *Node) SetValue(v ssa.Node) { n.value = v }

// Data returns the per-analysis slot.
func (n *Node) Data() any { return n.data }

// SetData stores v in the per-analysis slot.
func (n *Node) SetData(v any) { n.data = v }

// String names the node for dumps: the explicit name, the IR handle, or the
// kind with the id.
func (n *Node) String() string {
	if n.name != "" {
		return n.name
	}
	if n.value != nil {
		return n.value.String()
	}
	return fmt.Sprintf("%s#%d", n.kind, n.id)
}

// Graph is the pointer state subgraph of a program: the node arena plus the
// designated root (the entry function's first node).
type Graph struct {
	nodes []*Node
	root  *Node

	null    *Node
	unknown *Node
}

// NewGraph returns an empty pointer state subgraph with its two sentinel
// nodes created.
func NewGraph() *Graph {
	g := &Graph{}
	g.null = g.NewNode(Null)
	g.null.name = "null"
	g.null.pointsTo.Add(Pointer{Target: g.null, Offset: 0})
	g.unknown = g.NewNode(UnknownMem)
	g.unknown.name = "unknown memory"
	g.unknown.pointsTo.Add(Pointer{Target: g.unknown, Offset: UnknownOffset})
	return g
}

// NewNode creates a node of the given kind with the given operands.
func (g *Graph) NewNode(kind NodeKind, operands ...*Node) *Node {
	n := &Node{
		id:       len(g.nodes),
		kind:     kind,
		operands: operands,
		pointsTo: make(PointsToSet),
	}
	g.nodes = append(g.nodes, n)
	return n
}

// NewGEP creates a GEP node displacing src by off.
func (g *Graph) NewGEP(src *Node, off Offset) *Node {
	n := g.NewNode(GEP, src)
	n.offset = off
	return n
}

// NewMemcpy creates a Memcpy node copying length bytes from src to dst.
func (g *Graph) NewMemcpy(src, dst *Node, length Offset) *Node {
	n := g.NewNode(Memcpy, src, dst)
	n.length = length
	return n
}

// NewConstant creates a Constant node with its fixed points-to pair.
func (g *Graph) NewConstant(target *Node, off Offset) *Node {
	n := g.NewNode(Constant)
	n.pointsTo.Add(Pointer{Target: target, Offset: off})
	return n
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Root returns the designated root node.
func (g *Graph) Root() *Node { return g.root }

// SetRoot designates the root node.
func (g *Graph) SetRoot(n *Node) { g.root = n }

// NullNode returns the null pointer sentinel.
func (g *Graph) NullNode() *Node { return g.null }

// UnknownMemNode returns the unknown-memory sentinel.
func (g *Graph) UnknownMemNode() *Node { return g.unknown }
