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

package depgraph

import (
	"go/token"

	"golang.org/x/tools/go/ssa"
)

// Node is a vertex of a function dependence subgraph. Nodes are keyed by an
// ssa.Node handle (an ssa.Value, an ssa.Instruction, or a phony key for
// synthetic nodes) and linked three ways: in an intra-block chain, by
// control-dependence edges and by data-dependence edges. Both edge directions
// are maintained atomically, so removing an edge from one endpoint removes it
// from the other.
type Node struct {
	id    uint32
	key   ssa.Node
	graph *Graph
	block *BBlock

	// intra-block chain
	pred *Node
	succ *Node

	operands []*Node

	controlDep    map[*Node]bool
	revControlDep map[*Node]bool
	dataDep       map[*Node]bool
	revDataDep    map[*Node]bool

	// callee is the subgraph linked to this node when it is a call site with
	// a defined callee.
	callee *Graph

	// params records the actual-parameter in/out pairs of a call site.
	params *Parameters

	// analysis record
	dfsOrder uint32
	lastWalk uint32
	data     any
}

func newNode(g *Graph, key ssa.Node) *Node {
	g.nodeCounter++
	return &Node{
		id:            g.nodeCounter,
		key:           key,
		graph:         g,
		controlDep:    make(map[*Node]bool),
		revControlDep: make(map[*Node]bool),
		dataDep:       make(map[*Node]bool),
		revDataDep:    make(map[*Node]bool),
	}
}

// ID returns a small integer identifying the node inside its subgraph.
// IDs follow creation order, so dumps keyed by ID are stable.
func (n *Node) ID() uint32 { return n.id }

// Key returns the IR handle the node was created for.
func (n *Node) Key() ssa.Node { return n.key }

// Graph returns the subgraph owning the node.
func (n *Node) Graph() *Graph { return n.graph }

// Block returns the basic block containing the node, nil for the entry node.
func (n *Node) Block() *BBlock { return n.block }

func (n *Node) setBlock(b *BBlock) { n.block = b }

// Predecessor returns the previous node in the intra-block chain.
func (n *Node) Predecessor() *Node { return n.pred }

// Successor returns the next node in the intra-block chain.
func (n *Node) Successor() *Node { return n.succ }

// SetSuccessor appends s after n in the intra-block chain and propagates the
// containing block to s.
func (n *Node) SetSuccessor(s *Node) {
	n.succ = s
	s.pred = n
	s.block = n.block
}

// Operands returns the operand nodes wired for this node. Entries may be nil
// when an operand had no node (e.g. a constant); see Builder.wireOperands.
func (n *Node) Operands() []*Node { return n.operands }

// Operand returns the i-th operand node or nil.
func (n *Node) Operand(i int) *Node {
	if i < 0 || i >= len(n.operands) {
		return nil
	}
	return n.operands[i]
}

// AddControlDependence adds a control-dependence edge n -> m.
func (n *Node) AddControlDependence(m *Node) {
	n.controlDep[m] = true
	m.revControlDep[n] = true
}

// RemoveControlDependence removes the control-dependence edge n -> m from
// both endpoints.
func (n *Node) RemoveControlDependence(m *Node) {
	delete(n.controlDep, m)
	delete(m.revControlDep, n)
}

// AddDataDependence adds a data-dependence edge n -> m.
func (n *Node) AddDataDependence(m *Node) {
	n.dataDep[m] = true
	m.revDataDep[n] = true
}

// RemoveDataDependence removes the data-dependence edge n -> m from both
// endpoints.
func (n *Node) RemoveDataDependence(m *Node) {
	delete(n.dataDep, m)
	delete(m.revDataDep, n)
}

// ControlDependencies returns the set of outgoing control-dependence edges.
func (n *Node) ControlDependencies() map[*Node]bool { return n.controlDep }

// RevControlDependencies returns the set of incoming control-dependence edges.
func (n *Node) RevControlDependencies() map[*Node]bool { return n.revControlDep }

// DataDependencies returns the set of outgoing data-dependence edges.
func (n *Node) DataDependencies() map[*Node]bool { return n.dataDep }

// RevDataDependencies returns the set of incoming data-dependence edges.
func (n *Node) RevDataDependencies() map[*Node]bool { return n.revDataDep }

// Callee returns the subgraph of the called function when the node is a call
// site linked to a defined function, nil otherwise.
func (n *Node) Callee() *Graph { return n.callee }

// Parameters returns the actual-parameter record of a call node, or nil.
func (n *Node) Parameters() *Parameters { return n.params }

// DFSOrder returns the order assigned to the node by the last ordering walk.
func (n *Node) DFSOrder() uint32 { return n.dfsOrder }

// Data returns the scratch per-analysis slot.
func (n *Node) Data() any { return n.data }

// SetData stores v in the scratch per-analysis slot.
func (n *Node) SetData(v any) { n.data = v }

// String renders the key of the node.
func (n *Node) String() string {
	if n.key == nil {
		return "<nil key>"
	}
	return n.key.String()
}

// phonyReturn is the key of the unified exit node. It implements ssa.Node so
// exit nodes live in the same keyed map as instruction nodes without
// colliding with a real instruction.
type phonyReturn struct {
	fn *ssa.Function
}

func (p *phonyReturn) String() string { return "unified return of " + p.fn.Name() }

func (p *phonyReturn) Pos() token.Pos { return token.NoPos }

// Operands returns the phony return's operands: it has none.
func (p *phonyReturn) Operands(rands []*ssa.Value) []*ssa.Value { return rands }

// Referrers returns nil: no instruction refers to the phony return.
func (p *phonyReturn) Referrers() *[]ssa.Instruction { return nil }

// Parent returns the function the phony return terminates.
func (p *phonyReturn) Parent() *ssa.Function { return p.fn }
