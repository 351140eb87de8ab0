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
	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/internal/funcutil"
)

// BBlock is an ordered non-empty chain of nodes, the last one being the
// terminator of the block. Successor order mirrors the CFG of the source
// function (for a conditional branch, successor 0 is the "then" edge and
// successor 1 the "else" edge, as in go/ssa).
type BBlock struct {
	id    uint32
	graph *Graph

	// key is the source basic block, nil for synthetic blocks (the exit block
	// and the sentinel post-dominator root).
	key *ssa.BasicBlock

	first *Node
	last  *Node

	succs []*BBlock
	preds []*BBlock

	// callSites are the nodes in the block that call defined functions.
	callSites map[*Node]bool

	// controlDep holds block-level control-dependence edges: this block
	// controls each member.
	controlDep    map[*BBlock]bool
	revControlDep map[*BBlock]bool

	iPostDom *BBlock

	dfsOrder uint32
	lastWalk uint32
}

func newBBlock(g *Graph, key *ssa.BasicBlock, first *Node) *BBlock {
	g.blockCounter++
	b := &BBlock{
		id:            g.blockCounter,
		graph:         g,
		key:           key,
		first:         first,
		last:          first,
		callSites:     make(map[*Node]bool),
		controlDep:    make(map[*BBlock]bool),
		revControlDep: make(map[*BBlock]bool),
	}
	if first != nil {
		first.setBlock(b)
	}
	g.blockList = append(g.blockList, b)
	return b
}

// ID returns a per-subgraph identifier following creation order.
func (b *BBlock) ID() uint32 { return b.id }

// Graph returns the subgraph owning the block.
func (b *BBlock) Graph() *Graph { return b.graph }

// Key returns the source basic block, nil for synthetic blocks.
func (b *BBlock) Key() *ssa.BasicBlock { return b.key }

// FirstNode returns the first node of the block.
func (b *BBlock) FirstNode() *Node { return b.first }

// LastNode returns the terminator node of the block.
func (b *BBlock) LastNode() *Node { return b.last }

// SetLastNode designates n as the terminator of the block.
func (b *BBlock) SetLastNode(n *Node) { b.last = n }

// AddSuccessor adds a CFG edge b -> s, ignoring duplicates.
func (b *BBlock) AddSuccessor(s *BBlock) {
	if funcutil.Contains(b.succs, s) {
		return
	}
	b.succs = append(b.succs, s)
	s.preds = append(s.preds, b)
}

// Successors returns the CFG successor blocks in edge order.
func (b *BBlock) Successors() []*BBlock { return b.succs }

// Predecessors returns the CFG predecessor blocks.
func (b *BBlock) Predecessors() []*BBlock { return b.preds }

// AddCallSite records that n, a node of this block, calls a defined function.
func (b *BBlock) AddCallSite(n *Node) { b.callSites[n] = true }

// CallSites returns the call-site nodes of the block.
func (b *BBlock) CallSites() map[*Node]bool { return b.callSites }

// AddControlDependence adds a block-level control-dependence edge b -> s.
func (b *BBlock) AddControlDependence(s *BBlock) {
	b.controlDep[s] = true
	s.revControlDep[b] = true
}

// ControlDependencies returns the blocks controlled by b.
func (b *BBlock) ControlDependencies() map[*BBlock]bool { return b.controlDep }

// RevControlDependencies returns the blocks controlling b.
func (b *BBlock) RevControlDependencies() map[*BBlock]bool { return b.revControlDep }

// SetIPostDom records the block of the immediate post-dominator.
func (b *BBlock) SetIPostDom(p *BBlock) { b.iPostDom = p }

// IPostDom returns the block of the immediate post-dominator, or nil when
// post-dominator data was unavailable.
func (b *BBlock) IPostDom() *BBlock { return b.iPostDom }

// DFSOrder returns the order assigned by the last ordering walk.
func (b *BBlock) DFSOrder() uint32 { return b.dfsOrder }

// Contains reports whether n is on the block's intra-block chain.
func (b *BBlock) Contains(n *Node) bool {
	for m := b.first; m != nil; m = m.Successor() {
		if m == n {
			return true
		}
	}
	return false
}

// Nodes returns the intra-block chain as a slice, first to last.
func (b *BBlock) Nodes() []*Node {
	var nodes []*Node
	for n := b.first; n != nil; n = n.Successor() {
		nodes = append(nodes, n)
	}
	return nodes
}
