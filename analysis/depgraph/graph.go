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
)

// Graph is the dependence subgraph of a single function. It owns its nodes
// and blocks; subgraphs themselves are owned by the Builder that constructed
// them, and the refcount only records how many call sites link the subgraph.
type Graph struct {
	fn *ssa.Function

	nodes     map[ssa.Node]*Node
	blockList []*BBlock
	blockMap  map[*ssa.BasicBlock]*BBlock

	entry      *Node
	exit       *Node
	entryBlock *BBlock
	exitBlock  *BBlock

	// params is the formal-parameter record, non-nil iff the function has
	// arguments.
	params *Parameters

	// refcount counts the call sites linking this subgraph, plus the initial
	// construction reference while the subgraph is being built (the builder
	// releases it when the build completes). Destruction is the arena's responsibility, so
	// Unref never frees; the count exists for link bookkeeping and its
	// invariants are checked in tests.
	refcount int

	// callers is the set of call nodes that invoke this subgraph.
	callers map[*Node]bool

	// pdRoot is the lazily-created sentinel root of the post-dominator tree,
	// used for blocks with no immediate post-dominator.
	pdRoot *BBlock

	nodeCounter  uint32
	blockCounter uint32

	// degraded is set when construction logged a soft warning; the graph is
	// still usable.
	degraded bool
}

// NewGraph returns an empty subgraph for fn with refcount 1 (the construction
// reference).
func NewGraph(fn *ssa.Function) *Graph {
	return &Graph{
		fn:       fn,
		nodes:    make(map[ssa.Node]*Node),
		blockMap: make(map[*ssa.BasicBlock]*BBlock),
		refcount: 1,
		callers:  make(map[*Node]bool),
	}
}

// Function returns the function the subgraph was built for.
func (g *Graph) Function() *ssa.Function { return g.fn }

// NewNode creates a node keyed by key and registers it in the subgraph.
func (g *Graph) NewNode(key ssa.Node) *Node {
	n := newNode(g, key)
	g.nodes[key] = n
	return n
}

// GetNode returns the node keyed by key, or nil.
func (g *Graph) GetNode(key ssa.Node) *Node {
	return g.nodes[key]
}

// Nodes returns the key-to-node map of the subgraph.
func (g *Graph) Nodes() map[ssa.Node]*Node { return g.nodes }

// Blocks returns the blocks of the subgraph in creation order.
func (g *Graph) Blocks() []*BBlock { return g.blockList }

// BlockOf returns the BBlock built for the source basic block, or nil.
func (g *Graph) BlockOf(bb *ssa.BasicBlock) *BBlock { return g.blockMap[bb] }

func (g *Graph) blockOf(bb *ssa.BasicBlock) *BBlock { return g.blockMap[bb] }

func (g *Graph) blockIndex(bb *ssa.BasicBlock, b *BBlock) { g.blockMap[bb] = b }

// Entry returns the entry node, keyed by the function value.
func (g *Graph) Entry() *Node { return g.entry }

// SetEntry designates the entry node.
func (g *Graph) SetEntry(n *Node) { g.entry = n }

// Exit returns the phony unified exit node.
func (g *Graph) Exit() *Node { return g.exit }

// SetExit designates the unified exit node.
func (g *Graph) SetExit(n *Node) { g.exit = n }

// EntryBlock returns the block of the function's entry basic block.
func (g *Graph) EntryBlock() *BBlock { return g.entryBlock }

// SetEntryBlock designates the entry block.
func (g *Graph) SetEntryBlock(b *BBlock) { g.entryBlock = b }

// ExitBlock returns the block holding only the unified exit node.
func (g *Graph) ExitBlock() *BBlock { return g.exitBlock }

// SetExitBlock designates the exit block.
func (g *Graph) SetExitBlock(b *BBlock) { g.exitBlock = b }

// Parameters returns the formal-parameter record, nil when the function has
// no arguments.
func (g *Graph) Parameters() *Parameters { return g.params }

// SetParameters installs the formal-parameter record. Returns the previous
// record, which callers treat as a construction bug when non-nil.
func (g *Graph) SetParameters(p *Parameters) *Parameters {
	old := g.params
	g.params = p
	return old
}

// Ref increments the link count and returns the new value.
func (g *Graph) Ref() int {
	g.refcount++
	return g.refcount
}

// Unref decrements the link count and returns the new value. The arena owns
// the subgraph, so nothing is freed here; going below zero is a bug.
func (g *Graph) Unref() int {
	if g.refcount == 0 {
		panic("depgraph: refcount underflow")
	}
	g.refcount--
	return g.refcount
}

// Refcount returns the current link count.
func (g *Graph) Refcount() int { return g.refcount }

// AddCaller records a call node that links this subgraph.
func (g *Graph) AddCaller(n *Node) { g.callers[n] = true }

// Callers returns the call nodes that link this subgraph.
func (g *Graph) Callers() map[*Node]bool { return g.callers }

// PostDomRoot returns the sentinel root block, creating it on first use. The
// sentinel has a nil key and belongs to this subgraph.
func (g *Graph) PostDomRoot() *BBlock {
	if g.pdRoot == nil {
		g.pdRoot = newBBlock(g, nil, nil)
	}
	return g.pdRoot
}

// MarkDegraded records that a soft warning occurred during construction.
func (g *Graph) MarkDegraded() { g.degraded = true }

// Degraded reports whether construction logged a soft warning. The graph is
// still usable when true.
func (g *Graph) Degraded() bool { return g.degraded }
