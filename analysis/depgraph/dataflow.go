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

// DataFlowStatistics reports the work performed by a fixpoint run.
type DataFlowStatistics struct {
	// BBlocksNum is the number of blocks reachable from the entry block.
	BBlocksNum uint64

	// IterationsNum counts passes over the block set, including the seeding
	// DFS pass.
	IterationsNum uint64

	// ProcessedBlocks counts individual transfer applications.
	ProcessedBlocks uint64
}

// BlockTransfer is the per-block transfer of a data-flow analysis. It returns
// true when the analysis state changed. Transfers must be monotone on a
// bounded lattice for the driver to terminate.
type BlockTransfer func(*BBlock) bool

// BlockAnalysis is the iterative block-level fixpoint driver. A DFS from the
// entry block seeds the analysis and collects the reachable blocks; while any
// transfer reports a change, blocks are reprocessed in reverse DFS order,
// which converges quickly for forward problems on reducible CFGs. Irreducible
// CFGs get no special handling beyond iterating to the fixpoint.
type BlockAnalysis struct {
	entry    *BBlock
	flags    WalkFlags
	transfer BlockTransfer
	stats    DataFlowStatistics
}

// NewBlockAnalysis returns a driver running transfer over the blocks
// reachable from entry under the given traversal flags.
func NewBlockAnalysis(entry *BBlock, flags WalkFlags, transfer BlockTransfer) *BlockAnalysis {
	return &BlockAnalysis{entry: entry, flags: flags, transfer: transfer}
}

// Run iterates the transfer to quiescence.
func (a *BlockAnalysis) Run() {
	changed := false
	var blocks []*BBlock

	// the seeding pass runs the transfer once per block in DFS order
	WalkBlocksDFS(a.entry, func(b *BBlock) {
		changed = a.transfer(b) || changed
		blocks = append(blocks, b)
	}, a.flags)

	a.stats.BBlocksNum = uint64(len(blocks))
	a.stats.IterationsNum = 1
	a.stats.ProcessedBlocks = uint64(len(blocks))

	// since the seeding pass already ran, the loop body never runs when the
	// first pass reached the fixpoint
	for changed {
		changed = false
		for i := len(blocks) - 1; i >= 0; i-- {
			changed = a.transfer(blocks[i]) || changed
			a.stats.ProcessedBlocks++
		}
		a.stats.IterationsNum++
	}
}

// Statistics returns the counters of the last Run.
func (a *BlockAnalysis) Statistics() DataFlowStatistics { return a.stats }

// NodeTransfer is the per-node transfer of a node-level analysis.
type NodeTransfer func(*Node) bool

// NodeAnalysis is the node-level variant of BlockAnalysis: on every block
// visit the intra-block chain is walked first-to-last and the node transfer
// applied to each node.
type NodeAnalysis struct {
	block *BlockAnalysis
}

// NewNodeAnalysis returns a node-level fixpoint driver.
func NewNodeAnalysis(entry *BBlock, flags WalkFlags, transfer NodeTransfer) *NodeAnalysis {
	a := &NodeAnalysis{}
	a.block = NewBlockAnalysis(entry, flags, func(b *BBlock) bool {
		changed := false
		for n := b.FirstNode(); n != nil; n = n.Successor() {
			changed = transfer(n) || changed
		}
		return changed
	})
	return a
}

// Run iterates the transfer to quiescence.
func (a *NodeAnalysis) Run() { a.block.Run() }

// Statistics returns the counters of the last Run.
func (a *NodeAnalysis) Statistics() DataFlowStatistics { return a.block.Statistics() }
