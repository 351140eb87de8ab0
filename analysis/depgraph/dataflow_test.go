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

package depgraph_test

import (
	"testing"

	"github.com/awslabs/go-depgraph/analysis/depgraph"
	"github.com/awslabs/go-depgraph/internal/testprogs"
)

// TestBlockAnalysisFixpoint runs a reachability analysis whose transfer
// depends on predecessor state over a CFG with a back edge: the seeding pass
// cannot reach the fixpoint, so the driver must iterate.
func TestBlockAnalysisFixpoint(t *testing.T) {
	src, err := testprogs.Loop(4)
	if err != nil {
		t.Fatalf("generator failed: %s", err)
	}
	_, g := buildForest(t, src, "")

	reach := make(map[*depgraph.BBlock]map[*depgraph.BBlock]bool)
	transfer := func(b *depgraph.BBlock) bool {
		state := make(map[*depgraph.BBlock]bool)
		state[b] = true
		for _, p := range b.Predecessors() {
			for x := range reach[p] {
				state[x] = true
			}
		}
		if len(state) == len(reach[b]) {
			return false
		}
		reach[b] = state
		return true
	}

	a := depgraph.NewBlockAnalysis(g.EntryBlock(), 0, transfer)
	a.Run()

	stats := a.Statistics()
	if stats.BBlocksNum == 0 {
		t.Fatalf("no blocks collected")
	}
	if stats.IterationsNum < 2 {
		t.Errorf("iterations = %d, want at least the seeding pass plus one", stats.IterationsNum)
	}
	if stats.ProcessedBlocks < stats.BBlocksNum {
		t.Errorf("processed %d blocks, fewer than the %d reachable", stats.ProcessedBlocks, stats.BBlocksNum)
	}

	// at the fixpoint, re-running the transfer changes nothing
	for b := range reach {
		if transfer(b) {
			t.Errorf("transfer still changing after Run on block %d", b.ID())
		}
	}
}

// TestNodeAnalysisVisitsChains checks that the node-level driver applies the
// transfer to every node of every reachable block.
func TestNodeAnalysisVisitsChains(t *testing.T) {
	_, g := buildForest(t, simpleProgram, "")

	seen := make(map[*depgraph.Node]bool)
	a := depgraph.NewNodeAnalysis(g.EntryBlock(), 0, func(n *depgraph.Node) bool {
		seen[n] = true
		return false
	})
	a.Run()

	for _, blk := range g.Blocks() {
		for n := blk.FirstNode(); n != nil; n = n.Successor() {
			if !seen[n] {
				t.Errorf("node %s never visited", n)
			}
		}
	}
	if got := a.Statistics().IterationsNum; got != 1 {
		t.Errorf("iterations = %d, want 1 for a constant transfer", got)
	}
}

// TestInterproceduralBlockWalk checks the traversal flags: following call
// edges reaches callee blocks unless call sites are suppressed.
func TestInterproceduralBlockWalk(t *testing.T) {
	b, g := buildForest(t, callProgram, "")
	callee := findFunc(t, b, "g")

	visited := func(flags depgraph.WalkFlags) bool {
		seen := false
		depgraph.WalkBlocksBFS(g.EntryBlock(), func(blk *depgraph.BBlock) {
			if blk.Graph() == callee {
				seen = true
			}
		}, flags)
		return seen
	}

	if visited(0) {
		t.Errorf("intra-procedural walk entered a callee")
	}
	if !visited(depgraph.WalkInterprocedural) {
		t.Errorf("interprocedural walk did not enter the callee")
	}
	if visited(depgraph.WalkInterprocedural | depgraph.WalkNoCallSites) {
		t.Errorf("WalkNoCallSites did not suppress entering the callee")
	}
}

// TestWalkNodesRunIDs checks that consecutive walks are independent: the
// run-id discipline must not leave nodes marked visited across runs.
func TestWalkNodesRunIDs(t *testing.T) {
	_, g := buildForest(t, simpleProgram, "")

	count := func() int {
		n := 0
		depgraph.WalkNodes(g.Entry(), func(*depgraph.Node) { n++ }, true, true)
		return n
	}

	first := count()
	second := count()
	if first == 0 {
		t.Fatalf("walk visited nothing")
	}
	if first != second {
		t.Errorf("walks visited %d then %d nodes", first, second)
	}
}
