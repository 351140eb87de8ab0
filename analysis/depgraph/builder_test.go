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
	"io"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/config"
	"github.com/awslabs/go-depgraph/analysis/depgraph"
	"github.com/awslabs/go-depgraph/internal/testprogs"
)

func quietLogger() *config.LogGroup {
	l := config.NewLogGroup(config.NewDefault())
	l.SetAllOutput(io.Discard)
	return l
}

// buildForest compiles src and builds the dependence graph forest rooted at
// entry ("" selects main).
func buildForest(t *testing.T, src string, entry string) (*depgraph.Builder, *depgraph.Graph) {
	t.Helper()
	pkg, err := testprogs.CompileSSA(src)
	if err != nil {
		t.Fatalf("compilation failed: %s", err)
	}
	b := depgraph.NewBuilder(pkg.Prog, quietLogger())
	g, err := b.BuildModule(entry)
	if err != nil {
		t.Fatalf("build failed: %s", err)
	}
	return b, g
}

func findFunc(t *testing.T, b *depgraph.Builder, name string) *depgraph.Graph {
	t.Helper()
	for fn, g := range b.Graphs() {
		if fn.Name() == name {
			return g
		}
	}
	t.Fatalf("no subgraph for %q", name)
	return nil
}

const simpleProgram = `package main

func main() {
	x := 0
	p := &x
	y := *p
	_ = y
}
`

func TestBuildSimpleFunction(t *testing.T) {
	_, g := buildForest(t, simpleProgram, "")

	if g.Entry() == nil || g.Exit() == nil || g.EntryBlock() == nil || g.ExitBlock() == nil {
		t.Fatalf("incomplete graph: entry=%v exit=%v", g.Entry(), g.Exit())
	}
	if g.Entry() == g.Exit() {
		t.Errorf("entry and exit must be distinct")
	}
	if g.EntryBlock() == g.ExitBlock() {
		t.Errorf("entry block and exit block must be distinct")
	}

	if errs := g.SelfCheck(); len(errs) > 0 {
		t.Errorf("self check failed: %v", errs)
	}

	// the unified exit is reachable from the entry block over block
	// successor edges
	found := false
	depgraph.WalkBlocksBFS(g.EntryBlock(), func(b *depgraph.BBlock) {
		if b == g.ExitBlock() {
			found = true
		}
	}, 0)
	if !found {
		t.Errorf("exit block not reachable from entry block")
	}

	// the entry node controls the first instruction
	first := g.EntryBlock().FirstNode()
	if !g.Entry().ControlDependencies()[first] {
		t.Errorf("entry node does not control the first instruction")
	}

	// every return control-depends on the unified exit
	for _, blk := range g.Blocks() {
		if last := blk.LastNode(); last != nil {
			if _, ok := last.Key().(*ssa.Return); ok {
				if !last.ControlDependencies()[g.Exit()] {
					t.Errorf("return %s does not control-depend on the unified exit", last)
				}
			}
		}
	}
}

func TestNodeBlockConsistency(t *testing.T) {
	_, g := buildForest(t, simpleProgram, "")

	for _, blk := range g.Blocks() {
		if blk.FirstNode() == nil {
			continue
		}
		for n := blk.FirstNode(); n != nil; n = n.Successor() {
			if n.Block() != blk {
				t.Errorf("node %s in wrong block", n)
			}
			if !blk.Contains(n) {
				t.Errorf("block does not contain its own node %s", n)
			}
			if n.Graph() != g {
				t.Errorf("node %s in wrong subgraph", n)
			}
		}
		if blk.FirstNode().Predecessor() != nil {
			t.Errorf("first node has an intra-block predecessor")
		}
		if blk.LastNode().Successor() != nil {
			t.Errorf("last node has an intra-block successor")
		}
	}
}

const callProgram = `package main

func g(q *int) *int {
	return q
}

func main() {
	x := 0
	_ = g(&x)
}
`

func TestCallLinking(t *testing.T) {
	b, mainGraph := buildForest(t, callProgram, "")
	calleeGraph := findFunc(t, b, "g")

	var callNode *depgraph.Node
	for _, blk := range mainGraph.Blocks() {
		for cs := range blk.CallSites() {
			callNode = cs
		}
	}
	if callNode == nil {
		t.Fatalf("no call site recorded in main")
	}

	if callNode.Callee() != calleeGraph {
		t.Errorf("call node not linked to callee subgraph")
	}
	if got := calleeGraph.Refcount(); got != 1 {
		t.Errorf("callee refcount = %d, want 1", got)
	}
	if got := len(calleeGraph.Callers()); got != 1 {
		t.Errorf("callee has %d callers, want 1", got)
	}

	// actual parameters: one in/out pair, control-dependent on the call node
	actuals := callNode.Parameters()
	if actuals == nil || actuals.Len() != 1 {
		t.Fatalf("actual parameter record missing or wrong size")
	}
	if actuals.Position() != depgraph.ActualPosition {
		t.Errorf("actual record has position %v", actuals.Position())
	}
	actuals.Pairs(func(_ ssa.Value, pair depgraph.ParamPair) {
		if !callNode.ControlDependencies()[pair.In] || !callNode.ControlDependencies()[pair.Out] {
			t.Errorf("actual parameter pair not controlled by the call node")
		}
	})

	// formal parameters: one pair, control-dependent on the callee entry
	formals := calleeGraph.Parameters()
	if formals == nil || formals.Len() != 1 {
		t.Fatalf("formal parameter record missing or wrong size")
	}
	if formals.Position() != depgraph.FormalPosition {
		t.Errorf("formal record has position %v", formals.Position())
	}
	formals.Pairs(func(_ ssa.Value, pair depgraph.ParamPair) {
		entry := calleeGraph.Entry()
		if !entry.ControlDependencies()[pair.In] || !entry.ControlDependencies()[pair.Out] {
			t.Errorf("formal parameter pair not controlled by the entry node")
		}
	})
}

func TestRefcountMatchesCallLinks(t *testing.T) {
	b, _ := buildForest(t, callProgram, "")
	for fn, g := range b.Graphs() {
		if got, want := g.Refcount(), len(g.Callers()); got != want {
			t.Errorf("%s: refcount %d != %d call links", fn.Name(), got, want)
		}
	}
}

func TestSelfRecursion(t *testing.T) {
	src := `package main

func f(n int) int {
	if n <= 0 {
		return 0
	}
	return f(n - 1)
}

func main() {
	_ = f(3)
}
`
	b, _ := buildForest(t, src, "")
	fGraph := findFunc(t, b, "f")

	selfLinks := 0
	for caller := range fGraph.Callers() {
		if caller.Graph() == fGraph {
			if caller.Callee() != fGraph {
				t.Errorf("recursive call not linked to the in-progress subgraph")
			}
			selfLinks++
		}
	}
	if selfLinks != 1 {
		t.Errorf("self call edge added %d times, want once", selfLinks)
	}
	// one link from main, one from f itself
	if got := fGraph.Refcount(); got != 2 {
		t.Errorf("refcount = %d, want 2", got)
	}
	if got := len(fGraph.Callers()); got != 2 {
		t.Errorf("callers = %d, want 2", got)
	}
}

func TestLoopBuildsOnce(t *testing.T) {
	src, err := testprogs.Loop(3)
	if err != nil {
		t.Fatalf("generator failed: %s", err)
	}
	_, g := buildForest(t, src, "")

	visits := make(map[*depgraph.BBlock]int)
	depgraph.WalkBlocksBFS(g.EntryBlock(), func(b *depgraph.BBlock) {
		visits[b]++
	}, 0)
	for b, n := range visits {
		if n != 1 {
			t.Errorf("block %d visited %d times", b.ID(), n)
		}
	}

	// DFS orders are assigned and distinct
	orders := make(map[uint32]bool)
	depgraph.WalkBlocksDFS(g.EntryBlock(), func(b *depgraph.BBlock) {
		if orders[b.DFSOrder()] {
			t.Errorf("duplicate DFS order %d", b.DFSOrder())
		}
		orders[b.DFSOrder()] = true
	}, 0)
}

func TestMissingEntry(t *testing.T) {
	pkg, err := testprogs.CompileSSA(`package p

func helper() {}
`)
	if err != nil {
		t.Fatalf("compilation failed: %s", err)
	}
	b := depgraph.NewBuilder(pkg.Prog, quietLogger())
	if _, err := b.BuildModule(""); err == nil {
		t.Fatalf("expected an error for a missing entry function")
	}
}

func TestInfiniteLoopFallback(t *testing.T) {
	src := `package main

func main() {
	for {
	}
}
`
	b, g := buildForest(t, src, "")
	if !g.Degraded() {
		t.Errorf("graph with no reachable return should be degraded")
	}

	b.ComputePostDominators(true)

	for _, blk := range g.Blocks() {
		for _, s := range blk.Successors() {
			if s == g.ExitBlock() {
				continue
			}
			if !blk.ControlDependencies()[s] {
				t.Errorf("fallback missing control dependence block %d -> %d", blk.ID(), s.ID())
			}
		}
	}

	// the sentinel root block was created: it is a keyless block distinct
	// from the exit block
	sentinels := 0
	for _, blk := range g.Blocks() {
		if blk.Key() == nil && blk != g.ExitBlock() {
			sentinels++
		}
	}
	if sentinels != 1 {
		t.Errorf("sentinel root blocks = %d, want 1", sentinels)
	}
}

func TestEdgeRemovalIsSymmetric(t *testing.T) {
	_, g := buildForest(t, simpleProgram, "")
	first := g.EntryBlock().FirstNode()
	second := first.Successor()
	if second == nil {
		t.Fatalf("expected at least two nodes in the entry block")
	}

	first.AddDataDependence(second)
	if !second.RevDataDependencies()[first] {
		t.Fatalf("reverse edge not recorded")
	}
	first.RemoveDataDependence(second)
	if second.RevDataDependencies()[first] || first.DataDependencies()[second] {
		t.Errorf("edge removal left a dangling direction")
	}

	first.AddControlDependence(second)
	first.RemoveControlDependence(second)
	if second.RevControlDependencies()[first] || first.ControlDependencies()[second] {
		t.Errorf("control edge removal left a dangling direction")
	}
}
