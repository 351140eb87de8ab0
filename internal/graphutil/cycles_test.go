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

package graphutil_test

import (
	"io"
	"testing"

	"github.com/awslabs/go-depgraph/analysis/config"
	"github.com/awslabs/go-depgraph/analysis/depgraph"
	"github.com/awslabs/go-depgraph/internal/graphutil"
	"github.com/awslabs/go-depgraph/internal/testprogs"
)

func buildCallGraph(t *testing.T, src string) graphutil.CallGraph {
	t.Helper()
	pkg, err := testprogs.CompileSSA(src)
	if err != nil {
		t.Fatalf("compilation failed: %s", err)
	}
	logger := config.NewLogGroup(config.NewDefault())
	logger.SetAllOutput(io.Discard)
	b := depgraph.NewBuilder(pkg.Prog, logger)
	if _, err := b.BuildModule(""); err != nil {
		t.Fatalf("build failed: %s", err)
	}
	return graphutil.NewCallGraphIterator(b.Graphs())
}

func TestMutualRecursionCycle(t *testing.T) {
	cg := buildCallGraph(t, `package main

func even(n int) bool {
	if n == 0 {
		return true
	}
	return odd(n - 1)
}

func odd(n int) bool {
	if n == 0 {
		return false
	}
	return even(n - 1)
}

func main() {
	_ = even(10)
}
`)

	cycles := graphutil.FindAllElementaryCycles(cg)
	if len(cycles) != 1 {
		t.Fatalf("found %d cycles, want the even/odd cycle", len(cycles))
	}
	// a cycle is reported closed: first and last ids coincide
	c := cycles[0]
	if c[0] != c[len(c)-1] {
		t.Errorf("cycle %v is not closed", c)
	}
	if len(c) != 3 {
		t.Errorf("cycle %v has length %d, want 2 distinct nodes", c, len(c)-1)
	}
}

func TestNoCycles(t *testing.T) {
	cg := buildCallGraph(t, `package main

func helper() int {
	return 1
}

func main() {
	_ = helper()
}
`)
	if cycles := graphutil.FindAllElementaryCycles(cg); len(cycles) != 0 {
		t.Errorf("found cycles in an acyclic call graph: %v", cycles)
	}
}

func TestSelfLoops(t *testing.T) {
	cg := buildCallGraph(t, `package main

func f(n int) int {
	if n <= 0 {
		return 0
	}
	return f(n - 1)
}

func main() {
	_ = f(3)
}
`)
	loops := graphutil.FindSelfLoops(cg)
	if len(loops) != 1 {
		t.Fatalf("self loops = %d, want 1", len(loops))
	}
	if name := cg.IDMap[loops[0]].String(); name == "" {
		t.Errorf("self-recursive node has no name")
	}
}

func TestGonumInterface(t *testing.T) {
	cg := buildCallGraph(t, `package main

func helper() int {
	return 1
}

func main() {
	_ = helper()
}
`)

	nodes := cg.Nodes()
	if nodes.Len() != 2 {
		t.Fatalf("node set length = %d, want 2", nodes.Len())
	}

	// one call edge main -> helper
	edges := 0
	for _, x := range cg.Keys {
		for _, y := range cg.Keys {
			if cg.Edge(x, y) != nil {
				edges++
				if !cg.HasEdgeBetween(x, y) {
					t.Errorf("Edge and HasEdgeBetween disagree")
				}
			}
		}
	}
	if edges != 1 {
		t.Errorf("call edges = %d, want 1", edges)
	}
}
