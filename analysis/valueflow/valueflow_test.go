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

package valueflow_test

import (
	"go/token"
	"io"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/config"
	"github.com/awslabs/go-depgraph/analysis/depgraph"
	"github.com/awslabs/go-depgraph/analysis/pss"
	"github.com/awslabs/go-depgraph/analysis/valueflow"
	"github.com/awslabs/go-depgraph/internal/testprogs"
)

func quietLogger() *config.LogGroup {
	l := config.NewLogGroup(config.NewDefault())
	l.SetAllOutput(io.Discard)
	return l
}

// analyze builds the forest, solves points-to and runs the value-flow pass.
func analyze(t *testing.T, src string) map[*ssa.Function]*depgraph.Graph {
	t.Helper()
	pkg, err := testprogs.CompileSSA(src)
	if err != nil {
		t.Fatalf("compilation failed: %s", err)
	}
	logger := quietLogger()

	b := depgraph.NewBuilder(pkg.Prog, logger)
	if _, err := b.BuildModule(""); err != nil {
		t.Fatalf("build failed: %s", err)
	}

	pta, err := pss.NewPointsToAnalysis(pkg.Prog, "", config.PtaFlowInsensitive, logger)
	if err != nil {
		t.Fatalf("PSS build failed: %s", err)
	}
	pta.Run()

	valueflow.NewAnalysis(pta, logger).Run(b.Graphs())
	return b.Graphs()
}

func graphOf(t *testing.T, graphs map[*ssa.Function]*depgraph.Graph, name string) *depgraph.Graph {
	t.Helper()
	for fn, g := range graphs {
		if fn.Name() == name {
			return g
		}
	}
	t.Fatalf("no subgraph for %q", name)
	return nil
}

const loadStoreProgram = `package main

func f() int {
	x := 0
	p := &x
	y := *p
	return y
}

func main() {
	_ = f()
}
`

func TestStoreToLoadDependence(t *testing.T) {
	graphs := analyze(t, loadStoreProgram)
	g := graphOf(t, graphs, "f")

	// the store initializing x must feed the load *p
	found := false
	for _, blk := range g.Blocks() {
		for n := blk.FirstNode(); n != nil; n = n.Successor() {
			st, ok := n.Key().(*ssa.Store)
			if !ok {
				continue
			}
			if a, isAlloc := st.Addr.(*ssa.Alloc); !isAlloc || a.Comment != "x" {
				continue
			}
			for dep := range n.DataDependencies() {
				if u, ok := dep.Key().(*ssa.UnOp); ok && u.Op == token.MUL {
					found = true
				}
			}
		}
	}
	if !found {
		t.Errorf("no store-to-load data dependence found")
	}
}

func TestDefUseReachesReturn(t *testing.T) {
	graphs := analyze(t, loadStoreProgram)
	g := graphOf(t, graphs, "f")

	var ret *depgraph.Node
	for _, blk := range g.Blocks() {
		for n := blk.FirstNode(); n != nil; n = n.Successor() {
			if _, ok := n.Key().(*ssa.Return); ok {
				ret = n
			}
		}
	}
	if ret == nil {
		t.Fatalf("no return node")
	}
	if len(ret.RevDataDependencies()) == 0 {
		t.Errorf("return has no incoming data dependence")
	}
}

// TestStrongUpdateKillsStore checks that a store through a unique pointer
// replaces the reaching store to the same location.
func TestStrongUpdateKillsStore(t *testing.T) {
	src := `package main

func main() {
	x := 1
	p := &x
	*p = 2
	y := *p
	_ = y
}
`
	graphs := analyze(t, src)
	g := graphOf(t, graphs, "main")

	// the load of x through the pointer is the one whose address is itself a
	// loaded value; the killed store is the direct initialization of x
	var valueLoad *depgraph.Node
	var killed *depgraph.Node
	for _, blk := range g.Blocks() {
		for n := blk.FirstNode(); n != nil; n = n.Successor() {
			switch k := n.Key().(type) {
			case *ssa.Store:
				if a, ok := k.Addr.(*ssa.Alloc); ok && a.Comment == "x" && killed == nil {
					killed = n
				}
			case *ssa.UnOp:
				if k.Op != token.MUL {
					continue
				}
				if _, direct := k.X.(*ssa.Alloc); !direct {
					valueLoad = n
				}
			}
		}
	}
	if valueLoad == nil || killed == nil {
		t.Fatalf("unexpected program shape: load=%v killed=%v", valueLoad, killed)
	}

	// the killed store (x := 1) must not feed the load taken after *p = 2
	if killed.DataDependencies()[valueLoad] {
		t.Errorf("overwritten store still feeds the later load")
	}
	if len(valueLoad.RevDataDependencies()) == 0 {
		t.Errorf("later load has no producing store at all")
	}
}
