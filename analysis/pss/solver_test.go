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

package pss_test

import (
	"go/token"
	"io"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/config"
	"github.com/awslabs/go-depgraph/analysis/pss"
	"github.com/awslabs/go-depgraph/internal/testprogs"
)

func quietLogger() *config.LogGroup {
	l := config.NewLogGroup(config.NewDefault())
	l.SetAllOutput(io.Discard)
	return l
}

// solve compiles src and runs the selected points-to variant over it.
func solve(t *testing.T, src string, variant config.PtaVariant) (*ssa.Package, *pss.PointsToAnalysis) {
	t.Helper()
	pkg, err := testprogs.CompileSSA(src)
	if err != nil {
		t.Fatalf("compilation failed: %s", err)
	}
	pta, err := pss.NewPointsToAnalysis(pkg.Prog, "", variant, quietLogger())
	if err != nil {
		t.Fatalf("PSS build failed: %s", err)
	}
	pta.Run()
	return pkg, pta
}

// allocByComment finds the allocation instruction of the named local.
func allocByComment(t *testing.T, fn *ssa.Function, name string) *ssa.Alloc {
	t.Helper()
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if a, ok := instr.(*ssa.Alloc); ok && a.Comment == name {
				return a
			}
		}
	}
	t.Fatalf("no alloc for %q in %s", name, fn.Name())
	return nil
}

// loadsOf collects the load instructions of fn in order.
func loadsOf(fn *ssa.Function) []*ssa.UnOp {
	var loads []*ssa.UnOp
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if u, ok := instr.(*ssa.UnOp); ok && u.Op == token.MUL {
				loads = append(loads, u)
			}
		}
	}
	return loads
}

const simpleProgram = `package main

func main() {
	x := 0
	p := &x
	y := *p
	_ = y
}
`

func TestPointsToSimple(t *testing.T) {
	for _, variant := range []config.PtaVariant{config.PtaFlowInsensitive, config.PtaFlowSensitive} {
		t.Run(string(variant), func(t *testing.T) {
			pkg, pta := solve(t, simpleProgram, variant)
			fn := pkg.Func("main")

			allocX := allocByComment(t, fn, "x")
			loads := loadsOf(fn)
			if len(loads) < 2 {
				t.Fatalf("expected a pointer load and a value load, got %d loads", len(loads))
			}

			// *p yields the address of x
			pts := pta.PointsTo(loads[0])
			if len(pts) != 1 {
				t.Fatalf("pt(p) = %v, want a single target", pts)
			}
			if pta.NodeFor(allocX) != pts[0].Target || pts[0].Offset != 0 {
				t.Errorf("pt(p) = %v, want {(alloc x, 0)}", pts)
			}

			// the integer load carries no pointers
			if pts := pta.PointsTo(loads[1]); len(pts) != 0 {
				t.Errorf("pt(load int) = %v, want empty", pts)
			}
		})
	}
}

const strongUpdateProgram = `package main

func main() {
	var b, d int
	var a, c *int
	var p **int
	p = &a
	*p = &b
	p = &c
	*p = &d
	_, _, _ = a, c, p
	_, _ = b, d
}
`

// TestFlowInsensitiveMergesStores checks that with one memory object per
// allocation both stores through p reach both pointees.
func TestFlowInsensitiveMergesStores(t *testing.T) {
	pkg, pta := solve(t, strongUpdateProgram, config.PtaFlowInsensitive)
	fn := pkg.Func("main")

	allocA := pta.NodeFor(allocByComment(t, fn, "a"))
	allocC := pta.NodeFor(allocByComment(t, fn, "c"))
	allocB := pta.NodeFor(allocByComment(t, fn, "b"))
	allocD := pta.NodeFor(allocByComment(t, fn, "d"))

	for _, target := range []*pss.Node{allocA, allocC} {
		mo, ok := target.Data().(*pss.MemoryObject)
		if !ok {
			t.Fatalf("no memory object on %s", target)
		}
		stored := mo.Contents()[0]
		if !stored[pss.Pointer{Target: allocB, Offset: 0}] ||
			!stored[pss.Pointer{Target: allocD, Offset: 0}] {
			t.Errorf("memory of %s = %v, want both b and d", target, stored.Sorted())
		}
	}
}

// TestFlowSensitiveSeparatesStores checks that per-program-point memory maps
// with strong updates keep the two stores apart.
func TestFlowSensitiveSeparatesStores(t *testing.T) {
	pkg, pta := solve(t, strongUpdateProgram, config.PtaFlowSensitive)
	fn := pkg.Func("main")

	allocA := pta.NodeFor(allocByComment(t, fn, "a"))
	allocC := pta.NodeFor(allocByComment(t, fn, "c"))
	allocB := pta.NodeFor(allocByComment(t, fn, "b"))
	allocD := pta.NodeFor(allocByComment(t, fn, "d"))

	// the state at the end of main lives on the return node
	var ret *pss.Node
	for _, n := range pta.Nodes() {
		if n.Kind() == pss.ReturnNode {
			ret = n
		}
	}
	if ret == nil {
		t.Fatalf("no return node in the PSS")
	}
	mm, ok := ret.Data().(pss.MemoryMap)
	if !ok {
		t.Fatalf("no memory map on the return node")
	}

	check := func(base, want *pss.Node) {
		mo := mm[pss.Pointer{Target: base, Offset: 0}]
		if mo == nil {
			t.Fatalf("no memory for %s at the end of main", base)
		}
		stored := mo.Contents()[0]
		if len(stored) != 1 || !stored[pss.Pointer{Target: want, Offset: 0}] {
			t.Errorf("memory of %s = %v, want exactly {%s}", base, stored.Sorted(), want)
		}
	}
	check(allocA, allocB)
	check(allocC, allocD)
}

// TestSolverIdempotent re-runs the solver and checks no points-to set grows:
// the first run reached a fixpoint.
func TestSolverIdempotent(t *testing.T) {
	for _, variant := range []config.PtaVariant{config.PtaFlowInsensitive, config.PtaFlowSensitive} {
		t.Run(string(variant), func(t *testing.T) {
			_, pta := solve(t, strongUpdateProgram, variant)

			sizes := make(map[*pss.Node]int)
			for _, n := range pta.Nodes() {
				sizes[n] = len(n.PointsTo())
			}

			pss.NewSolver(pta.Graph(), pta.Variant()).Run()

			for _, n := range pta.Nodes() {
				if len(n.PointsTo()) != sizes[n] {
					t.Errorf("points-to of %s grew on the second run", n)
				}
			}
		})
	}
}

func TestFieldOffsets(t *testing.T) {
	src := `package main

type pair struct {
	first  int
	second *int
}

func main() {
	var t pair
	v := 0
	t.second = &v
	_ = *t.second
}
`
	pkg, pta := solve(t, src, config.PtaFlowInsensitive)
	fn := pkg.Func("main")

	allocT := allocByComment(t, fn, "t")

	var fa *ssa.FieldAddr
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if f, ok := instr.(*ssa.FieldAddr); ok {
				fa = f
			}
		}
	}
	if fa == nil {
		t.Fatalf("no field address instruction")
	}

	pts := pta.PointsTo(fa)
	if len(pts) != 1 {
		t.Fatalf("pt(&t.second) = %v, want one target", pts)
	}
	if pts[0].Target != pta.NodeFor(allocT) {
		t.Errorf("field address targets %s, want alloc t", pts[0].Target)
	}
	if pts[0].Offset != 8 {
		t.Errorf("field offset = %s, want 8", pts[0].Offset)
	}
}

func TestOffsetArithmetic(t *testing.T) {
	if got := pss.Offset(4).Add(4); got != 8 {
		t.Errorf("4+4 = %s", got)
	}
	if got := pss.Offset(4).Add(pss.UnknownOffset); !got.IsUnknown() {
		t.Errorf("4+UNKNOWN = %s, want UNKNOWN", got)
	}
	if got := pss.UnknownOffset.Add(0); !got.IsUnknown() {
		t.Errorf("UNKNOWN+0 = %s, want UNKNOWN", got)
	}
}

func TestMonotoneSets(t *testing.T) {
	g := pss.NewGraph()
	a := g.NewNode(pss.Alloc)
	set := make(pss.PointsToSet)
	if !set.Add(pss.Pointer{Target: a, Offset: 0}) {
		t.Errorf("first insertion must grow the set")
	}
	if set.Add(pss.Pointer{Target: a, Offset: 0}) {
		t.Errorf("duplicate insertion must not grow the set")
	}
	if !set.Add(pss.Pointer{Target: a, Offset: pss.UnknownOffset}) {
		t.Errorf("distinct offset must grow the set")
	}
}
