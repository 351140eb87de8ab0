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

package postdom_test

import (
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/postdom"
	"github.com/awslabs/go-depgraph/internal/testprogs"
)

func compileFunc(t *testing.T, src, name string) *ssa.Function {
	t.Helper()
	pkg, err := testprogs.CompileSSA(src)
	if err != nil {
		t.Fatalf("compilation failed: %s", err)
	}
	fn := pkg.Func(name)
	if fn == nil {
		t.Fatalf("no function %q", name)
	}
	return fn
}

func TestDiamond(t *testing.T) {
	fn := compileFunc(t, `package p

func f(c bool) int {
	x := 0
	if c {
		x = 1
	} else {
		x = 2
	}
	return x
}
`, "f")

	tree := postdom.Compute(fn)
	if !tree.Built() {
		t.Fatalf("tree not built for a returning function")
	}

	// the join point is the block with two predecessors
	var join *ssa.BasicBlock
	for _, b := range fn.Blocks {
		if len(b.Preds) == 2 {
			join = b
		}
	}
	if join == nil {
		t.Fatalf("no join block in the diamond")
	}

	for _, b := range fn.Blocks {
		if b == join {
			continue
		}
		d, ok := tree.ImmediatePostDominator(b)
		if !ok {
			t.Errorf("no post-dominator data for block %d", b.Index)
			continue
		}
		if d != join {
			t.Errorf("ipostdom(block %d) = %v, want the join block %d", b.Index, d, join.Index)
		}
	}

	// the join exits the function, so it attaches to the virtual root
	d, ok := tree.ImmediatePostDominator(join)
	if !ok || d != nil {
		t.Errorf("ipostdom(join) = %v/%v, want the virtual root", d, ok)
	}
}

func TestMultipleReturns(t *testing.T) {
	fn := compileFunc(t, `package p

func f(c bool) int {
	if c {
		return 1
	}
	return 2
}
`, "f")

	tree := postdom.Compute(fn)
	if !tree.Built() {
		t.Fatalf("tree not built")
	}

	// both exits post-dominate only themselves, so the branch head attaches
	// to the virtual root
	d, ok := tree.ImmediatePostDominator(fn.Blocks[0])
	if !ok || d != nil {
		t.Errorf("ipostdom(entry) = %v/%v, want the virtual root", d, ok)
	}
}

func TestLoopBody(t *testing.T) {
	src, err := testprogs.Loop(2)
	if err != nil {
		t.Fatalf("generator failed: %s", err)
	}
	fn := compileFunc(t, src, "main")

	tree := postdom.Compute(fn)
	if !tree.Built() {
		t.Fatalf("tree not built for a terminating loop")
	}
	for _, b := range fn.Blocks {
		if _, ok := tree.ImmediatePostDominator(b); !ok {
			t.Errorf("no post-dominator data for block %d", b.Index)
		}
	}
}

func TestInfiniteLoopHasNoTree(t *testing.T) {
	fn := compileFunc(t, `package p

func f() {
	for {
	}
}
`, "f")

	tree := postdom.Compute(fn)
	if tree.Built() {
		t.Fatalf("tree built for a function that never exits")
	}
	if _, ok := tree.ImmediatePostDominator(fn.Blocks[0]); ok {
		t.Errorf("unexpected post-dominator data for an infinite loop")
	}
}
