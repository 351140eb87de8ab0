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

// Package postdom computes immediate post-dominators of the basic blocks of
// an ssa.Function. The tree is built by the iterative dominator algorithm of
// Cooper, Harvey and Kennedy run on the reverse CFG, with a virtual exit
// vertex joining every exiting block (blocks terminated by a return or a
// panic). Functions that never exit yield an unbuilt tree; consumers fall
// back to coarser control-dependence edges in that case.
package postdom

import (
	"golang.org/x/tools/go/ssa"
)

// Tree holds the immediate post-dominator of each block of one function.
type Tree struct {
	fn *ssa.Function

	// ipdom maps a block to its immediate post-dominator. A nil value means
	// the block attaches directly to the virtual root (it has no immediate
	// post-dominator among the real blocks). Blocks that cannot reach any
	// exit have no entry at all.
	ipdom map[*ssa.BasicBlock]*ssa.BasicBlock
}

// Built reports whether any post-dominator data is available. It is false
// for functions with no exiting block.
func (t *Tree) Built() bool { return len(t.ipdom) > 0 }

// ImmediatePostDominator returns the immediate post-dominator of b. The
// second result is false when no data is available for b; a (nil, true)
// result means b attaches to the virtual root.
func (t *Tree) ImmediatePostDominator(b *ssa.BasicBlock) (*ssa.BasicBlock, bool) {
	d, ok := t.ipdom[b]
	return d, ok
}

// isExit reports whether the block leaves the function.
func isExit(b *ssa.BasicBlock) bool {
	if len(b.Instrs) == 0 {
		return false
	}
	switch b.Instrs[len(b.Instrs)-1].(type) {
	case *ssa.Return, *ssa.Panic:
		return true
	}
	return false
}

// Compute builds the post-dominator tree of fn.
func Compute(fn *ssa.Function) *Tree {
	t := &Tree{fn: fn, ipdom: make(map[*ssa.BasicBlock]*ssa.BasicBlock)}

	n := len(fn.Blocks)
	if n == 0 {
		return t
	}

	// vertex numbering: blocks by index, virtual exit at n
	exit := n
	var exits []int
	for _, b := range fn.Blocks {
		if isExit(b) {
			exits = append(exits, b.Index)
		}
	}
	if len(exits) == 0 {
		return t
	}

	// successors in the reverse CFG
	rsucc := func(v int) []int {
		if v == exit {
			return exits
		}
		preds := fn.Blocks[v].Preds
		out := make([]int, len(preds))
		for i, p := range preds {
			out[i] = p.Index
		}
		return out
	}
	// predecessors in the reverse CFG, i.e. CFG successors plus the virtual
	// edge into exiting blocks
	rpred := func(v int) []int {
		var out []int
		b := fn.Blocks[v]
		for _, s := range b.Succs {
			out = append(out, s.Index)
		}
		if isExit(b) {
			out = append(out, exit)
		}
		return out
	}

	// postorder DFS on the reverse CFG from the virtual exit
	seen := make([]bool, n+1)
	var postorder []int
	var dfs func(v int)
	dfs = func(v int) {
		seen[v] = true
		for _, w := range rsucc(v) {
			if !seen[w] {
				dfs(w)
			}
		}
		postorder = append(postorder, v)
	}
	dfs(exit)

	po := make([]int, n+1)
	for i := range po {
		po[i] = -1
	}
	for i, v := range postorder {
		po[v] = i
	}

	const undef = -1
	idom := make([]int, n+1)
	for i := range idom {
		idom[i] = undef
	}
	idom[exit] = exit

	intersect := func(a, b int) int {
		for a != b {
			for po[a] < po[b] {
				a = idom[a]
			}
			for po[b] < po[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		// reverse postorder, skipping the virtual exit
		for i := len(postorder) - 1; i >= 0; i-- {
			v := postorder[i]
			if v == exit {
				continue
			}
			newIdom := undef
			for _, p := range rpred(v) {
				if po[p] < 0 || idom[p] == undef {
					continue
				}
				if newIdom == undef {
					newIdom = p
				} else {
					newIdom = intersect(newIdom, p)
				}
			}
			if newIdom != undef && idom[v] != newIdom {
				idom[v] = newIdom
				changed = true
			}
		}
	}

	for _, b := range fn.Blocks {
		d := idom[b.Index]
		if po[b.Index] < 0 || d == undef {
			// cannot reach any exit: no data for this block
			continue
		}
		if d == exit {
			t.ipdom[b] = nil
		} else {
			t.ipdom[b] = fn.Blocks[d]
		}
	}
	return t
}
