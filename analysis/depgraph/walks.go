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
	"sync/atomic"

	"github.com/awslabs/go-depgraph/internal/funcutil"
)

// walkRunCounter distinguishes visitation runs: a node or block is visited by
// a walk iff its last-walk id differs from the walk's fresh id. The counter
// is atomic so future concurrent walkers do not interfere.
var walkRunCounter atomic.Uint32

// WalkFlags control block traversals.
type WalkFlags uint32

const (
	// WalkInterprocedural follows call edges into callee subgraphs.
	WalkInterprocedural WalkFlags = 1 << iota

	// WalkNoCallSites suppresses entering callees even when they are defined.
	WalkNoCallSites
)

// WalkNodes visits nodes breadth-first from entry, following outgoing
// control-dependence edges when control is set and data-dependence edges when
// data is set. Each node is visited at most once; successors are expanded in
// node-id order so the visit sequence is stable.
func WalkNodes(entry *Node, visit func(*Node), control, data bool) {
	if entry == nil {
		return
	}
	runID := walkRunCounter.Add(1)
	entry.lastWalk = runID

	var order uint32
	queue := []*Node{entry}

	expand := func(edges map[*Node]bool, queue []*Node) []*Node {
		for _, m := range funcutil.SortedKeysBy(edges, (*Node).ID) {
			if m.lastWalk == runID {
				continue
			}
			m.lastWalk = runID
			queue = append(queue, m)
		}
		return queue
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		order++
		n.dfsOrder = order
		visit(n)

		if control {
			queue = expand(n.controlDep, queue)
		}
		if data {
			queue = expand(n.dataDep, queue)
		}
	}
}

// WalkBlocksBFS visits blocks breadth-first from entry over CFG successor
// edges. With WalkInterprocedural, entry blocks of linked callees are visited
// too, unless WalkNoCallSites is set.
func WalkBlocksBFS(entry *BBlock, visit func(*BBlock), flags WalkFlags) {
	walkBlocks(entry, visit, flags, false)
}

// WalkBlocksDFS is WalkBlocksBFS with depth-first order. Blocks get their
// DFS-order field assigned in visit order; the data-flow framework relies on
// it.
func WalkBlocksDFS(entry *BBlock, visit func(*BBlock), flags WalkFlags) {
	walkBlocks(entry, visit, flags, true)
}

func walkBlocks(entry *BBlock, visit func(*BBlock), flags WalkFlags, depthFirst bool) {
	if entry == nil {
		return
	}
	runID := walkRunCounter.Add(1)
	entry.lastWalk = runID

	var order uint32
	queue := []*BBlock{entry}

	for len(queue) > 0 {
		var b *BBlock
		if depthFirst {
			b = queue[len(queue)-1]
			queue = queue[:len(queue)-1]
		} else {
			b = queue[0]
			queue = queue[1:]
		}

		order++
		b.dfsOrder = order
		visit(b)

		push := func(s *BBlock) {
			if s.lastWalk == runID {
				return
			}
			s.lastWalk = runID
			queue = append(queue, s)
		}

		for _, s := range b.Successors() {
			push(s)
		}

		if flags&WalkInterprocedural != 0 && flags&WalkNoCallSites == 0 {
			for _, cs := range funcutil.SortedKeysBy(b.callSites, (*Node).ID) {
				if callee := cs.Callee(); callee != nil && callee.EntryBlock() != nil {
					push(callee.EntryBlock())
				}
			}
		}
	}
}
