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
	"fmt"
)

// SelfCheck verifies the structural invariants of the subgraph and returns a
// description of each violation found. Dump code annotates nodes with these
// so a broken graph is visible in the output instead of crashing the dumper.
func (g *Graph) SelfCheck() []string {
	var errs []string

	report := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if g.Entry() == nil {
		report("missing entry node")
	}
	if g.Exit() == nil {
		report("missing exit node")
	}
	if g.EntryBlock() == nil {
		report("missing entry block")
	}
	if g.ExitBlock() == nil {
		report("missing exit block")
	}

	for _, blk := range g.Blocks() {
		if blk.FirstNode() == nil {
			if blk == g.pdRoot {
				continue
			}
			report("block %d has no first node", blk.ID())
			continue
		}
		if blk.LastNode() == nil {
			report("block %d has no last node", blk.ID())
		}
		if blk.FirstNode().Predecessor() != nil {
			report("first node of block %d has a predecessor", blk.ID())
		}
		if blk.LastNode() != nil && blk.LastNode().Successor() != nil {
			report("last node of block %d has a successor", blk.ID())
		}

		for n := blk.FirstNode(); n != nil; n = n.Successor() {
			if n.Block() != blk {
				report("node %s: block back-reference mismatch", n)
			}
			if n.Graph() != g {
				report("node %s: subgraph mismatch", n)
			}
			if s := n.Successor(); s != nil && s.Predecessor() != n {
				report("node %s: wrong predecessor on successor", n)
			}
			if p := n.Predecessor(); p != nil && p.Successor() != n {
				report("node %s: wrong successor on predecessor", n)
			}
		}
	}

	for _, blk := range g.Blocks() {
		for cs := range blk.CallSites() {
			if cs.Callee() == nil {
				report("call site %s in block %d has no callee subgraph", cs, blk.ID())
			}
		}
	}

	return errs
}
