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
	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/postdom"
)

// PostDomProvider yields immediate post-dominators per source basic block.
// The in-repo provider is analysis/postdom; consumers may substitute their
// own.
type PostDomProvider interface {
	// Built reports whether any post-dominator data is available.
	Built() bool

	// ImmediatePostDominator returns the immediate post-dominator of b. The
	// second result is false when there is no data for b; (nil, true) means
	// b has no immediate post-dominator among the real blocks.
	ImmediatePostDominator(b *ssa.BasicBlock) (*ssa.BasicBlock, bool)
}

// ComputePostDominators attaches post-dominator data to every constructed
// subgraph and, when addFrontiers is set, derives control-dependence edges
// from post-dominance frontiers.
func (b *Builder) ComputePostDominators(addFrontiers bool) {
	for fn, g := range b.graphs {
		ApplyPostDominators(g, postdom.Compute(fn), addFrontiers)
	}
}

// ApplyPostDominators sets the immediate post-dominator of each block of g
// from the provider. Blocks with no immediate post-dominator attach to the
// lazily-created sentinel root block. When the provider has no data at all
// (the function never exits), the fallback adds control-dependence edges
// from each block to its CFG successors: sound, but imprecise.
func ApplyPostDominators(g *Graph, tree PostDomProvider, addFrontiers bool) {
	built := false
	for _, blk := range g.Blocks() {
		if blk.Key() == nil {
			continue
		}
		d, ok := tree.ImmediatePostDominator(blk.Key())
		if !ok {
			continue
		}
		built = true
		if d != nil {
			if pb := g.blockOf(d); pb != nil {
				blk.SetIPostDom(pb)
			}
		} else {
			blk.SetIPostDom(g.PostDomRoot())
		}
	}

	if !addFrontiers {
		return
	}

	if !built {
		// no post-dominator data at all: every block attaches to the
		// sentinel root and controls its CFG successors
		root := g.PostDomRoot()
		for _, blk := range g.Blocks() {
			if blk == root {
				continue
			}
			blk.SetIPostDom(root)
		}
		for _, blk := range g.Blocks() {
			for _, s := range blk.Successors() {
				blk.AddControlDependence(s)
			}
		}
		g.MarkDegraded()
		return
	}

	addPostDomFrontiers(g)
}

// addPostDomFrontiers computes Cytron-style post-dominance frontiers and
// turns them into block-level control-dependence edges: a block controls
// every member of its frontier.
func addPostDomFrontiers(g *Graph) {
	frontier := make(map[*BBlock]map[*BBlock]bool)

	for _, blk := range g.Blocks() {
		if blk.Key() == nil || len(blk.Predecessors()) < 2 {
			continue
		}
		stop := blk.IPostDom()
		for _, p := range blk.Predecessors() {
			for runner := p; runner != nil && runner != stop; runner = runner.IPostDom() {
				if frontier[runner] == nil {
					frontier[runner] = make(map[*BBlock]bool)
				}
				frontier[runner][blk] = true
			}
		}
	}

	for x, members := range frontier {
		for b := range members {
			x.AddControlDependence(b)
		}
	}
}
