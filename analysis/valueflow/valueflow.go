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

// Package valueflow adds data-dependence edges to constructed dependence
// subgraphs: def-use edges from the wired operands, and store-to-load memory
// dependence edges computed by a reaching-stores fixpoint that consults the
// points-to results for aliasing.
package valueflow

import (
	"go/token"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/config"
	"github.com/awslabs/go-depgraph/analysis/depgraph"
	"github.com/awslabs/go-depgraph/analysis/pss"
)

// Analysis computes data dependence for one subgraph at a time.
type Analysis struct {
	pta    *pss.PointsToAnalysis
	logger *config.LogGroup
}

// NewAnalysis returns a value-flow analysis backed by solved points-to
// results.
func NewAnalysis(pta *pss.PointsToAnalysis, logger *config.LogGroup) *Analysis {
	return &Analysis{pta: pta, logger: logger}
}

// Run adds data-dependence edges to every subgraph of the forest.
func (a *Analysis) Run(graphs map[*ssa.Function]*depgraph.Graph) {
	for _, g := range graphs {
		a.addDefUse(g)
		a.addMemoryDeps(g)
	}
}

// addDefUse turns the wired operand references into def-use data-dependence
// edges: each operand defines a value the node uses.
func (a *Analysis) addDefUse(g *depgraph.Graph) {
	for _, blk := range g.Blocks() {
		for n := blk.FirstNode(); n != nil; n = n.Successor() {
			for _, op := range n.Operands() {
				if op == nil || op == n {
					continue
				}
				op.AddDataDependence(n)
			}
		}
	}
}

// storeState maps a memory root (an allocation-site PSS node) to the set of
// store nodes that may have written it last.
type storeState map[*pss.Node]map[*depgraph.Node]bool

func (s storeState) clone() storeState {
	c := make(storeState, len(s))
	for root, stores := range s {
		cs := make(map[*depgraph.Node]bool, len(stores))
		for st := range stores {
			cs[st] = true
		}
		c[root] = cs
	}
	return c
}

func (s storeState) union(o storeState) {
	for root, stores := range o {
		mine := s[root]
		if mine == nil {
			mine = make(map[*depgraph.Node]bool, len(stores))
			s[root] = mine
		}
		for st := range stores {
			mine[st] = true
		}
	}
}

func (s storeState) equal(o storeState) bool {
	if len(s) != len(o) {
		return false
	}
	for root, stores := range s {
		os := o[root]
		if len(os) != len(stores) {
			return false
		}
		for st := range stores {
			if !os[st] {
				return false
			}
		}
	}
	return true
}

// addMemoryDeps runs a reaching-stores analysis over the subgraph blocks and
// connects each load to the stores that may have produced its value. A store
// through a unique pointer to a unique finite allocation kills earlier
// stores to that root.
func (a *Analysis) addMemoryDeps(g *depgraph.Graph) {
	out := make(map[*depgraph.BBlock]storeState)

	transfer := func(b *depgraph.BBlock) bool {
		state := make(storeState)
		for _, p := range b.Predecessors() {
			if po := out[p]; po != nil {
				state.union(po)
			}
		}

		for n := b.FirstNode(); n != nil; n = n.Successor() {
			switch instr := n.Key().(type) {
			case *ssa.UnOp:
				if instr.Op != token.MUL {
					continue
				}
				for _, root := range a.pta.MemoryRoots(instr.X) {
					for st := range state[root] {
						st.AddDataDependence(n)
					}
				}

			case *ssa.Store:
				roots := a.pta.MemoryRoots(instr.Addr)
				strong := len(roots) == 1 && len(a.pta.PointsTo(instr.Addr)) == 1 &&
					!a.pta.PointsTo(instr.Addr)[0].Offset.IsUnknown()
				for _, root := range roots {
					if strong {
						state[root] = map[*depgraph.Node]bool{n: true}
						continue
					}
					stores := state[root]
					if stores == nil {
						stores = make(map[*depgraph.Node]bool)
						state[root] = stores
					}
					stores[n] = true
				}
			}
		}

		old := out[b]
		if old != nil && old.equal(state) {
			return false
		}
		out[b] = state
		return true
	}

	driver := depgraph.NewBlockAnalysis(g.EntryBlock(), 0, transfer)
	driver.Run()

	stats := driver.Statistics()
	a.logger.Debugf("value flow for %q: %d blocks, %d iterations, %d processed",
		g.Function().Name(), stats.BBlocksNum, stats.IterationsNum, stats.ProcessedBlocks)
}
