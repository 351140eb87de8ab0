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

package pss

import (
	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/config"
)

// PointsToAnalysis ties a built pointer state subgraph to a solver variant
// and exposes the results keyed by SSA value.
type PointsToAnalysis struct {
	g       *Graph
	builder *Builder
	variant Variant
	solver  *Solver
	logger  *config.LogGroup
}

// NewPointsToAnalysis builds the PSS of the program rooted at entryName and
// prepares the solver selected by variant.
func NewPointsToAnalysis(prog *ssa.Program, entryName string, variant config.PtaVariant,
	logger *config.LogGroup) (*PointsToAnalysis, error) {

	b := NewBuilder(prog, logger)
	g, err := b.BuildModule(entryName)
	if err != nil {
		return nil, err
	}

	var v Variant
	if variant == config.PtaFlowSensitive {
		v = NewFlowSensitive()
	} else {
		v = NewFlowInsensitive()
	}

	return &PointsToAnalysis{
		g:       g,
		builder: b,
		variant: v,
		solver:  NewSolver(g, v),
		logger:  logger,
	}, nil
}

// Run solves the points-to problem to its fixpoint.
func (a *PointsToAnalysis) Run() {
	a.solver.Run()
	a.logger.Debugf("points-to analysis (%s) processed %d nodes over %d in the subgraph",
		a.variant.Name(), a.solver.Processed, len(a.g.Nodes()))
}

// Graph returns the pointer state subgraph.
func (a *PointsToAnalysis) Graph() *Graph { return a.g }

// Variant returns the memory model used.
func (a *PointsToAnalysis) Variant() Variant { return a.variant }

// Nodes returns all PSS nodes in creation order.
func (a *PointsToAnalysis) Nodes() []*Node { return a.g.Nodes() }

// NodeFor returns the PSS node of an SSA value, nil when the value is not
// pointer-relevant.
func (a *PointsToAnalysis) NodeFor(v ssa.Value) *Node { return a.builder.NodeFor(v) }

// PointsTo returns the solved points-to set of an SSA value, sorted for
// stable output. Values without a PSS node yield nil.
func (a *PointsToAnalysis) PointsTo(v ssa.Value) []Pointer {
	n := a.builder.NodeFor(v)
	if n == nil {
		return nil
	}
	return n.PointsTo().Sorted()
}

// MemoryRoots returns the allocation-site nodes a pointer value may target,
// normalized through casts and GEPs, in id order.
func (a *PointsToAnalysis) MemoryRoots(v ssa.Value) []*Node {
	n := a.builder.NodeFor(v)
	if n == nil {
		return nil
	}
	seen := make(map[*Node]bool)
	var roots []*Node
	for _, p := range n.PointsTo().Sorted() {
		r := normalizeTarget(p.Target)
		if !seen[r] {
			seen[r] = true
			roots = append(roots, r)
		}
	}
	return roots
}

// MayAlias reports whether two SSA values may point to overlapping memory:
// their points-to sets share a target, with equal or unknown offsets.
func (a *PointsToAnalysis) MayAlias(x, y ssa.Value) bool {
	nx := a.builder.NodeFor(x)
	ny := a.builder.NodeFor(y)
	if nx == nil || ny == nil {
		return false
	}
	for px := range nx.PointsTo() {
		tx := normalizeTarget(px.Target)
		for py := range ny.PointsTo() {
			if tx != normalizeTarget(py.Target) {
				continue
			}
			if px.Offset == py.Offset || px.Offset.IsUnknown() || py.Offset.IsUnknown() {
				return true
			}
		}
	}
	return false
}
