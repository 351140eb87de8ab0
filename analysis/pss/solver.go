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

// Variant supplies the memory model of a points-to solver. The common
// worklist loop and the per-kind transfer live in Solver; a variant decides
// where memory objects come from, how successors of changed nodes are
// scheduled, and may re-seed the queue when it would otherwise drain.
type Variant interface {
	// Name identifies the variant in logs and dumps.
	Name() string

	// MemoryObjects returns the memory objects a read or write through a
	// pointer targeting t operates on, at program point where.
	MemoryObjects(where, t *Node) []*MemoryObject

	// StrongUpdates reports whether a store through a unique finite pointer
	// may replace the previous contents.
	StrongUpdates() bool

	// BeforeProcessed runs before the transfer of n.
	BeforeProcessed(n *Node)

	// ProcessedChanged reports variant-specific state growth of n after the
	// transfer ran.
	ProcessedChanged(n *Node) bool

	// Enqueue schedules a successor of a changed node.
	Enqueue(s *Solver, n *Node)

	// AfterProcessed runs after each worklist pop; variants may re-seed the
	// queue here.
	AfterProcessed(s *Solver, n *Node)
}

// Solver is the worklist fixpoint driver over a pointer state subgraph.
// Points-to sets only ever grow and derive from a finite universe, so the
// loop terminates; the final sets do not depend on queue order.
type Solver struct {
	g     *Graph
	v     Variant
	queue []*Node

	// Processed counts worklist pops, for statistics.
	Processed uint64
}

// NewSolver returns a solver running variant v over g.
func NewSolver(g *Graph, v Variant) *Solver {
	return &Solver{g: g, v: v}
}

// Graph returns the subgraph the solver operates on.
func (s *Solver) Graph() *Graph { return s.g }

// Push appends n to the worklist.
func (s *Solver) Push(n *Node) { s.queue = append(s.queue, n) }

// Pending returns the number of nodes waiting in the queue.
func (s *Solver) Pending() int { return len(s.queue) }

// Run enqueues every node once and iterates to the fixpoint.
func (s *Solver) Run() {
	for _, n := range s.g.Nodes() {
		s.Push(n)
	}

	for len(s.queue) > 0 {
		n := s.queue[0]
		s.queue = s.queue[1:]
		s.Processed++

		s.v.BeforeProcessed(n)
		changed := s.processNode(n)
		changed = s.v.ProcessedChanged(n) || changed

		if changed {
			for _, succ := range n.Successors() {
				s.v.Enqueue(s, succ)
			}
		}

		s.v.AfterProcessed(s, n)
	}
}

// processNode applies the transfer of n and reports whether its points-to
// set or any written memory grew.
func (s *Solver) processNode(n *Node) bool {
	switch n.Kind() {
	case Alloc, DynAlloc:
		return n.pointsTo.Add(Pointer{Target: n, Offset: 0})

	case Cast, NoOp:
		return s.unionOperands(n)

	case Phi, CallNode, ReturnNode:
		return s.unionOperands(n)

	case GEP:
		src := n.Operand(0)
		if src == nil {
			return false
		}
		changed := false
		for _, p := range src.pointsTo.Sorted() {
			changed = n.pointsTo.Add(Pointer{Target: p.Target, Offset: p.Offset.Add(n.offset)}) || changed
		}
		return changed

	case Load:
		return s.processLoad(n)

	case Store:
		return s.processStore(n)

	case Memcpy:
		return s.processMemcpy(n)

	case Constant, Null, UnknownMem, Function:
		// points-to fixed at construction
		return false
	}
	return false
}

func (s *Solver) unionOperands(n *Node) bool {
	changed := false
	for _, op := range n.operands {
		if op == nil {
			continue
		}
		changed = n.pointsTo.Union(op.pointsTo) || changed
	}
	return changed
}

func (s *Solver) processLoad(n *Node) bool {
	ptr := n.Operand(0)
	if ptr == nil {
		return false
	}
	changed := false
	for _, p := range ptr.pointsTo.Sorted() {
		for _, mo := range s.v.MemoryObjects(n, p.Target) {
			grew := mo.Read(p.Offset, n.pointsTo)
			if !grew && mo.Node().IsZeroInitialized() && len(mo.Contents()) == 0 {
				// reading untouched zeroed memory yields the null pointer
				grew = n.pointsTo.Add(Pointer{Target: s.g.NullNode(), Offset: 0})
			}
			changed = grew || changed
		}
	}
	return changed
}

func (s *Solver) processStore(n *Node) bool {
	val := n.Operand(0)
	ptr := n.Operand(1)
	if val == nil || ptr == nil {
		return false
	}

	targets := ptr.pointsTo.Sorted()
	strong := s.v.StrongUpdates() && len(targets) == 1 &&
		!targets[0].Offset.IsUnknown() && isAllocation(targets[0].Target)

	changed := false
	for _, p := range targets {
		mos := s.v.MemoryObjects(n, p.Target)
		for _, mo := range mos {
			if strong && len(mos) == 1 {
				changed = mo.SetPointsTo(p.Offset, val.pointsTo) || changed
			} else {
				changed = mo.AddPointsTo(p.Offset, val.pointsTo) || changed
			}
		}
	}
	return changed
}

func (s *Solver) processMemcpy(n *Node) bool {
	src := n.Operand(0)
	dst := n.Operand(1)
	if src == nil || dst == nil {
		return false
	}

	changed := false
	for _, sp := range src.pointsTo.Sorted() {
		for _, smo := range s.v.MemoryObjects(n, sp.Target) {
			for _, dp := range dst.pointsTo.Sorted() {
				for _, dmo := range s.v.MemoryObjects(n, dp.Target) {
					changed = copyMemory(smo, sp.Offset, dmo, dp.Offset, n.length) || changed
				}
			}
		}
	}
	return changed
}

// copyMemory propagates the contents of src in [srcOff, srcOff+length) to
// dst shifted to dstOff. An unknown length propagates everything; unknown
// offsets coalesce into the unknown-offset bucket.
func copyMemory(src *MemoryObject, srcOff Offset, dst *MemoryObject, dstOff Offset, length Offset) bool {
	changed := false
	for off, set := range src.Contents() {
		if off.IsUnknown() || srcOff.IsUnknown() || dstOff.IsUnknown() {
			changed = dst.AddPointsTo(UnknownOffset, set) || changed
			continue
		}
		if off < srcOff {
			continue
		}
		rel := off - srcOff
		if !length.IsUnknown() && rel >= length {
			continue
		}
		changed = dst.AddPointsTo(dstOff+rel, set) || changed
	}
	return changed
}

// isAllocation reports whether n is a node with attached memory.
func isAllocation(n *Node) bool {
	switch n.Kind() {
	case Alloc, DynAlloc:
		return true
	}
	return false
}

// normalizeTarget resolves a pointer target down to the node that carries
// memory: casts and GEPs forward to their source, constants to their fixed
// target.
func normalizeTarget(n *Node) *Node {
	for {
		switch n.Kind() {
		case Cast, GEP:
			op := n.Operand(0)
			if op == nil {
				return n
			}
			n = op
		case Constant:
			pts := n.pointsTo.Sorted()
			if len(pts) != 1 {
				return n
			}
			n = pts[0].Target
		default:
			return n
		}
	}
}
