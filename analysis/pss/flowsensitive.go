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

// FlowSensitive is the points-to variant carrying a memory map per PSS node:
// the memory state effective at that program point. The out-state of a node
// is the join of its predecessors' out-states with the node's own effect
// applied; stores through a unique finite pointer perform strong updates.
type FlowSensitive struct {
	// prev keeps the previous out-state of the node being processed so
	// growth can be detected after the transfer.
	prev map[*Node]MemoryMap
}

// NewFlowSensitive returns the flow-sensitive memory model.
func NewFlowSensitive() *FlowSensitive {
	return &FlowSensitive{prev: make(map[*Node]MemoryMap)}
}

// Name implements Variant.
func (f *FlowSensitive) Name() string { return "flow-sensitive" }

// mapOf returns the memory map stored on n, or nil.
func mapOf(n *Node) MemoryMap {
	mm, _ := n.Data().(MemoryMap)
	return mm
}

// MemoryObjects returns the object of the allocation behind t in the memory
// map of the program point where, creating it on first use.
func (f *FlowSensitive) MemoryObjects(where, t *Node) []*MemoryObject {
	n := normalizeTarget(t)
	if !isAllocation(n) && n.Kind() != UnknownMem {
		return nil
	}
	mm := mapOf(where)
	if mm == nil {
		mm = make(MemoryMap)
		where.SetData(mm)
	}
	return []*MemoryObject{mm.objectFor(Pointer{Target: n, Offset: 0})}
}

// StrongUpdates implements Variant.
func (f *FlowSensitive) StrongUpdates() bool { return true }

// BeforeProcessed implements Variant: rebuild the node's out-state from the
// join of its predecessors' out-states, remembering the previous state for
// change detection. Allocation nodes introduce their fresh key.
func (f *FlowSensitive) BeforeProcessed(n *Node) {
	f.prev[n] = mapOf(n)

	mm := make(MemoryMap)
	for _, p := range n.Predecessors() {
		if pm := mapOf(p); pm != nil {
			mm.join(pm)
		}
	}
	if isAllocation(n) {
		mm.objectFor(Pointer{Target: n, Offset: 0})
	}
	n.SetData(mm)
}

// ProcessedChanged implements Variant: the node changed when its out-state
// differs from the previous one.
func (f *FlowSensitive) ProcessedChanged(n *Node) bool {
	old := f.prev[n]
	delete(f.prev, n)
	mm := mapOf(n)
	if old == nil {
		return mm != nil && len(mm) > 0
	}
	return !old.equal(mm)
}

// Enqueue implements Variant: successors go straight back on the queue.
func (f *FlowSensitive) Enqueue(s *Solver, n *Node) {
	s.Push(n)
}

// AfterProcessed implements Variant.
func (f *FlowSensitive) AfterProcessed(s *Solver, n *Node) {}
