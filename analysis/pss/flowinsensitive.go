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

// FlowInsensitive is the points-to variant with a single memory object per
// allocation site, shared across all program points. Successors of changed
// nodes accumulate in a changed set; when the queue drains with pending
// changes, every node of the subgraph is re-enqueued and the set is cleared.
type FlowInsensitive struct {
	changed map[*Node]bool
}

// NewFlowInsensitive returns the flow-insensitive memory model.
func NewFlowInsensitive() *FlowInsensitive {
	return &FlowInsensitive{changed: make(map[*Node]bool)}
}

// Name implements Variant.
func (f *FlowInsensitive) Name() string { return "flow-insensitive" }

// MemoryObjects returns the unique memory object of the allocation site
// behind t, lazily attached to the node's data slot.
func (f *FlowInsensitive) MemoryObjects(where, t *Node) []*MemoryObject {
	n := normalizeTarget(t)
	if !isAllocation(n) && n.Kind() != UnknownMem {
		return nil
	}
	mo, _ := n.Data().(*MemoryObject)
	if mo == nil {
		mo = NewMemoryObject(n)
		n.SetData(mo)
	}
	return []*MemoryObject{mo}
}

// StrongUpdates implements Variant: a shared memory object only admits weak
// updates.
func (f *FlowInsensitive) StrongUpdates() bool { return false }

// BeforeProcessed implements Variant.
func (f *FlowInsensitive) BeforeProcessed(n *Node) {}

// ProcessedChanged implements Variant.
func (f *FlowInsensitive) ProcessedChanged(n *Node) bool { return false }

// Enqueue implements Variant: successors of changed nodes are recorded, not
// queued, until the queue drains.
func (f *FlowInsensitive) Enqueue(s *Solver, n *Node) {
	f.changed[n] = true
}

// AfterProcessed implements Variant: once the queue would drain with pending
// changes, re-seed it with every node of the subgraph. A changed memory
// object may be read by a load that sits before the writing store in control
// order, so the transitive-successor closure of the changed set is not
// enough; the loop ends when a full pass leaves the changed set empty.
func (f *FlowInsensitive) AfterProcessed(s *Solver, n *Node) {
	if s.Pending() > 0 || len(f.changed) == 0 {
		return
	}

	for _, m := range s.Graph().Nodes() {
		s.Push(m)
	}
	f.changed = make(map[*Node]bool)
}
