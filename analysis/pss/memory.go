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

// MemoryObject abstracts the storage of a single allocation site: a map from
// byte offset to the points-to set stored there, with a back-reference to the
// owning allocation node.
type MemoryObject struct {
	node     *Node
	pointsTo map[Offset]PointsToSet
}

// NewMemoryObject returns empty memory owned by the allocation node n.
func NewMemoryObject(n *Node) *MemoryObject {
	return &MemoryObject{
		node:     n,
		pointsTo: make(map[Offset]PointsToSet),
	}
}

// Node returns the allocation node the memory belongs to.
func (m *MemoryObject) Node() *Node { return m.node }

// Contents returns the offset-indexed contents of the memory.
func (m *MemoryObject) Contents() map[Offset]PointsToSet { return m.pointsTo }

// at returns the points-to set stored at off, creating it on first use.
func (m *MemoryObject) at(off Offset) PointsToSet {
	s := m.pointsTo[off]
	if s == nil {
		s = make(PointsToSet)
		m.pointsTo[off] = s
	}
	return s
}

// AddPointsTo unions ptrs into the set at off (a weak update) and reports
// whether the memory grew.
func (m *MemoryObject) AddPointsTo(off Offset, ptrs PointsToSet) bool {
	return m.at(off).Union(ptrs)
}

// SetPointsTo replaces the set at off (a strong update) and reports whether
// the contents differ from what was stored.
func (m *MemoryObject) SetPointsTo(off Offset, ptrs PointsToSet) bool {
	old := m.pointsTo[off]
	if old != nil && len(old) == len(ptrs) {
		same := true
		for p := range ptrs {
			if !old[p] {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}
	m.pointsTo[off] = ptrs.Copy()
	return true
}

// Read collects the pointers visible through a read at off: the set at the
// exact offset plus the unknown-offset overflow bucket; a read at the
// unknown offset sees every offset.
func (m *MemoryObject) Read(off Offset, into PointsToSet) bool {
	changed := false
	if off.IsUnknown() {
		for _, s := range m.pointsTo {
			changed = into.Union(s) || changed
		}
		return changed
	}
	if s, ok := m.pointsTo[off]; ok {
		changed = into.Union(s) || changed
	}
	if s, ok := m.pointsTo[UnknownOffset]; ok {
		changed = into.Union(s) || changed
	}
	return changed
}

// union merges all contents of o into m and reports growth.
func (m *MemoryObject) union(o *MemoryObject) bool {
	changed := false
	for off, s := range o.pointsTo {
		changed = m.at(off).Union(s) || changed
	}
	return changed
}

// copyContents returns an independent copy of m keeping the same owner.
func (m *MemoryObject) copyContents() *MemoryObject {
	c := NewMemoryObject(m.node)
	for off, s := range m.pointsTo {
		c.pointsTo[off] = s.Copy()
	}
	return c
}

// entryCount is the total number of (offset, pointer) pairs, the measure of
// monotone growth used by the flow-sensitive solver.
func (m *MemoryObject) entryCount() int {
	n := 0
	for _, s := range m.pointsTo {
		n += len(s)
	}
	return n
}

// MemoryMap is the memory state effective at one program point in the
// flow-sensitive analysis: for each base pointer, the memory object holding
// the contents of that allocation at this point.
type MemoryMap map[Pointer]*MemoryObject

// objectFor returns the memory object of base, creating an empty one on
// first use.
func (mm MemoryMap) objectFor(base Pointer) *MemoryObject {
	mo := mm[base]
	if mo == nil {
		mo = NewMemoryObject(base.Target)
		mm[base] = mo
	}
	return mo
}

// join merges the contents of o into mm, copying objects on first sight so
// states of different program points never share memory objects. Reports
// whether mm grew.
func (mm MemoryMap) join(o MemoryMap) bool {
	changed := false
	for base, mo := range o {
		mine := mm[base]
		if mine == nil {
			mm[base] = mo.copyContents()
			changed = true
			continue
		}
		changed = mine.union(mo) || changed
	}
	return changed
}

// entryCount measures the total number of stored pairs across all objects.
func (mm MemoryMap) entryCount() int {
	n := 0
	for _, mo := range mm {
		n += mo.entryCount()
	}
	return n
}

// equalContents reports whether two objects store exactly the same pairs.
func (m *MemoryObject) equalContents(o *MemoryObject) bool {
	if m.entryCount() != o.entryCount() {
		return false
	}
	for off, s := range m.pointsTo {
		os := o.pointsTo[off]
		for p := range s {
			if !os[p] {
				return false
			}
		}
	}
	return true
}

// equal reports whether two maps describe the same memory state.
func (mm MemoryMap) equal(o MemoryMap) bool {
	if len(mm) != len(o) {
		return false
	}
	for base, mo := range mm {
		other := o[base]
		if other == nil || !mo.equalContents(other) {
			return false
		}
	}
	return true
}
