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
	"fmt"
	"sort"
)

// Offset is a byte displacement within an abstract memory object, possibly
// unknown.
type Offset uint64

// UnknownOffset is the sentinel for offsets that cannot be computed
// statically.
const UnknownOffset Offset = ^Offset(0)

// IsUnknown reports whether the offset is the unknown sentinel.
func (o Offset) IsUnknown() bool { return o == UnknownOffset }

// Add returns o + d, saturating to unknown: anything plus an unknown offset
// is unknown.
func (o Offset) Add(d Offset) Offset {
	if o.IsUnknown() || d.IsUnknown() {
		return UnknownOffset
	}
	return o + d
}

func (o Offset) String() string {
	if o.IsUnknown() {
		return "UNKNOWN"
	}
	return fmt.Sprintf("%d", uint64(o))
}

// Pointer is one element of a points-to set: an abstract target plus a byte
// offset into it.
type Pointer struct {
	Target *Node
	Offset Offset
}

func (p Pointer) String() string {
	return fmt.Sprintf("%s + %s", p.Target, p.Offset)
}

// PointsToSet is a set of pointers. The solvers only ever add elements, so
// sets grow monotonically.
type PointsToSet map[Pointer]bool

// Add inserts p and reports whether the set grew.
func (s PointsToSet) Add(p Pointer) bool {
	if s[p] {
		return false
	}
	s[p] = true
	return true
}

// Union inserts every pointer of o and reports whether the set grew.
func (s PointsToSet) Union(o PointsToSet) bool {
	changed := false
	for p := range o {
		changed = s.Add(p) || changed
	}
	return changed
}

// Copy returns an independent copy of the set.
func (s PointsToSet) Copy() PointsToSet {
	c := make(PointsToSet, len(s))
	for p := range s {
		c[p] = true
	}
	return c
}

// Sorted returns the pointers ordered by target id then offset, for stable
// dumps.
func (s PointsToSet) Sorted() []Pointer {
	out := make([]Pointer, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target.ID() != out[j].Target.ID() {
			return out[i].Target.ID() < out[j].Target.ID()
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}
