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
)

// ParamPosition distinguishes the two places a parameter record can sit.
type ParamPosition int

const (
	// FormalPosition is a record attached to a function entry.
	FormalPosition ParamPosition = iota

	// ActualPosition is a record attached to a call site.
	ActualPosition
)

func (p ParamPosition) String() string {
	if p == FormalPosition {
		return "formal"
	}
	return "actual"
}

// ParamPair holds the phony in and out nodes of one parameter. The in node
// models the value entering the callee, the out node the value flowing back
// at return.
type ParamPair struct {
	In  *Node
	Out *Node
}

// Parameters maps parameter values to their in/out node pairs. The same
// record type serves formal parameters (attached to a subgraph) and actual
// parameters (attached to a call node); Position tells them apart.
type Parameters struct {
	position ParamPosition
	pairs    map[ssa.Value]ParamPair
	order    []ssa.Value
}

// NewParameters returns an empty record at the given position.
func NewParameters(pos ParamPosition) *Parameters {
	return &Parameters{
		position: pos,
		pairs:    make(map[ssa.Value]ParamPair),
	}
}

// Position reports whether the record is formal or actual.
func (p *Parameters) Position() ParamPosition { return p.position }

// Add registers the in/out pair for val, keeping insertion order.
func (p *Parameters) Add(val ssa.Value, in, out *Node) {
	if _, ok := p.pairs[val]; !ok {
		p.order = append(p.order, val)
	}
	p.pairs[val] = ParamPair{In: in, Out: out}
}

// Get returns the pair registered for val.
func (p *Parameters) Get(val ssa.Value) (ParamPair, bool) {
	pair, ok := p.pairs[val]
	return pair, ok
}

// Len returns the number of registered parameters.
func (p *Parameters) Len() int { return len(p.pairs) }

// Values returns the parameter values in insertion order.
func (p *Parameters) Values() []ssa.Value { return p.order }

// Pairs calls f on each pair in insertion order.
func (p *Parameters) Pairs(f func(ssa.Value, ParamPair)) {
	for _, v := range p.order {
		f(v, p.pairs[v])
	}
}
