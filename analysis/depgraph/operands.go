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
	"go/token"

	"golang.org/x/tools/go/ssa"
)

// wireAllOperands populates the operand arrays of every node, walking blocks
// in creation order and chains first-to-last so that diagnostics come out in
// a stable order. Operand population is a side effect on the nodes and never
// fails: a missing store operand or cast source is logged as a soft warning
// and marks the graph degraded; other missing operands are left nil without
// a warning.
func (b *Builder) wireAllOperands(g *Graph) {
	for _, blk := range g.Blocks() {
		for n := blk.FirstNode(); n != nil; n = n.Successor() {
			b.wireOperands(g, n)
		}
	}
}

func (b *Builder) wireOperands(g *Graph, n *Node) {
	switch instr := n.Key().(type) {
	case *ssa.Alloc:
		n.operands = []*Node{g.GetNode(instr)}

	case *ssa.Store:
		addr := g.GetNode(valueKey(instr.Addr))
		val := lookupValue(g, instr.Val)
		if addr == nil {
			b.warnOperand(g, "store address operand without node: %s", instr.Addr)
		}
		if val == nil {
			b.warnOperand(g, "store value operand without node: %s", instr.Val)
		}
		n.operands = []*Node{addr, val}

	case *ssa.UnOp:
		if instr.Op != token.MUL {
			return
		}
		n.operands = []*Node{lookupValue(g, instr.X)}

	case *ssa.FieldAddr:
		n.operands = []*Node{lookupValue(g, instr.X)}

	case *ssa.IndexAddr:
		n.operands = []*Node{lookupValue(g, instr.X)}

	case *ssa.ChangeType, *ssa.Convert, *ssa.ChangeInterface, *ssa.MakeInterface:
		src := stripCasts(n.Key().(ssa.Value))
		op := lookupValue(g, src)
		if op == nil {
			b.warnOperand(g, "cast with unstrippable source: %s", n.Key())
		}
		n.operands = []*Node{op}

	case *ssa.Call:
		// called value first, then the arguments
		args := instr.Common().Args
		operands := make([]*Node, 0, len(args)+1)
		operands = append(operands, lookupValue(g, instr.Common().Value))
		for _, a := range args {
			operands = append(operands, lookupValue(g, a))
		}
		n.operands = operands

	case *ssa.Return:
		if len(instr.Results) == 0 {
			return
		}
		n.operands = []*Node{lookupValue(g, instr.Results[0])}
	}
}

// lookupValue resolves a value to its node in g, nil when the value has no
// node (constants, parameters, values of other functions).
func lookupValue(g *Graph, v ssa.Value) *Node {
	if v == nil {
		return nil
	}
	return g.GetNode(valueKey(v))
}

// stripCasts peels chains of value-preserving conversions down to the
// underlying value.
func stripCasts(v ssa.Value) ssa.Value {
	for {
		switch x := v.(type) {
		case *ssa.ChangeType:
			v = x.X
		case *ssa.Convert:
			v = x.X
		case *ssa.ChangeInterface:
			v = x.X
		case *ssa.MakeInterface:
			v = x.X
		default:
			return v
		}
	}
}

func (b *Builder) warnOperand(g *Graph, format string, args ...any) {
	b.logger.Warnf(format, args...)
	g.MarkDegraded()
}
