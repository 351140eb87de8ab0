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
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/config"
)

// fnInfo is the PSS slice of one function: its entry placeholder, the phi
// nodes joining the values bound to parameters and free variables across
// call sites, and the return nodes.
type fnInfo struct {
	entry    *Node
	params   []*Node
	freeVars []*Node
	returns  []*Node
}

type pendingCall struct {
	call   *Node
	callee *ssa.Function
}

type pendingPhi struct {
	node *Node
	phi  *ssa.Phi
}

// Builder translates the pointer-relevant slice of a program into a pointer
// state subgraph. Every function reachable from the entry through defined
// call sites contributes a chain of nodes in control order, stitched
// together along CFG and call edges.
type Builder struct {
	prog   *ssa.Program
	logger *config.LogGroup
	sizes  types.Sizes

	g    *Graph
	vals map[ssa.Value]*Node
	fns  map[*ssa.Function]*fnInfo

	pendingCalls []pendingCall
	pendingPhis  []pendingPhi
}

// NewBuilder returns a PSS builder for prog.
func NewBuilder(prog *ssa.Program, logger *config.LogGroup) *Builder {
	return &Builder{
		prog:   prog,
		logger: logger,
		sizes:  types.SizesFor("gc", "amd64"),
		g:      NewGraph(),
		vals:   make(map[ssa.Value]*Node),
		fns:    make(map[*ssa.Function]*fnInfo),
	}
}

// BuildModule builds the PSS of the program rooted at the entry function
// named entryName ("" selects "main").
func (b *Builder) BuildModule(entryName string) (*Graph, error) {
	if entryName == "" {
		entryName = "main"
	}
	var entry *ssa.Function
	for _, pkg := range b.prog.AllPackages() {
		if fn := pkg.Func(entryName); fn != nil && len(fn.Blocks) > 0 {
			entry = fn
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("no entry function found/given")
	}

	fi := b.buildFunction(entry)
	b.g.SetRoot(fi.entry)

	// late wiring: returned values flow back into call nodes
	for _, pc := range b.pendingCalls {
		cfi := b.fns[pc.callee]
		if cfi == nil {
			continue
		}
		for _, ret := range cfi.returns {
			pc.call.AddOperand(ret)
			ret.AddSuccessor(pc.call)
		}
	}
	return b.g, nil
}

// NodeFor returns the PSS node of an SSA value, or nil when the value is not
// pointer-relevant.
func (b *Builder) NodeFor(v ssa.Value) *Node { return b.vals[v] }

// Graph returns the subgraph under construction.
func (b *Builder) Graph() *Graph { return b.g }

// buildFunction translates fn once and memoizes the result; recursive calls
// find the in-progress entry.
func (b *Builder) buildFunction(fn *ssa.Function) *fnInfo {
	if fi := b.fns[fn]; fi != nil {
		return fi
	}
	fi := &fnInfo{}
	b.fns[fn] = fi

	fi.entry = b.g.NewNode(NoOp)
	fi.entry.name = "entry " + fn.String()

	cur := fi.entry
	for _, p := range fn.Params {
		n := b.g.NewNode(Phi)
		n.SetValue(p)
		b.vals[p] = n
		fi.params = append(fi.params, n)
		cur.AddSuccessor(n)
		cur = n
	}
	for _, fv := range fn.FreeVars {
		n := b.g.NewNode(Phi)
		n.SetValue(fv)
		b.vals[fv] = n
		fi.freeVars = append(fi.freeVars, n)
		cur.AddSuccessor(n)
		cur = n
	}

	heads := make(map[*ssa.BasicBlock]*Node)
	tails := make(map[*ssa.BasicBlock]*Node)
	for _, bb := range fn.Blocks {
		h := b.g.NewNode(NoOp)
		h.name = fmt.Sprintf("%s.%d", fn.Name(), bb.Index)
		heads[bb] = h
	}
	if len(fn.Blocks) > 0 {
		cur.AddSuccessor(heads[fn.Blocks[0]])
	}

	phiMark := len(b.pendingPhis)

	for _, bb := range fn.Blocks {
		cur := heads[bb]
		for _, instr := range bb.Instrs {
			if n := b.translate(instr); n != nil {
				cur.AddSuccessor(n)
				cur = n
			}
		}
		tails[bb] = cur
	}

	for _, bb := range fn.Blocks {
		for _, s := range bb.Succs {
			tails[bb].AddSuccessor(heads[s])
		}
	}

	// phi operands may reference values defined on back edges, so they are
	// wired after the whole function is translated
	for _, pp := range b.pendingPhis[phiMark:] {
		for _, e := range pp.phi.Edges {
			pp.node.AddOperand(b.valueNode(e))
		}
	}
	b.pendingPhis = b.pendingPhis[:phiMark]

	return fi
}

// translate creates the PSS node of one instruction, nil when the
// instruction is not pointer-relevant.
func (b *Builder) translate(instr ssa.Instruction) *Node {
	switch v := instr.(type) {
	case *ssa.Alloc:
		n := b.g.NewNode(Alloc)
		n.SetValue(v)
		if v.Heap {
			n.SetHeap()
		}
		if elem, ok := v.Type().Underlying().(*types.Pointer); ok {
			n.SetSize(uint64(b.sizes.Sizeof(elem.Elem())))
		}
		b.vals[v] = n
		return n

	case *ssa.MakeSlice, *ssa.MakeMap, *ssa.MakeChan:
		val := v.(ssa.Value)
		n := b.g.NewNode(DynAlloc)
		n.SetValue(v.(ssa.Node))
		n.SetHeap()
		n.SetZeroInitialized()
		b.vals[val] = n
		return n

	case *ssa.MakeClosure:
		n := b.g.NewNode(DynAlloc)
		n.SetValue(v)
		n.SetHeap()
		b.vals[v] = n
		if callee, ok := v.Fn.(*ssa.Function); ok && len(callee.Blocks) > 0 {
			cfi := b.buildFunction(callee)
			for i, bound := range v.Bindings {
				if i < len(cfi.freeVars) {
					cfi.freeVars[i].AddOperand(b.valueNode(bound))
				}
			}
		}
		return n

	case *ssa.UnOp:
		if v.Op != token.MUL {
			return b.unknownResult(v)
		}
		n := b.g.NewNode(Load, b.valueNodeOrUnknown(v.X))
		n.SetValue(v)
		b.vals[v] = n
		return n

	case *ssa.Store:
		val := b.valueNode(v.Val)
		if val == nil {
			// not a pointer store
			return nil
		}
		n := b.g.NewNode(Store, val, b.valueNodeOrUnknown(v.Addr))
		n.SetValue(v)
		return n

	case *ssa.FieldAddr:
		n := b.g.NewGEP(b.valueNodeOrUnknown(v.X), b.fieldOffset(v))
		n.SetValue(v)
		b.vals[v] = n
		return n

	case *ssa.IndexAddr:
		n := b.g.NewGEP(b.valueNodeOrUnknown(v.X), b.indexOffset(v))
		n.SetValue(v)
		b.vals[v] = n
		return n

	case *ssa.ChangeType, *ssa.Convert, *ssa.ChangeInterface, *ssa.MakeInterface,
		*ssa.Slice, *ssa.Extract, *ssa.TypeAssert:
		val := v.(ssa.Value)
		src := b.valueNode(sourceValue(val))
		if src == nil {
			return b.unknownResult(v)
		}
		n := b.g.NewNode(Cast, src)
		n.SetValue(v.(ssa.Node))
		b.vals[val] = n
		return n

	case *ssa.Phi:
		n := b.g.NewNode(Phi)
		n.SetValue(v)
		b.vals[v] = n
		b.pendingPhis = append(b.pendingPhis, pendingPhi{node: n, phi: v})
		return n

	case *ssa.Call:
		return b.translateCall(v)

	case *ssa.Return:
		n := b.g.NewNode(ReturnNode)
		n.SetValue(v)
		for _, r := range v.Results {
			n.AddOperand(b.valueNode(r))
		}
		fi := b.fns[v.Parent()]
		fi.returns = append(fi.returns, n)
		return n

	default:
		return b.unknownResult(instr)
	}
}

// translateCall handles calls: builtin copy becomes a Memcpy node, defined
// callees are linked and their parameters bound, everything else yields an
// unknown pointer when the result could be one.
func (b *Builder) translateCall(call *ssa.Call) *Node {
	common := call.Common()

	if blt, ok := common.Value.(*ssa.Builtin); ok {
		if blt.Name() == "copy" && len(common.Args) == 2 {
			dst := b.valueNode(common.Args[0])
			src := b.valueNode(common.Args[1])
			if dst == nil || src == nil {
				return nil
			}
			return b.g.NewMemcpy(src, dst, UnknownOffset)
		}
		return b.unknownResult(call)
	}

	callee := common.StaticCallee()
	if callee == nil || len(callee.Blocks) == 0 {
		return b.unknownResult(call)
	}

	cfi := b.buildFunction(callee)
	for i, arg := range common.Args {
		if an := b.valueNode(arg); an != nil && i < len(cfi.params) {
			cfi.params[i].AddOperand(an)
		}
	}

	n := b.g.NewNode(CallNode)
	n.SetValue(call)
	b.vals[call] = n
	b.pendingCalls = append(b.pendingCalls, pendingCall{call: n, callee: callee})
	// memory flows into the callee and back through the return edges wired
	// in BuildModule
	n.AddSuccessor(cfi.entry)
	return n
}

// unknownResult inserts a node of unknown provenance for values the builder
// does not model, so downstream reads over-approximate instead of missing.
func (b *Builder) unknownResult(instr ssa.Instruction) *Node {
	val, ok := instr.(ssa.Value)
	if !ok || !pointerLike(val.Type()) {
		return nil
	}
	n := b.g.NewConstant(b.g.UnknownMemNode(), UnknownOffset)
	n.SetValue(instr.(ssa.Node))
	b.vals[val] = n
	return n
}

// valueNode resolves an SSA value to its PSS node, creating nodes lazily for
// globals, functions and the nil constant. Non-pointer values yield nil.
func (b *Builder) valueNode(v ssa.Value) *Node {
	if v == nil {
		return nil
	}
	if n := b.vals[v]; n != nil {
		return n
	}
	switch x := v.(type) {
	case *ssa.Global:
		n := b.g.NewNode(Alloc)
		n.SetValue(x)
		n.SetZeroInitialized()
		if elem, ok := x.Type().Underlying().(*types.Pointer); ok {
			n.SetSize(uint64(b.sizes.Sizeof(elem.Elem())))
		}
		b.vals[v] = n
		return n
	case *ssa.Function:
		n := b.g.NewNode(Function)
		n.SetValue(x)
		n.pointsTo.Add(Pointer{Target: n, Offset: 0})
		b.vals[v] = n
		return n
	case *ssa.Const:
		if x.IsNil() {
			return b.g.NullNode()
		}
		return nil
	}
	return nil
}

// valueNodeOrUnknown is valueNode falling back to the unknown-memory
// sentinel, for positions where a missing operand must over-approximate.
func (b *Builder) valueNodeOrUnknown(v ssa.Value) *Node {
	if n := b.valueNode(v); n != nil {
		return n
	}
	return b.g.UnknownMemNode()
}

// sourceValue unwraps the single source operand of pass-through values.
func sourceValue(v ssa.Value) ssa.Value {
	switch x := v.(type) {
	case *ssa.ChangeType:
		return x.X
	case *ssa.Convert:
		return x.X
	case *ssa.ChangeInterface:
		return x.X
	case *ssa.MakeInterface:
		return x.X
	case *ssa.Slice:
		return x.X
	case *ssa.Extract:
		return x.Tuple
	case *ssa.TypeAssert:
		return x.X
	}
	return nil
}

// fieldOffset computes the byte offset of a FieldAddr.
func (b *Builder) fieldOffset(fa *ssa.FieldAddr) Offset {
	ptr, ok := fa.X.Type().Underlying().(*types.Pointer)
	if !ok {
		return UnknownOffset
	}
	st, ok := ptr.Elem().Underlying().(*types.Struct)
	if !ok {
		return UnknownOffset
	}
	fields := make([]*types.Var, st.NumFields())
	for i := 0; i < st.NumFields(); i++ {
		fields[i] = st.Field(i)
	}
	offsets := b.sizes.Offsetsof(fields)
	if fa.Field < 0 || fa.Field >= len(offsets) {
		return UnknownOffset
	}
	return Offset(offsets[fa.Field])
}

// indexOffset computes the byte offset of an IndexAddr: exact for constant
// indices into arrays, unknown otherwise.
func (b *Builder) indexOffset(ia *ssa.IndexAddr) Offset {
	ptr, ok := ia.X.Type().Underlying().(*types.Pointer)
	if !ok {
		// indexing a slice: the backing array offset is not static
		return UnknownOffset
	}
	arr, ok := ptr.Elem().Underlying().(*types.Array)
	if !ok {
		return UnknownOffset
	}
	c, ok := ia.Index.(*ssa.Const)
	if !ok {
		return UnknownOffset
	}
	return Offset(uint64(c.Int64()) * uint64(b.sizes.Sizeof(arr.Elem())))
}

// pointerLike reports whether values of type t can carry pointers.
func pointerLike(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan,
		*types.Signature, *types.Interface:
		return true
	}
	return false
}
