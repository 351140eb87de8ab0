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
	"fmt"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/config"
)

// Builder constructs dependence subgraphs for the functions of a program,
// starting from an entry function and following defined call sites. The
// builder is the arena owning every subgraph it constructs.
type Builder struct {
	prog   *ssa.Program
	logger *config.LogGroup
	graphs map[*ssa.Function]*Graph
}

// NewBuilder returns a builder for prog logging diagnostics to logger.
func NewBuilder(prog *ssa.Program, logger *config.LogGroup) *Builder {
	return &Builder{
		prog:   prog,
		logger: logger,
		graphs: make(map[*ssa.Function]*Graph),
	}
}

// Graphs returns all subgraphs constructed so far, keyed by function.
func (b *Builder) Graphs() map[*ssa.Function]*Graph { return b.graphs }

// FindEntry looks up the entry function by name across the packages of the
// program. An empty name selects "main".
func (b *Builder) FindEntry(name string) *ssa.Function {
	if name == "" {
		name = "main"
	}
	for _, pkg := range b.prog.AllPackages() {
		if fn := pkg.Func(name); fn != nil && len(fn.Blocks) > 0 {
			return fn
		}
	}
	return nil
}

// BuildModule builds the dependence graph forest of the program rooted at the
// entry function named entryName ("" selects "main"). It returns the entry
// subgraph. Callees with defined bodies are built recursively and linked at
// their call sites.
func (b *Builder) BuildModule(entryName string) (*Graph, error) {
	entry := b.FindEntry(entryName)
	if entry == nil {
		return nil, fmt.Errorf("no entry function found/given")
	}
	g, err := b.BuildFunction(entry)
	if err != nil {
		return nil, fmt.Errorf("building graph for entry %s: %w", entry.Name(), err)
	}
	return g, nil
}

// workItem pairs a basic block with the predecessor it was discovered from.
type workItem struct {
	bb   *ssa.BasicBlock
	pred *ssa.BasicBlock
}

// BuildFunction builds (or returns the already-built or in-progress) subgraph
// of fn. Recursive calls reuse the in-progress subgraph. The construction
// reference is released once the build completes, so after linking the
// refcount equals the number of call sites linking the subgraph.
func (b *Builder) BuildFunction(fn *ssa.Function) (*Graph, error) {
	if g := b.graphs[fn]; g != nil {
		return g, nil
	}
	if len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("function %s has no body", fn.Name())
	}

	b.logger.Debugf("building graph for %q", fn.Name())

	g := NewGraph(fn)
	// register before walking blocks so recursive call sites find the
	// in-progress subgraph
	b.graphs[fn] = g

	entry := g.NewNode(fn)
	g.SetEntry(entry)

	processed := map[*ssa.BasicBlock]bool{fn.Blocks[0]: true}
	queue := []workItem{{bb: fn.Blocks[0]}}
	// cross edges into blocks that were enqueued but not yet populated are
	// resolved after the queue drains
	var deferred []workItem

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if err := b.buildBlock(g, item.bb, item.pred); err != nil {
			delete(b.graphs, fn)
			return nil, err
		}

		for _, s := range item.bb.Succs {
			// a loop may lead back to a block already seen; in that case only
			// the block-level successor edge is added
			if processed[s] {
				deferred = append(deferred, workItem{bb: s, pred: item.bb})
				continue
			}
			processed[s] = true
			queue = append(queue, workItem{bb: s, pred: item.bb})
		}
	}

	for _, e := range deferred {
		from := g.blockOf(e.pred)
		to := g.blockOf(e.bb)
		if from == nil || to == nil {
			delete(b.graphs, fn)
			return nil, fmt.Errorf("block of %s not constructed", fn.Name())
		}
		from.AddSuccessor(to)
	}

	if g.Exit() == nil {
		// no reachable return: create the unified exit anyway so consumers
		// can rely on its presence, and mark the graph degraded
		b.logger.Warnf("function %q has no reachable return", fn.Name())
		b.makeUnifiedExit(g)
		g.MarkDegraded()
	}

	if g.Entry() == nil || g.Exit() == nil || g.EntryBlock() == nil || g.ExitBlock() == nil {
		delete(b.graphs, fn)
		return nil, fmt.Errorf("incomplete graph for %s", fn.Name())
	}

	// control edge from the entry node to the first instruction
	entry.AddControlDependence(g.EntryBlock().FirstNode())

	b.addFormalParameters(g)
	b.wireAllOperands(g)

	// release the construction reference; linking call sites re-increment
	g.Unref()

	return g, nil
}

// buildBlock populates one BBlock: one node per instruction chained in order,
// call sites linked to callee subgraphs, and the unified exit wired when the
// block returns.
func (b *Builder) buildBlock(g *Graph, bb *ssa.BasicBlock, pred *ssa.BasicBlock) error {
	if len(bb.Instrs) == 0 {
		return fmt.Errorf("basic block %d of %s is not well formed", bb.Index, bb.Parent().Name())
	}

	var predBB *BBlock
	if pred != nil {
		pn := g.GetNode(pred.Instrs[len(pred.Instrs)-1].(ssa.Node))
		if pn == nil {
			return fmt.Errorf("predecessor node is not created for block %d of %s",
				bb.Index, bb.Parent().Name())
		}
		predBB = pn.Block()
	}

	var node *Node
	var predNode *Node
	var nodesBB *BBlock

	for _, instr := range bb.Instrs {
		node = g.NewNode(instr.(ssa.Node))

		if predNode == nil {
			nodesBB = newBBlock(g, bb, node)
			g.blockIndex(bb, nodesBB)
			if predBB != nil {
				predBB.AddSuccessor(nodesBB)
			} else {
				g.SetEntryBlock(nodesBB)
			}
		} else {
			predNode.SetSuccessor(node)
		}
		predNode = node

		if call, ok := instr.(*ssa.Call); ok && isFuncDefined(call) {
			b.buildSubgraph(node, call)
		}
	}

	term := bb.Instrs[len(bb.Instrs)-1]
	switch term.(type) {
	case *ssa.If, *ssa.Jump, *ssa.Return, *ssa.Panic:
	default:
		return fmt.Errorf("basic block %d of %s has no terminator", bb.Index, bb.Parent().Name())
	}

	if _, ok := term.(*ssa.Return); ok {
		ext := g.Exit()
		if ext == nil {
			ext = b.makeUnifiedExit(g)
		}
		// every return control-depends on the unified exit sink
		node.AddControlDependence(ext)
		nodesBB.AddSuccessor(g.ExitBlock())
	}

	nodesBB.SetLastNode(node)
	return nil
}

// makeUnifiedExit creates the phony unified return node and its block.
func (b *Builder) makeUnifiedExit(g *Graph) *Node {
	ext := g.NewNode(&phonyReturn{fn: g.fn})
	g.SetExit(ext)
	retBB := newBBlock(g, nil, ext)
	g.SetExitBlock(retBB)
	return ext
}

// isFuncDefined reports whether the call has a statically-known callee with a
// body. Undefined callees are skipped, not linked.
func isFuncDefined(call *ssa.Call) bool {
	callee := call.Common().StaticCallee()
	return callee != nil && len(callee.Blocks) > 0
}

// buildSubgraph links the callee subgraph at the call site, building it first
// if necessary. A failed callee build is a soft failure: the call site is
// left unlinked and a warning is logged.
func (b *Builder) buildSubgraph(callNode *Node, call *ssa.Call) {
	callee := call.Common().StaticCallee()

	sub := b.graphs[callee]
	if sub == nil {
		var err error
		sub, err = b.BuildFunction(callee)
		if err != nil {
			b.logger.Warnf("skipping callee %q: %v", callee.Name(), err)
			callNode.Graph().MarkDegraded()
			return
		}
	}

	bb := callNode.Block()
	bb.AddCallSite(callNode)

	callNode.callee = sub
	sub.Ref()
	sub.AddCaller(callNode)

	b.addActualParameters(callNode, call, callee)
}

// addActualParameters mirrors the callee's formal parameters at the call
// site: one phony in/out pair per argument, each control-dependent on the
// call node. No record is created for zero-argument calls.
func (b *Builder) addActualParameters(callNode *Node, call *ssa.Call, callee *ssa.Function) {
	args := call.Common().Args
	if len(args) == 0 {
		return
	}

	g := callNode.Graph()
	params := NewParameters(ActualPosition)
	if callNode.params != nil {
		b.logger.Warnf("replaced actual parameters at %s", callNode)
	}
	callNode.params = params

	for _, val := range args {
		in := newNode(g, valueKey(val))
		out := newNode(g, valueKey(val))
		params.Add(val, in, out)

		callNode.AddControlDependence(in)
		callNode.AddControlDependence(out)
	}
}

// addFormalParameters attaches the formal-parameter record: one phony in/out
// pair per parameter and free variable, each control-dependent on the entry
// node. Functions without arguments get no record.
func (b *Builder) addFormalParameters(g *Graph) {
	entry := g.Entry()
	fn := g.fn

	n := len(fn.Params) + len(fn.FreeVars)
	if n == 0 {
		return
	}

	params := NewParameters(FormalPosition)
	if old := g.SetParameters(params); old != nil {
		b.logger.Warnf("replaced formal parameters of %q", fn.Name())
	}

	addPair := func(val ssa.Value) {
		in := newNode(g, valueKey(val))
		out := newNode(g, valueKey(val))
		params.Add(val, in, out)

		entry.AddControlDependence(in)
		entry.AddControlDependence(out)
	}

	for _, p := range fn.Params {
		addPair(p)
	}
	for _, fv := range fn.FreeVars {
		addPair(fv)
	}
}

// valueKey converts an ssa.Value to the node key type.
func valueKey(v ssa.Value) ssa.Node {
	return v.(ssa.Node)
}
