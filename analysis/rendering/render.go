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

// Package rendering writes dependence graphs and pointer state subgraphs in
// GraphViz or plain-text form. Output is deterministic: subgraphs are
// ordered by function name, PSS nodes by id, and dependence-graph nodes by
// entry node, then block chains, then parameter records.
package rendering

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/depgraph"
	"github.com/awslabs/go-depgraph/internal/funcutil"
)

// PrintOption selects which edge families appear in the output.
type PrintOption uint32

const (
	// PrintCFG prints intra-block successor and block successor edges.
	PrintCFG PrintOption = 1 << iota

	// PrintCD prints control-dependence edges.
	PrintCD

	// PrintDD prints data-dependence edges.
	PrintDD

	// PrintRevCFG additionally prints reversed CFG edges.
	PrintRevCFG

	// PrintCall prints call edges into callee subgraphs.
	PrintCall
)

// maxLabel is where node labels get cropped.
const maxLabel = 70

// escapeLabel crops a label and escapes the characters DOT is sensitive to.
func escapeLabel(s string) string {
	if len(s) > maxLabel {
		s = s[:maxLabel] + " ..."
	}
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\"", "\\\"")
}

// nodeName returns the DOT identifier of a node: subgraph index plus node id.
func nodeName(gi int, n *depgraph.Node) string {
	return fmt.Sprintf("f%d_n%d", gi, n.ID())
}

// sortedGraphs orders the forest by function name for stable output.
func sortedGraphs(graphs map[*ssa.Function]*depgraph.Graph) []*depgraph.Graph {
	fns := funcutil.SortedKeysBy(graphs, func(f *ssa.Function) string { return f.String() })
	out := make([]*depgraph.Graph, len(fns))
	for i, f := range fns {
		out[i] = graphs[f]
	}
	return out
}

// WriteGraphviz renders the forest as a directed graph with one cluster per
// subgraph. Intra-block successor edges are solid, control dependence is
// dashed, data dependence is dotted, and call edges link a call node to the
// callee's entry.
func WriteGraphviz(w io.Writer, graphs map[*ssa.Function]*depgraph.Graph, opts PrintOption) error {
	ordered := sortedGraphs(graphs)
	index := make(map[*depgraph.Graph]int, len(ordered))
	for i, g := range ordered {
		index[g] = i
	}

	if _, err := fmt.Fprintf(w, "digraph \"dependence graph\" {\n"); err != nil {
		return fmt.Errorf("error while writing in file: %w", err)
	}

	for gi, g := range ordered {
		checks := g.SelfCheck()
		if _, err := fmt.Fprintf(w, "\tsubgraph cluster_%d {\n\t\tlabel=\"%s\"\n",
			gi, escapeLabel(g.Function().String())); err != nil {
			return err
		}

		for _, n := range graphNodes(g) {
			label := escapeLabel(nodeLabel(g, n))
			if n == g.Entry() && len(checks) > 0 {
				label += "\\nERR: " + escapeLabel(strings.Join(checks, "; "))
			}
			if _, err := fmt.Fprintf(w, "\t\t%s [label=\"%s\" shape=box]\n",
				nodeName(gi, n), label); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(w, "\t}\n"); err != nil {
			return err
		}

		if err := writeEdges(w, g, gi, index, opts); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "}\n"); err != nil {
		return fmt.Errorf("error while writing in file: %w", err)
	}
	return nil
}

// graphNodes lists the nodes of a subgraph in a stable order: entry first,
// then block chains, then parameter nodes.
func graphNodes(g *depgraph.Graph) []*depgraph.Node {
	var nodes []*depgraph.Node
	if g.Entry() != nil {
		nodes = append(nodes, g.Entry())
	}
	for _, blk := range g.Blocks() {
		nodes = append(nodes, blk.Nodes()...)
	}
	if params := g.Parameters(); params != nil {
		params.Pairs(func(_ ssa.Value, pair depgraph.ParamPair) {
			nodes = append(nodes, pair.In, pair.Out)
		})
	}
	for _, blk := range g.Blocks() {
		for _, cs := range funcutil.SortedKeysBy(blk.CallSites(), (*depgraph.Node).ID) {
			if p := cs.Parameters(); p != nil {
				p.Pairs(func(_ ssa.Value, pair depgraph.ParamPair) {
					nodes = append(nodes, pair.In, pair.Out)
				})
			}
		}
	}
	return nodes
}

func nodeLabel(g *depgraph.Graph, n *depgraph.Node) string {
	if n == g.Entry() {
		return "ENTRY " + g.Function().Name()
	}
	return n.String()
}

func writeEdges(w io.Writer, g *depgraph.Graph, gi int, index map[*depgraph.Graph]int,
	opts PrintOption) error {

	emit := func(from, to string, attrs string) error {
		_, err := fmt.Fprintf(w, "\t%s -> %s %s\n", from, to, attrs)
		return err
	}

	for _, n := range graphNodes(g) {
		name := nodeName(gi, n)

		if opts&PrintCFG != 0 {
			if s := n.Successor(); s != nil {
				if err := emit(name, nodeName(gi, s), "[penwidth=2]"); err != nil {
					return err
				}
			}
			if opts&PrintRevCFG != 0 {
				if p := n.Predecessor(); p != nil {
					if err := emit(name, nodeName(gi, p), "[style=solid color=gray]"); err != nil {
						return err
					}
				}
			}
		}

		if opts&PrintCD != 0 {
			for _, m := range funcutil.SortedKeysBy(n.ControlDependencies(), (*depgraph.Node).ID) {
				if err := emit(name, nodeName(gi, m), "[style=dashed color=blue]"); err != nil {
					return err
				}
			}
		}

		if opts&PrintDD != 0 {
			for _, m := range funcutil.SortedKeysBy(n.DataDependencies(), (*depgraph.Node).ID) {
				if err := emit(name, nodeName(gi, m), "[style=dotted color=crimson]"); err != nil {
					return err
				}
			}
		}

		if opts&PrintCall != 0 {
			if callee := n.Callee(); callee != nil && callee.Entry() != nil {
				ci, ok := index[callee]
				if ok {
					if err := emit(name, nodeName(ci, callee.Entry()),
						"[style=bold color=purple label=\"call\"]"); err != nil {
						return err
					}
				}
			}
		}
	}

	if opts&PrintCFG != 0 {
		for _, blk := range g.Blocks() {
			if blk.LastNode() == nil {
				continue
			}
			for _, s := range blk.Successors() {
				if s.FirstNode() == nil {
					continue
				}
				if err := emit(nodeName(gi, blk.LastNode()), nodeName(gi, s.FirstNode()),
					"[style=solid]"); err != nil {
					return err
				}
			}
		}
	}

	if opts&PrintCD != 0 {
		for _, blk := range g.Blocks() {
			deps := blk.ControlDependencies()
			members := make([]*depgraph.BBlock, 0, len(deps))
			for m := range deps {
				members = append(members, m)
			}
			sort.Slice(members, func(i, j int) bool { return members[i].ID() < members[j].ID() })
			for _, m := range members {
				if blk.LastNode() == nil || m.FirstNode() == nil {
					continue
				}
				if err := emit(nodeName(gi, blk.LastNode()), nodeName(gi, m.FirstNode()),
					"[style=dashed color=darkgreen]"); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
