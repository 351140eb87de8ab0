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

// Package graphutil adapts the subgraph call forest to generic graph
// libraries: gonum's graph.Graph and the yourbasic/graph iterator used by
// the cycle finder.
package graphutil

import (
	"sort"

	"golang.org/x/tools/go/ssa"
	"gonum.org/v1/gonum/graph"

	"github.com/awslabs/go-depgraph/analysis/depgraph"
)

// CallGraph is an abstraction over the call links between constructed
// subgraphs, to work with existing graph libraries. It implements the
// methods to satisfy yourbasic's graph.Iterator and Gonum's graph.Graph.
type CallGraph struct {
	// The order of the graph
	order int

	// IDMap maps from node IDs to CNodes
	IDMap map[int64]CNode

	// Keys are all the node IDs
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a call edge
	// between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool
}

// NewCallGraphIterator returns a call graph over the forest where node ids
// follow the function-name order, so iteration is stable.
func NewCallGraphIterator(graphs map[*ssa.Function]*depgraph.Graph) CallGraph {
	fns := make([]*ssa.Function, 0, len(graphs))
	for fn := range graphs {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })

	n := len(fns)
	idmap := make(map[int64]CNode, n)
	ids := make(map[*depgraph.Graph]int64, n)
	edges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, n)

	for i, fn := range fns {
		id := int64(i)
		keys[i] = id
		idmap[id] = CNode{Graph: graphs[fn], id: id}
		ids[graphs[fn]] = id
		edges[id] = map[int64]bool{}
	}

	for i, fn := range fns {
		g := graphs[fn]
		for _, blk := range g.Blocks() {
			for cs := range blk.CallSites() {
				if callee := cs.Callee(); callee != nil {
					if cid, ok := ids[callee]; ok {
						edges[int64(i)][cid] = true
					}
				}
			}
		}
	}

	return CallGraph{
		order: n,
		IDMap: idmap,
		Edges: edges,
		Keys:  keys,
	}
}

// Subgraph returns a new graph that is the original graph with only the
// nodes in include. Only the edges with both endpoints in include are kept.
// The subgraph's order and IDMap stay those of the original, so node indices
// are consistent across subgraphs.
func Subgraph(original CallGraph, include []int64) CallGraph {
	idmap := make(map[int64]CNode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}

	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
			}
		}
	}

	return CallGraph{
		order: original.Order(),
		IDMap: original.IDMap,
		Edges: edges,
		Keys:  keys,
	}
}

// Order implements the order of the graph.Iterator interface for the CallGraph
func (c CallGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the CallGraph
func (c CallGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c CallGraph) Node(v int64) graph.Node {
	return c.IDMap[v]
}

// Nodes returns the set of nodes in the graph
func (c CallGraph) Nodes() graph.Nodes {
	keys := make([]int64, len(c.IDMap))

	i := 0
	for k := range c.IDMap {
		keys[i] = k
		i++
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   0,
	}
}

// From returns the set of nodes reachable from the id
func (c CallGraph) From(id int64) graph.Nodes {
	var keys []int64

	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   0,
	}
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c CallGraph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c CallGraph) Edge(uid, vid int64) graph.Edge {
	ue := c.Edges[uid]
	if ue != nil {
		if ue[vid] {
			return CEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
		}
	}
	return nil
}

// *************** Nodes implementation **********************

// CNode is a wrapper around a subgraph that implements the graph.Node
// interface
type CNode struct {
	Graph *depgraph.Graph
	id    int64
}

// ID returns the id of the node
func (n CNode) ID() int64 {
	return n.id
}

func (n CNode) String() string {
	if n.Graph == nil || n.Graph.Function() == nil {
		return ""
	}
	return n.Graph.Function().String()
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]CNode

	// ids is the set of node ids in the iterator
	// invariant: len(ids) = len(nodes)
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: 0 <= cur < len(nodes)
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the length of the node set
func (ns *NodeSet) Len() int {
	return len(ns.ids)
}

// Reset resets the id of the current node in the set
func (ns *NodeSet) Reset() {
	ns.cur = 0
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// CEdge implements the graph.Edge interface
type CEdge struct {
	from CNode
	to   CNode
}

// From returns the origin of the edge
func (e CEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e CEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e CEdge) ReversedEdge() graph.Edge {
	return CEdge{from: e.to, to: e.from}
}
