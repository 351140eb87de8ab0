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

package rendering

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/awslabs/go-depgraph/analysis/pss"
)

// pssName crops and escapes a PSS node name for text output.
func pssName(n *pss.Node) string {
	s := n.String()
	if len(s) > maxLabel {
		s = s[:maxLabel] + " ..."
	}
	return strings.ReplaceAll(s, "\"", "\\\"")
}

// WritePSS prints one line per PSS node followed by its points-to pairs.
// With verbose set, the per-node memory objects (flow-insensitive) or memory
// maps (flow-sensitive) follow.
func WritePSS(w io.Writer, nodes []*pss.Node, verbose bool) error {
	for _, n := range nodes {
		if _, err := fmt.Fprintf(w, "NODE: %s", pssName(n)); err != nil {
			return fmt.Errorf("error while writing in file: %w", err)
		}

		if n.Size() > 0 || n.IsHeap() || n.IsZeroInitialized() {
			fmt.Fprintf(w, " [size: %d, heap: %v, zeroed: %v]",
				n.Size(), n.IsHeap(), n.IsZeroInitialized())
		}

		if len(n.PointsTo()) == 0 {
			fmt.Fprintf(w, " -- no points-to\n")
		} else {
			fmt.Fprintln(w)
			for _, p := range n.PointsTo().Sorted() {
				if p.Offset.IsUnknown() {
					fmt.Fprintf(w, "    -> %s + UNKNOWN_OFFSET\n", pssName(p.Target))
				} else {
					fmt.Fprintf(w, "    -> %s + %d\n", pssName(p.Target), uint64(p.Offset))
				}
			}
		}

		if verbose {
			writePSSData(w, n, false)
		}
	}
	return nil
}

// writePSSData dumps the per-analysis slot: a memory object or a memory map.
func writePSSData(w io.Writer, n *pss.Node, dot bool) {
	switch data := n.Data().(type) {
	case *pss.MemoryObject:
		fmt.Fprintf(w, "    Memory: ---\n")
		writeMemoryObject(w, data, 6)
		fmt.Fprintf(w, "    -----------\n")

	case pss.MemoryMap:
		fmt.Fprintf(w, "    Memory map: ---\n")
		keys := make([]pss.Pointer, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].Target.ID() != keys[j].Target.ID() {
				return keys[i].Target.ID() < keys[j].Target.ID()
			}
			return keys[i].Offset < keys[j].Offset
		})
		for _, k := range keys {
			fmt.Fprintf(w, "      [%s + %s]:\n", pssName(k.Target), k.Offset)
			writeMemoryObject(w, data[k], 10)
		}
		fmt.Fprintf(w, "    ----------------\n")
	}
}

func writeMemoryObject(w io.Writer, mo *pss.MemoryObject, indent int) {
	contents := mo.Contents()
	offsets := make([]pss.Offset, 0, len(contents))
	for off := range contents {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	pad := strings.Repeat(" ", indent)
	for _, off := range offsets {
		for _, p := range contents[off].Sorted() {
			fmt.Fprintf(w, "%s[%s] -> %s + %s\n", pad, off, pssName(p.Target), p.Offset)
		}
	}
}

// WritePSSDot renders the pointer state subgraph in DOT. Store nodes use the
// cds shape, nodes with empty points-to are highlighted.
func WritePSSDot(w io.Writer, nodes []*pss.Node) error {
	if _, err := fmt.Fprintf(w, "digraph \"Pointer State Subgraph\" {\n"); err != nil {
		return fmt.Errorf("error while writing in file: %w", err)
	}

	for _, n := range nodes {
		var label strings.Builder
		label.WriteString(pssName(n))
		if n.Size() > 0 || n.IsHeap() || n.IsZeroInitialized() {
			fmt.Fprintf(&label, "\\n[size: %d, heap: %v, zeroed: %v]",
				n.Size(), n.IsHeap(), n.IsZeroInitialized())
		}
		for _, p := range n.PointsTo().Sorted() {
			fmt.Fprintf(&label, "\\n    -> %s + %s", pssName(p.Target), p.Offset)
		}

		attrs := " shape=box"
		if n.Kind() == pss.Store {
			attrs = " shape=cds"
		} else if len(n.PointsTo()) == 0 {
			attrs = " shape=box style=filled fillcolor=red"
		}

		if _, err := fmt.Fprintf(w, "\tNODE%d [label=\"%s\"%s]\n", n.ID(), label.String(), attrs); err != nil {
			return err
		}
	}

	for _, n := range nodes {
		for _, s := range n.Successors() {
			if _, err := fmt.Fprintf(w, "\tNODE%d -> NODE%d [penwidth=2]\n", n.ID(), s.ID()); err != nil {
				return err
			}
		}
	}

	if _, err := fmt.Fprintf(w, "}\n"); err != nil {
		return fmt.Errorf("error while writing in file: %w", err)
	}
	return nil
}
