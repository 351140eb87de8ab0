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

package analysis

import (
	"fmt"
	"time"

	"golang.org/x/tools/go/ssa"

	"github.com/awslabs/go-depgraph/analysis/config"
	"github.com/awslabs/go-depgraph/analysis/depgraph"
	"github.com/awslabs/go-depgraph/analysis/pss"
	"github.com/awslabs/go-depgraph/analysis/valueflow"
)

// Result carries everything the analyses computed over one program.
type Result struct {
	// Entry is the subgraph of the entry function.
	Entry *depgraph.Graph

	// Graphs is the whole constructed forest, keyed by function.
	Graphs map[*ssa.Function]*depgraph.Graph

	// PointsTo holds the solved points-to analysis.
	PointsTo *pss.PointsToAnalysis
}

// BuildAll builds the dependence graph forest of the program, attaches
// post-dominator-based control dependence, solves the selected points-to
// variant and adds data-dependence edges. A failed entry lookup or a failed
// entry-function build is an input error; per-callee failures only degrade
// the graph.
func BuildAll(prog *ssa.Program, cfg *config.Config, logger *config.LogGroup) (*Result, error) {
	builder := depgraph.NewBuilder(prog, logger)

	start := time.Now()
	entry, err := builder.BuildModule(cfg.Entry)
	if err != nil {
		return nil, fmt.Errorf("could not build dependence graph: %w", err)
	}
	logger.Infof("dependence graph forest built (%d functions, %.2f s)",
		len(builder.Graphs()), time.Since(start).Seconds())

	builder.ComputePostDominators(cfg.AddPostDomFrontiers)

	start = time.Now()
	pta, err := pss.NewPointsToAnalysis(prog, cfg.Entry, cfg.Pta, logger)
	if err != nil {
		return nil, fmt.Errorf("could not build pointer state subgraph: %w", err)
	}
	pta.Run()
	logger.Infof("points-to analysis done (%.2f s)", time.Since(start).Seconds())

	valueflow.NewAnalysis(pta, logger).Run(builder.Graphs())

	return &Result{
		Entry:    entry,
		Graphs:   builder.Graphs(),
		PointsTo: pta,
	}, nil
}
