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

// Command depgraph builds the dependence graph of a Go module, runs a
// points-to analysis over it, and dumps the result.
package main

import (
	"fmt"
	"os"

	"github.com/awslabs/go-depgraph/analysis"
	"github.com/awslabs/go-depgraph/analysis/config"
	"github.com/awslabs/go-depgraph/analysis/rendering"
	"github.com/awslabs/go-depgraph/internal/formatutil"
	"github.com/awslabs/go-depgraph/internal/graphutil"
)

const usage = ` Build and dump the dependence graph of a module.
Usage:
    depgraph [options] <package path>
Options:
    -no-control     do not print control-dependence edges
    -no-data        do not print data-dependence edges
    -cfg            print control-flow edges
    -cfgall         print control-flow edges in both directions
    -call           print call edges between subgraphs
    -pd             reserved
    -pta fs|fi      dump the pointer state subgraph of the given variant
    -dot            GraphViz output
    -config <file>  load options from a YAML config file
    -v              verbose output
Any other argument is taken as the package path.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

//gocyclo:ignore
func run(args []string) int {
	opts := rendering.PrintCFG | rendering.PrintCD | rendering.PrintDD
	cfg := config.NewDefault()
	module := ""
	pssMode := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-no-control":
			opts &^= rendering.PrintCD
		case "-no-data":
			opts &^= rendering.PrintDD
		case "-cfg":
			opts |= rendering.PrintCFG
		case "-cfgall":
			opts |= rendering.PrintCFG | rendering.PrintRevCFG
		case "-call":
			opts |= rendering.PrintCall
		case "-pd":
			fmt.Fprintln(os.Stderr, "Not implemented now")
		case "-pta":
			pssMode = true
			if i+1 < len(args) {
				i++
				cfg.Pta = config.PtaVariant(args[i])
			}
		case "-dot":
			cfg.DumpDot = true
		case "-v":
			cfg.Verbose = true
			cfg.LogLevel = int(config.DebugLevel)
		case "-config":
			if i+1 < len(args) {
				i++
				loaded, err := config.Load(args[i])
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s\n", err)
					return 1
				}
				cfg = loaded
			}
		default:
			module = args[i]
		}
	}

	if module == "" {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 1
	}
	logger := config.NewLogGroup(cfg)

	fmt.Fprintln(os.Stderr, formatutil.Faint("Reading sources"))

	program, err := analysis.LoadProgram(nil, 0, []string{module})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load program: %s\n", err)
		return 1
	}

	result, err := analysis.BuildAll(program.Program, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", formatutil.Red(err.Error()))
		return 1
	}

	if cfg.Verbose {
		reportRecursion(result, logger)
	}

	if pssMode {
		nodes := result.PointsTo.Nodes()
		if cfg.DumpDot {
			err = rendering.WritePSSDot(os.Stdout, nodes)
		} else {
			err = rendering.WritePSS(os.Stdout, nodes, cfg.Verbose)
		}
	} else {
		err = rendering.WriteGraphviz(os.Stdout, result.Graphs, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not dump graph: %s\n", err)
		return 1
	}
	return 0
}

// reportRecursion logs the recursion groups of the program, found as the
// elementary cycles of the subgraph call graph.
func reportRecursion(result *analysis.Result, logger *config.LogGroup) {
	cg := graphutil.NewCallGraphIterator(result.Graphs)

	for _, id := range graphutil.FindSelfLoops(cg) {
		logger.Infof("self-recursive function: %s", cg.IDMap[id])
	}

	for _, cycle := range graphutil.FindAllElementaryCycles(cg) {
		names := make([]string, len(cycle))
		for i, id := range cycle {
			names[i] = cg.IDMap[id].String()
		}
		logger.Infof("recursive call cycle: %v", names)
	}
}
