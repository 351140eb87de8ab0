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

// Package depgraph builds program dependence graphs over go/ssa: one
// subgraph per function with typed nodes chained inside basic blocks,
// control- and data-dependence edge sets, phony unified exit nodes and
// formal/actual parameter records, linked across functions at call sites.
//
// The package also provides the traversal primitives (breadth- and
// depth-first walks with run-id visitation) and the iterative data-flow
// framework the dependence analyses are built on, and consumes
// post-dominator trees to derive control-dependence edges from
// post-dominance frontiers.
package depgraph
