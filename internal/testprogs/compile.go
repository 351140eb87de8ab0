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

package testprogs

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// CompileSSA parses source code, converts it to SSA form, and returns the
// SSA package. The build uses the naive form so that locals keep their
// allocations, loads and stores, which is what the pointer analyses consume.
// The filename for the source is always "test.go".
func CompileSSA(src string) (*ssa.Package, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("could not parse source: %w", err)
	}
	files := []*ast.File{f}

	pkg := types.NewPackage(f.Name.Name, f.Name.Name)
	ssaPkg, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()}, fset, pkg, files,
		ssa.NaiveForm|ssa.SanityCheckFunctions)
	if err != nil {
		return nil, fmt.Errorf("could not build SSA: %w", err)
	}
	return ssaPkg, nil
}
