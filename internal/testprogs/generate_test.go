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
	"testing"
)

func TestDiamondsCompile(t *testing.T) {
	src, err := Diamonds(3)
	if err != nil {
		t.Fatalf("generator failed: %s", err)
	}
	pkg, err := CompileSSA(src)
	if err != nil {
		t.Fatalf("generated program does not compile: %s\n%s", err, src)
	}
	fn := pkg.Func("main")
	if fn == nil {
		t.Fatalf("no main in generated program")
	}
	// three diamonds produce at least three branch points
	branches := 0
	for _, b := range fn.Blocks {
		if len(b.Succs) == 2 {
			branches++
		}
	}
	if branches < 3 {
		t.Errorf("generated CFG has %d branch points, want at least 3", branches)
	}
}

func TestLoopCompiles(t *testing.T) {
	src, err := Loop(2)
	if err != nil {
		t.Fatalf("generator failed: %s", err)
	}
	pkg, err := CompileSSA(src)
	if err != nil {
		t.Fatalf("generated program does not compile: %s\n%s", err, src)
	}
	fn := pkg.Func("main")

	// the loop produces a back edge: some block has a successor with a
	// smaller index
	backEdge := false
	for _, b := range fn.Blocks {
		for _, s := range b.Succs {
			if s.Index <= b.Index {
				backEdge = true
			}
		}
	}
	if !backEdge {
		t.Errorf("generated CFG has no back edge")
	}
}
