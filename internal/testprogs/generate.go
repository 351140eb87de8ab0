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

// Package testprogs generates synthetic Go programs exercising specific CFG
// shapes (branch diamonds, loops) for the analysis tests. Programs are built
// as ASTs and rendered to source.
package testprogs

import (
	"bytes"
	"fmt"
	"go/token"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
)

func ident(name string) *dst.Ident { return dst.NewIdent(name) }

func intLit(v int) *dst.BasicLit {
	return &dst.BasicLit{Kind: token.INT, Value: fmt.Sprintf("%d", v)}
}

func define(name string, rhs dst.Expr) *dst.AssignStmt {
	return &dst.AssignStmt{
		Lhs: []dst.Expr{ident(name)},
		Tok: token.DEFINE,
		Rhs: []dst.Expr{rhs},
	}
}

func assign(lhs dst.Expr, rhs dst.Expr) *dst.AssignStmt {
	return &dst.AssignStmt{
		Lhs: []dst.Expr{lhs},
		Tok: token.ASSIGN,
		Rhs: []dst.Expr{rhs},
	}
}

func addrOf(name string) *dst.UnaryExpr {
	return &dst.UnaryExpr{Op: token.AND, X: ident(name)}
}

func deref(name string) *dst.StarExpr {
	return &dst.StarExpr{X: ident(name)}
}

func render(file *dst.File) (string, error) {
	var buf bytes.Buffer
	if err := decorator.Fprint(&buf, file); err != nil {
		return "", fmt.Errorf("could not render generated program: %w", err)
	}
	return buf.String(), nil
}

func fnDecl(name string, body []dst.Stmt) *dst.FuncDecl {
	return &dst.FuncDecl{
		Name: ident(name),
		Type: &dst.FuncType{Params: &dst.FieldList{}},
		Body: &dst.BlockStmt{List: body},
	}
}

// Diamonds returns a package with a main function containing n if/else
// diamonds, each redirecting a pointer to one of two locals, followed by a
// read through the pointer.
func Diamonds(n int) (string, error) {
	body := []dst.Stmt{
		define("a", intLit(0)),
		define("b", intLit(1)),
		define("p", addrOf("a")),
	}

	for i := 0; i < n; i++ {
		cond := &dst.BinaryExpr{X: ident("a"), Op: token.GTR, Y: intLit(i)}
		body = append(body, &dst.IfStmt{
			Cond: cond,
			Body: &dst.BlockStmt{List: []dst.Stmt{assign(ident("p"), addrOf("b"))}},
			Else: &dst.BlockStmt{List: []dst.Stmt{assign(ident("p"), addrOf("a"))}},
		})
	}

	body = append(body,
		assign(ident("a"), deref("p")),
		assign(ident("_"), ident("b")),
	)

	file := &dst.File{
		Name:  ident("main"),
		Decls: []dst.Decl{fnDecl("main", body)},
	}
	return render(file)
}

// Loop returns a package with a main function whose body loops n times,
// writing through a pointer on every iteration. The CFG has a back edge, so
// traversals and fixpoint drivers get exercised on a cycle.
func Loop(n int) (string, error) {
	loopBody := []dst.Stmt{
		assign(deref("p"), ident("i")),
	}

	body := []dst.Stmt{
		define("x", intLit(0)),
		define("p", addrOf("x")),
		&dst.ForStmt{
			Init: define("i", intLit(0)),
			Cond: &dst.BinaryExpr{X: ident("i"), Op: token.LSS, Y: intLit(n)},
			Post: &dst.IncDecStmt{X: ident("i"), Tok: token.INC},
			Body: &dst.BlockStmt{List: loopBody},
		},
		assign(ident("_"), deref("p")),
	}

	file := &dst.File{
		Name:  ident("main"),
		Decls: []dst.Decl{fnDecl("main", body)},
	}
	return render(file)
}
