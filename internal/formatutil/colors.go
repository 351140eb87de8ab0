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

// Package formatutil provides ANSI formatting of terminal diagnostics.
package formatutil

import (
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	escape = "\033["
	reset  = escape + "0m"
)

// OnTerminal reports whether stderr is attached to a terminal. Colored
// output is suppressed when it is not.
func OnTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func wrap(code string, s string) string {
	if !OnTerminal() {
		return s
	}
	return escape + code + s + reset
}

// Faint returns s in faint text
func Faint(s string) string { return wrap("2m", s) }

// Red returns s in red
func Red(s string) string { return wrap("31m", s) }

// Yellow returns s in yellow
func Yellow(s string) string { return wrap("33m", s) }

// Green returns s in green
func Green(s string) string { return wrap("32m", s) }

// Sanitize removes control characters that could scramble terminal output
// when a node label is echoed in a diagnostic.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\033' {
			return ' '
		}
		return r
	}, s)
}
