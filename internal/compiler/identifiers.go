// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compiler

import (
	"strings"
	"unicode"
)

// DeriveModID derives a registry namespace from a mod name: lowercase,
// runs of non-[a-z0-9_] replaced with a single underscore, repeats
// collapsed, leading and trailing underscores stripped.
func DeriveModID(modName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(modName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	collapsed := collapseUnderscores(b.String())
	return strings.Trim(collapsed, "_")
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	prev := false
	for _, r := range s {
		if r == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeCase converts a display name to a snake_case registry name.
func SnakeCase(name string) string {
	return DeriveModID(name)
}

// PascalCase converts a snake_case or free-form name to PascalCase.
func PascalCase(name string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ScreamingSnakeCase converts a name to a SCREAMING_SNAKE_CASE constant.
func ScreamingSnakeCase(name string) string {
	return strings.ToUpper(SnakeCase(name))
}
