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

package spec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/modforge/modforge/pkg/errors"
)

// Operation is the kind of edit a delta performs.
type Operation string

const (
	// OpAdd inserts a value, creating intermediate containers as needed.
	// At an array index equal to the array length it appends.
	OpAdd Operation = "add"

	// OpUpdate overwrites an existing scalar; the terminal path must exist.
	OpUpdate Operation = "update"

	// OpRemove deletes the terminal key or array element. Subsequent array
	// indices shift; pending index-addressed deltas produced against the
	// pre-removal view reference different elements afterwards.
	OpRemove Operation = "remove"
)

// Delta is a typed, path-addressed edit to a mod spec.
type Delta struct {
	Operation Operation `json:"operation"`
	Path      string    `json:"path"`
	Value     any       `json:"value,omitempty"`
}

// Validate checks the delta's shape before application.
func (d Delta) Validate() error {
	switch d.Operation {
	case OpAdd, OpUpdate, OpRemove:
	default:
		return &errors.ValidationError{
			Field:      "operation",
			Message:    fmt.Sprintf("unknown operation %q", d.Operation),
			Suggestion: "use one of add, update, remove",
		}
	}
	if d.Path == "" {
		return &errors.ValidationError{Field: "path", Message: "path is required"}
	}
	if d.Operation == OpRemove && d.Value != nil {
		return &errors.ValidationError{Field: "value", Message: "remove deltas carry no value"}
	}
	return nil
}

// tokenize splits a dotted path into tokens. Bracketed integer indices are
// rewritten to dotted form first: "items[0].rarity" -> ["items", "0", "rarity"].
func tokenize(path string) ([]string, error) {
	replaced := strings.NewReplacer("[", ".", "]", "").Replace(path)
	parts := strings.Split(replaced, ".")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		tokens = append(tokens, p)
	}
	if len(tokens) == 0 {
		return nil, &errors.ValidationError{Field: "path", Message: fmt.Sprintf("empty path %q", path)}
	}
	return tokens, nil
}

// isIndex reports whether a token selects an array index, returning the index.
func isIndex(token string) (int, bool) {
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// BatchDelta is the older batch edit schema: whole elements added or removed
// without paths. Accepted as sugar and translated to path deltas before
// entering the store.
type BatchDelta struct {
	AddItems     []ItemSpec  `json:"add_items,omitempty"`
	AddBlocks    []BlockSpec `json:"add_blocks,omitempty"`
	AddTools     []ToolSpec  `json:"add_tools,omitempty"`
	RemoveItems  []int       `json:"remove_items,omitempty"`
	RemoveBlocks []int       `json:"remove_blocks,omitempty"`
	RemoveTools  []int       `json:"remove_tools,omitempty"`
}

// Expand translates a batch delta to an equivalent sequence of path deltas
// against the given current spec. Adds append at the current array lengths;
// removes are emitted highest-index-first so earlier removals do not shift
// the indices of later ones.
func (b BatchDelta) Expand(current *ModSpec) ([]Delta, error) {
	var deltas []Delta

	appendAll := func(field string, base int, values []any) {
		for i, v := range values {
			deltas = append(deltas, Delta{
				Operation: OpAdd,
				Path:      fmt.Sprintf("%s[%d]", field, base+i),
				Value:     v,
			})
		}
	}

	items := make([]any, len(b.AddItems))
	for i, v := range b.AddItems {
		items[i] = v
	}
	blocks := make([]any, len(b.AddBlocks))
	for i, v := range b.AddBlocks {
		blocks[i] = v
	}
	tools := make([]any, len(b.AddTools))
	for i, v := range b.AddTools {
		tools[i] = v
	}

	appendAll("items", len(current.Items), items)
	appendAll("blocks", len(current.Blocks), blocks)
	appendAll("tools", len(current.Tools), tools)

	removeAll := func(field string, length int, indices []int) error {
		sorted := append([]int(nil), indices...)
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
		for _, idx := range sorted {
			if idx < 0 || idx >= length {
				return &errors.ValidationError{
					Field:   field,
					Message: fmt.Sprintf("remove index %d out of range (len %d)", idx, length),
				}
			}
			deltas = append(deltas, Delta{
				Operation: OpRemove,
				Path:      fmt.Sprintf("%s[%d]", field, idx),
			})
		}
		return nil
	}

	if err := removeAll("items", len(current.Items), b.RemoveItems); err != nil {
		return nil, err
	}
	if err := removeAll("blocks", len(current.Blocks), b.RemoveBlocks); err != nil {
		return nil, err
	}
	if err := removeAll("tools", len(current.Tools), b.RemoveTools); err != nil {
		return nil, err
	}

	return deltas, nil
}
