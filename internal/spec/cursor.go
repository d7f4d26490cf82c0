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
	"encoding/json"
	"fmt"

	"github.com/modforge/modforge/pkg/errors"
)

// cursor walks a document along path tokens. It holds a reference to the
// parent container of the current position so leaves can be set or removed
// in place. Integer tokens select array elements, string tokens object keys.
type cursor struct {
	doc    Document
	op     errors.PathOp
	path   string
	tokens []string
}

func newCursor(doc Document, op errors.PathOp, path string) (*cursor, error) {
	tokens, err := tokenize(path)
	if err != nil {
		return nil, err
	}
	return &cursor{doc: doc, op: op, path: path, tokens: tokens}, nil
}

func (c *cursor) pathErr(reason string, mismatch bool) error {
	return &errors.PathError{Op: c.op, Path: c.path, Reason: reason, TypeMismatch: mismatch}
}

// get resolves the full token path and returns the value at the leaf.
func (c *cursor) get() (any, error) {
	var node any = c.doc
	for _, token := range c.tokens {
		switch container := node.(type) {
		case map[string]any:
			child, ok := container[token]
			if !ok {
				return nil, c.pathErr(fmt.Sprintf("key %q does not exist", token), false)
			}
			node = child
		case []any:
			idx, ok := isIndex(token)
			if !ok {
				return nil, c.pathErr(fmt.Sprintf("token %q is not an array index", token), true)
			}
			if idx >= len(container) {
				return nil, c.pathErr(fmt.Sprintf("index %d out of range (len %d)", idx, len(container)), false)
			}
			node = container[idx]
		default:
			return nil, c.pathErr(fmt.Sprintf("cannot descend into scalar at %q", token), true)
		}
	}
	return node, nil
}

// setLeaf applies an add: intermediate containers are created as needed,
// choosing the container type by looking ahead one token (integer next means
// array). An add at an array index equal to the array length appends.
func (c *cursor) setLeaf(value any) error {
	return c.descendSet(c.doc, c.tokens, value)
}

// descendSet walks down one container level, recursing until the terminal
// token. parent is always a map or slice; slices are re-assigned through the
// containing level because append may reallocate.
func (c *cursor) descendSet(parent any, tokens []string, value any) error {
	token := tokens[0]
	terminal := len(tokens) == 1

	switch container := parent.(type) {
	case map[string]any:
		if terminal {
			container[token] = value
			return nil
		}
		child, ok := container[token]
		if !ok || child == nil {
			child = emptyContainer(tokens[1])
			container[token] = child
		}
		if arr, isArr := child.([]any); isArr {
			grown, err := c.setInArray(arr, tokens[1:], value)
			if err != nil {
				return err
			}
			container[token] = grown
			return nil
		}
		return c.descendSet(child, tokens[1:], value)
	case []any:
		// Arrays are handled by setInArray so growth propagates upward.
		return c.pathErr("internal: array reached without parent re-assignment", true)
	default:
		return c.pathErr(fmt.Sprintf("cannot descend into scalar at %q", token), true)
	}
}

// setInArray applies the remaining tokens inside an array and returns the
// possibly-grown slice.
func (c *cursor) setInArray(arr []any, tokens []string, value any) ([]any, error) {
	idx, ok := isIndex(tokens[0])
	if !ok {
		return nil, c.pathErr(fmt.Sprintf("token %q is not an array index", tokens[0]), true)
	}
	terminal := len(tokens) == 1

	switch {
	case idx < len(arr):
		if terminal {
			arr[idx] = value
			return arr, nil
		}
	case idx == len(arr):
		if terminal {
			return append(arr, value), nil
		}
		arr = append(arr, emptyContainer(tokens[1]))
	default:
		return nil, c.pathErr(fmt.Sprintf("index %d beyond array length %d", idx, len(arr)), false)
	}

	if nested, isArr := arr[idx].([]any); isArr {
		grown, err := c.setInArray(nested, tokens[1:], value)
		if err != nil {
			return nil, err
		}
		arr[idx] = grown
		return arr, nil
	}
	if err := c.descendSet(arr[idx], tokens[1:], value); err != nil {
		return nil, err
	}
	return arr, nil
}

// update overwrites the leaf; the terminal path must already exist.
func (c *cursor) update(value any) error {
	parent, last, err := c.resolveParent()
	if err != nil {
		return err
	}
	switch container := parent.(type) {
	case map[string]any:
		if _, ok := container[last]; !ok {
			return c.pathErr(fmt.Sprintf("key %q does not exist", last), false)
		}
		container[last] = value
		return nil
	case []any:
		idx, ok := isIndex(last)
		if !ok {
			return c.pathErr(fmt.Sprintf("token %q is not an array index", last), true)
		}
		if idx >= len(container) {
			return c.pathErr(fmt.Sprintf("index %d out of range (len %d)", idx, len(container)), false)
		}
		container[idx] = value
		return nil
	default:
		return c.pathErr("terminal parent is a scalar", true)
	}
}

// remove deletes the terminal key or array element. Array removal shifts
// subsequent indices; removal propagates the shortened slice upward.
func (c *cursor) remove() error {
	parent, last, err := c.resolveParent()
	if err != nil {
		return err
	}
	switch container := parent.(type) {
	case map[string]any:
		if _, ok := container[last]; !ok {
			return c.pathErr(fmt.Sprintf("key %q does not exist", last), false)
		}
		delete(container, last)
		return nil
	case []any:
		idx, ok := isIndex(last)
		if !ok {
			return c.pathErr(fmt.Sprintf("token %q is not an array index", last), true)
		}
		if idx >= len(container) {
			return c.pathErr(fmt.Sprintf("index %d out of range (len %d)", idx, len(container)), false)
		}
		shortened := append(container[:idx], container[idx+1:]...)
		return c.reassignParent(shortened)
	default:
		return c.pathErr("terminal parent is a scalar", true)
	}
}

// resolveParent walks to the container holding the terminal token.
func (c *cursor) resolveParent() (any, string, error) {
	var node any = c.doc
	for _, token := range c.tokens[:len(c.tokens)-1] {
		switch container := node.(type) {
		case map[string]any:
			child, ok := container[token]
			if !ok {
				return nil, "", c.pathErr(fmt.Sprintf("key %q does not exist", token), false)
			}
			node = child
		case []any:
			idx, ok := isIndex(token)
			if !ok {
				return nil, "", c.pathErr(fmt.Sprintf("token %q is not an array index", token), true)
			}
			if idx >= len(container) {
				return nil, "", c.pathErr(fmt.Sprintf("index %d out of range (len %d)", idx, len(container)), false)
			}
			node = container[idx]
		default:
			return nil, "", c.pathErr(fmt.Sprintf("cannot descend into scalar at %q", token), true)
		}
	}
	return node, c.tokens[len(c.tokens)-1], nil
}

// reassignParent writes a replacement slice back into the grandparent after
// an array removal shortened it.
func (c *cursor) reassignParent(replacement []any) error {
	if len(c.tokens) == 1 {
		return c.pathErr("document root is not an array", true)
	}
	var node any = c.doc
	for _, token := range c.tokens[:len(c.tokens)-2] {
		switch container := node.(type) {
		case map[string]any:
			node = container[token]
		case []any:
			idx, _ := isIndex(token)
			node = container[idx]
		}
	}
	key := c.tokens[len(c.tokens)-2]
	switch container := node.(type) {
	case map[string]any:
		container[key] = replacement
		return nil
	case []any:
		idx, ok := isIndex(key)
		if !ok || idx >= len(container) {
			return c.pathErr(fmt.Sprintf("cannot re-assign array at %q", key), true)
		}
		container[idx] = replacement
		return nil
	default:
		return c.pathErr("grandparent is a scalar", true)
	}
}

// emptyContainer chooses the container type for a created intermediate by
// looking at the next token: integer means array.
func emptyContainer(nextToken string) any {
	if _, ok := isIndex(nextToken); ok {
		return []any{}
	}
	return map[string]any{}
}

// normalizeValue converts an arbitrary delta value to generic JSON form
// (maps, slices, string/bool/float64/nil) so the document stays uniform.
func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case string, bool, float64:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding delta value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding delta value: %w", err)
	}
	return out, nil
}

// Get resolves a path against a document. Used by tests and by the enum
// coercion pass.
func Get(doc Document, path string) (any, error) {
	c, err := newCursor(doc, errors.PathOp("get"), path)
	if err != nil {
		return nil, err
	}
	return c.get()
}

// Apply applies a single delta to a copy of the document and returns the
// result. The input document is never mutated; a failed application leaves
// no partial state behind.
func Apply(doc Document, d Delta) (Document, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	out := CopyDocument(doc)

	value, err := normalizeValue(d.Value)
	if err != nil {
		return nil, err
	}
	value, err = coerceEnum(d.Path, value)
	if err != nil {
		return nil, err
	}

	c, err := newCursor(out, errors.PathOp(d.Operation), d.Path)
	if err != nil {
		return nil, err
	}

	switch d.Operation {
	case OpAdd:
		err = c.setLeaf(value)
	case OpUpdate:
		err = c.update(value)
	case OpRemove:
		err = c.remove()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
