// Package schemas provides access to embedded JSON Schemas.
package schemas

import (
	_ "embed"
)

// Embed the mod spec JSON Schema into the binary for validation and tooling.
// The schema defines the structure of seed specs accepted at workspace
// initialization and enables early validation before anything is persisted.
//
//go:embed modspec.schema.json
var modSpecSchema []byte

// ModSpecSchema returns the embedded mod spec JSON Schema as raw bytes.
func ModSpecSchema() []byte {
	return modSpecSchema
}
