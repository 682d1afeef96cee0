// Package schemas holds the JSON Schemas for the documents leadform reads.
package schemas

import _ "embed"

// Rules is the schema for validation rule files.
//
//go:embed rules.schema.json
var Rules string
