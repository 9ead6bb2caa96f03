// Package backend holds assets embedded into the server binary.
package backend

import _ "embed"

// License is the project license served at /api/server-info/license.
//
//go:embed LICENSE
var License string
