// Package migrations holds the goose migrations of the user directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
