// Package migrations carries the goose SQL migrations so the migrate
// binary works without the source tree on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
