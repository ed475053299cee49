package migrations

import "embed"

// FS contiene los scripts SQL versionados para goose.
//
//go:embed *.sql
var FS embed.FS
