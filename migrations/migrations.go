// Package migrations embeds the catalog schema migrations so the server and
// tests apply the same files without depending on the working directory.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql migration files.
//
//go:embed *.sql
var FS embed.FS
