// Package migrations embeds the SQL schema so integration tests and tooling
// can apply it without a filesystem checkout.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
