// Package migrations holds the Postgres schema for the postgres storage
// backend, embedded so the binary can migrate without a checkout.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
