// Package migrations embeds the database schema so tooling and the
// integration test harness apply the same DDL.
package migrations

import _ "embed"

//go:embed schema.sql
var Schema string
