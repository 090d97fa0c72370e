// Package migration holds the journal schema scripts. Scripts run in name
// order; the count of applied scripts is kept in pragma user_version.
package migration

import "embed"

//go:embed *.sql
var Scripts embed.FS
