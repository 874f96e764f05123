// Package migrations embeds SQL migration files.
package migrations

import "embed"

// RegistryFS contains the client-registry migrations.
//
//go:embed registry/*.sql
var RegistryFS embed.FS

// RegistryDir is the directory within RegistryFS where migrations live.
const RegistryDir = "registry"
