// Package tenantschema embeds the data-plane schema applied to every
// dedicated tenant database.
package tenantschema

import "embed"

//go:embed *.sql
var FS embed.FS
