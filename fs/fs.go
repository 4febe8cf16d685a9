// Package fs embeds files needed at runtime.
package fs

import "embed"

//go:embed migrations
var FS embed.FS
