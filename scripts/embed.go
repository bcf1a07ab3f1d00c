// Package scripts embeds the Risor analyzer scripts shipped with lattice.
// Each analyze/<language>.risor file becomes a scripted analyzer registered
// alongside the built-ins when the Engine is created with WithScriptsFS.
package scripts

import "embed"

//go:embed analyze/*.risor
var FS embed.FS
