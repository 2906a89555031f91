// Package version exposes the mcpml build version.
package version

// version is set at build time via -ldflags.
var version = "dev"

// GetVersion returns the current version of mcpml.
func GetVersion() string {
	return version
}
