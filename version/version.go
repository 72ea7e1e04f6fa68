package version

// set at build time via -ldflags
var version = "development"

// DevlinkVersion returns the version the binary was built with.
func DevlinkVersion() string {
	return version
}
