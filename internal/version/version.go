// Package version carries the build identity stamped into binaries and
// reported in output headers.
package version

// App is the product name used in banners and capture metadata.
const App = "logic.report"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Banner returns the single-line "name version" identity that output
// formats emit at the top of a stream.
func Banner() string {
	return App + " " + Version
}
