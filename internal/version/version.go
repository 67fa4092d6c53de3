// Package version holds build metadata injected via -ldflags.
package version

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the human-readable build description.
func String() string {
	return Version + " (" + GitSHA + ", " + BuildTime + ")"
}
