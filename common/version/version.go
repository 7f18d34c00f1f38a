// Package version holds build metadata injected with -ldflags "-X".
package version

// Set at link time.
var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the one-line banner printed by "sevasakha version" and "serve".
func Info() string {
	return "sevasakha " + Version + " (" + GitCommit + ") built at " + BuildTime
}

// UserAgent identifies outbound API calls.
func UserAgent() string {
	return "sevasakha/" + Version
}
