// Package version holds build metadata set through -ldflags.
package version

var (
	Version = "0.1.0-dev"
	Commit  = "none"
)

func String() string {
	return Version + " (" + Commit + ")"
}
