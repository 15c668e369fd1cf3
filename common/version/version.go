package version

import "fmt"

// VERSION and GITCOMMIT are injected at build time via -ldflags; both are
// empty in development builds.
var (
	VERSION   string
	GITCOMMIT string
)

// VersionToString renders "version - commit", or an empty string for a
// development build with nothing injected.
func VersionToString() string {
	if VERSION == "" && GITCOMMIT == "" {
		return ""
	}
	return fmt.Sprintf("%s - %s", VERSION, GITCOMMIT)
}
