package util

import (
	"strings"
)

// FilterOSArgs returns args with masked values for all flags not on whitelist.
// Flag values such as secrets and connection strings are replaced with
// asterisks so the argument list can be logged at startup.
func FilterOSArgs(args []string, whitelist []string) []string {
	safe := make(map[string]struct{}, len(whitelist))
	for _, name := range whitelist {
		safe[name] = struct{}{}
	}
	sanitized := make([]string, len(args))
	maskNext := false
	for i, arg := range args {
		if strings.HasPrefix(arg, "--") {
			_, ok := safe[strings.TrimPrefix(strings.ToLower(arg), "--")]
			maskNext = !ok
			sanitized[i] = arg
			continue
		}
		if maskNext {
			sanitized[i] = strings.Repeat("*", len(arg))
			maskNext = false
		} else {
			sanitized[i] = arg
		}
	}
	return sanitized
}
