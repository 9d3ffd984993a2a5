// Package core holds binary-wide identity data set at build time
package core

import "fmt"

// Banner is the ASCII art printed on startup
const Banner = `
    ____
   / __/_________
  / /_/ ___/ ___/
 / __/ /__(__  )
/_/  \___/____/
`

// Vars set at build time via -ldflags
var (
	Version   = "0.1.0"
	GitCommit = ""
	IsRelease = false
)

// VersionString returns the version string
func VersionString() string {
	versionStr := fmt.Sprintf("fcs v%s", Version)
	if GitCommit != "" {
		versionStr += " git commit: " + GitCommit
	}
	if IsRelease {
		versionStr += " release build"
	} else {
		versionStr += " pre-release build"
	}
	return versionStr
}
