package version

import (
	"fmt"
	"strings"
	"sync"
)

// Name is the user agent name the application advertises to peers.
const Name = "spvd"

// validBuildCharacters are the characters allowed in appBuild. They are the
// semantic versioning build metadata characters minus the dot.
const validBuildCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// appBuild is defined as a variable so it can be overridden during the build
// process with '-ldflags "-X github.com/spvd/spvd/version.appBuild=foo"' if
// needed. Values with characters outside validBuildCharacters are ignored.
var appBuild string

var (
	version     string
	versionOnce sync.Once
)

// Version returns the application version as a properly formed string, e.g.
// "0.1.0" or "0.1.0-foo" when build metadata was set.
func Version() string {
	versionOnce.Do(func() {
		version = formatVersion(appMajor, appMinor, appPatch, appBuild)
	})
	return version
}

func formatVersion(major, minor, patch uint, build string) string {
	formatted := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if isValidBuild(build) {
		formatted = fmt.Sprintf("%s-%s", formatted, build)
	}
	return formatted
}

// isValidBuild reports whether build is non-empty and only made of
// validBuildCharacters.
func isValidBuild(build string) bool {
	if build == "" {
		return false
	}
	for _, r := range build {
		if !strings.ContainsRune(validBuildCharacters, r) {
			return false
		}
	}
	return true
}
