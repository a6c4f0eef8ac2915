package core

import "fmt"

// Build information, injected with ldflags:
//
//	go build -ldflags "-X upscale_backend/core.Version=$(git describe --tags --always) \
//	    -X upscale_backend/core.GitCommit=$(git rev-parse --short HEAD) \
//	    -X upscale_backend/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the application version string.
func GetVersion() string {
	return Version
}

// GetVersionInfo returns the line printed by -version, e.g.
// "guided-upscale v1.2.0 (built 2024-01-15T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return fmt.Sprintf("guided-upscale %s (built %s, commit %s)", Version, BuildTime, GitCommit)
}

// BuildLdflags returns the -ldflags value that injects the given build
// information. Empty values are left out.
func BuildLdflags(version, buildTime, gitCommit string) string {
	var flags string
	for _, kv := range [][2]string{
		{"Version", version},
		{"BuildTime", buildTime},
		{"GitCommit", gitCommit},
	} {
		if kv[1] == "" {
			continue
		}
		if flags != "" {
			flags += " "
		}
		flags += "-X upscale_backend/core." + kv[0] + "=" + kv[1]
	}
	return flags
}
