// Package version records the build version reported by the service.
package version

// Version is the semantic version of the uwbv2 service. Overridden at build
// time with -ldflags "-X github.com/mapadevsports/uwbv2/internal/version.Version=...".
var Version = "0.2.0-dev"
