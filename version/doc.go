// Package version reports the wirekit build.
//
// Version, commit and build time are set at link time, falling back to the
// VCS stamps the Go toolchain records:
//
//	go build -ldflags "-X github.com/kbukum/wirekit/version.Version=1.2.0" ./cmd/wirekit
package version
