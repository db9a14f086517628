// Package version carries the build version of viewkit binaries.
//
// Version and GitCommit are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/viewkit/version.Version=1.0.0" ./cmd/viewkit
//
// Unstamped fields fall back to the VCS settings the Go toolchain embeds.
package version
