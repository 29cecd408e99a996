// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the winpipe
// binaries.
//
// Three package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// When GitCommit is not injected, the VCS revision recorded by the Go
// toolchain is used instead, so `go install` builds still report a
// commit.
//
// [Info] is the --version output and [Short] is the server name sent in
// the hello frame.
package version
