// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers: fatal error
// reporting to stderr for errors that occur before the structured
// logger exists, and the exit that follows.
package process
