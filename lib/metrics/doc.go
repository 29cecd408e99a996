// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines the Prometheus collectors the server exports.
//
// [New] registers every collector with the given registerer. A nil
// *Metrics is valid and records nothing, so components that were built
// without metrics need no nil checks at their call sites.
package metrics
