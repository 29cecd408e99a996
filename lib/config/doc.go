// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the winpipe server configuration.
//
// The file is named by the --config flag or the WINPIPE_CONFIG
// environment variable (via [Load]). Both are optional: [Default]
// supplies every value, and a file is decoded over the defaults so it
// only needs the fields it changes. YAML is the native format; paths
// ending in .json or .jsonc are read as JSON with comments and trailing
// commas. Unknown keys are errors.
//
// After decoding, ${VAR} and ${VAR:-default} are expanded in the
// address fields (listen, metrics_listen) so a single file can serve
// several hosts. No other environment variables override values.
//
// [Config.Validate] reports every problem at once, joined with
// errors.Join, so an operator can fix a file in one pass.
//
// This package depends only on lib/compress, for codec names.
package config
