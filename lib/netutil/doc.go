// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies connection errors and reads operator HTTP
// responses.
//
// [IsExpectedCloseError] separates normal teardown (EOF, a closed
// socket, a peer reset) from failures worth logging. [IsTimeout]
// recognizes a read or write deadline expiring, which the server uses
// to enforce its idle timeout.
//
// [DecodeResponse] and [ErrorBody] bound JSON response reads at
// [MaxResponseSize]; winpipe-probe uses them to fetch /sessions from a
// server's operator endpoint.
package netutil
