// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds operator response body reads: 16 MiB.
const MaxResponseSize int64 = 16 << 20

// DecodeResponse reads a JSON response body (up to MaxResponseSize
// bytes) and decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// ErrorBody reads an error response body for a diagnostic message.
// Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
