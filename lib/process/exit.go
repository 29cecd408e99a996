// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError carries a specific exit code out of run(). Fatal exits with
// Code instead of 1 and prints nothing when Err is nil.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Fatal writes "error: err" to stderr and exits. Use it in main() for
// errors from run() where the structured logger may not be initialized.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err to w and returns the exit code for it.
func report(w io.Writer, err error) int {
	code := 1
	var exit *ExitError
	if errors.As(err, &exit) {
		code = exit.Code
		if exit.Err == nil {
			return code
		}
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return code
}
