// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed.
//
//	frame := testutil.RequireReceive(t, frames, 5*time.Second, "hello frame")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before a value arrived: %s", describe(msgAndArgs))
		}
		return v
	case <-timer.C:
		t.Fatalf("no value after %v: %s", timeout, describe(msgAndArgs))
	}
	panic("unreachable")
}

// RequireSend sends v on ch, failing the test if the send does not
// complete within timeout.
func RequireSend[T any](t TB, ch chan<- T, v T, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- v:
	case <-timer.C:
		t.Fatalf("send blocked for %v: %s", timeout, describe(msgAndArgs))
	}
}

// RequireClosed waits for ch to be closed, or to deliver a value,
// within timeout.
//
//	testutil.RequireClosed(t, framer.Done(), 5*time.Second, "writer stopped")
func RequireClosed[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("channel still open after %v: %s", timeout, describe(msgAndArgs))
	}
}

// describe renders the optional message: a single value, or a format
// string and its arguments.
func describe(msgAndArgs []any) string {
	switch len(msgAndArgs) {
	case 0:
		return "(no message)"
	case 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
