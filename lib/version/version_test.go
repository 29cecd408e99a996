// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	saved := GitCommit
	t.Cleanup(func() { GitCommit = saved })

	GitCommit = "abc1234"
	if got, want := Info(), Version+" (abc1234, "+BuildTime+")"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
	if !strings.HasPrefix(Full(), Info()+"\n  Go: ") {
		t.Errorf("Full() = %q", Full())
	}
	if Short() != "winpipe/"+Version {
		t.Errorf("Short() = %q", Short())
	}
}

func TestCommitFallback(t *testing.T) {
	saved := GitCommit
	t.Cleanup(func() { GitCommit = saved })

	GitCommit = "unknown"
	if Commit() == "" {
		t.Error("Commit() is empty without an injected commit")
	}
}
