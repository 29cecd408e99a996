// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/J-x-Z/winpipe/lib/netutil"
	"github.com/J-x-Z/winpipe/server"
)

// FetchSessions reads the live session list from a server's operator
// endpoint. address is host:port or a URL.
func FetchSessions(ctx context.Context, address string) ([]server.SessionInfo, error) {
	base := address
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+"/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("probe: fetching sessions: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe: sessions: HTTP %d: %s", response.StatusCode, netutil.ErrorBody(response.Body))
	}
	var sessions []server.SessionInfo
	if err := netutil.DecodeResponse(response.Body, &sessions); err != nil {
		return nil, fmt.Errorf("probe: sessions: %w", err)
	}
	return sessions, nil
}
