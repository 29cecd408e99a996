// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package server_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/J-x-Z/winpipe/lib/config"
	"github.com/J-x-Z/winpipe/lib/metrics"
	"github.com/J-x-Z/winpipe/lib/testutil"
	"github.com/J-x-Z/winpipe/probe"
	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/server"
	"github.com/J-x-Z/winpipe/transport"
	"github.com/J-x-Z/winpipe/wire"
)

const testTimeout = 10 * time.Second

// startServer runs a server on a loopback port with a private metrics
// registry. configure may adjust the defaults before Start.
func startServer(t *testing.T, configure func(*config.Config)) (*server.Server, *prometheus.Registry) {
	t.Helper()
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.MetricsListen = "127.0.0.1:0"
	if configure != nil {
		configure(cfg)
	}

	registry := prometheus.NewRegistry()
	srv := &server.Server{
		Config:   cfg,
		Metrics:  metrics.New(registry),
		Gatherer: registry,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, registry
}

func dial(t *testing.T, srv *server.Server) *probe.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	client, err := probe.Dial(ctx, srv.Addr().String(), probe.Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestProbeSession(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t, nil)
	client := dial(t, srv)

	hello := client.Hello()
	if hello.Protocol != transport.ProtocolVersion || hello.Session == "" {
		t.Fatalf("hello = %+v", hello)
	}
	if hello.Codec != "lz4" {
		t.Errorf("hello codec = %q, want lz4", hello.Codec)
	}

	report, err := probe.Run(testContext(t), client, probe.Script{Width: 64, Height: 32})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var names []string
	for _, global := range report.Globals {
		names = append(names, global.Interface)
	}
	want := "wl_compositor,wl_shm,wl_output,wl_seat,xdg_wm_base"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("globals = %s, want %s", got, want)
	}

	if len(report.Records) != 2 {
		t.Fatalf("got %d delta records, want 2: %+v", len(report.Records), report.Records)
	}
	first, second := report.Records[0], report.Records[1]
	if !first.Full || first.From != 0 || first.To != 1 || first.Regions != 1 {
		t.Errorf("first record = %+v, want a full 0→1 record with one region", first)
	}
	if first.RawBytes != 64*32*4 {
		t.Errorf("first record raw bytes = %d, want %d", first.RawBytes, 64*32*4)
	}
	if second.Full || second.From != 1 || second.To != 2 || second.Regions != 1 {
		t.Errorf("second record = %+v, want a partial 1→2 record with one region", second)
	}
	if second.RawBytes != 64*4*4 {
		t.Errorf("second record raw bytes = %d, want the repainted band of %d", second.RawBytes, 64*4*4)
	}
	if !report.Verified {
		t.Error("reconstructed buffer does not match the painted pixels")
	}
}

func TestRecordLargerThanFrameLimit(t *testing.T) {
	t.Parallel()
	srv, registry := startServer(t, func(cfg *config.Config) {
		cfg.MaxFrameSize = 4096
		cfg.Compression.Codec = "none"
		cfg.Compression.BlockSize = 1024
	})
	client := dial(t, srv)

	// The full record of a 64x32 buffer carries 8 KiB of raw pixels,
	// twice the frame limit.
	report, err := probe.Run(testContext(t), client, probe.Script{Width: 64, Height: 32})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Records) != 2 {
		t.Fatalf("got %d delta records, want 2: %+v", len(report.Records), report.Records)
	}
	first := report.Records[0]
	if !first.Full || first.To != 1 || first.EncodedBytes <= 4096 {
		t.Errorf("first record = %+v, want a full record larger than one frame", first)
	}
	if report.Records[1].From != 1 || report.Records[1].To != 2 {
		t.Errorf("second record = %+v, want 1→2 with no gap", report.Records[1])
	}
	if !report.Verified {
		t.Error("reconstructed buffer does not match the painted pixels")
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, family := range families {
		if family.GetName() == "winpipe_delta_records_total" {
			if got := family.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Errorf("winpipe_delta_records_total = %v, want 2", got)
			}
		}
	}
}

func TestDisplayErrorClosesSession(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t, nil)
	client := dial(t, srv)

	if err := client.Send(protocol.DisplayID, 7); err != nil {
		t.Fatal(err)
	}
	events, err := client.Drain(testContext(t))
	if !errors.Is(err, probe.ErrSessionClosed) {
		t.Fatalf("Drain error = %v, want ErrSessionClosed", err)
	}
	if len(events) != 1 || events[0].Opcode != protocol.DisplayEventError {
		t.Fatalf("events = %v, want exactly one wl_display.error", events)
	}

	displayErr := client.DisplayError()
	if displayErr == nil {
		t.Fatal("no wl_display.error recorded")
	}
	if displayErr.ObjectID != protocol.DisplayID || displayErr.Code != protocol.DisplayErrorInvalidMethod {
		t.Errorf("display error = %+v, want invalid_method on object 1", displayErr)
	}
	closeFrame, ok := client.CloseFrame()
	if !ok || closeFrame.Code != transport.CloseProtocolError {
		t.Errorf("close frame = %+v (present %t), want CloseProtocolError", closeFrame, ok)
	}
}

func TestUnknownObjectClosesSession(t *testing.T) {
	t.Parallel()
	srv, registry := startServer(t, nil)
	client := dial(t, srv)

	if err := client.Send(42, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Drain(testContext(t)); !errors.Is(err, probe.ErrSessionClosed) {
		t.Fatalf("Drain error = %v, want ErrSessionClosed", err)
	}
	displayErr := client.DisplayError()
	if displayErr == nil || displayErr.ObjectID != protocol.DisplayID || displayErr.Code != protocol.DisplayErrorInvalidObject {
		t.Fatalf("display error = %+v, want invalid_object on the display", displayErr)
	}
	if !strings.Contains(displayErr.Message, "42") {
		t.Errorf("display error message %q does not name object 42", displayErr.Message)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "winpipe_protocol_errors_total" {
			found = true
		}
	}
	if !found {
		t.Error("winpipe_protocol_errors_total not recorded")
	}
}

func TestUnexpectedFrameKind(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t, nil)
	client := dial(t, srv)

	// Only the server sends delta frames.
	if err := client.SendFrame(transport.Frame{Kind: transport.KindDelta, Payload: []byte{1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Drain(testContext(t)); !errors.Is(err, probe.ErrSessionClosed) {
		t.Fatalf("Drain error = %v, want ErrSessionClosed", err)
	}
	closeFrame, _ := client.CloseFrame()
	if closeFrame.Code != transport.CloseFraming {
		t.Errorf("close code = %d, want CloseFraming", closeFrame.Code)
	}
}

func TestIdleTimeout(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t, func(cfg *config.Config) { cfg.IdleTimeout = 100 * time.Millisecond })
	client := dial(t, srv)

	if _, err := client.Drain(testContext(t)); !errors.Is(err, probe.ErrSessionClosed) {
		t.Fatalf("Drain error = %v, want ErrSessionClosed", err)
	}
	closeFrame, _ := client.CloseFrame()
	if closeFrame.Code != transport.CloseIdle {
		t.Errorf("close code = %d, want CloseIdle", closeFrame.Code)
	}
}

func TestStopClosesSessions(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t, nil)
	client := dial(t, srv)
	if _, err := client.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}

	srv.Stop()

	if _, err := client.Drain(testContext(t)); !errors.Is(err, probe.ErrSessionClosed) {
		t.Fatalf("Drain error = %v, want ErrSessionClosed", err)
	}
	closeFrame, _ := client.CloseFrame()
	if closeFrame.Code != transport.CloseShutdown {
		t.Errorf("close code = %d, want CloseShutdown", closeFrame.Code)
	}
}

func TestOperatorEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t, nil)
	client := dial(t, srv)
	ctx := testContext(t)

	registry := client.Allocate(protocol.Registry)
	compositorID := client.Allocate(protocol.Compositor)
	surface := client.Allocate(protocol.Surface)
	requests := []struct {
		object uint32
		opcode uint16
		args   []wire.Argument
	}{
		{protocol.DisplayID, protocol.DisplayGetRegistry, []wire.Argument{wire.NewID(registry)}},
		{registry, protocol.RegistryBind, []wire.Argument{wire.Uint(1), wire.String("wl_compositor"), wire.Uint(5), wire.NewID(compositorID)}},
		{compositorID, protocol.CompositorCreateSurface, []wire.Argument{wire.NewID(surface)}},
	}
	for _, request := range requests {
		if err := client.Send(request.object, request.opcode, request.args...); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := client.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}

	opsAddress := srv.OpsAddr().String()
	sessions, err := probe.FetchSessions(ctx, opsAddress)
	if err != nil {
		t.Fatalf("FetchSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	session := sessions[0]
	if session.Session != client.Hello().Session {
		t.Errorf("session id = %q, want %q", session.Session, client.Hello().Session)
	}
	if len(session.Surfaces) != 1 || session.Surfaces[0].ID != surface {
		t.Errorf("surfaces = %+v, want surface %d", session.Surfaces, surface)
	}
	// display, registry, compositor, surface.
	if session.Objects != 4 {
		t.Errorf("objects = %d, want 4", session.Objects)
	}

	body := get(t, "http://"+opsAddress+"/healthz")
	if body != "ok\n" {
		t.Errorf("/healthz = %q", body)
	}
	body = get(t, "http://"+opsAddress+"/metrics")
	for _, want := range []string{"winpipe_connections_total 1", "winpipe_connections_active 1", `winpipe_messages_total{direction="in"}`} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Compression.Codec = "brotli"
	srv := &server.Server{Config: cfg}
	if err := srv.Start(context.Background()); err == nil {
		srv.Stop()
		t.Fatal("Start accepted an unknown codec")
	}
	if srv.Addr() != nil {
		t.Error("listener bound despite the invalid config")
	}

	if err := (&server.Server{}).Start(context.Background()); err == nil {
		t.Fatal("Start accepted a nil Config")
	}
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t, nil)

	results := make(chan error, 3)
	for range 3 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()
			client, err := probe.Dial(ctx, srv.Addr().String(), probe.Options{})
			if err != nil {
				results <- err
				return
			}
			defer client.Close()
			report, err := probe.Run(ctx, client, probe.Script{Width: 32, Height: 16})
			if err == nil && !report.Verified {
				err = errors.New("reconstruction mismatch")
			}
			results <- err
		}()
	}
	for range 3 {
		if err := testutil.RequireReceive(t, results, testTimeout, "waiting for probe session"); err != nil {
			t.Errorf("session: %v", err)
		}
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	request, err := http.NewRequestWithContext(testContext(t), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
