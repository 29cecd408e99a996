// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Winpipe-probe runs a scripted session against a winpipe server and
// prints what came back: the advertised globals, every delta record
// the server produced, and whether the reconstructed buffer matches
// the pixels the probe painted.
//
//	winpipe-probe --server 127.0.0.1:9999
//
// With --ops it also lists the server's live sessions from the
// operator endpoint. The exit status is non-zero when the session
// fails or the reconstruction does not match.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/spf13/pflag"

	"github.com/J-x-Z/winpipe/lib/process"
	"github.com/J-x-Z/winpipe/lib/version"
	"github.com/J-x-Z/winpipe/probe"
	"github.com/J-x-Z/winpipe/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		address     string
		opsAddress  string
		width       int
		height      int
		timeout     time.Duration
		verbose     bool
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("winpipe-probe", pflag.ContinueOnError)
	flagSet.StringVar(&address, "server", "127.0.0.1:9999", "winpipe server address")
	flagSet.StringVar(&opsAddress, "ops", "", "operator endpoint address; lists live sessions when set")
	flagSet.IntVar(&width, "width", 256, "buffer width in pixels")
	flagSet.IntVar(&height, "height", 128, "buffer height in pixels")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "limit for the whole session")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log frame traffic")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("winpipe-probe")
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := probe.Dial(ctx, address, probe.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer client.Close()

	report, err := probe.Run(ctx, client, probe.Script{Width: width, Height: height})
	if report != nil {
		printReport(os.Stdout, report)
	}
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}

	if opsAddress != "" {
		sessions, err := probe.FetchSessions(ctx, opsAddress)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, renderSessions(sessions))
	}

	if !report.Verified {
		return &process.ExitError{Code: 2, Err: errors.New("reconstructed buffer does not match the painted pixels")}
	}
	return nil
}

func printReport(w io.Writer, report *probe.Report) {
	fmt.Fprintf(w, "session %s on %s (codec %s, output %dx%d)\n",
		report.Hello.Session, report.Hello.Server, report.Hello.Codec,
		report.Hello.Output.Width, report.Hello.Output.Height)
	fmt.Fprintln(w, renderGlobals(report.Globals))
	fmt.Fprintln(w, renderRecords(report.Records))
	fmt.Fprintf(w, "surface %d, buffer %d, configure serial %d, %d events, verified: %t\n",
		report.Surface, report.Buffer, report.Configure, report.Events, report.Verified)
}

func renderGlobals(globals []probe.Global) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Interface", "Version"})
	for _, global := range globals {
		t.AppendRow(table.Row{global.Name, global.Interface, global.Version})
	}
	return t.Render()
}

func renderRecords(records []probe.Record) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Buffer", "Version", "Full", "Size", "Regions", "Raw bytes", "Encoded bytes", "Ratio"})
	for _, record := range records {
		ratio := "-"
		if record.RawBytes > 0 {
			ratio = fmt.Sprintf("%.1f%%", 100*float64(record.EncodedBytes)/float64(record.RawBytes))
		}
		t.AppendRow(table.Row{
			record.Buffer,
			fmt.Sprintf("%d→%d", record.From, record.To),
			record.Full,
			fmt.Sprintf("%dx%d", record.Width, record.Height),
			record.Regions,
			record.RawBytes,
			record.EncodedBytes,
			ratio,
		})
	}
	return t.Render()
}

func renderSessions(sessions []server.SessionInfo) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Session", "Remote", "Objects", "Buffers", "Messages in", "Messages out", "Deltas", "Started"})
	for _, session := range sessions {
		t.AppendRow(table.Row{
			session.Session,
			session.RemoteAddr,
			session.Objects,
			session.Buffers,
			session.MessagesIn,
			session.MessagesOut,
			session.Deltas,
			session.Started.Format("2006-01-02 15:04:05"),
		})
	}
	return t.Render()
}
