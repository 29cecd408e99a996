// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Listen opens a TCP listener on address (for example "0.0.0.0:9999",
// or ":0" for a random port). The listening socket has SO_REUSEADDR
// set so a restarted server can rebind immediately, and every accepted
// connection is tuned with Tune.
func Listen(ctx context.Context, address string) (net.Listener, error) {
	config := net.ListenConfig{
		Control: func(network, address string, raw syscall.RawConn) error {
			var sockErr error
			err := raw.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	listener, err := config.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}
	return &tunedListener{Listener: listener}, nil
}

// Dial connects to a winpipe server and tunes the connection. A zero
// timeout leaves only ctx's deadline.
func Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	conn, err := (&net.Dialer{Timeout: timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if err := Tune(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Tune disables Nagle's algorithm and enables keepalive on a TCP
// connection. Message frames are small and latency-bound, so they must
// not wait for coalescing. Connections that are not TCP are left
// unchanged.
func Tune(conn net.Conn) error {
	syscallConn, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := syscallConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("tune connection: %w", err)
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	})
	if err != nil {
		return fmt.Errorf("tune connection: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("tune connection: %w", sockErr)
	}
	return nil
}

type tunedListener struct {
	net.Listener
}

// Accept skips connections that cannot be tuned; they were reset
// before the options could be applied.
func (l *tunedListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		if err := Tune(conn); err != nil {
			conn.Close()
			continue
		}
		return conn, nil
	}
}
