// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"testing"
)

// Loopback returns a TCP listener on a random 127.0.0.1 port. It is
// closed when the test ends.
func Loopback(t testing.TB) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen on loopback: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	return listener
}

// ConnPair returns both ends of a loopback TCP connection. Both are
// closed when the test ends.
func ConnPair(t testing.TB) (client, server net.Conn) {
	t.Helper()
	listener := Loopback(t)

	accepted := make(chan net.Conn, 1)
	failed := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			failed <- err
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial loopback listener: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-accepted:
	case err := <-failed:
		t.Fatalf("accept loopback connection: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return client, server
}
