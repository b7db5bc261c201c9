package socket

import (
	"context"
	"net"
	"testing"
	"time"
)

func listenLoopback(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

func TestConnectWriteReadRoundTrip(t *testing.T) {
	ln := listenLoopback(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		conn.Write(buf)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sock, err := Connect(ctx, "127.0.0.1", addr.Port)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sock.Close()

	if err := sock.Write(time.Now().Add(time.Second), [][]byte{[]byte("hello")}); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 5)
	total := 0
	deadline := time.Now().Add(time.Second)
	for total < len(buf) {
		n, err := sock.ReadSome(deadline, buf[total:])
		total += n
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if string(buf) != "hello" {
		t.Fatalf("expected echoed 'hello', got %q", buf)
	}
}

func TestConnectRefusedReturnsConnectError(t *testing.T) {
	ln := listenLoopback(t)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Connect(ctx, "127.0.0.1", addr.Port)
	if err == nil {
		t.Fatalf("expected an error connecting to a closed port")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ln := listenLoopback(t)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sock, err := Connect(ctx, "127.0.0.1", addr.Port)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := sock.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Fatalf("second close should be a safe no-op, got: %v", err)
	}
}

func TestReadDeadlineTimesOut(t *testing.T) {
	ln := listenLoopback(t)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(200 * time.Millisecond)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sock, err := Connect(ctx, "127.0.0.1", addr.Port)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sock.Close()

	buf := make([]byte, 1)
	_, err = sock.ReadSome(time.Now().Add(10*time.Millisecond), buf)
	if err == nil {
		t.Fatalf("expected a read deadline to trigger an error")
	}
}
