package client

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/WhileEndless/webcc/pkg/builder"
)

func listenTCP(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

// serveOnce accepts a single connection, hands it to handle, and closes it
// afterward.
func serveOnce(t *testing.T, ln net.Listener, handle func(conn net.Conn)) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
}

func readRequestLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read request line: %v", err)
	}
	for {
		l, err := r.ReadString('\n')
		if err != nil || l == "\r\n" {
			break
		}
	}
	return line
}

func TestSessionSendFixedLengthResponse(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	serveOnce(t, ln, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		readRequestLine(t, r)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello"))
	})

	addr := ln.Addr().(*net.TCPAddr)
	req, err := builder.NewRequestBuilder().Get().
		Url("http://127.0.0.1:" + strconv.Itoa(addr.Port) + "/ok").Build()
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	sess := New(Options{ConnTimeout: time.Second, ReadTimeout: time.Second, WriteTimeout: time.Second})
	resp, err := sess.Send(context.Background(), req, false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	data, err := readAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected 'hello', got %q", data)
	}
}

func TestSessionSendChunkedResponse(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	serveOnce(t, ln, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		readRequestLine(t, r)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n" +
			"4\r\nWiki\r\n0\r\n\r\n"))
	})

	addr := ln.Addr().(*net.TCPAddr)
	req, err := builder.NewRequestBuilder().Get().
		Url("http://127.0.0.1:" + strconv.Itoa(addr.Port) + "/chunk").Build()
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	sess := New(Options{ConnTimeout: time.Second, ReadTimeout: time.Second, WriteTimeout: time.Second})
	resp, err := sess.Send(context.Background(), req, false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	data, err := readAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "Wiki" {
		t.Fatalf("expected 'Wiki', got %q", data)
	}
}

func TestSessionKeepAliveReusesConnection(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	var acceptCount int
	accepted := make(chan struct{}, 2)
	go func() {
		for i := 0; i < 2; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			acceptCount++
			accepted <- struct{}{}
			go func(c net.Conn) {
				r := bufio.NewReader(c)
				for {
					readRequestLine(t, r)
					if _, err := c.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	sess := New(Options{ConnTimeout: time.Second, ReadTimeout: time.Second, WriteTimeout: time.Second, ReuseConnection: true})

	for i := 0; i < 2; i++ {
		req, err := builder.NewRequestBuilder().Get().
			Url("http://127.0.0.1:" + strconv.Itoa(addr.Port) + "/ok").Build()
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		resp, err := sess.Send(context.Background(), req, false)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	}

	select {
	case <-accepted:
	case <-time.After(time.Second):
		t.Fatalf("expected at least one accepted connection")
	}
	if acceptCount != 1 {
		t.Fatalf("expected the second request to reuse the pooled connection, got %d accepts", acceptCount)
	}
}

func TestSessionCancelNoopWhenIdle(t *testing.T) {
	sess := New(Options{})
	if sess.Cancel() {
		t.Fatalf("expected Cancel to be a no-op with nothing in flight")
	}
}

func readAll(b interface {
	InitPayload() error
	NextPayload(bool) ([][]byte, error)
}) ([]byte, error) {
	if err := b.InitPayload(); err != nil {
		return nil, err
	}
	var out []byte
	for {
		chunks, err := b.NextPayload(false)
		if err != nil {
			return nil, err
		}
		if chunks == nil {
			break
		}
		for _, c := range chunks {
			out = append(out, c...)
		}
	}
	return out, nil
}
