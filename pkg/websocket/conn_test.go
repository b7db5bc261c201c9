package websocket

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal, hand-rolled WebSocket server side used only to
// exercise Dial/Conn from the client's perspective: it performs the HTTP
// upgrade, then reads/writes raw frames with r/w helpers mirroring this
// package's own codec in reverse (server frames are unmasked, §4.9).
func fakeServer(t *testing.T, ln net.Listener, handle func(conn net.Conn, r *bufio.Reader)) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)

		var key string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if line == "\r\n" {
				break
			}
			if len(line) > len("Sec-WebSocket-Key: ") && line[:len("Sec-WebSocket-Key: ")] == "Sec-WebSocket-Key: " {
				key = line[len("Sec-WebSocket-Key: ") : len(line)-2]
			}
		}

		h := sha1.New()
		h.Write([]byte(key))
		h.Write([]byte(wsAcceptMagic))
		accept := base64.StdEncoding.EncodeToString(h.Sum(nil))

		conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\n" +
			"Upgrade: websocket\r\n" +
			"Connection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"))

		handle(conn, r)
	}()
}

func writeServerFrame(conn net.Conn, op Opcode, payload []byte) error {
	head := []byte{byte(op) | 0x80}
	switch {
	case len(payload) <= 125:
		head = append(head, byte(len(payload)))
	case len(payload) <= 0xFFFF:
		head = append(head, 126)
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(len(payload)))
		head = append(head, ext...)
	default:
		head = append(head, 127)
		ext := make([]byte, 8)
		binary.BigEndian.PutUint64(ext, uint64(len(payload)))
		head = append(head, ext...)
	}
	if _, err := conn.Write(head); err != nil {
		return err
	}
	if len(payload) > 0 {
		_, err := conn.Write(payload)
		return err
	}
	return nil
}

func readClientFrame(r *bufio.Reader) (Opcode, []byte, error) {
	hdr := make([]byte, 2)
	if _, err := readFullBuf(r, hdr); err != nil {
		return 0, nil, err
	}
	op := Opcode(hdr[0] & 0x0F)
	masked := hdr[1]&0x80 != 0
	length := uint64(hdr[1] & 0x7F)
	switch length {
	case 126:
		ext := make([]byte, 2)
		readFullBuf(r, ext)
		length = uint64(binary.BigEndian.Uint16(ext))
	case 127:
		ext := make([]byte, 8)
		readFullBuf(r, ext)
		length = binary.BigEndian.Uint64(ext)
	}
	var key [4]byte
	if masked {
		readFullBuf(r, key[:])
	}
	payload := make([]byte, length)
	if length > 0 {
		readFullBuf(r, payload)
	}
	if masked {
		for i := range payload {
			payload[i] ^= key[i%4]
		}
	}
	return op, payload, nil
}

func readFullBuf(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func listenLoopback(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

func TestDialHandshakeAndEcho(t *testing.T) {
	ln := listenLoopback(t)
	defer ln.Close()

	fakeServer(t, ln, func(conn net.Conn, r *bufio.Reader) {
		op, payload, err := readClientFrame(r)
		if err != nil {
			return
		}
		writeServerFrame(conn, op, payload)
	})

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := Dial(ctx, "ws://127.0.0.1:"+strconv.Itoa(addr.Port)+"/chat", Options{
		ConnTimeout: time.Second, ReadTimeout: time.Second, WriteTimeout: time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, c.WriteMessage(ctx, OpcodeText, []byte("hello")))
	op, payload, err := c.ReadMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, OpcodeText, op)
	require.Equal(t, "hello", string(payload))
}

func TestDialAutoPong(t *testing.T) {
	ln := listenLoopback(t)
	defer ln.Close()

	pongReceived := make(chan []byte, 1)
	fakeServer(t, ln, func(conn net.Conn, r *bufio.Reader) {
		writeServerFrame(conn, OpcodePing, []byte("ping-data"))
		op, payload, err := readClientFrame(r)
		if err != nil {
			return
		}
		if op == OpcodePong {
			pongReceived <- payload
		}
	})

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := Dial(ctx, "ws://127.0.0.1:"+strconv.Itoa(addr.Port)+"/chat", Options{
		ConnTimeout: time.Second, ReadTimeout: time.Second, WriteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	go func() {
		c.ReadMessage(ctx)
	}()

	select {
	case payload := <-pongReceived:
		if string(payload) != "ping-data" {
			t.Fatalf("expected pong to echo ping payload, got %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an automatic pong in response to the server's ping")
	}
}

func TestDialRejectsBadAccept(t *testing.T) {
	ln := listenLoopback(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\n" +
			"Upgrade: websocket\r\n" +
			"Connection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: not-the-right-value\r\n\r\n"))
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:"+strconv.Itoa(addr.Port)+"/chat", Options{
		ConnTimeout: time.Second, ReadTimeout: time.Second, WriteTimeout: time.Second,
	})
	if err == nil {
		t.Fatalf("expected Dial to reject a mismatched Sec-WebSocket-Accept")
	}
}
