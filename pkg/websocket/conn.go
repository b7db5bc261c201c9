package websocket

import (
	"context"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/WhileEndless/webcc/pkg/header"
	"github.com/WhileEndless/webcc/pkg/parser"
	"github.com/WhileEndless/webcc/pkg/socket"
	"github.com/WhileEndless/webcc/pkg/webccerr"
	"github.com/WhileEndless/webcc/pkg/wurl"
)

// wsAcceptMagic is the fixed GUID RFC 6455 §1.3 appends to the client key
// before hashing.
const wsAcceptMagic = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Options configures a Dial (§4.9).
type Options struct {
	ConnTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// VerifyTLS controls certificate verification for wss URLs.
	VerifyTLS socket.VerifyMode
	TLSConfig *tls.Config

	// Protocols, if non-empty, is offered via Sec-WebSocket-Protocol; the
	// server's chosen value (if any) must be one of these, or Dial fails
	// (§9 resolved Open Question).
	Protocols []string

	// MaxFramePayload caps a single frame's payload size; 0 is unbounded.
	MaxFramePayload int64

	// Header lets the caller add extra handshake headers (e.g. cookies).
	Header *header.Map
}

// Conn is an established WebSocket connection driving the underlying TCP
// socket with RFC 6455 frames after a successful handshake (§4.9).
type Conn struct {
	sock *socket.Socket
	opts Options

	writeMu sync.Mutex

	closeSent     bool
	closeReceived bool
	closeMu       sync.Mutex
}

// Dial performs the HTTP upgrade handshake against rawURL (scheme ws or
// wss) and returns a Conn driving the resulting socket (§4.9).
func Dial(ctx context.Context, rawURL string, opts Options) (*Conn, error) {
	u, err := wurl.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	isTLS := u.Scheme == "wss"

	sock, err := socket.Connect(ctx, u.Host, u.Port)
	if err != nil {
		return nil, err
	}
	if isTLS {
		if err := sock.Handshake(ctx, opts.TLSConfig, opts.VerifyTLS); err != nil {
			sock.Close()
			return nil, err
		}
	}

	key, err := newSecWebSocketKey()
	if err != nil {
		sock.Close()
		return nil, err
	}

	writeDeadline := deadlineFrom(ctx, opts.WriteTimeout)
	if err := sock.Write(writeDeadline, [][]byte{renderHandshakeRequest(u, key, opts)}); err != nil {
		sock.Close()
		return nil, err
	}

	readDeadline := deadlineFrom(ctx, opts.ReadTimeout)
	proto, err := readHandshakeResponse(sock, readDeadline, u.Host, u.Port, key, opts.Protocols)
	if err != nil {
		sock.Close()
		return nil, err
	}
	_ = proto

	return &Conn{sock: sock, opts: opts}, nil
}

func deadlineFrom(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok {
		if d.IsZero() || ctxDeadline.Before(d) {
			d = ctxDeadline
		}
	}
	return d
}

func renderHandshakeRequest(u *wurl.URL, key string, opts Options) []byte {
	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(u.RequestTarget())
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(u.HostPort())
	b.WriteString("\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Key: ")
	b.WriteString(key)
	b.WriteString("\r\n")
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	if len(opts.Protocols) > 0 {
		b.WriteString("Sec-WebSocket-Protocol: ")
		b.WriteString(strings.Join(opts.Protocols, ", "))
		b.WriteString("\r\n")
	}
	if opts.Header != nil {
		opts.Header.Each(func(name, value string) {
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\r\n")
		})
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// readHandshakeResponse reads the HTTP response head, verifies status
// 101 and Sec-WebSocket-Accept, and returns the negotiated subprotocol
// (empty if none).
func readHandshakeResponse(sock *socket.Socket, deadline time.Time, host string, port int, key string, offered []string) (string, error) {
	p := parser.New(parser.ModeResponse)
	p.Init(false, nil)

	handshakeErr := func(detail string) error {
		e := webccerr.NewHandshake(host, port, nil)
		e.Detail = detail
		return e
	}

	buf := make([]byte, 4096)
	for !p.Finished() {
		n, err := sock.ReadSome(deadline, buf)
		if n > 0 {
			if perr := p.Parse(buf[:n]); perr != nil {
				return "", perr
			}
		}
		if err != nil && !p.Finished() {
			return "", err
		}
		if err != nil {
			break
		}
	}

	if p.StatusCode != 101 {
		return "", handshakeErr("server did not upgrade (status " + strconv.Itoa(p.StatusCode) + ")")
	}
	if !header.EqualFold(p.Headers.Get("Upgrade"), "websocket") ||
		!header.ContainsToken(p.Headers.Get("Connection"), "Upgrade") {
		return "", handshakeErr("missing Upgrade/Connection headers")
	}

	expected := acceptHash(key)
	if p.Headers.Get("Sec-WebSocket-Accept") != expected {
		return "", handshakeErr("Sec-WebSocket-Accept mismatch")
	}

	proto := p.Headers.Get("Sec-WebSocket-Protocol")
	if proto != "" && len(offered) > 0 {
		ok := false
		for _, o := range offered {
			if o == proto {
				ok = true
				break
			}
		}
		if !ok {
			return "", handshakeErr("server selected an unoffered subprotocol")
		}
	}
	return proto, nil
}

func acceptHash(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(wsAcceptMagic))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// WriteMessage sends a single, unfragmented text or binary message,
// masked with a fresh key (§4.9).
func (c *Conn) WriteMessage(ctx context.Context, op Opcode, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := deadlineFrom(ctx, c.opts.WriteTimeout)
	return writeFrame(c.sock, deadline, true, op, payload)
}

// ReadMessage blocks for the next text/binary message, transparently
// answering pings with a pong and tracking the close handshake; Close
// frames are surfaced to the caller as an error once both close_sent and
// close_received are true (§4.9).
func (c *Conn) ReadMessage(ctx context.Context) (Opcode, []byte, error) {
	deadline := deadlineFrom(ctx, c.opts.ReadTimeout)
	for {
		f, err := readFrame(c.sock, deadline, c.opts.MaxFramePayload)
		if err != nil {
			return 0, nil, err
		}

		switch f.Opcode {
		case OpcodePing:
			if err := c.WriteMessage(ctx, OpcodePong, f.Payload); err != nil {
				return 0, nil, err
			}
			continue
		case OpcodePong:
			continue
		case OpcodeClose:
			c.closeMu.Lock()
			c.closeReceived = true
			alreadySent := c.closeSent
			c.closeMu.Unlock()
			if !alreadySent {
				c.sendClose(ctx, f.Payload)
			}
			c.sock.Close()
			return OpcodeClose, f.Payload, webccerr.NewState("read", "WebSocket connection closed")
		default:
			return f.Opcode, f.Payload, nil
		}
	}
}

// Close initiates (or completes) the close handshake: sends a close
// frame carrying code if close_sent isn't already true, then tears the
// socket down once both flags are set (§4.9).
func (c *Conn) Close(ctx context.Context, code uint16, reason string) error {
	payload := make([]byte, 2+len(reason))
	payload[0] = byte(code >> 8)
	payload[1] = byte(code)
	copy(payload[2:], reason)

	c.sendClose(ctx, payload)

	c.closeMu.Lock()
	received := c.closeReceived
	c.closeMu.Unlock()
	if received {
		return c.sock.Close()
	}
	return nil
}

func (c *Conn) sendClose(ctx context.Context, payload []byte) error {
	c.closeMu.Lock()
	if c.closeSent {
		c.closeMu.Unlock()
		return nil
	}
	c.closeSent = true
	c.closeMu.Unlock()

	if len(payload) > maxControlPayload {
		payload = payload[:maxControlPayload]
	}
	return c.WriteMessage(ctx, OpcodeClose, payload)
}
