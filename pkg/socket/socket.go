// Package socket implements the polymorphic plain-TCP/TLS socket
// described in §4.8. The original design is callback-based
// (AsyncConnect/AsyncHandshake/AsyncWrite/AsyncReadSome); webcc realizes
// the same operations as context-deadline-bound blocking calls instead,
// matching the teacher's own style (pkg/transport.Transport.Connect and
// client.Client.sendRequest/readResponse are plain blocking net.Conn
// calls under SetDeadline, never callback-based) — the state machines in
// pkg/client and pkg/server supply the asynchrony by running each
// session/connection on its own goroutine.
package socket

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/WhileEndless/webcc/pkg/tlsconfig"
	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// VerifyMode selects TLS peer verification behavior (§4.8).
type VerifyMode int

const (
	VerifyHostName VerifyMode = iota // default
	VerifyNone
)

// Socket wraps a net.Conn, adding the TLS handshake step and uniform
// error-kind mapping the spec's Socket abstraction calls for.
type Socket struct {
	conn      net.Conn
	tlsConn   *tls.Conn
	host      string
	port      int
	isTLS     bool
	closeOnce bool
}

// Connect dials host:port over TCP, honoring ctx's deadline (the
// AsyncConnect operation of §4.8 realized as a blocking call).
func Connect(ctx context.Context, host string, port int) (*Socket, error) {
	var d net.Dialer
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		e := webccerr.NewConnect(host, port, err)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, e.WithTimeout()
		}
		return nil, e
	}
	return &Socket{conn: conn, host: host, port: port}, nil
}

// Handshake performs the TLS client handshake (AsyncHandshake, §4.8).
// cfg.ServerName is set from host when empty.
func (s *Socket) Handshake(ctx context.Context, cfg *tls.Config, verify VerifyMode) error {
	if cfg == nil {
		cfg = &tls.Config{}
		tlsconfig.ApplyVersionProfile(cfg, tlsconfig.ProfileSecure)
		tlsconfig.ApplyCipherSuites(cfg, tlsconfig.VersionTLS12)
	}
	cfg = cfg.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = s.host
	}
	if verify == VerifyNone {
		cfg.InsecureSkipVerify = true
	}

	tlsConn := tls.Client(s.conn, cfg)
	if deadline, ok := ctx.Deadline(); ok {
		tlsConn.SetDeadline(deadline)
		defer tlsConn.SetDeadline(time.Time{})
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return webccerr.NewHandshake(s.host, s.port, err)
	}
	s.tlsConn = tlsConn
	s.isTLS = true
	return nil
}

func (s *Socket) activeConn() net.Conn {
	if s.isTLS {
		return s.tlsConn
	}
	return s.conn
}

// Write performs a scatter-gather write (AsyncWrite, §4.8), honoring a
// write deadline if set; it writes every buffer fully or returns an
// error.
func (s *Socket) Write(deadline time.Time, buffers [][]byte) error {
	conn := s.activeConn()
	if !deadline.IsZero() {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return webccerr.NewSocketWrite(err)
		}
		defer conn.SetWriteDeadline(time.Time{})
	}
	for _, buf := range buffers {
		written := 0
		for written < len(buf) {
			n, err := conn.Write(buf[written:])
			if err != nil {
				return wrapWriteErr(err)
			}
			written += n
		}
	}
	return nil
}

// ReadSome fills at most len(buf) bytes (AsyncReadSome, §4.8), honoring a
// read deadline if set. Returns the number of bytes read.
func (s *Socket) ReadSome(deadline time.Time, buf []byte) (int, error) {
	conn := s.activeConn()
	if !deadline.IsZero() {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return 0, webccerr.NewSocketRead(err)
		}
		defer conn.SetReadDeadline(time.Time{})
	}
	n, err := conn.Read(buf)
	if err != nil {
		return n, wrapReadErr(err)
	}
	return n, nil
}

func wrapWriteErr(err error) error {
	e := webccerr.NewSocketWrite(err)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return e.WithTimeout()
	}
	return e
}

func wrapReadErr(err error) error {
	e := webccerr.NewSocketRead(err)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return e.WithTimeout()
	}
	return e
}

// Shutdown signals no further writes (half-close where supported),
// idempotent and safe to call before Close (§4.8).
func (s *Socket) Shutdown() error {
	if tc, ok := s.activeConn().(interface{ CloseWrite() error }); ok {
		return tc.CloseWrite()
	}
	return nil
}

// Close closes the underlying connection. Idempotent.
func (s *Socket) Close() error {
	if s.closeOnce {
		return nil
	}
	s.closeOnce = true
	return s.conn.Close()
}

// LocalAddr/RemoteAddr expose the underlying socket addresses for
// ConnMeta population (§3 EXPANSION).
func (s *Socket) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *Socket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// IsTLS reports whether Handshake has completed successfully.
func (s *Socket) IsTLS() bool { return s.isTLS }

// ConnectionState returns the negotiated TLS state, or the zero value if
// this socket never completed a TLS handshake.
func (s *Socket) ConnectionState() tls.ConnectionState {
	if s.tlsConn == nil {
		return tls.ConnectionState{}
	}
	return s.tlsConn.ConnectionState()
}
