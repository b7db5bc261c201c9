package client

import (
	"context"
	"crypto/tls"
	"strings"
	"sync"

	"github.com/WhileEndless/webcc/pkg/header"
	"github.com/WhileEndless/webcc/pkg/message"
	"github.com/WhileEndless/webcc/pkg/parser"
	"github.com/WhileEndless/webcc/pkg/socket"
	"github.com/WhileEndless/webcc/pkg/timing"
	"github.com/WhileEndless/webcc/pkg/tlsconfig"
	"github.com/WhileEndless/webcc/pkg/wlog"
)

// Session drives one logical client: a connection pool plus the send
// state machine of §4.5 (IDLE -> RESOLVING -> CONNECTING -> [HANDSHAKING]
// -> WRITE_HEADERS -> WRITE_BODY_CHUNK... -> READ... -> DONE). Unlike the
// teacher's one-shot Client.Do, a Session is long-lived and reused across
// requests so the pool actually pools.
type Session struct {
	opts Options
	pool *pool

	mu      sync.Mutex
	current *socket.Socket // in-flight socket, for Cancel; nil when idle
}

// New returns a Session ready for Send. A zero Options uses the package
// defaults (§4.5).
func New(opts Options) *Session {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.MaxHeaderBytes <= 0 {
		opts.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	return &Session{opts: opts, pool: newPool()}
}

// Close drops every pooled connection (§5: "drop triggers shutdown+close").
func (s *Session) Close() error {
	s.pool.closeAll()
	return nil
}

// Cancel closes the in-flight socket, if any; the blocked Send observes a
// socket error with Timeout=false and the connection does not rejoin the
// pool (§4.5). A no-op if nothing is in flight.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return false
	}
	cur.Close()
	return true
}

func (s *Session) setCurrent(sock *socket.Socket) {
	s.mu.Lock()
	s.current = sock
	s.mu.Unlock()
}

func (s *Session) clearCurrent() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Send executes one request to completion: resolve+connect (or pool
// reuse), optional TLS handshake, write headers and body, read and parse
// the response, and, for a keep-alive response, return the connection to
// the pool. stream requests a file-backed response body regardless of
// size (§4.5).
func (s *Session) Send(ctx context.Context, req *message.Request, stream bool) (*message.Response, error) {
	if err := req.Prepare(); err != nil {
		return nil, err
	}
	if s.opts.AcceptGzip && !req.Headers.Has("Accept-Encoding") {
		req.Headers.Set("Accept-Encoding", "gzip")
	}

	timer := timing.NewTimer()
	key := poolKey{scheme: req.Url.Scheme, host: req.Url.Host, port: req.Url.Port}
	isTLS := key.scheme == "https" || key.scheme == "wss"

	sock, reused, err := s.acquire(ctx, timer, key, isTLS)
	if err != nil {
		wlog.Errof("client: connect to %s:%d failed: %v", key.host, key.port, err)
		return nil, err
	}
	if !reused {
		wlog.Verbf("client: connected to %s:%d", key.host, key.port)
	}
	s.setCurrent(sock)
	defer s.clearCurrent()

	if err := s.writeRequest(sock, req, timer); err != nil {
		wlog.Errof("client: write to %s:%d failed: %v", key.host, key.port, err)
		sock.Close()
		return nil, err
	}

	resp, err := s.readResponse(ctx, sock, timer, stream)
	if err != nil {
		wlog.Errof("client: read from %s:%d failed: %v", key.host, key.port, err)
		sock.Close()
		return nil, err
	}
	resp.ConnMeta = s.connMeta(sock, reused)

	if s.opts.ReuseConnection && resp.IsKeepAlive() {
		s.pool.put(key, sock)
	} else {
		sock.Close()
	}
	return resp, nil
}

// acquire returns a ready-to-use socket for key: a pooled idle connection
// if one is available and reuse is enabled, otherwise a freshly dialed
// (and, for TLS schemes, handshaken) one.
func (s *Session) acquire(ctx context.Context, timer *timing.Timer, key poolKey, isTLS bool) (*socket.Socket, bool, error) {
	if s.opts.ReuseConnection {
		if sock := s.pool.get(key); sock != nil {
			return sock, true, nil
		}
	}

	connCtx := ctx
	var cancel context.CancelFunc
	if s.opts.ConnTimeout > 0 {
		connCtx, cancel = context.WithTimeout(ctx, s.opts.ConnTimeout)
		defer cancel()
	}

	timer.StartResolve()
	timer.EndResolve() // resolution happens inside DialContext; no separate DNS phase here

	timer.StartConnect()
	sock, err := socket.Connect(connCtx, key.host, key.port)
	timer.EndConnect()
	if err != nil {
		return nil, false, err
	}

	if isTLS {
		timer.StartHandshake()
		err := sock.Handshake(connCtx, s.opts.TLSConfig, s.opts.TLSVerify)
		timer.EndHandshake()
		if err != nil {
			wlog.Errof("client: TLS handshake with %s:%d failed: %v", key.host, key.port, err)
			sock.Close()
			return nil, false, err
		}
	}
	return sock, false, nil
}

// writeRequest renders the start line and headers into one buffer, writes
// it, then streams the body in NextPayload-sized chunks (§4.5's
// WRITE_HEADERS -> WRITE_BODY_CHUNK... transitions), reporting progress
// after each chunk.
func (s *Session) writeRequest(sock *socket.Socket, req *message.Request, timer *timing.Timer) error {
	var deadline = writeDeadline(s.opts.WriteTimeout)

	timer.StartWrite()
	defer timer.EndWrite()

	head := renderHead(req.StartLine, req.Headers)
	if err := sock.Write(deadline, [][]byte{head}); err != nil {
		return err
	}

	if req.Body == nil {
		return nil
	}
	total, err := req.Body.GetSize()
	if err != nil {
		return err
	}
	if err := req.Body.InitPayload(); err != nil {
		return err
	}
	defer req.Body.Close()

	var sent int64
	for {
		chunks, err := req.Body.NextPayload(false)
		if err != nil {
			return err
		}
		if chunks == nil {
			break
		}
		if err := sock.Write(deadline, chunks); err != nil {
			return err
		}
		for _, c := range chunks {
			sent += int64(len(c))
		}
		if s.opts.Progress != nil {
			s.opts.Progress(sent, total, false)
		}
	}
	return nil
}

// readResponse reads into the fixed-size buffer and feeds the incremental
// parser until it reports a finished message (§4.5's READ... loop),
// building the final Response from the parsed fields.
func (s *Session) readResponse(ctx context.Context, sock *socket.Socket, timer *timing.Timer, stream bool) (*message.Response, error) {
	deadline := readDeadline(ctx, s.opts.ReadTimeout)

	p := parser.New(parser.ModeResponse)
	p.SetMaxHeaderBytes(s.opts.MaxHeaderBytes)
	p.SetMaxBodyBytes(s.opts.MaxBodyBytes)
	p.Init(stream, nil)

	bufSize := s.opts.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	buf := make([]byte, bufSize)

	timer.StartRead()
	defer timer.EndRead()

	var read int64
	for !p.Finished() {
		n, err := sock.ReadSome(deadline, buf)
		if n > 0 {
			if perr := p.Parse(buf[:n]); perr != nil {
				return nil, perr
			}
			read += int64(n)
			if s.opts.Progress != nil {
				total := p.ContentLength()
				if p.IsChunked() {
					total = -1
				}
				s.opts.Progress(read, total, true)
			}
		}
		if err != nil && !p.Finished() {
			return nil, err
		}
		if err != nil {
			break
		}
	}

	resp := message.NewResponse()
	resp.StatusCode = p.StatusCode
	resp.Reason = p.Reason
	resp.StartLine = resp.StatusLine()
	resp.Headers = p.Headers
	resp.Body = p.Body
	if p.IsChunked() {
		resp.ContentLength = message.NoContentLength
	} else {
		resp.ContentLength = p.ContentLength()
	}
	return resp, nil
}

func (s *Session) connMeta(sock *socket.Socket, reused bool) *message.ConnMeta {
	meta := &message.ConnMeta{
		LocalAddr:        sock.LocalAddr().String(),
		RemoteAddr:       sock.RemoteAddr().String(),
		ConnectionReused: reused,
	}
	if sock.IsTLS() {
		st := sock.ConnectionState()
		meta.TLSVersion = tlsconfig.GetVersionName(st.Version)
		meta.TLSCipherSuite = tls.CipherSuiteName(st.CipherSuite)
		meta.TLSServerName = st.ServerName
	}
	return meta
}

// renderHead writes the start line and header block, CRLF-terminated,
// ending in the blank line that separates headers from body.
func renderHead(startLine string, h *header.Map) []byte {
	var b strings.Builder
	b.WriteString(startLine)
	b.WriteString("\r\n")
	h.Each(func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	})
	b.WriteString("\r\n")
	return []byte(b.String())
}
