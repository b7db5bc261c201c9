// Package client implements the HTTP client engine of §4.5: a session
// with a connection pool, deadline timers, optional TLS/gzip, streaming
// bodies, and a progress callback. Grounded on the teacher's
// pkg/client/client.go (Options field shapes, maxHeaderBytes constant)
// and pkg/transport/transport.go (hostPool/PoolConfig/PoolStats shapes,
// reworked here without proxy support, dropped as a Non-goal, §1).
package client

import (
	"crypto/tls"
	"time"

	"github.com/WhileEndless/webcc/pkg/socket"
)

// DefaultBufferSize is the client's fixed read buffer size (§4.5).
const DefaultBufferSize = 1024

// DefaultMaxHeaderBytes mirrors the teacher's maxHeaderBytes constant.
const DefaultMaxHeaderBytes = 64 * 1024

// Options controls how a Session establishes connections and reads
// responses, in the teacher's plain-struct, functional-options-by-field
// style (no builder type of its own — see DESIGN.md).
type Options struct {
	// ConnTimeout bounds resolve+connect+handshake; zero means no
	// deadline.
	ConnTimeout time.Duration
	// ReadTimeout bounds each response read (§4.5's deadline timer).
	ReadTimeout time.Duration
	// WriteTimeout bounds writing the request.
	WriteTimeout time.Duration

	// BufferSize overrides the fixed read buffer (default 1024, §4.5).
	BufferSize int

	// BodyMemLimit is not read by Session: a non-streamed response body
	// spills to disk at buffer.DefaultMemoryLimit whatever this is set to.
	BodyMemLimit int64

	MaxHeaderBytes int64
	MaxBodyBytes   int64

	// TLSVerify selects certificate/hostname verification mode (§4.8).
	TLSVerify socket.VerifyMode
	TLSConfig *tls.Config

	// ReuseConnection enables keep-alive pooling (§4.5).
	ReuseConnection bool

	// AcceptGzip sets Accept-Encoding: gzip on every request unless the
	// caller already set one explicitly.
	AcceptGzip bool

	// Progress is invoked on each chunk written and each chunk read; for
	// chunked responses total is reported as -1 ("unknown"), per §4.5.
	Progress ProgressFunc
}

// ProgressFunc reports incremental write/read progress during Send.
type ProgressFunc func(current, total int64, isRead bool)
