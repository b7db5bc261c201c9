// Package parser implements the incremental HTTP/1.1 parser described in
// §4.4: a header phase followed by a fixed-length, chunked, or
// multipart/form-data body phase, re-entrant across arbitrary chunk
// boundaries. Grounded on the teacher's pkg/client/client.go
// readHeaders/readChunkedBody/readFixedBody, generalized from
// "one-shot over a bufio.Reader" into "resumable over arbitrary byte
// slices" since the server side can't block waiting for more data.
package parser

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/WhileEndless/webcc/pkg/body"
	"github.com/WhileEndless/webcc/pkg/buffer"
	"github.com/WhileEndless/webcc/pkg/header"
	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// Mode selects which start line grammar to parse.
type Mode int

const (
	ModeRequest Mode = iota
	ModeResponse
)

// phase tracks progress through the message.
type phase int

const (
	phaseStartLine phase = iota
	phaseHeaders
	phaseFixedBody
	phaseChunkSize
	phaseChunkData
	phaseChunkCRLF
	phaseChunkTrailer
	phaseMultipartPreamble
	phaseMultipartHeaders
	phaseMultipartData
	phaseDone
)

const (
	// DefaultMaxHeaderBytes bounds the accumulated header block (§9: 64KiB,
	// grounded on the teacher's maxHeaderBytes constant in pkg/client).
	DefaultMaxHeaderBytes = 64 * 1024
)

// HeadersEndFunc is invoked once the header block is fully parsed, before
// any body bytes are consumed. The server uses this to resolve a view and
// decide whether this request's body should be streamed to disk (§4.4,
// §4.6); a nil func means "use the stream flag Init was given".
type HeadersEndFunc func(p *Parser) (stream bool)

// Parser incrementally parses one HTTP/1.1 message. It is re-entrant:
// Parse may be called any number of times with arbitrarily sized chunks,
// including single bytes, and must not lose state between calls.
type Parser struct {
	mode Mode

	pending []byte // unconsumed bytes carried across Parse calls
	ph      phase

	// start line
	Method      string
	RequestURI  string
	HTTPVersion string
	StatusCode  int
	Reason      string

	Headers *header.Map

	contentLength   int64 // NoContentLength sentinel if absent
	chunked         bool
	mediaType       string
	charset         string
	boundary        string
	isMultipart     bool

	stream       bool
	onHeadersEnd HeadersEndFunc

	bodyBuf    *buffer.Buffer
	Body       body.Body
	FormParts  []body.FormPart

	remainingFixed int64
	chunkRemaining int64

	maxHeaderBytes int64
	maxBodyBytes   int64
	headerBytes    int64
	bodyBytes      int64

	mp *multipartState

	finished bool
}

// NoContentLength mirrors message.NoContentLength without importing the
// message package (parser is lower in the dependency order, §2).
const NoContentLength int64 = -1

// New returns a parser ready for Init.
func New(mode Mode) *Parser {
	return &Parser{
		mode:           mode,
		Headers:        header.New(),
		contentLength:  NoContentLength,
		maxHeaderBytes: DefaultMaxHeaderBytes,
	}
}

// SetMaxHeaderBytes overrides the header-block size cap (§9).
func (p *Parser) SetMaxHeaderBytes(n int64) { p.maxHeaderBytes = n }

// SetMaxBodyBytes caps the body size; 0 means unbounded (§9).
func (p *Parser) SetMaxBodyBytes(n int64) { p.maxBodyBytes = n }

// Init prepares the parser for a new message. stream chooses the default
// body handler (file vs in-memory) unless onHeadersEnd overrides it once
// headers are known.
func (p *Parser) Init(stream bool, onHeadersEnd HeadersEndFunc) {
	p.ph = phaseStartLine
	p.pending = nil
	p.Method, p.RequestURI, p.HTTPVersion = "", "", ""
	p.StatusCode, p.Reason = 0, ""
	p.Headers = header.New()
	p.contentLength = NoContentLength
	p.chunked = false
	p.mediaType, p.charset, p.boundary = "", "", ""
	p.isMultipart = false
	p.stream = stream
	p.onHeadersEnd = onHeadersEnd
	p.bodyBuf = nil
	p.Body = nil
	p.FormParts = nil
	p.remainingFixed = 0
	p.chunkRemaining = 0
	p.headerBytes = 0
	p.bodyBytes = 0
	p.mp = nil
	p.finished = false
}

// Finished reports whether the full message has been absorbed.
func (p *Parser) Finished() bool { return p.finished }

// ContentLength returns the parsed Content-Length, or NoContentLength if
// the message had none (chunked or bodyless).
func (p *Parser) ContentLength() int64 { return p.contentLength }

// IsChunked reports whether the message used chunked transfer-encoding.
func (p *Parser) IsChunked() bool { return p.chunked }

// Pending returns the bytes already fed to Parse but not yet consumed.
// Once Finished, it holds the start of the next pipelined message on the
// same connection (§4.6).
func (p *Parser) Pending() []byte { return p.pending }

// Parse feeds data into the parser. It returns an error only on
// unrecoverable protocol violation; otherwise it consumes as much as it
// can and returns nil, with internal state advanced for the next call.
func (p *Parser) Parse(data []byte) error {
	if len(data) > 0 {
		p.pending = append(p.pending, data...)
	}

	for {
		switch p.ph {
		case phaseStartLine:
			line, ok, err := p.takeLine()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := p.parseStartLine(line); err != nil {
				return err
			}
			p.ph = phaseHeaders

		case phaseHeaders:
			done, err := p.consumeHeaderLines()
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
			if err := p.onHeadersComplete(); err != nil {
				return err
			}

		case phaseFixedBody:
			done, err := p.consumeFixedBody()
			if err != nil {
				return err
			}
			if !done {
				return nil
			}

		case phaseChunkSize, phaseChunkData, phaseChunkCRLF, phaseChunkTrailer:
			done, err := p.consumeChunked()
			if err != nil {
				return err
			}
			if !done {
				return nil
			}

		case phaseMultipartPreamble, phaseMultipartHeaders, phaseMultipartData:
			done, err := p.consumeMultipart()
			if err != nil {
				return err
			}
			if !done {
				return nil
			}

		case phaseDone:
			return nil
		}
	}
}

// takeLine extracts the next CRLF-terminated line from pending, without
// the trailing CRLF, leaving any remainder in pending. ok is false if no
// full line is buffered yet.
func (p *Parser) takeLine() (line string, ok bool, err error) {
	idx := bytes.Index(p.pending, []byte("\r\n"))
	if idx < 0 {
		if p.ph == phaseStartLine || p.ph == phaseHeaders {
			p.headerBytes += int64(len(p.pending))
			if p.maxHeaderBytes > 0 && p.headerBytes > p.maxHeaderBytes {
				return "", false, webccerr.NewParse("header block exceeds maximum size", nil)
			}
		}
		return "", false, nil
	}
	line = string(p.pending[:idx])
	p.pending = p.pending[idx+2:]
	return line, true, nil
}

func (p *Parser) parseStartLine(line string) error {
	if p.mode == ModeRequest {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return webccerr.NewSyntax("malformed request line: " + line)
		}
		p.Method = strings.ToUpper(parts[0])
		p.RequestURI = parts[1]
		p.HTTPVersion = parts[2]
		return nil
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return webccerr.NewSyntax("malformed status line: " + line)
	}
	p.HTTPVersion = parts[0]
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return webccerr.NewSyntax("invalid status code: " + parts[1])
	}
	p.StatusCode = code
	if len(parts) == 3 {
		p.Reason = parts[2]
	}
	return nil
}

// consumeHeaderLines consumes header lines until the blank line ending
// the header block. Returns done=true once that blank line is consumed.
func (p *Parser) consumeHeaderLines() (done bool, err error) {
	for {
		line, ok, err := p.takeLine()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		p.headerBytes += int64(len(line)) + 2
		if p.maxHeaderBytes > 0 && p.headerBytes > p.maxHeaderBytes {
			return false, webccerr.NewParse("header block exceeds maximum size", nil)
		}
		if line == "" {
			return true, nil
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue // malformed line; ignore rather than abort (§4.4 is lenient here)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		p.Headers.Add(name, value)

		switch header.Lower(name) {
		case "content-length":
			if n, convErr := strconv.ParseInt(value, 10, 64); convErr == nil && n >= 0 {
				p.contentLength = n
			}
		case "transfer-encoding":
			if header.ContainsToken(value, "chunked") {
				p.chunked = true
			}
		case "content-type":
			p.mediaType, p.charset, p.boundary = parseContentType(value)
			p.isMultipart = p.boundary != ""
		}
	}
}

// parseContentType splits "media/type; charset=x; boundary=y" into parts.
func parseContentType(v string) (mediaType, charset, boundary string) {
	segs := strings.Split(v, ";")
	mediaType = strings.TrimSpace(segs[0])
	for _, seg := range segs[1:] {
		k, val, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		val = strings.Trim(strings.TrimSpace(val), `"`)
		switch k {
		case "charset":
			charset = val
		case "boundary":
			boundary = val
		}
	}
	return mediaType, charset, boundary
}

// onHeadersComplete runs the OnHeadersEnd callback, instantiates the body
// handler, and transitions to the appropriate body phase (§4.4 step 1).
func (p *Parser) onHeadersComplete() error {
	stream := p.stream
	if p.onHeadersEnd != nil {
		stream = p.onHeadersEnd(p)
	}
	p.stream = stream

	if p.mode == ModeRequest && p.isMultipart {
		p.mp = newMultipartState(p.boundary)
		p.ph = phaseMultipartPreamble
		return nil
	}

	limit := buffer.DefaultMemoryLimit
	if stream {
		limit = 0 // force spill to disk immediately for explicitly streamed bodies
	}
	p.bodyBuf = buffer.New(int64(limit))

	switch {
	case p.chunked:
		p.ph = phaseChunkSize
	case p.contentLength > 0:
		p.remainingFixed = p.contentLength
		p.ph = phaseFixedBody
	case p.contentLength == 0:
		p.finalizeBody()
		p.ph = phaseDone
		p.finished = true
	default:
		// No Content-Length and not chunked: per §6, bodyless by default
		// for this library's scope (no "read until close" client reads;
		// a server request with neither framing header has no body).
		p.finalizeBody()
		p.ph = phaseDone
		p.finished = true
	}
	return nil
}

func (p *Parser) checkBodyLimit(n int64) error {
	p.bodyBytes += n
	if p.maxBodyBytes > 0 && p.bodyBytes > p.maxBodyBytes {
		return webccerr.NewParse("body exceeds maximum size", nil)
	}
	return nil
}

func (p *Parser) consumeFixedBody() (done bool, err error) {
	if len(p.pending) == 0 {
		if p.remainingFixed == 0 {
			p.finalizeBody()
			p.ph = phaseDone
			p.finished = true
			return true, nil
		}
		return false, nil
	}
	n := int64(len(p.pending))
	if n > p.remainingFixed {
		n = p.remainingFixed
	}
	if err := p.checkBodyLimit(n); err != nil {
		return false, err
	}
	if _, err := p.bodyBuf.Write(p.pending[:n]); err != nil {
		return false, err
	}
	p.pending = p.pending[n:]
	p.remainingFixed -= n

	if p.remainingFixed == 0 {
		p.finalizeBody()
		p.ph = phaseDone
		p.finished = true
		return true, nil
	}
	return false, nil
}

// finalizeBody wraps the ingest buffer into the egress body.Body used by
// the rest of the library: a StringBody if it never spilled, or a
// FileBody taking ownership of the spilled temp file otherwise.
func (p *Parser) finalizeBody() {
	if p.bodyBuf == nil {
		p.Body = body.NewStringBody(nil)
		return
	}
	if path, ok := p.bodyBuf.Release(); ok {
		p.Body = body.NewFileBody(path, 0, true)
		return
	}
	data := append([]byte(nil), p.bodyBuf.Bytes()...)
	p.bodyBuf.Close()
	p.Body = body.NewStringBody(data)
}
