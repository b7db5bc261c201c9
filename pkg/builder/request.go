// Package builder implements the fluent Request/Response builders named
// in §6's Client API / Server API, grounded on the teacher's functional-
// options conventions (plain exported setters returning the receiver,
// not a generated builder).
package builder

import (
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/WhileEndless/webcc/pkg/body"
	"github.com/WhileEndless/webcc/pkg/message"
	"github.com/WhileEndless/webcc/pkg/util"
	"github.com/WhileEndless/webcc/pkg/wurl"
)

// RequestBuilder assembles a *message.Request fluently; each setter
// returns the receiver so calls can be chained.
type RequestBuilder struct {
	req *message.Request

	mediaType string
	charset   string
	wantGzip  bool
	urlErr    error
}

// NewRequestBuilder returns a builder defaulting to GET.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{req: message.NewRequest()}
}

func (b *RequestBuilder) Method(m string) *RequestBuilder {
	b.req.Method = strings.ToUpper(m)
	return b
}

func (b *RequestBuilder) Get() *RequestBuilder    { return b.Method(message.MethodGet) }
func (b *RequestBuilder) Post() *RequestBuilder   { return b.Method(message.MethodPost) }
func (b *RequestBuilder) Put() *RequestBuilder    { return b.Method(message.MethodPut) }
func (b *RequestBuilder) Delete() *RequestBuilder { return b.Method(message.MethodDelete) }
func (b *RequestBuilder) Patch() *RequestBuilder  { return b.Method(message.MethodPatch) }
func (b *RequestBuilder) Head() *RequestBuilder   { return b.Method(message.MethodHead) }

// Url parses raw as an absolute URL and stores it; a parse failure is
// reported from Build.
func (b *RequestBuilder) Url(raw string) *RequestBuilder {
	u, err := wurl.Parse(raw)
	if err != nil {
		b.urlErr = err
		return b
	}
	b.req.Url = u
	return b
}

// Query appends a query parameter to the request URL.
func (b *RequestBuilder) Query(key, value string) *RequestBuilder {
	if b.req.Url != nil {
		b.req.Url.AddQuery(key, value)
	}
	return b
}

// Header sets a request header, overwriting any existing value.
func (b *RequestBuilder) Header(name, value string) *RequestBuilder {
	b.req.SetHeader(name, value)
	return b
}

// Body sets an in-memory string/byte body.
func (b *RequestBuilder) Body(data []byte) *RequestBuilder {
	b.req.Body = body.NewStringBody(data)
	return b
}

// BodyString is a convenience wrapper over Body for string payloads.
func (b *RequestBuilder) BodyString(s string) *RequestBuilder { return b.Body([]byte(s)) }

// BodyFile sets a file-streamed body (§4.3). chunkSize<=0 uses the
// default (1024 bytes).
func (b *RequestBuilder) BodyFile(path string, chunkSize int, autoDelete bool) *RequestBuilder {
	b.req.Body = body.NewFileBody(path, chunkSize, autoDelete)
	return b
}

// BodyForm sets a multipart/form-data body and records the generated
// boundary on the request for Content-Type construction in Build.
func (b *RequestBuilder) BodyForm(parts []body.FormPart) *RequestBuilder {
	fb := body.NewFormBody(parts)
	b.req.Body = fb
	b.req.FormParts = parts
	b.req.Boundary = fb.Boundary
	return b
}

func (b *RequestBuilder) MediaType(mt string) *RequestBuilder {
	b.mediaType = mt
	return b
}

func (b *RequestBuilder) Charset(cs string) *RequestBuilder {
	b.charset = cs
	return b
}

// Json is a shortcut for MediaType("application/json").
func (b *RequestBuilder) Json() *RequestBuilder { return b.MediaType("application/json") }

// Utf8 is a shortcut for Charset("utf-8").
func (b *RequestBuilder) Utf8() *RequestBuilder { return b.Charset("utf-8") }

// KeepAlive sets (or clears) the Connection header explicitly; HTTP/1.1
// already defaults to keep-alive when the header is absent (§6).
func (b *RequestBuilder) KeepAlive(v bool) *RequestBuilder {
	if v {
		b.req.SetHeader("Connection", "keep-alive")
	} else {
		b.req.SetHeader("Connection", "close")
	}
	return b
}

// AcceptGzip toggles Accept-Encoding: gzip.
func (b *RequestBuilder) AcceptGzip(v bool) *RequestBuilder {
	if v {
		b.req.SetHeader("Accept-Encoding", "gzip")
	} else {
		b.req.Headers.Del("Accept-Encoding")
	}
	return b
}

// Gzip marks the outgoing body for gzip compression in Build, subject to
// the body's own threshold (no-op under 1,400 bytes, §4.3).
func (b *RequestBuilder) Gzip(v bool) *RequestBuilder {
	b.wantGzip = v
	return b
}

// AuthBasic sets Authorization: Basic <base64(user:pass)>.
func (b *RequestBuilder) AuthBasic(user, pass string) *RequestBuilder {
	b.req.SetHeader("Authorization", "Basic "+util.Base64Encode([]byte(user+":"+pass)))
	return b
}

// AuthToken sets Authorization: Bearer <tok> (§6: "verbatim Authorization
// header", no other auth scheme support is in scope).
func (b *RequestBuilder) AuthToken(tok string) *RequestBuilder {
	b.req.SetHeader("Authorization", "Bearer "+tok)
	return b
}

// Build finalizes the request: applies Content-Type from MediaType/
// Charset, applies multipart boundary, runs gzip compression if
// requested, and calls Prepare.
func (b *RequestBuilder) Build() (*message.Request, error) {
	if b.urlErr != nil {
		return nil, b.urlErr
	}

	if b.req.IsMultipart() {
		b.req.SetHeader("Content-Type", "multipart/form-data; boundary="+b.req.Boundary)
	} else if b.mediaType != "" {
		ct := b.mediaType
		if b.charset != "" {
			ct += "; charset=" + b.charset
		}
		b.req.SetHeader("Content-Type", ct)
	}

	if b.wantGzip && b.req.Body != nil {
		if compressed, err := b.req.Body.Compress(); err == nil && compressed {
			b.req.SetHeader("Content-Encoding", "gzip")
		}
	}

	if b.req.Body != nil {
		if size, err := b.req.Body.GetSize(); err == nil {
			b.req.ContentLength = size
			b.req.SetHeader("Content-Length", strconv.FormatInt(size, 10))
		}
	} else {
		b.req.ContentLength = 0
	}

	if err := b.req.Prepare(); err != nil {
		return nil, err
	}
	return b.req, nil
}

// mimeForPath is shared with ResponseBuilder.File.
func mimeForPath(path string) string {
	ext := filepath.Ext(path)
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
