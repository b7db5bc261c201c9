package builder

import (
	"strconv"
	"time"

	"github.com/WhileEndless/webcc/pkg/body"
	"github.com/WhileEndless/webcc/pkg/message"
	"github.com/WhileEndless/webcc/pkg/util"
)

// ResponseBuilder assembles a *message.Response fluently (§6).
type ResponseBuilder struct {
	resp *message.Response

	mediaType string
	charset   string
	setDate   bool
	fileErr   error
}

// NewResponseBuilder returns a builder defaulting to 200 OK.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{resp: message.NewResponse()}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.resp.StatusCode = code
	return b
}

func (b *ResponseBuilder) OK() *ResponseBuilder             { return b.Status(200) }
func (b *ResponseBuilder) Created() *ResponseBuilder        { return b.Status(201) }
func (b *ResponseBuilder) BadRequest() *ResponseBuilder     { return b.Status(400) }
func (b *ResponseBuilder) NotFound() *ResponseBuilder       { return b.Status(404) }
func (b *ResponseBuilder) NotImplemented() *ResponseBuilder { return b.Status(501) }

// Body sets an in-memory string/byte body.
func (b *ResponseBuilder) Body(data []byte) *ResponseBuilder {
	b.resp.Body = body.NewStringBody(data)
	return b
}

// BodyString is a convenience wrapper over Body for string payloads.
func (b *ResponseBuilder) BodyString(s string) *ResponseBuilder { return b.Body([]byte(s)) }

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.resp.SetHeader(name, value)
	return b
}

func (b *ResponseBuilder) MediaType(mt string) *ResponseBuilder {
	b.mediaType = mt
	return b
}

func (b *ResponseBuilder) Charset(cs string) *ResponseBuilder {
	b.charset = cs
	return b
}

func (b *ResponseBuilder) Json() *ResponseBuilder { return b.MediaType("application/json") }
func (b *ResponseBuilder) Utf8() *ResponseBuilder { return b.Charset("utf-8") }

// Date forces the Date header to be (re)computed now, overriding whatever
// Prepare would otherwise derive.
func (b *ResponseBuilder) Date() *ResponseBuilder {
	b.setDate = true
	return b
}

// File serves path as a 200 response body, deriving the media type from
// its extension (§4.10). chunkSize<=0 uses the default; autoDelete
// follows the same semantics as body.FileBody.
func (b *ResponseBuilder) File(path string, chunkSize int, autoDelete bool) *ResponseBuilder {
	b.resp.Body = body.NewFileBody(path, chunkSize, autoDelete)
	if b.mediaType == "" {
		b.mediaType = mimeForPath(path)
	}
	return b
}

// Build finalizes the response: applies Content-Type, computes
// Content-Length from the body, and runs Prepare.
func (b *ResponseBuilder) Build() (*message.Response, error) {
	if b.fileErr != nil {
		return nil, b.fileErr
	}

	if b.mediaType != "" {
		ct := b.mediaType
		if b.charset != "" {
			ct += "; charset=" + b.charset
		}
		b.resp.SetHeader("Content-Type", ct)
	}

	if b.resp.Body != nil {
		if size, err := b.resp.Body.GetSize(); err == nil {
			b.resp.ContentLength = size
			b.resp.SetHeader("Content-Length", strconv.FormatInt(size, 10))
		}
	} else {
		b.resp.ContentLength = 0
		b.resp.SetHeader("Content-Length", "0")
	}

	if b.setDate {
		b.resp.SetHeader("Date", util.HTTPDate(time.Now()))
	}

	if err := b.resp.Prepare(); err != nil {
		return nil, err
	}
	return b.resp, nil
}
