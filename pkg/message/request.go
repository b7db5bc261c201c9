package message

import (
	"strings"

	"github.com/WhileEndless/webcc/pkg/body"
	"github.com/WhileEndless/webcc/pkg/webccerr"
	"github.com/WhileEndless/webcc/pkg/wurl"
)

// Supported methods (§6).
const (
	MethodGet    = "GET"
	MethodHead   = "HEAD"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
	MethodPatch  = "PATCH"
)

// Request is an HTTP request message: a Message plus method, URL, and the
// multipart bookkeeping used when Body is a *body.FormBody (§3).
type Request struct {
	Message

	Method    string
	Url       *wurl.URL
	FormParts []body.FormPart
	Boundary  string

	// PathArgs holds a regex route's capture groups, in order, populated
	// by the server/router before View.Handle runs (§4.7); nil for a
	// literal route or a client-built request.
	PathArgs []string
}

// NewRequest returns a zero Request with an initialized header map.
func NewRequest() *Request {
	return &Request{Message: NewMessage()}
}

// RequestLine renders the request line ("GET /path HTTP/1.1").
func (r *Request) RequestLine() string {
	target := "/"
	if r.Url != nil {
		target = r.Url.RequestTarget()
	}
	return r.Method + " " + target + " HTTP/1.1"
}

// Prepare enforces the Request invariant from §3: the start line is set
// and Host is present, derived from the URL if not already set. Calling
// Prepare twice is a safe no-op.
func (r *Request) Prepare() error {
	if r.Prepared() {
		return nil
	}
	if r.Url == nil || r.Url.Host == "" {
		return webccerr.NewState("prepare", "request host is empty")
	}
	if r.Method == "" {
		r.Method = MethodGet
	}
	r.StartLine = r.RequestLine()
	if !r.Headers.Has("Host") {
		r.Headers.Set("Host", r.Url.HostPort())
	}
	r.markPrepared()
	return nil
}

// IsMultipart reports whether this request carries a multipart/form-data
// body (form parts present).
func (r *Request) IsMultipart() bool { return len(r.FormParts) > 0 }

// ContentTypeBoundary extracts the multipart boundary parameter from the
// Content-Type header, or "" if the header is absent or has none.
func (r *Request) ContentTypeBoundary() string {
	ct := r.Headers.Get("Content-Type")
	idx := strings.Index(ct, "boundary=")
	if idx < 0 {
		return ""
	}
	b := ct[idx+len("boundary="):]
	if semi := strings.IndexByte(b, ';'); semi >= 0 {
		b = b[:semi]
	}
	return strings.Trim(strings.TrimSpace(b), `"`)
}
