// Package message implements the Request/Response types shared by the
// client and server engines: a start line, a header map, an explicit
// content-length sentinel, and a polymorphic body (§3).
package message

import (
	"github.com/WhileEndless/webcc/pkg/body"
	"github.com/WhileEndless/webcc/pkg/header"
)

// NoContentLength is the sentinel for "content length not yet known",
// distinguishing it from a legitimate zero-length body (§3).
const NoContentLength int64 = -1

// Message is the base shape of a Request or Response: a start line, a
// header map, a content length, and a body. Prepare() is implemented by
// Request and Response, not Message itself, since the invariant it
// enforces (Host vs Date) differs by direction.
type Message struct {
	StartLine     string
	Headers       *header.Map
	ContentLength int64
	Body          body.Body

	prepared bool
}

// NewMessage returns a zero-value Message with an initialized header map
// and ContentLength set to the "unknown" sentinel.
func NewMessage() Message {
	return Message{Headers: header.New(), ContentLength: NoContentLength}
}

// SetHeader sets a header, overwriting the first case-insensitive match.
func (m *Message) SetHeader(name, value string) { m.Headers.Set(name, value) }

// AddHeader appends a header without overwriting existing values.
func (m *Message) AddHeader(name, value string) { m.Headers.Add(name, value) }

// HeaderValue returns the first value for name, or "" if absent.
func (m *Message) HeaderValue(name string) string { return m.Headers.Get(name) }

// IsKeepAlive reports whether this message's Connection header (if any)
// permits keep-alive; HTTP/1.1 defaults to keep-alive when the header is
// absent (§6).
func (m *Message) IsKeepAlive() bool {
	v := m.Headers.Get("Connection")
	if v == "" {
		return true
	}
	return !header.EqualFold(v, "close")
}

// IsChunked reports whether Transfer-Encoding names chunked.
func (m *Message) IsChunked() bool {
	return header.ContainsToken(m.Headers.Get("Transfer-Encoding"), "chunked")
}

// ContentEncoding returns the Content-Encoding header value, lowercased,
// or "" if absent. No encoding is decoded automatically; the body is
// surfaced as received for the caller to handle.
func (m *Message) ContentEncoding() string {
	return header.Lower(m.Headers.Get("Content-Encoding"))
}

// Prepared reports whether Prepare has already run, so a repeated call
// (e.g. on a pooled, reused builder) is a safe no-op.
func (m *Message) Prepared() bool { return m.prepared }

// markPrepared is called by Request.Prepare/Response.Prepare once the
// start line and direction-specific required header are set.
func (m *Message) markPrepared() { m.prepared = true }
