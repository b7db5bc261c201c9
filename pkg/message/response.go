package message

import (
	"strconv"
	"time"

	"github.com/WhileEndless/webcc/pkg/util"
)

// conventionalReason maps common status codes to their RFC 7231 reason
// phrase, used by Prepare when the caller didn't set one (§3).
var conventionalReason = map[int]string{
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	413: "Payload Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

// Response is an HTTP response message: a Message plus status code and
// reason phrase (§3).
type Response struct {
	Message

	StatusCode int
	Reason     string

	// ConnMeta is populated by the client engine after a successful send;
	// nil on server-built responses (§3 EXPANSION: ConnMeta).
	ConnMeta *ConnMeta
}

// NewResponse returns a zero Response with an initialized header map.
func NewResponse() *Response {
	return &Response{Message: NewMessage()}
}

// StatusLine renders the status line ("HTTP/1.1 200 OK").
func (r *Response) StatusLine() string {
	return "HTTP/1.1 " + strconv.Itoa(r.StatusCode) + " " + r.Reason
}

// Prepare enforces the Response invariant from §3: the start line is set,
// a conventional reason phrase is derived if none was supplied, and Date
// is present if not already set. Calling Prepare twice is a safe no-op.
func (r *Response) Prepare() error {
	if r.Prepared() {
		return nil
	}
	if r.StatusCode == 0 {
		r.StatusCode = 200
	}
	if r.Reason == "" {
		if reason, ok := conventionalReason[r.StatusCode]; ok {
			r.Reason = reason
		} else {
			r.Reason = "Unknown"
		}
	}
	r.StartLine = r.StatusLine()
	if !r.Headers.Has("Date") {
		r.Headers.Set("Date", util.HTTPDate(time.Now()))
	}
	r.markPrepared()
	return nil
}

// ConnMeta carries client-side connection metadata surfaced on a Response
// (§3 EXPANSION), grounded on the teacher's Response connection-metadata
// fields minus the proxy-specific ones (dropped as a Non-goal, §1).
type ConnMeta struct {
	ConnectedIP      string
	ConnectedPort    int
	LocalAddr        string
	RemoteAddr       string
	ConnectionID     uint64
	TLSVersion       string
	TLSCipherSuite   string
	TLSServerName    string
	ConnectionReused bool
}
