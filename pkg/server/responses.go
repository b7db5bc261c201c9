package server

import (
	"github.com/WhileEndless/webcc/pkg/builder"
	"github.com/WhileEndless/webcc/pkg/message"
)

// notFound, serviceUnavailable, and internalServerError are the
// engine's own fallback responses (§4.6: "otherwise 404"; a full worker
// queue gets a 503). They never run Build's error path (a literal
// status/body can't fail), so the error is discarded.
func notFound() *message.Response {
	resp, _ := builder.NewResponseBuilder().NotFound().
		BodyString("404 not found").MediaType("text/plain").Utf8().Build()
	return resp
}

func serviceUnavailable() *message.Response {
	resp, _ := builder.NewResponseBuilder().Status(503).
		BodyString("503 service unavailable").MediaType("text/plain").Utf8().Build()
	return resp
}

func internalServerError() *message.Response {
	resp, _ := builder.NewResponseBuilder().Status(500).
		BodyString("500 internal server error").MediaType("text/plain").Utf8().Build()
	return resp
}

// internalServerErrorFor is used when a view itself failed; the
// underlying error is not echoed to the client (§7: server errors don't
// leak internals), only logged by the caller if it chooses to.
func internalServerErrorFor(err error) *message.Response {
	return internalServerError()
}
