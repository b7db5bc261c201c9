// Package webcc is a small-footprint HTTP/1.1 stack: a socket-level
// client session with connection pooling, a gnet-backed server engine
// with literal/regex routing, and the message/parser/builder plumbing
// shared between them.
package webcc

import (
	"github.com/WhileEndless/webcc/pkg/client"
	"github.com/WhileEndless/webcc/pkg/message"
	"github.com/WhileEndless/webcc/pkg/router"
	"github.com/WhileEndless/webcc/pkg/server"
	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// Version is the current version of this module.
const Version = "1.0.0"

// Re-export the types callers reach for most often, so day-to-day use
// doesn't need to import every pkg/ subpackage by hand.
type (
	// Session drives requests through a pooled client connection.
	Session = client.Session

	// Options controls a Session's timeouts and buffer sizing.
	Options = client.Options

	// Request is a parsed or to-be-sent HTTP request.
	Request = message.Request

	// Response is a parsed HTTP response or server-built reply.
	Response = message.Response

	// Router holds literal/regex routes and dispatches to a View.
	Router = router.Router

	// View is the handler contract a route dispatches to.
	View = router.View

	// Server is the gnet-backed engine that accepts connections, parses
	// requests, and dispatches them through a Router.
	Server = server.Server

	// Config controls a Server's timeouts, worker pool, and static root.
	Config = server.Config

	// Error is the structured error type returned throughout this module.
	Error = webccerr.Error
)

// NewSession returns a Session ready for Send. A zero Options uses the
// package defaults.
func NewSession(opts Options) *Session { return client.New(opts) }

// NewRouter returns an empty Router.
func NewRouter() *Router { return router.New() }

// NewServer returns a Server dispatching matched requests through r.
func NewServer(cfg Config, r *Router) *Server { return server.New(cfg, r) }

// DefaultConfig returns the Server defaults: 5s read, 10s write, 15s idle
// timeouts, 8 workers, a queue of 1024.
func DefaultConfig() Config { return server.DefaultConfig() }
