// Package server implements the two-actor-plus-worker-pool engine of
// §4.6: a gnet Acceptor/per-connection reader feeding the incremental
// parser, and a bounded worker pool that runs matched views off the IO
// thread and posts responses back via gnet's connection-safe AsyncWrite.
package server

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/WhileEndless/webcc/pkg/router"
)

// Config controls a Server's timeouts, worker pool size, and static file
// root, in the teacher's plain-struct Config/DefaultConfig style.
type Config struct {
	// ReadTimeout and WriteTimeout are defaulted by normalize but are not
	// applied by Server: no deadline bounds reading a request or writing
	// a response.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// IdleTimeout is passed to gnet as the TCP keep-alive period of
	// accepted connections; it does not close an idle connection.
	IdleTimeout time.Duration

	// Multicore enables gnet's multi-loop event engine.
	Multicore bool

	// WorkerCount is the number of worker goroutines dequeuing matched
	// requests (§4.6's worker pool); DefaultWorkerCount if <= 0.
	WorkerCount int
	// QueueSize bounds the worker queue; a full queue gets a 503
	// response written inline from the IO thread (§4.6: "bounded worker
	// queue").
	QueueSize int

	MaxHeaderBytes int64
	MaxBodyBytes   int64

	// DocRoot enables static file serving under this directory when no
	// view matches (§4.6); empty disables it.
	DocRoot string

	// RateLimit, if set, admission-gates the worker queue: a request
	// whose token would take longer than RateLimitWait to become
	// available is rejected with a 503 before it ever reaches a worker
	// (§4.12). Nil disables rate limiting.
	RateLimit     *rate.Limiter
	RateLimitWait time.Duration
}

// DefaultWorkerCount is used when Config.WorkerCount is unset.
const DefaultWorkerCount = 8

// DefaultQueueSize is used when Config.QueueSize is unset.
const DefaultQueueSize = 1024

// DefaultConfig returns sensible defaults: 5s read, 10s write, 15s idle
// timeouts, 8 workers, a queue of 1024, matching the teacher's
// DefaultConfig timeout values.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    15 * time.Second,
		Multicore:      true,
		WorkerCount:    DefaultWorkerCount,
		QueueSize:      DefaultQueueSize,
		MaxHeaderBytes: 64 * 1024,
	}
}

// normalize fills in zero-valued fields with their defaults.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = d.MaxHeaderBytes
	}
	return c
}

// Router exposes route registration, mirroring the teacher's
// Server.Router() accessor.
func (s *Server) Router() *router.Router { return s.router }
