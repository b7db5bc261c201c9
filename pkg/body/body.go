// Package body implements the polymorphic Body variant described in §3/§4.3:
// a string body, a multipart/form-data body, and a file-streamed body, all
// satisfying the same payload-enumeration contract so the parser, the
// client engine, and the server engine can drive any of them identically.
package body

// Body is the capability every message body implements. The spec frames
// this as either a tagged variant or a small capability interface,
// preferring the variant "where payload-enumeration is a hot loop" (§9) —
// webcc uses a Go interface with three concrete implementations, since Go
// has no tagged-union sugar and an interface keeps NextPayload's hot loop
// a single virtual call instead of a type switch per iteration.
type Body interface {
	// GetSize returns the exact number of bytes this body will place on
	// the wire, including any internal framing (boundaries, chunk
	// headers are NOT included — those are the parser/framer's job; this
	// is only the body's own framing, e.g. multipart boundaries).
	GetSize() (int64, error)

	// InitPayload prepares iteration state: resets the read index, and
	// for a file body (re)opens the backing file, since a send may be
	// retried (§4.3).
	InitPayload() error

	// NextPayload returns the next scatter-gather chunk of buffers to
	// write. An empty (nil) return means the body is exhausted.
	// freePrevious hints that the caller is done with the buffers
	// returned by the previous call and they may be reused/released.
	NextPayload(freePrevious bool) ([][]byte, error)

	// Compress gzip-compresses the body in place where supported (string
	// bodies only) and reports whether compression actually happened —
	// it is a no-op below gzipThreshold bytes (§4.3).
	Compress() (bool, error)

	// Decompress reverses Compress. It is an error to call this on a
	// body that was never marked compressed.
	Decompress() error

	// Close releases any resource the body holds: an open file handle,
	// a spilled temp buffer. Idempotent.
	Close() error
}

// gzipThreshold is the minimum payload size worth compressing (§4.3).
const gzipThreshold = 1400
