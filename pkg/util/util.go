// Package util collects the small stateless helpers shared across webcc:
// timestamp formatting, random ASCII generation (temp file names, multipart
// boundaries), base64, and the gzip wrapper used by pkg/body.
package util

import (
	"bytes"
	"compress/gzip"
	"crypto/rand"
	"encoding/base64"
	"io"
	"time"
)

// HTTPDate formats t the way the Date response header requires (RFC 7231
// §7.1.1.1, same format as net/http.TimeFormat).
func HTTPDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

const asciiAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomASCII returns a random string of n characters drawn from an
// alphanumeric alphabet, used for multipart boundaries (30 chars, §6) and
// temp file names (10 chars, §5).
func RandomASCII(n int) string {
	buf := make([]byte, n)
	idx := make([]byte, n)
	if _, err := rand.Read(idx); err != nil {
		// crypto/rand failing means the system entropy source is broken;
		// fall back to a time-seeded pattern rather than panicking.
		for i := range idx {
			idx[i] = byte(time.Now().UnixNano() >> uint(i%8))
		}
	}
	for i, b := range idx {
		buf[i] = asciiAlphabet[int(b)%len(asciiAlphabet)]
	}
	return string(buf)
}

// RandomBytes returns n cryptographically random bytes. (pkg/websocket
// draws its masking keys and Sec-WebSocket-Key from its own helper.)
func RandomBytes(n int) []byte {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return buf
}

// Base64Encode / Base64Decode are thin wrappers kept so call sites don't
// import encoding/base64 directly, matching the spec's treating of base64
// as a named utility (§2, "Utility: ... base64").
func Base64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func Base64Decode(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// Gzip compresses src using the stdlib compress/gzip writer. No suitable
// third-party gzip implementation exists across the pack or teacher (the
// pack's dependencies stop at HTTP/transport/websocket layers; none embeds a
// gzip codec), so this is one of the few ambient concerns left on the
// standard library, per DESIGN.md.
func Gzip(src []byte) ([]byte, error) {
	var out bytes.Buffer
	w := gzip.NewWriter(&out)
	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Gunzip decompresses src.
func Gunzip(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
