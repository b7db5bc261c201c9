package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func parseInOneShot(t *testing.T, mode Mode, raw []byte, stream bool) *Parser {
	t.Helper()
	p := New(mode)
	p.Init(stream, nil)
	if err := p.Parse(raw); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !p.Finished() {
		t.Fatalf("expected parser to finish in one shot")
	}
	return p
}

func parseInChunks(t *testing.T, mode Mode, raw []byte, chunkSize int, stream bool) *Parser {
	t.Helper()
	p := New(mode)
	p.Init(stream, nil)
	for i := 0; i < len(raw); i += chunkSize {
		end := i + chunkSize
		if end > len(raw) {
			end = len(raw)
		}
		if err := p.Parse(raw[i:end]); err != nil {
			t.Fatalf("parse chunk [%d:%d]: %v", i, end, err)
		}
	}
	if !p.Finished() {
		t.Fatalf("expected parser to finish after feeding all chunks")
	}
	return p
}

func TestParserFixedLengthRequest(t *testing.T) {
	raw := []byte("POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello")
	p := parseInOneShot(t, ModeRequest, raw, false)

	if p.Method != "POST" || p.RequestURI != "/submit" {
		t.Fatalf("unexpected start line: %q %q", p.Method, p.RequestURI)
	}
	if p.Headers.Get("Host") != "example.com" {
		t.Fatalf("expected Host header")
	}

	chunks, err := readAllPayload(p.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(chunks) != "hello" {
		t.Fatalf("expected body 'hello', got %q", chunks)
	}
}

func TestParserFixedLengthByteAtATime(t *testing.T) {
	raw := []byte("POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello")
	p := parseInChunks(t, ModeRequest, raw, 1, false)

	chunks, err := readAllPayload(p.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(chunks) != "hello" {
		t.Fatalf("expected body 'hello', got %q", chunks)
	}
}

func TestParserEmptyBodyContentLengthZero(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nHost: example.com\r\nContent-Length: 0\r\n\r\n")
	p := parseInOneShot(t, ModeRequest, raw, false)

	chunks, err := readAllPayload(p.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected empty body, got %q", chunks)
	}
}

func TestParserChunkedBodyVariousSplits(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n")

	for _, size := range []int{1, 2, 3, 7, 1000} {
		p := parseInChunks(t, ModeResponse, raw, size, false)
		require.Equalf(t, 200, p.StatusCode, "chunk size %d", size)
		data, err := readAllPayload(p.Body)
		require.NoErrorf(t, err, "chunk size %d: read body", size)
		require.Equalf(t, "Wikipedia", string(data), "chunk size %d", size)
	}
}

func TestParserChunkedTrailersDiscarded(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nfoo\r\n0\r\nX-Trailer: ignored\r\n\r\n")
	p := parseInOneShot(t, ModeResponse, raw, false)

	if p.Headers.Has("X-Trailer") {
		t.Fatalf("expected trailer header to be discarded, not attached")
	}
	data, err := readAllPayload(p.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "foo" {
		t.Fatalf("expected 'foo', got %q", data)
	}
}

func TestParserMultipartFormData(t *testing.T) {
	boundary := "XBOUNDARY"
	raw := []byte("POST /upload HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Type: multipart/form-data; boundary=" + boundary + "\r\n" +
		"\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"field1\"\r\n\r\n" +
		"value1\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"file1\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"file contents\r\n" +
		"--" + boundary + "--\r\n")

	for _, size := range []int{1, 5, 4096} {
		p := parseInChunks(t, ModeRequest, raw, size, false)
		if len(p.FormParts) != 2 {
			t.Fatalf("chunk size %d: expected 2 form parts, got %d", size, len(p.FormParts))
		}
		if p.FormParts[0].Name != "field1" || string(p.FormParts[0].Data) != "value1" {
			t.Fatalf("chunk size %d: unexpected part 0: %+v", size, p.FormParts[0])
		}
		if p.FormParts[1].Name != "file1" || p.FormParts[1].Filename != "a.txt" ||
			string(p.FormParts[1].Data) != "file contents" {
			t.Fatalf("chunk size %d: unexpected part 1: %+v", size, p.FormParts[1])
		}
	}
}

func TestParserResponseStatusLine(t *testing.T) {
	raw := []byte("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n")
	p := parseInOneShot(t, ModeResponse, raw, false)
	if p.StatusCode != 404 || p.Reason != "Not Found" {
		t.Fatalf("unexpected status line: %d %q", p.StatusCode, p.Reason)
	}
}

func TestParserHeaderBlockExceedsMax(t *testing.T) {
	p := New(ModeRequest)
	p.SetMaxHeaderBytes(16)
	p.Init(false, nil)
	err := p.Parse([]byte("GET / HTTP/1.1\r\nX-Long-Header-Name: some long value\r\n\r\n"))
	if err == nil {
		t.Fatalf("expected header-too-large error")
	}
}

// readAllPayload drains a body.Body's NextPayload loop into a single slice.
func readAllPayload(b interface {
	InitPayload() error
	NextPayload(bool) ([][]byte, error)
}) ([]byte, error) {
	if err := b.InitPayload(); err != nil {
		return nil, err
	}
	var out []byte
	for {
		chunks, err := b.NextPayload(false)
		if err != nil {
			return nil, err
		}
		if chunks == nil {
			break
		}
		for _, c := range chunks {
			out = append(out, c...)
		}
	}
	return out, nil
}
