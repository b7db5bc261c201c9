package body

import (
	"os"
	"testing"
)

func TestStringBodyNextPayloadOnce(t *testing.T) {
	b := NewStringBody([]byte("hello"))
	if err := b.InitPayload(); err != nil {
		t.Fatalf("init: %v", err)
	}

	chunks, err := b.NextPayload(false)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(chunks) != 1 || string(chunks[0]) != "hello" {
		t.Fatalf("expected [hello], got %v", chunks)
	}

	chunks, err = b.NextPayload(false)
	if err != nil {
		t.Fatalf("next (exhausted): %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected exhausted body to return nil, got %v", chunks)
	}
}

func TestStringBodyEmptyIsExhaustedImmediately(t *testing.T) {
	b := NewStringBody(nil)
	if err := b.InitPayload(); err != nil {
		t.Fatalf("init: %v", err)
	}
	chunks, err := b.NextPayload(false)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected empty body to yield nothing, got %v", chunks)
	}
}

func TestStringBodyCompressBelowThresholdIsNoop(t *testing.T) {
	b := NewStringBody([]byte("short"))
	compressed, err := b.Compress()
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if compressed {
		t.Fatalf("expected no-op below gzipThreshold")
	}
}

func TestStringBodyCompressDecompressRoundTrip(t *testing.T) {
	payload := make([]byte, gzipThreshold+100)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	b := NewStringBody(payload)
	compressed, err := b.Compress()
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if !compressed {
		t.Fatalf("expected compression above threshold")
	}
	if !b.IsCompressed() {
		t.Fatalf("expected IsCompressed true")
	}

	if err := b.Decompress(); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(b.Bytes()) != string(payload) {
		t.Fatalf("round trip mismatch")
	}
}

func TestStringBodyDecompressWithoutCompressErrors(t *testing.T) {
	b := NewStringBody([]byte("plain"))
	if err := b.Decompress(); err == nil {
		t.Fatalf("expected error decompressing an uncompressed body")
	}
}

func TestFormBodyFramesAndClosingBoundary(t *testing.T) {
	parts := []FormPart{
		{Name: "field1", Data: []byte("value1")},
		{Name: "file1", Filename: "a.txt", MediaType: "text/plain", Data: []byte("contents")},
	}
	fb := NewFormBody(parts)
	if err := fb.InitPayload(); err != nil {
		t.Fatalf("init: %v", err)
	}

	var all []byte
	for {
		chunks, err := fb.NextPayload(false)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if chunks == nil {
			break
		}
		for _, c := range chunks {
			all = append(all, c...)
		}
	}

	want := "--" + fb.Boundary + "--\r\n"
	if string(all[len(all)-len(want):]) != want {
		t.Fatalf("expected closing boundary suffix %q, got tail %q", want, all[len(all)-len(want):])
	}

	size, err := fb.GetSize()
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != int64(len(all)) {
		t.Fatalf("GetSize()=%d but emitted %d bytes", size, len(all))
	}
}

func TestFileBodyReadsInChunks(t *testing.T) {
	f, err := os.CreateTemp("", "webcc-filebody-test-*")
	if err != nil {
		t.Fatalf("tempfile: %v", err)
	}
	path := f.Name()
	defer os.Remove(path)

	data := make([]byte, 10)
	for i := range data {
		data[i] = byte('a' + i)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	fb := NewFileBody(path, 4, false)
	if err := fb.InitPayload(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer fb.Close()

	var got []byte
	for {
		chunks, err := fb.NextPayload(false)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if chunks == nil {
			break
		}
		got = append(got, chunks[0]...)
	}

	if string(got) != string(data) {
		t.Fatalf("expected %q, got %q", data, got)
	}
}

func TestFileBodyAutoDeleteOnClose(t *testing.T) {
	f, err := os.CreateTemp("", "webcc-filebody-autodelete-*")
	if err != nil {
		t.Fatalf("tempfile: %v", err)
	}
	path := f.Name()
	f.Close()

	fb := NewFileBody(path, 0, true)
	if err := fb.InitPayload(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := fb.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err=%v", err)
	}
}

func TestFileBodyMoveClearsPath(t *testing.T) {
	f, err := os.CreateTemp("", "webcc-filebody-move-*")
	if err != nil {
		t.Fatalf("tempfile: %v", err)
	}
	path := f.Name()
	f.Close()
	newPath := path + ".moved"
	defer os.Remove(newPath)

	fb := NewFileBody(path, 0, false)
	if err := fb.Move(newPath); err != nil {
		t.Fatalf("move: %v", err)
	}
	if fb.Path() != "" {
		t.Fatalf("expected path cleared after move")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected renamed file to exist: %v", err)
	}
}
