package body

import (
	"io"
	"os"

	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// DefaultChunkSize is the default per-NextPayload read size for a FileBody
// (§4.3).
const DefaultChunkSize = 1024

// FileBody streams a file from disk in fixed-size chunks. It re-opens the
// file on every InitPayload so a send can be retried (§4.3), and removes
// the file on Close when AutoDelete is set (§5).
type FileBody struct {
	path       string
	chunkSize  int
	autoDelete bool

	f *os.File
}

// NewFileBody creates a FileBody over path with the given chunk size
// (<=0 uses DefaultChunkSize).
func NewFileBody(path string, chunkSize int, autoDelete bool) *FileBody {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FileBody{path: path, chunkSize: chunkSize, autoDelete: autoDelete}
}

func (b *FileBody) GetSize() (int64, error) {
	if b.path == "" {
		return 0, webccerr.NewFile("stat", os.ErrNotExist)
	}
	fi, err := os.Stat(b.path)
	if err != nil {
		return 0, webccerr.NewFile("stat", err)
	}
	return fi.Size(), nil
}

func (b *FileBody) InitPayload() error {
	if b.f != nil {
		b.f.Close()
		b.f = nil
	}
	if b.path == "" {
		return webccerr.NewFile("open", os.ErrNotExist)
	}
	f, err := os.Open(b.path)
	if err != nil {
		return webccerr.NewFile("open", err)
	}
	b.f = f
	return nil
}

func (b *FileBody) NextPayload(freePrevious bool) ([][]byte, error) {
	if b.f == nil {
		return nil, webccerr.NewState("next-payload", "file body not initialized")
	}
	buf := make([]byte, b.chunkSize)
	n, err := b.f.Read(buf)
	if n > 0 {
		return [][]byte{buf[:n]}, nil
	}
	if err == io.EOF || err == nil {
		return nil, nil
	}
	return nil, webccerr.NewFile("read", err)
}

func (b *FileBody) Compress() (bool, error) { return false, nil }
func (b *FileBody) Decompress() error       { return webccerr.NewData("file body is never compressed") }

// Move closes any open handle, renames the backing file to newPath, and
// clears the stored path so subsequent reads fail cleanly (§4.3).
func (b *FileBody) Move(newPath string) error {
	if b.f != nil {
		b.f.Close()
		b.f = nil
	}
	if b.path == "" {
		return webccerr.NewFile("move", os.ErrNotExist)
	}
	if err := os.Rename(b.path, newPath); err != nil {
		return webccerr.NewFile("move", err)
	}
	b.path = ""
	b.autoDelete = false
	return nil
}

// Path returns the current backing path, or "" after Move or after a
// Close that auto-deleted the file.
func (b *FileBody) Path() string { return b.path }

// Close closes any open handle and, if AutoDelete is set, removes the
// backing file. Idempotent.
func (b *FileBody) Close() error {
	if b.f != nil {
		b.f.Close()
		b.f = nil
	}
	if b.autoDelete && b.path != "" {
		path := b.path
		b.path = ""
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return webccerr.NewFile("remove", err)
		}
	}
	return nil
}
