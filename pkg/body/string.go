package body

import (
	"github.com/WhileEndless/webcc/pkg/util"
	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// StringBody is an in-memory body that yields its whole buffer in one
// NextPayload call (§4.3).
type StringBody struct {
	data       []byte
	compressed bool
	emitted    bool
}

// NewStringBody wraps data as a StringBody.
func NewStringBody(data []byte) *StringBody {
	return &StringBody{data: data}
}

func (b *StringBody) GetSize() (int64, error) { return int64(len(b.data)), nil }

func (b *StringBody) InitPayload() error {
	b.emitted = false
	return nil
}

func (b *StringBody) NextPayload(freePrevious bool) ([][]byte, error) {
	if b.emitted {
		return nil, nil
	}
	b.emitted = true
	if len(b.data) == 0 {
		return nil, nil
	}
	return [][]byte{b.data}, nil
}

func (b *StringBody) Compress() (bool, error) {
	if b.compressed || len(b.data) < gzipThreshold {
		return false, nil
	}
	out, err := util.Gzip(b.data)
	if err != nil {
		return false, webccerr.NewData("gzip compress failed: " + err.Error())
	}
	b.data = out
	b.compressed = true
	return true, nil
}

func (b *StringBody) Decompress() error {
	if !b.compressed {
		return webccerr.NewData("body was not compressed")
	}
	out, err := util.Gunzip(b.data)
	if err != nil {
		return webccerr.NewData("gzip decompress failed: " + err.Error())
	}
	b.data = out
	b.compressed = false
	return nil
}

func (b *StringBody) Close() error { return nil }

// Bytes returns the current (possibly still-compressed) contents.
func (b *StringBody) Bytes() []byte { return b.data }

// IsCompressed reports whether Compress has successfully run.
func (b *StringBody) IsCompressed() bool { return b.compressed }
