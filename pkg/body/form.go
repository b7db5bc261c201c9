package body

import (
	"fmt"
	"os"

	"github.com/WhileEndless/webcc/pkg/util"
	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// FormPart is a single multipart/form-data part (§3). Data holds an
// in-memory buffer, or if nil and Path is set, the bytes are read from
// disk lazily on first payload emission.
type FormPart struct {
	Name      string
	Filename  string
	MediaType string
	Data      []byte
	Path      string
}

func (p *FormPart) bytes() ([]byte, error) {
	if p.Data != nil {
		return p.Data, nil
	}
	if p.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, webccerr.NewFile("read-part", err)
	}
	return data, nil
}

func (p *FormPart) header() []byte {
	disp := fmt.Sprintf(`Content-Disposition: form-data; name="%s"`, p.Name)
	if p.Filename != "" {
		disp += fmt.Sprintf(`; filename="%s"`, p.Filename)
	}
	mt := p.MediaType
	if mt == "" {
		if p.Filename != "" {
			mt = "application/octet-stream"
		} else {
			mt = "text/plain"
		}
	}
	return []byte(disp + "\r\nContent-Type: " + mt + "\r\n\r\n")
}

// FormBody is a multipart/form-data body yielding boundary lines, part
// headers, part data, and CRLF for each part, then the closing boundary
// (§3/§4.3).
type FormBody struct {
	Parts    []FormPart
	Boundary string

	idx   int
	stage int // 0=boundary+header+data+crlf emitted as one chunk per part, 1=closing boundary, 2=done
}

// NewFormBody builds a FormBody with a fresh random 30-char boundary (§6).
func NewFormBody(parts []FormPart) *FormBody {
	return &FormBody{Parts: parts, Boundary: util.RandomASCII(30)}
}

func (b *FormBody) partFrame(i int) ([]byte, error) {
	p := &b.Parts[i]
	data, err := p.bytes()
	if err != nil {
		return nil, err
	}
	var out []byte
	out = append(out, []byte("--"+b.Boundary+"\r\n")...)
	out = append(out, p.header()...)
	out = append(out, data...)
	out = append(out, []byte("\r\n")...)
	return out, nil
}

func (b *FormBody) GetSize() (int64, error) {
	var total int64
	for i := range b.Parts {
		frame, err := b.partFrame(i)
		if err != nil {
			return 0, err
		}
		total += int64(len(frame))
	}
	total += int64(len("--" + b.Boundary + "--\r\n"))
	return total, nil
}

func (b *FormBody) InitPayload() error {
	b.idx = 0
	b.stage = 0
	return nil
}

func (b *FormBody) NextPayload(freePrevious bool) ([][]byte, error) {
	if b.stage == 2 {
		return nil, nil
	}
	if b.idx < len(b.Parts) {
		frame, err := b.partFrame(b.idx)
		if err != nil {
			return nil, err
		}
		b.idx++
		return [][]byte{frame}, nil
	}
	if b.stage == 0 {
		b.stage = 1
		return [][]byte{[]byte("--" + b.Boundary + "--\r\n")}, nil
	}
	b.stage = 2
	return nil, nil
}

// Form bodies are never compressed (§4.3 names compression as string-body
// only).
func (b *FormBody) Compress() (bool, error) { return false, nil }
func (b *FormBody) Decompress() error       { return webccerr.NewData("form body is never compressed") }
func (b *FormBody) Close() error            { return nil }
