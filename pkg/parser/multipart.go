package parser

import (
	"bytes"
	"strings"

	"github.com/WhileEndless/webcc/pkg/body"
	"github.com/WhileEndless/webcc/pkg/header"
)

// multipartState holds the boundary markers and in-progress part for
// request bodies with Content-Type: multipart/form-data (§4.4 step 4,
// request only).
type multipartState struct {
	dashBoundary string
	closeDelim   string
	current      *body.FormPart
}

func newMultipartState(boundary string) *multipartState {
	return &multipartState{
		dashBoundary: "--" + boundary,
		closeDelim:   "--" + boundary + "--",
	}
}

// consumeMultipart drives the preamble/part-headers/part-data state
// machine. Locating `--<boundary>` lines and attaching each completed
// part to FormParts as it's read (§4.4 step 4).
func (p *Parser) consumeMultipart() (done bool, err error) {
	switch p.ph {
	case phaseMultipartPreamble:
		line, ok, perr := p.takeLine()
		if perr != nil {
			return false, perr
		}
		if !ok {
			return false, nil
		}
		switch line {
		case p.mp.dashBoundary:
			p.mp.current = &body.FormPart{}
			p.ph = phaseMultipartHeaders
		case p.mp.closeDelim:
			p.finishMultipart()
			return true, nil
		}
		// any other line before the first boundary is preamble text,
		// discarded per RFC 7578.
		return false, nil

	case phaseMultipartHeaders:
		for {
			line, ok, perr := p.takeLine()
			if perr != nil {
				return false, perr
			}
			if !ok {
				return false, nil
			}
			if line == "" {
				p.ph = phaseMultipartData
				return false, nil
			}
			name, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			switch header.Lower(name) {
			case "content-disposition":
				p.mp.current.Name, p.mp.current.Filename = parseContentDisposition(value)
			case "content-type":
				mt, _, _ := parseContentType(value)
				p.mp.current.MediaType = mt
			}
		}

	case phaseMultipartData:
		return p.consumeMultipartData()
	}
	return false, nil
}

func (p *Parser) consumeMultipartData() (done bool, err error) {
	closeMarker := []byte("\r\n" + p.mp.closeDelim)
	contMarker := []byte("\r\n" + p.mp.dashBoundary + "\r\n")

	idxClose := bytes.Index(p.pending, closeMarker)
	idxCont := bytes.Index(p.pending, contMarker)

	idx, isClose := -1, false
	switch {
	case idxClose >= 0 && (idxCont < 0 || idxClose <= idxCont):
		idx, isClose = idxClose, true
	case idxCont >= 0:
		idx, isClose = idxCont, false
	default:
		return false, nil // marker not fully buffered yet; wait for more data
	}

	p.mp.current.Data = append(p.mp.current.Data, p.pending[:idx]...)
	p.FormParts = append(p.FormParts, *p.mp.current)

	if isClose {
		p.pending = p.pending[idx+len(closeMarker):]
		p.finishMultipart()
		return true, nil
	}

	p.pending = p.pending[idx+len(contMarker):]
	p.mp.current = &body.FormPart{}
	p.ph = phaseMultipartHeaders
	return false, nil
}

func (p *Parser) finishMultipart() {
	p.Body = body.NewFormBody(p.FormParts)
	p.ph = phaseDone
	p.finished = true
}

// parseContentDisposition extracts name/filename from a
// `form-data; name="x"; filename="y"` Content-Disposition value.
func parseContentDisposition(v string) (name, filename string) {
	segs := strings.Split(v, ";")
	for _, seg := range segs[1:] {
		k, val, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		val = strings.Trim(strings.TrimSpace(val), `"`)
		switch k {
		case "name":
			name = val
		case "filename":
			filename = val
		}
	}
	return name, filename
}
