package parser

import (
	"strconv"
	"strings"

	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// consumeChunked drives the chunked-transfer-encoding state machine
// (§4.4 step 3): chunk-size line, chunk data, trailing CRLF, repeat;
// size 0 ends the body. Trailer headers are read and discarded per the
// resolved Open Question in §9 — they are never attached to the message.
func (p *Parser) consumeChunked() (done bool, err error) {
	switch p.ph {
	case phaseChunkSize:
		line, ok, err := p.takeLine()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		sizeStr, _, _ := strings.Cut(line, ";") // chunk extensions ignored
		size, convErr := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
		if convErr != nil || size < 0 {
			return false, webccerr.NewParse("invalid chunk size: "+line, convErr)
		}
		if size == 0 {
			p.ph = phaseChunkTrailer
			return false, nil
		}
		p.chunkRemaining = size
		p.ph = phaseChunkData
		return false, nil

	case phaseChunkData:
		if len(p.pending) == 0 {
			return false, nil
		}
		n := int64(len(p.pending))
		if n > p.chunkRemaining {
			n = p.chunkRemaining
		}
		if err := p.checkBodyLimit(n); err != nil {
			return false, err
		}
		if _, err := p.bodyBuf.Write(p.pending[:n]); err != nil {
			return false, err
		}
		p.pending = p.pending[n:]
		p.chunkRemaining -= n
		if p.chunkRemaining == 0 {
			p.ph = phaseChunkCRLF
		}
		return false, nil

	case phaseChunkCRLF:
		line, ok, err := p.takeLine()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if line != "" {
			return false, webccerr.NewParse("expected CRLF after chunk data", nil)
		}
		p.ph = phaseChunkSize
		return false, nil

	case phaseChunkTrailer:
		for {
			line, ok, err := p.takeLine()
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			if line == "" {
				p.finalizeBody()
				p.ph = phaseDone
				p.finished = true
				return true, nil
			}
			// trailer header line: discarded (see §9 resolved Open Question)
		}
	}
	return false, nil
}
