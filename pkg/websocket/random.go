package websocket

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/WhileEndless/webcc/pkg/webccerr"
)

func randomBytes(buf []byte) error {
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return webccerr.NewData("failed to generate random bytes: " + err.Error())
	}
	return nil
}

// newSecWebSocketKey returns the base64-encoded 16 random bytes the
// handshake sends as Sec-WebSocket-Key (§4.9).
func newSecWebSocketKey() (string, error) {
	var b [16]byte
	if err := randomBytes(b[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b[:]), nil
}
