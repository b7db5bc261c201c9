package message

import (
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// ContentTypeCharset extracts the charset parameter from the Content-Type
// header and canonicalizes it against the IANA name registry (§6), so
// callers comparing against "utf-8" don't need to worry about aliases
// like "UTF8" or "unicode-1-1-utf-8". ok is false if there's no charset
// parameter or it names an encoding htmlindex doesn't recognize.
func (m *Message) ContentTypeCharset() (name string, ok bool) {
	raw := contentTypeParam(m.Headers.Get("Content-Type"), "charset")
	if raw == "" {
		return "", false
	}
	enc, err := htmlindex.Get(raw)
	if err != nil {
		return "", false
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return raw, true
	}
	return canonical, true
}

// contentTypeParam pulls a single "; name=value" parameter out of a
// Content-Type header value, unquoting it if quoted.
func contentTypeParam(ct, param string) string {
	segs := strings.Split(ct, ";")
	for _, seg := range segs[1:] {
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(k), param) {
			continue
		}
		return strings.Trim(strings.TrimSpace(v), `"`)
	}
	return ""
}
