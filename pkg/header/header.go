// Package header implements the ordered, case-insensitive header map
// described in §3/§4.2.
package header

import "golang.org/x/net/http/httpguts"

// field is a single stored (name, value) pair, keeping the name's original
// case for on-wire serialization while lookups compare case-insensitively.
type field struct {
	name  string
	value string
}

// Map is an ordered list of header fields with case-insensitive lookup.
// Zero value is ready to use.
type Map struct {
	fields []field
}

// New returns an empty, ready-to-use Map.
func New() *Map { return &Map{} }

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func (m *Map) indexOf(name string) int {
	for i, f := range m.fields {
		if eqFold(f.name, name) {
			return i
		}
	}
	return -1
}

// Set overwrites the first case-insensitive match for name, or appends a
// new field if none exists (§4.2).
func (m *Map) Set(name, value string) {
	if i := m.indexOf(name); i >= 0 {
		m.fields[i].value = value
		return
	}
	m.fields = append(m.fields, field{name: name, value: value})
}

// Add always appends, preserving same-name ordering for repeated headers
// (the only way duplicates are created, per §3).
func (m *Map) Add(name, value string) {
	m.fields = append(m.fields, field{name: name, value: value})
}

// Get returns the first case-insensitive match, or "" if absent — the
// "sentinel empty view" named in §4.2.
func (m *Map) Get(name string) string {
	if i := m.indexOf(name); i >= 0 {
		return m.fields[i].value
	}
	return ""
}

// Values returns every value stored under name, in insertion order.
func (m *Map) Values(name string) []string {
	var out []string
	for _, f := range m.fields {
		if eqFold(f.name, name) {
			out = append(out, f.value)
		}
	}
	return out
}

// Has reports whether name is present, case-insensitively.
func (m *Map) Has(name string) bool { return m.indexOf(name) >= 0 }

// Del removes every field matching name, case-insensitively.
func (m *Map) Del(name string) {
	out := m.fields[:0]
	for _, f := range m.fields {
		if !eqFold(f.name, name) {
			out = append(out, f)
		}
	}
	m.fields = out
}

// Each calls fn for every field in insertion order.
func (m *Map) Each(fn func(name, value string)) {
	for _, f := range m.fields {
		fn(f.name, f.value)
	}
}

// Len returns the number of stored fields (counting duplicates).
func (m *Map) Len() int { return len(m.fields) }

// Valid reports whether name/value are well-formed HTTP header tokens,
// delegating to the same validation stdlib's net/http uses internally
// (golang.org/x/net/http/httpguts, the teacher's only third-party import
// besides http2/proxy — see DESIGN.md).
func Valid(name, value string) bool {
	return httpguts.ValidHeaderFieldName(name) && httpguts.ValidHeaderFieldValue(value)
}

// EqualFold reports whether a and b are equal ignoring ASCII case, the
// same comparison Map uses internally for name lookups.
func EqualFold(a, b string) bool { return eqFold(a, b) }

// Lower returns s with ASCII letters folded to lowercase.
func Lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// ContainsToken reports whether value contains token as one of its
// comma-separated, whitespace-trimmed entries, compared case-insensitively.
// Used for Transfer-Encoding/Connection token lists (§6).
func ContainsToken(value, token string) bool {
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			part := trimSpace(value[start:i])
			if eqFold(part, token) {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && isSpace(s[i]) {
		i++
	}
	for j > i && isSpace(s[j-1]) {
		j--
	}
	return s[i:j]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }
