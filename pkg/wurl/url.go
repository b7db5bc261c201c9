// Package wurl implements the URL type described in §3/§4.1: scheme,
// host, port, path, and an order-preserving query, with deterministic,
// re-parsable serialization.
package wurl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// Pair is a single query key/value, kept in a slice (not a map) so that
// insertion order survives round trips, matching the Header map's
// ordering guarantee in §3.
type Pair struct {
	Key   string
	Value string
}

// URL holds the parsed parts of an absolute or origin-form target.
type URL struct {
	Scheme string // http, https, ws, wss
	Host   string
	Port   int
	Path   string
	Query  []Pair
}

func defaultPort(scheme string) int {
	switch strings.ToLower(scheme) {
	case "https", "wss":
		return 443
	default:
		return 80
	}
}

// Parse accepts either an absolute URL ("http://host:port/path?q=1") or
// origin-form ("/path?q=1"). Userinfo, if present, is accepted and ignored
// per §3.
func Parse(raw string) (*URL, error) {
	if raw == "" {
		return nil, webccerr.NewSyntax("empty URL")
	}

	u := &URL{Scheme: "http"}

	rest := raw
	if strings.HasPrefix(raw, "/") {
		path, query, _ := strings.Cut(raw, "?")
		u.Path = path
		u.Query = parseQuery(query)
		u.Port = defaultPort(u.Scheme)
		return u, nil
	}

	schemeSep := strings.Index(rest, "://")
	if schemeSep < 0 {
		return nil, webccerr.NewSyntax("URL missing scheme and not origin-form: " + raw)
	}
	u.Scheme = strings.ToLower(rest[:schemeSep])
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, webccerr.NewSyntax("unsupported scheme: " + u.Scheme)
	}
	rest = rest[schemeSep+3:]

	// Strip userinfo ("user:pass@host") — accepted, ignored (§3).
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		slash := strings.Index(rest, "/")
		if slash < 0 || at < slash {
			rest = rest[at+1:]
		}
	}

	authority := rest
	path := "/"
	if slash := strings.Index(rest, "/"); slash >= 0 {
		authority = rest[:slash]
		path = rest[slash:]
	}

	pathPart, query, _ := strings.Cut(path, "?")
	u.Path = pathPart
	if u.Path == "" {
		u.Path = "/"
	}
	u.Query = parseQuery(query)

	host := authority
	port := defaultPort(u.Scheme)
	if idx := strings.LastIndex(authority, ":"); idx >= 0 && !strings.Contains(authority[idx:], "]") {
		host = authority[:idx]
		if p, err := strconv.Atoi(authority[idx+1:]); err == nil {
			port = p
		}
	}
	if host == "" {
		return nil, webccerr.NewSyntax("URL missing host: " + raw)
	}
	u.Host = host
	u.Port = port

	return u, nil
}

func parseQuery(raw string) []Pair {
	if raw == "" {
		return nil
	}
	var pairs []Pair
	for _, kv := range strings.Split(raw, "&") {
		if kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		k2, _ := decodeComponent(k)
		v2, _ := decodeComponent(v)
		pairs = append(pairs, Pair{Key: k2, Value: v2})
	}
	return pairs
}

func decodeComponent(s string) (string, error) {
	s = strings.ReplaceAll(s, "+", " ")
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			b, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err == nil {
				out.WriteByte(byte(b))
				i += 2
				continue
			}
		}
		out.WriteByte(s[i])
	}
	return out.String(), nil
}

// AddQuery appends a key/value pair, preserving insertion order even for
// repeated keys (§3: "ordered append for query keys").
func (u *URL) AddQuery(key, value string) {
	u.Query = append(u.Query, Pair{Key: key, Value: value})
}

var queryEscaper = strings.NewReplacer(
	" ", "%20", "&", "%26", "=", "%3D", "#", "%23", "%", "%25", "+", "%2B",
)

// EncodeQueryValue percent-encodes the reserved characters the spec names
// for query values (§4.1); hostnames are never encoded.
func EncodeQueryValue(v string) string { return queryEscaper.Replace(v) }

// String serializes the URL deterministically; re-parsing the output with
// Parse reproduces an equivalent URL (§8 testable property).
func (u *URL) String() string {
	var b strings.Builder
	if u.Host != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
		b.WriteString(u.Host)
		if u.Port != 0 && u.Port != defaultPort(u.Scheme) {
			fmt.Fprintf(&b, ":%d", u.Port)
		}
	}
	if u.Path == "" {
		b.WriteString("/")
	} else {
		b.WriteString(u.Path)
	}
	if len(u.Query) > 0 {
		b.WriteByte('?')
		for i, p := range u.Query {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(EncodeQueryValue(p.Key))
			b.WriteByte('=')
			b.WriteString(EncodeQueryValue(p.Value))
		}
	}
	return b.String()
}

// RequestTarget returns the path+query form used on the HTTP request line.
func (u *URL) RequestTarget() string {
	s := u.Path
	if s == "" {
		s = "/"
	}
	if len(u.Query) > 0 {
		var b strings.Builder
		b.WriteString(s)
		b.WriteByte('?')
		for i, p := range u.Query {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(EncodeQueryValue(p.Key))
			b.WriteByte('=')
			b.WriteString(EncodeQueryValue(p.Value))
		}
		s = b.String()
	}
	return s
}

// HostPort returns "host:port", suitable for a Host header or dial target.
func (u *URL) HostPort() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}
