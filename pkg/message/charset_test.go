package message

import "testing"

func TestContentTypeCharsetCanonicalizesAlias(t *testing.T) {
	r := NewRequest()
	r.Headers.Set("Content-Type", `text/html; charset=UTF8`)

	name, ok := r.ContentTypeCharset()
	if !ok {
		t.Fatalf("expected a recognized charset")
	}
	if name != "utf-8" {
		t.Fatalf("expected canonical name 'utf-8', got %q", name)
	}
}

func TestContentTypeCharsetMissing(t *testing.T) {
	r := NewRequest()
	r.Headers.Set("Content-Type", "application/json")

	if _, ok := r.ContentTypeCharset(); ok {
		t.Fatalf("expected no charset for a Content-Type without one")
	}
}

func TestContentTypeCharsetUnrecognized(t *testing.T) {
	r := NewRequest()
	r.Headers.Set("Content-Type", "text/plain; charset=totally-not-a-charset")

	if _, ok := r.ContentTypeCharset(); ok {
		t.Fatalf("expected an unrecognized charset name to report ok=false")
	}
}
