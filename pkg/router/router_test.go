package router

import (
	"testing"

	"github.com/WhileEndless/webcc/pkg/message"
)

type stubView struct {
	stream bool
}

func (v *stubView) Handle(req *message.Request) (*message.Response, error) {
	return message.NewResponse(), nil
}

func (v *stubView) Stream(method string) bool { return v.stream }

func TestFindViewLiteralMatch(t *testing.T) {
	r := New()
	v := &stubView{}
	r.Literal("/hello", v, "GET")

	got, args, ok := r.FindView("GET", "/hello")
	if !ok || got != v {
		t.Fatalf("expected literal match")
	}
	if len(args) != 0 {
		t.Fatalf("literal match should have no args, got %v", args)
	}
}

func TestFindViewLiteralCaseInsensitive(t *testing.T) {
	r := New()
	v := &stubView{}
	r.Literal("/Hello", v, "GET")

	if _, _, ok := r.FindView("GET", "/hello"); !ok {
		t.Fatalf("expected case-insensitive literal match")
	}
}

func TestFindViewWrongMethodDoesNotMatch(t *testing.T) {
	r := New()
	r.Literal("/hello", &stubView{}, "GET")

	if _, _, ok := r.FindView("POST", "/hello"); ok {
		t.Fatalf("expected no match for disallowed method")
	}
}

func TestFindViewRegexCapturesArgs(t *testing.T) {
	r := New()
	v := &stubView{}
	r.Regex(`^/users/(\d+)/posts/(\d+)$`, v, "GET")

	got, args, ok := r.FindView("GET", "/users/42/posts/7")
	if !ok || got != v {
		t.Fatalf("expected regex match")
	}
	if len(args) != 2 || args[0] != "42" || args[1] != "7" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestFindViewFirstMatchWins(t *testing.T) {
	r := New()
	first := &stubView{}
	second := &stubView{}
	r.Regex(`^/items/.*$`, first, "GET")
	r.Literal("/items/specific", second, "GET")

	got, _, ok := r.FindView("GET", "/items/specific")
	if !ok || got != first {
		t.Fatalf("expected the earlier-registered route to win")
	}
}

func TestMatchViewReportsStream(t *testing.T) {
	r := New()
	r.Literal("/upload", &stubView{stream: true}, "POST")

	matched, stream := r.MatchView("POST", "/upload")
	if !matched || !stream {
		t.Fatalf("expected matched=true stream=true, got %v %v", matched, stream)
	}
}

func TestMatchViewNoRouteMatched(t *testing.T) {
	r := New()
	matched, stream := r.MatchView("GET", "/nope")
	if matched || stream {
		t.Fatalf("expected no match for an empty router")
	}
}
