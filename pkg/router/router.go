// Package router implements the literal/regex route table and View
// contract of §4.7: a route is a (matcher, allowed methods, view) triple,
// FindView iterates routes in insertion order and returns the first
// match, and MatchView additionally reports whether the matched view
// wants this request's body streamed to disk.
package router

import (
	"regexp"
	"strings"
	"sync"

	"github.com/WhileEndless/webcc/pkg/header"
	"github.com/WhileEndless/webcc/pkg/message"
)

// View is the handler contract a route dispatches to (§4.7).
type View interface {
	// Handle produces the response for a matched request.
	Handle(req *message.Request) (*message.Response, error)
	// Stream reports whether this method's request body should be
	// streamed to a file rather than buffered in memory. Default false.
	Stream(method string) bool
}

// BaseView gives a View a zero-value Stream that always returns false,
// so a view only needs to override it when it actually wants streaming.
type BaseView struct{}

func (BaseView) Stream(method string) bool { return false }

// route is a single (matcher, methods, view) entry, matched in the
// insertion order Routes preserves (§4.7: "first match wins").
type route struct {
	matcher matcher
	methods map[string]struct{}
	view    View
}

type matcher interface {
	// match reports whether path matches, and if so, the ordered capture
	// groups a regex route extracted (nil for a literal route).
	match(path string) (args []string, ok bool)
}

type literalMatcher string

func (m literalMatcher) match(path string) ([]string, bool) {
	if header.EqualFold(path, string(m)) {
		return nil, true
	}
	return nil, false
}

type regexMatcher struct{ re *regexp.Regexp }

func (m regexMatcher) match(path string) ([]string, bool) {
	sub := m.re.FindStringSubmatch(path)
	if sub == nil {
		return nil, false
	}
	return sub[1:], true
}

// Router holds the ordered route table. Zero value is ready to use.
type Router struct {
	mu     sync.RWMutex
	routes []route
}

// New returns an empty Router.
func New() *Router { return &Router{} }

func methodSet(methods []string) map[string]struct{} {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(m)] = struct{}{}
	}
	return set
}

// Literal registers an exact, case-insensitive path match (§4.7).
func (r *Router) Literal(path string, view View, methods ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{matcher: literalMatcher(path), methods: methodSet(methods), view: view})
}

// Regex registers a route whose path pattern is a regular expression;
// capture groups become the view's positional PathArgs (§4.7). Panics on
// an invalid pattern, matching the teacher's route-registration-time
// validation in router.Handle.
func (r *Router) Regex(pattern string, view View, methods ...string) {
	re := regexp.MustCompile(pattern)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{matcher: regexMatcher{re}, methods: methodSet(methods), view: view})
}

// FindView returns the first route (in insertion order) whose matcher
// accepts path and whose method set contains method, along with the
// regex capture groups, if any.
func (r *Router) FindView(method, path string) (view View, args []string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if _, allowed := rt.methods[method]; !allowed {
			continue
		}
		if a, matched := rt.matcher.match(path); matched {
			return rt.view, a, true
		}
	}
	return nil, nil, false
}

// MatchView reports whether any route matches (method, path) and, if so,
// whether that view wants this request streamed (§4.7).
func (r *Router) MatchView(method, path string) (matched, stream bool) {
	view, _, ok := r.FindView(method, path)
	if !ok {
		return false, false
	}
	return true, view.Stream(method)
}
