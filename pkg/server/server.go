package server

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/gnet/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/WhileEndless/webcc/pkg/message"
	"github.com/WhileEndless/webcc/pkg/parser"
	"github.com/WhileEndless/webcc/pkg/router"
	"github.com/WhileEndless/webcc/pkg/wlog"
	"github.com/WhileEndless/webcc/pkg/wurl"
)

// gnetLogger adapts wlog onto gnet's own Logger interface, the way the
// teacher installs its logger via gnet.WithLogger (§4.6).
type gnetLogger struct{}

func (gnetLogger) Debugf(format string, args ...interface{}) { wlog.Verbf(format, args...) }
func (gnetLogger) Infof(format string, args ...interface{})  { wlog.Infof(format, args...) }
func (gnetLogger) Warnf(format string, args ...interface{})  { wlog.Warnf(format, args...) }
func (gnetLogger) Errorf(format string, args ...interface{}) { wlog.Errof(format, args...) }
func (gnetLogger) Fatalf(format string, args ...interface{}) { wlog.Errof(format, args...) }

// Server runs the gnet-based Acceptor/per-connection reader and the
// bounded worker pool of §4.6. Embeds gnet.BuiltinEventEngine so only the
// hooks actually used need overriding, matching the teacher's engine/
// httpServer shape.
type Server struct {
	gnet.BuiltinEventEngine

	cfg    Config
	router *router.Router

	eng   gnet.Engine
	conns sync.Map // gnet.Conn -> struct{}

	queue chan job
	done  chan struct{}
	wg    sync.WaitGroup
}

// job carries one fully-parsed request from the IO thread to a worker
// (§4.6: "pushed onto a bounded worker queue").
type job struct {
	conn     gnet.Conn
	req      *message.Request
	view     router.View
	pathArgs []string
	urlPath  string
	method   string
}

// connState is the per-connection parser and the view match decided at
// headers-end, stored via gnet's SetContext/Context (§4.6).
type connState struct {
	p        *parser.Parser
	view     router.View
	pathArgs []string
	urlPath  string
	method   string
}

// New returns a Server dispatching to r, with its own worker pool and
// connection registry.
func New(cfg Config, r *router.Router) *Server {
	cfg = cfg.normalize()
	return &Server{
		cfg:    cfg,
		router: r,
		queue:  make(chan job, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.eng = eng
	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	wlog.Infof("server: booted with %d workers, queue size %d", s.cfg.WorkerCount, s.cfg.QueueSize)
	return gnet.None
}

func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	st := &connState{}
	st.p = parser.New(parser.ModeRequest)
	st.p.SetMaxHeaderBytes(s.cfg.MaxHeaderBytes)
	st.p.SetMaxBodyBytes(s.cfg.MaxBodyBytes)
	st.p.Init(false, s.headersEndFunc(st))
	c.SetContext(st)
	s.conns.Store(c, struct{}{})
	wlog.Verbf("server: accepted connection from %s", c.RemoteAddr())
	return nil, gnet.None
}

func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	s.conns.Delete(c)
	if err != nil {
		wlog.Warnf("server: connection from %s closed with error: %v", c.RemoteAddr(), err)
	} else {
		wlog.Verbf("server: connection from %s closed", c.RemoteAddr())
	}
	return gnet.None
}

// headersEndFunc resolves a view for (method, path) as soon as headers
// finish parsing, so the parser knows whether to stream this request's
// body to disk before a single body byte arrives (§4.4, §4.6).
func (s *Server) headersEndFunc(st *connState) parser.HeadersEndFunc {
	return func(p *parser.Parser) bool {
		st.method = p.Method
		st.urlPath = requestPath(p.RequestURI)
		view, args, ok := s.router.FindView(st.method, st.urlPath)
		if !ok {
			st.view, st.pathArgs = nil, nil
			return false
		}
		st.view, st.pathArgs = view, args
		return view.Stream(st.method)
	}
}

func requestPath(requestURI string) string {
	u, err := wurl.Parse(requestURI)
	if err != nil {
		return requestURI
	}
	return u.Path
}

// OnTraffic feeds the new bytes to this connection's parser and, for
// every request it finishes (there may be several pipelined in one
// read), hands it to the worker pool before resuming parsing on
// whatever bytes are left over (§4.6).
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	st, ok := c.Context().(*connState)
	if !ok || st == nil {
		return gnet.Close
	}

	buf, _ := c.Next(-1)
	if err := st.p.Parse(buf); err != nil {
		wlog.Warnf("server: parse error from %s: %v", c.RemoteAddr(), err)
		return gnet.Close
	}

	for st.p.Finished() {
		req := buildRequest(st.p)
		leftover := append([]byte(nil), st.p.Pending()...)

		s.dispatch(c, st, req)

		st.p = parser.New(parser.ModeRequest)
		st.p.SetMaxHeaderBytes(s.cfg.MaxHeaderBytes)
		st.p.SetMaxBodyBytes(s.cfg.MaxBodyBytes)
		st.p.Init(false, s.headersEndFunc(st))

		if len(leftover) == 0 {
			break
		}
		if err := st.p.Parse(leftover); err != nil {
			return gnet.Close
		}
	}
	return gnet.None
}

func buildRequest(p *parser.Parser) *message.Request {
	req := message.NewRequest()
	req.Method = p.Method
	if u, err := wurl.Parse(p.RequestURI); err == nil {
		req.Url = u
	}
	req.Headers = p.Headers
	req.Body = p.Body
	req.FormParts = p.FormParts
	if p.IsChunked() {
		req.ContentLength = message.NoContentLength
	} else {
		req.ContentLength = p.ContentLength()
	}
	return req
}

// dispatch enqueues a finished request for the worker pool; a full queue
// gets a 503 written inline from the IO thread rather than blocking it
// (§4.6: "bounded worker queue"). When Config.RateLimit is set, a
// request whose admission token would take longer than RateLimitWait to
// arrive is rejected the same way before it ever reaches the queue
// (§4.12) — checked via Reserve/Delay rather than Wait so the IO thread
// never actually blocks.
func (s *Server) dispatch(c gnet.Conn, st *connState, req *message.Request) {
	if s.cfg.RateLimit != nil {
		r := s.cfg.RateLimit.ReserveN(time.Now(), 1)
		if !r.OK() || r.Delay() > s.cfg.RateLimitWait {
			r.Cancel()
			s.writeInline(c, serviceUnavailable())
			return
		}
	}

	j := job{conn: c, req: req, view: st.view, pathArgs: st.pathArgs, urlPath: st.urlPath, method: st.method}
	select {
	case s.queue <- j:
	default:
		s.writeInline(c, serviceUnavailable())
	}
}

// worker dequeues jobs, runs the matched view (or static file fallback),
// and posts the response back onto the connection's own IO-loop thread
// via AsyncWrite, which gnet guarantees is safe to call from any
// goroutine (§4.6: "workers... never touch socket objects directly").
func (s *Server) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case j, ok := <-s.queue:
			if !ok {
				return
			}
			s.serveJob(j)
		}
	}
}

func (s *Server) serveJob(j job) {
	resp := s.handle(j)
	if err := resp.Prepare(); err != nil {
		resp = internalServerError()
		resp.Prepare()
	}
	keepAlive := resp.IsKeepAlive()

	buf, err := renderResponse(resp)
	if err != nil {
		wlog.Errof("server: render response to %s failed: %v", j.conn.RemoteAddr(), err)
		j.conn.Close()
		return
	}
	data := append([]byte(nil), buf.B...)
	bytebufferpool.Put(buf)

	j.conn.AsyncWrite(data, func(c gnet.Conn, err error) error {
		if err != nil || !keepAlive {
			return c.Close()
		}
		return nil
	})
}

func (s *Server) handle(j job) *message.Response {
	j.req.PathArgs = j.pathArgs

	if j.view != nil {
		resp, err := j.view.Handle(j.req)
		if err != nil || resp == nil {
			return internalServerErrorFor(err)
		}
		if j.method == message.MethodHead {
			resp.Body = nil
		}
		return resp
	}

	if s.cfg.DocRoot != "" {
		resp, err := serveStatic(s.cfg.DocRoot, j.urlPath)
		if err == nil {
			return resp
		}
	}
	return notFound()
}

// writeInline writes a response synchronously from the IO thread itself
// (used only for the 503 of a full queue or a rate-limit rejection, never
// for a matched view's response).
func (s *Server) writeInline(c gnet.Conn, resp *message.Response) {
	resp.Prepare()
	buf, err := renderResponse(resp)
	if err != nil {
		c.Close()
		return
	}
	c.Write(buf.B)
	bytebufferpool.Put(buf)
}

// renderResponse writes the status line, headers, and full body into a
// pooled buffer ready for a single Write/AsyncWrite call.
func renderResponse(resp *message.Response) (*bytebufferpool.ByteBuffer, error) {
	buf := bytebufferpool.Get()
	buf.WriteString(resp.StartLine)
	buf.WriteString("\r\n")
	resp.Headers.Each(func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	})
	buf.WriteString("\r\n")

	if resp.Body == nil {
		return buf, nil
	}
	if err := resp.Body.InitPayload(); err != nil {
		bytebufferpool.Put(buf)
		return nil, err
	}
	defer resp.Body.Close()
	for {
		chunks, err := resp.Body.NextPayload(false)
		if err != nil {
			bytebufferpool.Put(buf)
			return nil, err
		}
		if chunks == nil {
			break
		}
		for _, c := range chunks {
			buf.Write(c)
		}
	}
	return buf, nil
}

// Run starts listening on addr ("tcp://host:port" or "host:port") and
// blocks until the engine stops (§4.6's Acceptor binds with
// SO_REUSEADDR).
func (s *Server) Run(addr string) error {
	proto := addr
	if !containsScheme(proto) {
		proto = "tcp://" + proto
	}
	wlog.Infof("server: listening on %s", proto)
	return gnet.Run(s, proto,
		gnet.WithMulticore(s.cfg.Multicore),
		gnet.WithReuseAddr(true),
		gnet.WithReusePort(true),
		gnet.WithTCPKeepAlive(s.cfg.IdleTimeout),
		gnet.WithLogger(gnetLogger{}),
	)
}

func containsScheme(addr string) bool {
	for i := 0; i+2 < len(addr); i++ {
		if addr[i] == ':' && addr[i+1] == '/' && addr[i+2] == '/' {
			return true
		}
	}
	return false
}

// Stop gracefully shuts the server down (§4.6): stops accepting, clears
// the worker queue, signals workers to exit and joins them, closes every
// open connection, then stops the IO engine. A stopped Server may Run
// again.
func (s *Server) Stop(ctx context.Context) error {
	wlog.Infof("server: stopping")
	close(s.done)
	s.wg.Wait()

	for drained := false; !drained; {
		select {
		case <-s.queue:
		default:
			drained = true
		}
	}

	s.conns.Range(func(key, _ interface{}) bool {
		if c, ok := key.(gnet.Conn); ok {
			c.Close()
		}
		return true
	})

	err := s.eng.Stop(ctx)
	s.done = make(chan struct{})
	return err
}
