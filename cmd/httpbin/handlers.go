// Command httpbin is a small example server exercising the router and
// server packages end to end: /get echoes query args and headers back
// as JSON, /post echoes the request body inside a JSON envelope, and
// /sleep/{n} stalls for n seconds to exercise read/write deadlines.
package main

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fastjson"

	"github.com/WhileEndless/webcc/pkg/body"
	"github.com/WhileEndless/webcc/pkg/builder"
	"github.com/WhileEndless/webcc/pkg/message"
	"github.com/WhileEndless/webcc/pkg/router"
	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// readBody drains a request's body into a single buffer. httpbin only
// ever sees small, test-sized payloads, so buffering whole is fine.
func readBody(b body.Body) ([]byte, error) {
	if err := b.InitPayload(); err != nil {
		return nil, err
	}
	var out []byte
	for {
		chunks, err := b.NextPayload(false)
		if err != nil {
			return nil, err
		}
		if chunks == nil {
			break
		}
		for _, c := range chunks {
			out = append(out, c...)
		}
	}
	return out, nil
}

func jsonResponse(v any) (*message.Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, webccerr.NewData("marshal response: " + err.Error())
	}
	return builder.NewResponseBuilder().OK().Json().Utf8().Body(data).Build()
}

// getView implements GET /get: it echoes the query string and request
// headers, the way httpbin.org's own /get does.
type getView struct{ router.BaseView }

type getEnvelope struct {
	Args    map[string]string `json:"args"`
	Headers map[string]string `json:"headers"`
}

func (getView) Handle(req *message.Request) (*message.Response, error) {
	env := getEnvelope{
		Args:    make(map[string]string),
		Headers: make(map[string]string),
	}
	if req.Url != nil {
		for _, q := range req.Url.Query {
			env.Args[q.Key] = q.Value
		}
	}
	req.Headers.Each(func(name, value string) {
		env.Headers[name] = value
	})
	return jsonResponse(env)
}

// postView implements POST /post: it echoes the body verbatim, reporting
// its length and whether fastjson can parse it as JSON. Parsing is only
// ever used to classify the body here; it never feeds the response body
// back through a decoded structure.
type postView struct{ router.BaseView }

type postEnvelope struct {
	Body          string `json:"body"`
	ContentLength int    `json:"content_length"`
	IsJSON        bool   `json:"is_json"`
}

func (postView) Handle(req *message.Request) (*message.Response, error) {
	data, err := readBody(req.Body)
	if err != nil {
		return nil, err
	}

	env := postEnvelope{
		Body:          string(data),
		ContentLength: len(data),
	}
	if len(data) > 0 {
		var p fastjson.Parser
		if _, err := p.ParseBytes(data); err == nil {
			env.IsJSON = true
		}
	}
	return jsonResponse(env)
}

// sleepView implements GET /sleep/{n}: it blocks for n seconds before
// responding, so a client-side read deadline shorter than n will fire.
type sleepView struct{ router.BaseView }

func (sleepView) Handle(req *message.Request) (*message.Response, error) {
	n := 0
	if len(req.PathArgs) > 0 {
		parsed, err := strconv.Atoi(req.PathArgs[0])
		if err != nil {
			return builder.NewResponseBuilder().BadRequest().BodyString("bad sleep duration").Build()
		}
		n = parsed
	}
	time.Sleep(time.Duration(n) * time.Second)
	return jsonResponse(map[string]int{"slept": n})
}
