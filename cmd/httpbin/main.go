package main

import (
	"flag"
	"log"

	"github.com/WhileEndless/webcc/pkg/router"
	"github.com/WhileEndless/webcc/pkg/server"
)

func main() {
	addr := flag.String("addr", "tcp://127.0.0.1:8080", "listen address (gnet scheme://host:port)")
	flag.Parse()

	r := router.New()
	r.Literal("/get", getView{}, "GET")
	r.Literal("/post", postView{}, "POST")
	r.Regex(`^/sleep/(\d+)$`, sleepView{}, "GET")

	s := server.New(server.DefaultConfig(), r)
	log.Printf("httpbin listening on %s", *addr)
	if err := s.Run(*addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
