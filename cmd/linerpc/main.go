// ABOUTME: CLI client issuing one call or notification against a running server
// ABOUTME: Prints the response result to stdout; an error payload is logged to stderr

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/harper/linerpc/internal/client"
	"github.com/harper/linerpc/internal/config"
	"github.com/harper/linerpc/internal/jsonrpc"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7421", "server address")
	method := flag.String("method", "", "method to call")
	params := flag.String("params", "", "params as JSON array or object")
	id := flag.Int64("id", 1, "request id")
	notify := flag.Bool("notify", false, "send as notification (no response)")
	bufSize := flag.Int("read-buffer", config.DefaultReadBufferSize, "read buffer size in bytes")
	flag.Parse()

	if *method == "" {
		log.Fatal("missing -method")
	}

	var rawParams json.RawMessage
	if *params != "" {
		rawParams = json.RawMessage(*params)
	}

	var reqID *jsonrpc.ID
	if !*notify {
		reqID = jsonrpc.IntID(*id)
	}
	req, err := jsonrpc.NewRequest(*method, rawParams, reqID)
	if err != nil {
		log.Fatalf("invalid request: %v", err)
	}

	c, err := client.Dial(client.Config{PeerAddress: *addr, ReadBufferSize: *bufSize})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	if *notify {
		if err := c.Notify(req); err != nil {
			log.Fatalf("notify failed: %v", err)
		}
		return
	}

	resp, err := c.CallOne(req)
	if err != nil {
		log.Fatalf("call failed: %v", err)
	}
	if !resp.IsSuccess() {
		log.Fatalf("server error %d: %s", int64(resp.Error.Code), resp.Error.Message)
	}
	fmt.Println(string(resp.Result))
}
