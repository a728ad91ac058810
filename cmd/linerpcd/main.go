// ABOUTME: Server daemon entry point with a small demo method set
// ABOUTME: Loads .env and YAML config, runs the reactor until SIGINT/SIGTERM

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harper/linerpc/internal/config"
	"github.com/harper/linerpc/internal/jsonrpc"
	"github.com/harper/linerpc/internal/logger"
	"github.com/harper/linerpc/internal/reactor"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	printConfig := flag.Bool("print-config", false, "print effective config and exit")
	flag.Parse()

	// Optional .env in the working directory; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *printConfig {
		out, err := cfg.Dump()
		if err != nil {
			log.Fatalf("failed to render config: %v", err)
		}
		fmt.Print(out)
		return
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if *verbose {
		logger.SetLevel(logger.LevelDebug)
	}

	r, err := reactor.New(reactor.Config{
		BindAddress: cfg.Server.BindAddress,
		MaxClients:  cfg.Server.MaxClients,
		ReadTimeout: cfg.Server.ReadTimeout(),
	}, reactor.Requests(dispatch))
	if err != nil {
		log.Fatalf("failed to start reactor: %v", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("shutting down")
		r.Shutdown()
	}()

	if err := r.Run(); err != nil {
		log.Fatalf("reactor failed: %v", err)
	}
}

// dispatch serves the built-in demo methods.
func dispatch(c *reactor.Conn, req *jsonrpc.Request) *jsonrpc.Response {
	switch req.Method {
	case "echo":
		result, _ := json.Marshal(req.Method)
		return success(req, result)
	case "ping":
		return success(req, json.RawMessage(`"pong"`))
	case "sum":
		return sum(req)
	default:
		return jsonrpc.NewFailure(jsonrpc.MethodNotFound, jsonrpc.MethodNotFound.String(), nil, req.ID)
	}
}

func success(req *jsonrpc.Request, result json.RawMessage) *jsonrpc.Response {
	if req.IsNotification() {
		return nil
	}
	resp, err := jsonrpc.NewSuccess(result, req.ID)
	if err != nil {
		return jsonrpc.NewFailure(jsonrpc.InternalError, jsonrpc.InternalError.String(), nil, req.ID)
	}
	return resp
}

func sum(req *jsonrpc.Request) *jsonrpc.Response {
	var terms []float64
	if err := req.Params.Unmarshal(&terms); err != nil {
		return jsonrpc.NewFailure(jsonrpc.InvalidParams, jsonrpc.InvalidParams.String(), nil, req.ID)
	}
	total := 0.0
	for _, t := range terms {
		total += t
	}
	result, _ := json.Marshal(total)
	return success(req, result)
}
