package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zereker/ipc"
)

const (
	serverAddr = "127.0.0.1:12345"
	maxSize    = 512
)

// echo replies to every datagram with the same bytes and stops on "exit".
type echo struct {
	server *ipc.Server
}

func (e *echo) Handle(msg *ipc.Message) error {
	slog.Info("received data", "from", msg.Addr, "size", msg.Length(), "data", string(msg.Body()))

	if string(msg.Body()) == "exit" {
		return ipc.ErrStop
	}

	n, err := e.server.Send(msg.Body(), msg.Addr)
	if err != nil {
		return err
	}
	slog.Info("sent back", "to", msg.Addr, "bytes", n)
	return nil
}

func main() {
	server, err := ipc.Listen(serverAddr,
		ipc.PollIntervalOption(100*time.Millisecond),
		ipc.MessageMaxSize(maxSize),
	)
	if err != nil {
		slog.Error("failed to bind server", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("echo server start", "addr", server.Addr().String())
	if err := server.Serve(ctx, &echo{server: server}); err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("echo server stopped")
}
