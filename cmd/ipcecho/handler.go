package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Zereker/ipc"
)

// datagramEcho sends every datagram back to its source.
type datagramEcho struct {
	server *ipc.Server
	exit   string
	logger *slog.Logger
}

func (e *datagramEcho) Handle(msg *ipc.Message) error {
	if e.exit != "" && string(msg.Body()) == e.exit {
		e.logger.Info("exit message received", "from", msg.Addr)
		return ipc.ErrStop
	}

	n, err := e.server.Send(msg.Body(), msg.Addr)
	if err != nil {
		return err
	}
	e.logger.Debug("echoed datagram", "to", msg.Addr, "bytes", n)
	return nil
}

// streamPrinter writes each stream frame to out.
type streamPrinter struct {
	out  io.Writer
	exit string
}

func (p *streamPrinter) Handle(msg *ipc.Message) error {
	if p.exit != "" && string(msg.Body()) == p.exit {
		return ipc.ErrStop
	}
	fmt.Fprintf(p.out, "frame from %v (%d bytes): %s\n", msg.Addr, msg.Length(), msg.Body())
	return nil
}
