package ipc

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Handler processes messages delivered by Serve.
type Handler interface {
	// Handle is called once per received message. Returning ErrStop ends
	// Serve cleanly; any other error ends Serve with that error.
	Handle(msg *Message) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(msg *Message) error

// Handle calls f(msg).
func (f HandlerFunc) Handle(msg *Message) error {
	return f(msg)
}

// poller is the non-blocking receive shared by Server and Listener.
type poller interface {
	Poll(maxSize int) (*Message, error)
}

// serve drives p until ctx is done or the handler stops it. Queued messages
// are drained back to back; the loop only sleeps when a poll finds nothing.
func serve(ctx context.Context, p poller, h Handler, opts options, addr string) error {
	logger := opts.logger
	logger.Info("serving", "addr", addr, "poll_interval", opts.pollInterval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopped serving", "addr", addr)
			return ctx.Err()
		case <-timer.C:
		}

		for {
			msg, err := p.Poll(opts.maxMessageSize)
			if err != nil {
				if opts.onError(err) == Continue {
					logger.Warn("poll error, continuing", "addr", addr, "error", err)
					break
				}
				logger.Error("poll error", "addr", addr, "error", err)
				return err
			}
			if msg == nil {
				break
			}

			logger.Debug("received message", "addr", addr, "from", msg.Addr, "size", msg.Size)
			if msg.Truncated() {
				logger.Warn("message truncated", "addr", addr, "from", msg.Addr,
					"size", msg.Size, "buffer", opts.maxMessageSize)
			}

			if err := h.Handle(msg); err != nil {
				if errors.Is(err, ErrStop) {
					logger.Info("handler stopped serving", "addr", addr)
					return nil
				}
				return err
			}

			if ctx.Err() != nil {
				break
			}
		}

		timer.Reset(opts.pollInterval)
	}
}
