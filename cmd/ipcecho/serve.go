package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/ipc"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the datagram echo server and, if configured, the stream listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.serve(ctx, cmd)
		},
	}
}

// serve runs each endpoint in its own goroutine. The exit message on either
// transport stops both.
func (a *app) serve(ctx context.Context, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server, err := ipc.Listen(a.cfg.ServerAddr, a.endpointOptions()...)
	if err != nil {
		return err
	}
	defer server.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "datagram server listening on %s\n", server.Addr())

	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		return ignoreCanceled(server.Serve(child, &datagramEcho{server: server, exit: a.cfg.ExitMessage, logger: a.logger}))
	})

	if a.cfg.StreamAddr != "" {
		listener, err := ipc.ListenStream(a.cfg.StreamAddr, a.endpointOptions()...)
		if err != nil {
			cancel()
			_ = group.Wait()
			return err
		}
		defer listener.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "stream listener listening on %s\n", listener.Addr())

		group.Go(func() error {
			defer cancel()
			return ignoreCanceled(listener.Serve(child, &streamPrinter{out: cmd.OutOrStdout(), exit: a.cfg.ExitMessage}))
		})
	}

	return group.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
